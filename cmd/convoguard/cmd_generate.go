// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	generateCount   int
	generateSeed    int64
	generateArcsOut string
	generateFlatOut string

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate synthetic German therapy conversation arcs",
		Long: `Generates five-turn synthetic therapy conversations with emotional
state progressions (HOPE, STRESS, DESPAIR, CRISIS, RECOVERY), plus a
flattened single-turn file usable as holdout data for 'validate'.`,
		Run: runGenerate,
	}
)

func init() {
	generateCmd.Flags().IntVar(&generateCount, "count", 500, "approximate number of arcs to generate")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 0, "random seed (0 means time-based)")
	generateCmd.Flags().StringVar(&generateArcsOut, "arcs-out", "therapy_arcs.jsonl", "output path for full arcs")
	generateCmd.Flags().StringVar(&generateFlatOut, "flat-out", "therapy_arcs_flat.jsonl", "output path for flattened samples")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) {
	seed := generateSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	arcs := GenerateArcs(generateCount, rng)
	flat := FlattenArcs(arcs)

	if err := writeJSONL(generateArcsOut, arcs); err != nil {
		slog.Error("Failed to write arcs", "path", generateArcsOut, "error", err)
		os.Exit(1)
	}
	if err := writeJSONL(generateFlatOut, flat); err != nil {
		slog.Error("Failed to write flattened samples", "path", generateFlatOut, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d therapy arcs → %s\n", len(arcs), generateArcsOut)
	fmt.Printf("Flattened to %d single-turn samples → %s\n", len(flat), generateFlatOut)
	fmt.Printf("Seed: %d\n", seed)
}

// writeJSONL writes one JSON document per line.
func writeJSONL[T any](path string, items []T) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}
