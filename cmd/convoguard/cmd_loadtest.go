// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	loadtestURL         string
	loadtestRequests    int
	loadtestConcurrency int
	loadtestOutput      string

	loadtestCmd = &cobra.Command{
		Use:   "loadtest",
		Short: "Load test a running inference service",
		Long: `Issues classify requests against a running service with bounded
concurrency and reports latency percentiles and the error rate, judged
against the pilot thresholds (p95 < 500ms, errors < 5%). Exits
non-zero when a threshold is missed.`,
		Run: runLoadtest,
	}
)

// loadtestTexts mixes the three tiers so the run exercises every
// classification path.
var loadtestTexts = []string{
	"Ich fühle mich heute gut",
	"Die Arbeit macht mich fertig, ich bin so gestresst",
	"Ich fühle mich seit Wochen hoffnungslos",
	"Nichts macht mir mehr Freude, alles ist grau",
	"Ich habe Suizidgedanken und weiß nicht weiter",
	"Heute war ein schöner Tag mit meiner Familie",
}

func init() {
	loadtestCmd.Flags().StringVar(&loadtestURL, "url", "http://localhost:8000", "base URL of the inference service")
	loadtestCmd.Flags().IntVar(&loadtestRequests, "requests", 1000, "total number of requests to issue")
	loadtestCmd.Flags().IntVar(&loadtestConcurrency, "concurrency", 16, "maximum in-flight requests")
	loadtestCmd.Flags().StringVar(&loadtestOutput, "output", "", "optional path for the JSON result")
	rootCmd.AddCommand(loadtestCmd)
}

func runLoadtest(cmd *cobra.Command, _ []string) {
	fmt.Printf("\nLoad testing %s (%d requests, concurrency %d)\n",
		loadtestURL, loadtestRequests, loadtestConcurrency)

	result, err := RunLoadTest(context.Background(), LoadTestConfig{
		URL:         loadtestURL,
		Requests:    loadtestRequests,
		Concurrency: loadtestConcurrency,
		Texts:       loadtestTexts,
	})
	if err != nil {
		slog.Error("Load test could not run", "error", err)
		os.Exit(1)
	}

	fmt.Println("---------------------------------------------------")
	fmt.Printf("   Requests:       %d\n", result.Requests)
	fmt.Printf("   Errors:         %d (%.2f%%)\n", result.Errors, result.ErrorRate*100)
	fmt.Printf("   p50:            %.2f ms\n", result.P50Ms)
	fmt.Printf("   p95:            %.2f ms (threshold %.0f ms)\n", result.P95Ms, maxP95Ms)
	fmt.Printf("   p99:            %.2f ms\n", result.P99Ms)
	fmt.Printf("   max:            %.2f ms\n", result.MaxMs)
	fmt.Println("---------------------------------------------------")

	if loadtestOutput != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err == nil {
			err = os.WriteFile(loadtestOutput, append(data, '\n'), 0644)
		}
		if err != nil {
			slog.Error("Failed to write the result file", "path", loadtestOutput, "error", err)
			os.Exit(1)
		}
	}

	if result.Pass {
		fmt.Println("Result: PASS")
	} else {
		fmt.Println("Result: FAIL")
		os.Exit(1)
	}
}
