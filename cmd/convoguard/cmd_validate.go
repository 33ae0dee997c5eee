// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ConvoGuardAI/ConvoGuard/pkg/evaluation"
	"github.com/ConvoGuardAI/ConvoGuard/pkg/triage"
)

var (
	validateData    string
	validateProfile string
	validateOutput  string

	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Validate the pattern classifier against a labeled holdout set",
		Long: `Runs the pattern classifier over a JSONL holdout file (one
{"text": ..., "label": ...} object per line) and writes a validation
report judged against the pilot acceptance targets. Exits non-zero
when any target is missed.`,
		Run: runValidate,
	}
)

func init() {
	validateCmd.Flags().StringVar(&validateData, "data", "", "path to the labeled holdout JSONL file (required)")
	validateCmd.Flags().StringVar(&validateProfile, "profile", "calibrated", "tier profile: a built-in name or a YAML file path")
	validateCmd.Flags().StringVar(&validateOutput, "output", "validation_report.json", "path for the JSON report")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) {
	if validateData == "" {
		slog.Error("Please provide a holdout file using --data (e.g., --data therapy_arcs_flat.jsonl)")
		os.Exit(1)
	}

	profile, err := resolveProfile(validateProfile)
	if err != nil {
		slog.Error("Failed to load the tier profile", "profile", validateProfile, "error", err)
		os.Exit(1)
	}
	classifier, err := triage.NewPatternClassifier(profile)
	if err != nil {
		slog.Error("Failed to build the pattern classifier", "error", err)
		os.Exit(1)
	}

	samples, err := readHoldout(validateData)
	if err != nil {
		slog.Error("Failed to read the holdout file", "path", validateData, "error", err)
		os.Exit(1)
	}
	if len(samples) == 0 {
		slog.Error("The holdout file contains no samples", "path", validateData)
		os.Exit(1)
	}

	records := make([]evaluation.PredictionRecord, len(samples))
	for i, s := range samples {
		label, confidence := classifier.Classify(s.Text)
		records[i] = evaluation.PredictionRecord{
			TrueLabel:      s.TrueLabel,
			PredictedLabel: label,
			Confidence:     confidence,
		}
	}

	agg := evaluation.Evaluate(records)
	report := evaluation.BuildReport(agg, evaluation.DefaultTargets(), classifier.ProfileName())

	if err := writeReport(validateOutput, report); err != nil {
		slog.Error("Failed to write the report", "path", validateOutput, "error", err)
		os.Exit(1)
	}

	printReport(report)
	if !report.Pass {
		os.Exit(1)
	}
}

func resolveProfile(name string) (triage.Profile, error) {
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		return triage.LoadProfile(name)
	}
	return triage.ProfileByName(name)
}

// readHoldout parses a JSONL holdout file, skipping blank lines.
func readHoldout(path string) ([]evaluation.LabeledSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var samples []evaluation.LabeledSample
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var s evaluation.LabeledSample
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, s)
	}
	return samples, scanner.Err()
}

func writeReport(path string, report evaluation.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func printReport(report evaluation.Report) {
	fmt.Printf("\n%s\n", report.Title)
	fmt.Printf("   Classifier:     %s\n", report.Classifier)
	fmt.Printf("   Samples:        %d\n", report.Overall.TotalSamples)
	fmt.Printf("   Accuracy:       %.4f\n", report.Overall.Accuracy)
	fmt.Printf("   Macro F1:       %.4f\n", report.Overall.MacroF1)
	fmt.Printf("   Weighted F1:    %.4f\n", report.Overall.WeightedF1)
	fmt.Println("---------------------------------------------------")
	for _, check := range report.Checks {
		status := "PASS"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Printf("   %-16s %.4f (target %.2f)  %s\n", check.Name, check.Actual, check.Target, status)
	}
	fmt.Println("---------------------------------------------------")
	if report.Pass {
		fmt.Println("Result: PASS")
	} else {
		fmt.Println("Result: FAIL")
	}
}
