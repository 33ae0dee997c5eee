// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/ConvoGuardAI/ConvoGuard/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "convoguard",
	Short: "A CLI for validating and load testing the ConvoGuard triage system",
	Long: `ConvoGuard detects mental health crises in German text messages.
This tool generates synthetic evaluation data, validates the classifier
against labeled holdout sets, and load tests a running inference service.`,
}

func main() {
	logger, err := logging.SetupDefault(logging.Config{
		Level:   os.Getenv("LOG_LEVEL"),
		Service: "cli",
	})
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logger.Close()

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
