// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/graphforge/pkg/logging"
)

var (
	config     Config
	configPath string
	logger     *slog.Logger
	closeLogs  func() error
)

var rootCmd = &cobra.Command{
	Use:   "graphforge",
	Short: "Compose and run tool pipelines over typed data",
	Long: `graphforge plans and executes tool pipelines.

Tools declare the data types they consume and produce; the engine chains
them by type compatibility, validates the resulting DAG, and runs it
with per-branch failure isolation.

Examples:
  graphforge run --text "Apple Inc. was founded by Steve Jobs." --target GRAPH
  graphforge paths TEXT GRAPH
  graphforge validate --contracts ./contracts
  graphforge serve --listen :8080`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "graphforge.yaml",
		"Path to the YAML config file")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		var err error
		config, err = LoadConfig(configPath)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}

		logger, closeLogs = logging.New(logging.Config{
			Level:   logging.ParseLevel(config.Logging.Level),
			LogDir:  config.Logging.Dir,
			Service: "graphforge",
			JSON:    config.Logging.JSON,
		})
		slog.SetDefault(logger)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if closeLogs != nil {
			_ = closeLogs()
		}
	}
}
