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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/graphforge/services/forge/contract"
)

var (
	validateContractsDir string
	validateJSONOutput   bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate tool contracts against their implementations",
	Long: `Validate every registered tool against its stored contract: schema
well-formedness, interface consistency, and category placement.

Exits non-zero when any contract fails, so the command can gate CI.

Examples:
  graphforge validate
  graphforge validate --contracts ./contracts --json`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateContractsDir, "contracts", "",
		"Directory of contract YAML files merged over the built-ins")
	validateCmd.Flags().BoolVar(&validateJSONOutput, "json", false, "Print the report as JSON")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(config, logger)
	if err != nil {
		return err
	}
	defer eng.close()

	if validateContractsDir != "" {
		if err := eng.contracts.LoadDir(validateContractsDir); err != nil {
			return err
		}
	}

	report := eng.validator.BatchValidate(eng.toolset.Instances())

	if validateJSONOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Printf("Validated %d tool(s): %d valid, %d invalid\n",
			report.Summary.Total, report.Summary.Valid, report.Summary.Invalid)
		for toolID, entry := range report.Tools {
			printToolReport(toolID, entry)
		}
		for toolID, entry := range report.Adapters {
			printToolReport(toolID, entry)
		}
	}

	if !report.Success() {
		return fmt.Errorf("%d contract(s) failed validation", report.Summary.Invalid)
	}
	return nil
}

func printToolReport(toolID string, entry *contract.ToolReport) {
	if entry.ContractValid {
		return
	}
	fmt.Printf("  %s:\n", toolID)
	for _, problem := range entry.SchemaErrors {
		fmt.Printf("    - schema: %s\n", problem)
	}
	for _, problem := range entry.InterfaceErrors {
		fmt.Printf("    - interface: %s\n", problem)
	}
}
