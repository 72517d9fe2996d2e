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

	"github.com/AleutianAI/graphforge/services/forge/dag"
	"github.com/AleutianAI/graphforge/services/forge/datatype"
)

var (
	runText       string
	runInput      string
	runTarget     string
	runJSONOutput bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Plan and execute a pipeline to a target data type",
	Long: `Plan the shortest transformation chain from raw text to the target
data type and execute it.

The source comes from --text or --input (a file path). Known target
types: TEXT, ENTITIES, RELATIONS, GRAPH, ENRICHED_GRAPH, TABLE_FORMAT,
EMBEDDINGS, STORAGE_TXN.

Examples:
  graphforge run --text "Apple Inc. was founded by Steve Jobs." --target GRAPH
  graphforge run --input notes.txt --target TABLE_FORMAT --json`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runText, "text", "", "Inline source text")
	runCmd.Flags().StringVar(&runInput, "input", "", "Path to a source text file")
	runCmd.Flags().StringVar(&runTarget, "target", "GRAPH", "Target data type")
	runCmd.Flags().BoolVar(&runJSONOutput, "json", false, "Print the full result as JSON")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if runText == "" && runInput == "" {
		return fmt.Errorf("one of --text or --input is required")
	}
	target, err := datatype.Parse(runTarget)
	if err != nil {
		return err
	}

	eng, err := buildEngine(config, logger)
	if err != nil {
		return err
	}
	defer eng.close()

	d, err := dag.FromPath(eng.toolset.Registry(), datatype.Text, target)
	if err != nil {
		return err
	}
	params := map[string]any{}
	if runText != "" {
		params["text"] = runText
	} else {
		params["path"] = runInput
	}
	if err := d.WithSource("source", "text_loader", params); err != nil {
		return err
	}

	result, err := eng.executor.Run(cmd.Context(), d)
	if err != nil {
		return err
	}

	if runJSONOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	printRunSummary(result)
	if !result.Success {
		return fmt.Errorf("pipeline finished with %d failed step(s)", result.FailedSteps)
	}
	return nil
}

func printRunSummary(result *dag.Result) {
	fmt.Printf("Run %s: %d/%d steps completed in %s\n",
		result.RunID, result.CompletedSteps, result.TotalSteps, result.Duration)
	for _, step := range result.StepResults {
		line := fmt.Sprintf("  [%s] %s (%s)", step.Status, step.StepID, step.ToolID)
		if step.Error != "" {
			line += " - " + step.Error
		}
		fmt.Println(line)
	}
	for _, stage := range result.FinalState {
		fmt.Printf("  stage %q: %s (%d bytes)\n", stage.Name, stage.DataType, stage.Size)
	}
	for _, warning := range result.Warnings {
		fmt.Println("  warning:", warning)
	}
}
