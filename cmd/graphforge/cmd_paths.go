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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
	"github.com/AleutianAI/graphforge/services/forge/registry"
)

var (
	pathsMaxLength  int
	pathsJSONOutput bool
)

var pathsCmd = &cobra.Command{
	Use:   "paths FROM TO",
	Short: "List transformation chains between two data types",
	Long: `List every acyclic tool chain that transforms FROM into TO, shortest
first.

Examples:
  graphforge paths TEXT GRAPH
  graphforge paths TEXT TABLE_FORMAT --max-length 5 --json`,
	Args: cobra.ExactArgs(2),
	RunE: runPaths,
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools",
	RunE:  runTools,
}

func init() {
	pathsCmd.Flags().IntVar(&pathsMaxLength, "max-length", registry.DefaultMaxPathLength,
		"Maximum tools per chain")
	pathsCmd.Flags().BoolVar(&pathsJSONOutput, "json", false, "Print paths as JSON")
	rootCmd.AddCommand(pathsCmd)
	rootCmd.AddCommand(toolsCmd)
}

func runPaths(cmd *cobra.Command, args []string) error {
	from, err := datatype.Parse(args[0])
	if err != nil {
		return err
	}
	to, err := datatype.Parse(args[1])
	if err != nil {
		return err
	}

	eng, err := buildEngine(config, logger)
	if err != nil {
		return err
	}
	defer eng.close()

	paths, err := eng.toolset.Registry().FindAllPaths(from, to, pathsMaxLength)
	if err != nil {
		return err
	}

	if pathsJSONOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(paths)
	}

	if len(paths) == 0 {
		fmt.Printf("No chain from %s to %s\n", from, to)
		return nil
	}
	fmt.Printf("%d chain(s) from %s to %s:\n", len(paths), from, to)
	for _, p := range paths {
		fmt.Println("  " + strings.Join(p, " -> "))
	}
	return nil
}

func runTools(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(config, logger)
	if err != nil {
		return err
	}
	defer eng.close()

	for _, d := range eng.toolset.Registry().List() {
		inputs := "(source)"
		if len(d.InputTypes) > 0 {
			parts := make([]string, len(d.InputTypes))
			for i, t := range d.InputTypes {
				parts[i] = string(t)
			}
			inputs = strings.Join(parts, "|")
		}
		fmt.Printf("  %-20s %-12s %s -> %s\n", d.ToolID, d.Category, inputs, d.OutputType)
	}
	return nil
}
