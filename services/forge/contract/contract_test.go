// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package contract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
	"github.com/AleutianAI/graphforge/services/forge/pipeline"
	"github.com/AleutianAI/graphforge/services/forge/registry"
	"github.com/AleutianAI/graphforge/services/forge/tools"
)

// stubTool is a minimal tools.Tool with a scripted output type.
type stubTool struct {
	desc    registry.Descriptor
	outType datatype.DataType
	fail    bool
}

func (s *stubTool) Descriptor() registry.Descriptor { return s.desc }

func (s *stubTool) CanProcess(context.Context, *pipeline.State) (bool, string) { return true, "" }

func (s *stubTool) Process(context.Context, *pipeline.State, map[string]any) (*tools.Output, error) {
	if s.fail {
		return nil, fmt.Errorf("scripted failure")
	}
	return &tools.Output{Payload: "x", DataType: s.outType}, nil
}

func validContract() *Contract {
	return &Contract{
		ToolID:      "entity_extractor",
		Category:    "processing",
		Description: "Extracts named entities from the newest TEXT stage.",
		Version:     "1.0.0",
		Input:       InputContract{RequiredDataTypes: []datatype.DataType{datatype.Text}},
		Output:      OutputContract{ProducedDataTypes: []datatype.DataType{datatype.Entities}},
	}
}

func TestEmbeddedDefaultsLoad(t *testing.T) {
	store, err := NewStore(nil)
	require.NoError(t, err)
	assert.Equal(t, 9, store.Count(), "one record per built-in tool")

	c, err := store.LoadContract("graph_builder")
	require.NoError(t, err)
	assert.Equal(t, "processing", c.Category)
	assert.Equal(t, []datatype.DataType{datatype.Graph}, c.Output.ProducedDataTypes)
}

func TestEmbeddedDefaultsAllValid(t *testing.T) {
	store, err := NewStore(nil)
	require.NoError(t, err)
	for _, c := range store.List() {
		assert.Empty(t, ValidateContractSchema(c), "contract %s", c.ToolID)
	}
}

func TestLoadContractNotFound(t *testing.T) {
	store, err := NewStore(nil)
	require.NoError(t, err)

	_, err = store.LoadContract("nonexistent")
	assert.ErrorIs(t, err, ErrContractNotFound)
}

func TestLoadDirOverrides(t *testing.T) {
	dir := t.TempDir()
	override := `contracts:
  - tool_id: text_loader
    category: ingestion
    description: Replacement loader record used only in this test.
    version: "2.0.0"
    output_contract:
      produced_data_types: [TEXT]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "override.yaml"), []byte(override), 0o644))

	store, err := NewStore(nil)
	require.NoError(t, err)
	require.NoError(t, store.LoadDir(dir))

	c, err := store.LoadContract("text_loader")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", c.Version)
	assert.Equal(t, 9, store.Count(), "override replaces, never appends")
}

func TestValidateContractSchema(t *testing.T) {
	assert.Empty(t, ValidateContractSchema(validContract()))

	tests := []struct {
		name   string
		mutate func(*Contract)
		want   string
	}{
		{"missing tool id", func(c *Contract) { c.ToolID = "" }, "tool_id"},
		{"unknown category", func(c *Contract) { c.Category = "misc" }, "Category"},
		{"short description", func(c *Contract) { c.Description = "too short" }, "minimum"},
		{"no produced types", func(c *Contract) { c.Output.ProducedDataTypes = nil }, "must not be empty"},
		{"unknown data type", func(c *Contract) {
			c.Input.RequiredDataTypes = []datatype.DataType{"BOGUS"}
		}, "unknown data type"},
		{"required and optional overlap", func(c *Contract) {
			c.Input.OptionalDataTypes = []datatype.DataType{datatype.Text}
		}, "both required and optional"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validContract()
			tt.mutate(c)
			problems := ValidateContractSchema(c)
			require.NotEmpty(t, problems)
			assert.True(t, anyContains(problems, tt.want),
				"problems %v should mention %q", problems, tt.want)
		})
	}
}

func anyContains(problems []string, want string) bool {
	for _, p := range problems {
		if strings.Contains(p, want) {
			return true
		}
	}
	return false
}

func TestValidateContractSchemaIdempotent(t *testing.T) {
	c := validContract()
	c.Category = "bogus"
	c.Description = "short"

	first := ValidateContractSchema(c)
	second := ValidateContractSchema(c)
	assert.Equal(t, first, second)
}

func TestValidateToolInterface(t *testing.T) {
	c := validContract()
	good := &stubTool{
		desc: registry.Descriptor{
			ToolID:     "entity_extractor",
			Category:   registry.CategoryProcessing,
			InputTypes: []datatype.DataType{datatype.Text},
			OutputType: datatype.Entities,
		},
	}
	assert.Empty(t, ValidateToolInterface(good, c))

	bad := &stubTool{
		desc: registry.Descriptor{
			ToolID:     "other_tool",
			Category:   registry.CategoryAdapter,
			InputTypes: []datatype.DataType{datatype.Graph},
			OutputType: datatype.TableFormat,
		},
	}
	mismatches := ValidateToolInterface(bad, c)
	assert.Len(t, mismatches, 5, "id, category, missing required, undeclared input, output")
}

func TestValidateDataFlowSuccess(t *testing.T) {
	store, err := NewStore(nil)
	require.NoError(t, err)
	v := NewValidator(store, nil)

	c := validContract()
	instance := &stubTool{
		desc:    registry.Descriptor{ToolID: "entity_extractor"},
		outType: datatype.Entities,
	}

	state := pipeline.NewState("run-1")
	require.NoError(t, state.AddStage(context.Background(), "text", "some text", datatype.Text, "test", nil))

	result := v.ValidateDataFlow(context.Background(), instance, c, state, nil)
	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	require.NotNil(t, result.Output)
}

func TestValidateDataFlowMissingInput(t *testing.T) {
	store, err := NewStore(nil)
	require.NoError(t, err)
	v := NewValidator(store, nil)

	result := v.ValidateDataFlow(context.Background(),
		&stubTool{outType: datatype.Entities}, validContract(), pipeline.NewState("run-1"), nil)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "TEXT")
	assert.Nil(t, result.Output, "tool never executed")
}

// A contract declaring ENTITIES while process returns TABLE_FORMAT must
// fail naming both types.
func TestValidateDataFlowUndeclaredOutput(t *testing.T) {
	store, err := NewStore(nil)
	require.NoError(t, err)
	v := NewValidator(store, nil)

	instance := &stubTool{outType: datatype.TableFormat}
	state := pipeline.NewState("run-1")
	require.NoError(t, state.AddStage(context.Background(), "text", "some text", datatype.Text, "test", nil))

	result := v.ValidateDataFlow(context.Background(), instance, validContract(), state, nil)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "ENTITIES")
	assert.Contains(t, result.Errors[0], "TABLE_FORMAT")
}

func TestValidateDataFlowStatePrecondition(t *testing.T) {
	store, err := NewStore(nil)
	require.NoError(t, err)
	v := NewValidator(store, nil)

	c := validContract()
	c.Input.RequiredState = map[string]bool{"vector_index_reachable": true}

	state := pipeline.NewState("run-1")
	require.NoError(t, state.AddStage(context.Background(), "text", "some text", datatype.Text, "test", nil))

	result := v.ValidateDataFlow(context.Background(),
		&stubTool{outType: datatype.Entities}, c, state, nil)
	assert.False(t, result.Success)

	v.SetCondition("vector_index_reachable", true)
	result = v.ValidateDataFlow(context.Background(),
		&stubTool{outType: datatype.Entities}, c, state, nil)
	assert.True(t, result.Success)
}

func TestConditionalOutputs(t *testing.T) {
	c := validContract()
	c.Conditionals = []Conditional{{
		Parameter:         "mode",
		Equals:            "tabular",
		ProducedDataTypes: []datatype.DataType{datatype.TableFormat},
	}}

	assert.Equal(t, []datatype.DataType{datatype.Entities}, c.ProducedFor(nil))
	assert.Equal(t, []datatype.DataType{datatype.TableFormat},
		c.ProducedFor(map[string]any{"mode": "tabular"}))
}

// Ten contracts with two schema failures must report 10/8/2.
func TestBatchValidateTenContractsTwoInvalid(t *testing.T) {
	store := &Store{contracts: make(map[string]*Contract)}
	for i := 0; i < 8; i++ {
		c := validContract()
		c.ToolID = fmt.Sprintf("tool_%d", i)
		store.contracts[c.ToolID] = c
	}
	for i := 8; i < 10; i++ {
		c := validContract()
		c.ToolID = fmt.Sprintf("tool_%d", i)
		c.Description = "short"
		store.contracts[c.ToolID] = c
	}

	report := NewValidator(store, nil).BatchValidate(nil)
	assert.Equal(t, 10, report.Summary.Total)
	assert.Equal(t, 8, report.Summary.Valid)
	assert.Equal(t, 2, report.Summary.Invalid)
	assert.False(t, report.Success())
}

func TestBatchValidateBuiltins(t *testing.T) {
	store, err := NewStore(nil)
	require.NoError(t, err)

	instances := map[string]tools.Tool{
		"text_loader":      tools.NewTextLoader(),
		"entity_extractor": tools.NewEntityExtractor(nil),
		"graph_builder":    tools.NewGraphBuilder(),
		"graph_enricher":   tools.NewGraphEnricher(),
		"table_converter":  tools.NewTableConverter(),
		"txn_builder":      tools.NewTxnBuilder(),
	}

	report := NewValidator(store, nil).BatchValidate(instances)
	assert.Equal(t, 9, report.Summary.Total)
	assert.True(t, report.Success(), "tools: %+v adapters: %+v", report.Tools, report.Adapters)
	assert.Contains(t, report.Adapters, "table_converter")
	assert.Contains(t, report.Tools, "entity_extractor")
}
