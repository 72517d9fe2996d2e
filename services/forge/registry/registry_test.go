// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New(nil)

	descriptors := []Descriptor{
		{ToolID: "text_loader", Name: "Text Loader", Category: CategoryIngestion, OutputType: datatype.Text},
		{ToolID: "entity_extractor", Name: "Entity Extractor", Category: CategoryProcessing,
			InputTypes: []datatype.DataType{datatype.Text}, OutputType: datatype.Entities},
		{ToolID: "graph_builder", Name: "Graph Builder", Category: CategoryProcessing,
			InputTypes: []datatype.DataType{datatype.Entities}, OutputType: datatype.Graph},
		{ToolID: "graph_enricher", Name: "Graph Enricher", Category: CategoryAnalysis,
			InputTypes: []datatype.DataType{datatype.Graph}, OutputType: datatype.EnrichedGraph},
		{ToolID: "table_converter", Name: "Table Converter", Category: CategoryAdapter,
			InputTypes: []datatype.DataType{datatype.Graph, datatype.EnrichedGraph}, OutputType: datatype.TableFormat},
	}
	for _, d := range descriptors {
		require.NoError(t, r.Register(d))
	}
	return r
}

func TestRegister_Duplicate(t *testing.T) {
	r := newTestRegistry(t)

	err := r.Register(Descriptor{ToolID: "text_loader", OutputType: datatype.Text})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateTool))
	assert.Len(t, r.List(), 5, "failed registration must not change the registry")
}

func TestRegister_UnknownType(t *testing.T) {
	r := New(nil)

	err := r.Register(Descriptor{ToolID: "bad", OutputType: "NOT_A_TYPE"})
	assert.True(t, errors.Is(err, ErrUnknownDataType))

	err = r.Register(Descriptor{
		ToolID:     "bad2",
		InputTypes: []datatype.DataType{"NOPE"},
		OutputType: datatype.Text,
	})
	assert.True(t, errors.Is(err, ErrUnknownDataType))
}

func TestRegister_EmptyID(t *testing.T) {
	r := New(nil)
	err := r.Register(Descriptor{OutputType: datatype.Text})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestGet_NotFound(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Get("no_such_tool")
	assert.True(t, errors.Is(err, ErrToolNotFound))
}

func TestCompatibleSuccessors(t *testing.T) {
	r := newTestRegistry(t)

	succ, err := r.CompatibleSuccessors("graph_builder")
	require.NoError(t, err)

	ids := make([]string, 0, len(succ))
	for _, d := range succ {
		ids = append(ids, d.ToolID)
	}
	assert.Equal(t, []string{"graph_enricher", "table_converter"}, ids)
}

// Registering T with input=X, output=Y guarantees T shows up as a successor
// of any tool producing X and as the one-hop shortest path X -> Y.
func TestRegister_CompatibilityConsistency(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.Register(Descriptor{
		ToolID:     "embedder",
		Category:   CategoryProcessing,
		InputTypes: []datatype.DataType{datatype.Text},
		OutputType: datatype.Embeddings,
	}))

	succ, err := r.CompatibleSuccessors("text_loader")
	require.NoError(t, err)
	found := false
	for _, d := range succ {
		if d.ToolID == "embedder" {
			found = true
		}
	}
	assert.True(t, found, "embedder must appear as successor of a TEXT producer")

	path, err := r.FindShortestPath(datatype.Text, datatype.Embeddings)
	require.NoError(t, err)
	assert.Equal(t, Path{"embedder"}, path)
}

func TestValidateChain(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name    string
		chain   []string
		wantErr bool
	}{
		{"empty", nil, false},
		{"single", []string{"entity_extractor"}, false},
		{"valid two", []string{"entity_extractor", "graph_builder"}, false},
		{"valid three", []string{"entity_extractor", "graph_builder", "graph_enricher"}, false},
		{"mismatch", []string{"entity_extractor", "graph_enricher"}, true},
		{"unknown tool", []string{"entity_extractor", "missing"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := r.ValidateChain(tc.chain)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateChain_MismatchDetail(t *testing.T) {
	r := newTestRegistry(t)

	err := r.ValidateChain([]string{"entity_extractor", "graph_enricher"})
	require.Error(t, err)

	var mismatch *TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 1, mismatch.Position)
	assert.Equal(t, "entity_extractor", mismatch.FromTool)
	assert.Equal(t, "graph_enricher", mismatch.ToTool)
	assert.Equal(t, datatype.Entities, mismatch.Produced)
}

func TestFindAllPaths(t *testing.T) {
	r := newTestRegistry(t)

	paths, err := r.FindAllPaths(datatype.Text, datatype.TableFormat, 0)
	require.NoError(t, err)

	// TEXT -> ... -> ENRICHED -> TABLE (via graph_enricher, discovered first
	// because graph_enricher precedes table_converter in registration order)
	// and the direct TEXT -> ENTITIES -> GRAPH -> TABLE route.
	require.Len(t, paths, 2)
	assert.Equal(t, Path{"entity_extractor", "graph_builder", "graph_enricher", "table_converter"}, paths[0])
	assert.Equal(t, Path{"entity_extractor", "graph_builder", "table_converter"}, paths[1])
}

// Every enumerated path must pass ValidateChain.
func TestFindAllPaths_Soundness(t *testing.T) {
	r := newTestRegistry(t)

	for _, start := range datatype.All() {
		for _, end := range datatype.All() {
			if start == end {
				continue
			}
			paths, err := r.FindAllPaths(start, end, 0)
			require.NoError(t, err)
			for _, p := range paths {
				assert.NoError(t, r.ValidateChain(p), "path %v from %s to %s", p, start, end)
			}
		}
	}
}

func TestFindAllPaths_Unreachable(t *testing.T) {
	r := newTestRegistry(t)

	paths, err := r.FindAllPaths(datatype.TableFormat, datatype.Text, 0)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestFindAllPaths_ParallelEdges(t *testing.T) {
	r := newTestRegistry(t)

	// Second extractor over the same type pair: paths double downstream.
	require.NoError(t, r.Register(Descriptor{
		ToolID:     "llm_entity_extractor",
		Category:   CategoryProcessing,
		InputTypes: []datatype.DataType{datatype.Text},
		OutputType: datatype.Entities,
	}))

	paths, err := r.FindAllPaths(datatype.Text, datatype.Graph, 0)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestFindAllPaths_BoundedDepth(t *testing.T) {
	r := newTestRegistry(t)

	paths, err := r.FindAllPaths(datatype.Text, datatype.TableFormat, 3)
	require.NoError(t, err)
	require.Len(t, paths, 1, "4-hop path must be cut off at maxLength 3")
	assert.Len(t, paths[0], 3)
}

func TestFindShortestPath(t *testing.T) {
	r := newTestRegistry(t)

	path, err := r.FindShortestPath(datatype.Text, datatype.Graph)
	require.NoError(t, err)
	assert.Equal(t, Path{"entity_extractor", "graph_builder"}, path)

	path, err = r.FindShortestPath(datatype.Graph, datatype.Text)
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestSourcesFor(t *testing.T) {
	r := newTestRegistry(t)

	sources := r.SourcesFor(datatype.Text)
	require.Len(t, sources, 1)
	assert.Equal(t, "text_loader", sources[0].ToolID)

	assert.Empty(t, r.SourcesFor(datatype.Graph))
}
