// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
	"github.com/AleutianAI/graphforge/services/forge/kg"
	"github.com/AleutianAI/graphforge/services/forge/pipeline"
)

// fakeEmbedder returns a fixed-dimension zero vector per chunk.
type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, chunks []string) (*kg.EmbeddingBatch, error) {
	f.calls++
	batch := &kg.EmbeddingBatch{Model: "fake-embedder"}
	for _, c := range chunks {
		batch.Chunks = append(batch.Chunks, kg.EmbeddedChunk{Text: c, Vector: make([]float32, 4)})
	}
	return batch, nil
}

// fakeIndex counts batch writes.
type fakeIndex struct {
	stored int
	fail   bool
}

func (f *fakeIndex) WriteBatch(_ context.Context, batch *kg.EmbeddingBatch) (int, error) {
	if f.fail {
		return 0, errors.New("index unavailable")
	}
	f.stored += len(batch.Chunks)
	return len(batch.Chunks), nil
}

func addStage(t *testing.T, state *pipeline.State, name string, payload any, dtype datatype.DataType) {
	t.Helper()
	require.NoError(t, state.AddStage(context.Background(), name, payload, dtype, "test", nil))
}

func TestTextLoaderInline(t *testing.T) {
	loader := NewTextLoader()
	state := pipeline.NewState("run-1")

	ok, _ := loader.CanProcess(context.Background(), state)
	assert.True(t, ok, "pure source runs against an empty state")

	out, err := loader.Process(context.Background(), state, map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, datatype.Text, out.DataType)
	assert.Equal(t, "hello", out.Payload)
}

func TestTextLoaderMissingParams(t *testing.T) {
	loader := NewTextLoader()
	_, err := loader.Process(context.Background(), pipeline.NewState("run-1"), nil)
	assert.ErrorIs(t, err, ErrBadParameter)
}

func TestCanProcessRequiresInputType(t *testing.T) {
	extractor := NewEntityExtractor(nil)
	state := pipeline.NewState("run-1")

	ok, reason := extractor.CanProcess(context.Background(), state)
	assert.False(t, ok)
	assert.Contains(t, reason, "entity_extractor")

	addStage(t, state, "text", "Apple Inc. was founded by Steve Jobs.", datatype.Text)
	ok, _ = extractor.CanProcess(context.Background(), state)
	assert.True(t, ok)
}

func TestCanProcessAlternativeAcceptance(t *testing.T) {
	converter := NewTableConverter()
	state := pipeline.NewState("run-1")
	addStage(t, state, "graph", &kg.Graph{}, datatype.Graph)

	// Either GRAPH or ENRICHED_GRAPH satisfies the converter.
	ok, _ := converter.CanProcess(context.Background(), state)
	assert.True(t, ok)
}

func TestEntityExtractorProcess(t *testing.T) {
	extractor := NewEntityExtractor(nil)
	state := pipeline.NewState("run-1")
	addStage(t, state, "text", "Apple Inc. was founded by Steve Jobs.", datatype.Text)

	out, err := extractor.Process(context.Background(), state, nil)
	require.NoError(t, err)
	require.Equal(t, datatype.Entities, out.DataType)

	entities, ok := out.Payload.([]kg.Entity)
	require.True(t, ok)
	require.Len(t, entities, 2)
	assert.Equal(t, kg.LabelOrg, entities[0].Label)
	assert.Equal(t, kg.LabelPerson, entities[1].Label)
}

func TestGraphBuildFromExtractedEntities(t *testing.T) {
	state := pipeline.NewState("run-1")
	addStage(t, state, "text", "Apple Inc. was founded by Steve Jobs.", datatype.Text)

	entOut, err := NewEntityExtractor(nil).Process(context.Background(), state, nil)
	require.NoError(t, err)
	addStage(t, state, "entities", entOut.Payload, datatype.Entities)

	relOut, err := NewRelationExtractor(nil).Process(context.Background(), state, nil)
	require.NoError(t, err)
	addStage(t, state, "relations", relOut.Payload, datatype.Relations)

	out, err := NewGraphBuilder().Process(context.Background(), state, nil)
	require.NoError(t, err)

	graph, ok := out.Payload.(*kg.Graph)
	require.True(t, ok)
	require.Len(t, graph.Nodes, 2)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, "steve_jobs", graph.Edges[0].From)
	assert.Equal(t, "apple_inc", graph.Edges[0].To)
	assert.Equal(t, "FOUNDED", graph.Edges[0].Label)
}

func TestGraphBuilderDeduplicatesNodes(t *testing.T) {
	state := pipeline.NewState("run-1")
	addStage(t, state, "entities", []kg.Entity{
		{Name: "Apple Inc.", Label: kg.LabelOrg},
		{Name: "Apple Inc", Label: kg.LabelOrg},
	}, datatype.Entities)

	out, err := NewGraphBuilder().Process(context.Background(), state, nil)
	require.NoError(t, err)

	graph := out.Payload.(*kg.Graph)
	assert.Len(t, graph.Nodes, 1, "names normalizing to the same id collapse")
}

func TestGraphEnricherDoesNotMutateInput(t *testing.T) {
	in := &kg.Graph{
		Nodes: []kg.Node{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}, {ID: "c", Name: "C"}},
		Edges: []kg.Edge{{From: "a", To: "b", Label: "KNOWS"}},
	}
	state := pipeline.NewState("run-1")
	addStage(t, state, "graph", in, datatype.Graph)

	out, err := NewGraphEnricher().Process(context.Background(), state, nil)
	require.NoError(t, err)

	enriched := out.Payload.(*kg.Graph)
	assert.True(t, enriched.Enriched)
	assert.Nil(t, in.Nodes[0].Properties, "input graph stays untouched")

	a, _ := enriched.NodeByID("a")
	c, _ := enriched.NodeByID("c")
	assert.Equal(t, 1, a.Properties["degree"])
	assert.Equal(t, 0, c.Properties["degree"])
	assert.NotEqual(t, a.Properties["component"], c.Properties["component"])
}

func TestTableConverterPrefersEnrichedGraph(t *testing.T) {
	state := pipeline.NewState("run-1")
	addStage(t, state, "graph", &kg.Graph{Nodes: []kg.Node{{ID: "a", Name: "A"}}}, datatype.Graph)
	addStage(t, state, "enriched", &kg.Graph{
		Nodes:    []kg.Node{{ID: "a", Name: "A", Properties: map[string]any{"degree": 3}}},
		Enriched: true,
	}, datatype.EnrichedGraph)

	out, err := NewTableConverter().Process(context.Background(), state, nil)
	require.NoError(t, err)

	table := out.Payload.(*kg.Table)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, 3, table.Rows[0][3])
	assert.Equal(t, datatype.EnrichedGraph.String(), out.Metadata["source_type"])
}

func TestTextEmbedderProcess(t *testing.T) {
	embedder := &fakeEmbedder{}
	state := pipeline.NewState("run-1")
	addStage(t, state, "text", "some text to embed", datatype.Text)

	out, err := NewTextEmbedder(embedder).Process(context.Background(), state, nil)
	require.NoError(t, err)
	assert.Equal(t, datatype.Embeddings, out.DataType)

	batch := out.Payload.(*kg.EmbeddingBatch)
	assert.Len(t, batch.Chunks, 1)
	assert.Equal(t, 1, embedder.calls)
}

func TestTxnBuilderProcess(t *testing.T) {
	state := pipeline.NewState("run-1")
	addStage(t, state, "graph", &kg.Graph{
		Nodes: []kg.Node{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		Edges: []kg.Edge{{From: "a", To: "b", Label: "KNOWS"}},
	}, datatype.Graph)

	out, err := NewTxnBuilder().Process(context.Background(), state, nil)
	require.NoError(t, err)
	assert.Equal(t, datatype.StorageTxn, out.DataType)

	txn := out.Payload.(*kg.Txn)
	assert.Equal(t, "badger", txn.Target)
	require.Len(t, txn.Ops, 3)
	assert.Equal(t, "put_node", txn.Ops[0].Kind)
	assert.Equal(t, "edge/a/KNOWS/b", txn.Ops[2].Key)
}

func TestVectorWriterProcess(t *testing.T) {
	index := &fakeIndex{}
	state := pipeline.NewState("run-1")
	addStage(t, state, "embeddings", &kg.EmbeddingBatch{
		Model:  "fake",
		Chunks: []kg.EmbeddedChunk{{Text: "a"}, {Text: "b"}},
	}, datatype.Embeddings)

	out, err := NewVectorWriter(index).Process(context.Background(), state, nil)
	require.NoError(t, err)

	txn := out.Payload.(*kg.Txn)
	assert.Equal(t, "weaviate", txn.Target)
	assert.Len(t, txn.Ops, 2)
	assert.Equal(t, 2, index.stored)
}

func TestVectorWriterIndexFailure(t *testing.T) {
	state := pipeline.NewState("run-1")
	addStage(t, state, "embeddings", &kg.EmbeddingBatch{
		Chunks: []kg.EmbeddedChunk{{Text: "a"}},
	}, datatype.Embeddings)

	_, err := NewVectorWriter(&fakeIndex{fail: true}).Process(context.Background(), state, nil)
	assert.Error(t, err)
}

func TestProcessMissingInput(t *testing.T) {
	_, err := NewGraphBuilder().Process(context.Background(), pipeline.NewState("run-1"), nil)
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestChunkText(t *testing.T) {
	assert.Nil(t, chunkText("", 100))
	assert.Equal(t, []string{"short"}, chunkText("short", 100))

	long := ""
	for i := 0; i < 50; i++ {
		long += fmt.Sprintf("word%02d ", i)
	}
	chunks := chunkText(long, 100)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 100)
	}
}
