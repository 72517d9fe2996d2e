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
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
	"github.com/AleutianAI/graphforge/services/forge/kg"
	"github.com/AleutianAI/graphforge/services/forge/pipeline"
	"github.com/AleutianAI/graphforge/services/forge/registry"
)

// TxnBuilder turns a graph into a STORAGE_TXN payload of key/value
// operations for the embedded graph store.
type TxnBuilder struct {
	Base
}

// NewTxnBuilder creates the txn_builder tool.
func NewTxnBuilder() *TxnBuilder {
	return &TxnBuilder{
		Base: Base{Desc: registry.Descriptor{
			ToolID:     "txn_builder",
			Name:       "Storage Transaction Builder",
			Category:   registry.CategoryAdapter,
			InputTypes: []datatype.DataType{datatype.EnrichedGraph, datatype.Graph},
			OutputType: datatype.StorageTxn,
			Weight:     1.0,
		}},
	}
}

// Process serializes every node and edge into one put operation each.
func (t *TxnBuilder) Process(ctx context.Context, state *pipeline.State, _ map[string]any) (*Output, error) {
	payload, found, err := latestPayload(ctx, state, datatype.EnrichedGraph, datatype.Graph)
	if err != nil {
		return nil, err
	}
	graph, ok := payload.(*kg.Graph)
	if !ok {
		return nil, fmt.Errorf("%w: %s stage holds %T, want *kg.Graph", ErrInvalidInput, found, payload)
	}

	txn := &kg.Txn{Target: "badger"}
	for _, n := range graph.Nodes {
		value, err := json.Marshal(n)
		if err != nil {
			return nil, fmt.Errorf("marshal node %s: %w", n.ID, err)
		}
		txn.Ops = append(txn.Ops, kg.TxnOp{Kind: "put_node", Key: "node/" + n.ID, Value: value})
	}
	for _, e := range graph.Edges {
		value, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal edge %s->%s: %w", e.From, e.To, err)
		}
		txn.Ops = append(txn.Ops, kg.TxnOp{
			Kind:  "put_edge",
			Key:   fmt.Sprintf("edge/%s/%s/%s", e.From, e.Label, e.To),
			Value: value,
		})
	}

	return &Output{
		Payload:  txn,
		DataType: datatype.StorageTxn,
		Summary:  fmt.Sprintf("built %s transaction with %d ops", txn.Target, len(txn.Ops)),
	}, nil
}

// VectorIndex is the engine-facing surface of the vector store writer.
//
// Implemented by the weaviate wrapper in services/forge/vector.
type VectorIndex interface {
	// WriteBatch stores embedded chunks and returns the stored count.
	WriteBatch(ctx context.Context, batch *kg.EmbeddingBatch) (int, error)
}

// VectorWriter flushes an EMBEDDINGS stage into the vector index and
// produces the STORAGE_TXN record of what was written.
type VectorWriter struct {
	Base
	index VectorIndex
}

// NewVectorWriter creates the vector_writer tool.
func NewVectorWriter(index VectorIndex) *VectorWriter {
	return &VectorWriter{
		Base: Base{Desc: registry.Descriptor{
			ToolID:     "vector_writer",
			Name:       "Vector Index Writer",
			Category:   registry.CategoryAdapter,
			InputTypes: []datatype.DataType{datatype.Embeddings},
			OutputType: datatype.StorageTxn,
			Weight:     0.9,
		}},
		index: index,
	}
}

// Process writes the batch and records one op per stored chunk.
func (t *VectorWriter) Process(ctx context.Context, state *pipeline.State, _ map[string]any) (*Output, error) {
	if t.index == nil {
		return nil, fmt.Errorf("%w: vector_writer has no index configured", ErrInvalidInput)
	}

	payload, _, err := latestPayload(ctx, state, datatype.Embeddings)
	if err != nil {
		return nil, err
	}
	batch, ok := payload.(*kg.EmbeddingBatch)
	if !ok {
		return nil, fmt.Errorf("%w: EMBEDDINGS stage holds %T, want *kg.EmbeddingBatch", ErrInvalidInput, payload)
	}

	stored, err := t.index.WriteBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("vector batch write: %w", err)
	}

	txn := &kg.Txn{Target: "weaviate"}
	for i := 0; i < stored; i++ {
		txn.Ops = append(txn.Ops, kg.TxnOp{
			Kind: "put_vector",
			Key:  fmt.Sprintf("chunk/%d", i),
		})
	}

	return &Output{
		Payload:  txn,
		DataType: datatype.StorageTxn,
		Summary:  fmt.Sprintf("stored %d vectors", stored),
	}, nil
}
