// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kg defines the payload structures flowing between the built-in
// knowledge-graph tools.
//
// These are plain data types: the engine itself only sees them as opaque
// stage payloads tagged with a datatype tag.
package kg

import "fmt"

// Entity labels. The label set follows common NER conventions.
const (
	LabelOrg      = "ORG"
	LabelPerson   = "PERSON"
	LabelLocation = "LOC"
	LabelDate     = "DATE"
	LabelMisc     = "MISC"
)

// Entity is one named entity extracted from text.
type Entity struct {
	// Name is the surface form, e.g. "Apple Inc.".
	Name string `json:"name"`

	// Label is the entity class, e.g. ORG or PERSON.
	Label string `json:"label"`

	// Confidence is the extractor's confidence in [0, 1].
	Confidence float64 `json:"confidence,omitempty"`
}

// Relation is one subject-predicate-object triple.
type Relation struct {
	Subject   string  `json:"subject"`
	Predicate string  `json:"predicate"`
	Object    string  `json:"object"`
	// Confidence is the extractor's confidence in [0, 1].
	Confidence float64 `json:"confidence,omitempty"`
}

// Node is one vertex of a knowledge graph.
type Node struct {
	// ID is a stable identifier derived from the entity name.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Label is the entity class the node was built from.
	Label string `json:"label"`

	// Properties holds derived attributes (degree, community, ...).
	Properties map[string]any `json:"properties,omitempty"`
}

// Edge is one directed edge of a knowledge graph.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// Graph is a node/edge knowledge-graph structure.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	// Enriched marks a graph that passed through the enricher.
	Enriched bool `json:"enriched,omitempty"`
}

// NodeByID returns the node with the given id.
func (g *Graph) NodeByID(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// HasLabel reports whether any node carries the given label.
func (g *Graph) HasLabel(label string) bool {
	for _, n := range g.Nodes {
		if n.Label == label {
			return true
		}
	}
	return false
}

// Table is a flattened tabular rendering of graph data.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// EmbeddedChunk pairs a text chunk with its vector embedding.
type EmbeddedChunk struct {
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

// EmbeddingBatch is a set of embedded text chunks plus the model used.
type EmbeddingBatch struct {
	Model  string          `json:"model"`
	Chunks []EmbeddedChunk `json:"chunks"`
}

// TxnOp is one operation inside a storage transaction payload.
type TxnOp struct {
	// Kind is "put_node", "put_edge", or "put_vector".
	Kind string `json:"kind"`

	// Key is the storage key for the operation.
	Key string `json:"key"`

	// Value is the serialized record.
	Value []byte `json:"value"`
}

// Txn is a storage-transaction payload ready for a store writer.
type Txn struct {
	// Target names the destination store kind ("badger", "weaviate").
	Target string `json:"target"`

	Ops []TxnOp `json:"ops"`
}

// EntityID derives a stable node id from an entity name.
// Lowercases and replaces spaces so "Steve Jobs" becomes "steve_jobs".
func EntityID(name string) string {
	id := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			id = append(id, r+('a'-'A'))
		case r == ' ' || r == '\t':
			id = append(id, '_')
		case r == '.' || r == ',':
			// dropped
		default:
			id = append(id, r)
		}
	}
	if len(id) == 0 {
		return fmt.Sprintf("entity_%d", len(name))
	}
	return string(id)
}
