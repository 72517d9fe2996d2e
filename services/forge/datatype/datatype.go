// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatype defines the semantic data-type tags every tool input and
// output is expressed in.
//
// Tags form the vertices of the transformation graph: a tool consuming TEXT
// and producing ENTITIES is an edge TEXT -> ENTITIES. Tags may be added over
// time but must never be removed once a registered tool references them, or
// previously valid transformation paths would silently disappear.
//
// Thread Safety:
//
//	DataType values are immutable strings; all functions are safe for
//	concurrent use.
package datatype

import "fmt"

// DataType is a semantic category describing a payload's shape and meaning.
type DataType string

const (
	// Text is raw unstructured text (documents, transcripts).
	Text DataType = "TEXT"

	// Entities is a set of named entities extracted from text.
	Entities DataType = "ENTITIES"

	// Relations is a set of subject-predicate-object triples.
	Relations DataType = "RELATIONS"

	// Graph is a node/edge knowledge-graph structure.
	Graph DataType = "GRAPH"

	// EnrichedGraph is a graph augmented with derived attributes
	// (centrality, communities, resolved duplicates).
	EnrichedGraph DataType = "ENRICHED_GRAPH"

	// TableFormat is a flattened tabular rendering of graph data.
	TableFormat DataType = "TABLE_FORMAT"

	// Embeddings is a vector-embedding representation of text chunks.
	Embeddings DataType = "EMBEDDINGS"

	// StorageTxn is a storage-transaction payload ready for a graph
	// database or vector index writer.
	StorageTxn DataType = "STORAGE_TXN"
)

// all lists every known tag in declaration order. Append only.
var all = []DataType{
	Text,
	Entities,
	Relations,
	Graph,
	EnrichedGraph,
	TableFormat,
	Embeddings,
	StorageTxn,
}

// All returns every known data type tag in declaration order.
//
// Outputs:
//
//	[]DataType - A fresh slice; callers may modify it freely.
func All() []DataType {
	out := make([]DataType, len(all))
	copy(out, all)
	return out
}

// Valid reports whether t is a known data type tag.
func (t DataType) Valid() bool {
	for _, known := range all {
		if t == known {
			return true
		}
	}
	return false
}

// String returns the tag's string form.
func (t DataType) String() string {
	return string(t)
}

// Parse converts a string into a DataType.
//
// Inputs:
//
//	s - The tag name, e.g. "TEXT" or "GRAPH".
//
// Outputs:
//
//	DataType - The matching tag.
//	error - Non-nil if s names no known tag.
func Parse(s string) (DataType, error) {
	t := DataType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown data type %q (known: %v)", s, all)
	}
	return t, nil
}
