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
	"fmt"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
	"github.com/AleutianAI/graphforge/services/forge/kg"
	"github.com/AleutianAI/graphforge/services/forge/pipeline"
	"github.com/AleutianAI/graphforge/services/forge/registry"
)

// TableConverter flattens a graph into TABLE_FORMAT rows. It accepts either
// a plain or an enriched graph (alternative-acceptance set).
type TableConverter struct {
	Base
}

// NewTableConverter creates the table_converter tool.
func NewTableConverter() *TableConverter {
	return &TableConverter{
		Base: Base{Desc: registry.Descriptor{
			ToolID:     "table_converter",
			Name:       "Table Converter",
			Category:   registry.CategoryAdapter,
			InputTypes: []datatype.DataType{datatype.EnrichedGraph, datatype.Graph},
			OutputType: datatype.TableFormat,
			Weight:     1.0,
		}},
	}
}

// Process emits one row per node: id, name, label, degree (when enriched).
func (t *TableConverter) Process(ctx context.Context, state *pipeline.State, _ map[string]any) (*Output, error) {
	payload, found, err := latestPayload(ctx, state, datatype.EnrichedGraph, datatype.Graph)
	if err != nil {
		return nil, err
	}
	graph, ok := payload.(*kg.Graph)
	if !ok {
		return nil, fmt.Errorf("%w: %s stage holds %T, want *kg.Graph", ErrInvalidInput, found, payload)
	}

	table := &kg.Table{Columns: []string{"id", "name", "label", "degree"}}
	for _, n := range graph.Nodes {
		degree := any(nil)
		if n.Properties != nil {
			degree = n.Properties["degree"]
		}
		table.Rows = append(table.Rows, []any{n.ID, n.Name, n.Label, degree})
	}

	return &Output{
		Payload:  table,
		DataType: datatype.TableFormat,
		Summary:  fmt.Sprintf("converted %d nodes to table rows", len(table.Rows)),
		Metadata: map[string]any{"source_type": found.String()},
	}, nil
}
