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

// GraphBuilder produces GRAPH from the newest ENTITIES stage, wiring edges
// from a RELATIONS stage when one exists.
type GraphBuilder struct {
	Base
}

// NewGraphBuilder creates the graph_builder tool.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		Base: Base{Desc: registry.Descriptor{
			ToolID:     "graph_builder",
			Name:       "Graph Builder",
			Category:   registry.CategoryProcessing,
			InputTypes: []datatype.DataType{datatype.Entities},
			OutputType: datatype.Graph,
			Weight:     1.0,
		}},
	}
}

// Process builds one node per entity and one edge per relation whose
// endpoints resolve to known nodes.
func (t *GraphBuilder) Process(ctx context.Context, state *pipeline.State, _ map[string]any) (*Output, error) {
	payload, _, err := latestPayload(ctx, state, datatype.Entities)
	if err != nil {
		return nil, err
	}
	entities, err := asEntities(payload)
	if err != nil {
		return nil, err
	}

	graph := &kg.Graph{}
	ids := make(map[string]bool)
	for _, e := range entities {
		id := kg.EntityID(e.Name)
		if ids[id] {
			continue
		}
		ids[id] = true
		graph.Nodes = append(graph.Nodes, kg.Node{ID: id, Name: e.Name, Label: e.Label})
	}

	// Relations are optional; a missing stage just yields an edgeless graph.
	if relPayload, _, err := latestPayload(ctx, state, datatype.Relations); err == nil {
		if relations, ok := relPayload.([]kg.Relation); ok {
			for _, r := range relations {
				from, to := kg.EntityID(r.Subject), kg.EntityID(r.Object)
				if ids[from] && ids[to] {
					graph.Edges = append(graph.Edges, kg.Edge{From: from, To: to, Label: r.Predicate})
				}
			}
		}
	}

	return &Output{
		Payload:  graph,
		DataType: datatype.Graph,
		Summary:  fmt.Sprintf("built graph with %d nodes, %d edges", len(graph.Nodes), len(graph.Edges)),
	}, nil
}

// GraphEnricher produces ENRICHED_GRAPH from a GRAPH stage by annotating
// nodes with degree and connected-component membership.
type GraphEnricher struct {
	Base
}

// NewGraphEnricher creates the graph_enricher tool.
func NewGraphEnricher() *GraphEnricher {
	return &GraphEnricher{
		Base: Base{Desc: registry.Descriptor{
			ToolID:     "graph_enricher",
			Name:       "Graph Enricher",
			Category:   registry.CategoryAnalysis,
			InputTypes: []datatype.DataType{datatype.Graph},
			OutputType: datatype.EnrichedGraph,
			Weight:     0.95,
		}},
	}
}

// Process copies the graph and annotates each node. The input graph is
// never mutated; pipeline stages are read-only once written.
func (t *GraphEnricher) Process(ctx context.Context, state *pipeline.State, _ map[string]any) (*Output, error) {
	payload, _, err := latestPayload(ctx, state, datatype.Graph)
	if err != nil {
		return nil, err
	}
	in, ok := payload.(*kg.Graph)
	if !ok {
		return nil, fmt.Errorf("%w: GRAPH stage holds %T, want *kg.Graph", ErrInvalidInput, payload)
	}

	out := &kg.Graph{
		Nodes:    make([]kg.Node, len(in.Nodes)),
		Edges:    make([]kg.Edge, len(in.Edges)),
		Enriched: true,
	}
	copy(out.Edges, in.Edges)

	degree := make(map[string]int)
	for _, e := range in.Edges {
		degree[e.From]++
		degree[e.To]++
	}
	components := connectedComponents(in)

	for i, n := range in.Nodes {
		props := make(map[string]any, len(n.Properties)+2)
		for k, v := range n.Properties {
			props[k] = v
		}
		props["degree"] = degree[n.ID]
		props["component"] = components[n.ID]
		out.Nodes[i] = kg.Node{ID: n.ID, Name: n.Name, Label: n.Label, Properties: props}
	}

	return &Output{
		Payload:  out,
		DataType: datatype.EnrichedGraph,
		Summary:  fmt.Sprintf("enriched %d nodes", len(out.Nodes)),
	}, nil
}

// connectedComponents assigns a component index to every node, treating
// edges as undirected.
func connectedComponents(g *kg.Graph) map[string]int {
	adj := make(map[string][]string)
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
		adj[e.To] = append(adj[e.To], e.From)
	}

	components := make(map[string]int)
	next := 0
	for _, n := range g.Nodes {
		if _, seen := components[n.ID]; seen {
			continue
		}
		stack := []string{n.ID}
		components[n.ID] = next
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, nb := range adj[cur] {
				if _, seen := components[nb]; !seen {
					components[nb] = next
					stack = append(stack, nb)
				}
			}
		}
		next++
	}
	return components
}
