// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dag

import (
	"fmt"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
	"github.com/AleutianAI/graphforge/services/forge/registry"
)

// categoryLadder is the fixed synthesis order: load, extract/build,
// analyze, convert/store.
var categoryLadder = []registry.Category{
	registry.CategoryIngestion,
	registry.CategoryProcessing,
	registry.CategoryAnalysis,
	registry.CategoryAdapter,
}

// FromPath derives a linear DAG from the registry's shortest
// transformation path between two types.
//
// Description:
//
//	Each tool on the path becomes one step depending on its predecessor.
//	The first path tool consumes the start type, so the caller must seed
//	the pipeline with a stage of that type (or prepend a source step via
//	WithSource).
//
// Outputs:
//
//	*DAG - The linear DAG.
//	error - ErrNoPath when the types are not connected.
func FromPath(reg *registry.Registry, start, end datatype.DataType) (*DAG, error) {
	path, err := reg.FindShortestPath(start, end)
	if err != nil {
		return nil, err
	}
	if path == nil {
		return nil, fmt.Errorf("%w: %s to %s", ErrNoPath, start, end)
	}

	d := New(fmt.Sprintf("%s_to_%s", start, end))
	prev := ""
	for _, toolID := range path {
		step := &Step{ID: toolID, ToolID: toolID}
		if prev != "" {
			step.DependsOn = []string{prev}
		}
		if err := d.AddStep(step); err != nil {
			return nil, err
		}
		prev = toolID
	}
	return d, nil
}

// WithSource prepends a source step and makes every former root depend
// on it. Used to seed a FromPath DAG with a loader carrying the payload.
func (d *DAG) WithSource(stepID, toolID string, params map[string]any) error {
	for _, step := range d.Steps {
		if len(step.DependsOn) == 0 {
			step.DependsOn = []string{stepID}
		}
	}

	source := &Step{ID: stepID, ToolID: toolID, Parameters: params}
	if _, exists := d.index[stepID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStep, stepID)
	}
	d.Steps = append([]*Step{source}, d.Steps...)
	d.index[stepID] = source
	return nil
}

// Synthesize builds a DAG from a source parameter set and a target
// category by walking the fixed category ladder.
//
// Description:
//
//	Every registered tool of each ladder category up to target becomes a
//	step; each category's steps depend on the whole previous non-empty
//	category. A heuristic default, not a guaranteed-optimal plan: the
//	compatibility warnings from Validate tell the caller where the
//	synthesized wiring is loose.
//
// Inputs:
//
//	reg - The transformation registry.
//	target - The last ladder category to include.
//	sourceParams - Parameters for the ingestion steps (e.g. the payload).
func Synthesize(reg *registry.Registry, target registry.Category, sourceParams map[string]any) (*DAG, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, target)
	}

	d := New(fmt.Sprintf("synthesized_%s", target))

	var previous []string
	for _, category := range categoryLadder {
		var current []string
		for _, desc := range reg.List() {
			if desc.Category != category {
				continue
			}
			step := &Step{
				ID:        desc.ToolID,
				ToolID:    desc.ToolID,
				DependsOn: append([]string{}, previous...),
			}
			if category == registry.CategoryIngestion {
				step.Parameters = sourceParams
			}
			if err := d.AddStep(step); err != nil {
				return nil, err
			}
			current = append(current, step.ID)
		}
		if len(current) > 0 {
			previous = current
		}
		if category == target {
			break
		}
	}

	if len(d.Steps) == 0 {
		return nil, fmt.Errorf("%w: no tools registered up to category %s", ErrInvalidInput, target)
	}
	return d, nil
}
