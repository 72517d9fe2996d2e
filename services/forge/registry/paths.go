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
	"fmt"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
)

// DefaultMaxPathLength bounds path search when callers pass maxLength <= 0.
const DefaultMaxPathLength = 8

// Path is an ordered tool-id sequence whose chained types connect a start
// type to an end type. Paths are computed on demand and never persisted.
type Path []string

// FindAllPaths enumerates every acyclic tool-id sequence from start to end.
//
/// Description:
//
//	Bounded depth-first search over the type graph. Cycles are avoided by
//	tracking visited *types* within one path, not tools, so two distinct
//	tools over the same type pair still yield two parallel paths while a
//	path can never revisit a representation it already passed through.
//
// Inputs:
//
//	start - The source data type.
//	end - The target data type.
//	maxLength - Maximum tools per path; <= 0 uses DefaultMaxPathLength.
//
// Outputs:
//
//	[]Path - All discovered paths, in discovery order. Empty (not nil
//	         error) when end is unreachable from start.
//	error - ErrUnknownDataType for an uncatalogued tag.
func (r *Registry) FindAllPaths(start, end datatype.DataType, maxLength int) ([]Path, error) {
	if !start.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataType, start)
	}
	if !end.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataType, end)
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxPathLength
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var paths []Path
	visited := map[datatype.DataType]bool{start: true}
	current := make(Path, 0, maxLength)

	var dfs func(at datatype.DataType)
	dfs = func(at datatype.DataType) {
		if at == end && len(current) > 0 {
			found := make(Path, len(current))
			copy(found, current)
			paths = append(paths, found)
			return
		}
		if len(current) >= maxLength {
			return
		}
		for _, id := range r.order {
			tool := r.tools[id]
			if !tool.Accepts(at) {
				continue
			}
			if visited[tool.OutputType] {
				continue
			}
			visited[tool.OutputType] = true
			current = append(current, id)
			dfs(tool.OutputType)
			current = current[:len(current)-1]
			delete(visited, tool.OutputType)
		}
	}
	dfs(start)

	return paths, nil
}

// FindShortestPath returns a minimum-length path from start to end.
//
// Ties between equal-length paths are broken by discovery order, which
// follows tool registration order. Weight-aware ranking is a known gap.
//
// Outputs:
//
//	Path - The shortest path, nil if end is unreachable.
//	error - ErrUnknownDataType for an uncatalogued tag.
func (r *Registry) FindShortestPath(start, end datatype.DataType) (Path, error) {
	paths, err := r.FindAllPaths(start, end, DefaultMaxPathLength)
	if err != nil {
		return nil, err
	}

	var best Path
	for _, p := range paths {
		if best == nil || len(p) < len(best) {
			best = p
		}
	}
	return best, nil
}

// Reachable reports whether any path connects start to end.
func (r *Registry) Reachable(start, end datatype.DataType) (bool, error) {
	p, err := r.FindShortestPath(start, end)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// SourcesFor returns pure-source tools (no inputs) producing the given type.
// Used when synthesizing a pipeline that begins from an external payload.
func (r *Registry) SourcesFor(t datatype.DataType) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Descriptor
	for _, id := range r.order {
		d := r.tools[id]
		if len(d.InputTypes) == 0 && d.OutputType == t {
			out = append(out, *d)
		}
	}
	return out
}
