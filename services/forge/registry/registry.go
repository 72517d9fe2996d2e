// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry holds registered tool descriptors and answers reachability
// questions over the tool/type graph.
//
// Compatibility is modeled as graph reachability rather than a hand-maintained
// list of blessed sequences: registering a tool adds directed edges from each
// of its input types to its output type, and valid workflows grow
// combinatorially as tools are added.
//
// Thread Safety:
//
//	Registry is safe for concurrent use. Registration takes the write lock;
//	queries take the read lock. The registry is read-mostly after startup.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
)

// Category classifies a tool's role in a pipeline.
type Category string

const (
	// CategoryIngestion covers tools that bring raw data into a pipeline.
	CategoryIngestion Category = "ingestion"

	// CategoryProcessing covers tools that transform one representation
	// into another (extraction, graph building).
	CategoryProcessing Category = "processing"

	// CategoryAnalysis covers tools that derive new information without
	// changing the underlying representation class.
	CategoryAnalysis Category = "analysis"

	// CategoryAdapter covers tools that prepare payloads for an external
	// system (storage transactions, format conversion).
	CategoryAdapter Category = "adapter"
)

// String returns the category's string form.
func (c Category) String() string { return string(c) }

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryIngestion, CategoryProcessing, CategoryAnalysis, CategoryAdapter:
		return true
	}
	return false
}

// Descriptor describes a tool as a typed transformation.
//
// A descriptor with no input types is a pure source (it can always run).
// A descriptor with multiple input types accepts any one of them; this is
// the alternative-acceptance set for flexible tools.
type Descriptor struct {
	// ToolID is the unique identifier. Required.
	ToolID string `json:"tool_id" yaml:"tool_id"`

	// Name is a human-readable name.
	Name string `json:"name" yaml:"name"`

	// Category classifies the tool.
	Category Category `json:"category" yaml:"category"`

	// InputTypes are the tags the tool consumes. Empty means pure source.
	InputTypes []datatype.DataType `json:"input_types" yaml:"input_types"`

	// OutputType is the single tag the tool produces. Required.
	OutputType datatype.DataType `json:"output_type" yaml:"output_type"`

	// Weight is a reliability weight in (0, 1]. Currently informational;
	// path ranking still breaks ties by discovery order.
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// Accepts reports whether the descriptor can consume the given type.
// Pure sources accept nothing; they produce without consuming.
func (d *Descriptor) Accepts(t datatype.DataType) bool {
	for _, in := range d.InputTypes {
		if in == t {
			return true
		}
	}
	return false
}

// Registry owns tool descriptors for their lifetime and exposes graph
// search over the tool/type graph.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Descriptor
	order  []string // registration order, for deterministic discovery
	logger *slog.Logger
}

// New creates an empty registry.
//
// Inputs:
//
//	logger - Logger for registration events. If nil, uses slog.Default().
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Descriptor),
		logger: logger,
	}
}

// Register inserts a tool descriptor.
//
// Description:
//
//	Validates the descriptor and adds it to the registry, creating a
//	directed edge input_type -> output_type for each input type. Parallel
//	edges (multiple tools over the same type pair) are supported.
//	Registration errors are fatal to the affected tool only.
//
// Inputs:
//
//	d - The descriptor. ToolID and OutputType are required; every
//	    referenced type must be in the catalogue.
//
// Outputs:
//
//	error - ErrDuplicateTool, ErrUnknownDataType, or ErrInvalidInput.
func (r *Registry) Register(d Descriptor) error {
	if d.ToolID == "" {
		return fmt.Errorf("%w: tool id must not be empty", ErrInvalidInput)
	}
	if !d.OutputType.Valid() {
		return fmt.Errorf("%w: output type %q of tool %s", ErrUnknownDataType, d.OutputType, d.ToolID)
	}
	for _, in := range d.InputTypes {
		if !in.Valid() {
			return fmt.Errorf("%w: input type %q of tool %s", ErrUnknownDataType, in, d.ToolID)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[d.ToolID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, d.ToolID)
	}

	stored := d
	r.tools[d.ToolID] = &stored
	r.order = append(r.order, d.ToolID)

	r.logger.Debug("tool registered",
		slog.String("tool_id", d.ToolID),
		slog.String("category", d.Category.String()),
		slog.Any("input_types", d.InputTypes),
		slog.String("output_type", d.OutputType.String()),
	)
	return nil
}

// Get returns the descriptor for a tool id.
//
// Outputs:
//
//	*Descriptor - A copy of the stored descriptor.
//	error - ErrToolNotFound if absent.
func (r *Registry) Get(toolID string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tools[toolID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, toolID)
	}
	out := *d
	return &out, nil
}

// Has reports whether a tool id is registered.
func (r *Registry) Has(toolID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[toolID]
	return ok
}

// List returns all descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.tools[id])
	}
	return out
}

// ToolIDs returns all registered tool ids, sorted.
func (r *Registry) ToolIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CompatibleSuccessors returns the tools that can consume the given tool's
// output, in registration order. This is the basis for "what can run next".
//
// Outputs:
//
//	[]Descriptor - Tools whose input set contains the given tool's output.
//	error - ErrToolNotFound if toolID is absent.
func (r *Registry) CompatibleSuccessors(toolID string) ([]Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tools[toolID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, toolID)
	}

	var out []Descriptor
	for _, id := range r.order {
		cand := r.tools[id]
		if cand.Accepts(d.OutputType) {
			out = append(out, *cand)
		}
	}
	return out, nil
}

// ValidateChain checks that a tool-id sequence is type-compatible.
//
// Description:
//
//	Verifies every adjacent pair: the successor must accept the
//	predecessor's output type. Fails at the first mismatch with a
//	descriptive TypeMismatchError. Sequences of length <= 1 are
//	trivially valid (a lone registered tool, or nothing at all).
//
// Inputs:
//
//	sequence - Ordered tool ids.
//
// Outputs:
//
//	error - ErrToolNotFound, or *TypeMismatchError at the break point.
func (r *Registry) ValidateChain(sequence []string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range sequence {
		if _, ok := r.tools[id]; !ok {
			return fmt.Errorf("%w: %s", ErrToolNotFound, id)
		}
	}
	if len(sequence) <= 1 {
		return nil
	}

	for i := 1; i < len(sequence); i++ {
		prev := r.tools[sequence[i-1]]
		next := r.tools[sequence[i]]
		if !next.Accepts(prev.OutputType) {
			return &TypeMismatchError{
				Position: i,
				FromTool: prev.ToolID,
				ToTool:   next.ToolID,
				Produced: prev.OutputType,
				Accepted: next.InputTypes,
			}
		}
	}
	return nil
}
