// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dag models pipeline runs as directed acyclic graphs of tool
// steps and executes them in dependency order.
//
// A Step is immutable once constructed; only its status changes at
// runtime, and the executor owns that. Validation is separate from
// execution so callers can reject a malformed DAG before spending any
// work on it.
package dag

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/graphforge/services/forge/contract"
	"github.com/AleutianAI/graphforge/services/forge/datatype"
	"github.com/AleutianAI/graphforge/services/forge/registry"
)

// Status is the lifecycle state of one step.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Step is one tool invocation in a DAG.
//
// Steps are immutable after construction; the executor tracks status
// separately and never writes back into the step.
type Step struct {
	// ID is the step's unique id within the DAG.
	ID string `json:"step_id"`

	// ToolID names the tool to invoke.
	ToolID string `json:"tool_id"`

	// DependsOn lists step ids that must succeed first.
	DependsOn []string `json:"depends_on,omitempty"`

	// Parameters are passed to the tool's Process call.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// DAG is an ordered set of steps plus metadata.
type DAG struct {
	// ID identifies the DAG; assigned at construction.
	ID string `json:"dag_id"`

	// Name is the human-readable label.
	Name string `json:"name"`

	// Steps in insertion order.
	Steps []*Step `json:"steps"`

	// CreatedAt is the construction time.
	CreatedAt time.Time `json:"created_at"`

	index map[string]*Step
}

// New creates an empty DAG with a generated id.
func New(name string) *DAG {
	return &DAG{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		index:     make(map[string]*Step),
	}
}

// AddStep appends a step.
//
// Outputs:
//
//	error - ErrInvalidInput on empty ids, ErrDuplicateStep on reuse.
func (d *DAG) AddStep(step *Step) error {
	if step == nil || step.ID == "" || step.ToolID == "" {
		return fmt.Errorf("%w: step needs an id and a tool id", ErrInvalidInput)
	}
	if _, exists := d.index[step.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStep, step.ID)
	}
	d.Steps = append(d.Steps, step)
	d.index[step.ID] = step
	return nil
}

// StepByID returns a step by id.
func (d *DAG) StepByID(id string) (*Step, bool) {
	s, ok := d.index[id]
	return s, ok
}

// ValidationResult is the outcome of structural DAG validation.
type ValidationResult struct {
	// Valid is true only when Errors is empty. Warnings never invalidate.
	Valid bool `json:"valid"`

	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validate checks the DAG's structure against a registry.
//
// Description:
//
//	Errors: unknown step references, unregistered tool ids, and circular
//	dependencies (DFS with a recursion stack; the message names the
//	cycle). Warnings: a depends_on edge whose successor is not among the
//	predecessor's compatible successors. The contract, not the literal
//	edge, is authoritative, since a tool may accept a looser input than
//	its nominal predecessor produces.
func (d *DAG) Validate(reg *registry.Registry) *ValidationResult {
	result := &ValidationResult{}

	if len(d.Steps) == 0 {
		result.Errors = append(result.Errors, "dag has no steps")
		result.Valid = false
		return result
	}

	for _, step := range d.Steps {
		if !reg.Has(step.ToolID) {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"step %s references unregistered tool %q", step.ID, step.ToolID))
		}
		for _, dep := range step.DependsOn {
			if _, ok := d.index[dep]; !ok {
				result.Errors = append(result.Errors, fmt.Sprintf(
					"step %s depends on unknown step %q", step.ID, dep))
			}
		}
	}

	if cycle := d.findCycle(); cycle != nil {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"circular dependency detected: %v", cycle))
	}

	// Edge-compatibility cross-check, warnings only.
	for _, step := range d.Steps {
		for _, dep := range step.DependsOn {
			pred, ok := d.index[dep]
			if !ok {
				continue
			}
			successors, err := reg.CompatibleSuccessors(pred.ToolID)
			if err != nil {
				continue
			}
			compatible := false
			for _, s := range successors {
				if s.ToolID == step.ToolID {
					compatible = true
					break
				}
			}
			if !compatible {
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"step %s (%s) is not a compatible successor of %s (%s)",
					step.ID, step.ToolID, pred.ID, pred.ToolID))
			}
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// ConditionalWarnings checks each step's parameters against its
// contract's conditional output clauses.
//
// A step whose parameters trigger a conditional clause may produce a
// narrower type set than downstream steps assume; that is reported as a
// warning, never an error, because the executor re-checks outputs live.
func (d *DAG) ConditionalWarnings(store *contract.Store) []string {
	if store == nil {
		return nil
	}

	var warnings []string
	for _, step := range d.Steps {
		c, err := store.LoadContract(step.ToolID)
		if err != nil {
			continue
		}
		conditioned := c.ProducedFor(step.Parameters)
		if len(c.Conditionals) > 0 && !sameTypes(conditioned, c.Output.ProducedDataTypes) {
			warnings = append(warnings, fmt.Sprintf(
				"step %s parameters narrow produced types to %v (default %v)",
				step.ID, conditioned, c.Output.ProducedDataTypes))
		}
	}
	return warnings
}

func sameTypes(a, b []datatype.DataType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// findCycle runs DFS with a recursion stack over depends_on edges and
// returns the first cycle found, or nil.
func (d *DAG) findCycle() []string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(d.Steps))

	var cycle []string
	var visit func(id string, path []string) bool
	visit = func(id string, path []string) bool {
		state[id] = inStack
		path = append(path, id)

		step := d.index[id]
		for _, dep := range step.DependsOn {
			if _, ok := d.index[dep]; !ok {
				continue
			}
			switch state[dep] {
			case inStack:
				// Close the loop for a readable message.
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, path[start:]...), dep)
				return true
			case unvisited:
				if visit(dep, path) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}

	for _, step := range d.Steps {
		if state[step.ID] == unvisited {
			if visit(step.ID, nil) {
				return cycle
			}
		}
	}
	return nil
}
