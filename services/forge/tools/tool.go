// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools defines the tool plugin interface the engine executes
// against, plus the built-in knowledge-graph leaf tools.
//
// The engine never inspects a tool beyond this shape: a descriptor query,
// a can-process predicate, and a process call. Tools read completed stages
// from the pipeline state and return exactly one new payload; the executor
// owns stage naming and insertion.
//
// Thread Safety:
//
//	All built-in tools are stateless or hold only immutable configuration
//	and are safe for concurrent use.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
	"github.com/AleutianAI/graphforge/services/forge/pipeline"
	"github.com/AleutianAI/graphforge/services/forge/registry"
)

var (
	// ErrInvalidInput indicates a nil or malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingInput indicates a required input stage type is absent.
	ErrMissingInput = errors.New("required input not in pipeline state")

	// ErrBadParameter indicates an unusable tool parameter.
	ErrBadParameter = errors.New("bad tool parameter")
)

// Output is the result of one tool invocation.
type Output struct {
	// Payload is the produced data; it becomes a new pipeline stage.
	Payload any `json:"payload"`

	// DataType tags the payload. Must match the descriptor's output type.
	DataType datatype.DataType `json:"data_type"`

	// Summary is a one-line human-readable description of the result.
	Summary string `json:"summary,omitempty"`

	// Metadata carries additional result attributes.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Tool is the capability interface every leaf tool implements.
//
// Implementations must be safe for concurrent use.
type Tool interface {
	// Descriptor returns the tool's typed-transformation description.
	Descriptor() registry.Descriptor

	// CanProcess reports whether the tool can run against the given
	// state, with a human-readable reason when it cannot.
	CanProcess(ctx context.Context, state *pipeline.State) (bool, string)

	// Process runs the tool. It reads stages from state and returns the
	// produced payload; it must not write stages itself.
	Process(ctx context.Context, state *pipeline.State, params map[string]any) (*Output, error)
}

// Base provides the common descriptor and readiness logic.
//
// A tool with no input types can always run (pure source). A tool with
// several input types runs when any one of them is present in the state
// (the alternative-acceptance set).
type Base struct {
	Desc registry.Descriptor
}

// Descriptor returns the tool's descriptor.
func (b *Base) Descriptor() registry.Descriptor {
	return b.Desc
}

// CanProcess implements the default readiness rule.
func (b *Base) CanProcess(_ context.Context, state *pipeline.State) (bool, string) {
	if len(b.Desc.InputTypes) == 0 {
		return true, ""
	}
	for _, t := range b.Desc.InputTypes {
		if _, err := state.LatestOfType(t); err == nil {
			return true, ""
		}
	}
	return false, fmt.Sprintf("%s requires a stage of type %v, none present", b.Desc.ToolID, b.Desc.InputTypes)
}

// latestPayload fetches the newest payload of any of the given types,
// preferring earlier entries in the list.
func latestPayload(ctx context.Context, state *pipeline.State, types ...datatype.DataType) (any, datatype.DataType, error) {
	for _, t := range types {
		stage, err := state.LatestOfType(t)
		if err != nil {
			continue
		}
		payload, err := state.GetPayload(ctx, stage.Name)
		if err != nil {
			return nil, t, err
		}
		return payload, t, nil
	}
	return nil, "", fmt.Errorf("%w: none of %v present", ErrMissingInput, types)
}

// stringParam reads an optional string parameter.
func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
