// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package contract holds the declarative per-tool contract records and the
// validators that make tool compatibility checkable without executing
// business logic.
//
// A contract is the authoritative, machine-readable substitute for a tool
// implementation: two tools with compatible contracts are interchangeable.
// Contracts are validated at load time (schema well-formedness) and at
// invocation time (data-flow conformance).
package contract

import (
	"errors"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
)

var (
	// ErrContractNotFound indicates no contract record exists for a tool id.
	ErrContractNotFound = errors.New("contract not found")

	// ErrInvalidInput indicates a nil or malformed argument.
	ErrInvalidInput = errors.New("invalid input")
)

// minDescriptionLength is the enforced minimum for contract descriptions.
const minDescriptionLength = 20

// InputContract declares what a tool needs before it can run.
type InputContract struct {
	// RequiredDataTypes must all be present in the pipeline state.
	RequiredDataTypes []datatype.DataType `yaml:"required_data_types" json:"required_data_types"`

	// OptionalDataTypes are consumed when present but never block execution.
	OptionalDataTypes []datatype.DataType `yaml:"optional_data_types,omitempty" json:"optional_data_types,omitempty"`

	// RequiredState names boolean preconditions on the run, e.g.
	// "vector_index_reachable": true.
	RequiredState map[string]bool `yaml:"required_state,omitempty" json:"required_state,omitempty"`
}

// OutputContract declares what a tool may produce.
type OutputContract struct {
	// ProducedDataTypes is the closed set of types process may return.
	ProducedDataTypes []datatype.DataType `yaml:"produced_data_types" json:"produced_data_types"`
}

// ErrorCode is one documented failure mode of a tool.
type ErrorCode struct {
	Code    string `yaml:"code" json:"code" validate:"required"`
	Meaning string `yaml:"meaning" json:"meaning" validate:"required"`
}

// Conditional narrows ProducedDataTypes when a parameter takes a given
// value. Checked at DAG-validation time when parameters are known; a
// mismatch is a warning, not a failure.
type Conditional struct {
	Parameter         string              `yaml:"parameter" json:"parameter" validate:"required"`
	Equals            string              `yaml:"equals" json:"equals"`
	ProducedDataTypes []datatype.DataType `yaml:"produced_data_types" json:"produced_data_types" validate:"min=1"`
}

// Contract is the declarative record describing one tool.
type Contract struct {
	ToolID      string `yaml:"tool_id" json:"tool_id" validate:"required"`
	Category    string `yaml:"category" json:"category" validate:"required,oneof=ingestion processing analysis adapter"`
	Description string `yaml:"description" json:"description" validate:"required"`
	Version     string `yaml:"version" json:"version" validate:"required"`

	Input  InputContract  `yaml:"input_contract" json:"input_contract"`
	Output OutputContract `yaml:"output_contract" json:"output_contract" validate:"required"`

	ErrorCodes []ErrorCode `yaml:"error_codes,omitempty" json:"error_codes,omitempty" validate:"dive"`

	// Conditionals refine the output contract per parameter value.
	Conditionals []Conditional `yaml:"conditionals,omitempty" json:"conditionals,omitempty" validate:"dive"`
}

// ProducedFor returns the produced types given concrete parameters,
// applying the first matching conditional clause.
func (c *Contract) ProducedFor(params map[string]any) []datatype.DataType {
	for _, cond := range c.Conditionals {
		v, ok := params[cond.Parameter]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && s == cond.Equals {
			return cond.ProducedDataTypes
		}
	}
	return c.Output.ProducedDataTypes
}

// Produces reports whether t is within the contract's declared outputs.
func (c *Contract) Produces(t datatype.DataType) bool {
	for _, p := range c.Output.ProducedDataTypes {
		if p == t {
			return true
		}
	}
	return false
}
