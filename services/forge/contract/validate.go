// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package contract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
	"github.com/AleutianAI/graphforge/services/forge/pipeline"
	"github.com/AleutianAI/graphforge/services/forge/tools"
)

// structValidator applies the Contract struct tags. Shared; the validator
// caches struct metadata and is safe for concurrent use.
var structValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateContractSchema checks a contract's structural well-formedness
// independent of any tool instance.
//
// Description:
//
//	Runs the struct-tag validation (required keys, enumerated category)
//	plus the checks tags cannot express: minimum description length,
//	known data type tags, at least one produced type, and disjoint
//	required/optional input sets. Pure function of the record; calling it
//	twice yields identical results.
//
// Outputs:
//
//	[]string - Human-readable problems, empty when the record is valid.
func ValidateContractSchema(c *Contract) []string {
	if c == nil {
		return []string{"contract is nil"}
	}

	var problems []string
	if err := structValidator.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, ve := range verrs {
				problems = append(problems, fmt.Sprintf(
					"field %s fails rule %q", ve.Namespace(), ve.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	if len(c.Description) > 0 && len(c.Description) < minDescriptionLength {
		problems = append(problems, fmt.Sprintf(
			"description is %d chars, minimum is %d", len(c.Description), minDescriptionLength))
	}

	if len(c.Output.ProducedDataTypes) == 0 {
		problems = append(problems, "output_contract.produced_data_types must not be empty")
	}

	check := func(field string, types []datatype.DataType) {
		for _, t := range types {
			if !t.Valid() {
				problems = append(problems, fmt.Sprintf("%s holds unknown data type %q", field, t))
			}
		}
	}
	check("input_contract.required_data_types", c.Input.RequiredDataTypes)
	check("input_contract.optional_data_types", c.Input.OptionalDataTypes)
	check("output_contract.produced_data_types", c.Output.ProducedDataTypes)
	for i, cond := range c.Conditionals {
		check(fmt.Sprintf("conditionals[%d].produced_data_types", i), cond.ProducedDataTypes)
	}

	required := make(map[datatype.DataType]bool, len(c.Input.RequiredDataTypes))
	for _, t := range c.Input.RequiredDataTypes {
		required[t] = true
	}
	for _, t := range c.Input.OptionalDataTypes {
		if required[t] {
			problems = append(problems, fmt.Sprintf(
				"data type %s is both required and optional", t))
		}
	}

	return problems
}

// ValidateToolInterface confirms a tool instance matches its contract.
//
// Outputs:
//
//	[]string - Mismatches between descriptor and record, empty on success.
func ValidateToolInterface(instance tools.Tool, c *Contract) []string {
	if instance == nil {
		return []string{"tool instance is nil"}
	}
	if c == nil {
		return []string{"contract is nil"}
	}

	var mismatches []string
	desc := instance.Descriptor()

	if desc.ToolID != c.ToolID {
		mismatches = append(mismatches, fmt.Sprintf(
			"descriptor tool_id %q does not match contract tool_id %q", desc.ToolID, c.ToolID))
	}
	if string(desc.Category) != c.Category {
		mismatches = append(mismatches, fmt.Sprintf(
			"descriptor category %q does not match contract category %q", desc.Category, c.Category))
	}

	declared := make(map[datatype.DataType]bool,
		len(c.Input.RequiredDataTypes)+len(c.Input.OptionalDataTypes))
	for _, t := range c.Input.RequiredDataTypes {
		declared[t] = true
	}
	for _, t := range c.Input.OptionalDataTypes {
		declared[t] = true
	}

	// Every required type must be accepted by the instance, and every
	// accepted type must be declared somewhere in the contract.
	for _, t := range c.Input.RequiredDataTypes {
		if !desc.Accepts(t) {
			mismatches = append(mismatches, fmt.Sprintf(
				"contract requires input %s but the tool does not accept it", t))
		}
	}
	for _, t := range desc.InputTypes {
		if !declared[t] {
			mismatches = append(mismatches, fmt.Sprintf(
				"tool accepts input %s but the contract does not declare it", t))
		}
	}

	if !c.Produces(desc.OutputType) {
		mismatches = append(mismatches, fmt.Sprintf(
			"tool output %s is not among declared produced types %v",
			desc.OutputType, c.Output.ProducedDataTypes))
	}

	return mismatches
}

// DataFlowResult is the outcome of one live data-flow check.
type DataFlowResult struct {
	// Success is true only when the tool ran and its output conformed.
	Success bool `json:"success"`

	// Errors lists every conformance problem found.
	Errors []string `json:"errors,omitempty"`

	// Output is the tool's result when execution was attempted.
	Output *tools.Output `json:"output,omitempty"`

	// Duration is the tool execution time, zero when not executed.
	Duration time.Duration `json:"duration,omitempty"`
}

// Validator performs the checks that need runtime context: live data-flow
// conformance and batch reports over a contract store.
//
// Thread Safety: safe for concurrent use after construction; SetCondition
// must not race with validation calls.
type Validator struct {
	store      *Store
	conditions map[string]bool
	logger     *slog.Logger
}

// NewValidator creates a validator over a contract store.
func NewValidator(store *Store, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		store:      store,
		conditions: make(map[string]bool),
		logger:     logger,
	}
}

// SetCondition records a named runtime precondition, e.g.
// "vector_index_reachable" once the index client is configured.
func (v *Validator) SetCondition(name string, ok bool) {
	v.conditions[name] = ok
}

// ValidateDataFlow executes a tool and checks its live conformance.
//
// Description:
//
//	Collects missing required inputs and unmet state preconditions; only
//	when those hold is the tool executed. The output's data type must be
//	within the contract's declared produced types (conditioned on the
//	given parameters); a mismatch names both the declared and the actual
//	type. The pipeline state is never written to.
//
// Inputs:
//
//	ctx - Context for tool execution.
//	instance - The tool under check.
//	c - Its contract record.
//	state - Pipeline state to run against.
//	params - Tool parameters, also used for conditional output clauses.
func (v *Validator) ValidateDataFlow(
	ctx context.Context,
	instance tools.Tool,
	c *Contract,
	state *pipeline.State,
	params map[string]any,
) *DataFlowResult {
	result := &DataFlowResult{}
	if instance == nil || c == nil || state == nil {
		result.Errors = append(result.Errors, "instance, contract, and state must all be non-nil")
		return result
	}

	for _, t := range c.Input.RequiredDataTypes {
		if _, err := state.LatestOfType(t); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"required input %s is missing from the pipeline state", t))
		}
	}
	for name, want := range c.Input.RequiredState {
		if v.conditions[name] != want {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"state precondition %q is %v, contract requires %v", name, v.conditions[name], want))
		}
	}
	if len(result.Errors) > 0 {
		return result
	}

	start := time.Now()
	output, err := instance.Process(ctx, state, params)
	result.Duration = time.Since(start)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("process failed: %v", err))
		return result
	}
	result.Output = output

	declared := c.ProducedFor(params)
	conforms := false
	for _, t := range declared {
		if output.DataType == t {
			conforms = true
			break
		}
	}
	if !conforms {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"contract declares produced types %v but process returned %s",
			declared, output.DataType))
		return result
	}

	result.Success = true
	return result
}

// ToolReport is the per-tool entry of a batch-validation report.
type ToolReport struct {
	ContractValid   bool     `json:"contract_valid"`
	ContractSummary string   `json:"contract_summary"`
	SchemaErrors    []string `json:"schema_errors,omitempty"`
	InterfaceErrors []string `json:"interface_errors,omitempty"`
}

// Summary aggregates a batch-validation run.
type Summary struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
}

// Report is the batch-validation report, suitable for CI gating.
type Report struct {
	Summary Summary `json:"summary"`

	// Tools holds non-adapter entries; Adapters the adapter-category ones.
	Tools    map[string]*ToolReport `json:"tools"`
	Adapters map[string]*ToolReport `json:"adapters"`
}

// Success reports whether every contract validated.
func (r *Report) Success() bool { return r.Summary.Invalid == 0 }

// BatchValidate runs schema and interface checks over every stored
// contract.
//
// Inputs:
//
//	instances - Tool instances keyed by tool id. Contracts without an
//	            instance get schema checks only.
//
// Outputs:
//
//	*Report - Aggregate summary plus per-tool detail. Never nil.
func (v *Validator) BatchValidate(instances map[string]tools.Tool) *Report {
	report := &Report{
		Tools:    make(map[string]*ToolReport),
		Adapters: make(map[string]*ToolReport),
	}

	for _, c := range v.store.List() {
		entry := &ToolReport{
			ContractSummary: fmt.Sprintf("%s v%s: %v -> %v",
				c.ToolID, c.Version, c.Input.RequiredDataTypes, c.Output.ProducedDataTypes),
			SchemaErrors: ValidateContractSchema(c),
		}
		if instance, ok := instances[c.ToolID]; ok {
			entry.InterfaceErrors = ValidateToolInterface(instance, c)
		}
		entry.ContractValid = len(entry.SchemaErrors) == 0 && len(entry.InterfaceErrors) == 0

		report.Summary.Total++
		if entry.ContractValid {
			report.Summary.Valid++
		} else {
			report.Summary.Invalid++
			v.logger.Warn("contract invalid",
				slog.String("tool_id", c.ToolID),
				slog.Int("schema_errors", len(entry.SchemaErrors)),
				slog.Int("interface_errors", len(entry.InterfaceErrors)),
			)
		}

		if c.Category == "adapter" {
			report.Adapters[c.ToolID] = entry
		} else {
			report.Tools[c.ToolID] = entry
		}
	}
	return report
}
