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
	"errors"
	"fmt"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
)

var (
	// ErrInvalidInput indicates a nil or malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrToolNotFound indicates the tool id is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrDuplicateTool indicates a tool id is already registered.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrUnknownDataType indicates a descriptor references a tag that is
	// not in the type catalogue.
	ErrUnknownDataType = errors.New("unknown data type")
)

// TypeMismatchError describes the first adjacent type mismatch in a chain.
type TypeMismatchError struct {
	// Position is the zero-based index of the consuming tool in the chain.
	Position int

	// FromTool produced the incompatible output.
	FromTool string

	// ToTool could not consume it.
	ToTool string

	// Produced is the type FromTool emits.
	Produced datatype.DataType

	// Accepted are the types ToTool consumes.
	Accepted []datatype.DataType
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf(
		"chain breaks at position %d: %s produces %s but %s accepts %v",
		e.Position, e.FromTool, e.Produced, e.ToTool, e.Accepted,
	)
}
