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

import "errors"

var (
	// ErrInvalidInput indicates a nil or malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNilContext indicates a nil context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrDuplicateStep indicates a step id is already present in the DAG.
	ErrDuplicateStep = errors.New("duplicate step id")

	// ErrInvalidDAG indicates validation rejected the DAG before execution.
	ErrInvalidDAG = errors.New("dag failed validation")

	// ErrNoProgress indicates no step became ready while unfinished steps
	// remain: a structural deadlock.
	ErrNoProgress = errors.New("no steps ready, dag cannot progress")

	// ErrIterationCap indicates the scheduler loop hit its iteration
	// bound, a guard against livelock.
	ErrIterationCap = errors.New("iteration cap exceeded")

	// ErrNoPath indicates the registry holds no tool chain between the
	// requested types.
	ErrNoPath = errors.New("no transformation path between types")
)
