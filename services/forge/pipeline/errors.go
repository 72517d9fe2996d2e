// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import "errors"

var (
	// ErrInvalidInput indicates a nil or malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStageExists indicates an AddStage call reused an existing name.
	// There is no implicit overwrite.
	ErrStageExists = errors.New("stage already exists")

	// ErrStageNotFound indicates a read of an absent stage. Reading an
	// absent stage is a caller error, not a soft empty result.
	ErrStageNotFound = errors.New("stage not found")

	// ErrMissingDependency indicates AddStage named a dependency stage
	// that is not present.
	ErrMissingDependency = errors.New("missing dependency stage")

	// ErrNoOffloader indicates an offloaded payload was read on a state
	// with no offload store configured.
	ErrNoOffloader = errors.New("no offload store configured")
)
