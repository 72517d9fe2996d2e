// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline provides the accumulating named-stage container a chain
// execution threads its data through.
//
// Tools read already-completed stages and write exactly one new stage; they
// never pass data directly tool-to-tool and never know about each other.
// A stage has exactly two states, absent and present: it is created
// atomically once its producing tool returns, and its payload is never
// mutated in place afterwards.
//
// Thread Safety:
//
//	State is safe for concurrent use. Concurrent writers never target the
//	same stage name (the executor qualifies names), so only the
//	insertion-time existence check needs the write lock.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
)

// Stage is one named entry in the pipeline state.
//
// Stages are append-only: once present, only the executor reads them.
type Stage struct {
	// Name is the unique stage name within one run.
	Name string `json:"name"`

	// Payload is the stage data. Nil when offloaded (see PayloadRef).
	Payload any `json:"payload,omitempty"`

	// PayloadRef is a content-addressed reference into the offload store,
	// set instead of Payload for oversized payloads.
	PayloadRef string `json:"payload_ref,omitempty"`

	// DataType tags the payload's semantic type.
	DataType datatype.DataType `json:"data_type"`

	// ProducedBy is the tool id that created this stage.
	ProducedBy string `json:"produced_by"`

	// DependsOn names the stages this stage was derived from.
	DependsOn []string `json:"depends_on,omitempty"`

	// Sequence is the creation order within the run, starting at 0.
	Sequence int `json:"sequence"`

	// Size is the estimated payload size in bytes.
	Size int64 `json:"size"`

	// CreatedAt is the stage creation time.
	CreatedAt time.Time `json:"created_at"`
}

// Metadata is the observable description of a stage without its payload.
// Used by the memory diagnostics and the run snapshot.
type Metadata struct {
	Name       string            `json:"name"`
	DataType   datatype.DataType `json:"data_type"`
	ProducedBy string            `json:"produced_by"`
	DependsOn  []string          `json:"depends_on,omitempty"`
	Sequence   int               `json:"sequence"`
	Size       int64             `json:"size"`
	Offloaded  bool              `json:"offloaded"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Offloader externalizes large payloads to content-addressed references.
//
// Growth of the in-memory state is unbounded by design; an Offloader bounds
// resident memory by moving oversized payloads to an external store.
type Offloader interface {
	// Put stores a payload and returns its content-addressed reference.
	Put(ctx context.Context, payload any) (ref string, size int64, err error)

	// Get resolves a reference back into a payload.
	Get(ctx context.Context, ref string) (any, error)
}

// State is the shared read/write surface for one pipeline run.
type State struct {
	mu     sync.RWMutex
	runID  string
	stages map[string]*Stage
	order  []string
	logger *slog.Logger

	offloader Offloader
	threshold int64
}

// Option configures a State.
type Option func(*State)

// WithLogger sets the logger for stage events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *State) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOffloader externalizes payloads larger than threshold bytes to the
// given store. A threshold <= 0 offloads nothing.
func WithOffloader(o Offloader, threshold int64) Option {
	return func(s *State) {
		s.offloader = o
		s.threshold = threshold
	}
}

// NewState creates an empty pipeline state scoped to one run.
//
// Inputs:
//
//	runID - Identifier of the owning run, used in log attributes.
//	opts - Optional configuration.
func NewState(runID string, opts ...Option) *State {
	s := &State{
		runID:  runID,
		stages: make(map[string]*Stage),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunID returns the owning run's identifier.
func (s *State) RunID() string { return s.runID }

// AddStage records a new stage atomically.
//
// Description:
//
//	Fails if the name already exists (no implicit overwrite) or if any
//	named dependency is absent. On failure nothing is mutated. When an
//	offloader is configured and the payload exceeds the threshold, the
//	payload is stored externally and the stage holds only a reference.
//
// Inputs:
//
//	ctx - Context for the offload write.
//	name - Unique stage name.
//	payload - The stage data. May be nil for marker stages.
//	dtype - Semantic type tag of the payload.
//	producedBy - Tool id that produced the payload.
//	dependencies - Names of stages this one was derived from. All must exist.
//
// Outputs:
//
//	error - ErrStageExists, ErrMissingDependency, or an offload error.
func (s *State) AddStage(
	ctx context.Context,
	name string,
	payload any,
	dtype datatype.DataType,
	producedBy string,
	dependencies []string,
) error {
	if name == "" {
		return fmt.Errorf("%w: stage name must not be empty", ErrInvalidInput)
	}

	size := estimateSize(payload)

	// Offload outside the lock; an orphaned blob on a later failed insert
	// is garbage-collected by the store, not a correctness problem.
	var ref string
	if s.offloader != nil && s.threshold > 0 && size > s.threshold {
		r, storedSize, err := s.offloader.Put(ctx, payload)
		if err != nil {
			return fmt.Errorf("offload payload for stage %s: %w", name, err)
		}
		ref = r
		size = storedSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stages[name]; exists {
		return fmt.Errorf("%w: %s", ErrStageExists, name)
	}
	for _, dep := range dependencies {
		if _, ok := s.stages[dep]; !ok {
			return fmt.Errorf("%w: stage %s depends on %s", ErrMissingDependency, name, dep)
		}
	}

	deps := make([]string, len(dependencies))
	copy(deps, dependencies)

	stage := &Stage{
		Name:       name,
		DataType:   dtype,
		ProducedBy: producedBy,
		DependsOn:  deps,
		Sequence:   len(s.order),
		Size:       size,
		CreatedAt:  time.Now().UTC(),
	}
	if ref != "" {
		stage.PayloadRef = ref
	} else {
		stage.Payload = payload
	}

	s.stages[name] = stage
	s.order = append(s.order, name)

	s.logger.Debug("stage added",
		slog.String("run_id", s.runID),
		slog.String("stage", name),
		slog.String("data_type", dtype.String()),
		slog.String("produced_by", producedBy),
		slog.Int64("size", size),
		slog.Bool("offloaded", ref != ""),
	)
	return nil
}

// GetStage returns a stage by name.
//
// Outputs:
//
//	*Stage - The stage. The returned struct is a copy; the payload itself
//	         is shared and must be treated as read-only.
//	error - ErrStageNotFound if absent.
func (s *State) GetStage(name string) (*Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stage, ok := s.stages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStageNotFound, name)
	}
	out := *stage
	return &out, nil
}

// GetPayload returns a stage's payload, resolving offloaded references.
//
// Inputs:
//
//	ctx - Context for the offload read.
//	name - The stage name.
//
// Outputs:
//
//	any - The payload.
//	error - ErrStageNotFound, ErrNoOffloader, or a store read error.
func (s *State) GetPayload(ctx context.Context, name string) (any, error) {
	stage, err := s.GetStage(name)
	if err != nil {
		return nil, err
	}
	if stage.PayloadRef == "" {
		return stage.Payload, nil
	}
	if s.offloader == nil {
		return nil, fmt.Errorf("%w: stage %s holds ref %s", ErrNoOffloader, name, stage.PayloadRef)
	}
	payload, err := s.offloader.Get(ctx, stage.PayloadRef)
	if err != nil {
		return nil, fmt.Errorf("resolve payload for stage %s: %w", name, err)
	}
	return payload, nil
}

// HasStage reports whether a stage is present.
func (s *State) HasStage(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.stages[name]
	return ok
}

// LatestOfType returns the most recently created stage with the given tag.
//
// Outputs:
//
//	*Stage - The newest matching stage.
//	error - ErrStageNotFound if no stage carries the tag.
func (s *State) LatestOfType(t datatype.DataType) (*Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.order) - 1; i >= 0; i-- {
		stage := s.stages[s.order[i]]
		if stage.DataType == t {
			out := *stage
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: no stage of type %s", ErrStageNotFound, t)
}

// ValidateDependencies reports whether every named stage is present.
//
// Tools use this to fail fast with a clear message before processing.
//
// Outputs:
//
//	bool - True only if all names are present.
//	[]string - The missing names, empty on success.
func (s *State) ValidateDependencies(names []string) (bool, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var missing []string
	for _, name := range names {
		if _, ok := s.stages[name]; !ok {
			missing = append(missing, name)
		}
	}
	return len(missing) == 0, missing
}

// ListStages returns stage names in creation order.
func (s *State) ListStages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Count returns the number of stages.
func (s *State) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Snapshot returns per-stage metadata in creation order, for observability
// and memory diagnostics.
func (s *State) Snapshot() []Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Metadata, 0, len(s.order))
	for _, name := range s.order {
		stage := s.stages[name]
		out = append(out, Metadata{
			Name:       stage.Name,
			DataType:   stage.DataType,
			ProducedBy: stage.ProducedBy,
			DependsOn:  stage.DependsOn,
			Sequence:   stage.Sequence,
			Size:       stage.Size,
			Offloaded:  stage.PayloadRef != "",
			CreatedAt:  stage.CreatedAt,
		})
	}
	return out
}

// TotalSize returns the summed size estimate of all stages in bytes.
// Offloaded stages count toward the total; they live in the store instead.
func (s *State) TotalSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, stage := range s.stages {
		total += stage.Size
	}
	return total
}

// estimateSize approximates a payload's in-memory footprint in bytes.
// JSON length is a usable proxy for the map/slice payloads tools produce.
func estimateSize(payload any) int64 {
	switch v := payload.(type) {
	case nil:
		return 0
	case string:
		return int64(len(v))
	case []byte:
		return int64(len(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return 0
		}
		return int64(len(data))
	}
}
