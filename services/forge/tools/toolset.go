// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/graphforge/services/forge/registry"
)

// Toolset binds tool instances to the transformation registry.
//
// The registry holds only typed descriptors; the toolset is what maps a
// tool id back to a runnable instance. Registration goes through the
// toolset so descriptor and instance can never drift apart.
//
// Thread Safety: safe for concurrent use.
type Toolset struct {
	mu        sync.RWMutex
	instances map[string]Tool
	registry  *registry.Registry
}

// NewToolset creates an empty toolset over a fresh registry.
func NewToolset(logger *slog.Logger) *Toolset {
	return &Toolset{
		instances: make(map[string]Tool),
		registry:  registry.New(logger),
	}
}

// Register adds a tool instance and its descriptor atomically.
func (ts *Toolset) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("%w: tool must not be nil", ErrInvalidInput)
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	desc := tool.Descriptor()
	if err := ts.registry.Register(desc); err != nil {
		return err
	}
	ts.instances[desc.ToolID] = tool
	return nil
}

// Get returns the instance for a tool id.
func (ts *Toolset) Get(toolID string) (Tool, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	tool, ok := ts.instances[toolID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrToolNotFound, toolID)
	}
	return tool, nil
}

// Registry returns the backing transformation registry.
func (ts *Toolset) Registry() *registry.Registry {
	return ts.registry
}

// Instances returns a copy of the id → instance map, for batch validation.
func (ts *Toolset) Instances() map[string]Tool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	out := make(map[string]Tool, len(ts.instances))
	for id, tool := range ts.instances {
		out[id] = tool
	}
	return out
}
