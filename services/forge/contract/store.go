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
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed contracts.yaml
var defaultContracts []byte

// maxContractFileSize caps a single contract file at 1MB.
const maxContractFileSize = 1 << 20

// contractFile is the on-disk YAML shape.
type contractFile struct {
	Contracts []*Contract `yaml:"contracts"`
}

// Store holds the loaded contract records, keyed by tool id.
//
// Thread Safety: safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	contracts map[string]*Contract
	logger    *slog.Logger
}

// NewStore creates a store seeded with the embedded default contracts.
//
// Outputs:
//
//	*Store - The store. Never nil on success.
//	error - Parse failure of the embedded defaults (a build defect).
func NewStore(logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		contracts: make(map[string]*Contract),
		logger:    logger,
	}
	if err := s.loadBytes(defaultContracts, "embedded defaults"); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadDir merges every .yaml/.yml file in dir into the store. A record
// with an already-known tool id replaces the earlier one.
func (s *Store) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read contract dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Size() > maxContractFileSize {
			return fmt.Errorf("%w: %s is %d bytes, cap is %d",
				ErrInvalidInput, path, info.Size(), maxContractFileSize)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := s.loadBytes(raw, path); err != nil {
			return err
		}
	}
	return nil
}

// loadBytes parses one YAML document and merges its records.
func (s *Store) loadBytes(raw []byte, source string) error {
	var file contractFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse contracts from %s: %w", source, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range file.Contracts {
		if c == nil || c.ToolID == "" {
			return fmt.Errorf("%w: contract without tool_id in %s", ErrInvalidInput, source)
		}
		if _, exists := s.contracts[c.ToolID]; exists {
			s.logger.Info("contract overridden",
				slog.String("tool_id", c.ToolID),
				slog.String("source", source),
			)
		}
		s.contracts[c.ToolID] = c
	}

	s.logger.Debug("contracts loaded",
		slog.String("source", source),
		slog.Int("count", len(file.Contracts)),
	)
	return nil
}

// LoadContract returns the record for a tool id.
//
// Outputs:
//
//	*Contract - The record.
//	error - ErrContractNotFound if absent.
func (s *Store) LoadContract(toolID string) (*Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[toolID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, toolID)
	}
	return c, nil
}

// List returns all records sorted by tool id.
func (s *Store) List() []*Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolID < out[j].ToolID })
	return out
}

// Count returns the number of loaded records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contracts)
}
