// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger provides the embedded key/value store backing two engine
// concerns: the content-addressed payload offload store and the sink for
// STORAGE_TXN payloads produced by the adapter tools.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/graphforge/services/forge/kg"
)

// Config holds configuration for the embedded store.
type Config struct {
	// Path is the directory for database files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives the store's internal log output.
	// If nil, internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults: durable writes and periodic
// value-log GC.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: no disk I/O, no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// storeLogger adapts slog.Logger to badger's Logger interface.
type storeLogger struct {
	logger *slog.Logger
}

func (l *storeLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *storeLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *storeLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *storeLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store wraps the embedded database and owns its GC loop.
//
// Thread Safety: safe for concurrent use.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	stopGC chan struct{}
	gcDone chan struct{}
}

// Open creates and opens a store with the given configuration.
//
// Outputs:
//
//	*Store - The opened store. Caller must Close() when done.
//	error - Invalid path or database open failure.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&storeLogger{logger: logger})
	} else {
		logger = slog.Default()
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
		stopGC: make(chan struct{}),
		gcDone: make(chan struct{}),
	}
	go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	return s, nil
}

// runGC periodically triggers value-log garbage collection until Close.
func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)
	if interval <= 0 {
		return
	}
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite just means nothing was worth collecting.
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("value log gc failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Close stops the GC loop and closes the database.
func (s *Store) Close() error {
	close(s.stopGC)
	<-s.gcDone
	return s.db.Close()
}

// DB exposes the underlying database for package-internal consumers.
func (s *Store) DB() *badger.DB { return s.db }

// ApplyTxn writes every operation of a STORAGE_TXN payload in one batch.
//
// Description:
//
//	Applies put_node/put_edge operations from the txn_builder tool. The
//	batch is atomic from the reader's perspective: either all operations
//	land or none do.
//
// Inputs:
//
//	ctx - Checked between operations for cancellation.
//	txn - The transaction payload. Target must be "badger".
func (s *Store) ApplyTxn(ctx context.Context, txn *kg.Txn) error {
	if txn == nil {
		return errors.New("txn must not be nil")
	}
	if txn.Target != "badger" {
		return fmt.Errorf("txn targets %q, this store handles badger", txn.Target)
	}

	batch := s.db.NewWriteBatch()
	defer batch.Cancel()

	for _, op := range txn.Ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch op.Kind {
		case "put_node", "put_edge":
			if err := batch.Set([]byte(op.Key), op.Value); err != nil {
				return fmt.Errorf("batch set %s: %w", op.Key, err)
			}
		default:
			return fmt.Errorf("unsupported op kind %q", op.Kind)
		}
	}

	if err := batch.Flush(); err != nil {
		return fmt.Errorf("flush %d ops: %w", len(txn.Ops), err)
	}

	s.logger.Debug("transaction applied", slog.Int("ops", len(txn.Ops)))
	return nil
}

// GetValue reads one key, returning a copy of the value.
func (s *Store) GetValue(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}
