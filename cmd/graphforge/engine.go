// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/graphforge/services/forge/contract"
	"github.com/AleutianAI/graphforge/services/forge/dag"
	"github.com/AleutianAI/graphforge/services/forge/llm"
	"github.com/AleutianAI/graphforge/services/forge/observability"
	"github.com/AleutianAI/graphforge/services/forge/pipeline"
	"github.com/AleutianAI/graphforge/services/forge/storage/badger"
	"github.com/AleutianAI/graphforge/services/forge/tools"
	"github.com/AleutianAI/graphforge/services/forge/vector"
)

// engine holds the wired pipeline components for one process.
type engine struct {
	toolset   *tools.Toolset
	executor  *dag.Executor
	contracts *contract.Store
	validator *contract.Validator

	store *badger.Store
	index *vector.Index
}

// buildEngine wires the toolset, storage, vector index, and executor
// from the loaded config.
//
// Description:
//
//	Optional backends degrade gracefully: without a storage path there
//	is no payload offloading and no txn sink; without a vector host the
//	vector_writer tool is not registered; without the openai backend
//	extraction falls back to the offline heuristic and the embedder is
//	unavailable.
func buildEngine(cfg Config, logger *slog.Logger) (*engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var extractor llm.Extractor
	var embedder llm.Embedder
	if cfg.LLM.Backend == "openai" {
		client, err := llm.NewClient(logger)
		if err != nil {
			return nil, fmt.Errorf("init openai backend: %w", err)
		}
		extractor = client
		embedder = client
	} else {
		logger.Info("using heuristic extraction backend")
		extractor = llm.NewHeuristicExtractor()
	}

	toolset := tools.NewToolset(logger)
	register := []tools.Tool{
		tools.NewTextLoader(),
		tools.NewEntityExtractor(extractor),
		tools.NewRelationExtractor(extractor),
		tools.NewGraphBuilder(),
		tools.NewGraphEnricher(),
		tools.NewTableConverter(),
		tools.NewTxnBuilder(),
	}
	if embedder != nil {
		register = append(register, tools.NewTextEmbedder(embedder))
	}

	eng := &engine{toolset: toolset}

	if cfg.Vector.Host != "" {
		index, err := vector.NewIndex(vector.Config{
			Host:   cfg.Vector.Host,
			Scheme: cfg.Vector.Scheme,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init vector index: %w", err)
		}
		eng.index = index
		register = append(register, tools.NewVectorWriter(index))
	}

	for _, tool := range register {
		if err := toolset.Register(tool); err != nil {
			return nil, fmt.Errorf("register %s: %w", tool.Descriptor().ToolID, err)
		}
	}

	metrics := observability.InitMetrics()
	execOpts := []dag.ExecOption{dag.WithEngineMetrics(metrics)}

	if cfg.Storage.Path != "" {
		storeCfg := badger.DefaultConfig()
		storeCfg.Path = cfg.Storage.Path
		storeCfg.Logger = logger
		store, err := badger.Open(storeCfg)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		eng.store = store

		offloader, err := badger.NewPayloadStore(store, metrics)
		if err != nil {
			store.Close()
			return nil, err
		}
		execOpts = append(execOpts, dag.WithStateOptions(
			pipeline.WithOffloader(offloader, cfg.Storage.OffloadThresholdBytes),
		))
	}

	executor, err := dag.NewExecutor(toolset, logger, execOpts...)
	if err != nil {
		eng.close()
		return nil, err
	}
	eng.executor = executor

	contracts, err := contract.NewStore(logger)
	if err != nil {
		eng.close()
		return nil, err
	}
	eng.contracts = contracts

	validator := contract.NewValidator(contracts, logger)
	if eng.index != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		validator.SetCondition("vector_index_reachable", eng.index.Ready(ctx))
		cancel()
	}
	eng.validator = validator

	return eng, nil
}

// close releases the engine's owned resources.
func (e *engine) close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			slog.Warn("closing storage failed", "error", err)
		}
	}
}
