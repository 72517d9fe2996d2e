// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vector provides the Weaviate-backed vector index the
// vector_writer tool flushes embedding batches into.
package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/graphforge/services/forge/kg"
)

// ChunkClassName is the Weaviate class for embedded text chunks.
const ChunkClassName = "ForgeChunk"

// writeBatchSize caps one batcher call.
const writeBatchSize = 100

// Config holds the index connection settings.
type Config struct {
	// Host is the Weaviate host, e.g. "localhost:8081".
	Host string

	// Scheme is "http" or "https".
	Scheme string

	// Logger for index operations. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Index is the vector store the embedding pipeline writes into.
//
// Thread Safety: safe for concurrent use.
type Index struct {
	client *weaviate.Client
	logger *slog.Logger
}

// NewIndex creates an index client. It does not touch the network; call
// EnsureSchema before the first write.
func NewIndex(cfg Config) (*Index, error) {
	if cfg.Host == "" {
		return nil, errors.New("host must not be empty")
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.Host,
		Scheme: cfg.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	return &Index{client: client, logger: logger}, nil
}

// chunkSchema is the ForgeChunk class definition. Vectorizer is "none":
// vectors come from the embedder tool, never from Weaviate modules.
func chunkSchema() *models.Class {
	return &models.Class{
		Class:       ChunkClassName,
		Description: "Embedded text chunk produced by a pipeline run",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:         "text",
				DataType:     []string{"text"},
				Description:  "The chunk's source text",
				Tokenization: "word",
			},
			{
				Name:        "model",
				DataType:    []string{"text"},
				Description: "Embedding model that produced the vector",
			},
			{
				Name:        "chunkIndex",
				DataType:    []string{"int"},
				Description: "Position of the chunk within its batch",
			},
		},
	}
}

// EnsureSchema creates the chunk class if it doesn't exist. Idempotent.
func (i *Index) EnsureSchema(ctx context.Context) error {
	_, err := i.client.Schema().ClassGetter().WithClassName(ChunkClassName).Do(ctx)
	if err == nil {
		return nil
	}

	i.logger.Info("creating vector schema", slog.String("class", ChunkClassName))
	if err := i.client.Schema().ClassCreator().WithClass(chunkSchema()).Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", ChunkClassName, err)
	}
	return nil
}

// Ready reports whether the index answers its readiness probe.
func (i *Index) Ready(ctx context.Context) bool {
	ready, err := i.client.Misc().ReadyChecker().Do(ctx)
	return err == nil && ready
}

// WriteBatch stores an embedding batch and returns the stored count.
//
// Description:
//
//	Writes chunks in bounded batches. A per-object rejection counts
//	against the stored total but does not abort the remaining batches;
//	transport errors do.
func (i *Index) WriteBatch(ctx context.Context, batch *kg.EmbeddingBatch) (int, error) {
	if batch == nil || len(batch.Chunks) == 0 {
		return 0, nil
	}

	stored := 0
	for start := 0; start < len(batch.Chunks); start += writeBatchSize {
		if err := ctx.Err(); err != nil {
			return stored, err
		}

		end := start + writeBatchSize
		if end > len(batch.Chunks) {
			end = len(batch.Chunks)
		}

		objects := make([]*models.Object, 0, end-start)
		for idx, chunk := range batch.Chunks[start:end] {
			objects = append(objects, &models.Object{
				Class:  ChunkClassName,
				Vector: chunk.Vector,
				Properties: map[string]interface{}{
					"text":       chunk.Text,
					"model":      batch.Model,
					"chunkIndex": start + idx,
				},
			})
		}

		result, err := i.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
		if err != nil {
			return stored, fmt.Errorf("batch import failed: %w", err)
		}
		for _, obj := range result {
			if obj.Result != nil && obj.Result.Errors == nil {
				stored++
			}
		}
	}

	i.logger.Debug("vector batch stored",
		slog.Int("chunks", len(batch.Chunks)),
		slog.Int("stored", stored),
	)
	return stored, nil
}
