// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the language-model-backed extraction client used by
// the built-in extraction tools, plus a deterministic heuristic fallback
// for offline use and tests.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/graphforge/services/forge/kg"
)

// Extractor extracts entities and relations from raw text.
//
// Implementations must be safe for concurrent use.
type Extractor interface {
	ExtractEntities(ctx context.Context, text string) ([]kg.Entity, error)
	ExtractRelations(ctx context.Context, text string, entities []kg.Entity) ([]kg.Relation, error)
}

// Embedder turns text chunks into vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, chunks []string) (*kg.EmbeddingBatch, error)
}

const (
	defaultChatModel      = "gpt-4o-mini"
	defaultEmbeddingModel = string(openai.SmallEmbedding3)
)

// Client is an OpenAI-backed Extractor and Embedder.
type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	logger         *slog.Logger
}

// NewClient creates a client from the environment.
//
// Description:
//
//	Reads OPENAI_API_KEY (required) and OPENAI_MODEL (optional, defaults
//	to gpt-4o-mini). Falls back to the container secret path when the
//	environment variable is unset.
//
// Outputs:
//
//	*Client - The configured client.
//	error - Non-nil if no API key can be found.
func NewClient(logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		raw, err := os.ReadFile(secretPath)
		if err != nil {
			logger.Error("OPENAI_API_KEY not set and secret not found", slog.String("path", secretPath))
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
		apiKey = strings.TrimSpace(string(raw))
		logger.Info("read OpenAI API key from container secrets")
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = defaultChatModel
		logger.Warn("OPENAI_MODEL not set, defaulting", slog.String("model", model))
	}

	logger.Info("initializing OpenAI extraction client", slog.String("model", model))
	return &Client{
		client:         openai.NewClient(apiKey),
		model:          model,
		embeddingModel: defaultEmbeddingModel,
		logger:         logger,
	}, nil
}

const entityPrompt = `Extract the named entities from the text below.
Respond with ONLY a JSON array of objects with fields "name" and "label",
where label is one of ORG, PERSON, LOC, DATE, MISC.

Text:
%s`

const relationPrompt = `Extract subject-predicate-object relations from the
text below, restricted to the listed entities. Respond with ONLY a JSON array
of objects with fields "subject", "predicate", "object".

Entities: %s

Text:
%s`

// ExtractEntities asks the model for named entities.
//
// Outputs:
//
//	[]kg.Entity - Parsed entities.
//	error - Non-nil if the API call fails or the response is unparseable.
func (c *Client) ExtractEntities(ctx context.Context, text string) ([]kg.Entity, error) {
	content, err := c.complete(ctx, fmt.Sprintf(entityPrompt, text))
	if err != nil {
		return nil, err
	}

	var entities []kg.Entity
	if err := json.Unmarshal([]byte(stripFences(content)), &entities); err != nil {
		return nil, fmt.Errorf("parse entity response: %w", err)
	}
	c.logger.Debug("entities extracted", slog.Int("count", len(entities)))
	return entities, nil
}

// ExtractRelations asks the model for relations over known entities.
func (c *Client) ExtractRelations(ctx context.Context, text string, entities []kg.Entity) ([]kg.Relation, error) {
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}

	content, err := c.complete(ctx, fmt.Sprintf(relationPrompt, strings.Join(names, ", "), text))
	if err != nil {
		return nil, err
	}

	var relations []kg.Relation
	if err := json.Unmarshal([]byte(stripFences(content)), &relations); err != nil {
		return nil, fmt.Errorf("parse relation response: %w", err)
	}
	c.logger.Debug("relations extracted", slog.Int("count", len(relations)))
	return relations, nil
}

// Embed creates vector embeddings for text chunks.
func (c *Client) Embed(ctx context.Context, chunks []string) (*kg.EmbeddingBatch, error) {
	if len(chunks) == 0 {
		return &kg.EmbeddingBatch{Model: c.embeddingModel}, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: chunks,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI embeddings call failed: %w", err)
	}
	if len(resp.Data) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d chunks, got %d vectors", len(chunks), len(resp.Data))
	}

	batch := &kg.EmbeddingBatch{Model: c.embeddingModel}
	for i, item := range resp.Data {
		batch.Chunks = append(batch.Chunks, kg.EmbeddedChunk{
			Text:   chunks[i],
			Vector: item.Embedding,
		})
	}
	return batch, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a precise information extraction system."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		c.logger.Error("OpenAI API call failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// stripFences removes a markdown code fence the model sometimes wraps
// JSON responses in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
