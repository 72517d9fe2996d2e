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
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
	"github.com/AleutianAI/graphforge/services/forge/llm"
	"github.com/AleutianAI/graphforge/services/forge/pipeline"
	"github.com/AleutianAI/graphforge/services/forge/registry"
)

// defaultChunkSize is the embedding chunk size in runes.
const defaultChunkSize = 1000

// TextEmbedder produces EMBEDDINGS from the newest TEXT stage.
type TextEmbedder struct {
	Base
	embedder llm.Embedder
}

// NewTextEmbedder creates the embedder tool.
//
// Inputs:
//
//	embedder - The embedding backend, typically an OpenAI-backed
//	           llm.Client. Must not be nil.
func NewTextEmbedder(embedder llm.Embedder) *TextEmbedder {
	return &TextEmbedder{
		Base: Base{Desc: registry.Descriptor{
			ToolID:     "embedder",
			Name:       "Text Embedder",
			Category:   registry.CategoryProcessing,
			InputTypes: []datatype.DataType{datatype.Text},
			OutputType: datatype.Embeddings,
			Weight:     0.9,
		}},
		embedder: embedder,
	}
}

// Process chunks the text and embeds each chunk.
func (t *TextEmbedder) Process(ctx context.Context, state *pipeline.State, _ map[string]any) (*Output, error) {
	if t.embedder == nil {
		return nil, fmt.Errorf("%w: embedder has no backend configured", ErrInvalidInput)
	}

	payload, _, err := latestPayload(ctx, state, datatype.Text)
	if err != nil {
		return nil, err
	}
	text, ok := payload.(string)
	if !ok {
		return nil, fmt.Errorf("%w: TEXT stage holds %T, want string", ErrInvalidInput, payload)
	}

	chunks := chunkText(text, defaultChunkSize)
	batch, err := t.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}

	return &Output{
		Payload:  batch,
		DataType: datatype.Embeddings,
		Summary:  fmt.Sprintf("embedded %d chunks with %s", len(batch.Chunks), batch.Model),
	}, nil
}

// chunkText splits text into rune-bounded chunks on whitespace where
// possible. Empty input yields no chunks.
func chunkText(text string, size int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= size {
			chunks = append(chunks, string(runes))
			break
		}
		cut := size
		for cut > size/2 && runes[cut] != ' ' && runes[cut] != '\n' {
			cut--
		}
		if cut == size/2 {
			cut = size
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[:cut])))
		runes = runes[cut:]
	}
	return chunks
}
