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

	"github.com/AleutianAI/graphforge/services/forge/datatype"
	"github.com/AleutianAI/graphforge/services/forge/kg"
	"github.com/AleutianAI/graphforge/services/forge/llm"
	"github.com/AleutianAI/graphforge/services/forge/pipeline"
	"github.com/AleutianAI/graphforge/services/forge/registry"
)

// EntityExtractor produces ENTITIES from the newest TEXT stage.
type EntityExtractor struct {
	Base
	extractor llm.Extractor
}

// NewEntityExtractor creates the entity_extractor tool.
//
// Inputs:
//
//	extractor - The extraction backend. Pass llm.NewHeuristicExtractor()
//	            for offline operation, or an OpenAI-backed llm.Client.
func NewEntityExtractor(extractor llm.Extractor) *EntityExtractor {
	if extractor == nil {
		extractor = llm.NewHeuristicExtractor()
	}
	return &EntityExtractor{
		Base: Base{Desc: registry.Descriptor{
			ToolID:     "entity_extractor",
			Name:       "Entity Extractor",
			Category:   registry.CategoryProcessing,
			InputTypes: []datatype.DataType{datatype.Text},
			OutputType: datatype.Entities,
			Weight:     0.9,
		}},
		extractor: extractor,
	}
}

// Process extracts entities from the newest TEXT stage.
func (t *EntityExtractor) Process(ctx context.Context, state *pipeline.State, _ map[string]any) (*Output, error) {
	payload, _, err := latestPayload(ctx, state, datatype.Text)
	if err != nil {
		return nil, err
	}
	text, ok := payload.(string)
	if !ok {
		return nil, fmt.Errorf("%w: TEXT stage holds %T, want string", ErrInvalidInput, payload)
	}

	entities, err := t.extractor.ExtractEntities(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("entity extraction: %w", err)
	}

	return &Output{
		Payload:  entities,
		DataType: datatype.Entities,
		Summary:  fmt.Sprintf("extracted %d entities", len(entities)),
	}, nil
}

// RelationExtractor produces RELATIONS from the newest ENTITIES stage and
// the TEXT stage it was derived from.
type RelationExtractor struct {
	Base
	extractor llm.Extractor
}

// NewRelationExtractor creates the relation_extractor tool.
func NewRelationExtractor(extractor llm.Extractor) *RelationExtractor {
	if extractor == nil {
		extractor = llm.NewHeuristicExtractor()
	}
	return &RelationExtractor{
		Base: Base{Desc: registry.Descriptor{
			ToolID:     "relation_extractor",
			Name:       "Relation Extractor",
			Category:   registry.CategoryProcessing,
			InputTypes: []datatype.DataType{datatype.Entities},
			OutputType: datatype.Relations,
			Weight:     0.8,
		}},
		extractor: extractor,
	}
}

// Process extracts relations restricted to the known entities.
func (t *RelationExtractor) Process(ctx context.Context, state *pipeline.State, _ map[string]any) (*Output, error) {
	entPayload, _, err := latestPayload(ctx, state, datatype.Entities)
	if err != nil {
		return nil, err
	}
	entities, err := asEntities(entPayload)
	if err != nil {
		return nil, err
	}

	// Relation extraction reads the source text too, when available.
	var text string
	if textPayload, _, err := latestPayload(ctx, state, datatype.Text); err == nil {
		text, _ = textPayload.(string)
	}

	relations, err := t.extractor.ExtractRelations(ctx, text, entities)
	if err != nil {
		return nil, fmt.Errorf("relation extraction: %w", err)
	}

	return &Output{
		Payload:  relations,
		DataType: datatype.Relations,
		Summary:  fmt.Sprintf("extracted %d relations", len(relations)),
	}, nil
}

// asEntities normalizes an ENTITIES payload.
func asEntities(payload any) ([]kg.Entity, error) {
	switch v := payload.(type) {
	case []kg.Entity:
		return v, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: ENTITIES stage holds %T, want []kg.Entity", ErrInvalidInput, payload)
	}
}
