// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/graphforge/services/forge/kg"
	"github.com/AleutianAI/graphforge/services/forge/observability"
)

// refPrefix marks payload references produced by this store.
const refPrefix = "sha256:"

// payloadKeyPrefix namespaces offloaded payloads in the key space.
const payloadKeyPrefix = "payload/"

// envelope wraps an offloaded payload with its concrete kind so Get can
// restore the type tools expect, not a generic JSON value.
type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// PayloadStore is a content-addressed offload store for oversized
// pipeline payloads. It implements pipeline.Offloader.
//
// Description:
//
//	Payloads are keyed by the SHA-256 of their serialized form, so equal
//	payloads share one record and repeated offloads are idempotent. The
//	store is a cache scoped to the process lifetime, not durable run
//	state.
//
// Thread Safety: safe for concurrent use.
type PayloadStore struct {
	store   *Store
	metrics *observability.EngineMetrics
}

// NewPayloadStore creates a payload store over an open embedded store.
func NewPayloadStore(store *Store, metrics *observability.EngineMetrics) (*PayloadStore, error) {
	if store == nil {
		return nil, errors.New("store must not be nil")
	}
	return &PayloadStore{store: store, metrics: metrics}, nil
}

// Put stores a payload and returns its content-addressed reference.
func (p *PayloadStore) Put(ctx context.Context, payload any) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	kind, data, err := encodePayload(payload)
	if err != nil {
		return "", 0, err
	}

	env, err := json.Marshal(envelope{Kind: kind, Data: data})
	if err != nil {
		return "", 0, fmt.Errorf("wrap payload: %w", err)
	}

	sum := sha256.Sum256(env)
	hash := hex.EncodeToString(sum[:])
	key := []byte(payloadKeyPrefix + hash)

	err = p.store.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(key); err == nil {
			// Same content already present.
			return nil
		}
		return txn.Set(key, env)
	})
	if err != nil {
		return "", 0, fmt.Errorf("store payload %s: %w", hash[:12], err)
	}

	if p.metrics != nil {
		p.metrics.RecordOffload()
	}
	return refPrefix + hash, int64(len(env)), nil
}

// Get resolves a reference back into its typed payload.
func (p *PayloadStore) Get(ctx context.Context, ref string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, ok := strings.CutPrefix(ref, refPrefix)
	if !ok {
		return nil, fmt.Errorf("malformed payload ref %q", ref)
	}

	raw, err := p.store.GetValue(payloadKeyPrefix + hash)
	if err != nil {
		return nil, fmt.Errorf("resolve payload ref %s: %w", hash[:12], err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unwrap payload %s: %w", hash[:12], err)
	}
	return decodePayload(env)
}

// encodePayload serializes a payload and names its concrete kind.
func encodePayload(payload any) (string, json.RawMessage, error) {
	var kind string
	switch payload.(type) {
	case string:
		kind = "string"
	case []byte:
		kind = "bytes"
	case []kg.Entity:
		kind = "entities"
	case []kg.Relation:
		kind = "relations"
	case *kg.Graph:
		kind = "graph"
	case *kg.Table:
		kind = "table"
	case *kg.EmbeddingBatch:
		kind = "embedding_batch"
	case *kg.Txn:
		kind = "txn"
	default:
		kind = "json"
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("serialize %s payload: %w", kind, err)
	}
	return kind, data, nil
}

// decodePayload restores the concrete type recorded at Put time.
func decodePayload(env envelope) (any, error) {
	unmarshal := func(v any) (any, error) {
		if err := json.Unmarshal(env.Data, v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
		}
		return v, nil
	}

	switch env.Kind {
	case "string":
		var s string
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return nil, fmt.Errorf("decode string payload: %w", err)
		}
		return s, nil
	case "bytes":
		var b []byte
		if err := json.Unmarshal(env.Data, &b); err != nil {
			return nil, fmt.Errorf("decode bytes payload: %w", err)
		}
		return b, nil
	case "entities":
		var v []kg.Entity
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("decode entities payload: %w", err)
		}
		return v, nil
	case "relations":
		var v []kg.Relation
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("decode relations payload: %w", err)
		}
		return v, nil
	case "graph":
		return unmarshal(&kg.Graph{})
	case "table":
		return unmarshal(&kg.Table{})
	case "embedding_batch":
		return unmarshal(&kg.EmbeddingBatch{})
	case "txn":
		return unmarshal(&kg.Txn{})
	default:
		var v any
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
		}
		return v, nil
	}
}
