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
	"strings"
	"testing"

	"github.com/AleutianAI/graphforge/services/forge/kg"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(InMemoryConfig())
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatal("expected error for persistent store without a path")
	}
}

func TestPayloadStoreRoundTripString(t *testing.T) {
	ps, err := NewPayloadStore(newTestStore(t), nil)
	if err != nil {
		t.Fatalf("NewPayloadStore: %v", err)
	}

	ref, size, err := ps.Put(context.Background(), "a large text payload")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(ref, "sha256:") {
		t.Fatalf("ref %q should carry the hash prefix", ref)
	}
	if size <= 0 {
		t.Fatalf("size = %d, want positive", size)
	}

	got, err := ps.Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "a large text payload" {
		t.Fatalf("round trip mismatch: %v", got)
	}
}

func TestPayloadStoreRoundTripGraph(t *testing.T) {
	ps, _ := NewPayloadStore(newTestStore(t), nil)

	in := &kg.Graph{
		Nodes:    []kg.Node{{ID: "apple_inc", Name: "Apple Inc", Label: kg.LabelOrg}},
		Edges:    []kg.Edge{{From: "steve_jobs", To: "apple_inc", Label: "FOUNDED"}},
		Enriched: true,
	}
	ref, _, err := ps.Put(context.Background(), in)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := ps.Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	out, ok := got.(*kg.Graph)
	if !ok {
		t.Fatalf("resolved payload is %T, want *kg.Graph", got)
	}
	if len(out.Nodes) != 1 || out.Nodes[0].ID != "apple_inc" || !out.Enriched {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

// Equal content must produce equal references: the store is
// content-addressed and double puts are idempotent.
func TestPayloadStoreContentAddressing(t *testing.T) {
	ps, _ := NewPayloadStore(newTestStore(t), nil)

	ref1, _, err := ps.Put(context.Background(), "same payload")
	if err != nil {
		t.Fatalf("first Put: %v", err)
	}
	ref2, _, err := ps.Put(context.Background(), "same payload")
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if ref1 != ref2 {
		t.Fatalf("refs differ: %s vs %s", ref1, ref2)
	}

	ref3, _, _ := ps.Put(context.Background(), "different payload")
	if ref3 == ref1 {
		t.Fatal("different content must yield a different ref")
	}
}

func TestPayloadStoreMalformedRef(t *testing.T) {
	ps, _ := NewPayloadStore(newTestStore(t), nil)
	if _, err := ps.Get(context.Background(), "not-a-ref"); err == nil {
		t.Fatal("expected error for malformed ref")
	}
}

func TestApplyTxn(t *testing.T) {
	store := newTestStore(t)

	txn := &kg.Txn{
		Target: "badger",
		Ops: []kg.TxnOp{
			{Kind: "put_node", Key: "node/apple_inc", Value: []byte(`{"id":"apple_inc"}`)},
			{Kind: "put_edge", Key: "edge/steve_jobs/FOUNDED/apple_inc", Value: []byte(`{}`)},
		},
	}
	if err := store.ApplyTxn(context.Background(), txn); err != nil {
		t.Fatalf("ApplyTxn: %v", err)
	}

	got, err := store.GetValue("node/apple_inc")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if string(got) != `{"id":"apple_inc"}` {
		t.Fatalf("unexpected value %s", got)
	}
}

func TestApplyTxnWrongTarget(t *testing.T) {
	store := newTestStore(t)
	err := store.ApplyTxn(context.Background(), &kg.Txn{Target: "weaviate"})
	if err == nil {
		t.Fatal("expected target mismatch error")
	}
}

func TestApplyTxnUnknownOp(t *testing.T) {
	store := newTestStore(t)
	err := store.ApplyTxn(context.Background(), &kg.Txn{
		Target: "badger",
		Ops:    []kg.TxnOp{{Kind: "delete", Key: "x"}},
	})
	if err == nil {
		t.Fatal("expected unsupported op error")
	}
}
