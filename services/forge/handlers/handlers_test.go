// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/graphforge/services/forge/contract"
	"github.com/AleutianAI/graphforge/services/forge/dag"
	"github.com/AleutianAI/graphforge/services/forge/tools"
)

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

func newTestToolset(t *testing.T) *tools.Toolset {
	t.Helper()
	ts := tools.NewToolset(nil)
	for _, tool := range []tools.Tool{
		tools.NewTextLoader(),
		tools.NewEntityExtractor(nil),
		tools.NewRelationExtractor(nil),
		tools.NewGraphBuilder(),
		tools.NewGraphEnricher(),
		tools.NewTableConverter(),
	} {
		if err := ts.Register(tool); err != nil {
			t.Fatalf("register %s: %v", tool.Descriptor().ToolID, err)
		}
	}
	return ts
}

func newTestExecutor(t *testing.T, ts *tools.Toolset) *dag.Executor {
	t.Helper()
	executor, err := dag.NewExecutor(ts, nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return executor
}

func postJSON(t *testing.T, handler gin.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	router := gin.New()
	router.POST(target, handler)

	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func getPath(t *testing.T, route string, handler gin.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.GET(route, handler)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %s: %v", recorder.Body.String(), err)
	}
}

func TestHealthCheck(t *testing.T) {
	recorder := getPath(t, "/health", HealthCheck, "/health")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
}

func TestRunPipelineGoalDriven(t *testing.T) {
	ts := newTestToolset(t)
	handler := RunPipeline(newTestExecutor(t, ts), ts)

	recorder := postJSON(t, handler, "/v1/pipeline/run", RunRequest{
		SourceText: "Apple Inc. was founded by Steve Jobs.",
		TargetType: "GRAPH",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", recorder.Code, recorder.Body.String())
	}

	var result dag.Result
	decodeBody(t, recorder, &result)
	if !result.Success {
		t.Fatalf("run failed: %+v", result)
	}
	// source + entity_extractor + graph_builder
	if result.TotalSteps != 3 || result.CompletedSteps != 3 {
		t.Fatalf("steps = %d/%d, want 3/3", result.CompletedSteps, result.TotalSteps)
	}
	last := result.FinalState[len(result.FinalState)-1]
	if string(last.DataType) != "GRAPH" {
		t.Fatalf("final stage type = %s, want GRAPH", last.DataType)
	}
}

func TestRunPipelineExplicitSteps(t *testing.T) {
	ts := newTestToolset(t)
	handler := RunPipeline(newTestExecutor(t, ts), ts)

	recorder := postJSON(t, handler, "/v1/pipeline/run", RunRequest{
		Steps: []StepSpec{
			{StepID: "load", ToolID: "text_loader",
				Parameters: map[string]any{"text": "Apple Inc. was founded by Steve Jobs."}},
			{StepID: "extract", ToolID: "entity_extractor", DependsOn: []string{"load"}},
			{StepID: "build", ToolID: "graph_builder", DependsOn: []string{"extract"}},
		},
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", recorder.Code, recorder.Body.String())
	}

	var result dag.Result
	decodeBody(t, recorder, &result)
	if result.CompletedSteps != 3 || !result.Success {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRunPipelineUnreachableTarget(t *testing.T) {
	ts := newTestToolset(t)
	handler := RunPipeline(newTestExecutor(t, ts), ts)

	// No embedder registered, so EMBEDDINGS is unreachable from TEXT.
	recorder := postJSON(t, handler, "/v1/pipeline/run", RunRequest{
		SourceText: "some text",
		TargetType: "EMBEDDINGS",
	})
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", recorder.Code)
	}
}

func TestRunPipelineBadTargetType(t *testing.T) {
	ts := newTestToolset(t)
	handler := RunPipeline(newTestExecutor(t, ts), ts)

	recorder := postJSON(t, handler, "/v1/pipeline/run", RunRequest{
		SourceText: "some text",
		TargetType: "NOT_A_TYPE",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
}

func TestRunPipelineCircularSteps(t *testing.T) {
	ts := newTestToolset(t)
	handler := RunPipeline(newTestExecutor(t, ts), ts)

	recorder := postJSON(t, handler, "/v1/pipeline/run", RunRequest{
		Steps: []StepSpec{
			{StepID: "a", ToolID: "entity_extractor", DependsOn: []string{"b"}},
			{StepID: "b", ToolID: "graph_builder", DependsOn: []string{"a"}},
		},
	})
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "circular") {
		t.Fatalf("body should name the cycle: %s", recorder.Body.String())
	}
}

func TestListTools(t *testing.T) {
	ts := newTestToolset(t)
	recorder := getPath(t, "/v1/registry/tools", ListTools(ts.Registry()), "/v1/registry/tools")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}

	var body struct {
		Count int `json:"count"`
	}
	decodeBody(t, recorder, &body)
	if body.Count != 6 {
		t.Fatalf("count = %d, want 6", body.Count)
	}
}

func TestFindPaths(t *testing.T) {
	ts := newTestToolset(t)
	recorder := getPath(t, "/v1/registry/paths", FindPaths(ts.Registry()),
		"/v1/registry/paths?from=TEXT&to=GRAPH")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", recorder.Code, recorder.Body.String())
	}

	var body struct {
		Count    int        `json:"count"`
		Shortest []string   `json:"shortest"`
		Paths    [][]string `json:"paths"`
	}
	decodeBody(t, recorder, &body)
	if body.Count == 0 {
		t.Fatal("expected at least one path")
	}
	if len(body.Shortest) != 2 {
		t.Fatalf("shortest = %v, want [entity_extractor graph_builder]", body.Shortest)
	}
}

func TestFindPathsUnknownType(t *testing.T) {
	ts := newTestToolset(t)
	recorder := getPath(t, "/v1/registry/paths", FindPaths(ts.Registry()),
		"/v1/registry/paths?from=NOPE&to=GRAPH")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
}

func TestCompatibleSuccessorsNotFound(t *testing.T) {
	ts := newTestToolset(t)
	recorder := getPath(t, "/v1/registry/tools/:toolId/successors",
		CompatibleSuccessors(ts.Registry()), "/v1/registry/tools/no_such/successors")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
}

func TestValidateChainHandler(t *testing.T) {
	ts := newTestToolset(t)
	handler := ValidateChain(ts.Registry())

	recorder := postJSON(t, handler, "/v1/registry/chain/validate", ChainRequest{
		Chain: []string{"entity_extractor", "graph_builder", "graph_enricher"},
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var body struct {
		Valid bool `json:"valid"`
	}
	decodeBody(t, recorder, &body)
	if !body.Valid {
		t.Fatalf("chain should be valid: %s", recorder.Body.String())
	}

	recorder = postJSON(t, handler, "/v1/registry/chain/validate", ChainRequest{
		Chain: []string{"graph_builder", "entity_extractor"},
	})
	decodeBody(t, recorder, &body)
	if body.Valid {
		t.Fatal("type-discontinuous chain should be invalid")
	}
}

func TestValidateContractsReport(t *testing.T) {
	ts := newTestToolset(t)
	store, err := contract.NewStore(nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	validator := contract.NewValidator(store, nil)

	recorder := postJSON(t, ValidateContracts(validator, ts), "/v1/contracts/validate", gin.H{})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", recorder.Code, recorder.Body.String())
	}

	// Every stored contract is checked; tools without an instance get
	// schema checks only.
	var report contract.Report
	decodeBody(t, recorder, &report)
	if report.Summary.Total != 9 || report.Summary.Invalid != 0 {
		t.Fatalf("unexpected summary: %+v", report.Summary)
	}
}

func TestGetContractNotFound(t *testing.T) {
	store, err := contract.NewStore(nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	recorder := getPath(t, "/v1/contracts/:toolId", GetContract(store), "/v1/contracts/no_such")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
}
