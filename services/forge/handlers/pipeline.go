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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/graphforge/services/forge/dag"
	"github.com/AleutianAI/graphforge/services/forge/datatype"
	"github.com/AleutianAI/graphforge/services/forge/tools"
)

// sourceStepID names the injected loader step in goal-driven runs.
const sourceStepID = "source"

// StepSpec is one explicit step in a run request.
type StepSpec struct {
	StepID     string         `json:"step_id"`
	ToolID     string         `json:"tool_id"`
	DependsOn  []string       `json:"depends_on,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// RunRequest describes one pipeline run.
//
// Description:
//
//	Two modes. Goal-driven: give source_text (or source_path) and a
//	target_type; the shortest transformation chain is planned and a
//	text_loader step is prepended. Explicit: give steps and the DAG is
//	run exactly as written.
type RunRequest struct {
	SourceText string `json:"source_text,omitempty"`
	SourcePath string `json:"source_path,omitempty"`
	TargetType string `json:"target_type,omitempty"`

	Steps []StepSpec `json:"steps,omitempty"`
}

// RunPipeline handles POST /v1/pipeline/run.
func RunPipeline(executor *dag.Executor, toolset *tools.Toolset) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "RunPipeline")
		defer span.End()

		var request RunRequest
		if err := c.BindJSON(&request); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		d, err := buildDAG(&request, toolset)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			status := http.StatusBadRequest
			if errors.Is(err, dag.ErrNoPath) {
				status = http.StatusUnprocessableEntity
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		span.SetAttributes(
			attribute.String("dag.name", d.Name),
			attribute.Int("dag.steps", len(d.Steps)),
		)

		result, err := executor.Run(ctx, d)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("pipeline run rejected", "dag", d.Name, "error", err)
			// Structural rejection: the DAG never started. Result still
			// carries the validation errors when present.
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  err.Error(),
				"result": result,
			})
			return
		}

		slog.Info("pipeline run finished",
			"run_id", result.RunID,
			"completed", result.CompletedSteps,
			"failed", result.FailedSteps,
			"success", result.Success,
		)
		c.JSON(http.StatusOK, result)
	}
}

// buildDAG turns a run request into a validated-later DAG.
func buildDAG(request *RunRequest, toolset *tools.Toolset) (*dag.DAG, error) {
	if len(request.Steps) > 0 {
		d := dag.New("explicit_pipeline")
		for _, spec := range request.Steps {
			step := &dag.Step{
				ID:         spec.StepID,
				ToolID:     spec.ToolID,
				DependsOn:  spec.DependsOn,
				Parameters: spec.Parameters,
			}
			if err := d.AddStep(step); err != nil {
				return nil, err
			}
		}
		return d, nil
	}

	target, err := datatype.Parse(request.TargetType)
	if err != nil {
		return nil, err
	}
	if request.SourceText == "" && request.SourcePath == "" {
		return nil, errors.New("source_text or source_path is required")
	}

	d, err := dag.FromPath(toolset.Registry(), datatype.Text, target)
	if err != nil {
		return nil, err
	}

	params := map[string]any{}
	if request.SourceText != "" {
		params["text"] = request.SourceText
	} else {
		params["path"] = request.SourcePath
	}
	if err := d.WithSource(sourceStepID, "text_loader", params); err != nil {
		return nil, err
	}
	return d, nil
}
