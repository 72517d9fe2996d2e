// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/graphforge/services/forge/observability"
	"github.com/AleutianAI/graphforge/services/forge/pipeline"
	"github.com/AleutianAI/graphforge/services/forge/tools"
)

var (
	tracer = otel.Tracer("graphforge.dag")
	meter  = otel.Meter("graphforge.dag")
)

// DefaultStepTimeout bounds a single tool invocation.
const DefaultStepTimeout = 60 * time.Second

// StepResult is the per-step detail of one run.
type StepResult struct {
	StepID    string        `json:"step_id"`
	ToolID    string        `json:"tool_id"`
	Status    Status        `json:"status"`
	StageName string        `json:"stage_name,omitempty"`
	Summary   string        `json:"summary,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// Result is the aggregate outcome of one run. Every response carries both
// the Success flag and the per-step detail list, never a bare boolean.
type Result struct {
	DAGID          string              `json:"dag_id"`
	RunID          string              `json:"run_id"`
	TotalSteps     int                 `json:"total_steps"`
	CompletedSteps int                 `json:"completed_steps"`
	FailedSteps    int                 `json:"failed_steps"`
	SkippedSteps   int                 `json:"skipped_steps"`
	Duration       time.Duration       `json:"execution_time"`
	StepResults    []StepResult        `json:"per_step_results"`
	FinalState     []pipeline.Metadata `json:"final_state_snapshot"`
	Warnings       []string            `json:"warnings,omitempty"`
	Error          string              `json:"error,omitempty"`
	Success        bool                `json:"success"`
}

// Executor runs DAGs against a toolset with parallelism and observability.
//
// Description:
//
//	The scheduler loops over ready steps (all dependencies succeeded, not
//	yet run) and executes them concurrently. One branch's failure never
//	stops independent branches; dependents of a failed step are marked
//	skipped. The loop is bounded at twice the step count, so a DAG that
//	cannot progress terminates with a structural error instead of
//	spinning.
//
// Thread Safety:
//
//	Safe for concurrent use. Multiple runs can share one Executor; each
//	run owns its own pipeline state.
type Executor struct {
	toolset     *tools.Toolset
	logger      *slog.Logger
	stepTimeout time.Duration
	stateOpts   []pipeline.Option
	engine      *observability.EngineMetrics

	// Metrics (initialized lazily)
	metricsOnce   sync.Once
	stepLatency   metric.Float64Histogram
	stepSuccesses metric.Int64Counter
	stepFailures  metric.Int64Counter
	activeSteps   metric.Int64UpDownCounter
	runLatency    metric.Float64Histogram
}

// ExecOption configures an Executor.
type ExecOption func(*Executor)

// WithStepTimeout overrides the per-step timeout.
func WithStepTimeout(d time.Duration) ExecOption {
	return func(e *Executor) {
		if d > 0 {
			e.stepTimeout = d
		}
	}
}

// WithStateOptions passes options through to each run's pipeline state,
// e.g. a badger-backed offloader.
func WithStateOptions(opts ...pipeline.Option) ExecOption {
	return func(e *Executor) { e.stateOpts = opts }
}

// WithEngineMetrics wires the Prometheus engine metrics.
func WithEngineMetrics(m *observability.EngineMetrics) ExecOption {
	return func(e *Executor) { e.engine = m }
}

// NewExecutor creates an executor over a toolset.
//
// Inputs:
//
//	toolset - Tool instances plus their registry. Must not be nil.
//	logger - Logger for run logs. If nil, uses slog.Default().
func NewExecutor(toolset *tools.Toolset, logger *slog.Logger, opts ...ExecOption) (*Executor, error) {
	if toolset == nil {
		return nil, fmt.Errorf("%w: toolset must not be nil", ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Executor{
		toolset:     toolset,
		logger:      logger,
		stepTimeout: DefaultStepTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// initMetrics lazily initializes OTel metrics.
// Logs failures and continues; execution never blocks on observability.
func (e *Executor) initMetrics() {
	e.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		e.stepLatency, err = meter.Float64Histogram("forge_step_duration_seconds",
			metric.WithDescription("Time spent executing each pipeline step"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "step_latency: "+err.Error())
		}

		e.stepSuccesses, err = meter.Int64Counter("forge_step_success_total",
			metric.WithDescription("Number of successful step executions"),
		)
		if err != nil {
			initErrors = append(initErrors, "step_successes: "+err.Error())
		}

		e.stepFailures, err = meter.Int64Counter("forge_step_failure_total",
			metric.WithDescription("Number of failed step executions"),
		)
		if err != nil {
			initErrors = append(initErrors, "step_failures: "+err.Error())
		}

		e.activeSteps, err = meter.Int64UpDownCounter("forge_active_steps",
			metric.WithDescription("Number of currently executing steps"),
		)
		if err != nil {
			initErrors = append(initErrors, "active_steps: "+err.Error())
		}

		e.runLatency, err = meter.Float64Histogram("forge_run_duration_seconds",
			metric.WithDescription("Total pipeline run time"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "run_latency: "+err.Error())
		}

		if len(initErrors) > 0 {
			e.logger.Error("failed to initialize some executor metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// runState is the executor's private view of one run in flight.
type runState struct {
	mu         sync.Mutex
	statuses   map[string]Status
	stageNames map[string]string
	results    map[string]*StepResult
	toolUses   map[string]int
}

func (rs *runState) status(id string) Status {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.statuses[id]
}

func (rs *runState) setStatus(id string, s Status) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.statuses[id] = s
}

// stageNameFor assigns the instance-qualified stage name for a tool use.
// First use keeps the bare tool id; reuse gets a #n suffix.
func (rs *runState) stageNameFor(toolID string) string {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.toolUses[toolID]++
	if rs.toolUses[toolID] == 1 {
		return toolID
	}
	return fmt.Sprintf("%s#%d", toolID, rs.toolUses[toolID])
}

// Run executes a DAG from start to completion.
//
// Description:
//
//	Validates the DAG first; a structurally invalid DAG runs zero steps.
//	Then loops: find ready steps, run them concurrently, repeat. Ends
//	when all steps are terminal, the iteration cap is hit, or no step can
//	ever become ready (deadlock).
//
// Outputs:
//
//	*Result - Aggregate flag plus per-step detail. Never nil.
//	error - Structural failures only (validation, deadlock, cap, context).
//	        Per-step failures are reported inside the Result instead.
func (e *Executor) Run(ctx context.Context, d *DAG) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if d == nil {
		return nil, fmt.Errorf("%w: dag must not be nil", ErrInvalidInput)
	}

	e.initMetrics()

	ctx, span := tracer.Start(ctx, "forge.Run",
		trace.WithAttributes(
			attribute.String("dag.id", d.ID),
			attribute.String("dag.name", d.Name),
			attribute.Int("dag.step_count", len(d.Steps)),
		),
	)
	defer span.End()

	start := time.Now()
	runID := uuid.NewString()[:12]

	result := &Result{
		DAGID:      d.ID,
		RunID:      runID,
		TotalSteps: len(d.Steps),
	}

	validation := d.Validate(e.toolset.Registry())
	result.Warnings = validation.Warnings
	if !validation.Valid {
		err := fmt.Errorf("%w: %v", ErrInvalidDAG, validation.Errors)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		result.Error = err.Error()
		result.Duration = time.Since(start)
		e.recordRun(ctx, result, nil)
		return result, err
	}

	e.logger.Info("run started",
		slog.String("dag", d.Name),
		slog.String("run_id", runID),
		slog.Int("steps", len(d.Steps)),
	)

	state := pipeline.NewState(runID, e.stateOpts...)
	rs := &runState{
		statuses:   make(map[string]Status, len(d.Steps)),
		stageNames: make(map[string]string),
		results:    make(map[string]*StepResult, len(d.Steps)),
		toolUses:   make(map[string]int),
	}
	for _, step := range d.Steps {
		rs.statuses[step.ID] = StatusPending
	}

	var structural error
	maxIterations := 2 * len(d.Steps)

	for iteration := 0; ; iteration++ {
		select {
		case <-ctx.Done():
			structural = ctx.Err()
		default:
		}
		if structural != nil {
			break
		}

		e.propagateSkips(d, rs)
		if e.allTerminal(d, rs) {
			break
		}

		if iteration >= maxIterations {
			structural = fmt.Errorf("%w: %d iterations over %d steps",
				ErrIterationCap, iteration, len(d.Steps))
			break
		}

		ready := e.findReadySteps(d, rs)
		if len(ready) == 0 {
			structural = ErrNoProgress
			break
		}

		var g errgroup.Group
		for _, step := range ready {
			rs.setStatus(step.ID, StatusRunning)
			g.Go(func() error {
				e.executeStep(ctx, step, state, rs)
				return nil
			})
		}
		// Goroutines never return errors; failures land in step results.
		_ = g.Wait()
	}

	e.finishResult(result, d, rs, state, start)

	if structural != nil {
		span.RecordError(structural)
		span.SetStatus(codes.Error, structural.Error())
		result.Error = structural.Error()
		result.Success = false
		e.logger.Error("run ended with structural failure",
			slog.String("run_id", runID),
			slog.String("error", structural.Error()),
		)
		e.recordRun(ctx, result, state)
		return result, structural
	}

	if result.Success {
		span.SetStatus(codes.Ok, "")
		e.logger.Info("run completed",
			slog.String("run_id", runID),
			slog.Duration("duration", result.Duration),
			slog.Int("steps_completed", result.CompletedSteps),
		)
	} else {
		span.SetStatus(codes.Error, "one or more steps failed")
		e.logger.Warn("run completed with failures",
			slog.String("run_id", runID),
			slog.Int("failed", result.FailedSteps),
			slog.Int("skipped", result.SkippedSteps),
		)
	}
	e.recordRun(ctx, result, state)
	return result, nil
}

// propagateSkips marks pending steps whose dependencies can never succeed.
func (e *Executor) propagateSkips(d *DAG, rs *runState) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for changed := true; changed; {
		changed = false
		for _, step := range d.Steps {
			if rs.statuses[step.ID] != StatusPending {
				continue
			}
			for _, dep := range step.DependsOn {
				s := rs.statuses[dep]
				if s == StatusFailed || s == StatusSkipped {
					rs.statuses[step.ID] = StatusSkipped
					rs.results[step.ID] = &StepResult{
						StepID: step.ID,
						ToolID: step.ToolID,
						Status: StatusSkipped,
						Error:  fmt.Sprintf("dependency %s did not succeed", dep),
					}
					changed = true
					break
				}
			}
		}
	}
}

// allTerminal reports whether every step reached a final status.
func (e *Executor) allTerminal(d *DAG, rs *runState) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for _, step := range d.Steps {
		switch rs.statuses[step.ID] {
		case StatusSuccess, StatusFailed, StatusSkipped:
		default:
			return false
		}
	}
	return true
}

// findReadySteps returns pending steps whose dependencies all succeeded.
func (e *Executor) findReadySteps(d *DAG, rs *runState) []*Step {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	var ready []*Step
	for _, step := range d.Steps {
		if rs.statuses[step.ID] != StatusPending {
			continue
		}
		ok := true
		for _, dep := range step.DependsOn {
			if rs.statuses[dep] != StatusSuccess {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, step)
		}
	}
	return ready
}

// executeStep runs one step with observability and panic isolation.
func (e *Executor) executeStep(ctx context.Context, step *Step, state *pipeline.State, rs *runState) {
	ctx, span := tracer.Start(ctx, "forge.Step",
		trace.WithAttributes(
			attribute.String("step.id", step.ID),
			attribute.String("step.tool_id", step.ToolID),
			attribute.StringSlice("step.depends_on", step.DependsOn),
			attribute.String("run.id", state.RunID()),
		),
	)
	defer span.End()

	if e.activeSteps != nil {
		e.activeSteps.Add(ctx, 1)
		defer e.activeSteps.Add(ctx, -1)
	}
	if e.engine != nil {
		e.engine.StepStarted()
		defer e.engine.StepEnded()
	}

	sr := &StepResult{
		StepID:    step.ID,
		ToolID:    step.ToolID,
		StartedAt: time.Now().UTC(),
	}

	fail := func(msg string) {
		sr.Status = StatusFailed
		sr.Error = msg
		sr.Duration = time.Since(sr.StartedAt)
		span.SetStatus(codes.Error, msg)
		rs.mu.Lock()
		rs.statuses[step.ID] = StatusFailed
		rs.results[step.ID] = sr
		rs.mu.Unlock()

		if e.stepFailures != nil {
			e.stepFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("tool_id", step.ToolID)))
		}
		if e.engine != nil {
			e.engine.RecordStep(step.ToolID, "failed", sr.Duration.Seconds())
		}
		e.logger.Warn("step failed",
			slog.String("run_id", state.RunID()),
			slog.String("step", step.ID),
			slog.String("tool_id", step.ToolID),
			slog.String("error", msg),
		)
	}

	tool, err := e.toolset.Get(step.ToolID)
	if err != nil {
		fail(fmt.Sprintf("tool resolution: %v", err))
		return
	}

	if ok, reason := tool.CanProcess(ctx, state); !ok {
		// A not-ready tool is a hard failure, never a silent skip.
		fail(fmt.Sprintf("cannot process: %s", reason))
		return
	}

	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	output, err := e.processSafely(stepCtx, tool, state, step.Parameters)
	if err != nil {
		if stepCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("timeout after %s: %w", e.stepTimeout, err)
		}
		fail(err.Error())
		return
	}

	stageName := rs.stageNameFor(step.ToolID)
	deps := e.dependencyStages(step, rs)
	if err := state.AddStage(ctx, stageName, output.Payload, output.DataType, step.ToolID, deps); err != nil {
		fail(fmt.Sprintf("record stage: %v", err))
		return
	}

	sr.Status = StatusSuccess
	sr.StageName = stageName
	sr.Summary = output.Summary
	sr.Duration = time.Since(sr.StartedAt)
	span.SetStatus(codes.Ok, "")

	rs.mu.Lock()
	rs.statuses[step.ID] = StatusSuccess
	rs.stageNames[step.ID] = stageName
	rs.results[step.ID] = sr
	rs.mu.Unlock()

	if e.stepLatency != nil {
		e.stepLatency.Record(ctx, sr.Duration.Seconds(),
			metric.WithAttributes(attribute.String("tool_id", step.ToolID)))
	}
	if e.stepSuccesses != nil {
		e.stepSuccesses.Add(ctx, 1, metric.WithAttributes(attribute.String("tool_id", step.ToolID)))
	}
	if e.engine != nil {
		e.engine.RecordStep(step.ToolID, "success", sr.Duration.Seconds())
	}

	e.logger.Debug("step completed",
		slog.String("run_id", state.RunID()),
		slog.String("step", step.ID),
		slog.String("stage", stageName),
		slog.Duration("duration", sr.Duration),
	)
}

// processSafely invokes the tool, converting panics into errors.
func (e *Executor) processSafely(
	ctx context.Context,
	tool tools.Tool,
	state *pipeline.State,
	params map[string]any,
) (output *tools.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()

	output, err = tool.Process(ctx, state, params)
	if err == nil && output == nil {
		err = fmt.Errorf("tool returned neither output nor error")
	}
	return output, err
}

// dependencyStages maps a step's dependency step ids to their stage names.
func (e *Executor) dependencyStages(step *Step, rs *runState) []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	var deps []string
	for _, dep := range step.DependsOn {
		if name, ok := rs.stageNames[dep]; ok {
			deps = append(deps, name)
		}
	}
	return deps
}

// finishResult fills the aggregate counters and snapshot.
func (e *Executor) finishResult(result *Result, d *DAG, rs *runState, state *pipeline.State, start time.Time) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for _, step := range d.Steps {
		sr := rs.results[step.ID]
		if sr == nil {
			sr = &StepResult{StepID: step.ID, ToolID: step.ToolID, Status: rs.statuses[step.ID]}
		}
		result.StepResults = append(result.StepResults, *sr)

		switch rs.statuses[step.ID] {
		case StatusSuccess:
			result.CompletedSteps++
		case StatusFailed:
			result.FailedSteps++
		case StatusSkipped:
			result.SkippedSteps++
		}
	}

	result.Duration = time.Since(start)
	result.FinalState = state.Snapshot()
	result.Success = result.FailedSteps == 0 &&
		result.SkippedSteps == 0 &&
		result.CompletedSteps == result.TotalSteps
}

// recordRun emits run-level metrics.
func (e *Executor) recordRun(ctx context.Context, result *Result, state *pipeline.State) {
	if e.runLatency != nil {
		status := "failed"
		if result.Success {
			status = "success"
		}
		e.runLatency.Record(ctx, result.Duration.Seconds(),
			metric.WithAttributes(attribute.String("status", status)))
	}
	if e.engine != nil {
		var size int64
		if state != nil {
			size = state.TotalSize()
		}
		e.engine.RecordRun(result.Success, result.Duration.Seconds(), size)
	}
}
