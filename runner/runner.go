// Package runner executes resolved jobs through the external executor
// boundary and aggregates their results into a run verdict.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/infra-ci/matrixrun/types"
)

// Config contains runner configuration.
type Config struct {
	Log      log.Logger
	Executor Executor
	// Concurrency bounds the worker pool; 0 means one worker per job.
	Concurrency int
}

// Runner dispatches jobs and produces a RunResult per run.
type Runner struct {
	log         log.Logger
	executor    Executor
	concurrency int
	tracer      trace.Tracer
}

// RunResult bundles one run's results with its verdict.
type RunResult struct {
	RunID         string
	Results       []*types.JobResult
	Verdict       types.RunVerdict
	WallClockTime time.Duration
}

// NewRunner creates a runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency cannot be negative")
	}
	if cfg.Concurrency > 32 {
		cfg.Log.Warn("Very high concurrency requested", "concurrency", cfg.Concurrency)
	}

	return &Runner{
		log:         cfg.Log.New("component", "runner"),
		executor:    cfg.Executor,
		concurrency: cfg.Concurrency,
		tracer:      otel.Tracer("matrix runner"),
	}, nil
}

// Run executes all jobs and aggregates the results. It blocks until
// every dispatched job has produced a result or been abandoned; a
// cancelled context abandons in-flight jobs as Skipped while retaining
// results that already completed.
func (r *Runner) Run(ctx context.Context, jobs []types.Job) (*RunResult, error) {
	if len(jobs) == 0 {
		return nil, fmt.Errorf("no jobs to run")
	}

	runID := uuid.New().String()
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("run %s", runID))
	defer span.End()

	r.log.Info("Starting run", "run_id", runID, "totalJobs", len(jobs), "concurrency", r.concurrency)
	start := time.Now()

	results := r.executeJobs(ctx, jobs)

	wallClock := time.Since(start)
	verdict := Aggregate(runID, results, wallClock)

	r.log.Info("Run completed",
		"run_id", runID,
		"status", verdict.Status(),
		"passed", verdict.Stats.Passed,
		"failed", verdict.Stats.Failed,
		"skipped", verdict.Stats.Skipped,
		"duration", wallClock)

	return &RunResult{
		RunID:         runID,
		Results:       results,
		Verdict:       verdict,
		WallClockTime: wallClock,
	}, nil
}
