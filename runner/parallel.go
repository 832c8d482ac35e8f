package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/infra-ci/matrixrun/environment"
	"github.com/infra-ci/matrixrun/types"
)

// executeJobs fans the jobs out over a bounded worker pool and waits for
// every dispatched job to produce a result or be declared abandoned.
// Jobs are independent: no shared mutable state, no ordering dependency.
// The result collection is append-only and safe under concurrent writes
// because each job writes exactly one slot identified by its own index,
// established at expansion time and never reused.
func (r *Runner) executeJobs(ctx context.Context, jobs []types.Job) []*types.JobResult {
	results := make([]*types.JobResult, len(jobs))

	workers := r.concurrency
	if workers <= 0 || workers > len(jobs) {
		workers = len(jobs)
	}

	workChan := make(chan types.Job)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range workChan {
				results[job.Index] = r.runJob(ctx, job)
			}
		}()
	}

	// Feed jobs; on cancellation the remaining jobs are never dispatched
	// and get finalized as abandoned below.
	for _, job := range jobs {
		select {
		case workChan <- job:
		case <-ctx.Done():
			r.log.Debug("Run cancelled while dispatching jobs", "job", job.DisplayLabel)
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(workChan)

	// Barrier: block until every in-flight job has finished.
	wg.Wait()

	// Cancellation abandons undispatched and interrupted jobs as Skipped;
	// completed results are retained and still contribute to the verdict.
	for i, job := range jobs {
		if results[i] == nil {
			results[i] = abandonedResult(job, ctx.Err())
		}
	}

	return results
}

// runJob resolves one job's environment and hands it to the executor.
func (r *Runner) runJob(ctx context.Context, job types.Job) *types.JobResult {
	if ctx.Err() != nil {
		return abandonedResult(job, ctx.Err())
	}

	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("job %s", job.DisplayLabel))
	defer span.End()

	env := environment.Build(job)

	result, err := r.executor.Execute(ctx, job, env)
	if err != nil {
		r.log.Error("Job execution failed", "job", job.DisplayLabel, "error", err)
		return &types.JobResult{
			Job:    job,
			Status: types.JobStatusFail,
			Err:    fmt.Errorf("job execution failed: %w", err),
		}
	}

	r.log.Info("Job finished", "job", job.DisplayLabel, "status", result.Status, "duration", result.Duration)
	return result
}

func abandonedResult(job types.Job, cause error) *types.JobResult {
	err := fmt.Errorf("job abandoned before completion")
	if cause != nil {
		err = fmt.Errorf("job abandoned: %w", cause)
	}
	return &types.JobResult{
		Job:    job,
		Status: types.JobStatusSkip,
		Err:    err,
	}
}
