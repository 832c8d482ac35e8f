package runner

import (
	"time"

	"github.com/infra-ci/matrixrun/types"
)

// Aggregate folds the complete set of job results into a run verdict.
//
// Policy: an optional job never contributes to overall failure; its
// failure is recorded for visibility but does not flip the verdict. A
// failing non-optional job flips the verdict to failing. A skipped
// non-optional job is treated the same as a failed one: a mandatory job
// that never ran is a broken guarantee, not a neutral outcome.
//
// The fold never short-circuits, so the verdict names every failing job,
// not just the first.
func Aggregate(runID string, results []*types.JobResult, wallClock time.Duration) types.RunVerdict {
	verdict := types.RunVerdict{
		RunID:         runID,
		WallClockTime: wallClock,
	}

	for _, result := range results {
		verdict.Stats.Total++
		verdict.Duration += result.Duration

		switch result.Status {
		case types.JobStatusPass:
			verdict.Stats.Passed++
		case types.JobStatusSkip:
			verdict.Stats.Skipped++
		default:
			verdict.Stats.Failed++
		}

		if result.Job.Optional {
			continue
		}
		if result.Status == types.JobStatusFail || result.Status == types.JobStatusSkip {
			verdict.Failing = true
			verdict.FailingJobs = append(verdict.FailingJobs, result.Job.DisplayLabel)
		}
	}

	return verdict
}
