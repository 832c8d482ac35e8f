package types

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the possible states of a job execution
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusPass    JobStatus = "pass"
	JobStatusFail    JobStatus = "fail"
	JobStatusSkip    JobStatus = "skip"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusPass, JobStatusFail, JobStatusSkip:
		return true
	}
	return false
}

// JobResult captures the outcome of executing one Job.
// It is created by the executor and read-only thereafter.
type JobResult struct {
	Job      Job
	Status   JobStatus
	Err      error         // Execution failure or environment-unavailable detail
	Duration time.Duration // Job execution time
	Stdout   string        // Captured harness output for failing jobs
	Coverage []byte        // Raw coverage payload, empty when the harness produced none

	// UploadWarning records a transport-level upload failure. It never
	// affects the run verdict.
	UploadWarning error
}

// VerdictStats tracks aggregate counts over all job results.
type VerdictStats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// RunVerdict is the aggregate over all JobResults of one run.
// It is computed once, after every dispatched job has produced a result
// or been declared abandoned.
type RunVerdict struct {
	RunID         string
	Failing       bool
	FailingJobs   []string // Display labels of verdict-causing jobs, in job order
	Stats         VerdictStats
	Duration      time.Duration // Sum of individual job durations
	WallClockTime time.Duration
}

// Status maps the verdict to a job-status-style value for display and
// metrics: fail when failing, skip when nothing ran, pass otherwise.
func (v RunVerdict) Status() JobStatus {
	if v.Failing {
		return JobStatusFail
	}
	if v.Stats.Passed == 0 && v.Stats.Failed == 0 {
		return JobStatusSkip
	}
	return JobStatusPass
}

func (v RunVerdict) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %s (%d jobs: %d passed, %d failed, %d skipped) in %.1fs",
		v.RunID, v.Status(), v.Stats.Total, v.Stats.Passed, v.Stats.Failed, v.Stats.Skipped,
		v.WallClockTime.Seconds())
	if len(v.FailingJobs) > 0 {
		fmt.Fprintf(&b, "\nfailing jobs: %s", strings.Join(v.FailingJobs, ", "))
	}
	return b.String()
}
