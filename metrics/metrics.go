package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/infra-ci/matrixrun/types"
)

const (
	MetricsNamespace = "matrixrun"
)

var (
	Debug                bool = true
	validStatuses             = []types.JobStatus{types.JobStatusPass, types.JobStatusFail, types.JobStatusSkip}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "jobs_total",
		Help:      "Count of executed jobs",
	}, []string{
		"run_id",
		"job",
		"status",
		"optional",
	})

	runVerdicts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_verdicts",
		Help:      "Verdict of orchestration runs",
	}, []string{
		"run_id",
		"result",
	})

	runJobsPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_jobs_passed",
		Help:      "Number of passed jobs per run",
	}, []string{
		"run_id",
	})

	runJobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_jobs_failed",
		Help:      "Number of failed jobs per run",
	}, []string{
		"run_id",
	})

	runJobsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_jobs_skipped",
		Help:      "Number of skipped jobs per run",
	}, []string{
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of orchestration runs",
	}, []string{
		"run_id",
	})

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "uploads_total",
		Help:      "Count of artifact uploads",
	}, []string{
		"run_id",
		"result",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordJob(runID string, job string, status types.JobStatus, optional bool) {
	if !isValidStatus(status) {
		log.Error("RecordJob - invalid status", "status", status)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "jobs_total",
			"run_id", runID,
			"job", job,
			"status", status,
			"optional", optional)
	}
	jobsTotal.WithLabelValues(runID, job, string(status), strconv.FormatBool(optional)).Inc()
}

func RecordRun(verdict types.RunVerdict) {
	runVerdicts.WithLabelValues(verdict.RunID, string(verdict.Status())).Set(1)
	runJobsPassed.WithLabelValues(verdict.RunID).Add(float64(verdict.Stats.Passed))
	runJobsFailed.WithLabelValues(verdict.RunID).Add(float64(verdict.Stats.Failed))
	runJobsSkipped.WithLabelValues(verdict.RunID).Add(float64(verdict.Stats.Skipped))
	runDuration.WithLabelValues(verdict.RunID).Set(verdict.WallClockTime.Seconds())
}

func RecordUpload(runID string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	uploadsTotal.WithLabelValues(runID, result).Inc()
}

func isValidStatus(status types.JobStatus) bool {
	return slices.Contains(validStatuses, status)
}
