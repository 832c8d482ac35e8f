// Package reporting renders run summaries for humans and files.
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/infra-ci/matrixrun/types"
)

const SummaryFilename = "summary.txt"

// WriteSummary renders the final run report: every job enumerated by
// display label with its status, followed by the verdict, with the
// verdict-causing failures called out separately.
func WriteSummary(w io.Writer, verdict types.RunVerdict, results []*types.JobResult) error {
	fmt.Fprintf(w, "Run %s\n", verdict.RunID)
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", 40))

	for _, result := range results {
		marker := ""
		if result.Job.Optional {
			marker = " (optional)"
		}
		fmt.Fprintf(w, "%-4s %s%s [%.1fs]\n",
			statusMarker(result.Status), result.Job.DisplayLabel, marker, result.Duration.Seconds())
		if result.Err != nil {
			fmt.Fprintf(w, "     %v\n", result.Err)
		}
		if result.UploadWarning != nil {
			fmt.Fprintf(w, "     warning: %v\n", result.UploadWarning)
		}
	}

	fmt.Fprintf(w, "\n%s\n", verdict.String())

	if verdict.Failing {
		fmt.Fprintf(w, "\nThe run failed because of these non-optional jobs:\n")
		for _, label := range verdict.FailingJobs {
			fmt.Fprintf(w, "  - %s\n", label)
		}
	}

	return nil
}

// SaveSummary writes the run summary into dir and returns the file path.
func SaveSummary(dir string, verdict types.RunVerdict, results []*types.JobResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating summary directory: %w", err)
	}

	path := filepath.Join(dir, SummaryFilename)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating summary file: %w", err)
	}
	defer f.Close()

	if err := WriteSummary(f, verdict, results); err != nil {
		return "", err
	}
	return path, nil
}

func statusMarker(status types.JobStatus) string {
	switch status {
	case types.JobStatusPass:
		return "✓"
	case types.JobStatusSkip:
		return "-"
	default:
		return "✗"
	}
}
