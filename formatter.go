package matrixrun

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/infra-ci/matrixrun/runner"
	"github.com/infra-ci/matrixrun/types"
)

// printResultsTable prints the run's results to the console, one row
// per job in matrix order.
func (o *Orchestrator) printResultsTable(result *runner.RunResult) {
	o.config.Log.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Matrix Run Results (%s)", formatDuration(result.WallClockTime)))

	t.AppendHeader(table.Row{
		"#", "Job", "Runtime", "OS", "Subsets", "Optional", "Duration", "Status", "Error",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Job", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, jobResult := range result.Results {
		errorMsg := ""
		if jobResult.Err != nil {
			errorMsg = extractKeyErrorMessage(jobResult.Err)
		}

		t.AppendRow(table.Row{
			jobResult.Job.Index,
			jobResult.Job.DisplayLabel,
			jobResult.Job.RuntimeVersion,
			jobResult.Job.OS,
			subsetsString(jobResult.Job),
			optionalString(jobResult.Job.Optional),
			formatDuration(jobResult.Duration),
			getResultString(jobResult.Status),
			errorMsg,
		})
	}

	// Update the table style setting based on the verdict
	switch result.Verdict.Status() {
	case types.JobStatusPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case types.JobStatusSkip:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"",
		"TOTAL",
		"",
		"",
		fmt.Sprintf("%d jobs", result.Verdict.Stats.Total),
		"",
		formatDuration(result.WallClockTime),
		getResultString(result.Verdict.Status()),
		fmt.Sprintf("%d passed, %d failed, %d skipped",
			result.Verdict.Stats.Passed, result.Verdict.Stats.Failed, result.Verdict.Stats.Skipped),
	})

	t.Render()
}

// extractKeyErrorMessage extracts the most pertinent part of the error
// message for display: the first line, truncated.
func extractKeyErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()
	if idx := strings.Index(errStr, "\n"); idx != -1 {
		errStr = errStr[:idx]
	}
	if len(errStr) > 80 {
		return errStr[:70] + "..."
	}
	return errStr
}

func subsetsString(job types.Job) string {
	active := job.Capabilities.Active()
	if len(active) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(active))
	for _, c := range active {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ",")
}

func optionalString(optional bool) string {
	if optional {
		return "yes"
	}
	return ""
}

// getResultString returns a colored string representing the job result
func getResultString(status types.JobStatus) string {
	switch status {
	case types.JobStatusPass:
		return "✓ pass"
	case types.JobStatusSkip:
		return "- skip"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
