// Package logging writes captured harness output to per-job log files.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"

	"github.com/infra-ci/matrixrun/types"
)

// RunDirectoryPrefix is the standardized prefix for run directories.
const RunDirectoryPrefix = "run-"

// FileLogger handles writing job output to files under one run directory.
type FileLogger struct {
	baseDir string
	runDir  string
	runID   string
	mu      sync.Mutex
}

// NewFileLogger creates the run directory and a logger writing into it.
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	runDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run log directory: %w", err)
	}
	return &FileLogger{
		baseDir: baseDir,
		runDir:  runDir,
		runID:   runID,
	}, nil
}

// RunDir returns the directory holding this run's log files.
func (l *FileLogger) RunDir() string {
	return l.runDir
}

// LogJobOutput writes one job's captured harness output to
// <run-dir>/<label>.log. ANSI escape sequences are stripped so the files
// are greppable.
func (l *FileLogger) LogJobOutput(result *types.JobResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "job: %s\nruntime: %s\nos: %s\nstatus: %s\n",
		result.Job.DisplayLabel, result.Job.RuntimeVersion, result.Job.OS, result.Status)
	if result.Err != nil {
		fmt.Fprintf(&b, "error: %v\n", result.Err)
	}
	b.WriteString("\n")
	b.WriteString(stripansi.Strip(result.Stdout))

	path := filepath.Join(l.runDir, sanitizeFilename(result.Job.DisplayLabel)+".log")

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write job log %s: %w", path, err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
