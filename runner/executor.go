package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/infra-ci/matrixrun/environment"
	"github.com/infra-ci/matrixrun/types"
)

// CoverageFileKey is the binding the harness writes its coverage payload
// to. The executor provides a default path when the matrix does not.
const CoverageFileKey = "MATRIXRUN_COVERAGE_FILE"

// InterpreterKey carries the located interpreter path to the harness.
const InterpreterKey = "MATRIXRUN_INTERPRETER"

var _ Executor = (*HarnessExecutor)(nil)

// Executor realizes one job given its fully resolved environment
// bindings. Implementations return a terminal JobResult; an unavailable
// runtime is reported as a Skipped result, not an error. The error
// return is reserved for failures of the execution machinery itself.
type Executor interface {
	Execute(ctx context.Context, job types.Job, env environment.Bindings) (*types.JobResult, error)
}

// RuntimeLocator resolves a runtime version to an interpreter path on
// this host, returning an error when the runtime is not installed.
type RuntimeLocator func(runtimeVersion string) (string, error)

// DefaultRuntimeLocator looks up "<prefix><version>" on PATH, with any
// pre-release suffix stripped (a "3.10-preview" runtime installs as the
// "3.10" interpreter build).
func DefaultRuntimeLocator(prefix string) RuntimeLocator {
	return func(runtimeVersion string) (string, error) {
		base, _, _ := strings.Cut(runtimeVersion, "-")
		path, err := exec.LookPath(prefix + base)
		if err != nil {
			return "", err
		}
		return path, nil
	}
}

// HarnessExecutorConfig configures a HarnessExecutor.
type HarnessExecutorConfig struct {
	Log     log.Logger
	Harness string // Test harness entry point, run once per job
	WorkDir string
	Timeout time.Duration // Per-job timeout, 0 = none
	Locator RuntimeLocator
}

// HarnessExecutor runs the test harness as a subprocess with the job's
// environment bindings applied.
type HarnessExecutor struct {
	cfg HarnessExecutorConfig
}

// NewHarnessExecutor creates a harness executor.
func NewHarnessExecutor(cfg HarnessExecutorConfig) (*HarnessExecutor, error) {
	if cfg.Harness == "" {
		return nil, fmt.Errorf("harness entry point cannot be empty")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.Locator == nil {
		cfg.Locator = DefaultRuntimeLocator("")
	}
	return &HarnessExecutor{cfg: cfg}, nil
}

// Execute runs the harness for one job.
func (e *HarnessExecutor) Execute(ctx context.Context, job types.Job, env environment.Bindings) (*types.JobResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	interpreter, err := e.cfg.Locator(job.RuntimeVersion)
	if err != nil {
		e.cfg.Log.Warn("Runtime unavailable, skipping job",
			"job", job.DisplayLabel, "runtime", job.RuntimeVersion, "os", job.OS)
		return &types.JobResult{
			Job:    job,
			Status: types.JobStatusSkip,
			Err: &types.EnvironmentUnavailableError{
				RuntimeVersion: job.RuntimeVersion,
				OS:             job.OS,
				Err:            err,
			},
		}, nil
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	covPath, covProvided := env[CoverageFileKey]
	if !covProvided {
		covPath = filepath.Join(os.TempDir(), fmt.Sprintf("matrixrun-cov-%d-%d", os.Getpid(), job.Index))
		defer os.Remove(covPath)
	}

	cmd := exec.CommandContext(ctx, e.cfg.Harness)
	cmd.Dir = e.cfg.WorkDir
	cmd.Env = append(os.Environ(), env.Environ()...)
	cmd.Env = append(cmd.Env,
		fmt.Sprintf("%s=%s", InterpreterKey, interpreter),
		fmt.Sprintf("%s=%s", CoverageFileKey, covPath),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.cfg.Log.Info("Running job", "job", job.DisplayLabel, "interpreter", interpreter)
	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := &types.JobResult{
		Job:      job,
		Status:   types.JobStatusPass,
		Duration: duration,
		Stdout:   stdout.String(),
	}

	if runErr != nil {
		result.Status = types.JobStatusFail
		exitErr := &exec.ExitError{}
		switch {
		case ctx.Err() != nil:
			result.Err = fmt.Errorf("harness timed out after %v: %w", duration.Round(time.Second), ctx.Err())
		case errors.As(runErr, &exitErr):
			result.Err = fmt.Errorf("harness reported failing tests (exit code %d): %s",
				exitErr.ExitCode(), firstLine(stderr.String()))
		default:
			return nil, fmt.Errorf("failed to run harness: %w", runErr)
		}
	}

	if data, err := os.ReadFile(covPath); err == nil && len(data) > 0 {
		result.Coverage = data
	}

	return result, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		return s[:idx]
	}
	return s
}
