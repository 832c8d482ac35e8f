// Package matrixrun is a matrix-driven CI test orchestrator: it expands
// a declarative job matrix, runs each job's test subset under the right
// runtime, and aggregates results into a single run verdict.
package matrixrun

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/infra-ci/matrixrun/flags"
	"github.com/infra-ci/matrixrun/runner"
)

// Config holds the application configuration
type Config struct {
	MatrixConfig      string
	CapabilityConfig  string        // Optional capability defaults file; empty = built-in table
	Harness           string        // Test harness entry point executed once per job
	WorkDir           string        // Working directory for harness invocations
	RuntimePrefix     string        // Interpreter binary prefix for runtime availability checks
	RunInterval       time.Duration // Interval between matrix runs
	RunOnce           bool          // Indicates if the service should exit after one run
	JobTimeout        time.Duration // Timeout for a single job's harness invocation
	Concurrency       int           // Number of concurrent job workers (0 = one per job)
	LogDir            string        // Directory to store per-job logs and run summaries
	UploadDestination string        // Destination for coverage/result uploads; empty disables uploads
	UploadToken       string        // Opaque transport credential, never inspected or logged
	Log               log.Logger

	// Executor overrides the default harness executor; used by tests.
	Executor runner.Executor
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, logger log.Logger, matrixConfig string) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if matrixConfig == "" {
		return nil, errors.New("matrix config file is required")
	}

	absMatrixConfig, err := filepath.Abs(matrixConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for matrix config '%s': %w", matrixConfig, err)
	}

	capabilityConfig := ctx.String(flags.CapabilityConfig.Name)
	if capabilityConfig != "" {
		capabilityConfig, err = filepath.Abs(capabilityConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for capability config '%s': %w", capabilityConfig, err)
		}
	}

	logDir, err := filepath.Abs(ctx.String(flags.LogDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory: %w", err)
	}

	workDir, err := filepath.Abs(ctx.String(flags.WorkDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for work directory: %w", err)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	concurrency := ctx.Int(flags.Concurrency.Name)
	if ctx.Bool(flags.Serial.Name) {
		concurrency = 1
	}
	if concurrency < 0 {
		return nil, fmt.Errorf("concurrency cannot be negative: %d", concurrency)
	}

	return &Config{
		MatrixConfig:      absMatrixConfig,
		CapabilityConfig:  capabilityConfig,
		Harness:           ctx.String(flags.Harness.Name),
		WorkDir:           workDir,
		RuntimePrefix:     ctx.String(flags.RuntimePrefix.Name),
		RunInterval:       runInterval,
		RunOnce:           runOnce,
		JobTimeout:        ctx.Duration(flags.JobTimeout.Name),
		Concurrency:       concurrency,
		LogDir:            logDir,
		UploadDestination: ctx.String(flags.UploadDestination.Name),
		UploadToken:       ctx.String(flags.UploadToken.Name),
		Log:               logger,
	}, nil
}
