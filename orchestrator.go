package matrixrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/infra-ci/matrixrun/capability"
	"github.com/infra-ci/matrixrun/exitcodes"
	"github.com/infra-ci/matrixrun/logging"
	"github.com/infra-ci/matrixrun/matrix"
	"github.com/infra-ci/matrixrun/metrics"
	"github.com/infra-ci/matrixrun/reporting"
	"github.com/infra-ci/matrixrun/runner"
	"github.com/infra-ci/matrixrun/types"
	"github.com/infra-ci/matrixrun/upload"
)

// Orchestrator expands the matrix once at startup and runs it via the
// scheduler, aggregating each run into a verdict.
type Orchestrator struct {
	ctx        context.Context
	config     *Config
	version    string
	jobs       []types.Job
	runner     *runner.Runner
	dispatcher *upload.Dispatcher
	scheduler  RunScheduler
	result     *runner.RunResult

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New creates an Orchestrator. The matrix is loaded and expanded here,
// before any job executes: a broken matrix surfaces as a
// ConfigurationError and nothing runs.
func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Orchestrator, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating orchestrator with config",
		"matrixConfig", config.MatrixConfig,
		"capabilityConfig", config.CapabilityConfig,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	model := capability.NewModel(config.Log)
	if config.CapabilityConfig != "" {
		var err error
		model, err = capability.LoadModel(config.Log, config.CapabilityConfig)
		if err != nil {
			return nil, err
		}
	}

	matrixConfig, err := matrix.LoadConfig(config.MatrixConfig)
	if err != nil {
		return nil, err
	}

	jobs, err := matrix.NewExpander(config.Log, model).Expand(matrixConfig.Jobs)
	if err != nil {
		return nil, err
	}

	executor := config.Executor
	if executor == nil {
		executor, err = runner.NewHarnessExecutor(runner.HarnessExecutorConfig{
			Log:     config.Log,
			Harness: config.Harness,
			WorkDir: config.WorkDir,
			Timeout: config.JobTimeout,
			Locator: runner.DefaultRuntimeLocator(config.RuntimePrefix),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create harness executor: %w", err)
		}
	}

	jobRunner, err := runner.NewRunner(runner.Config{
		Log:         config.Log,
		Executor:    executor,
		Concurrency: config.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	var dispatcher *upload.Dispatcher
	if config.UploadDestination != "" {
		dispatcher, err = upload.NewDispatcher(config.Log, &upload.DirUploader{}, upload.Destination{
			Target: config.UploadDestination,
			Token:  config.UploadToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create upload dispatcher: %w", err)
		}
	}

	config.Log.Info("Matrix expanded", "len(jobs)", len(jobs))

	o := &Orchestrator{
		ctx:              ctx,
		config:           config,
		version:          version,
		jobs:             jobs,
		runner:           jobRunner,
		dispatcher:       dispatcher,
		scheduler:        NewDefaultRunScheduler(config.RunInterval, config.RunOnce, config.Log),
		shutdownCallback: shutdownCallback,
	}
	o.scheduler.RegisterCallback(o.runMatrix)
	return o, nil
}

// Start runs the matrix, once or periodically at the configured
// interval. In run-once mode the returned error carries the verdict:
// nil for a succeeding run, RunFailureError for a failing one.
func (o *Orchestrator) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			o.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	o.ctx = ctx
	o.running.Store(true)

	if o.config.RunOnce {
		o.config.Log.Info("Starting matrixrun in run-once mode")
	} else {
		o.config.Log.Info("Starting matrixrun in continuous mode", "interval", o.config.RunInterval)
	}

	if err := o.scheduler.Start(ctx); err != nil {
		o.config.Log.Error("Runtime error running matrix", "error", err)
		return NewRuntimeError(err)
	}

	if o.config.RunOnce {
		o.config.Log.Info("Run completed, exiting (run-once mode)")

		// The process must exit non-zero iff the verdict is failing; this
		// is the pass/fail contract the hosting CI platform consumes.
		if o.result != nil && o.result.Verdict.Failing {
			o.config.Log.Warn("Run-once matrix completed with failures, returning exit code 1")
			return NewRunFailureError(o.result.Verdict.String())
		}

		go func() {
			o.shutdownCallback(nil)
		}()
		return nil
	}

	o.config.Log.Debug("matrixrun started successfully")
	return nil
}

// runMatrix executes the whole matrix once and processes the results.
func (o *Orchestrator) runMatrix() error {
	o.config.Log.Info("Running matrix...", "len(jobs)", len(o.jobs))

	result, err := o.runner.Run(o.ctx, o.jobs)
	if err != nil {
		// This is a runtime error (not a job failure)
		o.config.Log.Error("Runtime error running matrix", "error", err)
		return err
	}
	o.result = result

	// Uploads happen before reporting so transport warnings show up in
	// the summary. A failed upload never changes the verdict.
	if o.dispatcher != nil {
		o.dispatcher.Dispatch(o.ctx, result.RunID, result.Results)
	}

	o.writeJobLogs(result)
	o.printResultsTable(result)
	fmt.Println(result.Verdict.String())

	for _, jobResult := range result.Results {
		metrics.RecordJob(result.RunID, jobResult.Job.DisplayLabel, jobResult.Status, jobResult.Job.Optional)
	}
	metrics.RecordRun(result.Verdict)

	o.config.Log.Info("Matrix run completed", "run_id", result.RunID, "status", result.Verdict.Status())
	return nil
}

// writeJobLogs stores per-job harness output and the run summary under
// the log directory.
func (o *Orchestrator) writeJobLogs(result *runner.RunResult) {
	fileLogger, err := logging.NewFileLogger(o.config.LogDir, result.RunID)
	if err != nil {
		o.config.Log.Error("Failed to create file logger", "error", err)
		metrics.RecordErrorDetails("file logger", err)
		return
	}

	for _, jobResult := range result.Results {
		if err := fileLogger.LogJobOutput(jobResult); err != nil {
			o.config.Log.Error("Failed to write job log", "job", jobResult.Job.DisplayLabel, "error", err)
		}
	}

	path, err := reporting.SaveSummary(fileLogger.RunDir(), result.Verdict, result.Results)
	if err != nil {
		o.config.Log.Error("Failed to write run summary", "error", err)
		return
	}
	o.config.Log.Info("Run summary written", "path", path)
}

// Stop stops the orchestrator service.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.config.Log.Info("Stopping matrixrun")

	if !o.running.Load() {
		o.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	o.running.Store(false)
	if err := o.scheduler.Stop(); err != nil {
		return err
	}

	o.config.Log.Info("matrixrun stopped successfully")
	return nil
}

// Stopped returns true if the orchestrator service is stopped.
func (o *Orchestrator) Stopped() bool {
	return !o.running.Load()
}

// Result returns the most recent run result, nil before the first run.
func (o *Orchestrator) Result() *runner.RunResult {
	return o.result
}

// WaitForShutdown blocks until all goroutines have terminated.
// This is useful in tests to ensure complete cleanup before moving to the next test.
func (o *Orchestrator) WaitForShutdown(ctx context.Context) error {
	return o.scheduler.WaitForShutdown(ctx)
}
