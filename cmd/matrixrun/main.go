package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	matrixrun "github.com/infra-ci/matrixrun"
	"github.com/infra-ci/matrixrun/exitcodes"
	"github.com/infra-ci/matrixrun/flags"
	"github.com/infra-ci/matrixrun/service"
	"github.com/infra-ci/matrixrun/types"
)

var (
	Version   = "v0.3.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "matrixrun"
	app.Usage = "Matrix-driven CI Test Orchestrator"
	app.Description = "matrixrun expands a declarative test matrix and runs each job's test subset under the right runtime"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			// Use the exit code from the ExitCoder
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			// Check for typed runtime errors
			if types.IsConfigurationError(err) || matrixrun.IsRuntimeError(err) {
				// Configuration and runtime errors use exit code 2
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else if matrixrun.IsRunFailureError(err) {
				// A failing run verdict uses exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RunFailure))
			} else {
				// For other unspecified errors, default to exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RunFailure))
			}
		}
	}

	// Start telemetry
	shutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server
	svc := service.New()
	svc.Start(ctx)
	defer svc.Shutdown()

	// Start CLI
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// levelFromString maps the --log.level flag onto the slog level the
// terminal handler filters on.
func levelFromString(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	default:
		return log.LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

func run(c *cli.Context) error {
	logLevel, err := levelFromString(c.String(flags.LogLevel.Name))
	if err != nil {
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}
	logger := log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, logLevel, true))
	log.SetDefault(logger)

	cfg, err := matrixrun.NewConfig(c, logger, c.String(flags.MatrixConfig.Name))
	if err != nil {
		// Wrap so this exits with code 2
		return types.NewConfigurationError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	runCtx, cancel := context.WithCancelCause(c.Context)
	defer cancel(nil)

	orch, err := matrixrun.New(runCtx, cfg, Version, cancel)
	if err != nil {
		if types.IsConfigurationError(err) {
			return err
		}
		return matrixrun.NewRuntimeError(fmt.Errorf("failed to create orchestrator: %w", err))
	}

	if err := orch.Start(runCtx); err != nil {
		return err
	}

	if cfg.RunOnce {
		return nil
	}

	// Continuous mode: block until a signal arrives or the orchestrator
	// requests shutdown, then drain gracefully.
	<-runCtx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := orch.Stop(stopCtx); err != nil {
		return matrixrun.NewRuntimeError(fmt.Errorf("failed to stop orchestrator: %w", err))
	}
	return orch.WaitForShutdown(stopCtx)
}
