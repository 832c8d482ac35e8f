package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "MATRIXRUN"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	MatrixConfig = &cli.StringFlag{
		Name:     "matrix",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("MATRIX"),
		Usage:    "Path to matrix config file (eg. 'matrix.yaml')",
	}
	CapabilityConfig = &cli.StringFlag{
		Name:    "capabilities",
		Value:   "",
		EnvVars: prefixEnvVars("CAPABILITIES"),
		Usage:   "Path to capability defaults file; omit to use the built-in table",
	}
	Harness = &cli.StringFlag{
		Name:    "harness",
		Value:   "./run-tests",
		EnvVars: prefixEnvVars("HARNESS"),
		Usage:   "Test harness entry point executed once per job",
	}
	WorkDir = &cli.StringFlag{
		Name:    "workdir",
		Value:   ".",
		EnvVars: prefixEnvVars("WORKDIR"),
		Usage:   "Working directory for harness invocations",
	}
	RuntimePrefix = &cli.StringFlag{
		Name:    "runtime-prefix",
		Value:   "python",
		EnvVars: prefixEnvVars("RUNTIME_PREFIX"),
		Usage:   "Interpreter binary prefix; '<prefix><version>' must be on PATH for a runtime to count as available",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between matrix runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	JobTimeout = &cli.DurationFlag{
		Name:    "job-timeout",
		Value:   10 * time.Minute,
		EnvVars: prefixEnvVars("JOB_TIMEOUT"),
		Usage:   "Timeout for a single job's harness invocation",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Value:   0,
		EnvVars: prefixEnvVars("CONCURRENCY"),
		Usage:   "Number of concurrent job workers (0 = one per job)",
	}
	Serial = &cli.BoolFlag{
		Name:    "serial",
		Value:   false,
		EnvVars: prefixEnvVars("SERIAL"),
		Usage:   "Run jobs one at a time instead of in parallel",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: prefixEnvVars("LOGDIR"),
		Usage:   "Directory to store per-job harness logs and run summaries",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log.level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "The lowest log level that will be output",
	}
	UploadDestination = &cli.StringFlag{
		Name:    "upload-destination",
		Value:   "",
		EnvVars: prefixEnvVars("UPLOAD_DESTINATION"),
		Usage:   "Destination identifier for coverage/result uploads; empty disables uploads",
	}
	UploadToken = &cli.StringFlag{
		Name:    "upload-token",
		Value:   "",
		EnvVars: prefixEnvVars("UPLOAD_TOKEN"),
		Usage:   "Opaque credential passed to the upload transport, never logged",
	}
)

var requiredFlags = []cli.Flag{
	MatrixConfig,
}

var optionalFlags = []cli.Flag{
	CapabilityConfig,
	Harness,
	WorkDir,
	RuntimePrefix,
	RunInterval,
	JobTimeout,
	Concurrency,
	Serial,
	LogDir,
	LogLevel,
	UploadDestination,
	UploadToken,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
