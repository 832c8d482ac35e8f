package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infra-ci/matrixrun/environment"
	"github.com/infra-ci/matrixrun/types"
)

// writeHarness writes an executable shell script to a temp dir.
func writeHarness(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell harness tests require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "harness.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

func fixedLocator(path string) RuntimeLocator {
	return func(string) (string, error) { return path, nil }
}

func testJob() types.Job {
	return types.Job{
		Index:          0,
		RuntimeVersion: "3.9",
		OS:             "linux",
		DisplayLabel:   "3.9-linux",
		Capabilities:   types.CapabilityFlagSet{types.CapabilityQuick: true},
	}
}

func newTestHarnessExecutor(t *testing.T, cfg HarnessExecutorConfig) *HarnessExecutor {
	t.Helper()
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	e, err := NewHarnessExecutor(cfg)
	require.NoError(t, err)
	return e
}

func TestNewHarnessExecutor_RequiresHarness(t *testing.T) {
	_, err := NewHarnessExecutor(HarnessExecutorConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "harness entry point cannot be empty")
}

func TestHarnessExecutor_PassingRun(t *testing.T) {
	harness := writeHarness(t, `echo "all tests passed"`)
	e := newTestHarnessExecutor(t, HarnessExecutorConfig{
		Harness: harness,
		Locator: fixedLocator("/usr/bin/true"),
	})

	job := testJob()
	result, err := e.Execute(context.Background(), job, environment.Build(job))
	require.NoError(t, err)

	assert.Equal(t, types.JobStatusPass, result.Status)
	assert.NoError(t, result.Err)
	assert.Contains(t, result.Stdout, "all tests passed")
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestHarnessExecutor_FailingRun(t *testing.T) {
	harness := writeHarness(t, `echo "2 tests failed" >&2; exit 3`)
	e := newTestHarnessExecutor(t, HarnessExecutorConfig{
		Harness: harness,
		Locator: fixedLocator("/usr/bin/true"),
	})

	job := testJob()
	result, err := e.Execute(context.Background(), job, environment.Build(job))
	require.NoError(t, err)

	assert.Equal(t, types.JobStatusFail, result.Status)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "harness reported failing tests")
	assert.Contains(t, result.Err.Error(), "exit code 3")
	assert.Contains(t, result.Err.Error(), "2 tests failed")
}

func TestHarnessExecutor_UnavailableRuntimeSkips(t *testing.T) {
	harness := writeHarness(t, `exit 0`)
	locatorErr := errors.New("interpreter not installed")
	e := newTestHarnessExecutor(t, HarnessExecutorConfig{
		Harness: harness,
		Locator: func(string) (string, error) { return "", locatorErr },
	})

	job := testJob()
	result, err := e.Execute(context.Background(), job, environment.Build(job))

	// A missing runtime is a Skipped result, never a machinery error.
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusSkip, result.Status)
	assert.True(t, types.IsEnvironmentUnavailable(result.Err))
}

func TestHarnessExecutor_EnvironmentReachesHarness(t *testing.T) {
	harness := writeHarness(t, `echo "quick=$MATRIXRUN_CAP_QUICK runtime=$MATRIXRUN_RUNTIME interp=$MATRIXRUN_INTERPRETER"`)
	e := newTestHarnessExecutor(t, HarnessExecutorConfig{
		Harness: harness,
		Locator: fixedLocator("/opt/python3.9/bin/python"),
	})

	job := testJob()
	result, err := e.Execute(context.Background(), job, environment.Build(job))
	require.NoError(t, err)

	assert.Contains(t, result.Stdout, "quick=true")
	assert.Contains(t, result.Stdout, "runtime=3.9")
	assert.Contains(t, result.Stdout, "interp=/opt/python3.9/bin/python")
}

func TestHarnessExecutor_CollectsCoverage(t *testing.T) {
	harness := writeHarness(t, `printf 'line-coverage: 87%%' > "$MATRIXRUN_COVERAGE_FILE"`)
	e := newTestHarnessExecutor(t, HarnessExecutorConfig{
		Harness: harness,
		Locator: fixedLocator("/usr/bin/true"),
	})

	job := testJob()
	result, err := e.Execute(context.Background(), job, environment.Build(job))
	require.NoError(t, err)

	assert.Equal(t, types.JobStatusPass, result.Status)
	assert.Equal(t, []byte("line-coverage: 87%"), result.Coverage)
}

func TestHarnessExecutor_Timeout(t *testing.T) {
	harness := writeHarness(t, `sleep 5`)
	e := newTestHarnessExecutor(t, HarnessExecutorConfig{
		Harness: harness,
		Locator: fixedLocator("/usr/bin/true"),
		Timeout: 100 * time.Millisecond,
	})

	job := testJob()
	result, err := e.Execute(context.Background(), job, environment.Build(job))
	require.NoError(t, err)

	assert.Equal(t, types.JobStatusFail, result.Status)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "timed out")
}

func TestDefaultRuntimeLocator_StripsPreReleaseSuffix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("PATH lookup test requires a POSIX shell")
	}

	binDir := t.TempDir()
	interpreter := filepath.Join(binDir, "python3.10")
	require.NoError(t, os.WriteFile(interpreter, []byte("#!/bin/sh\n"), 0755))
	t.Setenv("PATH", binDir)

	locator := DefaultRuntimeLocator("python")

	path, err := locator("3.10-preview")
	require.NoError(t, err)
	assert.Equal(t, interpreter, path)

	_, err = locator("3.11")
	require.Error(t, err)
}
