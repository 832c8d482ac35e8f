package matrixrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infra-ci/matrixrun/environment"
	"github.com/infra-ci/matrixrun/reporting"
	"github.com/infra-ci/matrixrun/types"
)

// fakeExecutor returns canned statuses keyed by display label.
type fakeExecutor struct {
	statuses map[string]types.JobStatus
}

func (f *fakeExecutor) Execute(_ context.Context, job types.Job, _ environment.Bindings) (*types.JobResult, error) {
	status, ok := f.statuses[job.DisplayLabel]
	if !ok {
		status = types.JobStatusPass
	}
	result := &types.JobResult{Job: job, Status: status, Duration: time.Millisecond}
	if status == types.JobStatusPass && job.HasTestSubset() {
		result.Coverage = []byte("coverage-payload")
	}
	return result, nil
}

const testMatrix = `
jobs:
  - runtime: "3.9"
    os: linux
    subsets: [keyboard, raw, quick]
  - runtime: "3.10-preview"
    os: linux
    optional: true
    subsets: [quick]
  - runtime: "3.11"
    os: windows
    subsets: [quick]
`

func writeMatrix(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matrix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testConfig(t *testing.T, executor *fakeExecutor) *Config {
	t.Helper()
	return &Config{
		MatrixConfig: writeMatrix(t, testMatrix),
		LogDir:       t.TempDir(),
		RunOnce:      true,
		Log:          log.New(),
		Executor:     executor,
	}
}

func TestOrchestrator_RunOnceAllPassing(t *testing.T) {
	cfg := testConfig(t, &fakeExecutor{})

	shutdown := make(chan error, 1)
	orch, err := New(context.Background(), cfg, "test", func(err error) { shutdown <- err })
	require.NoError(t, err)

	require.NoError(t, orch.Start(context.Background()))

	select {
	case err := <-shutdown:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("shutdown callback was not invoked")
	}

	result := orch.Result()
	require.NotNil(t, result)
	assert.False(t, result.Verdict.Failing)
	assert.Equal(t, 3, result.Verdict.Stats.Passed)
}

func TestOrchestrator_RunOnceNonOptionalFailure(t *testing.T) {
	cfg := testConfig(t, &fakeExecutor{statuses: map[string]types.JobStatus{
		"3.11-windows": types.JobStatusFail,
	}})

	orch, err := New(context.Background(), cfg, "test", func(error) {})
	require.NoError(t, err)

	err = orch.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsRunFailureError(err))
	assert.Contains(t, err.Error(), "3.11-windows")
}

func TestOrchestrator_OptionalFailuresSucceed(t *testing.T) {
	// The preview job is optional; its skip must not fail the run.
	cfg := testConfig(t, &fakeExecutor{statuses: map[string]types.JobStatus{
		"3.10-preview-linux": types.JobStatusSkip,
	}})

	orch, err := New(context.Background(), cfg, "test", func(error) {})
	require.NoError(t, err)

	require.NoError(t, orch.Start(context.Background()))
	assert.False(t, orch.Result().Verdict.Failing)
	assert.Equal(t, 1, orch.Result().Verdict.Stats.Skipped)
}

func TestOrchestrator_WritesLogsAndSummary(t *testing.T) {
	cfg := testConfig(t, &fakeExecutor{})

	orch, err := New(context.Background(), cfg, "test", func(error) {})
	require.NoError(t, err)
	require.NoError(t, orch.Start(context.Background()))

	runDir := filepath.Join(cfg.LogDir, "run-"+orch.Result().RunID)
	entries, err := os.ReadDir(runDir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, reporting.SummaryFilename)
	assert.Contains(t, names, "3.9-linux.log")
	assert.Contains(t, names, "3.11-windows.log")
}

func TestOrchestrator_UploadsArtifacts(t *testing.T) {
	cfg := testConfig(t, &fakeExecutor{})
	cfg.UploadDestination = t.TempDir()

	orch, err := New(context.Background(), cfg, "test", func(error) {})
	require.NoError(t, err)
	require.NoError(t, orch.Start(context.Background()))

	uploadDir := filepath.Join(cfg.UploadDestination, orch.Result().RunID)
	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)

	// All three jobs ran a test subset and passed, so all three upload.
	assert.Len(t, entries, 3)
}

func TestNew_ConfigurationErrors(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := New(context.Background(), nil, "test", func(error) {})
		require.Error(t, err)
	})

	t.Run("missing matrix file", func(t *testing.T) {
		cfg := testConfig(t, &fakeExecutor{})
		cfg.MatrixConfig = filepath.Join(t.TempDir(), "nonexistent.yaml")

		_, err := New(context.Background(), cfg, "test", func(error) {})
		require.Error(t, err)
		assert.True(t, types.IsConfigurationError(err))
	})

	t.Run("broken matrix fails before anything runs", func(t *testing.T) {
		cfg := testConfig(t, &fakeExecutor{})
		cfg.MatrixConfig = writeMatrix(t, `
jobs:
  - runtime: "3.9"
    os: linux
    subsets: [nonexistent-subset]
`)

		_, err := New(context.Background(), cfg, "test", func(error) {})
		require.Error(t, err)
		assert.True(t, types.IsConfigurationError(err))
	})

	t.Run("invalid capability config", func(t *testing.T) {
		cfg := testConfig(t, &fakeExecutor{})
		capPath := filepath.Join(t.TempDir(), "caps.yaml")
		require.NoError(t, os.WriteFile(capPath, []byte("rules:\n  - capabilities:\n      quick: true\n"), 0644))
		cfg.CapabilityConfig = capPath

		_, err := New(context.Background(), cfg, "test", func(error) {})
		require.Error(t, err)
		assert.True(t, types.IsConfigurationError(err))
	})
}

func TestOrchestrator_StopIsIdempotent(t *testing.T) {
	cfg := testConfig(t, &fakeExecutor{})

	orch, err := New(context.Background(), cfg, "test", func(error) {})
	require.NoError(t, err)
	require.NoError(t, orch.Start(context.Background()))

	ctx := context.Background()
	require.NoError(t, orch.Stop(ctx))
	assert.True(t, orch.Stopped())
	require.NoError(t, orch.Stop(ctx))
}
