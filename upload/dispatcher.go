package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/infra-ci/matrixrun/metrics"
	"github.com/infra-ci/matrixrun/types"
)

const defaultMaxConcurrentUploads = 4

// Artifact is one job's uploadable payload.
type Artifact struct {
	RunID    string          `json:"run_id"`
	JobLabel string          `json:"job_label"`
	Status   types.JobStatus `json:"status"`
	Optional bool            `json:"optional"`
	Tags     []string        `json:"tags"`
	Duration time.Duration   `json:"duration_ns"`
	Coverage []byte          `json:"coverage,omitempty"`
}

// Destination identifies where artifacts go. Token is an opaque
// credential for the transport; it is never inspected or logged.
type Destination struct {
	Target string
	Token  string
}

// Uploader is the transport boundary. A transport that wants retries
// owns them; the dispatcher never retries a failed upload.
type Uploader interface {
	Upload(ctx context.Context, dest Destination, artifact Artifact) error
}

// Dispatcher fans gated artifacts out to the uploader.
type Dispatcher struct {
	log           log.Logger
	uploader      Uploader
	dest          Destination
	maxConcurrent int
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(logger log.Logger, uploader Uploader, dest Destination) (*Dispatcher, error) {
	if uploader == nil {
		return nil, fmt.Errorf("uploader is required")
	}
	if logger == nil {
		logger = log.New()
	}
	return &Dispatcher{
		log:           logger.New("component", "upload-dispatcher"),
		uploader:      uploader,
		dest:          dest,
		maxConcurrent: defaultMaxConcurrentUploads,
	}, nil
}

// Dispatch uploads every result that passes the gate. A transport-level
// failure is recorded as a warning on the job result and in metrics; it
// never changes the run verdict.
func (d *Dispatcher) Dispatch(ctx context.Context, runID string, results []*types.JobResult) {
	p := pool.New().WithMaxGoroutines(d.maxConcurrent)

	for _, result := range results {
		if !ShouldUpload(result.Job, result) {
			d.log.Debug("Upload suppressed", "job", result.Job.DisplayLabel, "status", result.Status)
			continue
		}

		p.Go(func() {
			artifact := Artifact{
				RunID:    runID,
				JobLabel: result.Job.DisplayLabel,
				Status:   result.Status,
				Optional: result.Job.Optional,
				Tags:     TagsFor(result.Job),
				Duration: result.Duration,
				Coverage: result.Coverage,
			}

			if err := d.uploader.Upload(ctx, d.dest, artifact); err != nil {
				result.UploadWarning = fmt.Errorf("upload failed: %w", err)
				metrics.RecordUpload(runID, false)
				d.log.Warn("Failed to upload job artifact", "job", result.Job.DisplayLabel, "error", err)
				return
			}
			metrics.RecordUpload(runID, true)
			d.log.Debug("Uploaded job artifact", "job", result.Job.DisplayLabel, "tags", strings.Join(artifact.Tags, ","))
		})
	}

	p.Wait()
}

var _ Uploader = (*DirUploader)(nil)

// DirUploader writes artifacts as JSON files under the destination
// target directory. It stands in for a remote coverage service during
// local runs and in CI environments that collect artifacts from disk;
// it has no use for the credential token.
type DirUploader struct{}

// Upload writes one artifact to <target>/<run-id>/<job-label>.json.
func (u *DirUploader) Upload(_ context.Context, dest Destination, artifact Artifact) error {
	if dest.Target == "" {
		return fmt.Errorf("upload destination is required")
	}

	dir := filepath.Join(dest.Target, artifact.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding artifact: %w", err)
	}

	path := filepath.Join(dir, sanitizeFilename(artifact.JobLabel)+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
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
