// Package upload decides which job results get uploaded and dispatches
// them to the configured uploader.
package upload

import (
	"fmt"
	"sort"

	"github.com/infra-ci/matrixrun/types"
)

// ShouldUpload reports whether a job's coverage and result artifacts
// should be uploaded. A job with no test-subset capability enabled (a
// pure-linting job) runs no tests and produces no coverage by
// construction, so it never uploads. Skipped jobs never ran, so they
// have nothing to upload either.
func ShouldUpload(job types.Job, result *types.JobResult) bool {
	if result.Status == types.JobStatusSkip {
		return false
	}
	return job.HasTestSubset()
}

// TagsFor derives the metadata tags attached to a job's upload: the
// capability flags that were active plus the display label and OS, so
// downstream reporting can slice results by capability.
func TagsFor(job types.Job) []string {
	tags := make([]string, 0, len(job.Capabilities)+2)
	for _, c := range job.Capabilities.Active() {
		tags = append(tags, fmt.Sprintf("cap:%s", c))
	}
	tags = append(tags,
		fmt.Sprintf("label:%s", job.DisplayLabel),
		fmt.Sprintf("os:%s", job.OS),
	)
	sort.Strings(tags)
	return tags
}
