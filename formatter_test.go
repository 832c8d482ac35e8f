package matrixrun

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/infra-ci/matrixrun/types"
)

func TestExtractKeyErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
		{
			name: "single line passes through",
			err:  errors.New("harness reported failing tests (exit code 1)"),
			want: "harness reported failing tests (exit code 1)",
		},
		{
			name: "only the first line is kept",
			err:  errors.New("first line\nsecond line\nthird line"),
			want: "first line",
		},
		{
			name: "long messages are truncated",
			err:  errors.New(strings.Repeat("x", 120)),
			want: strings.Repeat("x", 70) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractKeyErrorMessage(tt.err))
		})
	}
}

func TestSubsetsString(t *testing.T) {
	job := types.Job{Capabilities: types.CapabilityFlagSet{
		types.CapabilityRaw:      true,
		types.CapabilityKeyboard: true,
		types.CapabilityQuick:    false,
	}}
	assert.Equal(t, "keyboard,raw", subsetsString(job))

	lint := types.Job{Capabilities: types.CapabilityFlagSet{}}
	assert.Equal(t, "-", subsetsString(lint))
}

func TestGetResultString(t *testing.T) {
	assert.Equal(t, "✓ pass", getResultString(types.JobStatusPass))
	assert.Equal(t, "- skip", getResultString(types.JobStatusSkip))
	assert.Equal(t, "✗ fail", getResultString(types.JobStatusFail))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "0.0s", formatDuration(0))
}
