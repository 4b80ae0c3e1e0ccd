package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestRollUpPipelineStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []JobStatus
		want     PipelineStatus
	}{
		{"all success", []JobStatus{JobStatusSuccess, JobStatusSuccess}, PipelineStatusSuccess},
		{"error wins over everything", []JobStatus{JobStatusSuccess, JobStatusError, JobStatusFailed, JobStatusCreated}, PipelineStatusError},
		{"failed wins over running", []JobStatus{JobStatusFailed, JobStatusAssigned}, PipelineStatusFailed},
		{"failed wins over success", []JobStatus{JobStatusSuccess, JobStatusFailed}, PipelineStatusFailed},
		{"queued job keeps pipeline running", []JobStatus{JobStatusSuccess, JobStatusCreated}, PipelineStatusRunning},
		{"assigned job keeps pipeline running", []JobStatus{JobStatusSuccess, JobStatusAssigned}, PipelineStatusRunning},
		{"single created", []JobStatus{JobStatusCreated}, PipelineStatusRunning},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, RollUpPipelineStatus(test.statuses))
		})
	}
}

func TestDeriveJobStatus(t *testing.T) {
	require.Equal(t, JobStatusError, DeriveJobStatus(true, true, strPtr("ciel: no space left on device")))
	require.Equal(t, JobStatusSuccess, DeriveJobStatus(true, true, nil))
	require.Equal(t, JobStatusFailed, DeriveJobStatus(false, true, nil))
	require.Equal(t, JobStatusFailed, DeriveJobStatus(true, false, nil))
	require.Equal(t, JobStatusFailed, DeriveJobStatus(false, false, nil))
	// An empty error message is treated as no error.
	require.Equal(t, JobStatusSuccess, DeriveJobStatus(true, true, strPtr("")))
}

func TestJobStatusTransitively(t *testing.T) {
	require.True(t, JobStatusSuccess.HasFinished())
	require.True(t, JobStatusFailed.HasFinished())
	require.True(t, JobStatusError.HasFinished())
	require.False(t, JobStatusCreated.HasFinished())
	require.False(t, JobStatusAssigned.HasFinished())

	require.True(t, JobStatusFailed.CanRestart())
	require.True(t, JobStatusError.CanRestart())
	require.False(t, JobStatusSuccess.CanRestart())
	require.False(t, JobStatusAssigned.CanRestart())
}
