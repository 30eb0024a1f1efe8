package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobType(t *testing.T) {
	assert.Equal(t, "runner_cleanup", string(JobTypeRunnerCleanup))
	assert.Equal(t, "status_reconcile", string(JobTypeStatusReconcile))
}

func TestJob_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		job       *Job
		retryable bool
	}{
		{
			name: "Failed job with retries remaining",
			job: &Job{
				Status:     JobStatusFailed,
				RetryCount: 1,
				MaxRetries: 3,
			},
			retryable: true,
		},
		{
			name: "Failed job with no retries remaining",
			job: &Job{
				Status:     JobStatusFailed,
				RetryCount: 3,
				MaxRetries: 3,
			},
			retryable: false,
		},
		{
			name: "Completed job",
			job: &Job{
				Status:     JobStatusCompleted,
				RetryCount: 1,
				MaxRetries: 3,
			},
			retryable: false,
		},
		{
			name: "Pending job",
			job: &Job{
				Status:     JobStatusPending,
				RetryCount: 0,
				MaxRetries: 3,
			},
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.job.IsRetryable())
		})
	}
}

func TestJob_MarkAsProcessing(t *testing.T) {
	job := &Job{
		Status: JobStatusPending,
	}

	beforeTime := time.Now()
	job.MarkAsProcessing()

	assert.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)
	assert.False(t, job.ProcessedAt.Before(beforeTime))
}

func TestJob_MarkAsCompleted(t *testing.T) {
	job := &Job{
		Status:   JobStatusProcessing,
		ErrorMsg: "some error",
	}

	job.MarkAsCompleted()

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.Empty(t, job.ErrorMsg)
}

func TestJob_MarkAsFailed(t *testing.T) {
	job := &Job{
		Status:     JobStatusProcessing,
		RetryCount: 1,
	}

	job.MarkAsFailed("processing failed")

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "processing failed", job.ErrorMsg)
	assert.Equal(t, 2, job.RetryCount)
}

func TestRunnerCleanupJobPayloadRoundTrip(t *testing.T) {
	original := RunnerCleanupJobPayload{BotUUID: "bot-uuid-1"}

	result, err := RunnerCleanupJobPayloadFromMap(original.ToMap())
	require.NoError(t, err)
	assert.Equal(t, &original, result)
}

func TestStatusReconcileJobPayloadRoundTrip(t *testing.T) {
	original := StatusReconcileJobPayload{BotUUID: "bot-uuid-2"}

	result, err := StatusReconcileJobPayloadFromMap(original.ToMap())
	require.NoError(t, err)
	assert.Equal(t, &original, result)
}
