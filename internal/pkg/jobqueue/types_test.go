package jobqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationJobPayloadRoundTrip(t *testing.T) {
	payload := NotificationJobPayload{
		UserID:      42,
		Type:        "billing",
		Content:     "A subscription payment failed.",
		ReferenceID: 7,
	}

	m := payload.ToMap()
	restored, err := NotificationJobPayloadFromMap(m)
	require.NoError(t, err)

	assert.Equal(t, payload.UserID, restored.UserID)
	assert.Equal(t, payload.Type, restored.Type)
	assert.Equal(t, payload.Content, restored.Content)
	assert.Equal(t, payload.ReferenceID, restored.ReferenceID)
}

func TestMailJobPayloadRoundTrip(t *testing.T) {
	payload := MailJobPayload{
		To:       "owner@example.com",
		Subject:  "Activate your GreenFold account",
		Template: "activation",
		Data:     map[string]string{"name": "Dana", "token": "abc123"},
	}

	m := payload.ToMap()
	restored, err := MailJobPayloadFromMap(m)
	require.NoError(t, err)

	assert.Equal(t, payload.To, restored.To)
	assert.Equal(t, payload.Subject, restored.Subject)
	assert.Equal(t, payload.Template, restored.Template)
	assert.Equal(t, payload.Data, restored.Data)
}

func TestJob_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		job       *Job
		retryable bool
	}{
		{
			name:      "Failed job with retries remaining",
			job:       &Job{Status: JobStatusFailed, RetryCount: 1, MaxRetries: 3},
			retryable: true,
		},
		{
			name:      "Failed job with retries exhausted",
			job:       &Job{Status: JobStatusFailed, RetryCount: 3, MaxRetries: 3},
			retryable: false,
		},
		{
			name:      "Completed job",
			job:       &Job{Status: JobStatusCompleted, RetryCount: 0, MaxRetries: 3},
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.job.IsRetryable())
		})
	}
}

func TestJobLifecycleTransitions(t *testing.T) {
	job := &Job{Status: JobStatusPending, MaxRetries: 3}

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)

	job.MarkAsFailed("smtp unreachable")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "smtp unreachable", job.ErrorMsg)
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Empty(t, job.ErrorMsg)
	require.NotNil(t, job.CompletedAt)
}
