package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCloseJobEnvelope(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	payload := SessionClosePayload{SessionID: uuid.New(), LeftAt: now.Add(-time.Second)}

	job, err := newJob(JobTypeSessionClose, payload, now)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Zero(t, job.Attempt)

	raw, err := json.Marshal(job)
	require.NoError(t, err)

	decoded, err := decodeJob(string(raw))
	require.NoError(t, err)
	got, err := decoded.SessionClose()
	require.NoError(t, err)
	assert.Equal(t, payload.SessionID, got.SessionID)
	assert.True(t, payload.LeftAt.Equal(got.LeftAt))
}

func TestDecodeJobRejectsGarbage(t *testing.T) {
	_, err := decodeJob("not json")
	assert.Error(t, err)

	_, err = decodeJob(`{"payload":{}}`)
	assert.Error(t, err)
}

func TestSessionCloseWrongType(t *testing.T) {
	job := &Job{ID: "j1", Type: "email", Payload: json.RawMessage(`{}`)}
	_, err := job.SessionClose()
	assert.Error(t, err)
}
