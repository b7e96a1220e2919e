package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillshare-backend/internal/models"
)

type flakyStore struct {
	failures int
	calls    int
	saved    []*models.Transcript
}

func (s *flakyStore) Create(ctx context.Context, t *models.Transcript) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("connection reset")
	}
	s.saved = append(s.saved, t)
	return nil
}

func payload(t *testing.T, tr models.Transcript) []byte {
	t.Helper()
	data, err := json.Marshal(tr)
	require.NoError(t, err)
	return data
}

func TestDecodeTranscript(t *testing.T) {
	id := uuid.New()
	tr, err := decodeTranscript(payload(t, models.Transcript{ID: id, Status: models.TranscriptCompleted, Answer: "hi"}))
	require.NoError(t, err)
	assert.Equal(t, id, tr.ID)
	assert.Equal(t, "hi", tr.Answer)

	_, err = decodeTranscript([]byte("{broken"))
	assert.Error(t, err)

	_, err = decodeTranscript(payload(t, models.Transcript{ID: id, Status: "pending"}))
	assert.ErrorContains(t, err, "unknown status")
}

func TestProcess_RetriesThenSaves(t *testing.T) {
	store := &flakyStore{failures: 1}
	p := NewPool(nil, store, 1)

	err := p.process(context.Background(), payload(t, models.Transcript{ID: uuid.New(), Status: models.TranscriptFailed}))

	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
	require.Len(t, store.saved, 1)
}

func TestProcess_GivesUp(t *testing.T) {
	store := &flakyStore{failures: maxAttempts}
	p := NewPool(nil, store, 1)

	err := p.process(context.Background(), payload(t, models.Transcript{ID: uuid.New(), Status: models.TranscriptCompleted}))

	assert.ErrorContains(t, err, "connection reset")
	assert.Equal(t, maxAttempts, store.calls)
}

func TestProcess_StopsRetryingWhenStopped(t *testing.T) {
	store := &flakyStore{failures: maxAttempts}
	p := NewPool(nil, store, 1)
	close(p.stopChan)

	err := p.process(context.Background(), payload(t, models.Transcript{ID: uuid.New(), Status: models.TranscriptCompleted}))

	assert.Error(t, err)
	assert.Equal(t, 1, store.calls)
}
