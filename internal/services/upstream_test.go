package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillshare-backend/internal/models"
)

// fakeUpstream serves preset chunks.
type fakeUpstream struct {
	chunks []string
	err    error
	got    []models.ChatMessage
}

func (f *fakeUpstream) Name() string  { return "fake" }
func (f *fakeUpstream) Model() string { return "fake-model" }

func (f *fakeUpstream) Stream(_ context.Context, messages []models.ChatMessage) (ChunkStream, error) {
	f.got = messages
	if f.err != nil {
		return nil, f.err
	}
	return &sliceStream{chunks: f.chunks, idx: -1}, nil
}

type sliceStream struct {
	chunks []string
	idx    int
	closed bool
}

func (s *sliceStream) Next() bool {
	s.idx++
	return s.idx < len(s.chunks)
}
func (s *sliceStream) Current() string { return s.chunks[s.idx] }
func (s *sliceStream) Err() error      { return nil }
func (s *sliceStream) Close() error    { s.closed = true; return nil }

func TestUpstreamError_Is(t *testing.T) {
	rate := &UpstreamError{StatusCode: http.StatusTooManyRequests, Err: errors.New("slow down")}
	pay := &UpstreamError{StatusCode: http.StatusPaymentRequired, Err: errors.New("no credits")}
	other := &UpstreamError{StatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")}

	assert.ErrorIs(t, rate, ErrUpstreamRateLimited)
	assert.NotErrorIs(t, rate, ErrUpstreamPaymentRequired)
	assert.ErrorIs(t, pay, ErrUpstreamPaymentRequired)
	assert.NotErrorIs(t, other, ErrUpstreamRateLimited)
	assert.Contains(t, other.Error(), "502")
}

func TestGate_HoldsSlotUntilClose(t *testing.T) {
	gate := NewGate(&fakeUpstream{chunks: []string{"{}"}}, 1, time.Second)
	gate.wait = 20 * time.Millisecond

	first, err := gate.Stream(context.Background(), nil)
	require.NoError(t, err)

	_, err = gate.Stream(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUpstreamRateLimited)

	require.NoError(t, first.Close())
	require.NoError(t, first.Close()) // releasing twice must not add a slot

	second, err := gate.Stream(context.Background(), nil)
	require.NoError(t, err)
	second.Close()

	assert.Len(t, gate.rateChan, 1)
}

func TestGate_ReleasesSlotOnUpstreamError(t *testing.T) {
	gate := NewGate(&fakeUpstream{err: errors.New("down")}, 1, time.Second)

	_, err := gate.Stream(context.Background(), nil)
	require.Error(t, err)
	assert.Len(t, gate.rateChan, 1)
}

func TestGate_ContextCancelledWhileWaiting(t *testing.T) {
	gate := NewGate(&fakeUpstream{}, 1, time.Second)
	held, err := gate.Stream(context.Background(), nil)
	require.NoError(t, err)
	defer held.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = gate.Stream(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

// stallingUpstream never answers until its context ends.
type stallingUpstream struct{ fakeUpstream }

func (s *stallingUpstream) Stream(ctx context.Context, _ []models.ChatMessage) (ChunkStream, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestGate_OpenTimeout(t *testing.T) {
	gate := NewGate(&stallingUpstream{}, 1, 20*time.Millisecond)

	start := time.Now()
	_, err := gate.Stream(context.Background(), nil)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusGatewayTimeout, upErr.StatusCode)
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, gate.rateChan, 1, "slot must be released")
}

func TestGate_CallerCancelIsNotATimeout(t *testing.T) {
	gate := NewGate(&stallingUpstream{}, 1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := gate.Stream(ctx, nil)

	assert.ErrorIs(t, err, context.Canceled)
	var upErr *UpstreamError
	assert.False(t, errors.As(err, &upErr))
}

func TestWithSystemPrompt(t *testing.T) {
	out := WithSystemPrompt([]models.ChatMessage{
		{Role: models.RoleAssistant, Content: "Hi!"},
		{Role: models.RoleUser, Content: "  how do offers work? \n"},
	})

	require.Len(t, out, 3)
	assert.Equal(t, models.RoleSystem, out[0].Role)
	assert.Contains(t, out[0].Content, "SkillShare Connect")
	assert.Equal(t, "how do offers work?", out[2].Content)
}
