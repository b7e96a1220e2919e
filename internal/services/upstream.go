package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"skillshare-backend/internal/models"
)

var (
	ErrUpstreamRateLimited     = errors.New("upstream rate limit exceeded")
	ErrUpstreamPaymentRequired = errors.New("upstream payment required")
)

// UpstreamError is a failed call to the language-model provider.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream error: %v", e.Err)
	}
	return fmt.Sprintf("upstream error (status %d): %v", e.StatusCode, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrUpstreamRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrUpstreamPaymentRequired:
		return e.StatusCode == http.StatusPaymentRequired
	}
	return false
}

// ChunkStream yields the raw JSON of each chat-completion chunk.
type ChunkStream interface {
	Next() bool
	Current() string
	Err() error
	Close() error
}

// ChatUpstream starts a streamed completion for a conversation that already
// includes the system prompt.
type ChatUpstream interface {
	Name() string
	Model() string
	Stream(ctx context.Context, messages []models.ChatMessage) (ChunkStream, error)
}

const (
	defaultSlotWait    = 30 * time.Second
	defaultOpenTimeout = 30 * time.Second
)

// Gate bounds the number of concurrent upstream streams. A slot is held from
// Stream until the returned stream is closed. Opening the stream, once a slot
// is held, must finish within the open timeout.
type Gate struct {
	upstream    ChatUpstream
	rateChan    chan struct{} // Token bucket
	wait        time.Duration
	openTimeout time.Duration
}

func NewGate(upstream ChatUpstream, concurrent int, openTimeout time.Duration) *Gate {
	if concurrent <= 0 {
		concurrent = 1
	}
	if openTimeout <= 0 {
		openTimeout = defaultOpenTimeout
	}
	rateChan := make(chan struct{}, concurrent)
	for i := 0; i < concurrent; i++ {
		rateChan <- struct{}{}
	}
	return &Gate{upstream: upstream, rateChan: rateChan, wait: defaultSlotWait, openTimeout: openTimeout}
}

func (g *Gate) Name() string  { return g.upstream.Name() }
func (g *Gate) Model() string { return g.upstream.Model() }

func (g *Gate) Stream(ctx context.Context, messages []models.ChatMessage) (ChunkStream, error) {
	if err := g.acquireRate(ctx); err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	openTimer := time.AfterFunc(g.openTimeout, cancel)
	s, err := g.upstream.Stream(streamCtx, messages)
	timedOut := !openTimer.Stop() && ctx.Err() == nil

	if err == nil && timedOut {
		s.Close()
		err = context.DeadlineExceeded
	}
	if err != nil {
		cancel()
		g.releaseRate()
		if timedOut {
			return nil, &UpstreamError{
				StatusCode: http.StatusGatewayTimeout,
				Err:        fmt.Errorf("no response within %s: %w", g.openTimeout, err),
			}
		}
		return nil, err
	}

	return &gatedStream{ChunkStream: s, release: func() {
		cancel()
		g.releaseRate()
	}}, nil
}

// acquireRate blocks until a rate slot is available
func (g *Gate) acquireRate(ctx context.Context) error {
	timer := time.NewTimer(g.wait)
	defer timer.Stop()

	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return &UpstreamError{
			StatusCode: http.StatusTooManyRequests,
			Err:        errors.New("timeout waiting for upstream slot"),
		}
	}
}

func (g *Gate) releaseRate() {
	g.rateChan <- struct{}{}
}

type gatedStream struct {
	ChunkStream
	release func()
	closed  bool
}

func (s *gatedStream) Close() error {
	err := s.ChunkStream.Close()
	if !s.closed {
		s.closed = true
		s.release()
	}
	return err
}
