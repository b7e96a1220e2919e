package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"skillshare-backend/internal/models"
	"skillshare-backend/internal/services"
)

const (
	popTimeout   = 5 * time.Second
	writeTimeout = 10 * time.Second
	maxAttempts  = 3
)

type transcriptStore interface {
	Create(ctx context.Context, t *models.Transcript) error
}

// Pool drains the transcript queue into Postgres.
type Pool struct {
	redis       *redis.Client
	store       transcriptStore
	workerCount int
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewPool(redisClient *redis.Client, store transcriptStore, workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		store:       store,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	slog.Info("transcript_workers_started", "count", p.workerCount)
}

// Stop signals the workers and waits for in-flight writes to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			slog.Info("transcript_worker_stopped", "worker", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with a short timeout so Stop is noticed
		result, err := p.redis.BLPop(ctx, popTimeout, services.TranscriptQueueKey).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				slog.Warn("transcript_queue_pop_failed", "worker", id, "error", err)
				p.pause(time.Second)
			}
			continue
		}

		if len(result) < 2 {
			continue
		}

		if err := p.process(ctx, []byte(result[1])); err != nil {
			slog.Error("transcript_write_failed", "worker", id, "error", err)
		}
	}
}

func (p *Pool) process(ctx context.Context, payload []byte) error {
	t, err := decodeTranscript(payload)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		lastErr = p.store.Create(writeCtx, t)
		cancel()
		if lastErr == nil {
			slog.Debug("transcript_saved", "transcript_id", t.ID, "status", t.Status)
			return nil
		}

		if attempt == maxAttempts {
			break
		}
		backoff := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
		if !p.pause(backoff) {
			break
		}
	}
	return fmt.Errorf("transcript %s: %w", t.ID, lastErr)
}

// pause sleeps for d, returning false if the pool was stopped meanwhile.
func (p *Pool) pause(d time.Duration) bool {
	select {
	case <-p.stopChan:
		return false
	case <-time.After(d):
		return true
	}
}

func decodeTranscript(payload []byte) (*models.Transcript, error) {
	var t models.Transcript
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}
	if t.Status != models.TranscriptCompleted && t.Status != models.TranscriptFailed {
		return nil, fmt.Errorf("transcript %s has unknown status %q", t.ID, t.Status)
	}
	return &t, nil
}
