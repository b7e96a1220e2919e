package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"skillshare-backend/internal/models"
)

const TranscriptQueueKey = "queue:chat-transcripts"

// TranscriptQueue hands finished exchanges to the transcript workers.
type TranscriptQueue struct {
	redis *redis.Client
}

func NewTranscriptQueue(redisClient *redis.Client) *TranscriptQueue {
	return &TranscriptQueue{redis: redisClient}
}

func (q *TranscriptQueue) Enqueue(ctx context.Context, t *models.Transcript) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	if err := q.redis.RPush(ctx, TranscriptQueueKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue transcript: %w", err)
	}
	return nil
}
