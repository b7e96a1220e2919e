package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const retentionPollInterval = 1 * time.Hour

type transcriptDeleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// TranscriptPruner deletes help-chat transcripts past the retention window.
type TranscriptPruner struct {
	repo      transcriptDeleter
	retention time.Duration
	interval  time.Duration
	stopChan  chan struct{}
	stopOnce  sync.Once
}

func NewTranscriptPruner(repo transcriptDeleter, retentionDays int) *TranscriptPruner {
	return &TranscriptPruner{
		repo:      repo,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  retentionPollInterval,
		stopChan:  make(chan struct{}),
	}
}

func (p *TranscriptPruner) Start() {
	if p.repo == nil || p.retention <= 0 {
		slog.Info("transcript_pruner_disabled")
		return
	}

	go p.loop()
	slog.Info("transcript_pruner_started", "retention", p.retention.String())
}

func (p *TranscriptPruner) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
}

func (p *TranscriptPruner) loop() {
	// Run on startup as well as by interval.
	p.prune(context.Background(), time.Now().UTC())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.prune(context.Background(), time.Now().UTC())
		}
	}
}

func (p *TranscriptPruner) prune(ctx context.Context, now time.Time) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	deleted, err := p.repo.DeleteOlderThan(ctx, retentionCutoff(now, p.retention))
	if err != nil {
		slog.Error("transcript_prune_failed", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("transcripts_pruned", "deleted", deleted)
	}
}

func retentionCutoff(now time.Time, retention time.Duration) time.Time {
	return now.Add(-retention).UTC()
}
