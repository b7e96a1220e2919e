package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeDeleter struct {
	cutoffs []time.Time
	err     error
}

func (f *fakeDeleter) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return 3, f.err
}

func TestRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

	cutoff := retentionCutoff(now, 30*24*time.Hour)
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !cutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, cutoff)
	}
}

func TestTranscriptPruner_PrunesWithCutoff(t *testing.T) {
	repo := &fakeDeleter{}
	p := NewTranscriptPruner(repo, 7)
	now := time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC)

	p.prune(context.Background(), now)

	if len(repo.cutoffs) != 1 {
		t.Fatalf("expected one delete call, got %d", len(repo.cutoffs))
	}
	if !repo.cutoffs[0].Equal(now.Add(-7 * 24 * time.Hour)) {
		t.Fatalf("unexpected cutoff %v", repo.cutoffs[0])
	}

	repo.err = errors.New("db down")
	p.prune(context.Background(), now)
	if len(repo.cutoffs) != 2 {
		t.Fatalf("expected failed prune to still call the repo")
	}
}

func TestTranscriptPruner_DisabledWithZeroRetention(t *testing.T) {
	repo := &fakeDeleter{}
	p := NewTranscriptPruner(repo, 0)
	p.Start()
	p.Stop()
	p.Stop()

	if len(repo.cutoffs) != 0 {
		t.Fatalf("expected no prune when retention is disabled")
	}
}
