package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillshare-backend/internal/models"
)

type TranscriptRepo struct {
	pool *pgxpool.Pool
}

func NewTranscriptRepo(pool *pgxpool.Pool) *TranscriptRepo {
	return &TranscriptRepo{pool: pool}
}

func (r *TranscriptRepo) Create(ctx context.Context, t *models.Transcript) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	var sessionID *uuid.UUID
	if t.SessionID != uuid.Nil {
		sessionID = &t.SessionID
	}

	query := `INSERT INTO help_chat_transcripts
		(id, session_id, question, answer, provider, model, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		t.ID, sessionID, t.Question, t.Answer, t.Provider, t.Model, t.Status, t.ErrorMessage, t.CreatedAt,
	)
	return err
}

func (r *TranscriptRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.Transcript, error) {
	switch {
	case limit <= 0:
		limit = 50
	case limit > 200:
		limit = 200
	}

	query := `SELECT id, session_id, question, answer, provider, model, status, error_message, created_at
		FROM help_chat_transcripts WHERE session_id = $1
		ORDER BY created_at ASC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transcript
	for rows.Next() {
		var t models.Transcript
		var sid *uuid.UUID
		if err := rows.Scan(
			&t.ID, &sid, &t.Question, &t.Answer, &t.Provider, &t.Model,
			&t.Status, &t.ErrorMessage, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		if sid != nil {
			t.SessionID = *sid
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes transcripts created before cutoff and returns how
// many rows were deleted.
func (r *TranscriptRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM help_chat_transcripts WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
