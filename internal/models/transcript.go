package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TranscriptCompleted = "completed"
	TranscriptFailed    = "failed"
)

// Transcript records one proxied help-chat exchange.
type Transcript struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Status       string    `json:"status"` // "completed" | "failed"
	ErrorMessage *string   `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
