package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"skillshare-backend/internal/models"
	"skillshare-backend/internal/services"
	"skillshare-backend/internal/stream"
)

const (
	maxChatMessages      = 50
	maxChatMessageLength = 4000
	sessionHeader        = "X-Chat-Session"
	transcriptTimeout    = 5 * time.Second
	writeGrace           = 5 * time.Second

	defaultTranscriptLimit = 50
	maxTranscriptLimit     = 200
)

type transcriptQueue interface {
	Enqueue(ctx context.Context, t *models.Transcript) error
}

type transcriptReader interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.Transcript, error)
}

type ChatHandler struct {
	upstream    services.ChatUpstream
	queue       transcriptQueue
	transcripts transcriptReader
	idleTimeout time.Duration
}

func NewChatHandler(upstream services.ChatUpstream, queue transcriptQueue, transcripts transcriptReader, idleTimeout time.Duration) *ChatHandler {
	if idleTimeout <= 0 {
		idleTimeout = stream.DefaultIdleTimeout
	}
	return &ChatHandler{
		upstream:    upstream,
		queue:       queue,
		transcripts: transcripts,
		idleTimeout: idleTimeout,
	}
}

// HelpChat relays a streamed completion for the caller's conversation as
// server-sent events.
func (h *ChatHandler) HelpChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if fields := validateChatRequest(req); len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	sessionID, _ := uuid.Parse(r.Header.Get(sessionHeader))
	transcript := &models.Transcript{
		ID:        uuid.New(),
		SessionID: sessionID,
		Question:  lastUserMessage(req.Messages),
		Provider:  h.upstream.Name(),
		Model:     h.upstream.Model(),
	}

	// The server's write timeout is shorter than a long answer, so every
	// frame pushes the deadline out again.
	rc := http.NewResponseController(w)
	rc.SetWriteDeadline(time.Now().Add(h.idleTimeout + writeGrace))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	chunks, err := h.upstream.Stream(ctx, services.WithSystemPrompt(req.Messages))
	if err != nil {
		h.writeUpstreamError(w, r, err)
		h.record(r.Context(), transcript, "", err)
		return
	}
	defer chunks.Close()

	// Once the stream is open, the watchdog cancels it if it goes quiet.
	watchdog := time.AfterFunc(h.idleTimeout, cancel)
	defer watchdog.Stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	asm := stream.NewAssembler()

	writeFrame := func(payload string) error {
		rc.SetWriteDeadline(time.Now().Add(h.idleTimeout + writeGrace))
		frame := "data: " + payload + "\n\n"
		if _, err := fmt.Fprint(w, frame); err != nil {
			return err
		}
		asm.Feed([]byte(frame))
		return rc.Flush()
	}

	for chunks.Next() {
		watchdog.Reset(h.idleTimeout)
		payload, err := compactChunk(chunks.Current())
		if err != nil {
			slog.Warn("help_chat_chunk_skipped", "request_id", r.Header.Get("X-Request-ID"), "error", err)
			continue
		}
		if err := writeFrame(payload); err != nil {
			slog.Warn("help_chat_client_gone", "request_id", r.Header.Get("X-Request-ID"), "error", err)
			h.record(r.Context(), transcript, asm.Content(), err)
			return
		}
	}

	if err := chunks.Err(); err != nil {
		if ctx.Err() != nil && r.Context().Err() == nil {
			err = fmt.Errorf("upstream idle for %s: %w", h.idleTimeout, err)
		}
		slog.Error("help_chat_stream_failed", "request_id", r.Header.Get("X-Request-ID"), "error", err)
		h.record(r.Context(), transcript, asm.Content(), err)
		return
	}

	if err := writeFrame(stream.DoneSentinel); err != nil {
		slog.Warn("help_chat_client_gone", "request_id", r.Header.Get("X-Request-ID"), "error", err)
	}
	h.record(r.Context(), transcript, asm.Content(), nil)
}

// Transcripts lists the recorded exchanges of one chat session.
func (h *ChatHandler) Transcripts(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	switch {
	case limit <= 0:
		limit = defaultTranscriptLimit
	case limit > maxTranscriptLimit:
		limit = maxTranscriptLimit
	}
	items, err := h.transcripts.ListBySession(r.Context(), sessionID, limit)
	if err != nil {
		slog.Error("transcript_list_failed", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
		return
	}
	if items == nil {
		items = []models.Transcript{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":  sessionID,
		"transcripts": items,
	})
}

func (h *ChatHandler) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrUpstreamRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorResp("RATE_LIMITED", "Rate limit exceeded. Please try again later.", r))
	case errors.Is(err, services.ErrUpstreamPaymentRequired):
		writeJSON(w, http.StatusPaymentRequired, errorResp("PAYMENT_REQUIRED", "Payment required. Please add funds to your workspace.", r))
	case r.Context().Err() != nil:
		// Client went away; nobody to answer.
	default:
		slog.Error("help_chat_upstream_error", "request_id", r.Header.Get("X-Request-ID"), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("AI_ERROR", "AI gateway error", r))
	}
}

func (h *ChatHandler) record(ctx context.Context, t *models.Transcript, answer string, streamErr error) {
	if h.queue == nil {
		return
	}

	t.Answer = answer
	t.CreatedAt = time.Now().UTC()
	t.Status = models.TranscriptCompleted
	if streamErr != nil {
		msg := streamErr.Error()
		t.Status = models.TranscriptFailed
		t.ErrorMessage = &msg
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), transcriptTimeout)
	defer cancel()
	if err := h.queue.Enqueue(ctx, t); err != nil {
		slog.Warn("transcript_enqueue_failed", "transcript_id", t.ID, "error", err)
	}
}

// compactChunk puts a chunk's JSON on a single line. An event's data may span
// several lines upstream, but each relayed frame must be one data line.
func compactChunk(raw string) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return "", fmt.Errorf("invalid chunk: %w", err)
	}
	return buf.String(), nil
}

func validateChatRequest(req models.ChatRequest) map[string]string {
	fields := map[string]string{}

	switch {
	case len(req.Messages) == 0:
		fields["messages"] = "At least one message is required"
	case len(req.Messages) > maxChatMessages:
		fields["messages"] = fmt.Sprintf("At most %d messages are allowed", maxChatMessages)
	case req.Messages[len(req.Messages)-1].Role != models.RoleUser:
		fields["messages"] = "The last message must come from the user"
	}

	for i, m := range req.Messages {
		key := fmt.Sprintf("messages[%d]", i)
		switch {
		case m.Role != models.RoleUser && m.Role != models.RoleAssistant:
			fields[key] = "Role must be user or assistant"
		case len([]rune(m.Content)) > maxChatMessageLength:
			fields[key] = fmt.Sprintf("Content must be at most %d characters", maxChatMessageLength)
		case m.Role == models.RoleUser && strings.TrimSpace(m.Content) == "":
			fields[key] = "Content is required"
		}
	}

	return fields
}

func lastUserMessage(messages []models.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}
