// Package chatclient talks to the help-chat endpoint and keeps the
// conversation a chat front-end renders.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"skillshare-backend/internal/models"
)

const (
	SessionHeader = "X-Chat-Session"
	maxErrorBody  = 4 << 10
)

// Client posts conversations to the help-chat endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	sessionID  uuid.UUID
	httpClient *http.Client
}

// NewClient builds a client for endpoint (the full help-chatbot URL). apiKey
// is sent as a bearer token. A nil httpClient uses one without an overall
// timeout, since stalls are bounded by the stream idle timeout instead.
func NewClient(endpoint, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoint:   strings.TrimSpace(endpoint),
		apiKey:     strings.TrimSpace(apiKey),
		sessionID:  uuid.New(),
		httpClient: httpClient,
	}
}

// SessionID identifies this client's conversation to the server.
func (c *Client) SessionID() uuid.UUID {
	return c.sessionID
}

// Open sends the conversation and returns the event-stream body once the
// server has accepted the request. The caller must close the body.
func (c *Client) Open(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error) {
	payload := models.ChatRequest{Messages: make([]models.ChatMessage, len(messages))}
	for i, m := range messages {
		payload.Messages[i] = models.ChatMessage{Role: m.Role, Content: m.Content}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("chatclient: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("chatclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set(SessionHeader, c.sessionID.String())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	slog.Debug("help_chat_request", "endpoint", c.endpoint, "message_count", len(messages))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chatclient: send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		slog.Debug("help_chat_rejected", "status", resp.StatusCode)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return resp.Body, nil
}
