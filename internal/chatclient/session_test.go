package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillshare-backend/internal/models"
)

func deltaFrame(content string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`+"\n", content)
}

// fakeOpener returns a fixed body or error and records what it was sent.
type fakeOpener struct {
	body io.ReadCloser
	err  error
	got  []models.ChatMessage
}

func (f *fakeOpener) Open(_ context.Context, messages []models.ChatMessage) (io.ReadCloser, error) {
	f.got = messages
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func TestSession_StreamsIntoPlaceholder(t *testing.T) {
	opener := &fakeOpener{body: io.NopCloser(strings.NewReader(
		deltaFrame("Hel") + deltaFrame("lo") + "data: [DONE]\n",
	))}
	s := NewSession(opener, time.Second)

	var states []State
	s.OnStateChange(func(st State) { states = append(states, st) })

	var snaps []string
	reply, err := s.Send(context.Background(), "  how do I post?  ", func(snap string) {
		snaps = append(snaps, snap)
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello", reply)
	assert.Equal(t, []string{"Hel", "Hello"}, snaps)
	assert.Equal(t, []State{StateSending, StateStreaming, StateDone, StateIdle}, states)

	// The request carries the greeting plus the trimmed user message.
	require.Len(t, opener.got, 2)
	assert.Equal(t, models.RoleAssistant, opener.got[0].Role)
	assert.Equal(t, models.ChatMessage{Role: models.RoleUser, Content: "how do I post?"}, opener.got[1])

	msgs := s.Conversation().Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, Greeting, msgs[0].Content)
	assert.Equal(t, models.ChatMessage{Role: models.RoleAssistant, Content: "Hello"}, msgs[2])
}

func TestSession_EmptyInputIgnored(t *testing.T) {
	opener := &fakeOpener{}
	s := NewSession(opener, time.Second)

	_, err := s.Send(context.Background(), "   \n", nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Equal(t, 1, s.Conversation().Len())
	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, opener.got)
}

func TestSession_RateLimitRollsBack(t *testing.T) {
	opener := &fakeOpener{err: &StatusError{StatusCode: http.StatusTooManyRequests}}
	s := NewSession(opener, time.Second)

	var states []State
	s.OnStateChange(func(st State) { states = append(states, st) })

	_, err := s.Send(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, "Too many requests. Please wait a moment and try again.", UserMessage(err))

	// Neither the user message nor a placeholder remains.
	assert.Equal(t, []models.ChatMessage{{Role: models.RoleAssistant, Content: Greeting}}, s.Conversation().Messages())
	assert.Equal(t, []State{StateSending, StateFailed, StateIdle}, states)
}

func TestSession_MidStreamFailureRollsBackPlaceholderToo(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		pw.Write([]byte(deltaFrame("partial")))
		pw.CloseWithError(errors.New("connection reset"))
	}()
	s := NewSession(&fakeOpener{body: pr}, time.Second)

	_, err := s.Send(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.Equal(t, 1, s.Conversation().Len())
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_IdleTimeoutFails(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	s := NewSession(&fakeOpener{body: pr}, 30*time.Millisecond)

	_, err := s.Send(context.Background(), "hello", nil)
	assert.Error(t, err)
	assert.Equal(t, "Failed to send message. Please try again.", UserMessage(err))
	assert.Equal(t, 1, s.Conversation().Len())
}

func TestSession_RejectsConcurrentSend(t *testing.T) {
	pr, pw := io.Pipe()
	s := NewSession(&fakeOpener{body: pr}, 5*time.Second)

	streaming := make(chan struct{})
	s.OnStateChange(func(st State) {
		if st == StateStreaming {
			close(streaming)
		}
	})

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = s.Send(context.Background(), "first", nil)
	}()

	<-streaming
	_, err := s.Send(context.Background(), "second", nil)
	assert.ErrorIs(t, err, ErrSendInFlight)

	pw.Write([]byte(deltaFrame("one") + "data: [DONE]\n"))
	pw.Close()
	wg.Wait()

	require.NoError(t, firstErr)
	msgs := s.Conversation().Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[1].Content)
	assert.Equal(t, "one", msgs[2].Content)
}

func TestSession_WithHTTPClient(t *testing.T) {
	var gotAuth, gotSession string
	var gotReq models.ChatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotSession = r.Header.Get(SessionHeader)
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, part := range []string{": keep-alive\n\n", deltaFrame("Post a "), "\n", deltaFrame("request."), "\ndata: [DONE]\n\n"} {
			fmt.Fprint(w, part)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "anon-key", srv.Client())
	s := NewSession(client, time.Second)

	reply, err := s.Send(context.Background(), "How do I ask for help?", nil)
	require.NoError(t, err)

	assert.Equal(t, "Post a request.", reply)
	assert.Equal(t, "Bearer anon-key", gotAuth)
	assert.Equal(t, client.SessionID().String(), gotSession)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "How do I ask for help?", gotReq.Messages[1].Content)
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
	}{
		{"rate limited", http.StatusTooManyRequests, "Too many requests. Please wait a moment and try again."},
		{"payment required", http.StatusPaymentRequired, "Service temporarily unavailable. Please try again later."},
		{"server error", http.StatusInternalServerError, "Failed to get response"},
		{"unauthorized", http.StatusUnauthorized, "Failed to get response"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				fmt.Fprint(w, `{"error":{"code":"X","message":"nope"}}`)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "", srv.Client()).Open(context.Background(), nil)

			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tc.status, statusErr.StatusCode)
			assert.Contains(t, statusErr.Body, "nope")
			assert.Equal(t, tc.message, UserMessage(err))
		})
	}
}
