package chatclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"skillshare-backend/internal/models"
	"skillshare-backend/internal/stream"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Opener starts a streamed reply for a conversation. *Client implements it.
type Opener interface {
	Open(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error)
}

// Session drives one chat widget: it appends the user's message, streams the
// reply into a placeholder, and rolls the conversation back if the send
// fails. At most one send runs at a time.
type Session struct {
	opener      Opener
	conv        *Conversation
	idleTimeout time.Duration

	mu       sync.Mutex
	state    State
	observer func(State)
}

func NewSession(opener Opener, idleTimeout time.Duration) *Session {
	return &Session{
		opener:      opener,
		conv:        NewConversation(),
		idleTimeout: idleTimeout,
	}
}

func (s *Session) Conversation() *Conversation {
	return s.conv
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnStateChange registers fn to be called after every transition.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	observer := s.observer
	s.mu.Unlock()
	if observer != nil {
		observer(st)
	}
}

// begin claims the session for one send.
func (s *Session) begin() bool {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return false
	}
	s.state = StateSending
	observer := s.observer
	s.mu.Unlock()
	if observer != nil {
		observer(StateSending)
	}
	return true
}

// Send submits input and streams the reply. onSnapshot, if set, receives the
// placeholder's full content after every delta. On failure the conversation
// is restored to what it was before Send and the error is returned for the
// caller to display.
func (s *Session) Send(ctx context.Context, input string, onSnapshot func(string)) (string, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return "", ErrEmptyInput
	}
	if !s.begin() {
		return "", ErrSendInFlight
	}

	rollbackTo := s.conv.Len()
	s.conv.Append(models.ChatMessage{Role: models.RoleUser, Content: text})

	reply, err := s.stream(ctx, onSnapshot)
	if err != nil {
		s.conv.Truncate(rollbackTo)
		s.setState(StateFailed)
		slog.Warn("help_chat_send_failed", "error", err)
		s.setState(StateIdle)
		return "", err
	}

	s.setState(StateDone)
	s.setState(StateIdle)
	return reply, nil
}

func (s *Session) stream(ctx context.Context, onSnapshot func(string)) (string, error) {
	body, err := s.opener.Open(ctx, s.conv.Messages())
	if err != nil {
		return "", err
	}

	placeholder := s.conv.Append(models.ChatMessage{Role: models.RoleAssistant})
	s.setState(StateStreaming)

	return stream.Read(ctx, body, stream.Options{IdleTimeout: s.idleTimeout}, func(snapshot string) {
		if err := s.conv.SetContent(placeholder, snapshot); err != nil {
			slog.Error("help_chat_placeholder_missing", "handle", int(placeholder), "error", err)
			return
		}
		if onSnapshot != nil {
			onSnapshot(snapshot)
		}
	})
}
