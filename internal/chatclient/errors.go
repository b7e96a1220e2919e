package chatclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyInput      = errors.New("chatclient: message is empty")
	ErrSendInFlight    = errors.New("chatclient: another message is still being answered")
	ErrRateLimited     = errors.New("chatclient: rate limited")
	ErrPaymentRequired = errors.New("chatclient: payment required")
)

// StatusError is returned when the help-chat endpoint answers with a
// non-success status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chatclient: unexpected status %d", e.StatusCode)
}

// Is lets errors.Is match the status-specific sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrPaymentRequired:
		return e.StatusCode == http.StatusPaymentRequired
	}
	return false
}

// UserMessage turns a send failure into the text shown to the user.
func UserMessage(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "Too many requests. Please wait a moment and try again."
	case errors.Is(err, ErrPaymentRequired):
		return "Service temporarily unavailable. Please try again later."
	case errors.As(err, &statusErr):
		return "Failed to get response"
	default:
		return "Failed to send message. Please try again."
	}
}
