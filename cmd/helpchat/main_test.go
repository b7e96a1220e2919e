package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillshare-backend/internal/chatclient"
	"skillshare-backend/internal/config"
	"skillshare-backend/internal/logging"
)

func TestRun_PrintsStreamedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Use the \"}}]}\n\n")
		w.(http.Flusher).Flush()
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Post button.\"}}]}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	session := chatclient.NewSession(chatclient.NewClient(srv.URL, "key", srv.Client()), time.Second)
	var out bytes.Buffer

	err := run(context.Background(), session, strings.NewReader("How do I post?\n\n"), &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Use the Post button.")
	assert.Equal(t, 3, session.Conversation().Len())
}

func TestRun_ShowsFriendlyErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"slow down"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	session := chatclient.NewSession(chatclient.NewClient(srv.URL, "key", srv.Client()), time.Second)
	var out bytes.Buffer

	err := run(context.Background(), session, strings.NewReader("hello\n"), &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Too many requests. Please wait a moment and try again.")
	assert.Equal(t, 1, session.Conversation().Len())
}

func TestRun_LogsThroughConfiguredLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "helpchat.log")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FILE", logPath)

	cfg := config.LoadLogging("warn", "text")
	_, err := logging.Init(cfg)
	require.NoError(t, err)
	defer slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	session := chatclient.NewSession(chatclient.NewClient(srv.URL, "key", srv.Client()), time.Second)
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), session, strings.NewReader("hello\n"), &out))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=send_failed")
}
