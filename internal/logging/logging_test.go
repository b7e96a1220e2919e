package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"skillshare-backend/internal/config"
)

func TestInitCreatesLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "helpchat.log")

	cfg := &config.Config{LogFile: logPath, LogFormat: "json", LogLevel: "info"}

	logger, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	defer slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	logger.Info("hello", slog.String("component", "test"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("Expected JSON log line, got: %s", string(data))
	}
}

func TestNewLeavesDefaultAlone(t *testing.T) {
	before := slog.Default()
	logPath := filepath.Join(t.TempDir(), "cli.log")

	logger, err := New(&config.Config{LogFile: logPath, LogFormat: "text", LogLevel: "warn"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if slog.Default() != before {
		t.Fatal("New() must not replace the default logger")
	}

	logger.Info("hidden")
	logger.Warn("shown", "attempt", 2)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info to be filtered at warn level, got: %s", out)
	}
	if !strings.Contains(out, "msg=shown attempt=2") {
		t.Errorf("Expected text log line, got: %s", out)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
