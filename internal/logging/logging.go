package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"skillshare-backend/internal/config"
)

const (
	maxLogSizeMB  = 20
	maxLogBackups = 5
	maxLogAgeDays = 14
)

// Init builds a logger with New and installs it as the slog default.
func Init(cfg *config.Config) (*slog.Logger, error) {
	logger, err := New(cfg)
	slog.SetDefault(logger)
	return logger, err
}

// New builds a logger from the LOG_* settings. Logs go to stderr unless a log
// file is configured, in which case they are written to a rotating file. If
// the file's directory cannot be created the logger still writes to stderr
// and the error is returned alongside it.
func New(cfg *config.Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var out io.Writer = os.Stderr
	var initErr error
	if path := strings.TrimSpace(cfg.LogFile); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			initErr = err
		} else {
			out = &lumberjack.Logger{
				Filename:   path,
				MaxSize:    maxLogSizeMB,
				MaxBackups: maxLogBackups,
				MaxAge:     maxLogAgeDays,
				Compress:   true,
			}
		}
	}

	return slog.New(newHandler(cfg.LogFormat, out, opts)), initErr
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(format string, out io.Writer, opts *slog.HandlerOptions) slog.Handler {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		return slog.NewTextHandler(out, opts)
	default:
		return slog.NewJSONHandler(out, opts)
	}
}
