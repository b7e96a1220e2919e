// Command helpchat is a terminal front-end for the help chatbot endpoint.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"skillshare-backend/internal/chatclient"
	"skillshare-backend/internal/config"
	"skillshare-backend/internal/logging"
	"skillshare-backend/internal/middleware"
	"skillshare-backend/internal/stream"
)

var (
	assistantLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	userLabel      = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	mutedStyle     = lipgloss.NewStyle().Faint(true)
)

func main() {
	// Loads .env too, so it must run before the flag defaults read the environment.
	logCfg := config.LoadLogging("warn", "text")

	url := flag.String("url", envOr("HELPCHAT_URL", "http://localhost:8080/api/v1/help-chatbot"), "help chatbot endpoint")
	key := flag.String("key", os.Getenv("HELPCHAT_KEY"), "publishable key sent as bearer token")
	secret := flag.String("secret", "", "sign an anon key with this JWT secret instead of -key")
	idle := flag.Duration("idle-timeout", stream.DefaultIdleTimeout, "give up when the stream is silent this long (0 disables)")
	debug := flag.Bool("debug", false, "log at debug level (LOG_LEVEL otherwise, default warn)")
	flag.Parse()

	if *debug {
		logCfg.LogLevel = "debug"
	}
	if _, err := logging.Init(logCfg); err != nil {
		slog.Warn("log_file_unavailable", "path", logCfg.LogFile, "error", err)
	}

	if *secret != "" {
		signed, err := middleware.NewJWTAuth(*secret).GenerateKey(middleware.RoleAnon, time.Hour)
		if err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("cannot sign key: "+err.Error()))
			os.Exit(1)
		}
		*key = signed
	}
	if *key == "" {
		fmt.Fprintln(os.Stderr, errorStyle.Render("a key is required: pass -key, -secret or set HELPCHAT_KEY"))
		os.Exit(2)
	}

	timeout := *idle
	if timeout == 0 {
		timeout = -1
	}

	client := chatclient.NewClient(*url, *key, nil)
	session := chatclient.NewSession(client, timeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, session, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, session *chatclient.Session, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "%s %s\n", assistantLabel.Render("assistant>"), chatclient.Greeting)
	fmt.Fprintln(out, mutedStyle.Render("(empty line or Ctrl-D to quit)"))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, userLabel.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			return nil
		}

		fmt.Fprint(out, assistantLabel.Render("assistant> "))
		printed := 0
		_, err := session.Send(ctx, input, func(snapshot string) {
			fmt.Fprint(out, snapshot[printed:])
			printed = len(snapshot)
		})
		fmt.Fprintln(out)

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Debug("send_failed", "error", err)
			fmt.Fprintln(out, errorStyle.Render(chatclient.UserMessage(err)))
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
