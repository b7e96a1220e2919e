package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"skillshare-backend/internal/models"
)

// GeminiUpstream streams completions from Google Gemini and re-encodes them
// as OpenAI-style chunks.
type GeminiUpstream struct {
	client    *genai.Client
	modelName string
}

func NewGeminiUpstream(ctx context.Context, apiKey, modelName string) (*GeminiUpstream, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiUpstream{client: client, modelName: modelName}, nil
}

func (g *GeminiUpstream) Close() {
	g.client.Close()
}

func (g *GeminiUpstream) Name() string  { return "gemini" }
func (g *GeminiUpstream) Model() string { return g.modelName }

func (g *GeminiUpstream) Stream(ctx context.Context, messages []models.ChatMessage) (ChunkStream, error) {
	system, history, last, err := splitForGemini(messages)
	if err != nil {
		return nil, err
	}

	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0.3)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := model.StartChat()
	cs.History = history

	streamCtx, cancel := context.WithCancel(ctx)
	it := cs.SendMessageStream(streamCtx, genai.Text(last))

	// Pull the first response so quota and auth failures surface before the
	// caller commits to a 200.
	s := &geminiStream{it: it, cancel: cancel}
	if !s.Next() && s.err != nil {
		cancel()
		return nil, s.err
	}
	s.replayFirst = true

	slog.Debug("gemini_stream_started", "model", g.modelName, "history", len(history))
	return s, nil
}

// splitForGemini maps the conversation onto Gemini's chat model: system
// messages become the instruction, the final user message is what gets sent,
// and everything before it is history.
func splitForGemini(messages []models.ChatMessage) (string, []*genai.Content, string, error) {
	var system []string
	var turns []models.ChatMessage
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}

	if len(turns) == 0 || turns[len(turns)-1].Role != models.RoleUser {
		return "", nil, "", fmt.Errorf("conversation must end with a user message")
	}

	history := make([]*genai.Content, 0, len(turns)-1)
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}

	return strings.Join(system, "\n\n"), history, turns[len(turns)-1].Content, nil
}

type responseIterator interface {
	Next() (*genai.GenerateContentResponse, error)
}

type geminiStream struct {
	it          responseIterator
	cancel      context.CancelFunc
	current     string
	err         error
	done        bool
	replayFirst bool
}

func (s *geminiStream) Next() bool {
	if s.replayFirst {
		s.replayFirst = false
		return !s.done
	}
	if s.done {
		return false
	}

	for {
		resp, err := s.it.Next()
		if errors.Is(err, iterator.Done) {
			s.done = true
			return false
		}
		if err != nil {
			s.err = geminiError(err)
			s.done = true
			return false
		}

		text := extractText(resp)
		if text == "" {
			continue
		}
		data, err := json.Marshal(models.NewDeltaChunk(text))
		if err != nil {
			s.err = err
			s.done = true
			return false
		}
		s.current = string(data)
		return true
	}
}

func (s *geminiStream) Current() string { return s.current }
func (s *geminiStream) Err() error      { return s.err }

func (s *geminiStream) Close() error {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.done = true
	return nil
}

func geminiError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return &UpstreamError{StatusCode: gErr.Code, Err: err}
	}
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPCode() > 0 {
		return &UpstreamError{StatusCode: apiErr.HTTPCode(), Err: err}
	}
	return &UpstreamError{Err: err}
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

var _ ChatUpstream = (*GeminiUpstream)(nil)
