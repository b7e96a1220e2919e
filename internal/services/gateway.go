package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"

	"skillshare-backend/internal/models"
)

// GatewayUpstream streams completions from an OpenAI-compatible gateway.
type GatewayUpstream struct {
	client openai.Client
	model  string
}

// NewGatewayUpstream builds a gateway client. httpClient may be nil.
func NewGatewayUpstream(baseURL, apiKey, model string, httpClient *http.Client) (*GatewayUpstream, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gateway api key is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("gateway model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		// Rate-limit and quota responses go straight back to the caller.
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	slog.Debug("gateway_upstream_ready", "base_url", baseURL, "model", model)
	return &GatewayUpstream{client: openai.NewClient(opts...), model: model}, nil
}

func (g *GatewayUpstream) Name() string  { return "gateway" }
func (g *GatewayUpstream) Model() string { return g.model }

func (g *GatewayUpstream) Stream(ctx context.Context, messages []models.ChatMessage) (ChunkStream, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	for _, m := range messages {
		param, err := toGatewayMessage(m)
		if err != nil {
			return nil, err
		}
		params.Messages = append(params.Messages, param)
	}

	slog.Debug("gateway_stream_request", "model", g.model, "message_count", len(messages))
	stream := g.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		stream.Close()
		return nil, gatewayError(err)
	}
	return &gatewayStream{stream: stream}, nil
}

func toGatewayMessage(m models.ChatMessage) (openai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case models.RoleSystem:
		return openai.SystemMessage(m.Content), nil
	case models.RoleUser:
		return openai.UserMessage(m.Content), nil
	case models.RoleAssistant:
		return openai.AssistantMessage(m.Content), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported role: %s", m.Role)
	}
}

func gatewayError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &UpstreamError{StatusCode: apiErr.StatusCode, Err: err}
	}
	return &UpstreamError{Err: err}
}

type gatewayStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
}

func (s *gatewayStream) Next() bool {
	return s.stream.Next()
}

// Current returns the chunk exactly as the gateway sent it.
func (s *gatewayStream) Current() string {
	return s.stream.Current().RawJSON()
}

func (s *gatewayStream) Err() error {
	if err := s.stream.Err(); err != nil {
		return gatewayError(err)
	}
	return nil
}

func (s *gatewayStream) Close() error {
	return s.stream.Close()
}

var _ ChatUpstream = (*GatewayUpstream)(nil)
