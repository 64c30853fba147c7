package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/kotoba/pkg/observability"
)

// Generator sends one prompt to a language model and returns the raw JSON
// content of its reply. Implementations make exactly one upstream call and
// never retry.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// UpstreamKind classifies a failed language model call
type UpstreamKind string

const (
	UpstreamUnauthorized UpstreamKind = "unauthorized"
	UpstreamRateLimited  UpstreamKind = "rate_limited"
	UpstreamFailed       UpstreamKind = "error"
	UpstreamMalformed    UpstreamKind = "malformed"
)

// UpstreamError is returned when the language model call fails or its reply
// cannot be used
type UpstreamError struct {
	Kind   UpstreamKind
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// AsUpstreamError unwraps err to an *UpstreamError
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

func malformed(format string, args ...interface{}) *UpstreamError {
	return &UpstreamError{Kind: UpstreamMalformed, Err: fmt.Errorf(format, args...)}
}

// ClassifyUpstreamError maps a client error to an *UpstreamError by HTTP
// status: 401 is unauthorized, 429 is rate limited, anything else is a
// generic failure.
func ClassifyUpstreamError(err error) *UpstreamError {
	if err == nil {
		return nil
	}
	if ue, ok := AsUpstreamError(err); ok {
		return ue
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusUnauthorized:
		return &UpstreamError{Kind: UpstreamUnauthorized, Status: status, Err: err}
	case http.StatusTooManyRequests:
		return &UpstreamError{Kind: UpstreamRateLimited, Status: status, Err: err}
	default:
		return &UpstreamError{Kind: UpstreamFailed, Status: status, Err: err}
	}
}

// OpenAIConfig configures the OpenAI chat completions client
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// OpenAIGenerator calls the OpenAI chat completions API in JSON mode
type OpenAIGenerator struct {
	client  *openai.Client
	prompts *PromptConfig
	metrics *observability.Metrics
}

// NewOpenAIGenerator creates a generator. BaseURL overrides the API endpoint,
// which tests point at an httptest server.
func NewOpenAIGenerator(cfg OpenAIConfig, prompts *PromptConfig, metrics *observability.Metrics) *OpenAIGenerator {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if prompts == nil {
		prompts = DefaultPromptConfig()
	}

	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(clientConfig),
		prompts: prompts,
		metrics: metrics,
	}
}

// Generate implements Generator
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt Prompt) (string, error) {
	ctx, span := observability.Tracer().Start(ctx, "openai.chat_completion")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", g.prompts.Model),
		attribute.Int("llm.prompt_chars", len(prompt.User)),
	)

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.prompts.Model,
		Temperature: g.prompts.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt.User},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		upstreamErr := ClassifyUpstreamError(err)
		g.metrics.RecordUpstream(g.prompts.Model, statusLabel(upstreamErr.Status), time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(upstreamErr.Kind))
		return "", upstreamErr
	}
	g.metrics.RecordUpstream(g.prompts.Model, "200", time.Since(start))

	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, string(UpstreamMalformed))
		return "", malformed("response contained no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

func statusLabel(status int) string {
	if status == 0 {
		return "transport_error"
	}
	return strconv.Itoa(status)
}
