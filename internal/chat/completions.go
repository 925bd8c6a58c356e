package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/fpang/astro-channel-bot/internal/apperr"
)

const (
	// DefaultCompletionsBaseURL is the io.net intelligence API.
	DefaultCompletionsBaseURL = "https://api.intelligence.io.solutions/api/v1"

	defaultTimeout = 60 * time.Second
	opCompletions  = "chat.completions"
)

// CompletionsClient calls an OpenAI-compatible /chat/completions endpoint.
// go-openai does not retry, so one Generate is one HTTP request.
type CompletionsClient struct {
	client *openai.Client
	token  string
}

// NewCompletionsClient creates a client. An empty baseURL selects
// DefaultCompletionsBaseURL; a non-positive timeout selects 60s.
func NewCompletionsClient(token, baseURL string, timeout time.Duration) *CompletionsClient {
	if baseURL == "" {
		baseURL = DefaultCompletionsBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cfg := openai.DefaultConfig(token)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &CompletionsClient{
		client: openai.NewClientWithConfig(cfg),
		token:  token,
	}
}

// Generate sends req as a system + user message pair and returns the first
// choice's content.
func (c *CompletionsClient) Generate(ctx context.Context, req Request) (string, error) {
	if c.token == "" {
		return "", apperr.Wrap(apperr.ConfigMissing, opCompletions,
			fmt.Errorf("IO_INTELLIGENCE_TOKEN is not set: %w", apperr.ErrMissingConfig))
	}

	log.Debug().
		Str("model", req.Model).
		Int("promptLength", len(req.Prompt)).
		Float64("temperature", req.Temperature).
		Int("maxTokens", req.MaxTokens).
		Msg("Chat completion request")

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	duration := time.Since(start)
	if err != nil {
		status := statusOf(err)
		log.Error().Int("statusCode", status).Dur("duration", duration).Str("error", truncate(err.Error(), 200)).Msg("Chat completion API error")
		if status != 0 {
			return "", apperr.WithStatus(apperr.GenerationFailed, opCompletions, status, err)
		}
		return "", apperr.Wrap(apperr.GenerationFailed, opCompletions, fmt.Errorf("request failed: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.GenerationFailed, opCompletions, "response has no choices")
	}

	text := normalizeCompletion(resp.Choices[0].Message.Content)
	if text == "" {
		return "", apperr.New(apperr.GenerationFailed, opCompletions, "empty completion")
	}

	log.Debug().Int("responseLength", len(text)).Dur("duration", duration).Msg("Chat completion received")
	return text, nil
}

// statusOf returns the upstream HTTP status carried by a go-openai error,
// or 0 for transport and decoding failures.
func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
