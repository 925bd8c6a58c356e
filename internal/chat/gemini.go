package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/astro-channel-bot/internal/apperr"
)

const opGemini = "chat.gemini"

// GeminiClient generates text with the Gemini API.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a Gemini backend. An empty apiKey is reported as
// apperr.ConfigMissing. An empty baseURL keeps the public endpoint; a
// non-positive timeout selects 60s.
func NewGeminiClient(ctx context.Context, apiKey, baseURL string, timeout time.Duration) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, apperr.Wrap(apperr.ConfigMissing, opGemini,
			fmt.Errorf("GEMINI_API_KEY is not set: %w", apperr.ErrMissingConfig))
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
			Timeout: &timeout,
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.GenerationFailed, opGemini, fmt.Errorf("create Gemini client: %w", err))
	}
	log.Info().Dur("timeout", timeout).Msg("Gemini client initialized")
	return &GeminiClient{client: client}, nil
}

// Generate maps req onto GenerateContent with a system instruction.
func (g *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	temperature := float32(req.Temperature)
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		},
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.MaxTokens),
	}

	log.Debug().
		Str("model", req.Model).
		Int("promptLength", len(req.Prompt)).
		Msg("Starting Gemini API call for horoscope generation")

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), config)
	duration := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Msg("Failed to generate horoscope from Gemini")
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", apperr.WithStatus(apperr.GenerationFailed, opGemini, apiErr.Code, err)
		}
		return "", apperr.Wrap(apperr.GenerationFailed, opGemini, err)
	}
	if resp == nil {
		return "", apperr.New(apperr.GenerationFailed, opGemini, "received empty response from Gemini API")
	}

	text := normalizeCompletion(resp.Text())
	if text == "" {
		return "", apperr.New(apperr.GenerationFailed, opGemini, "empty completion")
	}
	log.Debug().Int("responseLength", len(text)).Dur("duration", duration).Msg("Gemini API response received")
	return text, nil
}
