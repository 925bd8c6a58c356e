// Package horoscope turns a sign and the day's body positions into a
// generation request and returns the model's horoscope text.
package horoscope

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/astro-channel-bot/internal/apperr"
	"github.com/fpang/astro-channel-bot/internal/assets"
	"github.com/fpang/astro-channel-bot/internal/astronomy"
	"github.com/fpang/astro-channel-bot/internal/chat"
	"github.com/fpang/astro-channel-bot/internal/zodiac"
)

const opCompose = "horoscope.compose"

// Generator produces completion text for a request.
type Generator interface {
	Generate(ctx context.Context, req chat.Request) (string, error)
}

// Settings is the generation policy. Values are tunable, not correctness
// constraints, but must stay within sane bounds.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// DefaultSettings are the values the channel has run with.
var DefaultSettings = Settings{
	Model:       chat.ModelMinistral8B,
	Temperature: 0.7,
	MaxTokens:   380,
}

const maxTokensCeiling = 4096

// Validate checks 0 < Temperature <= 1 and 0 < MaxTokens <= 4096.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if s.Temperature <= 0 || s.Temperature > 1 {
		return fmt.Errorf("temperature must be in (0, 1], got %v", s.Temperature)
	}
	if s.MaxTokens <= 0 || s.MaxTokens > maxTokensCeiling {
		return fmt.Errorf("max tokens must be in (0, %d], got %d", maxTokensCeiling, s.MaxTokens)
	}
	return nil
}

// Composer writes horoscopes.
type Composer struct {
	gen      Generator
	settings Settings
	tz       *time.Location
}

// Option customizes a Composer.
type Option func(*Composer)

// WithTimeZone sets the zone the prompt date is rendered in.
func WithTimeZone(tz *time.Location) Option {
	return func(c *Composer) {
		if tz != nil {
			c.tz = tz
		}
	}
}

// NewComposer creates a Composer. settings must pass Validate.
func NewComposer(gen Generator, settings Settings, opts ...Option) (*Composer, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("generation settings: %w", err)
	}
	c := &Composer{gen: gen, settings: settings, tz: time.UTC}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Compose returns the horoscope body for sign on date, which is rendered in
// the composer's time zone. Generator failures come back as
// apperr.GenerationFailed (or ConfigMissing when a credential is absent);
// nothing is retried.
func (c *Composer) Compose(ctx context.Context, sign zodiac.Sign, facts astronomy.FactSet, date time.Time) (string, error) {
	if !facts.Complete() {
		return "", apperr.New(apperr.DataUnavailable, opCompose, "incomplete fact set: %d of %d bodies", len(facts.Facts()), len(astronomy.Bodies))
	}

	prompt, err := RenderPrompt(sign, facts, date.In(c.tz))
	if err != nil {
		return "", apperr.Wrap(apperr.GenerationFailed, opCompose, fmt.Errorf("render prompt: %w", err))
	}

	start := time.Now()
	text, err := c.gen.Generate(ctx, chat.Request{
		Model:       c.settings.Model,
		System:      strings.TrimSpace(assets.HoroscopeSystemPrompt),
		Prompt:      prompt,
		Temperature: c.settings.Temperature,
		MaxTokens:   c.settings.MaxTokens,
	})
	if err != nil {
		if apperr.IsKind(err, apperr.ConfigMissing) {
			return "", err
		}
		return "", apperr.Wrap(apperr.GenerationFailed, opCompose, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.New(apperr.GenerationFailed, opCompose, "empty completion")
	}

	log.Info().
		Str("sign", sign.Key).
		Str("model", c.settings.Model).
		Int("length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Horoscope composed")
	return text, nil
}

// RenderPrompt renders the user prompt for sign on date.
func RenderPrompt(sign zodiac.Sign, facts astronomy.FactSet, date time.Time) (string, error) {
	data := assets.HoroscopePromptData{
		Sign:   sign.DisplayName,
		Date:   FormatDateRU(date),
		Rulers: sign.RulersText(),
	}
	for _, f := range facts.Facts() {
		data.Facts = append(data.Facts, assets.PromptFact{
			Body:          astronomy.BodyNameRU(f.Body),
			Constellation: f.Constellation,
		})
	}
	return assets.RenderHoroscopePrompt(data)
}
