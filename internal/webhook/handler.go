// Package webhook provides an HTTP handler for Telegram webhook delivery.
//
// Telegram POSTs one JSON Update per request. When a secret token was set
// with setWebhook, Telegram echoes it in the X-Telegram-Bot-Api-Secret-Token
// header; the handler rejects requests that do not carry it.
//
// The handler answers 200 once the update has been dispatched, whatever the
// outcome of processing. A non-2xx answer makes Telegram redeliver the same
// update, which would publish the same horoscope twice.
//
// Processing runs inline under a deadline (DefaultBudget) that leaves room
// for the failure reply and the response before API Gateway's 29 second
// integration timeout. An update that runs out of budget fails like any
// other attempt and is still answered with 200.
//
// Reference: https://core.telegram.org/bots/api#setwebhook
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/astro-channel-bot/internal/telegram"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// SecretHeader carries the webhook secret token.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// DefaultBudget bounds the processing of one update.
const DefaultBudget = 22 * time.Second

// UpdateHandler processes one update. *bot.Bot satisfies it.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u *telegram.Update)
}

// Handler receives Telegram webhook calls.
type Handler struct {
	secret  string
	updates UpdateHandler
	budget  time.Duration
}

// Option customizes a Handler.
type Option func(*Handler)

// WithBudget replaces DefaultBudget. Non-positive values are ignored.
func WithBudget(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.budget = d
		}
	}
}

// NewHandler creates a webhook handler. An empty secret disables the header
// check.
func NewHandler(secret string, updates UpdateHandler, opts ...Option) *Handler {
	h := &Handler{secret: secret, updates: updates, budget: DefaultBudget}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP accepts POSTed updates.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.secret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			log.Warn().Bool("headerPresent", got != "").Msg("Webhook: invalid secret token")
			http.Error(w, "invalid secret token", http.StatusForbidden)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error().Err(err).Msg("Webhook: failed to read body")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(body) == 0 {
		log.Warn().Msg("Webhook: empty body")
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	var update telegram.Update
	if err := json.Unmarshal(body, &update); err != nil {
		log.Warn().Err(err).Int("bodySize", len(body)).Msg("Webhook: malformed update")
		http.Error(w, "malformed update", http.StatusBadRequest)
		return
	}

	log.Debug().
		Int64("updateId", update.ID).
		Int("bodySize", len(body)).
		Msg("Webhook update received")

	ctx, cancel := context.WithTimeout(r.Context(), h.budget)
	defer cancel()
	h.updates.HandleUpdate(ctx, &update)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Warn().Int64("updateId", update.ID).Dur("budget", h.budget).Msg("Webhook: update processing ran out of time")
	}
	w.WriteHeader(http.StatusOK)
}
