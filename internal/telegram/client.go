// Package telegram is the bot's boundary to the Telegram Bot API, built on
// github.com/go-telegram/bot. It covers the calls the channel bot makes
// (text, photos, uploads, inline keyboards, callback answers, webhook
// registration) and long polling.
//
// Failed calls come back as *APIError when Telegram answered with an error
// code, so callers can inspect it. The bot token never appears in returned
// errors or logs.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the public Bot API endpoint.
	DefaultBaseURL = "https://api.telegram.org"

	// requestTimeout bounds every call, so long-poll waits must stay below it.
	requestTimeout = 30 * time.Second

	// pollTimeout is handed to the library, which long-polls for one second
	// less.
	pollTimeout = 26 * time.Second

	// MaxCaptionRunes is the Bot API limit on photo captions.
	MaxCaptionRunes = 1024
)

var allowedUpdates = []string{"message", "callback_query"}

// UpdateHandler receives updates from Poll.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u *Update)
}

// Client talks to the Bot API with one bot token.
type Client struct {
	api     *bot.Bot
	token   string
	handler UpdateHandler
}

// NewClient creates a Bot API client. An empty baseURL uses DefaultBaseURL.
// No request is made until the first call.
func NewClient(token, baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{token: token}
	api, err := bot.New(token,
		bot.WithSkipGetMe(),
		bot.WithServerURL(strings.TrimRight(baseURL, "/")),
		bot.WithHTTPClient(pollTimeout, &http.Client{Timeout: requestTimeout}),
		bot.WithAllowedUpdates(allowedUpdates),
		bot.WithNotAsyncHandlers(),
		bot.WithDefaultHandler(c.dispatch),
		bot.WithErrorsHandler(func(err error) {
			log.Warn().Str("error", c.hideToken(err.Error())).Msg("Telegram polling error")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("telegram client: %s", c.hideToken(err.Error()))
	}
	c.api = api
	return c, nil
}

// APIError is a Bot API call that Telegram rejected.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %s (code %d)", e.Method, e.Description, e.Code)
}

// IsInvalidFileID reports whether err is Telegram rejecting a stored
// file_id, which happens when the identifier belongs to another bot or has
// been invalidated.
func IsInvalidFileID(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusBadRequest {
		return false
	}
	d := strings.ToLower(apiErr.Description)
	return strings.Contains(d, "file identifier") || strings.Contains(d, "file_id")
}

// --- Sending ---

// SendMessage sends a text message to chatID (a numeric id or @channel).
func (c *Client) SendMessage(ctx context.Context, chatID, text string, opts MessageOptions) (*Message, error) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: opts.ParseMode,
	}
	if opts.ReplyMarkup != nil {
		params.ReplyMarkup = opts.ReplyMarkup
	}

	msg, err := c.api.SendMessage(ctx, params)
	if err != nil {
		return nil, c.translate("sendMessage", err)
	}
	log.Debug().Str("chatId", chatID).Int("messageId", msg.ID).Msg("Message sent")
	return msg, nil
}

// SendPhoto sends a photo already stored on Telegram, referenced by fileID.
func (c *Client) SendPhoto(ctx context.Context, chatID, fileID, caption string, opts MessageOptions) (*Message, error) {
	params := &bot.SendPhotoParams{
		ChatID:    chatID,
		Photo:     &models.InputFileString{Data: fileID},
		Caption:   caption,
		ParseMode: opts.ParseMode,
	}
	if opts.ReplyMarkup != nil {
		params.ReplyMarkup = opts.ReplyMarkup
	}

	msg, err := c.api.SendPhoto(ctx, params)
	if err != nil {
		return nil, c.translate("sendPhoto", err)
	}
	log.Debug().Str("chatId", chatID).Int("messageId", msg.ID).Msg("Photo sent")
	return msg, nil
}

// UploadPhoto uploads image bytes as a new photo. The returned message
// carries the file_ids Telegram assigned to it.
func (c *Client) UploadPhoto(ctx context.Context, chatID, filename string, data io.Reader, caption string) (*Message, error) {
	msg, err := c.api.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileUpload{Filename: filename, Data: data},
		Caption: caption,
	})
	if err != nil {
		return nil, c.translate("sendPhoto", err)
	}
	log.Info().Str("chatId", chatID).Str("file", filename).Int("sizes", len(msg.Photo)).Msg("Photo uploaded")
	return msg, nil
}

// SendChatAction shows a status such as "typing" or "upload_photo".
func (c *Client) SendChatAction(ctx context.Context, chatID string, action ChatAction) error {
	if _, err := c.api.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: action}); err != nil {
		return c.translate("sendChatAction", err)
	}
	return nil
}

// AnswerCallbackQuery acknowledges a button press. text may be empty.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	if _, err := c.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	}); err != nil {
		return c.translate("answerCallbackQuery", err)
	}
	return nil
}

// --- Receiving ---

// Poll long-polls for updates until ctx is cancelled and hands them to h one
// at a time, in order. Failed getUpdates calls are logged and retried by the
// library.
func (c *Client) Poll(ctx context.Context, h UpdateHandler) {
	c.handler = h
	log.Info().Dur("wait", pollTimeout-time.Second).Msg("Polling for updates")
	c.api.Start(ctx)
	log.Info().Msg("Polling stopped")
}

func (c *Client) dispatch(ctx context.Context, _ *bot.Bot, u *models.Update) {
	if c.handler != nil {
		c.handler.HandleUpdate(ctx, u)
	}
}

// SetWebhook registers hookURL for update delivery. secret, when set, is echoed
// back by Telegram in the X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(ctx context.Context, hookURL, secret string) error {
	if _, err := c.api.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:            hookURL,
		SecretToken:    secret,
		AllowedUpdates: allowedUpdates,
	}); err != nil {
		return c.translate("setWebhook", err)
	}
	log.Info().Str("url", hookURL).Msg("Webhook registered")
	return nil
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	if _, err := c.api.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
		return c.translate("deleteWebhook", err)
	}
	return nil
}

// GetMe returns the bot's own user. Used as a token check at startup.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	me, err := c.api.GetMe(ctx)
	if err != nil {
		return nil, c.translate("getMe", err)
	}
	return me, nil
}

// --- Internal helpers ---

// translate turns a library error into *APIError when Telegram answered
// with an error code, and into a token-free error otherwise.
func (c *Client) translate(method string, err error) error {
	desc := c.hideToken(err.Error())
	apiErr := &APIError{Method: method, Description: desc}

	var tooMany *bot.TooManyRequestsError
	switch {
	case errors.As(err, &tooMany):
		apiErr.Code = http.StatusTooManyRequests
		apiErr.RetryAfter = tooMany.RetryAfter
	case errors.Is(err, bot.ErrorBadRequest):
		apiErr.Code = http.StatusBadRequest
	case errors.Is(err, bot.ErrorUnauthorized):
		apiErr.Code = http.StatusUnauthorized
	case errors.Is(err, bot.ErrorForbidden):
		apiErr.Code = http.StatusForbidden
	case errors.Is(err, bot.ErrorNotFound):
		apiErr.Code = http.StatusNotFound
	default:
		log.Debug().Str("method", method).Str("error", desc).Msg("Telegram request failed")
		return &requestError{method: method, msg: desc, err: err}
	}

	log.Warn().Str("method", method).Int("errorCode", apiErr.Code).Str("description", desc).Msg("Telegram API error")
	return apiErr
}

// hideToken removes the bot token, which the library puts in request URLs.
func (c *Client) hideToken(s string) string {
	if c.token == "" {
		return s
	}
	return strings.ReplaceAll(s, c.token, "<token>")
}

// requestError is a call that got no usable answer from Telegram.
type requestError struct {
	method string
	msg    string
	err    error
}

func (e *requestError) Error() string {
	return fmt.Sprintf("telegram %s: %s", e.method, e.msg)
}

func (e *requestError) Unwrap() error { return e.err }
