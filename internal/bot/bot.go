// Package bot is the interaction layer: it turns Telegram updates into
// publish attempts and upload runs, and reports the outcome back to the user
// who triggered them.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/astro-channel-bot/internal/astronomy"
	"github.com/fpang/astro-channel-bot/internal/metrics"
	"github.com/fpang/astro-channel-bot/internal/publish"
	"github.com/fpang/astro-channel-bot/internal/telegram"
	"github.com/fpang/astro-channel-bot/internal/upload"
	"github.com/fpang/astro-channel-bot/internal/zodiac"
)

// User-facing texts.
const (
	textChooseSign     = "Выберите знак зодиака для генерации гороскопа:"
	textUnknownSign    = "Неизвестный знак зодиака"
	textUploadDone     = "Загрузка изображений завершена!"
	textUploadFailed   = "Не удалось сохранить идентификаторы изображений."
	textAdminOnly      = "Эта команда доступна только администратору."
	textInternalFailed = "Произошла внутренняя ошибка бота"
)

// ErrUnknownSign is returned by RunAttempt for keys outside the registry.
var ErrUnknownSign = errors.New("unknown zodiac sign")

// Messenger is the part of the Telegram client the bot talks through.
type Messenger interface {
	SendMessage(ctx context.Context, chatID, text string, opts telegram.MessageOptions) (*telegram.Message, error)
	SendChatAction(ctx context.Context, chatID string, action telegram.ChatAction) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

// PositionSource fetches the day's body positions.
type PositionSource interface {
	FetchPositions(ctx context.Context, instant time.Time) (astronomy.FactSet, error)
}

// Composer writes the horoscope body for date.
type Composer interface {
	Compose(ctx context.Context, sign zodiac.Sign, facts astronomy.FactSet, date time.Time) (string, error)
}

// Publisher delivers the post for date to the channel.
type Publisher interface {
	Publish(ctx context.Context, sign zodiac.Sign, caption string, date time.Time, reply publish.Replier) (publish.Outcome, error)
}

// Uploader seeds the media identifier store.
type Uploader interface {
	Run(ctx context.Context, chatID string, notify upload.Notifier) (upload.Report, error)
}

// AttemptRecorder receives one record per publish attempt.
type AttemptRecorder interface {
	RecordAttempt(a metrics.Attempt)
}

// Deps are the collaborators of a Bot. Uploader and Metrics are optional.
type Deps struct {
	Messenger Messenger
	Positions PositionSource
	Composer  Composer
	Publisher Publisher
	Uploader  Uploader
	Metrics   AttemptRecorder
	// Admins may run /upload_images. Empty means anyone may.
	Admins []int64
	Now    func() time.Time
}

// Bot dispatches updates. Updates are handled one at a time.
type Bot struct {
	tg        Messenger
	positions PositionSource
	composer  Composer
	publisher Publisher
	uploader  Uploader
	metrics   AttemptRecorder
	admins    map[int64]bool
	now       func() time.Time
}

// New creates a Bot.
func New(d Deps) *Bot {
	b := &Bot{
		tg:        d.Messenger,
		positions: d.Positions,
		composer:  d.Composer,
		publisher: d.Publisher,
		uploader:  d.Uploader,
		metrics:   d.Metrics,
		admins:    make(map[int64]bool, len(d.Admins)),
		now:       d.Now,
	}
	for _, id := range d.Admins {
		b.admins[id] = true
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// HandleUpdate processes one update. It never returns an error: failures
// are logged and, where there is someone to tell, reported as a reply.
func (b *Bot) HandleUpdate(ctx context.Context, u *telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int64("updateId", u.ID).Msg("Update handler panicked")
			if chatID, ok := updateChat(u); ok {
				b.reply(ctx, chatID, textInternalFailed)
			}
		}
	}()

	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	default:
		log.Debug().Int64("updateId", u.ID).Msg("Ignoring update")
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *telegram.Message) {
	chatID := strconv.FormatInt(m.Chat.ID, 10)
	switch command(m.Text) {
	case "/start":
		if _, err := b.tg.SendMessage(ctx, chatID, textChooseSign, telegram.MessageOptions{ReplyMarkup: SignKeyboard()}); err != nil {
			log.Warn().Err(err).Str("chatId", chatID).Msg("Failed to send sign keyboard")
		}
	case "/upload_images":
		b.handleUpload(ctx, m, chatID)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if err := b.tg.AnswerCallbackQuery(ctx, cb.ID, ""); err != nil {
		log.Debug().Err(err).Str("callbackId", cb.ID).Msg("Failed to answer callback query")
	}

	chatID := strconv.FormatInt(telegram.CallbackChatID(cb), 10)

	if _, ok := zodiac.Lookup(cb.Data); ok {
		if err := b.tg.SendChatAction(ctx, chatID, telegram.ChatActionTyping); err != nil {
			log.Debug().Err(err).Msg("Failed to send chat action")
		}
	}
	_ = b.RunAttempt(ctx, cb.Data, b.replier(chatID))
}

func (b *Bot) handleUpload(ctx context.Context, m *telegram.Message, chatID string) {
	if b.uploader == nil {
		return
	}
	if len(b.admins) > 0 && (m.From == nil || !b.admins[m.From.ID]) {
		log.Warn().Str("chatId", chatID).Msg("Rejected /upload_images from non-admin")
		b.reply(ctx, chatID, textAdminOnly)
		return
	}

	report, err := b.uploader.Run(ctx, chatID, func(ctx context.Context, text string) {
		b.reply(ctx, chatID, text)
	})
	if err != nil {
		log.Error().Err(err).Msg("Image upload run failed")
		b.reply(ctx, chatID, textUploadFailed)
		return
	}
	log.Info().
		Int("uploaded", len(report.Uploaded)).
		Int("missing", len(report.Missing)).
		Int("failed", len(report.Failed)).
		Msg("Image upload run finished")
	b.reply(ctx, chatID, textUploadDone)
}

func (b *Bot) reply(ctx context.Context, chatID, text string) {
	if _, err := b.tg.SendMessage(ctx, chatID, text, telegram.MessageOptions{}); err != nil {
		log.Warn().Err(err).Str("chatId", chatID).Msg("Failed to send reply")
	}
}

func (b *Bot) replier(chatID string) publish.Replier {
	return publish.ReplierFunc(func(ctx context.Context, text string) error {
		_, err := b.tg.SendMessage(ctx, chatID, text, telegram.MessageOptions{})
		return err
	})
}

// SignKeyboard lists every sign, one button per row.
func SignKeyboard() *telegram.InlineKeyboardMarkup {
	signs := zodiac.All()
	rows := make([][]telegram.InlineKeyboardButton, 0, len(signs))
	for _, s := range signs {
		rows = append(rows, []telegram.InlineKeyboardButton{{Text: s.Title(), CallbackData: s.Key}})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// command extracts "/name" from "/name@botname args".
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(strings.Fields(text)[0], "@")
	return strings.ToLower(cmd)
}

func updateChat(u *telegram.Update) (string, bool) {
	switch {
	case u.Message != nil:
		return strconv.FormatInt(u.Message.Chat.ID, 10), true
	case u.CallbackQuery != nil:
		return strconv.FormatInt(telegram.CallbackChatID(u.CallbackQuery), 10), true
	}
	return "", false
}
