// Package publish delivers a composed horoscope to the channel.
//
// A sign with a cached media identifier is published as a photo with the
// horoscope as its caption. A sign without one is published as plain text.
// The text path is the designed fallback for missing media, not an error
// path: a stored identifier that Telegram rejects is a delivery failure and
// is never silently downgraded to text.
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/astro-channel-bot/internal/apperr"
	"github.com/fpang/astro-channel-bot/internal/telegram"
	"github.com/fpang/astro-channel-bot/internal/zodiac"
)

const opPublish = "publish.deliver"

// DefaultSignature closes every post.
const DefaultSignature = "☄️Luory"

// Mode is how a post reached the channel.
type Mode string

const (
	ModePhoto Mode = "photo"
	ModeText  Mode = "text"
)

// Outcome is the result of one Publish call.
type Outcome struct {
	Delivered bool
	Mode      Mode
	MessageID int64
	Kind      apperr.Kind
}

// Sender is the channel transport.
type Sender interface {
	SendPhoto(ctx context.Context, chatID, fileID, caption string, opts telegram.MessageOptions) (*telegram.Message, error)
	SendMessage(ctx context.Context, chatID, text string, opts telegram.MessageOptions) (*telegram.Message, error)
}

// IdentifierSource resolves a sign key to a cached media identifier.
// *store.FileIDStore satisfies it.
type IdentifierSource interface {
	Get(key string) (string, bool)
}

// Replier acknowledges to whoever triggered the attempt.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, text string) error

func (f ReplierFunc) Reply(ctx context.Context, text string) error { return f(ctx, text) }

// Publisher sends posts to a single channel. It only reads the identifier
// store.
type Publisher struct {
	sender    Sender
	ids       IdentifierSource
	channelID string
	signature string
	tz        *time.Location
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithSignature replaces DefaultSignature.
func WithSignature(sig string) Option {
	return func(p *Publisher) { p.signature = sig }
}

// WithTimeZone sets the zone the post date is rendered in.
func WithTimeZone(tz *time.Location) Option {
	return func(p *Publisher) {
		if tz != nil {
			p.tz = tz
		}
	}
}

// NewPublisher creates a Publisher for channelID.
func NewPublisher(sender Sender, ids IdentifierSource, channelID string, opts ...Option) *Publisher {
	p := &Publisher{
		sender:    sender,
		ids:       ids,
		channelID: channelID,
		signature: DefaultSignature,
		tz:        time.UTC,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish posts caption for sign to the channel, dated date in the
// publisher's time zone, then acknowledges through reply. reply may be nil.
// Acknowledgment failures are logged and do not affect the outcome.
func (p *Publisher) Publish(ctx context.Context, sign zodiac.Sign, caption string, date time.Time, reply Replier) (Outcome, error) {
	date = date.In(p.tz)
	fileID, ok := p.ids.Get(sign.Key)

	var (
		outcome Outcome
		msg     *telegram.Message
		err     error
	)
	if ok {
		outcome.Mode = ModePhoto
		post := FormatCaption(sign, date, caption, p.signature)
		log.Debug().Str("sign", sign.Key).Str("fileId", fileID).Msg("Publishing photo post")
		msg, err = p.sender.SendPhoto(ctx, p.channelID, fileID, post, telegram.MessageOptions{ParseMode: telegram.ParseModeMarkdown})
	} else {
		outcome.Mode = ModeText
		post := FormatPost(sign, date, caption, p.signature)
		log.Debug().Str("sign", sign.Key).Msg("No media on file, publishing text post")
		msg, err = p.sender.SendMessage(ctx, p.channelID, post, telegram.MessageOptions{ParseMode: telegram.ParseModeMarkdown})
	}

	if err != nil {
		outcome.Kind = apperr.DeliveryFailed
		if telegram.IsInvalidFileID(err) {
			log.Error().Err(err).Str("sign", sign.Key).Str("fileId", fileID).
				Msg("Stored media identifier rejected by Telegram, re-run /upload_images")
		}
		return outcome, apperr.Wrap(apperr.DeliveryFailed, opPublish, fmt.Errorf("%s post for %s: %w", outcome.Mode, sign.Key, err))
	}

	outcome.Delivered = true
	if msg != nil {
		outcome.MessageID = int64(msg.ID)
	}
	log.Info().Str("sign", sign.Key).Str("mode", string(outcome.Mode)).Int64("messageId", outcome.MessageID).Msg("Horoscope published")

	if reply != nil {
		if err := reply.Reply(ctx, Acknowledgment(sign)); err != nil {
			log.Warn().Err(err).Str("sign", sign.Key).Msg("Failed to acknowledge publish")
		}
	}
	return outcome, nil
}

// Acknowledgment is the confirmation sent back to the triggering user.
func Acknowledgment(sign zodiac.Sign) string {
	return fmt.Sprintf("Гороскоп для %s опубликован в канале!", sign.DisplayName)
}
