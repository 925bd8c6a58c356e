package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/astro-channel-bot/internal/apperr"
	"github.com/fpang/astro-channel-bot/internal/metrics"
	"github.com/fpang/astro-channel-bot/internal/publish"
	"github.com/fpang/astro-channel-bot/internal/zodiac"
)

// replyTimeout bounds the failure reply, which is sent even when the
// attempt's own context has run out.
const replyTimeout = 5 * time.Second

// RunAttempt performs one publish attempt for signKey: fetch positions,
// compose, publish. The steps run strictly in order and the first failure
// ends the attempt. On failure the user gets the generic apology through
// reply; details go to the log only. reply may be nil.
func (b *Bot) RunAttempt(ctx context.Context, signKey string, reply publish.Replier) error {
	sign, ok := zodiac.Lookup(signKey)
	if !ok {
		log.Warn().Str("sign", signKey).Msg("Unknown sign requested")
		sendReply(ctx, reply, textUnknownSign)
		return fmt.Errorf("%w: %q", ErrUnknownSign, signKey)
	}

	attemptID := uuid.NewString()
	logger := log.With().Str("attemptId", attemptID).Str("sign", sign.Key).Logger()
	start := time.Now()
	logger.Info().Msg("Publish attempt started")

	outcome, err := b.attempt(ctx, sign, b.now(), reply)

	result := "ok"
	if err != nil {
		kind := apperr.KindOf(err)
		result = string(kind)
		if kind == apperr.KindNone {
			result = "unclassified"
		}
		logger.Error().Err(err).Str("kind", result).Dur("duration", time.Since(start)).Msg("Publish attempt failed")
		replyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
		sendReply(replyCtx, reply, apperr.UserMessage(err))
		cancel()
	} else {
		logger.Info().Str("mode", string(outcome.Mode)).Dur("duration", time.Since(start)).Msg("Publish attempt finished")
	}

	if b.metrics != nil {
		b.metrics.RecordAttempt(metrics.Attempt{
			ID:      attemptID,
			Sign:    sign.Key,
			Mode:    string(outcome.Mode),
			Result:  result,
			Latency: time.Since(start),
		})
	}
	return err
}

// attempt runs the three steps against a single instant, so the positions,
// the prompt date and the post date always agree.
func (b *Bot) attempt(ctx context.Context, sign zodiac.Sign, now time.Time, reply publish.Replier) (publish.Outcome, error) {
	facts, err := b.positions.FetchPositions(ctx, now)
	if err != nil {
		return publish.Outcome{}, err
	}

	caption, err := b.composer.Compose(ctx, sign, facts, now)
	if err != nil {
		return publish.Outcome{}, err
	}

	return b.publisher.Publish(ctx, sign, caption, now, reply)
}

func sendReply(ctx context.Context, reply publish.Replier, text string) {
	if reply == nil {
		return
	}
	if err := reply.Reply(ctx, text); err != nil {
		log.Warn().Err(err).Msg("Failed to send reply")
	}
}
