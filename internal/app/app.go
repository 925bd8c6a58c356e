// Package app wires the bot's components from a resolved configuration.
// Both the long-polling CLI and the webhook Lambda build their runtime here,
// so the two deployments cannot drift apart.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/fpang/astro-channel-bot/internal/astronomy"
	"github.com/fpang/astro-channel-bot/internal/bot"
	"github.com/fpang/astro-channel-bot/internal/chat"
	"github.com/fpang/astro-channel-bot/internal/config"
	"github.com/fpang/astro-channel-bot/internal/horoscope"
	"github.com/fpang/astro-channel-bot/internal/metrics"
	"github.com/fpang/astro-channel-bot/internal/publish"
	"github.com/fpang/astro-channel-bot/internal/store"
	"github.com/fpang/astro-channel-bot/internal/telegram"
	"github.com/fpang/astro-channel-bot/internal/upload"
)

// App is the assembled runtime.
type App struct {
	Config    *config.Config
	Telegram  *telegram.Client
	Store     *store.FileIDStore
	Publisher *publish.Publisher
	Uploader  *upload.Uploader
	Bot       *bot.Bot
}

// Options are the parts of the runtime that differ between entry points.
type Options struct {
	// Snapshot is where media identifiers are persisted.
	Snapshot store.Backend
	// MetricsOut receives EMF lines when metrics are enabled.
	MetricsOut io.Writer
	// TelegramBaseURL overrides the Bot API endpoint.
	TelegramBaseURL string
}

// New builds the runtime. The identifier store is loaded from the snapshot
// here; a missing or corrupt snapshot yields an empty store.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	composer, err := horoscope.NewComposer(gen, cfg.GenerationSettings(), horoscope.WithTimeZone(cfg.TimeZone))
	if err != nil {
		return nil, err
	}

	positions := astronomy.NewClient(astronomy.Options{
		AppID:     cfg.AstronomyAppID,
		AppSecret: cfg.AstronomyAppSecret,
		Observer:  cfg.Observer,
		TimeZone:  cfg.TimeZone,
		Timeout:   cfg.HTTPTimeout,
	})

	tg, err := telegram.NewClient(cfg.TelegramToken, opts.TelegramBaseURL)
	if err != nil {
		return nil, err
	}
	ids := store.Load(ctx, opts.Snapshot)
	publisher := publish.NewPublisher(tg, ids, cfg.ChannelID,
		publish.WithSignature(cfg.Signature),
		publish.WithTimeZone(cfg.TimeZone),
	)
	uploader := upload.NewUploader(tg, ids, cfg.AssetsDir)

	b := bot.New(bot.Deps{
		Messenger: tg,
		Positions: positions,
		Composer:  composer,
		Publisher: publisher,
		Uploader:  uploader,
		Metrics:   metrics.NewSink(metrics.DefaultNamespace, opts.MetricsOut, cfg.MetricsEnabled && opts.MetricsOut != nil),
		Admins:    cfg.Admins,
	})

	return &App{
		Config:    cfg,
		Telegram:  tg,
		Store:     ids,
		Publisher: publisher,
		Uploader:  uploader,
		Bot:       b,
	}, nil
}

func newGenerator(ctx context.Context, cfg *config.Config) (horoscope.Generator, error) {
	switch cfg.Provider {
	case chat.ProviderGemini:
		g, err := chat.NewGeminiClient(ctx, cfg.GeminiAPIKey, "", cfg.HTTPTimeout)
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
		return g, nil
	default:
		return chat.NewCompletionsClient(cfg.IOToken, "", cfg.HTTPTimeout), nil
	}
}
