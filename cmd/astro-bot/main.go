// Package main is the long-running entry point for the astrology channel bot.
//
// The serve command long-polls the Bot API and handles /start, /upload_images
// and zodiac keyboard presses. The remaining commands are operator tools for
// publishing one sign, preloading images, and managing the webhook used by
// the Lambda deployment.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/astro-channel-bot/internal/app"
	"github.com/fpang/astro-channel-bot/internal/config"
	"github.com/fpang/astro-channel-bot/internal/lambdaboot"
	"github.com/fpang/astro-channel-bot/internal/logging"
	"github.com/fpang/astro-channel-bot/internal/publish"
	"github.com/fpang/astro-channel-bot/internal/zodiac"
)

// CLI flags
var (
	envFileFlag string
	awsFlag     bool
	chatFlag    string
	dropFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "astro-bot",
	Short: "Telegram bot that publishes daily horoscopes to a channel",
	Long: `astro-bot fetches today's planetary positions, asks a language model for a
short Russian horoscope, and posts it to the configured Telegram channel,
with the sign's image when one has been uploaded.

Examples:
  astro-bot serve
  astro-bot publish scorpio
  astro-bot upload-images --chat 123456789
  astro-bot set-webhook https://example.com/webhook
  astro-bot signs`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFileFlag); err != nil {
			return err
		}
		logging.Init()
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Long-poll for updates and handle them until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var publishCmd = &cobra.Command{
	Use:       "publish <sign>",
	Short:     "Generate and publish the horoscope for one sign",
	Args:      cobra.ExactArgs(1),
	ValidArgs: zodiac.Keys(),
	RunE:      runPublish,
}

var uploadCmd = &cobra.Command{
	Use:   "upload-images",
	Short: "Upload the zodiac images and store their media identifiers",
	Args:  cobra.NoArgs,
	RunE:  runUpload,
}

var setWebhookCmd = &cobra.Command{
	Use:   "set-webhook <url>",
	Short: "Register the webhook URL (an empty URL removes it)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSetWebhook,
}

var signsCmd = &cobra.Command{
	Use:   "signs",
	Short: "List the supported zodiac signs",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, s := range zodiac.All() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s (%s)\n", s.Key, s.Title(), s.RulersText())
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "Optional dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().BoolVar(&awsFlag, "aws", os.Getenv("ASTRO_USE_AWS") == "true", "Read missing secrets from SSM and allow the S3 snapshot")
	uploadCmd.Flags().StringVar(&chatFlag, "chat", "", "Chat that receives the uploads (required)")
	_ = uploadCmd.MarkFlagRequired("chat")
	setWebhookCmd.Flags().BoolVar(&dropFlag, "drop", false, "Delete the webhook and return to long polling")

	rootCmd.AddCommand(serveCmd, publishCmd, uploadCmd, setWebhookCmd, signsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// build resolves configuration and assembles the runtime.
func build(ctx context.Context, name string) (*app.App, error) {
	initStart := time.Now()

	var clients *lambdaboot.AWSClients
	if awsFlag {
		c, err := lambdaboot.InitAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		clients = c
	}

	cfg, err := lambdaboot.LoadConfig(ctx, clients)
	if err != nil {
		return nil, err
	}
	snapshot := lambdaboot.SnapshotBackend(cfg, clients)
	a, err := app.New(ctx, cfg, app.Options{Snapshot: snapshot, MetricsOut: os.Stdout})
	if err != nil {
		return nil, err
	}
	lambdaboot.StartupLog(name, initStart, cfg, snapshot).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Config("storedIdentifiers", strconv.Itoa(a.Store.Len())).
		Log()
	return a, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, "astro-bot-serve")
	if err != nil {
		log.Error().Err(err).Msg("Startup failed")
		return err
	}
	if me, err := a.Telegram.GetMe(ctx); err == nil {
		log.Info().Str("username", me.Username).Msg("Bot identity confirmed")
	} else {
		log.Warn().Err(err).Msg("Could not fetch bot identity")
	}
	// getUpdates is rejected while a webhook is registered.
	if err := a.Telegram.DeleteWebhook(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not clear webhook before polling")
	}

	a.Telegram.Poll(ctx, a.Bot)
	return nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := build(ctx, "astro-bot-publish")
	if err != nil {
		log.Error().Err(err).Msg("Startup failed")
		return err
	}
	out := cmd.OutOrStdout()
	reply := publish.ReplierFunc(func(_ context.Context, text string) error {
		_, err := fmt.Fprintln(out, text)
		return err
	})
	return a.Bot.RunAttempt(ctx, args[0], reply)
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := build(ctx, "astro-bot-upload")
	if err != nil {
		log.Error().Err(err).Msg("Startup failed")
		return err
	}
	out := cmd.OutOrStdout()
	report, err := a.Uploader.Run(ctx, chatFlag, func(_ context.Context, text string) {
		fmt.Fprintln(out, text)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "uploaded=%d missing=%d failed=%d\n", len(report.Uploaded), len(report.Missing), len(report.Failed))
	return nil
}

func runSetWebhook(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := build(ctx, "astro-bot-webhook")
	if err != nil {
		log.Error().Err(err).Msg("Startup failed")
		return err
	}
	if dropFlag || len(args) == 0 {
		if err := a.Telegram.DeleteWebhook(ctx); err != nil {
			return err
		}
		log.Info().Msg("Webhook removed")
		return nil
	}
	if a.Config.WebhookSecret == "" {
		log.Warn().Msg("WEBHOOK_SECRET is empty, deliveries will not be authenticated")
	}
	if err := a.Telegram.SetWebhook(ctx, args[0], a.Config.WebhookSecret); err != nil {
		return err
	}
	log.Info().Str("url", args[0]).Msg("Webhook registered")
	return nil
}
