// Package main provides a Lambda entry point for Telegram webhook deliveries.
//
// POST /webhook carries one Update. Deliveries must present the secret token
// registered with setWebhook in the X-Telegram-Bot-Api-Secret-Token header.
//
// Secrets missing from the environment are loaded from SSM Parameter Store
// at cold start under /astro-channel-bot/prod/. The media identifier snapshot
// lives in S3 when SNAPSHOT_S3_BUCKET is set, since the function's local
// filesystem does not survive between instances.
package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/astro-channel-bot/internal/app"
	"github.com/fpang/astro-channel-bot/internal/lambdaboot"
	"github.com/fpang/astro-channel-bot/internal/logging"
	"github.com/fpang/astro-channel-bot/internal/webhook"
)

var webhookHandler *webhook.Handler

func init() {
	initStart := time.Now()
	logging.Init()
	ctx := context.Background()

	clients, err := lambdaboot.InitAWS(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	cfg, err := lambdaboot.LoadConfig(ctx, clients)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.WebhookSecret == "" {
		log.Warn().Msg("WEBHOOK_SECRET is empty, deliveries are not authenticated")
	}

	snapshot := lambdaboot.SnapshotBackend(cfg, clients)
	a, err := app.New(ctx, cfg, app.Options{Snapshot: snapshot, MetricsOut: os.Stdout})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build bot runtime")
	}

	webhookHandler = webhook.NewHandler(cfg.WebhookSecret, a.Bot)

	lambdaboot.StartupLog("astro-webhook-lambda", initStart, cfg, snapshot).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Config("storedIdentifiers", strconv.Itoa(a.Store.Len())).
		Config("updateBudget", webhook.DefaultBudget.String()).
		Log()
}

func main() {
	mux := http.NewServeMux()
	mux.Handle("/webhook", webhookHandler)

	adapter := httpadapter.NewV2(mux)
	lambda.Start(adapter.ProxyWithContext)
}
