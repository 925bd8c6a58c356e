// Package lambdaboot provides shared cold-start bootstrap logic: AWS config,
// SSM-backed configuration, the identifier snapshot backend, and the startup
// log. Each entry point's init is a short composition of these helpers.
package lambdaboot

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/astro-channel-bot/internal/config"
	"github.com/fpang/astro-channel-bot/internal/logging"
	"github.com/fpang/astro-channel-bot/internal/store"
)

// AWSClients holds the AWS SDK clients used by the bot.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
	S3     *s3.Client
}

// InitAWS loads the default AWS config and creates the SSM and S3 clients.
func InitAWS(ctx context.Context) (*AWSClients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return &AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
		S3:     s3.NewFromConfig(cfg),
	}, nil
}

// LoadConfig reads the configuration, falling back to SSM for secrets when
// clients is non-nil, and validates it.
func LoadConfig(ctx context.Context, clients *AWSClients) (*config.Config, error) {
	var secrets config.SecretSource
	if clients != nil {
		secrets = config.SSMSource{Client: clients.SSM}
	}
	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SnapshotBackend picks where the identifier snapshot lives: S3 when a
// bucket is configured and AWS is available, the local file otherwise.
func SnapshotBackend(cfg *config.Config, clients *AWSClients) store.Backend {
	if cfg.UsesS3Snapshot() && clients != nil {
		return store.NewS3Backend(clients.S3, cfg.SnapshotBucket, cfg.SnapshotKey)
	}
	if cfg.UsesS3Snapshot() {
		log.Warn().Str("bucket", cfg.SnapshotBucket).Msg("S3 snapshot configured without AWS, using local file")
	}
	return store.NewFileBackend(cfg.FileIDPath)
}

// StartupLog builds the startup summary for cfg. Secrets appear only as
// their origin.
func StartupLog(name string, initStart time.Time, cfg *config.Config, snapshot store.Backend) *logging.StartupLogger {
	sl := logging.NewStartupLogger(name).
		InitDuration(time.Since(initStart)).
		Feature("gemini", cfg.Provider == "gemini").
		Feature("webhookSecret", cfg.WebhookSecret != "").
		Feature("metrics", cfg.MetricsEnabled).
		Feature("adminAllowList", len(cfg.Admins) > 0).
		Config("channelId", cfg.ChannelID).
		Config("provider", cfg.Provider).
		Config("model", cfg.Model).
		Config("timeZone", cfg.TimeZone.String()).
		Config("httpTimeout", cfg.HTTPTimeout.String())

	if cfg.UsesS3Snapshot() {
		sl.S3Object("fileIdSnapshot", snapshot.Location())
	} else {
		sl.File("fileIdSnapshot", snapshot.Location())
	}
	sl.File("assetsDir", cfg.AssetsDir)
	for name, origin := range cfg.SecretOrigins {
		if origin != "" && origin != "env" {
			sl.SSMParam(name, origin)
		}
	}
	return sl
}
