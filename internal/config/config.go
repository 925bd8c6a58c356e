// Package config loads the bot's settings from the environment.
//
// A .env file, when present, is loaded first and never overrides variables
// that are already set. Secrets that are still empty afterwards are fetched
// from SSM Parameter Store when a SecretSource is supplied, which is how the
// Lambda deployment receives them.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/fpang/astro-channel-bot/internal/apperr"
	"github.com/fpang/astro-channel-bot/internal/astronomy"
	"github.com/fpang/astro-channel-bot/internal/chat"
	"github.com/fpang/astro-channel-bot/internal/horoscope"
	"github.com/fpang/astro-channel-bot/internal/publish"
)

// Secret variable names.
const (
	TelegramToken      = "TELEGRAM_TOKEN"
	AstronomyAppID     = "ASTRONOMY_APP_ID"
	AstronomyAppSecret = "ASTRONOMY_APP_SECRET"
	IOIntelligence     = "IO_INTELLIGENCE_TOKEN"
	GeminiAPIKey       = "GEMINI_API_KEY"
	WebhookSecret      = "WEBHOOK_SECRET"
)

// Secrets lists every variable that may come from SSM.
var Secrets = []string{TelegramToken, AstronomyAppID, AstronomyAppSecret, IOIntelligence, GeminiAPIKey, WebhookSecret}

// SSMPrefix is the default parameter path prefix.
const SSMPrefix = "/astro-channel-bot/prod/"

const defaultHTTPTimeout = 30 * time.Second

// Config is the fully resolved configuration.
type Config struct {
	TelegramToken      string
	ChannelID          string
	AstronomyAppID     string
	AstronomyAppSecret string
	IOToken            string
	GeminiAPIKey       string
	WebhookSecret      string

	FileIDPath     string
	SnapshotBucket string
	SnapshotKey    string
	AssetsDir      string

	Observer astronomy.Observer
	TimeZone *time.Location

	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int

	Signature      string
	Admins         []int64
	HTTPTimeout    time.Duration
	MetricsEnabled bool

	// SecretOrigins records where each secret came from: "env", an SSM
	// path, or "" when unset. Values are never recorded.
	SecretOrigins map[string]string
}

// LoadDotEnv loads variables from the given files (default ".env"). A
// missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
		log.Debug().Str("path", p).Msg("Loaded env file")
	}
	return nil
}

// Load reads the configuration. secrets may be nil, in which case only the
// environment is consulted. Malformed values are errors; missing required
// values are reported by Validate.
func Load(ctx context.Context, secrets SecretSource) (*Config, error) {
	c := &Config{
		ChannelID:      env("CHANNEL_ID", ""),
		FileIDPath:     env("FILE_ID_STORAGE", "./telegram_file_ids.json"),
		SnapshotBucket: env("SNAPSHOT_S3_BUCKET", ""),
		SnapshotKey:    env("SNAPSHOT_S3_KEY", "telegram_file_ids.json"),
		AssetsDir:      env("ASSETS_DIR", "./assets/zodiac"),
		Provider:       strings.ToLower(env("GENERATION_PROVIDER", chat.ProviderCompletions)),
		Signature:      env("CAPTION_SIGNATURE", publish.DefaultSignature),
		SecretOrigins:  make(map[string]string, len(Secrets)),
	}

	resolved := make(map[string]string, len(Secrets))
	for _, name := range Secrets {
		resolved[name] = c.resolveSecret(ctx, secrets, name)
	}
	c.TelegramToken = resolved[TelegramToken]
	c.AstronomyAppID = resolved[AstronomyAppID]
	c.AstronomyAppSecret = resolved[AstronomyAppSecret]
	c.IOToken = resolved[IOIntelligence]
	c.GeminiAPIKey = resolved[GeminiAPIKey]
	c.WebhookSecret = resolved[WebhookSecret]

	var errs []error
	c.Observer.Latitude = floatEnv("OBSERVER_LATITUDE", astronomy.Athens.Latitude, &errs)
	c.Observer.Longitude = floatEnv("OBSERVER_LONGITUDE", astronomy.Athens.Longitude, &errs)
	c.Observer.Elevation = floatEnv("OBSERVER_ELEVATION", astronomy.Athens.Elevation, &errs)
	c.Temperature = floatEnv("GENERATION_TEMPERATURE", horoscope.DefaultSettings.Temperature, &errs)
	c.MaxTokens = intEnv("GENERATION_MAX_TOKENS", horoscope.DefaultSettings.MaxTokens, &errs)
	c.MetricsEnabled = boolEnv("METRICS_ENABLED", false, &errs)
	c.Model = env("GENERATION_MODEL", chat.DefaultModel(c.Provider))

	switch c.Provider {
	case chat.ProviderCompletions, chat.ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("GENERATION_PROVIDER: unknown provider %q", c.Provider))
	}

	tz, err := time.LoadLocation(env("OBSERVER_TZ", "UTC"))
	if err != nil {
		errs = append(errs, fmt.Errorf("OBSERVER_TZ: %w", err))
		tz = time.UTC
	}
	c.TimeZone = tz

	c.HTTPTimeout = defaultHTTPTimeout
	if v := env("HTTP_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("HTTP_TIMEOUT: invalid duration %q", v))
		} else {
			c.HTTPTimeout = d
		}
	}

	for _, field := range strings.Split(env("ADMIN_USER_IDS", ""), ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("ADMIN_USER_IDS: invalid id %q", field))
			continue
		}
		c.Admins = append(c.Admins, id)
	}

	if err := c.GenerationSettings().Validate(); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// Validate reports missing values every entry point needs.
func (c *Config) Validate() error {
	var missing []string
	if c.TelegramToken == "" {
		missing = append(missing, TelegramToken)
	}
	if c.ChannelID == "" {
		missing = append(missing, "CHANNEL_ID")
	}
	if len(missing) > 0 {
		return apperr.Wrap(apperr.ConfigMissing, "config.validate",
			fmt.Errorf("%w: %s", apperr.ErrMissingConfig, strings.Join(missing, ", ")))
	}
	return nil
}

// GenerationSettings returns the composer settings.
func (c *Config) GenerationSettings() horoscope.Settings {
	return horoscope.Settings{Model: c.Model, Temperature: c.Temperature, MaxTokens: c.MaxTokens}
}

// UsesS3Snapshot reports whether the identifier snapshot lives in S3.
func (c *Config) UsesS3Snapshot() bool {
	return c.SnapshotBucket != ""
}

func (c *Config) resolveSecret(ctx context.Context, secrets SecretSource, name string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		c.SecretOrigins[name] = "env"
		return v
	}
	if secrets == nil {
		return ""
	}

	param := ParamName(name)
	start := time.Now()
	v, err := secrets.Parameter(ctx, param)
	if err != nil {
		log.Warn().Err(err).Str("param", param).Msg("Secret not available from SSM")
		return ""
	}
	log.Debug().Str("param", param).Dur("elapsed", time.Since(start)).Msg("Secret loaded from SSM")
	c.SecretOrigins[name] = param
	return strings.TrimSpace(v)
}

// ParamName returns the SSM parameter path for a secret variable:
// SSM_<NAME>_PARAM when set, else SSMPrefix plus the kebab-cased name.
func ParamName(name string) string {
	if v := os.Getenv("SSM_" + name + "_PARAM"); v != "" {
		return v
	}
	return SSMPrefix + strings.ReplaceAll(strings.ToLower(name), "_", "-")
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func floatEnv(key string, def float64, errs *[]error) float64 {
	v := env(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid number %q", key, v))
		return def
	}
	return f
}

func intEnv(key string, def int, errs *[]error) int {
	v := env(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func boolEnv(key string, def bool, errs *[]error) bool {
	v := env(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}
