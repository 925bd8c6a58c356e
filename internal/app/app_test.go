package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fpang/astro-channel-bot/internal/apperr"
	"github.com/fpang/astro-channel-bot/internal/astronomy"
	"github.com/fpang/astro-channel-bot/internal/chat"
	"github.com/fpang/astro-channel-bot/internal/config"
	"github.com/fpang/astro-channel-bot/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		TelegramToken: "123:abc",
		ChannelID:     "@astro",
		IOToken:       "io",
		AssetsDir:     "./assets/zodiac",
		Observer:      astronomy.Athens,
		TimeZone:      time.UTC,
		Provider:      chat.ProviderCompletions,
		Model:         chat.ModelMinistral8B,
		Temperature:   0.7,
		MaxTokens:     380,
		Signature:     "☄️Luory",
		HTTPTimeout:   5 * time.Second,
	}
}

func TestNew_LoadsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.json")
	if err := os.WriteFile(path, []byte(`{"aries":"MEDIA123"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := New(context.Background(), testConfig(), Options{Snapshot: store.NewFileBackend(path), MetricsOut: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Bot == nil || a.Publisher == nil || a.Uploader == nil || a.Telegram == nil {
		t.Fatal("runtime not fully wired")
	}
	if id, ok := a.Store.Get("aries"); !ok || id != "MEDIA123" {
		t.Errorf("snapshot not loaded: %q %v", id, ok)
	}
}

func TestNew_GeminiWithoutKey(t *testing.T) {
	cfg := testConfig()
	cfg.Provider = chat.ProviderGemini
	cfg.Model = chat.ModelGemini25Flash

	_, err := New(context.Background(), cfg, Options{Snapshot: store.NewFileBackend(filepath.Join(t.TempDir(), "ids.json"))})
	if !apperr.IsKind(err, apperr.ConfigMissing) {
		t.Fatalf("expected ConfigMissing, got %v", err)
	}
}

func TestNew_InvalidSettings(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTokens = 0
	if _, err := New(context.Background(), cfg, Options{Snapshot: store.NewFileBackend(filepath.Join(t.TempDir(), "ids.json"))}); err == nil {
		t.Fatal("expected error for invalid generation settings")
	}
}
