package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fpang/astro-channel-bot/internal/apperr"
)

var geminiRequest = Request{
	Model:       ModelGemini25Flash,
	System:      "Ты профессиональный астролог.",
	Prompt:      "Составь гороскоп",
	Temperature: 0.7,
	MaxTokens:   380,
}

func newTestGemini(t *testing.T, server *httptest.Server, timeout time.Duration) *GeminiClient {
	t.Helper()
	g, err := NewGeminiClient(context.Background(), "test-key", server.URL, timeout)
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}
	return g
}

func TestGemini_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "models/gemini-2.5-flash:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("unexpected api key header: %q", got)
		}

		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
			SystemInstruction struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"systemInstruction"`
			GenerationConfig struct {
				Temperature     float64 `json:"temperature"`
				MaxOutputTokens int     `json:"maxOutputTokens"`
			} `json:"generationConfig"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(body.Contents) != 1 || body.Contents[0].Parts[0].Text != geminiRequest.Prompt {
			t.Errorf("unexpected contents: %+v", body.Contents)
		}
		if len(body.SystemInstruction.Parts) != 1 || body.SystemInstruction.Parts[0].Text != geminiRequest.System {
			t.Errorf("unexpected system instruction: %+v", body.SystemInstruction)
		}
		if body.GenerationConfig.MaxOutputTokens != 380 || body.GenerationConfig.Temperature < 0.69 || body.GenerationConfig.Temperature > 0.71 {
			t.Errorf("unexpected generation config: %+v", body.GenerationConfig)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"  Звёзды благосклонны.  "}]}}]}`))
	}))
	defer server.Close()

	text, err := newTestGemini(t, server, 0).Generate(context.Background(), geminiRequest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Звёзды благосклонны." {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestGemini_ServerErrorCarriesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`))
	}))
	defer server.Close()

	_, err := newTestGemini(t, server, 0).Generate(context.Background(), geminiRequest)
	if !apperr.IsKind(err, apperr.GenerationFailed) {
		t.Fatalf("expected GenerationFailed, got %v", err)
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Status != http.StatusInternalServerError {
		t.Errorf("expected status 500 on the error, got %v", err)
	}
}

func TestGemini_EmptyCandidates(t *testing.T) {
	bodies := map[string]string{
		"no candidates": `{"candidates":[]}`,
		"no parts":      `{"candidates":[{"content":{"role":"model","parts":[]}}]}`,
		"blank text":    `{"candidates":[{"content":{"role":"model","parts":[{"text":"   "}]}}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(body))
			}))
			defer server.Close()

			_, err := newTestGemini(t, server, 0).Generate(context.Background(), geminiRequest)
			if !apperr.IsKind(err, apperr.GenerationFailed) {
				t.Fatalf("expected GenerationFailed, got %v", err)
			}
		})
	}
}

func TestGemini_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	g := newTestGemini(t, server, 100*time.Millisecond)
	start := time.Now()
	_, err := g.Generate(context.Background(), geminiRequest)
	if !apperr.IsKind(err, apperr.GenerationFailed) {
		t.Fatalf("expected GenerationFailed, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout not applied, call took %v", elapsed)
	}
}

func TestNewGeminiClient_MissingKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), "", "", 0)
	if !apperr.IsKind(err, apperr.ConfigMissing) {
		t.Fatalf("expected ConfigMissing, got %v", err)
	}
}
