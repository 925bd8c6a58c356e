package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fpang/astro-channel-bot/internal/apperr"
)

func newTestCompletions(server *httptest.Server) *CompletionsClient {
	return NewCompletionsClient("test-token", server.URL+"/", 0)
}

var testRequest = Request{
	Model:       ModelMinistral8B,
	System:      "Ты профессиональный астролог.",
	Prompt:      "Составь гороскоп",
	Temperature: 0.7,
	MaxTokens:   380,
}

func TestCompletions_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected Authorization: %s", got)
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != ModelMinistral8B || req.Temperature != float32(0.7) || req.MaxTokens != 380 {
			t.Errorf("unexpected request params: %+v", req)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  Звёзды благосклонны.  "}}]}`))
	}))
	defer server.Close()

	text, err := newTestCompletions(server).Generate(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Звёзды благосклонны." {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestCompletions_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"internal","type":"server_error"}}`},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`},
		{"plain text error", http.StatusBadGateway, `bad gateway`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"content":"   "}}]}`},
		{"malformed", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestCompletions(server).Generate(context.Background(), testRequest)
			if !apperr.IsKind(err, apperr.GenerationFailed) {
				t.Fatalf("expected GenerationFailed, got %v", err)
			}
		})
	}
}

func TestCompletions_StatusIsRecorded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	_, err := newTestCompletions(server).Generate(context.Background(), testRequest)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 on the error, got %v", err)
	}
}

func TestCompletions_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	c := NewCompletionsClient("tok", server.URL, 100*time.Millisecond)
	start := time.Now()
	_, err := c.Generate(context.Background(), testRequest)
	if !apperr.IsKind(err, apperr.GenerationFailed) {
		t.Fatalf("expected GenerationFailed, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout not applied, call took %v", elapsed)
	}
}

func TestCompletions_MissingToken(t *testing.T) {
	c := NewCompletionsClient("", "http://127.0.0.1:1", 0)
	_, err := c.Generate(context.Background(), testRequest)
	if !apperr.IsKind(err, apperr.ConfigMissing) {
		t.Fatalf("expected ConfigMissing, got %v", err)
	}
	if !errors.Is(err, apperr.ErrMissingConfig) {
		t.Errorf("expected ErrMissingConfig in chain")
	}
}

func TestCompletions_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewCompletionsClient("tok", url, 0)
	_, err := c.Generate(context.Background(), testRequest)
	if !apperr.IsKind(err, apperr.GenerationFailed) {
		t.Fatalf("expected GenerationFailed, got %v", err)
	}
}

func TestDefaultModel(t *testing.T) {
	if DefaultModel(ProviderGemini) != ModelGemini25Flash {
		t.Error("unexpected gemini default")
	}
	if DefaultModel(ProviderCompletions) != ModelMinistral8B || DefaultModel("") != ModelMinistral8B {
		t.Error("unexpected completions default")
	}
}
