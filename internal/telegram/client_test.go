package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const testToken = "123:abc"

// newTestClient creates a Client pointing at a test HTTP server.
func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(testToken, server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

// formValue reads one request field. Parameters arrive as multipart form
// fields; JSON-encoded scalars are unquoted.
func formValue(t *testing.T, r *http.Request, key string) string {
	t.Helper()
	if r.MultipartForm == nil {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
	}
	return strings.Trim(r.FormValue(key), `"`)
}

func TestSendPhoto(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/bot123:abc/sendPhoto" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if formValue(t, r, "chat_id") != "@astro" || formValue(t, r, "photo") != "MEDIA123" {
			t.Errorf("unexpected params: %v", r.Form)
		}
		if formValue(t, r, "caption") != "*♈ Овен*" || formValue(t, r, "parse_mode") != string(ParseModeMarkdown) {
			t.Errorf("unexpected caption params: %v", r.Form)
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":42,"date":1,"chat":{"id":-100,"type":"channel"}}}`))
	}))
	defer server.Close()

	msg, err := newTestClient(t, server).SendPhoto(context.Background(), "@astro", "MEDIA123", "*♈ Овен*",
		MessageOptions{ParseMode: ParseModeMarkdown})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ID != 42 {
		t.Errorf("expected message 42, got %d", msg.ID)
	}
}

func TestSendMessage_WithKeyboard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var markup InlineKeyboardMarkup
		if err := json.Unmarshal([]byte(r.FormValue("reply_markup")), &markup); err != nil {
			t.Fatalf("reply_markup missing or invalid: %v", err)
		}
		if len(markup.InlineKeyboard) != 1 || markup.InlineKeyboard[0][0].CallbackData != "aries" {
			t.Errorf("unexpected keyboard: %+v", markup)
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":1,"chat":{"id":1,"type":"private"}}}`))
	}))
	defer server.Close()

	kb := &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{{Text: "♈ Овен", CallbackData: "aries"}}}}
	_, err := newTestClient(t, server).SendMessage(context.Background(), "1", "Выберите знак", MessageOptions{ReplyMarkup: kb})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: wrong file identifier/HTTP URL specified"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).SendPhoto(context.Background(), "@astro", "STALE", "", MessageOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != 400 || apiErr.Method != "sendPhoto" {
		t.Errorf("unexpected error fields: %+v", apiErr)
	}
	if !IsInvalidFileID(err) {
		t.Error("expected IsInvalidFileID to be true")
	}
}

func TestIsInvalidFileID(t *testing.T) {
	if IsInvalidFileID(errors.New("wrong file identifier")) {
		t.Error("plain errors are not API errors")
	}
	if IsInvalidFileID(&APIError{Code: 403, Description: "Forbidden: bot is not a member of the channel chat"}) {
		t.Error("403 is not a file id problem")
	}
	if IsInvalidFileID(&APIError{Code: 400, Description: "Bad Request: chat not found"}) {
		t.Error("chat not found is not a file id problem")
	}
}

func TestForbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot is not a member of the channel chat"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).SendMessage(context.Background(), "@astro", "hi", MessageOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 APIError, got %v", err)
	}
	if IsInvalidFileID(err) {
		t.Error("403 is not a file id problem")
	}
}

func TestRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 5","parameters":{"retry_after":5}}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).SendMessage(context.Background(), "@astro", "hi", MessageOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusTooManyRequests || apiErr.RetryAfter != 5 {
		t.Fatalf("expected retry_after 5, got %v", err)
	}
}

func TestMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).SendMessage(context.Background(), "@astro", "hi", MessageOptions{})
	if err == nil {
		t.Fatal("expected error for non-JSON response")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("a response without an error code is not an APIError: %v", err)
	}
	if strings.Contains(err.Error(), testToken) {
		t.Errorf("error leaks token: %v", err)
	}
}

func TestTransportErrorHidesToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	c, err := NewClient("123:secret-token", baseURL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.SendMessage(context.Background(), "@astro", "hi", MessageOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Errorf("error leaks token: %v", err)
	}
}

func TestUploadPhoto(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if formValue(t, r, "chat_id") != "555" {
			t.Errorf("unexpected chat_id: %s", r.FormValue("chat_id"))
		}
		f, hdr, err := r.FormFile("photo")
		if err != nil {
			t.Fatalf("photo part missing: %v", err)
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "aries.jpg" || string(data) != "jpegbytes" {
			t.Errorf("unexpected upload %s %q", hdr.Filename, data)
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":9,"date":1,"chat":{"id":555,"type":"private"},"photo":[
			{"file_id":"small","file_unique_id":"s","width":90,"height":90},
			{"file_id":"large","file_unique_id":"l","width":1280,"height":1280},
			{"file_id":"medium","file_unique_id":"m","width":320,"height":320}]}}`))
	}))
	defer server.Close()

	msg, err := newTestClient(t, server).UploadPhoto(context.Background(), "555", "aries.jpg", strings.NewReader("jpegbytes"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	best, ok := LargestPhoto(msg)
	if !ok || best.FileID != "large" {
		t.Errorf("expected largest rendition, got %+v", best)
	}
}

func TestLargestPhoto_Empty(t *testing.T) {
	if _, ok := LargestPhoto(nil); ok {
		t.Error("nil message has no photo")
	}
	if _, ok := LargestPhoto(&Message{}); ok {
		t.Error("empty message has no photo")
	}
}

func TestCallbackChatID(t *testing.T) {
	cb := &CallbackQuery{From: User{ID: 5}}
	if got := CallbackChatID(cb); got != 5 {
		t.Errorf("expected presser's chat, got %d", got)
	}
	cb.Message = MaybeInaccessibleMessage{Message: &Message{Chat: Chat{ID: -100}}}
	if got := CallbackChatID(cb); got != -100 {
		t.Errorf("expected keyboard message chat, got %d", got)
	}
}

type recordingHandler struct {
	mu     sync.Mutex
	ids    []int64
	cancel context.CancelFunc
	want   int
}

func (h *recordingHandler) HandleUpdate(_ context.Context, u *Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, u.ID)
	if len(h.ids) == h.want {
		h.cancel()
	}
}

func TestPoll(t *testing.T) {
	var (
		mu     sync.Mutex
		served bool
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getUpdates") {
			w.Write([]byte(`{"ok":true,"result":true}`))
			return
		}
		mu.Lock()
		first := !served
		served = true
		mu.Unlock()

		if first {
			w.Write([]byte(`{"ok":true,"result":[
				{"update_id":11,"message":{"message_id":1,"date":1,"chat":{"id":5,"type":"private"},"text":"/start"}},
				{"update_id":12,"callback_query":{"id":"cb1","chat_instance":"x","from":{"id":5,"is_bot":false,"first_name":"A"},"data":"leo"}}]}`))
			return
		}
		select {
		case <-r.Context().Done():
		case <-time.After(50 * time.Millisecond):
		}
		w.Write([]byte(`{"ok":true,"result":[]}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := &recordingHandler{cancel: cancel, want: 2}

	done := make(chan struct{})
	go func() {
		newTestClient(t, server).Poll(ctx, h)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Poll did not return after cancellation")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.ids) != 2 || h.ids[0] != 11 || h.ids[1] != 12 {
		t.Errorf("expected updates 11 and 12 in order, got %v", h.ids)
	}
}

func TestSetWebhook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if formValue(t, r, "url") != "https://example.com/hook" || formValue(t, r, "secret_token") != "s3cret" {
			t.Errorf("unexpected params: %v", r.Form)
		}
		w.Write([]byte(`{"ok":true,"result":true,"description":"Webhook was set"}`))
	}))
	defer server.Close()

	if err := newTestClient(t, server).SetWebhook(context.Background(), "https://example.com/hook", "s3cret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
