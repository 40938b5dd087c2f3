package tg

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bejofood/internal/metrics"
)

type stubProcessor struct {
	got Update
	err error
}

func (s *stubProcessor) ProcessUpdate(ctx context.Context, upd Update) error {
	s.got = upd
	return s.err
}

func newTestWebhook(secret string, proc UpdateProcessor) *WebhookHandler {
	return NewWebhookHandler(secret, proc, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.Registry("test"))
}

func TestWebhookDispatchesUpdate(t *testing.T) {
	proc := &stubProcessor{}
	h := newTestWebhook("s3cret", proc)

	body := `{"update_id":42,"message":{"message_id":1,"chat":{"id":777},"from":{"id":777,"first_name":"Budi"},"text":"/menu"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(body))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if proc.got.UpdateID != 42 || proc.got.Message == nil || proc.got.Message.Text != "/menu" {
		t.Errorf("dispatched update = %+v", proc.got)
	}
	if proc.got.Message.Chat.ID != 777 {
		t.Errorf("chat id = %d, want 777", proc.got.Message.Chat.ID)
	}
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	proc := &stubProcessor{}
	h := newTestWebhook("s3cret", proc)

	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(`{"update_id":1}`))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if proc.got.UpdateID != 0 {
		t.Error("update dispatched despite bad secret")
	}
}

func TestWebhookAcksProcessingFailure(t *testing.T) {
	proc := &stubProcessor{err: errors.New("boom")}
	h := newTestWebhook("", proc)

	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(`{"update_id":1}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite processing failure", rec.Code)
	}
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	h := newTestWebhook("", &stubProcessor{})
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
