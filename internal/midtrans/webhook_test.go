package midtrans

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
	got Notification
	err error
}

func (s *stubProcessor) ProcessNotification(ctx context.Context, n Notification) error {
	s.got = n
	return s.err
}

func postNotification(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/midtrans", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newTestHandler(proc NotificationProcessor) *WebhookHandler {
	return NewWebhookHandler(proc, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.Registry("test"))
}

func TestWebhookParsesNotification(t *testing.T) {
	proc := &stubProcessor{}
	body := `{"order_id":"BF-20250131-0042-1","transaction_status":"settlement","status_code":"200","gross_amount":"55000.00","signature_key":"sig"}`
	rec := postNotification(t, newTestHandler(proc), body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if proc.got.OrderID != "BF-20250131-0042-1" || proc.got.TransactionStatus != "settlement" {
		t.Errorf("parsed notification = %+v", proc.got)
	}
	if string(proc.got.Raw) != body {
		t.Errorf("raw payload not preserved")
	}
}

func TestWebhookAcksInternalFailure(t *testing.T) {
	proc := &stubProcessor{err: errors.New("db down")}
	rec := postNotification(t, newTestHandler(proc), `{"order_id":"x"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite processing failure", rec.Code)
	}
}

func TestWebhookAcksBadSignature(t *testing.T) {
	proc := &stubProcessor{err: ErrSignature}
	rec := postNotification(t, newTestHandler(proc), `{"order_id":"x","signature_key":"bad"}`)
	// A forged payload never verifies; a non-2xx would only make the
	// gateway resend it.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != `{"status":"ok"}` {
		t.Fatalf("body = %q, want normal ack", body)
	}
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	rec := postNotification(t, newTestHandler(&stubProcessor{}), `not-json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
