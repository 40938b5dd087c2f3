package tg

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"bejofood/internal/metrics"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateProcessor consumes parsed updates.
type UpdateProcessor interface {
	ProcessUpdate(ctx context.Context, upd Update) error
}

// WebhookHandler receives Bot API webhook deliveries, verifies the secret
// token, and hands updates to the processor. Processing failures still ack
// with 200 so Telegram does not redeliver; the bot has no replay semantics.
type WebhookHandler struct {
	secret    string
	processor UpdateProcessor
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewWebhookHandler builds the webhook HTTP handler.
func NewWebhookHandler(secret string, processor UpdateProcessor, logger *slog.Logger, m *metrics.Metrics) *WebhookHandler {
	return &WebhookHandler{
		secret:    secret,
		processor: processor,
		logger:    logger.With("component", "telegram_webhook"),
		metrics:   m,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.secret != "" {
		got := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.logger.Warn("webhook secret mismatch")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var upd Update
	if err := json.Unmarshal(body, &upd); err != nil {
		h.logger.Warn("malformed update", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	switch {
	case upd.Message != nil:
		h.metrics.TelegramIncomingUpdates.WithLabelValues("message").Inc()
	case upd.CallbackQuery != nil:
		h.metrics.TelegramIncomingUpdates.WithLabelValues("callback_query").Inc()
	default:
		h.metrics.TelegramIncomingUpdates.WithLabelValues("other").Inc()
	}

	if err := h.processor.ProcessUpdate(r.Context(), upd); err != nil {
		h.logger.Error("process update", "update_id", upd.UpdateID, "error", err)
		h.metrics.Errors.WithLabelValues("telegram_webhook").Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}
