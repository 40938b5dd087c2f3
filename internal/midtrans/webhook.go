package midtrans

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"bejofood/internal/metrics"
)

// Notification is the payment notification payload the gateway posts to the
// webhook. Unknown fields are preserved in Raw for auditing.
type Notification struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`

	Raw []byte `json:"-"`
}

// NotificationProcessor consumes verified-or-not notifications; verification
// happens inside the processor so rejects are audited too.
type NotificationProcessor interface {
	ProcessNotification(ctx context.Context, n Notification) error
}

// WebhookHandler receives payment notifications. It acknowledges with 200
// even when processing fails internally: the gateway retries on non-2xx and
// the processor is idempotent, so swallowing the error avoids a retry storm
// while the audit trail records the failure.
type WebhookHandler struct {
	processor NotificationProcessor
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewWebhookHandler builds the payment webhook HTTP handler.
func NewWebhookHandler(processor NotificationProcessor, logger *slog.Logger, m *metrics.Metrics) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		logger:    logger.With("component", "midtrans_webhook"),
		metrics:   m,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		h.logger.Warn("malformed notification", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	n.Raw = body

	if err := h.processor.ProcessNotification(r.Context(), n); err != nil {
		// Signature rejects are acked like any other outcome: the payload
		// will never verify, so a non-2xx would only make the gateway
		// retry it. State is untouched and the reject is audited.
		if errors.Is(err, ErrSignature) {
			h.logger.Warn("notification signature rejected", "order_id", n.OrderID)
			h.ack(w)
			return
		}
		h.logger.Error("process notification",
			"order_id", n.OrderID,
			"transaction_status", n.TransactionStatus,
			"error", err,
		)
		h.metrics.Errors.WithLabelValues("midtrans_webhook").Inc()
	}

	h.ack(w)
}

func (h *WebhookHandler) ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
