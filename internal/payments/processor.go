package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bejofood/internal/metrics"
	"bejofood/internal/midtrans"
	"bejofood/internal/notify"
	"bejofood/internal/repo"
)

// Processor reconciles gateway payment notifications against stored
// payments. It implements midtrans.NotificationProcessor.
type Processor struct {
	repo      repo.Repository
	notifier  *notify.Notifier
	serverKey string
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewProcessor builds the notification processor.
func NewProcessor(r repo.Repository, notifier *notify.Notifier, serverKey string, logger *slog.Logger, m *metrics.Metrics) *Processor {
	return &Processor{
		repo:      r,
		notifier:  notifier,
		serverKey: serverKey,
		logger:    logger.With("component", "payment_processor"),
		metrics:   m,
	}
}

// ProcessNotification verifies, maps, and applies one payment notification.
// The flow is: verify signature, map the external status, apply it under the
// repository's sticky-terminal rules, audit the event, then notify the
// customer and the dashboard only when the update actually changed state.
func (p *Processor) ProcessNotification(ctx context.Context, n midtrans.Notification) error {
	if err := midtrans.VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, p.serverKey, n.SignatureKey); err != nil {
		p.metrics.PaymentNotifications.WithLabelValues("rejected_signature").Inc()
		p.audit(ctx, n, false)
		return err
	}

	status, paidAt, ok := mapTransactionStatus(n.TransactionStatus)
	if !ok {
		p.metrics.PaymentNotifications.WithLabelValues("unknown_status").Inc()
		p.audit(ctx, n, false)
		p.logger.Warn("unknown transaction status",
			"order_id", n.OrderID,
			"transaction_status", n.TransactionStatus,
		)
		return nil
	}

	app, err := p.repo.ApplyPaymentStatus(ctx, repo.StatusUpdate{
		TransactionID: n.OrderID,
		Status:        status,
		PaidAt:        paidAt,
		RawPayload:    n.Raw,
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			p.metrics.PaymentNotifications.WithLabelValues("unknown_transaction").Inc()
			p.audit(ctx, n, false)
			p.logger.Warn("notification for unknown transaction", "order_id", n.OrderID)
			return nil
		}
		p.metrics.PaymentNotifications.WithLabelValues("error").Inc()
		p.audit(ctx, n, false)
		return fmt.Errorf("apply payment status: %w", err)
	}

	p.audit(ctx, n, app.Applied)

	switch {
	case app.Applied:
		p.metrics.PaymentNotifications.WithLabelValues("applied").Inc()
	case app.Sticky:
		p.metrics.PaymentNotifications.WithLabelValues("ignored_terminal").Inc()
		p.logger.Info("notification ignored, payment already terminal",
			"order_number", app.Order.OrderNumber,
			"current", string(app.PrevStatus),
			"incoming", string(status),
		)
		return nil
	default:
		p.metrics.PaymentNotifications.WithLabelValues("duplicate").Inc()
		return nil
	}

	p.notifyCustomer(ctx, app, status)
	p.notifier.PaymentUpdate(app.Order, status)
	return nil
}

func (p *Processor) notifyCustomer(ctx context.Context, app *repo.StatusApplication, status repo.PaymentStatus) {
	if app.ChatID == 0 {
		return
	}
	switch status {
	case repo.PaymentSettlement:
		p.notifier.SendText(ctx, app.ChatID, fmt.Sprintf(
			"✅ <b>Pembayaran diterima!</b>\n\nPesanan <code>%s</code> sudah dikonfirmasi dan sedang kami proses. Terima kasih! 🙏",
			app.Order.OrderNumber,
		))
	case repo.PaymentExpire:
		p.notifier.SendText(ctx, app.ChatID, fmt.Sprintf(
			"⌛ <b>Pembayaran kedaluwarsa</b>\n\nPesanan <code>%s</code> dibatalkan karena pembayaran tidak diterima tepat waktu. Silakan pesan ulang dari /menu.",
			app.Order.OrderNumber,
		))
	case repo.PaymentDeny, repo.PaymentCancel:
		p.notifier.SendText(ctx, app.ChatID, fmt.Sprintf(
			"❌ <b>Pembayaran gagal</b>\n\nPesanan <code>%s</code> dibatalkan. Silakan pesan ulang dari /menu.",
			app.Order.OrderNumber,
		))
	}
}

// audit records the raw notification regardless of outcome. Audit failures
// are logged, not propagated: the business write already happened.
func (p *Processor) audit(ctx context.Context, n midtrans.Notification, applied bool) {
	err := p.repo.InsertPaymentEvent(ctx, repo.PaymentEvent{
		TransactionID:     n.OrderID,
		TransactionStatus: n.TransactionStatus,
		Applied:           applied,
		Payload:           n.Raw,
	})
	if err != nil {
		p.logger.Error("insert payment event", "order_id", n.OrderID, "error", err)
	}
}

// mapTransactionStatus translates gateway statuses to internal ones. A
// capture with accepted fraud status counts as settlement.
func mapTransactionStatus(s string) (repo.PaymentStatus, *time.Time, bool) {
	switch s {
	case "settlement", "capture":
		now := time.Now().UTC()
		return repo.PaymentSettlement, &now, true
	case "pending":
		return repo.PaymentPending, nil, true
	case "deny":
		return repo.PaymentDeny, nil, true
	case "cancel":
		return repo.PaymentCancel, nil, true
	case "expire":
		return repo.PaymentExpire, nil, true
	default:
		return "", nil, false
	}
}
