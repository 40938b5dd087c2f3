package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// InsertPayment stores a new payment record for an order.
func (r *PostgresRepository) InsertPayment(ctx context.Context, p Payment) (*Payment, error) {
	const q = `
INSERT INTO payments (order_id, transaction_id, payment_type, status, qr_url, qr_string, gross_amount, expires_at, provider_response)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at, updated_at;
`
	raw := p.RawResponse
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := r.pool.QueryRow(ctx, q,
		p.OrderID, p.TransactionID, p.PaymentType, string(p.Status),
		p.QRURL, p.QRString, p.GrossAmount, p.ExpiresAt, raw,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return &p, nil
}

// GetPaymentByTransactionID returns the payment for a provider transaction.
func (r *PostgresRepository) GetPaymentByTransactionID(ctx context.Context, transactionID string) (*Payment, error) {
	const q = `
SELECT id, order_id, transaction_id, payment_type, status, qr_url, qr_string, gross_amount, expires_at, paid_at, provider_response, created_at, updated_at
FROM payments
WHERE transaction_id = $1
LIMIT 1;
`
	var p Payment
	var status string
	if err := r.pool.QueryRow(ctx, q, transactionID).Scan(
		&p.ID, &p.OrderID, &p.TransactionID, &p.PaymentType, &status,
		&p.QRURL, &p.QRString, &p.GrossAmount, &p.ExpiresAt, &p.PaidAt,
		&p.RawResponse, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, notFoundOr(err, "get payment by transaction id")
	}
	p.Status = PaymentStatus(status)
	return &p, nil
}

// ApplyPaymentStatus applies a webhook-driven status update under a row
// lock so concurrent duplicate deliveries serialize. Terminal statuses are
// sticky: once settled/expired/denied/cancelled, a conflicting later
// notification changes neither the payment nor the order. Reapplying the
// current status only refreshes the stored provider response.
func (r *PostgresRepository) ApplyPaymentStatus(ctx context.Context, upd StatusUpdate) (*StatusApplication, error) {
	var app StatusApplication
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		const sel = `
SELECT p.id, p.order_id, p.transaction_id, p.payment_type, p.status, p.qr_url, p.qr_string, p.gross_amount, p.expires_at, p.paid_at,
       o.user_id, o.order_number, o.status, o.total, u.telegram_id
FROM payments p
JOIN orders o ON o.id = p.order_id
JOIN users u ON u.id = o.user_id
WHERE p.transaction_id = $1
FOR UPDATE OF p, o;
`
		var (
			p           Payment
			o           Order
			payStatus   string
			orderStatus string
		)
		if err := tx.QueryRow(ctx, sel, upd.TransactionID).Scan(
			&p.ID, &p.OrderID, &p.TransactionID, &p.PaymentType, &payStatus,
			&p.QRURL, &p.QRString, &p.GrossAmount, &p.ExpiresAt, &p.PaidAt,
			&o.UserID, &o.OrderNumber, &orderStatus, &o.Total, &app.ChatID,
		); err != nil {
			return notFoundOr(err, "lock payment")
		}
		p.Status = PaymentStatus(payStatus)
		o.ID = p.OrderID
		o.Status = OrderStatus(orderStatus)

		app.PrevStatus = p.Status
		app.Payment = p
		app.Order = o

		if p.Status.IsTerminal() {
			app.Sticky = p.Status != upd.Status
			return nil
		}

		raw := upd.RawPayload
		if len(raw) == 0 {
			raw = []byte("{}")
		}

		if upd.Status == p.Status {
			const refresh = `UPDATE payments SET provider_response = $2, updated_at = NOW() WHERE id = $1;`
			if _, err := tx.Exec(ctx, refresh, p.ID, raw); err != nil {
				return fmt.Errorf("refresh payment response: %w", err)
			}
			return nil
		}

		const updPay = `
UPDATE payments
SET status = $2, paid_at = COALESCE($3, paid_at), provider_response = $4, updated_at = NOW()
WHERE id = $1;
`
		if _, err := tx.Exec(ctx, updPay, p.ID, string(upd.Status), upd.PaidAt, raw); err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
		app.Payment.Status = upd.Status
		if upd.PaidAt != nil {
			app.Payment.PaidAt = upd.PaidAt
		}

		if next, ok := cascadeOrderStatus(upd.Status); ok {
			const updOrder = `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1;`
			if _, err := tx.Exec(ctx, updOrder, p.OrderID, string(next)); err != nil {
				return fmt.Errorf("cascade order status: %w", err)
			}
			app.Order.Status = next
		}

		app.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// InsertPaymentEvent appends a raw notification payload for audit.
func (r *PostgresRepository) InsertPaymentEvent(ctx context.Context, ev PaymentEvent) error {
	const q = `
INSERT INTO payment_events (transaction_id, transaction_status, applied, payload)
VALUES ($1, $2, $3, $4);
`
	payload := ev.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if _, err := r.pool.Exec(ctx, q, ev.TransactionID, ev.TransactionStatus, ev.Applied, payload); err != nil {
		return fmt.Errorf("insert payment event: %w", err)
	}
	return nil
}

// cascadeOrderStatus maps a payment transition to the order status it
// implies. Pending implies no change.
func cascadeOrderStatus(s PaymentStatus) (OrderStatus, bool) {
	switch s {
	case PaymentSettlement:
		return OrderConfirmed, true
	case PaymentDeny, PaymentCancel, PaymentExpire:
		return OrderCancelled, true
	default:
		return "", false
	}
}
