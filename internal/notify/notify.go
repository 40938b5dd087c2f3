package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bejofood/internal/metrics"
	"bejofood/internal/repo"
	"bejofood/internal/tg"
)

// Messenger sends chat messages to customers. Satisfied by *tg.Client.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *tg.InlineKeyboard) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error
}

// Broadcaster fans an event out to dashboard subscribers.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// Event is the dashboard wire envelope.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData is the payload of an order_update event. EventID lets the
// dashboard deduplicate frames across reconnects.
type EventData struct {
	EventID       string `json:"event_id"`
	Action        string `json:"action"`
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	Status        string `json:"status,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
	Total         int64  `json:"total,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
}

// Notifier delivers best-effort side notifications after state changes have
// committed. Every delivery failure is logged and swallowed: the order and
// payment records are the source of truth, notifications are not.
type Notifier struct {
	messenger   Messenger
	broadcaster Broadcaster
	timeout     time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// New builds a Notifier. Timeout bounds each outbound delivery.
func New(messenger Messenger, broadcaster Broadcaster, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		messenger:   messenger,
		broadcaster: broadcaster,
		timeout:     timeout,
		logger:      logger.With("component", "notifier"),
		metrics:     m,
	}
}

// SendText messages the customer, logging failures.
func (n *Notifier) SendText(ctx context.Context, chatID int64, text string) {
	ctx, cancel := n.bound(ctx)
	defer cancel()
	if err := n.messenger.SendMessage(ctx, chatID, text, nil); err != nil {
		n.logger.Error("send text", "chat_id", chatID, "error", err)
		n.metrics.Errors.WithLabelValues("notifier").Inc()
	}
}

// SendPhoto sends a photo message to the customer, logging failures.
func (n *Notifier) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) {
	ctx, cancel := n.bound(ctx)
	defer cancel()
	if err := n.messenger.SendPhoto(ctx, chatID, photoURL, caption); err != nil {
		n.logger.Error("send photo", "chat_id", chatID, "error", err)
		n.metrics.Errors.WithLabelValues("notifier").Inc()
	}
}

// OrderCreated broadcasts a new_order event to the dashboard.
func (n *Notifier) OrderCreated(o *repo.Order, customerName string) {
	n.broadcast(Event{
		Type: "order_update",
		Data: EventData{
			Action:       "new_order",
			OrderID:      o.ID,
			OrderNumber:  o.OrderNumber,
			Status:       string(o.Status),
			Total:        o.Total,
			CustomerName: customerName,
		},
	})
}

// PaymentUpdate broadcasts a payment_update event to the dashboard.
func (n *Notifier) PaymentUpdate(o repo.Order, paymentStatus repo.PaymentStatus) {
	n.broadcast(Event{
		Type: "order_update",
		Data: EventData{
			Action:        "payment_update",
			OrderID:       o.ID,
			OrderNumber:   o.OrderNumber,
			Status:        string(o.Status),
			PaymentStatus: string(paymentStatus),
			Total:         o.Total,
		},
	})
}

// StatusChanged broadcasts a status_changed event to the dashboard.
func (n *Notifier) StatusChanged(o *repo.Order) {
	n.broadcast(Event{
		Type: "order_update",
		Data: EventData{
			Action:      "status_changed",
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			Status:      string(o.Status),
			Total:       o.Total,
		},
	})
}

func (n *Notifier) broadcast(ev Event) {
	ev.Data.EventID = uuid.NewString()
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error("marshal event", "action", ev.Data.Action, "error", err)
		return
	}
	n.broadcaster.Broadcast(payload)
	n.metrics.DashboardBroadcasts.WithLabelValues(ev.Data.Action).Inc()
}

// bound detaches the delivery from the caller's cancellation while still
// enforcing the notify timeout. A webhook request finishing early must not
// cut off an in-flight customer message.
func (n *Notifier) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
}

// FormatRupiah renders an amount like Rp 25.000, with dots as thousands
// separators.
func FormatRupiah(amount int64) string {
	s := fmt.Sprintf("%d", amount)
	if len(s) <= 3 {
		return "Rp " + s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, c)
	}
	return "Rp " + string(out)
}
