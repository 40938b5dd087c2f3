package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"bejofood/internal/metrics"
	"bejofood/internal/midtrans"
	"bejofood/internal/notify"
	"bejofood/internal/repo"
)

// finalize retries on order-number collisions this many times before giving
// up. Collisions are rare (10k numbers per day) but possible.
const maxNumberAttempts = 3

// ChargeCreator creates QRIS charges. Satisfied by *midtrans.Client.
type ChargeCreator interface {
	CreateCharge(ctx context.Context, in midtrans.ChargeInput) (*midtrans.Charge, error)
}

// Pipeline turns a completed checkout conversation into an order with a
// payment attached.
type Pipeline struct {
	repo     repo.Repository
	gateway  ChargeCreator
	notifier *notify.Notifier
	prefix   string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New builds the checkout pipeline. prefix is the order-number prefix.
func New(r repo.Repository, gateway ChargeCreator, notifier *notify.Notifier, prefix string, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	if prefix == "" {
		prefix = "BF"
	}
	return &Pipeline{
		repo:     r,
		gateway:  gateway,
		notifier: notifier,
		prefix:   prefix,
		logger:   logger.With("component", "checkout"),
		metrics:  m,
	}
}

// Result reports what Finalize produced. Payment is nil when the charge
// failed; the order still exists and awaits manual follow-up.
type Result struct {
	Order   *repo.Order
	Payment *repo.Payment
}

// Finalize creates the order from the user's cart and requests a QRIS charge
// for it. The order creation is transactional; the charge happens after
// commit so a gateway outage can never roll back an order. ErrEmptyCart and
// ErrConversationConflict pass through for the conversation layer to
// translate.
func (p *Pipeline) Finalize(ctx context.Context, user *repo.User, cart *repo.Cart, fromState repo.ConversationState, data repo.ConversationData) (*Result, error) {
	var order *repo.Order
	for attempt := 1; ; attempt++ {
		o, err := p.repo.FinalizeOrder(ctx, repo.FinalizeInput{
			UserID:          user.ID,
			CartID:          cart.ID,
			FromState:       fromState,
			OrderNumber:     p.NewOrderNumber(time.Now()),
			DeliveryAddress: data.Address,
			Phone:           data.Phone,
			Notes:           data.Notes,
		})
		if err == nil {
			order = o
			break
		}
		if errors.Is(err, repo.ErrDuplicateOrderNumber) && attempt < maxNumberAttempts {
			p.logger.Warn("order number collision, retrying", "attempt", attempt)
			continue
		}
		if errors.Is(err, repo.ErrEmptyCart) {
			p.metrics.OrdersFinalized.WithLabelValues("empty_cart").Inc()
		} else if errors.Is(err, repo.ErrConversationConflict) {
			p.metrics.OrdersFinalized.WithLabelValues("conflict").Inc()
		} else {
			p.metrics.OrdersFinalized.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	p.logger.Info("order created",
		"order_number", order.OrderNumber,
		"total", order.Total,
		"lines", len(order.Lines),
	)

	payment, err := p.charge(ctx, user, order)
	if err != nil {
		// The order is committed. Tell the customer it exists and that
		// payment will be arranged separately instead of failing the flow.
		p.metrics.OrdersFinalized.WithLabelValues("charge_failed").Inc()
		p.logger.Error("create charge", "order_number", order.OrderNumber, "error", err)
		p.notifier.SendText(ctx, user.TelegramID, fmt.Sprintf(
			"📝 Pesanan <code>%s</code> tersimpan, tetapi pembuatan pembayaran gagal. Admin akan menghubungi Anda untuk pembayaran.",
			order.OrderNumber,
		))
		p.notifier.OrderCreated(order, user.FullName())
		return &Result{Order: order}, nil
	}

	p.metrics.OrdersFinalized.WithLabelValues("ok").Inc()
	p.sendQR(ctx, user.TelegramID, order, payment)
	p.notifier.OrderCreated(order, user.FullName())
	return &Result{Order: order, Payment: payment}, nil
}

func (p *Pipeline) charge(ctx context.Context, user *repo.User, order *repo.Order) (*repo.Payment, error) {
	items := make([]midtrans.ChargeItem, 0, len(order.Lines))
	for _, l := range order.Lines {
		items = append(items, midtrans.ChargeItem{
			ID:       l.MenuItemID,
			Price:    l.Price,
			Quantity: l.Quantity,
			Name:     l.Name,
		})
	}

	// The gateway requires a globally unique order_id, so the order number
	// gets a timestamp suffix. Webhook lookups use this full value.
	transactionID := fmt.Sprintf("%s-%d", order.OrderNumber, time.Now().Unix())
	ch, err := p.gateway.CreateCharge(ctx, midtrans.ChargeInput{
		TransactionID: transactionID,
		GrossAmount:   order.Total,
		Items:         items,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		CustomerPhone: order.Phone,
	})
	if err != nil {
		return nil, err
	}

	payment, err := p.repo.InsertPayment(ctx, repo.Payment{
		OrderID:       order.ID,
		TransactionID: transactionID,
		PaymentType:   "qris",
		Status:        repo.PaymentPending,
		QRURL:         ch.QRURL,
		QRString:      ch.QRString,
		GrossAmount:   ch.GrossAmount,
		ExpiresAt:     &ch.ExpiresAt,
		RawResponse:   ch.RawResponse,
	})
	if err != nil {
		return nil, fmt.Errorf("store payment: %w", err)
	}
	return payment, nil
}

func (p *Pipeline) sendQR(ctx context.Context, chatID int64, order *repo.Order, payment *repo.Payment) {
	caption := fmt.Sprintf(
		"🧾 <b>Pesanan %s</b>\nTotal: <b>%s</b>\n\nScan QRIS di atas untuk membayar. Berlaku sampai %s WIB.",
		order.OrderNumber,
		notify.FormatRupiah(order.Total),
		payment.ExpiresAt.In(jakarta()).Format("15:04"),
	)
	if payment.QRURL != "" {
		p.notifier.SendPhoto(ctx, chatID, payment.QRURL, caption)
		return
	}
	p.notifier.SendText(ctx, chatID, caption+"\n\n<code>"+payment.QRString+"</code>")
}

// NewOrderNumber generates an order number like BF-20250131-0482.
func (p *Pipeline) NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("%s-%s-%04d", p.prefix, now.Format("20060102"), rand.Intn(10000))
}

func jakarta() *time.Location {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		return time.FixedZone("WIB", 7*3600)
	}
	return loc
}
