package repo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"bejofood/migrations"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(r.Close)
	if err := r.RunMigrations(ctx, migrations.Files); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return r
}

func seedMenuItem(t *testing.T, r *SQLiteRepository, name string, price int64) string {
	t.Helper()
	ctx := context.Background()
	catID := uuid.NewString()
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name) VALUES (?, 'Makanan') ON CONFLICT DO NOTHING;`, catID); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	itemID := uuid.NewString()
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO menu_items (id, category_id, name, price) VALUES (?, ?, ?, ?);`,
		itemID, catID, name, price); err != nil {
		t.Fatalf("seed menu item: %v", err)
	}
	return itemID
}

func seedUser(t *testing.T, r *SQLiteRepository, telegramID int64) *User {
	t.Helper()
	u, err := r.UpsertUserByTelegramID(context.Background(), UserProfile{
		TelegramID: telegramID, Username: "budi", FirstName: "Budi",
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestSQLiteUpsertUser(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	u1 := seedUser(t, r, 777)
	u2, err := r.UpsertUserByTelegramID(ctx, UserProfile{TelegramID: 777, Username: "budi2", FirstName: ""})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if u2.ID != u1.ID {
		t.Fatalf("upsert created a second user: %s vs %s", u1.ID, u2.ID)
	}
	if u2.Username != "budi2" {
		t.Errorf("username not updated: %q", u2.Username)
	}
	if u2.FirstName != "Budi" {
		t.Errorf("empty first name overwrote existing: %q", u2.FirstName)
	}
}

func TestSQLiteConversationStateCAS(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, 777)

	if err := r.SetConversationState(ctx, u.ID, StateNone, StateCheckoutAddress, ConversationData{}); err != nil {
		t.Fatalf("enter checkout: %v", err)
	}
	// The same transition a second time must lose the guard.
	err := r.SetConversationState(ctx, u.ID, StateNone, StateCheckoutAddress, ConversationData{})
	if !errors.Is(err, ErrConversationConflict) {
		t.Fatalf("got %v, want ErrConversationConflict", err)
	}

	data := ConversationData{Address: "Jl. Merdeka No. 10, Jakarta"}
	if err := r.SetConversationState(ctx, u.ID, StateCheckoutAddress, StateCheckoutPhone, data); err != nil {
		t.Fatalf("advance to phone: %v", err)
	}
	got, err := r.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if got.ConversationState != StateCheckoutPhone || got.ConversationData.Address != data.Address {
		t.Errorf("persisted state = %+v", got)
	}
}

func TestSQLiteCartOperations(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, 777)
	itemID := seedMenuItem(t, r, "Nasi Goreng", 25000)

	cart, err := r.EnsureCart(ctx, u.ID)
	if err != nil {
		t.Fatalf("ensure cart: %v", err)
	}
	cart2, err := r.EnsureCart(ctx, u.ID)
	if err != nil || cart2.ID != cart.ID {
		t.Fatalf("ensure cart not idempotent: %v %v", cart2, err)
	}

	if qty, err := r.AddOrIncrementItem(ctx, cart.ID, itemID); err != nil || qty != 1 {
		t.Fatalf("first add = (%d, %v), want 1", qty, err)
	}
	if qty, err := r.AddOrIncrementItem(ctx, cart.ID, itemID); err != nil || qty != 2 {
		t.Fatalf("second add = (%d, %v), want 2", qty, err)
	}

	lines, err := r.ListCartLines(ctx, cart.ID)
	if err != nil || len(lines) != 1 {
		t.Fatalf("lines = %v, %v", lines, err)
	}
	line := lines[0]
	if line.Quantity != 2 || line.Subtotal() != 50000 {
		t.Errorf("line = %+v", line)
	}

	if err := r.DecreaseItem(ctx, line.ID); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	// Decreasing quantity 1 deletes the line.
	if err := r.DecreaseItem(ctx, line.ID); err != nil {
		t.Fatalf("decrease to zero: %v", err)
	}
	if lines, _ := r.ListCartLines(ctx, cart.ID); len(lines) != 0 {
		t.Fatalf("line not deleted: %v", lines)
	}
	if err := r.DecreaseItem(ctx, line.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("decrease missing line = %v, want ErrNotFound", err)
	}
}

func seedCartLine(t *testing.T, r *SQLiteRepository, quantity int) (CartLine, string) {
	t.Helper()
	ctx := context.Background()
	u := seedUser(t, r, 777)
	itemID := seedMenuItem(t, r, "Nasi Goreng", 25000)
	cart, err := r.EnsureCart(ctx, u.ID)
	if err != nil {
		t.Fatalf("ensure cart: %v", err)
	}
	for i := 0; i < quantity; i++ {
		if _, err := r.AddOrIncrementItem(ctx, cart.ID, itemID); err != nil {
			t.Fatalf("add item: %v", err)
		}
	}
	lines, err := r.ListCartLines(ctx, cart.ID)
	if err != nil || len(lines) != 1 {
		t.Fatalf("lines = %v, %v", lines, err)
	}
	return lines[0], cart.ID
}

func TestSQLiteConcurrentIncrease(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	line, cartID := seedCartLine(t, r, 1)

	// Two increments racing on the same line must both land.
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.IncreaseItem(ctx, line.ID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("increase: %v", err)
		}
	}

	lines, err := r.ListCartLines(ctx, cartID)
	if err != nil || len(lines) != 1 {
		t.Fatalf("lines = %v, %v", lines, err)
	}
	if lines[0].Quantity != 3 {
		t.Fatalf("quantity = %d, want 3", lines[0].Quantity)
	}
}

func TestSQLiteConcurrentDecrease(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	line, cartID := seedCartLine(t, r, 3)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.DecreaseItem(ctx, line.ID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("decrease: %v", err)
		}
	}

	lines, err := r.ListCartLines(ctx, cartID)
	if err != nil || len(lines) != 1 {
		t.Fatalf("lines = %v, %v", lines, err)
	}
	if lines[0].Quantity != 1 {
		t.Fatalf("quantity = %d, want 1", lines[0].Quantity)
	}
}

func setupCheckout(t *testing.T, r *SQLiteRepository) (*User, *Cart) {
	t.Helper()
	ctx := context.Background()
	u := seedUser(t, r, 777)
	nasi := seedMenuItem(t, r, "Nasi Goreng", 25000)
	teh := seedMenuItem(t, r, "Es Teh", 5000)

	cart, err := r.EnsureCart(ctx, u.ID)
	if err != nil {
		t.Fatalf("ensure cart: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := r.AddOrIncrementItem(ctx, cart.ID, nasi); err != nil {
			t.Fatalf("add nasi: %v", err)
		}
	}
	if _, err := r.AddOrIncrementItem(ctx, cart.ID, teh); err != nil {
		t.Fatalf("add teh: %v", err)
	}

	if err := r.SetConversationState(ctx, u.ID, StateNone, StateCheckoutNotes, ConversationData{
		Address: "Jl. Merdeka No. 10, Jakarta", Phone: "08123456789",
	}); err != nil {
		t.Fatalf("enter notes state: %v", err)
	}
	u.ConversationState = StateCheckoutNotes
	return u, cart
}

func TestSQLiteFinalizeOrder(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u, cart := setupCheckout(t, r)

	in := FinalizeInput{
		UserID:          u.ID,
		CartID:          cart.ID,
		FromState:       StateCheckoutNotes,
		OrderNumber:     "BF-20250131-0042",
		DeliveryAddress: "Jl. Merdeka No. 10, Jakarta",
		Phone:           "08123456789",
	}
	order, err := r.FinalizeOrder(ctx, in)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if order.Total != 55000 {
		t.Errorf("total = %d, want 55000", order.Total)
	}
	if len(order.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(order.Lines))
	}

	// Cart cleared, conversation reset.
	if lines, _ := r.ListCartLines(ctx, cart.ID); len(lines) != 0 {
		t.Error("cart not cleared")
	}
	reloaded, _ := r.GetUserByID(ctx, u.ID)
	if reloaded.ConversationState != StateNone {
		t.Errorf("conversation state = %q, want reset", reloaded.ConversationState)
	}

	// The snapshot survives later menu price changes.
	if _, err := r.db.ExecContext(ctx, `UPDATE menu_items SET price = 99999;`); err != nil {
		t.Fatalf("bump prices: %v", err)
	}
	got, err := r.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Total != 55000 || got.Lines[0].Price == 99999 {
		t.Errorf("snapshot mutated: total=%d line price=%d", got.Total, got.Lines[0].Price)
	}

	// A duplicate delivery of the finalizing input loses the CAS.
	if _, err := r.FinalizeOrder(ctx, in); !errors.Is(err, ErrConversationConflict) {
		t.Fatalf("second finalize = %v, want ErrConversationConflict", err)
	}
}

func TestSQLiteFinalizeEmptyCart(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, 777)
	cart, _ := r.EnsureCart(ctx, u.ID)
	if err := r.SetConversationState(ctx, u.ID, StateNone, StateCheckoutNotes, ConversationData{}); err != nil {
		t.Fatalf("enter state: %v", err)
	}

	_, err := r.FinalizeOrder(ctx, FinalizeInput{
		UserID: u.ID, CartID: cart.ID, FromState: StateCheckoutNotes, OrderNumber: "BF-20250131-0001",
	})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("got %v, want ErrEmptyCart", err)
	}
	// The state reset still committed.
	reloaded, _ := r.GetUserByID(ctx, u.ID)
	if reloaded.ConversationState != StateNone {
		t.Errorf("state = %q, want reset even on empty cart", reloaded.ConversationState)
	}
}

func TestSQLiteDuplicateOrderNumber(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u, cart := setupCheckout(t, r)

	if _, err := r.FinalizeOrder(ctx, FinalizeInput{
		UserID: u.ID, CartID: cart.ID, FromState: StateCheckoutNotes, OrderNumber: "BF-20250131-0042",
	}); err != nil {
		t.Fatalf("first finalize: %v", err)
	}

	// Refill the cart and retry with the same number.
	itemID := seedMenuItem(t, r, "Bakso", 20000)
	if _, err := r.AddOrIncrementItem(ctx, cart.ID, itemID); err != nil {
		t.Fatalf("refill cart: %v", err)
	}
	if err := r.SetConversationState(ctx, u.ID, StateNone, StateCheckoutNotes, ConversationData{}); err != nil {
		t.Fatalf("re-enter state: %v", err)
	}
	_, err := r.FinalizeOrder(ctx, FinalizeInput{
		UserID: u.ID, CartID: cart.ID, FromState: StateCheckoutNotes, OrderNumber: "BF-20250131-0042",
	})
	if !errors.Is(err, ErrDuplicateOrderNumber) {
		t.Fatalf("got %v, want ErrDuplicateOrderNumber", err)
	}
}

func TestSQLitePaymentStatusLifecycle(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u, cart := setupCheckout(t, r)

	order, err := r.FinalizeOrder(ctx, FinalizeInput{
		UserID: u.ID, CartID: cart.ID, FromState: StateCheckoutNotes, OrderNumber: "BF-20250131-0042",
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	expires := time.Now().Add(15 * time.Minute).UTC()
	if _, err := r.InsertPayment(ctx, Payment{
		OrderID:       order.ID,
		TransactionID: "BF-20250131-0042-1738300000",
		PaymentType:   "qris",
		Status:        PaymentPending,
		GrossAmount:   order.Total,
		ExpiresAt:     &expires,
	}); err != nil {
		t.Fatalf("insert payment: %v", err)
	}

	paidAt := time.Now().UTC()
	app, err := r.ApplyPaymentStatus(ctx, StatusUpdate{
		TransactionID: "BF-20250131-0042-1738300000",
		Status:        PaymentSettlement,
		PaidAt:        &paidAt,
		RawPayload:    []byte(`{"transaction_status":"settlement"}`),
	})
	if err != nil {
		t.Fatalf("apply settlement: %v", err)
	}
	if !app.Applied || app.Sticky {
		t.Fatalf("settlement application = %+v", app)
	}
	if app.Order.Status != OrderConfirmed {
		t.Errorf("order status = %q, want confirmed", app.Order.Status)
	}
	if app.ChatID != 777 {
		t.Errorf("chat id = %d, want 777", app.ChatID)
	}

	// A late expire must not undo the settlement.
	app2, err := r.ApplyPaymentStatus(ctx, StatusUpdate{
		TransactionID: "BF-20250131-0042-1738300000",
		Status:        PaymentExpire,
	})
	if err != nil {
		t.Fatalf("apply expire: %v", err)
	}
	if app2.Applied || !app2.Sticky {
		t.Fatalf("late expire application = %+v", app2)
	}

	p, err := r.GetPaymentByTransactionID(ctx, "BF-20250131-0042-1738300000")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if p.Status != PaymentSettlement || p.PaidAt == nil {
		t.Errorf("payment = %+v", p)
	}
	got, _ := r.GetOrder(ctx, order.ID)
	if got.Status != OrderConfirmed {
		t.Errorf("order status = %q after late expire", got.Status)
	}

	// Re-sending settlement is a duplicate, not sticky.
	app3, err := r.ApplyPaymentStatus(ctx, StatusUpdate{
		TransactionID: "BF-20250131-0042-1738300000",
		Status:        PaymentSettlement,
	})
	if err != nil {
		t.Fatalf("re-apply settlement: %v", err)
	}
	if app3.Applied || app3.Sticky {
		t.Fatalf("duplicate settlement application = %+v", app3)
	}
}

func TestSQLiteApplyPaymentStatusUnknownTransaction(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.ApplyPaymentStatus(context.Background(), StatusUpdate{TransactionID: "nope", Status: PaymentSettlement})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSQLitePaymentEvents(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	if err := r.InsertPaymentEvent(ctx, PaymentEvent{
		TransactionID:     "tx-1",
		TransactionStatus: "settlement",
		Applied:           true,
		Payload:           []byte(`{"x":1}`),
	}); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_events WHERE transaction_id = 'tx-1';`).Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Fatalf("events = %d, want 1", count)
	}
}
