package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLite has no server-side UUID generation, so identifiers are minted in
// the application.
func newID() string {
	return uuid.NewString()
}

func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func sqliteNotFoundOr(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// UpsertUserByTelegramID stores or updates the user profile based on the
// external Telegram identity. The conversation state is never touched here.
func (r *SQLiteRepository) UpsertUserByTelegramID(ctx context.Context, profile UserProfile) (*User, error) {
	const q = `
INSERT INTO users (id, telegram_id, username, first_name, last_name, updated_at)
VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (telegram_id) DO UPDATE SET
    username = excluded.username,
    first_name = CASE WHEN excluded.first_name = '' THEN users.first_name ELSE excluded.first_name END,
    last_name = excluded.last_name,
    updated_at = CURRENT_TIMESTAMP
RETURNING id, telegram_id, username, first_name, last_name, phone, conversation_state, conversation_data, created_at, updated_at;
`
	row := r.db.QueryRowContext(ctx, q,
		newID(),
		profile.TelegramID,
		profile.Username,
		profile.FirstName,
		profile.LastName,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

// GetUserByTelegramID returns the user registered for the external identity.
func (r *SQLiteRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	const q = `
SELECT id, telegram_id, username, first_name, last_name, phone, conversation_state, conversation_data, created_at, updated_at
FROM users
WHERE telegram_id = ?
LIMIT 1;
`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, telegramID))
	if err != nil {
		return nil, sqliteNotFoundOr(err, "get user by telegram id")
	}
	return u, nil
}

// GetUserByID returns user by internal identifier.
func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	const q = `
SELECT id, telegram_id, username, first_name, last_name, phone, conversation_state, conversation_data, created_at, updated_at
FROM users
WHERE id = ?
LIMIT 1;
`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, sqliteNotFoundOr(err, "get user by id")
	}
	return u, nil
}

// SetConversationState advances conversation state and scratch data guarded
// by the expected current state.
func (r *SQLiteRepository) SetConversationState(ctx context.Context, userID string, from, to ConversationState, data ConversationData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal conversation data: %w", err)
	}
	const q = `
UPDATE users
SET conversation_state = ?, conversation_data = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND conversation_state = ?;
`
	res, err := r.db.ExecContext(ctx, q, string(to), string(payload), userID, string(from))
	if err != nil {
		return fmt.Errorf("set conversation state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set conversation state: %w", err)
	}
	if n == 0 {
		return ErrConversationConflict
	}
	return nil
}

// ListActiveCategories returns active categories in display order.
func (r *SQLiteRepository) ListActiveCategories(ctx context.Context) ([]Category, error) {
	const q = `
SELECT id, name, emoji, sort_order
FROM categories
WHERE is_active = 1
ORDER BY sort_order, name;
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Emoji, &c.SortOrder); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return cats, nil
}

// GetCategory returns one category by id.
func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (*Category, error) {
	const q = `SELECT id, name, emoji, sort_order FROM categories WHERE id = ? LIMIT 1;`
	var c Category
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Name, &c.Emoji, &c.SortOrder); err != nil {
		return nil, sqliteNotFoundOr(err, "get category")
	}
	return &c, nil
}

// ListAvailableItems returns available items of a category.
func (r *SQLiteRepository) ListAvailableItems(ctx context.Context, categoryID string) ([]MenuItem, error) {
	const q = `
SELECT id, category_id, name, description, price, image_url, is_available
FROM menu_items
WHERE category_id = ? AND is_available = 1
ORDER BY name;
`
	rows, err := r.db.QueryContext(ctx, q, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		var m MenuItem
		if err := rows.Scan(&m.ID, &m.CategoryID, &m.Name, &m.Description, &m.Price, &m.ImageURL, &m.IsAvailable); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate menu items: %w", err)
	}
	return items, nil
}

// GetMenuItem returns one menu item by id.
func (r *SQLiteRepository) GetMenuItem(ctx context.Context, id string) (*MenuItem, error) {
	const q = `
SELECT id, category_id, name, description, price, image_url, is_available
FROM menu_items
WHERE id = ?
LIMIT 1;
`
	var m MenuItem
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&m.ID, &m.CategoryID, &m.Name, &m.Description, &m.Price, &m.ImageURL, &m.IsAvailable); err != nil {
		return nil, sqliteNotFoundOr(err, "get menu item")
	}
	return &m, nil
}

// EnsureCart returns the user's cart, creating it when missing.
func (r *SQLiteRepository) EnsureCart(ctx context.Context, userID string) (*Cart, error) {
	const q = `
INSERT INTO carts (id, user_id)
VALUES (?, ?)
ON CONFLICT (user_id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
RETURNING id, user_id;
`
	var c Cart
	if err := r.db.QueryRowContext(ctx, q, newID(), userID).Scan(&c.ID, &c.UserID); err != nil {
		return nil, fmt.Errorf("ensure cart: %w", err)
	}
	return &c, nil
}

// ListCartLines returns cart lines joined with current menu data, in
// insertion order.
func (r *SQLiteRepository) ListCartLines(ctx context.Context, cartID string) ([]CartLine, error) {
	const q = `
SELECT ci.id, ci.menu_item_id, mi.name, mi.price, ci.quantity
FROM cart_items ci
JOIN menu_items mi ON mi.id = ci.menu_item_id
WHERE ci.cart_id = ?
ORDER BY ci.created_at, ci.id;
`
	rows, err := r.db.QueryContext(ctx, q, cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	return collectCartLinesSQL(rows)
}

// AddOrIncrementItem inserts the line at quantity 1 or bumps it by one.
func (r *SQLiteRepository) AddOrIncrementItem(ctx context.Context, cartID, menuItemID string) (int, error) {
	const q = `
INSERT INTO cart_items (id, cart_id, menu_item_id, quantity)
VALUES (?, ?, ?, 1)
ON CONFLICT (cart_id, menu_item_id) DO UPDATE SET
    quantity = cart_items.quantity + 1,
    updated_at = CURRENT_TIMESTAMP
RETURNING quantity;
`
	var qty int
	if err := r.db.QueryRowContext(ctx, q, newID(), cartID, menuItemID).Scan(&qty); err != nil {
		return 0, fmt.Errorf("add cart item: %w", err)
	}
	return qty, nil
}

// IncreaseItem bumps a line's quantity by one.
func (r *SQLiteRepository) IncreaseItem(ctx context.Context, lineID string) error {
	const q = `UPDATE cart_items SET quantity = quantity + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?;`
	res, err := r.db.ExecContext(ctx, q, lineID)
	if err != nil {
		return fmt.Errorf("increase cart item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("increase cart item: %w", ErrNotFound)
	}
	return nil
}

// DecreaseItem lowers a line's quantity by one, deleting the line when it
// would drop to zero.
func (r *SQLiteRepository) DecreaseItem(ctx context.Context, lineID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		const dec = `UPDATE cart_items SET quantity = quantity - 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND quantity > 1;`
		res, err := tx.ExecContext(ctx, dec, lineID)
		if err != nil {
			return fmt.Errorf("decrease cart item: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		const del = `DELETE FROM cart_items WHERE id = ?;`
		res, err = tx.ExecContext(ctx, del, lineID)
		if err != nil {
			return fmt.Errorf("delete cart item: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("decrease cart item: %w", ErrNotFound)
		}
		return nil
	})
}

// RemoveItem deletes a line unconditionally.
func (r *SQLiteRepository) RemoveItem(ctx context.Context, lineID string) error {
	const q = `DELETE FROM cart_items WHERE id = ?;`
	res, err := r.db.ExecContext(ctx, q, lineID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("remove cart item: %w", ErrNotFound)
	}
	return nil
}

// ClearCart deletes all lines of a cart.
func (r *SQLiteRepository) ClearCart(ctx context.Context, cartID string) error {
	const q = `DELETE FROM cart_items WHERE cart_id = ?;`
	if _, err := r.db.ExecContext(ctx, q, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// FinalizeOrder converts a cart into an immutable order in one transaction.
// SQLite serializes writers, so the row locks of the Postgres variant are
// unnecessary here; the conversation-state guard still protects against
// duplicate deliveries.
func (r *SQLiteRepository) FinalizeOrder(ctx context.Context, in FinalizeInput) (*Order, error) {
	var (
		order *Order
		empty bool
	)
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		const reset = `
UPDATE users
SET conversation_state = '', conversation_data = '{}', updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND conversation_state = ?;
`
		res, err := tx.ExecContext(ctx, reset, in.UserID, string(in.FromState))
		if err != nil {
			return fmt.Errorf("reset conversation: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrConversationConflict
		}

		const sel = `
SELECT ci.id, ci.menu_item_id, mi.name, mi.price, ci.quantity
FROM cart_items ci
JOIN menu_items mi ON mi.id = ci.menu_item_id
WHERE ci.cart_id = ?
ORDER BY ci.created_at, ci.id;
`
		rows, err := tx.QueryContext(ctx, sel, in.CartID)
		if err != nil {
			return fmt.Errorf("read cart lines: %w", err)
		}
		lines, err := collectCartLinesSQL(rows)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			// Commit the state reset alone; the caller reports the empty cart.
			empty = true
			return nil
		}

		var total int64
		for _, l := range lines {
			total += l.Subtotal()
		}

		now := time.Now().UTC()
		o := Order{
			ID:              newID(),
			UserID:          in.UserID,
			OrderNumber:     in.OrderNumber,
			Status:          OrderPending,
			DeliveryAddress: in.DeliveryAddress,
			Phone:           in.Phone,
			Notes:           in.Notes,
			Total:           total,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		const insOrder = `
INSERT INTO orders (id, user_id, order_number, status, delivery_address, phone, notes, total, created_at, updated_at)
VALUES (?, ?, ?, 'pending', ?, ?, ?, ?, ?, ?);
`
		if _, err := tx.ExecContext(ctx, insOrder,
			o.ID, in.UserID, in.OrderNumber, in.DeliveryAddress, in.Phone, in.Notes, total, now, now,
		); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		const insLine = `
INSERT INTO order_items (id, order_id, menu_item_id, name, price, quantity)
VALUES (?, ?, ?, ?, ?, ?);
`
		for _, l := range lines {
			line := OrderLine{
				ID:         newID(),
				MenuItemID: l.MenuItemID,
				Name:       l.Name,
				Price:      l.Price,
				Quantity:   l.Quantity,
			}
			if _, err := tx.ExecContext(ctx, insLine, line.ID, o.ID, l.MenuItemID, l.Name, l.Price, l.Quantity); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			o.Lines = append(o.Lines, line)
		}

		const clear = `DELETE FROM cart_items WHERE cart_id = ?;`
		if _, err := tx.ExecContext(ctx, clear, in.CartID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		order = &o
		return nil
	})
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, fmt.Errorf("finalize order %s: %w", in.OrderNumber, ErrDuplicateOrderNumber)
		}
		return nil, err
	}
	if empty {
		return nil, ErrEmptyCart
	}
	return order, nil
}

// GetOrder returns an order with its snapshot lines.
func (r *SQLiteRepository) GetOrder(ctx context.Context, id string) (*Order, error) {
	const q = `
SELECT id, user_id, order_number, status, delivery_address, phone, notes, total, created_at, updated_at
FROM orders
WHERE id = ?
LIMIT 1;
`
	var o Order
	var status string
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&o.ID, &o.UserID, &o.OrderNumber, &status, &o.DeliveryAddress, &o.Phone, &o.Notes, &o.Total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, sqliteNotFoundOr(err, "get order")
	}
	o.Status = OrderStatus(status)

	lines, err := r.listOrderLines(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return &o, nil
}

// ListRecentOrdersByUser returns the user's latest orders, newest first,
// without lines.
func (r *SQLiteRepository) ListRecentOrdersByUser(ctx context.Context, userID string, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 5
	}
	const q = `
SELECT id, user_id, order_number, status, delivery_address, phone, notes, total, created_at, updated_at
FROM orders
WHERE user_id = ?
ORDER BY created_at DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		var status string
		if err := rows.Scan(&o.ID, &o.UserID, &o.OrderNumber, &status, &o.DeliveryAddress, &o.Phone, &o.Notes, &o.Total, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = OrderStatus(status)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus sets a new status and returns the updated order.
func (r *SQLiteRepository) UpdateOrderStatus(ctx context.Context, orderID string, status OrderStatus) (*Order, error) {
	const q = `
UPDATE orders
SET status = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING id, user_id, order_number, status, delivery_address, phone, notes, total, created_at, updated_at;
`
	var o Order
	var st string
	if err := r.db.QueryRowContext(ctx, q, string(status), orderID).Scan(&o.ID, &o.UserID, &o.OrderNumber, &st, &o.DeliveryAddress, &o.Phone, &o.Notes, &o.Total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, sqliteNotFoundOr(err, "update order status")
	}
	o.Status = OrderStatus(st)
	return &o, nil
}

func (r *SQLiteRepository) listOrderLines(ctx context.Context, orderID string) ([]OrderLine, error) {
	const q = `
SELECT id, menu_item_id, name, price, quantity
FROM order_items
WHERE order_id = ?
ORDER BY created_at, id;
`
	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.MenuItemID, &l.Name, &l.Price, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}
	return lines, nil
}

// InsertPayment stores a new payment record for an order.
func (r *SQLiteRepository) InsertPayment(ctx context.Context, p Payment) (*Payment, error) {
	raw := p.RawResponse
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	now := time.Now().UTC()
	p.ID = newID()
	p.CreatedAt = now
	p.UpdatedAt = now
	const q = `
INSERT INTO payments (id, order_id, transaction_id, payment_type, status, qr_url, qr_string, gross_amount, expires_at, provider_response, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	if _, err := r.db.ExecContext(ctx, q,
		p.ID, p.OrderID, p.TransactionID, p.PaymentType, string(p.Status),
		p.QRURL, p.QRString, p.GrossAmount, p.ExpiresAt, string(raw), now, now,
	); err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return &p, nil
}

// GetPaymentByTransactionID returns the payment for a provider transaction.
func (r *SQLiteRepository) GetPaymentByTransactionID(ctx context.Context, transactionID string) (*Payment, error) {
	const q = `
SELECT id, order_id, transaction_id, payment_type, status, qr_url, qr_string, gross_amount, expires_at, paid_at, provider_response, created_at, updated_at
FROM payments
WHERE transaction_id = ?
LIMIT 1;
`
	p, err := scanPaymentSQL(r.db.QueryRowContext(ctx, q, transactionID))
	if err != nil {
		return nil, sqliteNotFoundOr(err, "get payment by transaction id")
	}
	return p, nil
}

// ApplyPaymentStatus applies a webhook-driven status update. The whole
// read-check-write runs in one transaction; SQLite's single-writer model
// serializes concurrent duplicate deliveries. Terminal statuses are sticky.
func (r *SQLiteRepository) ApplyPaymentStatus(ctx context.Context, upd StatusUpdate) (*StatusApplication, error) {
	var app StatusApplication
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		const sel = `
SELECT p.id, p.order_id, p.transaction_id, p.payment_type, p.status, p.qr_url, p.qr_string, p.gross_amount, p.expires_at, p.paid_at,
       o.user_id, o.order_number, o.status, o.total, u.telegram_id
FROM payments p
JOIN orders o ON o.id = p.order_id
JOIN users u ON u.id = o.user_id
WHERE p.transaction_id = ?;
`
		var (
			p           Payment
			o           Order
			payStatus   string
			orderStatus string
			expiresAt   sql.NullTime
			paidAt      sql.NullTime
		)
		if err := tx.QueryRowContext(ctx, sel, upd.TransactionID).Scan(
			&p.ID, &p.OrderID, &p.TransactionID, &p.PaymentType, &payStatus,
			&p.QRURL, &p.QRString, &p.GrossAmount, &expiresAt, &paidAt,
			&o.UserID, &o.OrderNumber, &orderStatus, &o.Total, &app.ChatID,
		); err != nil {
			return sqliteNotFoundOr(err, "load payment")
		}
		p.Status = PaymentStatus(payStatus)
		if expiresAt.Valid {
			p.ExpiresAt = &expiresAt.Time
		}
		if paidAt.Valid {
			p.PaidAt = &paidAt.Time
		}
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
			const refresh = `UPDATE payments SET provider_response = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?;`
			if _, err := tx.ExecContext(ctx, refresh, string(raw), p.ID); err != nil {
				return fmt.Errorf("refresh payment response: %w", err)
			}
			return nil
		}

		const updPay = `
UPDATE payments
SET status = ?, paid_at = COALESCE(?, paid_at), provider_response = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?;
`
		if _, err := tx.ExecContext(ctx, updPay, string(upd.Status), upd.PaidAt, string(raw), p.ID); err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
		app.Payment.Status = upd.Status
		if upd.PaidAt != nil {
			app.Payment.PaidAt = upd.PaidAt
		}

		if next, ok := cascadeOrderStatus(upd.Status); ok {
			const updOrder = `UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?;`
			if _, err := tx.ExecContext(ctx, updOrder, string(next), p.OrderID); err != nil {
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
func (r *SQLiteRepository) InsertPaymentEvent(ctx context.Context, ev PaymentEvent) error {
	payload := ev.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	const q = `
INSERT INTO payment_events (id, transaction_id, transaction_status, applied, payload)
VALUES (?, ?, ?, ?, ?);
`
	if _, err := r.db.ExecContext(ctx, q, newID(), ev.TransactionID, ev.TransactionStatus, ev.Applied, string(payload)); err != nil {
		return fmt.Errorf("insert payment event: %w", err)
	}
	return nil
}

type sqlRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

func collectCartLinesSQL(rows sqlRows) ([]CartLine, error) {
	defer rows.Close()
	var lines []CartLine
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(&l.ID, &l.MenuItemID, &l.Name, &l.Price, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}
	return lines, nil
}

func scanPaymentSQL(row rowScanner) (*Payment, error) {
	var (
		p         Payment
		status    string
		expiresAt sql.NullTime
		paidAt    sql.NullTime
		raw       string
	)
	if err := row.Scan(
		&p.ID, &p.OrderID, &p.TransactionID, &p.PaymentType, &status,
		&p.QRURL, &p.QRString, &p.GrossAmount, &expiresAt, &paidAt,
		&raw, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Status = PaymentStatus(status)
	if expiresAt.Valid {
		p.ExpiresAt = &expiresAt.Time
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	p.RawResponse = []byte(raw)
	return &p, nil
}
