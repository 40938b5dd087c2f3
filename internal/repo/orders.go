package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// FinalizeOrder converts a cart into an immutable order in one transaction:
// it resets the conversation state (compare-and-swap on the expected state),
// locks and reads the cart at current menu prices, creates the order plus
// snapshot lines, and clears the cart. A second delivery of the same input
// fails the CAS and returns ErrConversationConflict without touching
// anything. An order-number collision returns ErrDuplicateOrderNumber after
// rolling back; the caller retries with a fresh number.
func (r *PostgresRepository) FinalizeOrder(ctx context.Context, in FinalizeInput) (*Order, error) {
	var (
		order *Order
		empty bool
	)
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		const reset = `
UPDATE users
SET conversation_state = '', conversation_data = '{}'::jsonb, updated_at = NOW()
WHERE id = $1 AND conversation_state = $2;
`
		ct, err := tx.Exec(ctx, reset, in.UserID, string(in.FromState))
		if err != nil {
			return fmt.Errorf("reset conversation: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return ErrConversationConflict
		}

		const sel = `
SELECT ci.id, ci.menu_item_id, mi.name, mi.price, ci.quantity
FROM cart_items ci
JOIN menu_items mi ON mi.id = ci.menu_item_id
WHERE ci.cart_id = $1
ORDER BY ci.created_at
FOR UPDATE OF ci;
`
		rows, err := tx.Query(ctx, sel, in.CartID)
		if err != nil {
			return fmt.Errorf("lock cart lines: %w", err)
		}
		lines, err := collectCartLines(rows)
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

		const insOrder = `
INSERT INTO orders (user_id, order_number, status, delivery_address, phone, notes, total)
VALUES ($1, $2, 'pending', $3, $4, $5, $6)
RETURNING id, created_at, updated_at;
`
		o := Order{
			UserID:          in.UserID,
			OrderNumber:     in.OrderNumber,
			Status:          OrderPending,
			DeliveryAddress: in.DeliveryAddress,
			Phone:           in.Phone,
			Notes:           in.Notes,
			Total:           total,
		}
		if err := tx.QueryRow(ctx, insOrder,
			in.UserID, in.OrderNumber, in.DeliveryAddress, in.Phone, in.Notes, total,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		copyRows := make([][]any, 0, len(lines))
		for _, l := range lines {
			o.Lines = append(o.Lines, OrderLine{
				MenuItemID: l.MenuItemID,
				Name:       l.Name,
				Price:      l.Price,
				Quantity:   l.Quantity,
			})
			copyRows = append(copyRows, []any{o.ID, l.MenuItemID, l.Name, l.Price, l.Quantity})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"order_items"},
			[]string{"order_id", "menu_item_id", "name", "price", "quantity"},
			pgx.CopyFromRows(copyRows),
		); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}

		const clear = `DELETE FROM cart_items WHERE cart_id = $1;`
		if _, err := tx.Exec(ctx, clear, in.CartID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		order = &o
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
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
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*Order, error) {
	const q = `
SELECT id, user_id, order_number, status, delivery_address, phone, notes, total, created_at, updated_at
FROM orders
WHERE id = $1
LIMIT 1;
`
	var o Order
	var status string
	if err := r.pool.QueryRow(ctx, q, id).Scan(&o.ID, &o.UserID, &o.OrderNumber, &status, &o.DeliveryAddress, &o.Phone, &o.Notes, &o.Total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, notFoundOr(err, "get order")
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
func (r *PostgresRepository) ListRecentOrdersByUser(ctx context.Context, userID string, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 5
	}
	const q = `
SELECT id, user_id, order_number, status, delivery_address, phone, notes, total, created_at, updated_at
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, q, userID, limit)
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
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, orderID string, status OrderStatus) (*Order, error) {
	const q = `
UPDATE orders
SET status = $2, updated_at = NOW()
WHERE id = $1
RETURNING id, user_id, order_number, status, delivery_address, phone, notes, total, created_at, updated_at;
`
	var o Order
	var st string
	if err := r.pool.QueryRow(ctx, q, orderID, string(status)).Scan(&o.ID, &o.UserID, &o.OrderNumber, &st, &o.DeliveryAddress, &o.Phone, &o.Notes, &o.Total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, notFoundOr(err, "update order status")
	}
	o.Status = OrderStatus(st)
	return &o, nil
}

func (r *PostgresRepository) listOrderLines(ctx context.Context, orderID string) ([]OrderLine, error) {
	const q = `
SELECT id, menu_item_id, name, price, quantity
FROM order_items
WHERE order_id = $1
ORDER BY created_at;
`
	rows, err := r.pool.Query(ctx, q, orderID)
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
