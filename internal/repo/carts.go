package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// EnsureCart returns the user's cart, creating it when missing.
func (r *PostgresRepository) EnsureCart(ctx context.Context, userID string) (*Cart, error) {
	const q = `
INSERT INTO carts (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
RETURNING id, user_id;
`
	var c Cart
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&c.ID, &c.UserID); err != nil {
		return nil, fmt.Errorf("ensure cart: %w", err)
	}
	return &c, nil
}

// ListCartLines returns cart lines joined with current menu data, in
// insertion order. Prices are live, not snapshots.
func (r *PostgresRepository) ListCartLines(ctx context.Context, cartID string) ([]CartLine, error) {
	const q = `
SELECT ci.id, ci.menu_item_id, mi.name, mi.price, ci.quantity
FROM cart_items ci
JOIN menu_items mi ON mi.id = ci.menu_item_id
WHERE ci.cart_id = $1
ORDER BY ci.created_at;
`
	rows, err := r.pool.Query(ctx, q, cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	return collectCartLines(rows)
}

// AddOrIncrementItem inserts the line at quantity 1 or bumps it by one.
// The read-modify-write happens inside a single statement so concurrent
// adds of the same item serialize on the row.
func (r *PostgresRepository) AddOrIncrementItem(ctx context.Context, cartID, menuItemID string) (int, error) {
	const q = `
INSERT INTO cart_items (cart_id, menu_item_id, quantity)
VALUES ($1, $2, 1)
ON CONFLICT (cart_id, menu_item_id) DO UPDATE SET
    quantity = cart_items.quantity + 1,
    updated_at = NOW()
RETURNING quantity;
`
	var qty int
	if err := r.pool.QueryRow(ctx, q, cartID, menuItemID).Scan(&qty); err != nil {
		return 0, fmt.Errorf("add cart item: %w", err)
	}
	return qty, nil
}

// IncreaseItem bumps a line's quantity by one.
func (r *PostgresRepository) IncreaseItem(ctx context.Context, lineID string) error {
	const q = `UPDATE cart_items SET quantity = quantity + 1, updated_at = NOW() WHERE id = $1;`
	ct, err := r.pool.Exec(ctx, q, lineID)
	if err != nil {
		return fmt.Errorf("increase cart item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("increase cart item: %w", ErrNotFound)
	}
	return nil
}

// DecreaseItem lowers a line's quantity by one, deleting the line when it
// would drop to zero. Both statements run in one transaction.
func (r *PostgresRepository) DecreaseItem(ctx context.Context, lineID string) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		const dec = `UPDATE cart_items SET quantity = quantity - 1, updated_at = NOW() WHERE id = $1 AND quantity > 1;`
		ct, err := tx.Exec(ctx, dec, lineID)
		if err != nil {
			return fmt.Errorf("decrease cart item: %w", err)
		}
		if ct.RowsAffected() > 0 {
			return nil
		}
		const del = `DELETE FROM cart_items WHERE id = $1;`
		ct, err = tx.Exec(ctx, del, lineID)
		if err != nil {
			return fmt.Errorf("delete cart item: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("decrease cart item: %w", ErrNotFound)
		}
		return nil
	})
}

// RemoveItem deletes a line unconditionally.
func (r *PostgresRepository) RemoveItem(ctx context.Context, lineID string) error {
	const q = `DELETE FROM cart_items WHERE id = $1;`
	ct, err := r.pool.Exec(ctx, q, lineID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("remove cart item: %w", ErrNotFound)
	}
	return nil
}

// ClearCart deletes all lines of a cart.
func (r *PostgresRepository) ClearCart(ctx context.Context, cartID string) error {
	const q = `DELETE FROM cart_items WHERE cart_id = $1;`
	if _, err := r.pool.Exec(ctx, q, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func collectCartLines(rows pgx.Rows) ([]CartLine, error) {
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
