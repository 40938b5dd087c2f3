package repo

import (
	"context"
	"fmt"
)

// ListActiveCategories returns active categories in display order.
func (r *PostgresRepository) ListActiveCategories(ctx context.Context) ([]Category, error) {
	const q = `
SELECT id, name, emoji, sort_order
FROM categories
WHERE is_active
ORDER BY sort_order, name;
`
	rows, err := r.pool.Query(ctx, q)
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
func (r *PostgresRepository) GetCategory(ctx context.Context, id string) (*Category, error) {
	const q = `SELECT id, name, emoji, sort_order FROM categories WHERE id = $1 LIMIT 1;`
	var c Category
	if err := r.pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Name, &c.Emoji, &c.SortOrder); err != nil {
		return nil, notFoundOr(err, "get category")
	}
	return &c, nil
}

// ListAvailableItems returns available items of a category.
func (r *PostgresRepository) ListAvailableItems(ctx context.Context, categoryID string) ([]MenuItem, error) {
	const q = `
SELECT id, category_id, name, description, price, image_url, is_available
FROM menu_items
WHERE category_id = $1 AND is_available
ORDER BY name;
`
	rows, err := r.pool.Query(ctx, q, categoryID)
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
func (r *PostgresRepository) GetMenuItem(ctx context.Context, id string) (*MenuItem, error) {
	const q = `
SELECT id, category_id, name, description, price, image_url, is_available
FROM menu_items
WHERE id = $1
LIMIT 1;
`
	var m MenuItem
	if err := r.pool.QueryRow(ctx, q, id).Scan(&m.ID, &m.CategoryID, &m.Name, &m.Description, &m.Price, &m.ImageURL, &m.IsAvailable); err != nil {
		return nil, notFoundOr(err, "get menu item")
	}
	return &m, nil
}
