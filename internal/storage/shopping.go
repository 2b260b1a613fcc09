package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"casal/internal/core"
)

const shoppingCols = "id, created_by, couple_id, name, quantity, estimated_price_cents, is_checked, created_at"

func scanShoppingItem(row interface{ Scan(...any) error }) (core.ShoppingItem, error) {
	var i core.ShoppingItem
	var coupleID sql.NullString
	err := row.Scan(&i.ID, &i.CreatedBy, &coupleID, &i.Name, &i.Quantity,
		&i.EstimatedPrice.Cents, &i.IsChecked, &i.CreatedAt)
	if err != nil {
		return core.ShoppingItem{}, err
	}
	i.CoupleID = strOrEmpty(coupleID)
	return i, nil
}

func (r *Repository) InsertShoppingItem(ctx context.Context, i core.ShoppingItem) (core.ShoppingItem, error) {
	if i.Quantity == 0 {
		i.Quantity = 1
	}
	if err := i.Validate(); err != nil {
		return core.ShoppingItem{}, err
	}
	if i.ID == "" {
		i.ID = newID()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO shopping_items (`+shoppingCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.CreatedBy, nullStr(i.CoupleID), i.Name, i.Quantity,
		i.EstimatedPrice.Cents, i.IsChecked, i.CreatedAt,
	)
	if err != nil {
		return core.ShoppingItem{}, fmt.Errorf("insert shopping item: %w", err)
	}
	return i, nil
}

func (r *Repository) ListShoppingItems(ctx context.Context, scope Scope) ([]core.ShoppingItem, error) {
	where, args := scope.where()
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+shoppingCols+" FROM shopping_items WHERE "+where+" ORDER BY created_at DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("list shopping items: %w", err)
	}
	defer rows.Close()

	var out []core.ShoppingItem
	for rows.Next() {
		i, err := scanShoppingItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shopping item: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *Repository) GetShoppingItem(ctx context.Context, id string) (*core.ShoppingItem, error) {
	i, err := scanShoppingItem(r.db.QueryRowContext(ctx,
		"SELECT "+shoppingCols+" FROM shopping_items WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shopping item: %w", err)
	}
	return &i, nil
}

type ShoppingItemPatch struct {
	Name           *string
	Quantity       *int
	EstimatedPrice *core.Money
	IsChecked      *bool
}

func (p ShoppingItemPatch) applyTo(i core.ShoppingItem) core.ShoppingItem {
	if p.Name != nil {
		i.Name = *p.Name
	}
	if p.Quantity != nil {
		i.Quantity = *p.Quantity
	}
	if p.EstimatedPrice != nil {
		i.EstimatedPrice = *p.EstimatedPrice
	}
	if p.IsChecked != nil {
		i.IsChecked = *p.IsChecked
	}
	return i
}

func (r *Repository) UpdateShoppingItem(ctx context.Context, id string, patch ShoppingItemPatch) (core.ShoppingItem, error) {
	existing, err := r.GetShoppingItem(ctx, id)
	if err != nil {
		return core.ShoppingItem{}, err
	}
	if existing == nil {
		return core.ShoppingItem{}, fmt.Errorf("update shopping item %s: %w", id, ErrNotFound)
	}
	// Patched rows obey the same rules as inserts.
	if err := patch.applyTo(*existing).Validate(); err != nil {
		return core.ShoppingItem{}, err
	}

	set := ""
	var args []any
	add := func(col string, v any) {
		if set != "" {
			set += ", "
		}
		set += col + " = ?"
		args = append(args, v)
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Quantity != nil {
		add("quantity", *patch.Quantity)
	}
	if patch.EstimatedPrice != nil {
		add("estimated_price_cents", patch.EstimatedPrice.Cents)
	}
	if patch.IsChecked != nil {
		add("is_checked", *patch.IsChecked)
	}
	if set == "" {
		return core.ShoppingItem{}, fmt.Errorf("update shopping item: empty patch")
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, "UPDATE shopping_items SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return core.ShoppingItem{}, fmt.Errorf("update shopping item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ShoppingItem{}, fmt.Errorf("update shopping item %s: %w", id, ErrNotFound)
	}
	i, err := r.GetShoppingItem(ctx, id)
	if err != nil {
		return core.ShoppingItem{}, err
	}
	return *i, nil
}

func (r *Repository) DeleteShoppingItem(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM shopping_items WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete shopping item: %w", err)
	}
	return nil
}
