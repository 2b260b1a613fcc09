package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"casal/internal/core"
)

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var t core.Transaction
	var coupleID, category, classification sql.NullString
	err := row.Scan(&t.ID, &t.CreatedBy, &coupleID, &t.Title, &t.Amount.Cents,
		&t.Type, &category, &classification, &t.IsShared, &t.Date, &t.CreatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.CoupleID = strOrEmpty(coupleID)
	t.Category = strOrEmpty(category)
	t.Classification = core.Classification(strOrEmpty(classification))
	return t, nil
}

const transactionCols = "id, created_by, couple_id, title, amount_cents, type, category, classification, is_shared, date, created_at"

func (r *Repository) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = newID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.CreatedBy, nullStr(t.CoupleID), t.Title, t.Amount.Cents,
		string(t.Type), nullStr(t.Category), nullStr(string(t.Classification)),
		t.IsShared, t.Date, t.CreatedAt,
	)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns the scoped rows ordered by date, newest first,
// ties broken by creation time.
func (r *Repository) ListTransactions(ctx context.Context, scope Scope) ([]core.Transaction, error) {
	where, args := scope.where()
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+transactionCols+" FROM transactions WHERE "+where+" ORDER BY date DESC, created_at DESC",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) GetTransaction(ctx context.Context, id string) (*core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx,
		"SELECT "+transactionCols+" FROM transactions WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

// TransactionPatch carries optional field updates; nil leaves a field alone.
type TransactionPatch struct {
	Title          *string
	Amount         *core.Money
	Type           *core.TransactionType
	Category       *string
	Classification *core.Classification
	IsShared       *bool
	Date           *time.Time
}

func (p TransactionPatch) applyTo(t core.Transaction) core.Transaction {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Classification != nil {
		t.Classification = *p.Classification
	}
	if p.IsShared != nil {
		t.IsShared = *p.IsShared
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	return t
}

func (r *Repository) UpdateTransaction(ctx context.Context, id string, patch TransactionPatch) (core.Transaction, error) {
	existing, err := r.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if existing == nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", id, ErrNotFound)
	}
	// Patched rows obey the same rules as inserts.
	if err := patch.applyTo(*existing).Validate(); err != nil {
		return core.Transaction{}, err
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
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Amount != nil {
		add("amount_cents", patch.Amount.Cents)
	}
	if patch.Type != nil {
		add("type", string(*patch.Type))
	}
	if patch.Category != nil {
		add("category", nullStr(*patch.Category))
	}
	if patch.Classification != nil {
		add("classification", nullStr(string(*patch.Classification)))
	}
	if patch.IsShared != nil {
		add("is_shared", *patch.IsShared)
	}
	if patch.Date != nil {
		add("date", *patch.Date)
	}
	if set == "" {
		return core.Transaction{}, fmt.Errorf("update transaction: empty patch")
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, "UPDATE transactions SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", id, ErrNotFound)
	}
	t, err := r.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	return *t, nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}
