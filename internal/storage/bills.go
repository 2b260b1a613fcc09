package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"casal/internal/core"
)

const billCols = "id, created_by, couple_id, title, amount_cents, due_date, status, category, is_recurring, created_at"

func scanBill(row interface{ Scan(...any) error }) (core.Bill, error) {
	var b core.Bill
	var coupleID, category sql.NullString
	err := row.Scan(&b.ID, &b.CreatedBy, &coupleID, &b.Title, &b.Amount.Cents,
		&b.DueDate, &b.Status, &category, &b.IsRecurring, &b.CreatedAt)
	if err != nil {
		return core.Bill{}, err
	}
	b.CoupleID = strOrEmpty(coupleID)
	b.Category = strOrEmpty(category)
	return b, nil
}

func (r *Repository) InsertBill(ctx context.Context, b core.Bill) (core.Bill, error) {
	if b.Status == "" {
		b.Status = core.BillPending
	}
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	if b.ID == "" {
		b.ID = newID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bills (`+billCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.CreatedBy, nullStr(b.CoupleID), b.Title, b.Amount.Cents,
		b.DueDate, string(b.Status), nullStr(b.Category), b.IsRecurring, b.CreatedAt,
	)
	if err != nil {
		return core.Bill{}, fmt.Errorf("insert bill: %w", err)
	}
	return b, nil
}

// ListBills returns the scoped rows ordered by due date, soonest first.
func (r *Repository) ListBills(ctx context.Context, scope Scope) ([]core.Bill, error) {
	where, args := scope.where()
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+billCols+" FROM bills WHERE "+where+" ORDER BY due_date ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	var out []core.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) GetBill(ctx context.Context, id string) (*core.Bill, error) {
	b, err := scanBill(r.db.QueryRowContext(ctx, "SELECT "+billCols+" FROM bills WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}
	return &b, nil
}

type BillPatch struct {
	Title       *string
	Amount      *core.Money
	DueDate     *time.Time
	Status      *core.BillStatus
	Category    *string
	IsRecurring *bool
}

func (p BillPatch) applyTo(b core.Bill) core.Bill {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Amount != nil {
		b.Amount = *p.Amount
	}
	if p.DueDate != nil {
		b.DueDate = *p.DueDate
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Category != nil {
		b.Category = *p.Category
	}
	if p.IsRecurring != nil {
		b.IsRecurring = *p.IsRecurring
	}
	return b
}

func (r *Repository) UpdateBill(ctx context.Context, id string, patch BillPatch) (core.Bill, error) {
	existing, err := r.GetBill(ctx, id)
	if err != nil {
		return core.Bill{}, err
	}
	if existing == nil {
		return core.Bill{}, fmt.Errorf("update bill %s: %w", id, ErrNotFound)
	}
	// Patched rows obey the same rules as inserts.
	if err := patch.applyTo(*existing).Validate(); err != nil {
		return core.Bill{}, err
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
	if patch.DueDate != nil {
		add("due_date", *patch.DueDate)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Category != nil {
		add("category", nullStr(*patch.Category))
	}
	if patch.IsRecurring != nil {
		add("is_recurring", *patch.IsRecurring)
	}
	if set == "" {
		return core.Bill{}, fmt.Errorf("update bill: empty patch")
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, "UPDATE bills SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return core.Bill{}, fmt.Errorf("update bill: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Bill{}, fmt.Errorf("update bill %s: %w", id, ErrNotFound)
	}
	b, err := r.GetBill(ctx, id)
	if err != nil {
		return core.Bill{}, err
	}
	return *b, nil
}

func (r *Repository) DeleteBill(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM bills WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	return nil
}

// ListPendingBillsDueBefore feeds the overdue worker: pending bills whose due
// date is strictly before the cutoff.
func (r *Repository) ListPendingBillsDueBefore(ctx context.Context, cutoff time.Time) ([]core.Bill, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+billCols+" FROM bills WHERE status = ? AND due_date < ? ORDER BY due_date ASC",
		string(core.BillPending), cutoff)
	if err != nil {
		return nil, fmt.Errorf("list pending bills: %w", err)
	}
	defer rows.Close()

	var out []core.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
