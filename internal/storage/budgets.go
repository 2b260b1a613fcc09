package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"casal/internal/core"
)

const budgetCols = "id, couple_id, category, amount_cents, month, year, created_at"

func scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var b core.Budget
	err := row.Scan(&b.ID, &b.CoupleID, &b.Category, &b.Amount.Cents, &b.Month, &b.Year, &b.CreatedAt)
	if err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

// UpsertBudget saves a budget with the unique-per-(couple, category, month,
// year) semantics: an existing row gets its limit replaced, otherwise a new
// row is inserted.
func (r *Repository) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	var existingID string
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM budgets WHERE couple_id = ? AND category = ? COLLATE NOCASE AND month = ? AND year = ?",
		b.CoupleID, b.Category, b.Month, b.Year,
	).Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		b.ID = newID()
		b.CreatedAt = time.Now().UTC()
		_, err = r.db.ExecContext(ctx,
			"INSERT INTO budgets ("+budgetCols+") VALUES (?, ?, ?, ?, ?, ?, ?)",
			b.ID, b.CoupleID, b.Category, b.Amount.Cents, b.Month, b.Year, b.CreatedAt)
		if err != nil {
			return core.Budget{}, fmt.Errorf("insert budget: %w", err)
		}
		return b, nil
	case err != nil:
		return core.Budget{}, fmt.Errorf("find budget: %w", err)
	default:
		_, err = r.db.ExecContext(ctx,
			"UPDATE budgets SET amount_cents = ? WHERE id = ?", b.Amount.Cents, existingID)
		if err != nil {
			return core.Budget{}, fmt.Errorf("update budget: %w", err)
		}
		slog.InfoContext(ctx, "Budget limit replaced", "id", existingID, "category", b.Category)
		saved, err := r.GetBudget(ctx, existingID)
		if err != nil {
			return core.Budget{}, err
		}
		return *saved, nil
	}
}

func (r *Repository) GetBudget(ctx context.Context, id string) (*core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx, "SELECT "+budgetCols+" FROM budgets WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return &b, nil
}

// ListBudgets returns the couple's budgets ordered by category name.
func (r *Repository) ListBudgets(ctx context.Context, coupleID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+budgetCols+" FROM budgets WHERE couple_id = ? ORDER BY category ASC", coupleID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteBudget(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM budgets WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}
