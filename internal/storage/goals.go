package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"casal/internal/core"
)

const goalCols = "id, created_by, couple_id, title, target_amount_cents, current_amount_cents, icon, deadline, created_at, updated_at"

func scanGoal(row interface{ Scan(...any) error }) (core.Goal, error) {
	var g core.Goal
	var coupleID sql.NullString
	var deadline sql.NullTime
	err := row.Scan(&g.ID, &g.CreatedBy, &coupleID, &g.Title, &g.TargetAmount.Cents,
		&g.CurrentAmount.Cents, &g.Icon, &deadline, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return core.Goal{}, err
	}
	g.CoupleID = strOrEmpty(coupleID)
	g.Deadline = timeOrZero(deadline)
	return g, nil
}

func (r *Repository) InsertGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if g.Icon == "" {
		g.Icon = "target"
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	if g.ID == "" {
		g.ID = newID()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO goals (`+goalCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.CreatedBy, nullStr(g.CoupleID), g.Title, g.TargetAmount.Cents,
		g.CurrentAmount.Cents, g.Icon, nullTime(g.Deadline), g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return core.Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	return g, nil
}

func (r *Repository) ListGoals(ctx context.Context, scope Scope) ([]core.Goal, error) {
	where, args := scope.where()
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+goalCols+" FROM goals WHERE "+where+" ORDER BY created_at DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *Repository) GetGoal(ctx context.Context, id string) (*core.Goal, error) {
	g, err := scanGoal(r.db.QueryRowContext(ctx, "SELECT "+goalCols+" FROM goals WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return &g, nil
}

type GoalPatch struct {
	Title         *string
	TargetAmount  *core.Money
	CurrentAmount *core.Money
	Icon          *string
	Deadline      *time.Time
}

func (p GoalPatch) applyTo(g core.Goal) core.Goal {
	if p.Title != nil {
		g.Title = *p.Title
	}
	if p.TargetAmount != nil {
		g.TargetAmount = *p.TargetAmount
	}
	if p.CurrentAmount != nil {
		g.CurrentAmount = *p.CurrentAmount
	}
	if p.Icon != nil {
		g.Icon = *p.Icon
	}
	if p.Deadline != nil {
		g.Deadline = *p.Deadline
	}
	return g
}

func (r *Repository) UpdateGoal(ctx context.Context, id string, patch GoalPatch) (core.Goal, error) {
	existing, err := r.GetGoal(ctx, id)
	if err != nil {
		return core.Goal{}, err
	}
	if existing == nil {
		return core.Goal{}, fmt.Errorf("update goal %s: %w", id, ErrNotFound)
	}
	// Patched rows obey the same rules as inserts.
	if err := patch.applyTo(*existing).Validate(); err != nil {
		return core.Goal{}, err
	}

	set := "updated_at = ?"
	args := []any{time.Now().UTC()}
	add := func(col string, v any) {
		set += ", " + col + " = ?"
		args = append(args, v)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.TargetAmount != nil {
		add("target_amount_cents", patch.TargetAmount.Cents)
	}
	if patch.CurrentAmount != nil {
		add("current_amount_cents", patch.CurrentAmount.Cents)
	}
	if patch.Icon != nil {
		add("icon", *patch.Icon)
	}
	if patch.Deadline != nil {
		add("deadline", nullTime(*patch.Deadline))
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, "UPDATE goals SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return core.Goal{}, fmt.Errorf("update goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Goal{}, fmt.Errorf("update goal %s: %w", id, ErrNotFound)
	}
	g, err := r.GetGoal(ctx, id)
	if err != nil {
		return core.Goal{}, err
	}
	return *g, nil
}

func (r *Repository) DeleteGoal(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM goals WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}
