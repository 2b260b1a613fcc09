package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"casal/internal/core"
)

const challengeCols = "id, couple_id, title, description, target_amount_cents, current_amount_cents, start_date, end_date, category, status, created_at"

func scanChallenge(row interface{ Scan(...any) error }) (core.Challenge, error) {
	var c core.Challenge
	var description, category sql.NullString
	err := row.Scan(&c.ID, &c.CoupleID, &c.Title, &description, &c.TargetAmount.Cents,
		&c.CurrentAmount.Cents, &c.StartDate, &c.EndDate, &category, &c.Status, &c.CreatedAt)
	if err != nil {
		return core.Challenge{}, err
	}
	c.Description = strOrEmpty(description)
	c.Category = strOrEmpty(category)
	return c, nil
}

func (r *Repository) InsertChallenge(ctx context.Context, c core.Challenge) (core.Challenge, error) {
	if c.Status == "" {
		c.Status = core.ChallengeActive
	}
	if err := c.Validate(); err != nil {
		return core.Challenge{}, err
	}
	if c.ID == "" {
		c.ID = newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO challenges ("+challengeCols+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		c.ID, c.CoupleID, c.Title, nullStr(c.Description), c.TargetAmount.Cents,
		c.CurrentAmount.Cents, c.StartDate, c.EndDate, nullStr(c.Category),
		string(c.Status), c.CreatedAt,
	)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("insert challenge: %w", err)
	}
	return c, nil
}

// ListChallenges returns the couple's challenges, newest first.
func (r *Repository) ListChallenges(ctx context.Context, coupleID string) ([]core.Challenge, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+challengeCols+" FROM challenges WHERE couple_id = ? ORDER BY created_at DESC", coupleID)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var out []core.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) GetChallenge(ctx context.Context, id string) (*core.Challenge, error) {
	c, err := scanChallenge(r.db.QueryRowContext(ctx,
		"SELECT "+challengeCols+" FROM challenges WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return &c, nil
}

type ChallengePatch struct {
	Title         *string
	Description   *string
	TargetAmount  *core.Money
	CurrentAmount *core.Money
	EndDate       *time.Time
	Category      *string
	Status        *core.ChallengeStatus
}

func (p ChallengePatch) applyTo(c core.Challenge) core.Challenge {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.TargetAmount != nil {
		c.TargetAmount = *p.TargetAmount
	}
	if p.CurrentAmount != nil {
		c.CurrentAmount = *p.CurrentAmount
	}
	if p.EndDate != nil {
		c.EndDate = *p.EndDate
	}
	if p.Category != nil {
		c.Category = *p.Category
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	return c
}

func (r *Repository) UpdateChallenge(ctx context.Context, id string, patch ChallengePatch) (core.Challenge, error) {
	existing, err := r.GetChallenge(ctx, id)
	if err != nil {
		return core.Challenge{}, err
	}
	if existing == nil {
		return core.Challenge{}, fmt.Errorf("update challenge %s: %w", id, ErrNotFound)
	}
	// Patched rows obey the same rules as inserts.
	if err := patch.applyTo(*existing).Validate(); err != nil {
		return core.Challenge{}, err
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
	if patch.Description != nil {
		add("description", nullStr(*patch.Description))
	}
	if patch.TargetAmount != nil {
		add("target_amount_cents", patch.TargetAmount.Cents)
	}
	if patch.CurrentAmount != nil {
		add("current_amount_cents", patch.CurrentAmount.Cents)
	}
	if patch.EndDate != nil {
		add("end_date", *patch.EndDate)
	}
	if patch.Category != nil {
		add("category", nullStr(*patch.Category))
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if set == "" {
		return core.Challenge{}, fmt.Errorf("update challenge: empty patch")
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, "UPDATE challenges SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("update challenge: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Challenge{}, fmt.Errorf("update challenge %s: %w", id, ErrNotFound)
	}
	c, err := r.GetChallenge(ctx, id)
	if err != nil {
		return core.Challenge{}, err
	}
	return *c, nil
}

func (r *Repository) DeleteChallenge(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM challenges WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}
