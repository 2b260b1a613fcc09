package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"casal/internal/core"
)

// AuthUser is the credential row backing password sign-in. Profile data lives
// in the profiles table under the same id.
type AuthUser struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

func (r *Repository) CreateAuthUser(ctx context.Context, u *AuthUser) error {
	if u.ID == "" {
		u.ID = newID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO auth_users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		u.ID, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create auth user: %w", err)
	}
	return nil
}

func (r *Repository) GetAuthUserByEmail(ctx context.Context, email string) (*AuthUser, error) {
	u := &AuthUser{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM auth_users WHERE email = ?", email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get auth user by email: %w", err)
	}
	return u, nil
}

func (r *Repository) CreateCouple(ctx context.Context, name string) (core.Couple, error) {
	c := core.Couple{ID: newID(), Name: name, CreatedAt: time.Now().UTC()}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO couples (id, name, created_at) VALUES (?, ?, ?)",
		c.ID, nullStr(c.Name), c.CreatedAt,
	)
	if err != nil {
		return core.Couple{}, fmt.Errorf("create couple: %w", err)
	}
	slog.InfoContext(ctx, "Couple created", "id", c.ID, "name", c.Name)
	return c, nil
}

func (r *Repository) GetCouple(ctx context.Context, id string) (*core.Couple, error) {
	c := &core.Couple{}
	var name sql.NullString
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM couples WHERE id = ?", id,
	).Scan(&c.ID, &name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get couple: %w", err)
	}
	c.Name = strOrEmpty(name)
	return c, nil
}

func (r *Repository) CreateProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, name, avatar_url, couple_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, nullStr(p.AvatarURL), nullStr(p.CoupleID), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return core.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

func (r *Repository) GetProfile(ctx context.Context, id string) (*core.Profile, error) {
	p := &core.Profile{}
	var avatar, coupleID sql.NullString
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, avatar_url, couple_id, created_at, updated_at FROM profiles WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &avatar, &coupleID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	p.AvatarURL = strOrEmpty(avatar)
	p.CoupleID = strOrEmpty(coupleID)
	return p, nil
}

// ProfilePatch carries the optional fields of a profile update; nil means
// leave unchanged.
type ProfilePatch struct {
	Name      *string
	AvatarURL *string
	CoupleID  *string
}

func (r *Repository) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (*core.Profile, error) {
	set := "updated_at = ?"
	args := []any{time.Now().UTC()}
	if patch.Name != nil {
		set += ", name = ?"
		args = append(args, *patch.Name)
	}
	if patch.AvatarURL != nil {
		set += ", avatar_url = ?"
		args = append(args, nullStr(*patch.AvatarURL))
	}
	if patch.CoupleID != nil {
		set += ", couple_id = ?"
		args = append(args, nullStr(*patch.CoupleID))
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, "UPDATE profiles SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("update profile %s: %w", id, ErrNotFound)
	}
	return r.GetProfile(ctx, id)
}
