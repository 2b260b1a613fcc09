// Package storage implements the table contract of the data backend over
// SQLite: row-level CRUD on the eight named tables, scoped to a couple or to
// a single member when no couple exists yet.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound marks updates addressed to a row that does not exist.
var ErrNotFound = errors.New("record not found")

// Scope restricts list queries to a couple's rows, falling back to rows the
// member created alone when the couple is not resolved yet.
type Scope struct {
	CoupleID string
	MemberID string
}

func (s Scope) where() (string, []any) {
	if s.CoupleID != "" {
		return "(couple_id = ? OR created_by = ?)", []any{s.CoupleID, s.MemberID}
	}
	return "created_by = ?", []any{s.MemberID}
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

// Ping reports whether the underlying database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func newID() string {
	return uuid.New().String()
}

// nullStr maps "" to NULL for optional text columns.
func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullTime maps the zero time to NULL for optional date columns.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func strOrEmpty(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func timeOrZero(nt sql.NullTime) time.Time {
	if nt.Valid {
		return nt.Time
	}
	return time.Time{}
}
