// Package service orchestrates writes: persist to SQLite first, then publish
// a change event to the feed. Publish failures are logged and never fail the
// write, so the local copy is always the source of truth.
package service

import (
	"context"
	"log/slog"

	"casal/internal/feed"
)

// Table names used as the first segment of feed routing keys.
const (
	TableTransactions = "transactions"
	TableBills        = "bills"
	TableGoals        = "goals"
	TableShopping     = "shopping_items"
	TableBudgets      = "budgets"
	TableChallenges   = "challenges"
)

// Publisher sends change events to the couple's feed.
type Publisher interface {
	Publish(ctx context.Context, e feed.Event) error
}

func publish(ctx context.Context, p Publisher, table string, typ feed.EventType, coupleID string, row any) {
	if p == nil {
		slog.WarnContext(ctx, "Feed publisher not available, skipping change event",
			"table", table, "type", typ)
		return
	}
	e, err := feed.NewEvent(table, typ, coupleID, row)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to build change event",
			"table", table, "type", typ, "error", err)
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change event",
			"table", table, "type", typ, "couple_id", coupleID, "error", err)
		// Don't fail the request, the row is saved locally.
	}
}

// deletedRow is the minimal payload carried by delete events.
type deletedRow struct {
	ID string `json:"id"`
}
