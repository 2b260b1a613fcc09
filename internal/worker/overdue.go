// Package worker flips pending bills past their due date to overdue.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"casal/internal/core"
	"casal/internal/service"
	"casal/internal/storage"
)

// OverdueProcessor marks pending bills overdue once their due date passes.
type OverdueProcessor struct {
	storage *storage.Repository
	bills   *service.BillService
}

func NewOverdueProcessor(storage *storage.Repository, bills *service.BillService) *OverdueProcessor {
	return &OverdueProcessor{storage: storage, bills: bills}
}

// Process flips every pending bill due strictly before today (derived from
// now, UTC midnight) to overdue, publishing one update event per bill. It
// returns the number of bills flipped.
func (p *OverdueProcessor) Process(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil || p.bills == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	today := core.NewDate(now.UTC().Year(), int(now.UTC().Month()), now.UTC().Day())
	due, err := p.storage.ListPendingBillsDueBefore(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list pending bills: %w", err)
	}

	slog.InfoContext(ctx, "Processing overdue bills",
		"candidates", len(due),
		"cutoff", today.Format("2006-01-02"))

	flipped := 0
	overdue := core.BillOverdue
	for _, b := range due {
		if _, err := p.bills.Update(ctx, b.ID, storage.BillPatch{Status: &overdue}); err != nil {
			slog.ErrorContext(ctx, "Failed to mark bill overdue",
				"bill_id", b.ID, "title", b.Title, "error", err)
			continue
		}
		flipped++
	}

	if flipped > 0 {
		slog.InfoContext(ctx, "Bills marked overdue", "count", flipped)
	}
	return flipped, nil
}
