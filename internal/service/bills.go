package service

import (
	"context"
	"fmt"
	"log/slog"

	"casal/internal/core"
	"casal/internal/feed"
	"casal/internal/storage"
)

// BillService orchestrates bill writes and owns the recurrence rule: when a
// recurring bill transitions from a non-paid status to paid, exactly one
// successor is created, due one calendar month later.
type BillService struct {
	storage   *storage.Repository
	publisher Publisher
}

func NewBillService(storage *storage.Repository, publisher Publisher) *BillService {
	return &BillService{storage: storage, publisher: publisher}
}

func (s *BillService) List(ctx context.Context, scope storage.Scope) ([]core.Bill, error) {
	return s.storage.ListBills(ctx, scope)
}

func (s *BillService) Add(ctx context.Context, b core.Bill) (core.Bill, error) {
	saved, err := s.storage.InsertBill(ctx, b)
	if err != nil {
		return core.Bill{}, fmt.Errorf("save bill: %w", err)
	}
	publish(ctx, s.publisher, TableBills, feed.Insert, saved.CoupleID, saved)
	return saved, nil
}

// Update applies the patch and, when it flips a recurring bill to paid,
// spawns the next occurrence. The successor copies title, amount and
// category, stays recurring, starts pending, and is due one month after the
// paid bill with the day clamped to the shorter month.
func (s *BillService) Update(ctx context.Context, id string, patch storage.BillPatch) (core.Bill, error) {
	before, err := s.storage.GetBill(ctx, id)
	if err != nil {
		return core.Bill{}, err
	}
	if before == nil {
		return core.Bill{}, fmt.Errorf("update bill %s: %w", id, storage.ErrNotFound)
	}

	saved, err := s.storage.UpdateBill(ctx, id, patch)
	if err != nil {
		return core.Bill{}, fmt.Errorf("update bill: %w", err)
	}
	publish(ctx, s.publisher, TableBills, feed.Update, saved.CoupleID, saved)

	becamePaid := before.Status != core.BillPaid && saved.Status == core.BillPaid
	if becamePaid && saved.IsRecurring {
		next := core.Bill{
			CreatedBy:   saved.CreatedBy,
			CoupleID:    saved.CoupleID,
			Title:       saved.Title,
			Amount:      saved.Amount,
			DueDate:     core.AddOneMonth(saved.DueDate),
			Status:      core.BillPending,
			Category:    saved.Category,
			IsRecurring: true,
		}
		spawned, err := s.storage.InsertBill(ctx, next)
		if err != nil {
			// The paid update already landed; surface the failure so the
			// caller knows the next occurrence is missing.
			return saved, fmt.Errorf("spawn next occurrence: %w", err)
		}
		slog.InfoContext(ctx, "Recurring bill spawned next occurrence",
			"bill_id", saved.ID, "next_id", spawned.ID, "due_date", spawned.DueDate)
		publish(ctx, s.publisher, TableBills, feed.Insert, spawned.CoupleID, spawned)
	}

	return saved, nil
}

// MarkPaid is the common path for settling a bill.
func (s *BillService) MarkPaid(ctx context.Context, id string) (core.Bill, error) {
	paid := core.BillPaid
	return s.Update(ctx, id, storage.BillPatch{Status: &paid})
}

func (s *BillService) Delete(ctx context.Context, id string) error {
	existing, err := s.storage.GetBill(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if err := s.storage.DeleteBill(ctx, id); err != nil {
		return err
	}
	publish(ctx, s.publisher, TableBills, feed.Delete, existing.CoupleID, deletedRow{ID: id})
	return nil
}
