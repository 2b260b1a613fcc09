package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"casal/internal/core"
	"casal/internal/service"
	"casal/internal/storage"
)

func newProcessor(t *testing.T) (*OverdueProcessor, *storage.Repository, string) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "casal.db"))
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	couple, err := repo.CreateCouple(ctx, "Casal")
	if err != nil {
		t.Fatalf("CreateCouple() error = %v", err)
	}
	if _, err := repo.CreateProfile(ctx, core.Profile{ID: "m1", Name: "Ana", CoupleID: couple.ID}); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}

	bills := service.NewBillService(repo, nil)
	return NewOverdueProcessor(repo, bills), repo, couple.ID
}

func TestProcessFlipsOnlyPastDuePendingBills(t *testing.T) {
	p, repo, coupleID := newProcessor(t)
	ctx := context.Background()

	mk := func(title string, due [3]int, status core.BillStatus, recurring bool) core.Bill {
		t.Helper()
		b, err := repo.InsertBill(ctx, core.Bill{
			CreatedBy: "m1", CoupleID: coupleID, Title: title,
			Amount: core.Money{Cents: 1000}, DueDate: core.NewDate(due[0], due[1], due[2]),
			Status: status, IsRecurring: recurring,
		})
		if err != nil {
			t.Fatalf("InsertBill(%s) error = %v", title, err)
		}
		return b
	}

	past := mk("vencida", [3]int{2026, 2, 10}, core.BillPending, false)
	mk("de hoje", [3]int{2026, 3, 1}, core.BillPending, false)
	mk("futura", [3]int{2026, 4, 1}, core.BillPending, false)
	mk("já paga", [3]int{2026, 2, 1}, core.BillPaid, false)
	recurring := mk("recorrente vencida", [3]int{2026, 2, 20}, core.BillPending, true)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	flipped, err := p.Process(ctx, now)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if flipped != 2 {
		t.Fatalf("flipped = %d, want 2", flipped)
	}

	for _, id := range []string{past.ID, recurring.ID} {
		b, err := repo.GetBill(ctx, id)
		if err != nil {
			t.Fatalf("GetBill() error = %v", err)
		}
		if b.Status != core.BillOverdue {
			t.Errorf("bill %q status = %q, want overdue", b.Title, b.Status)
		}
	}

	// Overdue never spawns a successor, even for recurring bills.
	bills, err := repo.ListBills(ctx, storage.Scope{CoupleID: coupleID, MemberID: "m1"})
	if err != nil {
		t.Fatalf("ListBills() error = %v", err)
	}
	if len(bills) != 5 {
		t.Errorf("bill count = %d, want 5", len(bills))
	}

	// A second pass finds nothing left to flip.
	flipped, err = p.Process(ctx, now)
	if err != nil {
		t.Fatalf("second Process() error = %v", err)
	}
	if flipped != 0 {
		t.Errorf("second pass flipped = %d, want 0", flipped)
	}
}
