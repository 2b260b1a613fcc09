package sync

import (
	"context"
	"errors"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"casal/internal/auth"
	"casal/internal/core"
	"casal/internal/feed"
	"casal/internal/service"
	"casal/internal/storage"
)

type fakeSession struct {
	mu        stdsync.Mutex
	sess      *auth.Session
	coupleID  string
	listeners []func(*auth.Session)
}

func (f *fakeSession) Session() *auth.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess
}

func (f *fakeSession) CoupleID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess == nil {
		return "", core.ErrNotAuthenticated
	}
	if f.coupleID == "" {
		return "", core.ErrMissingCouple
	}
	return f.coupleID, nil
}

func (f *fakeSession) OnStateChange(fn func(*auth.Session)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
	return func() {}
}

func (f *fakeSession) signIn(userID, coupleID string) {
	f.mu.Lock()
	f.sess = &auth.Session{UserID: userID, Email: userID + "@example.com"}
	f.coupleID = coupleID
	listeners := append([]func(*auth.Session){}, f.listeners...)
	sess := f.sess
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(sess)
	}
}

type env struct {
	repo    *storage.Repository
	memFeed *feed.MemoryFeed
	bus     *feed.Bus
	session *fakeSession
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "casal.db"))
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	if _, err := repo.CreateCouple(ctx, "Casal"); err != nil {
		t.Fatalf("CreateCouple() error = %v", err)
	}
	return &env{
		repo:    repo,
		memFeed: feed.NewMemoryFeed(),
		bus:     feed.NewBus(),
		session: &fakeSession{},
	}
}

func (e *env) seed(t *testing.T, memberID, coupleID string) {
	t.Helper()
	ctx := context.Background()
	if coupleID != "" {
		// The env constructor made one couple with a random id; make the
		// named one explicitly.
		if _, err := e.repo.CreateProfile(ctx, core.Profile{ID: memberID, Name: "Ana"}); err != nil {
			t.Fatalf("seed profile: %v", err)
		}
		couple, err := e.repo.CreateCouple(ctx, "Casal de Ana")
		if err != nil {
			t.Fatalf("seed couple: %v", err)
		}
		if _, err := e.repo.UpdateProfile(ctx, memberID, storage.ProfilePatch{CoupleID: &couple.ID}); err != nil {
			t.Fatalf("attach couple: %v", err)
		}
		e.session.signIn(memberID, couple.ID)
		return
	}
	if _, err := e.repo.CreateProfile(ctx, core.Profile{ID: memberID, Name: "Ana"}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	e.session.signIn(memberID, "")
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestTransactionStoreMutationsRequireSessionAndCouple(t *testing.T) {
	e := newEnv(t)
	svc := service.NewTransactionService(e.repo, e.memFeed)
	store := NewTransactionStore(e.session, svc, e.memFeed, e.bus)
	ctx := context.Background()

	tx := core.Transaction{
		Title:  "Mercado",
		Amount: core.Money{Cents: 1000},
		Type:   core.Expense,
		Date:   core.NewDate(2026, 3, 1),
	}

	if _, err := store.Add(ctx, tx); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Errorf("Add without session error = %v, want ErrNotAuthenticated", err)
	}

	e.seed(t, "m1", "")
	if _, err := store.Add(ctx, tx); !errors.Is(err, core.ErrMissingCouple) {
		t.Errorf("Add without couple error = %v, want ErrMissingCouple", err)
	}
}

func TestStoreMergesFeedEventsById(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "m1", "c-named")
	svc := service.NewTransactionService(e.repo, e.memFeed)
	store := NewTransactionStore(e.session, svc, e.memFeed, e.bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer store.Stop()

	saved, err := store.Add(ctx, core.Transaction{
		Title:  "Mercado",
		Amount: core.Money{Cents: 1000},
		Type:   core.Expense,
		Date:   core.NewDate(2026, 3, 1),
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// The local echo applies immediately; the feed delivery of the same
	// insert must be deduped by id.
	waitFor(t, func() bool { return len(store.Snapshot()) == 1 })
	time.Sleep(50 * time.Millisecond)
	if got := len(store.Snapshot()); got != 1 {
		t.Fatalf("snapshot length after duplicate insert = %d, want 1", got)
	}

	// A second insert event for the same row, replayed manually, is dropped.
	dup, err := feed.NewEvent(service.TableTransactions, feed.Insert, saved.CoupleID, saved)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	e.bus.Notify(dup)
	if got := len(store.Snapshot()); got != 1 {
		t.Fatalf("snapshot length after replayed insert = %d, want 1", got)
	}

	// Update for an unknown id is dropped silently.
	ghost := saved
	ghost.ID = "ghost"
	ghostEvent, _ := feed.NewEvent(service.TableTransactions, feed.Update, saved.CoupleID, ghost)
	e.bus.Notify(ghostEvent)
	if got := len(store.Snapshot()); got != 1 {
		t.Fatalf("snapshot length after ghost update = %d, want 1", got)
	}

	// Delete removes the row.
	if err := store.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := len(store.Snapshot()); got != 0 {
		t.Fatalf("snapshot length after delete = %d, want 0", got)
	}
}

func TestRecurringBillSuccessorArrivesThroughFeed(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "m1", "c-named")
	svc := service.NewBillService(e.repo, e.memFeed)
	store := NewBillStore(e.session, svc, e.memFeed, e.bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer store.Stop()

	bill, err := store.Add(ctx, core.Bill{
		Title:       "Aluguel",
		Amount:      core.Money{Cents: 250000},
		DueDate:     core.NewDate(2026, 1, 31),
		IsRecurring: true,
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if _, err := store.MarkPaid(ctx, bill.ID); err != nil {
		t.Fatalf("MarkPaid() error = %v", err)
	}

	// The spawned successor reaches the store via the feed subscription.
	waitFor(t, func() bool { return len(store.Snapshot()) == 2 })

	bills := store.Snapshot()
	if !bills[0].DueDate.Before(bills[1].DueDate) {
		t.Errorf("bills not ordered by due date: %v, %v", bills[0].DueDate, bills[1].DueDate)
	}
	var successor core.Bill
	for _, b := range bills {
		if b.ID != bill.ID {
			successor = b
		}
	}
	if want := core.NewDate(2026, 2, 28); !successor.DueDate.Equal(want) {
		t.Errorf("successor due = %v, want %v", successor.DueDate, want)
	}
	if successor.Status != core.BillPending {
		t.Errorf("successor status = %q, want pending", successor.Status)
	}
}

func TestBudgetStoreRefetchesWholesale(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "m1", "c-named")
	svc := service.NewBudgetService(e.repo, e.memFeed)
	store := NewBudgetStore(e.session, svc, e.memFeed, e.bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer store.Stop()

	if _, err := store.Set(ctx, core.Budget{
		Category: "Alimentação",
		Amount:   core.Money{Cents: 80000},
		Month:    3,
		Year:     2026,
	}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	waitFor(t, func() bool { return len(store.Snapshot()) == 1 })

	// Replacing the limit keeps a single row with the new amount.
	if _, err := store.Set(ctx, core.Budget{
		Category: "alimentação",
		Amount:   core.Money{Cents: 90000},
		Month:    3,
		Year:     2026,
	}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	waitFor(t, func() bool {
		budgets := store.Snapshot()
		return len(budgets) == 1 && budgets[0].Amount.Cents == 90000
	})
}

func TestStoreClearsOnSignOut(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "m1", "c-named")
	svc := service.NewGoalService(e.repo, e.memFeed)
	store := NewGoalStore(e.session, svc, e.memFeed, e.bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer store.Stop()

	if _, err := store.Add(ctx, core.Goal{
		Title:        "Viagem",
		TargetAmount: core.Money{Cents: 100000},
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	waitFor(t, func() bool { return len(store.Snapshot()) == 1 })

	e.session.mu.Lock()
	e.session.sess = nil
	listeners := append([]func(*auth.Session){}, e.session.listeners...)
	e.session.mu.Unlock()
	for _, fn := range listeners {
		fn(nil)
	}

	if got := len(store.Snapshot()); got != 0 {
		t.Errorf("snapshot after sign-out = %d rows, want 0", got)
	}
}
