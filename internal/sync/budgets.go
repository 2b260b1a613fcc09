package sync

import (
	"context"
	"sort"

	"casal/internal/core"
	"casal/internal/feed"
	"casal/internal/service"
)

// BudgetStore mirrors the couple's monthly budgets. Budgets are strictly
// couple-scoped and cheap to load, so any change event triggers a wholesale
// refetch instead of a row merge.
type BudgetStore struct {
	Store[core.Budget]
	svc *service.BudgetService
}

func NewBudgetStore(session SessionSource, svc *service.BudgetService, sub Subscriber, bus *feed.Bus) *BudgetStore {
	s := &BudgetStore{svc: svc}
	s.Store = Store[core.Budget]{
		table:      service.TableBudgets,
		session:    session,
		feed:       sub,
		bus:        bus,
		refetchAll: true,
		idOf:       func(b core.Budget) string { return b.ID },
		sortItems: func(items []core.Budget) {
			sort.SliceStable(items, func(i, j int) bool {
				return items[i].Category < items[j].Category
			})
		},
	}
	s.fetch = func(ctx context.Context) ([]core.Budget, error) {
		if session.Session() == nil {
			return nil, core.ErrNotAuthenticated
		}
		coupleID, err := session.CoupleID()
		if err != nil {
			return nil, nil // no couple yet, nothing to mirror
		}
		return svc.List(ctx, coupleID)
	}
	return s
}

// Set saves the limit for a category and month, replacing any existing one.
func (s *BudgetStore) Set(ctx context.Context, input core.Budget) (core.Budget, error) {
	if s.session.Session() == nil {
		return core.Budget{}, core.ErrNotAuthenticated
	}
	coupleID, err := s.session.CoupleID()
	if err != nil {
		return core.Budget{}, err
	}
	input.CoupleID = coupleID

	saved, err := s.svc.Set(ctx, input)
	if err != nil {
		return core.Budget{}, err
	}
	s.notify(feed.Update, saved.CoupleID, saved)
	return saved, nil
}

func (s *BudgetStore) Delete(ctx context.Context, id string) error {
	if s.session.Session() == nil {
		return core.ErrNotAuthenticated
	}
	if err := s.svc.Delete(ctx, id); err != nil {
		return err
	}
	coupleID, _ := s.session.CoupleID()
	s.notify(feed.Delete, coupleID, deletedRow{ID: id})
	return nil
}
