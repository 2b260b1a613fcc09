package sync

import (
	"context"
	"sort"

	"casal/internal/core"
	"casal/internal/feed"
	"casal/internal/service"
	"casal/internal/storage"
)

// scopeOf derives the query scope from the session: couple when resolved,
// otherwise just the member's own rows.
func scopeOf(session SessionSource) (storage.Scope, error) {
	sess := session.Session()
	if sess == nil {
		return storage.Scope{}, core.ErrNotAuthenticated
	}
	scope := storage.Scope{MemberID: sess.UserID}
	if coupleID, err := session.CoupleID(); err == nil {
		scope.CoupleID = coupleID
	}
	return scope, nil
}

// deletedRow is the payload echoed on the bus for local deletes.
type deletedRow struct {
	ID string `json:"id"`
}

// TransactionStore mirrors the couple's transactions, newest first.
type TransactionStore struct {
	Store[core.Transaction]
	svc *service.TransactionService
}

func NewTransactionStore(session SessionSource, svc *service.TransactionService, sub Subscriber, bus *feed.Bus) *TransactionStore {
	s := &TransactionStore{svc: svc}
	s.Store = Store[core.Transaction]{
		table:   service.TableTransactions,
		session: session,
		feed:    sub,
		bus:     bus,
		idOf:    func(t core.Transaction) string { return t.ID },
		sortItems: func(items []core.Transaction) {
			sort.SliceStable(items, func(i, j int) bool {
				if !items[i].Date.Equal(items[j].Date) {
					return items[i].Date.After(items[j].Date)
				}
				return items[i].CreatedAt.After(items[j].CreatedAt)
			})
		},
	}
	s.fetch = func(ctx context.Context) ([]core.Transaction, error) {
		scope, err := scopeOf(session)
		if err != nil {
			return nil, err
		}
		return svc.List(ctx, scope)
	}
	return s
}

// Add writes a transaction for the signed-in member. A write before the
// couple resolves fails with ErrMissingCouple rather than landing unscoped.
func (s *TransactionStore) Add(ctx context.Context, input core.Transaction) (core.Transaction, error) {
	sess := s.session.Session()
	if sess == nil {
		return core.Transaction{}, core.ErrNotAuthenticated
	}
	coupleID, err := s.session.CoupleID()
	if err != nil {
		return core.Transaction{}, err
	}

	input.CreatedBy = sess.UserID
	input.CoupleID = coupleID
	saved, err := s.svc.Add(ctx, input)
	if err != nil {
		return core.Transaction{}, err
	}
	s.notify(feed.Insert, saved.CoupleID, saved)
	return saved, nil
}

func (s *TransactionStore) Update(ctx context.Context, id string, patch storage.TransactionPatch) (core.Transaction, error) {
	if s.session.Session() == nil {
		return core.Transaction{}, core.ErrNotAuthenticated
	}
	saved, err := s.svc.Update(ctx, id, patch)
	if err != nil {
		return core.Transaction{}, err
	}
	s.notify(feed.Update, saved.CoupleID, saved)
	return saved, nil
}

func (s *TransactionStore) Delete(ctx context.Context, id string) error {
	sess := s.session.Session()
	if sess == nil {
		return core.ErrNotAuthenticated
	}
	if err := s.svc.Delete(ctx, id); err != nil {
		return err
	}
	coupleID, _ := s.session.CoupleID()
	s.notify(feed.Delete, coupleID, deletedRow{ID: id})
	return nil
}
