package sync

import (
	"context"
	"sort"

	"casal/internal/core"
	"casal/internal/feed"
	"casal/internal/service"
	"casal/internal/storage"
)

// ShoppingStore mirrors the couple's shopping list, newest first.
type ShoppingStore struct {
	Store[core.ShoppingItem]
	svc *service.ShoppingService
}

func NewShoppingStore(session SessionSource, svc *service.ShoppingService, sub Subscriber, bus *feed.Bus) *ShoppingStore {
	s := &ShoppingStore{svc: svc}
	s.Store = Store[core.ShoppingItem]{
		table:   service.TableShopping,
		session: session,
		feed:    sub,
		bus:     bus,
		idOf:    func(i core.ShoppingItem) string { return i.ID },
		sortItems: func(items []core.ShoppingItem) {
			sort.SliceStable(items, func(i, j int) bool {
				return items[i].CreatedAt.After(items[j].CreatedAt)
			})
		},
	}
	s.fetch = func(ctx context.Context) ([]core.ShoppingItem, error) {
		scope, err := scopeOf(session)
		if err != nil {
			return nil, err
		}
		return svc.List(ctx, scope)
	}
	return s
}

func (s *ShoppingStore) Add(ctx context.Context, input core.ShoppingItem) (core.ShoppingItem, error) {
	sess := s.session.Session()
	if sess == nil {
		return core.ShoppingItem{}, core.ErrNotAuthenticated
	}
	input.CreatedBy = sess.UserID
	if coupleID, err := s.session.CoupleID(); err == nil {
		input.CoupleID = coupleID
	}
	saved, err := s.svc.Add(ctx, input)
	if err != nil {
		return core.ShoppingItem{}, err
	}
	s.notify(feed.Insert, saved.CoupleID, saved)
	return saved, nil
}

func (s *ShoppingStore) Update(ctx context.Context, id string, patch storage.ShoppingItemPatch) (core.ShoppingItem, error) {
	if s.session.Session() == nil {
		return core.ShoppingItem{}, core.ErrNotAuthenticated
	}
	saved, err := s.svc.Update(ctx, id, patch)
	if err != nil {
		return core.ShoppingItem{}, err
	}
	s.notify(feed.Update, saved.CoupleID, saved)
	return saved, nil
}

// Toggle flips an item's checked state.
func (s *ShoppingStore) Toggle(ctx context.Context, id string) (core.ShoppingItem, error) {
	if s.session.Session() == nil {
		return core.ShoppingItem{}, core.ErrNotAuthenticated
	}
	saved, err := s.svc.Toggle(ctx, id)
	if err != nil {
		return core.ShoppingItem{}, err
	}
	s.notify(feed.Update, saved.CoupleID, saved)
	return saved, nil
}

func (s *ShoppingStore) Delete(ctx context.Context, id string) error {
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
