package sync

import (
	"context"
	"sort"

	"casal/internal/core"
	"casal/internal/feed"
	"casal/internal/service"
	"casal/internal/storage"
)

// GoalStore mirrors the couple's savings goals, newest first.
type GoalStore struct {
	Store[core.Goal]
	svc *service.GoalService
}

func NewGoalStore(session SessionSource, svc *service.GoalService, sub Subscriber, bus *feed.Bus) *GoalStore {
	s := &GoalStore{svc: svc}
	s.Store = Store[core.Goal]{
		table:   service.TableGoals,
		session: session,
		feed:    sub,
		bus:     bus,
		idOf:    func(g core.Goal) string { return g.ID },
		sortItems: func(items []core.Goal) {
			sort.SliceStable(items, func(i, j int) bool {
				return items[i].CreatedAt.After(items[j].CreatedAt)
			})
		},
	}
	s.fetch = func(ctx context.Context) ([]core.Goal, error) {
		scope, err := scopeOf(session)
		if err != nil {
			return nil, err
		}
		return svc.List(ctx, scope)
	}
	return s
}

func (s *GoalStore) Add(ctx context.Context, input core.Goal) (core.Goal, error) {
	sess := s.session.Session()
	if sess == nil {
		return core.Goal{}, core.ErrNotAuthenticated
	}
	input.CreatedBy = sess.UserID
	if coupleID, err := s.session.CoupleID(); err == nil {
		input.CoupleID = coupleID
	}
	saved, err := s.svc.Add(ctx, input)
	if err != nil {
		return core.Goal{}, err
	}
	s.notify(feed.Insert, saved.CoupleID, saved)
	return saved, nil
}

func (s *GoalStore) Update(ctx context.Context, id string, patch storage.GoalPatch) (core.Goal, error) {
	if s.session.Session() == nil {
		return core.Goal{}, core.ErrNotAuthenticated
	}
	saved, err := s.svc.Update(ctx, id, patch)
	if err != nil {
		return core.Goal{}, err
	}
	s.notify(feed.Update, saved.CoupleID, saved)
	return saved, nil
}

// Contribute adds to the goal's saved amount.
func (s *GoalStore) Contribute(ctx context.Context, id string, amount core.Money) (core.Goal, error) {
	if s.session.Session() == nil {
		return core.Goal{}, core.ErrNotAuthenticated
	}
	saved, err := s.svc.Contribute(ctx, id, amount)
	if err != nil {
		return core.Goal{}, err
	}
	s.notify(feed.Update, saved.CoupleID, saved)
	return saved, nil
}

func (s *GoalStore) Delete(ctx context.Context, id string) error {
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
