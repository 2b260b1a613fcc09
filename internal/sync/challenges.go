package sync

import (
	"context"
	"sort"

	"casal/internal/core"
	"casal/internal/feed"
	"casal/internal/service"
	"casal/internal/storage"
)

// ChallengeStore mirrors the couple's spending challenges, newest first.
// Like budgets, it refetches wholesale on change events.
type ChallengeStore struct {
	Store[core.Challenge]
	svc *service.ChallengeService
}

func NewChallengeStore(session SessionSource, svc *service.ChallengeService, sub Subscriber, bus *feed.Bus) *ChallengeStore {
	s := &ChallengeStore{svc: svc}
	s.Store = Store[core.Challenge]{
		table:      service.TableChallenges,
		session:    session,
		feed:       sub,
		bus:        bus,
		refetchAll: true,
		idOf:       func(c core.Challenge) string { return c.ID },
		sortItems: func(items []core.Challenge) {
			sort.SliceStable(items, func(i, j int) bool {
				return items[i].CreatedAt.After(items[j].CreatedAt)
			})
		},
	}
	s.fetch = func(ctx context.Context) ([]core.Challenge, error) {
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

func (s *ChallengeStore) Add(ctx context.Context, input core.Challenge) (core.Challenge, error) {
	if s.session.Session() == nil {
		return core.Challenge{}, core.ErrNotAuthenticated
	}
	coupleID, err := s.session.CoupleID()
	if err != nil {
		return core.Challenge{}, err
	}
	input.CoupleID = coupleID

	saved, err := s.svc.Add(ctx, input)
	if err != nil {
		return core.Challenge{}, err
	}
	s.notify(feed.Insert, saved.CoupleID, saved)
	return saved, nil
}

func (s *ChallengeStore) Update(ctx context.Context, id string, patch storage.ChallengePatch) (core.Challenge, error) {
	if s.session.Session() == nil {
		return core.Challenge{}, core.ErrNotAuthenticated
	}
	saved, err := s.svc.Update(ctx, id, patch)
	if err != nil {
		return core.Challenge{}, err
	}
	s.notify(feed.Update, saved.CoupleID, saved)
	return saved, nil
}

func (s *ChallengeStore) Delete(ctx context.Context, id string) error {
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
