package sync

import (
	"context"
	"sort"

	"casal/internal/core"
	"casal/internal/feed"
	"casal/internal/service"
	"casal/internal/storage"
)

// BillStore mirrors the couple's bills ordered by due date. Paying a
// recurring bill surfaces the spawned successor through the feed; the local
// echo only carries the paid update, so the successor appears on the next
// event or refresh.
type BillStore struct {
	Store[core.Bill]
	svc *service.BillService
}

func NewBillStore(session SessionSource, svc *service.BillService, sub Subscriber, bus *feed.Bus) *BillStore {
	s := &BillStore{svc: svc}
	s.Store = Store[core.Bill]{
		table:   service.TableBills,
		session: session,
		feed:    sub,
		bus:     bus,
		idOf:    func(b core.Bill) string { return b.ID },
		sortItems: func(items []core.Bill) {
			sort.SliceStable(items, func(i, j int) bool {
				return items[i].DueDate.Before(items[j].DueDate)
			})
		},
	}
	s.fetch = func(ctx context.Context) ([]core.Bill, error) {
		scope, err := scopeOf(session)
		if err != nil {
			return nil, err
		}
		return svc.List(ctx, scope)
	}
	return s
}

func (s *BillStore) Add(ctx context.Context, input core.Bill) (core.Bill, error) {
	sess := s.session.Session()
	if sess == nil {
		return core.Bill{}, core.ErrNotAuthenticated
	}
	input.CreatedBy = sess.UserID
	if coupleID, err := s.session.CoupleID(); err == nil {
		input.CoupleID = coupleID
	}
	saved, err := s.svc.Add(ctx, input)
	if err != nil {
		return core.Bill{}, err
	}
	s.notify(feed.Insert, saved.CoupleID, saved)
	return saved, nil
}

func (s *BillStore) Update(ctx context.Context, id string, patch storage.BillPatch) (core.Bill, error) {
	if s.session.Session() == nil {
		return core.Bill{}, core.ErrNotAuthenticated
	}
	saved, err := s.svc.Update(ctx, id, patch)
	if err != nil {
		return core.Bill{}, err
	}
	s.notify(feed.Update, saved.CoupleID, saved)
	return saved, nil
}

// MarkPaid settles a bill; the recurrence side effect happens in the service.
func (s *BillStore) MarkPaid(ctx context.Context, id string) (core.Bill, error) {
	paid := core.BillPaid
	return s.Update(ctx, id, storage.BillPatch{Status: &paid})
}

func (s *BillStore) Delete(ctx context.Context, id string) error {
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
