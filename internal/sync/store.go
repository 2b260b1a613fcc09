// Package sync keeps in-memory mirrors of the couple's rows: each store
// fetches its table on start, subscribes to the change feed scoped to the
// couple, and merges incoming events by row id. Mutations go through the
// service layer and echo locally on the in-process bus, so sibling stores
// refresh without waiting for the broker round trip.
package sync

import (
	"context"
	"encoding/json"
	"log/slog"
	stdsync "sync"

	"casal/internal/auth"
	"casal/internal/feed"
)

// Subscriber delivers change events for one couple until ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, coupleID string, tables []string) (<-chan feed.Event, func(), error)
}

// SessionSource is the slice of the session store the sync layer needs.
type SessionSource interface {
	Session() *auth.Session
	CoupleID() (string, error)
	OnStateChange(fn func(*auth.Session)) func()
}

// Store mirrors one table. Event ordering against refetches is weak:
// duplicate inserts are dropped by id, updates and deletes for unknown rows
// are dropped silently.
type Store[T any] struct {
	table      string
	session    SessionSource
	feed       Subscriber
	bus        *feed.Bus
	fetch      func(ctx context.Context) ([]T, error)
	idOf       func(T) string
	sortItems  func([]T)
	refetchAll bool // reload the whole table on any event instead of merging

	mu      stdsync.RWMutex
	items   []T
	lastErr error

	subMu    stdsync.Mutex
	stopFeed func()
	unBus    func()
	unAuth   func()
}

// Start loads the table and wires the bus, feed and auth subscriptions. The
// returned error reflects only the initial load; later failures surface via
// Err and the logs.
func (s *Store[T]) Start(ctx context.Context) error {
	s.subMu.Lock()
	s.unBus = s.bus.Subscribe(func(e feed.Event) {
		if e.Table == s.table {
			s.apply(ctx, e)
		}
	})
	s.unAuth = s.session.OnStateChange(func(sess *auth.Session) {
		if sess == nil {
			s.clear()
			s.stopSubscription()
			return
		}
		if err := s.Refresh(ctx); err != nil {
			slog.ErrorContext(ctx, "Failed to reload after auth change",
				"table", s.table, "error", err)
		}
		s.resubscribe(ctx)
	})
	s.subMu.Unlock()

	if s.session.Session() == nil {
		return nil
	}
	err := s.Refresh(ctx)
	s.resubscribe(ctx)
	return err
}

// Stop tears down every subscription. The mirrored slice stays readable.
func (s *Store[T]) Stop() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.unBus != nil {
		s.unBus()
		s.unBus = nil
	}
	if s.unAuth != nil {
		s.unAuth()
		s.unAuth = nil
	}
	if s.stopFeed != nil {
		s.stopFeed()
		s.stopFeed = nil
	}
}

func (s *Store[T]) stopSubscription() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.stopFeed != nil {
		s.stopFeed()
		s.stopFeed = nil
	}
}

// Refresh refetches the whole table, replacing the mirror.
func (s *Store[T]) Refresh(ctx context.Context) error {
	items, err := s.fetch(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		return err
	}
	s.lastErr = nil
	s.items = items
	if s.sortItems != nil {
		s.sortItems(s.items)
	}
	return nil
}

// Snapshot returns a copy of the mirrored rows in store order.
func (s *Store[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Err returns the last load failure, or nil.
func (s *Store[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store[T]) clear() {
	s.mu.Lock()
	s.items = nil
	s.lastErr = nil
	s.mu.Unlock()
}

func (s *Store[T]) resubscribe(ctx context.Context) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.stopFeed != nil {
		s.stopFeed()
		s.stopFeed = nil
	}
	if s.feed == nil {
		return
	}

	coupleID, err := s.session.CoupleID()
	if err != nil {
		slog.WarnContext(ctx, "Skipping feed subscription",
			"table", s.table, "reason", err)
		return
	}

	events, stop, err := s.feed.Subscribe(ctx, coupleID, []string{s.table})
	if err != nil {
		// The store falls back to manual refresh only.
		slog.ErrorContext(ctx, "Failed to subscribe to change feed",
			"table", s.table, "error", err)
		return
	}
	s.stopFeed = stop

	go func() {
		for e := range events {
			s.apply(ctx, e)
		}
	}()
}

func (s *Store[T]) apply(ctx context.Context, e feed.Event) {
	if s.refetchAll {
		if err := s.Refresh(ctx); err != nil {
			slog.ErrorContext(ctx, "Failed to refetch after change event",
				"table", s.table, "error", err)
		}
		return
	}

	switch e.Type {
	case feed.Insert, feed.Update:
		var item T
		if err := json.Unmarshal(e.Row, &item); err != nil {
			slog.ErrorContext(ctx, "Failed to decode change event row",
				"table", s.table, "type", e.Type, "error", err)
			return
		}
		if e.Type == feed.Insert {
			s.applyInsert(item)
		} else {
			s.applyUpdate(item)
		}
	case feed.Delete:
		s.applyDelete(e.RowID())
	}
}

func (s *Store[T]) applyInsert(item T) {
	id := s.idOf(item)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if s.idOf(existing) == id {
			return // duplicate insert, drop
		}
	}
	s.items = append(s.items, item)
	if s.sortItems != nil {
		s.sortItems(s.items)
	}
}

func (s *Store[T]) applyUpdate(item T) {
	id := s.idOf(item)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.items {
		if s.idOf(existing) == id {
			s.items[i] = item
			if s.sortItems != nil {
				s.sortItems(s.items)
			}
			return
		}
	}
	// Unknown row, drop silently.
}

func (s *Store[T]) applyDelete(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.items {
		if s.idOf(existing) == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// notify echoes a local mutation on the in-process bus.
func (s *Store[T]) notify(typ feed.EventType, coupleID string, row any) {
	e, err := feed.NewEvent(s.table, typ, coupleID, row)
	if err != nil {
		slog.Error("Failed to build local change event",
			"table", s.table, "type", typ, "error", err)
		return
	}
	s.bus.Notify(e)
}
