package feed

import (
	"context"
	"sync"
)

// MemoryFeed mirrors the AMQP client's contract without a broker. Used when
// no AMQP URL is configured, and by tests.
type MemoryFeed struct {
	mu   sync.Mutex
	subs map[int]*memorySub
	next int
}

type memorySub struct {
	coupleID string
	tables   map[string]bool
	in       chan Event
	out      chan Event
	done     chan struct{}
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[int]*memorySub)}
}

func (m *MemoryFeed) Publish(ctx context.Context, e Event) error {
	m.mu.Lock()
	subs := make([]*memorySub, 0, len(m.subs))
	for _, s := range m.subs {
		if s.coupleID == e.CoupleID && s.tables[e.Table] {
			subs = append(subs, s)
		}
	}
	m.mu.Unlock()

	for _, s := range subs {
		select {
		case s.in <- e:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *MemoryFeed) Subscribe(ctx context.Context, coupleID string, tables []string) (<-chan Event, func(), error) {
	sub := &memorySub{
		coupleID: coupleID,
		tables:   make(map[string]bool, len(tables)),
		in:       make(chan Event, 16),
		out:      make(chan Event),
		done:     make(chan struct{}),
	}
	for _, t := range tables {
		sub.tables[t] = true
	}

	m.mu.Lock()
	id := m.next
	m.next++
	m.subs[id] = sub
	m.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(sub.done)
		})
	}

	// Only this goroutine closes out. Publishers write to in, which stays
	// open, so a racing Publish can never hit a closed channel.
	go func() {
		defer close(sub.out)
		for {
			select {
			case <-sub.done:
				return
			case e := <-sub.in:
				select {
				case sub.out <- e:
				case <-sub.done:
					return
				}
			}
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-sub.done:
		}
	}()

	return sub.out, stop, nil
}

func (m *MemoryFeed) Close() error { return nil }
