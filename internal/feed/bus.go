package feed

import "sync"

// Bus fans change events out to in-process listeners. It carries the local
// echo of every mutation so views refresh immediately instead of waiting for
// the broker round trip.
type Bus struct {
	mu        sync.RWMutex
	listeners map[int]func(Event)
	nextID    int
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[int]func(Event))}
}

// Subscribe registers fn for every event and returns an unsubscribe func.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Notify delivers e to every listener synchronously, in registration order
// not guaranteed. Listeners must not block.
func (b *Bus) Notify(e Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}
