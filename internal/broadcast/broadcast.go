// Package broadcast provides bounded multi-producer fan-out channels with
// drop-oldest overflow. Subscribers are read-only and must tolerate gaps:
// when a subscriber falls behind, its oldest pending value is discarded to
// make room for the newest one.
package broadcast

import (
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the per-subscriber buffer size.
const DefaultCapacity = 1000

// Broadcaster fans values out to any number of subscribers.
type Broadcaster[T any] struct {
	mu       sync.Mutex
	subs     map[int]chan T
	nextID   int
	capacity int
	closed   bool

	dropped   atomic.Int64
	published atomic.Int64
}

// New creates a Broadcaster whose subscribers buffer up to capacity values.
// Non-positive capacity falls back to DefaultCapacity.
func New[T any](capacity int) *Broadcaster[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Broadcaster[T]{
		subs:     make(map[int]chan T),
		capacity: capacity,
	}
}

// Subscribe registers a new subscriber and returns its receive channel plus a
// cancel function. Cancel is idempotent; the channel is closed on cancel and
// on Close.
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, b.capacity)

	if b.closed {
		close(ch)

		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once

	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}

	return ch, cancel
}

// Publish delivers v to every subscriber without blocking. A full subscriber
// buffer sheds its oldest value first; the shed is counted in Dropped.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.published.Add(1)

	for _, ch := range b.subs {
		select {
		case ch <- v:
			continue
		default:
		}

		// Buffer full: drop the oldest pending value, then retry once.
		select {
		case <-ch:
			b.dropped.Add(1)
		default:
		}

		select {
		case ch <- v:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the total number of values shed due to slow subscribers.
func (b *Broadcaster[T]) Dropped() int64 {
	return b.dropped.Load()
}

// Published returns the total number of Publish calls delivered.
func (b *Broadcaster[T]) Published() int64 {
	return b.published.Load()
}

// Subscribers returns the current subscriber count.
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}

// Close closes all subscriber channels. Publishing after Close is a no-op.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
