package bus

import (
	"context"
	"sync"
	"sync/atomic"
)

type subscriber struct {
	id      string
	policy  DropPolicy
	sent    atomic.Uint64
	dropped atomic.Uint64

	// DropNew
	ch chan<- Sample

	// DropOld
	latest *latestHolder
}

type bus struct {
	mu             sync.RWMutex
	subscribers    map[string]*subscriber
	totalPublished atomic.Uint64
	closed         bool
}

// New creates a new bus instance
func New() Bus {
	return &bus{
		subscribers: make(map[string]*subscriber),
	}
}

// Subscribe registers a channel with DropNew policy
func (b *bus) Subscribe(id string, ch chan<- Sample) error {
	if ch == nil {
		return ErrNilChannel
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return ErrSubscriberExists
	}

	b.subscribers[id] = &subscriber{id: id, policy: DropNew, ch: ch}
	return nil
}

// SubscribeLatest registers a subscriber with DropOld policy
func (b *bus) SubscribeLatest(id string) (SampleReceiver, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return nil, ErrSubscriberExists
	}

	sub := &subscriber{id: id, policy: DropOld, latest: newLatestHolder()}
	b.subscribers[id] = sub
	return sub.latest, nil
}

// Publish distributes sample to all subscribers without blocking.
// Publishing on a closed bus is a no-op.
func (b *bus) Publish(sample Sample) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	b.totalPublished.Add(1)

	for _, sub := range b.subscribers {
		switch sub.policy {
		case DropNew:
			select {
			case sub.ch <- sample:
				sub.sent.Add(1)
			default:
				sub.dropped.Add(1)
			}

		case DropOld:
			if sub.latest.set(sample) {
				sub.dropped.Add(1)
			}
			sub.sent.Add(1)
		}
	}
}

// Unsubscribe removes a subscriber. Channels are not closed, the owner does that.
func (b *bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	sub, exists := b.subscribers[id]
	if !exists {
		return ErrSubscriberNotFound
	}
	if sub.latest != nil {
		sub.latest.Close()
	}

	delete(b.subscribers, id)
	return nil
}

// Stats returns a snapshot of bus counters
func (b *bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := BusStats{
		TotalPublished: b.totalPublished.Load(),
		Subscribers:    make(map[string]SubscriberStats, len(b.subscribers)),
	}

	for id, sub := range b.subscribers {
		s := SubscriberStats{
			Policy:  sub.policy,
			Sent:    sub.sent.Load(),
			Dropped: sub.dropped.Load(),
		}
		result.TotalSent += s.Sent
		// DropOld overwrites were delivered to the holder first, they are not losses on the bus
		if sub.policy == DropNew {
			result.TotalDropped += s.Dropped
		}
		result.Subscribers[id] = s
	}

	return result
}

// Close shuts down the bus and all latest-only receivers. Idempotent.
func (b *bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, sub := range b.subscribers {
		if sub.latest != nil {
			sub.latest.Close()
		}
	}
	b.subscribers = make(map[string]*subscriber)
}

// latestHolder implements SampleReceiver for DropOld policy
type latestHolder struct {
	mu       sync.Mutex
	sample   Sample
	fresh    bool
	hasValue bool
	closed   bool
	notify   chan struct{}
}

func newLatestHolder() *latestHolder {
	return &latestHolder{notify: make(chan struct{}, 1)}
}

// set stores sample and reports whether an unread sample was overwritten
func (h *latestHolder) set(sample Sample) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	overwritten := h.fresh
	h.sample = sample
	h.fresh = true
	h.hasValue = true

	select {
	case h.notify <- struct{}{}:
	default:
	}
	return overwritten
}

func (h *latestHolder) Receive(ctx context.Context) (Sample, error) {
	for {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return Sample{}, ErrReceiverClosed
		}
		if h.fresh {
			s := h.sample
			h.fresh = false
			h.mu.Unlock()
			return s, nil
		}
		h.mu.Unlock()

		select {
		case <-ctx.Done():
			return Sample{}, ctx.Err()
		case <-h.notify:
		}
	}
}

func (h *latestHolder) TryReceive() (Sample, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sample, h.hasValue
}

func (h *latestHolder) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	close(h.notify)
}
