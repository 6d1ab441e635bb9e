package samplebus

import (
	"sync"
	"sync/atomic"
	"time"
)

type subscriberStats struct {
	sent    atomic.Uint64
	dropped atomic.Uint64
}

type subscriber struct {
	policy DropPolicy
	stats  subscriberStats

	// DropNew
	ch chan<- Sample

	// DropOld
	latest *latestHolder
}

type bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool

	totalPublished atomic.Uint64
	seq            atomic.Uint64
	now            func() time.Time
}

// New creates a sample bus. now stamps published samples; nil uses
// time.Now.
func New(now func() time.Time) Bus {
	if now == nil {
		now = time.Now
	}
	return &bus{
		subscribers: make(map[string]*subscriber),
		now:         now,
	}
}

// Subscribe registers a channel with the DropNew policy.
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

	b.subscribers[id] = &subscriber{policy: DropNew, ch: ch}
	return nil
}

// SubscribeDropOld registers a latest-only receiver.
func (b *bus) SubscribeDropOld(id string) (Receiver, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return nil, ErrSubscriberExists
	}

	sub := &subscriber{policy: DropOld, latest: newLatestHolder()}
	b.subscribers[id] = sub
	return sub.latest, nil
}

// Publish stamps s and delivers it to every subscriber without blocking.
// Publishing on a closed bus is a no-op.
func (b *bus) Publish(s Sample) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	b.totalPublished.Add(1)
	s.Seq = b.seq.Add(1)
	if s.Timestamp.IsZero() {
		s.Timestamp = b.now()
	}

	for _, sub := range b.subscribers {
		switch sub.policy {
		case DropNew:
			select {
			case sub.ch <- s:
				sub.stats.sent.Add(1)
			default:
				sub.stats.dropped.Add(1)
			}
		case DropOld:
			if err := sub.latest.set(s); err == nil {
				sub.stats.sent.Add(1)
			} else {
				sub.stats.dropped.Add(1)
			}
		}
	}
}

// Unsubscribe removes a subscriber and closes its DropOld receiver.
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

// Stats returns a snapshot of the counters. Concurrent publishes may
// increment them after it returns.
func (b *bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := BusStats{
		TotalPublished: b.totalPublished.Load(),
		Subscribers:    make(map[string]SubscriberStats, len(b.subscribers)),
	}
	for id, sub := range b.subscribers {
		sent := sub.stats.sent.Load()
		dropped := sub.stats.dropped.Load()
		result.TotalSent += sent
		result.TotalDropped += dropped
		result.Subscribers[id] = SubscriberStats{Sent: sent, Dropped: dropped}
	}
	return result
}

// Close stops the bus. DropOld receivers are closed; subscriber channels
// are left to their owners. Idempotent.
func (b *bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, sub := range b.subscribers {
		if sub.latest != nil {
			sub.latest.Close()
		}
	}
	return nil
}

// latestHolder implements Receiver for the DropOld policy.
type latestHolder struct {
	mu     sync.Mutex
	cond   *sync.Cond
	sample *Sample
	closed bool
}

func newLatestHolder() *latestHolder {
	h := &latestHolder{}
	h.cond = sync.NewCond(&h.mu)
	return h
}

func (h *latestHolder) set(s Sample) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrReceiverClosed
	}
	h.sample = &s
	h.cond.Broadcast()
	return nil
}

// Receive blocks until a sample is available and consumes it. Returns false
// once the receiver is closed.
func (h *latestHolder) Receive() (Sample, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for h.sample == nil && !h.closed {
		h.cond.Wait()
	}
	if h.sample == nil {
		return Sample{}, false
	}
	s := *h.sample
	h.sample = nil
	return s, true
}

// TryReceive consumes the latest sample without blocking.
func (h *latestHolder) TryReceive() (Sample, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sample == nil {
		return Sample{}, false
	}
	s := *h.sample
	h.sample = nil
	return s, true
}

// Close wakes blocked receivers.
func (h *latestHolder) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	h.cond.Broadcast()
}
