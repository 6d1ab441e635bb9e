// Package samplebus fans out finalized frame and event-latency samples to
// subscribers without ever blocking the reporting path.
//
// Core rule: drop samples, never queue. A slow subscriber loses samples
// instead of delaying frame finalization.
//
//   - DropNew: channel subscriber; a full channel drops the incoming sample
//   - DropOld: latest-only receiver; each sample replaces the stored one
package samplebus

import (
	"errors"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/frame"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/reporter"
)

var (
	ErrBusClosed          = errors.New("samplebus: bus is closed")
	ErrSubscriberExists   = errors.New("samplebus: subscriber already exists")
	ErrSubscriberNotFound = errors.New("samplebus: subscriber not found")
	ErrNilChannel         = errors.New("samplebus: nil channel provided")
	ErrReceiverClosed     = errors.New("samplebus: receiver is closed")
)

// DropPolicy defines how the bus handles samples when a subscriber cannot
// keep up.
type DropPolicy int

const (
	DropNew DropPolicy = iota
	DropOld
)

func (p DropPolicy) String() string {
	if p == DropOld {
		return "drop_old"
	}
	return "drop_new"
}

// ParseDropPolicy parses "drop_new" or "drop_old".
func ParseDropPolicy(s string) (DropPolicy, bool) {
	switch s {
	case "drop_new", "":
		return DropNew, true
	case "drop_old":
		return DropOld, true
	}
	return DropNew, false
}

// Kind tells which payload a Sample carries.
type Kind int

const (
	KindFrame Kind = iota
	KindEventLatency
)

func (k Kind) String() string {
	if k == KindEventLatency {
		return "event_latency"
	}
	return "frame"
}

// Sample is one finalized frame or the event latencies of a presented frame.
type Sample struct {
	Kind Kind

	// Seq is assigned by the bus, starting at 1.
	Seq uint64

	// Timestamp is when the sample was published.
	Timestamp time.Time

	Args frame.Args

	// Frame is set for KindFrame.
	Frame frame.Info

	// Events is set for KindEventLatency.
	Events []reporter.EventLatencyData
}

// Receiver provides blocking and non-blocking access to the latest sample
// of a DropOld subscriber.
type Receiver interface {
	Receive() (Sample, bool)
	TryReceive() (Sample, bool)
	Close()
}

// SubscriberStats tracks distribution to one subscriber.
type SubscriberStats struct {
	// Sent is the number of samples delivered.
	Sent uint64

	// Dropped is the number of samples lost to a full channel.
	Dropped uint64
}

// BusStats contains global and per-subscriber counters.
type BusStats struct {
	// TotalPublished is the number of Publish calls.
	TotalPublished uint64

	// TotalSent is the sum of samples delivered to all subscribers.
	TotalSent uint64

	// TotalDropped is the sum of samples dropped across all subscribers.
	TotalDropped uint64

	Subscribers map[string]SubscriberStats
}

// DropRate returns TotalDropped over delivery attempts, 0 when idle.
func (s BusStats) DropRate() float64 {
	total := s.TotalSent + s.TotalDropped
	if total == 0 {
		return 0
	}
	return float64(s.TotalDropped) / float64(total)
}

// Bus distributes samples to subscribers.
type Bus interface {
	Subscribe(id string, ch chan<- Sample) error
	SubscribeDropOld(id string) (Receiver, error)
	Publish(s Sample)
	Unsubscribe(id string) error
	Stats() BusStats
	Close() error
}
