package events

import (
	"fmt"
	"time"
)

// Metrics is one input event contributing to a frame.
//
// Invariant: set dispatch timestamps are non-decreasing in stage order.
// Stages may be left unset (zero time).
type Metrics struct {
	Type Type

	// Scroll/pinch metadata
	Device     Device
	Inertial   bool
	UpdateKind UpdateKind

	// RequiresMainThreadUpdate marks events whose effect depends on a
	// main-thread update (they move to the decider of a partial update).
	RequiresMainThreadUpdate bool

	// Frame the scroll was dispatched against; zero when unknown.
	// Used for the VSync ratio histograms.
	OriginFrameTime time.Time
	OriginInterval  time.Duration

	timestamps [DispatchStageCount]time.Time
}

// New creates event metrics of type t generated at generated.
func New(t Type, generated time.Time) *Metrics {
	m := &Metrics{Type: t}
	m.timestamps[Generated] = generated
	return m
}

// NewScroll creates scroll event metrics.
func NewScroll(t Type, device Device, inertial bool, kind UpdateKind, generated time.Time) *Metrics {
	m := New(t, generated)
	m.Device = device
	m.Inertial = inertial
	m.UpdateKind = kind
	return m
}

// NewPinch creates pinch event metrics.
func NewPinch(t Type, device Device, generated time.Time) *Metrics {
	m := New(t, generated)
	m.Device = device
	return m
}

// GetDispatchStageTimestamp returns the timestamp of stage, zero if unset.
func (m *Metrics) GetDispatchStageTimestamp(s DispatchStage) time.Time {
	if s < 0 || s >= DispatchStageCount {
		return time.Time{}
	}
	return m.timestamps[s]
}

// SetDispatchStageTimestamp records the timestamp of stage s.
//
// Returns ErrTimestampOrder if t precedes an earlier set stage or follows a
// later set stage. The record is left unchanged in that case.
func (m *Metrics) SetDispatchStageTimestamp(s DispatchStage, t time.Time) error {
	if s < 0 || s >= DispatchStageCount {
		return fmt.Errorf("%w: %d", ErrInvalidStage, s)
	}
	for prev := s - 1; prev >= 0; prev-- {
		if p := m.timestamps[prev]; !p.IsZero() {
			if t.Before(p) {
				return fmt.Errorf("%w: %s before %s", ErrTimestampOrder, s, prev)
			}
			break
		}
	}
	for next := s + 1; next < DispatchStageCount; next++ {
		if n := m.timestamps[next]; !n.IsZero() {
			if t.After(n) {
				return fmt.Errorf("%w: %s after %s", ErrTimestampOrder, s, next)
			}
			break
		}
	}
	m.timestamps[s] = t
	return nil
}

// IsScroll reports whether the event is a scroll gesture.
func (m *Metrics) IsScroll() bool { return m.Type.IsScroll() }

// IsPinch reports whether the event is a pinch gesture.
func (m *Metrics) IsPinch() bool { return m.Type.IsPinch() }

// Clone returns a deep copy.
func (m *Metrics) Clone() *Metrics {
	c := *m
	return &c
}
