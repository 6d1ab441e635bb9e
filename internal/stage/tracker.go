package stage

import (
	"log/slog"
	"time"
)

// Tracker records the ordered stage history of one frame.
//
// Semantics:
//   - StartStage closes the open stage (if any) at the new stage's start
//   - At most one stage is open at a time
//   - Timestamps that go backwards are rejected (logged, ignored)
//
// Thread-safety: NOT safe for concurrent use. Owned by a single reporter.
type Tracker struct {
	history []Record

	current Record
	open    bool
}

// StartStage opens a new stage of kind at t, implicitly closing the open one.
func (t *Tracker) StartStage(kind Type, at time.Time) {
	if t.open && at.Before(t.current.Start) {
		slog.Warn("stage: start precedes current stage start, ignoring",
			"stage", kind.String(),
			"current", t.current.Kind.String(),
			"delta", t.current.Start.Sub(at),
		)
		return
	}
	if !t.open && len(t.history) > 0 && at.Before(t.history[len(t.history)-1].Start) {
		slog.Warn("stage: start precedes previous stage start, ignoring",
			"stage", kind.String(),
		)
		return
	}
	t.CloseCurrentStage(at)
	t.current = Record{Kind: kind, Start: at}
	t.open = true
}

// CloseCurrentStage ends the open stage at t. No-op when no stage is open.
// An end earlier than the start is clamped to the start.
func (t *Tracker) CloseCurrentStage(at time.Time) {
	if !t.open {
		return
	}
	if at.Before(t.current.Start) {
		slog.Warn("stage: end precedes start, clamping",
			"stage", t.current.Kind.String(),
		)
		at = t.current.Start
	}
	t.current.End = at
	t.history = append(t.history, t.current)
	t.current = Record{}
	t.open = false
}

// Append adds an already-completed record (e.g. the synthetic TotalLatency stage).
func (t *Tracker) Append(r Record) {
	if r.End.Before(r.Start) {
		r.End = r.Start
	}
	t.history = append(t.history, r)
}

// History returns the completed stages in traversal order.
// The returned slice must not be modified.
func (t *Tracker) History() []Record {
	return t.history
}

// Current returns the open stage and whether one is open.
func (t *Tracker) Current() (Record, bool) {
	return t.current, t.open
}

// Len returns the number of completed stages.
func (t *Tracker) Len() int {
	return len(t.history)
}

// Span returns first start to last end of the completed history.
func (t *Tracker) Span() (start, end time.Time, ok bool) {
	if len(t.history) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return t.history[0].Start, t.history[len(t.history)-1].End, true
}

// Sum returns the sum of stage durations plus the gaps between consecutive
// stages. Equals end-start of Span.
func (t *Tracker) Sum() time.Duration {
	var total time.Duration
	for i, r := range t.history {
		total += r.Duration()
		if i > 0 {
			total += r.Start.Sub(t.history[i-1].End)
		}
	}
	return total
}
