package events

import "time"

// StageDelta is the time between two consecutive set dispatch stages, or
// between the last set stage and presentation (ToPresentation).
type StageDelta struct {
	From           DispatchStage
	To             DispatchStage
	ToPresentation bool
	Delta          time.Duration
}

// Latency is the computed breakdown of one event for a presented frame.
type Latency struct {
	Event *Metrics

	// Type is the classified type (scroll updates are split into
	// First/continued/Inertial).
	Type Type

	// Total is presentation minus the Generated timestamp.
	Total time.Duration

	Stages []StageDelta
}

// Aggregator owns the event records associated with one frame.
//
// Records keep insertion order and are not deduplicated. Order decides
// which scroll update is classified as the first of its sequence.
//
// Thread-safety: NOT safe for concurrent use.
type Aggregator struct {
	records []*Metrics
}

// AddEvents appends records, skipping nils.
func (a *Aggregator) AddEvents(records ...*Metrics) {
	for _, r := range records {
		if r != nil {
			a.records = append(a.records, r)
		}
	}
}

// Len returns the number of records.
func (a *Aggregator) Len() int { return len(a.records) }

// Records returns the records in insertion order. Must not be modified.
func (a *Aggregator) Records() []*Metrics { return a.records }

// TakeAll removes and returns every record.
func (a *Aggregator) TakeAll() []*Metrics {
	out := a.records
	a.records = nil
	return out
}

// TakeMainBlocked removes and returns the records that require a
// main-thread update, keeping the rest in order.
func (a *Aggregator) TakeMainBlocked() []*Metrics {
	var blocked, kept []*Metrics
	for _, r := range a.records {
		if r.RequiresMainThreadUpdate {
			blocked = append(blocked, r)
		} else {
			kept = append(kept, r)
		}
	}
	a.records = kept
	return blocked
}

// ComputeLatencies returns one Latency per record, in insertion order.
//
// Scroll-update classification:
//   - inertial updates are always InertialGestureScrollUpdate
//   - the first non-inertial update of a scroll sequence is
//     FirstGestureScrollUpdate (a GestureScrollBegin starts a new sequence)
//   - later non-inertial updates are GestureScrollUpdate
//
// The inertial check is applied after the first/continued lookup, so an
// inertial update never takes the "first" slot.
func (a *Aggregator) ComputeLatencies(presentation time.Time) []Latency {
	out := make([]Latency, 0, len(a.records))
	seenFirst := false
	for _, r := range a.records {
		t := r.Type
		switch {
		case t == GestureScrollBegin:
			seenFirst = false
		case t.IsScrollUpdate():
			t, seenFirst = classifyScrollUpdate(r, seenFirst)
		}
		out = append(out, Latency{
			Event:  r,
			Type:   t,
			Total:  presentation.Sub(r.GetDispatchStageTimestamp(Generated)),
			Stages: stageDeltas(r, presentation),
		})
	}
	return out
}

func classifyScrollUpdate(r *Metrics, seenFirst bool) (Type, bool) {
	first := false
	switch {
	case r.Type == FirstGestureScrollUpdate || r.UpdateKind == UpdateStarted:
		first = true
	case r.UpdateKind == UpdateUnspecified && r.Type == GestureScrollUpdate:
		first = !seenFirst
	}

	if r.Inertial || r.Type == InertialGestureScrollUpdate {
		return InertialGestureScrollUpdate, seenFirst
	}
	if first {
		return FirstGestureScrollUpdate, true
	}
	return GestureScrollUpdate, seenFirst
}

func stageDeltas(r *Metrics, presentation time.Time) []StageDelta {
	var out []StageDelta
	last := DispatchStage(-1)
	for s := Generated; s < DispatchStageCount; s++ {
		ts := r.timestamps[s]
		if ts.IsZero() {
			continue
		}
		if last >= 0 {
			out = append(out, StageDelta{From: last, To: s, Delta: ts.Sub(r.timestamps[last])})
		}
		last = s
	}
	if last >= 0 {
		out = append(out, StageDelta{From: last, ToPresentation: true, Delta: presentation.Sub(r.timestamps[last])})
	}
	return out
}
