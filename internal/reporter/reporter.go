package reporter

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/clock"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/events"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/frame"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/stage"
)

// FrameReporter tracks one frame through the pipeline.
//
// States: Created → StagesInProgress → Terminated(status).
//
// Emission:
//   - TerminateFrame fixes the status and end time (first call wins)
//   - Finalize emits every metric exactly once; later calls are no-ops
//   - A reporter evicted from a decider's owned queue is discarded without
//     emitting
//
// Ownership: a reporter is owned by exactly one of the controller's stage
// slots, the controller's submitted-frame queue, or a decider's owned
// dependents. Whoever drops it calls Finalize.
//
// Thread-safety: NOT safe for concurrent use. All calls must come from the
// compositor sequence.
type FrameReporter struct {
	id     uuid.UUID
	args   frame.Args
	cfg    Config
	clock  clock.Clock
	global *GlobalTrackers

	snapshot TrackerSnapshot

	stages stage.Tracker
	events events.Aggregator

	terminated      bool
	status          TerminationStatus
	terminationTime time.Time

	blinkStart          time.Time
	vizStart            time.Time
	beginMainFrameStart time.Time
	blinkMetrics        BeginMainFrameMetrics
	vizDetails          FrameTimingDetails

	didFinishImplFrame  bool
	implFrameFinishTime time.Time
	mainFrameAbortTime  time.Time
	didNotProduceTime   time.Time
	skipReason          frame.SkippedReason
	hasSkipReason       bool

	hasPartialUpdate              bool
	accompaniedByMainThreadUpdate bool
	decider                       *FrameReporter
	graph                         dependencyGraph

	kind        Kind
	reportTypes ReportType
	paintArea   *float64

	isForked   bool
	isBackfill bool
	presented  bool

	finalized bool
	discarded bool
}

// New creates a reporter for args. global must outlive the reporter.
//
// The frame is registered with the sorter when first contentful paint has
// been received.
func New(args frame.Args, snap TrackerSnapshot, cfg Config, clk clock.Clock, global *GlobalTrackers) *FrameReporter {
	if cfg.MaxOwnedDependents <= 0 {
		cfg.MaxOwnedDependents = DefaultMaxOwnedDependents
	}
	if clk == nil {
		clk = clock.Real{}
	}
	r := &FrameReporter{
		id:       uuid.New(),
		args:     args,
		cfg:      cfg,
		clock:    clk,
		global:   global,
		snapshot: snap,
		graph:    dependencyGraph{capacity: cfg.MaxOwnedDependents},
	}
	if global != nil && global.Sorter != nil && global.Sorter.FirstContentfulPaintReceived() {
		global.Sorter.AddNewFrame(args)
	}
	return r
}

// ID returns the reporter's unique identity.
func (r *FrameReporter) ID() uuid.UUID { return r.id }

// FrameID returns the begin-frame ID of the frame.
func (r *FrameReporter) FrameID() frame.ID { return r.args.ID }

// Args returns the begin-frame args of the frame.
func (r *FrameReporter) Args() frame.Args { return r.args }

// State returns the lifecycle state.
func (r *FrameReporter) State() State {
	switch {
	case r.terminated:
		return Terminated
	case r.stages.Len() > 0:
		return StagesInProgress
	default:
		if _, open := r.stages.Current(); open {
			return StagesInProgress
		}
		return Created
	}
}

// Status returns the termination status (StatusUnknown until terminated).
func (r *FrameReporter) Status() TerminationStatus { return r.status }

// TerminationTime returns when the frame terminated.
func (r *FrameReporter) TerminationTime() time.Time { return r.terminationTime }

// IsTerminated reports whether TerminateFrame has been called.
func (r *FrameReporter) IsTerminated() bool { return r.terminated }

// IsFinalized reports whether Finalize has run (or the reporter was evicted).
func (r *FrameReporter) IsFinalized() bool { return r.finalized || r.discarded }

// StageHistory returns the completed stages.
func (r *FrameReporter) StageHistory() []stage.Record { return r.stages.History() }

// StartStage closes the open stage and opens kind at t. Ignored once
// terminated.
func (r *FrameReporter) StartStage(kind stage.Type, t time.Time) {
	if r.terminated {
		slog.Debug("reporter: StartStage after termination ignored",
			"frame_id", r.args.ID.String(),
			"stage", kind.String(),
		)
		return
	}
	r.stages.StartStage(kind, t)
	switch kind {
	case stage.SendBeginMainFrameToCommit:
		if r.blinkStart.IsZero() {
			r.blinkStart = t
		}
	case stage.SubmitCompositorFrameToPresentationCompositorFrame:
		if r.vizStart.IsZero() {
			r.vizStart = t
		}
	}
}

// TerminateFrame closes the open stage at t and records status. Only the
// first call has an effect.
func (r *FrameReporter) TerminateFrame(status TerminationStatus, t time.Time) {
	if r.terminated {
		return
	}
	r.terminated = true
	r.status = status
	r.terminationTime = t
	r.stages.CloseCurrentStage(t)
	slog.Debug("reporter: frame terminated",
		"frame_id", r.args.ID.String(),
		"status", status.String(),
	)
}

// AddEventsMetrics attaches events to the frame. Ignored after Finalize.
func (r *FrameReporter) AddEventsMetrics(evs ...*events.Metrics) {
	if r.IsFinalized() {
		slog.Warn("reporter: events added after finalize dropped",
			"frame_id", r.args.ID.String(),
			"events", len(evs),
		)
		return
	}
	r.events.AddEvents(evs...)
}

// EventsMetrics returns the attached events. Must not be modified.
func (r *FrameReporter) EventsMetrics() []*events.Metrics { return r.events.Records() }

// TakeEventsMetrics removes and returns every attached event.
func (r *FrameReporter) TakeEventsMetrics() []*events.Metrics { return r.events.TakeAll() }

// TakeMainBlockedEventsMetrics removes and returns the events that need a
// main-thread update.
func (r *FrameReporter) TakeMainBlockedEventsMetrics() []*events.Metrics {
	return r.events.TakeMainBlocked()
}

// SetBlinkBreakdown records the main-thread breakdown and when the main
// frame started.
func (r *FrameReporter) SetBlinkBreakdown(m BeginMainFrameMetrics, beginMainStart time.Time) {
	r.blinkMetrics = m
	r.beginMainFrameStart = beginMainStart
}

// SetVizBreakdown records the display-compositor timestamps.
func (r *FrameReporter) SetVizBreakdown(d FrameTimingDetails) {
	r.vizDetails = d
}

// OnFinishImplFrame marks the impl frame finished at t.
func (r *FrameReporter) OnFinishImplFrame(t time.Time) {
	r.didFinishImplFrame = true
	r.implFrameFinishTime = t
}

// OnAbortBeginMainFrame marks the main frame aborted at t. The abort time
// also ends the impl part of the frame.
func (r *FrameReporter) OnAbortBeginMainFrame(t time.Time) {
	r.mainFrameAbortTime = t
	r.implFrameFinishTime = t
}

// OnDidNotProduceFrame records that no compositor frame was produced.
func (r *FrameReporter) OnDidNotProduceFrame(reason frame.SkippedReason) {
	r.didNotProduceTime = r.clock.Now()
	r.skipReason = reason
	r.hasSkipReason = true
}

func (r *FrameReporter) DidFinishImplFrame() bool          { return r.didFinishImplFrame }
func (r *FrameReporter) ImplFrameFinishTime() time.Time    { return r.implFrameFinishTime }
func (r *FrameReporter) DidAbortMainFrame() bool           { return !r.mainFrameAbortTime.IsZero() }
func (r *FrameReporter) MainFrameAbortTime() time.Time     { return r.mainFrameAbortTime }
func (r *FrameReporter) DidNotProduceFrame() bool          { return !r.didNotProduceTime.IsZero() }
func (r *FrameReporter) DidNotProduceFrameTime() time.Time { return r.didNotProduceTime }

// SkipReason returns the recorded skip reason, if any.
func (r *FrameReporter) SkipReason() (frame.SkippedReason, bool) {
	return r.skipReason, r.hasSkipReason
}

// SetKind marks the reporter as carrying the main-thread or impl update.
func (r *FrameReporter) SetKind(k Kind) { r.kind = k }

// Kind returns the submitted reporter kind.
func (r *FrameReporter) Kind() Kind { return r.kind }

// EnableCompositorOnlyReporting makes the frame report even if it ends with
// no update desired.
func (r *FrameReporter) EnableCompositorOnlyReporting() {
	r.reportTypes |= CompositorOnlyFrame
}

// SetAccompaniedByMainThreadUpdate records whether the impl frame was
// submitted together with a new main-thread update.
func (r *FrameReporter) SetAccompaniedByMainThreadUpdate(v bool) {
	r.accompaniedByMainThreadUpdate = v
}

// SetNormalizedInvalidatedArea sets the paint metric value (0..1+).
func (r *FrameReporter) SetNormalizedInvalidatedArea(area *float64) {
	r.paintArea = area
}

// SetIsBackfill marks a reporter synthesized for a skipped begin-frame.
func (r *FrameReporter) SetIsBackfill(v bool) { r.isBackfill = v }

// IsBackfill reports whether the reporter was synthesized.
func (r *FrameReporter) IsBackfill() bool { return r.isBackfill }

// IsForked reports whether the reporter was copied at the begin-impl stage.
func (r *FrameReporter) IsForked() bool { return r.isForked }

// HasPartialUpdate reports whether the frame is missing main-thread work
// that another reporter decides on.
func (r *FrameReporter) HasPartialUpdate() bool { return r.hasPartialUpdate }

// DidSuccessfullyPresentFrame is called once the frame and any carried-over
// events were presented.
func (r *FrameReporter) DidSuccessfullyPresentFrame() {
	r.presented = true
}

// SetPartialUpdateDecider registers r as a non-owning dependent of decider.
func (r *FrameReporter) SetPartialUpdateDecider(decider *FrameReporter) {
	if decider == nil || decider == r {
		return
	}
	if len(r.graph.dependents) > 0 {
		slog.Warn("reporter: decider cannot itself depend on another reporter",
			"frame_id", r.args.ID.String(),
		)
		return
	}
	r.hasPartialUpdate = true
	r.decider = decider
	decider.graph.Push(r, false)
}

// PartialUpdateDecider returns the decider while it is alive.
func (r *FrameReporter) PartialUpdateDecider() *FrameReporter {
	if r.decider == nil || !r.decider.alive() {
		return nil
	}
	return r.decider
}

// AdoptReporter takes ownership of dependent. Its main-thread-blocked events
// move into r. When the owned queue exceeds its bound, the oldest owned
// dependents are discarded without emitting.
func (r *FrameReporter) AdoptReporter(dependent *FrameReporter) {
	if dependent == nil || dependent == r {
		return
	}
	r.AddEventsMetrics(dependent.TakeMainBlockedEventsMetrics()...)
	r.graph.Push(dependent, true)
}

// OwnedDependents returns the number of owned dependents.
func (r *FrameReporter) OwnedDependents() int { return len(r.graph.owned) }

// Dependents returns the number of non-owning dependents.
func (r *FrameReporter) Dependents() int { return len(r.graph.dependents) }

// CopyReporterAtBeginImplStage forks a reporter for the impl part of this
// frame, depending on r for partial-update information.
//
// Returns nil unless the frame started at BeginImplFrame and its impl frame
// finished (or did not produce).
func (r *FrameReporter) CopyReporterAtBeginImplStage() *FrameReporter {
	if r.decider != nil {
		return nil
	}
	h := r.stages.History()
	if len(h) == 0 || h[0].Kind != stage.BeginImplFrameToSendBeginMainFrame {
		return nil
	}
	if !r.didFinishImplFrame && r.didNotProduceTime.IsZero() {
		return nil
	}

	c := New(r.args, r.snapshot, r.cfg, r.clock, r.global)
	c.didFinishImplFrame = r.didFinishImplFrame
	c.implFrameFinishTime = r.implFrameFinishTime
	c.mainFrameAbortTime = r.mainFrameAbortTime
	c.stages.StartStage(stage.BeginImplFrameToSendBeginMainFrame, h[0].Start)
	c.isForked = true
	c.SetPartialUpdateDecider(r)
	return c
}

// alive reports whether non-owning references to r are still valid.
func (r *FrameReporter) alive() bool { return !r.finalized && !r.discarded }

// discard drops the reporter without emitting, along with its owned
// dependents. The frame still resolves in the sorter so later frames are
// released.
func (r *FrameReporter) discard() {
	if r.discarded || r.finalized {
		return
	}
	r.discarded = true
	if g := r.global; g != nil && g.Sorter != nil && g.Sorter.FirstContentfulPaintReceived() {
		g.Sorter.AddFrameResult(r.args, r.GenerateFrameInfo())
	}
	for _, d := range r.graph.takeOwned() {
		d.discard()
	}
}
