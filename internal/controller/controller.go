package controller

import (
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/clock"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/frame"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/reporter"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/stage"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/trackers"
)

// Controller holds at most one reporter per pipeline stage slot and the
// queue of submitted reporters awaiting presentation.
//
// Ownership: a reporter dropped by the controller (replaced in a slot,
// resolved on presentation, synthesized for a skipped frame) is finalized
// unless another reporter adopted it.
//
// Thread-safety: NOT safe for concurrent use, except Stats. Calls must be
// serialized on the compositor sequence.
type Controller struct {
	cfg      Config
	clock    clock.Clock
	global   *reporter.GlobalTrackers
	trackers *trackers.Collection

	reporters [NumPipelineStages]*reporter.FrameReporter
	submitted []submittedFrame
	dropped   []droppedEvents

	last      lastStarted
	lastValid bool

	lastSubmittedFrameID        frame.ID
	beginMainFrameStartTime     time.Time
	nextActivateHasInvalidation bool

	visible                  bool
	waitingForPresentVisible bool
	closed                   bool

	framesStarted      atomic.Uint64
	framesSubmitted    atomic.Uint64
	framesPresented    atomic.Uint64
	framesNotPresented atomic.Uint64
	framesBackfilled   atomic.Uint64
	framesFinalized    atomic.Uint64
	pendingSubmitted   atomic.Int64
	droppedEventSets   atomic.Int64
	occupied           atomic.Uint32
}

// New creates a controller. global must outlive the controller; tr may be
// nil when no frame-sequence trackers are running.
func New(cfg Config, clk clock.Clock, global *reporter.GlobalTrackers, tr *trackers.Collection) (*Controller, error) {
	if global == nil {
		return nil, fmt.Errorf("controller: global trackers are required")
	}
	if cfg.Reporter.MaxOwnedDependents <= 0 {
		cfg.Reporter.MaxOwnedDependents = reporter.DefaultMaxOwnedDependents
	}
	if cfg.MaxBackfillFrames <= 0 {
		cfg.MaxBackfillFrames = MaxBackfilledFrames
	}
	if err := global.Validate(cfg.Reporter); err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Controller{
		cfg:      cfg,
		clock:    clk,
		global:   global,
		trackers: tr,
		visible:  true,
	}, nil
}

func (c *Controller) now() time.Time { return c.clock.Now() }

func (c *Controller) snapshot() reporter.TrackerSnapshot {
	if c.trackers == nil {
		return reporter.TrackerSnapshot{}
	}
	return reporter.TrackerSnapshot{
		Active:    c.trackers.ActiveTrackers(),
		Smooth:    c.trackers.SmoothThread(),
		Scrolling: c.trackers.ScrollingThread(),
	}
}

func (c *Controller) newReporter(args frame.Args, snap reporter.TrackerSnapshot) *reporter.FrameReporter {
	return reporter.New(args, snap, c.cfg.Reporter, c.clock, c.global)
}

// release finalizes a reporter the controller no longer holds.
func (c *Controller) release(r *reporter.FrameReporter) {
	if r == nil || r.IsFinalized() {
		return
	}
	r.Finalize()
	c.framesFinalized.Add(1)
}

// setSlot stores r in slot s, finalizing the previous occupant.
func (c *Controller) setSlot(s PipelineStage, r *reporter.FrameReporter) {
	if old := c.reporters[s]; old != nil && old != r {
		c.release(old)
	}
	c.reporters[s] = r
	c.updateOccupancy()
}

// takeSlot empties slot s without finalizing its reporter.
func (c *Controller) takeSlot(s PipelineStage) *reporter.FrameReporter {
	r := c.reporters[s]
	c.reporters[s] = nil
	c.updateOccupancy()
	return r
}

func (c *Controller) updateOccupancy() {
	var bits uint32
	for i, r := range c.reporters {
		if r != nil {
			bits |= 1 << uint(i)
		}
	}
	c.occupied.Store(bits)
}

// HasReporterAt reports whether slot s holds a reporter.
func (c *Controller) HasReporterAt(s PipelineStage) bool {
	return s >= 0 && s < NumPipelineStages && c.reporters[s] != nil
}

// ReporterAt returns the reporter in slot s, or nil.
func (c *Controller) ReporterAt(s PipelineStage) *reporter.FrameReporter {
	if s < 0 || s >= NumPipelineStages {
		return nil
	}
	return c.reporters[s]
}

// WillBeginImplFrame starts a reporter for args in the BeginImplFrame slot.
//
// Skipped begin-frames since the previous args are backfilled first. A
// reporter still in the slot is terminated as DidNotProduceFrame when it was
// flagged, else ReplacedByNewReporter.
func (c *Controller) WillBeginImplFrame(args frame.Args) {
	if c.closed {
		return
	}
	c.processSkippedFramesIfNecessary(args)
	c.framesStarted.Add(1)

	beginTime := c.now()
	if old := c.reporters[BeginImplFrame]; old != nil {
		if old.DidNotProduceFrame() {
			old.TerminateFrame(reporter.DidNotProduceFrame, old.DidNotProduceFrameTime())
		} else {
			old.TerminateFrame(reporter.ReplacedByNewReporter, beginTime)
		}
	}

	r := c.newReporter(args, c.snapshot())
	r.StartStage(stage.BeginImplFrameToSendBeginMainFrame, beginTime)
	c.setSlot(BeginImplFrame, r)

	slog.Debug("controller: begin impl frame",
		"frame_id", args.ID.String(),
		"frame_time", args.FrameTime,
	)
}

// WillBeginMainFrame moves the begin-impl reporter into the BeginMainFrame
// slot. When the impl frame was already submitted, a new reporter is started
// at the main-frame stage.
func (c *Controller) WillBeginMainFrame(args frame.Args) {
	if c.closed {
		return
	}
	if r := c.reporters[BeginImplFrame]; r != nil {
		if r.FrameID() != args.ID {
			slog.Warn("controller: begin main frame for a different frame",
				"expected", r.FrameID().String(),
				"got", args.ID.String(),
			)
		}
		r.StartStage(stage.SendBeginMainFrameToCommit, c.now())
		c.advanceReporterStage(BeginImplFrame, BeginMainFrame)
		return
	}

	snap := c.snapshot()
	if c.lastValid && args.ID == c.last.args.ID {
		snap = c.last.snap
	}
	r := c.newReporter(args, snap)
	r.StartStage(stage.SendBeginMainFrameToCommit, c.now())
	c.setSlot(BeginMainFrame, r)
}

// BeginMainFrameStarted records when the main thread started the main frame.
func (c *Controller) BeginMainFrameStarted(t time.Time) {
	if c.closed {
		return
	}
	c.beginMainFrameStartTime = t
}

// BeginMainFrameAborted marks the main-frame reporter aborted. It stays in
// its slot: the impl part of the frame can still be submitted.
func (c *Controller) BeginMainFrameAborted(id frame.ID, reason CommitEarlyOutReason) {
	if c.closed {
		return
	}
	r := c.reporters[BeginMainFrame]
	if r == nil {
		slog.Warn("controller: begin main frame aborted without a reporter",
			"frame_id", id.String(),
		)
		return
	}
	r.OnAbortBeginMainFrame(c.now())
	if reason == FinishedNoUpdates {
		c.DidNotProduceFrame(id, frame.SkippedNoDamage)
	}
}

// NotifyReadyToCommit attaches the main-thread breakdown and moves the
// reporter to the ReadyToCommit slot.
func (c *Controller) NotifyReadyToCommit(details reporter.BeginMainFrameMetrics) {
	if c.closed {
		return
	}
	r := c.reporters[BeginMainFrame]
	if r == nil {
		slog.Warn("controller: ready to commit without a main-frame reporter")
		return
	}
	r.SetBlinkBreakdown(details, c.beginMainFrameStartTime)
	c.advanceReporterStage(BeginMainFrame, ReadyToCommit)
}

// WillCommit starts the commit stage.
func (c *Controller) WillCommit() {
	if c.closed {
		return
	}
	r := c.reporters[ReadyToCommit]
	if r == nil {
		slog.Warn("controller: commit without a ready-to-commit reporter")
		return
	}
	r.StartStage(stage.Commit, c.now())
}

// DidCommit ends the commit and moves the reporter to the Commit slot.
func (c *Controller) DidCommit() {
	if c.closed {
		return
	}
	r := c.reporters[ReadyToCommit]
	if r == nil {
		slog.Warn("controller: did commit without a ready-to-commit reporter")
		return
	}
	r.StartStage(stage.EndCommitToActivation, c.now())
	c.advanceReporterStage(ReadyToCommit, Commit)
}

// WillInvalidateOnImplSide allows the next activation without a commit.
func (c *Controller) WillInvalidateOnImplSide() {
	if c.closed {
		return
	}
	c.nextActivateHasInvalidation = true
}

// WillActivate starts the activation stage.
func (c *Controller) WillActivate() {
	if c.closed {
		return
	}
	r := c.reporters[Commit]
	if r == nil {
		if !c.nextActivateHasInvalidation {
			slog.Warn("controller: activation without a committed reporter")
		}
		return
	}
	r.StartStage(stage.Activation, c.now())
}

// DidActivate ends activation and moves the reporter to the Activate slot.
func (c *Controller) DidActivate() {
	if c.closed {
		return
	}
	hadInvalidation := c.nextActivateHasInvalidation
	c.nextActivateHasInvalidation = false
	r := c.reporters[Commit]
	if r == nil {
		if !hadInvalidation {
			slog.Warn("controller: did activate without a committed reporter")
		}
		return
	}
	r.StartStage(stage.EndActivateToSubmitCompositorFrame, c.now())
	c.advanceReporterStage(Commit, Activate)
}

// DidSubmitCompositorFrame queues the reporters whose updates are in the
// submitted frame.
//
// A submitted frame can carry two updates:
//   - main: the newly activated main-thread update (Activate slot), when
//     lastActivatedID differs from the previously submitted one
//   - impl: the compositor update for currentID, taken from the
//     BeginImplFrame slot, an aborted main frame, or forked from a reporter
//     still waiting on the main thread
//
// Impl events with no impl reporter are merged into the main reporter.
func (c *Controller) DidSubmitCompositorFrame(info SubmitInfo, currentID, lastActivatedID frame.ID) {
	if c.closed {
		return
	}
	isActivatedFrameNew := lastActivatedID != c.lastSubmittedFrameID

	var mainReporter, implReporter *reporter.FrameReporter
	if isActivatedFrameNew {
		mainReporter = c.takeSlot(Activate)
		if mainReporter != nil && mainReporter.FrameID() != lastActivatedID {
			slog.Warn("controller: activated reporter does not match the activated frame",
				"reporter", mainReporter.FrameID().String(),
				"activated", lastActivatedID.String(),
			)
		}
		c.lastSubmittedFrameID = lastActivatedID
	}

	switch {
	case c.canSubmitImplFrame(currentID):
		r := c.reporters[BeginImplFrame]
		r.StartStage(stage.EndActivateToSubmitCompositorFrame, r.ImplFrameFinishTime())
		c.advanceReporterStage(BeginImplFrame, Activate)
		implReporter = c.takeSlot(Activate)
		if decider := c.outstandingUpdatesFromMain(currentID); decider != nil {
			implReporter.SetPartialUpdateDecider(decider)
		}

	case c.canSubmitMainFrame(currentID):
		r := c.reporters[BeginMainFrame]
		r.StartStage(stage.EndActivateToSubmitCompositorFrame, r.ImplFrameFinishTime())
		c.advanceReporterStage(BeginMainFrame, Activate)
		implReporter = c.takeSlot(Activate)

	default:
		if r := c.restoreReporterAtBeginImpl(currentID); r != nil {
			r.StartStage(stage.EndActivateToSubmitCompositorFrame, r.ImplFrameFinishTime())
			implReporter = r
		}
	}

	evs := info.Events
	if implReporter == nil && (len(evs.Impl) > 0 || len(evs.Raster) > 0) {
		if mainReporter == nil {
			slog.Warn("controller: submitted events without a reporter",
				"frame_token", info.FrameToken,
				"events", len(evs.Main)+len(evs.Impl)+len(evs.Raster),
			)
		}
		evs.Main = slices.Concat(evs.Main, evs.Impl, evs.Raster)
		evs.Impl, evs.Raster = nil, nil
	}

	if mainReporter != nil {
		mainReporter.StartStage(stage.SubmitCompositorFrameToPresentationCompositorFrame, info.Time)
		mainReporter.AddEventsMetrics(evs.Main...)
		mainReporter.SetKind(reporter.KindMain)
		c.enqueueSubmitted(info.FrameToken, mainReporter)
	}

	if implReporter != nil {
		implReporter.EnableCompositorOnlyReporting()
		implReporter.StartStage(stage.SubmitCompositorFrameToPresentationCompositorFrame, info.Time)
		implReporter.AddEventsMetrics(evs.Impl...)
		implReporter.AddEventsMetrics(evs.Raster...)
		implReporter.SetAccompaniedByMainThreadUpdate(isActivatedFrameNew)
		implReporter.SetKind(reporter.KindImpl)
		implReporter.SetNormalizedInvalidatedArea(info.NormalizedInvalidatedArea)
		c.enqueueSubmitted(info.FrameToken, implReporter)
	}

	slog.Debug("controller: compositor frame submitted",
		"frame_token", info.FrameToken,
		"current_frame", currentID.String(),
		"main", mainReporter != nil,
		"impl", implReporter != nil,
	)
}

func (c *Controller) enqueueSubmitted(token uint32, r *reporter.FrameReporter) {
	c.submitted = append(c.submitted, submittedFrame{token: token, reporter: r})
	c.framesSubmitted.Add(1)
	c.pendingSubmitted.Store(int64(len(c.submitted)))
}

// DidNotProduceFrame flags the reporter of id. It terminates when replaced,
// since its main-thread update can still be submitted with a later frame.
func (c *Controller) DidNotProduceFrame(id frame.ID, reason frame.SkippedReason) {
	if c.closed {
		return
	}
	for s := BeginImplFrame; s < NumPipelineStages; s++ {
		r := c.reporters[s]
		if r == nil || r.FrameID() != id {
			continue
		}
		r.OnDidNotProduceFrame(reason)
		if reason == frame.SkippedWaitingOnMain {
			c.setPartialUpdateDeciderWhenWaitingOnMain(s)
		}
		return
	}
}

// setPartialUpdateDeciderWhenWaitingOnMain links a frame that produced
// nothing while waiting on main to the reporter carrying that main update.
func (c *Controller) setPartialUpdateDeciderWhenWaitingOnMain(s PipelineStage) {
	stageReporter := c.reporters[s]
	if r := c.restoreReporterAtBeginImpl(stageReporter.FrameID()); r != nil {
		r.OnDidNotProduceFrame(frame.SkippedWaitingOnMain)
		r.TerminateFrame(reporter.DidNotProduceFrame, c.now())
		stageReporter.AdoptReporter(r)
		return
	}

	decider := c.outstandingUpdatesFromMain(stageReporter.FrameID())
	if decider == nil {
		return
	}
	stageReporter.SetPartialUpdateDecider(decider)
	stageReporter.OnDidNotProduceFrame(frame.SkippedWaitingOnMain)
	stageReporter.TerminateFrame(reporter.DidNotProduceFrame, c.now())
	decider.AdoptReporter(c.takeSlot(s))
}

// OnFinishImplFrame marks the impl frame of id finished.
func (c *Controller) OnFinishImplFrame(id frame.ID) {
	if c.closed {
		return
	}
	for _, r := range c.reporters {
		if r != nil && r.FrameID() == id {
			r.OnFinishImplFrame(c.now())
			return
		}
	}
}

// DidPresentCompositorFrame resolves the submitted reporters up to token.
//
// Earlier tokens were dropped. With failed feedback, earlier tokens stay
// queued (they may still present) and only token is dropped. Presented
// reporters pick up events stored from dropped frames; dropped ones store
// theirs for the next presented frame.
func (c *Controller) DidPresentCompositorFrame(token uint32, details reporter.FrameTimingDetails) {
	if c.closed {
		return
	}
	failed := details.Presentation.Failed

	i := 0
	for i < len(c.submitted) && !tokenGT(c.submitted[i].token, token) {
		sf := c.submitted[i]
		earlier := sf.token != token
		if failed && earlier {
			i++
			continue
		}

		status := reporter.PresentedFrame
		if failed || earlier {
			status = reporter.DidNotPresentFrame
		}

		r := sf.reporter
		r.SetVizBreakdown(details)
		r.TerminateFrame(status, details.Presentation.Timestamp)

		if c.waitingForPresentVisible {
			c.waitingForPresentVisible = false
			c.eraseDroppedEventsBefore(sf.token)
		}

		adopted := false
		if status == reporter.PresentedFrame {
			c.framesPresented.Add(1)
			if decider := r.PartialUpdateDecider(); decider != nil {
				decider.AdoptReporter(r)
				adopted = true
			}
			sameFrameNext := i+1 < len(c.submitted) && c.submitted[i+1].token == sf.token
			c.maybePassEventMetricsFromDroppedFrames(r, sf.token, sameFrameNext)
			r.DidSuccessfullyPresentFrame()
		} else {
			c.framesNotPresented.Add(1)
			c.storeEventMetricsFromDroppedFrames(r, sf.token)
		}

		c.submitted[i] = submittedFrame{}
		c.submitted = append(c.submitted[:i], c.submitted[i+1:]...)
		c.pendingSubmitted.Store(int64(len(c.submitted)))

		if !adopted {
			c.release(r)
		}
	}
}

// OnStoppedRequestingBeginFrames terminates every slot reporter as not
// produced. They are finalized when replaced or on Close.
func (c *Controller) OnStoppedRequestingBeginFrames() {
	if c.closed {
		return
	}
	now := c.now()
	for _, r := range c.reporters {
		if r != nil {
			r.OnDidNotProduceFrame(frame.SkippedNoDamage)
			r.TerminateFrame(reporter.DidNotProduceFrame, now)
		}
	}
	c.last = lastStarted{}
	c.lastValid = false
}

// SetVisible records page visibility. After becoming visible, events kept
// from frames dropped while hidden are discarded on the next presentation.
func (c *Controller) SetVisible(visible bool) {
	if c.visible == visible {
		return
	}
	c.visible = visible
	if visible {
		c.waitingForPresentVisible = true
	}
	slog.Debug("controller: visibility changed", "visible", visible)
}

// Visible reports the last visibility set.
func (c *Controller) Visible() bool { return c.visible }

// SetFirstContentfulPaintReceived starts frame sorting.
func (c *Controller) SetFirstContentfulPaintReceived() {
	c.global.Sorter.SetFirstContentfulPaintReceived()
}

// Close terminates and finalizes every reporter the controller holds. Slot
// reporters end as DidNotProduceFrame, submitted ones as DidNotPresentFrame.
// Lifecycle calls after Close are ignored.
func (c *Controller) Close() error {
	if c.closed {
		return ErrClosed
	}
	c.closed = true

	now := c.now()
	for s := BeginImplFrame; s < NumPipelineStages; s++ {
		if r := c.takeSlot(s); r != nil {
			r.TerminateFrame(reporter.DidNotProduceFrame, now)
			c.release(r)
		}
	}
	for _, sf := range c.submitted {
		sf.reporter.TerminateFrame(reporter.DidNotPresentFrame, now)
		c.release(sf.reporter)
	}
	c.submitted = nil
	c.dropped = nil
	c.pendingSubmitted.Store(0)
	c.droppedEventSets.Store(0)

	slog.Info("controller: closed",
		"frames_started", c.framesStarted.Load(),
		"frames_presented", c.framesPresented.Load(),
		"frames_backfilled", c.framesBackfilled.Load(),
	)
	return nil
}

// Stats returns a snapshot of controller counters. Safe for concurrent use.
func (c *Controller) Stats() Stats {
	bits := c.occupied.Load()
	var slots []PipelineStage
	for s := BeginImplFrame; s < NumPipelineStages; s++ {
		if bits&(1<<uint(s)) != 0 {
			slots = append(slots, s)
		}
	}
	return Stats{
		FramesStarted:      c.framesStarted.Load(),
		FramesSubmitted:    c.framesSubmitted.Load(),
		FramesPresented:    c.framesPresented.Load(),
		FramesNotPresented: c.framesNotPresented.Load(),
		FramesBackfilled:   c.framesBackfilled.Load(),
		FramesFinalized:    c.framesFinalized.Load(),
		PendingSubmitted:   int(c.pendingSubmitted.Load()),
		DroppedEventSets:   int(c.droppedEventSets.Load()),
		OccupiedSlots:      slots,
	}
}

// advanceReporterStage moves the reporter in start to target, terminating
// and finalizing the reporter previously in target.
//
// The replaced reporter ends as DidNotProduceFrame when flagged. An aborted
// main frame replaced in the BeginMainFrame slot ends as MainFrameAborted at
// its abort time. Otherwise it is ReplacedByNewReporter.
func (c *Controller) advanceReporterStage(start, target PipelineStage) {
	if old := c.reporters[target]; old != nil {
		switch {
		case old.DidNotProduceFrame():
			old.TerminateFrame(reporter.DidNotProduceFrame, old.DidNotProduceFrameTime())
		case target == BeginMainFrame && old.DidAbortMainFrame():
			old.TerminateFrame(reporter.MainFrameAborted, old.MainFrameAbortTime())
		default:
			old.TerminateFrame(reporter.ReplacedByNewReporter, c.now())
		}
	}
	c.setSlot(target, c.takeSlot(start))
}

func (c *Controller) canSubmitImplFrame(id frame.ID) bool {
	r := c.reporters[BeginImplFrame]
	if r == nil {
		return false
	}
	if r.FrameID() != id || !r.DidFinishImplFrame() {
		slog.Debug("controller: submitting begin-impl reporter out of step",
			"reporter", r.FrameID().String(),
			"current", id.String(),
			"finished", r.DidFinishImplFrame(),
		)
	}
	return true
}

func (c *Controller) canSubmitMainFrame(id frame.ID) bool {
	r := c.reporters[BeginMainFrame]
	return r != nil && r.FrameID() == id && r.DidFinishImplFrame() && r.DidAbortMainFrame()
}

// restoreReporterAtBeginImpl forks the impl part of id from the reporter
// still waiting on the main thread for it.
func (c *Controller) restoreReporterAtBeginImpl(id frame.ID) *reporter.FrameReporter {
	for _, s := range []PipelineStage{BeginMainFrame, ReadyToCommit, Commit} {
		if r := c.reporters[s]; r != nil && r.FrameID() == id {
			return r.CopyReporterAtBeginImplStage()
		}
	}
	return nil
}

// outstandingUpdatesFromMain returns the reporter of an earlier frame whose
// main-thread update is still pending.
func (c *Controller) outstandingUpdatesFromMain(id frame.ID) *reporter.FrameReporter {
	if r := c.reporters[BeginMainFrame]; r != nil && r.FrameID().Less(id) && !r.DidAbortMainFrame() {
		return r
	}
	if r := c.reporters[ReadyToCommit]; r != nil && r.FrameID().Less(id) && !r.DidAbortMainFrame() {
		return r
	}
	if r := c.reporters[Commit]; r != nil && r.FrameID().Less(id) {
		return r
	}
	return nil
}
