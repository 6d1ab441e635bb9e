package controller

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/clock"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/events"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/frame"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/reporter"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/sink"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/sorter"
)

var t0 = time.Unix(2000, 0)

const step = 50 * time.Microsecond

type frameObserver struct {
	frames []frame.Info
}

func (o *frameObserver) OnFrameFinalized(_ frame.Args, info frame.Info) {
	o.frames = append(o.frames, info)
}

func (o *frameObserver) OnEventLatencies(frame.Args, []reporter.EventLatencyData) {}

type harness struct {
	clk *clock.Fake
	rec *sink.Recorder
	obs *frameObserver
	c   *Controller
	seq uint64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewFake(t0)
	rec := sink.NewRecorder()
	obs := &frameObserver{}
	global := &reporter.GlobalTrackers{
		Histograms: rec,
		Structured: rec,
		Sorter:     sorter.New(sorter.DefaultBufferSize),
		Observer:   obs,
	}
	c, err := New(DefaultConfig(), clk, global, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return &harness{clk: clk, rec: rec, obs: obs, c: c}
}

// nextArgs returns begin-frame args skipping `skip` sequence numbers.
func (h *harness) nextArgs(skip uint64) frame.Args {
	h.seq += 1 + skip
	now := h.clk.Now()
	return frame.Args{
		ID:        frame.ID{SourceID: 1, SequenceNumber: h.seq},
		FrameTime: now,
		Deadline:  now.Add(16 * time.Millisecond),
		Interval:  16 * time.Millisecond,
	}
}

func (h *harness) tick() time.Time { return h.clk.Advance(step) }

// beginMain drives args from begin-impl into the BeginMainFrame slot.
func (h *harness) beginMain(args frame.Args) {
	h.c.WillBeginImplFrame(args)
	h.tick()
	h.c.WillBeginMainFrame(args)
	h.c.BeginMainFrameStarted(h.tick())
}

// commitAndActivate drives the BeginMainFrame reporter into Activate.
func (h *harness) commitAndActivate() {
	h.tick()
	h.c.NotifyReadyToCommit(reporter.BeginMainFrameMetrics{})
	h.c.WillCommit()
	h.tick()
	h.c.DidCommit()
	h.tick()
	h.c.WillActivate()
	h.tick()
	h.c.DidActivate()
}

// submitMainFrame runs a full main-thread frame and submits it as token.
func (h *harness) submitMainFrame(token uint32, evs ...*events.Metrics) frame.Args {
	args := h.nextArgs(0)
	h.beginMain(args)
	h.commitAndActivate()
	h.c.OnFinishImplFrame(args.ID)
	h.c.DidSubmitCompositorFrame(SubmitInfo{
		FrameToken: token,
		Time:       h.tick(),
		Events:     EventMetricsSet{Main: evs},
	}, args.ID, args.ID)
	return args
}

func (h *harness) present(token uint32, failed bool) {
	h.c.DidPresentCompositorFrame(token, reporter.FrameTimingDetails{
		Presentation: reporter.PresentationFeedback{Timestamp: h.tick(), Failed: failed},
	})
}

// TestNewValidatesGlobalTrackers verifies construction errors.
func TestNewValidatesGlobalTrackers(t *testing.T) {
	if _, err := New(DefaultConfig(), nil, nil, nil); err == nil {
		t.Errorf("Expected error for nil global trackers")
	}

	_, err := New(DefaultConfig(), nil, &reporter.GlobalTrackers{Histograms: sink.NewRecorder()}, nil)
	if !errors.Is(err, reporter.ErrNoSorter) {
		t.Errorf("Expected ErrNoSorter, got %v", err)
	}
}

// TestPresentedFrameThroughPipeline verifies a frame driven through every
// slot reports each stage once.
func TestPresentedFrameThroughPipeline(t *testing.T) {
	h := newHarness(t)
	args := h.nextArgs(0)

	h.beginMain(args)
	if !h.c.HasReporterAt(BeginMainFrame) || h.c.HasReporterAt(BeginImplFrame) {
		t.Fatalf("Expected reporter in BeginMainFrame slot only, got %v", h.c.Stats().OccupiedSlots)
	}
	h.commitAndActivate()
	if got := h.c.Stats().OccupiedSlots; !cmp.Equal(got, []PipelineStage{Activate}) {
		t.Fatalf("Expected only Activate occupied, got %v", got)
	}

	h.c.OnFinishImplFrame(args.ID)
	h.c.DidSubmitCompositorFrame(SubmitInfo{FrameToken: 1, Time: h.tick()}, args.ID, args.ID)
	if got := h.c.Stats().PendingSubmitted; got != 1 {
		t.Fatalf("Expected 1 pending submitted frame, got %d", got)
	}

	h.present(1, false)

	for _, name := range []string{
		"CompositorLatency2.BeginImplFrameToSendBeginMainFrame",
		"CompositorLatency2.SendBeginMainFrameToCommit",
		"CompositorLatency2.Commit",
		"CompositorLatency2.EndCommitToActivation",
		"CompositorLatency2.Activation",
		"CompositorLatency2.EndActivateToSubmitCompositorFrame",
		"CompositorLatency2.SubmitCompositorFrameToPresentationCompositorFrame",
		"CompositorLatency2.TotalLatency",
	} {
		if got := h.rec.Count(name); got != 1 {
			t.Errorf("%s: expected count 1, got %d", name, got)
		}
	}

	// Begin-impl at t0, presentation after 8 ticks.
	if diff := cmp.Diff([]int64{400}, h.rec.Samples("CompositorLatency2.TotalLatency")); diff != "" {
		t.Errorf("TotalLatency mismatch (-want +got):\n%s", diff)
	}

	st := h.c.Stats()
	if st.FramesPresented != 1 || st.FramesFinalized != 1 || st.PendingSubmitted != 0 {
		t.Errorf("Unexpected stats: %+v", st)
	}
	if len(h.obs.frames) != 1 || h.obs.frames[0].FinalState != frame.PresentedAll {
		t.Errorf("Expected one PresentedAll frame, got %+v", h.obs.frames)
	}
}

// TestBackfillSkippedFrames verifies reporters are synthesized for skipped
// begin-frames.
func TestBackfillSkippedFrames(t *testing.T) {
	tests := []struct {
		name       string
		skip       uint64
		throttled  uint64
		backfilled uint64
	}{
		{"NoGap", 0, 0, 0},
		{"GapOfFive", 4, 0, 4},
		{"ThrottledSubtracted", 4, 2, 2},
		{"AtLimit", MaxBackfilledFrames - 1, 0, MaxBackfilledFrames - 1},
		{"OverLimitIgnored", MaxBackfilledFrames + 50, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.c.WillBeginImplFrame(h.nextArgs(0))
			h.tick()

			next := h.nextArgs(tt.skip)
			next.FramesThrottledSinceLast = tt.throttled
			h.c.WillBeginImplFrame(next)

			if got := h.c.Stats().FramesBackfilled; got != tt.backfilled {
				t.Errorf("Expected %d backfilled, got %d", tt.backfilled, got)
			}

			// Backfilled frames and the replaced reporter are reported dropped.
			name := "CompositorLatency2.DroppedFrame.BeginImplFrameToSendBeginMainFrame"
			want := int(tt.backfilled) + 1
			if got := h.rec.DroppedCount(name); got != want {
				t.Errorf("Expected %d dropped samples, got %d", want, got)
			}
			if got := h.rec.Count("CompositorLatency2.BeginImplFrameToSendBeginMainFrame"); got != 0 {
				t.Errorf("Expected no non-dropped samples, got %d", got)
			}
		})
	}
}

// TestBackfilledFrameTiming verifies each synthesized frame covers one
// interval and terminates at its deadline.
func TestBackfilledFrameTiming(t *testing.T) {
	h := newHarness(t)
	first := h.nextArgs(0)
	h.c.WillBeginImplFrame(first)
	h.c.WillBeginImplFrame(h.nextArgs(2))

	var backfilled []frame.Info
	for _, f := range h.obs.frames {
		if f.SequenceNumber > first.ID.SequenceNumber && f.SequenceNumber < h.seq {
			backfilled = append(backfilled, f)
		}
	}
	if len(backfilled) != 2 {
		t.Fatalf("Expected 2 backfilled frames, got %d", len(backfilled))
	}
	for i, f := range backfilled {
		wantStart := first.FrameTime.Add(time.Duration(i+1) * first.Interval)
		if !f.FrameTime.Equal(wantStart) {
			t.Errorf("Frame %d: expected frame time %v, got %v", i, wantStart, f.FrameTime)
		}
		if !f.TerminationTime.Equal(wantStart.Add(first.Interval)) {
			t.Errorf("Frame %d: expected termination at deadline, got %v", i, f.TerminationTime)
		}
		if f.FinalState != frame.Dropped {
			t.Errorf("Frame %d: expected Dropped, got %s", i, f.FinalState)
		}
	}
	if got := h.rec.Samples("CompositorLatency2.DroppedFrame.TotalLatency"); len(got) < 2 || got[0] != 16000 {
		t.Errorf("Expected backfilled TotalLatency of one interval, got %v", got)
	}
}

// TestDroppedFrameEventsCarriedToNextPresented verifies events of a dropped
// frame are reported with the next presented frame.
func TestDroppedFrameEventsCarriedToNextPresented(t *testing.T) {
	h := newHarness(t)

	ev := events.New(events.KeyPressed, h.clk.Now())
	h.submitMainFrame(1, ev)
	h.submitMainFrame(2)

	// Presenting token 2 drops token 1.
	h.present(2, false)

	st := h.c.Stats()
	if st.FramesPresented != 1 || st.FramesNotPresented != 1 {
		t.Fatalf("Expected 1 presented and 1 dropped, got %+v", st)
	}
	if got := h.rec.Count("EventLatency.TotalLatency"); got != 1 {
		t.Fatalf("Expected the dropped frame's event reported once, got %d", got)
	}
	want := h.clk.Now().Sub(ev.GetDispatchStageTimestamp(events.Generated)).Microseconds()
	if diff := cmp.Diff([]int64{want}, h.rec.Samples("EventLatency.KeyPressed.TotalLatency")); diff != "" {
		t.Errorf("Event latency mismatch (-want +got):\n%s", diff)
	}
	if st.DroppedEventSets != 0 {
		t.Errorf("Expected carried events consumed, got %d sets", st.DroppedEventSets)
	}
}

// TestFailedPresentationKeepsEarlierFrames verifies failed feedback drops
// only its own token.
func TestFailedPresentationKeepsEarlierFrames(t *testing.T) {
	h := newHarness(t)
	h.submitMainFrame(1)
	h.submitMainFrame(2)

	h.present(2, true)
	st := h.c.Stats()
	if st.PendingSubmitted != 1 {
		t.Fatalf("Expected earlier frame to stay queued, got %d pending", st.PendingSubmitted)
	}
	if st.FramesNotPresented != 1 || st.FramesPresented != 0 {
		t.Errorf("Expected only the failed frame dropped, got %+v", st)
	}

	h.present(1, false)
	st = h.c.Stats()
	if st.FramesPresented != 1 || st.PendingSubmitted != 0 {
		t.Errorf("Expected earlier frame presented later, got %+v", st)
	}
}

// TestVisibilityDiscardsDroppedEvents verifies events kept while hidden are
// not attributed to the first frame after becoming visible.
func TestVisibilityDiscardsDroppedEvents(t *testing.T) {
	tests := []struct {
		name     string
		toggle   bool
		expected int
	}{
		{"StayVisible", false, 1},
		{"HiddenThenVisible", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.submitMainFrame(1, events.New(events.KeyPressed, h.clk.Now()))
			h.present(1, true)

			if got := h.c.Stats().DroppedEventSets; got != 1 {
				t.Fatalf("Expected 1 stored event set, got %d", got)
			}

			if tt.toggle {
				h.c.SetVisible(false)
				h.c.SetVisible(true)
			}

			h.submitMainFrame(2)
			h.present(2, false)

			if got := h.rec.Count("EventLatency.TotalLatency"); got != tt.expected {
				t.Errorf("Expected %d event samples, got %d", tt.expected, got)
			}
			if got := h.c.Stats().DroppedEventSets; got != 0 {
				t.Errorf("Expected stored events cleared, got %d", got)
			}
		})
	}
}

// TestStoppedRequestingBeginFrames verifies outstanding reporters end as
// not produced without reporting latency.
func TestStoppedRequestingBeginFrames(t *testing.T) {
	h := newHarness(t)
	h.c.WillBeginImplFrame(h.nextArgs(0))
	r := h.c.ReporterAt(BeginImplFrame)

	h.tick()
	h.c.OnStoppedRequestingBeginFrames()
	if r.Status() != reporter.DidNotProduceFrame {
		t.Fatalf("Expected DidNotProduceFrame, got %s", r.Status())
	}

	// A large gap after stopping is not backfilled.
	h.clk.Advance(time.Second)
	h.c.WillBeginImplFrame(h.nextArgs(30))

	if got := h.c.Stats().FramesBackfilled; got != 0 {
		t.Errorf("Expected no backfill after stop, got %d", got)
	}
	if !r.IsFinalized() {
		t.Errorf("Expected replaced reporter finalized")
	}
	if got := h.rec.TotalCount("CompositorLatency2"); got != 0 {
		t.Errorf("Expected no compositor latency for a no-damage frame, got %d", got)
	}
	if len(h.obs.frames) != 1 || h.obs.frames[0].FinalState != frame.NoUpdateDesired {
		t.Errorf("Expected one NoUpdateDesired frame, got %+v", h.obs.frames)
	}
}

// TestAbortedMainFrameReplaced verifies an aborted main frame replaced in
// its slot ends as MainFrameAborted at the abort time.
func TestAbortedMainFrameReplaced(t *testing.T) {
	h := newHarness(t)
	first := h.nextArgs(0)
	h.beginMain(first)

	abortAt := h.tick()
	h.c.BeginMainFrameAborted(first.ID, AbortedDeferredCommit)
	aborted := h.c.ReporterAt(BeginMainFrame)
	if !aborted.DidAbortMainFrame() || aborted.IsTerminated() {
		t.Fatalf("Expected aborted reporter kept in its slot")
	}

	h.tick()
	h.beginMain(h.nextArgs(0))

	if aborted.Status() != reporter.MainFrameAborted {
		t.Errorf("Expected MainFrameAborted, got %s", aborted.Status())
	}
	if !aborted.TerminationTime().Equal(abortAt) {
		t.Errorf("Expected termination at abort time %v, got %v", abortAt, aborted.TerminationTime())
	}
	if !aborted.IsFinalized() {
		t.Errorf("Expected replaced reporter finalized")
	}
	// Only the stages the aborted frame reached are reported.
	if got := h.rec.DroppedCount("CompositorLatency2.DroppedFrame.Commit"); got != 0 {
		t.Errorf("Expected no Commit samples, got %d", got)
	}
	if got := h.rec.DroppedCount("CompositorLatency2.DroppedFrame.SendBeginMainFrameToCommit"); got != 1 {
		t.Errorf("Expected 1 SendBeginMainFrameToCommit sample, got %d", got)
	}
}

// TestAbortedMainFrameSubmitsImplUpdate verifies the impl part of an aborted
// main frame is submitted from the BeginMainFrame slot.
func TestAbortedMainFrameSubmitsImplUpdate(t *testing.T) {
	h := newHarness(t)
	args := h.nextArgs(0)
	h.beginMain(args)
	h.c.BeginMainFrameAborted(args.ID, AbortedNotVisible)
	h.c.OnFinishImplFrame(args.ID)
	r := h.c.ReporterAt(BeginMainFrame)

	h.c.DidSubmitCompositorFrame(SubmitInfo{FrameToken: 1, Time: h.tick()}, args.ID, frame.ID{})
	if h.c.HasReporterAt(BeginMainFrame) {
		t.Fatalf("Expected BeginMainFrame slot emptied on submit")
	}
	if r.Kind() != reporter.KindImpl {
		t.Errorf("Expected impl reporter, got %s", r.Kind())
	}

	h.present(1, false)
	if r.Status() != reporter.PresentedFrame {
		t.Errorf("Expected PresentedFrame, got %s", r.Status())
	}
	if !r.ReportTypes().Has(reporter.CompositorOnlyFrame) {
		t.Errorf("Expected compositor-only reporting, got %s", r.ReportTypes())
	}
}

// TestFinishedNoUpdatesMarksNotProduced verifies an abort without updates
// flags the frame as not produced.
func TestFinishedNoUpdatesMarksNotProduced(t *testing.T) {
	h := newHarness(t)
	args := h.nextArgs(0)
	h.beginMain(args)
	h.c.BeginMainFrameAborted(args.ID, FinishedNoUpdates)

	r := h.c.ReporterAt(BeginMainFrame)
	if !r.DidNotProduceFrame() {
		t.Fatalf("Expected reporter flagged as not produced")
	}
	if reason, ok := r.SkipReason(); !ok || reason != frame.SkippedNoDamage {
		t.Errorf("Expected NoDamage skip reason, got %s (set=%v)", reason, ok)
	}

	h.tick()
	h.beginMain(h.nextArgs(0))
	if r.Status() != reporter.DidNotProduceFrame {
		t.Errorf("Expected DidNotProduceFrame on replacement, got %s", r.Status())
	}
}

// TestWaitingOnMainAdoptedByDecider verifies an impl frame that waited on
// main is owned by the reporter carrying that main update.
func TestWaitingOnMainAdoptedByDecider(t *testing.T) {
	h := newHarness(t)
	first := h.nextArgs(0)
	h.beginMain(first)
	h.c.OnFinishImplFrame(first.ID)
	decider := h.c.ReporterAt(BeginMainFrame)

	h.tick()
	second := h.nextArgs(0)
	h.c.WillBeginImplFrame(second)
	waiting := h.c.ReporterAt(BeginImplFrame)
	h.tick()
	h.c.OnFinishImplFrame(second.ID)
	h.c.DidNotProduceFrame(second.ID, frame.SkippedWaitingOnMain)

	if h.c.HasReporterAt(BeginImplFrame) {
		t.Fatalf("Expected waiting reporter moved out of its slot")
	}
	if decider.OwnedDependents() != 1 || waiting.PartialUpdateDecider() != decider {
		t.Fatalf("Expected waiting reporter owned by decider, got %d owned", decider.OwnedDependents())
	}

	h.commitAndActivate()
	h.c.DidSubmitCompositorFrame(SubmitInfo{FrameToken: 1, Time: h.tick()}, second.ID, first.ID)
	h.present(1, false)

	if !waiting.IsFinalized() {
		t.Errorf("Expected owned dependent finalized with decider")
	}
	if len(h.obs.frames) != 2 {
		t.Fatalf("Expected 2 finalized frames, got %d", len(h.obs.frames))
	}
	if h.obs.frames[1].SequenceNumber != second.ID.SequenceNumber {
		t.Errorf("Expected dependent finalized after decider, got seq %d", h.obs.frames[1].SequenceNumber)
	}
}

// TestForkedImplUpdateAdoptedOnPresent verifies an impl update submitted
// while main is still working is forked and, once presented, kept alive by
// the original reporter.
func TestForkedImplUpdateAdoptedOnPresent(t *testing.T) {
	h := newHarness(t)
	args := h.nextArgs(0)
	h.beginMain(args)
	h.c.OnFinishImplFrame(args.ID)
	orig := h.c.ReporterAt(BeginMainFrame)

	h.c.DidSubmitCompositorFrame(SubmitInfo{FrameToken: 1, Time: h.tick()}, args.ID, frame.ID{})
	if !h.c.HasReporterAt(BeginMainFrame) {
		t.Fatalf("Expected original reporter to stay in BeginMainFrame")
	}
	if orig.Dependents() != 1 {
		t.Fatalf("Expected forked dependent, got %d", orig.Dependents())
	}

	h.present(1, false)
	if orig.OwnedDependents() != 1 {
		t.Errorf("Expected presented fork adopted, got %d owned", orig.OwnedDependents())
	}
	if got := h.c.Stats().FramesFinalized; got != 0 {
		t.Errorf("Expected adopted fork not finalized by controller, got %d", got)
	}

	h.commitAndActivate()
	h.c.DidSubmitCompositorFrame(SubmitInfo{FrameToken: 2, Time: h.tick()}, args.ID, args.ID)
	h.present(2, false)

	if len(h.obs.frames) != 2 {
		t.Fatalf("Expected 2 finalized frames, got %d", len(h.obs.frames))
	}
	if got := h.obs.frames[1].FinalState; got != frame.PresentedPartialOldMain {
		t.Errorf("Expected fork PresentedPartialOldMain, got %s", got)
	}
}

// TestImplEventsMergedWithoutImplReporter verifies impl events go to the
// main reporter when no impl update exists.
func TestImplEventsMergedWithoutImplReporter(t *testing.T) {
	h := newHarness(t)
	args := h.nextArgs(0)
	h.beginMain(args)
	h.commitAndActivate()

	h.c.DidSubmitCompositorFrame(SubmitInfo{
		FrameToken: 1,
		Time:       h.tick(),
		Events: EventMetricsSet{
			Main: []*events.Metrics{events.New(events.KeyPressed, t0)},
			Impl: []*events.Metrics{events.New(events.KeyReleased, t0)},
		},
	}, args.ID, args.ID)
	h.present(1, false)

	if got := h.rec.Count("EventLatency.TotalLatency"); got != 2 {
		t.Errorf("Expected 2 event samples, got %d", got)
	}
}

// TestMergedEventsLeaveCallerSliceUntouched verifies merging impl events
// does not write into spare capacity of the caller's main slice.
func TestMergedEventsLeaveCallerSliceUntouched(t *testing.T) {
	h := newHarness(t)
	args := h.nextArgs(0)
	h.beginMain(args)
	h.commitAndActivate()

	main := make([]*events.Metrics, 1, 4)
	main[0] = events.New(events.KeyPressed, t0)
	h.c.DidSubmitCompositorFrame(SubmitInfo{
		FrameToken: 1,
		Time:       h.tick(),
		Events: EventMetricsSet{
			Main: main,
			Impl: []*events.Metrics{events.New(events.KeyReleased, t0)},
		},
	}, args.ID, args.ID)

	if spare := main[:cap(main)]; spare[1] != nil {
		t.Errorf("Expected caller's backing array untouched, got %v", spare[1])
	}
}

// TestLifecycleIgnoredAfterClose verifies calls after Close start no
// reporters.
func TestLifecycleIgnoredAfterClose(t *testing.T) {
	h := newHarness(t)
	if err := h.c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	args := h.nextArgs(0)
	h.beginMain(args)
	h.commitAndActivate()
	h.c.OnFinishImplFrame(args.ID)
	h.c.DidSubmitCompositorFrame(SubmitInfo{FrameToken: 1, Time: h.tick()}, args.ID, args.ID)
	h.present(1, false)

	st := h.c.Stats()
	if st.FramesStarted != 0 || st.PendingSubmitted != 0 || len(st.OccupiedSlots) != 0 {
		t.Errorf("Expected no activity after Close, got %+v", st)
	}
	if got := h.rec.TotalCount(""); got != 0 {
		t.Errorf("Expected no histograms after Close, got %d", got)
	}
}

// TestCloseFinalizesEverything verifies Close drains slots and the
// submitted queue once.
func TestCloseFinalizesEverything(t *testing.T) {
	h := newHarness(t)
	h.submitMainFrame(1)
	h.tick()
	h.c.WillBeginImplFrame(h.nextArgs(0))

	if err := h.c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	st := h.c.Stats()
	if st.PendingSubmitted != 0 || len(st.OccupiedSlots) != 0 {
		t.Errorf("Expected empty controller, got %+v", st)
	}
	if st.FramesFinalized != 2 {
		t.Errorf("Expected 2 finalized, got %d", st.FramesFinalized)
	}
	if got := h.rec.Count("EventLatency.TotalLatency"); got != 0 {
		t.Errorf("Expected no event latency from closed frames, got %d", got)
	}

	if err := h.c.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

// TestTokenGT verifies frame token ordering with wraparound.
func TestTokenGT(t *testing.T) {
	tests := []struct {
		a, b uint32
		want bool
	}{
		{2, 1, true},
		{1, 2, false},
		{5, 5, false},
		{0, 0xFFFFFFFF, true},
		{0xFFFFFFFF, 0, false},
	}
	for _, tt := range tests {
		if got := tokenGT(tt.a, tt.b); got != tt.want {
			t.Errorf("tokenGT(%d, %d): expected %v, got %v", tt.a, tt.b, tt.want, got)
		}
	}
}

// TestPipelineStageNames verifies slot names used in logs and stats.
func TestPipelineStageNames(t *testing.T) {
	want := []string{"BeginImplFrame", "BeginMainFrame", "ReadyToCommit", "Commit", "Activate"}
	var got []string
	for s := BeginImplFrame; s < NumPipelineStages; s++ {
		got = append(got, s.String())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stage names mismatch (-want +got):\n%s", diff)
	}
}
