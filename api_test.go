package framelatency_test

import (
	"errors"
	"testing"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency"
)

// TestPublicAPIContract validates the public API surface remains stable

var t0 = time.Unix(2000, 0)

func newPipeline(t *testing.T) (framelatency.Pipeline, *framelatency.Recorder, *framelatency.FakeClock) {
	t.Helper()
	clk := framelatency.NewFakeClock(t0)
	rec := framelatency.NewRecorder()
	p, err := framelatency.New(framelatency.Options{
		Config:     framelatency.DefaultConfig(),
		Clock:      clk,
		Histograms: rec,
		Structured: rec,
	})
	if err != nil {
		t.Fatalf("New() should succeed: %v", err)
	}
	return p, rec, clk
}

// runFrame drives one main-thread frame from begin-impl to presentation.
func runFrame(p framelatency.Pipeline, clk *framelatency.FakeClock, seq uint64, token uint32) {
	runFrameWithEvents(p, clk, seq, token, framelatency.EventMetricsSet{})
}

func runFrameWithEvents(p framelatency.Pipeline, clk *framelatency.FakeClock, seq uint64, token uint32, evs framelatency.EventMetricsSet) {
	tick := func() time.Time { return clk.Advance(time.Millisecond) }

	now := clk.Now()
	args := framelatency.BeginFrameArgs{
		ID:        framelatency.BeginFrameID{SourceID: 1, SequenceNumber: seq},
		FrameTime: now,
		Deadline:  now.Add(16 * time.Millisecond),
		Interval:  16 * time.Millisecond,
	}

	p.WillBeginImplFrame(args)
	tick()
	p.WillBeginMainFrame(args)
	p.BeginMainFrameStarted(tick())
	tick()
	p.NotifyReadyToCommit(framelatency.BeginMainFrameMetrics{})
	p.WillCommit()
	tick()
	p.DidCommit()
	tick()
	p.WillActivate()
	tick()
	p.DidActivate()
	p.OnFinishImplFrame(args.ID)
	p.DidSubmitCompositorFrame(framelatency.SubmitInfo{FrameToken: token, Time: tick(), Events: evs}, args.ID, args.ID)
	p.DidPresentCompositorFrame(token, framelatency.FrameTimingDetails{
		Presentation: framelatency.PresentationFeedback{Timestamp: tick()},
	})
}

func TestPublicAPI_New(t *testing.T) {
	p, _, _ := newPipeline(t)
	if p == nil {
		t.Fatal("New() should return non-nil Pipeline")
	}
	if p.Trackers() == nil {
		t.Error("Trackers() should return non-nil collection")
	}
}

func TestPublicAPI_NewRequiresHistogramSink(t *testing.T) {
	_, err := framelatency.New(framelatency.Options{Config: framelatency.DefaultConfig()})
	if !errors.Is(err, framelatency.ErrNoHistogramSink) {
		t.Errorf("New() without sink should return ErrNoHistogramSink, got %v", err)
	}

	cfg := framelatency.DefaultConfig()
	cfg.Reporter.ReportHistograms = false
	if _, err := framelatency.New(framelatency.Options{Config: cfg}); err != nil {
		t.Errorf("New() with histograms disabled should succeed: %v", err)
	}
}

func TestPublicAPI_PresentedFrame(t *testing.T) {
	p, rec, clk := newPipeline(t)
	defer p.Close()

	p.SetFirstContentfulPaintReceived()
	runFrame(p, clk, 1, 1)

	if got := rec.Count("CompositorLatency2.TotalLatency"); got != 1 {
		t.Errorf("Expected 1 TotalLatency sample, got %d", got)
	}
	if got := len(rec.StructuredEvents()); got == 0 {
		t.Errorf("Expected structured records")
	}

	st := p.Stats()
	if st.Controller.FramesPresented != 1 {
		t.Errorf("Expected 1 presented frame, got %d", st.Controller.FramesPresented)
	}
	if st.Sorter.TotalFrames != 1 || st.Sorter.PresentedFrames != 1 {
		t.Errorf("Expected 1 sorted presented frame, got %+v", st.Sorter)
	}

	recent := p.RecentFrames()
	if len(recent) != 1 || recent[0].SequenceNumber != 1 {
		t.Errorf("Expected frame 1 in recent frames, got %+v", recent)
	}
}

func TestPublicAPI_EventMetrics(t *testing.T) {
	p, rec, clk := newPipeline(t)
	defer p.Close()

	generated := clk.Now().Add(-5 * time.Millisecond)
	key := framelatency.NewEventMetrics(framelatency.KeyPressed, generated)
	scroll := framelatency.NewScrollEventMetrics(framelatency.GestureScrollUpdate,
		framelatency.DeviceTouchscreen, false, framelatency.UpdateStarted, generated)
	if err := scroll.SetDispatchStageTimestamp(framelatency.DispatchArrivedInRendererCompositor, clk.Now()); err != nil {
		t.Fatalf("SetDispatchStageTimestamp failed: %v", err)
	}

	runFrameWithEvents(p, clk, 1, 1, framelatency.EventMetricsSet{
		Main: []*framelatency.EventMetrics{key, scroll},
	})

	if got := rec.TotalCount("EventLatency.KeyPressed."); got == 0 {
		t.Errorf("Expected KeyPressed event latency histograms")
	}
	if got := rec.Count("EventLatency.FirstGestureScrollUpdate.Touchscreen.TotalLatency2"); got != 1 {
		t.Errorf("Expected 1 Touchscreen first scroll sample, got %d", got)
	}
}

func TestPublicAPI_TrackersReachReporters(t *testing.T) {
	p, rec, clk := newPipeline(t)
	defer p.Close()

	p.Trackers().Start(framelatency.TrackerTouchScroll)
	runFrame(p, clk, 1, 1)

	if got := rec.TotalCount("CompositorLatency2.TouchScroll."); got == 0 {
		t.Errorf("Expected per-tracker histograms for TouchScroll")
	}
}

func TestPublicAPI_Close(t *testing.T) {
	p, _, clk := newPipeline(t)

	now := clk.Now()
	p.WillBeginImplFrame(framelatency.BeginFrameArgs{
		ID:        framelatency.BeginFrameID{SourceID: 1, SequenceNumber: 1},
		FrameTime: now,
		Deadline:  now.Add(16 * time.Millisecond),
		Interval:  16 * time.Millisecond,
	})

	if err := p.Close(); err != nil {
		t.Fatalf("Close() should succeed: %v", err)
	}
	if got := p.Stats().Controller.FramesFinalized; got != 1 {
		t.Errorf("Close() should finalize the held reporter, got %d finalized", got)
	}
	if err := p.Close(); err != framelatency.ErrClosed {
		t.Errorf("Close() twice should return ErrClosed, got %v", err)
	}
}

func TestPublicAPI_Errors(t *testing.T) {
	errs := []error{
		framelatency.ErrClosed,
		framelatency.ErrNoHistogramSink,
		framelatency.ErrNoSorter,
		framelatency.ErrTimestampOrder,
		framelatency.ErrInvalidStage,
	}
	for i, err := range errs {
		if err == nil {
			t.Errorf("error %d should not be nil", i)
		}
	}
}
