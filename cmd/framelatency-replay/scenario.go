package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/clock"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/events"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/trackers"
)

// Scenario is a recorded sequence of compositor lifecycle calls.
type Scenario struct {
	Name     string        `yaml:"name"`
	SourceID uint64        `yaml:"source_id"`
	Interval time.Duration `yaml:"interval"`
	Steps    []Step        `yaml:"steps"`
}

// Step is one lifecycle call. After advances the clock before the call.
type Step struct {
	Op    string        `yaml:"op"`
	After time.Duration `yaml:"after"`

	// begin_impl
	Seq       uint64 `yaml:"seq"`
	Throttled uint64 `yaml:"throttled"`
	Repeat    int    `yaml:"repeat"`

	// submit, present
	Token  uint32   `yaml:"token"`
	Failed bool     `yaml:"failed"`
	Events []Event  `yaml:"events"`
	Area   *float64 `yaml:"invalidated_area"`

	// abort_main, not_produced
	Reason string `yaml:"reason"`

	// ready_to_commit
	Blink framelatency.BeginMainFrameMetrics `yaml:"blink"`

	// visible
	Visible bool `yaml:"visible"`

	// start_tracker, stop_tracker
	Tracker string `yaml:"tracker"`
}

// Event is an input event submitted with a compositor frame.
type Event struct {
	Type     string        `yaml:"type"`
	Device   string        `yaml:"device"`
	Thread   string        `yaml:"thread"` // main, impl, raster
	Inertial bool          `yaml:"inertial"`
	Age      time.Duration `yaml:"age"` // generation time before submit
}

// LoadScenario reads and parses a YAML scenario file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if sc.Interval <= 0 {
		sc.Interval = 16666 * time.Microsecond
	}
	if sc.SourceID == 0 {
		sc.SourceID = 1
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("no steps")
	}
	for i, st := range sc.Steps {
		if _, ok := ops[st.Op]; !ok {
			return fmt.Errorf("step %d: unknown op %q", i, st.Op)
		}
		if st.Tracker != "" {
			if _, ok := trackers.ParseType(st.Tracker); !ok {
				return fmt.Errorf("step %d: unknown tracker %q", i, st.Tracker)
			}
		}
		for _, ev := range st.Events {
			if _, ok := events.ParseType(ev.Type); !ok {
				return fmt.Errorf("step %d: unknown event type %q", i, ev.Type)
			}
		}
	}
	return nil
}

// replayer drives a Pipeline through a scenario on a fake clock.
type replayer struct {
	p     framelatency.Pipeline
	clk   *clock.Fake
	sc    *Scenario
	args  framelatency.BeginFrameArgs
	steps int

	// lastActivated is the frame of the most recent activation.
	lastActivated framelatency.BeginFrameID
}

type opFunc func(r *replayer, st Step) error

var ops = map[string]opFunc{
	"begin_impl":        (*replayer).beginImpl,
	"begin_main":        func(r *replayer, _ Step) error { r.p.WillBeginMainFrame(r.args); return nil },
	"main_started":      func(r *replayer, _ Step) error { r.p.BeginMainFrameStarted(r.clk.Now()); return nil },
	"abort_main":        (*replayer).abortMain,
	"ready_to_commit":   func(r *replayer, st Step) error { r.p.NotifyReadyToCommit(st.Blink); return nil },
	"commit":            func(r *replayer, _ Step) error { r.p.WillCommit(); return nil },
	"did_commit":        func(r *replayer, _ Step) error { r.p.DidCommit(); return nil },
	"invalidate":        func(r *replayer, _ Step) error { r.p.WillInvalidateOnImplSide(); return nil },
	"activate":          func(r *replayer, _ Step) error { r.p.WillActivate(); return nil },
	"did_activate":      (*replayer).didActivate,
	"submit":            (*replayer).submit,
	"not_produced":      (*replayer).notProduced,
	"finish_impl":       func(r *replayer, _ Step) error { r.p.OnFinishImplFrame(r.args.ID); return nil },
	"present":           (*replayer).present,
	"stop_begin_frames": func(r *replayer, _ Step) error { r.p.OnStoppedRequestingBeginFrames(); return nil },
	"visible":           func(r *replayer, st Step) error { r.p.SetVisible(st.Visible); return nil },
	"fcp":               func(r *replayer, _ Step) error { r.p.SetFirstContentfulPaintReceived(); return nil },
	"start_tracker":     (*replayer).startTracker,
	"stop_tracker":      (*replayer).stopTracker,
}

// Replay runs every step of sc against p. It stops early when ctx is done.
func Replay(ctx context.Context, p framelatency.Pipeline, clk *clock.Fake, sc *Scenario) (int, error) {
	r := &replayer{p: p, clk: clk, sc: sc}
	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return r.steps, err
		}
		if st.After > 0 {
			clk.Advance(st.After)
		}
		if err := ops[st.Op](r, st); err != nil {
			return r.steps, fmt.Errorf("step %d (%s): %w", i, st.Op, err)
		}
		r.steps++
	}
	slog.Debug("scenario replayed", "name", sc.Name, "steps", r.steps)
	return r.steps, nil
}

// beginImpl starts a begin-frame. Seq defaults to the next sequence
// number; Repeat > 1 runs that many impl-only frames one interval apart.
func (r *replayer) beginImpl(st Step) error {
	n := st.Repeat
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			r.clk.Advance(r.sc.Interval)
		}
		seq := r.args.ID.SequenceNumber + 1
		if st.Seq != 0 && i == 0 {
			if st.Seq < seq {
				return fmt.Errorf("sequence number %d goes backwards", st.Seq)
			}
			seq = st.Seq
		}
		now := r.clk.Now()
		r.args = framelatency.BeginFrameArgs{
			ID:                       framelatency.BeginFrameID{SourceID: r.sc.SourceID, SequenceNumber: seq},
			FrameTime:                now,
			Deadline:                 now.Add(r.sc.Interval),
			Interval:                 r.sc.Interval,
			FramesThrottledSinceLast: st.Throttled,
		}
		r.p.WillBeginImplFrame(r.args)
	}
	return nil
}

func (r *replayer) abortMain(st Step) error {
	reason, err := parseEarlyOutReason(st.Reason)
	if err != nil {
		return err
	}
	r.p.BeginMainFrameAborted(r.args.ID, reason)
	return nil
}

func (r *replayer) submit(st Step) error {
	now := r.clk.Now()
	var set framelatency.EventMetricsSet
	for _, ev := range st.Events {
		m, err := newEventMetrics(ev, now)
		if err != nil {
			return err
		}
		switch ev.Thread {
		case "impl":
			set.Impl = append(set.Impl, m)
		case "raster":
			set.Raster = append(set.Raster, m)
		default:
			set.Main = append(set.Main, m)
		}
	}
	r.p.DidSubmitCompositorFrame(framelatency.SubmitInfo{
		FrameToken:                st.Token,
		Time:                      now,
		Events:                    set,
		NormalizedInvalidatedArea: st.Area,
	}, r.args.ID, r.lastActivated)
	return nil
}

func (r *replayer) didActivate(Step) error {
	r.p.DidActivate()
	r.lastActivated = r.args.ID
	return nil
}

func (r *replayer) notProduced(st Step) error {
	reason, err := parseSkippedReason(st.Reason)
	if err != nil {
		return err
	}
	r.p.DidNotProduceFrame(r.args.ID, reason)
	return nil
}

func (r *replayer) present(st Step) error {
	r.p.DidPresentCompositorFrame(st.Token, framelatency.FrameTimingDetails{
		Presentation: framelatency.PresentationFeedback{
			Timestamp: r.clk.Now(),
			Failed:    st.Failed,
		},
	})
	return nil
}

func (r *replayer) startTracker(st Step) error {
	t, ok := trackers.ParseType(st.Tracker)
	if !ok {
		return fmt.Errorf("unknown tracker %q", st.Tracker)
	}
	r.p.Trackers().Start(t)
	return nil
}

func (r *replayer) stopTracker(st Step) error {
	t, ok := trackers.ParseType(st.Tracker)
	if !ok {
		return fmt.Errorf("unknown tracker %q", st.Tracker)
	}
	r.p.Trackers().Stop(t)
	return nil
}

// newEventMetrics builds an event generated ev.Age before now and handled
// by the renderer compositor at now.
func newEventMetrics(ev Event, now time.Time) (*framelatency.EventMetrics, error) {
	t, ok := events.ParseType(ev.Type)
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	device := events.DeviceUnknown
	if ev.Device != "" {
		if device, ok = events.ParseDevice(ev.Device); !ok {
			return nil, fmt.Errorf("unknown device %q", ev.Device)
		}
	}

	generated := now.Add(-ev.Age)
	var m *events.Metrics
	switch {
	case t.IsScroll():
		m = events.NewScroll(t, device, ev.Inertial, events.UpdateUnspecified, generated)
	case t.IsPinch():
		m = events.NewPinch(t, device, generated)
	default:
		m = events.New(t, generated)
	}
	if err := m.SetDispatchStageTimestamp(events.ArrivedInRendererCompositor, now); err != nil {
		return nil, err
	}
	return m, nil
}

func parseEarlyOutReason(s string) (framelatency.CommitEarlyOutReason, error) {
	switch s {
	case "", "NotVisible":
		return framelatency.AbortedNotVisible, nil
	case "DeferredMainFrameUpdate":
		return framelatency.AbortedDeferredMainFrameUpdate, nil
	case "DeferredCommit":
		return framelatency.AbortedDeferredCommit, nil
	case "FinishedNoUpdates":
		return framelatency.FinishedNoUpdates, nil
	}
	return 0, fmt.Errorf("unknown abort reason %q", s)
}

func parseSkippedReason(s string) (framelatency.SkippedReason, error) {
	switch s {
	case "", "NoDamage":
		return framelatency.SkippedNoDamage, nil
	case "WaitingOnMain":
		return framelatency.SkippedWaitingOnMain, nil
	case "DrawThrottled":
		return framelatency.SkippedDrawThrottled, nil
	}
	return 0, fmt.Errorf("unknown skipped reason %q", s)
}
