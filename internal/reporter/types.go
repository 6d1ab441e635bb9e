// Package reporter implements the per-frame latency state machine.
//
// A FrameReporter follows one begin-frame through the compositor pipeline,
// collects the stage history and the input events attributed to the frame,
// and emits every metric for the frame exactly once when Finalize is called.
package reporter

import (
	"errors"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/events"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/frame"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/sink"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/sorter"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/trackers"
)

// DefaultMaxOwnedDependents bounds the owned partial-update dependents of a
// reporter.
const DefaultMaxOwnedDependents = 300

var (
	// ErrNoHistogramSink is returned by Validate when histograms are enabled
	// without a sink.
	ErrNoHistogramSink = errors.New("reporter: histogram reporting enabled without a sink")

	// ErrNoSorter is returned by Validate when no frame sorter is set.
	ErrNoSorter = errors.New("reporter: frame sorter is required")
)

// TerminationStatus is how a frame left the pipeline.
type TerminationStatus int

const (
	StatusUnknown TerminationStatus = iota
	PresentedFrame
	DidNotPresentFrame
	ReplacedByNewReporter
	MergedFrame
	MainFrameAborted
	DidNotProduceFrame
)

func (s TerminationStatus) String() string {
	switch s {
	case PresentedFrame:
		return "PresentedFrame"
	case DidNotPresentFrame:
		return "DidNotPresentFrame"
	case ReplacedByNewReporter:
		return "ReplacedByNewReporter"
	case MergedFrame:
		return "MergedFrame"
	case MainFrameAborted:
		return "MainFrameAborted"
	case DidNotProduceFrame:
		return "DidNotProduceFrame"
	default:
		return "Unknown"
	}
}

// State is the lifecycle state of a reporter.
type State int

const (
	Created State = iota
	StagesInProgress
	Terminated
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case StagesInProgress:
		return "StagesInProgress"
	default:
		return "Terminated"
	}
}

// ReportType is a bitmask of the report categories a frame falls in.
type ReportType uint8

const (
	NonDroppedFrame ReportType = 1 << iota
	MissedDeadlineFrame
	DroppedFrame
	CompositorOnlyFrame
)

// Has reports whether every bit of o is set.
func (t ReportType) Has(o ReportType) bool { return t&o == o }

// Any reports whether any bit is set.
func (t ReportType) Any() bool { return t != 0 }

func (t ReportType) String() string {
	var out string
	add := func(bit ReportType, name string) {
		if t.Has(bit) {
			if out != "" {
				out += "|"
			}
			out += name
		}
	}
	add(NonDroppedFrame, "NonDroppedFrame")
	add(MissedDeadlineFrame, "MissedDeadlineFrame")
	add(DroppedFrame, "DroppedFrame")
	add(CompositorOnlyFrame, "CompositorOnlyFrame")
	return out
}

// Kind tells whether a submitted reporter carries the main-thread update or
// only the compositor's.
type Kind int

const (
	KindImpl Kind = iota
	KindMain
)

func (k Kind) String() string {
	if k == KindMain {
		return "Main"
	}
	return "Impl"
}

// BeginMainFrameMetrics are the main-thread (blink) durations reported when
// the main frame is ready to commit.
type BeginMainFrameMetrics struct {
	HandleInputEvents time.Duration `yaml:"handle_input_events"`
	Animate           time.Duration `yaml:"animate"`
	StyleUpdate       time.Duration `yaml:"style_update"`
	LayoutUpdate      time.Duration `yaml:"layout_update"`
	Accessibility     time.Duration `yaml:"accessibility"`
	Prepaint          time.Duration `yaml:"prepaint"`
	CompositingInputs time.Duration `yaml:"compositing_inputs"`
	Paint             time.Duration `yaml:"paint"`
	CompositeCommit   time.Duration `yaml:"composite_commit"`
	UpdateLayers      time.Duration `yaml:"update_layers"`
}

// PresentationFeedback is the display's report for a presented frame.
type PresentationFeedback struct {
	Timestamp time.Time
	Available time.Time
	Ready     time.Time
	Latch     time.Time
	Failed    bool
}

// FrameTimingDetails are the display-compositor (viz) timestamps of a frame.
type FrameTimingDetails struct {
	ReceivedCompositorFrame time.Time
	DrawStart               time.Time
	SwapStart               time.Time
	SwapEnd                 time.Time
	Presentation            PresentationFeedback
}

// TrackerSnapshot is the tracker state captured when a reporter is created.
type TrackerSnapshot struct {
	Active    trackers.Active
	Smooth    trackers.SmoothThread
	Scrolling trackers.ScrollingThread
}

// EventLatencyData is one event latency handed to the Observer.
type EventLatencyData struct {
	Type   events.Type
	Device string
	Total  time.Duration
}

// Observer receives finalized frames and event latencies.
// Called synchronously from Finalize; implementations must not block.
type Observer interface {
	OnFrameFinalized(args frame.Args, info frame.Info)
	OnEventLatencies(args frame.Args, latencies []EventLatencyData)
}

// GlobalTrackers are the collaborators shared by every reporter. They must
// outlive all reporters and the controller.
type GlobalTrackers struct {
	Histograms sink.HistogramSink
	Structured sink.StructuredSink
	Sorter     *sorter.Sorter
	Observer   Observer
}

// Config controls what a reporter emits.
type Config struct {
	ReportHistograms   bool
	MaxOwnedDependents int
	PaintMetrics       bool
}

// DefaultConfig returns histogram reporting with the default dependents bound.
func DefaultConfig() Config {
	return Config{
		ReportHistograms:   true,
		MaxOwnedDependents: DefaultMaxOwnedDependents,
	}
}

// Validate checks the collaborators a reporter needs.
func (g *GlobalTrackers) Validate(cfg Config) error {
	if cfg.ReportHistograms && g.Histograms == nil {
		return ErrNoHistogramSink
	}
	if g.Sorter == nil {
		return ErrNoSorter
	}
	return nil
}
