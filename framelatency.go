package framelatency

import (
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/controller"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/frame"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/reporter"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/sorter"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/trackers"
)

// Options configure a Pipeline.
type Options struct {
	// Config controls what reporters emit and the backfill bound.
	Config ControllerConfig

	// Clock defaults to the wall clock.
	Clock Clock

	// Histograms is required while Config.Reporter.ReportHistograms is set.
	Histograms HistogramSink

	// Structured receives structured records when non-nil.
	Structured StructuredSink

	// Observer receives frame infos and event latencies when non-nil.
	Observer Observer

	// SorterBufferSize bounds the recent-frames buffer (180 when <= 0).
	SorterBufferSize int
}

// Stats combines controller and sorter statistics.
type Stats struct {
	Controller ControllerStats
	Sorter     SorterStats
}

// Pipeline is the frame latency reporting pipeline of one compositor.
type Pipeline interface {
	WillBeginImplFrame(args BeginFrameArgs)
	WillBeginMainFrame(args BeginFrameArgs)
	BeginMainFrameStarted(t time.Time)
	BeginMainFrameAborted(id BeginFrameID, reason CommitEarlyOutReason)
	NotifyReadyToCommit(details BeginMainFrameMetrics)
	WillCommit()
	DidCommit()
	WillInvalidateOnImplSide()
	WillActivate()
	DidActivate()
	DidSubmitCompositorFrame(info SubmitInfo, currentID, lastActivatedID BeginFrameID)
	DidNotProduceFrame(id BeginFrameID, reason SkippedReason)
	OnFinishImplFrame(id BeginFrameID)
	DidPresentCompositorFrame(token uint32, details FrameTimingDetails)
	OnStoppedRequestingBeginFrames()

	// SetVisible records page visibility.
	SetVisible(visible bool)

	// SetFirstContentfulPaintReceived starts frame sorting.
	SetFirstContentfulPaintReceived()

	// Trackers returns the frame-sequence trackers snapshotted by new
	// reporters.
	Trackers() *TrackerCollection

	// RecentFrames returns the buffered frame infos, oldest first.
	RecentFrames() []FrameInfo

	Stats() Stats

	// Close finalizes every reporter still held. Returns ErrClosed on the
	// second call.
	Close() error
}

type pipeline struct {
	*controller.Controller

	sorter   *sorter.Sorter
	trackers *trackers.Collection
}

var _ Pipeline = (*pipeline)(nil)

// New creates a Pipeline wired to the collaborators in opts.
func New(opts Options) (Pipeline, error) {
	tr := trackers.NewCollection()
	s := sorter.New(opts.SorterBufferSize)

	global := &reporter.GlobalTrackers{
		Histograms: opts.Histograms,
		Structured: opts.Structured,
		Sorter:     s,
		Observer:   opts.Observer,
	}
	c, err := controller.New(opts.Config, opts.Clock, global, tr)
	if err != nil {
		return nil, err
	}
	return &pipeline{Controller: c, sorter: s, trackers: tr}, nil
}

func (p *pipeline) Trackers() *TrackerCollection { return p.trackers }

func (p *pipeline) RecentFrames() []frame.Info { return p.sorter.RecentFrames() }

func (p *pipeline) Stats() Stats {
	return Stats{
		Controller: p.Controller.Stats(),
		Sorter:     p.sorter.Stats(),
	}
}
