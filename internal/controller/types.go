// Package controller advances frame reporters through the compositor
// pipeline stages and resolves them on presentation.
package controller

import (
	"errors"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/events"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/frame"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/reporter"
)

// MaxBackfilledFrames is the default bound on the reporters synthesized for
// one begin-frame gap. Larger gaps are not backfilled.
const MaxBackfilledFrames = 100

// ErrClosed is returned by Close when the controller was already closed.
var ErrClosed = errors.New("controller: already closed")

// PipelineStage is a reporter slot of the controller.
type PipelineStage int

const (
	BeginImplFrame PipelineStage = iota
	BeginMainFrame
	ReadyToCommit
	Commit
	Activate

	NumPipelineStages
)

func (s PipelineStage) String() string {
	switch s {
	case BeginImplFrame:
		return "BeginImplFrame"
	case BeginMainFrame:
		return "BeginMainFrame"
	case ReadyToCommit:
		return "ReadyToCommit"
	case Commit:
		return "Commit"
	case Activate:
		return "Activate"
	default:
		return "Unknown"
	}
}

// CommitEarlyOutReason explains an aborted begin-main-frame.
type CommitEarlyOutReason int

const (
	// AbortedNotVisible and the other non-"no updates" reasons only mark the
	// reporter aborted.
	AbortedNotVisible CommitEarlyOutReason = iota
	AbortedDeferredMainFrameUpdate
	AbortedDeferredCommit
	// FinishedNoUpdates also marks the frame as not produced (no damage).
	FinishedNoUpdates
)

// EventMetricsSet groups the events submitted with a compositor frame by the
// thread that handled them.
type EventMetricsSet struct {
	Main   []*events.Metrics
	Impl   []*events.Metrics
	Raster []*events.Metrics
}

// SubmitInfo describes a submitted compositor frame.
type SubmitInfo struct {
	FrameToken uint32
	Time       time.Time
	Events     EventMetricsSet

	// NormalizedInvalidatedArea is the repainted area over the viewport
	// area; nil when unknown.
	NormalizedInvalidatedArea *float64
}

// Config configures the controller.
type Config struct {
	Reporter reporter.Config

	// MaxBackfillFrames bounds the skipped begin-frames backfilled at once
	// (MaxBackfilledFrames when <= 0).
	MaxBackfillFrames int
}

// DefaultConfig returns the reporter defaults with histograms enabled.
func DefaultConfig() Config {
	return Config{
		Reporter:          reporter.DefaultConfig(),
		MaxBackfillFrames: MaxBackfilledFrames,
	}
}

// Stats is a snapshot of controller activity.
type Stats struct {
	// FramesStarted counts WillBeginImplFrame calls.
	FramesStarted uint64

	// FramesSubmitted counts reporters queued for presentation.
	FramesSubmitted uint64

	// FramesPresented counts reporters terminated as PresentedFrame.
	FramesPresented uint64

	// FramesNotPresented counts submitted reporters that were dropped.
	FramesNotPresented uint64

	// FramesBackfilled counts reporters synthesized for skipped begin-frames.
	FramesBackfilled uint64

	// FramesFinalized counts reporters the controller finalized.
	FramesFinalized uint64

	// PendingSubmitted is the size of the submitted-frame queue.
	PendingSubmitted int

	// DroppedEventSets is the number of frame tokens holding events from
	// dropped frames.
	DroppedEventSets int

	// OccupiedSlots lists the stage slots holding a reporter.
	OccupiedSlots []PipelineStage
}

type submittedFrame struct {
	token    uint32
	reporter *reporter.FrameReporter
}

type droppedEvents struct {
	token uint32
	set   EventMetricsSet
}

type lastStarted struct {
	args frame.Args
	snap reporter.TrackerSnapshot
}

// tokenGT reports whether frame token a is after b, allowing wraparound.
func tokenGT(a, b uint32) bool {
	return a != b && a-b < 1<<31
}
