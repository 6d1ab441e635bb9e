// Package stage models the pipeline stages a frame traverses and the
// ordered stage history recorded for one frame.
package stage

import "time"

// Type identifies a pipeline stage of a compositor frame.
type Type int

const (
	BeginImplFrameToSendBeginMainFrame Type = iota
	SendBeginMainFrameToCommit
	Commit
	EndCommitToActivation
	Activation
	EndActivateToSubmitCompositorFrame
	SubmitCompositorFrameToPresentationCompositorFrame
	TotalLatency

	// Count is the number of stage types (not a valid stage).
	Count
)

var typeNames = [Count]string{
	BeginImplFrameToSendBeginMainFrame:                 "BeginImplFrameToSendBeginMainFrame",
	SendBeginMainFrameToCommit:                         "SendBeginMainFrameToCommit",
	Commit:                                             "Commit",
	EndCommitToActivation:                              "EndCommitToActivation",
	Activation:                                         "Activation",
	EndActivateToSubmitCompositorFrame:                 "EndActivateToSubmitCompositorFrame",
	SubmitCompositorFrameToPresentationCompositorFrame: "SubmitCompositorFrameToPresentationCompositorFrame",
	TotalLatency:                                       "TotalLatency",
}

// String returns the histogram name component of the stage.
func (t Type) String() string {
	if t < 0 || t >= Count {
		return "Unknown"
	}
	return typeNames[t]
}

// BlinkBreakdown subdivides SendBeginMainFrameToCommit.
type BlinkBreakdown int

const (
	HandleInputEvents BlinkBreakdown = iota
	Animate
	StyleUpdate
	LayoutUpdate
	Accessibility
	Prepaint
	CompositingInputs
	Paint
	CompositeCommit
	UpdateLayers
	BeginMainSentToStarted

	BlinkBreakdownCount
)

// Names are dashboard-stable; "AccessibiltyUpdate" is spelled as recorded.
var blinkNames = [BlinkBreakdownCount]string{
	HandleInputEvents:      "HandleInputEvents",
	Animate:                "Animate",
	StyleUpdate:            "StyleUpdate",
	LayoutUpdate:           "LayoutUpdate",
	Accessibility:          "AccessibiltyUpdate",
	Prepaint:               "Prepaint",
	CompositingInputs:      "CompositingInputs",
	Paint:                  "Paint",
	CompositeCommit:        "CompositeCommit",
	UpdateLayers:           "UpdateLayers",
	BeginMainSentToStarted: "BeginMainSentToStarted",
}

func (b BlinkBreakdown) String() string {
	if b < 0 || b >= BlinkBreakdownCount {
		return "Unknown"
	}
	return blinkNames[b]
}

// VizBreakdown subdivides SubmitCompositorFrameToPresentationCompositorFrame.
type VizBreakdown int

const (
	SubmitToReceiveCompositorFrame VizBreakdown = iota
	ReceivedCompositorFrameToStartDraw
	StartDrawToSwapStart
	SwapStartToSwapEnd
	SwapEndToPresentationCompositorFrame
	SwapStartToBufferAvailable
	BufferAvailableToBufferReady
	BufferReadyToLatch
	LatchToSwapEnd

	VizBreakdownCount
)

var vizNames = [VizBreakdownCount]string{
	SubmitToReceiveCompositorFrame:       "SubmitToReceiveCompositorFrame",
	ReceivedCompositorFrameToStartDraw:   "ReceivedCompositorFrameToStartDraw",
	StartDrawToSwapStart:                 "StartDrawToSwapStart",
	SwapStartToSwapEnd:                   "SwapStartToSwapEnd",
	SwapEndToPresentationCompositorFrame: "SwapEndToPresentationCompositorFrame",
	SwapStartToBufferAvailable:           "SwapStartToBufferAvailable",
	BufferAvailableToBufferReady:         "BufferAvailableToBufferReady",
	BufferReadyToLatch:                   "BufferReadyToLatch",
	LatchToSwapEnd:                       "LatchToSwapEnd",
}

func (v VizBreakdown) String() string {
	if v < 0 || v >= VizBreakdownCount {
		return "Unknown"
	}
	return vizNames[v]
}

// BlinkName returns "SendBeginMainFrameToCommit.<Breakdown>".
func BlinkName(b BlinkBreakdown) string {
	return SendBeginMainFrameToCommit.String() + "." + b.String()
}

// VizName returns "SubmitCompositorFrameToPresentationCompositorFrame.<Breakdown>".
func VizName(v VizBreakdown) string {
	return SubmitCompositorFrameToPresentationCompositorFrame.String() + "." + v.String()
}

// Record is one completed stage of a frame.
//
// Invariant: End >= Start.
type Record struct {
	Kind  Type
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (r Record) Duration() time.Duration {
	return r.End.Sub(r.Start)
}
