package reporter

import (
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/stage"
)

// blinkBreakdown holds the main-thread sub-stage durations of a frame.
// Empty when main-thread work never started.
type blinkBreakdown struct {
	valid bool
	list  [stage.BlinkBreakdownCount]time.Duration
}

func newBlinkBreakdown(blinkStart, beginMainStart time.Time, m BeginMainFrameMetrics) blinkBreakdown {
	var b blinkBreakdown
	if blinkStart.IsZero() {
		return b
	}
	b.valid = true
	b.list[stage.HandleInputEvents] = m.HandleInputEvents
	b.list[stage.Animate] = m.Animate
	b.list[stage.StyleUpdate] = m.StyleUpdate
	b.list[stage.LayoutUpdate] = m.LayoutUpdate
	b.list[stage.Accessibility] = m.Accessibility
	b.list[stage.Prepaint] = m.Prepaint
	b.list[stage.CompositingInputs] = m.CompositingInputs
	b.list[stage.Paint] = m.Paint
	b.list[stage.CompositeCommit] = m.CompositeCommit
	b.list[stage.UpdateLayers] = m.UpdateLayers
	if !beginMainStart.IsZero() {
		b.list[stage.BeginMainSentToStarted] = beginMainStart.Sub(blinkStart)
	}
	return b
}

// each calls fn for every breakdown, in order.
func (b *blinkBreakdown) each(fn func(stage.BlinkBreakdown, time.Duration)) {
	if !b.valid {
		return
	}
	for i, d := range b.list {
		fn(stage.BlinkBreakdown(i), d)
	}
}

type interval struct {
	start, end time.Time
	set        bool
}

// vizBreakdown holds the display-compositor sub-stages of a frame. Each
// sub-stage is set only when all of its timestamps (and those of the
// preceding sub-stages) are known.
type vizBreakdown struct {
	list [stage.VizBreakdownCount]interval
}

func newVizBreakdown(vizStart time.Time, d FrameTimingDetails) vizBreakdown {
	var v vizBreakdown
	if vizStart.IsZero() {
		return v
	}
	// received can precede viz start in practice; never report negative times.
	if d.ReceivedCompositorFrame.IsZero() || d.ReceivedCompositorFrame.Before(vizStart) {
		return v
	}
	v.set(stage.SubmitToReceiveCompositorFrame, vizStart, d.ReceivedCompositorFrame)

	if d.DrawStart.IsZero() {
		return v
	}
	v.set(stage.ReceivedCompositorFrameToStartDraw, d.ReceivedCompositorFrame, d.DrawStart)

	if d.SwapStart.IsZero() || d.SwapEnd.IsZero() {
		return v
	}
	v.set(stage.StartDrawToSwapStart, d.DrawStart, d.SwapStart)
	v.set(stage.SwapStartToSwapEnd, d.SwapStart, d.SwapEnd)
	v.set(stage.SwapEndToPresentationCompositorFrame, d.SwapEnd, d.Presentation.Timestamp)

	if d.Presentation.Ready.IsZero() {
		return v
	}
	v.set(stage.SwapStartToBufferAvailable, d.SwapStart, d.Presentation.Available)
	v.set(stage.BufferAvailableToBufferReady, d.Presentation.Available, d.Presentation.Ready)
	v.set(stage.BufferReadyToLatch, d.Presentation.Ready, d.Presentation.Latch)
	v.set(stage.LatchToSwapEnd, d.Presentation.Latch, d.SwapEnd)
	return v
}

func (v *vizBreakdown) set(b stage.VizBreakdown, start, end time.Time) {
	v.list[b] = interval{start: start, end: end, set: true}
}

// each calls fn for every set breakdown, in order.
func (v *vizBreakdown) each(fn func(stage.VizBreakdown, time.Duration)) {
	for i, iv := range v.list {
		if iv.set {
			fn(stage.VizBreakdown(i), iv.end.Sub(iv.start))
		}
	}
}
