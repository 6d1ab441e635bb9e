package framelatency

import (
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/clock"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/controller"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/events"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/frame"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/reporter"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/sink"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/sorter"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/trackers"
)

// Public API - Re-export internal types as stable contract

// BeginFrameArgs are the arguments of a vsync tick
type BeginFrameArgs = frame.Args

// BeginFrameID identifies a begin-frame by source and sequence number
type BeginFrameID = frame.ID

// FrameInfo is the per-frame outcome handed to the sorter and observers
type FrameInfo = frame.Info

// SkippedReason explains a begin-frame that produced no compositor frame
type SkippedReason = frame.SkippedReason

const (
	SkippedNoDamage      = frame.SkippedNoDamage
	SkippedWaitingOnMain = frame.SkippedWaitingOnMain
	SkippedDrawThrottled = frame.SkippedDrawThrottled
)

// ControllerConfig configures reporting and backfill
type ControllerConfig = controller.Config

// SubmitInfo describes a submitted compositor frame
type SubmitInfo = controller.SubmitInfo

// EventMetricsSet groups submitted events by handling thread
type EventMetricsSet = controller.EventMetricsSet

// CommitEarlyOutReason explains an aborted main frame
type CommitEarlyOutReason = controller.CommitEarlyOutReason

const (
	AbortedNotVisible              = controller.AbortedNotVisible
	AbortedDeferredMainFrameUpdate = controller.AbortedDeferredMainFrameUpdate
	AbortedDeferredCommit          = controller.AbortedDeferredCommit
	FinishedNoUpdates              = controller.FinishedNoUpdates
)

// PipelineStage is a reporter slot of the controller
type PipelineStage = controller.PipelineStage

// BeginMainFrameMetrics are the main-thread breakdown durations
type BeginMainFrameMetrics = reporter.BeginMainFrameMetrics

// FrameTimingDetails are the display-compositor timestamps of a frame
type FrameTimingDetails = reporter.FrameTimingDetails

// PresentationFeedback is the display's report for a presented frame
type PresentationFeedback = reporter.PresentationFeedback

// EventLatencyData is one event latency delivered to an Observer
type EventLatencyData = reporter.EventLatencyData

// Observer receives finalized frames and event latencies
type Observer = reporter.Observer

// EventMetrics tracks one input event through its dispatch stages
type EventMetrics = events.Metrics

// EventType is the kind of input event
type EventType = events.Type

const (
	MousePressed                = events.MousePressed
	MouseReleased               = events.MouseReleased
	MouseWheel                  = events.MouseWheel
	KeyPressed                  = events.KeyPressed
	KeyReleased                 = events.KeyReleased
	TouchPressed                = events.TouchPressed
	TouchReleased               = events.TouchReleased
	TouchMoved                  = events.TouchMoved
	GestureScrollBegin          = events.GestureScrollBegin
	GestureScrollUpdate         = events.GestureScrollUpdate
	GestureScrollEnd            = events.GestureScrollEnd
	GestureDoubleTap            = events.GestureDoubleTap
	GestureLongPress            = events.GestureLongPress
	GestureLongTap              = events.GestureLongTap
	GestureShowPress            = events.GestureShowPress
	GestureTap                  = events.GestureTap
	GestureTapCancel            = events.GestureTapCancel
	GestureTapDown              = events.GestureTapDown
	GestureTapUnconfirmed       = events.GestureTapUnconfirmed
	GestureTwoFingerTap         = events.GestureTwoFingerTap
	FirstGestureScrollUpdate    = events.FirstGestureScrollUpdate
	MouseDragged                = events.MouseDragged
	GesturePinchBegin           = events.GesturePinchBegin
	GesturePinchEnd             = events.GesturePinchEnd
	GesturePinchUpdate          = events.GesturePinchUpdate
	InertialGestureScrollUpdate = events.InertialGestureScrollUpdate
	MouseMoved                  = events.MouseMoved
)

// DispatchStage is a point in an event's journey to the renderer
type DispatchStage = events.DispatchStage

const (
	DispatchGenerated                   = events.Generated
	DispatchArrivedInBrowserMain        = events.ArrivedInBrowserMain
	DispatchArrivedInRendererCompositor = events.ArrivedInRendererCompositor
	DispatchRendererCompositorStarted   = events.RendererCompositorStarted
	DispatchRendererCompositorFinished  = events.RendererCompositorFinished
	DispatchRendererMainStarted         = events.RendererMainStarted
	DispatchRendererMainFinished        = events.RendererMainFinished
)

// InputDevice is the device that generated a scroll or pinch gesture
type InputDevice = events.Device

const (
	DeviceUnknown     = events.DeviceUnknown
	DeviceAutoscroll  = events.DeviceAutoscroll
	DeviceScrollbar   = events.DeviceScrollbar
	DeviceTouchscreen = events.DeviceTouchscreen
	DeviceWheel       = events.DeviceWheel
)

// ScrollUpdateKind marks a scroll update as starting or continuing a scroll
type ScrollUpdateKind = events.UpdateKind

const (
	UpdateUnspecified = events.UpdateUnspecified
	UpdateStarted     = events.UpdateStarted
	UpdateContinued   = events.UpdateContinued
)

// HistogramSink receives histogram samples
type HistogramSink = sink.HistogramSink

// StructuredSink receives structured records
type StructuredSink = sink.StructuredSink

// StructuredEvent is one structured record
type StructuredEvent = sink.StructuredEvent

// Recorder is the in-memory HistogramSink and StructuredSink
type Recorder = sink.Recorder

// TrackerCollection holds the running frame-sequence trackers
type TrackerCollection = trackers.Collection

// TrackerType is a frame-sequence tracker kind
type TrackerType = trackers.Type

const (
	TrackerCompositorAnimation       = trackers.CompositorAnimation
	TrackerMainThreadAnimation       = trackers.MainThreadAnimation
	TrackerPinchZoom                 = trackers.PinchZoom
	TrackerRAF                       = trackers.RAF
	TrackerTouchScroll               = trackers.TouchScroll
	TrackerVideo                     = trackers.Video
	TrackerWheelScroll               = trackers.WheelScroll
	TrackerScrollbarScroll           = trackers.ScrollbarScroll
	TrackerCustom                    = trackers.Custom
	TrackerCanvasAnimation           = trackers.CanvasAnimation
	TrackerJSAnimation               = trackers.JSAnimation
	TrackerSETMainThreadAnimation    = trackers.SETMainThreadAnimation
	TrackerSETCompositorAnimation    = trackers.SETCompositorAnimation
	TrackerCompositorRasterAnimation = trackers.CompositorRasterAnimation
	TrackerCompositorNativeAnimation = trackers.CompositorNativeAnimation
)

// ControllerStats tracks reporter activity
type ControllerStats = controller.Stats

// SorterStats tracks sorted frame outcomes
type SorterStats = sorter.Stats

// Clock supplies the current time
type Clock = clock.Clock

// FakeClock is a manually advanced Clock for tests and replays
type FakeClock = clock.Fake

// Public API errors - Re-export internal errors as stable contract
var (
	ErrClosed          = controller.ErrClosed
	ErrNoHistogramSink = reporter.ErrNoHistogramSink
	ErrNoSorter        = reporter.ErrNoSorter
	ErrTimestampOrder  = events.ErrTimestampOrder
	ErrInvalidStage    = events.ErrInvalidStage
)

// DefaultConfig returns histogram reporting with the default bounds
func DefaultConfig() ControllerConfig {
	return controller.DefaultConfig()
}

// NewRecorder creates an in-memory sink
func NewRecorder() *Recorder {
	return sink.NewRecorder()
}

// NewFakeClock creates a FakeClock starting at start
func NewFakeClock(start time.Time) *FakeClock {
	return clock.NewFake(start)
}

// NewEventMetrics creates metrics for a non-gesture event generated at t
func NewEventMetrics(t EventType, generated time.Time) *EventMetrics {
	return events.New(t, generated)
}

// NewScrollEventMetrics creates metrics for a scroll gesture event
func NewScrollEventMetrics(t EventType, device InputDevice, inertial bool, kind ScrollUpdateKind, generated time.Time) *EventMetrics {
	return events.NewScroll(t, device, inertial, kind, generated)
}

// NewPinchEventMetrics creates metrics for a pinch gesture event
func NewPinchEventMetrics(t EventType, device InputDevice, generated time.Time) *EventMetrics {
	return events.NewPinch(t, device, generated)
}
