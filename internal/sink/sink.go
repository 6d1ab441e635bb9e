// Package sink defines the metric collaborators the reporting pipeline emits
// into, and the implementations wired by the module: an in-memory recorder
// and a Prometheus exporter.
package sink

import (
	"strings"
	"time"
)

// HistogramSink receives histogram samples.
//
// Values are integers in the histogram's unit (microseconds for latency
// histograms). droppedVariant is true for samples of the DroppedFrame
// variant of compositor latency histograms.
type HistogramSink interface {
	EmitHistogram(name string, value int64, droppedVariant bool)
}

// StructuredSink receives UKM-style structured records.
type StructuredSink interface {
	EmitStructuredEvent(ev StructuredEvent)
}

// StructuredEvent is one structured record.
//
// Durations are microseconds keyed by metric name (stage name, breakdown
// name or event type).
type StructuredEvent struct {
	Name      string            `msgpack:"name"`
	TraceID   string            `msgpack:"trace_id"`
	Sequence  uint64            `msgpack:"seq"`
	Timestamp time.Time         `msgpack:"ts"`
	Labels    map[string]string `msgpack:"labels,omitempty"`
	Values    map[string]int64  `msgpack:"values,omitempty"`
}

// Structured event names.
const (
	CompositorLatencyEvent = "Graphics.Smoothness.Latency"
	EventLatencyEvent      = "Event.ScrollUpdate.EventLatency"
)

// Family groups histograms sharing a bucket layout.
type Family int

const (
	FamilyCompositorLatency Family = iota
	FamilyEventLatency
	FamilyVSyncRatio
	FamilyPaint
)

// Histogram ranges (values in microseconds unless stated).
const (
	CompositorLatencyMin     = 1
	CompositorLatencyMax     = 350000
	CompositorLatencyBuckets = 50

	EventLatencyMin     = 1
	EventLatencyMax     = 5000000
	EventLatencyBuckets = 100

	// Percent of a vsync interval.
	VSyncRatioMin     = 1
	VSyncRatioMax     = 100
	VSyncRatioBuckets = 50

	// Normalized area x100000.
	PaintMax     = 600001
	PaintBuckets = 50
)

// FamilyOf classifies a histogram name.
func FamilyOf(name string) Family {
	switch {
	case strings.Contains(name, "VsVSyncRatio") || strings.Contains(name, "VsVsyncRatio"):
		return FamilyVSyncRatio
	case strings.HasPrefix(name, "EventLatency."):
		return FamilyEventLatency
	case strings.HasPrefix(name, "Graphics.Paint."):
		return FamilyPaint
	default:
		return FamilyCompositorLatency
	}
}

// Tee fans every sample out to all sinks.
type Tee []HistogramSink

// EmitHistogram implements HistogramSink.
func (t Tee) EmitHistogram(name string, value int64, droppedVariant bool) {
	for _, s := range t {
		if s != nil {
			s.EmitHistogram(name, value, droppedVariant)
		}
	}
}

// StructuredTee fans every record out to all sinks.
type StructuredTee []StructuredSink

// EmitStructuredEvent implements StructuredSink.
func (t StructuredTee) EmitStructuredEvent(ev StructuredEvent) {
	for _, s := range t {
		if s != nil {
			s.EmitStructuredEvent(ev)
		}
	}
}
