package sink

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus exports histogram samples as Prometheus histograms, one vector
// per bucket family with the original histogram name as the "histogram"
// label.
//
// Thread-safety: Safe for concurrent use.
type Prometheus struct {
	compositor *prometheus.HistogramVec
	event      *prometheus.HistogramVec
	ratio      *prometheus.HistogramVec
	paint      *prometheus.HistogramVec

	droppedSamples *prometheus.CounterVec
	records        *prometheus.CounterVec
}

// NewPrometheus registers the collectors on reg (prometheus.DefaultRegisterer
// when nil) under namespace.
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	labels := []string{"histogram"}

	return &Prometheus{
		compositor: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compositor_latency_microseconds",
			Help:      "Compositor frame stage latency",
			Buckets:   prometheus.ExponentialBucketsRange(CompositorLatencyMin, CompositorLatencyMax, CompositorLatencyBuckets),
		}, labels),
		event: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_latency_microseconds",
			Help:      "Input event latency up to frame presentation",
			Buckets:   prometheus.ExponentialBucketsRange(EventLatencyMin, EventLatencyMax, EventLatencyBuckets),
		}, labels),
		ratio: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_vsync_ratio_percent",
			Help:      "Event timing relative to the vsync interval",
			Buckets:   prometheus.LinearBuckets(VSyncRatioMin, (VSyncRatioMax-VSyncRatioMin)/float64(VSyncRatioBuckets-1), VSyncRatioBuckets),
		}, labels),
		paint: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "paint_normalized_invalidated_area",
			Help:      "Normalized invalidated paint area x100000",
			Buckets:   prometheus.ExponentialBucketsRange(1, PaintMax, PaintBuckets),
		}, labels),
		droppedSamples: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_frame_samples_total",
			Help:      "Samples recorded for dropped-frame histogram variants",
		}, labels),
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "structured_records_total",
			Help:      "Structured latency records by name",
		}, []string{"name"}),
	}
}

// EmitHistogram implements HistogramSink.
func (p *Prometheus) EmitHistogram(name string, value int64, droppedVariant bool) {
	var vec *prometheus.HistogramVec
	switch FamilyOf(name) {
	case FamilyEventLatency:
		vec = p.event
	case FamilyVSyncRatio:
		vec = p.ratio
	case FamilyPaint:
		vec = p.paint
	default:
		vec = p.compositor
	}
	vec.WithLabelValues(name).Observe(float64(value))
	if droppedVariant {
		p.droppedSamples.WithLabelValues(name).Inc()
	}
}

// EmitStructuredEvent implements StructuredSink by counting records.
func (p *Prometheus) EmitStructuredEvent(ev StructuredEvent) {
	p.records.WithLabelValues(ev.Name).Inc()
}
