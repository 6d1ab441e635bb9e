package reporter

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/events"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/frame"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/sink"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/stage"
)

// Histogram name prefixes.
const (
	compositorLatencyPrefix = "CompositorLatency2"
	droppedFramePrefix      = "CompositorLatency2.DroppedFrame"
	ipcPrefix               = "CompositorLatency.IpcThread"
	eventLatencyPrefix      = "EventLatency"
	paintMetricName         = "Graphics.Paint.UI.NormalizedInvalidatedArea"

	generationToBrowserMain = "GenerationToBrowserMain"
	paintConversionFactor   = 100000
)

// Finalize emits the frame's metrics and releases its owned dependents.
//
// Sequence:
//  1. terminate with StatusUnknown if the frame never terminated
//  2. derive FrameInfo and the report types from the outcome
//  3. emit compositor latency (stages, breakdowns, IPC) when any report type
//     is set
//  4. emit event latency when the frame was presented
//  5. hand the frame to the sorter and the observer
//  6. finalize owned dependents, oldest first
//
// Only the first call (or the first of Finalize/eviction) has an effect.
func (r *FrameReporter) Finalize() {
	if r.finalized || r.discarded {
		return
	}
	r.finalized = true

	if !r.terminated {
		r.TerminateFrame(StatusUnknown, r.clock.Now())
	}

	blink := newBlinkBreakdown(r.blinkStart, r.beginMainFrameStart, r.blinkMetrics)
	viz := newVizBreakdown(r.vizStart, r.vizDetails)

	info := r.GenerateFrameInfo()
	switch info.FinalState {
	case frame.Dropped:
		r.reportTypes |= DroppedFrame
	case frame.NoUpdateDesired:
		// The decider ended with no damage: its dependents did not miss a
		// main-thread update.
		r.graph.detachAll()
	default:
		r.reportTypes |= NonDroppedFrame
		deadline := r.args.FrameTime.Add(r.args.Interval * 3 / 2)
		if deadline.Before(r.terminationTime) {
			r.reportTypes |= MissedDeadlineFrame
		}
	}

	g := r.global
	if g == nil {
		g = &GlobalTrackers{}
	}

	if r.reportTypes.Any() && (r.cfg.ReportHistograms || g.Structured != nil || g.Observer != nil) {
		if r.stages.Len() > 0 {
			start, end, _ := r.stages.Span()
			r.stages.Append(stage.Record{Kind: stage.TotalLatency, Start: start, End: end})

			r.reportCompositorLatency(g, &blink, &viz)
			if r.reportTypes.Has(NonDroppedFrame) {
				r.reportEventLatency(g, end)
			}
		} else {
			slog.Debug("reporter: frame has no stages to report",
				"frame_id", r.args.ID.String(),
				"report_types", r.reportTypes.String(),
			)
		}
	}

	if r.cfg.PaintMetrics && r.paintArea != nil {
		r.reportPaint(g)
	}

	if g.Sorter != nil {
		g.Sorter.AddFrameInfoToBuffer(info)
		if g.Sorter.FirstContentfulPaintReceived() {
			g.Sorter.AddFrameResult(r.args, info)
		}
	}
	if g.Observer != nil {
		g.Observer.OnFrameFinalized(r.args, info)
	}

	slog.Debug("reporter: frame finalized",
		"frame_id", r.args.ID.String(),
		"status", r.status.String(),
		"final_state", info.FinalState.String(),
		"report_types", r.reportTypes.String(),
		"events", r.events.Len(),
		"owned_dependents", len(r.graph.owned),
	)

	for _, d := range r.graph.takeOwned() {
		d.Finalize()
	}
}

// ReportTypes returns the report categories decided by Finalize.
func (r *FrameReporter) ReportTypes() ReportType { return r.reportTypes }

func (r *FrameReporter) emit(g *GlobalTrackers, name string, d time.Duration, dropped bool) {
	if !r.cfg.ReportHistograms || g.Histograms == nil {
		return
	}
	g.Histograms.EmitHistogram(name, d.Microseconds(), dropped)
}

func (r *FrameReporter) reportCompositorLatency(g *GlobalTrackers, blink *blinkBreakdown, viz *vizBreakdown) {
	history := r.stages.History()

	if g.Structured != nil {
		g.Structured.EmitStructuredEvent(r.compositorRecord(history, blink, viz))
	}

	var prefixes []string
	if r.reportTypes.Has(NonDroppedFrame) {
		prefixes = append(prefixes, compositorLatencyPrefix)
	}
	if r.reportTypes.Has(DroppedFrame) {
		prefixes = append(prefixes, droppedFramePrefix)
	}
	for _, t := range r.snapshot.Active.Types() {
		prefixes = append(prefixes, compositorLatencyPrefix+"."+t.String())
	}

	for _, prefix := range prefixes {
		dropped := prefix == droppedFramePrefix
		for _, rec := range history {
			r.emit(g, prefix+"."+rec.Kind.String(), rec.Duration(), dropped)
			switch rec.Kind {
			case stage.SendBeginMainFrameToCommit:
				blink.each(func(b stage.BlinkBreakdown, d time.Duration) {
					r.emit(g, prefix+"."+stage.BlinkName(b), d, dropped)
				})
			case stage.SubmitCompositorFrameToPresentationCompositorFrame:
				viz.each(func(v stage.VizBreakdown, d time.Duration) {
					r.emit(g, prefix+"."+stage.VizName(v), d, dropped)
				})
			}
		}
	}

	r.reportIPCLatency(g)
}

// reportIPCLatency reports the begin-frame IPC and thread hops. Requires
// frame, dispatch and client-arrival times.
func (r *FrameReporter) reportIPCLatency(g *GlobalTrackers) {
	a := r.args
	if a.FrameTime.IsZero() || a.DispatchTime.IsZero() || a.ClientArrivalTime.IsZero() {
		return
	}

	var vsyncToViz time.Duration
	if a.DispatchTime.After(a.FrameTime) {
		vsyncToViz = a.DispatchTime.Sub(a.FrameTime)
		r.emit(g, ipcPrefix+".FrameTimeToDispatch", vsyncToViz, false)
	}
	vizToClient := a.ClientArrivalTime.Sub(a.DispatchTime)
	r.emit(g, ipcPrefix+".DispatchToRenderer", vizToClient, false)

	if r.beginMainFrameStart.IsZero() || r.blinkStart.IsZero() {
		r.emit(g, ipcPrefix+".ImplThreadTotalLatency", vsyncToViz+vizToClient, false)
		return
	}
	implToMain := r.beginMainFrameStart.Sub(r.blinkStart)
	r.emit(g, ipcPrefix+".BeginMainFrameQueuing", implToMain, false)
	r.emit(g, ipcPrefix+".MainThreadTotalLatency", vsyncToViz+vizToClient+implToMain, false)
}

func (r *FrameReporter) compositorRecord(history []stage.Record, blink *blinkBreakdown, viz *vizBreakdown) sink.StructuredEvent {
	values := make(map[string]int64, len(history)+int(stage.BlinkBreakdownCount)+int(stage.VizBreakdownCount))
	for _, rec := range history {
		values[rec.Kind.String()] = rec.Duration().Microseconds()
	}
	blink.each(func(b stage.BlinkBreakdown, d time.Duration) {
		values[stage.BlinkName(b)] = d.Microseconds()
	})
	viz.each(func(v stage.VizBreakdown, d time.Duration) {
		values[stage.VizName(v)] = d.Microseconds()
	})

	return sink.StructuredEvent{
		Name:      sink.CompositorLatencyEvent,
		TraceID:   r.id.String(),
		Sequence:  r.args.ID.SequenceNumber,
		Timestamp: r.terminationTime,
		Labels: map[string]string{
			"report_types": r.reportTypes.String(),
			"status":       r.status.String(),
			"trackers":     r.snapshot.Active.String(),
		},
		Values: values,
	}
}

// reportEventLatency reports every attached event against the end of the
// frame's last stage.
//
// Names per event (Type is the classified type):
//
//	EventLatency.<Type>.TotalLatency[2]                 (not for pinch)
//	EventLatency.<Type>.<Device>.TotalLatency[2]        (scroll, pinch)
//	EventLatency.<Type>.GenerationToBrowserMain         (scroll, versioned)
//	EventLatency.<Type>.<Ratio>.{Before,After}VSync     (scroll)
//	EventLatency.TotalLatency
//
// Versioned types report only the "2" name, except guiding metrics which
// report both.
func (r *FrameReporter) reportEventLatency(g *GlobalTrackers, presentation time.Time) {
	latencies := r.events.ComputeLatencies(presentation)
	if len(latencies) == 0 {
		return
	}

	var observed []EventLatencyData
	for _, l := range latencies {
		ev := l.Event
		bucketing := events.BucketingFor(l.Type)
		base := eventLatencyPrefix + "." + l.Type.String()
		total := stage.TotalLatency.String()
		device := ""
		if ev.IsScroll() || ev.IsPinch() {
			device = events.GestureDeviceName(l.Type, ev.Device)
		}

		if !ev.IsPinch() {
			r.emitEvent(g, base+"."+total, l.Total, bucketing, false)
		}
		if device != "" {
			r.emitEvent(g, base+"."+device+"."+total, l.Total, bucketing,
				ev.IsScroll() && events.IsGuidingMetric(l.Type, ev.Device))
		}
		if ev.IsScroll() {
			r.reportScrollTiming(g, base, ev, bucketing)
		}
		r.emit(g, eventLatencyPrefix+"."+total, l.Total, false)

		if g.Structured != nil {
			g.Structured.EmitStructuredEvent(r.eventRecord(l, device))
		}
		observed = append(observed, EventLatencyData{Type: l.Type, Device: device, Total: l.Total})
	}

	if g.Observer != nil {
		g.Observer.OnEventLatencies(r.args, observed)
	}
}

func (r *FrameReporter) emitEvent(g *GlobalTrackers, name string, d time.Duration, b *events.Bucketing, guiding bool) {
	if b != nil {
		r.emit(g, name+b.VersionSuffix, d, false)
	}
	if b == nil || guiding {
		r.emit(g, name, d, false)
	}
}

func (r *FrameReporter) reportScrollTiming(g *GlobalTrackers, base string, ev *events.Metrics, b *events.Bucketing) {
	generated := ev.GetDispatchStageTimestamp(events.Generated)
	originValid := !ev.OriginFrameTime.IsZero() && ev.OriginInterval > 0

	if browserMain := ev.GetDispatchStageTimestamp(events.ArrivedInBrowserMain); !browserMain.IsZero() {
		if b != nil {
			r.emit(g, base+"."+generationToBrowserMain, browserMain.Sub(generated), false)
		}
		if originValid {
			r.emitVSyncRatio(g, base+".GenerationVsVsyncRatio", ev.OriginFrameTime.Sub(generated), ev.OriginInterval)
		}
	}

	arrived := ev.GetDispatchStageTimestamp(events.ArrivedInRendererCompositor)
	if originValid && !arrived.IsZero() {
		r.emitVSyncRatio(g, base+".ArrivedInRendererVsVSyncRatio", arrived.Sub(ev.OriginFrameTime), ev.OriginInterval)
	}
}

// emitVSyncRatio reports delta as a percentage of interval, rounded up,
// under ".BeforeVSync" for negative deltas and ".AfterVSync" otherwise.
func (r *FrameReporter) emitVSyncRatio(g *GlobalTrackers, name string, delta, interval time.Duration) {
	if !r.cfg.ReportHistograms || g.Histograms == nil {
		return
	}
	ratio := 100 * float64(delta) / float64(interval)
	if delta < 0 {
		g.Histograms.EmitHistogram(name+".BeforeVSync", int64(math.Ceil(-ratio)), false)
		return
	}
	g.Histograms.EmitHistogram(name+".AfterVSync", int64(math.Ceil(ratio)), false)
}

func (r *FrameReporter) eventRecord(l events.Latency, device string) sink.StructuredEvent {
	values := map[string]int64{
		stage.TotalLatency.String(): l.Total.Microseconds(),
	}
	for _, s := range l.Stages {
		var b strings.Builder
		b.WriteString(s.From.String())
		b.WriteString("To")
		if s.ToPresentation {
			b.WriteString("Presentation")
		} else {
			b.WriteString(s.To.String())
		}
		values[b.String()] = s.Delta.Microseconds()
	}
	labels := map[string]string{"event_type": l.Type.String()}
	if device != "" {
		labels["device"] = device
	}
	return sink.StructuredEvent{
		Name:      sink.EventLatencyEvent,
		TraceID:   r.id.String(),
		Sequence:  r.args.ID.SequenceNumber,
		Timestamp: r.terminationTime,
		Labels:    labels,
		Values:    values,
	}
}

// reportPaint reports the normalized invalidated area. Frames that repainted
// nothing are skipped.
func (r *FrameReporter) reportPaint(g *GlobalTrackers) {
	if g.Histograms == nil || *r.paintArea == 0 {
		return
	}
	g.Histograms.EmitHistogram(paintMetricName, int64(*r.paintArea*paintConversionFactor), false)
}
