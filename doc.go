// Package framelatency reports the latency of compositor frames.
//
// # Overview
//
// A Pipeline follows every begin-frame through the compositor stages
// (begin-impl, begin-main, commit, activation, submission, presentation) and
// reports, for each frame, how long it spent in each stage and whether it
// was presented, dropped or had nothing to update:
//
//	"One reporter per frame. Every reporter is finalized exactly once."
//
// Frames that share a submission are tied together by a partial-update
// dependency graph, so a frame whose main-thread update arrives later is
// reported once the update it depends on is decided.
//
// # Basic Usage
//
//	rec := framelatency.NewRecorder()
//	p, err := framelatency.New(framelatency.Options{
//	    Config:     framelatency.DefaultConfig(),
//	    Histograms: rec,
//	})
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	p.WillBeginImplFrame(args)
//	p.DidSubmitCompositorFrame(info, args.ID, args.ID)
//	p.OnFinishImplFrame(args.ID)
//	p.DidPresentCompositorFrame(token, details)
//
// # Outputs
//
// Finalized reporters emit into the collaborators given in Options:
//   - HistogramSink: CompositorLatency2.*, EventLatency.* and the paint and
//     IPC histograms (Recorder in memory, or the Prometheus exporter)
//   - StructuredSink: one record per emitting frame (UKM-style)
//   - Observer: frame infos and per-frame event latencies, typically a
//     sample bus
//
// # Thread-safety
//
// A Pipeline lives on the compositor sequence: lifecycle calls must be
// serialized. Stats is safe to call from other goroutines for the
// controller counters only.
package framelatency
