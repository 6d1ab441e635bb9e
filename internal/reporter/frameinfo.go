package reporter

import (
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/frame"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/trackers"
)

// GenerateFrameInfo summarizes the frame outcome for the frame sorter and
// the report-type decision.
//
// Final state:
//   - PresentedFrame: PresentedAll, or PresentedPartial{New,Old}Main when the
//     frame has a partial update
//   - DidNotPresentFrame, ReplacedByNewReporter, MainFrameAborted: Dropped
//   - DidNotProduceFrame: NoUpdateDesired only when neither thread expected
//     an update, unless the draw was throttled
//   - otherwise NoUpdateDesired
func (r *FrameReporter) GenerateFrameInfo() frame.Info {
	finalState := frame.NoUpdateDesired
	smooth := r.snapshot.Smooth
	scrolling := r.snapshot.Scrolling
	reason, hasReason := r.skipReason, r.hasSkipReason

	switch r.status {
	case PresentedFrame:
		switch {
		case !r.hasPartialUpdate:
			finalState = frame.PresentedAll
		case r.accompaniedByMainThreadUpdate:
			finalState = frame.PresentedPartialNewMain
		default:
			finalState = frame.PresentedPartialOldMain
		}

	case DidNotPresentFrame, ReplacedByNewReporter, MainFrameAborted:
		finalState = frame.Dropped

	case DidNotProduceFrame:
		noUpdateFromMain := hasReason && reason == frame.SkippedNoDamage
		noUpdateFromCompositor := !r.hasPartialUpdate && hasReason && reason == frame.SkippedWaitingOnMain
		drawThrottled := hasReason && reason == frame.SkippedDrawThrottled

		switch {
		case !noUpdateFromMain && !noUpdateFromCompositor:
			finalState = frame.Dropped
		case drawThrottled:
			finalState = frame.Dropped
		default:
			finalState = frame.NoUpdateDesired
		}

		// A compositor animation that produced nothing while waiting on main
		// caused no visual change.
		if hasReason && reason == frame.SkippedWaitingOnMain {
			switch smooth {
			case trackers.SmoothBoth:
				smooth = trackers.SmoothMain
			case trackers.SmoothCompositor:
				smooth = trackers.SmoothNone
			}
			if scrolling == trackers.ScrollingCompositor {
				scrolling = trackers.ScrollingUnknown
			}
		}
	}

	info := frame.Info{
		TraceID:          r.id.String(),
		SequenceNumber:   r.args.ID.SequenceNumber,
		FinalState:       finalState,
		SmoothThread:     smooth,
		ScrollThread:     scrolling,
		HasPartialUpdate: r.hasPartialUpdate,
		ActiveTrackers:   r.snapshot.Active,
		FrameTime:        r.args.FrameTime,
		TerminationTime:  r.terminationTime,
	}

	switch {
	case hasReason && reason == frame.SkippedNoDamage:
		info.MainThreadResponse = frame.MainThreadIncluded
	case len(r.graph.dependents) > 0:
		// Only a frame carrying the main-thread response can have dependents.
		info.MainThreadResponse = frame.MainThreadIncluded
	case r.beginMainFrameStart.IsZero() || (hasReason && reason == frame.SkippedWaitingOnMain):
		info.MainThreadResponse = frame.MainThreadMissing
	default:
		info.MainThreadResponse = frame.MainThreadIncluded
	}
	return info
}
