package controller

import (
	"log/slog"
	"sort"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/frame"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/reporter"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/stage"
)

// processSkippedFramesIfNecessary backfills the begin-frames skipped between
// the last started frame and args, then remembers args.
func (c *Controller) processSkippedFramesIfNecessary(args frame.Args) {
	if c.lastValid && c.last.args.IsValid() && c.last.args.ID.SourceID == args.ID.SourceID {
		c.createReportersForDroppedFrames(c.last.args, args)
	}
	c.last = lastStarted{args: args, snap: c.snapshot()}
	c.lastValid = true
}

// createReportersForDroppedFrames synthesizes a reporter for each frame
// between oldArgs and newArgs the display compositor did not throttle. Each
// one starts at its would-be frame time and is dropped at its deadline.
func (c *Controller) createReportersForDroppedFrames(oldArgs, newArgs frame.Args) {
	interval := int64(newArgs.ID.SequenceNumber) -
		int64(oldArgs.ID.SequenceNumber) -
		int64(newArgs.FramesThrottledSinceLast)
	if interval <= 1 {
		return
	}
	if interval > int64(c.cfg.MaxBackfillFrames) {
		slog.Debug("controller: skipped frame gap too large to backfill",
			"from", oldArgs.ID.String(),
			"to", newArgs.ID.String(),
			"interval", interval,
		)
		return
	}

	snap := c.snapshot()
	timestamp := oldArgs.FrameTime.Add(oldArgs.Interval)
	for i := int64(1); i < interval; i++ {
		args := frame.Args{
			ID: frame.ID{
				SourceID:       oldArgs.ID.SourceID,
				SequenceNumber: oldArgs.ID.SequenceNumber + uint64(i),
			},
			FrameTime: timestamp,
			Deadline:  timestamp.Add(oldArgs.Interval),
			Interval:  oldArgs.Interval,
		}
		r := c.newReporter(args, snap)
		r.StartStage(stage.BeginImplFrameToSendBeginMainFrame, timestamp)
		r.TerminateFrame(reporter.DidNotPresentFrame, args.Deadline)
		r.SetIsBackfill(true)
		c.framesBackfilled.Add(1)
		c.release(r)

		timestamp = timestamp.Add(oldArgs.Interval)
	}
}

// storeEventMetricsFromDroppedFrames keeps the events of a dropped reporter
// under its frame token until a later frame presents.
//
// Main-thread-blocked events always go to the main list. The rest follow
// the reporter kind.
func (c *Controller) storeEventMetricsFromDroppedFrames(r *reporter.FrameReporter, token uint32) {
	blocked := r.TakeMainBlockedEventsMetrics()
	remaining := r.TakeEventsMetrics()
	if len(blocked) == 0 && len(remaining) == 0 {
		return
	}

	i := sort.Search(len(c.dropped), func(i int) bool {
		return !tokenGT(token, c.dropped[i].token)
	})
	if i == len(c.dropped) || c.dropped[i].token != token {
		c.dropped = append(c.dropped, droppedEvents{})
		copy(c.dropped[i+1:], c.dropped[i:])
		c.dropped[i] = droppedEvents{token: token}
	}

	set := &c.dropped[i].set
	set.Main = append(set.Main, blocked...)
	if r.Kind() == reporter.KindImpl {
		set.Impl = append(set.Impl, remaining...)
	} else {
		set.Main = append(set.Main, remaining...)
	}
	c.droppedEventSets.Store(int64(len(c.dropped)))
}

// maybePassEventMetricsFromDroppedFrames hands the events of frames dropped
// before token to a presented reporter.
//
// A main reporter followed by an impl reporter of the same frame takes only
// the main events and leaves the sets for the impl reporter to consume.
func (c *Controller) maybePassEventMetricsFromDroppedFrames(r *reporter.FrameReporter, token uint32, nextFromSameFrame bool) {
	if r.Kind() == reporter.KindMain && nextFromSameFrame {
		for i := range c.dropped {
			if !tokenGT(token, c.dropped[i].token) {
				break
			}
			r.AddEventsMetrics(c.dropped[i].set.Main...)
			c.dropped[i].set.Main = nil
		}
		return
	}

	n := 0
	for n < len(c.dropped) && tokenGT(token, c.dropped[n].token) {
		set := c.dropped[n].set
		r.AddEventsMetrics(set.Main...)
		r.AddEventsMetrics(set.Impl...)
		r.AddEventsMetrics(set.Raster...)
		n++
	}
	c.dropped = append(c.dropped[:0], c.dropped[n:]...)
	c.droppedEventSets.Store(int64(len(c.dropped)))
}

// eraseDroppedEventsBefore discards the events of frames dropped before
// token, which were collected while the page was hidden.
func (c *Controller) eraseDroppedEventsBefore(token uint32) {
	n := 0
	for n < len(c.dropped) && tokenGT(token, c.dropped[n].token) {
		n++
	}
	if n == 0 {
		return
	}
	slog.Debug("controller: discarding events from frames dropped while hidden",
		"frames", n,
		"before_token", token,
	)
	c.dropped = append(c.dropped[:0], c.dropped[n:]...)
	c.droppedEventSets.Store(int64(len(c.dropped)))
}
