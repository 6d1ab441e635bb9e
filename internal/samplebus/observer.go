package samplebus

import (
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/frame"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/reporter"
)

// Observer publishes reporter callbacks as samples.
type Observer struct {
	Bus Bus
}

var _ reporter.Observer = (*Observer)(nil)

// OnFrameFinalized implements reporter.Observer.
func (o *Observer) OnFrameFinalized(args frame.Args, info frame.Info) {
	o.Bus.Publish(Sample{Kind: KindFrame, Args: args, Frame: info})
}

// OnEventLatencies implements reporter.Observer.
func (o *Observer) OnEventLatencies(args frame.Args, latencies []reporter.EventLatencyData) {
	if len(latencies) == 0 {
		return
	}
	evs := make([]reporter.EventLatencyData, len(latencies))
	copy(evs, latencies)
	o.Bus.Publish(Sample{Kind: KindEventLatency, Args: args, Events: evs})
}
