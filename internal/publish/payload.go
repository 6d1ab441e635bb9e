package publish

import (
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/samplebus"
)

// FramePayload is the JSON body published for a finalized frame.
type FramePayload struct {
	Seq                uint64 `json:"seq"`
	TraceID            string `json:"trace_id"`
	FrameSequence      uint64 `json:"frame_sequence"`
	SourceID           uint64 `json:"source_id"`
	FinalState         string `json:"final_state"`
	MainThreadResponse string `json:"main_thread_response"`
	SmoothThread       string `json:"smooth_thread"`
	ScrollThread       string `json:"scroll_thread"`
	HasPartialUpdate   bool   `json:"has_partial_update"`
	ActiveTrackers     string `json:"active_trackers,omitempty"`
	LatencyUS          int64  `json:"latency_us"`
	Timestamp          int64  `json:"timestamp_ms"`
}

// NewFramePayload converts a KindFrame sample.
func NewFramePayload(s samplebus.Sample) FramePayload {
	info := s.Frame
	var latency int64
	if !info.FrameTime.IsZero() && !info.TerminationTime.IsZero() {
		latency = info.TerminationTime.Sub(info.FrameTime).Microseconds()
	}
	return FramePayload{
		Seq:                s.Seq,
		TraceID:            info.TraceID,
		FrameSequence:      info.SequenceNumber,
		SourceID:           s.Args.ID.SourceID,
		FinalState:         info.FinalState.String(),
		MainThreadResponse: info.MainThreadResponse.String(),
		SmoothThread:       info.SmoothThread.String(),
		ScrollThread:       info.ScrollThread.String(),
		HasPartialUpdate:   info.HasPartialUpdate,
		ActiveTrackers:     info.ActiveTrackers.String(),
		LatencyUS:          latency,
		Timestamp:          s.Timestamp.UnixMilli(),
	}
}

// EventLatency is one event in an EventPayload.
type EventLatency struct {
	Type    string `json:"type"`
	Device  string `json:"device,omitempty"`
	TotalUS int64  `json:"total_us"`
}

// EventPayload is the JSON body published for the events of a presented
// frame.
type EventPayload struct {
	Seq           uint64         `json:"seq"`
	FrameSequence uint64         `json:"frame_sequence"`
	SourceID      uint64         `json:"source_id"`
	Events        []EventLatency `json:"events"`
	Timestamp     int64          `json:"timestamp_ms"`
}

// NewEventPayload converts a KindEventLatency sample.
func NewEventPayload(s samplebus.Sample) EventPayload {
	evs := make([]EventLatency, 0, len(s.Events))
	for _, e := range s.Events {
		evs = append(evs, EventLatency{
			Type:    e.Type.String(),
			Device:  e.Device,
			TotalUS: e.Total.Microseconds(),
		})
	}
	return EventPayload{
		Seq:           s.Seq,
		FrameSequence: s.Args.ID.SequenceNumber,
		SourceID:      s.Args.ID.SourceID,
		Events:        evs,
		Timestamp:     s.Timestamp.UnixMilli(),
	}
}
