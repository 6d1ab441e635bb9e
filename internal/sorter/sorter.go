// Package sorter orders resolved frames by begin-frame sequence and keeps
// running frame statistics.
//
// Frames resolve out of order (a later frame can be presented before an
// earlier one is reported dropped). The sorter holds results until every
// earlier pending frame has resolved, then releases them in order to
// observers and counters.
package sorter

import (
	"log/slog"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/frame"
)

// DefaultBufferSize is the capacity of the recent-frames ring buffer.
const DefaultBufferSize = 180

// Observer receives frames in begin-frame order.
type Observer interface {
	AddSortedFrame(args frame.Args, info frame.Info)
}

// Stats is a snapshot of the sorter counters.
type Stats struct {
	// TotalFrames counts every sorted frame (presented, dropped, no-update).
	TotalFrames uint64

	// PresentedFrames counts frames with any presented update.
	PresentedFrames uint64

	// DroppedFrames counts frames whose final state is Dropped.
	DroppedFrames uint64

	// PartialFrames counts presented frames missing part of their update.
	PartialFrames uint64

	// NoUpdateFrames counts frames that had nothing to update.
	NoUpdateFrames uint64

	// DroppedAffectingSmoothness counts drops during smoothness-affecting
	// animations.
	DroppedAffectingSmoothness uint64

	// PendingFrames is the number of frames awaiting an earlier frame.
	PendingFrames int

	// BufferedFrames is the number of frames in the recent-frames buffer.
	BufferedFrames int

	// Presentation latency (frame time to termination) over the last 100
	// presented frames, in milliseconds.
	LatencyMeanMS float64
	LatencyP95MS  float64
	LatencyMaxMS  float64
}

type pendingFrame struct {
	args     frame.Args
	info     frame.Info
	resolved bool
}

// Sorter is the frame sorter.
//
// Thread-safety: NOT safe for concurrent use (compositor sequence only).
type Sorter struct {
	fcpReceived bool

	pending []*pendingFrame

	ring     []frame.Info
	ringNext int
	ringLen  int

	stats     Stats
	latency   LatencyWindow
	observers []Observer
}

// New creates a sorter whose recent-frames buffer holds bufferSize frames
// (DefaultBufferSize when <= 0).
func New(bufferSize int) *Sorter {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Sorter{ring: make([]frame.Info, bufferSize)}
}

// AddObserver registers o for sorted frames.
func (s *Sorter) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// RemoveObserver unregisters o.
func (s *Sorter) RemoveObserver(o Observer) {
	for i, cur := range s.observers {
		if cur == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// SetFirstContentfulPaintReceived opens the gate for sorting frames.
func (s *Sorter) SetFirstContentfulPaintReceived() { s.fcpReceived = true }

// FirstContentfulPaintReceived reports whether frames are being sorted.
func (s *Sorter) FirstContentfulPaintReceived() bool { return s.fcpReceived }

// AddNewFrame registers a started frame that must resolve before later ones
// are released.
func (s *Sorter) AddNewFrame(args frame.Args) {
	for _, p := range s.pending {
		if p.args.ID == args.ID {
			return
		}
	}
	if n := len(s.pending); n > 0 && args.ID.Less(s.pending[n-1].args.ID) {
		slog.Debug("sorter: frame started out of order", "frame_id", args.ID.String())
	}
	s.pending = append(s.pending, &pendingFrame{args: args})
}

// AddFrameResult resolves a frame. A frame reported more than once (partial
// updates) is dropped if any of its results is dropped.
func (s *Sorter) AddFrameResult(args frame.Args, info frame.Info) {
	var target *pendingFrame
	for _, p := range s.pending {
		if p.args.ID == args.ID {
			target = p
			break
		}
	}
	if target == nil {
		// Not registered (started before first contentful paint).
		s.release(args, info)
		return
	}

	if target.resolved {
		if info.IsDropped() && !target.info.IsDropped() {
			target.info = info
		}
	} else {
		target.info = info
		target.resolved = true
	}
	s.flush()
}

func (s *Sorter) flush() {
	for len(s.pending) > 0 && s.pending[0].resolved {
		p := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		s.release(p.args, p.info)
	}
}

func (s *Sorter) release(args frame.Args, info frame.Info) {
	s.stats.TotalFrames++
	switch {
	case info.IsDropped():
		s.stats.DroppedFrames++
		if info.IsDroppedAffectingSmoothness() {
			s.stats.DroppedAffectingSmoothness++
		}
	case info.IsPresented():
		s.stats.PresentedFrames++
		if info.FinalState != frame.PresentedAll {
			s.stats.PartialFrames++
		}
		if !args.FrameTime.IsZero() && info.TerminationTime.After(args.FrameTime) {
			s.latency.AddSample(float64(info.TerminationTime.Sub(args.FrameTime).Microseconds()) / 1000.0)
		}
	default:
		s.stats.NoUpdateFrames++
	}
	for _, o := range s.observers {
		o.AddSortedFrame(args, info)
	}
}

// AddFrameInfoToBuffer appends info to the recent-frames ring buffer.
func (s *Sorter) AddFrameInfoToBuffer(info frame.Info) {
	s.ring[s.ringNext] = info
	s.ringNext = (s.ringNext + 1) % len(s.ring)
	if s.ringLen < len(s.ring) {
		s.ringLen++
	}
}

// RecentFrames returns the buffered frames, oldest first.
func (s *Sorter) RecentFrames() []frame.Info {
	out := make([]frame.Info, 0, s.ringLen)
	start := (s.ringNext - s.ringLen + len(s.ring)) % len(s.ring)
	for i := 0; i < s.ringLen; i++ {
		out = append(out, s.ring[(start+i)%len(s.ring)])
	}
	return out
}

// Reset discards pending frames (e.g. on navigation).
func (s *Sorter) Reset() {
	s.pending = nil
}

// Stats returns a snapshot of the counters.
func (s *Sorter) Stats() Stats {
	st := s.stats
	st.PendingFrames = len(s.pending)
	st.BufferedFrames = s.ringLen
	st.LatencyMeanMS, st.LatencyP95MS, st.LatencyMaxMS = s.latency.GetStats()
	return st
}
