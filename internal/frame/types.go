// Package frame holds the frame-identifying types shared by the reporter,
// the controller and the frame sorter.
package frame

import (
	"fmt"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/trackers"
)

// StartingSequenceNumber is the first valid begin-frame sequence number.
const StartingSequenceNumber uint64 = 1

// ID identifies a begin-frame: the source it came from and its sequence
// number within that source.
type ID struct {
	SourceID       uint64
	SequenceNumber uint64
}

// IsValid reports whether the sequence number is in range.
func (id ID) IsValid() bool { return id.SequenceNumber >= StartingSequenceNumber }

// Less orders IDs of the same source by sequence number. IDs from different
// sources are unordered (Less returns false).
func (id ID) Less(o ID) bool {
	return id.SourceID == o.SourceID && id.SequenceNumber < o.SequenceNumber
}

func (id ID) String() string {
	return fmt.Sprintf("%d/%d", id.SourceID, id.SequenceNumber)
}

// Args are the begin-frame arguments delivered with a vsync tick.
type Args struct {
	ID        ID
	FrameTime time.Time
	Deadline  time.Time
	Interval  time.Duration

	// Timestamps of the begin-frame IPC; zero when unknown.
	DispatchTime      time.Time
	ClientArrivalTime time.Time

	// Frames the display compositor throttled since the previous args.
	FramesThrottledSinceLast uint64
}

// IsValid reports whether args carry a valid ID, frame time and interval.
func (a Args) IsValid() bool {
	return a.ID.IsValid() && !a.FrameTime.IsZero() && a.Interval >= 0
}

// SkippedReason explains why a begin-frame produced no compositor frame.
type SkippedReason int

const (
	SkippedNoDamage SkippedReason = iota
	SkippedWaitingOnMain
	SkippedDrawThrottled
)

func (r SkippedReason) String() string {
	switch r {
	case SkippedNoDamage:
		return "NoDamage"
	case SkippedWaitingOnMain:
		return "WaitingOnMain"
	case SkippedDrawThrottled:
		return "DrawThrottled"
	default:
		return "Unknown"
	}
}

// FinalState is the outcome of a frame from the user's point of view.
type FinalState int

const (
	NoUpdateDesired FinalState = iota
	Dropped
	PresentedAll
	PresentedPartialOldMain
	PresentedPartialNewMain
)

func (s FinalState) String() string {
	switch s {
	case NoUpdateDesired:
		return "NoUpdateDesired"
	case Dropped:
		return "Dropped"
	case PresentedAll:
		return "PresentedAll"
	case PresentedPartialOldMain:
		return "PresentedPartialOldMain"
	case PresentedPartialNewMain:
		return "PresentedPartialNewMain"
	default:
		return "Unknown"
	}
}

// MainThreadResponse tells whether the frame carries the main thread's
// update for its begin-frame.
type MainThreadResponse int

const (
	MainThreadIncluded MainThreadResponse = iota
	MainThreadMissing
)

func (m MainThreadResponse) String() string {
	if m == MainThreadMissing {
		return "Missing"
	}
	return "Included"
}

// Info summarizes a resolved frame.
type Info struct {
	TraceID            string
	SequenceNumber     uint64
	FinalState         FinalState
	MainThreadResponse MainThreadResponse
	SmoothThread       trackers.SmoothThread
	ScrollThread       trackers.ScrollingThread
	HasPartialUpdate   bool
	ActiveTrackers     trackers.Active

	FrameTime       time.Time
	TerminationTime time.Time
}

// IsDropped reports whether the frame was dropped.
func (i Info) IsDropped() bool { return i.FinalState == Dropped }

// IsPresented reports whether any update of the frame reached the screen.
func (i Info) IsPresented() bool {
	switch i.FinalState {
	case PresentedAll, PresentedPartialOldMain, PresentedPartialNewMain:
		return true
	}
	return false
}

// IsDroppedAffectingSmoothness reports a drop while a smoothness-affecting
// animation was running.
func (i Info) IsDroppedAffectingSmoothness() bool {
	return i.IsDropped() && i.SmoothThread != trackers.SmoothNone
}
