// Package trackers holds the set of frame-sequence trackers that are active
// for upcoming frames, and the thread currently driving smoothness.
package trackers

import "strings"

// Type is a frame-sequence tracker kind.
type Type int

const (
	CompositorAnimation Type = iota
	MainThreadAnimation
	PinchZoom
	RAF
	TouchScroll
	Video
	WheelScroll
	ScrollbarScroll
	Custom
	CanvasAnimation
	JSAnimation
	SETMainThreadAnimation
	SETCompositorAnimation
	CompositorRasterAnimation
	CompositorNativeAnimation

	// MaxType reports under the top-level (unnamed) histograms.
	MaxType
)

var typeNames = [MaxType + 1]string{
	CompositorAnimation:       "CompositorAnimation",
	MainThreadAnimation:       "MainThreadAnimation",
	PinchZoom:                 "PinchZoom",
	RAF:                       "RAF",
	TouchScroll:               "TouchScroll",
	Video:                     "Video",
	WheelScroll:               "WheelScroll",
	ScrollbarScroll:           "ScrollbarScroll",
	Custom:                    "Custom",
	CanvasAnimation:           "CanvasAnimation",
	JSAnimation:               "JSAnimation",
	SETMainThreadAnimation:    "SETMainThreadAnimation",
	SETCompositorAnimation:    "SETCompositorAnimation",
	CompositorRasterAnimation: "CompositorRasterAnimation",
	CompositorNativeAnimation: "CompositorNativeAnimation",
	MaxType:                   "",
}

// String returns the histogram name component; empty for MaxType.
func (t Type) String() string {
	if t < 0 || t > MaxType {
		return ""
	}
	return typeNames[t]
}

// ParseType resolves a tracker name.
func ParseType(name string) (Type, bool) {
	for i := CompositorAnimation; i < MaxType; i++ {
		if typeNames[i] == name {
			return i, true
		}
	}
	return MaxType, false
}

// Active is a bitmask of active tracker types.
type Active uint32

// With returns a copy of a with t set.
func (a Active) With(t Type) Active { return a | 1<<uint(t) }

// Without returns a copy of a with t cleared.
func (a Active) Without(t Type) Active { return a &^ (1 << uint(t)) }

// Has reports whether t is set.
func (a Active) Has(t Type) bool { return a&(1<<uint(t)) != 0 }

// Types returns the set types in ascending order.
func (a Active) Types() []Type {
	var out []Type
	for t := CompositorAnimation; t < MaxType; t++ {
		if a.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// String joins the active tracker names with "|".
func (a Active) String() string {
	names := make([]string, 0, 4)
	for _, t := range a.Types() {
		names = append(names, t.String())
	}
	return strings.Join(names, "|")
}

// SmoothThread is the set of threads whose animations affect smoothness.
type SmoothThread int

const (
	SmoothNone SmoothThread = iota
	SmoothCompositor
	SmoothMain
	SmoothBoth
	SmoothRaster
)

func (s SmoothThread) String() string {
	switch s {
	case SmoothCompositor:
		return "Compositor"
	case SmoothMain:
		return "Main"
	case SmoothBoth:
		return "Both"
	case SmoothRaster:
		return "Raster"
	default:
		return "None"
	}
}

// ScrollingThread is the thread driving the current scroll, if any.
type ScrollingThread int

const (
	ScrollingUnknown ScrollingThread = iota
	ScrollingCompositor
	ScrollingMain
	ScrollingRaster
)

func (s ScrollingThread) String() string {
	switch s {
	case ScrollingCompositor:
		return "Compositor"
	case ScrollingMain:
		return "Main"
	case ScrollingRaster:
		return "Raster"
	default:
		return "Unknown"
	}
}

// Collection tracks which frame-sequence trackers are running.
//
// Thread-safety: NOT safe for concurrent use (lives on the compositor sequence).
type Collection struct {
	counts [MaxType]int

	scrolling ScrollingThread

	// Per-thread count of smoothness-affecting animations.
	mainAffecting       int
	compositorAffecting int
	rasterAffecting     int
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Start marks a tracker of type t as running. Trackers nest.
func (c *Collection) Start(t Type) {
	if t < 0 || t >= MaxType {
		return
	}
	c.counts[t]++
	c.adjustAffecting(t, +1)
}

// Stop ends one running tracker of type t.
func (c *Collection) Stop(t Type) {
	if t < 0 || t >= MaxType || c.counts[t] == 0 {
		return
	}
	c.counts[t]--
	c.adjustAffecting(t, -1)
}

func (c *Collection) adjustAffecting(t Type, delta int) {
	switch t {
	case MainThreadAnimation, RAF, JSAnimation, SETMainThreadAnimation, CanvasAnimation:
		c.mainAffecting += delta
	case CompositorAnimation, PinchZoom, TouchScroll, WheelScroll, SETCompositorAnimation, CompositorNativeAnimation, Video:
		c.compositorAffecting += delta
	case CompositorRasterAnimation:
		c.rasterAffecting += delta
	}
}

// SetScrollingThread records which thread drives the current scroll.
func (c *Collection) SetScrollingThread(s ScrollingThread) { c.scrolling = s }

// ScrollingThread implements the controller's tracker source.
func (c *Collection) ScrollingThread() ScrollingThread { return c.scrolling }

// ActiveTrackers returns the bitmask of running trackers.
func (c *Collection) ActiveTrackers() Active {
	var a Active
	for t := CompositorAnimation; t < MaxType; t++ {
		if c.counts[t] > 0 {
			a = a.With(t)
		}
	}
	return a
}

// SmoothThread returns the threads with smoothness-affecting animations.
func (c *Collection) SmoothThread() SmoothThread {
	main := c.mainAffecting > 0
	comp := c.compositorAffecting > 0
	switch {
	case main && comp:
		return SmoothBoth
	case main:
		return SmoothMain
	case comp:
		return SmoothCompositor
	case c.rasterAffecting > 0:
		return SmoothRaster
	default:
		return SmoothNone
	}
}
