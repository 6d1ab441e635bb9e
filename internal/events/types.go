// Package events models input-event latency records attached to a frame
// and computes their latency breakdowns when the frame resolves.
package events

import (
	"errors"
	"time"
)

var (
	// ErrTimestampOrder is returned when a dispatch timestamp would break
	// the non-decreasing stage order of an event.
	ErrTimestampOrder = errors.New("events: dispatch timestamp out of order")

	// ErrInvalidStage is returned for an out-of-range dispatch stage.
	ErrInvalidStage = errors.New("events: invalid dispatch stage")
)

// DispatchStage is a point in an input event's journey from hardware
// generation to renderer processing.
type DispatchStage int

const (
	Generated DispatchStage = iota
	ArrivedInBrowserMain
	ArrivedInRendererCompositor
	RendererCompositorStarted
	RendererCompositorFinished
	RendererMainStarted
	RendererMainFinished

	DispatchStageCount
)

var dispatchStageNames = [DispatchStageCount]string{
	Generated:                   "Generated",
	ArrivedInBrowserMain:        "ArrivedInBrowserMain",
	ArrivedInRendererCompositor: "ArrivedInRendererCompositor",
	RendererCompositorStarted:   "RendererCompositorStarted",
	RendererCompositorFinished:  "RendererCompositorFinished",
	RendererMainStarted:         "RendererMainStarted",
	RendererMainFinished:        "RendererMainFinished",
}

func (s DispatchStage) String() string {
	if s < 0 || s >= DispatchStageCount {
		return "Unknown"
	}
	return dispatchStageNames[s]
}

// Type is the kind of input event.
type Type int

const (
	MousePressed Type = iota
	MouseReleased
	MouseWheel
	KeyPressed
	KeyReleased
	TouchPressed
	TouchReleased
	TouchMoved
	GestureScrollBegin
	GestureScrollUpdate
	GestureScrollEnd
	GestureDoubleTap
	GestureLongPress
	GestureLongTap
	GestureShowPress
	GestureTap
	GestureTapCancel
	GestureTapDown
	GestureTapUnconfirmed
	GestureTwoFingerTap
	FirstGestureScrollUpdate
	MouseDragged
	GesturePinchBegin
	GesturePinchEnd
	GesturePinchUpdate
	InertialGestureScrollUpdate
	MouseMoved

	TypeCount
)

var typeNames = [TypeCount]string{
	MousePressed:                "MousePressed",
	MouseReleased:               "MouseReleased",
	MouseWheel:                  "MouseWheel",
	KeyPressed:                  "KeyPressed",
	KeyReleased:                 "KeyReleased",
	TouchPressed:                "TouchPressed",
	TouchReleased:               "TouchReleased",
	TouchMoved:                  "TouchMoved",
	GestureScrollBegin:          "GestureScrollBegin",
	GestureScrollUpdate:         "GestureScrollUpdate",
	GestureScrollEnd:            "GestureScrollEnd",
	GestureDoubleTap:            "GestureDoubleTap",
	GestureLongPress:            "GestureLongPress",
	GestureLongTap:              "GestureLongTap",
	GestureShowPress:            "GestureShowPress",
	GestureTap:                  "GestureTap",
	GestureTapCancel:            "GestureTapCancel",
	GestureTapDown:              "GestureTapDown",
	GestureTapUnconfirmed:       "GestureTapUnconfirmed",
	GestureTwoFingerTap:         "GestureTwoFingerTap",
	FirstGestureScrollUpdate:    "FirstGestureScrollUpdate",
	MouseDragged:                "MouseDragged",
	GesturePinchBegin:           "GesturePinchBegin",
	GesturePinchEnd:             "GesturePinchEnd",
	GesturePinchUpdate:          "GesturePinchUpdate",
	InertialGestureScrollUpdate: "InertialGestureScrollUpdate",
	MouseMoved:                  "MouseMoved",
}

// String returns the histogram label of the event type.
func (t Type) String() string {
	if t < 0 || t >= TypeCount {
		return "Unknown"
	}
	return typeNames[t]
}

// ParseType resolves a histogram label back to a Type.
func ParseType(name string) (Type, bool) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), true
		}
	}
	return 0, false
}

// IsScroll reports whether t is a gesture scroll event.
func (t Type) IsScroll() bool {
	switch t {
	case GestureScrollBegin, GestureScrollUpdate, GestureScrollEnd,
		FirstGestureScrollUpdate, InertialGestureScrollUpdate:
		return true
	}
	return false
}

// IsScrollUpdate reports whether t is one of the three scroll-update variants.
func (t Type) IsScrollUpdate() bool {
	switch t {
	case GestureScrollUpdate, FirstGestureScrollUpdate, InertialGestureScrollUpdate:
		return true
	}
	return false
}

// IsPinch reports whether t is a gesture pinch event.
func (t Type) IsPinch() bool {
	switch t {
	case GesturePinchBegin, GesturePinchUpdate, GesturePinchEnd:
		return true
	}
	return false
}

// Device is the input device that generated a scroll or pinch gesture.
type Device int

const (
	DeviceUnknown Device = iota
	DeviceAutoscroll
	DeviceScrollbar
	DeviceTouchscreen
	DeviceWheel
)

var deviceNames = map[Device]string{
	DeviceUnknown:     "Unknown",
	DeviceAutoscroll:  "Autoscroll",
	DeviceScrollbar:   "Scrollbar",
	DeviceTouchscreen: "Touchscreen",
	DeviceWheel:       "Wheel",
}

func (d Device) String() string {
	if n, ok := deviceNames[d]; ok {
		return n
	}
	return "Unknown"
}

// ParseDevice resolves a device label.
func ParseDevice(name string) (Device, bool) {
	for d, n := range deviceNames {
		if n == name {
			return d, true
		}
	}
	return DeviceUnknown, false
}

// UpdateKind marks a scroll update as the start or continuation of a
// scroll sequence, when the input pipeline knows it.
type UpdateKind int

const (
	UpdateUnspecified UpdateKind = iota
	UpdateStarted
	UpdateContinued
)

// Bucketing describes versioned histogram bucketing for an event type.
// Events with bucketing report "<name><VersionSuffix>".
type Bucketing struct {
	Min           time.Duration
	Max           time.Duration
	Count         int
	VersionSuffix string
}

var scrollBucketing = &Bucketing{
	Min:           time.Millisecond,
	Max:           5 * time.Second,
	Count:         100,
	VersionSuffix: "2",
}

// BucketingFor returns the bucketing of an event type, or nil when the type
// uses the unversioned histograms.
//
// Lookup table:
//
//	scroll types          → version "2"
//	touch, pinch, others  → nil (plain name only)
func BucketingFor(t Type) *Bucketing {
	if t.IsScroll() {
		return scrollBucketing
	}
	return nil
}

// IsGuidingMetric reports whether the device-specific total latency of
// (t, d) is emitted under both the plain and the versioned name.
func IsGuidingMetric(t Type, d Device) bool {
	return t == GestureScrollUpdate && d == DeviceTouchscreen
}

// GestureDeviceName returns the device label used in per-device event
// histograms. Pinch gestures from a wheel are reported as "Touchpad".
func GestureDeviceName(t Type, d Device) string {
	if t.IsPinch() {
		if d == DeviceWheel {
			return "Touchpad"
		}
		return "Touchscreen"
	}
	return d.String()
}
