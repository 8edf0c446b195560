// Package model defines the portable event representation and device
// capability descriptors shared by every other rkvm package: the
// interceptor produces model.Event values, the wire codec serializes
// them, the router dispatches them, and the writer injects them back
// into the kernel on the receiving side.
package model

// EventKind distinguishes the tagged variants of Event.
type EventKind uint8

const (
	EventRel EventKind = iota
	EventAbs
	EventAbsMtToolType
	EventKey
	EventSync
)

// SyncKind distinguishes the two flavors of Sync event.
type SyncKind uint8

const (
	SyncAll SyncKind = iota
	SyncMt
)

// Event is the portable, timestamp-free representation of a single
// input event produced by an interceptor and consumed by a writer. Only
// one of the payload fields is meaningful, selected by Kind.
type Event struct {
	Kind EventKind

	RelAxis RelAxis
	AbsAxis AbsAxis
	Key     Key
	Sync    SyncKind

	// Value carries the raw i32 value for Rel, Abs, and AbsMtToolType
	// events (for AbsMtToolType it is the decoded ToolType).
	Value int32

	// Down carries the press state for Key events.
	Down bool
}

// Rel builds a relative-axis event.
func Rel(axis RelAxis, value int32) Event {
	return Event{Kind: EventRel, RelAxis: axis, Value: value}
}

// Abs builds an absolute-axis event.
func Abs(axis AbsAxis, value int32) Event {
	return Event{Kind: EventAbs, AbsAxis: axis, Value: value}
}

// AbsMtToolType builds a multitouch tool-type event.
func AbsMtToolType(toolType int32) Event {
	return Event{Kind: EventAbsMtToolType, Value: toolType}
}

// KeyEvent builds a key press/release event.
func KeyEvent(key Key, down bool) Event {
	return Event{Kind: EventKey, Key: key, Down: down}
}

// SyncEvent builds a report-boundary event.
func SyncEvent(kind SyncKind) Event {
	return Event{Kind: EventSync, Sync: kind}
}

// IsReportEnd reports whether this event terminates a report, i.e. is a
// Sync{All} event.
func (e Event) IsReportEnd() bool {
	return e.Kind == EventSync && e.Sync == SyncAll
}

// ToolType enumerates the closed universe of ABS_MT_TOOL_TYPE values.
type ToolType int32

const (
	ToolFinger ToolType = 0x00
	ToolPen    ToolType = 0x01
	ToolPalm   ToolType = 0x02
	ToolDial   ToolType = 0x0a
)

// IsToolType reports whether v names one of the enumerated
// ABS_MT_TOOL_TYPE values; anything else is write-back per spec.md §4.1.
func IsToolType(v int32) bool {
	switch ToolType(v) {
	case ToolFinger, ToolPen, ToolPalm, ToolDial:
		return true
	}
	return false
}
