// Package logic contains the pure safety and door-lock state machines.
// This package has NO external dependencies (no MQTT, GPIO, files or clocks).
// Callers feed samples in and publish whatever comes back out.
package logic

import (
	"math"
	"strings"
)

// Transition is the result of ticking a DebounceGate.
type Transition string

const (
	TransitionNone      Transition = ""
	TransitionActivated Transition = "activated"
	TransitionCleared   Transition = "cleared"
)

// Predicate names the condition an alert is about.
type Predicate string

const (
	PredicateDoor     Predicate = "door"
	PredicateSeatbelt Predicate = "seatbelt"
)

// AlertState is the latched state carried in an alert payload.
type AlertState string

const (
	AlertActive  AlertState = "active"
	AlertCleared AlertState = "cleared"
)

// Alert is a door or seatbelt safety alert to be published.
type Alert struct {
	Predicate    Predicate
	State        AlertState
	Moving       bool
	SpeedKph     float64
	ThresholdKph float64
	// Members holds the open doors or unfastened belts, in discovery order.
	Members []string
}

// Any reports whether at least one door is open (or belt unfastened).
func (a Alert) Any() bool {
	return len(a.Members) > 0
}

// LockState is the last lock command the controller issued.
type LockState string

const (
	LockUnknown  LockState = "UNKNOWN"
	LockLocked   LockState = "LOCKED"
	LockUnlocked LockState = "UNLOCKED"
)

// Command is a door lock command.
type Command string

const (
	CommandLock   Command = "lock"
	CommandUnlock Command = "unlock"
)

// Door identifies a door by its literal signal id.
type Door string

const (
	DoorFrontLeft  Door = "frontLeft"
	DoorFrontRight Door = "frontRight"
	DoorRearLeft   Door = "rearLeft"
	DoorRearRight  Door = "rearRight"
)

// IsRear reports whether the door is one of the rear passenger doors.
func (d Door) IsRear() bool {
	return d == DoorRearLeft || d == DoorRearRight
}

// Label is the upper-cased door id used in child-mode events.
func (d Door) Label() string {
	return strings.ToUpper(string(d))
}

// UnlockSource is where an unlock request came from.
type UnlockSource string

const (
	SourceInside  UnlockSource = "inside"
	SourceOutside UnlockSource = "outside"
	SourceRemote  UnlockSource = "remote"
)

// ParseUnlockSource accepts inside, outside or remote in any case.
func ParseUnlockSource(s string) (UnlockSource, bool) {
	switch UnlockSource(strings.ToLower(strings.TrimSpace(s))) {
	case SourceInside:
		return SourceInside, true
	case SourceOutside:
		return SourceOutside, true
	case SourceRemote:
		return SourceRemote, true
	}
	return "", false
}

// ChildEventType is the fixed event name of a child-mode event.
type ChildEventType string

const (
	ChildModeActivated          ChildEventType = "child_mode_activated"
	ChildModeDeactivated        ChildEventType = "child_mode_deactivated"
	ChildModeBlockedRearInside  ChildEventType = "child_mode_blocked_rear_inside_unlock"
	ChildModeSpeedExceeded      ChildEventType = "child_mode_speed_exceeded"
	ChildModeUnfastenedSeatbelt ChildEventType = "child_mode_unfastened_seatbelt"
)

// ChildEvent is an event raised by ChildMode. Only the fields relevant to
// Type are set.
type ChildEvent struct {
	Type ChildEventType

	// Activation.
	NormalLockThresholdKph float64
	ChildLockThresholdKph  float64

	// Blocked unlock.
	Door string

	// Speed and unfastened events.
	SpeedKph float64
	LimitKph float64

	// Unfastened events: exactly one of these is non-nil.
	OpenDoors       []string
	UnfastenedBelts []string
}

// RoundKph rounds a speed to one decimal for payloads.
func RoundKph(v float64) float64 {
	return math.Round(v*10) / 10
}

// validSpeed rejects samples that cannot be compared against thresholds.
func validSpeed(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
