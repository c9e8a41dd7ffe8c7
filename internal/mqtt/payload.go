package mqtt

import (
	"encoding/json"

	"github.com/htbalar/vehicle-safety/internal/logic"
)

// DoorPayload is published on the door alert topic.
type DoorPayload struct {
	Moving       bool     `json:"moving"`
	SpeedKph     float64  `json:"speedKph"`
	AnyOpen      bool     `json:"anyOpen"`
	Open         []string `json:"open"`
	ThresholdKph float64  `json:"thresholdKph"`
	State        string   `json:"state"`
}

// SeatbeltPayload is published on the seatbelt alert topic.
type SeatbeltPayload struct {
	Moving        bool     `json:"moving"`
	SpeedKph      float64  `json:"speedKph"`
	AnyUnfastened bool     `json:"anyUnfastened"`
	Unfastened    []string `json:"unfastened"`
	ThresholdKph  float64  `json:"thresholdKph"`
	State         string   `json:"state"`
}

// CommandPayload is published on the lock and unlock command topics.
type CommandPayload struct {
	Command string `json:"command"`
}

// EnabledPayload reports a feature flag.
type EnabledPayload struct {
	Enabled bool `json:"enabled"`
}

// SafetyConfigPayload is published once at startup.
type SafetyConfigPayload struct {
	ThresholdKph float64 `json:"thresholdKph"`
	Debounce     int     `json:"debounce"`
}

// UnlockForwardPayload is sent to the door actuator for an allowed unlock.
type UnlockForwardPayload struct {
	Door   string `json:"door"`
	Source string `json:"source"`
}

// ChildEventPayload is published on the child lock events topic.
// Only the fields relevant to Event are present.
type ChildEventPayload struct {
	Event                  string    `json:"event"`
	NormalLockThresholdKph *float64  `json:"normal_lock_threshold_kph,omitempty"`
	ChildLockThresholdKph  *float64  `json:"child_lock_threshold_kph,omitempty"`
	Door                   string    `json:"door,omitempty"`
	SpeedKph               *float64  `json:"speedKph,omitempty"`
	LimitKph               *float64  `json:"limitKph,omitempty"`
	AnyDoorOpen            *[]string `json:"any_door_open,omitempty"`
	Unfastened             *[]string `json:"unfastened,omitempty"`
}

// FormatAlert creates the JSON payload for a door or seatbelt alert.
func FormatAlert(a logic.Alert) ([]byte, error) {
	members := a.Members
	if members == nil {
		members = []string{}
	}

	if a.Predicate == logic.PredicateDoor {
		return json.Marshal(DoorPayload{
			Moving:       a.Moving,
			SpeedKph:     logic.RoundKph(a.SpeedKph),
			AnyOpen:      a.Any(),
			Open:         members,
			ThresholdKph: a.ThresholdKph,
			State:        string(a.State),
		})
	}
	return json.Marshal(SeatbeltPayload{
		Moving:        a.Moving,
		SpeedKph:      logic.RoundKph(a.SpeedKph),
		AnyUnfastened: a.Any(),
		Unfastened:    members,
		ThresholdKph:  a.ThresholdKph,
		State:         string(a.State),
	})
}

// FormatCommand creates {"command":"lock"} or {"command":"unlock"}.
func FormatCommand(cmd logic.Command) ([]byte, error) {
	return json.Marshal(CommandPayload{Command: string(cmd)})
}

// FormatEnabled creates {"enabled":bool}.
func FormatEnabled(enabled bool) ([]byte, error) {
	return json.Marshal(EnabledPayload{Enabled: enabled})
}

// FormatSafetyConfig creates the startup config payload.
func FormatSafetyConfig(thresholdKph float64, debounce int) ([]byte, error) {
	return json.Marshal(SafetyConfigPayload{ThresholdKph: thresholdKph, Debounce: debounce})
}

// FormatUnlockForward creates the payload forwarded for an allowed unlock.
func FormatUnlockForward(door logic.Door, source logic.UnlockSource) ([]byte, error) {
	return json.Marshal(UnlockForwardPayload{Door: string(door), Source: string(source)})
}

// FormatChildEvent creates the JSON payload for a child-mode event.
func FormatChildEvent(ev logic.ChildEvent) ([]byte, error) {
	p := ChildEventPayload{Event: string(ev.Type)}

	switch ev.Type {
	case logic.ChildModeActivated:
		p.NormalLockThresholdKph = ptr(ev.NormalLockThresholdKph)
		p.ChildLockThresholdKph = ptr(ev.ChildLockThresholdKph)
	case logic.ChildModeBlockedRearInside:
		p.Door = ev.Door
	case logic.ChildModeSpeedExceeded:
		p.SpeedKph = ptr(logic.RoundKph(ev.SpeedKph))
		p.LimitKph = ptr(ev.LimitKph)
	case logic.ChildModeUnfastenedSeatbelt:
		p.SpeedKph = ptr(logic.RoundKph(ev.SpeedKph))
		if ev.OpenDoors != nil {
			p.AnyDoorOpen = &ev.OpenDoors
		} else {
			list := ev.UnfastenedBelts
			if list == nil {
				list = []string{}
			}
			p.Unfastened = &list
		}
	}

	return json.Marshal(p)
}

func ptr[T any](v T) *T {
	return &v
}
