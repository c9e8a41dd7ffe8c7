package status

import (
	"encoding/json"
	"time"

	"github.com/htbalar/vehicle-safety/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Vehicle       VehicleJSON    `json:"vehicle"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	GPIOLines     int            `json:"gpio_lines"`
	Counts        map[string]int `json:"event_counts"`
	Config        ConfigJSON     `json:"config"`
}

// VehicleJSON is the JSON representation of the vehicle state.
// SpeedKph is null until the first speed sample arrives.
type VehicleJSON struct {
	SpeedKph        *float64 `json:"speed_kph"`
	Moving          bool     `json:"moving"`
	Lock            string   `json:"lock"`
	PendingLock     bool     `json:"pending_lock"`
	AutoLock        bool     `json:"autolock"`
	ChildMode       bool     `json:"child_mode"`
	DoorAlert       bool     `json:"door_alert"`
	SeatbeltAlert   bool     `json:"seatbelt_alert"`
	OpenDoors       []string `json:"open_doors"`
	UnfastenedBelts []string `json:"unfastened_belts"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	ThresholdKph          float64 `json:"threshold_kph"`
	DebounceCount         int     `json:"debounce"`
	LockAboveKph          float64 `json:"lock_above_kph"`
	UnlockBelowKph        float64 `json:"unlock_below_kph"`
	ChildLockThresholdKph float64 `json:"child_lock_threshold_kph"`
	ChildMaxSpeedKph      float64 `json:"child_max_speed_kph"`
	PollMs                int64   `json:"poll_ms"`
	HeartbeatMs           int64   `json:"heartbeat_ms"`
	Broker                string  `json:"broker"`
	HTTPAddr              string  `json:"http_addr"`
}

func buildVehicle(v Vehicle) VehicleJSON {
	lock := string(v.Lock)
	if lock == "" {
		lock = string(logic.LockUnknown)
	}

	out := VehicleJSON{
		Moving:          v.Moving,
		Lock:            lock,
		PendingLock:     v.PendingLock,
		AutoLock:        v.AutoLock,
		ChildMode:       v.ChildMode,
		DoorAlert:       v.DoorAlert,
		SeatbeltAlert:   v.SeatbeltAlert,
		OpenDoors:       v.OpenDoors,
		UnfastenedBelts: v.UnfastenedBelts,
	}
	if out.OpenDoors == nil {
		out.OpenDoors = []string{}
	}
	if out.UnfastenedBelts == nil {
		out.UnfastenedBelts = []string{}
	}
	if v.SpeedKnown {
		kph := logic.RoundKph(v.SpeedKph)
		out.SpeedKph = &kph
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	counts := snap.Counts
	if counts == nil {
		counts = map[string]int{}
	}

	return StatusInner{
		Vehicle:       buildVehicle(snap.Vehicle),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		GPIOLines:     snap.GPIOLines,
		Counts:        counts,
		Config: ConfigJSON{
			ThresholdKph:          snap.Config.ThresholdKph,
			DebounceCount:         snap.Config.DebounceCount,
			LockAboveKph:          snap.Config.LockAboveKph,
			UnlockBelowKph:        snap.Config.UnlockBelowKph,
			ChildLockThresholdKph: snap.Config.ChildLockThresholdKph,
			ChildMaxSpeedKph:      snap.Config.ChildMaxSpeedKph,
			PollMs:                snap.Config.PollMs,
			HeartbeatMs:           snap.Config.HeartbeatMs,
			Broker:                snap.Config.Broker,
			HTTPAddr:              snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
