package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/htbalar/vehicle-safety/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{ThresholdKph: 5, DebounceCount: 2, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.DebounceCount != 2 {
		t.Errorf("Config.DebounceCount: got %d, want 2", snap.Config.DebounceCount)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.Vehicle.SpeedKnown {
		t.Error("expected unknown speed initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if len(snap.Counts) != 0 {
		t.Errorf("expected no counts, got %v", snap.Counts)
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(Vehicle{
		SpeedKph:   42,
		SpeedKnown: true,
		Moving:     true,
		Lock:       logic.LockLocked,
		AutoLock:   true,
		DoorAlert:  true,
		OpenDoors:  []string{"rearLeft"},
	})

	snap := tr.Snapshot()
	if snap.Vehicle.Lock != logic.LockLocked {
		t.Errorf("Lock: got %q, want LOCKED", snap.Vehicle.Lock)
	}
	if !snap.Vehicle.DoorAlert {
		t.Error("expected DoorAlert=true")
	}
	if diff := cmp.Diff([]string{"rearLeft"}, snap.Vehicle.OpenDoors); diff != "" {
		t.Errorf("OpenDoors mismatch (-want +got):\n%s", diff)
	}
}

func TestCount(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Count("door")
	tr.Count("door")
	tr.Count("lock")

	want := map[string]int{"door": 2, "lock": 1}
	if diff := cmp.Diff(want, tr.Snapshot().Counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetGPIOLines(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetGPIOLines(6)
	if got := tr.Snapshot().GPIOLines; got != 6 {
		t.Errorf("GPIOLines: got %d, want 6", got)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(Vehicle{Lock: logic.LockLocked, OpenDoors: []string{"frontLeft"}})
	tr.Count("lock")

	snap1 := tr.Snapshot()
	snap1.Vehicle.OpenDoors[0] = "mutated"
	snap1.Counts["lock"] = 99

	tr.Update(Vehicle{Lock: logic.LockUnlocked})

	if snap1.Vehicle.Lock != logic.LockLocked {
		t.Error("snapshot should be a copy; Lock was modified")
	}
	snap2 := tr.Snapshot()
	if snap2.Counts["lock"] != 1 {
		t.Errorf("counts shared with snapshot: got %d", snap2.Counts["lock"])
	}
}

func TestUpdateCopiesSlices(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	doors := []string{"frontLeft"}
	tr.Update(Vehicle{OpenDoors: doors})
	doors[0] = "mutated"

	if got := tr.Snapshot().Vehicle.OpenDoors[0]; got != "frontLeft" {
		t.Errorf("tracker shares caller slice, got %q", got)
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Vehicle: Vehicle{
			SpeedKph:        12.34,
			SpeedKnown:      true,
			Moving:          true,
			Lock:            logic.LockLocked,
			AutoLock:        true,
			SeatbeltAlert:   true,
			UnfastenedBelts: []string{"row1_pos2"},
		},
		Counts:        map[string]int{"seatbelt": 1, "lock": 1},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{ThresholdKph: 5, DebounceCount: 1, HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	v := parsed.Status.Vehicle
	if v.SpeedKph == nil || *v.SpeedKph != 12.3 {
		t.Errorf("SpeedKph: got %v, want 12.3", v.SpeedKph)
	}
	if v.Lock != "LOCKED" {
		t.Errorf("Lock: got %q, want LOCKED", v.Lock)
	}
	if !v.SeatbeltAlert || v.DoorAlert {
		t.Errorf("alerts: got seatbelt=%v door=%v", v.SeatbeltAlert, v.DoorAlert)
	}
	if diff := cmp.Diff([]string{}, v.OpenDoors); diff != "" {
		t.Errorf("OpenDoors mismatch (-want +got):\n%s", diff)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Counts["seatbelt"] != 1 {
		t.Errorf("Counts[seatbelt]: got %d, want 1", parsed.Status.Counts["seatbelt"])
	}
	// Event and Reason should be omitted
	if parsed.Status.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", parsed.Status.Reason)
	}
}

func TestFormatJSONUnknownState(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(FormatJSON(snap), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	vehicle := raw["status"]["vehicle"].(map[string]any)
	if vehicle["lock"] != "UNKNOWN" {
		t.Errorf("lock: got %v, want UNKNOWN", vehicle["lock"])
	}
	if speed, ok := vehicle["speed_kph"]; !ok || speed != nil {
		t.Errorf("speed_kph: got %v (present=%v), want null", speed, ok)
	}
	if counts, ok := raw["status"]["event_counts"].(map[string]any); !ok || len(counts) != 0 {
		t.Errorf("event_counts: got %v, want empty object", raw["status"]["event_counts"])
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Vehicle:       Vehicle{Lock: logic.LockUnlocked, ChildMode: true},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("Reason: got %q, want empty", parsed.Status.Reason)
	}
	if !parsed.Status.Vehicle.ChildMode {
		t.Error("expected ChildMode=true")
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(Vehicle{SpeedKph: float64(i), SpeedKnown: true, OpenDoors: []string{"frontLeft"}})
			tr.Count("door")
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
