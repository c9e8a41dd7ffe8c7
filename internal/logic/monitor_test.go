package logic

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newMonitor(debounce int) *SafetyMonitor {
	agg := NewAggregator()
	for _, d := range []Door{DoorFrontLeft, DoorFrontRight, DoorRearLeft, DoorRearRight} {
		agg.SetDoor(string(d), false)
	}
	agg.SetBelt("row1_pos1", true)
	agg.SetBelt("row1_pos2", true)
	return NewSafetyMonitor(MonitorConfig{ThresholdKph: 5, DebounceCount: debounce}, agg)
}

func filter(alerts []Alert, p Predicate) []Alert {
	var out []Alert
	for _, a := range alerts {
		if a.Predicate == p {
			out = append(out, a)
		}
	}
	return out
}

func TestMonitorDoorAlertLifecycle(t *testing.T) {
	m := newMonitor(1)

	if alerts := m.OnSpeed(12.34); len(alerts) != 0 {
		t.Fatalf("expected no alerts with doors closed, got %+v", alerts)
	}

	alerts := m.OnDoor("frontLeft", true)
	want := []Alert{{
		Predicate:    PredicateDoor,
		State:        AlertActive,
		Moving:       true,
		SpeedKph:     12.3,
		ThresholdKph: 5,
		Members:      []string{"frontLeft"},
	}}
	if diff := cmp.Diff(want, alerts); diff != "" {
		t.Fatalf("activation mismatch (-want +got):\n%s", diff)
	}

	alerts = m.OnDoor("frontLeft", false)
	want = []Alert{{
		Predicate:    PredicateDoor,
		State:        AlertCleared,
		Moving:       true,
		SpeedKph:     12.3,
		ThresholdKph: 5,
		Members:      []string{},
	}}
	if diff := cmp.Diff(want, alerts); diff != "" {
		t.Fatalf("clear mismatch (-want +got):\n%s", diff)
	}
}

func TestMonitorContentChangeRepublish(t *testing.T) {
	m := newMonitor(1)
	m.OnSpeed(20)

	if alerts := m.OnDoor("frontLeft", true); len(alerts) != 1 {
		t.Fatalf("expected activation, got %+v", alerts)
	}

	alerts := filter(m.OnDoor("frontRight", true), PredicateDoor)
	if len(alerts) != 1 {
		t.Fatalf("expected republish on content change, got %+v", alerts)
	}
	if alerts[0].State != AlertActive {
		t.Errorf("expected state active, got %q", alerts[0].State)
	}
	if diff := cmp.Diff([]string{"frontLeft", "frontRight"}, alerts[0].Members); diff != "" {
		t.Errorf("members mismatch (-want +got):\n%s", diff)
	}
	if !m.DoorActive() {
		t.Error("gate should still be active")
	}
}

func TestMonitorNoSpamOnIdenticalEvaluation(t *testing.T) {
	m := newMonitor(1)
	m.OnSpeed(20)
	m.OnDoor("rearLeft", true)

	for i := 0; i < 5; i++ {
		if alerts := m.OnSpeed(20); len(alerts) != 0 {
			t.Fatalf("sample %d: expected no alerts, got %+v", i, alerts)
		}
	}
	// Speed changes alone are not content changes.
	if alerts := m.OnSpeed(25); len(alerts) != 0 {
		t.Fatalf("expected no alerts for speed drift, got %+v", alerts)
	}
}

func TestMonitorMovingChangeRepublishes(t *testing.T) {
	m := newMonitor(2)
	m.OnSpeed(20)
	m.OnBelt("row1_pos2", false)
	alerts := m.OnSpeed(20)
	if len(alerts) != 1 || alerts[0].State != AlertActive {
		t.Fatalf("expected seatbelt activation on second tick, got %+v", alerts)
	}

	// First slow sample: gate not yet cleared but moving flipped.
	alerts = m.OnSpeed(2)
	if len(alerts) != 1 {
		t.Fatalf("expected republish on moving change, got %+v", alerts)
	}
	if alerts[0].State != AlertActive || alerts[0].Moving {
		t.Errorf("expected active alert with moving=false, got %+v", alerts[0])
	}

	alerts = m.OnSpeed(2)
	if len(alerts) != 1 || alerts[0].State != AlertCleared {
		t.Fatalf("expected cleared, got %+v", alerts)
	}
}

func TestMonitorDebounceTwo(t *testing.T) {
	m := newMonitor(2)
	m.OnDoor("frontLeft", true)

	if alerts := m.OnSpeed(10); len(alerts) != 0 {
		t.Fatalf("single true tick should not alert, got %+v", alerts)
	}
	alerts := m.OnSpeed(10)
	if len(alerts) != 1 || alerts[0].State != AlertActive {
		t.Fatalf("expected activation on second tick, got %+v", alerts)
	}
}

func TestMonitorDropsMalformedSamples(t *testing.T) {
	m := newMonitor(1)
	m.OnSpeed(10)

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if alerts := m.OnSpeed(v); alerts != nil {
			t.Errorf("speed %v: expected drop, got %+v", v, alerts)
		}
	}
	if kph, ok := m.CurrentSpeed(); !ok || kph != 10 {
		t.Errorf("speed changed by malformed sample: %v %v", kph, ok)
	}
	if alerts := m.OnDoor("", true); alerts != nil {
		t.Errorf("empty door id: expected drop, got %+v", alerts)
	}
}

func TestMonitorSeatbeltBeforeDoor(t *testing.T) {
	m := newMonitor(2)
	m.OnDoor("frontLeft", true)
	m.OnBelt("row1_pos1", false)
	m.OnSpeed(30)
	alerts := m.OnSpeed(30)
	if len(alerts) != 2 {
		t.Fatalf("expected two alerts, got %+v", alerts)
	}
	if alerts[0].Predicate != PredicateSeatbelt || alerts[1].Predicate != PredicateDoor {
		t.Errorf("unexpected order: %q then %q", alerts[0].Predicate, alerts[1].Predicate)
	}
}

func TestMonitorUnchangedDoorIgnored(t *testing.T) {
	m := newMonitor(2)
	m.OnSpeed(10)
	m.OnDoor("frontLeft", true)
	if alerts := m.OnDoor("frontLeft", true); alerts != nil {
		t.Errorf("repeated door value should not tick, got %+v", alerts)
	}
	if s := m.doorGate.State(); s.Up != 1 {
		t.Errorf("expected one up tick, got %+v", s)
	}
}

func TestMonitorCurrentSpeedUnknown(t *testing.T) {
	m := newMonitor(1)
	if _, ok := m.CurrentSpeed(); ok {
		t.Error("expected unknown speed before first sample")
	}
}

func TestMonitorDebounceCountNormalised(t *testing.T) {
	if got := newMonitor(0).DebounceCount(); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := newMonitor(3).DebounceCount(); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}
