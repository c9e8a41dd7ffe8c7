package logic

import "slices"

// MonitorConfig configures a SafetyMonitor.
type MonitorConfig struct {
	ThresholdKph  float64
	DebounceCount int
}

// emitted remembers the content of the last alert published for a predicate.
type emitted struct {
	valid   bool
	moving  bool
	members []string
}

// SafetyMonitor raises debounced door and seatbelt alerts.
//
// An alert is emitted when its gate transitions, or while the gate is
// active and either the member list or the moving flag differs from the
// last emitted alert.
type SafetyMonitor struct {
	cfg       MonitorConfig
	agg       *Aggregator
	speed     float64
	haveSpeed bool
	doorGate  *Gate
	beltGate  *Gate
	lastDoor  emitted
	lastBelt  emitted
}

// NewSafetyMonitor creates a monitor reading entity state from agg.
func NewSafetyMonitor(cfg MonitorConfig, agg *Aggregator) *SafetyMonitor {
	return &SafetyMonitor{
		cfg:      cfg,
		agg:      agg,
		doorGate: NewGate(cfg.DebounceCount),
		beltGate: NewGate(cfg.DebounceCount),
	}
}

// OnSpeed records a speed sample and evaluates both predicates.
// NaN and infinite samples are dropped.
func (m *SafetyMonitor) OnSpeed(kph float64) []Alert {
	if !validSpeed(kph) {
		return nil
	}
	m.speed = kph
	m.haveSpeed = true
	return m.evaluate()
}

// OnDoor records a door value. Only a changed value is evaluated.
func (m *SafetyMonitor) OnDoor(id string, open bool) []Alert {
	if id == "" || !m.agg.SetDoor(id, open) {
		return nil
	}
	return m.evaluate()
}

// OnBelt records a seatbelt value. Only a changed value is evaluated.
func (m *SafetyMonitor) OnBelt(id string, fastened bool) []Alert {
	if id == "" || !m.agg.SetBelt(id, fastened) {
		return nil
	}
	return m.evaluate()
}

// Tick re-evaluates at the last known speed. Used for periodic evaluation.
func (m *SafetyMonitor) Tick() []Alert {
	return m.evaluate()
}

// CurrentSpeed returns the latest valid speed sample, if any.
func (m *SafetyMonitor) CurrentSpeed() (float64, bool) {
	return m.speed, m.haveSpeed
}

// DebounceCount returns the effective gate threshold (at least 1).
func (m *SafetyMonitor) DebounceCount() int {
	return m.doorGate.Count()
}

// DoorActive reports whether the door alert is latched.
func (m *SafetyMonitor) DoorActive() bool {
	return m.doorGate.Active()
}

// SeatbeltActive reports whether the seatbelt alert is latched.
func (m *SafetyMonitor) SeatbeltActive() bool {
	return m.beltGate.Active()
}

// Snapshot evaluates the aggregator at the current speed without ticking.
func (m *SafetyMonitor) Snapshot() Snapshot {
	return m.agg.Evaluate(m.speed, m.cfg.ThresholdKph)
}

func (m *SafetyMonitor) evaluate() []Alert {
	snap := m.agg.Evaluate(m.speed, m.cfg.ThresholdKph)

	var alerts []Alert
	if a, ok := m.step(PredicateSeatbelt, m.beltGate, &m.lastBelt,
		snap.Moving && snap.AnyUnfastened(), snap.UnfastenedBelts, snap); ok {
		alerts = append(alerts, a)
	}
	if a, ok := m.step(PredicateDoor, m.doorGate, &m.lastDoor,
		snap.Moving && snap.AnyOpen(), snap.OpenDoors, snap); ok {
		alerts = append(alerts, a)
	}
	return alerts
}

func (m *SafetyMonitor) step(p Predicate, g *Gate, last *emitted, cond bool, members []string, snap Snapshot) (Alert, bool) {
	var state AlertState
	switch g.Tick(cond) {
	case TransitionActivated:
		state = AlertActive
	case TransitionCleared:
		state = AlertCleared
	default:
		if !g.Active() || !last.valid {
			return Alert{}, false
		}
		if last.moving == snap.Moving && slices.Equal(last.members, members) {
			return Alert{}, false
		}
		state = AlertActive
	}

	*last = emitted{valid: true, moving: snap.Moving, members: members}
	return Alert{
		Predicate:    p,
		State:        state,
		Moving:       snap.Moving,
		SpeedKph:     RoundKph(snap.SpeedKph),
		ThresholdKph: snap.ThresholdKph,
		Members:      members,
	}, true
}
