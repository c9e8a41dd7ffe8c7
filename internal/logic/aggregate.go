package logic

import "maps"

// entitySet is a boolean map that remembers first-seen order.
type entitySet struct {
	order  []string
	values map[string]bool
}

func newEntitySet() entitySet {
	return entitySet{values: make(map[string]bool)}
}

// set stores v and reports whether the stored value changed.
// A first sighting counts as a change.
func (s *entitySet) set(id string, v bool) bool {
	old, seen := s.values[id]
	if !seen {
		s.order = append(s.order, id)
	}
	s.values[id] = v
	return !seen || old != v
}

// matching returns the ids whose value equals want, in discovery order.
// The result is never nil so payloads encode an empty list as [].
func (s *entitySet) matching(want bool) []string {
	out := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if s.values[id] == want {
			out = append(out, id)
		}
	}
	return out
}

// Snapshot is the derived view of the aggregator at one speed sample.
type Snapshot struct {
	Moving          bool
	SpeedKph        float64
	ThresholdKph    float64
	OpenDoors       []string
	UnfastenedBelts []string
}

// AnyOpen reports whether any known door is open.
func (s Snapshot) AnyOpen() bool {
	return len(s.OpenDoors) > 0
}

// AnyUnfastened reports whether any known belt is unfastened.
func (s Snapshot) AnyUnfastened() bool {
	return len(s.UnfastenedBelts) > 0
}

// Aggregator keeps the latest per-door and per-belt values.
// Doors: true means open. Belts: true means fastened.
type Aggregator struct {
	doors entitySet
	belts entitySet
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		doors: newEntitySet(),
		belts: newEntitySet(),
	}
}

// SetDoor records a door value and reports whether it changed.
func (a *Aggregator) SetDoor(id string, open bool) bool {
	return a.doors.set(id, open)
}

// SetBelt records a belt value and reports whether it changed.
func (a *Aggregator) SetBelt(id string, fastened bool) bool {
	return a.belts.set(id, fastened)
}

// AnyDoorOpen reports whether any known door is open.
func (a *Aggregator) AnyDoorOpen() bool {
	for _, open := range a.doors.values {
		if open {
			return true
		}
	}
	return false
}

// Doors returns a copy of the door map.
func (a *Aggregator) Doors() map[string]bool {
	return maps.Clone(a.doors.values)
}

// Belts returns a copy of the belt map.
func (a *Aggregator) Belts() map[string]bool {
	return maps.Clone(a.belts.values)
}

// Evaluate derives the snapshot for the given speed.
func (a *Aggregator) Evaluate(speedKph, thresholdKph float64) Snapshot {
	return Snapshot{
		Moving:          speedKph > thresholdKph,
		SpeedKph:        speedKph,
		ThresholdKph:    thresholdKph,
		OpenDoors:       a.doors.matching(true),
		UnfastenedBelts: a.belts.matching(false),
	}
}
