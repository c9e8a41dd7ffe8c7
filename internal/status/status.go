// Package status provides a thread-safe status tracker for the vehicle-safety daemon.
// It is read by the HTTP handlers and used to build heartbeat payloads.
package status

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/htbalar/vehicle-safety/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	ThresholdKph          float64
	DebounceCount         int
	LockAboveKph          float64
	UnlockBelowKph        float64
	ChildLockThresholdKph float64
	ChildMaxSpeedKph      float64
	PollMs                int64
	HeartbeatMs           int64
	Broker                string
	HTTPAddr              string
}

// Vehicle is the safety and lock state at one instant.
type Vehicle struct {
	SpeedKph        float64
	SpeedKnown      bool
	Moving          bool
	Lock            logic.LockState
	PendingLock     bool
	AutoLock        bool
	ChildMode       bool
	DoorAlert       bool
	SeatbeltAlert   bool
	OpenDoors       []string
	UnfastenedBelts []string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Vehicle       Vehicle
	Counts        map[string]int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	GPIOLines     int
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Counts:    make(map[string]int),
			Config:    cfg,
		},
	}
}

// Update replaces the vehicle state. Called by the dispatcher after every input.
func (t *Tracker) Update(v Vehicle) {
	v.OpenDoors = slices.Clone(v.OpenDoors)
	v.UnfastenedBelts = slices.Clone(v.UnfastenedBelts)

	t.mu.Lock()
	t.snap.Vehicle = v
	t.mu.Unlock()
}

// Count increments the published message counter for kind.
func (t *Tracker) Count(kind string) {
	t.mu.Lock()
	t.snap.Counts[kind]++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetGPIOLines records how many contact lines are attached.
func (t *Tracker) SetGPIOLines(n int) {
	t.mu.Lock()
	t.snap.GPIOLines = n
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Counts = maps.Clone(t.snap.Counts)
	s.Vehicle.OpenDoors = slices.Clone(t.snap.Vehicle.OpenDoors)
	s.Vehicle.UnfastenedBelts = slices.Clone(t.snap.Vehicle.UnfastenedBelts)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
