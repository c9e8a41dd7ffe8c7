package logic

// AutoLockConfig holds the hysteresis thresholds in km/h.
type AutoLockConfig struct {
	LockAboveKph   float64
	UnlockBelowKph float64
}

// ThresholdPolicy supplies the effective lock threshold for a base value.
// ChildMode implements it.
type ThresholdPolicy interface {
	LockThreshold(baseKph float64) float64
}

// SpeedReader returns the live speed without blocking.
// ok is false when no speed is known yet.
type SpeedReader interface {
	CurrentSpeed() (kph float64, ok bool)
}

// AutoLockState is a copy of the controller state.
type AutoLockState struct {
	Lock        LockState
	PendingLock bool
	AnyDoorOpen bool
	Enabled     bool
}

// LockResult is the outcome of one AutoLock event.
type LockResult struct {
	// Command is empty when nothing is to be sent.
	Command Command
	// PendingSet is true when the pending latch went from false to true.
	PendingSet bool
	// PendingExecuted is true when a deferred lock was just issued.
	PendingExecuted bool
}

// AutoLock locks the doors above one speed and unlocks them below another.
// A lock requested while a door is open is latched and issued once all
// doors close, provided the vehicle is still above the lock threshold.
type AutoLock struct {
	cfg    AutoLockConfig
	policy ThresholdPolicy
	speed  SpeedReader
	state  AutoLockState
}

// NewAutoLock creates a controller in the Unknown lock state.
// policy may be nil, in which case cfg.LockAboveKph is used as is.
func NewAutoLock(cfg AutoLockConfig, enabled bool, policy ThresholdPolicy, speed SpeedReader) *AutoLock {
	return &AutoLock{
		cfg:    cfg,
		policy: policy,
		speed:  speed,
		state:  AutoLockState{Lock: LockUnknown, Enabled: enabled},
	}
}

// LockAbove returns the lock threshold in effect right now. It never drops
// below the unlock threshold so the dead band cannot invert.
func (a *AutoLock) LockAbove() float64 {
	t := a.cfg.LockAboveKph
	if a.policy != nil {
		t = a.policy.LockThreshold(t)
	}
	if t < a.cfg.UnlockBelowKph {
		t = a.cfg.UnlockBelowKph
	}
	return t
}

// UnlockBelow returns the unlock threshold.
func (a *AutoLock) UnlockBelow() float64 {
	return a.cfg.UnlockBelowKph
}

// OnSpeed handles a speed sample.
func (a *AutoLock) OnSpeed(kph float64) LockResult {
	if !a.state.Enabled || !validSpeed(kph) {
		return LockResult{}
	}

	if kph > a.LockAbove() {
		if a.state.AnyDoorOpen {
			set := !a.state.PendingLock
			a.state.PendingLock = true
			return LockResult{PendingSet: set}
		}
		if a.state.Lock != LockLocked {
			return a.lock(false)
		}
		return LockResult{}
	}

	if kph < a.cfg.UnlockBelowKph {
		a.state.PendingLock = false
		if a.state.Lock != LockUnlocked {
			a.state.Lock = LockUnlocked
			return LockResult{Command: CommandUnlock}
		}
	}
	return LockResult{}
}

// OnDoors handles a change of the aggregate door state. The decision uses
// the live speed; when it is unknown only anyOpen is recorded. The pending
// latch never outlives an open door: closing the doors either executes the
// pending lock or drops it.
func (a *AutoLock) OnDoors(anyOpen bool) LockResult {
	if !a.state.Enabled {
		return LockResult{}
	}
	a.state.AnyDoorOpen = anyOpen

	kph, known := a.liveSpeed()
	lockAbove := a.LockAbove()

	if anyOpen {
		if known && kph > lockAbove && a.state.Lock != LockLocked {
			set := !a.state.PendingLock
			a.state.PendingLock = true
			return LockResult{PendingSet: set}
		}
		return LockResult{}
	}

	if a.state.PendingLock && known && kph > lockAbove {
		return a.lock(true)
	}
	a.state.PendingLock = false
	return LockResult{}
}

// SyncDoors records the live door state without deciding anything. It is
// used when the controller is re-enabled, since door events are ignored
// while disabled.
func (a *AutoLock) SyncDoors(anyOpen bool) {
	a.state.AnyDoorOpen = anyOpen
	if !anyOpen {
		a.state.PendingLock = false
	}
}

func (a *AutoLock) liveSpeed() (float64, bool) {
	if a.speed == nil {
		return 0, false
	}
	kph, ok := a.speed.CurrentSpeed()
	return kph, ok && validSpeed(kph)
}

// SetEnabled toggles the controller and reports whether the flag changed.
func (a *AutoLock) SetEnabled(enabled bool) bool {
	if a.state.Enabled == enabled {
		return false
	}
	a.state.Enabled = enabled
	return true
}

// Enabled reports whether the controller reacts to events.
func (a *AutoLock) Enabled() bool {
	return a.state.Enabled
}

// State returns a copy of the controller state.
func (a *AutoLock) State() AutoLockState {
	return a.state
}

func (a *AutoLock) lock(pending bool) LockResult {
	a.state.Lock = LockLocked
	a.state.PendingLock = false
	return LockResult{Command: CommandLock, PendingExecuted: pending}
}
