package logic

// ChildModeConfig holds the child-mode thresholds in km/h.
type ChildModeConfig struct {
	NormalLockThresholdKph float64
	ChildLockThresholdKph  float64
	MaxSpeedKph            float64
	BlockRearInsideUnlock  bool
}

// ChildMode is the child-safety policy. While enabled it lowers the lock
// threshold, refuses rear door unlocks from inside and raises un-debounced
// speed and seatbelt events.
type ChildMode struct {
	cfg     ChildModeConfig
	enabled bool
}

// NewChildMode creates the policy with a restored enabled flag.
// No activation event is produced for the restored value.
func NewChildMode(cfg ChildModeConfig, enabled bool) *ChildMode {
	return &ChildMode{cfg: cfg, enabled: enabled}
}

// Enabled reports whether child mode is on.
func (c *ChildMode) Enabled() bool {
	return c.enabled
}

// SetEnabled switches child mode. It returns nil when the flag is unchanged.
func (c *ChildMode) SetEnabled(enabled bool) []ChildEvent {
	if c.enabled == enabled {
		return nil
	}
	c.enabled = enabled
	if !enabled {
		return []ChildEvent{{Type: ChildModeDeactivated}}
	}
	return []ChildEvent{{
		Type:                   ChildModeActivated,
		NormalLockThresholdKph: c.cfg.NormalLockThresholdKph,
		ChildLockThresholdKph:  c.cfg.ChildLockThresholdKph,
	}}
}

// LockThreshold returns the child threshold while enabled. Otherwise base,
// or the normal threshold when base is zero.
func (c *ChildMode) LockThreshold(baseKph float64) float64 {
	if c.enabled {
		return c.cfg.ChildLockThresholdKph
	}
	if baseKph != 0 {
		return baseKph
	}
	return c.cfg.NormalLockThresholdKph
}

// AllowUnlock decides an unlock request. A denial carries the blocked event.
func (c *ChildMode) AllowUnlock(door Door, source UnlockSource) (bool, []ChildEvent) {
	if !c.enabled || !c.cfg.BlockRearInsideUnlock {
		return true, nil
	}
	if source == SourceInside && door.IsRear() {
		return false, []ChildEvent{{Type: ChildModeBlockedRearInside, Door: door.Label()}}
	}
	return true, nil
}

// ObserveSpeed checks a speed sample against the child-mode ceiling.
func (c *ChildMode) ObserveSpeed(kph float64) []ChildEvent {
	if !c.enabled || !validSpeed(kph) || kph <= c.cfg.MaxSpeedKph {
		return nil
	}
	return []ChildEvent{c.speedExceeded(kph)}
}

// ObserveAlert derives child-mode events from a safety alert.
func (c *ChildMode) ObserveAlert(a Alert) []ChildEvent {
	if !c.enabled {
		return nil
	}

	var events []ChildEvent
	if a.SpeedKph > c.cfg.MaxSpeedKph {
		events = append(events, c.speedExceeded(a.SpeedKph))
	}
	if a.Moving && a.Any() {
		ev := ChildEvent{Type: ChildModeUnfastenedSeatbelt, SpeedKph: RoundKph(a.SpeedKph)}
		members := append([]string(nil), a.Members...)
		if a.Predicate == PredicateDoor {
			ev.OpenDoors = members
		} else {
			ev.UnfastenedBelts = members
		}
		events = append(events, ev)
	}
	return events
}

func (c *ChildMode) speedExceeded(kph float64) ChildEvent {
	return ChildEvent{
		Type:     ChildModeSpeedExceeded,
		SpeedKph: RoundKph(kph),
		LimitKph: c.cfg.MaxSpeedKph,
	}
}
