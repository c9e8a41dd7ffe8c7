package logic

// DebounceState is the counter state of a single gate.
// At most one of Up and Down is non-zero.
type DebounceState struct {
	Active bool
	Up     int
	Down   int
}

// Gate turns a noisy boolean condition into latched transitions.
// A condition must hold for count consecutive ticks before the gate flips.
type Gate struct {
	count int
	state DebounceState
}

// NewGate creates an inactive gate. A count below 1 is treated as 1,
// which makes the gate a plain edge detector.
func NewGate(count int) *Gate {
	if count < 1 {
		count = 1
	}
	return &Gate{count: count}
}

// Tick feeds one observation and returns the transition it caused, if any.
func (g *Gate) Tick(condition bool) Transition {
	if condition {
		g.state.Up++
		g.state.Down = 0
		if !g.state.Active && g.state.Up >= g.count {
			g.state.Active = true
			return TransitionActivated
		}
		return TransitionNone
	}

	g.state.Down++
	g.state.Up = 0
	if g.state.Active && g.state.Down >= g.count {
		g.state.Active = false
		return TransitionCleared
	}
	return TransitionNone
}

// Active reports the latched state.
func (g *Gate) Active() bool {
	return g.state.Active
}

// State returns a copy of the counters.
func (g *Gate) State() DebounceState {
	return g.state
}

// Count returns the configured debounce count.
func (g *Gate) Count() int {
	return g.count
}
