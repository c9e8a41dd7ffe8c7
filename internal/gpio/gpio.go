// Package gpio reads hard-wired door and seatbelt contacts.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
//
// Lines are probed once at startup. Lines that cannot be requested are
// logged and left out; the resulting set of contacts never changes.
package gpio

import "github.com/htbalar/vehicle-safety/internal/config"

// Contact is a line that was successfully requested during probing.
type Contact struct {
	Kind      string // config.KindDoor or config.KindBelt
	ID        string
	Offset    int
	ActiveLow bool
}

// Reading is the logical value of one contact.
// Doors: true = open. Belts: true = fastened.
type Reading struct {
	Kind  string
	ID    string
	Value bool
}

// Reader reads the resolved contacts.
type Reader interface {
	// Read returns one reading per contact, in probe order.
	Read() ([]Reading, error)

	// Contacts returns the resolved contacts.
	Contacts() []Contact

	// Close releases GPIO resources.
	Close() error
}

// contactsFromConfig converts configured lines to contacts without probing.
func contactsFromConfig(lines []config.GPIOLine) []Contact {
	out := make([]Contact, 0, len(lines))
	for _, l := range lines {
		out = append(out, Contact{Kind: l.Kind, ID: l.ID, Offset: l.Offset, ActiveLow: l.ActiveLow})
	}
	return out
}

// Changes tracks the last value per contact and returns only readings that
// differ from it. The first reading of every contact counts as a change.
type Changes struct {
	last map[string]bool
}

// NewChanges creates an empty change tracker.
func NewChanges() *Changes {
	return &Changes{last: make(map[string]bool)}
}

// Filter returns the readings whose value changed since the previous call.
func (c *Changes) Filter(readings []Reading) []Reading {
	var out []Reading
	for _, r := range readings {
		key := r.Kind + "/" + r.ID
		if old, ok := c.last[key]; ok && old == r.Value {
			continue
		}
		c.last[key] = r.Value
		out = append(out, r)
	}
	return out
}
