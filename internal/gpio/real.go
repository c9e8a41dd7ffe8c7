//go:build linux

package gpio

import (
	"context"
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/htbalar/vehicle-safety/internal/config"
	"github.com/htbalar/vehicle-safety/internal/logger"
)

type resolvedLine struct {
	contact Contact
	line    *gpiocdev.Line
}

// RealReader reads contacts from actual hardware using the GPIO character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines []resolvedLine
}

// Probe opens chip and requests every configured line as an input.
// Lines that fail are logged and skipped. An error is returned only when
// the chip itself cannot be opened.
func Probe(ctx context.Context, chip string, lines []config.GPIOLine) (*RealReader, error) {
	ctx = logger.WithName(ctx, "gpio")

	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}

	r := &RealReader{chip: c}
	for _, contact := range contactsFromConfig(lines) {
		l, err := c.RequestLine(contact.Offset, lineOptions(contact)...)
		if err != nil {
			logger.WarnKV(ctx, "skipping gpio line",
				"kind", contact.Kind, "id", contact.ID, "offset", contact.Offset, "error", err)
			continue
		}
		r.lines = append(r.lines, resolvedLine{contact: contact, line: l})
		logger.InfoKV(ctx, "gpio line ready",
			"kind", contact.Kind, "id", contact.ID, "offset", contact.Offset)
	}

	return r, nil
}

func lineOptions(c Contact) []gpiocdev.LineReqOption {
	if c.ActiveLow {
		return []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.AsActiveLow, gpiocdev.WithPullUp}
	}
	return []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
}

// Read returns the logical value of every resolved contact.
func (r *RealReader) Read() ([]Reading, error) {
	out := make([]Reading, 0, len(r.lines))
	for _, rl := range r.lines {
		v, err := rl.line.Value()
		if err != nil {
			return nil, fmt.Errorf("read %s %s: %w", rl.contact.Kind, rl.contact.ID, err)
		}
		out = append(out, Reading{Kind: rl.contact.Kind, ID: rl.contact.ID, Value: v == 1})
	}
	return out, nil
}

// Contacts returns the resolved contacts.
func (r *RealReader) Contacts() []Contact {
	out := make([]Contact, 0, len(r.lines))
	for _, rl := range r.lines {
		out = append(out, rl.contact)
	}
	return out
}

// Close releases GPIO resources.
// Lines are reconfigured to input with pull-down before closing so the
// pins are left in their boot default state.
func (r *RealReader) Close() error {
	var errs []error

	for _, rl := range r.lines {
		if err := rl.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", rl.contact.ID, err))
		}
		if err := rl.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", rl.contact.ID, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
