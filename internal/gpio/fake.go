package gpio

import (
	"errors"

	"github.com/htbalar/vehicle-safety/internal/config"
)

// FakeReader is a test double that returns scripted readings.
type FakeReader struct {
	// Samples contains scripted logical values, one map per Read call,
	// keyed by contact id. Contacts missing from a sample read as false.
	Samples []map[string]bool

	// index tracks current position in Samples
	index int

	contacts []Contact

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader for the given lines and samples.
func NewFakeReader(lines []config.GPIOLine, samples ...map[string]bool) *FakeReader {
	return &FakeReader{Samples: samples, contacts: contactsFromConfig(lines)}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() ([]Reading, error) {
	if f.ReadError != nil {
		return nil, f.ReadError
	}

	if len(f.Samples) == 0 {
		return nil, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	out := make([]Reading, 0, len(f.contacts))
	for _, c := range f.contacts {
		out = append(out, Reading{Kind: c.Kind, ID: c.ID, Value: sample[c.ID]})
	}
	return out, nil
}

// Contacts returns the configured contacts.
func (f *FakeReader) Contacts() []Contact {
	return append([]Contact(nil), f.contacts...)
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}
