package gpio

import (
	"errors"
	"testing"

	"github.com/htbalar/vehicle-safety/internal/config"
)

var testLines = []config.GPIOLine{
	{Kind: config.KindDoor, ID: "rearLeft", Offset: 17},
	{Kind: config.KindBelt, ID: "row1_pos1", Offset: 27, ActiveLow: true},
}

func TestFakeReaderRead(t *testing.T) {
	f := NewFakeReader(testLines,
		map[string]bool{"rearLeft": false, "row1_pos1": true},
		map[string]bool{"rearLeft": true, "row1_pos1": true},
	)

	got, err := f.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Reading{
		{Kind: config.KindDoor, ID: "rearLeft", Value: false},
		{Kind: config.KindBelt, ID: "row1_pos1", Value: true},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d readings, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reading %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	got, _ = f.Read()
	if !got[0].Value {
		t.Error("second sample: expected rearLeft open")
	}

	// Exhausted: last sample repeats.
	got, _ = f.Read()
	if !got[0].Value {
		t.Error("exhausted: expected last sample to repeat")
	}
}

func TestFakeReaderErrors(t *testing.T) {
	f := NewFakeReader(testLines)
	if _, err := f.Read(); err == nil {
		t.Error("expected error with no samples")
	}

	f = NewFakeReader(testLines, map[string]bool{})
	f.ReadError = errors.New("bus error")
	if _, err := f.Read(); err == nil {
		t.Error("expected scripted error")
	}
}

func TestFakeReaderCloseAndReset(t *testing.T) {
	f := NewFakeReader(testLines, map[string]bool{"rearLeft": true}, map[string]bool{})
	f.Read()
	f.Close()
	if !f.Closed {
		t.Error("expected Closed")
	}

	f.Reset()
	if f.Closed {
		t.Error("Reset should clear Closed")
	}
	got, _ := f.Read()
	if !got[0].Value {
		t.Error("Reset should rewind samples")
	}
}

func TestFakeReaderContacts(t *testing.T) {
	f := NewFakeReader(testLines)
	c := f.Contacts()
	if len(c) != 2 || c[1].ID != "row1_pos1" || !c[1].ActiveLow || c[0].Offset != 17 {
		t.Errorf("unexpected contacts: %+v", c)
	}
}

func TestChangesFilter(t *testing.T) {
	c := NewChanges()
	first := []Reading{
		{Kind: config.KindDoor, ID: "rearLeft", Value: false},
		{Kind: config.KindBelt, ID: "row1_pos1", Value: true},
	}
	if got := c.Filter(first); len(got) != 2 {
		t.Fatalf("first reading should pass through, got %+v", got)
	}
	if got := c.Filter(first); len(got) != 0 {
		t.Fatalf("unchanged reading should be filtered, got %+v", got)
	}

	second := []Reading{
		{Kind: config.KindDoor, ID: "rearLeft", Value: true},
		{Kind: config.KindBelt, ID: "row1_pos1", Value: true},
	}
	got := c.Filter(second)
	if len(got) != 1 || got[0].ID != "rearLeft" || !got[0].Value {
		t.Errorf("expected only rearLeft change, got %+v", got)
	}
}
