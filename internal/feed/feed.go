// Package feed decodes inbound MQTT messages into typed inputs for the
// dispatcher. It knows topic layouts and payload formats, nothing else.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/htbalar/vehicle-safety/internal/config"
	"github.com/htbalar/vehicle-safety/internal/logic"
)

// Kind identifies what an Input carries.
type Kind string

const (
	KindSpeed         Kind = "speed"
	KindDoor          Kind = "door"
	KindBelt          Kind = "belt"
	KindAutoLockSet   Kind = "autolock_set"
	KindChildLockSet  Kind = "childlock_set"
	KindChildPresence Kind = "child_presence"
	KindUnlockRequest Kind = "unlock_request"
)

// Input is one decoded inbound message.
type Input struct {
	Kind     Kind
	SpeedKph float64
	// ID is the door or belt id.
	ID string
	// Value is the door open, belt fastened or toggle value.
	Value  bool
	Source logic.UnlockSource
}

var (
	// ErrUnknownTopic is returned for topics the daemon does not handle.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrMalformed is returned when a payload cannot be decoded.
	ErrMalformed = errors.New("malformed payload")
)

// Decoder maps topics to inputs.
type Decoder struct {
	topics config.Topics
}

// NewDecoder creates a decoder for the given topic layout.
func NewDecoder(topics config.Topics) *Decoder {
	return &Decoder{topics: topics}
}

// Subscriptions returns the topic filters the daemon subscribes to.
func (d *Decoder) Subscriptions() []string {
	return []string{
		d.topics.SpeedInput,
		d.topics.SpeedExternal,
		d.topics.DoorInput,
		d.topics.SeatbeltInput,
		d.topics.AutoLockSet,
		d.topics.ChildLockSet,
		d.topics.ChildPresence,
		d.topics.UnlockRequest,
	}
}

// Decode turns a message into an Input.
func (d *Decoder) Decode(topic string, payload []byte) (Input, error) {
	raw := string(payload)

	switch {
	case topic == d.topics.SpeedInput || topic == d.topics.SpeedExternal:
		v, err := ParseSpeed(raw)
		if err != nil {
			return Input{}, err
		}
		return Input{Kind: KindSpeed, SpeedKph: v}, nil

	case topic == d.topics.AutoLockSet:
		v, err := ParseStrictBool(raw)
		if err != nil {
			return Input{}, err
		}
		return Input{Kind: KindAutoLockSet, Value: v}, nil

	case topic == d.topics.ChildLockSet:
		return Input{Kind: KindChildLockSet, Value: ParseSwitch(raw)}, nil

	case topic == d.topics.ChildPresence:
		v, err := ParseBool(raw)
		if err != nil {
			return Input{}, err
		}
		return Input{Kind: KindChildPresence, Value: v}, nil
	}

	if id, ok := Match(d.topics.DoorInput, topic); ok {
		v, err := ParseBool(raw)
		if err != nil {
			return Input{}, err
		}
		return Input{Kind: KindDoor, ID: id, Value: v}, nil
	}

	if id, ok := Match(d.topics.SeatbeltInput, topic); ok {
		v, err := ParseBool(raw)
		if err != nil {
			return Input{}, err
		}
		return Input{Kind: KindBelt, ID: id, Value: v}, nil
	}

	if id, ok := Match(d.topics.UnlockRequest, topic); ok {
		src, ok := logic.ParseUnlockSource(raw)
		if !ok {
			return Input{}, fmt.Errorf("%w: unlock source %q", ErrMalformed, raw)
		}
		return Input{Kind: KindUnlockRequest, ID: id, Source: src}, nil
	}

	return Input{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
}

// ParseBool accepts true/1/on/yes and false/0/off/no in any case, then
// falls back to a JSON boolean or number.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "on", "yes":
		return true, nil
	case "false", "0", "off", "no":
		return false, nil
	}

	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		switch x := v.(type) {
		case bool:
			return x, nil
		case float64:
			return x != 0, nil
		}
	}
	return false, fmt.Errorf("%w: boolean %q", ErrMalformed, s)
}

// ParseStrictBool accepts only true or false, bare or as JSON.
func ParseStrictBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	var v bool
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return false, fmt.Errorf("%w: expected true/false, got %q", ErrMalformed, s)
	}
	return v, nil
}

// ParseSwitch returns true for on/1/true/yes and false for anything else.
func ParseSwitch(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "1", "true", "yes":
		return true
	}
	return false
}

type speedPayload struct {
	SpeedKph *float64 `json:"speedKph"`
}

// ParseSpeed accepts a bare number or {"speedKph": n}.
func ParseSpeed(s string) (float64, error) {
	s = strings.TrimSpace(s)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var p speedPayload
		if jerr := json.Unmarshal([]byte(s), &p); jerr != nil || p.SpeedKph == nil {
			return 0, fmt.Errorf("%w: speed %q", ErrMalformed, s)
		}
		v = *p.SpeedKph
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: speed %q", ErrMalformed, s)
	}
	return v, nil
}

// Match reports whether topic matches a filter with at most one single-level
// wildcard (+) and returns the segment the wildcard matched.
func Match(filter, topic string) (string, bool) {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	if len(fp) != len(tp) {
		return "", false
	}

	var wild string
	for i := range fp {
		switch {
		case fp[i] == "+":
			if tp[i] == "" {
				return "", false
			}
			wild = tp[i]
		case fp[i] != tp[i]:
			return "", false
		}
	}
	return wild, true
}

// Fill replaces the single-level wildcard in filter with segment.
func Fill(filter, segment string) string {
	return strings.Replace(filter, "+", segment, 1)
}
