package mqtt

import "slices"

// outbox queues messages published while the broker is unreachable.
// Retained messages carry state, so a newer retained message replaces any
// queued one on the same topic. Everything else is kept in publish order and
// the oldest message is dropped when the outbox is full.
// Not safe for concurrent use: caller must synchronize.
type outbox struct {
	msgs     []Message
	capacity int
	dropped  int
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{msgs: make([]Message, 0, capacity), capacity: capacity}
}

// push queues msg. It returns true only for the first drop since the last
// drain, so callers log once per outage.
func (o *outbox) push(msg Message) bool {
	if msg.Retained {
		o.msgs = slices.DeleteFunc(o.msgs, func(m Message) bool {
			return m.Retained && m.Topic == msg.Topic
		})
	}

	first := false
	if len(o.msgs) == o.capacity {
		o.msgs = slices.Delete(o.msgs, 0, 1)
		o.dropped++
		first = o.dropped == 1
	}
	o.msgs = append(o.msgs, msg)
	return first
}

// drain empties the outbox and returns its messages oldest first together
// with the number dropped since the previous drain.
func (o *outbox) drain() ([]Message, int) {
	if len(o.msgs) == 0 && o.dropped == 0 {
		return nil, 0
	}
	msgs := slices.Clone(o.msgs)
	dropped := o.dropped
	o.msgs = o.msgs[:0]
	o.dropped = 0
	return msgs, dropped
}

func (o *outbox) len() int {
	return len(o.msgs)
}
