package stream

import (
	"fmt"

	"github.com/eapache/queue"
)

// Outbox buffers emitted items per ordinal. Each ordinal is a bounded FIFO;
// Add reports whether the item was accepted, so a producer can park an item
// and retry once the downstream has drained.
type Outbox struct {
	queues   []*queue.Queue
	capacity int

	// highWater tracks the largest queue length ever reached
	highWater int
}

// NewOutbox creates an outbox with the given number of ordinals, each
// bounded to capacity items
func NewOutbox(ordinals, capacity int) (*Outbox, error) {
	if ordinals <= 0 {
		return nil, fmt.Errorf("outbox needs at least one ordinal, got %d", ordinals)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("outbox capacity must be positive, got %d", capacity)
	}

	queues := make([]*queue.Queue, ordinals)
	for i := range queues {
		queues[i] = queue.New()
	}
	return &Outbox{queues: queues, capacity: capacity}, nil
}

// Ordinals returns the number of ordinals
func (o *Outbox) Ordinals() int {
	return len(o.queues)
}

// Add offers an item to the given ordinal and reports whether the bounded
// queue accepted it
func (o *Outbox) Add(ordinal int, item any) bool {
	q := o.queues[ordinal]
	if q.Length() >= o.capacity {
		return false
	}
	q.Add(item)
	if q.Length() > o.highWater {
		o.highWater = q.Length()
	}
	return true
}

// Size returns the number of buffered items in an ordinal
func (o *Outbox) Size(ordinal int) int {
	return o.queues[ordinal].Length()
}

// HighWater returns the largest queue length any ordinal has reached
func (o *Outbox) HighWater() int {
	return o.highWater
}

// Drain removes buffered items from an ordinal in FIFO order, passing each
// to fn, until the ordinal is empty or fn returns false. It returns the
// number of items drained.
func (o *Outbox) Drain(ordinal int, fn func(item any) bool) int {
	q := o.queues[ordinal]
	drained := 0
	for q.Length() > 0 {
		if !fn(q.Peek()) {
			break
		}
		q.Remove()
		drained++
	}
	return drained
}
