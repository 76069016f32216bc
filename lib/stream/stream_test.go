package stream

import (
	"errors"
	"fmt"
	"testing"
)

func TestOutboxValidation(t *testing.T) {
	if _, err := NewOutbox(0, 10); err == nil {
		t.Error("expected an error for zero ordinals")
	}
	if _, err := NewOutbox(1, 0); err == nil {
		t.Error("expected an error for zero capacity")
	}
}

func TestOutboxBoundsEachOrdinal(t *testing.T) {
	o, err := NewOutbox(2, 3)
	if err != nil {
		t.Fatalf("cannot create outbox: %v", err)
	}

	for i := 0; i < 3; i++ {
		if !o.Add(0, i) {
			t.Fatalf("add %d rejected below capacity", i)
		}
	}
	if o.Add(0, 99) {
		t.Error("add beyond capacity accepted")
	}

	// the other ordinal is unaffected
	if !o.Add(1, "other") {
		t.Error("full ordinal 0 blocked ordinal 1")
	}

	if o.HighWater() != 3 {
		t.Errorf("high water is %d, expected 3", o.HighWater())
	}
}

func TestOutboxDrainsInFIFOOrder(t *testing.T) {
	o, err := NewOutbox(1, 10)
	if err != nil {
		t.Fatalf("cannot create outbox: %v", err)
	}
	for i := 0; i < 5; i++ {
		o.Add(0, i)
	}

	var got []int
	drained := o.Drain(0, func(item any) bool {
		got = append(got, item.(int))
		return true
	})
	if drained != 5 {
		t.Fatalf("drained %d items, expected 5", drained)
	}
	for i, v := range got {
		if v != i {
			t.Errorf("position %d holds %d", i, v)
		}
	}
	if o.Size(0) != 0 {
		t.Errorf("%d items left after a full drain", o.Size(0))
	}
}

func TestOutboxDrainStopsWhenConsumerPushesBack(t *testing.T) {
	o, err := NewOutbox(1, 10)
	if err != nil {
		t.Fatalf("cannot create outbox: %v", err)
	}
	for i := 0; i < 5; i++ {
		o.Add(0, i)
	}

	taken := 0
	o.Drain(0, func(any) bool {
		taken++
		return taken <= 2
	})

	// the rejected item stays buffered
	if o.Size(0) != 3 {
		t.Errorf("%d items left, expected 3", o.Size(0))
	}
}

// scriptedClient serves records in fixed slices, one per Poll call
type scriptedClient struct {
	polls [][]Record
	err   error
}

func (c *scriptedClient) Poll(int) ([]Record, error) {
	if c.err != nil {
		return nil, c.err
	}
	if len(c.polls) == 0 {
		return nil, nil
	}
	records := c.polls[0]
	c.polls = c.polls[1:]
	return records, nil
}

func records(keys ...string) []Record {
	out := make([]Record, len(keys))
	for i, k := range keys {
		out[i] = Record{Key: []byte(k), Value: []byte("v")}
	}
	return out
}

func TestSourceFillEmitsEverything(t *testing.T) {
	client := &scriptedClient{polls: [][]Record{
		records("a", "b", "c"),
		records("d", "e"),
	}}
	source := NewSource(client)

	o, err := NewOutbox(2, 100)
	if err != nil {
		t.Fatalf("cannot create outbox: %v", err)
	}

	emitted, err := source.Fill(o)
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if emitted != 5 {
		t.Errorf("emitted %d records, expected 5", emitted)
	}
	if got := o.Size(0) + o.Size(1); got != 5 {
		t.Errorf("outbox holds %d records, expected 5", got)
	}
	if source.Pending() != 0 {
		t.Errorf("%d records pending after a full fill", source.Pending())
	}
}

func TestSourceKeepsRejectedRecordsPending(t *testing.T) {
	client := &scriptedClient{polls: [][]Record{records("a", "a", "a", "a")}}
	source := NewSource(client)

	o, err := NewOutbox(1, 2)
	if err != nil {
		t.Fatalf("cannot create outbox: %v", err)
	}

	emitted, err := source.Fill(o)
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if emitted != 2 {
		t.Fatalf("emitted %d records into a capacity-2 outbox", emitted)
	}
	if source.Pending() != 2 {
		t.Fatalf("%d records pending, expected 2", source.Pending())
	}

	// drain and refill; the parked records go first
	o.Drain(0, func(any) bool { return true })
	emitted, err = source.Fill(o)
	if err != nil {
		t.Fatalf("second Fill failed: %v", err)
	}
	if emitted != 2 {
		t.Errorf("second Fill emitted %d records, expected 2", emitted)
	}
}

func TestSourceSameKeyStaysOnOneOrdinal(t *testing.T) {
	var polls [][]Record
	for i := 0; i < 4; i++ {
		polls = append(polls, records("hot", "hot", fmt.Sprintf("k%d", i)))
	}
	client := &scriptedClient{polls: polls}
	source := NewSource(client)

	o, err := NewOutbox(4, 100)
	if err != nil {
		t.Fatalf("cannot create outbox: %v", err)
	}
	if _, err := source.Fill(o); err != nil {
		t.Fatalf("Fill failed: %v", err)
	}

	hotOrdinals := 0
	for ord := 0; ord < o.Ordinals(); ord++ {
		found := false
		o.Drain(ord, func(item any) bool {
			if string(item.(Record).Key) == "hot" {
				found = true
			}
			return true
		})
		if found {
			hotOrdinals++
		}
	}
	if hotOrdinals != 1 {
		t.Errorf("key spread over %d ordinals, expected 1", hotOrdinals)
	}
}

func TestSourcePropagatesClientError(t *testing.T) {
	client := &scriptedClient{err: errors.New("driver gone")}
	source := NewSource(client)

	o, err := NewOutbox(1, 10)
	if err != nil {
		t.Fatalf("cannot create outbox: %v", err)
	}
	if _, err := source.Fill(o); err == nil {
		t.Fatal("expected the driver error to propagate")
	}
}
