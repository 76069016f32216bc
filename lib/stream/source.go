package stream

import (
	"hash/fnv"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("stream")

// Record is one change event pulled from a driver
type Record struct {
	Key       []byte
	Value     []byte
	Timestamp int64
}

// ISourceClient is the driver surface a Source pulls from.
type ISourceClient interface {
	// Poll returns up to max pending records. An empty result means no
	// data is currently available.
	Poll(max int) ([]Record, error)
}

// defaultPollBatch bounds one Poll call
const defaultPollBatch = 128

// Source pulls records from a client and emits them into an outbox,
// partitioned over the ordinals by key hash. Not safe for concurrent use.
type Source struct {
	client ISourceClient

	// pending holds records accepted from the client but not yet taken by
	// the outbox
	pending []Record
}

// NewSource creates a source pulling from client
func NewSource(client ISourceClient) *Source {
	return &Source{client: client}
}

// Fill moves records into the outbox until it pushes back or the client
// has nothing more. Records rejected by the outbox stay pending and lead
// the next Fill, so no record is ever dropped or reordered. Returns the
// number of records emitted.
func (s *Source) Fill(outbox *Outbox) (int, error) {
	emitted := 0

	for {
		if len(s.pending) == 0 {
			records, err := s.client.Poll(defaultPollBatch)
			if err != nil {
				return emitted, err
			}
			if len(records) == 0 {
				return emitted, nil
			}
			s.pending = records
		}

		for len(s.pending) > 0 {
			record := s.pending[0]
			if !outbox.Add(s.ordinalFor(record, outbox.Ordinals()), record) {
				return emitted, nil
			}
			s.pending = s.pending[1:]
			emitted++
		}
	}
}

// Pending returns the number of records waiting for outbox space
func (s *Source) Pending() int {
	return len(s.pending)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// ordinalFor keeps all records of one key on one ordinal so per-key order
// survives the fan-out
func (s *Source) ordinalFor(record Record, ordinals int) int {
	h := fnv.New32a()
	_, _ = h.Write(record.Key)
	return int(h.Sum32() % uint32(ordinals))
}
