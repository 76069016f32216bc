package nearcache

import (
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("nearcache")

var (
	metricInvalidations = metrics.NewCounter("memgrid_nearcache_invalidations_total")
	metricBatchFlushes  = metrics.NewCounter("memgrid_nearcache_batch_flushes_total")
)

const (
	// DefaultBatchSize is the number of invalidations triggering a flush
	DefaultBatchSize = 100

	// DefaultFlushInterval bounds how long a partial batch may wait
	DefaultFlushInterval = 10 * time.Second
)

// Invalidation is a single near-cache invalidation event
type Invalidation struct {
	// Key is the serialized key of the mutated entry; nil means clear-all
	Key []byte

	// Source identifies the client whose mutation caused the event, so a
	// client can skip invalidations of its own writes
	Source uuid.UUID

	// Sequence orders the events of one partition for loss detection
	Sequence int64
}

// FlushHandler receives a completed batch for one cache. It runs on the
// goroutine that triggered the flush and must not block for long.
type FlushHandler func(cacheName string, batch []Invalidation)

// BatchInvalidator accumulates invalidations per cache and flushes them in
// batches. Safe for concurrent use.
type BatchInvalidator struct {
	handler   FlushHandler
	batchSize int
	interval  time.Duration

	batches *xsync.MapOf[string, *cacheBatch]

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type cacheBatch struct {
	mu     sync.Mutex
	events []Invalidation
}

// NewBatchInvalidator starts an invalidator flushing through handler.
// batchSize and interval fall back to the defaults when zero.
func NewBatchInvalidator(batchSize int, interval time.Duration, handler FlushHandler) *BatchInvalidator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if interval <= 0 {
		interval = DefaultFlushInterval
	}

	b := &BatchInvalidator{
		handler:   handler,
		batchSize: batchSize,
		interval:  interval,
		batches:   xsync.NewMapOf[string, *cacheBatch](),
		done:      make(chan struct{}),
	}

	b.wg.Add(1)
	go b.flushLoop()
	return b
}

// Add records an invalidation for the given cache. A full batch is flushed
// inline on the caller's goroutine.
func (b *BatchInvalidator) Add(cacheName string, inv Invalidation) {
	metricInvalidations.Inc()

	batch, _ := b.batches.LoadOrCompute(cacheName, func() *cacheBatch {
		return &cacheBatch{}
	})

	batch.mu.Lock()
	batch.events = append(batch.events, inv)
	var full []Invalidation
	if len(batch.events) >= b.batchSize {
		full = batch.events
		batch.events = nil
	}
	batch.mu.Unlock()

	if full != nil {
		b.deliver(cacheName, full)
	}
}

// Flush delivers all partial batches immediately
func (b *BatchInvalidator) Flush() {
	b.batches.Range(func(cacheName string, batch *cacheBatch) bool {
		batch.mu.Lock()
		events := batch.events
		batch.events = nil
		batch.mu.Unlock()

		if len(events) > 0 {
			b.deliver(cacheName, events)
		}
		return true
	})
}

// Close stops the flush loop and delivers everything still buffered.
// Idempotent.
func (b *BatchInvalidator) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
		b.Flush()
	})
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (b *BatchInvalidator) flushLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.Flush()
		case <-b.done:
			return
		}
	}
}

func (b *BatchInvalidator) deliver(cacheName string, events []Invalidation) {
	metricBatchFlushes.Inc()
	Logger.Debugf("Flushing %d invalidations for cache %q", len(events), cacheName)
	b.handler(cacheName, events)
}
