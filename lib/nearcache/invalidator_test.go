package nearcache

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type recordingHandler struct {
	mu      sync.Mutex
	batches map[string][][]Invalidation
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{batches: map[string][][]Invalidation{}}
}

func (h *recordingHandler) handle(cacheName string, batch []Invalidation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.batches[cacheName] = append(h.batches[cacheName], batch)
}

func (h *recordingHandler) flushes(cacheName string) [][]Invalidation {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.batches[cacheName]
}

func (h *recordingHandler) total(cacheName string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, batch := range h.batches[cacheName] {
		n += len(batch)
	}
	return n
}

func inv(seq int64) Invalidation {
	return Invalidation{Key: []byte("k"), Source: uuid.Nil, Sequence: seq}
}

func TestBatchInvalidatorFlushesOnBatchSize(t *testing.T) {
	h := newRecordingHandler()
	b := NewBatchInvalidator(3, time.Hour, h.handle)
	defer b.Close()

	for i := 0; i < 7; i++ {
		b.Add("orders", inv(int64(i)))
	}

	flushes := h.flushes("orders")
	if len(flushes) != 2 {
		t.Fatalf("expected 2 size-triggered flushes, got %d", len(flushes))
	}
	for i, batch := range flushes {
		if len(batch) != 3 {
			t.Errorf("flush %d carried %d events, expected 3", i, len(batch))
		}
	}

	// the 7th event is still buffered
	if got := h.total("orders"); got != 6 {
		t.Errorf("delivered %d events before Flush, expected 6", got)
	}
	b.Flush()
	if got := h.total("orders"); got != 7 {
		t.Errorf("delivered %d events after Flush, expected 7", got)
	}
}

func TestBatchInvalidatorKeepsCachesSeparate(t *testing.T) {
	h := newRecordingHandler()
	b := NewBatchInvalidator(2, time.Hour, h.handle)
	defer b.Close()

	b.Add("orders", inv(1))
	b.Add("customers", inv(2))

	if len(h.flushes("orders")) != 0 || len(h.flushes("customers")) != 0 {
		t.Fatal("partial batches were flushed")
	}

	b.Add("orders", inv(3))
	if len(h.flushes("orders")) != 1 {
		t.Error("full orders batch was not flushed")
	}
	if len(h.flushes("customers")) != 0 {
		t.Error("customers batch flushed by another cache filling up")
	}
}

func TestBatchInvalidatorFlushesOnInterval(t *testing.T) {
	h := newRecordingHandler()
	b := NewBatchInvalidator(100, 10*time.Millisecond, h.handle)
	defer b.Close()

	b.Add("orders", inv(1))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if h.total("orders") == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("interval flush never happened")
}

func TestBatchInvalidatorCloseFlushesRemainder(t *testing.T) {
	h := newRecordingHandler()
	b := NewBatchInvalidator(100, time.Hour, h.handle)

	b.Add("orders", inv(1))
	b.Add("orders", inv(2))

	b.Close()
	if got := h.total("orders"); got != 2 {
		t.Fatalf("Close delivered %d events, expected 2", got)
	}

	// second Close is a no-op
	b.Close()
}

func TestBatchInvalidatorConcurrentAdds(t *testing.T) {
	h := newRecordingHandler()
	b := NewBatchInvalidator(10, time.Hour, h.handle)

	const writers = 8
	const perWriter = 100

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				b.Add("orders", inv(int64(i)))
			}
		}()
	}
	wg.Wait()
	b.Close()

	if got := h.total("orders"); got != writers*perWriter {
		t.Errorf("delivered %d events, expected %d", got, writers*perWriter)
	}
}
