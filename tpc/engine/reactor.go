package engine

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("engine")

// maxEventsPerWait bounds the readiness events handled per loop iteration
const maxEventsPerWait = 128

// ioHandler is implemented by everything a reactor can own: async sockets
// and server (accept) sockets. All methods run on the reactor goroutine.
type ioHandler interface {
	onReadable()
	onWritable()

	// loopClose releases the handler's resources during reactor shutdown
	loopClose()
}

// Reactor is a single-threaded event loop. It owns a set of sockets and
// runs all their I/O callbacks, plus any task submitted via Execute, on one
// goroutine that is locked to an OS thread (and optionally pinned to the
// CPU core matching the reactor index).
//
// No two tasks, and no task and an I/O callback, ever run concurrently for
// the same reactor.
type Reactor struct {
	idx    int
	poller poller

	// pending tasks, appended by Execute from any goroutine
	mu      sync.Mutex
	pending []func()

	// handlers maps registered fds to their owner. Touched only by the
	// reactor goroutine.
	handlers map[int]ioHandler

	gid     atomic.Int64
	closed  atomic.Bool
	started chan struct{}
	stopped chan struct{}
}

// NewReactor creates a reactor and starts its event loop. The loop runs
// until Close is called. If pin is true the loop thread is bound to CPU
// core idx.
func NewReactor(idx int, pin bool) (*Reactor, error) {
	p, err := newPoller()
	if err != nil {
		return nil, err
	}

	r := &Reactor{
		idx:      idx,
		poller:   p,
		handlers: make(map[int]ioHandler),
		started:  make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	go r.loop(pin)
	<-r.started
	return r, nil
}

// Index returns the reactor's index within its engine
func (r *Reactor) Index() int {
	return r.idx
}

// Execute enqueues a task for execution on the reactor goroutine and
// returns immediately. Tasks run strictly in submission order. A panic in
// a task is contained and logged, the loop keeps running.
func (r *Reactor) Execute(task func()) error {
	if r.closed.Load() {
		return ErrReactorClosed
	}

	r.mu.Lock()
	r.pending = append(r.pending, task)
	r.mu.Unlock()

	return r.poller.wake()
}

// OnEventloopGoroutine reports whether the caller is running on this
// reactor's event loop goroutine
func (r *Reactor) OnEventloopGoroutine() bool {
	return currentGoroutineID() == r.gid.Load()
}

// Close shuts the reactor down, closing every socket it owns. It is
// idempotent. When called from outside the loop it blocks until the loop
// has fully stopped.
func (r *Reactor) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	_ = r.poller.wake()
	if !r.OnEventloopGoroutine() {
		<-r.stopped
	}
	return nil
}

// --------------------------------------------------------------------------
// Event Loop (reactor goroutine only below this point)
// --------------------------------------------------------------------------

func (r *Reactor) loop(pin bool) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if pin {
		if err := pinToCPU(r.idx); err != nil {
			Logger.Warningf("Reactor %d: failed to pin to CPU core: %v", r.idx, err)
		}
	}

	r.gid.Store(currentGoroutineID())
	close(r.started)

	events := make([]pollEvent, maxEventsPerWait)
	for !r.closed.Load() {
		r.runTasks()

		// Re-check before blocking: a task may have closed the reactor
		if r.closed.Load() {
			break
		}

		n, err := r.poller.wait(events, -1)
		if err != nil {
			Logger.Errorf("Reactor %d: poll failed: %v", r.idx, err)
			break
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			h, ok := r.handlers[ev.fd]
			if !ok {
				continue
			}
			if ev.writable {
				r.runCallback(h.onWritable)
			}
			if ev.readable {
				r.runCallback(h.onReadable)
			}
		}
	}

	r.shutdown()
}

// runTasks drains the pending task queue in submission order
func (r *Reactor) runTasks() {
	r.mu.Lock()
	tasks := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, task := range tasks {
		r.runCallback(task)
		metricTasksProcessed.Inc()
	}
}

// runCallback executes a task or I/O callback, containing panics so a
// failing callback cannot kill the loop
func (r *Reactor) runCallback(f func()) {
	defer func() {
		if rec := recover(); rec != nil {
			metricTaskPanics.Inc()
			Logger.Errorf("Reactor %d: recovered from panic in callback: %v", r.idx, rec)
		}
	}()
	f()
}

// shutdown closes every owned handler and releases the poller
func (r *Reactor) shutdown() {
	for fd, h := range r.handlers {
		delete(r.handlers, fd)
		h.loopClose()
	}
	if err := r.poller.close(); err != nil {
		Logger.Warningf("Reactor %d: closing poller failed: %v", r.idx, err)
	}
	close(r.stopped)
	Logger.Infof("Reactor %d stopped", r.idx)
}

// attach registers an fd and its handler with the poller. Reactor
// goroutine only.
func (r *Reactor) attach(fd int, h ioHandler, writable bool) error {
	if err := r.poller.register(fd, writable); err != nil {
		return err
	}
	r.handlers[fd] = h
	return nil
}

// detach removes a previously attached fd. Reactor goroutine only.
func (r *Reactor) detach(fd int) {
	if _, ok := r.handlers[fd]; !ok {
		return
	}
	delete(r.handlers, fd)
	if err := r.poller.unregister(fd); err != nil {
		Logger.Debugf("Reactor %d: unregister fd %d: %v", r.idx, fd, err)
	}
}

// setWriteInterest toggles write readiness notification for an attached
// fd. Reactor goroutine only.
func (r *Reactor) setWriteInterest(fd int, writable bool) {
	if err := r.poller.modify(fd, writable); err != nil {
		Logger.Debugf("Reactor %d: modify fd %d: %v", r.idx, fd, err)
	}
}
