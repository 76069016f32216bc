package engine

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// ReadHandler is invoked on the reactor goroutine with the bytes received
// on a socket. When the socket was built with a direct receive buffer the
// slice is reused between calls and must not be retained.
type ReadHandler func(p []byte)

// CloseHandler is invoked on the reactor goroutine exactly once, after the
// socket has been torn down, regardless of whether the close was requested
// locally, caused by an I/O error or triggered by the peer disconnecting
type CloseHandler func()

// Channel is the surface of an established TPC channel that the connection
// layer depends on. AsyncSocket is the engine's implementation; tests may
// substitute their own.
type Channel interface {
	// Write enqueues a frame for sending and reports whether the bounded
	// write queue accepted it. False signals overflow or a closed channel
	// and must be treated as a hard failure by handshake writers.
	Write(p []byte) bool

	// Close releases the channel. It is idempotent.
	Close() error

	// RemoteAddr returns the remote endpoint of the channel
	RemoteAddr() net.Addr
}

// AsyncSocket wraps one OS-level non-blocking socket owned by a reactor.
// All mutable I/O state is touched exclusively by the owning reactor's
// goroutine; the only cross-goroutine entry points are Write (through the
// locked queue) and Close (through a task hand-off).
type AsyncSocket struct {
	fd      int
	reactor *Reactor

	readHandler           ReadHandler
	closeHandler          CloseHandler
	regularSchedule       bool
	writeThrough          bool
	receiveBufferIsDirect bool

	remote net.Addr
	local  net.Addr

	// write queue, shared with writer goroutines
	writeMu       sync.Mutex
	writeQ        *queue.Queue
	writeCapacity int

	// flushScheduled dedupes flush tasks submitted to the reactor
	flushScheduled atomic.Bool

	closed atomic.Bool

	// reactor-goroutine-only state
	recvBuf       []byte
	partial       []byte
	writeInterest bool
	loopClosed    bool
}

// --------------------------------------------------------------------------
// Public API (any goroutine)
// --------------------------------------------------------------------------

// Write enqueues p on the bounded write queue and returns whether the
// queue accepted it. The actual send happens on the reactor goroutine,
// except in write-through mode when the caller already is the reactor
// goroutine.
func (s *AsyncSocket) Write(p []byte) bool {
	if s.closed.Load() {
		return false
	}

	s.writeMu.Lock()
	if s.writeQ.Length() >= s.writeCapacity {
		s.writeMu.Unlock()
		metricWritesRejected.Inc()
		return false
	}
	s.writeQ.Add(p)
	s.writeMu.Unlock()

	if s.writeThrough && s.reactor.OnEventloopGoroutine() {
		s.flush()
		return true
	}

	if s.flushScheduled.CompareAndSwap(false, true) {
		var task func()
		if s.regularSchedule {
			task = s.flushTask
		} else {
			// on-demand mode defers the send to write readiness
			task = s.requestWriteInterestTask
		}
		if err := s.reactor.Execute(task); err != nil {
			return false
		}
	}
	return true
}

// Close closes the socket. It is idempotent and safe from any goroutine;
// the actual teardown runs on the reactor goroutine.
func (s *AsyncSocket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	// If the reactor is already gone its shutdown path has closed (or
	// will close) the fd, nothing left to do here.
	_ = s.reactor.Execute(func() { s.closeInLoop() })
	return nil
}

// RemoteAddr returns the remote endpoint of the socket
func (s *AsyncSocket) RemoteAddr() net.Addr {
	return s.remote
}

// LocalAddr returns the local endpoint of the socket
func (s *AsyncSocket) LocalAddr() net.Addr {
	return s.local
}

// Reactor returns the owning reactor
func (s *AsyncSocket) Reactor() *Reactor {
	return s.reactor
}

// --------------------------------------------------------------------------
// Reactor callbacks (reactor goroutine only below this point)
// --------------------------------------------------------------------------

func (s *AsyncSocket) onReadable() {
	if s.loopClosed {
		return
	}

	buf := s.recvBuf
	if !s.receiveBufferIsDirect {
		buf = make([]byte, len(s.recvBuf))
	}

	n, err := readFd(s.fd, buf)
	if err == errWouldBlock {
		return
	}
	if err != nil {
		Logger.Debugf("Socket %s: read failed: %v", s.describe(), err)
		s.closeInLoop()
		return
	}
	if n == 0 {
		// peer closed the connection
		s.closeInLoop()
		return
	}

	metricBytesRead.Add(n)
	s.readHandler(buf[:n])
}

func (s *AsyncSocket) onWritable() {
	if s.loopClosed {
		return
	}
	s.flush()
}

// flushTask is the scheduled form of flush
func (s *AsyncSocket) flushTask() {
	s.flushScheduled.Store(false)
	s.flush()
}

// requestWriteInterestTask arms write readiness so the pending frames get
// flushed by onWritable
func (s *AsyncSocket) requestWriteInterestTask() {
	s.flushScheduled.Store(false)
	if s.loopClosed || s.writeInterest {
		return
	}
	s.writeInterest = true
	s.reactor.setWriteInterest(s.fd, true)
}

// flush drains the write queue into the socket until the kernel pushes
// back or the queue is empty
func (s *AsyncSocket) flush() {
	if s.loopClosed {
		return
	}

	for {
		if len(s.partial) == 0 {
			s.writeMu.Lock()
			if s.writeQ.Length() == 0 {
				s.writeMu.Unlock()
				break
			}
			s.partial = s.writeQ.Remove().([]byte)
			s.writeMu.Unlock()
		}

		n, err := writeFd(s.fd, s.partial)
		if n > 0 {
			metricBytesWritten.Add(n)
			s.partial = s.partial[n:]
		}
		if err == errWouldBlock {
			if !s.writeInterest {
				s.writeInterest = true
				s.reactor.setWriteInterest(s.fd, true)
			}
			return
		}
		if err != nil {
			Logger.Debugf("Socket %s: write failed: %v", s.describe(), err)
			s.closeInLoop()
			return
		}
	}

	if s.writeInterest {
		s.writeInterest = false
		s.reactor.setWriteInterest(s.fd, false)
	}
}

// closeInLoop performs the actual teardown. Safe to call multiple times.
func (s *AsyncSocket) closeInLoop() {
	if s.loopClosed {
		return
	}
	s.loopClosed = true
	s.closed.Store(true)

	s.reactor.detach(s.fd)
	if err := closeFd(s.fd); err != nil {
		Logger.Debugf("Socket %s: close failed: %v", s.describe(), err)
	}
	metricSocketsClosed.Inc()
	if s.closeHandler != nil {
		s.closeHandler()
	}
}

// loopClose implements ioHandler for the reactor shutdown path
func (s *AsyncSocket) loopClose() {
	s.closed.Store(true)
	if s.loopClosed {
		return
	}
	s.loopClosed = true
	if err := closeFd(s.fd); err != nil {
		Logger.Debugf("Socket %s: close failed: %v", s.describe(), err)
	}
	metricSocketsClosed.Inc()
	if s.closeHandler != nil {
		s.closeHandler()
	}
}

func (s *AsyncSocket) describe() string {
	if s.remote != nil {
		return s.remote.String()
	}
	return "unconnected"
}
