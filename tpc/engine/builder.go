package engine

import (
	"fmt"

	"github.com/eapache/queue"
	"github.com/tpcware/memgrid/tpc/common"
)

// AsyncSocketBuilder is a single-use factory for an AsyncSocket. It
// configures the socket and guarantees that construction happens on the
// owning reactor's goroutine, no matter which goroutine calls Build: the
// cheap path constructs in place when the caller already is the reactor
// goroutine, otherwise Build submits a construction task and blocks until
// the reactor has processed it.
//
// All mutators and Build fail after Build has been called once.
type AsyncSocketBuilder struct {
	reactor  *Reactor
	fd       int
	accepted bool

	readHandler           ReadHandler
	closeHandler          CloseHandler
	writeQueueCapacity    int
	receiveBufferSize     int
	receiveBufferIsDirect bool
	regularSchedule       bool
	writeThrough          bool

	built bool
}

// NewAsyncSocketBuilder creates a builder for a client-side socket around
// a freshly opened, connected fd (see Dial)
func NewAsyncSocketBuilder(r *Reactor, fd int) *AsyncSocketBuilder {
	return newBuilder(r, fd, false)
}

// NewAcceptedSocketBuilder creates a builder for a server-side socket
// around a pre-accepted connection
func NewAcceptedSocketBuilder(r *Reactor, req *AcceptRequest) *AsyncSocketBuilder {
	return newBuilder(r, req.fd, true)
}

func newBuilder(r *Reactor, fd int, accepted bool) *AsyncSocketBuilder {
	return &AsyncSocketBuilder{
		reactor:               r,
		fd:                    fd,
		accepted:              accepted,
		writeQueueCapacity:    common.DefaultWriteQueueCapacity,
		receiveBufferSize:     common.DefaultReceiveBufferSize,
		receiveBufferIsDirect: true,
		regularSchedule:       true,
	}
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// SetReadHandler sets the callback invoked with received bytes. It is
// mandatory; Build fails without it.
func (b *AsyncSocketBuilder) SetReadHandler(h ReadHandler) error {
	if b.built {
		return ErrAlreadyBuilt
	}
	if h == nil {
		return fmt.Errorf("engine: read handler must not be nil")
	}
	b.readHandler = h
	return nil
}

// SetCloseHandler sets an optional callback invoked on the reactor
// goroutine once the socket has been torn down
func (b *AsyncSocketBuilder) SetCloseHandler(h CloseHandler) error {
	if b.built {
		return ErrAlreadyBuilt
	}
	b.closeHandler = h
	return nil
}

// SetWriteQueueCapacity bounds the write queue in frames
func (b *AsyncSocketBuilder) SetWriteQueueCapacity(capacity int) error {
	if b.built {
		return ErrAlreadyBuilt
	}
	if capacity <= 0 {
		return fmt.Errorf("engine: write queue capacity must be positive, got %d", capacity)
	}
	b.writeQueueCapacity = capacity
	return nil
}

// SetReceiveBufferSize sets the size of the receive buffer in bytes
func (b *AsyncSocketBuilder) SetReceiveBufferSize(size int) error {
	if b.built {
		return ErrAlreadyBuilt
	}
	if size <= 0 {
		return fmt.Errorf("engine: receive buffer size must be positive, got %d", size)
	}
	b.receiveBufferSize = size
	return nil
}

// SetReceiveBufferIsDirect selects between a reusable receive buffer
// (direct, no per-read allocation, handler must not retain the slice) and
// a fresh slice per read
func (b *AsyncSocketBuilder) SetReceiveBufferIsDirect(direct bool) error {
	if b.built {
		return ErrAlreadyBuilt
	}
	b.receiveBufferIsDirect = direct
	return nil
}

// SetRegularSchedule selects between scheduling a flush task on every
// write (true) and on-demand flushing driven by write readiness (false)
func (b *AsyncSocketBuilder) SetRegularSchedule(regular bool) error {
	if b.built {
		return ErrAlreadyBuilt
	}
	b.regularSchedule = regular
	return nil
}

// SetWriteThrough lets a writer already running on the reactor goroutine
// flush directly instead of scheduling
func (b *AsyncSocketBuilder) SetWriteThrough(writeThrough bool) error {
	if b.built {
		return ErrAlreadyBuilt
	}
	b.writeThrough = writeThrough
	return nil
}

// --------------------------------------------------------------------------
// Build
// --------------------------------------------------------------------------

type buildResult struct {
	socket *AsyncSocket
	err    error
}

// Build constructs the socket on the owning reactor's goroutine and
// returns it live. Build takes ownership of the fd: on any failure other
// than ErrAlreadyBuilt the fd is closed. Calling Build twice fails with
// ErrAlreadyBuilt; the socket from the first call is unaffected.
func (b *AsyncSocketBuilder) Build() (*AsyncSocket, error) {
	if b.built {
		return nil, ErrAlreadyBuilt
	}
	b.built = true

	if b.readHandler == nil {
		_ = closeFd(b.fd)
		return nil, fmt.Errorf("engine: read handler is not configured")
	}

	if b.reactor.OnEventloopGoroutine() {
		return b.construct()
	}

	resultCh := make(chan buildResult, 1)
	err := b.reactor.Execute(func() {
		socket, err := b.construct()
		resultCh <- buildResult{socket: socket, err: err}
	})
	if err != nil {
		_ = closeFd(b.fd)
		return nil, err
	}

	select {
	case res := <-resultCh:
		return res.socket, res.err
	case <-b.reactor.stopped:
		// the loop may have finished the task just before stopping
		select {
		case res := <-resultCh:
			return res.socket, res.err
		default:
			// the construction task was dropped without running, so the
			// fd was never attached and the shutdown path will not close it
			_ = closeFd(b.fd)
			return nil, ErrReactorClosed
		}
	}
}

// construct runs on the reactor goroutine and is the only place socket
// fields are initialized, eliminating initialization races
func (b *AsyncSocketBuilder) construct() (*AsyncSocket, error) {
	s := &AsyncSocket{
		fd:                    b.fd,
		reactor:               b.reactor,
		readHandler:           b.readHandler,
		closeHandler:          b.closeHandler,
		regularSchedule:       b.regularSchedule,
		writeThrough:          b.writeThrough,
		receiveBufferIsDirect: b.receiveBufferIsDirect,
		writeQ:                queue.New(),
		writeCapacity:         b.writeQueueCapacity,
		recvBuf:               make([]byte, b.receiveBufferSize),
		remote:                peerAddr(b.fd),
		local:                 localAddr(b.fd),
	}

	if err := b.reactor.attach(b.fd, s, false); err != nil {
		_ = closeFd(b.fd)
		return nil, err
	}

	metricSocketsOpened.Inc()
	return s, nil
}
