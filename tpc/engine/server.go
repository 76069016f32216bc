package engine

import (
	"net"
	"sync/atomic"
)

// defaultBacklog is the listen backlog of server sockets
const defaultBacklog = 512

// AcceptRequest carries a pre-accepted raw connection to an
// AsyncSocketBuilder
type AcceptRequest struct {
	fd     int
	remote net.Addr
}

// RemoteAddr returns the remote endpoint of the accepted connection
func (a *AcceptRequest) RemoteAddr() net.Addr {
	return a.remote
}

// Close releases an accepted connection the handler decided not to build
// a socket from. Once Build has been called the fd belongs to the builder.
func (a *AcceptRequest) Close() error {
	return closeFd(a.fd)
}

// AcceptHandler is invoked on the reactor goroutine for every accepted
// connection. The handler typically builds an AsyncSocket from the request
// via NewAcceptedSocketBuilder; since it already runs on the reactor
// goroutine, Build takes the synchronous path.
type AcceptHandler func(req *AcceptRequest)

// AsyncServerSocket is a non-blocking listen socket owned by a reactor
type AsyncServerSocket struct {
	fd      int
	port    int
	reactor *Reactor
	handler AcceptHandler

	closed atomic.Bool

	// reactor-goroutine-only state
	loopClosed bool
}

// NewAsyncServerSocket opens a listen socket on address, attaches it to
// the reactor and starts accepting. address may use port 0; the bound
// port is available via Port.
func NewAsyncServerSocket(r *Reactor, address string, handler AcceptHandler) (*AsyncServerSocket, error) {
	fd, port, err := listenTCP(address, defaultBacklog)
	if err != nil {
		return nil, err
	}

	ss := &AsyncServerSocket{
		fd:      fd,
		port:    port,
		reactor: r,
		handler: handler,
	}

	if r.OnEventloopGoroutine() {
		if err := r.attach(fd, ss, false); err != nil {
			_ = closeFd(fd)
			return nil, err
		}
		return ss, nil
	}

	errCh := make(chan error, 1)
	if err := r.Execute(func() { errCh <- r.attach(fd, ss, false) }); err != nil {
		_ = closeFd(fd)
		return nil, err
	}

	select {
	case err := <-errCh:
		if err != nil {
			_ = closeFd(fd)
			return nil, err
		}
		return ss, nil
	case <-r.stopped:
		_ = closeFd(fd)
		return nil, ErrReactorClosed
	}
}

// Port returns the bound listen port
func (ss *AsyncServerSocket) Port() int {
	return ss.port
}

// Close stops accepting and releases the listen socket. Idempotent, safe
// from any goroutine.
func (ss *AsyncServerSocket) Close() error {
	if !ss.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = ss.reactor.Execute(func() { ss.closeInLoop() })
	return nil
}

// --------------------------------------------------------------------------
// Reactor callbacks (reactor goroutine only below this point)
// --------------------------------------------------------------------------

func (ss *AsyncServerSocket) onReadable() {
	if ss.loopClosed {
		return
	}

	for {
		fd, remote, err := acceptConn(ss.fd)
		if err == errWouldBlock {
			return
		}
		if err != nil {
			Logger.Warningf("Server socket on port %d: accept failed: %v", ss.port, err)
			return
		}

		metricSocketsAccepted.Inc()
		ss.handler(&AcceptRequest{fd: fd, remote: remote})
	}
}

func (ss *AsyncServerSocket) onWritable() {}

func (ss *AsyncServerSocket) closeInLoop() {
	if ss.loopClosed {
		return
	}
	ss.loopClosed = true
	ss.closed.Store(true)

	ss.reactor.detach(ss.fd)
	if err := closeFd(ss.fd); err != nil {
		Logger.Debugf("Server socket on port %d: close failed: %v", ss.port, err)
	}
}

// loopClose implements ioHandler for the reactor shutdown path
func (ss *AsyncServerSocket) loopClose() {
	ss.closed.Store(true)
	if ss.loopClosed {
		return
	}
	ss.loopClosed = true
	if err := closeFd(ss.fd); err != nil {
		Logger.Debugf("Server socket on port %d: close failed: %v", ss.port, err)
	}
}
