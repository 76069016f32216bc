package server

import (
	"fmt"
	"net"
	"strconv"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tpcware/memgrid/tpc/common"
	"github.com/tpcware/memgrid/tpc/engine"
)

var Logger = logger.GetLogger("server")

var (
	metricHandshakes    = metrics.NewCounter("memgrid_server_handshakes_total")
	metricBadHandshakes = metrics.NewCounter("memgrid_server_bad_handshakes_total")
	metricFrames        = metrics.NewCounter("memgrid_server_frames_total")
)

// Handler is invoked on a reactor goroutine for every frame received after
// the handshake. The channel is the one the frame arrived on, so a handler
// can reply without any routing.
type Handler func(clientID uuid.UUID, channel engine.Channel, payload []byte)

// EchoHandler writes every payload back on the channel it arrived on
func EchoHandler(_ uuid.UUID, channel engine.Channel, payload []byte) {
	out := make([]byte, len(payload))
	copy(out, payload)
	channel.Write(out)
}

// Server accepts TPC channels, one listen socket per reactor
type Server struct {
	engine    *engine.Engine
	handler   Handler
	listeners []*engine.AsyncServerSocket

	// registry maps a client UUID to the channels it has established
	registry *xsync.MapOf[uuid.UUID, []engine.Channel]
}

// NewServer opens one listen socket per reactor and starts accepting. With
// cfg.TPCPortBase > 0 reactor i listens on TPCPortBase+i; with 0 every
// listener picks an ephemeral port. Bound ports are available via Ports in
// reactor order, which is also the order clients receive them in.
func NewServer(e *engine.Engine, cfg common.EngineConfig, handler Handler) (*Server, error) {
	if handler == nil {
		handler = EchoHandler
	}

	s := &Server{
		engine:   e,
		handler:  handler,
		registry: xsync.NewMapOf[uuid.UUID, []engine.Channel](),
	}

	for i := 0; i < e.ReactorCount(); i++ {
		port := 0
		if cfg.TPCPortBase > 0 {
			port = cfg.TPCPortBase + i
		}
		reactor := e.Reactor(i)

		listener, err := engine.NewAsyncServerSocket(
			reactor,
			net.JoinHostPort("", strconv.Itoa(port)),
			s.acceptHandler(reactor),
		)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("server: cannot listen for reactor %d: %w", i, err)
		}
		s.listeners = append(s.listeners, listener)
	}

	Logger.Infof("TPC server accepting on ports %v", s.Ports())
	return s, nil
}

// Ports returns the bound listen ports in reactor order. This is the list
// a server advertises to clients for channel establishment.
func (s *Server) Ports() []int {
	ports := make([]int, len(s.listeners))
	for i, l := range s.listeners {
		ports[i] = l.Port()
	}
	return ports
}

// Channels returns the channels currently registered for a client
func (s *Server) Channels(clientID uuid.UUID) []engine.Channel {
	channels, _ := s.registry.Load(clientID)
	return channels
}

// ClientCount returns the number of clients with registered channels
func (s *Server) ClientCount() int {
	return s.registry.Size()
}

// Unregister drops and closes all channels of a client. Called when the
// client's logical connection goes away.
func (s *Server) Unregister(clientID uuid.UUID) {
	channels, ok := s.registry.LoadAndDelete(clientID)
	if !ok {
		return
	}
	for _, ch := range channels {
		_ = ch.Close()
	}
	Logger.Infof("Unregistered %d channels of client %s", len(channels), clientID)
}

// Close stops accepting and drops all registered channels. The channels
// themselves are owned by the reactors and die with the engine.
func (s *Server) Close() error {
	for _, l := range s.listeners {
		_ = l.Close()
	}
	s.registry.Range(func(clientID uuid.UUID, _ []engine.Channel) bool {
		s.Unregister(clientID)
		return true
	})
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// acceptHandler builds an AsyncSocket around every accepted connection and
// wires a fresh session into its read path. It runs on the reactor
// goroutine, so Build takes the synchronous path.
func (s *Server) acceptHandler(reactor *engine.Reactor) engine.AcceptHandler {
	cfg := s.engine.Config()

	return func(req *engine.AcceptRequest) {
		session := &session{server: s}

		builder := engine.NewAcceptedSocketBuilder(reactor, req)
		if err := builder.SetWriteQueueCapacity(cfg.WriteQueueCapacity); err != nil {
			Logger.Errorf("Cannot configure accepted socket from %s: %v", req.RemoteAddr(), err)
			_ = req.Close()
			return
		}
		if err := builder.SetCloseHandler(session.onClose); err != nil {
			Logger.Errorf("Cannot configure accepted socket from %s: %v", req.RemoteAddr(), err)
			_ = req.Close()
			return
		}
		if err := builder.SetReceiveBufferSize(cfg.ReceiveBufferSize); err != nil {
			Logger.Errorf("Cannot configure accepted socket from %s: %v", req.RemoteAddr(), err)
			_ = req.Close()
			return
		}
		if err := builder.SetReadHandler(session.onRead); err != nil {
			Logger.Errorf("Cannot configure accepted socket from %s: %v", req.RemoteAddr(), err)
			_ = req.Close()
			return
		}

		// Build owns the fd and closes it itself on failure
		socket, err := builder.Build()
		if err != nil {
			Logger.Warningf("Cannot build accepted socket from %s: %v", req.RemoteAddr(), err)
			return
		}

		// reads are dispatched by the loop after this callback returns, so
		// the session sees its socket before the first byte arrives
		session.socket = socket
	}
}

// register binds a handshaken channel to its client. The channel stays
// registered until it closes (see unregisterChannel) or the client is
// dropped via Unregister.
func (s *Server) register(clientID uuid.UUID, channel engine.Channel) {
	s.registry.Compute(clientID, func(channels []engine.Channel, _ bool) ([]engine.Channel, bool) {
		return append(channels, channel), false
	})
	metricHandshakes.Inc()
	Logger.Infof("Registered channel %s for client %s", channel.RemoteAddr(), clientID)
}

// unregisterChannel removes one closed channel from its client's entry,
// dropping the entry when it was the client's last channel. Invoked from
// the socket's close handler on the reactor goroutine, so peer disconnects
// prune the registry without waiting for Unregister.
func (s *Server) unregisterChannel(clientID uuid.UUID, channel engine.Channel) {
	s.registry.Compute(clientID, func(channels []engine.Channel, loaded bool) ([]engine.Channel, bool) {
		if !loaded {
			return nil, true
		}
		kept := make([]engine.Channel, 0, len(channels))
		for _, ch := range channels {
			if ch != channel {
				kept = append(kept, ch)
			}
		}
		return kept, len(kept) == 0
	})
	Logger.Infof("Channel %s of client %s closed", channel.RemoteAddr(), clientID)
}
