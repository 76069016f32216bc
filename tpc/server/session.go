package server

import (
	"github.com/google/uuid"
	"github.com/tpcware/memgrid/tpc/engine"
	"github.com/tpcware/memgrid/tpc/protocol"
)

// session is the per-channel receive state. All fields are touched only by
// the owning reactor's goroutine.
type session struct {
	server     *Server
	socket     *engine.AsyncSocket
	decoder    protocol.Decoder
	clientID   uuid.UUID
	handshaken bool
}

// onRead is the channel's ReadHandler. The first complete frame must be
// the identity handshake; everything after it goes to the server handler.
func (se *session) onRead(p []byte) {
	se.decoder.Feed(p)

	for {
		frame, ok, err := se.decoder.Next()
		if err != nil {
			Logger.Warningf("Closing channel %s: %v", se.socket.RemoteAddr(), err)
			_ = se.socket.Close()
			return
		}
		if !ok {
			return
		}

		if !se.handshaken {
			se.handshake(frame)
			if !se.handshaken {
				return
			}
			continue
		}

		metricFrames.Inc()
		se.server.handler(se.clientID, se.socket, frame.Payload)
	}
}

// onClose is the channel's CloseHandler. It runs on the reactor goroutine
// after the socket is torn down, whichever side initiated the close.
func (se *session) onClose() {
	if !se.handshaken {
		return
	}
	se.server.unregisterChannel(se.clientID, se.socket)
}

// handshake validates the identity frame and registers the channel. A
// malformed handshake closes the channel.
func (se *session) handshake(frame protocol.Frame) {
	clientID, err := protocol.DecodeHandshake(frame.Payload)
	if err != nil || !frame.Unfragmented() {
		metricBadHandshakes.Inc()
		Logger.Warningf("Closing channel %s: malformed handshake: %v", se.socket.RemoteAddr(), err)
		_ = se.socket.Close()
		return
	}

	se.clientID = clientID
	se.handshaken = true
	se.server.register(clientID, se.socket)
}
