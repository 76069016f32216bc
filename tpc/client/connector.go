package client

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tpcware/memgrid/tpc/common"
	"github.com/tpcware/memgrid/tpc/engine"
	"github.com/tpcware/memgrid/tpc/protocol"
)

// ChannelCreator opens a connected channel to host:port for the given
// connection. It runs on a worker pool goroutine and may block.
type ChannelCreator func(host string, port int) (engine.Channel, error)

// TpcChannelConnector establishes channels to the TPC ports of a
// connection in a non-blocking way.
//
// Upon failures, it closes all channels established so far, along with the
// connection falling back to standard routing.
type TpcChannelConnector struct {
	clientID uuid.UUID
	conn     IConnection
	tpcPorts []int
	executor common.IExecutor
	creator  ChannelCreator

	// channels and the failed transition are guarded by mu; remaining is
	// deliberately lock-free so the last-attempt detection never happens
	// under the lock
	mu        sync.Mutex
	channels  []engine.Channel
	remaining atomic.Int32
	failed    atomic.Bool
}

// NewTpcChannelConnector creates a connector for one upgrade attempt of
// the given connection
func NewTpcChannelConnector(
	clientID uuid.UUID,
	conn IConnection,
	tpcPorts []int,
	executor common.IExecutor,
	creator ChannelCreator,
) *TpcChannelConnector {
	t := &TpcChannelConnector{
		clientID: clientID,
		conn:     conn,
		tpcPorts: tpcPorts,
		executor: executor,
		creator:  creator,
		channels: make([]engine.Channel, len(tpcPorts)),
	}
	t.remaining.Store(int32(len(tpcPorts)))
	return t
}

// Initiate submits the connection attempts and returns immediately. The
// attempts run concurrently and independently; no ordering between them is
// guaranteed or required.
func (t *TpcChannelConnector) Initiate() {
	Logger.Infof("Initiating connection attempts to TPC channels running on ports %v for %s",
		t.tpcPorts, t.conn.RemoteAddress())

	host, _, err := net.SplitHostPort(t.conn.RemoteAddress())
	if err != nil {
		Logger.Warningf("Cannot determine TPC host from %s: %v", t.conn.RemoteAddress(), err)
		t.onFailure(nil)
		return
	}

	for i, port := range t.tpcPorts {
		index, port := i, port
		if err := t.executor.Submit(func() { t.connect(host, port, index) }); err != nil {
			Logger.Warningf("Cannot submit connection attempt to TPC channel on port %d for %s: %v",
				port, t.conn.RemoteAddress(), err)
			t.onFailure(nil)
			return
		}
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// connect runs one channel attempt on a worker goroutine
func (t *TpcChannelConnector) connect(host string, port int, index int) {
	if t.connectionFailed() {
		// No need to try to connect if one of the channels or the
		// connection itself is closed/failed.
		Logger.Warningf("The connection to TPC channel on port %d for %s will not be made as either "+
			"the connection or one of the TPC channel connections has failed", port, t.conn.RemoteAddress())
		return
	}

	Logger.Infof("Trying to connect to TPC channel on port %d for %s", port, t.conn.RemoteAddress())

	channel, err := t.creator(host, port)
	if err == nil {
		err = t.writeHandshake(channel)
	}
	if err != nil {
		Logger.Warningf("Exception during the connection attempt to TPC channel on port %d for %s: %v",
			port, t.conn.RemoteAddress(), err)
		t.onFailure(channel)
		return
	}

	t.onSuccessfulChannelConnection(channel, index)
}

// writeHandshake sends the identity frame. The client UUID must be the
// first thing on the wire so the server can bind this new socket to the
// logical connection.
func (t *TpcChannelConnector) writeHandshake(channel engine.Channel) error {
	if !channel.Write(protocol.EncodeHandshake(t.clientID)) {
		return fmt.Errorf("cannot write handshake bytes to the TPC channel %s for %s",
			channel.RemoteAddr(), t.conn.RemoteAddress())
	}
	return nil
}

func (t *TpcChannelConnector) onSuccessfulChannelConnection(channel engine.Channel, index int) {
	t.mu.Lock()
	if t.connectionFailed() {
		// The connection or one of the other channels failed while this
		// one was being established. Close this one as well to not leak
		// any channels.
		Logger.Warningf("Closing the TPC channel on port %d for %s as one of the connections has failed",
			t.tpcPorts[index], t.conn.RemoteAddress())
		t.onFailureLocked(channel)
		t.mu.Unlock()
		return
	}
	t.channels[index] = channel
	t.mu.Unlock()

	Logger.Infof("Successfully connected to TPC channel %s for %s",
		channel.RemoteAddr(), t.conn.RemoteAddress())

	if t.remaining.Add(-1) != 0 {
		return
	}

	// This is the last attempt; install the completed array.
	t.conn.SetTpcChannels(t.snapshotChannels())

	// If the connection is alive at this point but closes afterward, the
	// channels are cleaned up by the connection's close path, because the
	// array has already been installed.
	//
	// If the connection is not alive at this point, the channels might or
	// might not be closed, depending on the order of the close and
	// SetTpcChannels calls. Close them here just in case; closing an
	// already closed channel is a no-op.
	if !t.conn.IsAlive() {
		Logger.Warningf("Closing all TPC channel connections for %s as the connection is closed",
			t.conn.RemoteAddress())
		t.mu.Lock()
		t.closeAllLocked()
		t.mu.Unlock()
	} else {
		Logger.Infof("All TPC channel connections are established for %s", t.conn.RemoteAddress())
	}
}

// onFailure drives the exactly-once teardown of the whole upgrade
func (t *TpcChannelConnector) onFailure(channel engine.Channel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFailureLocked(channel)
}

func (t *TpcChannelConnector) onFailureLocked(channel engine.Channel) {
	t.closeChannel(channel)
	if t.failed.Load() {
		return
	}

	t.failed.Store(true)
	t.closeAllLocked()
	Logger.Warningf("TPC channel establishments for %s have failed. The client will not use TPC channels "+
		"to route partition specific invocations and falls back to the smart routing mode for this "+
		"connection. Check the firewall settings to make sure the TPC ports are accessible from the client.",
		t.conn.RemoteAddress())
}

// connectionFailed reports whether this upgrade is already doomed: a
// channel attempt failed, or the parent connection is gone
func (t *TpcChannelConnector) connectionFailed() bool {
	return t.failed.Load() || !t.conn.IsAlive()
}

func (t *TpcChannelConnector) closeChannel(channel engine.Channel) {
	if channel != nil {
		_ = channel.Close()
	}
}

func (t *TpcChannelConnector) closeAllLocked() {
	for _, channel := range t.channels {
		t.closeChannel(channel)
	}
}

func (t *TpcChannelConnector) snapshotChannels() []engine.Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]engine.Channel, len(t.channels))
	copy(out, t.channels)
	return out
}
