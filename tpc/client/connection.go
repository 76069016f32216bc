package client

import (
	"math"
	"net"
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/tpcware/memgrid/tpc/engine"
)

var Logger = logger.GetLogger("client")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IConnection is the surface of the logical connection the channel
// connector depends on
type IConnection interface {
	// RemoteAddress returns the server endpoint as host:port
	RemoteAddress() string

	// IsAlive reports whether the connection is still open
	IsAlive() bool

	// SetTpcChannels installs the completed channel array. It is called
	// at most once per successful upgrade.
	SetTpcChannels(channels []engine.Channel)
}

// -----------------------------------------------------------
// Connection
// -----------------------------------------------------------

// Connection is the logical client-server connection that TPC channels
// augment. Its close path independently closes any installed channels, so
// it and the connector can race on teardown without coordination beyond
// the channels' idempotent Close.
type Connection struct {
	conn  net.Conn
	alive atomic.Bool

	mu          sync.Mutex
	tpcChannels []engine.Channel
}

// NewConnection wraps an established logical connection
func NewConnection(conn net.Conn) *Connection {
	c := &Connection{conn: conn}
	c.alive.Store(true)
	return c
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IConnection)
// --------------------------------------------------------------------------

func (c *Connection) RemoteAddress() string {
	return c.conn.RemoteAddr().String()
}

func (c *Connection) IsAlive() bool {
	return c.alive.Load()
}

func (c *Connection) SetTpcChannels(channels []engine.Channel) {
	c.mu.Lock()
	c.tpcChannels = channels
	c.mu.Unlock()
}

// --------------------------------------------------------------------------
// Routing
// --------------------------------------------------------------------------

// TpcChannels returns the installed channel array, or nil when the
// connection runs in fallback routing mode
func (c *Connection) TpcChannels() []engine.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tpcChannels
}

// TpcChannel selects the per-core channel for a partition hash. It
// returns nil when no channels are installed; the caller then routes
// through the logical connection (smart routing fallback).
func (c *Connection) TpcChannel(partitionHash int) engine.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.tpcChannels) == 0 {
		return nil
	}
	if partitionHash < 0 {
		// negating math.MinInt overflows back to itself, so mask the sign
		// bit instead of taking the absolute value
		partitionHash &= math.MaxInt
	}
	return c.tpcChannels[partitionHash%len(c.tpcChannels)]
}

// Conn exposes the underlying logical connection for fallback traffic
func (c *Connection) Conn() net.Conn {
	return c.conn
}

// Close closes the logical connection and every installed TPC channel.
// It is idempotent.
func (c *Connection) Close() error {
	if !c.alive.CompareAndSwap(true, false) {
		return nil
	}

	err := c.conn.Close()

	c.mu.Lock()
	channels := c.tpcChannels
	c.mu.Unlock()

	for _, ch := range channels {
		if ch != nil {
			_ = ch.Close()
		}
	}

	Logger.Infof("Closed connection to %s", c.RemoteAddress())
	return err
}
