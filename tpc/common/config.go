package common

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Engine configuration struct
// --------------------------------------------------------------------------

const (
	// DefaultWriteQueueCapacity is the default number of frames an async
	// socket buffers before Write starts rejecting with false
	DefaultWriteQueueCapacity = 2 << 16

	// DefaultReceiveBufferSize is the default size of the per-socket
	// receive buffer in bytes
	DefaultReceiveBufferSize = 32 * 1024
)

// EngineConfig holds all configuration parameters for the TPC engine.
// A zero value is usable after Applied defaults via Validate.
type EngineConfig struct {
	// Reactors is the number of event loops to run. Each reactor owns one
	// goroutine locked to an OS thread. 0 means runtime.NumCPU().
	Reactors int

	// PinReactors pins each reactor thread to the CPU core matching its
	// index (Linux only, ignored elsewhere)
	PinReactors bool

	// TPCPortBase is the first listen port of the server; reactor i
	// listens on TPCPortBase+i. Only used by the server side.
	TPCPortBase int

	// WriteQueueCapacity is the bound of every async socket write queue
	WriteQueueCapacity int

	// ReceiveBufferSize is the size of the per-socket receive buffer
	ReceiveBufferSize int

	// Logging configuration
	LogLevel string
}

// Validate applies defaults and rejects invalid settings
func (c *EngineConfig) Validate() error {
	if c.Reactors == 0 {
		c.Reactors = runtime.NumCPU()
	}
	if c.Reactors < 0 {
		return fmt.Errorf("reactors must be positive, got %d", c.Reactors)
	}
	if c.WriteQueueCapacity == 0 {
		c.WriteQueueCapacity = DefaultWriteQueueCapacity
	}
	if c.WriteQueueCapacity < 0 {
		return fmt.Errorf("write queue capacity must be positive, got %d", c.WriteQueueCapacity)
	}
	if c.ReceiveBufferSize == 0 {
		c.ReceiveBufferSize = DefaultReceiveBufferSize
	}
	if c.ReceiveBufferSize < 0 {
		return fmt.Errorf("receive buffer size must be positive, got %d", c.ReceiveBufferSize)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *EngineConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("TPC Engine")
	addField("Reactors", strconv.Itoa(c.Reactors))
	addField("Pin Reactors", fmt.Sprintf("%t", c.PinReactors))
	addField("TPC Port Base", strconv.Itoa(c.TPCPortBase))

	addSection("Sockets")
	addField("Write Queue Capacity", strconv.Itoa(c.WriteQueueCapacity))
	addField("Receive Buffer Size", fmt.Sprintf("%d bytes", c.ReceiveBufferSize))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters for a TPC client
type ClientConfig struct {
	// Endpoint is the address of the logical connection (host:port)
	Endpoint string

	// TimeoutSecond is the dial timeout for the logical connection and
	// for every TPC channel connect attempt
	TimeoutSecond int

	// ConnectWorkers is the size of the worker pool running the channel
	// connect attempts
	ConnectWorkers int

	// Logging configuration
	LogLevel string
}

// Validate applies defaults and rejects invalid settings
func (c *ClientConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}
	if c.TimeoutSecond == 0 {
		c.TimeoutSecond = 10
	}
	if c.TimeoutSecond < 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.TimeoutSecond)
	}
	if c.ConnectWorkers == 0 {
		c.ConnectWorkers = 4
	}
	if c.ConnectWorkers < 0 {
		return fmt.Errorf("connect workers must be positive, got %d", c.ConnectWorkers)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Connect Workers", strconv.Itoa(c.ConnectWorkers))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
