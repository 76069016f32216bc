package client

import (
	"net"
	"strconv"
	"time"

	"github.com/tpcware/memgrid/tpc/common"
	"github.com/tpcware/memgrid/tpc/engine"
)

// defaultDialTimeout bounds one channel connection attempt
const defaultDialTimeout = 10 * time.Second

// NewChannelCreator returns the production ChannelCreator: it dials the
// target with a non-blocking socket, spreads the resulting channels over
// the engine's reactors in round-robin order, and installs the given read
// handler factory on each built socket.
//
// The factory is invoked once per channel so each channel can carry its
// own decoding state.
func NewChannelCreator(e *engine.Engine, cfg common.ClientConfig, handlerFor func(remote string) engine.ReadHandler) ChannelCreator {
	timeout := defaultDialTimeout
	if cfg.TimeoutSecond > 0 {
		timeout = time.Duration(cfg.TimeoutSecond) * time.Second
	}

	return func(host string, port int) (engine.Channel, error) {
		address := net.JoinHostPort(host, strconv.Itoa(port))

		fd, err := engine.Dial(address, timeout)
		if err != nil {
			return nil, err
		}

		reactor := e.NextReactor()
		builder := engine.NewAsyncSocketBuilder(reactor, fd)
		if err := builder.SetWriteQueueCapacity(e.Config().WriteQueueCapacity); err != nil {
			_ = engine.CloseFd(fd)
			return nil, err
		}
		if err := builder.SetReceiveBufferSize(e.Config().ReceiveBufferSize); err != nil {
			_ = engine.CloseFd(fd)
			return nil, err
		}

		if err := builder.SetReadHandler(handlerFor(address)); err != nil {
			_ = engine.CloseFd(fd)
			return nil, err
		}

		// Build owns the fd and closes it itself on failure
		socket, err := builder.Build()
		if err != nil {
			return nil, err
		}
		return socket, nil
	}
}
