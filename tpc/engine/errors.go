package engine

import "errors"

var (
	// ErrReactorClosed is returned when work is submitted to a reactor
	// that has been shut down
	ErrReactorClosed = errors.New("engine: reactor is closed")

	// ErrAlreadyBuilt is returned when a builder is used after Build
	ErrAlreadyBuilt = errors.New("engine: builder has already been built")

	// ErrSocketClosed is returned by operations on a closed socket
	ErrSocketClosed = errors.New("engine: socket is closed")

	// ErrNotSupported is returned on platforms without async socket
	// support
	ErrNotSupported = errors.New("engine: async sockets are not supported on this platform")
)
