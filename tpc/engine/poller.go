package engine

// pollEvent describes readiness of a single registered descriptor
type pollEvent struct {
	fd       int
	readable bool
	writable bool
}

// poller is the platform readiness notification mechanism driving a
// reactor. All methods except wake are called only from the reactor
// goroutine; wake may be called from any goroutine.
type poller interface {
	// register adds fd to the interest set, watching for readability and
	// optionally writability
	register(fd int, writable bool) error

	// modify updates the writability interest of an already registered fd
	modify(fd int, writable bool) error

	// unregister removes fd from the interest set
	unregister(fd int) error

	// wait blocks until readiness events arrive or wake is called, and
	// fills events. timeoutMs < 0 blocks indefinitely.
	wait(events []pollEvent, timeoutMs int) (int, error)

	// wake unblocks a concurrent wait call
	wake() error

	// close releases the poller resources
	close() error
}
