package engine

import (
	"sync/atomic"
	"time"

	"github.com/tpcware/memgrid/tpc/common"
)

// Engine owns the per-core reactors of a process. It is created once at
// startup and lives until Close, which stops every reactor and thereby
// closes every socket they own.
type Engine struct {
	cfg      common.EngineConfig
	reactors []*Reactor
	next     atomic.Uint64
}

// NewEngine validates cfg and starts cfg.Reactors reactors
func NewEngine(cfg common.EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg}
	for i := 0; i < cfg.Reactors; i++ {
		r, err := NewReactor(i, cfg.PinReactors)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		e.reactors = append(e.reactors, r)
	}

	Logger.Infof("Started TPC engine with %d reactors", cfg.Reactors)
	return e, nil
}

// Config returns the validated engine configuration
func (e *Engine) Config() common.EngineConfig {
	return e.cfg
}

// ReactorCount returns the number of reactors
func (e *Engine) ReactorCount() int {
	return len(e.reactors)
}

// Reactor returns the reactor with the given index
func (e *Engine) Reactor(i int) *Reactor {
	return e.reactors[i]
}

// NextReactor returns reactors in round-robin order, used to spread
// client-side sockets across event loops
func (e *Engine) NextReactor() *Reactor {
	idx := e.next.Add(1) - 1
	return e.reactors[idx%uint64(len(e.reactors))]
}

// Close stops all reactors. Blocks until every loop has exited.
func (e *Engine) Close() error {
	for _, r := range e.reactors {
		_ = r.Close()
	}
	return nil
}

// Dial opens a non-blocking TCP connection for use with
// NewAsyncSocketBuilder. It blocks the calling goroutine (never a reactor
// goroutine) for at most timeout.
func Dial(address string, timeout time.Duration) (int, error) {
	return dialTCP(address, timeout)
}

// CloseFd releases a dialed fd that was never handed over to a builder's
// Build call. Once Build has been called the fd belongs to the builder and
// must not be closed through this function.
func CloseFd(fd int) error {
	return closeFd(fd)
}
