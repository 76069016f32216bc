//go:build !linux

package engine

import "time"

// chanPoller is the fallback poller for platforms without epoll support.
// It only supports wakeups, which is enough to run task-only reactors;
// registering a descriptor fails with ErrNotSupported.
type chanPoller struct {
	wakeCh  chan struct{}
	closeCh chan struct{}
}

func newPoller() (poller, error) {
	return &chanPoller{
		wakeCh:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}, nil
}

func (p *chanPoller) register(fd int, writable bool) error { return ErrNotSupported }
func (p *chanPoller) modify(fd int, writable bool) error   { return ErrNotSupported }
func (p *chanPoller) unregister(fd int) error              { return ErrNotSupported }

func (p *chanPoller) wait(events []pollEvent, timeoutMs int) (int, error) {
	if timeoutMs < 0 {
		select {
		case <-p.wakeCh:
		case <-p.closeCh:
		}
		return 0, nil
	}

	timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-p.wakeCh:
	case <-p.closeCh:
	case <-timer.C:
	}
	return 0, nil
}

func (p *chanPoller) wake() error {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

func (p *chanPoller) close() error {
	close(p.closeCh)
	return nil
}
