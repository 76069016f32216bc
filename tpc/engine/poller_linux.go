//go:build linux

package engine

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// epollPoller implements the poller interface with epoll and an eventfd
// used as the cross-goroutine wakeup channel
type epollPoller struct {
	epfd   int
	wakeFd int
	raw    []unix.EpollEvent
}

func newPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	p := &epollPoller{epfd: epfd, wakeFd: wakeFd}
	if err := p.register(wakeFd, false); err != nil {
		_ = p.close()
		return nil, err
	}
	return p, nil
}

func (p *epollPoller) register(fd int, writable bool) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if writable {
		ev.Events |= unix.EPOLLOUT
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add fd %d: %w", fd, err)
	}
	return nil
}

func (p *epollPoller) modify(fd int, writable bool) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if writable {
		ev.Events |= unix.EPOLLOUT
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod fd %d: %w", fd, err)
	}
	return nil
}

func (p *epollPoller) unregister(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del fd %d: %w", fd, err)
	}
	return nil
}

func (p *epollPoller) wait(events []pollEvent, timeoutMs int) (int, error) {
	if len(p.raw) < len(events) {
		p.raw = make([]unix.EpollEvent, len(events))
	}

	n, err := unix.EpollWait(p.epfd, p.raw[:len(events)], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	out := 0
	for i := 0; i < n; i++ {
		raw := p.raw[i]
		fd := int(raw.Fd)

		if fd == p.wakeFd {
			p.drainWake()
			continue
		}

		events[out] = pollEvent{
			fd:       fd,
			readable: raw.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			writable: raw.Events&unix.EPOLLOUT != 0,
		}
		out++
	}
	return out, nil
}

func (p *epollPoller) wake() error {
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	for {
		_, err := unix.Write(p.wakeFd, one[:])
		if err == unix.EINTR {
			continue
		}
		// EAGAIN means the counter is saturated, a wakeup is pending anyway
		if err == unix.EAGAIN {
			return nil
		}
		return err
	}
}

// drainWake resets the eventfd counter so the next wake triggers again
func (p *epollPoller) drainWake() {
	var buf [8]byte
	for {
		_, err := unix.Read(p.wakeFd, buf[:])
		if err != nil {
			return
		}
	}
}

func (p *epollPoller) close() error {
	_ = unix.Close(p.wakeFd)
	return unix.Close(p.epfd)
}
