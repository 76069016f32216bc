//go:build linux

package engine

import (
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// errWouldBlock is the normalized EAGAIN used by the I/O paths
var errWouldBlock = errors.New("engine: operation would block")

// dialTCP opens a non-blocking TCP socket and connects it to address,
// waiting at most timeout for the connect to finish. It returns the
// connected fd, still in non-blocking mode.
func dialTCP(address string, timeout time.Duration) (int, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return -1, fmt.Errorf("resolve %s: %w", address, err)
	}

	family, sa, err := toSockaddr(tcpAddr)
	if err != nil {
		return -1, err
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}

	// TPC channels carry small latency-sensitive frames
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

	err = unix.Connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("connect %s: %w", address, err)
	}

	if err == unix.EINPROGRESS {
		if err := awaitConnect(fd, address, timeout); err != nil {
			_ = unix.Close(fd)
			return -1, err
		}
	}

	return fd, nil
}

// awaitConnect polls the in-progress connect until it finishes or the
// timeout elapses
func awaitConnect(fd int, address string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	pfds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}

	for {
		remaining := int(time.Until(deadline) / time.Millisecond)
		if remaining <= 0 {
			return fmt.Errorf("connect %s: timeout after %s", address, timeout)
		}

		n, err := unix.Poll(pfds, remaining)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("connect %s: poll: %w", address, err)
		}
		if n == 0 {
			return fmt.Errorf("connect %s: timeout after %s", address, timeout)
		}
		break
	}

	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return fmt.Errorf("connect %s: getsockopt: %w", address, err)
	}
	if soErr != 0 {
		return fmt.Errorf("connect %s: %w", address, unix.Errno(soErr))
	}
	return nil
}

// listenTCP opens a non-blocking listen socket on address and returns the
// fd and the actually bound port (useful with port 0)
func listenTCP(address string, backlog int) (int, int, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return -1, 0, fmt.Errorf("resolve %s: %w", address, err)
	}

	family, sa, err := toSockaddr(tcpAddr)
	if err != nil {
		return -1, 0, err
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, 0, fmt.Errorf("socket: %w", err)
	}

	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)

	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, 0, fmt.Errorf("bind %s: %w", address, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return -1, 0, fmt.Errorf("listen %s: %w", address, err)
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return -1, 0, fmt.Errorf("getsockname: %w", err)
	}

	return fd, sockaddrPort(bound), nil
}

// acceptConn accepts one pending connection from a listen fd. The returned
// fd is non-blocking. errWouldBlock signals an empty backlog.
func acceptConn(listenFd int) (int, net.Addr, error) {
	fd, sa, err := unix.Accept4(listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return -1, nil, errWouldBlock
	}
	if err != nil {
		return -1, nil, fmt.Errorf("accept: %w", err)
	}

	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	return fd, sockaddrToAddr(sa), nil
}

// readFd reads from a non-blocking fd. n == 0 with a nil error means the
// peer closed the connection.
func readFd(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Read(fd, p)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, errWouldBlock
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// writeFd writes to a non-blocking fd, returning the number of bytes
// accepted by the kernel
func writeFd(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Write(fd, p)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, errWouldBlock
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// closeFd closes a socket fd
func closeFd(fd int) error {
	return unix.Close(fd)
}

// peerAddr returns the remote address of a connected fd
func peerAddr(fd int) net.Addr {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return nil
	}
	return sockaddrToAddr(sa)
}

// localAddr returns the local address of a bound fd
func localAddr(fd int) net.Addr {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil
	}
	return sockaddrToAddr(sa)
}

// --------------------------------------------------------------------------
// Sockaddr helpers
// --------------------------------------------------------------------------

func toSockaddr(addr *net.TCPAddr) (int, unix.Sockaddr, error) {
	ip := addr.IP
	if ip == nil {
		ip = net.IPv4zero
	}

	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa, nil
	}
	if ip16 := ip.To16(); ip16 != nil {
		sa := &unix.SockaddrInet6{Port: addr.Port}
		copy(sa.Addr[:], ip16)
		return unix.AF_INET6, sa, nil
	}
	return 0, nil, fmt.Errorf("unsupported address %s", addr)
}

func sockaddrToAddr(sa unix.Sockaddr) net.Addr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append([]byte(nil), sa.Addr[:]...), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append([]byte(nil), sa.Addr[:]...), Port: sa.Port}
	default:
		return nil
	}
}

func sockaddrPort(sa unix.Sockaddr) int {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return sa.Port
	case *unix.SockaddrInet6:
		return sa.Port
	default:
		return 0
	}
}
