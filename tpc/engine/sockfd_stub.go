//go:build !linux

package engine

import (
	"errors"
	"net"
	"time"
)

var errWouldBlock = errors.New("engine: operation would block")

func dialTCP(address string, timeout time.Duration) (int, error) {
	return -1, ErrNotSupported
}

func listenTCP(address string, backlog int) (int, int, error) {
	return -1, 0, ErrNotSupported
}

func acceptConn(listenFd int) (int, net.Addr, error) {
	return -1, nil, ErrNotSupported
}

func readFd(fd int, p []byte) (int, error)  { return 0, ErrNotSupported }
func writeFd(fd int, p []byte) (int, error) { return 0, ErrNotSupported }
func closeFd(fd int) error                  { return ErrNotSupported }
func peerAddr(fd int) net.Addr              { return nil }
func localAddr(fd int) net.Addr             { return nil }
