//go:build linux

package engine

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCPU binds the calling thread to the given CPU core. The caller must
// have locked its goroutine to the OS thread first.
func pinToCPU(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu % runtime.NumCPU())
	return unix.SchedSetaffinity(0, &set)
}
