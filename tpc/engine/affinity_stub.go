//go:build !linux

package engine

// pinToCPU is a no-op on platforms without thread affinity support
func pinToCPU(cpu int) error {
	return nil
}
