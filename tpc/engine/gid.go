package engine

import (
	"bytes"
	"runtime"
	"strconv"
)

// currentGoroutineID extracts the numeric id of the calling goroutine from
// the runtime stack header ("goroutine <id> [...]"). It is used only for
// the reactor affinity check, never for synchronization.
func currentGoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return -1
	}
	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
