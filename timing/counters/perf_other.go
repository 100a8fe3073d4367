//go:build !linux

package counters

import (
	"fmt"
	"runtime"
)

// Perf is unavailable outside Linux.
type Perf struct{}

// NewPerf always fails outside Linux; use the timer backend instead.
func NewPerf() (*Perf, error) {
	return nil, fmt.Errorf("%w: perf_event_open requires linux", ErrBackend)
}

func (*Perf) Begin() error           { return ErrBackend }
func (*Perf) End() (Counters, error) { return Counters{}, ErrBackend }
func (*Perf) Close() error           { return nil }

// PinToCPU locks the calling goroutine to its OS thread. CPU affinity is
// not applied outside Linux.
func PinToCPU(cpu int) (func(), error) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread, nil
}
