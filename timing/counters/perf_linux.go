//go:build linux

package counters

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

type perfEvent struct {
	name   string
	typ    uint32
	config uint64
}

func cacheConfig(cache, op, result uint64) uint64 {
	return cache | op<<8 | result<<16
}

var perfEvents = []perfEvent{
	{"instructions", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_INSTRUCTIONS},
	{"cycles", unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CPU_CYCLES},
	{"L1-dcache-loads", unix.PERF_TYPE_HW_CACHE, cacheConfig(
		unix.PERF_COUNT_HW_CACHE_L1D, unix.PERF_COUNT_HW_CACHE_OP_READ, unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS)},
	{"L1-dcache-load-misses", unix.PERF_TYPE_HW_CACHE, cacheConfig(
		unix.PERF_COUNT_HW_CACHE_L1D, unix.PERF_COUNT_HW_CACHE_OP_READ, unix.PERF_COUNT_HW_CACHE_RESULT_MISS)},
}

// Perf reads hardware counters through perf_event_open. Events count the
// opening thread only, so the caller must stay locked to its OS thread
// from NewPerf until Close.
type Perf struct {
	fds   []int
	start time.Time
	buf   [8]byte
}

// NewPerf opens one disabled counter per event for the calling thread.
func NewPerf() (*Perf, error) {
	p := &Perf{}
	for _, ev := range perfEvents {
		attr := unix.PerfEventAttr{
			Type:   ev.typ,
			Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
			Config: ev.config,
			Bits:   unix.PerfBitDisabled | unix.PerfBitExcludeKernel | unix.PerfBitExcludeHv,
		}
		fd, err := unix.PerfEventOpen(&attr, 0, -1, -1, unix.PERF_FLAG_FD_CLOEXEC)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("%w: open %s: %v", ErrBackend, ev.name, err)
		}
		p.fds = append(p.fds, fd)
	}
	return p, nil
}

// Begin resets and enables every counter.
func (p *Perf) Begin() error {
	for i, fd := range p.fds {
		if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_RESET, 0); err != nil {
			return fmt.Errorf("%w: reset %s: %v", ErrBackend, perfEvents[i].name, err)
		}
	}
	p.start = time.Now()
	return enableAll(len(p.fds),
		func(i int) error {
			if err := unix.IoctlSetInt(p.fds[i], unix.PERF_EVENT_IOC_ENABLE, 0); err != nil {
				return fmt.Errorf("%w: enable %s: %v", ErrBackend, perfEvents[i].name, err)
			}
			return nil
		},
		func(i int) {
			_ = unix.IoctlSetInt(p.fds[i], unix.PERF_EVENT_IOC_DISABLE, 0)
		})
}

// enableAll enables counters 0..n-1 in order. If one fails, the counters
// already enabled are disabled again before the error is returned.
func enableAll(n int, enable func(i int) error, disable func(i int)) error {
	for i := 0; i < n; i++ {
		if err := enable(i); err != nil {
			for j := i - 1; j >= 0; j-- {
				disable(j)
			}
			return err
		}
	}
	return nil
}

// End disables every counter and reads its value.
func (p *Perf) End() (Counters, error) {
	for i, fd := range p.fds {
		if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_DISABLE, 0); err != nil {
			return Counters{}, fmt.Errorf("%w: disable %s: %v", ErrBackend, perfEvents[i].name, err)
		}
	}
	elapsed := time.Since(p.start)

	values := make([]uint64, len(p.fds))
	for i, fd := range p.fds {
		n, err := unix.Read(fd, p.buf[:])
		if err != nil {
			return Counters{}, fmt.Errorf("%w: read %s: %v", ErrBackend, perfEvents[i].name, err)
		}
		if n != len(p.buf) {
			return Counters{}, fmt.Errorf("%w: short read of %s: %d bytes", ErrBackend, perfEvents[i].name, n)
		}
		values[i] = binary.NativeEndian.Uint64(p.buf[:])
	}
	return Counters{
		Instructions: values[0],
		Cycles:       values[1],
		L1DAccesses:  values[2],
		L1DMisses:    values[3],
		Elapsed:      elapsed,
	}, nil
}

// Close releases every counter.
func (p *Perf) Close() error {
	var first error
	for _, fd := range p.fds {
		if err := unix.Close(fd); err != nil && first == nil {
			first = fmt.Errorf("%w: close: %v", ErrBackend, err)
		}
	}
	p.fds = nil
	return first
}

// PinToCPU locks the calling goroutine to its OS thread and, when cpu is
// not negative, restricts that thread to the given CPU. The returned
// function restores the previous affinity mask and unlocks the thread.
func PinToCPU(cpu int) (func(), error) {
	runtime.LockOSThread()
	if cpu < 0 {
		return runtime.UnlockOSThread, nil
	}

	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("read affinity: %w", err)
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("pin to cpu %d: %w", cpu, err)
	}
	return func() {
		_ = unix.SchedSetaffinity(0, &prev)
		runtime.UnlockOSThread()
	}, nil
}
