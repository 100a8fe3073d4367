// Package counters brackets kernel invocations with hardware counter
// windows.
package counters

import (
	"errors"
	"fmt"
	"time"
)

// ErrBackend wraps every failure reported by a counter backend. Backend
// failures are fatal to a run; no partial sample is produced.
var ErrBackend = errors.New("counter backend failure")

// Counters holds the values collected over one window.
type Counters struct {
	Instructions uint64
	Cycles       uint64
	L1DAccesses  uint64
	L1DMisses    uint64
	Elapsed      time.Duration
}

// CPI is cycles per instruction, or 0 when no instructions were counted.
func (c Counters) CPI() float64 {
	if c.Instructions == 0 {
		return 0
	}
	return float64(c.Cycles) / float64(c.Instructions)
}

// CycleTime is the average seconds per cycle over the window, or 0 when no
// cycles were counted.
func (c Counters) CycleTime() float64 {
	if c.Cycles == 0 {
		return 0
	}
	return c.Elapsed.Seconds() / float64(c.Cycles)
}

// MissRate is L1 data-cache misses per access, or 0 without accesses.
func (c Counters) MissRate() float64 {
	if c.L1DAccesses == 0 {
		return 0
	}
	return float64(c.L1DMisses) / float64(c.L1DAccesses)
}

// Backend starts and stops one counter window at a time.
type Backend interface {
	// Begin resets and enables the counters.
	Begin() error
	// End disables the counters and reads them.
	End() (Counters, error)
	// Close releases the backend's resources.
	Close() error
}

// Measure runs fn iterations times inside a single window. The window
// brackets the invocation loop and nothing else.
func Measure(b Backend, iterations int, fn func() error) (Counters, error) {
	if err := b.Begin(); err != nil {
		return Counters{}, wrap("begin", err)
	}
	var callErr error
	for i := 0; i < iterations; i++ {
		if callErr = fn(); callErr != nil {
			break
		}
	}
	c, err := b.End()
	if callErr != nil {
		return Counters{}, callErr
	}
	if err != nil {
		return Counters{}, wrap("end", err)
	}
	return c, nil
}

func wrap(op string, err error) error {
	if errors.Is(err, ErrBackend) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrBackend, op, err)
}

// Timer is a backend that only measures elapsed wall-clock time. It needs
// no privileges and works on every platform.
type Timer struct {
	start   time.Time
	running bool
}

// NewTimer returns a wall-clock backend.
func NewTimer() *Timer { return &Timer{} }

// Begin records the window start.
func (t *Timer) Begin() error {
	if t.running {
		return fmt.Errorf("%w: window already open", ErrBackend)
	}
	t.running = true
	t.start = time.Now()
	return nil
}

// End closes the window.
func (t *Timer) End() (Counters, error) {
	elapsed := time.Since(t.start)
	if !t.running {
		return Counters{}, fmt.Errorf("%w: no open window", ErrBackend)
	}
	t.running = false
	return Counters{Elapsed: elapsed}, nil
}

// Close is a no-op.
func (t *Timer) Close() error { return nil }

// Open returns the backend registered under name: "perf" or "timer".
func Open(name string) (Backend, error) {
	switch name {
	case "", "perf":
		p, err := NewPerf()
		if err != nil {
			return nil, err
		}
		return p, nil
	case "timer":
		return NewTimer(), nil
	}
	return nil, fmt.Errorf("%w: unknown backend %q", ErrBackend, name)
}
