// Package benchmarks sweeps registered kernels over a parameter grid and
// measures every repetition inside a hardware counter window.
package benchmarks

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/sarchlab/tilebench/config"
	"github.com/sarchlab/tilebench/cpufreq"
	"github.com/sarchlab/tilebench/environment"
	"github.com/sarchlab/tilebench/registry"
	"github.com/sarchlab/tilebench/timing/counters"
)

// State is the lifecycle of a harness run.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSweeping
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSweeping:
		return "sweeping"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Sample is one repetition of one sweep cell.
type Sample struct {
	MHz      int
	Arg1     uint64
	TileSize int32
	Size     uint64
	Size2    uint64
	Size3    uint64
	// Rep is the 1-based repetition index within the cell.
	Rep int
	// Reps is the number of repetitions of the cell.
	Reps     int
	Function string
	Counters counters.Counters
}

// Sink receives samples in sweep order.
type Sink interface {
	// Begin is called once, after validation succeeds and before the first
	// sample.
	Begin() error
	Write(s Sample) error
	Close() error
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	MHz       []int
	Arg1s     []uint64
	TileSizes []int32
	Sizes     []uint64
	Sizes2    []uint64
	Sizes3    []uint64

	// Functions are kernel names; "ALL" expands to every registered name.
	Functions []string

	// Reps is the number of samples per cell.
	Reps int

	// Iterations is the number of invocations inside one counter window.
	Iterations int

	// Backend names the counter backend passed to OpenBackend.
	Backend string

	// OpenBackend opens the counter backend on the measuring thread.
	OpenBackend func(name string) (counters.Backend, error)

	// CPU pins the measuring thread; -1 leaves affinity alone.
	CPU int

	// Frequency applies each MHz value. Nil means no frequency control.
	Frequency cpufreq.Setter

	// StrictFrequency makes frequency failures fatal.
	StrictFrequency bool

	// Logger receives run progress (default: slog.Default()).
	Logger *slog.Logger
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return ConfigFromSweep(config.DefaultSweep())
}

// ConfigFromSweep derives a harness configuration from a sweep file, with
// size2 and size3 defaults resolved.
func ConfigFromSweep(s *config.Sweep) HarnessConfig {
	return HarnessConfig{
		MHz:             s.MHz,
		Arg1s:           s.Arg1s,
		TileSizes:       s.TileSizes,
		Sizes:           s.Sizes,
		Sizes2:          s.ResolvedSizes2(),
		Sizes3:          s.ResolvedSizes3(),
		Functions:       s.Functions,
		Reps:            s.Reps,
		Iterations:      s.Iterations,
		Backend:         s.Backend,
		OpenBackend:     counters.Open,
		CPU:             s.CPU,
		StrictFrequency: s.StrictFrequency,
	}
}

// target is a validated kernel: its record and the environment that binds
// it.
type target struct {
	record registry.FunctionRecord
	env    environment.Environment
}

// Harness validates and runs one sweep.
type Harness struct {
	config    HarnessConfig
	functions *registry.Functions
	envs      *environment.Registry
	logger    *slog.Logger
	state     State
	targets   []target
	samples   int
}

// NewHarness creates a harness over the given registries.
func NewHarness(
	config HarnessConfig,
	functions *registry.Functions,
	envs *environment.Registry,
) *Harness {
	if config.OpenBackend == nil {
		config.OpenBackend = counters.Open
	}
	if config.Frequency == nil {
		config.Frequency = cpufreq.Noop{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{
		config:    config,
		functions: functions,
		envs:      envs,
		logger:    logger,
	}
}

// State returns the current lifecycle state.
func (h *Harness) State() State { return h.state }

// Samples returns the number of samples written so far.
func (h *Harness) Samples() int { return h.samples }

// params builds the ParameterSet of one cell.
func params(arg1 uint64, tile int32, size, size2, size3 uint64) environment.ParameterSet {
	return environment.ParameterSet{
		environment.ParamArg1:     arg1,
		environment.ParamTileSize: uint64(tile),
		environment.ParamSize:     size,
		environment.ParamSize2:    size2,
		environment.ParamSize3:    size3,
	}
}

// forEachCell visits the configuration axes in sweep order, arg1 outermost.
func (h *Harness) forEachCell(fn func(p environment.ParameterSet, s Sample) error) error {
	c := h.config
	for _, arg1 := range c.Arg1s {
		for _, tile := range c.TileSizes {
			for _, size := range c.Sizes {
				for _, size2 := range c.Sizes2 {
					for _, size3 := range c.Sizes3 {
						s := Sample{
							Arg1:     arg1,
							TileSize: tile,
							Size:     size,
							Size2:    size2,
							Size3:    size3,
							Reps:     c.Reps,
						}
						if err := fn(params(arg1, tile, size, size2, size3), s); err != nil {
							return err
						}
					}
				}
			}
		}
	}
	return nil
}

// Validate resolves every requested kernel and its environment and checks
// that every cell binds and passes the kernel's own precondition check. It
// has no side effects on buffers or output.
func (h *Harness) Validate() error {
	h.state = StateValidating
	h.targets = nil

	if h.config.Reps <= 0 || h.config.Iterations <= 0 {
		return h.fail(fmt.Errorf("reps and iterations must be > 0"))
	}

	names := h.functions.Expand(h.config.Functions)
	targets := make([]target, 0, len(names))
	for _, name := range names {
		rec, err := h.functions.Resolve(name)
		if err != nil {
			return h.fail(err)
		}
		env, err := h.envs.Resolve(rec.Kind)
		if err != nil {
			return h.fail(fmt.Errorf("function %s: %w", name, err))
		}
		if !env.Accepts(rec.Entry) {
			return h.fail(fmt.Errorf("function %s: %w", name, registry.ErrSignatureMismatch))
		}
		targets = append(targets, target{record: rec, env: env})
	}

	err := h.forEachCell(func(p environment.ParameterSet, _ Sample) error {
		for _, t := range targets {
			if _, err := t.env.Bind(t.record.Entry, p); err != nil {
				return fmt.Errorf("function %s: %w", t.record.Name, err)
			}
			if t.record.Check == nil {
				continue
			}
			if err := t.record.Check(p); err != nil {
				return fmt.Errorf("function %s: %w", t.record.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return h.fail(err)
	}

	h.targets = targets
	return nil
}

func (h *Harness) fail(err error) error {
	h.state = StateFailed
	return err
}

// Run validates the sweep and then measures every cell, writing one sample
// per repetition to sink. Run closes neither sink nor backend on success;
// the caller owns both.
func (h *Harness) Run(sink Sink) error {
	if err := h.Validate(); err != nil {
		return err
	}
	targets := h.targets

	unpin, err := counters.PinToCPU(h.config.CPU)
	if err != nil {
		return h.fail(err)
	}
	defer unpin()

	backend, err := h.config.OpenBackend(h.config.Backend)
	if err != nil {
		return h.fail(err)
	}
	defer func() { _ = backend.Close() }()

	if err := sink.Begin(); err != nil {
		return h.fail(fmt.Errorf("failed to open output: %w", err))
	}

	h.state = StateSweeping
	h.logger.Info("execution started",
		"functions", len(targets),
		"reps", h.config.Reps,
		"iterations", h.config.Iterations,
		"backend", h.config.Backend)

	for _, mhz := range h.config.MHz {
		if err := h.setFrequency(mhz); err != nil {
			return h.fail(err)
		}
		err := h.forEachCell(func(p environment.ParameterSet, cell Sample) error {
			cell.MHz = mhz
			for _, t := range targets {
				if err := h.measure(backend, sink, t, p, cell); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return h.fail(err)
		}
	}

	h.state = StateDone
	h.logger.Info("execution completed", "samples", h.samples)
	return nil
}

// measure runs every repetition of one (cell, kernel) pair.
func (h *Harness) measure(
	backend counters.Backend,
	sink Sink,
	t target,
	p environment.ParameterSet,
	cell Sample,
) error {
	call, err := t.env.Bind(t.record.Entry, p)
	if err != nil {
		// Every cell bound during validation.
		panic(fmt.Sprintf("bind %s after validation: %v", t.record.Name, err))
	}

	cell.Function = t.record.Name
	h.logger.Debug("cell",
		"function", cell.Function,
		"mhz", cell.MHz,
		"arg1", cell.Arg1,
		"tile_size", cell.TileSize,
		"size", cell.Size,
		"size2", cell.Size2,
		"size3", cell.Size3)

	for rep := 1; rep <= h.config.Reps; rep++ {
		t.env.Reset(p)
		c, err := counters.Measure(backend, h.config.Iterations, call)
		if err != nil {
			return fmt.Errorf("function %s: %w", t.record.Name, err)
		}
		cell.Rep = rep
		cell.Counters = c
		if err := sink.Write(cell); err != nil {
			return fmt.Errorf("failed to write sample: %w", err)
		}
		h.samples++
	}
	return nil
}

type frequencyReader interface {
	CurrentMHz() (map[string]int, error)
}

func (h *Harness) setFrequency(mhz int) error {
	if err := h.config.Frequency.SetMHz(mhz); err != nil {
		if h.config.StrictFrequency {
			return fmt.Errorf("set frequency %d MHz: %w", mhz, err)
		}
		h.logger.Warn("frequency not applied", "mhz", mhz, "err", err)
		return nil
	}
	h.logger.Info("frequency set", "mhz", mhz)

	if r, ok := h.config.Frequency.(frequencyReader); ok {
		if cur, err := r.CurrentMHz(); err == nil {
			h.logger.Debug("frequency observed", "mhz", cur)
		}
	}
	return nil
}

// Summary is a Sink that keeps running per-kernel sums, so a run can print
// its means without holding the samples.
type Summary struct {
	order []string
	by    map[string]*kernelTotals
}

type kernelTotals struct {
	n      int
	cycles float64
	cpi    float64
}

// NewSummary creates an empty summary sink.
func NewSummary() *Summary {
	return &Summary{by: map[string]*kernelTotals{}}
}

func (s *Summary) Begin() error { return nil }

func (s *Summary) Write(sample Sample) error {
	t, ok := s.by[sample.Function]
	if !ok {
		t = &kernelTotals{}
		s.by[sample.Function] = t
		s.order = append(s.order, sample.Function)
	}
	t.n++
	t.cycles += float64(sample.Counters.Cycles)
	t.cpi += sample.Counters.CPI()
	return nil
}

func (s *Summary) Close() error { return nil }

// PrintSummary writes one line per kernel, in first-seen order, with its
// mean cycles and CPI.
func PrintSummary(w io.Writer, s *Summary) {
	for _, name := range s.order {
		t := s.by[name]
		_, _ = fmt.Fprintf(w, "%-32s samples=%-4d cycles=%.0f cpi=%.3f\n",
			name, t.n, t.cycles/float64(t.n), t.cpi/float64(t.n))
	}
}

// Recorder is a Sink that keeps every sample in memory. It is meant for
// tests and short sweeps.
type Recorder struct {
	Samples []Sample
}

func (r *Recorder) Begin() error { return nil }

func (r *Recorder) Write(s Sample) error {
	r.Samples = append(r.Samples, s)
	return nil
}

func (r *Recorder) Close() error { return nil }
