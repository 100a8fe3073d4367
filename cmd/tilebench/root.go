package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sarchlab/tilebench/benchmarks"
	"github.com/sarchlab/tilebench/config"
	"github.com/sarchlab/tilebench/cpufreq"
	"github.com/sarchlab/tilebench/environment"
	"github.com/sarchlab/tilebench/kernels"
	"github.com/sarchlab/tilebench/loader"
	"github.com/sarchlab/tilebench/registry"
	"github.com/sarchlab/tilebench/report"
)

// options holds raw flag values; only flags the user set override the
// config file.
type options struct {
	configPath string
	verbose    bool
	freqRoot   string

	output          string
	reps            int
	iterations      int
	sizes           []uint
	sizes2          []uint
	sizes3          []uint
	tiles           []int32
	mhz             []int
	arg1s           []uint
	functions       []string
	libs            []string
	backend         string
	metricsFile     string
	cpu             int
	strictFrequency bool
}

func (o *options) addSweepFlags(fs *pflag.FlagSet) {
	d := config.DefaultSweep()
	fs.StringVarP(&o.output, "output", "o", d.Output, "output CSV path")
	fs.IntVarP(&o.reps, "reps", "r", d.Reps, "repetitions per cell")
	fs.IntVarP(&o.iterations, "iterations", "i", d.Iterations, "invocations per counter window")
	fs.UintSliceVarP(&o.sizes, "size", "s", toUint(d.Sizes), "size sweep values")
	fs.UintSliceVar(&o.sizes2, "size2", nil, "size2 sweep values (default: arg1 values)")
	fs.UintSliceVar(&o.sizes3, "size3", nil, "size3 sweep values (default: 4096)")
	fs.Int32SliceVarP(&o.tiles, "tile", "t", d.TileSizes, "tile_size sweep values")
	fs.IntSliceVarP(&o.mhz, "mhz", "M", d.MHz, "CPU frequency sweep values in MHz")
	fs.UintSliceVarP(&o.arg1s, "arg1", "a", toUint(d.Arg1s), "arg1 sweep values")
	fs.StringArrayVarP(&o.functions, "function", "f", nil, "kernel names, or ALL")
	fs.StringArrayVarP(&o.libs, "lib", "l", nil, "kernel modules to load")
	fs.StringVar(&o.backend, "backend", d.Backend, "counter backend: perf or timer")
	fs.StringVar(&o.metricsFile, "metrics", "", "write a Prometheus textfile to this path")
	fs.IntVar(&o.cpu, "cpu", d.CPU, "pin the measuring thread to this CPU (-1: no pinning)")
	fs.BoolVar(&o.strictFrequency, "strict-frequency", false, "fail when the CPU frequency cannot be set")
}

// sweep loads the config file, if any, and applies explicitly set flags.
func (o *options) sweep(fs *pflag.FlagSet) (*config.Sweep, error) {
	s := config.DefaultSweep()
	if o.configPath != "" {
		loaded, err := config.LoadSweep(o.configPath)
		if err != nil {
			return nil, err
		}
		s = loaded
	}

	set := fs.Changed
	if set("output") {
		s.Output = o.output
	}
	if set("reps") {
		s.Reps = o.reps
	}
	if set("iterations") {
		s.Iterations = o.iterations
	}
	if set("size") {
		s.Sizes = toUint64(o.sizes)
	}
	if set("size2") {
		s.Sizes2 = toUint64(o.sizes2)
	}
	if set("size3") {
		s.Sizes3 = toUint64(o.sizes3)
	}
	if set("tile") {
		s.TileSizes = o.tiles
	}
	if set("mhz") {
		s.MHz = o.mhz
	}
	if set("arg1") {
		s.Arg1s = toUint64(o.arg1s)
	}
	if set("function") {
		s.Functions = o.functions
	}
	if set("lib") {
		s.Libs = o.libs
	}
	if set("backend") {
		s.Backend = o.backend
	}
	if set("metrics") {
		s.MetricsFile = o.metricsFile
	}
	if set("cpu") {
		s.CPU = o.cpu
	}
	if set("strict-frequency") {
		s.StrictFrequency = o.strictFrequency
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (o *options) logger() *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func toUint(v []uint64) []uint {
	out := make([]uint, len(v))
	for i, x := range v {
		out[i] = uint(x)
	}
	return out
}

func toUint64(v []uint) []uint64 {
	out := make([]uint64, len(v))
	for i, x := range v {
		out[i] = uint64(x)
	}
	return out
}

// loadFunctions builds the function registry from the builtins and libs.
func loadFunctions(libs []string) (*registry.Functions, error) {
	modules, err := loader.LoadAll(libs)
	if err != nil {
		return nil, err
	}
	functions := registry.NewFunctions()
	if err := registry.Install(functions, append([]registry.Module{kernels.Builtin}, modules...)...); err != nil {
		return nil, fmt.Errorf("register functions: %w", err)
	}
	return functions, nil
}

func newRootCommand() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:           "tilebench",
		Short:         "Measure kernels over a parameter sweep with hardware counters",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd, o)
		},
	}
	root.PersistentFlags().StringVar(&o.configPath, "config", "", "YAML sweep config")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	o.addSweepFlags(root.Flags())
	root.Flags().StringVar(&o.freqRoot, "sysfs", cpufreq.DefaultRoot, "sysfs mount point for frequency control")

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the sweep (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd, o)
		},
	}
	o.addSweepFlags(run.Flags())
	run.Flags().StringVar(&o.freqRoot, "sysfs", cpufreq.DefaultRoot, "sysfs mount point for frequency control")

	root.AddCommand(run, newPredictCommand(o), newSummarizeCommand(), newListCommand())
	return root
}

func runSweep(cmd *cobra.Command, o *options) error {
	s, err := o.sweep(cmd.Flags())
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger := o.logger().With("run_id", runID)

	functions, err := loadFunctions(s.Libs)
	if err != nil {
		return err
	}

	cfg := benchmarks.ConfigFromSweep(s)
	cfg.Logger = logger
	cfg.Frequency = &cpufreq.Sysfs{Root: o.freqRoot}
	h := benchmarks.NewHarness(cfg, functions, environment.Default(int(s.MaxSize())))

	summary := benchmarks.NewSummary()
	sinks := report.Multi{report.NewCSV(s.Output), summary}
	if s.MetricsFile != "" {
		sinks = append(sinks, report.NewMetrics(s.MetricsFile, runID))
	}

	runErr := h.Run(sinks)
	closeErr := sinks.Close()
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return closeErr
	}

	logger.Info("results written", "output", s.Output, "samples", h.Samples())
	benchmarks.PrintSummary(cmd.OutOrStdout(), summary)
	return nil
}
