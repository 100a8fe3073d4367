package report

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sarchlab/tilebench/benchmarks"
)

var cellLabels = []string{"function", "size", "arg1", "tile_size", "mhz"}

type cellStats struct {
	n                          float64
	instructions, cycles, secs float64
	misses, accesses           float64
}

// Metrics keeps per-cell means of every sample in a private Prometheus
// registry and writes them as a node_exporter textfile on Close.
type Metrics struct {
	path     string
	registry *prometheus.Registry

	samples      *prometheus.CounterVec
	instructions *prometheus.GaugeVec
	cycles       *prometheus.GaugeVec
	cpi          *prometheus.GaugeVec
	elapsed      *prometheus.GaugeVec
	missRate     *prometheus.GaugeVec

	cells map[string]*cellStats
	begun bool
}

// NewMetrics returns a sink writing to path. runID labels every series.
func NewMetrics(path, runID string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	constLabels := prometheus.Labels{"run_id": runID}

	gauge := func(name, help string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "tilebench",
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, cellLabels)
	}

	return &Metrics{
		path:     path,
		registry: reg,
		samples: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "tilebench",
			Name:        "samples_total",
			Help:        "Samples measured per kernel",
			ConstLabels: constLabels,
		}, []string{"function"}),
		instructions: gauge("instructions", "Mean retired instructions per window"),
		cycles:       gauge("cycles", "Mean CPU cycles per window"),
		cpi:          gauge("cycles_per_instruction", "Mean cycles over mean instructions"),
		elapsed:      gauge("elapsed_seconds", "Mean wall-clock time per window"),
		missRate:     gauge("l1d_miss_ratio", "L1 data-cache read misses per read access"),
		cells:        make(map[string]*cellStats),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Begin() error {
	m.begun = true
	return nil
}

func (m *Metrics) Write(s benchmarks.Sample) error {
	labels := []string{
		s.Function,
		strconv.FormatUint(s.Size, 10),
		strconv.FormatUint(s.Arg1, 10),
		strconv.Itoa(int(s.TileSize)),
		strconv.Itoa(s.MHz),
	}
	key := labels[0] + "/" + labels[1] + "/" + labels[2] + "/" + labels[3] + "/" + labels[4]
	st, ok := m.cells[key]
	if !ok {
		st = &cellStats{}
		m.cells[key] = st
	}

	c := s.Counters
	st.n++
	st.instructions += float64(c.Instructions)
	st.cycles += float64(c.Cycles)
	st.secs += c.Elapsed.Seconds()
	st.misses += float64(c.L1DMisses)
	st.accesses += float64(c.L1DAccesses)

	m.samples.WithLabelValues(s.Function).Inc()
	m.instructions.WithLabelValues(labels...).Set(st.instructions / st.n)
	m.cycles.WithLabelValues(labels...).Set(st.cycles / st.n)
	m.elapsed.WithLabelValues(labels...).Set(st.secs / st.n)
	if st.instructions > 0 {
		m.cpi.WithLabelValues(labels...).Set(st.cycles / st.instructions)
	}
	if st.accesses > 0 {
		m.missRate.WithLabelValues(labels...).Set(st.misses / st.accesses)
	}
	return nil
}

// Close writes the textfile if the run got past validation.
func (m *Metrics) Close() error {
	if !m.begun {
		return nil
	}
	return prometheus.WriteToTextfile(m.path, m.registry)
}
