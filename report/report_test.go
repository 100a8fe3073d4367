package report_test

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tilebench/benchmarks"
	"github.com/sarchlab/tilebench/report"
	"github.com/sarchlab/tilebench/timing/counters"
)

func TestReport(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Report Suite")
}

func sample(fn string, rep int, cycles uint64) benchmarks.Sample {
	return benchmarks.Sample{
		MHz:      3700,
		Arg1:     1024,
		TileSize: 64,
		Size:     4096,
		Rep:      rep,
		Reps:     2,
		Function: fn,
		Counters: counters.Counters{
			Instructions: 100,
			Cycles:       cycles,
			L1DAccesses:  40,
			L1DMisses:    4,
			Elapsed:      time.Microsecond,
		},
	}
}

func readCSV(path string) [][]string {
	f, err := os.Open(path)
	Expect(err).NotTo(HaveOccurred())
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	Expect(err).NotTo(HaveOccurred())
	return rows
}

var _ = Describe("CSV", func() {
	var path string

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "stat.csv")
	})

	It("should not create the file before Begin", func() {
		sink := report.NewCSV(path)
		Expect(sink.Close()).To(Succeed())
		_, err := os.Stat(path)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("should write the header then one row per sample", func() {
		sink := report.NewCSV(path)
		Expect(sink.Begin()).To(Succeed())
		Expect(sink.Write(sample("convolution_tiled", 1, 150))).To(Succeed())
		Expect(sink.Write(sample("convolution_tiled", 2, 250))).To(Succeed())
		Expect(sink.Close()).To(Succeed())

		rows := readCSV(path)
		Expect(rows).To(HaveLen(3))
		Expect(strings.Join(rows[0], ",")).To(Equal(
			"size,rep,arg1,tile_size,function,IC,Cycles,CPI,CT,ET,L1_dcache_miss_rate,L1_dcache_misses,L1_dcache_accesses"))
		Expect(rows[1][:7]).To(Equal([]string{"4096", "1", "1024", "64", "convolution_tiled", "100", "150"}))
		Expect(rows[1][7]).To(Equal("1.5"))
		Expect(rows[1][10:]).To(Equal([]string{"0.1", "4", "40"}))
		Expect(rows[2][1]).To(Equal("2"))
	})

	It("should flush each row as it is written", func() {
		sink := report.NewCSV(path)
		Expect(sink.Begin()).To(Succeed())
		Expect(sink.Write(sample("k", 1, 1))).To(Succeed())
		Expect(readCSV(path)).To(HaveLen(2))
		Expect(sink.Close()).To(Succeed())
	})

	It("should refuse writes before Begin", func() {
		Expect(report.NewCSV(path).Write(sample("k", 1, 1))).To(HaveOccurred())
	})
})

var _ = Describe("Metrics", func() {
	It("should export per-kernel series as a textfile", func() {
		path := filepath.Join(GinkgoT().TempDir(), "tilebench.prom")
		m := report.NewMetrics(path, "run-1")
		Expect(m.Begin()).To(Succeed())
		Expect(m.Write(sample("convolution_tiled", 1, 100))).To(Succeed())
		Expect(m.Write(sample("convolution_tiled", 2, 300))).To(Succeed())
		Expect(m.Close()).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		text := string(data)
		Expect(text).To(ContainSubstring("tilebench_samples_total"))
		Expect(text).To(ContainSubstring(`function="convolution_tiled"`))
		Expect(text).To(ContainSubstring(`run_id="run-1"`))
		Expect(text).To(MatchRegexp(`tilebench_cycles\{[^}]*\} 200`))
		Expect(text).To(MatchRegexp(`tilebench_samples_total\{[^}]*\} 2`))
	})

	It("should not write a file for a run that never began", func() {
		path := filepath.Join(GinkgoT().TempDir(), "tilebench.prom")
		Expect(report.NewMetrics(path, "run-2").Close()).To(Succeed())
		_, err := os.Stat(path)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})

type failingSink struct {
	benchmarks.Recorder
	err error
}

func (f *failingSink) Close() error { return f.err }

var _ = Describe("Multi", func() {
	It("should fan out every sample", func() {
		a, b := &benchmarks.Recorder{}, &benchmarks.Recorder{}
		m := report.Multi{a, b}
		Expect(m.Begin()).To(Succeed())
		Expect(m.Write(sample("k", 1, 1))).To(Succeed())
		Expect(m.Close()).To(Succeed())
		Expect(a.Samples).To(HaveLen(1))
		Expect(b.Samples).To(HaveLen(1))
	})

	It("should close every sink even when one fails", func() {
		boom := errors.New("boom")
		rec := &benchmarks.Recorder{}
		m := report.Multi{&failingSink{err: boom}, rec}
		Expect(m.Close()).To(MatchError(boom))
	})
})

var _ = Describe("Summarize", func() {
	var dir string

	write := func(name string, samples ...benchmarks.Sample) {
		sink := report.NewCSV(filepath.Join(dir, name))
		Expect(sink.Begin()).To(Succeed())
		for _, s := range samples {
			Expect(sink.Write(s)).To(Succeed())
		}
		Expect(sink.Close()).To(Succeed())
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("should average repeated rows across files", func() {
		write("a.csv", sample("tiled", 1, 100), sample("naive", 1, 1000))
		write("b.csv", sample("tiled", 2, 300))

		sums, err := report.Summarize([]string{filepath.Join(dir, "*.csv")})
		Expect(err).NotTo(HaveOccurred())
		Expect(sums).To(HaveLen(2))

		Expect(sums[0].Function).To(Equal("tiled"))
		Expect(sums[0].Count).To(Equal(2))
		Expect(sums[0].Size).To(Equal("4096"))
		Expect(sums[0].Means[1]).To(BeNumerically("~", 200, 1e-9))
		Expect(sums[0].Means[2]).To(BeNumerically("~", 2.0, 1e-9))
		Expect(sums[1].Function).To(Equal("naive"))
		Expect(sums[1].Count).To(Equal(1))

		var buf bytes.Buffer
		Expect(report.WriteSummary(&buf, sums)).To(Succeed())
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		Expect(lines).To(HaveLen(3))
		Expect(lines[0]).To(HavePrefix("function,size,arg1,tile_size,count,IC,Cycles"))
		Expect(lines[1]).To(HavePrefix("tiled,4096,1024,64,2,100,200,"))
	})

	It("should fail when nothing matches", func() {
		_, err := report.Summarize([]string{filepath.Join(dir, "*.csv")})
		Expect(err).To(MatchError(report.ErrNoInput))
	})

	It("should reject files without the counter columns", func() {
		Expect(os.WriteFile(filepath.Join(dir, "x.csv"), []byte("function,size\nk,1\n"), 0644)).To(Succeed())
		_, err := report.Summarize([]string{filepath.Join(dir, "x.csv")})
		Expect(err).To(MatchError(ContainSubstring("missing column")))
	})
})
