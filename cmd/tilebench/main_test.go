package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestTilebench(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Tilebench Suite")
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(expandListArgs(args))
	err := root.Execute()
	return out.String(), err
}

var _ = Describe("expandListArgs", func() {
	It("should repeat list flags for every trailing value", func() {
		got := expandListArgs([]string{"-s", "1", "2", "3", "-o", "x.csv", "-f", "a", "b"})
		Expect(got).To(Equal([]string{
			"-s", "1", "-s", "2", "-s", "3", "-o", "x.csv", "-f", "a", "-f", "b",
		}))
	})

	It("should leave single values and other flags alone", func() {
		got := expandListArgs([]string{"run", "-r", "3", "--size=4096", "-t", "64"})
		Expect(got).To(Equal([]string{"run", "-r", "3", "--size=4096", "-t", "64"}))
	})

	It("should stop at a double dash", func() {
		got := expandListArgs([]string{"-l", "a.so", "--", "-s", "1", "2"})
		Expect(got).To(Equal([]string{"-l", "a.so", "--", "-s", "1", "2"}))
	})
})

var _ = Describe("tilebench", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("should write one row for the end-to-end convolution", func() {
		output := filepath.Join(dir, "stat.csv")
		metrics := filepath.Join(dir, "run.prom")
		out, err := execute("run",
			"-o", output,
			"--backend", "timer",
			"--sysfs", dir,
			"--metrics", metrics,
			"-f", "convolution_tiled",
			"-s", "4096", "-a", "1024", "-t", "64")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("convolution_tiled"))

		f, err := os.Open(output)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()
		rows, err := csv.NewReader(f).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
		Expect(rows[1][:5]).To(Equal([]string{"4096", "1", "1024", "64", "convolution_tiled"}))

		prom, err := os.ReadFile(metrics)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(prom)).To(ContainSubstring("tilebench_samples_total"))
	})

	It("should sweep several values per list flag", func() {
		output := filepath.Join(dir, "stat.csv")
		_, err := execute(
			"-o", output, "--backend", "timer", "--sysfs", dir,
			"-f", "sum", "dot", "-s", "64", "128", "-r", "2")
		Expect(err).NotTo(HaveOccurred())

		data, err := os.ReadFile(output)
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.Count(string(data), "\n")).To(Equal(1 + 2*2*2))
	})

	It("should sweep convolution sizes beyond the default size3", func() {
		output := filepath.Join(dir, "stat.csv")
		_, err := execute("run",
			"-o", output, "--backend", "timer", "--sysfs", dir,
			"-f", "convolution_tiled", "-s", "8192")
		Expect(err).NotTo(HaveOccurred())

		f, err := os.Open(output)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()
		rows, err := csv.NewReader(f).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
		Expect(rows[1][0]).To(Equal("8192"))
	})

	It("should reject a kernel longer than the source before writing output", func() {
		output := filepath.Join(dir, "stat.csv")
		_, err := execute(
			"-o", output, "--backend", "timer", "--sysfs", dir,
			"-f", "convolution", "-s", "4096", "64", "--size2", "1024")
		Expect(err).To(MatchError(ContainSubstring("size2=1024 exceeds size=64")))

		_, statErr := os.Stat(output)
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})

	It("should fail on an unknown kernel without creating the output", func() {
		output := filepath.Join(dir, "stat.csv")
		_, err := execute("-o", output, "--backend", "timer", "--sysfs", dir, "-f", "nope")
		Expect(err).To(MatchError(ContainSubstring("unknown function")))

		_, statErr := os.Stat(output)
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})

	It("should fail on a module that is not a shared object", func() {
		lib := filepath.Join(dir, "bad.so")
		Expect(os.WriteFile(lib, []byte("nope"), 0644)).To(Succeed())
		_, err := execute("list", "-l", lib)
		Expect(err).To(MatchError(ContainSubstring("module load failed")))
	})

	It("should take defaults from a config file and let flags override them", func() {
		cfgPath := filepath.Join(dir, "sweep.yaml")
		output := filepath.Join(dir, "from-config.csv")
		Expect(os.WriteFile(cfgPath, []byte(`
output: `+output+`
reps: 3
backend: timer
functions: [sum]
sizes: [32]
`), 0644)).To(Succeed())

		_, err := execute("--config", cfgPath, "--sysfs", dir, "-r", "2")
		Expect(err).NotTo(HaveOccurred())

		data, err := os.ReadFile(output)
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.Count(string(data), "\n")).To(Equal(3))
	})

	It("should list the builtin kernels", func() {
		out, err := execute("list")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(MatchRegexp(`convolution_tiled_split\s+convolution`))
		Expect(out).To(MatchRegexp(`byte_sum\s+raw_bytes`))
	})

	It("should predict every convolution variant", func() {
		out, err := execute("predict", "-s", "256", "-a", "32", "-t", "16")
		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimSpace(out), "\n")
		Expect(lines).To(HaveLen(1 + 7))
		Expect(lines[0]).To(HavePrefix("function,size,kernel_size"))
		Expect(out).To(ContainSubstring("convolution_tiled,256,32,16,28672,"))
	})

	It("should predict a repeated variant once", func() {
		out, err := execute("predict", "-s", "256", "-a", "32", "-t", "16",
			"-f", "convolution", "convolution_tiled", "convolution")
		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimSpace(out), "\n")
		Expect(lines).To(HaveLen(1 + 2))
	})

	It("should reject predictions for other kernels", func() {
		_, err := execute("predict", "-f", "sum")
		Expect(err).To(HaveOccurred())
	})

	It("should summarize result files", func() {
		output := filepath.Join(dir, "stat.csv")
		_, err := execute("-o", output, "--backend", "timer", "--sysfs", dir, "-f", "sum", "-s", "16", "-r", "3")
		Expect(err).NotTo(HaveOccurred())

		out, err := execute("summarize", filepath.Join(dir, "*.csv"))
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("sum,16,1,64,3,"))
	})
})
