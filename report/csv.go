// Package report writes measurement samples to CSV files and Prometheus
// textfiles and summarizes result files.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/sarchlab/tilebench/benchmarks"
)

// Header is the fixed column list of a result file.
var Header = []string{
	"size", "rep", "arg1", "tile_size", "function",
	"IC", "Cycles", "CPI", "CT", "ET",
	"L1_dcache_miss_rate", "L1_dcache_misses", "L1_dcache_accesses",
}

// CSV appends one row per sample to a result file. The file is created by
// Begin, so a run that fails validation leaves no file behind.
type CSV struct {
	path string
	file *os.File
	w    *csv.Writer
}

// NewCSV returns a sink for path.
func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

// Begin creates the file and writes the header.
func (c *CSV) Begin() error {
	f, err := os.Create(c.path)
	if err != nil {
		return err
	}
	c.file = f
	c.w = csv.NewWriter(f)
	return c.flush(Header)
}

// Write appends s and flushes it to the file.
func (c *CSV) Write(s benchmarks.Sample) error {
	if c.w == nil {
		return fmt.Errorf("csv sink %s: write before begin", c.path)
	}
	return c.flush(Row(s))
}

func (c *CSV) flush(record []string) error {
	if err := c.w.Write(record); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

// Close closes the file.
func (c *CSV) Close() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file, c.w = nil, nil
	return err
}

// Row formats s in Header order.
func Row(s benchmarks.Sample) []string {
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	c := s.Counters
	return []string{
		u(s.Size),
		strconv.Itoa(s.Rep),
		u(s.Arg1),
		strconv.Itoa(int(s.TileSize)),
		s.Function,
		u(c.Instructions),
		u(c.Cycles),
		f(c.CPI()),
		f(c.CycleTime()),
		f(c.Elapsed.Seconds()),
		f(c.MissRate()),
		u(c.L1DMisses),
		u(c.L1DAccesses),
	}
}
