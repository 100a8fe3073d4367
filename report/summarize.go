package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// ErrNoInput is returned when no result file matches.
var ErrNoInput = errors.New("no result files matched")

var (
	groupColumns = []string{"function", "size", "arg1", "tile_size"}
	valueColumns = []string{
		"IC", "Cycles", "CPI", "CT", "ET",
		"L1_dcache_miss_rate", "L1_dcache_misses", "L1_dcache_accesses",
	}
)

// Summary is the mean of every counter column over the rows of one group.
type Summary struct {
	Function string
	Size     string
	Arg1     string
	TileSize string
	Count    int
	// Means is indexed like the counter columns of Header.
	Means []float64
}

// Summarize reads every file matching patterns and averages rows that
// share function, size, arg1 and tile_size. Groups keep the order of
// their first row.
func Summarize(patterns []string) ([]Summary, error) {
	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, ErrNoInput
	}

	var order []string
	groups := map[string]*Summary{}
	for _, path := range files {
		if err := summarizeFile(path, groups, &order); err != nil {
			return nil, err
		}
	}

	out := make([]Summary, 0, len(order))
	for _, key := range order {
		s := groups[key]
		for i := range s.Means {
			s.Means[i] /= float64(s.Count)
		}
		out = append(out, *s)
	}
	return out, nil
}

func summarizeFile(path string, groups map[string]*Summary, order *[]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("%s: failed to read header: %w", path, err)
	}
	index := map[string]int{}
	for i, name := range header {
		index[name] = i
	}
	for _, col := range append(append([]string{}, groupColumns...), valueColumns...) {
		if _, ok := index[col]; !ok {
			return fmt.Errorf("%s: missing column %s", path, col)
		}
	}

	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		g := make([]string, len(groupColumns))
		for i, col := range groupColumns {
			g[i] = rec[index[col]]
		}
		key := g[0] + "\x00" + g[1] + "\x00" + g[2] + "\x00" + g[3]
		s, ok := groups[key]
		if !ok {
			s = &Summary{
				Function: g[0],
				Size:     g[1],
				Arg1:     g[2],
				TileSize: g[3],
				Means:    make([]float64, len(valueColumns)),
			}
			groups[key] = s
			*order = append(*order, key)
		}

		for i, col := range valueColumns {
			v, err := strconv.ParseFloat(rec[index[col]], 64)
			if err != nil {
				return fmt.Errorf("%s:%d: column %s: %w", path, line, col, err)
			}
			s.Means[i] += v
		}
		s.Count++
	}
}

// WriteSummary prints summaries as CSV.
func WriteSummary(w io.Writer, summaries []Summary) error {
	cw := csv.NewWriter(w)
	header := append(append([]string{}, groupColumns...), "count")
	if err := cw.Write(append(header, valueColumns...)); err != nil {
		return err
	}
	for _, s := range summaries {
		rec := []string{s.Function, s.Size, s.Arg1, s.TileSize, strconv.Itoa(s.Count)}
		for _, v := range s.Means {
			rec = append(rec, strconv.FormatFloat(v, 'g', 6, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
