// Package cpufreq pins CPU clock frequencies through the Linux cpufreq
// sysfs interface.
package cpufreq

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/procfs/sysfs"
)

// DefaultRoot is the sysfs mount point.
const DefaultRoot = "/sys"

// Setter changes the clock of every CPU.
type Setter interface {
	SetMHz(mhz int) error
}

// Noop ignores frequency requests.
type Noop struct{}

// SetMHz does nothing.
func (Noop) SetMHz(int) error { return nil }

// Sysfs writes scaling_min_freq and scaling_max_freq for every CPU that
// exposes a cpufreq policy. Writing needs root.
type Sysfs struct {
	Root string
}

// NewSysfs returns a setter rooted at DefaultRoot.
func NewSysfs() *Sysfs {
	return &Sysfs{Root: DefaultRoot}
}

func (s *Sysfs) policies() ([]string, error) {
	dirs, err := filepath.Glob(filepath.Join(s.Root, "devices/system/cpu/cpu[0-9]*/cpufreq"))
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no cpufreq policies under %s", s.Root)
	}
	return dirs, nil
}

// SetMHz pins every CPU to mhz. The bound that moves away from the current
// range is written first so min never exceeds max.
func (s *Sysfs) SetMHz(mhz int) error {
	if mhz <= 0 {
		return fmt.Errorf("frequency must be positive, got %d MHz", mhz)
	}
	dirs, err := s.policies()
	if err != nil {
		return err
	}
	khz := strconv.Itoa(mhz * 1000)
	for _, dir := range dirs {
		order := []string{"scaling_max_freq", "scaling_min_freq"}
		if cur, err := readKHz(filepath.Join(dir, "scaling_min_freq")); err == nil && mhz*1000 < cur {
			order[0], order[1] = order[1], order[0]
		}
		for _, name := range order {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(khz), 0644); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// CurrentMHz reports the scaling frequency of each CPU, keyed by CPU
// number.
func (s *Sysfs) CurrentMHz() (map[string]int, error) {
	fs, err := sysfs.NewFS(s.Root)
	if err != nil {
		return nil, err
	}
	stats, err := fs.SystemCpufreq()
	if err != nil {
		return nil, fmt.Errorf("failed to read cpufreq: %w", err)
	}
	out := make(map[string]int, len(stats))
	for _, st := range stats {
		switch {
		case st.ScalingCurrentFrequency != nil:
			out[st.Name] = int(*st.ScalingCurrentFrequency / 1000)
		case st.CpuinfoCurrentFrequency != nil:
			out[st.Name] = int(*st.CpuinfoCurrentFrequency / 1000)
		}
	}
	return out, nil
}

func readKHz(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
