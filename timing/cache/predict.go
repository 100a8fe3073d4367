package cache

import (
	"github.com/sarchlab/tilebench/kernels"
)

const (
	wordSize = 8
	baseAddr = 0x100000
)

// Prediction is the modelled L1 behaviour of one convolution schedule.
type Prediction struct {
	Stats Statistics
	// StallCycles is the sum of access latencies beyond a hit.
	StallCycles uint64
}

// layout places source, weight and target back to back, each starting on a
// fresh cache line.
type layout struct {
	bases [3]uint64
}

func newLayout(blockSize, sourceSize, kernelSize int) layout {
	align := func(a uint64) uint64 {
		b := uint64(blockSize)
		return (a + b - 1) / b * b
	}
	src := uint64(baseAddr)
	weight := align(src + uint64(sourceSize)*wordSize)
	target := align(weight + uint64(kernelSize)*wordSize)
	return layout{bases: [3]uint64{src, weight, target}}
}

func (l layout) addr(a kernels.Access) uint64 {
	return l.bases[a.Buffer] + uint64(a.Index)*wordSize
}

// PredictConvolution replays the access order of s over a cold cache.
func PredictConvolution(config Config, s kernels.Schedule, sourceSize, kernelSize int) (Prediction, error) {
	c, err := New(config)
	if err != nil {
		return Prediction{}, err
	}
	l := newLayout(config.BlockSize, sourceSize, kernelSize)

	var stall uint64
	err = kernels.Trace(s, sourceSize, kernelSize, func(a kernels.Access) {
		var r AccessResult
		if a.Write {
			r = c.Write(l.addr(a))
		} else {
			r = c.Read(l.addr(a))
		}
		if !r.Hit && r.Latency > config.HitLatency {
			stall += r.Latency - config.HitLatency
		}
	})
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{Stats: c.Stats(), StallCycles: stall}, nil
}
