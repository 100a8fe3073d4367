package kernels

import "fmt"

// Schedule describes the loop structure of a convolution variant: which
// loop is outermost and how wide each weight chunk is. Two schedules over
// the same inputs compute the same result; they differ only in the order
// in which memory is touched.
type Schedule struct {
	// KernelOuter puts the chunk loop outside the output loop.
	KernelOuter bool
	// Chunk is the chunk width; 0 means a single chunk of the whole kernel.
	Chunk int
}

// Buffer identifies one of the three convolution operands.
type Buffer int

const (
	Source Buffer = iota
	Weight
	Target
)

// Access is one element touch in a schedule's trace.
type Access struct {
	Buffer Buffer
	Index  int
	Write  bool
}

// Variant pairs a convolution entry point with the schedule it follows.
type Variant struct {
	Name     string
	Fn       func(source, weight, target []uint64, tileSize int32) error
	Schedule func(tileSize int32) (Schedule, error)
}

func fixedSchedule(s Schedule) func(int32) (Schedule, error) {
	return func(int32) (Schedule, error) { return s, nil }
}

func tileSchedule(kernelOuter bool) func(int32) (Schedule, error) {
	return func(tileSize int32) (Schedule, error) {
		if err := checkTile(tileSize); err != nil {
			return Schedule{}, err
		}
		return Schedule{KernelOuter: kernelOuter, Chunk: int(tileSize)}, nil
	}
}

func alignedSchedule(tileSize int32) (Schedule, error) {
	if tileSize < 8 {
		return Schedule{}, fmt.Errorf("%w: tile size %d below 8", ErrInvalidParameter, tileSize)
	}
	return Schedule{KernelOuter: true, Chunk: int(tileSize / 8 * 8)}, nil
}

// Variants returns the builtin convolution family.
func Variants() []Variant {
	return []Variant{
		{"convolution", Convolution, fixedSchedule(Schedule{})},
		{"convolution_new_loop", NewLoop, tileSchedule(false)},
		{"convolution_split", Split, fixedSchedule(Schedule{Chunk: SplitChunk})},
		{"convolution_tiled", Tiled, tileSchedule(true)},
		{"convolution_tiled_unrolled", TiledUnrolled, tileSchedule(true)},
		{"convolution_tiled_split", TiledSplit, alignedSchedule},
		{"convolution_tiled_fixed_tile", TiledFixedTile, fixedSchedule(Schedule{KernelOuter: true, Chunk: FixedTile})},
	}
}

// chunks calls fn for each [start, end) chunk of a kernel of length k.
func (s Schedule) chunks(k int, fn func(start, end int)) {
	width := s.Chunk
	if width <= 0 {
		width = k
	}
	if width == 0 {
		return
	}
	for jj := 0; jj < k; jj += width {
		fn(jj, min(jj+width, k))
	}
}

// Convolve is the reference implementation of s. It accumulates into
// target exactly like the variant that follows s.
func Convolve(s Schedule, source, weight, target []uint64) error {
	n, err := outputLen(source, weight, target)
	if err != nil {
		return err
	}
	s.walk(n, len(weight), func(i, j int) {
		target[i] += source[i+j] * weight[j]
	})
	return nil
}

// Trace reports every element access s makes for the given operand sizes,
// in program order: source, weight, target read, target write.
func Trace(s Schedule, sourceSize, kernelSize int, visit func(Access)) error {
	if kernelSize > sourceSize {
		return fmt.Errorf("%w: kernel size %d exceeds source size %d",
			ErrInvalidParameter, kernelSize, sourceSize)
	}
	n := sourceSize - kernelSize
	s.walk(n, kernelSize, func(i, j int) {
		visit(Access{Buffer: Source, Index: i + j})
		visit(Access{Buffer: Weight, Index: j})
		visit(Access{Buffer: Target, Index: i})
		visit(Access{Buffer: Target, Index: i, Write: true})
	})
	return nil
}

func (s Schedule) walk(n, k int, body func(i, j int)) {
	if s.KernelOuter {
		s.chunks(k, func(start, end int) {
			for i := 0; i < n; i++ {
				for j := start; j < end; j++ {
					body(i, j)
				}
			}
		})
		return
	}
	for i := 0; i < n; i++ {
		s.chunks(k, func(start, end int) {
			for j := start; j < end; j++ {
				body(i, j)
			}
		})
	}
}
