package kernels_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tilebench/kernels"
)

func ramp(n int, mul uint64) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = uint64(i+1)*mul + 7
	}
	return out
}

// naive is the textbook definition, independent of any schedule.
func naive(source, weight []uint64) []uint64 {
	n := len(source) - len(weight)
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		for j := range weight {
			out[i] += source[i+j] * weight[j]
		}
	}
	return out
}

var _ = Describe("Convolution variants", func() {
	shapes := []struct{ src, kernel int }{
		{64, 64},
		{300, 1},
		{300, 17},
		{1024, 64},
		{2200, 130},
		{4096 + 2100, 2100},
	}

	for _, v := range kernels.Variants() {
		v := v
		for _, tile := range []int32{8, 13, 64, 100} {
			tile := tile
			It("should match the naive sum for "+v.Name, func() {
				for _, shape := range shapes {
					source := ramp(shape.src, 3)
					weight := ramp(shape.kernel, 5)
					target := make([]uint64, shape.src-shape.kernel)

					Expect(v.Fn(source, weight, target, tile)).To(Succeed())
					Expect(target).To(Equal(naive(source, weight)),
						"source=%d kernel=%d tile=%d", shape.src, shape.kernel, tile)
				}
			})
		}
	}

	It("should accumulate onto existing target contents", func() {
		source := ramp(128, 1)
		weight := ramp(16, 1)
		target := make([]uint64, 112)
		for i := range target {
			target[i] = 1000
		}
		want := naive(source, weight)
		for i := range want {
			want[i] += 1000
		}

		Expect(kernels.TiledUnrolled(source, weight, target, 8)).To(Succeed())
		Expect(target).To(Equal(want))
	})

	It("should leave target untouched when kernel and source are equal", func() {
		source := ramp(64, 1)
		target := []uint64{42}

		Expect(kernels.Tiled(source, ramp(64, 1), target[:0], 64)).To(Succeed())
		Expect(target[0]).To(Equal(uint64(42)))
	})

	It("should handle a kernel exactly one tile long", func() {
		source := ramp(256, 2)
		weight := ramp(64, 3)
		target := make([]uint64, 192)

		Expect(kernels.TiledSplit(source, weight, target, 64)).To(Succeed())
		Expect(target).To(Equal(naive(source, weight)))
	})

	It("should use only the first size-kernel target elements", func() {
		source := ramp(100, 1)
		weight := ramp(10, 1)
		target := make([]uint64, 4096)

		Expect(kernels.Convolution(source, weight, target, 0)).To(Succeed())
		Expect(target[:90]).To(Equal(naive(source, weight)))
		Expect(target[90:]).To(HaveEach(uint64(0)))
	})

	Describe("errors", func() {
		It("should reject a kernel longer than the source", func() {
			err := kernels.Convolution(make([]uint64, 8), make([]uint64, 16), nil, 0)
			Expect(err).To(MatchError(kernels.ErrInvalidParameter))
		})

		It("should reject a target shorter than the output", func() {
			err := kernels.Tiled(make([]uint64, 64), make([]uint64, 8), make([]uint64, 10), 8)
			Expect(err).To(MatchError(kernels.ErrInvalidParameter))
		})

		It("should reject a non-positive tile", func() {
			for _, fn := range []func([]uint64, []uint64, []uint64, int32) error{
				kernels.NewLoop, kernels.Tiled, kernels.TiledUnrolled,
			} {
				err := fn(make([]uint64, 64), make([]uint64, 8), make([]uint64, 56), 0)
				Expect(err).To(MatchError(kernels.ErrInvalidParameter))
			}
		})

		It("should reject an aligned tile below 8", func() {
			err := kernels.TiledSplit(make([]uint64, 64), make([]uint64, 8), make([]uint64, 56), 7)
			Expect(err).To(MatchError(kernels.ErrInvalidParameter))
		})
	})
})

var _ = Describe("Schedule", func() {
	It("should describe each variant", func() {
		byName := map[string]kernels.Variant{}
		for _, v := range kernels.Variants() {
			byName[v.Name] = v
		}
		Expect(byName).To(HaveLen(7))

		s, err := byName["convolution_split"].Schedule(64)
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(kernels.Schedule{Chunk: kernels.SplitChunk}))

		s, err = byName["convolution_tiled_split"].Schedule(100)
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(kernels.Schedule{KernelOuter: true, Chunk: 96}))

		_, err = byName["convolution_tiled"].Schedule(0)
		Expect(err).To(MatchError(kernels.ErrInvalidParameter))
	})

	It("should reproduce each variant through Convolve", func() {
		source := ramp(700, 11)
		weight := ramp(90, 13)
		for _, v := range kernels.Variants() {
			s, err := v.Schedule(24)
			Expect(err).NotTo(HaveOccurred())

			got := make([]uint64, 610)
			want := make([]uint64, 610)
			Expect(v.Fn(source, weight, got, 24)).To(Succeed())
			Expect(kernels.Convolve(s, source, weight, want)).To(Succeed())
			Expect(got).To(Equal(want), v.Name)
		}
	})

	It("should trace four accesses per multiply-accumulate", func() {
		var reads, writes int
		err := kernels.Trace(kernels.Schedule{KernelOuter: true, Chunk: 16}, 100, 40,
			func(a kernels.Access) {
				if a.Write {
					writes++
				} else {
					reads++
				}
			})
		Expect(err).NotTo(HaveOccurred())
		Expect(writes).To(Equal(60 * 40))
		Expect(reads).To(Equal(3 * 60 * 40))
	})

	It("should visit weight chunks outermost when KernelOuter is set", func() {
		var order []int
		err := kernels.Trace(kernels.Schedule{KernelOuter: true, Chunk: 2}, 6, 4,
			func(a kernels.Access) {
				if a.Buffer == kernels.Weight {
					order = append(order, a.Index)
				}
			})
		Expect(err).NotTo(HaveOccurred())
		Expect(order).To(Equal([]int{0, 1, 0, 1, 2, 3, 2, 3}))
	})
})
