package kernels_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tilebench/kernels"
	"github.com/sarchlab/tilebench/registry"
)

var _ = Describe("Micro kernels", func() {
	It("should add vectors over the common prefix", func() {
		a := []uint64{1, 2, 3, 4}
		b := []uint64{10, 20, 30}
		c := []uint64{0, 0, 0, 0, 99}

		Expect(kernels.VectorAdd(a, b, c)).To(Succeed())
		Expect(c).To(Equal([]uint64{11, 22, 33, 0, 99}))
	})

	It("should reject a zero stride", func() {
		Expect(kernels.StridedSum([]uint64{1}, 0)).To(MatchError(kernels.ErrInvalidParameter))
	})

	It("should run the scalar kernels without error", func() {
		Expect(kernels.Sum(make([]uint64, 32))).To(Succeed())
		Expect(kernels.StridedSum(make([]uint64, 32), 5)).To(Succeed())
		Expect(kernels.Dot(make([]uint64, 8), make([]uint64, 4))).To(Succeed())
		Expect(kernels.ByteSum(make([]byte, 17))).To(Succeed())
		Expect(kernels.AllocFill(0, 1)).To(Succeed())
		Expect(kernels.AllocFill(1024, 1)).To(Succeed())
	})

	It("should register every builtin", func() {
		f := registry.NewFunctions()
		Expect(registry.Install(f, kernels.Builtin)).To(Succeed())
		Expect(f.Len()).To(Equal(13))

		rec, err := f.Resolve("convolution_tiled_fixed_tile")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Kind).To(Equal(registry.KindConvolution))

		rec, err = f.Resolve("byte_sum")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Kind).To(Equal(registry.KindRawBytes))
		Expect(rec.Check).To(BeNil())
	})

	DescribeTable("tile_size checks of the convolution variants",
		func(name string, tile uint64, ok bool) {
			f := registry.NewFunctions()
			Expect(registry.Install(f, kernels.Builtin)).To(Succeed())
			rec, err := f.Resolve(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Check).NotTo(BeNil())

			err = rec.Check(map[string]uint64{"tile_size": tile})
			if ok {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(err).To(MatchError(kernels.ErrInvalidParameter))
			}
		},
		Entry("direct ignores the tile", "convolution", uint64(0), true),
		Entry("split ignores the tile", "convolution_split", uint64(0), true),
		Entry("new loop needs a positive tile", "convolution_new_loop", uint64(0), false),
		Entry("tiled needs a positive tile", "convolution_tiled", uint64(0), false),
		Entry("tiled unrolled accepts 3", "convolution_tiled_unrolled", uint64(3), true),
		Entry("tiled split rejects 7", "convolution_tiled_split", uint64(7), false),
		Entry("tiled split accepts 8", "convolution_tiled_split", uint64(8), true),
	)
})
