package counters_test

import (
	"errors"
	"runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/sys/unix"

	"github.com/sarchlab/tilebench/timing/counters"
)

var _ = Describe("Counter enabling", func() {
	It("should disable the enabled counters when a later one fails", func() {
		failed := errors.New("enable failed")
		var enabled, disabled []int

		err := counters.EnableAll(4,
			func(i int) error {
				if i == 2 {
					return failed
				}
				enabled = append(enabled, i)
				return nil
			},
			func(i int) { disabled = append(disabled, i) })

		Expect(err).To(MatchError(failed))
		Expect(enabled).To(Equal([]int{0, 1}))
		Expect(disabled).To(Equal([]int{1, 0}))
	})

	It("should disable nothing when every counter enables", func() {
		var disabled []int
		err := counters.EnableAll(3,
			func(int) error { return nil },
			func(i int) { disabled = append(disabled, i) })
		Expect(err).NotTo(HaveOccurred())
		Expect(disabled).To(BeEmpty())
	})
})

var _ = Describe("PinToCPU", func() {
	It("should restore the previous affinity mask on undo", func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		var before unix.CPUSet
		Expect(unix.SchedGetaffinity(0, &before)).To(Succeed())
		cpu := -1
		for i := 0; i < len(before)*64; i++ {
			if before.IsSet(i) {
				cpu = i
				break
			}
		}
		Expect(cpu).To(BeNumerically(">=", 0))

		unpin, err := counters.PinToCPU(cpu)
		Expect(err).NotTo(HaveOccurred())

		var pinned unix.CPUSet
		Expect(unix.SchedGetaffinity(0, &pinned)).To(Succeed())
		Expect(pinned.Count()).To(Equal(1))
		Expect(pinned.IsSet(cpu)).To(BeTrue())

		unpin()

		var after unix.CPUSet
		Expect(unix.SchedGetaffinity(0, &after)).To(Succeed())
		Expect(after).To(Equal(before))
	})
})
