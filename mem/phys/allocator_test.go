package phys

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FreeListAllocator", func() {
	var (
		mem   *Memory
		alloc FrameAllocator
	)

	BeforeEach(func() {
		mem = NewMemory(4)
		alloc = NewFreeListAllocator(mem)
	})

	It("should start with every frame free", func() {
		Expect(alloc.NumFree()).To(Equal(4))
		Expect(alloc.NumFrames()).To(Equal(4))
	})

	It("should hand out distinct frames until exhausted", func() {
		seen := map[Frame]bool{}
		for i := 0; i < 4; i++ {
			f, err := alloc.Allocate()
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).NotTo(HaveKey(f))
			Expect(alloc.IsAllocated(f)).To(BeTrue())
			seen[f] = true
		}

		_, err := alloc.Allocate()
		Expect(err).To(MatchError(ErrOutOfMemory))
	})

	It("should hand out the lowest frame first", func() {
		f, err := alloc.Allocate()

		Expect(err).NotTo(HaveOccurred())
		Expect(f.Address()).To(Equal(KernBase))
	})

	It("should zero frames on allocation", func() {
		f, _ := alloc.Allocate()
		alloc.Data(f)[10] = 0xab
		alloc.Release(f)

		g, _ := alloc.Allocate()

		Expect(g).To(Equal(f))
		Expect(alloc.Data(g)[10]).To(Equal(byte(0)))
	})

	It("should return released frames to the pool", func() {
		f, _ := alloc.Allocate()
		Expect(alloc.NumFree()).To(Equal(3))

		alloc.Release(f)

		Expect(alloc.NumFree()).To(Equal(4))
		Expect(alloc.IsAllocated(f)).To(BeFalse())
	})

	It("should panic when releasing a free frame", func() {
		f, _ := alloc.Allocate()
		alloc.Release(f)

		Expect(func() { alloc.Release(f) }).To(Panic())
	})

	It("should panic when releasing a frame outside memory", func() {
		Expect(func() { alloc.Release(Frame(1)) }).To(Panic())
	})
})

var _ = Describe("Memory", func() {
	It("should map frames to disjoint slices", func() {
		mem := NewMemory(2)
		first := mem.FirstFrame()

		mem.Data(first)[PageSize-1] = 1
		mem.Data(first + 1)[0] = 2

		Expect(mem.Data(first)[PageSize-1]).To(Equal(byte(1)))
		Expect(mem.Data(first + 1)[0]).To(Equal(byte(2)))
		Expect(mem.Data(first)).To(HaveLen(PageSize))
	})

	It("should convert between frames and addresses", func() {
		f := FrameOf(KernBase + 3*PageSize + 17)

		Expect(f.Address()).To(Equal(KernBase + 3*PageSize))
	})

	It("should panic for frames outside memory", func() {
		mem := NewMemory(1)

		Expect(func() { mem.Data(mem.FirstFrame() + 1) }).To(Panic())
	})
})
