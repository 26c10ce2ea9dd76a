package vm

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/rvkernel/mem/phys"
)

var _ = Describe("PTE", func() {
	It("should encode frame and flags", func() {
		e := MakePTE(phys.Frame(0x80123), FlagValid|FlagRead|FlagUser)

		Expect(e.Frame()).To(Equal(phys.Frame(0x80123)))
		Expect(e.Valid()).To(BeTrue())
		Expect(e.IsLeaf()).To(BeTrue())
		Expect(e.HasFlags(FlagWrite)).To(BeFalse())
	})

	It("should split virtual addresses into indices", func() {
		va := uint64(3)<<30 | uint64(5)<<21 | uint64(7)<<12 | 0x123

		Expect(PageIndex(2, va)).To(Equal(3))
		Expect(PageIndex(1, va)).To(Equal(5))
		Expect(PageIndex(0, va)).To(Equal(7))
	})

	It("should round addresses", func() {
		Expect(PageRoundUp(1)).To(Equal(uint64(4096)))
		Expect(PageRoundUp(4096)).To(Equal(uint64(4096)))
		Expect(PageRoundDown(8191)).To(Equal(uint64(4096)))
	})
})

var _ = Describe("PageTable", func() {
	var (
		alloc phys.FrameAllocator
		pt    *PageTable
	)

	BeforeEach(func() {
		alloc = phys.NewFreeListAllocator(phys.NewMemory(16))

		var err error
		pt, err = NewPageTable(alloc)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should translate a mapped page", func() {
		f, _ := alloc.Allocate()

		err := pt.Map(0x1000, f, FlagRead|FlagUser)
		Expect(err).NotTo(HaveOccurred())

		pa, ok := pt.Translate(0x1234)
		Expect(ok).To(BeTrue())
		Expect(pa).To(Equal(f.Address() + 0x234))
	})

	It("should allocate intermediate levels lazily", func() {
		Expect(pt.NumTableFrames()).To(Equal(1))

		f, _ := alloc.Allocate()
		Expect(pt.Map(0x1000, f, FlagRead)).To(Succeed())
		Expect(pt.NumTableFrames()).To(Equal(3))

		g, _ := alloc.Allocate()
		Expect(pt.Map(0x2000, g, FlagRead)).To(Succeed())
		Expect(pt.NumTableFrames()).To(Equal(3))
	})

	It("should not translate unmapped addresses", func() {
		_, ok := pt.Translate(0x5000)
		Expect(ok).To(BeFalse())

		_, ok = pt.Translate(MaxVA)
		Expect(ok).To(BeFalse())
	})

	It("should refuse to remap", func() {
		f, _ := alloc.Allocate()
		g, _ := alloc.Allocate()
		Expect(pt.Map(0x1000, f, FlagRead)).To(Succeed())

		err := pt.Map(0x1000, g, FlagWrite)

		Expect(err).To(MatchError(ErrRemap))
		pa, _ := pt.Translate(0x1000)
		Expect(pa).To(Equal(f.Address()))
	})

	It("should refuse mappings without rwx", func() {
		f, _ := alloc.Allocate()

		Expect(pt.Map(0x1000, f, FlagUser)).To(MatchError(ErrInvalidArgument))
	})

	It("should fail to unmap a page that is not mapped", func() {
		Expect(pt.Unmap(0x1000, false)).To(MatchError(ErrNotMapped))
	})

	It("should return the frame on unmap with free", func() {
		f, _ := alloc.Allocate()
		Expect(pt.Map(0x1000, f, FlagRead)).To(Succeed())
		freeAfterMap := alloc.NumFree()

		Expect(pt.Unmap(0x1000, true)).To(Succeed())

		Expect(alloc.IsAllocated(f)).To(BeFalse())
		Expect(alloc.NumFree()).To(Equal(freeAfterMap + 1))
		_, ok := pt.Translate(0x1000)
		Expect(ok).To(BeFalse())
	})

	It("should keep partially built levels when running out of memory", func() {
		for alloc.NumFree() > 1 {
			_, _ = alloc.Allocate()
		}

		err := pt.Map(0x1000, phys.FrameOf(phys.KernBase), FlagRead)

		Expect(err).To(MatchError(phys.ErrOutOfMemory))
		Expect(pt.NumTableFrames()).To(Equal(2))
		_, ok := pt.Translate(0x1000)
		Expect(ok).To(BeFalse())
	})

	It("should visit leaves in address order", func() {
		for _, va := range []uint64{0x40000000, 0x1000, 0x3000} {
			f, _ := alloc.Allocate()
			Expect(pt.Map(va, f, FlagRead)).To(Succeed())
		}

		var visited []uint64
		pt.Visit(func(va uint64, _ PTE) { visited = append(visited, va) })

		Expect(visited).To(Equal([]uint64{0x1000, 0x3000, 0x40000000}))
	})

	It("should free every table frame", func() {
		free := alloc.NumFree()
		f, _ := alloc.Allocate()
		Expect(pt.Map(0x1000, f, FlagRead)).To(Succeed())
		Expect(pt.Unmap(0x1000, true)).To(Succeed())

		pt.FreeTables()

		Expect(alloc.NumFree()).To(Equal(free + 1))
	})

	It("should panic when freeing tables with live leaves", func() {
		f, _ := alloc.Allocate()
		Expect(pt.Map(0x1000, f, FlagRead)).To(Succeed())

		Expect(func() { pt.FreeTables() }).To(Panic())
	})
})
