package vm

import (
	"fmt"
	"log"

	"github.com/sarchlab/rvkernel/mem/phys"
)

// MaxMmapLength bounds the length of a single mmap request.
const MaxMmapLength uint64 = 1 << 30

// An AddressSpace is the user view of memory of one process: a page table
// plus the heap bookkeeping.
type AddressSpace struct {
	pt    *PageTable
	alloc phys.FrameAllocator

	heapBottom uint64
	programBrk uint64
	maxPage    uint64
}

// NewAddressSpace creates an empty address space.
func NewAddressSpace(alloc phys.FrameAllocator) (*AddressSpace, error) {
	pt, err := NewPageTable(alloc)
	if err != nil {
		return nil, err
	}

	return &AddressSpace{pt: pt, alloc: alloc}, nil
}

// PageTable returns the underlying page table.
func (as *AddressSpace) PageTable() *PageTable {
	return as.pt
}

// HeapBottom returns the lowest address the break can move to.
func (as *AddressSpace) HeapBottom() uint64 {
	return as.heapBottom
}

// ProgramBrk returns the current heap break.
func (as *AddressSpace) ProgramBrk() uint64 {
	return as.programBrk
}

// MaxPage returns one beyond the highest virtual page number that may be
// mapped.
func (as *AddressSpace) MaxPage() uint64 {
	return as.maxPage
}

// SetHeap places an empty heap at bottom. The loader calls it once the
// image and the stack are mapped.
func (as *AddressSpace) SetHeap(bottom uint64) {
	bottom = PageRoundUp(bottom)
	as.heapBottom = bottom
	as.programBrk = bottom
	as.raiseMaxPage(bottom / phys.PageSize)
}

// Map installs a single mapping.
func (as *AddressSpace) Map(va uint64, f phys.Frame, perm PTEFlags) error {
	err := as.pt.Map(va, f, perm)
	if err != nil {
		return err
	}

	as.raiseMaxPage(va/phys.PageSize + 1)

	return nil
}

// Unmap removes a single mapping.
func (as *AddressSpace) Unmap(va uint64, freeFrame bool) error {
	return as.pt.Unmap(va, freeFrame)
}

// Translate returns the physical address that va maps to.
func (as *AddressSpace) Translate(va uint64) (uint64, bool) {
	return as.pt.Translate(va)
}

// MapUser maps n fresh zeroed frames at consecutive pages from va with the
// user bit and perm. Either all pages are mapped or none is.
func (as *AddressSpace) MapUser(va uint64, n uint64, perm PTEFlags) error {
	if va%phys.PageSize != 0 {
		return fmt.Errorf("map user 0x%x: %w", va, ErrInvalidArgument)
	}

	if n > (MaxVA-va)/phys.PageSize {
		return fmt.Errorf("map user 0x%x+%d pages: %w",
			va, n, ErrInvalidArgument)
	}

	for i := uint64(0); i < n; i++ {
		f, err := as.alloc.Allocate()
		if err != nil {
			as.rollback(va, i)
			return fmt.Errorf("map user 0x%x: %w", va, err)
		}

		err = as.pt.Map(va+i*phys.PageSize, f, perm|FlagUser)
		if err != nil {
			as.alloc.Release(f)
			as.rollback(va, i)

			return err
		}
	}

	as.raiseMaxPage(va/phys.PageSize + n)

	return nil
}

func (as *AddressSpace) rollback(va uint64, n uint64) {
	for i := uint64(0); i < n; i++ {
		err := as.pt.Unmap(va+i*phys.PageSize, true)
		if err != nil {
			log.Panicf("rolling back 0x%x: %v", va+i*phys.PageSize, err)
		}
	}
}

// Mmap maps ceil(length/PageSize) fresh pages at start. The low three bits
// of port select read, write and execute permission.
func (as *AddressSpace) Mmap(start, length, port uint64) error {
	if length == 0 {
		return nil
	}

	if start%phys.PageSize != 0 {
		return fmt.Errorf("mmap start 0x%x not aligned: %w",
			start, ErrInvalidArgument)
	}

	if length > MaxMmapLength {
		return fmt.Errorf("mmap length 0x%x too large: %w",
			length, ErrInvalidArgument)
	}

	if port&^0x7 != 0 || port&0x7 == 0 {
		return fmt.Errorf("mmap port 0x%x: %w", port, ErrInvalidArgument)
	}

	n := PageRoundUp(length) / phys.PageSize

	return as.MapUser(start, n, PTEFlags(port<<1))
}

// Munmap removes the pages in [start, start+length). Every page must be
// mapped, otherwise nothing is removed.
func (as *AddressSpace) Munmap(start, length uint64) error {
	if start%phys.PageSize != 0 {
		return fmt.Errorf("munmap start 0x%x not aligned: %w",
			start, ErrInvalidArgument)
	}

	if length == 0 {
		return nil
	}

	if length > MaxVA {
		return fmt.Errorf("munmap length 0x%x: %w", length, ErrInvalidArgument)
	}

	n := PageRoundUp(length) / phys.PageSize
	for i := uint64(0); i < n; i++ {
		va := start + i*phys.PageSize

		e, ok := as.pt.Lookup(va)
		if !ok || !e.HasFlags(FlagUser) {
			return fmt.Errorf("munmap 0x%x not mapped: %w",
				va, ErrInvalidArgument)
		}
	}

	for i := uint64(0); i < n; i++ {
		err := as.pt.Unmap(start+i*phys.PageSize, true)
		if err != nil {
			log.Panicf("munmap: %v", err)
		}
	}

	return nil
}

// Grow moves the heap break by delta bytes and returns the previous break.
// Pages are mapped or released so that the heap covers exactly the pages
// below the rounded-up break.
func (as *AddressSpace) Grow(delta int64) (uint64, error) {
	old := as.programBrk

	switch {
	case delta > 0:
		newBrk := old + uint64(delta)
		if newBrk < old || newBrk > MaxVA {
			return old, fmt.Errorf("sbrk %d: %w", delta, ErrInvalidArgument)
		}

		from, to := PageRoundUp(old), PageRoundUp(newBrk)
		if to > from {
			err := as.MapUser(from, (to-from)/phys.PageSize,
				FlagRead|FlagWrite)
			if err != nil {
				return old, fmt.Errorf("sbrk %d: %w", delta, err)
			}
		}

		as.programBrk = newBrk
	case delta < 0:
		shrink := uint64(-delta)
		if shrink > old-as.heapBottom {
			return old, fmt.Errorf("sbrk %d below heap bottom: %w",
				delta, ErrInvalidArgument)
		}

		newBrk := old - shrink
		for va := PageRoundUp(newBrk); va < PageRoundUp(old); va += phys.PageSize {
			// The page may have been munmapped by the user already.
			_ = as.pt.Unmap(va, true)
		}

		as.programBrk = newBrk
	}

	return old, nil
}

// Clone creates a copy of the address space. Every user page is copied into
// a new frame.
func (as *AddressSpace) Clone() (*AddressSpace, error) {
	child, err := NewAddressSpace(as.alloc)
	if err != nil {
		return nil, err
	}

	child.heapBottom = as.heapBottom
	child.programBrk = as.programBrk
	child.maxPage = as.maxPage

	var cloneErr error

	as.visitUserPages(func(va uint64, e PTE) {
		if cloneErr != nil {
			return
		}

		f, err := as.alloc.Allocate()
		if err != nil {
			cloneErr = err
			return
		}

		copy(as.alloc.Data(f), as.alloc.Data(e.Frame()))

		err = child.pt.Map(va, f, e.Flags()&^FlagValid)
		if err != nil {
			as.alloc.Release(f)
			cloneErr = err
		}
	})

	if cloneErr != nil {
		child.Destroy()
		return nil, fmt.Errorf("cloning address space: %w", cloneErr)
	}

	return child, nil
}

// Destroy releases all the user pages and the page table.
func (as *AddressSpace) Destroy() {
	if as.pt == nil {
		log.Panic("address space destroyed twice")
	}

	var pages []uint64
	as.visitUserPages(func(va uint64, _ PTE) {
		pages = append(pages, va)
	})

	for _, va := range pages {
		err := as.pt.Unmap(va, true)
		if err != nil {
			log.Panicf("destroying address space: %v", err)
		}
	}

	as.pt.FreeTables()
	as.pt = nil
}

// NumUserPages returns the number of mapped user pages.
func (as *AddressSpace) NumUserPages() int {
	n := 0
	as.visitUserPages(func(uint64, PTE) { n++ })

	return n
}

func (as *AddressSpace) visitUserPages(fn func(va uint64, e PTE)) {
	as.pt.Visit(func(va uint64, e PTE) {
		if va/phys.PageSize >= as.maxPage {
			log.Panicf("page 0x%x mapped above max page 0x%x",
				va, as.maxPage)
		}

		fn(va, e)
	})
}

func (as *AddressSpace) raiseMaxPage(page uint64) {
	if page > as.maxPage {
		as.maxPage = page
	}
}
