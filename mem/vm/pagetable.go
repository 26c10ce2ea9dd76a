package vm

import (
	"encoding/binary"
	"fmt"
	"log"

	"github.com/sarchlab/rvkernel/mem/phys"
)

// A PageTable is a three-level radix tree that translates virtual pages to
// physical frames. The nodes of the tree live in frames taken from the
// allocator.
type PageTable struct {
	alloc      phys.FrameAllocator
	root       phys.Frame
	tableCount int
}

// NewPageTable allocates an empty root node.
func NewPageTable(alloc phys.FrameAllocator) (*PageTable, error) {
	root, err := alloc.Allocate()
	if err != nil {
		return nil, fmt.Errorf("allocating page table root: %w", err)
	}

	pt := &PageTable{
		alloc:      alloc,
		root:       root,
		tableCount: 1,
	}

	return pt, nil
}

// Root returns the frame of the root node, the value that would be written
// into satp.
func (pt *PageTable) Root() phys.Frame {
	return pt.root
}

// NumTableFrames returns how many frames the nodes of the tree occupy.
func (pt *PageTable) NumTableFrames() int {
	return pt.tableCount
}

// Map installs a leaf mapping from the page that contains va to the frame.
// Missing intermediate nodes are allocated on the way and are kept even if
// the mapping fails later.
func (pt *PageTable) Map(va uint64, f phys.Frame, perm PTEFlags) error {
	if va >= MaxVA {
		return fmt.Errorf("map 0x%x: %w", va, ErrInvalidArgument)
	}

	if perm&(FlagRead|FlagWrite|FlagExec) == 0 {
		return fmt.Errorf("map 0x%x without rwx: %w", va, ErrInvalidArgument)
	}

	slot, err := pt.walk(va, true)
	if err != nil {
		return fmt.Errorf("map 0x%x: %w", va, err)
	}

	if pt.load(slot).Valid() {
		return fmt.Errorf("map 0x%x: %w", va, ErrRemap)
	}

	pt.store(slot, MakePTE(f, perm|FlagValid))

	return nil
}

// Unmap clears the leaf mapping of the page that contains va. If freeFrame
// is set, the backing frame goes back to the allocator.
func (pt *PageTable) Unmap(va uint64, freeFrame bool) error {
	if va >= MaxVA {
		return fmt.Errorf("unmap 0x%x: %w", va, ErrNotMapped)
	}

	slot, err := pt.walk(va, false)
	if err != nil {
		return fmt.Errorf("unmap 0x%x: %w", va, err)
	}

	e := pt.load(slot)
	if !e.Valid() {
		return fmt.Errorf("unmap 0x%x: %w", va, ErrNotMapped)
	}

	pt.store(slot, 0)

	if freeFrame {
		pt.alloc.Release(e.Frame())
	}

	return nil
}

// Lookup returns the leaf entry of the page that contains va.
func (pt *PageTable) Lookup(va uint64) (PTE, bool) {
	if va >= MaxVA {
		return 0, false
	}

	slot, err := pt.walk(va, false)
	if err != nil {
		return 0, false
	}

	e := pt.load(slot)
	if !e.Valid() {
		return 0, false
	}

	return e, true
}

// Translate returns the physical address that va maps to.
func (pt *PageTable) Translate(va uint64) (uint64, bool) {
	e, ok := pt.Lookup(va)
	if !ok {
		return 0, false
	}

	return e.Frame().Address() | va&(phys.PageSize-1), true
}

// Visit calls fn for every valid leaf in ascending virtual address order.
// fn must not modify the table.
func (pt *PageTable) Visit(fn func(va uint64, e PTE)) {
	pt.visitNode(pt.root, Levels-1, 0, fn)
}

func (pt *PageTable) visitNode(
	node phys.Frame,
	level int,
	base uint64,
	fn func(va uint64, e PTE),
) {
	for i := 0; i < entriesPerPT; i++ {
		e := pt.load(pteSlot{node: node, index: i})
		if !e.Valid() {
			continue
		}

		va := base | uint64(i)<<(phys.PageShift+indexBits*level)
		if level == 0 {
			fn(va, e)
			continue
		}

		pt.visitNode(e.Frame(), level-1, va, fn)
	}
}

// FreeTables releases every node of the tree. All leaves must have been
// unmapped before.
func (pt *PageTable) FreeTables() {
	pt.freeNode(pt.root, Levels-1)
	pt.tableCount = 0
}

func (pt *PageTable) freeNode(node phys.Frame, level int) {
	for i := 0; i < entriesPerPT; i++ {
		slot := pteSlot{node: node, index: i}
		e := pt.load(slot)
		if !e.Valid() {
			continue
		}

		if e.IsLeaf() || level == 0 {
			log.Panicf("page table node 0x%x still maps a page at index %d",
				uint64(node), i)
		}

		pt.freeNode(e.Frame(), level-1)
		pt.store(slot, 0)
	}

	pt.alloc.Release(node)
}

type pteSlot struct {
	node  phys.Frame
	index int
}

// walk finds the level-0 slot for va. With create set, missing nodes are
// allocated.
func (pt *PageTable) walk(va uint64, create bool) (pteSlot, error) {
	node := pt.root

	for level := Levels - 1; level > 0; level-- {
		slot := pteSlot{node: node, index: PageIndex(level, va)}
		e := pt.load(slot)

		if e.Valid() {
			if e.IsLeaf() {
				log.Panicf("superpage at level %d is not supported", level)
			}

			node = e.Frame()

			continue
		}

		if !create {
			return pteSlot{}, ErrNotMapped
		}

		next, err := pt.alloc.Allocate()
		if err != nil {
			return pteSlot{}, err
		}

		pt.tableCount++
		pt.store(slot, MakePTE(next, FlagValid))
		node = next
	}

	return pteSlot{node: node, index: PageIndex(0, va)}, nil
}

func (pt *PageTable) load(s pteSlot) PTE {
	data := pt.alloc.Data(s.node)
	return PTE(binary.LittleEndian.Uint64(data[s.index*pteSize:]))
}

func (pt *PageTable) store(s pteSlot, e PTE) {
	data := pt.alloc.Data(s.node)
	binary.LittleEndian.PutUint64(data[s.index*pteSize:], uint64(e))
}
