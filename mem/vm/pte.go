// Package vm implements Sv39 page tables and per-process address spaces.
package vm

import "github.com/sarchlab/rvkernel/mem/phys"

// Sv39 geometry.
const (
	Levels       = 3
	indexBits    = 9
	entriesPerPT = 1 << indexBits
	pteSize      = 8

	// MaxVA is one beyond the highest user virtual address. Sv39 allows
	// 1<<39, but the top half is left to the kernel, as in xv6.
	MaxVA uint64 = 1 << (indexBits*Levels + phys.PageShift - 1)
)

// PTEFlags are the permission and status bits of a page table entry.
type PTEFlags uint64

// Page table entry flags.
const (
	FlagValid PTEFlags = 1 << iota
	FlagRead
	FlagWrite
	FlagExec
	FlagUser

	flagMask PTEFlags = 0x3ff
)

// A PTE is one entry of a page table node.
type PTE uint64

// MakePTE creates an entry that points to the frame.
func MakePTE(f phys.Frame, flags PTEFlags) PTE {
	return PTE(uint64(f)<<10 | uint64(flags&flagMask))
}

// Frame returns the frame that the entry points to.
func (e PTE) Frame() phys.Frame {
	return phys.Frame(uint64(e) >> 10)
}

// Flags returns the flag bits.
func (e PTE) Flags() PTEFlags {
	return PTEFlags(e) & flagMask
}

// HasFlags returns true if all the given flags are set.
func (e PTE) HasFlags(flags PTEFlags) bool {
	return e.Flags()&flags == flags
}

// Valid returns true if the V bit is set.
func (e PTE) Valid() bool {
	return e.HasFlags(FlagValid)
}

// IsLeaf returns true if the entry maps a page rather than pointing to the
// next level.
func (e PTE) IsLeaf() bool {
	return e.Flags()&(FlagRead|FlagWrite|FlagExec) != 0
}

// PageIndex extracts the index into the node of the given level (2 is the
// root) from a virtual address.
func PageIndex(level int, va uint64) int {
	shift := phys.PageShift + indexBits*level
	return int((va >> shift) & (entriesPerPT - 1))
}

// PageRoundDown aligns the address down to a page boundary.
func PageRoundDown(a uint64) uint64 {
	return a &^ (phys.PageSize - 1)
}

// PageRoundUp aligns the address up to a page boundary.
func PageRoundUp(a uint64) uint64 {
	return (a + phys.PageSize - 1) &^ (phys.PageSize - 1)
}
