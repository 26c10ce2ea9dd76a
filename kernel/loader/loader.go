// Package loader turns named program images into fresh address spaces.
package loader

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sarchlab/rvkernel/kernel/isa"
	"github.com/sarchlab/rvkernel/mem/phys"
	"github.com/sarchlab/rvkernel/mem/vm"
)

// StackPages is the size of the initial user stack.
const StackPages = 2

// ErrNoSuchProgram is returned for names that are not registered.
var ErrNoSuchProgram = errors.New("no such program")

// A Program is a loaded image, ready to run.
type Program struct {
	Space    *vm.AddressSpace
	Entry    uint64
	StackTop uint64
}

// An Image is an assembled program stored under a name.
type Image struct {
	Name    string
	Program isa.Program
}

// A Registry keeps program images and loads them into new address spaces.
type Registry struct {
	alloc  phys.FrameAllocator
	images map[string]Image
}

// NewRegistry creates an empty registry that takes frames from alloc.
func NewRegistry(alloc phys.FrameAllocator) *Registry {
	return &Registry{
		alloc:  alloc,
		images: make(map[string]Image),
	}
}

// Register adds an image. A later image with the same name replaces the
// earlier one.
func (r *Registry) Register(img Image) {
	r.images[img.Name] = img
}

// Names lists the registered programs in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.images))
	for name := range r.images {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Load builds the address space of a program. The text is mapped read and
// execute, the data read and write. A guard page separates the data from a
// small stack, and the heap starts empty at the stack top.
func (r *Registry) Load(name string) (Program, error) {
	img, ok := r.images[name]
	if !ok {
		return Program{}, fmt.Errorf("load %q: %w", name, ErrNoSuchProgram)
	}

	as, err := vm.NewAddressSpace(r.alloc)
	if err != nil {
		return Program{}, fmt.Errorf("load %q: %w", name, err)
	}

	prog, err := r.layout(as, img.Program)
	if err != nil {
		as.Destroy()
		return Program{}, fmt.Errorf("load %q: %w", name, err)
	}

	return prog, nil
}

func (r *Registry) layout(as *vm.AddressSpace, p isa.Program) (Program, error) {
	err := mapSegment(as, p.TextBase, p.Text, vm.FlagRead|vm.FlagExec)
	if err != nil {
		return Program{}, err
	}

	err = mapSegment(as, p.DataBase, p.Data, vm.FlagRead|vm.FlagWrite)
	if err != nil {
		return Program{}, err
	}

	dataEnd := max(
		vm.PageRoundUp(p.DataBase+uint64(len(p.Data))),
		vm.PageRoundUp(p.TextBase+uint64(len(p.Text))),
	)
	stackBase := dataEnd + phys.PageSize
	stackTop := stackBase + StackPages*phys.PageSize

	err = as.MapUser(stackBase, StackPages, vm.FlagRead|vm.FlagWrite)
	if err != nil {
		return Program{}, err
	}

	as.SetHeap(stackTop)

	return Program{Space: as, Entry: p.Entry, StackTop: stackTop}, nil
}

func mapSegment(as *vm.AddressSpace, base uint64, b []byte, perm vm.PTEFlags) error {
	pages := vm.PageRoundUp(uint64(len(b))) / phys.PageSize
	if pages == 0 {
		return nil
	}

	err := as.MapUser(base, pages, perm)
	if err != nil {
		return err
	}

	return as.Write(base, b, 0)
}
