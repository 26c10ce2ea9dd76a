package phys

import (
	"errors"
	"log"
)

// ErrOutOfMemory is returned when no free frame is left.
var ErrOutOfMemory = errors.New("out of physical memory")

// A FrameAllocator owns the pool of physical frames.
type FrameAllocator interface {
	// Allocate returns a zero-filled frame that no one else owns.
	Allocate() (Frame, error)

	// Release returns a frame to the pool. Releasing a frame that is not
	// allocated is a kernel bug and panics.
	Release(f Frame)

	// Data returns the content of the frame.
	Data(f Frame) []byte

	// IsAllocated checks if the frame is currently handed out.
	IsAllocated(f Frame) bool

	// NumFree returns the number of frames that can still be allocated.
	NumFree() int

	// NumFrames returns the total number of frames managed.
	NumFrames() int
}

// freeListAllocator keeps free frames on a stack.
type freeListAllocator struct {
	mem       *Memory
	freeList  []Frame
	allocated []bool
}

// NewFreeListAllocator creates an allocator that manages every frame of the
// memory.
func NewFreeListAllocator(mem *Memory) FrameAllocator {
	a := &freeListAllocator{
		mem:       mem,
		freeList:  make([]Frame, 0, mem.NumFrames()),
		allocated: make([]bool, mem.NumFrames()),
	}

	// Push in reverse so that the lowest frame is handed out first.
	for i := mem.NumFrames() - 1; i >= 0; i-- {
		a.freeList = append(a.freeList, mem.FirstFrame()+Frame(i))
	}

	return a
}

func (a *freeListAllocator) Allocate() (Frame, error) {
	n := len(a.freeList)
	if n == 0 {
		return 0, ErrOutOfMemory
	}

	f := a.freeList[n-1]
	a.freeList = a.freeList[:n-1]
	a.allocated[a.index(f)] = true

	clear(a.mem.Data(f))

	return f, nil
}

func (a *freeListAllocator) Release(f Frame) {
	if !a.mem.Contains(f) {
		log.Panicf("releasing frame 0x%x outside physical memory",
			uint64(f))
	}

	i := a.index(f)
	if !a.allocated[i] {
		log.Panicf("releasing frame 0x%x that is not allocated", uint64(f))
	}

	a.allocated[i] = false
	a.freeList = append(a.freeList, f)
}

func (a *freeListAllocator) Data(f Frame) []byte {
	return a.mem.Data(f)
}

func (a *freeListAllocator) IsAllocated(f Frame) bool {
	return a.mem.Contains(f) && a.allocated[a.index(f)]
}

func (a *freeListAllocator) NumFree() int {
	return len(a.freeList)
}

func (a *freeListAllocator) NumFrames() int {
	return a.mem.NumFrames()
}

func (a *freeListAllocator) index(f Frame) int {
	return int(f - a.mem.FirstFrame())
}
