// Package phys simulates physical memory and hands out fixed-size frames.
package phys

import "log"

// PageShift is the number of bits in a page offset.
const PageShift = 12

// PageSize is the size of a physical frame in bytes.
const PageSize = 1 << PageShift

// KernBase is the physical address where RAM starts.
const KernBase uint64 = 0x80000000

// A Frame is a physical page number.
type Frame uint64

// FrameOf returns the frame that contains the physical address.
func FrameOf(addr uint64) Frame {
	return Frame(addr >> PageShift)
}

// Address returns the physical address of the first byte of the frame.
func (f Frame) Address() uint64 {
	return uint64(f) << PageShift
}

// Memory is a contiguous region of simulated RAM.
type Memory struct {
	base  Frame
	bytes []byte
}

// NewMemory creates a memory that covers numFrames frames starting at
// KernBase.
func NewMemory(numFrames int) *Memory {
	if numFrames <= 0 {
		log.Panicf("memory must have at least one frame, got %d", numFrames)
	}

	return &Memory{
		base:  FrameOf(KernBase),
		bytes: make([]byte, numFrames*PageSize),
	}
}

// NumFrames returns the number of frames in the memory.
func (m *Memory) NumFrames() int {
	return len(m.bytes) / PageSize
}

// FirstFrame returns the lowest frame number of the memory.
func (m *Memory) FirstFrame() Frame {
	return m.base
}

// Contains checks if the frame is backed by this memory.
func (m *Memory) Contains(f Frame) bool {
	return f >= m.base && f < m.base+Frame(m.NumFrames())
}

// Data returns the bytes of a frame. Writes to the slice are writes to the
// frame.
func (m *Memory) Data(f Frame) []byte {
	if !m.Contains(f) {
		log.Panicf("frame 0x%x is outside physical memory", uint64(f))
	}

	offset := int(f-m.base) * PageSize

	return m.bytes[offset : offset+PageSize : offset+PageSize]
}
