// Package dev provides the console and timer devices that the kernel talks
// to.
package dev

import (
	"bufio"
	"io"
	"log"
	"sync/atomic"
)

// CyclesPerSecond is the frequency of the cycle counter.
const CyclesPerSecond = 12_500_000

// A Console moves single bytes to and from the terminal.
type Console interface {
	// PutChar writes one byte.
	PutChar(c byte)

	// GetChar blocks until a byte is available. It returns false once the
	// input is closed.
	GetChar() (byte, bool)
}

// A Timer exposes the read-only cycle counter.
type Timer interface {
	ReadCycleCounter() uint64
}

// StdioConsole is a Console backed by a reader and a writer.
type StdioConsole struct {
	in  *bufio.Reader
	out *bufio.Writer
}

// NewStdioConsole creates a console. Output is buffered until Flush or a
// newline.
func NewStdioConsole(in io.Reader, out io.Writer) *StdioConsole {
	return &StdioConsole{
		in:  bufio.NewReader(in),
		out: bufio.NewWriter(out),
	}
}

// PutChar writes one byte.
func (c *StdioConsole) PutChar(b byte) {
	err := c.out.WriteByte(b)
	if err != nil {
		log.Panic(err)
	}

	if b == '\n' {
		c.Flush()
	}
}

// GetChar reads one byte.
func (c *StdioConsole) GetChar() (byte, bool) {
	c.Flush()

	b, err := c.in.ReadByte()
	if err != nil {
		return 0, false
	}

	return b, true
}

// Flush writes out buffered output.
func (c *StdioConsole) Flush() {
	err := c.out.Flush()
	if err != nil {
		log.Panic(err)
	}
}

// CycleCounter is a Timer driven by the simulated hart.
type CycleCounter struct {
	cycles atomic.Uint64
}

// ReadCycleCounter returns the number of cycles elapsed.
func (c *CycleCounter) ReadCycleCounter() uint64 {
	return c.cycles.Load()
}

// Advance moves the counter forward.
func (c *CycleCounter) Advance(n uint64) {
	c.cycles.Add(n)
}
