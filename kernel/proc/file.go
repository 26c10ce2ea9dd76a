package proc

import (
	"errors"
	"fmt"

	"github.com/sarchlab/rvkernel/kernel/fs"
)

var (
	// ErrBadFD is returned for descriptors that are out of range or unused.
	ErrBadFD = errors.New("bad file descriptor")

	// ErrTooManyFiles is returned when the descriptor table is full.
	ErrTooManyFiles = errors.New("too many open files")
)

// A File is what a descriptor refers to. It is either a *Stream or an
// *InodeFile.
type File interface {
	file()
}

// StreamKind selects a console stream.
type StreamKind int

// Console streams.
const (
	Stdin StreamKind = iota
	Stdout
	Stderr
)

// A Stream is a console stream.
type Stream struct {
	Kind StreamKind
}

func (*Stream) file() {}

// Readable tells if the stream accepts read.
func (s *Stream) Readable() bool {
	return s.Kind == Stdin
}

// Writable tells if the stream accepts write.
func (s *Stream) Writable() bool {
	return s.Kind != Stdin
}

// An InodeFile is an open named file.
type InodeFile struct {
	Inode    fs.Inode
	Offset   uint64
	Readable bool
	Writable bool
}

func (*InodeFile) file() {}

// An OpenFile is a reference-counted descriptor table entry. Forked
// processes share entries.
type OpenFile struct {
	File File
	refs int
}

// Refs returns the number of descriptor tables that hold the entry.
func (f *OpenFile) Refs() int {
	return f.refs
}

// Install puts f into the lowest free descriptor of p.
func (t *Table) Install(p *Process, f File) (int, error) {
	for fd, of := range p.Files {
		if of == nil {
			p.Files[fd] = &OpenFile{File: f, refs: 1}
			return fd, nil
		}
	}

	return -1, ErrTooManyFiles
}

// FileAt returns the entry of descriptor fd.
func (t *Table) FileAt(p *Process, fd int64) (*OpenFile, error) {
	if fd < 0 || fd >= NOFile || p.Files[fd] == nil {
		return nil, fmt.Errorf("fd %d: %w", fd, ErrBadFD)
	}

	return p.Files[fd], nil
}

// Close drops descriptor fd. The underlying inode is released when the last
// reference goes away.
func (t *Table) Close(p *Process, fd int64) error {
	of, err := t.FileAt(p, fd)
	if err != nil {
		return err
	}

	p.Files[fd] = nil
	t.unref(of)

	return nil
}

func (t *Table) unref(of *OpenFile) {
	of.refs--
	if of.refs > 0 {
		return
	}

	switch f := of.File.(type) {
	case *InodeFile:
		t.fs.Release(f.Inode)
	case *Stream:
	}
}

func (t *Table) closeAll(p *Process) {
	for fd, of := range p.Files {
		if of != nil {
			p.Files[fd] = nil
			t.unref(of)
		}
	}
}

func (t *Table) installStdio(p *Process) {
	for _, k := range []StreamKind{Stdin, Stdout, Stderr} {
		_, _ = t.Install(p, &Stream{Kind: k})
	}
}
