// Package fs defines the inode layer the kernel uses for named files, and
// provides an in-memory implementation.
package fs

import "errors"

// Open flags, as passed to openat.
const (
	ORdOnly uint32 = 0x000
	OWrOnly uint32 = 0x001
	ORdWr   uint32 = 0x002
	OCreate uint32 = 0x200
	OTrunc  uint32 = 0x400
)

// File modes reported by Stat.
const (
	ModeDir  uint32 = 0o040000
	ModeFile uint32 = 0o100000
)

var (
	// ErrNotFound is returned for names that do not exist.
	ErrNotFound = errors.New("no such file")

	// ErrExists is returned when linking to a name that is taken.
	ErrExists = errors.New("file exists")

	// ErrBadInode is returned for inode numbers that are not live.
	ErrBadInode = errors.New("bad inode")
)

// Inode identifies a file.
type Inode uint32

// Stat is the metadata of an inode.
type Stat struct {
	Dev   uint64
	Ino   uint64
	Mode  uint32
	NLink uint32
}

// A FileSystem stores named files.
type FileSystem interface {
	// Open looks up a path. With OCreate a missing file is created; with
	// OTrunc the content is dropped. The returned inode holds a reference
	// until Release.
	Open(path string, flags uint32) (Inode, error)

	// ReadAt reads from the file at offset.
	ReadAt(ino Inode, buf []byte, off uint64) (int, error)

	// WriteAt writes to the file at offset, growing it as needed.
	WriteAt(ino Inode, buf []byte, off uint64) (int, error)

	// Link creates newPath as another name of oldPath.
	Link(oldPath, newPath string) error

	// Unlink removes a name.
	Unlink(path string) error

	// Stat returns the metadata of an inode.
	Stat(ino Inode) (Stat, error)

	// Release drops a reference obtained by Open.
	Release(ino Inode)
}
