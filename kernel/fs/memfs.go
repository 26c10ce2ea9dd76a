package fs

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

type memInode struct {
	data  []byte
	nlink uint32
	refs  int
}

// MemFS is a flat, in-memory FileSystem. All names live in the root
// directory.
type MemFS struct {
	inodes    map[Inode]*memInode
	names     map[string]Inode
	nextInode Inode
}

// NewMemFS creates an empty file system.
func NewMemFS() *MemFS {
	return &MemFS{
		inodes:    make(map[Inode]*memInode),
		names:     make(map[string]Inode),
		nextInode: 1,
	}
}

func cleanPath(path string) string {
	return strings.TrimLeft(path, "/")
}

// Open looks up or creates a file.
func (m *MemFS) Open(path string, flags uint32) (Inode, error) {
	name := cleanPath(path)
	if name == "" {
		return 0, fmt.Errorf("open %q: %w", path, ErrNotFound)
	}

	ino, ok := m.names[name]
	if !ok {
		if flags&OCreate == 0 {
			return 0, fmt.Errorf("open %q: %w", path, ErrNotFound)
		}

		ino = m.nextInode
		m.nextInode++
		m.inodes[ino] = &memInode{nlink: 1}
		m.names[name] = ino
	}

	node := m.inodes[ino]
	if flags&OTrunc != 0 {
		node.data = nil
	}

	node.refs++

	return ino, nil
}

// ReadAt reads from the file at offset.
func (m *MemFS) ReadAt(ino Inode, buf []byte, off uint64) (int, error) {
	node, err := m.lookup(ino)
	if err != nil {
		return 0, err
	}

	if off >= uint64(len(node.data)) {
		return 0, nil
	}

	return copy(buf, node.data[off:]), nil
}

// WriteAt writes to the file at offset.
func (m *MemFS) WriteAt(ino Inode, buf []byte, off uint64) (int, error) {
	node, err := m.lookup(ino)
	if err != nil {
		return 0, err
	}

	end := off + uint64(len(buf))
	if end > uint64(len(node.data)) {
		grown := make([]byte, end)
		copy(grown, node.data)
		node.data = grown
	}

	return copy(node.data[off:], buf), nil
}

// Link adds a name for an existing file.
func (m *MemFS) Link(oldPath, newPath string) error {
	oldName, newName := cleanPath(oldPath), cleanPath(newPath)

	ino, ok := m.names[oldName]
	if !ok {
		return fmt.Errorf("link %q: %w", oldPath, ErrNotFound)
	}

	if _, taken := m.names[newName]; taken || newName == "" {
		return fmt.Errorf("link %q: %w", newPath, ErrExists)
	}

	m.names[newName] = ino
	m.inodes[ino].nlink++

	return nil
}

// Unlink removes a name. The file goes away once it has no name and no
// open reference.
func (m *MemFS) Unlink(path string) error {
	name := cleanPath(path)

	ino, ok := m.names[name]
	if !ok {
		return fmt.Errorf("unlink %q: %w", path, ErrNotFound)
	}

	delete(m.names, name)

	node := m.inodes[ino]
	node.nlink--
	m.collect(ino, node)

	return nil
}

// Stat returns the metadata of an inode.
func (m *MemFS) Stat(ino Inode) (Stat, error) {
	node, err := m.lookup(ino)
	if err != nil {
		return Stat{}, err
	}

	return Stat{
		Ino:   uint64(ino),
		Mode:  ModeFile,
		NLink: node.nlink,
	}, nil
}

// Release drops an open reference.
func (m *MemFS) Release(ino Inode) {
	node, ok := m.inodes[ino]
	if !ok || node.refs == 0 {
		log.Panicf("releasing inode %d that is not open", ino)
	}

	node.refs--
	m.collect(ino, node)
}

// Names lists all file names in sorted order.
func (m *MemFS) Names() []string {
	names := make([]string, 0, len(m.names))
	for name := range m.names {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (m *MemFS) collect(ino Inode, node *memInode) {
	if node.nlink == 0 && node.refs == 0 {
		delete(m.inodes, ino)
	}
}

func (m *MemFS) lookup(ino Inode) (*memInode, error) {
	node, ok := m.inodes[ino]
	if !ok {
		return nil, fmt.Errorf("inode %d: %w", ino, ErrBadInode)
	}

	return node, nil
}
