package syscall

import (
	"fmt"

	"github.com/sarchlab/rvkernel/kernel/fs"
	"github.com/sarchlab/rvkernel/kernel/proc"
	"github.com/sarchlab/rvkernel/mem/vm"
)

// Stat is the layout written by fstat.
type Stat struct {
	Dev   uint64
	Ino   uint64
	Mode  uint32
	NLink uint32
	Pad   [7]uint64
}

func (d *Dispatcher) sysWrite(p *proc.Process, args [6]uint64) (int64, error) {
	of, err := d.table.FileAt(p, int64(args[0]))
	if err != nil {
		return -1, err
	}

	va, n := args[1], args[2]

	err = p.Space.CheckUser(va, n, 0)
	if err != nil {
		return -1, err
	}

	switch f := of.File.(type) {
	case *proc.Stream:
		if !f.Writable() {
			return -1, fmt.Errorf("write to stdin: %w", proc.ErrBadFD)
		}

		return copyInChunks(p.Space, va, n, func(chunk []byte) (int, error) {
			for _, c := range chunk {
				d.console.PutChar(c)
			}

			return len(chunk), nil
		})
	case *proc.InodeFile:
		if !f.Writable {
			return -1, fmt.Errorf("file not open for writing: %w", proc.ErrBadFD)
		}

		return copyInChunks(p.Space, va, n, func(chunk []byte) (int, error) {
			written, err := d.fs.WriteAt(f.Inode, chunk, f.Offset)
			f.Offset += uint64(written)

			return written, err
		})
	default:
		panic(fmt.Sprintf("unknown file type %T", f))
	}
}

// copyInChunks feeds user memory to sink in pieces of at most MaxStrLen
// bytes and returns the total that sink took.
func copyInChunks(
	as *vm.AddressSpace,
	va, n uint64,
	sink func(chunk []byte) (int, error),
) (int64, error) {
	var (
		buf  [MaxStrLen]byte
		done uint64
	)

	for done < n {
		chunk := buf[:min(n-done, MaxStrLen)]

		err := as.CopyIn(chunk, va+done)
		if err != nil {
			return -1, err
		}

		taken, err := sink(chunk)
		done += uint64(taken)

		if err != nil {
			return -1, err
		}
	}

	return int64(done), nil
}

func (d *Dispatcher) sysRead(p *proc.Process, args [6]uint64) (int64, error) {
	of, err := d.table.FileAt(p, int64(args[0]))
	if err != nil {
		return -1, err
	}

	va, n := args[1], args[2]

	switch f := of.File.(type) {
	case *proc.Stream:
		if !f.Readable() {
			return -1, fmt.Errorf("read from output stream: %w", proc.ErrBadFD)
		}

		return d.readConsole(p, va, n)
	case *proc.InodeFile:
		if !f.Readable {
			return -1, fmt.Errorf("file not open for reading: %w", proc.ErrBadFD)
		}

		return d.readInode(p, f, va, n)
	default:
		panic(fmt.Sprintf("unknown file type %T", f))
	}
}

// readConsole reads until n bytes, a newline or the end of input.
func (d *Dispatcher) readConsole(p *proc.Process, va, n uint64) (int64, error) {
	buf := make([]byte, 0, min(n, MaxStrLen))

	for uint64(len(buf)) < n && len(buf) < MaxStrLen {
		c, ok := d.console.GetChar()
		if !ok {
			break
		}

		buf = append(buf, c)
		if c == '\n' {
			break
		}
	}

	err := p.Space.CopyOut(va, buf)
	if err != nil {
		return -1, err
	}

	return int64(len(buf)), nil
}

func (d *Dispatcher) readInode(
	p *proc.Process,
	f *proc.InodeFile,
	va, n uint64,
) (int64, error) {
	var (
		buf  [MaxStrLen]byte
		done uint64
	)

	for done < n {
		chunk := buf[:min(n-done, MaxStrLen)]

		got, err := d.fs.ReadAt(f.Inode, chunk, f.Offset)
		if err != nil {
			return -1, err
		}

		if got == 0 {
			break
		}

		err = p.Space.CopyOut(va+done, chunk[:got])
		if err != nil {
			return -1, err
		}

		f.Offset += uint64(got)
		done += uint64(got)
	}

	return int64(done), nil
}

func (d *Dispatcher) sysOpenat(p *proc.Process, args [6]uint64) (int64, error) {
	path, err := p.Space.CopyInString(args[1], MaxStrLen)
	if err != nil {
		return -1, err
	}

	flags := uint32(args[2])

	ino, err := d.fs.Open(path, flags)
	if err != nil {
		return -1, err
	}

	fd, err := d.table.Install(p, &proc.InodeFile{
		Inode:    ino,
		Readable: flags&fs.OWrOnly == 0,
		Writable: flags&(fs.OWrOnly|fs.ORdWr) != 0,
	})
	if err != nil {
		d.fs.Release(ino)
		return -1, err
	}

	return int64(fd), nil
}

func (d *Dispatcher) sysClose(p *proc.Process, args [6]uint64) (int64, error) {
	err := d.table.Close(p, int64(args[0]))
	if err != nil {
		return -1, err
	}

	return 0, nil
}

func (d *Dispatcher) sysFstat(p *proc.Process, args [6]uint64) (int64, error) {
	of, err := d.table.FileAt(p, int64(args[0]))
	if err != nil {
		return -1, err
	}

	f, ok := of.File.(*proc.InodeFile)
	if !ok {
		return -1, fmt.Errorf("fstat on a stream: %w", proc.ErrBadFD)
	}

	st, err := d.fs.Stat(f.Inode)
	if err != nil {
		return -1, err
	}

	out := Stat{Dev: st.Dev, Ino: st.Ino, Mode: st.Mode, NLink: st.NLink}

	err = p.Space.CopyOut(args[1], encode(&out))
	if err != nil {
		return -1, err
	}

	return 0, nil
}

func (d *Dispatcher) sysLinkat(p *proc.Process, args [6]uint64) (int64, error) {
	oldPath, err := p.Space.CopyInString(args[1], MaxStrLen)
	if err != nil {
		return -1, err
	}

	newPath, err := p.Space.CopyInString(args[3], MaxStrLen)
	if err != nil {
		return -1, err
	}

	if oldPath == newPath {
		return -1, fmt.Errorf("link %q to itself: %w", oldPath, fs.ErrExists)
	}

	err = d.fs.Link(oldPath, newPath)
	if err != nil {
		return -1, err
	}

	return 0, nil
}

func (d *Dispatcher) sysUnlinkat(p *proc.Process, args [6]uint64) (int64, error) {
	path, err := p.Space.CopyInString(args[1], MaxStrLen)
	if err != nil {
		return -1, err
	}

	err = d.fs.Unlink(path)
	if err != nil {
		return -1, err
	}

	return 0, nil
}
