package vm

import (
	"fmt"

	"github.com/sarchlab/rvkernel/mem/phys"
)

// Read copies len(dst) bytes starting at user address va into dst. Every
// touched page must be a valid user page carrying the need flags. Nothing is
// copied if any page fails the check.
func (as *AddressSpace) Read(dst []byte, va uint64, need PTEFlags) error {
	err := as.checkRange(va, uint64(len(dst)), need)
	if err != nil {
		return err
	}

	for done := 0; done < len(dst); {
		page, _ := as.userPage(va, need)
		n := copy(dst[done:], page[va%phys.PageSize:])
		done += n
		va += uint64(n)
	}

	return nil
}

// Write copies src to user address va under the same rules as Read.
func (as *AddressSpace) Write(va uint64, src []byte, need PTEFlags) error {
	err := as.checkRange(va, uint64(len(src)), need)
	if err != nil {
		return err
	}

	for done := 0; done < len(src); {
		page, _ := as.userPage(va, need)
		n := copy(page[va%phys.PageSize:], src[done:])
		done += n
		va += uint64(n)
	}

	return nil
}

// CopyIn copies user memory into a kernel buffer.
func (as *AddressSpace) CopyIn(dst []byte, va uint64) error {
	return as.Read(dst, va, 0)
}

// CopyOut copies a kernel buffer into writable user memory.
func (as *AddressSpace) CopyOut(va uint64, src []byte) error {
	return as.Write(va, src, FlagWrite)
}

// CopyInString copies a NUL-terminated string from user memory. At most max
// bytes are read; a string without terminator in that range is truncated.
func (as *AddressSpace) CopyInString(va uint64, max int) (string, error) {
	buf := make([]byte, 0, min(max, phys.PageSize))

	for len(buf) < max {
		page, err := as.userPage(va, 0)
		if err != nil {
			return "", err
		}

		for off := va % phys.PageSize; off < phys.PageSize; off++ {
			if page[off] == 0 {
				return string(buf), nil
			}

			buf = append(buf, page[off])
			if len(buf) == max {
				break
			}
		}

		va = PageRoundDown(va) + phys.PageSize
	}

	return string(buf), nil
}

// CheckUser reports whether every page of [va, va+n) is a valid user page
// carrying the need flags.
func (as *AddressSpace) CheckUser(va, n uint64, need PTEFlags) error {
	return as.checkRange(va, n, need)
}

func (as *AddressSpace) checkRange(va, n uint64, need PTEFlags) error {
	if n == 0 {
		return nil
	}

	end := va + n
	if end < va {
		return fmt.Errorf("range 0x%x+%d wraps: %w",
			va, n, ErrInvalidUserPointer)
	}

	for page := PageRoundDown(va); page < end; page += phys.PageSize {
		_, err := as.userPage(page, need)
		if err != nil {
			return err
		}
	}

	return nil
}

func (as *AddressSpace) userPage(va uint64, need PTEFlags) ([]byte, error) {
	e, ok := as.pt.Lookup(va)
	if !ok || !e.HasFlags(need|FlagUser) {
		return nil, fmt.Errorf("user address 0x%x: %w",
			va, ErrInvalidUserPointer)
	}

	return as.alloc.Data(e.Frame()), nil
}
