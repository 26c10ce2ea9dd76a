package vm

import "errors"

var (
	// ErrRemap is returned when mapping a page that is already mapped.
	ErrRemap = errors.New("virtual page already mapped")

	// ErrNotMapped is returned when unmapping a page that is not mapped.
	ErrNotMapped = errors.New("virtual page not mapped")

	// ErrInvalidArgument is returned for malformed mmap, munmap and sbrk
	// requests.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidUserPointer is returned when a user address is unmapped,
	// lacks a permission or points into kernel space.
	ErrInvalidUserPointer = errors.New("invalid user pointer")
)
