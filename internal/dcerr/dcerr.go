// Package dcerr collects the runtime's error kinds (spec.md §7): sentinel
// values every package that can fail wraps with fmt.Errorf's %w, letting
// callers errors.Is against a shared vocabulary instead of each package
// inventing its own.
package dcerr

import "errors"

var (
	// AllocationFailure: the host could not reserve or map address space.
	AllocationFailure = errors.New("allocation failure")
	// RegionOverlap: two static regions collide in physical-address space.
	RegionOverlap = errors.New("region overlap")
	// MapMisalignment: a mount/mirror entry is not page-aligned.
	MapMisalignment = errors.New("map misalignment")
	// BufferOverflow: a backend's code buffer is exhausted; recoverable by
	// a block-cache flush and one retry.
	BufferOverflow = errors.New("buffer overflow")
	// DecodeFailure: an SH4 opcode word matched no entry in the decode
	// table; ends the containing block naturally.
	DecodeFailure = errors.New("decode failure")
	// UnsupportedMovEncoding: the fastmem mov decoder cannot parse the
	// faulting instruction; treated as unhandled.
	UnsupportedMovEncoding = errors.New("unsupported mov encoding")
	// Bug: an assertion failure in the optimizer or runtime; fatal.
	Bug = errors.New("bug")
)
