// Package memspace implements the guest's 32-bit shadow-paged address space:
// a page table flattened from a declarative memory map, static regions
// backed by a host shared-memory object, and dynamic regions dispatched to
// MMIO callbacks (spec.md §3/§4.1).
package memspace

import "fmt"

// Kind discriminates a Region's backing: Static regions are carved out of
// the shared physical buffer; Dynamic regions invoke callbacks on access.
type Kind int

const (
	Static Kind = iota
	Dynamic
)

// Callbacks is the width-keyed MMIO callback set a dynamic region is
// constructed with (spec.md §6 peripheral registration).
type Callbacks struct {
	Read8   func(ctx any, offset uint32) uint8
	Read16  func(ctx any, offset uint32) uint16
	Read32  func(ctx any, offset uint32) uint32
	Read64  func(ctx any, offset uint32) uint64
	Write8  func(ctx any, offset uint32, v uint8)
	Write16 func(ctx any, offset uint32, v uint16)
	Write32 func(ctx any, offset uint32, v uint32)
	Write64 func(ctx any, offset uint32, v uint64)

	ReadString  func(ctx any, offset uint32, dst []byte)
	WriteString func(ctx any, offset uint32, src []byte)

	UserCtx any
}

// Region is one contiguous guest physical-address window, either backed by
// the shared-memory object (Static) or a peripheral's callbacks (Dynamic).
// Region windows never overlap in physical-address space, though a window
// may be aliased at many virtual addresses via Mirror map entries.
type Region struct {
	Handle   int
	PhysAddr uint32
	Size     uint32
	Kind     Kind
	Cb       Callbacks

	// phys is the slice into the physical shared-memory buffer backing a
	// Static region; nil for Dynamic regions.
	phys []byte
}

func (r *Region) String() string {
	return fmt.Sprintf("region(%d @ %#08x..%#08x)", r.Handle, r.PhysAddr, r.PhysAddr+r.Size)
}
