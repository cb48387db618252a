package memspace

import "encoding/binary"

// Read8 reads one byte from virtAddr, dispatching to the owning region's
// callback for dynamic pages.
func (as *AddressSpace) Read8(virtAddr uint32) uint8 {
	kind, r, off := as.Lookup(virtAddr)
	switch kind {
	case Static:
		if r == nil {
			logUnmapped(virtAddr)
			return 0
		}
		return as.phys[off]
	default:
		if r == nil || r.Cb.Read8 == nil {
			logUnmapped(virtAddr)
			return 0
		}
		return r.Cb.Read8(r.Cb.UserCtx, off)
	}
}

// Write8 writes one byte to virtAddr.
func (as *AddressSpace) Write8(virtAddr uint32, v uint8) {
	kind, r, off := as.Lookup(virtAddr)
	switch kind {
	case Static:
		if r == nil {
			logUnmapped(virtAddr)
			return
		}
		as.phys[off] = v
	default:
		if r == nil || r.Cb.Write8 == nil {
			logUnmapped(virtAddr)
			return
		}
		r.Cb.Write8(r.Cb.UserCtx, off, v)
	}
}

// Read16 reads a little-endian 16-bit value from virtAddr.
func (as *AddressSpace) Read16(virtAddr uint32) uint16 {
	kind, r, off := as.Lookup(virtAddr)
	if kind == Static {
		if r == nil {
			logUnmapped(virtAddr)
			return 0
		}
		return binary.LittleEndian.Uint16(as.phys[off:])
	}
	if r == nil || r.Cb.Read16 == nil {
		logUnmapped(virtAddr)
		return 0
	}
	return r.Cb.Read16(r.Cb.UserCtx, off)
}

// Write16 writes a little-endian 16-bit value to virtAddr.
func (as *AddressSpace) Write16(virtAddr uint32, v uint16) {
	kind, r, off := as.Lookup(virtAddr)
	if kind == Static {
		if r == nil {
			logUnmapped(virtAddr)
			return
		}
		binary.LittleEndian.PutUint16(as.phys[off:], v)
		return
	}
	if r == nil || r.Cb.Write16 == nil {
		logUnmapped(virtAddr)
		return
	}
	r.Cb.Write16(r.Cb.UserCtx, off, v)
}

// Read32 reads a little-endian 32-bit value from virtAddr.
func (as *AddressSpace) Read32(virtAddr uint32) uint32 {
	kind, r, off := as.Lookup(virtAddr)
	if kind == Static {
		if r == nil {
			logUnmapped(virtAddr)
			return 0
		}
		return binary.LittleEndian.Uint32(as.phys[off:])
	}
	if r == nil || r.Cb.Read32 == nil {
		logUnmapped(virtAddr)
		return 0
	}
	return r.Cb.Read32(r.Cb.UserCtx, off)
}

// Write32 writes a little-endian 32-bit value to virtAddr.
func (as *AddressSpace) Write32(virtAddr uint32, v uint32) {
	kind, r, off := as.Lookup(virtAddr)
	if kind == Static {
		if r == nil {
			logUnmapped(virtAddr)
			return
		}
		binary.LittleEndian.PutUint32(as.phys[off:], v)
		return
	}
	if r == nil || r.Cb.Write32 == nil {
		logUnmapped(virtAddr)
		return
	}
	r.Cb.Write32(r.Cb.UserCtx, off, v)
}

// Read64 reads a little-endian 64-bit value from virtAddr.
func (as *AddressSpace) Read64(virtAddr uint32) uint64 {
	kind, r, off := as.Lookup(virtAddr)
	if kind == Static {
		if r == nil {
			logUnmapped(virtAddr)
			return 0
		}
		return binary.LittleEndian.Uint64(as.phys[off:])
	}
	if r == nil || r.Cb.Read64 == nil {
		logUnmapped(virtAddr)
		return 0
	}
	return r.Cb.Read64(r.Cb.UserCtx, off)
}

// Write64 writes a little-endian 64-bit value to virtAddr.
func (as *AddressSpace) Write64(virtAddr uint32, v uint64) {
	kind, r, off := as.Lookup(virtAddr)
	if kind == Static {
		if r == nil {
			logUnmapped(virtAddr)
			return
		}
		binary.LittleEndian.PutUint64(as.phys[off:], v)
		return
	}
	if r == nil || r.Cb.Write64 == nil {
		logUnmapped(virtAddr)
		return
	}
	r.Cb.Write64(r.Cb.UserCtx, off, v)
}

// MemcpyFromGuest copies len(dst) bytes starting at srcVirt into dst.
func (as *AddressSpace) MemcpyFromGuest(dst []byte, srcVirt uint32) {
	for i := range dst {
		dst[i] = as.Read8(srcVirt + uint32(i))
	}
}

// MemcpyToGuest copies src into the guest address space starting at
// dstVirt.
func (as *AddressSpace) MemcpyToGuest(dstVirt uint32, src []byte) {
	for i, b := range src {
		as.Write8(dstVirt+uint32(i), b)
	}
}

// MemcpyGuestToGuest copies n bytes from srcVirt to dstVirt within the
// guest address space.
func (as *AddressSpace) MemcpyGuestToGuest(dstVirt, srcVirt uint32, n uint32) {
	for i := uint32(0); i < n; i++ {
		as.Write8(dstVirt+i, as.Read8(srcVirt+i))
	}
}
