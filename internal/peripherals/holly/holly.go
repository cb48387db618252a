// Package holly implements the Holly system-block register file: the
// interrupt status/mask/clear registers Area 0 exposes at
// 0x005f0000-0x005f7fff (spec.md §6 memory-map layout). It is a thin
// MMIO-callback owner — interrupt routing to individual peripherals is out
// of scope (spec.md §1) beyond the status/mask bookkeeping a guest driver
// actually polls.
package holly

import (
	"encoding/binary"
	"log"
	"sync"

	"github.com/zotley/dcjit/internal/memspace"
)

const regFileSize = 0x8000

// Interrupt source bits as exposed through ISTNRM (normal interrupt
// status), matching the subset of Holly's real bit layout a guest driver
// polls for VBlank/end-of-render/GD-ROM completion.
const (
	IRQVBlankIn uint32 = 1 << iota
	IRQVBlankOut
	IRQRenderDone
	IRQGDROM
	IRQMaple
)

const (
	offISTNRM = 0x5000
	offIML2NRM = 0x5010
)

// Holly owns the raw register bytes backing the MMIO region; reads and
// writes go through little-endian accessors exactly like
// memspace.AddressSpace's own Static-region path (access.go), since a
// Dynamic region's callback is expected to behave the same way for the
// bytes it owns.
type Holly struct {
	mu   sync.Mutex
	regs [regFileSize]byte
}

// New creates an empty register file.
func New() *Holly { return &Holly{} }

// RaiseIRQ sets bits in ISTNRM, as a peripheral would when it completes a
// unit of work (VBlank, render, disc read).
func (h *Holly) RaiseIRQ(bits uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur := binary.LittleEndian.Uint32(h.regs[offISTNRM:])
	binary.LittleEndian.PutUint32(h.regs[offISTNRM:], cur|bits)
}

// Pending reports whether any unmasked interrupt is set.
func (h *Holly) Pending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	ist := binary.LittleEndian.Uint32(h.regs[offISTNRM:])
	mask := binary.LittleEndian.Uint32(h.regs[offIML2NRM:])
	return ist&mask != 0
}

// Callbacks returns the memspace.Callbacks set for create_region_dynamic
// registration (spec.md §6).
func (h *Holly) Callbacks() memspace.Callbacks {
	return memspace.Callbacks{
		Read8:   func(any, uint32) uint8 { return 0 },
		Read16:  func(any, uint32) uint16 { return 0 },
		Read32:  h.read32,
		Write8:  func(any, uint32, uint8) {},
		Write16: func(any, uint32, uint16) {},
		Write32: h.write32,
	}
}

func (h *Holly) read32(_ any, offset uint32) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(offset)+4 > len(h.regs) {
		log.Printf("holly: read32 out of range offset %#x", offset)
		return 0
	}
	return binary.LittleEndian.Uint32(h.regs[offset:])
}

func (h *Holly) write32(_ any, offset uint32, v uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(offset)+4 > len(h.regs) {
		log.Printf("holly: write32 out of range offset %#x", offset)
		return
	}
	// Writing ISTNRM acknowledges (clears) the written bits, matching
	// real Holly's write-1-to-clear semantics for the status register.
	if offset == offISTNRM {
		cur := binary.LittleEndian.Uint32(h.regs[offset:])
		binary.LittleEndian.PutUint32(h.regs[offset:], cur&^v)
		return
	}
	binary.LittleEndian.PutUint32(h.regs[offset:], v)
}
