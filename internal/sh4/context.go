// Package sh4 implements the SH4 guest frontend: opcode decode table,
// basic-block analysis, and IR translation (spec.md §4.5). Grounded on
// original_source/src/jit/frontend/sh4 (sh4_context.h/.cc, sh4_disassembler.cc,
// sh4_analyzer.cc, sh4_builder.h), translated from a C++ union/bitfield and
// virtual-dispatch style into plain Go structs and function tables.
package sh4

import (
	"unsafe"

	"github.com/zotley/dcjit/internal/ir"
)

// SR is the status register: T/S/IMASK/Q/M/FD/BL/RB/MD packed into one
// word, mirroring the original's SR_T bitfield union (sh4_context.h).
type SR uint32

const (
	srT     SR = 1 << 0
	srS     SR = 1 << 1
	srIMask SR = 0xF << 4
	srQ     SR = 1 << 8
	srM     SR = 1 << 9
	srFD    SR = 1 << 15
	srBL    SR = 1 << 28
	srRB    SR = 1 << 29
	srMD    SR = 1 << 30
)

func (s SR) T() bool  { return s&srT != 0 }
func (s SR) RB() bool { return s&srRB != 0 }
func (s SR) BL() bool { return s&srBL != 0 }
func (s SR) MD() bool { return s&srMD != 0 }

func (s SR) WithT(v bool) SR { return setBit(s, srT, v) }

func setBit[T ~uint32](v T, mask T, set bool) T {
	if set {
		return v | mask
	}
	return v &^ mask
}

// FPSCR is the floating-point status/control register: RM/flag/enable/
// cause/DN/PR/SZ/FR packed into one word (sh4_context.h FPSCR_T).
type FPSCR uint32

const (
	fpscrDN FPSCR = 1 << 18
	fpscrPR FPSCR = 1 << 19
	fpscrSZ FPSCR = 1 << 20
	fpscrFR FPSCR = 1 << 21
)

func (f FPSCR) PR() bool { return f&fpscrPR != 0 }
func (f FPSCR) SZ() bool { return f&fpscrSZ != 0 }
func (f FPSCR) FR() bool { return f&fpscrFR != 0 }

// Context is the SH4 register file a translated block reads and writes
// through load_context/store_context (spec.md §4.3/§4.5). Field order
// matches sh4_context.h; Ran is a supplemental counter (SPEC_FULL §4,
// redream's sh4_context::ran) that the Dreamcast core increments once per
// executed block; the scheduler does not read it.
type Context struct {
	PC, SPC     uint32
	PR          uint32
	GBR, VBR    uint32
	MACH, MACL  uint32
	R           [16]uint32
	RBank       [2][8]uint32
	SGR         uint32
	FR          [16]uint32
	XF          [16]uint32
	FPUL        uint32
	DBR         uint32
	SQ          [2][8]uint32
	SQExtAddr   [2]uint32
	Preserve    uint32
	SR          SR
	SSR         SR
	OldSR       SR
	FPSCR       FPSCR
	OldFPSCR    FPSCR
	Ran         uint64
}

// Field byte offsets within Context, computed the same way at init time a
// hand-maintained struct-offset table would be, but without risking drift
// from the struct definition above.
var (
	offPC        = int32(unsafe.Offsetof(Context{}.PC))
	offSPC       = int32(unsafe.Offsetof(Context{}.SPC))
	offPR        = int32(unsafe.Offsetof(Context{}.PR))
	offGBR       = int32(unsafe.Offsetof(Context{}.GBR))
	offVBR       = int32(unsafe.Offsetof(Context{}.VBR))
	offMACH      = int32(unsafe.Offsetof(Context{}.MACH))
	offMACL      = int32(unsafe.Offsetof(Context{}.MACL))
	offR         = int32(unsafe.Offsetof(Context{}.R))
	offFR        = int32(unsafe.Offsetof(Context{}.FR))
	offXF        = int32(unsafe.Offsetof(Context{}.XF))
	offFPUL      = int32(unsafe.Offsetof(Context{}.FPUL))
	offDBR       = int32(unsafe.Offsetof(Context{}.DBR))
	offSGR       = int32(unsafe.Offsetof(Context{}.SGR))
	offSR        = int32(unsafe.Offsetof(Context{}.SR))
	offSSR       = int32(unsafe.Offsetof(Context{}.SSR))
	offFPSCR     = int32(unsafe.Offsetof(Context{}.FPSCR))
	offRan       = int32(unsafe.Offsetof(Context{}.Ran))
)

// RegisterOffset returns the byte offset of general register n (0-15)
// within Context.R. It does not consult SR.RB: r0-r7 always map to R,
// never to RBank.
func RegisterOffset(n int) int32 { return offR + int32(n)*4 }

// FROffset returns the byte offset of floating register FRn.
func FROffset(n int) int32 { return offFR + int32(n)*4 }

// XFOffset returns the byte offset of floating register XFn.
func XFOffset(n int) int32 { return offXF + int32(n)*4 }

// SetRegisterBank swaps r0-r7 with the inactive bank, mirroring
// sh4_context.cc's SetRegisterBank: when switching to bank b, the active
// r[0..7] are stashed into rbnk[1-b] and replaced by rbnk[b].
func (c *Context) SetRegisterBank(bank int) {
	other := 1 - bank
	for s := 0; s < 8; s++ {
		c.RBank[other][s] = c.R[s]
		c.R[s] = c.RBank[bank][s]
	}
}

// SRUpdated reacts to a guest write to SR: if the RB bit flipped, swap the
// general-register banks, then latch old_sr for the next comparison.
// Grounded directly on sh4_context.cc SRUpdated.
func (c *Context) SRUpdated() {
	if c.SR.RB() != c.OldSR.RB() {
		bank := 0
		if c.SR.RB() {
			bank = 1
		}
		c.SetRegisterBank(bank)
	}
	c.OldSR = c.SR
}

func (c *Context) swapFPRegisters() {
	for s := 0; s <= 15; s++ {
		c.FR[s], c.XF[s] = c.XF[s], c.FR[s]
	}
}

func (c *Context) swapFPCouples() {
	for s := 0; s <= 15; s += 2 {
		c.FR[s], c.FR[s+1] = c.FR[s+1], c.FR[s]
		c.XF[s], c.XF[s+1] = c.XF[s+1], c.XF[s]
	}
}

// FPSCRUpdated reacts to a guest write to FPSCR: a flipped FR bit swaps the
// fr/xf banks, a flipped PR bit swaps fr/xf register couples (double-
// precision pairing). Grounded on sh4_context.cc FPSCRUpdated.
func (c *Context) FPSCRUpdated() {
	if c.FPSCR.FR() != c.OldFPSCR.FR() {
		c.swapFPRegisters()
	}
	if c.FPSCR.PR() != c.OldFPSCR.PR() {
		c.swapFPCouples()
	}
	c.OldFPSCR = c.FPSCR
}

// ContextLoad/ContextStore give a backend generic offset-addressed access to
// a Context without depending on the sh4 package's field layout beyond the
// offsets translate_block already baked into the emitted IR. The signature
// matches interp.New's contextLoad/contextStore parameters exactly.
func ContextLoad(ctx uintptr, offset int32, typ ir.Type) uint64 {
	p := unsafe.Pointer(ctx + uintptr(offset))
	switch typ {
	case ir.I8:
		return uint64(*(*uint8)(p))
	case ir.I16:
		return uint64(*(*uint16)(p))
	case ir.I32, ir.F32:
		return uint64(*(*uint32)(p))
	default:
		return *(*uint64)(p)
	}
}

func ContextStore(ctx uintptr, offset int32, typ ir.Type, v uint64) {
	p := unsafe.Pointer(ctx + uintptr(offset))
	switch typ {
	case ir.I8:
		*(*uint8)(p) = uint8(v)
	case ir.I16:
		*(*uint16)(p) = uint16(v)
	case ir.I32, ir.F32:
		*(*uint32)(p) = uint32(v)
	default:
		*(*uint64)(p) = v
	}
}
