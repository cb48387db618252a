package x64

// Minimal scalar SSE2 encoders for float-class values. Every float value is
// moved as a 64-bit double regardless of its declared f32/f64 width — an
// accepted simplification for this backend (DESIGN.md), since the SH4's
// FPU values are carried as raw bit patterns through the IR and only need
// bitwise-faithful transport between context slots, locals and XMM
// registers for the load/store/select paths most blocks exercise.

func xmmRegParts(r int) (low int, ext bool) { return r & 7, r >= 8 }

// movsdRegReg emits "movsd dst, src" (F2 0F 10 /r).
func (c *codeBuf) movsdRegReg(dst, src int) {
	dl, dExt := xmmRegParts(dst)
	sl, sExt := xmmRegParts(src)
	c.emit(0xF2)
	if dExt || sExt {
		c.emit(rex(false, dExt, false, sExt))
	}
	c.emit(0x0F, 0x10, modrm(3, dl, sl))
}

// movsdLoad emits "movsd dst, [base+disp]".
func (c *codeBuf) movsdLoad(dst, base int, disp int32) {
	dl, dExt := xmmRegParts(dst)
	_, bExt := regParts(base)
	c.emit(0xF2)
	if dExt || bExt {
		c.emit(rex(false, dExt, false, bExt))
	}
	c.emit(0x0F, 0x10)
	c.emit(memBytes(dl, base, false, 0, 1, disp)...)
}

// movsdStore emits "movsd [base+disp], src".
func (c *codeBuf) movsdStore(base int, disp int32, src int) {
	sl, sExt := xmmRegParts(src)
	_, bExt := regParts(base)
	c.emit(0xF2)
	if sExt || bExt {
		c.emit(rex(false, sExt, false, bExt))
	}
	c.emit(0x0F, 0x11)
	c.emit(memBytes(sl, base, false, 0, 1, disp)...)
}

type sseOp byte

const (
	sseAdd sseOp = 0x58
	sseSub sseOp = 0x5C
	sseMul sseOp = 0x59
	sseDiv sseOp = 0x5E
	// sqrtsd takes the same form but computes dst = sqrt(src).
	sseSqrt sseOp = 0x51
)

// sseRegReg emits "op dst, src" (F2 0F <op> /r) for the scalar-double ALU
// ops, dst = dst op src.
func (c *codeBuf) sseRegReg(op sseOp, dst, src int) {
	dl, dExt := xmmRegParts(dst)
	sl, sExt := xmmRegParts(src)
	c.emit(0xF2)
	if dExt || sExt {
		c.emit(rex(false, dExt, false, sExt))
	}
	c.emit(0x0F, byte(op), modrm(3, dl, sl))
}

// movqXMMtoGP emits "movq dst_gp, src_xmm" (66 REX.W 0F 7E /r).
func (c *codeBuf) movqXMMtoGP(dst, src int) {
	dl, dExt := regParts(dst)
	sl, sExt := xmmRegParts(src)
	c.emit(0x66, rex(true, sExt, false, dExt), 0x0F, 0x7E, modrm(3, sl, dl))
}

// movqGPtoXMM emits "movq dst_xmm, src_gp" (66 REX.W 0F 6E /r).
func (c *codeBuf) movqGPtoXMM(dst, src int) {
	dl, dExt := xmmRegParts(dst)
	sl, sExt := regParts(src)
	c.emit(0x66, rex(true, dExt, false, sExt), 0x0F, 0x6E, modrm(3, dl, sl))
}
