package x64

// Low-level byte-level encoders for the handful of x86-64 forms the IR
// lowering in assemble.go needs. Each function appends directly to a
// codeBuf. Grounded on the ModRM/SIB field layout documented by
// debug_disasm_x86.go's decoder, used here in the encode direction.

func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modrm(mod, reg, rm int) byte {
	return byte(mod&3)<<6 | byte(reg&7)<<3 | byte(rm&7)
}

func sibByte(scale, index, base int) byte {
	return byte(scaleBits(scale))<<6 | byte(index&7)<<3 | byte(base&7)
}

func scaleBits(scale int) int {
	switch scale {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		return 0
	}
}

func le32(v int32) []byte {
	u := uint32(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

func le64(v uint64) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
		byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56)}
}

// regParts splits a register number 0-15 into its low 3 bits and the REX
// extension bit.
func regParts(r int) (low int, ext bool) { return r & 7, r >= 8 }

// movRegImm64 emits "mov dst, imm64" (B8+rd with REX.W).
func (c *codeBuf) movRegImm64(dst int, imm uint64) {
	lo, ext := regParts(dst)
	c.emit(rex(true, false, false, ext), 0xB8+byte(lo))
	c.emit(le64(imm)...)
}

// movRegImm32 emits "mov dst, imm32" zero-extended into the 64-bit register
// (B8+rd with no REX.W, which the AMD64 ABI defines as zero-extending).
func (c *codeBuf) movRegImm32(dst int, imm uint32) {
	lo, ext := regParts(dst)
	if ext {
		c.emit(rex(false, false, false, true))
	}
	c.emit(0xB8+byte(lo))
	c.emit(le32(int32(imm))...)
}

// movRegReg emits "mov dst, src" (89 /r), operating on the full 64-bit
// register (REX.W) regardless of the IR value's declared width — narrower
// values are masked by the arithmetic that produced them.
func (c *codeBuf) movRegReg(dst, src int) {
	sl, sExt := regParts(src)
	dl, dExt := regParts(dst)
	c.emit(rex(true, sExt, false, dExt), 0x89, modrm(3, sl, dl))
}

// memBytes encodes the ModRM(+SIB)(+disp) bytes addressing
// [base + index*scale + disp] (or [base+disp] if hasIndex is false) for reg
// as the non-memory operand, with instruction-length bookkeeping left to
// the caller.
func memBytes(reg, base int, hasIndex bool, index, scale int, disp int32) []byte {
	var out []byte
	rl, _ := regParts(reg)

	useSIB := hasIndex || (base&7) == 4 // rsp/r12 as base always needs a SIB
	mod := 1
	if disp == 0 && (base&7) != 5 {
		mod = 0
	} else if disp < -128 || disp > 127 {
		mod = 2
	}

	if useSIB {
		rm := 4
		out = append(out, modrm(mod, rl, rm))
		idx := 4
		if hasIndex {
			idx, _ = regParts(index)
		}
		bl, _ := regParts(base)
		out = append(out, sibByte(scaleOrOne(hasIndex, scale), idx, bl))
	} else {
		bl, _ := regParts(base)
		out = append(out, modrm(mod, rl, bl))
	}

	switch mod {
	case 1:
		out = append(out, byte(int8(disp)))
	case 2:
		out = append(out, le32(disp)...)
	case 0:
		if (base&7) == 5 {
			out = append(out, le32(disp)...)
		}
	}
	return out
}

func scaleOrOne(hasIndex bool, scale int) int {
	if !hasIndex {
		return 1
	}
	return scale
}

// loadMem emits "mov dst, [base + index*scale + disp]" (8B /r), the single
// fastmem load instruction (spec.md §4.7).
func (c *codeBuf) loadMem(dst, base int, hasIndex bool, index, scale int, disp int32) {
	_, dExt := regParts(dst)
	_, bExt := regParts(base)
	xExt := false
	if hasIndex {
		_, xExt = regParts(index)
	}
	c.emit(rex(true, dExt, xExt, bExt), 0x8B)
	c.emit(memBytes(dst, base, hasIndex, index, scale, disp)...)
}

// storeMem emits "mov [base + index*scale + disp], src" (89 /r), the single
// fastmem store instruction (spec.md §4.7).
func (c *codeBuf) storeMem(base int, hasIndex bool, index, scale int, disp int32, src int) {
	_, sExt := regParts(src)
	_, bExt := regParts(base)
	xExt := false
	if hasIndex {
		_, xExt = regParts(index)
	}
	c.emit(rex(true, sExt, xExt, bExt), 0x89)
	c.emit(memBytes(src, base, hasIndex, index, scale, disp)...)
}

type aluOp int

const (
	aluAdd aluOp = iota
	aluSub
	aluAnd
	aluOr
	aluXor
	aluCmp
)

var aluOpcode = map[aluOp]byte{aluAdd: 0x01, aluSub: 0x29, aluAnd: 0x21, aluOr: 0x09, aluXor: 0x31, aluCmp: 0x39}

// aluRegReg emits "op dst, src" (register-register ALU form, dst op= src).
func (c *codeBuf) aluRegReg(op aluOp, dst, src int) {
	sl, sExt := regParts(src)
	dl, dExt := regParts(dst)
	c.emit(rex(true, sExt, false, dExt), aluOpcode[op], modrm(3, sl, dl))
}

// imulRegReg emits "imul dst, src" (0F AF /r), dst *= src.
func (c *codeBuf) imulRegReg(dst, src int) {
	dl, dExt := regParts(dst)
	sl, sExt := regParts(src)
	c.emit(rex(true, dExt, false, sExt), 0x0F, 0xAF, modrm(3, dl, sl))
}

// negReg emits "neg dst" (F7 /3).
func (c *codeBuf) negReg(dst int) {
	dl, dExt := regParts(dst)
	c.emit(rex(true, false, false, dExt), 0xF7, modrm(3, 3, dl))
}

// notReg emits "not dst" (F7 /2).
func (c *codeBuf) notReg(dst int) {
	dl, dExt := regParts(dst)
	c.emit(rex(true, false, false, dExt), 0xF7, modrm(3, 2, dl))
}

// setccMovzx emits "setcc al-equivalent; movzx dst, al-equivalent" for the
// given condition code (Intel Jcc/SETcc tttn nibble), leaving a {0,1}
// result in dst's low byte zero-extended to 64 bits.
func (c *codeBuf) setccMovzx(cc byte, dst int) {
	dl, dExt := regParts(dst)
	// setcc dst_low8 (0F 90+cc /0); REX needed to address r8-r15 or to pick
	// the uniform byte registers (spl/bpl/sil/dil) over ah/ch/dh/bh.
	c.emit(rex(false, false, false, dExt), 0x0F, 0x90+cc, modrm(3, 0, dl))
	c.emit(rex(true, dExt, false, dExt), 0x0F, 0xB6, modrm(3, dl, dl))
}

const (
	ccE  = 0x4 // ZF=1 (equal)
	ccNE = 0x5
	ccL  = 0xC // signed <
	ccGE = 0xD
	ccLE = 0xE
	ccG  = 0xF
	ccB  = 0x2 // unsigned <
	ccAE = 0x3
	ccBE = 0x6
	ccA  = 0x7
)

// testRegReg emits "test a, a" (85 /r self-test), setting ZF from a's value.
func (c *codeBuf) testRegReg(a int) {
	al, aExt := regParts(a)
	c.emit(rex(true, aExt, false, aExt), 0x85, modrm(3, al, al))
}

// cmovccRegReg emits "cmovcc dst, src" (0F 40+cc /r).
func (c *codeBuf) cmovccRegReg(cc byte, dst, src int) {
	dl, dExt := regParts(dst)
	sl, sExt := regParts(src)
	c.emit(rex(true, dExt, false, sExt), 0x0F, 0x40+cc, modrm(3, dl, sl))
}

// pushReg/popReg save/restore a callee-saved GPR across the block body.
func (c *codeBuf) pushReg(r int) {
	lo, ext := regParts(r)
	if ext {
		c.emit(rex(false, false, false, true))
	}
	c.emit(0x50 + byte(lo))
}

func (c *codeBuf) popReg(r int) {
	lo, ext := regParts(r)
	if ext {
		c.emit(rex(false, false, false, true))
	}
	c.emit(0x58 + byte(lo))
}

// subRspImm32/addRspImm32 adjust the stack pointer for the block's local
// frame (81 /5 and 81 /0).
func (c *codeBuf) subRspImm32(n int32) {
	c.emit(rex(true, false, false, false), 0x81, modrm(3, 5, int(rsp)))
	c.emit(le32(n)...)
}

func (c *codeBuf) addRspImm32(n int32) {
	c.emit(rex(true, false, false, false), 0x81, modrm(3, 0, int(rsp)))
	c.emit(le32(n)...)
}

func (c *codeBuf) ret() { c.emit(0xC3) }

// shiftCLReg emits "op dst, cl" for the D3 shift group: ext 4=shl, 5=shr
// (logical), 7=sar (arithmetic). The shift count must already be in cl.
func (c *codeBuf) shiftCLReg(ext, dst int) {
	dl, dExt := regParts(dst)
	c.emit(rex(true, false, false, dExt), 0xD3, modrm(3, ext, dl))
}

// cqo emits "cqo" (REX.W 99), sign-extending rax into rdx:rax — the setup
// idiv needs for a signed 64-bit dividend.
func (c *codeBuf) cqo() { c.emit(rex(true, false, false, false), 0x99) }

// idivReg emits "idiv divisor" (F7 /7): rdx:rax / divisor -> quotient in
// rax, remainder in rdx.
func (c *codeBuf) idivReg(divisor int) {
	dl, dExt := regParts(divisor)
	c.emit(rex(true, false, false, dExt), 0xF7, modrm(3, 7, dl))
}

// divReg emits "div divisor" (F7 /6), the unsigned counterpart.
func (c *codeBuf) divReg(divisor int) {
	dl, dExt := regParts(divisor)
	c.emit(rex(true, false, false, dExt), 0xF7, modrm(3, 6, dl))
}

// xorSelfZero emits "xor dst, dst", the canonical zero-register idiom.
func (c *codeBuf) xorSelfZero(dst int) { c.aluRegReg(aluXor, dst, dst) }
