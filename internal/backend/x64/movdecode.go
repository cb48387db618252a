package x64

// Mov describes one decoded x86-64 mov instruction: enough to let the
// fastmem fault handler recover which guest-memory access faulted and
// where to redirect it (spec.md §4.7). Grounded on the byte-at-a-time
// ModRM/SIB reader in debug_disasm_x86.go, adapted from decode-to-text to
// decode-to-struct and extended with a REX prefix.
type Mov struct {
	Length      int
	IsLoad      bool
	OperandSize int // 1, 2, 4 or 8
	Reg         int // the non-memory operand's register number (0-15)
	Base        int // base register number, valid if HasBase
	Index       int // index register number, valid if HasIndex
	Scale       int // 1, 2, 4 or 8, valid if HasIndex
	Disp        int32
	Imm         uint64
	HasImm      bool
	HasBase     bool
	HasIndex    bool
}

// movPrimaryOpcodes are the mov forms the code generator ever emits for
// fastmem loads/stores and register moves; every other opcode is outside
// this decoder's scope (spec.md §4.7's "minimal mov decoder").
var movPrimaryOpcodes = map[byte]bool{
	0x88: true, 0x89: true, 0x8A: true, 0x8B: true,
	0xB0: true, 0xB8: true, 0xC6: true, 0xC7: true,
}

type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) u8() byte {
	v := r.b[r.pos]
	r.pos++
	return v
}

func (r *byteReader) i8() int8 { return int8(r.u8()) }

func (r *byteReader) i32() int32 {
	v := int32(r.b[r.pos]) | int32(r.b[r.pos+1])<<8 | int32(r.b[r.pos+2])<<16 | int32(r.b[r.pos+3])<<24
	r.pos += 4
	return v
}

func (r *byteReader) u32() uint32 { return uint32(r.i32()) }

func (r *byteReader) u64() uint64 {
	lo := uint64(r.u32())
	hi := uint64(r.u32())
	return lo | hi<<32
}

// DecodeMov decodes the mov instruction at the start of b and reports how
// many bytes it consumed. It recognizes exactly the primary opcodes in
// movPrimaryOpcodes, an optional REX prefix, ModRM and SIB — the fixed
// shape the inline assembler emits for fastmem accesses and immediate
// loads (spec.md §4.7 scenario: "mov [rbx+0x10], ecx" bytes 89 4b 10).
func DecodeMov(b []byte) (Mov, bool) {
	r := &byteReader{b: b}
	var m Mov

	var rexW, rexR, rexX, rexB bool
	hasRex := false
	if len(b) > 0 && b[0]&0xF0 == 0x40 {
		rex := r.u8()
		hasRex = true
		rexW = rex&0x08 != 0
		rexR = rex&0x04 != 0
		rexX = rex&0x02 != 0
		rexB = rex&0x01 != 0
	}
	_ = hasRex

	if r.pos >= len(b) {
		return Mov{}, false
	}
	op := r.u8()
	if !movPrimaryOpcodes[op] {
		return Mov{}, false
	}

	switch op {
	case 0x88, 0x8A: // mov r/m8, r8 / mov r8, r/m8
		m.OperandSize = 1
	case 0x89, 0x8B: // mov r/m32/64, r32/64 / mov r32/64, r/m32/64
		m.OperandSize = 4
		if rexW {
			m.OperandSize = 8
		}
	case 0xB0: // mov r8, imm8 (register encoded in the opcode's low 3 bits)
		m.OperandSize = 1
	case 0xB8: // mov r32/64, imm32/64
		m.OperandSize = 4
		if rexW {
			m.OperandSize = 8
		}
	case 0xC6: // mov r/m8, imm8
		m.OperandSize = 1
	case 0xC7: // mov r/m32/64, imm32
		m.OperandSize = 4
		if rexW {
			m.OperandSize = 8
		}
	}
	m.IsLoad = op == 0x8A || op == 0x8B

	switch op {
	case 0xB0, 0xB8:
		reg := int(op & 0x07)
		if rexB {
			reg += 8
		}
		m.Reg = reg
		m.HasImm = true
		if op == 0xB0 {
			m.Imm = uint64(r.u8())
		} else if m.OperandSize == 8 {
			m.Imm = r.u64()
		} else {
			m.Imm = uint64(r.u32())
		}
		m.Length = r.pos
		return m, true
	}

	if r.pos >= len(b) {
		return Mov{}, false
	}
	modrm := r.u8()
	mod := (modrm >> 6) & 3
	regField := int((modrm >> 3) & 7)
	rmField := int(modrm & 7)
	if rexR {
		regField += 8
	}
	m.Reg = regField

	if mod == 3 {
		// register-direct: no memory operand, treat rm as the "base".
		rm := rmField
		if rexB {
			rm += 8
		}
		m.Base = rm
		m.HasBase = true
	} else {
		if rmField == 4 {
			if r.pos >= len(b) {
				return Mov{}, false
			}
			sib := r.u8()
			scale := 1 << ((sib >> 6) & 3)
			idx := int((sib >> 3) & 7)
			base := int(sib & 7)
			if rexX {
				idx += 8
			}
			if rexB {
				base += 8
			}
			if idx != 4 { // rsp in the index slot means "no index"
				m.HasIndex = true
				m.Index = idx
				m.Scale = scale
			}
			if mod == 0 && (sib&7) == 5 {
				if r.pos+4 > len(b) {
					return Mov{}, false
				}
				m.Disp = r.i32()
			} else {
				m.HasBase = true
				m.Base = base
			}
		} else if mod == 0 && rmField == 5 {
			// RIP-relative: not used by any fastmem access this generator
			// emits (every guest address is register-computed), so this
			// shape is rejected rather than decoded.
			return Mov{}, false
		} else {
			base := rmField
			if rexB {
				base += 8
			}
			m.HasBase = true
			m.Base = base
		}

		switch mod {
		case 1:
			if r.pos >= len(b) {
				return Mov{}, false
			}
			m.Disp = int32(r.i8())
		case 2:
			if r.pos+4 > len(b) {
				return Mov{}, false
			}
			m.Disp = r.i32()
		}
	}

	if op == 0xC6 || op == 0xC7 {
		m.HasImm = true
		if op == 0xC6 {
			if r.pos >= len(b) {
				return Mov{}, false
			}
			m.Imm = uint64(r.u8())
		} else {
			if r.pos+4 > len(b) {
				return Mov{}, false
			}
			m.Imm = uint64(r.u32())
		}
	}

	m.Length = r.pos
	return m, true
}
