package sh4

// Decoder: a 65,536-entry lookup table built once at init from a table of
// (name, signature, cycles, flags) entries, each signature a 16-character
// string of '0'/'1' fixed bits and 'n'/'m'/'i'/'d' variable fields. Grounded
// directly on original_source's sh4_disassembler.cc (GetArgMask / InitInstrTables
// / Disasm), translated from a static-init C++ singleton into a Go package
// init() building the same three artifacts: per-field masks/shifts on each
// InstrType, and a flat [65536]*InstrType lookup.
//
// Coverage: the table below implements the instructions the frontend in
// frontend.go actually translates (data movement, integer arithmetic/logic/
// shift, compare, branch, the common LDC/STC/LDS/STS system moves, and the
// core scalar FPU ops). A handful of rarely-generated SH4 instructions
// (TLB control, the vector FPU ops FIPR/FTRV/FSCA, 64-bit MAC accumulation)
// are intentionally not in this table; decoding one ends the containing
// block exactly as an unrecognized opcode would (spec.md §4.5 "stops at the
// first terminator" / DecodeFailure, see dcerr).

// OpFlag mirrors OP_FLAG_* from the original: attributes of an opcode that
// the analyzer and frontend need without re-deriving them from the
// signature.
type OpFlag uint8

const (
	FlagBranch OpFlag = 1 << iota
	FlagDelayed
	FlagSetSR
	FlagSetFPSCR
	FlagConditional
)

// InstrType is one decode-table entry: the parsed signature plus the masks/
// shifts GetArgMask extracts from it.
type InstrType struct {
	Name   string
	Sig    string
	Cycles int
	Flags  OpFlag

	OpcodeMask uint16
	ImmMask    uint16
	ImmShift   uint
	DispMask   uint16
	DispShift  uint
	RmMask     uint16
	RmShift    uint
	RnMask     uint16
	RnShift    uint
}

// Instr is a decoded opcode: the matched type plus the operand fields
// extracted from the 16-bit word.
type Instr struct {
	Addr   uint32
	Opcode uint16
	Type   *InstrType
	Rm, Rn int
	Disp   uint16
	Imm    uint16
}

var instrTable = []InstrType{
	{Name: "MOV", Sig: "0110nnnnmmmm0011", Cycles: 1},
	{Name: "MOV.B_STORE", Sig: "0010nnnnmmmm0000", Cycles: 1},
	{Name: "MOV.W_STORE", Sig: "0010nnnnmmmm0001", Cycles: 1},
	{Name: "MOV.L_STORE", Sig: "0010nnnnmmmm0010", Cycles: 1},
	{Name: "MOV.B_LOAD", Sig: "0110nnnnmmmm0000", Cycles: 1},
	{Name: "MOV.W_LOAD", Sig: "0110nnnnmmmm0001", Cycles: 1},
	{Name: "MOV.L_LOAD", Sig: "0110nnnnmmmm0010", Cycles: 1},
	{Name: "MOV.B_LOAD_INC", Sig: "0110nnnnmmmm0100", Cycles: 1},
	{Name: "MOV.W_LOAD_INC", Sig: "0110nnnnmmmm0101", Cycles: 1},
	{Name: "MOV.L_LOAD_INC", Sig: "0110nnnnmmmm0110", Cycles: 1},
	{Name: "MOV.B_STORE_DEC", Sig: "0010nnnnmmmm0100", Cycles: 1},
	{Name: "MOV.W_STORE_DEC", Sig: "0010nnnnmmmm0101", Cycles: 1},
	{Name: "MOV.L_STORE_DEC", Sig: "0010nnnnmmmm0110", Cycles: 1},
	{Name: "MOV.L_STORE_DISP", Sig: "0001nnnnmmmmdddd", Cycles: 1},
	{Name: "MOV.L_LOAD_DISP", Sig: "0101nnnnmmmmdddd", Cycles: 1},
	{Name: "MOV.B_STORE_R0", Sig: "0000nnnnmmmm0100", Cycles: 1},
	{Name: "MOV.W_STORE_R0", Sig: "0000nnnnmmmm0101", Cycles: 1},
	{Name: "MOV.L_STORE_R0", Sig: "0000nnnnmmmm0110", Cycles: 1},
	{Name: "MOV.B_LOAD_R0", Sig: "0000nnnnmmmm1100", Cycles: 1},
	{Name: "MOV.W_LOAD_R0", Sig: "0000nnnnmmmm1101", Cycles: 1},
	{Name: "MOV.L_LOAD_R0", Sig: "0000nnnnmmmm1110", Cycles: 1},
	{Name: "MOVT", Sig: "0000nnnn00101001", Cycles: 1},
	{Name: "MOV_IMM", Sig: "1110nnnniiiiiiii", Cycles: 1},
	{Name: "MOV.W_LOAD_PC", Sig: "1001nnnndddddddd", Cycles: 1},
	{Name: "MOV.L_LOAD_PC", Sig: "1101nnnndddddddd", Cycles: 1},
	{Name: "MOVA", Sig: "11000111dddddddd", Cycles: 1},
	{Name: "SWAP.B", Sig: "0110nnnnmmmm1000", Cycles: 1},
	{Name: "SWAP.W", Sig: "0110nnnnmmmm1001", Cycles: 1},
	{Name: "XTRCT", Sig: "0010nnnnmmmm1101", Cycles: 1},

	{Name: "ADD", Sig: "0011nnnnmmmm1100", Cycles: 1},
	{Name: "ADD_IMM", Sig: "0111nnnniiiiiiii", Cycles: 1},
	{Name: "ADDC", Sig: "0011nnnnmmmm1110", Cycles: 1},
	{Name: "ADDV", Sig: "0011nnnnmmmm1111", Cycles: 1},
	{Name: "CMP/EQ_IMM", Sig: "10001000iiiiiiii", Cycles: 1},
	{Name: "CMP/EQ", Sig: "0011nnnnmmmm0000", Cycles: 1},
	{Name: "CMP/HS", Sig: "0011nnnnmmmm0010", Cycles: 1},
	{Name: "CMP/GE", Sig: "0011nnnnmmmm0011", Cycles: 1},
	{Name: "CMP/HI", Sig: "0011nnnnmmmm0110", Cycles: 1},
	{Name: "CMP/GT", Sig: "0011nnnnmmmm0111", Cycles: 1},
	{Name: "CMP/PL", Sig: "0100nnnn00010101", Cycles: 1},
	{Name: "CMP/PZ", Sig: "0100nnnn00010001", Cycles: 1},
	{Name: "CMP/STR", Sig: "0010nnnnmmmm1100", Cycles: 1},
	{Name: "DIV0S", Sig: "0010nnnnmmmm0111", Cycles: 1},
	{Name: "DIV0U", Sig: "0000000000011001", Cycles: 1},
	{Name: "DIV1", Sig: "0011nnnnmmmm0100", Cycles: 1},
	{Name: "DMULS.L", Sig: "0011nnnnmmmm1101", Cycles: 2},
	{Name: "DMULU.L", Sig: "0011nnnnmmmm0101", Cycles: 2},
	{Name: "DT", Sig: "0100nnnn00010000", Cycles: 1},
	{Name: "EXTS.B", Sig: "0110nnnnmmmm1110", Cycles: 1},
	{Name: "EXTS.W", Sig: "0110nnnnmmmm1111", Cycles: 1},
	{Name: "EXTU.B", Sig: "0110nnnnmmmm1100", Cycles: 1},
	{Name: "EXTU.W", Sig: "0110nnnnmmmm1101", Cycles: 1},
	{Name: "MUL.L", Sig: "0000nnnnmmmm0111", Cycles: 2},
	{Name: "MULS.W", Sig: "0010nnnnmmmm1111", Cycles: 1},
	{Name: "MULU.W", Sig: "0010nnnnmmmm1110", Cycles: 1},
	{Name: "NEG", Sig: "0110nnnnmmmm1011", Cycles: 1},
	{Name: "NEGC", Sig: "0110nnnnmmmm1010", Cycles: 1},
	{Name: "SUB", Sig: "0011nnnnmmmm1000", Cycles: 1},
	{Name: "SUBC", Sig: "0011nnnnmmmm1010", Cycles: 1},
	{Name: "SUBV", Sig: "0011nnnnmmmm1011", Cycles: 1},

	{Name: "AND", Sig: "0010nnnnmmmm1001", Cycles: 1},
	{Name: "AND_IMM", Sig: "11001001iiiiiiii", Cycles: 1},
	{Name: "NOT", Sig: "0110nnnnmmmm0111", Cycles: 1},
	{Name: "OR", Sig: "0010nnnnmmmm1011", Cycles: 1},
	{Name: "OR_IMM", Sig: "11001011iiiiiiii", Cycles: 1},
	{Name: "TAS.B", Sig: "0100nnnn00011011", Cycles: 4},
	{Name: "TST", Sig: "0010nnnnmmmm1000", Cycles: 1},
	{Name: "TST_IMM", Sig: "11001000iiiiiiii", Cycles: 1},
	{Name: "XOR", Sig: "0010nnnnmmmm1010", Cycles: 1},
	{Name: "XOR_IMM", Sig: "11001010iiiiiiii", Cycles: 1},

	{Name: "ROTL", Sig: "0100nnnn00000100", Cycles: 1},
	{Name: "ROTR", Sig: "0100nnnn00000101", Cycles: 1},
	{Name: "ROTCL", Sig: "0100nnnn00100100", Cycles: 1},
	{Name: "ROTCR", Sig: "0100nnnn00100101", Cycles: 1},
	{Name: "SHAD", Sig: "0100nnnnmmmm1100", Cycles: 1},
	{Name: "SHAL", Sig: "0100nnnn00100000", Cycles: 1},
	{Name: "SHAR", Sig: "0100nnnn00100001", Cycles: 1},
	{Name: "SHLD", Sig: "0100nnnnmmmm1101", Cycles: 1},
	{Name: "SHLL", Sig: "0100nnnn00000000", Cycles: 1},
	{Name: "SHLL2", Sig: "0100nnnn00001000", Cycles: 1},
	{Name: "SHLL8", Sig: "0100nnnn00011000", Cycles: 1},
	{Name: "SHLL16", Sig: "0100nnnn00101000", Cycles: 1},
	{Name: "SHLR", Sig: "0100nnnn00000001", Cycles: 1},
	{Name: "SHLR2", Sig: "0100nnnn00001001", Cycles: 1},
	{Name: "SHLR8", Sig: "0100nnnn00011001", Cycles: 1},
	{Name: "SHLR16", Sig: "0100nnnn00101001", Cycles: 1},

	{Name: "BF", Sig: "10001011dddddddd", Cycles: 1, Flags: FlagBranch | FlagConditional},
	{Name: "BF/S", Sig: "10001111dddddddd", Cycles: 1, Flags: FlagBranch | FlagConditional | FlagDelayed},
	{Name: "BT", Sig: "10001001dddddddd", Cycles: 1, Flags: FlagBranch | FlagConditional},
	{Name: "BT/S", Sig: "10001101dddddddd", Cycles: 1, Flags: FlagBranch | FlagConditional | FlagDelayed},
	{Name: "BRA", Sig: "1010dddddddddddd", Cycles: 1, Flags: FlagBranch | FlagDelayed},
	{Name: "BRAF", Sig: "0000nnnn00100011", Cycles: 2, Flags: FlagBranch | FlagDelayed},
	{Name: "BSR", Sig: "1011dddddddddddd", Cycles: 1, Flags: FlagBranch | FlagDelayed},
	{Name: "BSRF", Sig: "0000nnnn00000011", Cycles: 2, Flags: FlagBranch | FlagDelayed},
	{Name: "JMP", Sig: "0100nnnn00101011", Cycles: 1, Flags: FlagBranch | FlagDelayed},
	{Name: "JSR", Sig: "0100nnnn00001011", Cycles: 1, Flags: FlagBranch | FlagDelayed},
	{Name: "RTS", Sig: "0000000000001011", Cycles: 2, Flags: FlagBranch | FlagDelayed},

	{Name: "CLRMAC", Sig: "0000000000101000", Cycles: 1},
	{Name: "CLRS", Sig: "0000000001001000", Cycles: 1},
	{Name: "CLRT", Sig: "0000000000001000", Cycles: 1},
	{Name: "SETS", Sig: "0000000001011000", Cycles: 1},
	{Name: "SETT", Sig: "0000000000011000", Cycles: 1},
	{Name: "NOP", Sig: "0000000000001001", Cycles: 1},
	{Name: "PREF", Sig: "0000nnnn10000011", Cycles: 1},

	{Name: "LDC_SR", Sig: "0100nnnn00001110", Cycles: 1, Flags: FlagSetSR},
	{Name: "LDC_GBR", Sig: "0100nnnn00011110", Cycles: 1},
	{Name: "LDC_VBR", Sig: "0100nnnn00101110", Cycles: 1},
	{Name: "LDC_SSR", Sig: "0100nnnn00111110", Cycles: 1},
	{Name: "LDC_SPC", Sig: "0100nnnn01001110", Cycles: 1},
	{Name: "LDC_DBR", Sig: "0100nnnn11111010", Cycles: 1},
	{Name: "STC_SR", Sig: "0000nnnn00000010", Cycles: 1},
	{Name: "STC_GBR", Sig: "0000nnnn00010010", Cycles: 1},
	{Name: "STC_VBR", Sig: "0000nnnn00100010", Cycles: 1},
	{Name: "STC_SSR", Sig: "0000nnnn00110010", Cycles: 1},
	{Name: "STC_SPC", Sig: "0000nnnn01000010", Cycles: 1},
	{Name: "STC_SGR", Sig: "0000nnnn00111010", Cycles: 1},
	{Name: "LDS_MACH", Sig: "0100nnnn00001010", Cycles: 1},
	{Name: "LDS_MACL", Sig: "0100nnnn00011010", Cycles: 1},
	{Name: "LDS_PR", Sig: "0100nnnn00101010", Cycles: 1},
	{Name: "STS_MACH", Sig: "0000nnnn00001010", Cycles: 1},
	{Name: "STS_MACL", Sig: "0000nnnn00011010", Cycles: 1},
	{Name: "STS_PR", Sig: "0000nnnn00101010", Cycles: 1},
	{Name: "LDS_FPUL", Sig: "0100nnnn01011010", Cycles: 1},
	{Name: "STS_FPUL", Sig: "0000nnnn01011010", Cycles: 1},
	{Name: "LDS_FPSCR", Sig: "0100nnnn01101010", Cycles: 1, Flags: FlagSetFPSCR},
	{Name: "STS_FPSCR", Sig: "0000nnnn01101010", Cycles: 1},

	{Name: "FADD", Sig: "1111nnnnmmmm0000", Cycles: 1},
	{Name: "FSUB", Sig: "1111nnnnmmmm0001", Cycles: 1},
	{Name: "FMUL", Sig: "1111nnnnmmmm0010", Cycles: 1},
	{Name: "FDIV", Sig: "1111nnnnmmmm0011", Cycles: 1},
	{Name: "FCMP/EQ", Sig: "1111nnnnmmmm0100", Cycles: 1},
	{Name: "FCMP/GT", Sig: "1111nnnnmmmm0101", Cycles: 1},
	{Name: "FMOV.S_LOAD", Sig: "1111nnnnmmmm1000", Cycles: 1},
	{Name: "FMOV.S_LOAD_INC", Sig: "1111nnnnmmmm1001", Cycles: 1},
	{Name: "FMOV.S_STORE", Sig: "1111nnnnmmmm1010", Cycles: 1},
	{Name: "FMOV.S_STORE_DEC", Sig: "1111nnnnmmmm1011", Cycles: 1},
	{Name: "FMOV", Sig: "1111nnnnmmmm1100", Cycles: 1},
	{Name: "FLDS", Sig: "1111mmmm00011101", Cycles: 1},
	{Name: "FSTS", Sig: "1111nnnn00001101", Cycles: 1},
	{Name: "FABS", Sig: "1111nnnn01011101", Cycles: 1},
	{Name: "FNEG", Sig: "1111nnnn01001101", Cycles: 1},
	{Name: "FSQRT", Sig: "1111nnnn01101101", Cycles: 1},
	{Name: "FLOAT", Sig: "1111nnnn00101101", Cycles: 1},
	{Name: "FTRC", Sig: "1111mmmm00111101", Cycles: 1},
}

const numOpcodes16 = 1 << 16

var decodeTable [numOpcodes16]*InstrType

func init() {
	for i := range instrTable {
		t := &instrTable[i]
		t.ImmMask, t.ImmShift = argMask(t.Sig, 'i')
		t.DispMask, t.DispShift = argMask(t.Sig, 'd')
		t.RmMask, t.RmShift = argMask(t.Sig, 'm')
		t.RnMask, t.RnShift = argMask(t.Sig, 'n')
		t.OpcodeMask, _ = argMask(t.Sig, 0)
	}

	for v := 0; v < numOpcodes16; v++ {
		value := uint16(v)
		for i := range instrTable {
			t := &instrTable[i]
			argMask := t.ImmMask | t.DispMask | t.RmMask | t.RnMask
			if value&^argMask == t.OpcodeMask {
				decodeTable[v] = t
				break
			}
		}
	}
}

// argMask mirrors sh4_disassembler.cc's GetArgMask: c==0 extracts the fixed
// '1' bits (the opcode's constant mask); otherwise it extracts the bits
// belonging to field c, along with that field's shift (the position of its
// least-significant bit).
func argMask(sig string, c byte) (mask uint16, shift uint) {
	n := len(sig)
	for i := 0; i < n; i++ {
		ch := sig[i]
		match := (c == 0 && ch == '1') || (c != 0 && ch == c)
		if match {
			mask |= 1 << uint(n-i-1)
			shift = uint(n - i - 1)
		}
	}
	return mask, shift
}

// Disasm decodes a 16-bit opcode word, filling in i.Type/Rm/Rn/Disp/Imm. It
// returns false if the word matches no entry in decodeTable.
func Disasm(i *Instr) bool {
	t := decodeTable[i.Opcode]
	if t == nil {
		return false
	}
	i.Type = t
	i.Rm = int(i.Opcode&t.RmMask) >> t.RmShift
	i.Rn = int(i.Opcode&t.RnMask) >> t.RnShift
	i.Disp = (i.Opcode & t.DispMask) >> t.DispShift
	i.Imm = (i.Opcode & t.ImmMask) >> t.ImmShift
	return true
}
