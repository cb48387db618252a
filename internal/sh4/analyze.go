package sh4

// Mode bits accepted by AnalyzeBlock.
type AnalyzeFlags int

const (
	// SingleInstr stops analysis after exactly one decoded instruction
	// (spec.md §4.5). No caller in this module passes it.
	SingleInstr AnalyzeFlags = 1 << iota
)

// AnalyzeBlock walks guest memory starting at addr, decoding one opcode at
// a time via read16, until it reaches a terminator: a branch, or an
// instruction that writes SR (may unmask interrupts) or FPSCR (invalidates
// the FPU precision the block was compiled under). It returns the decoded
// instruction stream and the total byte size of the scanned range.
// Grounded directly on sh4_analyzer.cc's AnalyzeBlock.
func AnalyzeBlock(addr uint32, read16 func(uint32) uint16, flags AnalyzeFlags) ([]Instr, int) {
	var out []Instr
	size := 0

	for {
		var in Instr
		in.Addr = addr
		in.Opcode = read16(addr)

		if !Disasm(&in) {
			break
		}
		out = append(out, in)

		step := uint32(2)
		if in.Type.Flags&FlagDelayed != 0 {
			step = 4
		}
		addr += step
		size += int(step)

		if in.Type.Flags&(FlagBranch|FlagSetSR|FlagSetFPSCR) != 0 {
			break
		}
		if flags&SingleInstr != 0 {
			break
		}
	}

	return out, size
}
