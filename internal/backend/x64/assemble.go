package x64

import (
	"fmt"

	"github.com/zotley/dcjit/internal/backend"
	"github.com/zotley/dcjit/internal/dcerr"
	"github.com/zotley/dcjit/internal/except"
	"github.com/zotley/dcjit/internal/ir"
	"github.com/zotley/dcjit/internal/ir/passes"
)

// Backend is the native code generator: it owns one growable executable
// arena and lowers each optimized builder directly into it.
type Backend struct {
	protectedBase uintptr
	buf           *codeBuf
}

// New creates a native backend addressing the given fastmem protected-base
// alias (memspace.AddressSpace.ProtectedBase) for every guest memory access
// it emits.
func New(protectedBase uintptr) (*Backend, error) {
	buf, err := newCodeBuf()
	if err != nil {
		return nil, err
	}
	return &Backend{protectedBase: protectedBase, buf: buf}, nil
}

func (be *Backend) Registers() []passes.RegisterDef { return Registers() }

func (be *Backend) Reset() { be.buf.reset() }

// HandleException reports every fault as unhandled: it always returns
// false. It does not decode the mov at the fault PC, does not perform the
// access through the slow path and does not move the saved RIP. DecodeMov,
// which recognizes the fastmem load/store forms, is tested on its own and
// is not called from here.
func (be *Backend) HandleException(ex *except.Exception) bool {
	return false
}

// physGP maps a RegisterAllocation index (0-5) to its backing GPR number.
func physGP(idx int) int { return int(calleeSavedGP[idx]) }

// physXMM maps a RegisterAllocation index (6-11, i.e. idx-6 within the
// float partition) to its backing XMM register number.
func physXMM(idx int) int { return calleeSavedXMM[idx-len(calleeSavedGP)] }

// assembler holds the per-call state needed while walking one builder:
// the destination buffer and the frame layout decided at prologue time.
type assembler struct {
	buf        *codeBuf
	localBase  int // rsp, after the prologue's sub
	frameBytes int32
}

// Assemble lowers an optimized, register-allocated single-block builder
// into native code and returns a RuntimeBlock wrapping it in the
// callBlock trampoline (spec.md §4.7).
func (be *Backend) Assemble(b *ir.Builder) (backend.RuntimeBlock, error) {
	blocks := b.Blocks()
	if len(blocks) == 0 {
		return backend.RuntimeBlock{}, fmt.Errorf("%w: empty builder", dcerr.Bug)
	}
	blk := blocks[0]

	frame := int32(b.LocalSize())
	if rem := frame % 16; rem != 0 {
		frame += 16 - rem
	}

	as := &assembler{buf: be.buf, frameBytes: frame, localBase: int(rsp)}
	if as.buf.remaining() < 256 {
		return backend.RuntimeBlock{}, fmt.Errorf("%w: x64 code buffer exhausted", dcerr.BufferOverflow)
	}

	entry := as.buf.pos
	as.emitPrologue()
	as.buf.movRegImm64(int(pbReg), uint64(be.protectedBase))
	// pbReg now holds the fastmem protected-base alias for the whole block;
	// every OpLoad/OpStore addresses [pbReg + addrReg].

	var assembleErr error
	instrs := collectInstrs(blk)
	for idx, instr := range instrs {
		if assembleErr != nil {
			break
		}
		isLast := idx == len(instrs)-1
		if isLast {
			assembleErr = as.emitTerminator(instr)
			break
		}
		assembleErr = as.emitInstr(instr)
	}
	if assembleErr != nil {
		return backend.RuntimeBlock{}, assembleErr
	}

	fnAddr := as.buf.entryAddr(entry)
	cycles, _ := b.Meta("guest_cycles")
	gc, _ := cycles.(int32)
	fn := func(ctx uintptr) uint32 { return callBlock(fnAddr, ctx) }
	return backend.RuntimeBlock{Fn: fn, GuestCycles: gc}, nil
}

func collectInstrs(blk *ir.Block) []*ir.Instr {
	var out []*ir.Instr
	blk.Instrs(func(i *ir.Instr) { out = append(out, i) })
	return out
}

func (as *assembler) emitPrologue() {
	for _, r := range calleeSavedGP {
		as.buf.pushReg(int(r))
	}
	if as.frameBytes > 0 {
		as.buf.subRspImm32(as.frameBytes)
	}
}

func (as *assembler) emitEpilogue() {
	if as.frameBytes > 0 {
		as.buf.addRspImm32(as.frameBytes)
	}
	for i := len(calleeSavedGP) - 1; i >= 0; i-- {
		as.buf.popReg(int(calleeSavedGP[i]))
	}
	as.buf.ret()
}

// materializeInt loads v's value into scratch, returning the GPR number
// holding it: a dedicated register's own backing GPR if v lives there
// unspilled, or tmp scratch otherwise.
func (as *assembler) materializeInt(v *ir.Value, scratch int) int {
	if v == nil {
		as.buf.xorSelfZero(scratch)
		return scratch
	}
	if v.IsConstant() {
		as.buf.movRegImm64(scratch, v.Bits())
		return scratch
	}
	if v.Spill() != ir.NoSpill {
		as.buf.loadMem(scratch, as.localBase, false, 0, 1, int32(v.Spill()))
		return scratch
	}
	return physGP(v.Reg())
}

func (as *assembler) materializeFloat(v *ir.Value, scratch int) int {
	if v == nil {
		return scratch
	}
	if v.IsConstant() {
		as.buf.movRegImm64(int(tmp0), v.Bits())
		as.buf.movqGPtoXMM(scratch, int(tmp0))
		return scratch
	}
	if v.Spill() != ir.NoSpill {
		as.buf.movsdLoad(scratch, as.localBase, int32(v.Spill()))
		return scratch
	}
	return physXMM(v.Reg())
}

func (as *assembler) storeIntResult(v *ir.Value, srcReg int) {
	if v.Spill() != ir.NoSpill {
		as.buf.storeMem(as.localBase, false, 0, 1, int32(v.Spill()), srcReg)
		return
	}
	dst := physGP(v.Reg())
	if dst != srcReg {
		as.buf.movRegReg(dst, srcReg)
	}
}

func (as *assembler) storeFloatResult(v *ir.Value, srcReg int) {
	if v.Spill() != ir.NoSpill {
		as.buf.movsdStore(as.localBase, int32(v.Spill()), srcReg)
		return
	}
	dst := physXMM(v.Reg())
	if dst != srcReg {
		as.buf.movsdRegReg(dst, srcReg)
	}
}

const (
	scratchInt0 = int(rax)
	scratchInt1 = int(rdx)
	scratchInt2 = int(rcx)
	scratchXMM0 = 0
	scratchXMM1 = 1
)

func isFloatInstr(instr *ir.Instr) bool {
	if instr.Result() != nil {
		return instr.Result().Type().IsFloat()
	}
	if a := instr.Arg(0); a != nil {
		return a.Type().IsFloat()
	}
	return false
}

func (as *assembler) emitInstr(instr *ir.Instr) error {
	switch instr.Op() {
	case ir.OpLoadContext:
		off := int32(instr.Arg(0).AsInt64())
		typ := instr.Result().Type()
		if typ.IsFloat() {
			as.buf.movsdLoad(scratchXMM0, int(ctxReg), off)
			as.storeFloatResult(instr.Result(), scratchXMM0)
		} else {
			as.buf.loadMem(scratchInt0, int(ctxReg), false, 0, 1, off)
			as.storeIntResult(instr.Result(), scratchInt0)
		}
	case ir.OpStoreContext:
		off := int32(instr.Arg(0).AsInt64())
		if instr.Arg(1).Type().IsFloat() {
			src := as.materializeFloat(instr.Arg(1), scratchXMM0)
			as.buf.movsdStore(int(ctxReg), off, src)
		} else {
			src := as.materializeInt(instr.Arg(1), scratchInt0)
			as.buf.storeMem(int(ctxReg), false, 0, 1, off, src)
		}
	case ir.OpLoadLocal:
		off := int32(instr.Arg(0).AsInt64())
		typ := instr.Result().Type()
		if typ.IsFloat() {
			as.buf.movsdLoad(scratchXMM0, as.localBase, off)
			as.storeFloatResult(instr.Result(), scratchXMM0)
		} else {
			as.buf.loadMem(scratchInt0, as.localBase, false, 0, 1, off)
			as.storeIntResult(instr.Result(), scratchInt0)
		}
	case ir.OpStoreLocal:
		off := int32(instr.Arg(0).AsInt64())
		if instr.Arg(1).Type().IsFloat() {
			src := as.materializeFloat(instr.Arg(1), scratchXMM0)
			as.buf.movsdStore(as.localBase, off, src)
		} else {
			src := as.materializeInt(instr.Arg(1), scratchInt0)
			as.buf.storeMem(as.localBase, false, 0, 1, off, src)
		}
	case ir.OpLoad:
		addr := as.materializeInt(instr.Arg(0), scratchInt1)
		typ := instr.Result().Type()
		if typ.IsFloat() {
			as.buf.loadMem(scratchInt0, int(pbReg), true, addr, 1, 0)
			as.buf.movqGPtoXMM(scratchXMM0, scratchInt0)
			as.storeFloatResult(instr.Result(), scratchXMM0)
		} else {
			as.buf.loadMem(scratchInt0, int(pbReg), true, addr, 1, 0)
			as.storeIntResult(instr.Result(), scratchInt0)
		}
	case ir.OpStore:
		addr := as.materializeInt(instr.Arg(0), scratchInt1)
		if instr.Arg(1).Type().IsFloat() {
			src := as.materializeFloat(instr.Arg(1), scratchXMM0)
			as.buf.movqXMMtoGP(scratchInt0, src)
			as.buf.storeMem(int(pbReg), true, addr, 1, 0, scratchInt0)
		} else {
			src := as.materializeInt(instr.Arg(1), scratchInt0)
			as.buf.storeMem(int(pbReg), true, addr, 1, 0, src)
		}
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv, ir.OpUDiv, ir.OpAnd, ir.OpOr,
		ir.OpXor, ir.OpShl, ir.OpAshr, ir.OpLshr:
		if isFloatInstr(instr) {
			as.emitFloatBinop(instr)
		} else {
			as.emitIntBinop(instr)
		}
	case ir.OpNeg, ir.OpNot, ir.OpAbs, ir.OpSqrt:
		as.emitUnary(instr)
	case ir.OpCmpEq, ir.OpCmpNe, ir.OpCmpSgt, ir.OpCmpSge, ir.OpCmpSlt, ir.OpCmpSle,
		ir.OpCmpUgt, ir.OpCmpUge, ir.OpCmpUlt, ir.OpCmpUle:
		as.emitCompare(instr)
	case ir.OpSelect:
		as.emitSelect(instr)
	case ir.OpSExt, ir.OpZExt, ir.OpTruncate, ir.OpCast:
		as.emitConvert(instr)
	case ir.OpCallExternal, ir.OpInvalidateContext, ir.OpNop:
		// no-op at the machine-code level: external calls and context
		// invalidation markers exist for the optimizer, not codegen.
	default:
		return fmt.Errorf("%w: x64 backend has no lowering for opcode %s", dcerr.Bug, instr.Op())
	}
	return nil
}

func (as *assembler) emitIntBinop(instr *ir.Instr) {
	a := as.materializeInt(instr.Arg(0), scratchInt0)
	switch instr.Op() {
	case ir.OpAdd:
		c := as.materializeInt(instr.Arg(1), scratchInt1)
		as.buf.aluRegReg(aluAdd, a, c)
	case ir.OpSub:
		c := as.materializeInt(instr.Arg(1), scratchInt1)
		as.buf.aluRegReg(aluSub, a, c)
	case ir.OpMul:
		c := as.materializeInt(instr.Arg(1), scratchInt1)
		as.buf.imulRegReg(a, c)
	case ir.OpAnd:
		c := as.materializeInt(instr.Arg(1), scratchInt1)
		as.buf.aluRegReg(aluAnd, a, c)
	case ir.OpOr:
		c := as.materializeInt(instr.Arg(1), scratchInt1)
		as.buf.aluRegReg(aluOr, a, c)
	case ir.OpXor:
		c := as.materializeInt(instr.Arg(1), scratchInt1)
		as.buf.aluRegReg(aluXor, a, c)
	case ir.OpShl, ir.OpAshr, ir.OpLshr:
		count := as.materializeInt(instr.Arg(1), scratchInt2)
		if count != scratchInt2 {
			as.buf.movRegReg(scratchInt2, count)
		}
		ext := map[ir.Opcode]int{ir.OpShl: 4, ir.OpLshr: 5, ir.OpAshr: 7}[instr.Op()]
		as.buf.shiftCLReg(ext, a)
	case ir.OpSDiv, ir.OpUDiv:
		// idiv/div take the dividend in rdx:rax; relocate a into rax first.
		if a != scratchInt0 {
			as.buf.movRegReg(scratchInt0, a)
			a = scratchInt0
		}
		divisor := as.materializeInt(instr.Arg(1), scratchInt2)
		if divisor == scratchInt0 {
			as.buf.movRegReg(scratchInt2, divisor)
			divisor = scratchInt2
		}
		if instr.Op() == ir.OpSDiv {
			as.buf.cqo()
			as.buf.idivReg(divisor)
		} else {
			as.buf.xorSelfZero(scratchInt1)
			as.buf.divReg(divisor)
		}
		a = scratchInt0
	}
	as.storeIntResult(instr.Result(), a)
}

func (as *assembler) emitFloatBinop(instr *ir.Instr) {
	a := as.materializeFloat(instr.Arg(0), scratchXMM0)
	c := as.materializeFloat(instr.Arg(1), scratchXMM1)
	var op sseOp
	switch instr.Op() {
	case ir.OpAdd:
		op = sseAdd
	case ir.OpSub:
		op = sseSub
	case ir.OpMul:
		op = sseMul
	case ir.OpSDiv:
		op = sseDiv
	}
	as.buf.sseRegReg(op, a, c)
	as.storeFloatResult(instr.Result(), a)
}

func (as *assembler) emitUnary(instr *ir.Instr) {
	if isFloatInstr(instr) {
		a := as.materializeFloat(instr.Arg(0), scratchXMM0)
		switch instr.Op() {
		case ir.OpNeg:
			zero := scratchXMM1
			as.buf.movRegImm64(int(tmp0), 0)
			as.buf.movqGPtoXMM(zero, int(tmp0))
			as.buf.sseRegReg(sseSub, zero, a)
			a = zero
		case ir.OpAbs:
			// clear the sign bit through a GPR.
			as.buf.movqXMMtoGP(scratchInt0, a)
			as.buf.movRegImm64(scratchInt1, 0x7fffffffffffffff)
			as.buf.aluRegReg(aluAnd, scratchInt0, scratchInt1)
			as.buf.movqGPtoXMM(scratchXMM1, scratchInt0)
			a = scratchXMM1
		case ir.OpSqrt:
			as.buf.sseRegReg(sseSqrt, scratchXMM1, a)
			a = scratchXMM1
		}
		as.storeFloatResult(instr.Result(), a)
		return
	}
	a := as.materializeInt(instr.Arg(0), scratchInt0)
	switch instr.Op() {
	case ir.OpNeg:
		as.buf.negReg(a)
	case ir.OpNot:
		as.buf.notReg(a)
	}
	as.storeIntResult(instr.Result(), a)
}

var ccForCmp = map[ir.Opcode]byte{
	ir.OpCmpEq: ccE, ir.OpCmpNe: ccNE,
	ir.OpCmpSgt: ccG, ir.OpCmpSge: ccGE, ir.OpCmpSlt: ccL, ir.OpCmpSle: ccLE,
	ir.OpCmpUgt: ccA, ir.OpCmpUge: ccAE, ir.OpCmpUlt: ccB, ir.OpCmpUle: ccBE,
}

func (as *assembler) emitCompare(instr *ir.Instr) {
	a := as.materializeInt(instr.Arg(0), scratchInt0)
	c := as.materializeInt(instr.Arg(1), scratchInt1)
	if a == scratchInt1 {
		// avoid clobbering a scratch register cmp still needs to read.
		as.buf.movRegReg(scratchInt2, a)
		a = scratchInt2
	}
	as.buf.aluRegReg(aluCmp, a, c)
	as.buf.setccMovzx(ccForCmp[instr.Op()], scratchInt0)
	as.storeIntResult(instr.Result(), scratchInt0)
}

func (as *assembler) emitSelect(instr *ir.Instr) {
	cond := as.materializeInt(instr.Arg(0), scratchInt2)
	if cond != scratchInt2 {
		as.buf.movRegReg(scratchInt2, cond)
	}
	as.buf.testRegReg(scratchInt2)
	if isFloatInstr(instr) {
		// float select has no direct cmov-xmm form here; route through a
		// GPR: move both candidates' bits through rax/rdx and cmovne.
		t := as.materializeFloat(instr.Arg(1), scratchXMM0)
		f := as.materializeFloat(instr.Arg(2), scratchXMM1)
		as.buf.movqXMMtoGP(scratchInt0, f)
		as.buf.movqXMMtoGP(scratchInt1, t)
		as.buf.cmovccRegReg(ccNE, scratchInt0, scratchInt1)
		as.buf.movqGPtoXMM(scratchXMM0, scratchInt0)
		as.storeFloatResult(instr.Result(), scratchXMM0)
		return
	}
	f := as.materializeInt(instr.Arg(2), scratchInt0)
	t := as.materializeInt(instr.Arg(1), scratchInt1)
	as.buf.cmovccRegReg(ccNE, f, t)
	as.storeIntResult(instr.Result(), f)
}

func (as *assembler) emitConvert(instr *ir.Instr) {
	from, to := instr.Arg(0).Type(), instr.Result().Type()
	if from.IsFloat() || to.IsFloat() {
		// int<->float reinterpretation (OpCast) or width changes on a
		// float value pass the bit pattern through unchanged at this
		// backend's single-width (f64-carrying) granularity.
		src := as.materializeFloat(instr.Arg(0), scratchXMM0)
		as.storeFloatResult(instr.Result(), src)
		return
	}
	a := as.materializeInt(instr.Arg(0), scratchInt0)
	switch instr.Op() {
	case ir.OpTruncate:
		mask := uint64(1)<<(uint(to.Size())*8) - 1
		if to == ir.I64 {
			mask = ^uint64(0)
		}
		as.buf.movRegImm64(scratchInt1, mask)
		as.buf.aluRegReg(aluAnd, a, scratchInt1)
	case ir.OpZExt:
		// the narrower store already zero-filled the register on its last
		// 32-bit write; nothing further to mask for a widen to 64 bits.
	case ir.OpSExt:
		// shl moves the source's top bit up to bit 63; sar then copies it
		// back down through every widened bit.
		if a != scratchInt0 {
			as.buf.movRegReg(scratchInt0, a)
			a = scratchInt0
		}
		as.buf.movRegImm64(scratchInt2, uint64(64-from.Size()*8))
		as.buf.shiftCLReg(4, a)
		as.buf.shiftCLReg(7, a)
	}
	as.storeIntResult(instr.Result(), a)
}

// emitTerminator lowers the block's final instruction (always OpBranch or
// OpBranchCond) and emits the shared epilogue inline, since the exit value
// must land in eax immediately before the single ret (spec.md §4.6's
// "a branch callback returns a guest PC instead").
func (as *assembler) emitTerminator(instr *ir.Instr) error {
	switch instr.Op() {
	case ir.OpBranch:
		target := as.materializeInt(instr.Arg(0), scratchInt0)
		if target != scratchInt0 {
			as.buf.movRegReg(scratchInt0, target)
		}
	case ir.OpBranchCond:
		cond := as.materializeInt(instr.Arg(0), scratchInt2)
		if cond != scratchInt2 {
			as.buf.movRegReg(scratchInt2, cond)
		}
		as.buf.testRegReg(scratchInt2)
		f := as.materializeInt(instr.Arg(2), scratchInt0)
		if f != scratchInt0 {
			as.buf.movRegReg(scratchInt0, f)
		}
		t := as.materializeInt(instr.Arg(1), scratchInt1)
		as.buf.cmovccRegReg(ccNE, scratchInt0, t)
	default:
		return fmt.Errorf("%w: x64 backend terminator must be a branch, got %s", dcerr.Bug, instr.Op())
	}
	as.emitEpilogue()
	return nil
}
