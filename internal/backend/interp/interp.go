// Package interp implements the portable interpreter backend: a linear
// array of IntInstr, each carrying a callback closure that lower builds at
// assembly time by switching on the instruction's opcode, with the operand
// and result types captured in the closure.
package interp

import (
	"fmt"
	"math"

	"github.com/zotley/dcjit/internal/backend"
	"github.com/zotley/dcjit/internal/dcerr"
	"github.com/zotley/dcjit/internal/except"
	"github.com/zotley/dcjit/internal/ir"
	"github.com/zotley/dcjit/internal/ir/passes"
)

// numIntRegs and numFloatRegs size the interpreter's virtual register
// file. Generous enough that ordinary SH4 basic blocks never spill; the
// register-allocation pass still runs (so the optimizer pipeline is
// identical across backends) and will insert store_local/load_local pairs
// on the rare block that does exceed this.
const (
	numIntRegs   = 32
	numFloatRegs = 32
)

// Registers returns the interpreter's virtual physical-register table.
func Registers() []passes.RegisterDef {
	var regs []passes.RegisterDef
	for i := 0; i < numIntRegs; i++ {
		regs = append(regs, passes.RegisterDef{Name: fmt.Sprintf("i%d", i), Mask: ir.I64})
	}
	for i := 0; i < numFloatRegs; i++ {
		regs = append(regs, passes.RegisterDef{Name: fmt.Sprintf("f%d", i), Mask: ir.F64})
	}
	return regs
}

// opKind distinguishes how an operand is stored: in a virtual register, a
// local stack slot, or as an immediate baked into the instruction.
type opKind uint8

const (
	opReg opKind = iota
	opLocal
	opImm
)

type operand struct {
	kind opKind
	slot int
	imm  uint64
}

// IntInstr is one interpreted instruction: a callback plus up to three
// operands and a result slot (spec.md §4.6).
type IntInstr struct {
	fn         func(m *machine, in *IntInstr) uint32
	args       [3]operand
	resultKind opKind
	resultSlot int
	guestAddr  uint32
}

// machine holds one call's virtual register file, its locals buffer and
// the guest context pointer. A fresh one is created for each call of the
// entrypoint that Assemble returns.
type machine struct {
	intRegs   [numIntRegs]uint64
	floatRegs [numFloatRegs]uint64
	locals    []byte
	ctx       uintptr
}

func (m *machine) readOperand(o operand, isFloat bool) uint64 {
	switch o.kind {
	case opImm:
		return o.imm
	case opLocal:
		return readLocal(m.locals, o.slot)
	default:
		if isFloat {
			return m.floatRegs[o.slot]
		}
		return m.intRegs[o.slot]
	}
}

func (m *machine) writeResult(instr *IntInstr, isFloat bool, v uint64) {
	switch instr.resultKind {
	case opLocal:
		writeLocal(m.locals, instr.resultSlot, v)
	default:
		if isFloat {
			m.floatRegs[instr.resultSlot] = v
		} else {
			m.intRegs[instr.resultSlot] = v
		}
	}
}

func readLocal(locals []byte, off int) uint64 {
	var v uint64
	for i := 0; i < 8 && off+i < len(locals); i++ {
		v |= uint64(locals[off+i]) << (8 * i)
	}
	return v
}

func writeLocal(locals []byte, off int, v uint64) {
	for i := 0; i < 8 && off+i < len(locals); i++ {
		locals[off+i] = byte(v >> (8 * i))
	}
}

// Block is the interpreter's assembled program: a flat instruction array
// plus the local-pool size to allocate per call.
type Block struct {
	instrs    []IntInstr
	localSize int
}

// Backend implements backend.Backend by assembling a Block and wrapping
// its execution loop in a RuntimeBlock.Fn.
type Backend struct {
	contextLoad  func(ctx uintptr, offset int32, typ ir.Type) uint64
	contextStore func(ctx uintptr, offset int32, typ ir.Type, v uint64)
	guestLoad    func(ctx uintptr, addr uint32, typ ir.Type) uint64
	guestStore   func(ctx uintptr, addr uint32, typ ir.Type, v uint64)
}

// New creates an interpreter backend. contextLoad/contextStore access the
// SH4Context struct; guestLoad/guestStore go through the address space.
func New(
	contextLoad func(ctx uintptr, offset int32, typ ir.Type) uint64,
	contextStore func(ctx uintptr, offset int32, typ ir.Type, v uint64),
	guestLoad func(ctx uintptr, addr uint32, typ ir.Type) uint64,
	guestStore func(ctx uintptr, addr uint32, typ ir.Type, v uint64),
) *Backend {
	return &Backend{contextLoad: contextLoad, contextStore: contextStore, guestLoad: guestLoad, guestStore: guestStore}
}

func (be *Backend) Registers() []passes.RegisterDef { return Registers() }

func (be *Backend) Reset() {}

func (be *Backend) HandleException(ex *except.Exception) bool { return false }

// Assemble lowers an optimized builder into a Block and wraps it in a
// RuntimeBlock entrypoint that runs the instructions in order.
func (be *Backend) Assemble(b *ir.Builder) (backend.RuntimeBlock, error) {
	blk, err := be.assembleBlock(b)
	if err != nil {
		return backend.RuntimeBlock{}, err
	}
	cycles, _ := b.Meta("guest_cycles")
	gc, _ := cycles.(int32)

	// A translated guest basic block is linear: every callback but the
	// last returns 0, which the loop ignores; the last instruction is
	// always the block's terminator and its callback returns the guest PC
	// to resume at. The entrypoint detects termination by reaching that
	// final index rather than inspecting the returned values.
	last := len(blk.instrs) - 1
	fn := func(ctx uintptr) uint32 {
		m := &machine{locals: make([]byte, blk.localSize), ctx: ctx}
		if last < 0 {
			return 0
		}
		for i := 0; i < last; i++ {
			blk.instrs[i].fn(m, &blk.instrs[i])
		}
		return blk.instrs[last].fn(m, &blk.instrs[last])
	}
	return backend.RuntimeBlock{Fn: fn, GuestCycles: gc}, nil
}

// assembleBlock walks the builder (assumed already register-allocated:
// every value carries either a register slot or a spill offset) and emits
// one IntInstr per IR instruction, with fn built by lower.
func (be *Backend) assembleBlock(b *ir.Builder) (*Block, error) {
	blocks := b.Blocks()
	if len(blocks) == 0 {
		return &Block{}, nil
	}
	var out []IntInstr
	// only single-block translation is supported by this interpreter
	// (SH4 basic blocks never branch internally); multi-block graphs
	// would need a block-offset table, noted as a known limitation.
	blk := blocks[0]
	var assembleErr error
	blk.Instrs(func(instr *ir.Instr) {
		if assembleErr != nil {
			return
		}
		ii, err := be.lower(instr)
		if err != nil {
			assembleErr = err
			return
		}
		out = append(out, ii)
	})
	if assembleErr != nil {
		return nil, assembleErr
	}
	return &Block{instrs: out, localSize: b.LocalSize()}, nil
}

func operandOf(v *ir.Value) operand {
	if v == nil {
		return operand{kind: opImm}
	}
	if v.IsConstant() {
		return operand{kind: opImm, imm: v.Bits()}
	}
	if v.Spill() != ir.NoSpill {
		return operand{kind: opLocal, slot: v.Spill()}
	}
	return operand{kind: opReg, slot: v.Reg()}
}

func resultOperand(v *ir.Value) (opKind, int) {
	if v == nil {
		return opReg, 0
	}
	if v.Spill() != ir.NoSpill {
		return opLocal, v.Spill()
	}
	return opReg, v.Reg()
}

// lower builds a callback for instr's opcode and fills in its operands;
// the callback dispatches float-vs-int using the types captured in the
// closure. Each instruction gets its own closure.
func (be *Backend) lower(instr *ir.Instr) (IntInstr, error) {
	var ii IntInstr
	ii.guestAddr = instr.GuestAddr()
	for n := 0; n < 3; n++ {
		ii.args[n] = operandOf(instr.Arg(n))
	}
	if res := instr.Result(); res != nil {
		ii.resultKind, ii.resultSlot = resultOperand(res)
	}

	isFloat := instr.Result() != nil && instr.Result().Type().IsFloat()
	if instr.Arg(0) != nil && instr.Arg(0).Type().IsFloat() {
		isFloat = true
	}

	switch instr.Op() {
	case ir.OpLoadContext:
		typ := instr.Result().Type()
		ii.fn = func(m *machine, in *IntInstr) uint32 {
			off := int32(m.readOperand(in.args[0], false))
			v := be.contextLoad(m.ctx, off, typ)
			m.writeResult(in, typ.IsFloat(), v)
			return 0
		}
	case ir.OpStoreContext:
		typ := instr.Arg(1).Type()
		ii.fn = func(m *machine, in *IntInstr) uint32 {
			off := int32(m.readOperand(in.args[0], false))
			v := m.readOperand(in.args[1], typ.IsFloat())
			be.contextStore(m.ctx, off, typ, v)
			return 0
		}
	case ir.OpLoad:
		typ := instr.Result().Type()
		ii.fn = func(m *machine, in *IntInstr) uint32 {
			addr := uint32(m.readOperand(in.args[0], false))
			v := be.guestLoad(m.ctx, addr, typ)
			m.writeResult(in, typ.IsFloat(), v)
			return 0
		}
	case ir.OpStore:
		typ := instr.Arg(1).Type()
		ii.fn = func(m *machine, in *IntInstr) uint32 {
			addr := uint32(m.readOperand(in.args[0], false))
			v := m.readOperand(in.args[1], typ.IsFloat())
			be.guestStore(m.ctx, addr, typ, v)
			return 0
		}
	case ir.OpLoadLocal:
		typ := instr.Result().Type()
		ii.fn = func(m *machine, in *IntInstr) uint32 {
			off := int(m.readOperand(in.args[0], false))
			m.writeResult(in, typ.IsFloat(), readLocal(m.locals, off))
			return 0
		}
	case ir.OpStoreLocal:
		typ := instr.Arg(1).Type()
		ii.fn = func(m *machine, in *IntInstr) uint32 {
			off := int(m.readOperand(in.args[0], false))
			v := m.readOperand(in.args[1], typ.IsFloat())
			writeLocal(m.locals, off, v)
			return 0
		}
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv, ir.OpUDiv, ir.OpAnd, ir.OpOr,
		ir.OpXor, ir.OpShl, ir.OpAshr, ir.OpLshr:
		ii.fn = arithCallback(instr.Op(), instr.Result().Type(), isFloat)
	case ir.OpNeg, ir.OpNot, ir.OpAbs, ir.OpSqrt, ir.OpSin, ir.OpCos:
		ii.fn = unaryCallback(instr.Op(), instr.Arg(0).Type(), isFloat)
	case ir.OpCmpEq, ir.OpCmpNe, ir.OpCmpSgt, ir.OpCmpSge, ir.OpCmpSlt, ir.OpCmpSle,
		ir.OpCmpUgt, ir.OpCmpUge, ir.OpCmpUlt, ir.OpCmpUle:
		ii.fn = cmpCallback(instr.Op(), instr.Arg(0).Type())
	case ir.OpSelect:
		condFloat := false
		ii.fn = func(m *machine, in *IntInstr) uint32 {
			c := m.readOperand(in.args[0], condFloat)
			var v uint64
			if c != 0 {
				v = m.readOperand(in.args[1], isFloat)
			} else {
				v = m.readOperand(in.args[2], isFloat)
			}
			m.writeResult(in, isFloat, v)
			return 0
		}
	case ir.OpSExt, ir.OpZExt, ir.OpTruncate, ir.OpCast:
		ii.fn = convCallback(instr.Op(), instr.Arg(0).Type(), instr.Result().Type())
	case ir.OpBranch:
		// the block's terminator: its target is the guest PC to resume at,
		// either a literal or (for indirect jumps) a register-held value.
		ii.fn = func(m *machine, in *IntInstr) uint32 {
			return uint32(m.readOperand(in.args[0], false))
		}
	case ir.OpBranchCond:
		ii.fn = func(m *machine, in *IntInstr) uint32 {
			c := m.readOperand(in.args[0], false)
			if c != 0 {
				return uint32(m.readOperand(in.args[1], false))
			}
			return uint32(m.readOperand(in.args[2], false))
		}
	case ir.OpCallExternal, ir.OpInvalidateContext, ir.OpNop:
		ii.fn = func(m *machine, in *IntInstr) uint32 { return 0 }
	default:
		return ii, fmt.Errorf("%w: interp has no callback for opcode %s", dcerr.Bug, instr.Op())
	}
	return ii, nil
}

func arithCallback(op ir.Opcode, typ ir.Type, isFloat bool) func(*machine, *IntInstr) uint32 {
	return func(m *machine, in *IntInstr) uint32 {
		a := m.readOperand(in.args[0], isFloat)
		c := m.readOperand(in.args[1], isFloat)
		var r uint64
		if isFloat {
			r = floatBinop(op, typ, a, c)
		} else {
			r = intBinop(op, typ, a, c)
		}
		m.writeResult(in, isFloat, r)
		return 0
	}
}

func intBinop(op ir.Opcode, typ ir.Type, a, c uint64) uint64 {
	mask := uint64(1)<<(typ.Size()*8) - 1
	if typ == ir.I64 {
		mask = ^uint64(0)
	}
	switch op {
	case ir.OpAdd:
		return (a + c) & mask
	case ir.OpSub:
		return (a - c) & mask
	case ir.OpMul:
		return (a * c) & mask
	case ir.OpSDiv:
		if c == 0 {
			return 0
		}
		return uint64(signExtend(a, typ)/signExtend(c, typ)) & mask
	case ir.OpUDiv:
		if c == 0 {
			return 0
		}
		return (a / c) & mask
	case ir.OpAnd:
		return a & c
	case ir.OpOr:
		return a | c
	case ir.OpXor:
		return a ^ c
	case ir.OpShl:
		return (a << (c & uint64(typ.Size()*8-1))) & mask
	case ir.OpAshr:
		return uint64(signExtend(a, typ)>>(c&uint64(typ.Size()*8-1))) & mask
	case ir.OpLshr:
		return (a >> (c & uint64(typ.Size()*8-1))) & mask
	default:
		return 0
	}
}

func signExtend(v uint64, typ ir.Type) int64 {
	switch typ {
	case ir.I8:
		return int64(int8(v))
	case ir.I16:
		return int64(int16(v))
	case ir.I32:
		return int64(int32(v))
	default:
		return int64(v)
	}
}

func floatBinop(op ir.Opcode, typ ir.Type, a, c uint64) uint64 {
	if typ == ir.F32 {
		x, y := math.Float32frombits(uint32(a)), math.Float32frombits(uint32(c))
		var r float32
		switch op {
		case ir.OpAdd:
			r = x + y
		case ir.OpSub:
			r = x - y
		case ir.OpMul:
			r = x * y
		case ir.OpSDiv:
			r = x / y
		}
		return uint64(math.Float32bits(r))
	}
	x, y := math.Float64frombits(a), math.Float64frombits(c)
	var r float64
	switch op {
	case ir.OpAdd:
		r = x + y
	case ir.OpSub:
		r = x - y
	case ir.OpMul:
		r = x * y
	case ir.OpSDiv:
		r = x / y
	}
	return math.Float64bits(r)
}

func unaryCallback(op ir.Opcode, typ ir.Type, isFloat bool) func(*machine, *IntInstr) uint32 {
	return func(m *machine, in *IntInstr) uint32 {
		a := m.readOperand(in.args[0], isFloat)
		var r uint64
		if isFloat {
			x := math.Float64frombits(a)
			if typ == ir.F32 {
				x = float64(math.Float32frombits(uint32(a)))
			}
			switch op {
			case ir.OpNeg:
				r = math.Float64bits(-x)
			case ir.OpAbs:
				r = math.Float64bits(math.Abs(x))
			case ir.OpSqrt:
				r = math.Float64bits(math.Sqrt(x))
			case ir.OpSin:
				r = math.Float64bits(math.Sin(x))
			case ir.OpCos:
				r = math.Float64bits(math.Cos(x))
			}
			if typ == ir.F32 {
				r = uint64(math.Float32bits(float32(math.Float64frombits(r))))
			}
		} else {
			switch op {
			case ir.OpNeg:
				r = uint64(-int64(a))
			case ir.OpNot:
				r = ^a
			}
		}
		m.writeResult(in, isFloat, r)
		return 0
	}
}

func cmpCallback(op ir.Opcode, operandType ir.Type) func(*machine, *IntInstr) uint32 {
	isFloat := operandType.IsFloat()
	return func(m *machine, in *IntInstr) uint32 {
		a := m.readOperand(in.args[0], isFloat)
		c := m.readOperand(in.args[1], isFloat)
		var result bool
		if isFloat {
			x, y := math.Float64frombits(a), math.Float64frombits(c)
			result = floatCompare(op, x, y)
		} else {
			result = intCompare(op, a, c, operandType)
		}
		if result {
			m.writeResult(in, false, 1)
		} else {
			m.writeResult(in, false, 0)
		}
		return 0
	}
}

func floatCompare(op ir.Opcode, x, y float64) bool {
	switch op {
	case ir.OpCmpEq:
		return x == y
	case ir.OpCmpNe:
		return x != y
	case ir.OpCmpSgt, ir.OpCmpUgt:
		return x > y
	case ir.OpCmpSge, ir.OpCmpUge:
		return x >= y
	case ir.OpCmpSlt, ir.OpCmpUlt:
		return x < y
	case ir.OpCmpSle, ir.OpCmpUle:
		return x <= y
	default:
		return false
	}
}

func intCompare(op ir.Opcode, a, c uint64, typ ir.Type) bool {
	sa, sc := signExtend(a, typ), signExtend(c, typ)
	switch op {
	case ir.OpCmpEq:
		return a == c
	case ir.OpCmpNe:
		return a != c
	case ir.OpCmpSgt:
		return sa > sc
	case ir.OpCmpSge:
		return sa >= sc
	case ir.OpCmpSlt:
		return sa < sc
	case ir.OpCmpSle:
		return sa <= sc
	case ir.OpCmpUgt:
		return a > c
	case ir.OpCmpUge:
		return a >= c
	case ir.OpCmpUlt:
		return a < c
	case ir.OpCmpUle:
		return a <= c
	default:
		return false
	}
}

func convCallback(op ir.Opcode, from, to ir.Type) func(*machine, *IntInstr) uint32 {
	return func(m *machine, in *IntInstr) uint32 {
		a := m.readOperand(in.args[0], from.IsFloat())
		var r uint64
		switch op {
		case ir.OpSExt:
			r = uint64(signExtend(a, from))
		case ir.OpZExt:
			r = a
		case ir.OpTruncate:
			mask := uint64(1)<<(to.Size()*8) - 1
			if to == ir.I64 {
				mask = ^uint64(0)
			}
			r = a & mask
		case ir.OpCast:
			r = a
		}
		m.writeResult(in, to.IsFloat(), r)
		return 0
	}
}
