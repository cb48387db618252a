package passes

import (
	"math"

	"github.com/zotley/dcjit/internal/ir"
)

// constMask records which argument positions must be constant before a fold
// may fire for a given opcode (spec.md §4.4). arg2 (select's "b" operand) is
// deliberately excluded from the key the same way redream's table omits it:
// select and branch_cond are the only ops using arg2, and arg2's type always
// matches arg1's.
const (
	arg0Cnst = 1 << iota
	arg1Cnst
)

var foldMasks = map[ir.Opcode]int{
	ir.OpSelect:     arg0Cnst,
	ir.OpCmpEq:      arg0Cnst | arg1Cnst,
	ir.OpCmpNe:      arg0Cnst | arg1Cnst,
	ir.OpCmpSgt:     arg0Cnst | arg1Cnst,
	ir.OpCmpSge:     arg0Cnst | arg1Cnst,
	ir.OpCmpSlt:     arg0Cnst | arg1Cnst,
	ir.OpCmpSle:     arg0Cnst | arg1Cnst,
	ir.OpCmpUgt:     arg0Cnst | arg1Cnst,
	ir.OpCmpUge:     arg0Cnst | arg1Cnst,
	ir.OpCmpUlt:     arg0Cnst | arg1Cnst,
	ir.OpCmpUle:     arg0Cnst | arg1Cnst,
	ir.OpAdd:        arg0Cnst | arg1Cnst,
	ir.OpSub:        arg0Cnst | arg1Cnst,
	ir.OpMul:        arg0Cnst | arg1Cnst,
	ir.OpSDiv:       arg0Cnst | arg1Cnst,
	ir.OpUDiv:       arg0Cnst | arg1Cnst,
	ir.OpAnd:        arg0Cnst | arg1Cnst,
	ir.OpOr:         arg0Cnst | arg1Cnst,
	ir.OpXor:        arg0Cnst | arg1Cnst,
	ir.OpNot:        arg0Cnst,
	ir.OpShl:        arg0Cnst | arg1Cnst,
	ir.OpAshr:       arg0Cnst | arg1Cnst,
	ir.OpLshr:       arg0Cnst | arg1Cnst,
	ir.OpSExt:       arg0Cnst,
	ir.OpZExt:       arg0Cnst,
	ir.OpTruncate:   arg0Cnst,
}

// ConstantPropagation is a table-driven folder keyed by opcode alone (the
// foldMasks map), replacing instructions whose required arguments (per
// foldMasks) are all constant with a single materialized constant
// (spec.md §4.4).
func ConstantPropagation(b *ir.Builder) {
	for _, blk := range b.Blocks() {
		blk.Instrs(func(instr *ir.Instr) {
			fold(b, instr)
		})
	}
}

func fold(b *ir.Builder, instr *ir.Instr) {
	mask, ok := foldMasks[instr.Op()]
	if !ok {
		return
	}
	a0, a1 := instr.Arg(0), instr.Arg(1)
	if mask&arg0Cnst != 0 && (a0 == nil || !a0.IsConstant()) {
		return
	}
	if mask&arg1Cnst != 0 && (a1 == nil || !a1.IsConstant()) {
		return
	}

	result := instr.Result()
	if result == nil {
		return
	}

	var folded *ir.Value
	switch instr.Op() {
	case ir.OpSelect:
		if a0.AsInt64() != 0 {
			folded = instr.Arg(1)
		} else {
			folded = instr.Arg(2)
		}
		// select is special-cased: it may fire with only cond constant, and
		// the surviving operand need not itself be constant, so we splice
		// it in directly rather than materializing a fresh constant.
		result.ReplaceAllUsesWith(folded)
		b.RemoveInstr(instr)
		return
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv, ir.OpUDiv,
		ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpNot,
		ir.OpShl, ir.OpAshr, ir.OpLshr:
		folded = foldIntBinop(b, instr)
	case ir.OpCmpEq, ir.OpCmpNe, ir.OpCmpSgt, ir.OpCmpSge, ir.OpCmpSlt,
		ir.OpCmpSle, ir.OpCmpUgt, ir.OpCmpUge, ir.OpCmpUlt, ir.OpCmpUle:
		folded = foldCompare(b, instr)
	case ir.OpSExt:
		folded = foldExtend(b, instr, true)
	case ir.OpZExt:
		folded = foldExtend(b, instr, false)
	case ir.OpTruncate:
		folded = foldTruncate(b, instr)
	}
	if folded == nil {
		return
	}
	result.ReplaceAllUsesWith(folded)
	b.RemoveInstr(instr)
}

func materialize(b *ir.Builder, typ ir.Type, u uint64) *ir.Value {
	switch typ {
	case ir.I8:
		return b.ConstI8(int8(u))
	case ir.I16:
		return b.ConstI16(int16(u))
	case ir.I32:
		return b.ConstI32(int32(u))
	case ir.I64:
		return b.ConstI64(int64(u))
	case ir.F32:
		return b.ConstF32(math.Float32frombits(uint32(u)))
	case ir.F64:
		return b.ConstF64(math.Float64frombits(u))
	default:
		return nil
	}
}

func isFloatOp(instr *ir.Instr) bool {
	return instr.Arg(0) != nil && instr.Arg(0).Type().IsFloat()
}

func foldIntBinop(b *ir.Builder, instr *ir.Instr) *ir.Value {
	typ := instr.Result().Type()
	if isFloatOp(instr) && (instr.Op() == ir.OpAdd || instr.Op() == ir.OpSub ||
		instr.Op() == ir.OpMul || instr.Op() == ir.OpSDiv) {
		x := asFloat(instr.Arg(0))
		y := asFloat(instr.Arg(1))
		var r float64
		switch instr.Op() {
		case ir.OpAdd:
			r = x + y
		case ir.OpSub:
			r = x - y
		case ir.OpMul:
			r = x * y
		case ir.OpSDiv:
			r = x / y
		}
		return materializeFloat(b, typ, r)
	}

	a0 := instr.Arg(0).AsUint64()
	sa0 := instr.Arg(0).AsInt64()
	// not takes a single argument.
	var a1 uint64
	var sa1 int64
	if arg1 := instr.Arg(1); arg1 != nil {
		a1, sa1 = arg1.AsUint64(), arg1.AsInt64()
	}
	var u uint64
	switch instr.Op() {
	case ir.OpAdd:
		u = a0 + a1
	case ir.OpSub:
		u = a0 - a1
	case ir.OpMul:
		u = a0 * a1
	case ir.OpSDiv:
		if sa1 == 0 {
			return nil
		}
		u = uint64(sa0 / sa1)
	case ir.OpUDiv:
		if a1 == 0 {
			return nil
		}
		u = a0 / a1
	case ir.OpAnd:
		u = a0 & a1
	case ir.OpOr:
		u = a0 | a1
	case ir.OpXor:
		u = a0 ^ a1
	case ir.OpNot:
		u = ^a0
	case ir.OpShl:
		u = a0 << (a1 & shiftMask(typ))
	case ir.OpAshr:
		u = uint64(sa0 >> (a1 & shiftMask(typ)))
	case ir.OpLshr:
		u = a0 >> (a1 & shiftMask(typ))
	default:
		return nil
	}
	return materialize(b, typ, u)
}

func shiftMask(t ir.Type) uint64 { return uint64(t.Size()*8 - 1) }

func asFloat(v *ir.Value) float64 {
	if v.Type() == ir.F32 {
		return float64(math.Float32frombits(uint32(v.Bits())))
	}
	return math.Float64frombits(v.Bits())
}

func materializeFloat(b *ir.Builder, typ ir.Type, f float64) *ir.Value {
	if typ == ir.F32 {
		return b.ConstF32(float32(f))
	}
	return b.ConstF64(f)
}

func foldCompare(b *ir.Builder, instr *ir.Instr) *ir.Value {
	a0, a1 := instr.Arg(0), instr.Arg(1)
	var result bool
	if a0.Type().IsFloat() {
		x, y := asFloat(a0), asFloat(a1)
		switch instr.Op() {
		case ir.OpCmpEq:
			result = x == y
		case ir.OpCmpNe:
			result = x != y
		case ir.OpCmpSgt, ir.OpCmpUgt:
			result = x > y
		case ir.OpCmpSge, ir.OpCmpUge:
			result = x >= y
		case ir.OpCmpSlt, ir.OpCmpUlt:
			result = x < y
		case ir.OpCmpSle, ir.OpCmpUle:
			result = x <= y
		}
	} else {
		su0, su1 := a0.AsInt64(), a1.AsInt64()
		u0, u1 := a0.AsUint64(), a1.AsUint64()
		switch instr.Op() {
		case ir.OpCmpEq:
			result = u0 == u1
		case ir.OpCmpNe:
			result = u0 != u1
		case ir.OpCmpSgt:
			result = su0 > su1
		case ir.OpCmpSge:
			result = su0 >= su1
		case ir.OpCmpSlt:
			result = su0 < su1
		case ir.OpCmpSle:
			result = su0 <= su1
		case ir.OpCmpUgt:
			result = u0 > u1
		case ir.OpCmpUge:
			result = u0 >= u1
		case ir.OpCmpUlt:
			result = u0 < u1
		case ir.OpCmpUle:
			result = u0 <= u1
		}
	}
	if result {
		return b.ConstI8(1)
	}
	return b.ConstI8(0)
}

func foldExtend(b *ir.Builder, instr *ir.Instr, signed bool) *ir.Value {
	typ := instr.Result().Type()
	if signed {
		return materialize(b, typ, uint64(instr.Arg(0).AsInt64()))
	}
	return materialize(b, typ, instr.Arg(0).AsUint64())
}

func foldTruncate(b *ir.Builder, instr *ir.Instr) *ir.Value {
	typ := instr.Result().Type()
	return materialize(b, typ, instr.Arg(0).AsUint64())
}
