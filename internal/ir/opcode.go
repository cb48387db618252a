package ir

// Opcode identifies the operation an Instr performs. The set mirrors
// spec.md §3/§4.3: control, memory, arithmetic, bitwise, compare,
// conversion and math-intrinsic ops.
type Opcode uint8

const (
	OpNop Opcode = iota

	// control
	OpBranch
	OpBranchCond
	OpCallExternal
	OpInvalidateContext

	// memory
	OpLoadContext
	OpStoreContext
	OpLoadLocal
	OpStoreLocal
	OpLoad
	OpStore

	// arithmetic
	OpAdd
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpNeg

	// bitwise
	OpAnd
	OpOr
	OpXor
	OpNot
	OpShl
	OpAshr
	OpLshr

	// select / compare
	OpSelect
	OpCmpEq
	OpCmpNe
	OpCmpSgt
	OpCmpSge
	OpCmpSlt
	OpCmpSle
	OpCmpUgt
	OpCmpUge
	OpCmpUlt
	OpCmpUle

	// conversion
	OpSExt
	OpZExt
	OpTruncate
	OpCast

	// math intrinsics
	OpSqrt
	OpAbs
	OpSin
	OpCos

	numOpcodes
)

var opcodeNames = [numOpcodes]string{
	OpNop:               "nop",
	OpBranch:            "branch",
	OpBranchCond:        "branch_cond",
	OpCallExternal:      "call_external",
	OpInvalidateContext: "invalidate_context",
	OpLoadContext:       "load_context",
	OpStoreContext:      "store_context",
	OpLoadLocal:         "load_local",
	OpStoreLocal:        "store_local",
	OpLoad:              "load",
	OpStore:             "store",
	OpAdd:               "add",
	OpSub:               "sub",
	OpMul:               "mul",
	OpSDiv:              "sdiv",
	OpUDiv:              "udiv",
	OpNeg:               "neg",
	OpAnd:               "and",
	OpOr:                "or",
	OpXor:               "xor",
	OpNot:               "not",
	OpShl:               "shl",
	OpAshr:              "ashr",
	OpLshr:              "lshr",
	OpSelect:            "select",
	OpCmpEq:             "cmp_eq",
	OpCmpNe:             "cmp_ne",
	OpCmpSgt:            "cmp_sgt",
	OpCmpSge:            "cmp_sge",
	OpCmpSlt:            "cmp_slt",
	OpCmpSle:            "cmp_sle",
	OpCmpUgt:            "cmp_ugt",
	OpCmpUge:            "cmp_uge",
	OpCmpUlt:            "cmp_ult",
	OpCmpUle:            "cmp_ule",
	OpSExt:              "sext",
	OpZExt:              "zext",
	OpTruncate:          "truncate",
	OpCast:              "cast",
	OpSqrt:              "sqrt",
	OpAbs:               "abs",
	OpSin:               "sin",
	OpCos:               "cos",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return "nop"
}

// OpFlag is a per-opcode attribute bitmask, spec.md §3.
type OpFlag uint16

const (
	IfInvalidateContext OpFlag = 1 << iota
	OpFlagBranch
	OpFlagSetSR
	OpFlagSetFPSCR
	OpFlagDelayed
	OpFlagConditional
	OpFlagSetT
)

// staticFlags carries the opcode-intrinsic flags; OpFlagDelayed,
// OpFlagConditional and OpFlagSetT are instance-level (set by the SH4
// frontend per emitted instruction, not implied by the opcode alone) and are
// OR'd in via Instr.instFlags at emit time.
var staticFlags = [numOpcodes]OpFlag{
	OpBranch:            OpFlagBranch,
	OpBranchCond:        OpFlagBranch,
	OpInvalidateContext: IfInvalidateContext,
	OpCallExternal:      IfInvalidateContext,
}

// HasSideEffect reports whether an instruction with this opcode must be kept
// by dead-code elimination even when its result (if any) has no uses.
func (op Opcode) HasSideEffect() bool {
	switch op {
	case OpStoreContext, OpStoreLocal, OpStore, OpBranch, OpBranchCond,
		OpCallExternal, OpInvalidateContext:
		return true
	default:
		return false
	}
}

// NumArgs reports how many argument slots this opcode uses (0-3).
func (op Opcode) NumArgs() int {
	switch op {
	case OpNop, OpInvalidateContext:
		return 0
	case OpNeg, OpNot, OpSExt, OpZExt, OpTruncate, OpCast, OpSqrt, OpAbs,
		OpSin, OpCos, OpLoadContext, OpLoadLocal, OpBranch, OpLoad:
		return 1
	case OpStoreContext, OpStoreLocal, OpStore, OpAdd, OpSub, OpMul, OpSDiv,
		OpUDiv, OpAnd, OpOr, OpXor, OpShl, OpAshr, OpLshr,
		OpCmpEq, OpCmpNe, OpCmpSgt, OpCmpSge, OpCmpSlt, OpCmpSle,
		OpCmpUgt, OpCmpUge, OpCmpUlt, OpCmpUle, OpCallExternal:
		return 2
	case OpSelect, OpBranchCond:
		return 3
	default:
		return 0
	}
}

// ProducesResult reports whether this opcode writes a result Value.
func (op Opcode) ProducesResult() bool {
	switch op {
	case OpBranch, OpBranchCond, OpStoreContext, OpStoreLocal, OpStore,
		OpInvalidateContext, OpNop:
		return false
	case OpCallExternal:
		return false
	default:
		return true
	}
}
