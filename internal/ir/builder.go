package ir

import (
	"fmt"
	"math"
	"strings"
)

// LocalSlot describes one stack slot in a Builder's local pool — assigned
// either by register-allocation spills or by explicit frontend locals
// (spec.md §3).
type LocalSlot struct {
	Offset int
	Type   Type
}

// Builder owns one or more Blocks, an insertion point, a pool of local
// stack slots, a metadata map and arena allocation for every owned IR node.
// Discarding a Builder frees the whole graph it transitively owns
// (spec.md §3).
type Builder struct {
	blocks []*Block

	insertBlock *Block
	insertAfter *Instr

	constants []*Value
	locals    []LocalSlot
	localSize int

	meta map[string]any
}

// NewBuilder creates an empty builder with no blocks.
func NewBuilder() *Builder {
	return &Builder{}
}

// Blocks returns every block owned by the builder, in creation order.
func (b *Builder) Blocks() []*Block { return b.blocks }

// Block appends a new block, sets it as the insertion point (at its end)
// and returns it (spec.md §4.3 block()).
func (b *Builder) Block() *Block {
	blk := &Block{id: len(b.blocks), builder: b}
	b.blocks = append(b.blocks, blk)
	b.insertBlock = blk
	b.insertAfter = blk.tail
	return blk
}

// SetInsertPoint directs subsequent Emit* calls to splice after "after"
// within blk (or at blk's head if after is nil).
func (b *Builder) SetInsertPoint(blk *Block, after *Instr) {
	b.insertBlock = blk
	b.insertAfter = after
}

// InsertBlock returns the block new instructions are currently appended to.
func (b *Builder) InsertBlock() *Block { return b.insertBlock }

// Meta returns a builder-scoped metadata value, e.g. {guest_cycles, entry_pc}
// (spec.md §3).
func (b *Builder) Meta(key string) (any, bool) {
	v, ok := b.meta[key]
	return v, ok
}

// SetMeta attaches a metadata value to the builder.
func (b *Builder) SetMeta(key string, v any) {
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = v
}

func (b *Builder) emit(op Opcode, result Type, args ...*Value) *Instr {
	instr := &Instr{op: op}
	for n, a := range args {
		instr.setArg(n, a)
	}
	if op.ProducesResult() {
		instr.result = newValue(result)
		instr.result.def = instr
	}
	blk := b.insertBlock
	blk.insertAfter(b.insertAfter, instr)
	b.insertAfter = instr
	return instr
}

// ---------------------------------------------------------------- constants

func (b *Builder) constant(typ Type, bits uint64) *Value {
	v := &Value{typ: typ, constant: true, bits: bits, reg: NoRegister, spill: NoSpill}
	b.constants = append(b.constants, v)
	return v
}

// ConstI8 allocates an i8 constant (spec.md §4.3 alloc_constant<T>).
func (b *Builder) ConstI8(v int8) *Value { return b.constant(I8, uint64(uint8(v))) }

// ConstI16 allocates an i16 constant.
func (b *Builder) ConstI16(v int16) *Value { return b.constant(I16, uint64(uint16(v))) }

// ConstI32 allocates an i32 constant.
func (b *Builder) ConstI32(v int32) *Value { return b.constant(I32, uint64(uint32(v))) }

// ConstI64 allocates an i64 constant.
func (b *Builder) ConstI64(v int64) *Value { return b.constant(I64, uint64(v)) }

// ConstF32 allocates an f32 constant.
func (b *Builder) ConstF32(v float32) *Value {
	return b.constant(F32, uint64(math.Float32bits(v)))
}

// ConstF64 allocates an f64 constant.
func (b *Builder) ConstF64(v float64) *Value {
	return b.constant(F64, math.Float64bits(v))
}

// AllocLocal reserves a new local stack slot of the given type and returns
// its byte offset within the builder's local pool (spec.md §4.3
// alloc_local).
func (b *Builder) AllocLocal(typ Type) int {
	sz := typ.Size()
	// naturally align the slot to its own size.
	if rem := b.localSize % sz; rem != 0 {
		b.localSize += sz - rem
	}
	off := b.localSize
	b.locals = append(b.locals, LocalSlot{Offset: off, Type: typ})
	b.localSize += sz
	return off
}

// LocalSize returns the total size, in bytes, of the builder's local pool.
func (b *Builder) LocalSize() int { return b.localSize }

// AllocBlockRef wraps blk in a TypeBlock value usable as a branch target
// (spec.md §4.3 alloc_block_ref).
func (b *Builder) AllocBlockRef(blk *Block) *Value {
	return &Value{typ: TypeBlock, constant: true, block: blk, reg: NoRegister, spill: NoSpill}
}

// ------------------------------------------------------------------ memory

// EmitLoadContext loads the SH4 context field at the given byte offset
// (spec.md §4.3/§4.5).
func (b *Builder) EmitLoadContext(offset int32, typ Type) *Value {
	return b.emit(OpLoadContext, typ, b.ConstI32(offset)).result
}

// EmitStoreContext stores v into the SH4 context field at the given byte
// offset.
func (b *Builder) EmitStoreContext(offset int32, v *Value) *Instr {
	return b.emit(OpStoreContext, TypeNone, b.ConstI32(offset), v)
}

// EmitLoadLocal loads from a builder-owned local stack slot.
func (b *Builder) EmitLoadLocal(offset int, typ Type) *Value {
	return b.emit(OpLoadLocal, typ, b.ConstI32(int32(offset))).result
}

// EmitStoreLocal stores v into a builder-owned local stack slot.
func (b *Builder) EmitStoreLocal(offset int, v *Value) *Instr {
	return b.emit(OpStoreLocal, TypeNone, b.ConstI32(int32(offset)), v)
}

// EmitLoad loads typ from the guest address space at addr.
func (b *Builder) EmitLoad(addr *Value, typ Type) *Value {
	return b.emit(OpLoad, typ, addr).result
}

// EmitStore stores v to the guest address space at addr.
func (b *Builder) EmitStore(addr, v *Value) *Instr {
	return b.emit(OpStore, TypeNone, addr, v)
}

// ----------------------------------------------------------------- control

// EmitBranch appends an unconditional branch to target. Must be the block's
// terminal instruction (spec.md §4.3 invariant).
func (b *Builder) EmitBranch(target *Value) *Instr {
	return b.emit(OpBranch, TypeNone, target)
}

// EmitBranchCond appends a conditional branch: cond selects between
// trueTarget and falseTarget, encoded as arg1/arg2 to mirror select's
// (c, a, b) shape (spec.md §4.4's arg2-type note).
func (b *Builder) EmitBranchCond(cond, trueTarget, falseTarget *Value) *Instr {
	instr := b.emit(OpBranchCond, TypeNone, cond, trueTarget)
	instr.setArg(2, falseTarget)
	return instr
}

// EmitCallExternal calls a host function with a single argument; always
// treated as context-invalidating (spec.md §3 IF_INVALIDATE_CONTEXT).
func (b *Builder) EmitCallExternal(fn, arg *Value) *Instr {
	return b.emit(OpCallExternal, TypeNone, fn, arg)
}

// EmitInvalidateContext marks the load/store-elimination available-value map
// as fully invalidated at this program point.
func (b *Builder) EmitInvalidateContext() *Instr {
	return b.emit(OpInvalidateContext, TypeNone)
}

// ------------------------------------------------------------- arithmetic

func (b *Builder) binop(op Opcode, a, c *Value) *Value { return b.emit(op, a.typ, a, c).result }

// EmitAdd emits a+b (two's complement wraps identically for signed/unsigned).
func (b *Builder) EmitAdd(a, c *Value) *Value { return b.binop(OpAdd, a, c) }

// EmitSub emits a-b.
func (b *Builder) EmitSub(a, c *Value) *Value { return b.binop(OpSub, a, c) }

// EmitMul emits a*b (low bits are signedness-independent).
func (b *Builder) EmitMul(a, c *Value) *Value { return b.binop(OpMul, a, c) }

// EmitSDiv emits signed a/b.
func (b *Builder) EmitSDiv(a, c *Value) *Value { return b.binop(OpSDiv, a, c) }

// EmitUDiv emits unsigned a/b.
func (b *Builder) EmitUDiv(a, c *Value) *Value { return b.binop(OpUDiv, a, c) }

// EmitNeg emits -a.
func (b *Builder) EmitNeg(a *Value) *Value { return b.emit(OpNeg, a.typ, a).result }

// --------------------------------------------------------------- bitwise

// EmitAnd emits a&b.
func (b *Builder) EmitAnd(a, c *Value) *Value { return b.binop(OpAnd, a, c) }

// EmitOr emits a|b.
func (b *Builder) EmitOr(a, c *Value) *Value { return b.binop(OpOr, a, c) }

// EmitXor emits a^b.
func (b *Builder) EmitXor(a, c *Value) *Value { return b.binop(OpXor, a, c) }

// EmitNot emits ^a.
func (b *Builder) EmitNot(a *Value) *Value { return b.emit(OpNot, a.typ, a).result }

// EmitShl emits a<<b.
func (b *Builder) EmitShl(a, c *Value) *Value { return b.binop(OpShl, a, c) }

// EmitAshr emits a arithmetic-shift-right b.
func (b *Builder) EmitAshr(a, c *Value) *Value { return b.binop(OpAshr, a, c) }

// EmitLshr emits a logical-shift-right b.
func (b *Builder) EmitLshr(a, c *Value) *Value { return b.binop(OpLshr, a, c) }

// -------------------------------------------------------- select/compare

// EmitSelect emits select(cond, a, b): a if cond != 0, else b.
func (b *Builder) EmitSelect(cond, a, c *Value) *Value {
	instr := b.emit(OpSelect, a.typ, cond, a)
	instr.setArg(2, c)
	return instr.result
}

func (b *Builder) cmp(op Opcode, a, c *Value) *Value { return b.emit(op, I8, a, c).result }

// EmitCmpEq emits a==b, result i8 {0,1}.
func (b *Builder) EmitCmpEq(a, c *Value) *Value { return b.cmp(OpCmpEq, a, c) }

// EmitCmpNe emits a!=b.
func (b *Builder) EmitCmpNe(a, c *Value) *Value { return b.cmp(OpCmpNe, a, c) }

// EmitCmpSgt emits signed a>b.
func (b *Builder) EmitCmpSgt(a, c *Value) *Value { return b.cmp(OpCmpSgt, a, c) }

// EmitCmpSge emits signed a>=b.
func (b *Builder) EmitCmpSge(a, c *Value) *Value { return b.cmp(OpCmpSge, a, c) }

// EmitCmpSlt emits signed a<b.
func (b *Builder) EmitCmpSlt(a, c *Value) *Value { return b.cmp(OpCmpSlt, a, c) }

// EmitCmpSle emits signed a<=b.
func (b *Builder) EmitCmpSle(a, c *Value) *Value { return b.cmp(OpCmpSle, a, c) }

// EmitCmpUgt emits unsigned a>b.
func (b *Builder) EmitCmpUgt(a, c *Value) *Value { return b.cmp(OpCmpUgt, a, c) }

// EmitCmpUge emits unsigned a>=b.
func (b *Builder) EmitCmpUge(a, c *Value) *Value { return b.cmp(OpCmpUge, a, c) }

// EmitCmpUlt emits unsigned a<b.
func (b *Builder) EmitCmpUlt(a, c *Value) *Value { return b.cmp(OpCmpUlt, a, c) }

// EmitCmpUle emits unsigned a<=b.
func (b *Builder) EmitCmpUle(a, c *Value) *Value { return b.cmp(OpCmpUle, a, c) }

// ------------------------------------------------------------- conversion

// EmitSExt sign-extends a to totype.
func (b *Builder) EmitSExt(a *Value, totype Type) *Value {
	return b.emit(OpSExt, totype, a).result
}

// EmitZExt zero-extends a to totype.
func (b *Builder) EmitZExt(a *Value, totype Type) *Value {
	return b.emit(OpZExt, totype, a).result
}

// EmitTruncate truncates a to totype.
func (b *Builder) EmitTruncate(a *Value, totype Type) *Value {
	return b.emit(OpTruncate, totype, a).result
}

// EmitCast bitcasts a to totype (same width, int<->float reinterpretation).
func (b *Builder) EmitCast(a *Value, totype Type) *Value {
	return b.emit(OpCast, totype, a).result
}

// ------------------------------------------------------------------ math

// EmitSqrt emits sqrt(a).
func (b *Builder) EmitSqrt(a *Value) *Value { return b.emit(OpSqrt, a.typ, a).result }

// EmitAbs emits abs(a).
func (b *Builder) EmitAbs(a *Value) *Value { return b.emit(OpAbs, a.typ, a).result }

// EmitSin emits sin(a).
func (b *Builder) EmitSin(a *Value) *Value { return b.emit(OpSin, a.typ, a).result }

// EmitCos emits cos(a).
func (b *Builder) EmitCos(a *Value) *Value { return b.emit(OpCos, a.typ, a).result }

// ---------------------------------------------------------------- editing

// ReplaceAllUsesOf walks old's use-list and rewrites every argument pointer
// in place to reference replacement (spec.md §4.3).
func (b *Builder) ReplaceAllUsesOf(old, replacement *Value) {
	old.ReplaceAllUsesWith(replacement)
}

// RemoveInstr detaches instr from its block and from every argument's
// use-list (spec.md §4.3).
func (b *Builder) RemoveInstr(instr *Instr) {
	blk := instr.block
	instr.detachArgs()
	if blk != nil {
		blk.remove(instr)
	}
}

// ------------------------------------------------------------------- dump

// WriteText prints a human-readable textual form of the builder's IR,
// satisfying the debug.dump_ir configuration option (spec.md §6).
func (b *Builder) WriteText(sb *strings.Builder) {
	for _, blk := range b.blocks {
		fmt.Fprintf(sb, "block %d:\n", blk.id)
		n := 0
		blk.Instrs(func(i *Instr) {
			if i.result != nil {
				fmt.Fprintf(sb, "  v%d.%s = %s", n, i.result.typ, i.op)
			} else {
				fmt.Fprintf(sb, "  %s", i.op)
			}
			for argN := 0; argN < i.op.NumArgs(); argN++ {
				a := i.args[argN]
				if a == nil {
					continue
				}
				if a.constant {
					if a.typ == TypeBlock {
						fmt.Fprintf(sb, " block(%d)", a.block.id)
					} else {
						fmt.Fprintf(sb, " #%s(%d)", a.typ, a.AsInt64())
					}
				} else {
					fmt.Fprintf(sb, " v?.%s", a.typ)
				}
			}
			sb.WriteByte('\n')
			n++
		})
	}
}
