package ir

// NoRegister is the sentinel register ordinal a Value carries until
// register allocation assigns it a physical register.
const NoRegister = -1

// NoSpill is the sentinel spill-slot offset for a Value that was never
// spilled.
const NoSpill = -1

// Value is the tagged union described in spec.md §3: every IR value has an
// element type, an optional constant payload, a register-allocation result
// (register ordinal and/or spill-slot offset) and a use-list of every
// argument position referencing it.
type Value struct {
	typ      Type
	constant bool
	bits     uint64 // constant payload, raw bit pattern (int or float)
	block    *Block // set when typ == TypeBlock

	def *Instr // defining instruction; nil for constants and block refs

	reg   int // physical register ordinal, or NoRegister
	spill int // local stack-slot offset, or NoSpill

	uses *ValueRef // head of the intrusive use-list
}

// ValueRef is one node in a Value's intrusive use-list: one per argument
// position that references the value. Representing uses this way (rather
// than a slice on Value) lets RemoveInstr and ReplaceAllUsesOf splice in
// O(1) per use instead of scanning every instruction in the block.
type ValueRef struct {
	value    *Value
	instr    *Instr
	argIndex int
	prev     *ValueRef
	next     *ValueRef
}

func newValue(typ Type) *Value {
	return &Value{typ: typ, reg: NoRegister, spill: NoSpill}
}

// Type returns the value's element type.
func (v *Value) Type() Type { return v.typ }

// IsConstant reports whether v carries a literal payload rather than being
// produced by an instruction.
func (v *Value) IsConstant() bool { return v.constant }

// Def returns the instruction that produced v, or nil for a constant or
// block-ref value.
func (v *Value) Def() *Instr { return v.def }

// Reg returns the assigned physical-register ordinal, or NoRegister before
// register allocation runs.
func (v *Value) Reg() int { return v.reg }

// SetReg assigns a physical-register ordinal to v (called by the register
// allocation pass).
func (v *Value) SetReg(r int) { v.reg = r }

// Spill returns the assigned local stack-slot offset, or NoSpill.
func (v *Value) Spill() int { return v.spill }

// SetSpill assigns a local stack-slot offset to v.
func (v *Value) SetSpill(off int) { v.spill = off }

// BlockRef returns the target block for a TypeBlock value.
func (v *Value) BlockRef() *Block { return v.block }

// AsInt64 reinterprets a constant's payload as a signed integer of its
// declared width, sign-extended to 64 bits.
func (v *Value) AsInt64() int64 {
	switch v.typ {
	case I8:
		return int64(int8(v.bits))
	case I16:
		return int64(int16(v.bits))
	case I32:
		return int64(int32(v.bits))
	default:
		return int64(v.bits)
	}
}

// AsUint64 reinterprets a constant's payload as an unsigned integer.
func (v *Value) AsUint64() uint64 {
	switch v.typ {
	case I8:
		return uint64(uint8(v.bits))
	case I16:
		return uint64(uint16(v.bits))
	case I32:
		return uint64(uint32(v.bits))
	default:
		return v.bits
	}
}

// Bits returns the raw constant payload (useful for float bit-patterns).
func (v *Value) Bits() uint64 { return v.bits }

// addUse links a new ValueRef at argIndex of instr into v's use-list, and
// returns the node so the instruction can later detach it without a scan.
func (v *Value) addUse(instr *Instr, argIndex int) *ValueRef {
	ref := &ValueRef{value: v, instr: instr, argIndex: argIndex}
	ref.next = v.uses
	if v.uses != nil {
		v.uses.prev = ref
	}
	v.uses = ref
	return ref
}

// removeUse detaches ref from its value's use-list.
func (ref *ValueRef) removeUse() {
	if ref == nil {
		return
	}
	if ref.prev != nil {
		ref.prev.next = ref.next
	} else if ref.value != nil {
		ref.value.uses = ref.next
	}
	if ref.next != nil {
		ref.next.prev = ref.prev
	}
	ref.prev, ref.next = nil, nil
}

// HasUses reports whether any instruction still references v.
func (v *Value) HasUses() bool { return v.uses != nil }

// Uses invokes fn for every ValueRef node referencing v, in use-list order.
// addUse and ReplaceAllUsesWith link each use in at the head of the list,
// so the most recently linked use comes first; register allocation does
// not reorder the list.
func (v *Value) Uses(fn func(instr *Instr, argIndex int)) {
	for r := v.uses; r != nil; r = r.next {
		fn(r.instr, r.argIndex)
	}
}

// ReplaceAllUsesWith rewrites every argument pointer referencing v to
// instead reference other, transferring use-list membership in place
// (spec.md §4.3 replace_all_uses_of).
func (v *Value) ReplaceAllUsesWith(other *Value) {
	if v == other {
		return
	}
	ref := v.uses
	v.uses = nil
	for ref != nil {
		next := ref.next
		ref.prev, ref.next = nil, nil

		ref.instr.args[ref.argIndex] = other
		ref.value = other
		ref.next = other.uses
		if other.uses != nil {
			other.uses.prev = ref
		}
		other.uses = ref

		ref = next
	}
}
