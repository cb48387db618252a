package passes

import "github.com/zotley/dcjit/internal/ir"

// LoadStoreElimination runs the two linear scans from spec.md §4.4,
// grounded directly on redream's load_store_elimination_pass.cc: a forward
// scan that forwards load_context to the most recently stored/loaded value
// at that context offset, and a backward scan that drops dead stores the
// same offset is about to overwrite. Only context (guest-register) accesses
// are considered — guest-memory loads/stores are untouched.
func LoadStoreElimination(b *ir.Builder) {
	for _, blk := range b.Blocks() {
		eliminateRedundantLoads(b, blk)
		eliminateDeadStores(b, blk)
	}
}

// available maps a context offset to the most recently available value,
// generation-stamped so clear is O(1) instead of re-zeroing a map.
type available struct {
	gen    map[int32]int
	values map[int32]*ir.Value
	marker int
}

func newAvailable() *available {
	return &available{gen: make(map[int32]int), values: make(map[int32]*ir.Value)}
}

func (a *available) clear() { a.marker++ }

func (a *available) get(offset int32) (*ir.Value, bool) {
	if a.gen[offset] < a.marker {
		return nil, false
	}
	return a.values[offset], true
}

func (a *available) set(offset int32, v *ir.Value) {
	a.gen[offset] = a.marker
	a.values[offset] = v
}

func eliminateRedundantLoads(b *ir.Builder, blk *ir.Block) {
	av := newAvailable()
	blk.Instrs(func(instr *ir.Instr) {
		if instr.Flags()&ir.IfInvalidateContext != 0 {
			av.clear()
			return
		}
		switch instr.Op() {
		case ir.OpLoadContext:
			offset := int32(instr.Arg(0).AsInt64())
			if cur, ok := av.get(offset); ok && cur != nil && cur.Type() == instr.Result().Type() {
				instr.Result().ReplaceAllUsesWith(cur)
				b.RemoveInstr(instr)
				return
			}
			av.set(offset, instr.Result())
		case ir.OpStoreContext:
			offset := int32(instr.Arg(0).AsInt64())
			av.set(offset, instr.Arg(1))
		}
	})
}

func eliminateDeadStores(b *ir.Builder, blk *ir.Block) {
	av := newAvailable()
	blk.ReverseInstrs(func(instr *ir.Instr) {
		if instr.Flags()&ir.IfInvalidateContext != 0 {
			av.clear()
			return
		}
		switch instr.Op() {
		case ir.OpLoadContext:
			offset := int32(instr.Arg(0).AsInt64())
			av.set(offset, nil)
		case ir.OpStoreContext:
			offset := int32(instr.Arg(0).AsInt64())
			if next, ok := av.get(offset); ok && next != nil && next.Type().Wider(instr.Arg(1).Type()) {
				b.RemoveInstr(instr)
				return
			}
			av.set(offset, instr.Arg(1))
		}
	})
}
