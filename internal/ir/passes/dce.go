package passes

import "github.com/zotley/dcjit/internal/ir"

// DeadCodeElimination repeatedly removes, in reverse iteration order, any
// instruction with no result uses and no side-effect flag, until a full pass
// removes nothing (spec.md §4.4, §8's "after DCE" invariant).
func DeadCodeElimination(b *ir.Builder) {
	for {
		removed := false
		for _, blk := range b.Blocks() {
			blk.ReverseInstrs(func(instr *ir.Instr) {
				if instr.Op().HasSideEffect() {
					return
				}
				res := instr.Result()
				if res != nil && res.HasUses() {
					return
				}
				b.RemoveInstr(instr)
				removed = true
			})
		}
		if !removed {
			return
		}
	}
}
