package passes

import "github.com/zotley/dcjit/internal/ir"

// ControlFlowAnalysis computes predecessor and successor sets per block by
// resolving branch/branch_cond targets (spec.md §4.4).
func ControlFlowAnalysis(b *ir.Builder) {
	ir.ResetEdges(b)

	for _, blk := range b.Blocks() {
		term := blk.Tail()
		if term == nil {
			continue
		}
		switch term.Op() {
		case ir.OpBranch:
			if target := term.Arg(0); target != nil && target.Type() == ir.TypeBlock {
				ir.LinkEdge(blk, target.BlockRef())
			}
		case ir.OpBranchCond:
			if t := term.Arg(1); t != nil && t.Type() == ir.TypeBlock {
				ir.LinkEdge(blk, t.BlockRef())
			}
			if f := term.Arg(2); f != nil && f.Type() == ir.TypeBlock {
				ir.LinkEdge(blk, f.BlockRef())
			}
		}
	}
}
