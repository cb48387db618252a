package passes

import (
	"testing"

	"github.com/zotley/dcjit/internal/ir"
)

func TestConstantPropagationFoldsChain(t *testing.T) {
	b := ir.NewBuilder()
	b.Block()

	sum := b.EmitAdd(b.ConstI32(3), b.ConstI32(4))
	prod := b.EmitMul(sum, b.ConstI32(10))
	b.EmitStoreContext(0, prod)
	b.EmitBranch(b.AllocBlockRef(b.Blocks()[0]))

	ConstantPropagation(b)

	var stored *ir.Value
	b.Blocks()[0].Instrs(func(instr *ir.Instr) {
		if instr.Op() == ir.OpStoreContext {
			stored = instr.Arg(1)
		}
	})
	if stored == nil || !stored.IsConstant() {
		t.Fatalf("expected store_context operand to fold to a constant, got %v", stored)
	}
	if got := stored.AsInt64(); got != 70 {
		t.Fatalf("expected folded constant 70, got %d", got)
	}
}

func TestDeadCodeEliminationRemovesUnusedChain(t *testing.T) {
	b := ir.NewBuilder()
	blk := b.Block()

	unused := b.EmitAdd(b.ConstI32(1), b.ConstI32(2))
	_ = unused
	kept := b.EmitAdd(b.ConstI32(5), b.ConstI32(6))
	b.EmitStoreContext(0, kept)
	b.EmitBranch(b.AllocBlockRef(blk))

	DeadCodeElimination(b)

	if blk.Len() != 3 {
		t.Fatalf("expected 3 surviving instructions (add, store_context, branch), got %d", blk.Len())
	}
}

func TestLoadStoreEliminationForwardsRedundantLoad(t *testing.T) {
	b := ir.NewBuilder()
	blk := b.Block()

	v := b.EmitLoadContext(16, ir.I32)
	again := b.EmitLoadContext(16, ir.I32)
	b.EmitStoreContext(32, again)
	b.EmitBranch(b.AllocBlockRef(blk))

	LoadStoreElimination(b)

	loads := 0
	blk.Instrs(func(instr *ir.Instr) {
		if instr.Op() == ir.OpLoadContext {
			loads++
		}
	})
	if loads != 1 {
		t.Fatalf("expected the second load_context to be eliminated, got %d loads remaining", loads)
	}
	_ = v
}

func TestLoadStoreEliminationDropsDeadStore(t *testing.T) {
	b := ir.NewBuilder()
	blk := b.Block()

	b.EmitStoreContext(8, b.ConstI32(1))
	b.EmitStoreContext(8, b.ConstI32(2))
	b.EmitBranch(b.AllocBlockRef(blk))

	LoadStoreElimination(b)

	stores := 0
	blk.Instrs(func(instr *ir.Instr) {
		if instr.Op() == ir.OpStoreContext {
			stores++
		}
	})
	if stores != 1 {
		t.Fatalf("expected the first dead store to be eliminated, got %d stores remaining", stores)
	}
}

// TestRegisterAllocationSpillsUnderPressure builds a block with seven live
// i32 values forced through a single store before a backend exposing just
// one integer register, and checks that register allocation inserts the
// expected store_local/load_local spill pairs rather than failing.
func TestRegisterAllocationSpillsUnderPressure(t *testing.T) {
	b := ir.NewBuilder()
	blk := b.Block()

	base := b.ConstI32(0)
	var vals []*ir.Value
	for i := 0; i < 7; i++ {
		vals = append(vals, b.EmitAdd(base, b.ConstI32(int32(i))))
	}
	var sum *ir.Value = vals[0]
	for _, v := range vals[1:] {
		sum = b.EmitAdd(sum, v)
	}
	b.EmitStoreContext(0, sum)
	b.EmitBranch(b.AllocBlockRef(blk))

	registers := []RegisterDef{{Name: "r0", Mask: ir.I32}}

	RegisterAllocation(b, registers)

	stores, loads := 0, 0
	blk.Instrs(func(instr *ir.Instr) {
		if instr.Op() == ir.OpStoreLocal {
			stores++
		}
		if instr.Op() == ir.OpLoadLocal {
			loads++
		}
	})
	if stores == 0 || stores != loads {
		t.Fatalf("expected a balanced set of store_local/load_local spill pairs, got %d stores, %d loads", stores, loads)
	}
}

func TestValidateRejectsMisplacedTerminator(t *testing.T) {
	b := ir.NewBuilder()
	blk := b.Block()
	b.EmitBranch(b.AllocBlockRef(blk))
	b.EmitStoreContext(0, b.ConstI32(1))

	if err := Validate(b); err == nil {
		t.Fatal("expected Validate to reject a non-terminal branch")
	}
}

func TestControlFlowAnalysisLinksBranchTargets(t *testing.T) {
	b := ir.NewBuilder()
	entry := b.Block()
	exit := b.Block()
	b.SetInsertPoint(entry, entry.Tail())
	b.EmitBranch(b.AllocBlockRef(exit))

	ControlFlowAnalysis(b)

	if len(entry.Succs()) != 1 || entry.Succs()[0] != exit {
		t.Fatalf("expected entry to have exit as its sole successor, got %v", entry.Succs())
	}
	if len(exit.Preds()) != 1 || exit.Preds()[0] != entry {
		t.Fatalf("expected exit to have entry as its sole predecessor, got %v", exit.Preds())
	}
}
