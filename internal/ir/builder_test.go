package ir

import "testing"

func TestEmitAndUseList(t *testing.T) {
	b := NewBuilder()
	blk := b.Block()
	c3 := b.ConstI32(3)
	c4 := b.ConstI32(4)
	sum := b.EmitAdd(c3, c4)
	target := b.AllocBlockRef(blk)
	b.EmitBranch(target)

	if !c3.HasUses() || !c4.HasUses() {
		t.Fatal("constants should have uses immediately after being used as args")
	}

	n := 0
	sum.Def().Arg(0).Uses(func(*Instr, int) { n++ })
	if n != 1 {
		t.Fatalf("expected 1 use of c3, got %d", n)
	}

	if blk.Len() != 2 {
		t.Fatalf("expected 2 instructions (add, branch), got %d", blk.Len())
	}
}

func TestReplaceAllUsesOf(t *testing.T) {
	b := NewBuilder()
	b.Block()
	c1 := b.ConstI32(1)
	c2 := b.ConstI32(2)
	add1 := b.EmitAdd(c1, c1)
	add2 := b.EmitAdd(c1, c1)
	_ = add2

	b.ReplaceAllUsesOf(c1, c2)

	if c1.HasUses() {
		t.Fatal("c1 should have no uses after ReplaceAllUsesOf")
	}
	uses := 0
	c2.Uses(func(*Instr, int) { uses++ })
	if uses != 4 {
		t.Fatalf("expected 4 uses of c2 (2 instrs x 2 args), got %d", uses)
	}
	if add1.Def().Arg(0) != c2 || add1.Def().Arg(1) != c2 {
		t.Fatal("add1 args were not rewritten")
	}
}

func TestRemoveInstr(t *testing.T) {
	b := NewBuilder()
	blk := b.Block()
	c1 := b.ConstI32(1)
	addInstr := b.EmitAdd(c1, c1).Def()
	b.RemoveInstr(addInstr)

	if blk.Len() != 0 {
		t.Fatalf("expected block empty after removal, got %d instrs", blk.Len())
	}
	if c1.HasUses() {
		t.Fatal("c1 should have no uses after its only user was removed")
	}
}

func TestAllocLocalAlignment(t *testing.T) {
	b := NewBuilder()
	off1 := b.AllocLocal(I8)
	off2 := b.AllocLocal(I32)
	off3 := b.AllocLocal(I8)

	if off1 != 0 {
		t.Fatalf("off1 = %d, want 0", off1)
	}
	if off2 != 4 {
		t.Fatalf("off2 = %d, want 4 (aligned up from 1)", off2)
	}
	if off3 != 8 {
		t.Fatalf("off3 = %d, want 8", off3)
	}
	if b.LocalSize() != 9 {
		t.Fatalf("LocalSize() = %d, want 9", b.LocalSize())
	}
}

func TestSetInsertPoint(t *testing.T) {
	b := NewBuilder()
	blk := b.Block()
	first := b.EmitAdd(b.ConstI32(1), b.ConstI32(1)).Def()
	second := b.EmitAdd(b.ConstI32(2), b.ConstI32(2)).Def()

	b.SetInsertPoint(blk, first)
	mid := b.EmitAdd(b.ConstI32(3), b.ConstI32(3)).Def()

	if first.Next() != mid || mid.Next() != second {
		t.Fatal("instruction spliced at wrong position")
	}
}
