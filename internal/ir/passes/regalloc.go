package passes

import "github.com/zotley/dcjit/internal/ir"

// Class is the physical-register partition a value belongs to.
type Class int

const (
	ClassInt Class = iota
	ClassFloat
)

// RegisterDef describes one physical register a backend exposes for
// allocation: its display name and the set of IR types it can hold
// (spec.md §4.6's "static array of physical registers with {name,
// value_type_mask}").
type RegisterDef struct {
	Name string
	Mask ir.Type // representative type; determines Class via IsFloat()
}

func classOf(t ir.Type) Class {
	if t.IsFloat() {
		return ClassFloat
	}
	return ClassInt
}

type liveInterval struct {
	val     *ir.Value
	reg     int
	usePos  []int // sorted ordinals where val is read as an argument
	idx     int   // index of first unconsumed (>= current ordinal) use
	lastOrd int    // ordinal of the most recent use/def consumed so far
}

func (li *liveInterval) nextUse() (int, bool) {
	if li.idx >= len(li.usePos) {
		return 0, false
	}
	return li.usePos[li.idx], true
}

// RegisterAllocation runs the modified linear-scan allocator from spec.md
// §4.4, one block at a time, against the given physical-register table.
// Spills insert store_local/load_local pairs around the chosen victim
// interval and rewrite every use from the spill point onward to the
// reloaded value.
func RegisterAllocation(b *ir.Builder, registers []RegisterDef) {
	freeTemplate := map[Class][]int{}
	for i, r := range registers {
		c := classOf(r.Mask)
		freeTemplate[c] = append(freeTemplate[c], i)
	}

	for _, blk := range b.Blocks() {
		allocBlock(b, blk, freeTemplate)
	}
}

func allocBlock(b *ir.Builder, blk *ir.Block, freeTemplate map[Class][]int) {
	// capture the block's original instruction sequence and assign each an
	// ordinal with gaps of 10, so spill fills/stores inserted later would
	// have ordinals available between existing ones (spec.md §4.4 step 1).
	var seq []*ir.Instr
	ord := 0
	blk.Instrs(func(i *ir.Instr) {
		i.Tag = ord
		seq = append(seq, i)
		ord += 10
	})

	usePos := map[*ir.Value][]int{}
	for _, instr := range seq {
		for n := 0; n < instr.Op().NumArgs(); n++ {
			a := instr.Arg(n)
			if a == nil || a.IsConstant() {
				continue
			}
			usePos[a] = append(usePos[a], instr.Tag)
		}
	}

	free := map[Class][]int{
		ClassInt:   append([]int(nil), freeTemplate[ClassInt]...),
		ClassFloat: append([]int(nil), freeTemplate[ClassFloat]...),
	}
	var live []*liveInterval

	popFree := func(c Class) (int, bool) {
		l := free[c]
		if len(l) == 0 {
			return 0, false
		}
		r := l[0]
		free[c] = l[1:]
		return r, true
	}
	pushFree := func(c Class, r int) { free[c] = append(free[c], r) }

	findLive := func(v *ir.Value) *liveInterval {
		for _, li := range live {
			if li.val == v {
				return li
			}
		}
		return nil
	}
	removeLive := func(li *liveInterval) {
		for idx, l := range live {
			if l == li {
				live = append(live[:idx], live[idx+1:]...)
				return
			}
		}
	}

	for idx, instr := range seq {
		curOrd := instr.Tag

		// (a) expire: advance every live interval past curOrd; free the
		// register of any interval with no remaining use.
		for _, li := range live {
			for li.idx < len(li.usePos) && li.usePos[li.idx] <= curOrd {
				li.lastOrd = li.usePos[li.idx]
				li.idx++
			}
		}
		var stillLive []*liveInterval
		for _, li := range live {
			if _, ok := li.nextUse(); ok {
				stillLive = append(stillLive, li)
			} else {
				pushFree(classOf(li.val.Type()), li.reg)
			}
		}
		live = stillLive

		if !instr.Op().ProducesResult() {
			continue
		}
		result := instr.Result()
		cls := classOf(result.Type())
		reg := ir.NoRegister

		// (b) reuse: inherit arg0's register if it is dying here.
		if arg0 := instr.Arg(0); arg0 != nil && !arg0.IsConstant() &&
			arg0.Reg() != ir.NoRegister && classOf(arg0.Type()) == cls {
			if li := findLive(arg0); li != nil {
				if _, ok := li.nextUse(); !ok {
					reg = arg0.Reg()
					removeLive(li)
				}
			}
		}

		// (c) allocate free.
		if reg == ir.NoRegister {
			if r, ok := popFree(cls); ok {
				reg = r
			}
		}

		// (d) spill: evict the live interval of the same class whose next
		// use is furthest in the future.
		if reg == ir.NoRegister {
			var victim *liveInterval
			furthest := -1
			for _, li := range live {
				if classOf(li.val.Type()) != cls {
					continue
				}
				nu, ok := li.nextUse()
				if !ok {
					continue
				}
				if nu > furthest {
					furthest = nu
					victim = li
				}
			}
			if victim == nil {
				panic("ir/passes: register allocation exhausted with no spill candidate (Bug)")
			}
			reg = spill(b, blk, seq, idx, victim)
			removeLive(victim)
		}

		result.SetReg(reg)
		live = append(live, &liveInterval{val: result, reg: reg, usePos: usePos[result], lastOrd: curOrd})
	}

	for _, li := range live {
		pushFree(classOf(li.val.Type()), li.reg)
	}
}

// spill inserts a store_local immediately after victim's previous use (or
// its defining instruction, if it has none yet) and a load_local
// immediately before its next use, rewriting every use from the next use
// onward to read the reloaded value (spec.md §4.4 step 3(d)). Returns the
// register freed by the eviction.
func spill(b *ir.Builder, blk *ir.Block, seq []*ir.Instr, curIdx int, victim *liveInterval) int {
	offset := b.AllocLocal(victim.val.Type())

	prevInstr := victim.val.Def()
	for _, instr := range seq[:curIdx] {
		if instr.Tag == victim.lastOrd && instr != victim.val.Def() {
			prevInstr = instr
		}
	}
	b.SetInsertPoint(blk, prevInstr)
	b.EmitStoreLocal(offset, victim.val)

	nextOrd, _ := victim.nextUse()
	var nextInstr *ir.Instr
	nextIdx := curIdx
	for i, instr := range seq {
		if instr.Tag == nextOrd {
			nextInstr = instr
			nextIdx = i
			break
		}
	}
	b.SetInsertPoint(blk, nextInstr.Prev())
	loaded := b.EmitLoadLocal(offset, victim.val.Type())

	for i := nextIdx; i < len(seq); i++ {
		instr := seq[i]
		for n := 0; n < instr.Op().NumArgs(); n++ {
			if instr.Arg(n) == victim.val {
				instr.ReplaceArg(n, loaded)
			}
		}
	}

	return victim.reg
}
