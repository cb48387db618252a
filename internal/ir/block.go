package ir

// Block is an ordered list of instructions plus predecessor/successor edge
// sets populated by the control-flow-analysis pass (spec.md §3/§4.4).
type Block struct {
	id      int
	builder *Builder

	head *Instr
	tail *Instr

	preds []*Block
	succs []*Block

	meta map[string]any
}

// ID returns the block's builder-local ordinal, stable for the builder's
// lifetime and used to label branch targets in diagnostics.
func (b *Block) ID() int { return b.id }

// Preds returns the block's predecessor set (valid after control-flow
// analysis runs).
func (b *Block) Preds() []*Block { return b.preds }

// Succs returns the block's successor set (valid after control-flow
// analysis runs).
func (b *Block) Succs() []*Block { return b.succs }

// Head returns the first instruction in the block, or nil if empty.
func (b *Block) Head() *Instr { return b.head }

// Tail returns the last instruction in the block (its terminator, once one
// has been emitted), or nil if empty.
func (b *Block) Tail() *Instr { return b.tail }

// Instrs calls fn for every instruction in program order. fn may remove the
// current instruction (via RemoveInstr) without corrupting iteration.
func (b *Block) Instrs(fn func(*Instr)) {
	for i, next := b.head, (*Instr)(nil); i != nil; i = next {
		next = i.next
		fn(i)
	}
}

// ReverseInstrs calls fn for every instruction in reverse program order,
// safe against removal of the current instruction.
func (b *Block) ReverseInstrs(fn func(*Instr)) {
	for i, prev := b.tail, (*Instr)(nil); i != nil; i = prev {
		prev = i.prev
		fn(i)
	}
}

// Len returns the number of instructions currently in the block.
func (b *Block) Len() int {
	n := 0
	b.Instrs(func(*Instr) { n++ })
	return n
}

// append links instr at the tail of the block's instruction list.
func (b *Block) append(instr *Instr) {
	instr.block = b
	instr.prev = b.tail
	instr.next = nil
	if b.tail != nil {
		b.tail.next = instr
	} else {
		b.head = instr
	}
	b.tail = instr
}

// insertAfter splices instr immediately after "after" (or at the head if
// after is nil).
func (b *Block) insertAfter(after, instr *Instr) {
	instr.block = b
	if after == nil {
		instr.prev = nil
		instr.next = b.head
		if b.head != nil {
			b.head.prev = instr
		} else {
			b.tail = instr
		}
		b.head = instr
		return
	}
	instr.prev = after
	instr.next = after.next
	if after.next != nil {
		after.next.prev = instr
	} else {
		b.tail = instr
	}
	after.next = instr
}

// remove detaches instr from the block's instruction list (argument
// use-lists are handled separately by Builder.RemoveInstr).
func (b *Block) remove(instr *Instr) {
	if instr.prev != nil {
		instr.prev.next = instr.next
	} else {
		b.head = instr.next
	}
	if instr.next != nil {
		instr.next.prev = instr.prev
	} else {
		b.tail = instr.prev
	}
	instr.prev, instr.next, instr.block = nil, nil, nil
}

// ResetEdges clears every block's predecessor/successor set, called by
// ControlFlowAnalysis before recomputing them.
func ResetEdges(b *Builder) {
	for _, blk := range b.blocks {
		blk.preds = nil
		blk.succs = nil
	}
}

// LinkEdge records that from falls through/branches to to, updating both
// blocks' edge sets.
func LinkEdge(from, to *Block) {
	from.succs = append(from.succs, to)
	to.preds = append(to.preds, from)
}

// Meta returns a block-scoped metadata value previously set with SetMeta,
// and whether it was present.
func (b *Block) Meta(key string) (any, bool) {
	v, ok := b.meta[key]
	return v, ok
}

// SetMeta attaches a metadata value to the block (e.g. recorded guest-cycle
// cost, spec.md §3).
func (b *Block) SetMeta(key string, v any) {
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = v
}
