// Package blockcache implements the direct-mapped block cache keyed by
// guest program counter, with self-modifying-code invalidation and the
// overflow-flush-retry-once compile semantics (spec.md §4.8).
package blockcache

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/zotley/dcjit/internal/backend"
	"github.com/zotley/dcjit/internal/dcerr"
)

const (
	slotBits = 23
	numSlots = 1 << slotBits
	slotMask = numSlots - 1
)

// Fn is the trampoline ABI every slot satisfies: called with the SH4
// context pointer, returning the next guest PC (spec.md §6).
type Fn func(ctx uintptr) uint32

// CompileFlags mirrors spec.md §6's compile_flags configuration option.
type CompileFlags uint8

const (
	// SH4SingleInstr stops the frontend after one decoded instruction
	// (debugger single-step).
	SH4SingleInstr CompileFlags = 1 << iota
	// ForceSlowmem requests recompiling without fastmem lowering, set by
	// RequestSlowmemRecompile after a fastmem fault handler decides a
	// block's memory ops must go through the address space instead
	// (spec.md §8 scenario 5).
	ForceSlowmem
)

// CompileFunc runs frontend → optimizer → backend for the block starting
// at pc and produces the resulting RuntimeBlock. Supplied by the owner
// that wires those three stages together (internal/dreamcast).
type CompileFunc func(pc uint32, ctx uintptr, flags CompileFlags) (backend.RuntimeBlock, error)

type slotEntry struct {
	pc    uint32
	valid bool
	block backend.RuntimeBlock
}

func slotIndex(pc uint32) int {
	return int((pc&0x03ffffff)>>1) & slotMask
}

// Stats reports the cache's occupancy, logged by cmd/dcjit's -log-regs
// loop (SPEC_FULL.md §4, redream's runtime.cc num_blocks/used_blocks
// counters).
type Stats struct {
	NumBlocks  int // total successful compiles since the last Reset
	UsedSlots  int // currently valid slots
}

// Cache is the direct-mapped 1<<23 slot table. A slot holds either a
// compiled RuntimeBlock or is invalid, in which case Resolve returns a
// trampoline that compiles on first call.
type Cache struct {
	mu           sync.Mutex
	slots        []slotEntry
	compile      CompileFunc
	be           backend.Backend
	stats        Stats
	forceSlowmem map[uint32]bool
}

// New creates an empty cache. compile performs frontend→optimizer→backend
// for a single guest block; be is the backend whose Reset() is called on
// a BufferOverflow flush (so generated code and cache slots are flushed
// together).
func New(compile CompileFunc, be backend.Backend) *Cache {
	return &Cache{slots: make([]slotEntry, numSlots), compile: compile, be: be, forceSlowmem: map[uint32]bool{}}
}

// Resolve returns the slot's function pointer for pc: a valid compiled
// block, or a trampoline that compiles the block and installs it before
// tail-calling it (spec.md §4.8/§6).
func (c *Cache) Resolve(pc uint32) Fn {
	idx := slotIndex(pc)
	c.mu.Lock()
	e := c.slots[idx]
	c.mu.Unlock()

	if e.valid && e.pc == pc && e.block.Flags&backend.BFInvalidate == 0 {
		return e.block.Fn
	}
	return func(ctx uintptr) uint32 {
		var flags CompileFlags
		c.mu.Lock()
		if c.forceSlowmem[pc] {
			flags |= ForceSlowmem
			delete(c.forceSlowmem, pc)
		}
		c.mu.Unlock()

		fn, err := c.Compile(pc, ctx, flags)
		if err != nil {
			log.Fatalf("blockcache: compile %#08x: %v", pc, err)
		}
		return fn(ctx)
	}
}

// RequestSlowmemRecompile invalidates pc's slot and marks its next compile
// to force slowmem lowering, the response to a fastmem access violation
// (spec.md §8 scenario 5): fault -> thunk -> re-resolve -> recompiled
// block with BF_SLOWMEM.
func (c *Cache) RequestSlowmemRecompile(pc uint32) {
	c.mu.Lock()
	c.forceSlowmem[pc] = true
	idx := slotIndex(pc)
	c.slots[idx] = slotEntry{}
	c.mu.Unlock()
}

// Compile runs CompileFunc for pc and installs the result in its slot. On
// BufferOverflow the entire cache (and the backend's code buffer) is
// flushed via reset() and the compile is retried exactly once; a second
// overflow is fatal (spec.md §4.8/§7).
func (c *Cache) Compile(pc uint32, ctx uintptr, flags CompileFlags) (Fn, error) {
	blk, err := c.compile(pc, ctx, flags)
	if errors.Is(err, dcerr.BufferOverflow) {
		c.reset()
		blk, err = c.compile(pc, ctx, flags)
		if errors.Is(err, dcerr.BufferOverflow) {
			return nil, fmt.Errorf("%w: code buffer overflowed again immediately after flush", dcerr.Bug)
		}
	}
	if err != nil {
		return nil, err
	}

	idx := slotIndex(pc)
	c.mu.Lock()
	c.slots[idx] = slotEntry{pc: pc, valid: true, block: blk}
	c.stats.NumBlocks++
	c.mu.Unlock()
	return blk.Fn, nil
}

// Invalidate resets pc's slot to the trampoline, triggered by SMC
// detection on guest writes to executable ranges, the fastmem recompile
// request (BFInvalidate), or a guest-state change the frontend depended
// on (e.g. FPSCR precision).
func (c *Cache) Invalidate(pc uint32) {
	idx := slotIndex(pc)
	c.mu.Lock()
	c.slots[idx] = slotEntry{}
	c.mu.Unlock()
}

// InvalidateAll resets the whole table to the trampoline.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	for i := range c.slots {
		c.slots[i] = slotEntry{}
	}
	c.mu.Unlock()
}

func (c *Cache) reset() {
	c.InvalidateAll()
	c.mu.Lock()
	c.stats.NumBlocks = 0
	c.mu.Unlock()
	c.be.Reset()
}

// Stats reports the cache's current occupancy.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	used := 0
	for _, e := range c.slots {
		if e.valid {
			used++
		}
	}
	s := c.stats
	s.UsedSlots = used
	return s
}
