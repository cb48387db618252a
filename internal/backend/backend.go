// Package backend defines the contract both code-generation backends
// (interpreter, x86-64) satisfy: a physical-register descriptor table, an
// Assemble operation producing a RuntimeBlock or a recoverable overflow,
// Reset, and exception handling for fastmem faults (spec.md §4.6).
package backend

import (
	"github.com/zotley/dcjit/internal/except"
	"github.com/zotley/dcjit/internal/ir"
	"github.com/zotley/dcjit/internal/ir/passes"
)

// BlockFlag records compile-time decisions about a RuntimeBlock.
type BlockFlag uint8

const (
	// BFInvalidate marks a block for mandatory recompilation on next
	// resolve (spec.md §4.8).
	BFInvalidate BlockFlag = 1 << iota
	// BFSlowmem disables fastmem lowering for every memory op in the
	// block, forcing host calls into the address space instead.
	BFSlowmem
)

// RuntimeBlock is the compiled product of one guest basic block: a
// function returning the next guest PC, its guest-cycle cost (billed by
// the scheduler), and compile-time flags (spec.md §3).
type RuntimeBlock struct {
	Fn          func(ctx uintptr) uint32
	GuestCycles int32
	Flags       BlockFlag
}

// Backend is the capability interface both code generators satisfy —
// spec.md §9's "replace deep class hierarchies with a small set of
// capability interfaces" applied to Frontend/Backend/Pass/Device.
type Backend interface {
	// Registers returns the backend's physical-register descriptor table,
	// stable for the backend's lifetime.
	Registers() []passes.RegisterDef
	// Assemble lowers an optimized IR builder into a RuntimeBlock, or
	// returns a dcerr.BufferOverflow-wrapped error if the code buffer is
	// exhausted (recoverable: the caller flushes the block cache and
	// retries once).
	Assemble(b *ir.Builder) (RuntimeBlock, error)
	// Reset drops all emitted code, called after a BufferOverflow.
	Reset()
	// HandleException inspects a fault possibly originating from this
	// backend's generated code (e.g. a fastmem access violation) and
	// reports whether it was handled.
	HandleException(ex *except.Exception) bool
}
