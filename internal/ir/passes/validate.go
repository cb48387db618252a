// Package passes implements the optimizer pipeline described in spec.md
// §4.4: validate → control-flow analysis → load/store elimination →
// constant propagation → dead-code elimination → register allocation. Each
// pass receives a *ir.Builder and mutates it in place.
package passes

import (
	"fmt"

	"github.com/zotley/dcjit/internal/dcerr"
	"github.com/zotley/dcjit/internal/ir"
)

// ValidateError reports a structural defect found by Validate: an
// assertion failure in the optimizer, fatal to the compile.
type ValidateError struct {
	Block int
	Msg   string
}

func (e *ValidateError) Error() string {
	return fmt.Sprintf("ir: block %d: %s: %v", e.Block, e.Msg, dcerr.Bug)
}

func (e *ValidateError) Unwrap() error { return dcerr.Bug }

// Validate performs the structural-only check from spec.md §4.4: each block
// has exactly one terminator at its end, and no instruction dangles a nil
// argument where the opcode requires one.
func Validate(b *ir.Builder) error {
	for _, blk := range b.Blocks() {
		terminators := 0
		last := blk.Tail()
		var argErr error
		blk.Instrs(func(instr *ir.Instr) {
			if instr.Flags()&ir.OpFlagBranch != 0 {
				terminators++
			}
			for n := 0; n < instr.Op().NumArgs(); n++ {
				if instr.Arg(n) == nil && argErr == nil {
					argErr = &ValidateError{Block: blk.ID(), Msg: fmt.Sprintf("%s missing required arg %d", instr.Op(), n)}
				}
			}
		})
		if argErr != nil {
			return argErr
		}
		if terminators == 0 {
			return &ValidateError{Block: blk.ID(), Msg: "no terminator"}
		}
		if terminators > 1 {
			return &ValidateError{Block: blk.ID(), Msg: "more than one terminator"}
		}
		if last != nil && terminators == 1 && last.Flags()&ir.OpFlagBranch == 0 {
			return &ValidateError{Block: blk.ID(), Msg: "terminator is not the last instruction"}
		}
	}
	return nil
}
