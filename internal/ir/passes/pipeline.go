package passes

import (
	"fmt"
	"strings"

	"github.com/zotley/dcjit/internal/ir"
)

// Run drives the optimizer pipeline in the fixed order spec.md §4.4 requires:
// structural validation, control-flow analysis, load/store elimination,
// constant propagation, dead-code elimination and finally register
// allocation against the backend's physical-register table. Mirrors the
// staged debug-dump style of redream's PassRunner, minus the actual dump:
// Run prints nothing, and Dump below renders the IR only when called.
func Run(b *ir.Builder, registers []RegisterDef) error {
	if err := Validate(b); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	ControlFlowAnalysis(b)
	LoadStoreElimination(b)
	ConstantPropagation(b)
	DeadCodeElimination(b)
	RegisterAllocation(b, registers)
	return nil
}

// Dump renders the builder's IR as text via Builder.WriteText, for
// pipeline-stage before/after comparisons.
func Dump(b *ir.Builder) string {
	var sb strings.Builder
	b.WriteText(&sb)
	return sb.String()
}
