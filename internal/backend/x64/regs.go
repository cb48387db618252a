// Package x64 implements the native code-generation backend: an inline
// x86-64 assembler lowering optimized IR straight into executable bytes,
// plus the minimal mov decoder the fastmem fault path needs to recover a
// faulting instruction's operand shape (spec.md §4.7). Grounded on the
// ModRM/SIB decode idiom in debug_disasm_x86.go and the opcode-group
// switch style in cpu_x86_grp.go, generalized from decode to encode.
package x64

import (
	"fmt"

	"github.com/zotley/dcjit/internal/ir"
	"github.com/zotley/dcjit/internal/ir/passes"
)

// gpReg names the 16 general-purpose registers in their ModRM.rm / REX.B
// encoding order.
type gpReg int

const (
	rax gpReg = iota
	rcx
	rdx
	rbx
	rsp
	rbp
	rsi
	rdi
	r8
	r9
	r10
	r11
	r12
	r13
	r14
	r15
)

var gpNames = [16]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}

// calleeSavedGP are the six callee-saved GPRs allocated to hold guest
// register values across calls, per the SysV AMD64 ABI (rbx, rbp, r12-r15
// survive a call; rsp is reserved for the host stack).
var calleeSavedGP = [6]gpReg{rbx, rbp, r12, r13, r14, r15}

// tmp0, tmp1 are caller-saved scratch GPRs reserved by the code generator
// for address computation and never assigned to guest values.
const (
	tmp0 = rax
	tmp1 = rdx
)

// ctxReg holds the SH4Context pointer for the duration of a block, passed
// in as the sole argument per the SysV calling convention (first integer
// argument register).
const ctxReg = rdi

// pbReg holds the fastmem protected-base alias for the block's whole
// lifetime. It cannot share a register with tmp0/tmp1: those are
// clobbered by ordinary arithmetic lowering, and a scratch collision here
// would silently corrupt every OpLoad/OpStore address after the first
// such clobber.
const pbReg = rsi

// calleeSavedXMM are the six callee-saved XMM registers (xmm6-xmm11) used
// for guest floating-point values; xmm0-xmm5 are caller-saved scratch.
var calleeSavedXMM = [6]int{6, 7, 8, 9, 10, 11}

// Registers returns the physical-register descriptor table this backend
// exposes to RegisterAllocation: six int-class slots backed by the
// callee-saved GPRs, six float-class slots backed by the callee-saved XMM
// registers (spec.md §4.4/§4.7).
func Registers() []passes.RegisterDef {
	var regs []passes.RegisterDef
	for _, r := range calleeSavedGP {
		regs = append(regs, passes.RegisterDef{Name: gpNames[r], Mask: ir.I64})
	}
	for _, x := range calleeSavedXMM {
		regs = append(regs, passes.RegisterDef{Name: xmmName(x), Mask: ir.F64})
	}
	return regs
}

func xmmName(n int) string {
	return fmt.Sprintf("xmm%d", n)
}
