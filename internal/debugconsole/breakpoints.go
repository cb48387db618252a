package debugconsole

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// breakpoint pairs a guest address with an optional Lua boolean
// expression; an empty expression always fires.
type breakpoint struct {
	addr uint32
	expr string
}

// Breakpoints is the scheduler-consulted table of conditional
// breakpoints. Each Hit call gets its own *lua.LState since gopher-lua
// states are not safe for concurrent use and the emulation thread must
// never block waiting on the console's goroutine.
type Breakpoints struct {
	mu    sync.Mutex
	table map[uint32]breakpoint

	// regs/mem give Hit's Lua environment read access to guest state
	// without exposing the full Target (no writes from a condition).
	regs func(int) uint32
	mem  func(uint32) uint32
}

func NewBreakpoints() *Breakpoints {
	return &Breakpoints{table: map[uint32]breakpoint{}}
}

// Bind attaches the register/memory readers a condition expression can
// call as reg(n) and mem(addr). The owner of the Breakpoints calls it
// after construction; dreamcast.New does not.
func (b *Breakpoints) Bind(regs func(int) uint32, mem func(uint32) uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regs = regs
	b.mem = mem
}

// Set installs or replaces the breakpoint at addr. expr, if non-empty,
// must be a Lua expression evaluating to a boolean; it is syntax-checked
// immediately by compiling (not running) it.
func (b *Breakpoints) Set(addr uint32, expr string) error {
	if expr != "" {
		L := lua.NewState()
		defer L.Close()
		if _, err := L.LoadString("return (" + expr + ")"); err != nil {
			return fmt.Errorf("invalid condition: %w", err)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.table[addr] = breakpoint{addr: addr, expr: expr}
	return nil
}

// Clear removes any breakpoint at addr.
func (b *Breakpoints) Clear(addr uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.table, addr)
}

// Hit reports whether execution should stop at pc: there must be a
// breakpoint installed there, and if it carries a condition, the
// condition must evaluate truthy against current guest state.
func (b *Breakpoints) Hit(pc uint32) bool {
	b.mu.Lock()
	bp, ok := b.table[pc]
	regs, mem := b.regs, b.mem
	b.mu.Unlock()
	if !ok {
		return false
	}
	if bp.expr == "" {
		return true
	}

	L := lua.NewState()
	defer L.Close()

	if regs != nil {
		L.SetGlobal("reg", L.NewFunction(func(L *lua.LState) int {
			n := L.CheckInt(1)
			L.Push(lua.LNumber(regs(n)))
			return 1
		}))
	}
	if mem != nil {
		L.SetGlobal("mem", L.NewFunction(func(L *lua.LState) int {
			addr := uint32(L.CheckInt64(1))
			L.Push(lua.LNumber(mem(addr)))
			return 1
		}))
	}

	if err := L.DoString("return (" + bp.expr + ")"); err != nil {
		return false
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret)
}
