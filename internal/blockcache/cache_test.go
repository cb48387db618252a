package blockcache

import (
	"errors"
	"testing"

	"github.com/zotley/dcjit/internal/backend"
	"github.com/zotley/dcjit/internal/dcerr"
	"github.com/zotley/dcjit/internal/except"
	"github.com/zotley/dcjit/internal/ir"
	"github.com/zotley/dcjit/internal/ir/passes"
)

type fakeBackend struct{ resets int }

func (f *fakeBackend) Registers() []passes.RegisterDef                 { return nil }
func (f *fakeBackend) Assemble(b *ir.Builder) (backend.RuntimeBlock, error) {
	return backend.RuntimeBlock{}, nil
}
func (f *fakeBackend) Reset()                                     { f.resets++ }
func (f *fakeBackend) HandleException(ex *except.Exception) bool { return false }

func TestResolveCompilesOnce(t *testing.T) {
	calls := 0
	be := &fakeBackend{}
	c := New(func(pc uint32, ctx uintptr, flags CompileFlags) (backend.RuntimeBlock, error) {
		calls++
		return backend.RuntimeBlock{Fn: func(uintptr) uint32 { return pc + 2 }}, nil
	}, be)

	fn := c.Resolve(0x1000)
	if got := fn(0); got != 0x1002 {
		t.Fatalf("trampoline returned %#x, want 0x1002", got)
	}
	if calls != 1 {
		t.Fatalf("compile called %d times, want 1", calls)
	}

	fn2 := c.Resolve(0x1000)
	fn2(0)
	if calls != 1 {
		t.Fatalf("second resolve recompiled: calls=%d", calls)
	}
}

func TestInvalidateForcesRecompile(t *testing.T) {
	calls := 0
	be := &fakeBackend{}
	c := New(func(pc uint32, ctx uintptr, flags CompileFlags) (backend.RuntimeBlock, error) {
		calls++
		return backend.RuntimeBlock{Fn: func(uintptr) uint32 { return pc }}, nil
	}, be)

	c.Resolve(0x2000)(0)
	c.Invalidate(0x2000)
	c.Resolve(0x2000)(0)
	if calls != 2 {
		t.Fatalf("calls=%d, want 2 after invalidate", calls)
	}
}

func TestOverflowFlushesAndRetriesOnce(t *testing.T) {
	be := &fakeBackend{}
	attempts := 0
	c := New(func(pc uint32, ctx uintptr, flags CompileFlags) (backend.RuntimeBlock, error) {
		attempts++
		if attempts == 1 {
			return backend.RuntimeBlock{}, dcerr.BufferOverflow
		}
		return backend.RuntimeBlock{Fn: func(uintptr) uint32 { return pc }}, nil
	}, be)

	if _, err := c.Compile(0x3000, 0, 0); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if be.resets != 1 {
		t.Fatalf("resets=%d, want 1", be.resets)
	}
	if attempts != 2 {
		t.Fatalf("attempts=%d, want 2", attempts)
	}
}

func TestSecondOverflowIsFatal(t *testing.T) {
	be := &fakeBackend{}
	c := New(func(pc uint32, ctx uintptr, flags CompileFlags) (backend.RuntimeBlock, error) {
		return backend.RuntimeBlock{}, dcerr.BufferOverflow
	}, be)

	_, err := c.Compile(0x4000, 0, 0)
	if err == nil {
		t.Fatal("expected error on repeated overflow")
	}
	if !errors.Is(err, dcerr.Bug) {
		t.Fatalf("expected dcerr.Bug, got %v", err)
	}
}

func TestStats(t *testing.T) {
	be := &fakeBackend{}
	c := New(func(pc uint32, ctx uintptr, flags CompileFlags) (backend.RuntimeBlock, error) {
		return backend.RuntimeBlock{Fn: func(uintptr) uint32 { return pc }}, nil
	}, be)

	c.Resolve(0x5000)(0)
	c.Resolve(0x5004)(0)

	s := c.Stats()
	if s.NumBlocks != 2 || s.UsedSlots != 2 {
		t.Fatalf("stats=%+v, want NumBlocks=2 UsedSlots=2", s)
	}
}
