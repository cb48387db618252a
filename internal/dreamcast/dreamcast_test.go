package dreamcast

import (
	"testing"

	"github.com/zotley/dcjit/internal/except"
)

func TestNewInstallsMemoryMap(t *testing.T) {
	dc, err := New()
	if err != nil {
		t.Fatal(err)
	}

	dc.Space.Write32(AddrMainRAM+0x10, 0xcafef00d)
	if got := dc.Space.Read32(AddrMainRAM + 0x10); got != 0xcafef00d {
		t.Fatalf("main RAM round trip failed: %#x", got)
	}

	dc.Holly.RaiseIRQ(1)
	cb := dc.Holly.Callbacks()
	if got := cb.Read32(nil, 0x5000); got != 1 {
		t.Fatalf("holly region not mounted correctly, got %#x", got)
	}
}

func TestExecutesNOPBlockAndAdvancesPC(t *testing.T) {
	dc, err := New()
	if err != nil {
		t.Fatal(err)
	}

	entry := uint32(AddrMainRAM + 0x1000)
	dc.CPU.PC = entry
	dc.Space.Write16(entry, 0x0009) // NOP
	// Following word defaults to zero, which is undecodable and ends the
	// block, matching TranslateBlock's fallthrough-to-next-address path.

	dc.Tick(1) // one nanosecond: 200MHz * 1ns / 1e9 rounds down to 0 cycles

	// Run the block once directly through the block cache to avoid
	// depending on the scheduler's nanosecond-to-cycle rounding at such a
	// short tick.
	fn := dc.cache.Resolve(dc.CPU.PC)
	next := fn(contextPointer(dc.CPU))
	if next != entry+2 {
		t.Fatalf("next PC = %#08x, want %#08x", next, entry+2)
	}
}

func TestInvalidateForcesRecompile(t *testing.T) {
	dc, err := New()
	if err != nil {
		t.Fatal(err)
	}

	entry := uint32(AddrMainRAM + 0x2000)
	dc.Space.Write16(entry, 0x0009)

	fn1 := dc.cache.Resolve(entry)
	fn1(contextPointer(dc.CPU))

	before := dc.Stats().NumBlocks
	dc.InvalidateBlock(entry)
	fn2 := dc.cache.Resolve(entry)
	fn2(contextPointer(dc.CPU))

	if dc.Stats().NumBlocks != before+1 {
		t.Fatalf("expected a recompile after invalidate, stats=%+v", dc.Stats())
	}
}

func TestFastmemFaultTriggersSlowmemRecompile(t *testing.T) {
	dc, err := New()
	if err != nil {
		t.Fatal(err)
	}

	entry := uint32(AddrMainRAM + 0x4000)
	dc.Space.Write16(entry, 0x0009)

	fn := dc.cache.Resolve(entry)
	fn(contextPointer(dc.CPU))
	before := dc.Stats().NumBlocks

	handled := dc.except.Dispatch(&except.Exception{Kind: except.AccessViolation, PC: uint64(entry)})
	if !handled {
		t.Fatal("expected the installed handler to report the fault handled")
	}

	fn2 := dc.cache.Resolve(entry)
	fn2(contextPointer(dc.CPU))
	if dc.Stats().NumBlocks != before+1 {
		t.Fatalf("expected a recompile after the fastmem fault, stats=%+v", dc.Stats())
	}
}

type alwaysHit struct{ addr uint32 }

func (a alwaysHit) Hit(pc uint32) bool { return pc == a.addr }

func TestBreakpointStopsExecution(t *testing.T) {
	dc, err := New()
	if err != nil {
		t.Fatal(err)
	}
	entry := uint32(AddrMainRAM + 0x3000)
	dc.CPU.PC = entry
	dc.Space.Write16(entry, 0x0009)
	dc.Breakpoints = alwaysHit{addr: entry}

	dev := &sh4Device{dc: dc}
	ran := dev.Execute(10)
	if ran != 0 {
		t.Fatalf("ran=%d, want 0 (breakpoint should stop before first cycle)", ran)
	}
	if !dc.stopped {
		t.Fatal("expected dc.stopped to be set")
	}
}
