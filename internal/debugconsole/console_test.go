package debugconsole

import (
	"strings"
	"testing"
)

type fakeTarget struct {
	regs        [16]uint32
	mem         map[uint32]uint32
	invalidated []uint32
	pc          uint32
}

func newFakeTarget() *fakeTarget { return &fakeTarget{mem: map[uint32]uint32{}} }

func (f *fakeTarget) ReadRegister(n int) uint32      { return f.regs[n] }
func (f *fakeTarget) WriteRegister(n int, v uint32)  { f.regs[n] = v }
func (f *fakeTarget) ReadMemory32(addr uint32) uint32 { return f.mem[addr] }
func (f *fakeTarget) WriteMemory32(addr uint32, v uint32) {
	f.mem[addr] = v
}
func (f *fakeTarget) InvalidateBlock(pc uint32) { f.invalidated = append(f.invalidated, pc) }
func (f *fakeTarget) PC() uint32                { return f.pc }

func newTestConsole(target Target) (*Console, *strings.Builder) {
	var sb strings.Builder
	c := New(target, func(s string) { sb.WriteString(s) })
	return c, &sb
}

func TestRegReadWrite(t *testing.T) {
	target := newFakeTarget()
	c, out := newTestConsole(target)

	c.Dispatch("reg 3 0x2a")
	if target.regs[3] != 0x2a {
		t.Fatalf("r3=%#x, want 0x2a", target.regs[3])
	}

	out.Reset()
	c.Dispatch("reg 3")
	if got := out.String(); got != "r3=0x0000002a\r\n" {
		t.Fatalf("output=%q", got)
	}
}

func TestMemWriteInvalidatesBlock(t *testing.T) {
	target := newFakeTarget()
	c, _ := newTestConsole(target)

	c.Dispatch("mem 0x8c010000 0xdeadbeef")
	if target.mem[0x8c010000] != 0xdeadbeef {
		t.Fatalf("mem not written")
	}
	if len(target.invalidated) != 1 || target.invalidated[0] != 0x8c010000 {
		t.Fatalf("InvalidateBlock not called correctly: %v", target.invalidated)
	}
}

func TestBreakpointUnconditional(t *testing.T) {
	b := NewBreakpoints()
	if err := b.Set(0x8c001000, ""); err != nil {
		t.Fatal(err)
	}
	if !b.Hit(0x8c001000) {
		t.Fatal("expected unconditional breakpoint to hit")
	}
	if b.Hit(0x8c001004) {
		t.Fatal("unrelated address should not hit")
	}
}

func TestBreakpointLuaCondition(t *testing.T) {
	b := NewBreakpoints()
	b.Bind(func(n int) uint32 {
		if n == 4 {
			return 7
		}
		return 0
	}, nil)

	if err := b.Set(0x8c001000, "reg(4) == 7"); err != nil {
		t.Fatal(err)
	}
	if !b.Hit(0x8c001000) {
		t.Fatal("expected condition reg(4)==7 to be true")
	}

	b.Clear(0x8c001000)
	if b.Hit(0x8c001000) {
		t.Fatal("cleared breakpoint should not hit")
	}
}

func TestBreakpointRejectsInvalidLua(t *testing.T) {
	b := NewBreakpoints()
	if err := b.Set(0x8c001000, "reg(4) =="); err == nil {
		t.Fatal("expected syntax error to be rejected at Set time")
	}
}
