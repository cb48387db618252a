package x64

import "testing"

func TestRegistersPartitionByClass(t *testing.T) {
	regs := Registers()
	if len(regs) != 12 {
		t.Fatalf("expected 12 physical registers, got %d", len(regs))
	}
	for i, r := range regs[:6] {
		if r.Mask.IsFloat() {
			t.Fatalf("register %d (%s) expected int class", i, r.Name)
		}
	}
	for i, r := range regs[6:] {
		if !r.Mask.IsFloat() {
			t.Fatalf("register %d (%s) expected float class", i, r.Name)
		}
	}
}
