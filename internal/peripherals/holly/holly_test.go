package holly

import "testing"

func TestRaiseIRQAndPending(t *testing.T) {
	h := New()
	if h.Pending() {
		t.Fatal("fresh Holly should report no pending interrupts")
	}
	h.RaiseIRQ(IRQVBlankIn)
	if h.Pending() {
		t.Fatal("unmasked interrupt should not be pending")
	}

	cb := h.Callbacks()
	cb.Write32(nil, offIML2NRM, IRQVBlankIn)
	if !h.Pending() {
		t.Fatal("masked-in interrupt should be pending")
	}
}

func TestISTNRMWriteClears(t *testing.T) {
	h := New()
	h.RaiseIRQ(IRQVBlankIn | IRQGDROM)

	cb := h.Callbacks()
	cb.Write32(nil, offISTNRM, IRQVBlankIn)
	if got := cb.Read32(nil, offISTNRM); got != IRQGDROM {
		t.Fatalf("ISTNRM=%#x after ack, want IRQGDROM only", got)
	}
}
