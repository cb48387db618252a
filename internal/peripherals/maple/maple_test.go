package maple

import "testing"

func TestDMAStartSelfClears(t *testing.T) {
	m := New()
	cb := m.Callbacks()
	cb.Write32(nil, offDMAStart, 1)
	if got := cb.Read32(nil, offDMAStart); got != 0 {
		t.Fatalf("DMAStart=%#x after write, want 0 (self-cleared)", got)
	}
}

func TestOtherRegistersPersist(t *testing.T) {
	m := New()
	cb := m.Callbacks()
	cb.Write32(nil, offDMAEnable, 1)
	if got := cb.Read32(nil, offDMAEnable); got != 1 {
		t.Fatalf("DMAEnable=%#x, want 1", got)
	}
}
