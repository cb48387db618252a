package gdrom

import "testing"

func TestDefaultStatusIsReady(t *testing.T) {
	g := New()
	cb := g.Callbacks()
	status := cb.Read8(nil, offStatus)
	if status&StatusDRDY == 0 {
		t.Fatal("fresh drive should report DRDY")
	}
	if status&StatusBSY != 0 {
		t.Fatal("fresh drive should not report BSY")
	}
}
