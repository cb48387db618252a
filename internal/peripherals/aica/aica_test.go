package aica

import "testing"

func TestRegisterAndWaveRAMRoundTrip(t *testing.T) {
	a := New()
	regs := a.Callbacks()
	wave := a.WaveCallbacks()

	regs.Write32(nil, offMasterVolume, 0xf)
	if got := a.MasterVolume(); got != 0xf {
		t.Fatalf("MasterVolume()=%d, want 15", got)
	}

	regs.Write32(nil, offARMReset, 1)
	if !a.ARMHalted() {
		t.Fatal("ARMHalted() = false, want true")
	}

	wave.Write8(nil, 0x100, 0x42)
	if got := wave.Read8(nil, 0x100); got != 0x42 {
		t.Fatalf("wave RAM read=%#x, want 0x42", got)
	}
}

func TestPlayerReadSilenceWithoutSource(t *testing.T) {
	p := &Player{}
	buf := make([]byte, 16)
	buf[0] = 0xff
	n, err := p.Read(buf)
	if err != nil || n != len(buf) {
		t.Fatalf("Read() = %d, %v", n, err)
	}
	for _, b := range buf {
		if b != 0 {
			t.Fatal("expected silence without a source")
		}
	}
}

func TestPlayerReadsFromSource(t *testing.T) {
	p := &Player{}
	src := make(chan float32, 1)
	src <- 1.0
	p.SetSource(src)

	buf := make([]byte, 4)
	if _, err := p.Read(buf); err != nil {
		t.Fatal(err)
	}
	if buf[3] != 0x3f || buf[2] != 0x80 {
		t.Fatalf("did not encode 1.0 as little-endian float32: %v", buf)
	}
}
