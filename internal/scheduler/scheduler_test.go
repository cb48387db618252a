package scheduler

import "testing"

type countingDevice struct {
	name string
	hz   uint64
	ran  int64
}

func (d *countingDevice) Name() string   { return d.name }
func (d *countingDevice) HzRate() uint64 { return d.hz }
func (d *countingDevice) Execute(cycles int64) int64 {
	d.ran += cycles
	return cycles
}

func TestTickDeviceFairness(t *testing.T) {
	a := &countingDevice{name: "A", hz: 200_000_000}
	b := &countingDevice{name: "B", hz: 25_000_000}

	s := New(0)
	s.RegisterDevice(a)
	s.RegisterDevice(b)

	s.Tick(1_000_000) // 1ms

	if a.ran != 200_000 {
		t.Fatalf("device A ran %d cycles, want 200000", a.ran)
	}
	if b.ran != 25_000 {
		t.Fatalf("device B ran %d cycles, want 25000", b.ran)
	}
}

func TestTimerFiresWithinTick(t *testing.T) {
	s := New(0)
	fired := false
	s.AddTimer(500_000, 0, func() { fired = true })
	s.Tick(1_000_000)
	if !fired {
		t.Fatal("timer did not fire within the tick window")
	}
	if s.Now() != 1_000_000 {
		t.Fatalf("base=%d, want 1000000", s.Now())
	}
}

func TestPeriodicTimerReinserts(t *testing.T) {
	s := New(0)
	fires := 0
	s.AddTimer(100, 100, func() { fires++ })
	s.Tick(550)
	if fires != 5 {
		t.Fatalf("fires=%d, want 5", fires)
	}
}

func TestCancelTimerPreventsFiring(t *testing.T) {
	s := New(0)
	fired := false
	h := s.AddTimer(500_000, 0, func() { fired = true })
	s.CancelTimer(h)
	s.Tick(1_000_000)
	if fired {
		t.Fatal("cancelled timer fired")
	}
}

func TestCommandRingDropsWhenFull(t *testing.T) {
	r := NewCommandRing(2)
	if !r.Push(Command{Kind: "a"}) {
		t.Fatal("first push should succeed")
	}
	if !r.Push(Command{Kind: "b"}) {
		t.Fatal("second push should succeed")
	}
	if r.Push(Command{Kind: "c"}) {
		t.Fatal("third push should have been dropped")
	}
	drained := r.Drain()
	if len(drained) != 2 {
		t.Fatalf("drained %d commands, want 2", len(drained))
	}
	if !r.Push(Command{Kind: "d"}) {
		t.Fatal("push after drain should succeed")
	}
}
