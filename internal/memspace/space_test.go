package memspace

import "testing"

// TestIdentityLoadStore mirrors spec.md §8 scenario 1: a 4 KB static region
// mounted at 0x0c000000 and mirrored at 0x8c000000; a write through the
// mirror must be visible through the original mount.
func TestIdentityLoadStore(t *testing.T) {
	as := New()
	region, err := as.CreateRegionStatic(0x0c000000, 4096)
	if err != nil {
		t.Fatalf("CreateRegionStatic: %v", err)
	}

	m := &MemoryMap{}
	m.Mount(region, 0x0c000000)
	m.MirrorRange(0x0c000000, 0x8c000000, 4096)

	if err := as.InstallMap(m); err != nil {
		t.Fatalf("InstallMap: %v", err)
	}
	defer as.teardown()

	as.Write32(0x8c000010, 0xdeadbeef)
	if got := as.Read32(0x0c000010); got != 0xdeadbeef {
		t.Fatalf("expected mirrored write visible at original mount, got %#x", got)
	}
}

func TestDynamicRegionCallback(t *testing.T) {
	as := New()
	var lastOffset uint32
	var lastValue uint32
	region, err := as.CreateRegionDynamic(0x00700000, 4096, Callbacks{
		Read32: func(_ any, offset uint32) uint32 { return 0x1234 + offset },
		Write32: func(_ any, offset uint32, v uint32) {
			lastOffset, lastValue = offset, v
		},
	})
	if err != nil {
		t.Fatalf("CreateRegionDynamic: %v", err)
	}

	m := &MemoryMap{}
	m.Mount(region, 0x00700000)
	if err := as.InstallMap(m); err != nil {
		t.Fatalf("InstallMap: %v", err)
	}
	defer as.teardown()

	if got := as.Read32(0x00700004); got != 0x1238 {
		t.Fatalf("expected dynamic read callback result, got %#x", got)
	}
	as.Write32(0x00700008, 42)
	if lastOffset != 8 || lastValue != 42 {
		t.Fatalf("expected write callback to see offset=8 value=42, got offset=%d value=%d", lastOffset, lastValue)
	}
}
