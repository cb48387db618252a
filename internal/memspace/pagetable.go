package memspace

// PageSize is the unit of address-space mapping granularity. The host
// allocation granularity (mmap's page size) would ordinarily drive this;
// it is pinned to 4 KiB, the SH4/Dreamcast's own page granularity, which
// is also the host page size on every platform this runtime targets.
const PageSize = 4096

// AddressSpaceSize is the full 32-bit guest virtual address range.
const AddressSpaceSize = uint64(1) << 32

// NumPages is the number of page-table slots spanning AddressSpaceSize.
const NumPages = AddressSpaceSize / PageSize

type pageKind uint8

const (
	pageUnmapped pageKind = iota
	pageStatic
	pageDynamic
)

// pageEntry is one page-table slot. The source packs this into a single
// machine word (a tagged pointer or region+offset pair); Go's garbage
// collector does not tolerate integers masquerading as pointers, so this
// is a small struct instead — a deliberate divergence from spec.md §3,
// recorded in DESIGN.md.
type pageEntry struct {
	kind      pageKind
	region    int32  // index into AddressSpace.regions, for pageDynamic/pageStatic
	physBytes uint32 // byte offset into the physical shared buffer, for pageStatic
}

// pageTable is NUM_PAGES slots, one per 4 KiB of guest virtual address
// space (spec.md §3).
type pageTable struct {
	entries []pageEntry
}

func newPageTable() *pageTable {
	return &pageTable{entries: make([]pageEntry, NumPages)}
}

func (pt *pageTable) at(virtAddr uint32) *pageEntry {
	return &pt.entries[uint64(virtAddr)/PageSize]
}

func (pt *pageTable) reset() {
	for i := range pt.entries {
		pt.entries[i] = pageEntry{}
	}
}
