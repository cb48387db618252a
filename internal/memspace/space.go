package memspace

import (
	"fmt"
	"log"
	"sort"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/zotley/dcjit/internal/dcerr"
)

// mmapFixed maps fd (at the given offset) onto addr, which must already lie
// within a PROT_NONE reservation carved out by an anonymous mmap. Used to
// punch static-region pages into the two guest-memory aliases at fixed
// offsets (unix.Mmap has no fixed-address form, so this goes straight to
// the syscall the way mmap(2)'s MAP_FIXED was always meant to be used).
func mmapFixed(addr uintptr, length int, prot, flags int, fd int, offset int64) error {
	_, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, uintptr(length),
		uintptr(prot), uintptr(flags|unix.MAP_FIXED), uintptr(fd), uintptr(offset))
	if errno != 0 {
		return errno
	}
	return nil
}

func ptrAt(base []byte, virt uint32) uintptr {
	if len(base) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&base[0])) + uintptr(virt)
}

// AddressSpace is the guest's 32-bit shadow-paged virtual memory: a page
// table flattened from a MemoryMap, static regions backed by a single host
// shared-memory object mapped at two virtual aliases, and dynamic regions
// dispatched to MMIO callbacks (spec.md §3/§4.1).
type AddressSpace struct {
	regions []*Region
	table   *pageTable

	physFD      int
	physSize    uint32
	phys        []byte // mmap of physFD, MAP_SHARED
	virtualBase []byte // read/write alias: every static page present
	protectedBase []byte // fastmem alias: dynamic pages left PROT_NONE
}

// New creates an address space with no regions and no installed mapping.
func New() *AddressSpace {
	return &AddressSpace{table: newPageTable(), physFD: -1}
}

// CreateRegionStatic reserves a physical window later backed by the shared
// memory object; no allocation happens until InstallMap runs.
func (as *AddressSpace) CreateRegionStatic(physAddr, size uint32) (*Region, error) {
	return as.createRegion(physAddr, size, Static, Callbacks{})
}

// CreateRegionDynamic reserves a window whose accesses invoke cb.
func (as *AddressSpace) CreateRegionDynamic(physAddr, size uint32, cb Callbacks) (*Region, error) {
	return as.createRegion(physAddr, size, Dynamic, cb)
}

func (as *AddressSpace) createRegion(physAddr, size uint32, kind Kind, cb Callbacks) (*Region, error) {
	if err := validatePageAligned(physAddr, size); err != nil {
		return nil, fmt.Errorf("%w: %v", dcerr.MapMisalignment, err)
	}
	for _, r := range as.regions {
		if r.Kind != Static || kind != Static {
			continue
		}
		if physAddr < r.PhysAddr+r.Size && r.PhysAddr < physAddr+size {
			return nil, fmt.Errorf("%w: %s overlaps new region at %#08x", dcerr.RegionOverlap, r, physAddr)
		}
	}
	region := &Region{Handle: len(as.regions), PhysAddr: physAddr, Size: size, Kind: kind, Cb: cb}
	as.regions = append(as.regions, region)
	return region, nil
}

// InstallMap materializes the page table from the declarative map,
// allocates the physical shared-memory object sized to the union of static
// regions, and maps two virtual aliases: VirtualBase (read/write, every
// static page present) and ProtectedBase (dynamic pages left unmapped so
// that generated fastmem loads/stores fault there). Idempotent: calling it
// again first tears down any existing mapping.
func (as *AddressSpace) InstallMap(m *MemoryMap) error {
	as.teardown()
	as.table.reset()

	staticRegions := coalesceStatic(as.regions)
	as.physSize = totalSize(staticRegions)

	fd, err := unix.MemfdCreate("dcjit-phys", 0)
	if err != nil {
		return fmt.Errorf("%w: memfd_create: %v", dcerr.AllocationFailure, err)
	}
	as.physFD = fd
	if as.physSize > 0 {
		if err := unix.Ftruncate(fd, int64(as.physSize)); err != nil {
			return fmt.Errorf("%w: ftruncate: %v", dcerr.AllocationFailure, err)
		}
		phys, err := unix.Mmap(fd, 0, int(as.physSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			return fmt.Errorf("%w: mmap phys: %v", dcerr.AllocationFailure, err)
		}
		as.phys = phys
	}

	vbase, err := unix.Mmap(-1, 0, int(AddressSpaceSize), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return fmt.Errorf("%w: reserve virtual_base: %v", dcerr.AllocationFailure, err)
	}
	as.virtualBase = vbase

	pbase, err := unix.Mmap(-1, 0, int(AddressSpaceSize), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return fmt.Errorf("%w: reserve protected_base: %v", dcerr.AllocationFailure, err)
	}
	as.protectedBase = pbase

	physOffset := map[uint32]uint32{} // region PhysAddr -> byte offset in fd
	off := uint32(0)
	for _, r := range staticRegions {
		physOffset[r.PhysAddr] = off
		off += r.Size
	}

	for _, entry := range m.Entries {
		switch entry.Kind {
		case Mount:
			if err := as.applyMount(entry, physOffset); err != nil {
				return err
			}
		case Mirror:
			if err := as.applyMirror(entry); err != nil {
				return err
			}
		}
	}
	return nil
}

func (as *AddressSpace) applyMount(entry MapEntry, physOffset map[uint32]uint32) error {
	r := entry.Region
	if err := validatePageAligned(entry.VirtAddr, r.Size); err != nil {
		return fmt.Errorf("%w: %v", dcerr.MapMisalignment, err)
	}
	pages := r.Size / PageSize
	switch r.Kind {
	case Static:
		base, ok := physOffset[r.PhysAddr]
		if !ok {
			return fmt.Errorf("%w: static region %s missing from physical layout", dcerr.Bug, r)
		}
		for p := uint32(0); p < pages; p++ {
			virt := entry.VirtAddr + p*PageSize
			fdOff := int64(base + p*PageSize)
			if err := mmapFixed(ptrAt(as.virtualBase, virt), PageSize,
				unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED, as.physFD, fdOff); err != nil {
				return fmt.Errorf("%w: map virtual_base page: %v", dcerr.AllocationFailure, err)
			}
			if err := mmapFixed(ptrAt(as.protectedBase, virt), PageSize,
				unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED, as.physFD, fdOff); err != nil {
				return fmt.Errorf("%w: map protected_base page: %v", dcerr.AllocationFailure, err)
			}
			e := as.table.at(virt)
			e.kind = pageStatic
			e.region = int32(r.Handle)
			e.physBytes = base + p*PageSize
		}
	case Dynamic:
		for p := uint32(0); p < pages; p++ {
			virt := entry.VirtAddr + p*PageSize
			e := as.table.at(virt)
			e.kind = pageDynamic
			e.region = int32(r.Handle)
			e.physBytes = p * PageSize
		}
	}
	return nil
}

func (as *AddressSpace) applyMirror(entry MapEntry) error {
	if err := validatePageAligned(entry.SrcAddr, entry.Size); err != nil {
		return fmt.Errorf("%w: %v", dcerr.MapMisalignment, err)
	}
	if err := validatePageAligned(entry.VirtAddr, entry.Size); err != nil {
		return fmt.Errorf("%w: %v", dcerr.MapMisalignment, err)
	}
	pages := entry.Size / PageSize
	for p := uint32(0); p < pages; p++ {
		src := *as.table.at(entry.SrcAddr + p*PageSize)
		dstVirt := entry.VirtAddr + p*PageSize
		*as.table.at(dstVirt) = src
		if src.kind == pageStatic {
			fdOff := int64(src.physBytes)
			if err := mmapFixed(ptrAt(as.virtualBase, dstVirt), PageSize,
				unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED, as.physFD, fdOff); err != nil {
				return fmt.Errorf("%w: mirror virtual_base page: %v", dcerr.AllocationFailure, err)
			}
			if err := mmapFixed(ptrAt(as.protectedBase, dstVirt), PageSize,
				unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED, as.physFD, fdOff); err != nil {
				return fmt.Errorf("%w: mirror protected_base page: %v", dcerr.AllocationFailure, err)
			}
		}
	}
	return nil
}

func (as *AddressSpace) teardown() {
	if as.virtualBase != nil {
		unix.Munmap(as.virtualBase)
		as.virtualBase = nil
	}
	if as.protectedBase != nil {
		unix.Munmap(as.protectedBase)
		as.protectedBase = nil
	}
	if as.phys != nil {
		unix.Munmap(as.phys)
		as.phys = nil
	}
	if as.physFD >= 0 {
		unix.Close(as.physFD)
		as.physFD = -1
	}
}

// Lookup reports the page-table classification of virtAddr.
func (as *AddressSpace) Lookup(virtAddr uint32) (kind Kind, region *Region, offset uint32) {
	e := as.table.at(virtAddr)
	switch e.kind {
	case pageStatic:
		return Static, as.regions[e.region], e.physBytes + (virtAddr & (PageSize - 1))
	case pageDynamic:
		r := as.regions[e.region]
		pageBase := virtAddr &^ (PageSize - 1)
		return Dynamic, r, (virtAddr - pageBase) + e.physBytes
	default:
		return Dynamic, nil, 0
	}
}

// VirtualBase returns the read/write host alias base; the fastmem backend
// uses ProtectedBase instead so that dynamic-region touches fault.
func (as *AddressSpace) VirtualBase() []byte { return as.virtualBase }

// ProtectedBase returns the fault-driving host alias: static pages present,
// dynamic pages unmapped.
func (as *AddressSpace) ProtectedBase() []byte { return as.protectedBase }

func coalesceStatic(regions []*Region) []*Region {
	var out []*Region
	for _, r := range regions {
		if r.Kind == Static {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PhysAddr < out[j].PhysAddr })
	return out
}

func totalSize(regions []*Region) uint32 {
	var total uint32
	for _, r := range regions {
		total += r.Size
	}
	return total
}

// logUnmapped reports a guest access to an unmapped page; the Dreamcast
// tolerates these silently on real hardware for truly unmapped ranges.
func logUnmapped(virt uint32) {
	log.Printf("memspace: access to unmapped page %#08x", virt)
}
