// Package dreamcast wires the address space, scheduler, block cache, SH4
// context, and peripherals into one runnable system (spec.md §3
// "Ownership"): the Dreamcast aggregate is the only thing in this module
// that constructs all of them together and drives tick(delta) end to end.
package dreamcast

import (
	"fmt"
	"unsafe"

	"github.com/zotley/dcjit/internal/backend"
	"github.com/zotley/dcjit/internal/backend/interp"
	"github.com/zotley/dcjit/internal/blockcache"
	"github.com/zotley/dcjit/internal/dcerr"
	"github.com/zotley/dcjit/internal/except"
	"github.com/zotley/dcjit/internal/ir"
	"github.com/zotley/dcjit/internal/ir/passes"
	"github.com/zotley/dcjit/internal/memspace"
	"github.com/zotley/dcjit/internal/peripherals/aica"
	"github.com/zotley/dcjit/internal/peripherals/gdrom"
	"github.com/zotley/dcjit/internal/peripherals/holly"
	"github.com/zotley/dcjit/internal/peripherals/maple"
	"github.com/zotley/dcjit/internal/peripherals/pvr"
	"github.com/zotley/dcjit/internal/scheduler"
	"github.com/zotley/dcjit/internal/sh4"
)

// Dreamcast memory map layout (spec.md §6). Holly/GD-ROM/Maple registers
// all live inside the single 0x005f0000-0x005f7fff window the spec names
// as one block; real hardware packs them at sub-page granularity, but
// memspace's page table routes a Dynamic region's callback at 4KB page
// resolution, so each owner here is carved onto its own whole page(s)
// within that window rather than reproducing the real sub-page offsets.
const (
	AddrHollyRegs = 0x005f0000
	SizeHollyRegs = 0x6000
	AddrGDROMRegs = 0x005f6000
	SizeGDROMRegs = 0x1000
	AddrMapleRegs = 0x005f7000
	SizeMapleRegs = 0x1000
	AddrPVRRegs   = 0x005f8000
	SizePVRRegs   = 0x2000
	AddrAICARegs  = 0x00700000
	SizeAICARegs  = 0x11000
	AddrWaveRAM   = 0x00800000
	SizeWaveRAM   = 0x200000
	AddrPVRVRAM64 = 0x04000000
	AddrPVRVRAM32 = 0x05000000
	SizePVRVRAM   = 0x800000
	AddrMainRAM   = 0x0c000000
	SizeMainRAM   = 0x1000000
)

const sh4HzRate = 200_000_000

// BreakpointHook lets an optional debug console veto a block before it
// runs; nil disables breakpoint checking entirely (zero overhead in the
// common headless case).
type BreakpointHook interface {
	Hit(pc uint32) bool
}

// Dreamcast owns every subsystem needed to execute guest code: the
// address space, the SH4 register file and frontend, the block cache and
// backend, the cooperative scheduler, and the peripheral register files.
type Dreamcast struct {
	Space *memspace.AddressSpace
	CPU   *sh4.Context

	Holly  *holly.Holly
	PVR    *pvr.PVR
	AICA   *aica.AICA
	GDROM  *gdrom.GDROM
	Maple  *maple.Maple

	frontend *sh4.Frontend
	backend  backend.Backend
	cache    *blockcache.Cache
	except   *except.Interceptor
	sched    *scheduler.Scheduler

	Breakpoints BreakpointHook
	stopped     bool
}

// New constructs a complete system: builds the memory map, mounts every
// peripheral's dynamic region, and wires the frontend -> optimizer ->
// backend pipeline into the block cache's CompileFunc.
func New() (*Dreamcast, error) {
	dc := &Dreamcast{
		Space: memspace.New(),
		CPU:   &sh4.Context{},
		Holly: holly.New(),
		PVR:   pvr.New(),
		AICA:  aica.New(),
		GDROM: gdrom.New(),
		Maple: maple.New(),
	}

	if err := dc.installMemoryMap(); err != nil {
		return nil, err
	}

	dc.frontend = sh4.NewFrontend(func(addr uint32) uint16 {
		return dc.Space.Read16(addr)
	})

	dc.backend = interp.New(sh4.ContextLoad, sh4.ContextStore, contextGuestLoad(dc), contextGuestStore(dc))

	dc.except = except.New()
	dc.sched = scheduler.New(0)
	dc.cache = blockcache.New(dc.compileBlock, dc.backend)
	dc.sched.RegisterDevice(&sh4Device{dc: dc})

	if err := dc.installExceptionHandling(); err != nil {
		return nil, fmt.Errorf("dreamcast: exception handling: %w", err)
	}

	return dc, nil
}

func (dc *Dreamcast) installMemoryMap() error {
	mm := &memspace.MemoryMap{}

	mainRAM, err := dc.Space.CreateRegionStatic(AddrMainRAM, SizeMainRAM)
	if err != nil {
		return fmt.Errorf("dreamcast: main RAM: %w", err)
	}
	mm.Mount(mainRAM, AddrMainRAM)
	mm.MirrorRange(AddrMainRAM, AddrMainRAM+SizeMainRAM, SizeMainRAM)
	mm.MirrorRange(AddrMainRAM, AddrMainRAM+2*SizeMainRAM, SizeMainRAM)
	mm.MirrorRange(AddrMainRAM, AddrMainRAM+3*SizeMainRAM, SizeMainRAM)

	vram, err := dc.Space.CreateRegionStatic(AddrPVRVRAM64, SizePVRVRAM)
	if err != nil {
		return fmt.Errorf("dreamcast: PVR VRAM: %w", err)
	}
	mm.Mount(vram, AddrPVRVRAM64)
	mm.MirrorRange(AddrPVRVRAM64, AddrPVRVRAM32, SizePVRVRAM)

	waveRAM, err := dc.Space.CreateRegionDynamic(AddrWaveRAM, SizeWaveRAM, dc.AICA.WaveCallbacks())
	if err != nil {
		return fmt.Errorf("dreamcast: wave RAM: %w", err)
	}
	mm.Mount(waveRAM, AddrWaveRAM)

	type mount struct {
		phys uint32
		size uint32
		cb   memspace.Callbacks
	}
	mounts := []mount{
		{AddrHollyRegs, SizeHollyRegs, dc.Holly.Callbacks()},
		{AddrPVRRegs, SizePVRRegs, dc.PVR.Callbacks()},
		{AddrAICARegs, SizeAICARegs, dc.AICA.Callbacks()},
		{AddrGDROMRegs, SizeGDROMRegs, dc.GDROM.Callbacks()},
		{AddrMapleRegs, SizeMapleRegs, dc.Maple.Callbacks()},
	}
	for _, mnt := range mounts {
		r, err := dc.Space.CreateRegionDynamic(mnt.phys, mnt.size, mnt.cb)
		if err != nil {
			return fmt.Errorf("dreamcast: mount %#08x: %w", mnt.phys, err)
		}
		mm.Mount(r, mnt.phys)
	}

	return dc.Space.InstallMap(mm)
}

func contextGuestLoad(dc *Dreamcast) func(ctx uintptr, addr uint32, typ ir.Type) uint64 {
	return func(_ uintptr, addr uint32, typ ir.Type) uint64 {
		switch typ {
		case ir.I8:
			return uint64(dc.Space.Read8(addr))
		case ir.I16:
			return uint64(dc.Space.Read16(addr))
		case ir.I32, ir.F32:
			return uint64(dc.Space.Read32(addr))
		default:
			return dc.Space.Read64(addr)
		}
	}
}

func contextGuestStore(dc *Dreamcast) func(ctx uintptr, addr uint32, typ ir.Type, v uint64) {
	return func(_ uintptr, addr uint32, typ ir.Type, v uint64) {
		switch typ {
		case ir.I8:
			dc.Space.Write8(addr, uint8(v))
		case ir.I16:
			dc.Space.Write16(addr, uint16(v))
		case ir.I32, ir.F32:
			dc.Space.Write32(addr, uint32(v))
		default:
			dc.Space.Write64(addr, v)
		}
	}
}

// compileBlock is the blockcache.CompileFunc: translate -> optimize ->
// assemble, the frontend/optimizer/backend pipeline spec.md §4.8's
// compile(pc,ctx,flags) names. ForceSlowmem is recorded in the builder's
// metadata, which neither backend reads; RuntimeBlock.Flags then reflects it
// for the next Resolve to see (spec.md §8 scenario 5).
func (dc *Dreamcast) compileBlock(pc uint32, ctx uintptr, flags blockcache.CompileFlags) (backend.RuntimeBlock, error) {
	maxInstrs := 0
	if flags&blockcache.SH4SingleInstr != 0 {
		maxInstrs = 1
	}
	b := dc.frontend.TranslateBlock(pc, dc.CPU, maxInstrs)
	if flags&blockcache.ForceSlowmem != 0 {
		b.SetMeta("force_slowmem", true)
	}
	if err := passes.Run(b, dc.backend.Registers()); err != nil {
		return backend.RuntimeBlock{}, fmt.Errorf("%w: %v", dcerr.Bug, err)
	}
	blk, err := dc.backend.Assemble(b)
	if err != nil {
		return blk, err
	}
	if flags&blockcache.ForceSlowmem != 0 {
		blk.Flags |= backend.BFSlowmem
	}
	return blk, nil
}

// installExceptionHandling wires the fastmem-fault path (spec.md §8
// scenario 5): a fault the backend itself cannot service is treated as a
// fastmem access violation on the block containing ex.PC, and the cache
// is told to recompile that block without fastmem lowering next time.
func (dc *Dreamcast) installExceptionHandling() error {
	if err := dc.except.Install(); err != nil {
		return err
	}
	dc.except.AddHandler(func(ex *except.Exception) bool {
		if dc.backend.HandleException(ex) {
			return true
		}
		dc.cache.RequestSlowmemRecompile(uint32(ex.PC))
		return true
	})
	return nil
}

// InvalidateBlock marks pc for recompilation (spec.md §4.8 invalidate(pc)),
// used by the debug console after a guest-memory write and by any future
// self-modifying-code detection.
func (dc *Dreamcast) InvalidateBlock(pc uint32) { dc.cache.Invalidate(pc) }

// InvalidateAll flushes the entire block cache.
func (dc *Dreamcast) InvalidateAll() { dc.cache.InvalidateAll() }

// Stats reports block-cache occupancy.
func (dc *Dreamcast) Stats() blockcache.Stats { return dc.cache.Stats() }

// Tick advances the whole system by delta nanoseconds.
func (dc *Dreamcast) Tick(delta uint64) { dc.sched.Tick(delta) }

// debugconsole.Target implementation, so the interactive monitor can be
// pointed at a live Dreamcast without depending on this package.

func (dc *Dreamcast) ReadRegister(n int) uint32     { return dc.CPU.R[n] }
func (dc *Dreamcast) WriteRegister(n int, v uint32) { dc.CPU.R[n] = v }
func (dc *Dreamcast) ReadMemory32(addr uint32) uint32     { return dc.Space.Read32(addr) }
func (dc *Dreamcast) WriteMemory32(addr uint32, v uint32) { dc.Space.Write32(addr, v) }
func (dc *Dreamcast) PC() uint32                          { return dc.CPU.PC }

// sh4Device implements scheduler.Device, resolving and running compiled
// blocks for cycles_to_run cycles the scheduler hands it each slice
// (spec.md §4.8's "pc = resolve(pc,ctx)(ctx)" loop).
type sh4Device struct {
	dc *Dreamcast
}

// contextPointer gives a translated block's load_context/store_context
// IR the raw address of the live SH4 register file, matching
// interp.New's contextLoad/contextStore (ctx uintptr, offset int32, ...)
// contract: the offset is added to this base.
func contextPointer(cpu *sh4.Context) uintptr {
	return uintptr(unsafe.Pointer(cpu))
}

func (d *sh4Device) Name() string   { return "sh4" }
func (d *sh4Device) HzRate() uint64 { return sh4HzRate }

func (d *sh4Device) Execute(cycles int64) int64 {
	ctx := contextPointer(d.dc.CPU)
	var ran int64
	for ran < cycles {
		if d.dc.Breakpoints != nil && d.dc.Breakpoints.Hit(d.dc.CPU.PC) {
			d.dc.stopped = true
			break
		}
		fn := d.dc.cache.Resolve(d.dc.CPU.PC)
		nextPC := fn(ctx)
		d.dc.CPU.PC = nextPC
		d.dc.CPU.Ran++
		ran++
	}
	return ran
}
