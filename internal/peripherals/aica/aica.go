// Package aica implements the AICA sound-processor register file
// (0x00700000-0x00710fff) and wave RAM window (0x00800000-0x009fffff),
// plus a real host audio sink. ARM7 DSP/sequencer emulation is out of
// scope (spec.md §1); this package owns the register bookkeeping a guest
// driver pokes and a Reader that feeds golang.org/x/ebitengine/oto/v3 the
// way the teacher's audio_backend_oto.go feeds its SoundChip ring.
package aica

import (
	"encoding/binary"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"

	"github.com/zotley/dcjit/internal/memspace"
)

const (
	regFileSize = 0x11000
	waveRAMSize = 0x200000
)

const (
	offMasterVolume = 0x2800
	offARMReset     = 0x2c00
)

// AICA owns the register file, wave RAM, and the host playback sink.
type AICA struct {
	mu      sync.Mutex
	regs    [regFileSize]byte
	waveRAM [waveRAMSize]byte

	player atomic.Pointer[Player]
}

func New() *AICA { return &AICA{} }

func (a *AICA) Callbacks() memspace.Callbacks {
	return memspace.Callbacks{
		Read8:  a.read8,
		Read32: a.read32,
		Write8: a.write8,
		Write32: a.write32,
	}
}

// WaveCallbacks returns the Callbacks set for the wave RAM region, a
// separate 2MB window from the register file (spec.md §6 memory map).
func (a *AICA) WaveCallbacks() memspace.Callbacks {
	return memspace.Callbacks{
		Read8:  a.waveRead8,
		Write8: a.waveWrite8,
	}
}

func (a *AICA) read8(_ any, offset uint32) uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(offset) >= len(a.regs) {
		log.Printf("aica: read8 out of range offset %#x", offset)
		return 0
	}
	return a.regs[offset]
}

func (a *AICA) write8(_ any, offset uint32, v uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(offset) >= len(a.regs) {
		log.Printf("aica: write8 out of range offset %#x", offset)
		return
	}
	a.regs[offset] = v
}

func (a *AICA) read32(_ any, offset uint32) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(offset)+4 > len(a.regs) {
		log.Printf("aica: read32 out of range offset %#x", offset)
		return 0
	}
	return binary.LittleEndian.Uint32(a.regs[offset:])
}

func (a *AICA) write32(_ any, offset uint32, v uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(offset)+4 > len(a.regs) {
		log.Printf("aica: write32 out of range offset %#x", offset)
		return
	}
	binary.LittleEndian.PutUint32(a.regs[offset:], v)
}

func (a *AICA) waveRead8(_ any, offset uint32) uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(offset) >= len(a.waveRAM) {
		return 0
	}
	return a.waveRAM[offset]
}

func (a *AICA) waveWrite8(_ any, offset uint32, v uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(offset) >= len(a.waveRAM) {
		return
	}
	a.waveRAM[offset] = v
}

// MasterVolume reads the master-volume attenuation field a guest driver
// programs through the register file.
func (a *AICA) MasterVolume() uint32 {
	return a.read32(nil, offMasterVolume) & 0xf
}

// ARMHalted reports whether the guest has the ARM7 held in reset.
func (a *AICA) ARMHalted() bool {
	return a.read32(nil, offARMReset)&1 != 0
}

// Player streams AICA's mixed output to the host sound device via
// oto/v3, mirroring the teacher's OtoPlayer shape: a lock-free atomic
// source pointer for the audio callback's hot path, locked setup/control.
type Player struct {
	ctx    *oto.Context
	player *oto.Player
	src    atomic.Pointer[chan float32]

	mu      sync.Mutex
	started bool
}

// NewPlayer opens a host playback context at sampleRate. The returned
// Player has no source attached until SetSource is called; Read emits
// silence until then, exactly as the teacher's OtoPlayer.Read does with
// a nil chip.
func NewPlayer(sampleRate int) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	p := &Player{ctx: ctx}
	p.player = ctx.NewPlayer(p)
	return p, nil
}

// SetSource attaches the channel AICA's mixer drains samples from.
func (p *Player) SetSource(samples chan float32) {
	p.src.Store(&samples)
}

func (p *Player) Read(buf []byte) (int, error) {
	srcPtr := p.src.Load()
	numSamples := len(buf) / 4
	if srcPtr == nil {
		for i := range buf {
			buf[i] = 0
		}
		return len(buf), nil
	}
	src := *srcPtr
	for i := 0; i < numSamples; i++ {
		var v float32
		select {
		case v = <-src:
		default:
			v = 0
		}
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return len(buf), nil
}

func (p *Player) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		p.player.Play()
		p.started = true
	}
}

func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		p.player.Pause()
		p.started = false
	}
}

func (p *Player) Close() error {
	p.Stop()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.player.Close()
}
