// Package gdrom implements the GD-ROM drive's status/command register
// file. Disc image parsing, ATA/PIO command sequencing, and CD-DA
// playback are out of scope (spec.md §1); a guest BIOS/driver only needs
// a register file that reports a consistent idle drive status to avoid
// spinning forever on a status poll.
package gdrom

import (
	"encoding/binary"
	"log"
	"sync"

	"github.com/zotley/dcjit/internal/memspace"
)

const regFileSize = 0x100

// Status register bits a guest polls before issuing a command.
const (
	StatusBSY uint8 = 1 << iota
	StatusDRDY
	_
	_
	_
	_
	_
	_
)

const offStatus = 0x8c

// TODO: wire disc image loading once an image format is chosen; until
// then the drive reports permanently ready/no-disc.
type GDROM struct {
	mu   sync.Mutex
	regs [regFileSize]byte
}

func New() *GDROM {
	g := &GDROM{}
	g.regs[offStatus] = StatusDRDY
	return g
}

func (g *GDROM) Callbacks() memspace.Callbacks {
	return memspace.Callbacks{
		Read8:  g.read8,
		Read32: g.read32,
		Write8: g.write8,
	}
}

func (g *GDROM) read8(_ any, offset uint32) uint8 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if int(offset) >= len(g.regs) {
		log.Printf("gdrom: read8 out of range offset %#x", offset)
		return 0
	}
	return g.regs[offset]
}

func (g *GDROM) write8(_ any, offset uint32, v uint8) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if int(offset) >= len(g.regs) {
		log.Printf("gdrom: write8 out of range offset %#x", offset)
		return
	}
	g.regs[offset] = v
}

func (g *GDROM) read32(_ any, offset uint32) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if int(offset)+4 > len(g.regs) {
		return 0
	}
	return binary.LittleEndian.Uint32(g.regs[offset:])
}
