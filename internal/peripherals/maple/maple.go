// Package maple implements the Maple bus controller's DMA command/status
// register file. Peripheral enumeration and controller-device protocol
// emulation are out of scope (spec.md §1); this register file lets a
// guest driver issue a DMA start and observe completion without hanging.
package maple

import (
	"encoding/binary"
	"log"
	"sync"

	"github.com/zotley/dcjit/internal/memspace"
)

const regFileSize = 0x100

const (
	offDMAEnable = 0x14
	offDMAStart  = 0x18
)

// TODO: no controller-device response is generated yet; DMA start
// immediately self-clears so a guest poll loop does not spin forever.
type Maple struct {
	mu   sync.Mutex
	regs [regFileSize]byte
}

func New() *Maple { return &Maple{} }

func (m *Maple) Callbacks() memspace.Callbacks {
	return memspace.Callbacks{
		Read32:  m.read32,
		Write32: m.write32,
	}
}

func (m *Maple) read32(_ any, offset uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(offset)+4 > len(m.regs) {
		log.Printf("maple: read32 out of range offset %#x", offset)
		return 0
	}
	return binary.LittleEndian.Uint32(m.regs[offset:])
}

func (m *Maple) write32(_ any, offset uint32, v uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(offset)+4 > len(m.regs) {
		log.Printf("maple: write32 out of range offset %#x", offset)
		return
	}
	if offset == offDMAStart {
		// Self-clear: no real device responds yet, so don't leave the
		// start bit set for a driver to poll forever.
		binary.LittleEndian.PutUint32(m.regs[offset:], 0)
		return
	}
	binary.LittleEndian.PutUint32(m.regs[offset:], v)
}
