package x64

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/zotley/dcjit/internal/dcerr"
)

// codeBufSize bounds one backend's emitted-code arena; a BufferOverflow
// triggers Reset and a retry from the block cache (spec.md §4.8).
const codeBufSize = 16 << 20

// codeBuf is a single RWX-mapped arena generated machine code is appended
// to. Real production JITs split this into a writable shadow mapping and
// an executable alias to satisfy W^X; a single RWX mapping is this
// backend's deliberate simplification, recorded in DESIGN.md.
type codeBuf struct {
	mem []byte
	pos int
}

func newCodeBuf() (*codeBuf, error) {
	mem, err := unix.Mmap(-1, 0, codeBufSize, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("%w: x64 code buffer: %v", dcerr.AllocationFailure, err)
	}
	return &codeBuf{mem: mem}, nil
}

// emit appends b to the buffer and returns the starting offset of the
// appended bytes.
func (c *codeBuf) emit(b ...byte) int {
	off := c.pos
	copy(c.mem[c.pos:], b)
	c.pos += len(b)
	return off
}

func (c *codeBuf) entryAddr(off int) uintptr {
	return uintptr(unsafe.Pointer(&c.mem[off]))
}

func (c *codeBuf) remaining() int { return len(c.mem) - c.pos }

func (c *codeBuf) reset() { c.pos = 0 }

func (c *codeBuf) release() error {
	if c.mem == nil {
		return nil
	}
	err := unix.Munmap(c.mem)
	c.mem = nil
	return err
}
