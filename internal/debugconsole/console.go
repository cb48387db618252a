// Package debugconsole implements the interactive SH4 monitor: a raw-mode
// stdin reader (golang.org/x/term, directly generalized from the
// teacher's terminal_host.go) feeding a line-oriented command parser, plus
// a scriptable breakpoint-condition evaluator (github.com/yuin/gopher-lua).
// Disassembly-level single-step tracing UI is out of scope (spec.md §1);
// this package owns register/memory inspection and conditional breakpoints
// only.
package debugconsole

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

// Target is the minimum surface the console needs from a running system:
// register/memory inspection, and invalidating compiled blocks after a
// guest-memory write from the monitor (spec.md §4.8's invalidate(pc)).
type Target interface {
	ReadRegister(n int) uint32
	WriteRegister(n int, v uint32)
	ReadMemory32(addr uint32) uint32
	WriteMemory32(addr uint32, v uint32)
	InvalidateBlock(pc uint32)
	PC() uint32
}

// Console reads raw stdin and dispatches monitor commands against a
// Target, exactly the way terminal_host.go reads stdin into a
// TerminalMMIO: raw mode, non-blocking reads, CR->LF/DEL->BS translation.
type Console struct {
	target  Target
	breaks  *Breakpoints
	stopCh  chan struct{}
	done    chan struct{}
	stopped sync.Once

	fd           int
	nonblockSet  bool
	oldTermState *term.State

	lineBuf []byte
	out     func(string)
}

// New creates a console over target. out receives formatted monitor
// output (defaults to fmt.Print to stdout if nil).
func New(target Target, out func(string)) *Console {
	if out == nil {
		out = func(s string) { fmt.Print(s) }
	}
	return &Console{
		target: target,
		breaks: NewBreakpoints(),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		out:    out,
	}
}

// Breakpoints exposes the console's breakpoint table for the scheduler's
// SH4 device to consult before executing a block.
func (c *Console) Breakpoints() *Breakpoints { return c.breaks }

// Start puts stdin into raw mode and begins reading commands in a
// goroutine. Call Stop to restore stdin.
func (c *Console) Start() {
	c.fd = int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(c.fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "debugconsole: failed to set raw mode: %v\n", err)
		close(c.done)
		return
	}
	c.oldTermState = oldState

	if err := syscall.SetNonblock(c.fd, true); err != nil {
		fmt.Fprintf(os.Stderr, "debugconsole: failed to set nonblocking stdin: %v\n", err)
		_ = term.Restore(c.fd, c.oldTermState)
		c.oldTermState = nil
		close(c.done)
		return
	}
	c.nonblockSet = true

	go c.readLoop()
}

func (c *Console) readLoop() {
	defer close(c.done)
	buf := make([]byte, 1)

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		n, err := syscall.Read(c.fd, buf)
		if n > 0 {
			b := buf[0]
			if b == '\r' {
				b = '\n'
			}
			if b == 0x7F {
				b = 0x08
			}
			c.feed(b)
		}
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if err != nil {
			return
		}
		if n == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func (c *Console) feed(b byte) {
	switch b {
	case '\n':
		line := string(c.lineBuf)
		c.lineBuf = c.lineBuf[:0]
		c.out("\r\n")
		c.Dispatch(line)
	case 0x08:
		if len(c.lineBuf) > 0 {
			c.lineBuf = c.lineBuf[:len(c.lineBuf)-1]
		}
	default:
		c.lineBuf = append(c.lineBuf, b)
	}
}

// Stop terminates the stdin-reading goroutine and restores stdin.
func (c *Console) Stop() {
	c.stopped.Do(func() {
		close(c.stopCh)
	})
	<-c.done
	if c.nonblockSet {
		_ = syscall.SetNonblock(c.fd, false)
		c.nonblockSet = false
	}
	if c.oldTermState != nil {
		_ = term.Restore(c.fd, c.oldTermState)
		c.oldTermState = nil
	}
}
