package debugconsole

import (
	"fmt"
	"strconv"
	"strings"
)

// Dispatch parses and executes one monitor command line. Supported
// commands: "reg <n>", "reg <n> <v>", "mem <addr>", "mem <addr> <v>",
// "break <addr> [lua-expr]", "clear <addr>", "pc".
func (c *Console) Dispatch(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "pc":
		c.out(fmt.Sprintf("pc=%#08x\r\n", c.target.PC()))

	case "reg":
		c.cmdReg(fields[1:])

	case "mem":
		c.cmdMem(fields[1:])

	case "break":
		c.cmdBreak(fields[1:])

	case "clear":
		c.cmdClear(fields[1:])

	default:
		c.out(fmt.Sprintf("unknown command %q\r\n", fields[0]))
	}
}

func (c *Console) cmdReg(args []string) {
	if len(args) == 0 {
		c.out("usage: reg <n> [value]\r\n")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 || n > 15 {
		c.out(fmt.Sprintf("bad register %q\r\n", args[0]))
		return
	}
	if len(args) == 1 {
		c.out(fmt.Sprintf("r%d=%#08x\r\n", n, c.target.ReadRegister(n)))
		return
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(args[1], "0x"), 16, 32)
	if err != nil {
		c.out(fmt.Sprintf("bad value %q\r\n", args[1]))
		return
	}
	c.target.WriteRegister(n, uint32(v))
}

func (c *Console) cmdMem(args []string) {
	if len(args) == 0 {
		c.out("usage: mem <addr> [value]\r\n")
		return
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 32)
	if err != nil {
		c.out(fmt.Sprintf("bad address %q\r\n", args[0]))
		return
	}
	if len(args) == 1 {
		c.out(fmt.Sprintf("[%#08x]=%#08x\r\n", addr, c.target.ReadMemory32(uint32(addr))))
		return
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(args[1], "0x"), 16, 32)
	if err != nil {
		c.out(fmt.Sprintf("bad value %q\r\n", args[1]))
		return
	}
	c.target.WriteMemory32(uint32(addr), uint32(v))
	c.target.InvalidateBlock(uint32(addr))
}

func (c *Console) cmdBreak(args []string) {
	if len(args) == 0 {
		c.out("usage: break <addr> [lua-condition]\r\n")
		return
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 32)
	if err != nil {
		c.out(fmt.Sprintf("bad address %q\r\n", args[0]))
		return
	}
	cond := ""
	if len(args) > 1 {
		cond = strings.Join(args[1:], " ")
	}
	if err := c.breaks.Set(uint32(addr), cond); err != nil {
		c.out(fmt.Sprintf("break: %v\r\n", err))
		return
	}
	c.out(fmt.Sprintf("breakpoint set at %#08x\r\n", addr))
}

func (c *Console) cmdClear(args []string) {
	if len(args) == 0 {
		c.out("usage: clear <addr>\r\n")
		return
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 32)
	if err != nil {
		c.out(fmt.Sprintf("bad address %q\r\n", args[0]))
		return
	}
	c.breaks.Clear(uint32(addr))
}
