// Command dcjit boots a Dreamcast core, loads a guest program into main
// RAM, and runs the scheduler loop. The debug window is optional and off
// by default: run with -ui to open a ebiten window that mirrors the PVR
// framebuffer snapshot, analogous to the teacher's headless-vs-GUI split
// between terminal_host.go and video_backend_ebiten.go.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/zotley/dcjit/internal/blockcache"
	"github.com/zotley/dcjit/internal/debugconsole"
	"github.com/zotley/dcjit/internal/dreamcast"
	"github.com/zotley/dcjit/internal/peripherals/pvr"
)

// Config mirrors spec.md §6's "Configuration options recognized by the
// runtime", populated from flags the way the teacher's GUIConfig is
// populated ahead of gui.Initialize.
type Config struct {
	Program string

	CompileFlags blockcache.CompileFlags
	SingleInstr  bool

	UI     bool
	Width  int
	Height int

	LogRegs     bool
	LogRegAccess bool
	DumpIR      bool

	Console bool
}

func parseFlags(args []string) (Config, error) {
	fs := flag.NewFlagSet("dcjit", flag.ContinueOnError)
	singleInstr := fs.Bool("single-instr", false, "set SH4_SINGLE_INSTR in the parsed config's compile flags (dreamcast.New does not take them, so compiled blocks are unaffected)")
	ui := fs.Bool("ui", false, "open an ebiten debug window mirroring the PVR framebuffer")
	width := fs.Int("width", 640, "debug window width")
	height := fs.Int("height", 480, "debug window height")
	logRegs := fs.Bool("log-regs", false, "log pc, r0 and block-cache stats after every tick")
	logRegAccess := fs.Bool("log-reg-access", false, "record log-reg-access in the parsed config (nothing reads it; register accesses are not logged)")
	dumpIR := fs.Bool("dump-ir", false, "record dump-ir in the parsed config (nothing reads it; the IR is not printed)")
	console := fs.Bool("console", false, "start the raw-mode debug console on stdin")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() != 1 {
		return Config{}, fmt.Errorf("usage: dcjit [flags] program.bin")
	}

	cfg := Config{
		Program:      fs.Arg(0),
		SingleInstr:  *singleInstr,
		UI:           *ui,
		Width:        *width,
		Height:       *height,
		LogRegs:      *logRegs,
		LogRegAccess: *logRegAccess,
		DumpIR:       *dumpIR,
		Console:      *console,
	}
	if cfg.SingleInstr {
		cfg.CompileFlags |= blockcache.SH4SingleInstr
	}
	return cfg, nil
}

func boilerPlate() {
	fmt.Println("dcjit - a Dreamcast SH4 dynamic-recompilation core")
	fmt.Println("https://github.com/zotley/dcjit")
}

func main() {
	boilerPlate()

	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	program, err := os.ReadFile(cfg.Program)
	if err != nil {
		fmt.Printf("Error loading program: %v\n", err)
		os.Exit(1)
	}

	dc, err := dreamcast.New()
	if err != nil {
		fmt.Printf("Failed to initialize Dreamcast core: %v\n", err)
		os.Exit(1)
	}

	loadProgram(dc, program)

	if cfg.Console {
		console := debugconsole.New(dc, func(s string) { fmt.Print(s) })
		console.Start()
		defer console.Stop()
	}

	fmt.Printf("Starting SH4 core with program: %s\n", cfg.Program)

	if cfg.UI {
		runWithUI(dc, cfg)
		return
	}
	runHeadless(dc, cfg)
}

func loadProgram(dc *dreamcast.Dreamcast, program []byte) {
	for i, b := range program {
		dc.Space.Write8(dreamcast.AddrMainRAM+uint32(i), b)
	}
	dc.CPU.PC = dreamcast.AddrMainRAM
}

// runHeadless advances the scheduler in fixed wall-clock slices, the
// plain loop the teacher's ie32CPU.Execute goroutine runs under the hood
// when no GUI frontend is attached.
func runHeadless(dc *dreamcast.Dreamcast, cfg Config) {
	const tickInterval = 16 * time.Millisecond
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for range ticker.C {
		dc.Tick(uint64(tickInterval))
		if cfg.LogRegs {
			log.Printf("pc=%#08x r0=%#08x stats=%+v", dc.CPU.PC, dc.CPU.R[0], dc.Stats())
		}
	}
}

// debugWindow implements ebiten.Game, decoding the PVR framebuffer each
// frame the way the teacher's EbitenOutput.Draw blits its frameBuffer.
type debugWindow struct {
	dc     *dreamcast.Dreamcast
	cfg    Config
	ticker *time.Ticker
}

func runWithUI(dc *dreamcast.Dreamcast, cfg Config) {
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	ebiten.SetWindowTitle("dcjit")
	ebiten.SetWindowResizable(true)

	w := &debugWindow{dc: dc, cfg: cfg, ticker: time.NewTicker(16 * time.Millisecond)}
	if err := ebiten.RunGame(w); err != nil {
		fmt.Printf("debug window exited: %v\n", err)
	}
}

func (w *debugWindow) Update() error {
	if ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}
	select {
	case <-w.ticker.C:
		w.dc.Tick(uint64(16 * time.Millisecond))
	default:
	}
	return nil
}

func (w *debugWindow) Draw(screen *ebiten.Image) {
	vram := make([]byte, dreamcast.SizePVRVRAM)
	for i := range vram {
		vram[i] = w.dc.Space.Read8(dreamcast.AddrPVRVRAM64 + uint32(i))
	}
	decoded := pvr.Decode(vram, w.cfg.Width, w.cfg.Height, w.dc.PVR.PixelMode())
	scaled := pvr.Scale(decoded, w.cfg.Width, w.cfg.Height)

	img := ebiten.NewImageFromImage(scaled)
	screen.DrawImage(img, nil)
}

func (w *debugWindow) Layout(_, _ int) (int, int) {
	return w.cfg.Width, w.cfg.Height
}
