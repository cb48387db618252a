// Package pvr implements the PowerVR2 register file (0x005f8000-0x005f9fff)
// and a VRAM-to-RGBA snapshot path for the out-of-scope debug renderer
// (SPEC_FULL.md's domain-stack wiring: golang.org/x/image feeds the ebiten
// debug window the way video_backend_ebiten.go feeds the teacher's GUI).
// Tile-accelerator command processing and 3D rendering are out of scope
// (spec.md §1); this package owns only the register file and the raw
// framebuffer decode.
package pvr

import (
	"encoding/binary"
	"image"
	"image/color"
	"log"
	"sync"

	"golang.org/x/image/draw"

	"github.com/zotley/dcjit/internal/memspace"
)

const regFileSize = 0x2000

// PixelMode selects FB_R_CTRL's framebuffer pixel format.
type PixelMode uint8

const (
	PixelRGB555 PixelMode = iota
	PixelRGB565
	PixelARGB4444
	PixelARGB1555
)

const offFBRCtrl = 0x000

// PVR owns the register file; VRAM itself is a Static memspace region
// (spec.md §6 memory map) mounted by internal/dreamcast, not owned here.
type PVR struct {
	mu   sync.Mutex
	regs [regFileSize]byte
}

func New() *PVR { return &PVR{} }

func (p *PVR) Callbacks() memspace.Callbacks {
	return memspace.Callbacks{
		Read32:  p.read32,
		Write32: p.write32,
	}
}

func (p *PVR) read32(_ any, offset uint32) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(offset)+4 > len(p.regs) {
		log.Printf("pvr: read32 out of range offset %#x", offset)
		return 0
	}
	return binary.LittleEndian.Uint32(p.regs[offset:])
}

func (p *PVR) write32(_ any, offset uint32, v uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(offset)+4 > len(p.regs) {
		log.Printf("pvr: write32 out of range offset %#x", offset)
		return
	}
	binary.LittleEndian.PutUint32(p.regs[offset:], v)
}

// PixelMode decodes the current framebuffer pixel format from FB_R_CTRL.
func (p *PVR) PixelMode() PixelMode {
	return PixelMode(p.read32(nil, offFBRCtrl) & 0x3)
}

// Decode converts a width*height*bpp slice of packed VRAM framebuffer
// bytes into a host image.RGBA, matching the raw pixel formats PVR's
// FB_R_CTRL can select.
func Decode(vram []byte, width, height int, mode PixelMode) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var r, g, b, a uint8
			switch mode {
			case PixelRGB565:
				i := (y*width + x) * 2
				if i+2 > len(vram) {
					continue
				}
				px := binary.LittleEndian.Uint16(vram[i:])
				r = expand5((px >> 11) & 0x1f)
				g = expand6((px >> 5) & 0x3f)
				b = expand5(px & 0x1f)
				a = 0xff
			case PixelARGB1555:
				i := (y*width + x) * 2
				if i+2 > len(vram) {
					continue
				}
				px := binary.LittleEndian.Uint16(vram[i:])
				r = expand5((px >> 10) & 0x1f)
				g = expand5((px >> 5) & 0x1f)
				b = expand5(px & 0x1f)
				if px&0x8000 != 0 {
					a = 0xff
				}
			case PixelARGB4444:
				i := (y*width + x) * 2
				if i+2 > len(vram) {
					continue
				}
				px := binary.LittleEndian.Uint16(vram[i:])
				r = expand4((px >> 8) & 0xf)
				g = expand4((px >> 4) & 0xf)
				b = expand4(px & 0xf)
				a = expand4((px >> 12) & 0xf)
			default: // PixelRGB555
				i := (y*width + x) * 2
				if i+2 > len(vram) {
					continue
				}
				px := binary.LittleEndian.Uint16(vram[i:])
				r = expand5((px >> 10) & 0x1f)
				g = expand5((px >> 5) & 0x1f)
				b = expand5(px & 0x1f)
				a = 0xff
			}
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: a})
		}
	}
	return img
}

// Scale resizes src to the given dimensions for the debug overlay, using
// x/image/draw's bilinear scaler rather than a hand-rolled resampler.
func Scale(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

func expand5(v uint16) uint8 { return uint8(v<<3 | v>>2) }
func expand6(v uint16) uint8 { return uint8(v<<2 | v>>4) }
func expand4(v uint16) uint8 { return uint8(v<<4 | v) }
