package pvr

import "testing"

func TestRegisterRoundTrip(t *testing.T) {
	p := New()
	cb := p.Callbacks()
	cb.Write32(nil, offFBRCtrl, 0x1)
	if got := cb.Read32(nil, offFBRCtrl); got != 0x1 {
		t.Fatalf("read32=%#x, want 0x1", got)
	}
	if mode := p.PixelMode(); mode != PixelRGB565 {
		t.Fatalf("PixelMode()=%d, want PixelRGB565", mode)
	}
}

func TestDecodeRGB565(t *testing.T) {
	// Two pixels: pure red, pure green, packed little-endian RGB565.
	vram := []byte{0x00, 0xf8, 0xe0, 0x07}
	img := Decode(vram, 2, 1, PixelRGB565)
	r, g, b, a := img.At(0, 0).RGBA()
	if r>>8 != 0xff || g>>8 != 0 || b>>8 != 0 || a>>8 != 0xff {
		t.Fatalf("pixel 0 = %d,%d,%d,%d", r>>8, g>>8, b>>8, a>>8)
	}
	r, g, b, _ = img.At(1, 0).RGBA()
	if r>>8 != 0 || g>>8 != 0xff || b>>8 != 0 {
		t.Fatalf("pixel 1 = %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestScale(t *testing.T) {
	vram := make([]byte, 4*4*2)
	img := Decode(vram, 4, 4, PixelRGB555)
	scaled := Scale(img, 8, 8)
	if scaled.Bounds().Dx() != 8 || scaled.Bounds().Dy() != 8 {
		t.Fatalf("scaled bounds = %v, want 8x8", scaled.Bounds())
	}
}
