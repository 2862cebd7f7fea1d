package ui

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/ppu"
	"github.com/retroenv/retrogolib/assert"
)

func TestSavePNG(t *testing.T) {
	fb := make([]byte, 4*ppu.ScreenWidth*ppu.ScreenHeight)
	for i := 0; i < len(fb); i += 4 {
		fb[i], fb[i+3] = 0xE0, 0xFF
	}
	path := filepath.Join(t.TempDir(), "frame.png")
	assert.NoError(t, SavePNG(fb, path))

	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	assert.NoError(t, err)
	assert.Equal(t, ppu.ScreenWidth, img.Bounds().Dx())
	assert.Equal(t, ppu.ScreenHeight, img.Bounds().Dy())
	r, _, _, a := img.At(3, 7).RGBA()
	assert.Equal(t, uint32(0xE0E0), r)
	assert.Equal(t, uint32(0xFFFF), a)
}

func TestSavePNGCreateError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "frame.png")
	if err := SavePNG(make([]byte, 4*ppu.ScreenWidth*ppu.ScreenHeight), path); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
