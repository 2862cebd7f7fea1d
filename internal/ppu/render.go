package ppu

// RGB is one output pixel.
type RGB struct {
	R, G, B byte
}

// shades maps a palette-translated colour number to a grey level, lightest first.
var shades = [4]byte{0xFF, 0xCC, 0x77, 0x00}

const maxLineSprites = 10

// Sprite is an OAM entry selected for the current line, in screen coordinates.
type Sprite struct {
	Y, X  int
	Tile  byte
	Attr  byte
	Index int
}

// Attribute bits.
const (
	attrPriority byte = 1 << 7
	attrFlipY    byte = 1 << 6
	attrFlipX    byte = 1 << 5
	attrPalette  byte = 1 << 4
)

func (p *PPU) spriteHeight() int {
	if p.lcd.Control()&objSize16 != 0 {
		return 16
	}
	return 8
}

// searchSprites caches the first ten OAM entries that cover line.
func (p *PPU) searchSprites(line byte) {
	oam := p.oam.Bytes()
	height := p.spriteHeight()
	p.nSprites = 0
	for i := 0; i < OAMSize && p.nSprites < maxLineSprites; i += 4 {
		y := int(oam[i]) - 16
		if int(line) < y || int(line) >= y+height {
			continue
		}
		p.sprites[p.nSprites] = Sprite{
			Y:     y,
			X:     int(oam[i+1]) - 8,
			Tile:  oam[i+2],
			Attr:  oam[i+3],
			Index: i / 4,
		}
		p.nSprites++
	}
}

// LineSprites returns the entries cached by the last OAM search.
func (p *PPU) LineSprites() []Sprite { return p.sprites[:p.nSprites] }

// tileRow returns the two bit planes of row within the tile starting at addr.
func (p *PPU) tileRow(addr uint16, row int) (lo, hi byte) {
	vram := p.vram.Bytes()
	off := int(addr-VRAMBase) + row*2
	return vram[off], vram[off+1]
}

// colourNumber extracts pixel px (0 is leftmost) from a tile row.
func colourNumber(lo, hi byte, px int) byte {
	bit := 7 - px
	return (hi>>bit&1)<<1 | lo>>bit&1
}

// bgTileAddr resolves a background or window tile number through the LCDC
// addressing mode.
func (p *PPU) bgTileAddr(tile byte) uint16 {
	if p.lcd.Control()&tileData8000 != 0 {
		return VRAMBase + uint16(tile)*16
	}
	return uint16(0x9000 + int(int8(tile))*16)
}

func (p *PPU) mapBase(bit byte) uint16 {
	if p.lcd.Control()&bit != 0 {
		return 0x9C00
	}
	return 0x9800
}

func applyPalette(palette, colour byte) byte {
	return palette >> (colour * 2) & 0x03
}

// drawLine renders one full scanline into the frame.
func (p *PPU) drawLine(line byte) {
	if line > lastVisibleLine {
		return
	}
	lcdc := p.lcd.Control()
	if lcdc&bgEnable != 0 {
		p.drawBackground(line)
		if lcdc&windowEnable != 0 {
			p.drawWindow(line)
		}
	} else {
		for x := 0; x < ScreenWidth; x++ {
			p.setPixel(x, int(line), 0)
		}
	}
	if lcdc&objEnable != 0 {
		p.drawSprites(line)
	}
}

func (p *PPU) drawBackground(line byte) {
	vram := p.vram.Bytes()
	base := p.mapBase(bgMap)
	palette := p.bgp.Value()
	y := int(line+p.scy.Value()) & 0xFF
	row := y & 7
	mapRow := base + uint16(y/8)*32

	for x := 0; x < ScreenWidth; x++ {
		bx := (x + int(p.scx.Value())) & 0xFF
		tile := vram[mapRow+uint16(bx/8)-VRAMBase]
		lo, hi := p.tileRow(p.bgTileAddr(tile), row)
		p.setPixel(x, int(line), applyPalette(palette, colourNumber(lo, hi, bx&7)))
	}
}

func (p *PPU) drawWindow(line byte) {
	wy := p.wy.Value()
	if line < wy {
		return
	}
	vram := p.vram.Bytes()
	base := p.mapBase(windowMap)
	palette := p.bgp.Value()
	y := int(line - wy)
	row := y & 7
	mapRow := base + uint16(y/8%32)*32

	start := int(p.wx.Value()) - 7
	for x := max(start, 0); x < ScreenWidth; x++ {
		wx := x - start
		tile := vram[mapRow+uint16(wx/8%32)-VRAMBase]
		lo, hi := p.tileRow(p.bgTileAddr(tile), row)
		p.setPixel(x, int(line), applyPalette(palette, colourNumber(lo, hi, wx&7)))
	}
}

// drawSprites draws the cached sprites over the line in OAM order, so lower
// indexes end up underneath. The background priority attribute is not applied.
func (p *PPU) drawSprites(line byte) {
	height := p.spriteHeight()
	for _, s := range p.LineSprites() {
		row := int(line) - s.Y
		if s.Attr&attrFlipY != 0 {
			row = height - 1 - row
		}
		tile := s.Tile
		if height == 16 {
			tile &^= 1
		}
		lo, hi := p.tileRow(VRAMBase+uint16(tile)*16, row)

		palette := p.obp0.Value()
		if s.Attr&attrPalette != 0 {
			palette = p.obp1.Value()
		}
		for px := range 8 {
			x := s.X + px
			if x < 0 || x >= ScreenWidth {
				continue
			}
			bit := px
			if s.Attr&attrFlipX != 0 {
				bit = 7 - px
			}
			colour := colourNumber(lo, hi, bit)
			if colour == 0 {
				continue
			}
			p.setPixel(x, int(line), applyPalette(palette, colour))
		}
	}
}

func (p *PPU) setPixel(x, y int, shade byte) {
	g := shades[shade&0x03]
	p.frame[y][x] = RGB{g, g, g}
	i := (y*ScreenWidth + x) * 4
	p.rgba[i], p.rgba[i+1], p.rgba[i+2], p.rgba[i+3] = g, g, g, 0xFF
}

func (p *PPU) clearFrame() {
	for y := range ScreenHeight {
		for x := range ScreenWidth {
			p.setPixel(x, y, 0)
		}
	}
}

// Pixel returns the colour at x, y of the last rendered frame.
func (p *PPU) Pixel(x, y int) RGB { return p.frame[y][x] }

// Framebuffer returns the frame as packed RGBA, row-major. The slice is reused.
func (p *PPU) Framebuffer() []byte { return p.rgba }
