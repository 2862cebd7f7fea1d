// Package ppu implements the picture processing unit: the four-mode scanline state
// machine, video and object memory with mode-based CPU contention, and a whole-line
// renderer for background, window and sprites.
package ppu

import (
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/interrupt"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/memory"
	"github.com/retroenv/retrogolib/log"
)

const (
	ScreenWidth  = 160
	ScreenHeight = 144

	VRAMBase uint16 = 0x8000
	VRAMSize        = 0x2000
	OAMBase  uint16 = 0xFE00
	OAMSize         = 0xA0

	AddrSCY  uint16 = 0xFF42
	AddrSCX  uint16 = 0xFF43
	AddrLY   uint16 = 0xFF44
	AddrDMA  uint16 = 0xFF46
	AddrBGP  uint16 = 0xFF47
	AddrOBP0 uint16 = 0xFF48
	AddrOBP1 uint16 = 0xFF49
	AddrWY   uint16 = 0xFF4A
	AddrWX   uint16 = 0xFF4B
)

// Mode is the STAT mode number.
type Mode byte

const (
	ModeHBlank     Mode = 0
	ModeVBlank     Mode = 1
	ModeOAMSearch  Mode = 2
	ModeLineRender Mode = 3
)

func (m Mode) String() string {
	switch m {
	case ModeHBlank:
		return "hblank"
	case ModeVBlank:
		return "vblank"
	case ModeOAMSearch:
		return "oam-search"
	default:
		return "line-render"
	}
}

// Mode budgets in cycles.
const (
	OAMCycles    = 80
	RenderCycles = 172
	HBlankCycles = 204
	LineCycles   = OAMCycles + RenderCycles + HBlankCycles

	lastVisibleLine = ScreenHeight - 1
	linesPerFrame   = 154

	// FrameCycles is one full refresh including VBlank.
	FrameCycles = LineCycles * linesPerFrame
)

type PPU struct {
	*memory.Block

	lcd *LCD

	vram *memory.Unit
	oam  *memory.Unit

	scy, scx *memory.Unit
	ly       *memory.Unit
	dma      *memory.Unit
	bgp      *memory.Unit
	obp0     *memory.Unit
	obp1     *memory.Unit
	wy, wx   *memory.Unit

	mode  Mode
	clock int

	sprites  [maxLineSprites]Sprite
	nSprites int

	frame      [ScreenHeight][ScreenWidth]RGB
	rgba       []byte
	frameReady bool

	vblank interrupt.Line
	logger *log.Logger
}

// New creates a PPU driven by lcd. vblank is raised on every VBlank entry.
func New(lcd *LCD, vblank interrupt.Line, logger *log.Logger) *PPU {
	p := &PPU{
		lcd:    lcd,
		vram:   memory.NewRange(VRAMBase, VRAMSize),
		oam:    memory.NewRange(OAMBase, OAMSize),
		scy:    memory.NewRegister(AddrSCY, 0),
		scx:    memory.NewRegister(AddrSCX, 0),
		ly:     memory.NewRegister(AddrLY, 0),
		dma:    memory.NewRegister(AddrDMA, 0),
		bgp:    memory.NewRegister(AddrBGP, 0xE4),
		obp0:   memory.NewRegister(AddrOBP0, 0xE4),
		obp1:   memory.NewRegister(AddrOBP1, 0xE4),
		wy:     memory.NewRegister(AddrWY, 0),
		wx:     memory.NewRegister(AddrWX, 0),
		mode:   ModeHBlank,
		rgba:   make([]byte, ScreenWidth*ScreenHeight*4),
		vblank: vblank,
		logger: logger,
	}

	p.vram.OnRead(func(_ uint16, v byte) byte {
		if p.mode == ModeLineRender {
			return 0xFF
		}
		return v
	})
	p.vram.OnWrite(func(_ uint16, v byte) (byte, bool) {
		return v, p.mode != ModeLineRender
	})
	p.oam.OnRead(func(_ uint16, v byte) byte {
		if p.oamLocked() {
			return 0xFF
		}
		return v
	})
	p.oam.OnWrite(func(_ uint16, v byte) (byte, bool) {
		return v, !p.oamLocked()
	})
	p.ly.OnWrite(func(uint16, byte) (byte, bool) {
		p.restartFrame()
		return 0, false
	})
	lcd.onControl = p.controlChanged

	p.Block = memory.MustBlock(p.vram, p.oam, p.scy, p.scx, p.ly, p.dma,
		p.bgp, p.obp0, p.obp1, p.wy, p.wx)
	p.clearFrame()
	return p
}

func (p *PPU) oamLocked() bool {
	return p.mode == ModeOAMSearch || p.mode == ModeLineRender
}

// SetDMAHandler installs the write hook of the DMA register. The copy needs the
// whole address space, so the owner of the bus provides it.
func (p *PPU) SetDMAHandler(h memory.WriteHook) { p.dma.OnWrite(h) }

// OAM exposes object memory without contention, for DMA.
func (p *PPU) OAM() []byte { return p.oam.Bytes() }

// VRAM exposes video memory without contention.
func (p *PPU) VRAM() []byte { return p.vram.Bytes() }

// Mode returns the current state of the scanline machine.
func (p *PPU) Mode() Mode { return p.mode }

// LY returns the current line index.
func (p *PPU) LY() byte { return p.ly.Value() }

// Tick advances the state machine by cycles.
func (p *PPU) Tick(cycles int) {
	if !p.lcd.Enabled() {
		p.clock = 0
		p.ly.Set(0)
		p.setMode(ModeHBlank)
		return
	}

	p.clock += cycles
	for p.clock >= p.budget() {
		p.clock -= p.budget()
		p.advance()
	}
}

func (p *PPU) budget() int {
	switch p.mode {
	case ModeOAMSearch:
		return OAMCycles
	case ModeLineRender:
		return RenderCycles
	case ModeHBlank:
		return HBlankCycles
	default:
		return LineCycles
	}
}

// advance performs the exit action of the current mode.
func (p *PPU) advance() {
	line := p.ly.Value()
	switch p.mode {
	case ModeOAMSearch:
		p.searchSprites(line)
		p.setMode(ModeLineRender)

	case ModeLineRender:
		p.drawLine(line)
		p.ly.Set(line + 1)
		p.setMode(ModeHBlank)

	case ModeHBlank:
		if line > lastVisibleLine {
			p.setMode(ModeVBlank)
			p.frameReady = true
			p.vblank.Raise()
			return
		}
		p.setMode(ModeOAMSearch)

	case ModeVBlank:
		line++
		if line == linesPerFrame {
			p.ly.Set(0)
			p.setMode(ModeOAMSearch)
			return
		}
		p.ly.Set(line)
		p.lcd.Compare(line)
	}
}

func (p *PPU) setMode(m Mode) {
	p.mode = m
	p.lcd.Update(m, p.ly.Value())
}

func (p *PPU) restartFrame() {
	p.ly.Set(0)
	p.clock = 0
	if p.lcd.Enabled() {
		p.setMode(ModeOAMSearch)
	}
	p.lcd.Compare(0)
}

func (p *PPU) controlChanged(prev, next byte) {
	switch {
	case prev&lcdEnable != 0 && next&lcdEnable == 0:
		p.ly.Set(0)
		p.clock = 0
		p.setMode(ModeHBlank)
		p.clearFrame()
		p.logger.Debug("LCD off")
	case prev&lcdEnable == 0 && next&lcdEnable != 0:
		p.restartFrame()
		p.logger.Debug("LCD on", log.Hex("lcdc", next))
	}
}

// FrameReady reports whether a VBlank was entered since the last call and clears
// the flag.
func (p *PPU) FrameReady() bool {
	r := p.frameReady
	p.frameReady = false
	return r
}
