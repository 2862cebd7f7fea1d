package ppu

import (
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/interrupt"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/memory"
)

const (
	AddrLCDC uint16 = 0xFF40
	AddrSTAT uint16 = 0xFF41
	AddrLYC  uint16 = 0xFF45
)

// LCDC bits.
const (
	lcdEnable    byte = 1 << 7
	windowMap    byte = 1 << 6
	windowEnable byte = 1 << 5
	tileData8000 byte = 1 << 4
	bgMap        byte = 1 << 3
	objSize16    byte = 1 << 2
	objEnable    byte = 1 << 1
	bgEnable     byte = 1 << 0
)

// STAT bits.
const (
	statCoincidence byte = 1 << 2
	statHBlankIRQ   byte = 1 << 3
	statVBlankIRQ   byte = 1 << 4
	statOAMIRQ      byte = 1 << 5
	statLYCIRQ      byte = 1 << 6
)

// LCD owns the control, status and line-compare registers and raises the STAT
// interrupt. The PPU reports every mode change to it.
type LCD struct {
	*memory.Block

	control *memory.Unit
	status  *memory.Unit
	compare *memory.Unit

	irq  interrupt.Line
	mode Mode

	// onControl is called with the old and new LCDC value after a write.
	onControl func(prev, next byte)
}

// NewLCD returns the register block with the LCD off and the mode at HBlank.
func NewLCD(irq interrupt.Line) *LCD {
	l := &LCD{
		control: memory.NewRegister(AddrLCDC, 0),
		status:  memory.NewRegister(AddrSTAT, 0),
		compare: memory.NewRegister(AddrLYC, 0),
		irq:     irq,
	}
	l.control.OnWrite(func(_ uint16, v byte) (byte, bool) {
		prev := l.control.Value()
		l.control.Set(v)
		if l.onControl != nil {
			l.onControl(prev, v)
		}
		return v, true
	})
	// Mode and coincidence bits are read-only, bit 7 is unused and reads as 1.
	l.status.OnRead(func(_ uint16, v byte) byte { return 0x80 | v })
	l.status.OnWrite(func(_ uint16, v byte) (byte, bool) {
		return l.status.Value()&0x07 | v&0x78, true
	})
	l.Block = memory.MustBlock(l.control, l.status, l.compare)
	return l
}

// Control returns the raw LCDC value.
func (l *LCD) Control() byte { return l.control.Value() }

// Enabled reports LCDC bit 7.
func (l *LCD) Enabled() bool { return l.control.Value()&lcdEnable != 0 }

// Mode returns the mode last reported by the PPU.
func (l *LCD) Mode() Mode { return l.mode }

// Update records a mode transition: the STAT mode bits, the mode interrupt if
// enabled, and the line-compare flag for line. A matching line raises the
// line-compare interrupt on every transition.
func (l *LCD) Update(mode Mode, line byte) {
	if mode == l.mode {
		return
	}
	l.mode = mode
	stat := l.status.Value()&^0x03 | byte(mode)
	l.status.Set(stat)

	switch mode {
	case ModeHBlank:
		l.raiseIf(statHBlankIRQ)
	case ModeVBlank:
		l.raiseIf(statVBlankIRQ)
	case ModeOAMSearch:
		l.raiseIf(statOAMIRQ)
	}
	l.coincide(line, true)
}

// Compare refreshes the coincidence flag outside a mode transition, such as a
// line increment during VBlank. The interrupt fires when the flag rises.
func (l *LCD) Compare(line byte) {
	l.coincide(line, false)
}

func (l *LCD) coincide(line byte, always bool) {
	stat := l.status.Value()
	if line != l.compare.Value() {
		l.status.Set(stat &^ statCoincidence)
		return
	}
	if always || stat&statCoincidence == 0 {
		l.raiseIf(statLYCIRQ)
	}
	l.status.Set(stat | statCoincidence)
}

func (l *LCD) raiseIf(enable byte) {
	if l.status.Value()&enable != 0 {
		l.irq.Raise()
	}
}
