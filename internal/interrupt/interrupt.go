// Package interrupt implements the interrupt controller: the request (IF) and enable (IE)
// registers plus the CPU-internal master enable flag.
package interrupt

import "github.com/FabianRolfMatthiasNoll/gbcore/internal/memory"

const (
	AddrIF uint16 = 0xFF0F
	AddrIE uint16 = 0xFFFF
)

// Source is one interrupt request bit.
type Source byte

// Sources in service priority order.
const (
	VBlank Source = 1 << iota
	LCDStat
	Timer
	Serial
	Joypad
)

var priority = [...]struct {
	src    Source
	vector uint16
}{
	{VBlank, 0x40},
	{LCDStat, 0x48},
	{Timer, 0x50},
	{Serial, 0x58},
	{Joypad, 0x60},
}

// Vector returns the service address of s.
func (s Source) Vector() uint16 {
	for _, p := range priority {
		if p.src == s {
			return p.vector
		}
	}
	return 0
}

func (s Source) String() string {
	switch s {
	case VBlank:
		return "vblank"
	case LCDStat:
		return "stat"
	case Timer:
		return "timer"
	case Serial:
		return "serial"
	case Joypad:
		return "joypad"
	default:
		return "unknown"
	}
}

// Controller holds IF, IE and IME.
type Controller struct {
	*memory.Block

	flags  *memory.Unit
	enable *memory.Unit

	// IME is not memory-mapped; only DI, EI, RETI and interrupt dispatch touch it.
	IME bool
}

// New returns a controller with nothing requested or enabled.
func New() *Controller {
	c := &Controller{
		flags:  memory.NewRegister(AddrIF, 0),
		enable: memory.NewRegister(AddrIE, 0),
	}
	c.flags.OnRead(func(_ uint16, v byte) byte { return 0xE0 | v })
	c.flags.OnWrite(func(_ uint16, v byte) (byte, bool) { return v & 0x1F, true })
	c.Block = memory.MustBlock(c.flags, c.enable)
	return c
}

// Raise sets the request bit of src.
func (c *Controller) Raise(src Source) {
	c.flags.Set(c.flags.Value() | byte(src))
}

// Requested returns the raw IF bits.
func (c *Controller) Requested() byte { return c.flags.Value() }

// Enabled returns the raw IE bits.
func (c *Controller) Enabled() byte { return c.enable.Value() }

// HasPending reports whether any enabled source is requested. IME is ignored so the
// result can be used to wake a halted CPU.
func (c *Controller) HasPending() bool {
	return c.flags.Value()&c.enable.Value()&0x1F != 0
}

// PendingVector returns the vector of the highest priority pending source and clears
// its request bit. Callers check HasPending first.
func (c *Controller) PendingVector() (uint16, bool) {
	pending := c.flags.Value() & c.enable.Value()
	for _, p := range priority {
		if pending&byte(p.src) != 0 {
			c.flags.Set(c.flags.Value() &^ byte(p.src))
			return p.vector, true
		}
	}
	return 0, false
}

// Line is the raise capability handed to a peripheral for its own source.
type Line struct {
	ctrl *Controller
	src  Source
}

// Line returns the raise capability for src.
func (c *Controller) Line(src Source) Line {
	return Line{ctrl: c, src: src}
}

// Raise requests the line's interrupt. A zero Line does nothing.
func (l Line) Raise() {
	if l.ctrl != nil {
		l.ctrl.Raise(l.src)
	}
}
