// Package joypad implements the P1 register. The low nibble is recomputed on every
// read from the selected key group.
package joypad

import (
	"fmt"
	"strings"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/interrupt"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/memory"
)

const AddrP1 uint16 = 0xFF00

const (
	selectDirections byte = 1 << 4
	selectButtons    byte = 1 << 5
)

// Button is one of the eight keys. The first four are the directions.
type Button byte

const (
	Right Button = iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

var buttonNames = [...]string{"right", "left", "up", "down", "a", "b", "select", "start"}

func (b Button) String() string {
	if int(b) < len(buttonNames) {
		return buttonNames[b]
	}
	return fmt.Sprintf("button(%d)", b)
}

// ParseButton maps a case-insensitive key name to a Button.
func ParseButton(name string) (Button, error) {
	for i, n := range buttonNames {
		if strings.EqualFold(n, name) {
			return Button(i), nil
		}
	}
	return 0, fmt.Errorf("unknown button %q", name)
}

func (b Button) direction() bool { return b <= Down }

func (b Button) bit() byte { return 1 << (b & 3) }

type Joypad struct {
	*memory.Block

	reg *memory.Unit

	// Active low, one bit per key of the group.
	directions byte
	buttons    byte

	irq interrupt.Line
}

// New returns a joypad with every key released and no group selected.
func New(irq interrupt.Line) *Joypad {
	j := &Joypad{
		reg:        memory.NewRegister(AddrP1, 0x30),
		directions: 0x0F,
		buttons:    0x0F,
		irq:        irq,
	}
	j.reg.OnWrite(func(_ uint16, v byte) (byte, bool) { return v & 0x30, true })
	j.reg.OnRead(func(_ uint16, v byte) byte { return 0xC0 | v&0x30 | j.lines(v) })
	j.Block = memory.MustBlock(j.reg)
	return j
}

func (j *Joypad) lines(sel byte) byte {
	low := byte(0x0F)
	if sel&selectDirections == 0 {
		low &= j.directions
	}
	if sel&selectButtons == 0 {
		low &= j.buttons
	}
	return low
}

func (j *Joypad) group(b Button) (*byte, byte) {
	if b.direction() {
		return &j.directions, selectDirections
	}
	return &j.buttons, selectButtons
}

// Press marks b as held. A newly pressed key in a selected group raises the
// joypad interrupt.
func (j *Joypad) Press(b Button) {
	keys, sel := j.group(b)
	if *keys&b.bit() == 0 {
		return
	}
	*keys &^= b.bit()
	if j.reg.Value()&sel == 0 {
		j.irq.Raise()
	}
}

// Release marks b as released.
func (j *Joypad) Release(b Button) {
	keys, _ := j.group(b)
	*keys |= b.bit()
}

// Pressed reports whether b is held.
func (j *Joypad) Pressed(b Button) bool {
	keys, _ := j.group(b)
	return *keys&b.bit() == 0
}
