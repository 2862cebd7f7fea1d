// Package timer implements the divider and the programmable TIMA counter.
package timer

import (
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/interrupt"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/memory"
)

const (
	AddrDIV  uint16 = 0xFF04
	AddrTIMA uint16 = 0xFF05
	AddrTMA  uint16 = 0xFF06
	AddrTAC  uint16 = 0xFF07

	divPeriod = 256
	tacEnable = 1 << 2
)

// periods is the TIMA input clock in cycles, indexed by TAC bits 0-1.
var periods = [4]int{1024, 16, 64, 256}

type Timer struct {
	*memory.Block

	div  *memory.Unit
	tima *memory.Unit
	tma  *memory.Unit
	tac  *memory.Unit

	divClock  int
	timaClock int

	irq interrupt.Line
}

func New(irq interrupt.Line) *Timer {
	t := &Timer{
		div:  memory.NewRegister(AddrDIV, 0),
		tima: memory.NewRegister(AddrTIMA, 0),
		tma:  memory.NewRegister(AddrTMA, 0),
		tac:  memory.NewRegister(AddrTAC, 0),
		irq:  irq,
	}
	// Any write clears the divider.
	t.div.OnWrite(func(uint16, byte) (byte, bool) {
		t.divClock = 0
		return 0, true
	})
	t.tac.OnRead(func(_ uint16, v byte) byte { return 0xF8 | v })
	t.tac.OnWrite(func(_ uint16, v byte) (byte, bool) { return v & 0x07, true })
	t.Block = memory.MustBlock(t.div, t.tima, t.tma, t.tac)
	return t
}

// Tick advances both counters by cycles.
func (t *Timer) Tick(cycles int) {
	t.divClock += cycles
	for t.divClock >= divPeriod {
		t.divClock -= divPeriod
		t.div.Set(t.div.Value() + 1)
	}

	tac := t.tac.Value()
	if tac&tacEnable == 0 {
		return
	}
	period := periods[tac&0x03]
	t.timaClock += cycles
	for t.timaClock >= period {
		t.timaClock -= period
		t.increment()
	}
}

func (t *Timer) increment() {
	v := t.tima.Value() + 1
	if v == 0 {
		t.tima.Set(t.tma.Value())
		t.irq.Raise()
		return
	}
	t.tima.Set(v)
}
