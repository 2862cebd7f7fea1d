// Package apu holds the sound registers. Nothing is synthesized; the registers read
// back the way the hardware reports them so software polling them behaves.
package apu

import "github.com/FabianRolfMatthiasNoll/gbcore/internal/memory"

const (
	RegBase  uint16 = 0xFF10
	AddrNR50 uint16 = 0xFF24
	AddrNR51 uint16 = 0xFF25
	AddrNR52 uint16 = 0xFF26
	WaveBase uint16 = 0xFF30
	WaveSize        = 16

	regCount = int(AddrNR52-RegBase) + 1
	power    = 1 << 7
)

// readMask holds the bits that always read as 1, indexed from RegBase. Unused
// addresses read as 0xFF.
var readMask = [regCount]byte{
	0x80, 0x3F, 0x00, 0xFF, 0xBF, // NR10-NR14
	0xFF, 0x3F, 0x00, 0xFF, 0xBF, // unused, NR21-NR24
	0x7F, 0xFF, 0x9F, 0xFF, 0xBF, // NR30-NR34
	0xFF, 0xFF, 0x00, 0x00, 0xBF, // unused, NR41-NR44
	0x00, 0x00, 0x70,             // NR50-NR52
}

type APU struct {
	*memory.Block

	regs *memory.Unit
	wave *memory.Unit
}

func New() *APU {
	a := &APU{
		regs: memory.NewRange(RegBase, regCount),
		wave: memory.NewRange(WaveBase, WaveSize),
	}
	a.regs.OnRead(func(addr uint16, v byte) byte { return v | readMask[addr-RegBase] })
	a.regs.OnWrite(a.write)
	a.Block = memory.MustBlock(a.regs, a.wave)
	return a
}

func (a *APU) write(addr uint16, v byte) (byte, bool) {
	if addr == AddrNR52 {
		if v&power == 0 {
			clear(a.regs.Bytes())
		}
		return v & power, true
	}
	return v, a.Powered()
}

// Powered reports NR52 bit 7.
func (a *APU) Powered() bool {
	return a.regs.Bytes()[AddrNR52-RegBase]&power != 0
}
