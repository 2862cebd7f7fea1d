// Package ram provides the plain storage of the address space: work RAM and its echo,
// high RAM, and the unused holes of the I/O page so that every address has an owner.
package ram

import "github.com/FabianRolfMatthiasNoll/gbcore/internal/memory"

const (
	WRAMBase uint16 = 0xC000
	WRAMBank        = 0x1000
	EchoBase uint16 = 0xE000
	EchoSize        = 0x1E00
	HRAMBase uint16 = 0xFF80
	HRAMSize        = 0x7F

	unusableBase uint16 = 0xFEA0
	unusableSize        = 0x60

	echoOffset = EchoBase - WRAMBase
)

// ioHoles are I/O addresses no peripheral decodes. They read 0xFF and ignore writes.
var ioHoles = []struct {
	base uint16
	size int
}{
	{0xFF03, 1},
	{0xFF08, 7},
	{0xFF27, 9},
	{0xFF4C, 4},
	{0xFF51, 0x2F},
}

type RAM struct {
	*memory.Block

	banks [2]*memory.Unit
	hram  *memory.Unit
}

func New() *RAM {
	r := &RAM{
		banks: [2]*memory.Unit{
			memory.NewRange(WRAMBase, WRAMBank),
			memory.NewRange(WRAMBase+WRAMBank, WRAMBank),
		},
		hram: memory.NewRange(HRAMBase, HRAMSize),
	}

	echo := memory.NewRange(EchoBase, EchoSize)
	echo.OnRead(func(addr uint16, _ byte) byte { return r.Read(addr - echoOffset) })
	echo.OnWrite(func(addr uint16, v byte) (byte, bool) {
		r.Write(addr-echoOffset, v)
		return v, false
	})

	unusable := memory.NewRange(unusableBase, unusableSize)
	unusable.OnRead(func(uint16, byte) byte { return 0x00 })
	unusable.OnWrite(drop)

	r.Block = memory.MustBlock(r.banks[0], r.banks[1], r.hram, echo, unusable)
	for _, h := range ioHoles {
		u := memory.NewRange(h.base, h.size)
		u.OnRead(func(uint16, byte) byte { return 0xFF })
		u.OnWrite(drop)
		if err := r.Add(u); err != nil {
			panic(err)
		}
	}
	return r
}

func drop(_ uint16, v byte) (byte, bool) { return v, false }

// WRAM exposes work RAM bank n (0 or 1) without hooks.
func (r *RAM) WRAM(n int) []byte { return r.banks[n].Bytes() }

// HRAM exposes high RAM without hooks.
func (r *RAM) HRAM() []byte { return r.hram.Bytes() }
