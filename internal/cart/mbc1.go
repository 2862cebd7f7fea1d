package cart

import "github.com/FabianRolfMatthiasNoll/gbcore/internal/memory"

// mbc1 holds the banking state. Control writes land on the read-only ROM units and are
// decoded by their write hooks.
type mbc1 struct {
	rom   []byte
	banks int

	romBank    int
	upper      byte // 0x4000-0x5FFF, stored only
	mode       byte // 0x6000-0x7FFF, stored only
	ramEnabled bool
}

func newMBC1(rom []byte) (*Cartridge, error) {
	img := padded(rom, romSize)
	m := &mbc1{rom: img, banks: len(img) / bankSize, romBank: 1}

	bank0 := memory.NewROM(0x0000, img[:bankSize]).OnWrite(m.control)
	bankN := memory.NewROM(bankSize, img[bankSize:romSize]).
		OnRead(m.readBank).
		OnWrite(m.control)

	c := &Cartridge{ram: memory.NewRange(RAMBase, RAMSize)}
	c.ram.OnRead(func(_ uint16, v byte) byte {
		if !m.ramEnabled {
			return 0xFF
		}
		return v
	})
	c.ram.OnWrite(func(_ uint16, v byte) (byte, bool) { return v, m.ramEnabled })

	b, err := memory.NewBlock(bank0, bankN, c.ram)
	if err != nil {
		return nil, err
	}
	c.Block = b
	return c, nil
}

func (m *mbc1) control(addr uint16, v byte) (byte, bool) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = v&0x0F == 0x0A
	case addr < 0x4000:
		bank := int(v & 0x1F)
		if bank == 0 {
			bank = 1
		}
		m.romBank = bank % m.banks
	case addr < 0x6000:
		m.upper = v & 0x03
	default:
		m.mode = v & 0x01
	}
	return v, false
}

func (m *mbc1) readBank(addr uint16, _ byte) byte {
	return m.rom[m.romBank*bankSize+int(addr-bankSize)]
}
