package cart

import "github.com/FabianRolfMatthiasNoll/gbcore/internal/memory"

// newROMOnly maps 32 KiB of fixed ROM and an 8 KiB RAM window. Writes to the ROM are
// dropped.
func newROMOnly(rom []byte) (*Cartridge, error) {
	c := &Cartridge{ram: memory.NewRange(RAMBase, RAMSize)}
	b, err := memory.NewBlock(memory.NewROM(0x0000, padded(rom, romSize)[:romSize]), c.ram)
	if err != nil {
		return nil, err
	}
	c.Block = b
	return c, nil
}
