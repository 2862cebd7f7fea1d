// Package bus implements the memory bus: every address in 0x0000-0xFFFF resolves to
// exactly one registered peripheral by floor lookup over the peripherals' unit bases.
package bus

import (
	"errors"
	"fmt"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/memory"
	"github.com/retroenv/retrogolib/log"
)

const (
	// AddrBootUnmap is the one-shot register that replaces the boot ROM with the cartridge.
	AddrBootUnmap uint16 = 0xFF50

	bootROMSize   = 0x100
	cartShadowKey = 0x0100
)

var (
	// ErrUnmapped is returned by Validate for an address without an owner.
	ErrUnmapped = errors.New("address has no owner")
	// ErrBootROMSize is returned for boot images that are not 256 bytes.
	ErrBootROMSize = errors.New("boot ROM must be 256 bytes")
)

type Bus struct {
	logger *log.Logger
	owners memory.AddressMap[memory.Peripheral]
	all    []memory.Peripheral

	// self holds the units the bus owns directly: the boot ROM and the unmap register.
	self       *memory.Block
	unmap      *memory.Unit
	cart       memory.Peripheral
	bootMapped bool
}

// New creates a bus. A non-nil boot image is mapped at 0x0000 until the first write
// to 0xFF50.
func New(logger *log.Logger, boot []byte) (*Bus, error) {
	b := &Bus{logger: logger, self: &memory.Block{}}
	b.unmap = memory.NewRegister(AddrBootUnmap, 0).OnWrite(b.onUnmap)
	if err := b.self.Add(b.unmap); err != nil {
		return nil, err
	}
	if boot != nil {
		if len(boot) != bootROMSize {
			return nil, fmt.Errorf("%w: got %d", ErrBootROMSize, len(boot))
		}
		img := make([]byte, bootROMSize)
		copy(img, boot)
		if err := b.self.Add(memory.NewROM(0x0000, img)); err != nil {
			return nil, err
		}
		b.bootMapped = true
	}
	if err := b.Register(b.self); err != nil {
		return nil, err
	}
	return b, nil
}

// Register publishes every unit of p by its base address. The peripheral owning
// address 0 is treated as the cartridge.
func (b *Bus) Register(p memory.Peripheral) error {
	for _, u := range p.Units() {
		base := u.Base()
		if base == 0 && p != memory.Peripheral(b.self) {
			b.cart = p
			if b.bootMapped {
				base = cartShadowKey
			}
		}
		if err := b.owners.Insert(base, p); err != nil {
			return fmt.Errorf("registering unit %04X: %w", u.Base(), err)
		}
	}
	b.all = append(b.all, p)
	return nil
}

func (b *Bus) onUnmap(_ uint16, value byte) (byte, bool) {
	if b.bootMapped && b.cart != nil {
		b.owners.Replace(0x0000, b.cart)
		b.bootMapped = false
		b.logger.Debug("boot ROM unmapped", log.Hex("value", value))
	}
	return value, true
}

// BootMapped reports whether the boot ROM still owns address 0.
func (b *Bus) BootMapped() bool { return b.bootMapped }

func (b *Bus) owner(addr uint16) memory.Peripheral {
	p, _, ok := b.owners.Lookup(addr)
	if !ok {
		panic(fmt.Sprintf("bus: %v: %04X", ErrUnmapped, addr))
	}
	return p
}

func (b *Bus) Read(addr uint16) byte { return b.owner(addr).Read(addr) }

func (b *Bus) Write(addr uint16, value byte) { b.owner(addr).Write(addr, value) }

// Units returns the units of every registered peripheral.
func (b *Bus) Units() []*memory.Unit {
	var out []*memory.Unit
	for _, p := range b.all {
		out = append(out, p.Units()...)
	}
	return out
}

// Validate checks that every address resolves to a peripheral with a unit covering it.
func (b *Bus) Validate() error {
	for a := 0; a <= 0xFFFF; a++ {
		addr := uint16(a)
		p, _, ok := b.owners.Lookup(addr)
		if !ok {
			return fmt.Errorf("%w: %04X", ErrUnmapped, addr)
		}
		if !covers(p, addr) {
			return fmt.Errorf("%w: %04X not inside any unit of its peripheral", ErrUnmapped, addr)
		}
	}
	return nil
}

func covers(p memory.Peripheral, addr uint16) bool {
	for _, u := range p.Units() {
		if u.Contains(addr) {
			return true
		}
	}
	return false
}
