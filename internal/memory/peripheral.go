package memory

import "fmt"

// Peripheral owns a set of memory-mapped units and answers bus accesses for them.
type Peripheral interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
	Units() []*Unit
}

// Block is a Peripheral assembled from units. Most hardware components embed one.
type Block struct {
	units AddressMap[*Unit]
	list  []*Unit
}

// NewBlock builds a block from units. Overlapping units are a configuration error.
func NewBlock(units ...*Unit) (*Block, error) {
	b := &Block{}
	for _, u := range units {
		if err := b.Add(u); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// MustBlock is NewBlock for fixed hardware layouts that cannot overlap.
func MustBlock(units ...*Unit) *Block {
	b, err := NewBlock(units...)
	if err != nil {
		panic(err)
	}
	return b
}

// Add maps u into the block.
func (b *Block) Add(u *Unit) error {
	if prev, _, ok := b.units.Lookup(u.Base()); ok && prev.Contains(u.Base()) {
		return fmt.Errorf("%w: %04X inside unit at %04X", ErrOverlap, u.Base(), prev.Base())
	}
	last := u.Base() + uint16(u.Size()-1)
	if next, _, ok := b.units.Lookup(last); ok && next.Base() > u.Base() {
		return fmt.Errorf("%w: unit at %04X runs into %04X", ErrOverlap, u.Base(), next.Base())
	}
	if err := b.units.Insert(u.Base(), u); err != nil {
		return err
	}
	b.list = append(b.list, u)
	return nil
}

func (b *Block) unit(addr uint16) *Unit {
	u, _, ok := b.units.Lookup(addr)
	if !ok {
		panic(fmt.Sprintf("memory: no unit owns %04X", addr))
	}
	return u
}

// Read delegates to the unit owning addr.
func (b *Block) Read(addr uint16) byte { return b.unit(addr).Read(addr) }

// Write delegates to the unit owning addr.
func (b *Block) Write(addr uint16, value byte) { b.unit(addr).Write(addr, value) }

// Units returns every unit in insertion order.
func (b *Block) Units() []*Unit { return b.list }
