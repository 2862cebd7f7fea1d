// Package memory provides the memory-mapped building blocks every peripheral is made of:
// registers and byte ranges with optional read/write interception, and the floor-lookup
// address map used to resolve an address to its owner.
package memory

import "fmt"

// ReadHook is called before a read returns. It receives the stored value and returns
// the value reported to the reader.
type ReadHook func(addr uint16, stored byte) byte

// WriteHook is called before a write is stored. It returns the value to store and
// whether the store should happen at all.
type WriteHook func(addr uint16, value byte) (byte, bool)

// Unit is the smallest addressable piece of the address space: a single register or a
// contiguous byte range.
type Unit struct {
	base     uint16
	data     []byte
	readOnly bool

	onRead  ReadHook
	onWrite WriteHook
}

// NewRegister returns a one-byte writable unit at addr.
func NewRegister(addr uint16, initial byte) *Unit {
	return &Unit{base: addr, data: []byte{initial}}
}

// NewRange returns a zero-filled writable unit of size bytes starting at base.
func NewRange(base uint16, size int) *Unit {
	checkExtent(base, size)
	return &Unit{base: base, data: make([]byte, size)}
}

// NewROM returns a read-only unit backed by data. The slice is not copied.
func NewROM(base uint16, data []byte) *Unit {
	checkExtent(base, len(data))
	return &Unit{base: base, data: data, readOnly: true}
}

func checkExtent(base uint16, size int) {
	if size <= 0 || int(base)+size > 0x10000 {
		panic(fmt.Sprintf("memory: unit at %04X with size %d exceeds address space", base, size))
	}
}

// Base returns the first address owned by the unit.
func (u *Unit) Base() uint16 { return u.base }

// Size returns the number of addresses owned by the unit.
func (u *Unit) Size() int { return len(u.data) }

// ReadOnly reports whether stores to the unit are dropped.
func (u *Unit) ReadOnly() bool { return u.readOnly }

// Contains reports whether addr falls inside the unit.
func (u *Unit) Contains(addr uint16) bool {
	return addr >= u.base && int(addr-u.base) < len(u.data)
}

// OnRead installs the read hook, replacing any previous one.
func (u *Unit) OnRead(h ReadHook) *Unit {
	u.onRead = h
	return u
}

// OnWrite installs the write hook, replacing any previous one.
func (u *Unit) OnWrite(h WriteHook) *Unit {
	u.onWrite = h
	return u
}

func (u *Unit) offset(addr uint16) int {
	off := int(addr) - int(u.base)
	if off < 0 || off >= len(u.data) {
		panic(fmt.Sprintf("memory: address %04X outside unit %04X+%d", addr, u.base, len(u.data)))
	}
	return off
}

// Read returns the value at addr as seen by the CPU.
func (u *Unit) Read(addr uint16) byte {
	v := u.data[u.offset(addr)]
	if u.onRead != nil {
		v = u.onRead(addr, v)
	}
	return v
}

// Write stores value at addr as the CPU would. Read-only units still run their write
// hook and then drop the value.
func (u *Unit) Write(addr uint16, value byte) {
	off := u.offset(addr)
	if u.onWrite != nil {
		var keep bool
		value, keep = u.onWrite(addr, value)
		if !keep {
			return
		}
	}
	if u.readOnly {
		return
	}
	u.data[off] = value
}

// Value returns the first stored byte without running hooks.
func (u *Unit) Value() byte { return u.data[0] }

// Set stores v as the first byte without running hooks or honoring read-only.
func (u *Unit) Set(v byte) { u.data[0] = v }

// Bytes exposes the backing storage to the owning peripheral.
func (u *Unit) Bytes() []byte { return u.data }
