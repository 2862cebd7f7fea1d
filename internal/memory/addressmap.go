package memory

import (
	"errors"
	"fmt"
	"sort"
)

// ErrOverlap is returned when two entries share a base address.
var ErrOverlap = errors.New("address already mapped")

// AddressMap is an ordered base address -> value mapping resolved by floor lookup:
// an address belongs to the entry with the greatest base not above it.
type AddressMap[T any] struct {
	bases  []uint16
	values []T
}

// Insert adds v at base. Bases must be unique.
func (m *AddressMap[T]) Insert(base uint16, v T) error {
	i := sort.Search(len(m.bases), func(i int) bool { return m.bases[i] >= base })
	if i < len(m.bases) && m.bases[i] == base {
		return fmt.Errorf("%w: %04X", ErrOverlap, base)
	}
	m.bases = append(m.bases, 0)
	m.values = append(m.values, v)
	copy(m.bases[i+1:], m.bases[i:])
	copy(m.values[i+1:], m.values[i:])
	m.bases[i] = base
	m.values[i] = v
	return nil
}

// Replace overwrites the value stored at an existing base.
func (m *AddressMap[T]) Replace(base uint16, v T) bool {
	i := sort.Search(len(m.bases), func(i int) bool { return m.bases[i] >= base })
	if i == len(m.bases) || m.bases[i] != base {
		return false
	}
	m.values[i] = v
	return true
}

// Lookup returns the entry owning addr and its base.
func (m *AddressMap[T]) Lookup(addr uint16) (T, uint16, bool) {
	i := sort.Search(len(m.bases), func(i int) bool { return m.bases[i] > addr })
	if i == 0 {
		var zero T
		return zero, 0, false
	}
	return m.values[i-1], m.bases[i-1], true
}

// Len returns the number of entries.
func (m *AddressMap[T]) Len() int { return len(m.bases) }
