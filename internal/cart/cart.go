// Package cart decodes cartridge headers and builds the cartridge peripheral: the ROM
// at 0x0000-0x7FFF and the external RAM window at 0xA000-0xBFFF.
package cart

import (
	"errors"
	"fmt"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/memory"
	"github.com/retroenv/retrogolib/log"
)

const (
	bankSize = 0x4000
	romSize  = 2 * bankSize

	RAMBase uint16 = 0xA000
	RAMSize        = 0x2000
)

var (
	// ErrUnsupportedType is returned for cartridge types without a mapper implementation.
	ErrUnsupportedType = errors.New("unsupported cartridge type")
	// ErrROMTooSmall is returned for images shorter than the header.
	ErrROMTooSmall = errors.New("ROM too small to contain header")
)

// Cartridge is the peripheral owning the cartridge address ranges.
type Cartridge struct {
	*memory.Block

	Header *Header
	ram    *memory.Unit
}

// New parses the header and builds the mapper named by the cartridge type byte.
func New(rom []byte, logger *log.Logger) (*Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}
	if !HeaderChecksumOK(rom) {
		logger.Warn("cartridge header checksum mismatch", log.Hex("stored", h.HeaderChecksum))
	}

	var c *Cartridge
	switch h.CartType {
	case 0x00, 0x08, 0x09:
		c, err = newROMOnly(rom)
	case 0x01, 0x02, 0x03:
		c, err = newMBC1(rom)
	default:
		return nil, fmt.Errorf("%w: %02X (%s)", ErrUnsupportedType, h.CartType, h.CartTypeStr)
	}
	if err != nil {
		return nil, err
	}
	c.Header = h

	logger.Debug("cartridge loaded",
		log.String("title", h.Title),
		log.String("type", h.CartTypeStr),
		log.Int("rom", len(rom)))
	return c, nil
}

// Battery reports whether the cartridge type keeps its RAM powered.
func (h *Header) Battery() bool {
	switch h.CartType {
	case 0x03, 0x09:
		return true
	default:
		return false
	}
}

// RAM exposes the external RAM contents.
func (c *Cartridge) RAM() []byte { return c.ram.Bytes() }

// padded returns a copy of rom at least n bytes long, filled with 0xFF past the image.
func padded(rom []byte, n int) []byte {
	out := make([]byte, max(n, len(rom)))
	copy(out, rom)
	for i := len(rom); i < len(out); i++ {
		out[i] = 0xFF
	}
	return out
}
