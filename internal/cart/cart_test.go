package cart

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func TestNewROMOnly(t *testing.T) {
	rom := buildROM("PLAIN", 0x00, 0x00, 0x00, 32*1024)
	c, err := New(rom, log.NewTestLogger(t))
	assert.NoError(t, err)
	assert.Equal(t, "PLAIN", c.Header.Title)

	assert.Equal(t, byte(1), c.Read(0x7FFF))
	c.Write(0x7FFF, 0x42)
	assert.Equal(t, byte(1), c.Read(0x7FFF))

	c.Write(0xA123, 0x42)
	assert.Equal(t, byte(0x42), c.Read(0xA123))

	var covered int
	for _, u := range c.Units() {
		covered += u.Size()
	}
	assert.Equal(t, 0x8000+RAMSize, covered)
}

func TestNewROMOnlyPadsShortImage(t *testing.T) {
	rom := buildROM("SHORT", 0x00, 0x00, 0x00, 0x200)
	c, err := New(rom, log.NewTestLogger(t))
	assert.NoError(t, err)
	assert.Equal(t, byte(0xFF), c.Read(0x4000))
}

func TestNewRAMVariantsAreROMOnly(t *testing.T) {
	for _, typ := range []byte{0x08, 0x09} {
		c, err := New(buildROM("RAM", typ, 0x00, 0x02, 32*1024), log.NewTestLogger(t))
		assert.NoError(t, err)
		c.Write(0xB000, 0x5A)
		assert.Equal(t, byte(0x5A), c.Read(0xB000))
	}
}

func TestNewRejectsUnsupportedType(t *testing.T) {
	for _, typ := range []byte{0x05, 0x13, 0x19, 0xFF} {
		_, err := New(buildROM("BAD", typ, 0x00, 0x00, 32*1024), log.NewTestLogger(t))
		assert.True(t, errors.Is(err, ErrUnsupportedType))
	}
}

func TestNewRejectsShortROM(t *testing.T) {
	_, err := New(make([]byte, 0x100), log.NewTestLogger(t))
	assert.True(t, errors.Is(err, ErrROMTooSmall))
}

func TestNewAcceptsBadChecksum(t *testing.T) {
	rom := buildROM("SUM", 0x00, 0x00, 0x00, 32*1024)
	rom[0x014D]++
	_, err := New(rom, log.NewTestLogger(t))
	assert.NoError(t, err)
}

func TestHeaderBattery(t *testing.T) {
	for typ, want := range map[byte]bool{0x00: false, 0x01: false, 0x03: true, 0x08: false, 0x09: true} {
		h, err := ParseHeader(buildROM("BAT", typ, 0x00, 0x02, 32*1024))
		assert.NoError(t, err)
		assert.Equal(t, want, h.Battery())
	}
}
