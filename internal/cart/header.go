package cart

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	headerEnd = 0x014F

	addrLogo     = 0x0104
	addrTitle    = 0x0134
	addrCartType = 0x0147
)

var nintendoLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E, 0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

type Header struct {
	Title          string // trimmed ASCII
	CGBFlag        byte   // 0x0143
	NewLicensee    string // 0x0144-0x0145, used when OldLicensee is 0x33
	SGBFlag        byte
	CartType       byte // 0x0147
	ROMSizeCode    byte
	RAMSizeCode    byte
	Destination    byte
	OldLicensee    byte
	ROMVersion     byte
	HeaderChecksum byte   // 0x014D
	GlobalChecksum uint16 // 0x014E-0x014F, big-endian

	ROMSizeBytes int
	ROMBanks     int
	RAMSizeBytes int
	CartTypeStr  string
}

// ParseHeader decodes the cartridge header at 0x0100-0x014F.
func ParseHeader(rom []byte) (*Header, error) {
	if len(rom) < headerEnd+1 {
		return nil, fmt.Errorf("%w: %d bytes", ErrROMTooSmall, len(rom))
	}

	// Title region overlaps the CGB flag on newer carts.
	title := strings.TrimRight(string(rom[addrTitle:0x0144]), "\x00")

	h := &Header{
		Title:          title,
		CGBFlag:        rom[0x0143],
		NewLicensee:    string(rom[0x0144:0x0146]),
		SGBFlag:        rom[0x0146],
		CartType:       rom[addrCartType],
		ROMSizeCode:    rom[0x0148],
		RAMSizeCode:    rom[0x0149],
		Destination:    rom[0x014A],
		OldLicensee:    rom[0x014B],
		ROMVersion:     rom[0x014C],
		HeaderChecksum: rom[0x014D],
		GlobalChecksum: binary.BigEndian.Uint16(rom[0x014E:0x0150]),
	}
	h.ROMSizeBytes, h.ROMBanks = decodeROMSize(h.ROMSizeCode)
	h.RAMSizeBytes = decodeRAMSize(h.RAMSizeCode)
	h.CartTypeStr = cartTypeString(h.CartType)
	return h, nil
}

// HeaderChecksumOK runs the boot ROM's checksum over 0x0134-0x014C.
func HeaderChecksumOK(rom []byte) bool {
	if len(rom) < 0x014E {
		return false
	}
	var sum byte
	for addr := addrTitle; addr <= 0x014C; addr++ {
		sum = sum - rom[addr] - 1
	}
	return sum == rom[0x014D]
}

// LogoOK reports whether the ROM carries the logo the boot ROM compares against.
// Homebrew and test ROMs often leave it out.
func LogoOK(rom []byte) bool {
	if len(rom) < addrLogo+len(nintendoLogo) {
		return false
	}
	return [48]byte(rom[addrLogo:addrLogo+len(nintendoLogo)]) == nintendoLogo
}

func decodeROMSize(code byte) (size, banks int) {
	switch code {
	case 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08:
		banks = 2 << code
		return banks * bankSize, banks
	case 0x52:
		return 72 * bankSize, 72
	case 0x53:
		return 80 * bankSize, 80
	case 0x54:
		return 96 * bankSize, 96
	default:
		return 0, 0
	}
}

func decodeRAMSize(code byte) int {
	switch code {
	case 0x02:
		return 8 * 1024
	case 0x03:
		return 32 * 1024
	case 0x04:
		return 128 * 1024
	case 0x05:
		return 64 * 1024
	default:
		return 0
	}
}

func cartTypeString(code byte) string {
	switch code {
	case 0x00:
		return "ROM ONLY"
	case 0x08, 0x09:
		return "ROM+RAM"
	case 0x01, 0x02, 0x03:
		return "MBC1 (variants)"
	case 0x05, 0x06:
		return "MBC2 (variants)"
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		return "MBC3 (variants)"
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		return "MBC5 (variants)"
	default:
		return "Other/unknown"
	}
}
