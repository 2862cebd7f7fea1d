package emu

import (
	"io"

	"github.com/retroenv/retrogolib/log"
)

// Config contains settings that affect emulation behavior.
type Config struct {
	BootROM []byte    // 256-byte DMG boot image; nil starts at 0x0100 with post-boot state
	Serial  io.Writer // receives bytes sent over the link port
	Logger  *log.Logger
	Trace   bool // log every executed instruction at debug level
}

// Defaults fills missing fields.
func (c *Config) Defaults() {
	if c.Logger == nil {
		c.Logger = log.NewWithConfig(log.DefaultConfig())
	}
	if c.Serial == nil {
		c.Serial = io.Discard
	}
}
