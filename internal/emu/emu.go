// Package emu builds the machine: it creates every component once, maps them on the
// bus and drives them in lock-step from the CPU's cycle counts.
package emu

import (
	"context"
	"fmt"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/apu"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/bus"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/cart"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/interrupt"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/joypad"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/memory"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/ppu"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/ram"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/serial"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/timer"
	"github.com/retroenv/retrogolib/log"
)

// Buttons is the held state of every key, as sampled by a frontend.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) held(k joypad.Button) bool {
	switch k {
	case joypad.Right:
		return b.Right
	case joypad.Left:
		return b.Left
	case joypad.Up:
		return b.Up
	case joypad.Down:
		return b.Down
	case joypad.A:
		return b.A
	case joypad.B:
		return b.B
	case joypad.Select:
		return b.Select
	default:
		return b.Start
	}
}

// Set changes the held state of k.
func (b *Buttons) Set(k joypad.Button, on bool) {
	switch k {
	case joypad.Right:
		b.Right = on
	case joypad.Left:
		b.Left = on
	case joypad.Up:
		b.Up = on
	case joypad.Down:
		b.Down = on
	case joypad.A:
		b.A = on
	case joypad.B:
		b.B = on
	case joypad.Select:
		b.Select = on
	default:
		b.Start = on
	}
}

type Machine struct {
	cfg    Config
	rom    []byte
	logger *log.Logger

	irq    *interrupt.Controller
	bus    *bus.Bus
	cpu    *cpu.CPU
	cart   *cart.Cartridge
	ram    *ram.RAM
	lcd    *ppu.LCD
	ppu    *ppu.PPU
	timer  *timer.Timer
	joypad *joypad.Joypad
	serial *serial.Serial
	apu    *apu.APU

	buttons    Buttons
	frameClock int
	frames     uint64
}

// New builds a machine around rom. Configuration problems (bad cartridge type, bad
// boot image, an address without an owner) are returned here and never at run time.
func New(cfg Config, rom []byte) (*Machine, error) {
	cfg.Defaults()
	m := &Machine{cfg: cfg, rom: rom, logger: cfg.Logger}
	if err := m.build(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Machine) build() error {
	if err := cpu.CheckTables(); err != nil {
		return err
	}
	c, err := cart.New(m.rom, m.logger)
	if err != nil {
		return fmt.Errorf("loading cartridge: %w", err)
	}
	b, err := bus.New(m.logger, m.cfg.BootROM)
	if err != nil {
		return fmt.Errorf("creating bus: %w", err)
	}

	irq := interrupt.New()
	lcd := ppu.NewLCD(irq.Line(interrupt.LCDStat))
	p := ppu.New(lcd, irq.Line(interrupt.VBlank), m.logger)

	m.irq, m.bus, m.cart, m.lcd, m.ppu = irq, b, c, lcd, p
	m.ram = ram.New()
	m.timer = timer.New(irq.Line(interrupt.Timer))
	m.joypad = joypad.New(irq.Line(interrupt.Joypad))
	m.serial = serial.New(m.cfg.Serial, irq.Line(interrupt.Serial), m.logger)
	m.apu = apu.New()

	for _, per := range []memory.Peripheral{c, irq, m.ram, lcd, p, m.timer, m.joypad, m.serial, m.apu} {
		if err := b.Register(per); err != nil {
			return fmt.Errorf("mapping peripherals: %w", err)
		}
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("validating address map: %w", err)
	}
	p.SetDMAHandler(m.dma)

	m.cpu = cpu.New(b, irq, m.logger)
	if m.cfg.Trace {
		m.cpu.SetTrace(func(pc, opcode uint16, in cpu.Instruction) {
			m.logger.Debug("exec", log.Hex("pc", pc), log.Hex("opcode", opcode), log.String("op", in.Mnemonic))
		})
	}
	if m.cfg.BootROM == nil {
		m.cpu.ResetNoBoot()
		m.applyDMGPostBootIO()
	}
	m.buttons = Buttons{}
	m.frameClock = 0
	m.frames = 0

	m.logger.Debug("machine ready",
		log.String("title", c.Header.Title),
		log.String("boot", fmt.Sprint(m.cfg.BootROM != nil)))
	return nil
}

// Reset rebuilds every component from the loaded ROM, as a power cycle would.
// Cartridge RAM survives, as a battery would keep it.
func (m *Machine) Reset() error {
	saved := append([]byte(nil), m.CartRAM()...)
	if err := m.build(); err != nil {
		return err
	}
	copy(m.CartRAM(), saved)
	return nil
}

// dma copies 160 bytes from value<<8 into object memory. It runs as the write hook
// of 0xFF46 and completes instantly.
func (m *Machine) dma(_ uint16, value byte) (byte, bool) {
	src := uint16(value) << 8
	oam := m.ppu.OAM()
	for i := range oam {
		oam[i] = m.bus.Read(src + uint16(i))
	}
	return value, true
}

// applyDMGPostBootIO leaves the registers the way the boot ROM hands them over, so
// ROMs can start from 0x0100 with the LCD on.
func (m *Machine) applyDMGPostBootIO() {
	b := m.bus
	b.Write(joypad.AddrP1, 0xCF)
	b.Write(timer.AddrTIMA, 0x00)
	b.Write(timer.AddrTMA, 0x00)
	b.Write(timer.AddrTAC, 0x00)
	b.Write(apu.AddrNR52, 0x80) // power first, the other sound registers ignore writes while off
	b.Write(apu.AddrNR50, 0x77)
	b.Write(apu.AddrNR51, 0xF3)
	b.Write(ppu.AddrLCDC, 0x91)
	b.Write(ppu.AddrSCY, 0x00)
	b.Write(ppu.AddrSCX, 0x00)
	b.Write(ppu.AddrLYC, 0x00)
	b.Write(ppu.AddrBGP, 0xFC)
	b.Write(ppu.AddrOBP0, 0xFF)
	b.Write(ppu.AddrOBP1, 0xFF)
	b.Write(ppu.AddrWY, 0x00)
	b.Write(ppu.AddrWX, 0x00)
	b.Write(interrupt.AddrIE, 0x00)
	b.Write(bus.AddrBootUnmap, 0x01)
}

// Step executes one instruction and advances the timer and PPU by the same number of
// cycles, which it returns.
func (m *Machine) Step() int {
	cycles := m.cpu.Step()
	m.timer.Tick(cycles)
	m.ppu.Tick(cycles)
	m.frameClock += cycles
	return cycles
}

// StepFrame runs one frame's worth of cycles. The overshoot of the last instruction is
// carried into the next frame.
func (m *Machine) StepFrame() {
	for m.frameClock < ppu.FrameCycles {
		m.Step()
	}
	m.frameClock -= ppu.FrameCycles
	m.frames++
}

// RunFrames runs n frames, calling each (if non-nil) before every frame. It stops
// early when ctx is done or each fails.
func (m *Machine) RunFrames(ctx context.Context, n int, each func(frame int) error) error {
	for i := range n {
		if err := ctx.Err(); err != nil {
			return err
		}
		if each != nil {
			if err := each(i); err != nil {
				return err
			}
		}
		m.StepFrame()
	}
	return nil
}

// Press delivers a key-down event.
func (m *Machine) Press(b joypad.Button) { m.joypad.Press(b) }

// Release delivers a key-up event.
func (m *Machine) Release(b joypad.Button) { m.joypad.Release(b) }

// SetButtons turns a sampled key state into press and release events for the keys
// that changed since the last call.
func (m *Machine) SetButtons(b Buttons) {
	for k := joypad.Right; k <= joypad.Start; k++ {
		was, now := m.buttons.held(k), b.held(k)
		switch {
		case now && !was:
			m.joypad.Press(k)
		case was && !now:
			m.joypad.Release(k)
		}
	}
	m.buttons = b
}

// Framebuffer returns the last frame as packed RGBA, 160x144.
func (m *Machine) Framebuffer() []byte { return m.ppu.Framebuffer() }

// Frames returns the number of completed StepFrame calls.
func (m *Machine) Frames() uint64 { return m.frames }

// CartRAM exposes the external cartridge RAM for battery saves.
func (m *Machine) CartRAM() []byte { return m.cart.RAM() }

// Header returns the decoded cartridge header.
func (m *Machine) Header() *cart.Header { return m.cart.Header }

func (m *Machine) CPU() *cpu.CPU                     { return m.cpu }
func (m *Machine) PPU() *ppu.PPU                     { return m.ppu }
func (m *Machine) Bus() *bus.Bus                     { return m.bus }
func (m *Machine) Interrupts() *interrupt.Controller { return m.irq }
