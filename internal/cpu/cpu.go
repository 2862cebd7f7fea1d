// Package cpu implements the SM83 core: fetch, table decode, execute, halt and
// interrupt dispatch. Step returns the T-cycles consumed so the rest of the machine
// can advance in lock-step.
package cpu

import (
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/interrupt"
	"github.com/retroenv/retrogolib/log"
)

// Bus is the address space the CPU executes against.
type Bus interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
}

// TraceFunc receives every decoded instruction before it executes.
type TraceFunc func(pc uint16, opcode uint16, in Instruction)

const (
	prefixCB = 0xCB

	interruptCycles = 20
	unknownCycles   = 4
	haltedCycles    = 1
)

type CPU struct {
	// 8-bit registers
	A, F byte
	B, C byte
	D, E byte
	H, L byte

	SP uint16
	PC uint16

	halted bool
	// EI enables IME after the instruction that follows it.
	imeDelay int

	bus    Bus
	irq    *interrupt.Controller
	logger *log.Logger
	trace  TraceFunc

	reported [256]bool
}

// New creates a CPU with SP=0xFFFE and PC=0x0000, the state the boot ROM starts from.
func New(b Bus, irq *interrupt.Controller, logger *log.Logger) *CPU {
	return &CPU{bus: b, irq: irq, logger: logger, SP: 0xFFFE}
}

// SetTrace installs a per-instruction callback; nil disables tracing.
func (c *CPU) SetTrace(fn TraceFunc) { c.trace = fn }

// ResetNoBoot sets registers to the DMG post-boot state.
func (c *CPU) ResetNoBoot() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.PC = 0x0100
	c.irq.IME = false
	c.halted = false
	c.imeDelay = 0
}

// Halted reports whether the CPU is waiting for an interrupt.
func (c *CPU) Halted() bool { return c.halted }

// IME reports the master interrupt enable.
func (c *CPU) IME() bool { return c.irq.IME }

// Flags helpers
const (
	flagZ byte = 1 << 7
	flagN byte = 1 << 6
	flagH byte = 1 << 5
	flagC byte = 1 << 4
)

func (c *CPU) setZNHC(z, n, h, carry bool) {
	var f byte
	if z {
		f |= flagZ
	}
	if n {
		f |= flagN
	}
	if h {
		f |= flagH
	}
	if carry {
		f |= flagC
	}
	c.F = f
}

func (c *CPU) flag(mask byte) bool { return c.F&mask != 0 }

func (c *CPU) carryBit() byte {
	if c.flag(flagC) {
		return 1
	}
	return 0
}

func add8(a, b byte) (res byte, z, n, h, cy bool) {
	r := uint16(a) + uint16(b)
	res = byte(r)
	return res, res == 0, false, (a&0x0F)+(b&0x0F) > 0x0F, r > 0xFF
}

func adc8(a, b, carryIn byte) (res byte, z, n, h, cy bool) {
	r := uint16(a) + uint16(b) + uint16(carryIn)
	res = byte(r)
	return res, res == 0, false, (a&0x0F)+(b&0x0F)+carryIn > 0x0F, r > 0xFF
}

func sub8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a - b
	return res, res == 0, true, a&0x0F < b&0x0F, a < b
}

func sbc8(a, b, carryIn byte) (res byte, z, n, h, cy bool) {
	r := int16(a) - int16(b) - int16(carryIn)
	res = byte(r)
	return res, res == 0, true, int16(a&0x0F)-int16(b&0x0F)-int16(carryIn) < 0, r < 0
}

func and8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a & b
	return res, res == 0, false, true, false
}

func xor8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a ^ b
	return res, res == 0, false, false, false
}

func or8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a | b
	return res, res == 0, false, false, false
}

func (c *CPU) read8(addr uint16) byte     { return c.bus.Read(addr) }
func (c *CPU) write8(addr uint16, v byte) { c.bus.Write(addr, v) }

func (c *CPU) read16(addr uint16) uint16 {
	lo := uint16(c.read8(addr))
	hi := uint16(c.read8(addr + 1))
	return lo | hi<<8
}

func (c *CPU) write16(addr uint16, v uint16) {
	c.write8(addr, byte(v))
	c.write8(addr+1, byte(v>>8))
}

func (c *CPU) getAF() uint16  { return uint16(c.A)<<8 | uint16(c.F&0xF0) }
func (c *CPU) setAF(v uint16) { c.A = byte(v >> 8); c.F = byte(v) & 0xF0 }
func (c *CPU) getBC() uint16  { return uint16(c.B)<<8 | uint16(c.C) }
func (c *CPU) setBC(v uint16) { c.B = byte(v >> 8); c.C = byte(v) }
func (c *CPU) getDE() uint16  { return uint16(c.D)<<8 | uint16(c.E) }
func (c *CPU) setDE(v uint16) { c.D = byte(v >> 8); c.E = byte(v) }
func (c *CPU) getHL() uint16  { return uint16(c.H)<<8 | uint16(c.L) }
func (c *CPU) setHL(v uint16) { c.H = byte(v >> 8); c.L = byte(v) }

// push stores the high byte at the higher address so pop reads the low byte first.
func (c *CPU) push16(v uint16) {
	c.SP--
	c.write8(c.SP, byte(v>>8))
	c.SP--
	c.write8(c.SP, byte(v))
}

func (c *CPU) pop16() uint16 {
	lo := uint16(c.read8(c.SP))
	c.SP++
	hi := uint16(c.read8(c.SP))
	c.SP++
	return lo | hi<<8
}

func (c *CPU) call(addr uint16) {
	c.push16(c.PC)
	c.PC = addr
}

func (c *CPU) ret() { c.PC = c.pop16() }

// Step runs one instruction (or one halted idle slot) and services a pending
// interrupt afterwards. It returns the T-cycles consumed.
func (c *CPU) Step() int {
	if c.irq.HasPending() {
		c.halted = false
	}
	if c.halted {
		return haltedCycles
	}

	cycles := c.execute()

	if c.imeDelay > 0 {
		c.imeDelay--
		if c.imeDelay == 0 {
			c.irq.IME = true
		}
	}

	if c.irq.IME && c.irq.HasPending() {
		c.irq.IME = false
		vec, _ := c.irq.PendingVector()
		c.call(vec)
		cycles += interruptCycles
	}
	return cycles
}

// fetch returns the opcode at PC; prefixed opcodes are returned as 0xCBxx.
func (c *CPU) fetch() uint16 {
	op := c.read8(c.PC)
	if op == prefixCB {
		return prefixCB<<8 | uint16(c.read8(c.PC+1))
	}
	return uint16(op)
}

// decode looks up the descriptor and reads the immediate operand, if any.
func (c *CPU) decode(opcode uint16) (Instruction, uint16, bool) {
	in, ok := Lookup(opcode)
	if !ok {
		return in, 0, false
	}
	var operand uint16
	if opcode>>8 != prefixCB {
		switch in.Length {
		case 2:
			operand = uint16(c.read8(c.PC + 1))
		case 3:
			operand = c.read16(c.PC + 1)
		}
	}
	return in, operand, true
}

func (c *CPU) execute() int {
	pc := c.PC
	opcode := c.fetch()
	in, operand, ok := c.decode(opcode)
	if !ok {
		c.reportUnknown(pc, byte(opcode))
		c.PC++
		return unknownCycles
	}
	if c.trace != nil {
		c.trace(pc, opcode, in)
	}
	c.PC += uint16(in.Length)
	return c.run(in, operand)
}

func (c *CPU) reportUnknown(pc uint16, op byte) {
	if c.reported[op] {
		return
	}
	c.reported[op] = true
	c.logger.Warn("Unknown opcode, skipping", log.Hex("pc", pc), log.Hex("opcode", op))
}
