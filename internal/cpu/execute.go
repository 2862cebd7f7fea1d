package cpu

// reg8 reads register index r; regHL reads memory at HL.
func (c *CPU) reg8(r uint8) byte {
	switch r {
	case regB:
		return c.B
	case regC:
		return c.C
	case regD:
		return c.D
	case regE:
		return c.E
	case regH:
		return c.H
	case regL:
		return c.L
	case regHL:
		return c.read8(c.getHL())
	default:
		return c.A
	}
}

func (c *CPU) setReg8(r uint8, v byte) {
	switch r {
	case regB:
		c.B = v
	case regC:
		c.C = v
	case regD:
		c.D = v
	case regE:
		c.E = v
	case regH:
		c.H = v
	case regL:
		c.L = v
	case regHL:
		c.write8(c.getHL(), v)
	default:
		c.A = v
	}
}

// pair reads BC, DE, HL or SP.
func (c *CPU) pair(p uint8) uint16 {
	switch p {
	case 0:
		return c.getBC()
	case 1:
		return c.getDE()
	case 2:
		return c.getHL()
	default:
		return c.SP
	}
}

func (c *CPU) setPair(p uint8, v uint16) {
	switch p {
	case 0:
		c.setBC(v)
	case 1:
		c.setDE(v)
	case 2:
		c.setHL(v)
	default:
		c.SP = v
	}
}

// indirect returns the address for (BC), (DE), (HL+) and (HL-), applying the HL step.
func (c *CPU) indirect(p uint8) uint16 {
	switch p {
	case 0:
		return c.getBC()
	case 1:
		return c.getDE()
	case 2:
		hl := c.getHL()
		c.setHL(hl + 1)
		return hl
	default:
		hl := c.getHL()
		c.setHL(hl - 1)
		return hl
	}
}

func (c *CPU) condition(cc uint8) bool {
	switch cc {
	case 0:
		return !c.flag(flagZ)
	case 1:
		return c.flag(flagZ)
	case 2:
		return !c.flag(flagC)
	default:
		return c.flag(flagC)
	}
}

func (c *CPU) alu(kind uint8, v byte) {
	var (
		r          byte
		z, n, h, y bool
	)
	switch kind {
	case 0:
		r, z, n, h, y = add8(c.A, v)
	case 1:
		r, z, n, h, y = adc8(c.A, v, c.carryBit())
	case 2:
		r, z, n, h, y = sub8(c.A, v)
	case 3:
		r, z, n, h, y = sbc8(c.A, v, c.carryBit())
	case 4:
		r, z, n, h, y = and8(c.A, v)
	case 5:
		r, z, n, h, y = xor8(c.A, v)
	case 6:
		r, z, n, h, y = or8(c.A, v)
	default:
		_, z, n, h, y = sub8(c.A, v)
		c.setZNHC(z, n, h, y)
		return
	}
	c.A = r
	c.setZNHC(z, n, h, y)
}

// addSigned returns SP plus a signed offset with flags from the low-byte addition.
func (c *CPU) addSigned(e byte) uint16 {
	sp := c.SP
	res := sp + uint16(int8(e))
	c.setZNHC(false, false, (sp&0x0F)+uint16(e&0x0F) > 0x0F, (sp&0xFF)+uint16(e) > 0xFF)
	return res
}

func (c *CPU) run(in Instruction, operand uint16) int {
	cycles := int(in.Cycles)
	n8 := byte(operand)

	switch in.Op {
	case opNOP, opSTOP:

	case opLDrr:
		c.setReg8(in.X, c.reg8(in.Y))
	case opLDrn:
		c.setReg8(in.X, n8)
	case opLDrrnn:
		c.setPair(in.X, operand)
	case opLDindA:
		c.write8(c.indirect(in.X), c.A)
	case opLDAind:
		c.A = c.read8(c.indirect(in.X))
	case opLDnnSP:
		c.write16(operand, c.SP)
	case opLDHnA:
		c.write8(0xFF00|uint16(n8), c.A)
	case opLDHAn:
		c.A = c.read8(0xFF00 | uint16(n8))
	case opLDHCA:
		c.write8(0xFF00|uint16(c.C), c.A)
	case opLDHAC:
		c.A = c.read8(0xFF00 | uint16(c.C))
	case opLDnnA:
		c.write8(operand, c.A)
	case opLDAnn:
		c.A = c.read8(operand)
	case opLDSPHL:
		c.SP = c.getHL()
	case opLDHLSPe:
		c.setHL(c.addSigned(n8))
	case opADDSPe:
		c.SP = c.addSigned(n8)

	case opINCrr:
		c.setPair(in.X, c.pair(in.X)+1)
	case opDECrr:
		c.setPair(in.X, c.pair(in.X)-1)
	case opADDHLrr:
		hl, v := c.getHL(), c.pair(in.X)
		sum := uint32(hl) + uint32(v)
		c.F = c.F&flagZ | boolFlag((hl&0x0FFF)+(v&0x0FFF) > 0x0FFF, flagH) | boolFlag(sum > 0xFFFF, flagC)
		c.setHL(uint16(sum))

	case opINCr:
		old := c.reg8(in.X)
		v := old + 1
		c.setReg8(in.X, v)
		c.setZNHC(v == 0, false, old&0x0F == 0x0F, c.flag(flagC))
	case opDECr:
		old := c.reg8(in.X)
		v := old - 1
		c.setReg8(in.X, v)
		c.setZNHC(v == 0, true, old&0x0F == 0x00, c.flag(flagC))

	case opALUr:
		c.alu(in.X, c.reg8(in.Y))
	case opALUn:
		c.alu(in.X, n8)

	case opRLCA:
		cval := c.A >> 7
		c.A = c.A<<1 | cval
		c.setZNHC(false, false, false, cval == 1)
	case opRRCA:
		cval := c.A & 1
		c.A = c.A>>1 | cval<<7
		c.setZNHC(false, false, false, cval == 1)
	case opRLA:
		cval := c.A >> 7
		c.A = c.A<<1 | c.carryBit()
		c.setZNHC(false, false, false, cval == 1)
	case opRRA:
		cval := c.A & 1
		c.A = c.A>>1 | c.carryBit()<<7
		c.setZNHC(false, false, false, cval == 1)
	case opDAA:
		c.daa()
	case opCPL:
		c.A = ^c.A
		c.F = c.F&(flagZ|flagC) | flagN | flagH
	case opSCF:
		c.F = c.F&flagZ | flagC
	case opCCF:
		c.F = c.F&flagZ | (c.F^flagC)&flagC

	case opJR:
		c.PC += uint16(int8(n8))
	case opJRcc:
		if c.condition(in.X) {
			c.PC += uint16(int8(n8))
			cycles += int(in.Taken)
		}
	case opJP:
		c.PC = operand
	case opJPcc:
		if c.condition(in.X) {
			c.PC = operand
			cycles += int(in.Taken)
		}
	case opJPHL:
		c.PC = c.getHL()
	case opCALL:
		c.call(operand)
	case opCALLcc:
		if c.condition(in.X) {
			c.call(operand)
			cycles += int(in.Taken)
		}
	case opRET:
		c.ret()
	case opRETcc:
		if c.condition(in.X) {
			c.ret()
			cycles += int(in.Taken)
		}
	case opRETI:
		c.ret()
		c.irq.IME = true
		c.imeDelay = 0
	case opRST:
		c.call(uint16(in.X) * 8)

	case opPUSH:
		if in.X == 3 {
			c.push16(c.getAF())
		} else {
			c.push16(c.pair(in.X))
		}
	case opPOP:
		if in.X == 3 {
			c.setAF(c.pop16())
		} else {
			c.setPair(in.X, c.pop16())
		}

	case opHALT:
		c.halted = true
	case opDI:
		c.irq.IME = false
		c.imeDelay = 0
	case opEI:
		if !c.irq.IME && c.imeDelay == 0 {
			c.imeDelay = 2
		}

	case opROT:
		c.setReg8(in.Y, c.rotate(in.X, c.reg8(in.Y)))
	case opBIT:
		z := c.reg8(in.Y)&(1<<in.X) == 0
		c.F = c.F&flagC | flagH | boolFlag(z, flagZ)
	case opRES:
		c.setReg8(in.Y, c.reg8(in.Y)&^(1<<in.X))
	case opSET:
		c.setReg8(in.Y, c.reg8(in.Y)|1<<in.X)
	}
	return cycles
}

func boolFlag(set bool, mask byte) byte {
	if set {
		return mask
	}
	return 0
}

func (c *CPU) daa() {
	a := c.A
	cf := c.flag(flagC)
	if !c.flag(flagN) {
		if cf || a > 0x99 {
			a += 0x60
			cf = true
		}
		if c.flag(flagH) || a&0x0F > 0x09 {
			a += 0x06
		}
	} else {
		if cf {
			a -= 0x60
		}
		if c.flag(flagH) {
			a -= 0x06
		}
	}
	c.A = a
	c.setZNHC(a == 0, c.flag(flagN), false, cf)
}

// rotate implements the CB-prefixed rotate, shift and swap group.
func (c *CPU) rotate(kind uint8, v byte) byte {
	var out byte
	var carry bool
	switch kind {
	case 0: // RLC
		carry = v&0x80 != 0
		out = v<<1 | v>>7
	case 1: // RRC
		carry = v&1 != 0
		out = v>>1 | v<<7
	case 2: // RL
		carry = v&0x80 != 0
		out = v<<1 | c.carryBit()
	case 3: // RR
		carry = v&1 != 0
		out = v>>1 | c.carryBit()<<7
	case 4: // SLA
		carry = v&0x80 != 0
		out = v << 1
	case 5: // SRA
		carry = v&1 != 0
		out = v>>1 | v&0x80
	case 6: // SWAP
		out = v<<4 | v>>4
	default: // SRL
		carry = v&1 != 0
		out = v >> 1
	}
	c.setZNHC(out == 0, false, false, carry)
	return out
}
