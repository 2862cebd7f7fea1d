package cpu

import (
	"testing"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/interrupt"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

// flatBus is 64 KiB of plain RAM with IF/IE routed to the interrupt controller.
type flatBus struct {
	mem [0x10000]byte
	irq *interrupt.Controller
}

func (b *flatBus) Read(addr uint16) byte {
	if addr == interrupt.AddrIF || addr == interrupt.AddrIE {
		return b.irq.Read(addr)
	}
	return b.mem[addr]
}

func (b *flatBus) Write(addr uint16, v byte) {
	if addr == interrupt.AddrIF || addr == interrupt.AddrIE {
		b.irq.Write(addr, v)
		return
	}
	b.mem[addr] = v
}

func newTestCPU(t *testing.T, code ...byte) (*CPU, *flatBus) {
	t.Helper()
	b := &flatBus{irq: interrupt.New()}
	copy(b.mem[:], code)
	return New(b, b.irq, log.NewTestLogger(t)), b
}

func TestCPU_NopAndPC(t *testing.T) {
	c, _ := newTestCPU(t, 0x00)
	if cycles := c.Step(); cycles != 4 {
		t.Fatalf("NOP cycles got %d want 4", cycles)
	}
	if c.PC != 1 {
		t.Fatalf("PC after NOP got %#04x want 0x0001", c.PC)
	}
}

func TestCPU_TablesComplete(t *testing.T) {
	assert.NoError(t, CheckTables())
	for _, op := range illegal {
		_, ok := Lookup(uint16(op))
		assert.False(t, ok)
	}
	in, ok := Lookup(0xCB7E)
	assert.True(t, ok)
	assert.Equal(t, uint8(12), in.Cycles)
	assert.Equal(t, "BIT 7,(HL)", in.Mnemonic)
}

func TestCPU_IncrementOverflowFlags(t *testing.T) {
	c, _ := newTestCPU(t, 0xC6, 0x01) // ADD A,1
	c.A = 0xFF
	c.Step()
	assert.Equal(t, byte(0x00), c.A)
	assert.True(t, c.flag(flagZ))
	assert.True(t, c.flag(flagH))
	assert.True(t, c.flag(flagC))
	assert.False(t, c.flag(flagN))
}

func TestCPU_LoadAndXor(t *testing.T) {
	c, _ := newTestCPU(t, 0x3E, 0x12, 0xAF)
	c.Step()
	if c.A != 0x12 {
		t.Fatalf("A after LD got %02x want 12", c.A)
	}
	c.Step()
	if c.A != 0 || !c.flag(flagZ) {
		t.Fatalf("XOR A got A=%02x F=%02x", c.A, c.F)
	}
}

func TestCPU_AbsoluteLoadStore(t *testing.T) {
	c, b := newTestCPU(t, 0x3E, 0x77, 0xEA, 0x00, 0xC0, 0x3E, 0x00, 0xFA, 0x00, 0xC0)
	c.Step()
	c.Step()
	if b.mem[0xC000] != 0x77 {
		t.Fatalf("C000 got %02x want 77", b.mem[0xC000])
	}
	c.Step()
	c.Step()
	if c.A != 0x77 {
		t.Fatalf("A after LD A,(C000) got %02x want 77", c.A)
	}
}

func TestCPU_HighPageLoads(t *testing.T) {
	c, b := newTestCPU(t,
		0x3E, 0x5A, // LD A,5A
		0xE0, 0x80, // LDH (80),A
		0x0E, 0x81, // LD C,81
		0xE2,       // LD (C),A
		0xF0, 0x80, // LDH A,(80)
	)
	c.Step()
	c.Step()
	c.Step()
	c.Step()
	assert.Equal(t, byte(0x5A), b.mem[0xFF80])
	assert.Equal(t, byte(0x5A), b.mem[0xFF81])
	c.A = 0
	assert.Equal(t, 12, c.Step())
	assert.Equal(t, byte(0x5A), c.A)
}

func TestCPU_JumpAndRelativeLoop(t *testing.T) {
	c, b := newTestCPU(t, 0xC3, 0x10, 0x00)
	b.mem[0x10], b.mem[0x11] = 0x18, 0xFE // JR -2
	if cycles := c.Step(); cycles != 16 || c.PC != 0x0010 {
		t.Fatalf("JP cycles=%d PC=%#04x want 16 0x0010", cycles, c.PC)
	}
	if cycles := c.Step(); cycles != 12 || c.PC != 0x0010 {
		t.Fatalf("JR -2 cycles=%d PC=%#04x want 12 0x0010", cycles, c.PC)
	}
}

func TestCPU_IncKeepsCarry(t *testing.T) {
	c, _ := newTestCPU(t, 0x04, 0x04)
	c.B = 0x0F
	c.F = flagC
	c.Step()
	if c.B != 0x10 || !c.flag(flagH) || !c.flag(flagC) {
		t.Fatalf("INC B got B=%02x F=%02x", c.B, c.F)
	}
	c.B = 0xFF
	c.Step()
	if c.B != 0 || !c.flag(flagZ) {
		t.Fatalf("INC B wrap got B=%02x F=%02x", c.B, c.F)
	}
}

func TestCPU_LoadIncHalt(t *testing.T) {
	c, _ := newTestCPU(t, 0x06, 0x01, 0x04, 0x76) // LD B,1; INC B; HALT
	c.Step()
	c.Step()
	c.Step()
	assert.Equal(t, byte(2), c.B)
	assert.True(t, c.Halted())
	assert.Equal(t, uint16(4), c.PC)
}

func TestCPU_CallPushesReturnAddress(t *testing.T) {
	c, b := newTestCPU(t)
	c.PC = 0x0100
	c.SP = 0xFFFE
	c.call(0x1234)
	assert.Equal(t, byte(0x01), b.mem[0xFFFD])
	assert.Equal(t, byte(0x00), b.mem[0xFFFC])
	assert.Equal(t, uint16(0xFFFC), c.SP)
	assert.Equal(t, uint16(0x1234), c.PC)

	c.ret()
	assert.Equal(t, uint16(0x0100), c.PC)
	assert.Equal(t, uint16(0xFFFE), c.SP)
}

func TestCPU_CallAndReturn(t *testing.T) {
	c, b := newTestCPU(t, 0xCD, 0x05, 0x00)
	b.mem[0x0005] = 0xC9
	if cycles := c.Step(); cycles != 24 || c.PC != 0x0005 {
		t.Fatalf("CALL got cyc=%d PC=%04x", cycles, c.PC)
	}
	if cycles := c.Step(); cycles != 16 || c.PC != 0x0003 {
		t.Fatalf("RET got cyc=%d PC=%04x", cycles, c.PC)
	}
}

func TestCPU_HaltedStepIsOneCycle(t *testing.T) {
	c, _ := newTestCPU(t, 0x76, 0x00)
	c.Step()
	assert.True(t, c.Halted())
	for range 3 {
		assert.Equal(t, 1, c.Step())
	}
	assert.Equal(t, uint16(1), c.PC)
}

func TestCPU_PendingWakesHaltWithoutIME(t *testing.T) {
	c, b := newTestCPU(t, 0x76, 0x00)
	c.Step()
	b.irq.Write(interrupt.AddrIE, byte(interrupt.Timer))
	b.irq.Raise(interrupt.Timer)

	cycles := c.Step()
	assert.False(t, c.Halted())
	assert.Equal(t, 4, cycles)
	assert.Equal(t, uint16(2), c.PC)
	// IME off: the request stays latched.
	assert.Equal(t, byte(interrupt.Timer), b.irq.Requested())
}

func TestCPU_InterruptServicedAfterInstruction(t *testing.T) {
	c, b := newTestCPU(t)
	c.PC = 0x0100
	b.irq.IME = true
	b.irq.Write(interrupt.AddrIE, 0x1F)
	b.irq.Raise(interrupt.Timer)
	b.irq.Raise(interrupt.VBlank)

	cycles := c.Step()
	assert.Equal(t, 4+interruptCycles, cycles)
	assert.Equal(t, uint16(0x0040), c.PC)
	assert.False(t, c.IME())
	assert.Equal(t, byte(interrupt.Timer), b.irq.Requested())
	// return address is the instruction after the NOP
	assert.Equal(t, uint16(0x0101), c.read16(c.SP))
}

func TestCPU_EIEnablesAfterNextInstruction(t *testing.T) {
	c, b := newTestCPU(t, 0xFB, 0x00, 0x00) // EI; NOP; NOP
	b.irq.Write(interrupt.AddrIE, byte(interrupt.Joypad))
	b.irq.Raise(interrupt.Joypad)

	c.Step()
	assert.False(t, c.IME())
	assert.Equal(t, uint16(1), c.PC)

	cycles := c.Step()
	assert.Equal(t, 24, cycles)
	assert.Equal(t, uint16(0x0060), c.PC)
}

func TestCPU_DICancelsPendingEI(t *testing.T) {
	c, _ := newTestCPU(t, 0xFB, 0xF3, 0x00)
	c.Step()
	c.Step()
	c.Step()
	assert.False(t, c.IME())
}

func TestCPU_RETIEnablesImmediately(t *testing.T) {
	c, b := newTestCPU(t)
	b.mem[0x0040] = 0xD9 // RETI
	c.PC = 0x0100
	b.irq.IME = true
	b.irq.Write(interrupt.AddrIE, byte(interrupt.VBlank))
	b.irq.Raise(interrupt.VBlank)

	c.Step()
	assert.Equal(t, uint16(0x0040), c.PC)
	cycles := c.Step()
	assert.Equal(t, 16, cycles)
	assert.Equal(t, uint16(0x0101), c.PC)
	assert.True(t, c.IME())
}

func TestCPU_UnknownOpcodeIsSkipped(t *testing.T) {
	c, _ := newTestCPU(t, 0xD3, 0xD3, 0x00)
	assert.Equal(t, unknownCycles, c.Step())
	assert.Equal(t, uint16(1), c.PC)
	assert.Equal(t, unknownCycles, c.Step())
	assert.Equal(t, 4, c.Step())
	assert.True(t, c.reported[0xD3])
}

func TestCPU_DecimalAdjust(t *testing.T) {
	c, b := newTestCPU(t, 0x3E, 0x45, 0xC6, 0x38, 0x27)
	c.Step()
	c.Step()
	c.Step()
	if c.A != 0x83 || c.F != 0 {
		t.Fatalf("DAA after add got A=%02X F=%02X want 83 00", c.A, c.F)
	}

	copy(b.mem[0x10:], []byte{0x3E, 0x45, 0xD6, 0x06, 0x27})
	c.PC = 0x10
	c.Step()
	c.Step()
	c.Step()
	if c.A != 0x39 || !c.flag(flagN) {
		t.Fatalf("DAA after sub got A=%02X F=%02X", c.A, c.F)
	}
}

func TestCPU_StopSkipsPadding(t *testing.T) {
	c, _ := newTestCPU(t, 0x10, 0x00, 0x00)
	assert.Equal(t, 4, c.Step())
	assert.Equal(t, uint16(2), c.PC)
	c.Step()
	assert.Equal(t, uint16(3), c.PC)
}

func TestCPU_PrefixedOps(t *testing.T) {
	c, b := newTestCPU(t,
		0x21, 0x00, 0xC0, // LD HL,C000
		0x36, 0x80,       // LD (HL),80
		0xCB, 0x7E,       // BIT 7,(HL)
		0xCB, 0xBE,       // RES 7,(HL)
		0xCB, 0xC6,       // SET 0,(HL)
		0xCB, 0x00,       // RLC B
		0xCB, 0x37,       // SWAP A
	)
	c.Step()
	c.Step()

	tests := []struct {
		name   string
		setup  func()
		cycles int
		check  func() bool
	}{
		{"BIT 7,(HL)", nil, 12, func() bool { return !c.flag(flagZ) && c.flag(flagH) }},
		{"RES 7,(HL)", nil, 16, func() bool { return b.mem[0xC000] == 0x00 }},
		{"SET 0,(HL)", nil, 16, func() bool { return b.mem[0xC000] == 0x01 }},
		{"RLC B", func() { c.B = 0x80 }, 8, func() bool { return c.B == 0x01 && c.flag(flagC) }},
		{"SWAP A", func() { c.A = 0xF1 }, 8, func() bool { return c.A == 0x1F && c.F == 0 }},
	}
	for _, tt := range tests {
		if tt.setup != nil {
			tt.setup()
		}
		cycles := c.Step()
		if cycles != tt.cycles || !tt.check() {
			t.Fatalf("%s got cyc=%d F=%02X", tt.name, cycles, c.F)
		}
	}
}

func TestCPU_AddHLFlags(t *testing.T) {
	tests := []struct {
		hl, bc   uint16
		fIn      byte
		want     uint16
		wantFlag byte
	}{
		{0x0FFF, 0x0001, flagZ, 0x1000, flagZ | flagH},
		{0xFFFF, 0x0001, 0, 0x0000, flagH | flagC},
		{0x1234, 0x0101, flagN, 0x1335, 0},
	}
	for _, tt := range tests {
		c, _ := newTestCPU(t, 0x09)
		c.setHL(tt.hl)
		c.setBC(tt.bc)
		c.F = tt.fIn
		assert.Equal(t, 8, c.Step())
		assert.Equal(t, tt.want, c.getHL())
		assert.Equal(t, tt.wantFlag, c.F)
	}
}

func TestCPU_WideIncDecKeepFlags(t *testing.T) {
	code := []byte{0x03, 0x0B, 0x23, 0x2B, 0x13, 0x1B, 0x33, 0x3B}
	c, _ := newTestCPU(t, code...)
	c.F = 0xF0
	for range code {
		assert.Equal(t, 8, c.Step())
		assert.Equal(t, byte(0xF0), c.F)
	}
	assert.Equal(t, uint16(0xFFFE), c.SP)
}

func TestCPU_ConditionalCycles(t *testing.T) {
	tests := []struct {
		name   string
		code   []byte
		f      byte
		cycles int
		pc     uint16
	}{
		{"JR NZ taken", []byte{0x20, 0x02}, 0, 12, 0x0004},
		{"JR NZ not taken", []byte{0x20, 0x02}, flagZ, 8, 0x0002},
		{"JP NC taken", []byte{0xD2, 0x34, 0x12}, 0, 16, 0x1234},
		{"JP NC not taken", []byte{0xD2, 0x34, 0x12}, flagC, 12, 0x0003},
		{"CALL NZ taken", []byte{0xC4, 0x00, 0x40}, 0, 24, 0x4000},
		{"CALL NZ not taken", []byte{0xC4, 0x00, 0x40}, flagZ, 12, 0x0003},
		{"RET C not taken", []byte{0xD8}, 0, 8, 0x0001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCPU(t, tt.code...)
			c.F = tt.f
			assert.Equal(t, tt.cycles, c.Step())
			assert.Equal(t, tt.pc, c.PC)
		})
	}

	c, _ := newTestCPU(t, 0xD8)
	c.SP = 0xC000
	c.push16(0x2345)
	c.F = flagC
	assert.Equal(t, 20, c.Step())
	assert.Equal(t, uint16(0x2345), c.PC)
}

func TestCPU_CarryArithmetic(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		fIn  byte
		a    byte
		f    byte
	}{
		{"ADC half carry", []byte{0x3E, 0x0F, 0xCE, 0x00}, flagC, 0x10, flagH},
		{"SBC half borrow", []byte{0x3E, 0x10, 0xDE, 0x01}, 0, 0x0F, flagN | flagH},
		{"SBC borrow", []byte{0x3E, 0x00, 0xDE, 0x01}, 0, 0xFF, flagN | flagH | flagC},
		{"CP equal", []byte{0x3E, 0x42, 0xFE, 0x42}, 0, 0x42, flagZ | flagN},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCPU(t, tt.code...)
			c.F = tt.fIn
			c.Step()
			c.Step()
			assert.Equal(t, tt.a, c.A)
			assert.Equal(t, tt.f, c.F)
		})
	}
}

func TestCPU_StackPointerOffsetFlags(t *testing.T) {
	c, _ := newTestCPU(t,
		0x31, 0x0F, 0xFF, // LD SP,FF0F
		0xF8, 0xFF,       // LD HL,SP-1
		0xE8, 0x01,       // ADD SP,+1
		0xE8, 0xFE,       // ADD SP,-2
	)
	c.Step()
	assert.Equal(t, 12, c.Step())
	if c.getHL() != 0xFF0E || c.F != flagH|flagC {
		t.Fatalf("LD HL,SP-1 got HL=%04X F=%02X", c.getHL(), c.F)
	}
	assert.Equal(t, 16, c.Step())
	if c.SP != 0xFF10 || c.F != flagH {
		t.Fatalf("ADD SP,+1 got SP=%04X F=%02X", c.SP, c.F)
	}
	c.Step()
	if c.SP != 0xFF0E || c.F != flagC {
		t.Fatalf("ADD SP,-2 got SP=%04X F=%02X", c.SP, c.F)
	}
}

func TestCPU_PopAFMasksLowNibble(t *testing.T) {
	c, b := newTestCPU(t, 0xF5, 0xF1)
	c.A, c.F = 0x12, 0xF0
	c.Step()
	b.mem[c.SP] = 0x3F
	b.mem[c.SP+1] = 0x99
	c.Step()
	assert.Equal(t, byte(0x99), c.A)
	assert.Equal(t, byte(0x30), c.F)
}

func TestCPU_AccumulatorRotatesClearZ(t *testing.T) {
	for _, op := range []byte{0x07, 0x0F, 0x17, 0x1F} {
		c, _ := newTestCPU(t, op)
		c.A = 0
		c.F = flagZ
		c.Step()
		if c.A != 0 || c.flag(flagZ) {
			t.Fatalf("opcode %02X got A=%02X F=%02X", op, c.A, c.F)
		}
	}
	c, _ := newTestCPU(t, 0xCB, 0x07) // RLC A sets Z
	c.Step()
	assert.True(t, c.flag(flagZ))
}

func TestCPU_CarryAndComplementFlags(t *testing.T) {
	c, _ := newTestCPU(t, 0x37, 0x3F, 0x2F) // SCF; CCF; CPL
	c.F = flagZ | flagN | flagH
	c.Step()
	assert.Equal(t, flagZ|flagC, c.F)
	c.Step()
	assert.Equal(t, flagZ, c.F)
	c.Step()
	assert.Equal(t, byte(0xFF), c.A)
	assert.Equal(t, flagZ|flagN|flagH, c.F)
}

func TestCPU_HLIncrementLoads(t *testing.T) {
	c, b := newTestCPU(t,
		0x21, 0x00, 0xC0, // LD HL,C000
		0x22,             // LD (HL+),A
		0x32,             // LD (HL-),A
		0x2A,             // LD A,(HL+)
		0x46,             // LD B,(HL)
	)
	c.A = 0xAB
	c.Step()
	c.Step()
	assert.Equal(t, uint16(0xC001), c.getHL())
	c.Step()
	assert.Equal(t, uint16(0xC000), c.getHL())
	assert.Equal(t, byte(0xAB), b.mem[0xC001])
	b.mem[0xC000] = 0x11
	b.mem[0xC001] = 0x22
	c.Step()
	assert.Equal(t, byte(0x11), c.A)
	assert.Equal(t, 8, c.Step())
	assert.Equal(t, byte(0x22), c.B)
}

func TestCPU_ResetNoBoot(t *testing.T) {
	c, _ := newTestCPU(t)
	c.ResetNoBoot()
	assert.Equal(t, uint16(0x0100), c.PC)
	assert.Equal(t, uint16(0xFFFE), c.SP)
	assert.Equal(t, uint16(0x01B0), c.getAF())
}

func TestCPU_TraceSeesDecodedInstruction(t *testing.T) {
	c, _ := newTestCPU(t, 0x3E, 0x01, 0xCB, 0x37)
	var seen []string
	c.SetTrace(func(pc, opcode uint16, in Instruction) {
		seen = append(seen, in.Mnemonic)
	})
	c.Step()
	c.Step()
	assert.Len(t, seen, 2)
	assert.Equal(t, "LD A,d8", seen[0])
	assert.Equal(t, "SWAP A", seen[1])
}
