package cpu

import (
	"errors"
	"fmt"
)

// ErrTableGap is reported when a documented opcode has no descriptor.
var ErrTableGap = errors.New("instruction table gap")

// Op identifies the operation an instruction descriptor executes.
type Op uint8

const (
	opInvalid Op = iota
	opNOP
	opPrefix
	opLDrr
	opLDrn
	opLDrrnn
	opLDindA  // X=(BC),(DE),(HL+),(HL-)
	opLDAind  // X as opLDindA
	opLDnnSP  // LD (a16),SP
	opINCrr   // X=pair
	opDECrr   // X=pair
	opADDHLrr // X=pair
	opINCr    // X=reg
	opDECr    // X=reg
	opRLCA
	opRRCA
	opRLA
	opRRA
	opDAA
	opCPL
	opSCF
	opCCF
	opJR
	opJRcc // X=cond
	opSTOP
	opHALT
	opALUr // X=alu Y=src
	opALUn // X=alu
	opRET
	opRETcc // X=cond
	opRETI
	opPOP  // X=stack pair
	opPUSH // X=stack pair
	opJP
	opJPcc // X=cond
	opJPHL
	opCALL
	opCALLcc // X=cond
	opRST    // X=vector/8
	opLDHnA
	opLDHAn
	opLDHCA
	opLDHAC
	opLDnnA
	opLDAnn
	opADDSPe
	opLDHLSPe
	opLDSPHL
	opDI
	opEI
	opROT // X=kind Y=reg
	opBIT // X=bit Y=reg
	opRES // X=bit Y=reg
	opSET // X=bit Y=reg
)

// Instruction is the immutable descriptor of one opcode. X and Y carry the operands
// embedded in the opcode bits: register index, register pair, condition, ALU or
// rotate kind, bit number, or RST vector/8.
type Instruction struct {
	Op       Op
	Length   uint8 // bytes including opcode (and prefix)
	Cycles   uint8 // T-cycles, branch not taken
	Taken    uint8 // extra T-cycles when a conditional branch is taken
	X, Y     uint8
	Mnemonic string
}

// Register indices used by X/Y operands. regHL addresses memory at HL.
const (
	regB = iota
	regC
	regD
	regE
	regH
	regL
	regHL
	regA
)

var (
	regNames   = [8]string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}
	pairNames  = [4]string{"BC", "DE", "HL", "SP"}
	stackNames = [4]string{"BC", "DE", "HL", "AF"}
	condNames  = [4]string{"NZ", "Z", "NC", "C"}
	aluNames   = [8]string{"ADD A,", "ADC A,", "SUB ", "SBC A,", "AND ", "XOR ", "OR ", "CP "}
	rotNames   = [8]string{"RLC", "RRC", "RL", "RR", "SLA", "SRA", "SWAP", "SRL"}
	indNames   = [4]string{"(BC)", "(DE)", "(HL+)", "(HL-)"}
)

// illegal base opcodes; they decode to the unknown-opcode path.
var illegal = [...]byte{0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD}

var baseTable, cbTable = buildTables()

func buildTables() (base, cb [256]Instruction) {
	in := func(op Op, length, cycles uint8, name string) Instruction {
		return Instruction{Op: op, Length: length, Cycles: cycles, Mnemonic: name}
	}

	base[0x00] = in(opNOP, 1, 4, "NOP")
	base[0x08] = in(opLDnnSP, 3, 20, "LD (a16),SP")
	base[0x10] = in(opSTOP, 2, 4, "STOP")
	base[0x18] = in(opJR, 2, 12, "JR r8")
	base[0x07] = in(opRLCA, 1, 4, "RLCA")
	base[0x0F] = in(opRRCA, 1, 4, "RRCA")
	base[0x17] = in(opRLA, 1, 4, "RLA")
	base[0x1F] = in(opRRA, 1, 4, "RRA")
	base[0x27] = in(opDAA, 1, 4, "DAA")
	base[0x2F] = in(opCPL, 1, 4, "CPL")
	base[0x37] = in(opSCF, 1, 4, "SCF")
	base[0x3F] = in(opCCF, 1, 4, "CCF")

	for p := uint8(0); p < 4; p++ {
		row := p << 4
		i := in(opLDrrnn, 3, 12, "LD "+pairNames[p]+",d16")
		i.X = p
		base[row|0x01] = i

		i = in(opLDindA, 1, 8, "LD "+indNames[p]+",A")
		i.X = p
		base[row|0x02] = i

		i = in(opINCrr, 1, 8, "INC "+pairNames[p])
		i.X = p
		base[row|0x03] = i

		i = in(opADDHLrr, 1, 8, "ADD HL,"+pairNames[p])
		i.X = p
		base[row|0x09] = i

		i = in(opLDAind, 1, 8, "LD A,"+indNames[p])
		i.X = p
		base[row|0x0A] = i

		i = in(opDECrr, 1, 8, "DEC "+pairNames[p])
		i.X = p
		base[row|0x0B] = i

		i = in(opJRcc, 2, 8, "JR "+condNames[p]+",r8")
		i.X, i.Taken = p, 4
		base[0x20|p<<3] = i

		i = in(opRETcc, 1, 8, "RET "+condNames[p])
		i.X, i.Taken = p, 12
		base[0xC0|p<<3] = i

		i = in(opJPcc, 3, 12, "JP "+condNames[p]+",a16")
		i.X, i.Taken = p, 4
		base[0xC2|p<<3] = i

		i = in(opCALLcc, 3, 12, "CALL "+condNames[p]+",a16")
		i.X, i.Taken = p, 12
		base[0xC4|p<<3] = i

		i = in(opPOP, 1, 12, "POP "+stackNames[p])
		i.X = p
		base[0xC1|row] = i

		i = in(opPUSH, 1, 16, "PUSH "+stackNames[p])
		i.X = p
		base[0xC5|row] = i
	}

	for r := uint8(0); r < 8; r++ {
		memOp := r == regHL
		cyc := func(reg, mem uint8) uint8 {
			if memOp {
				return mem
			}
			return reg
		}

		i := in(opINCr, 1, cyc(4, 12), "INC "+regNames[r])
		i.X = r
		base[r<<3|0x04] = i

		i = in(opDECr, 1, cyc(4, 12), "DEC "+regNames[r])
		i.X = r
		base[r<<3|0x05] = i

		i = in(opLDrn, 2, cyc(8, 12), "LD "+regNames[r]+",d8")
		i.X = r
		base[r<<3|0x06] = i

		i = in(opALUn, 2, 8, aluNames[r]+"d8")
		i.X = r
		base[0xC6|r<<3] = i

		i = in(opRST, 1, 16, fmt.Sprintf("RST %02XH", r*8))
		i.X = r
		base[0xC7|r<<3] = i

		for s := uint8(0); s < 8; s++ {
			c := uint8(4)
			if r == regHL || s == regHL {
				c = 8
			}
			ld := in(opLDrr, 1, c, "LD "+regNames[r]+","+regNames[s])
			ld.X, ld.Y = r, s
			base[0x40|r<<3|s] = ld

			alu := in(opALUr, 1, c, aluNames[r]+regNames[s])
			alu.X, alu.Y = r, s
			base[0x80|r<<3|s] = alu
		}
	}
	base[0x76] = in(opHALT, 1, 4, "HALT")

	base[0xC3] = in(opJP, 3, 16, "JP a16")
	base[0xC9] = in(opRET, 1, 16, "RET")
	base[0xCB] = in(opPrefix, 1, 4, "PREFIX CB")
	base[0xCD] = in(opCALL, 3, 24, "CALL a16")
	base[0xD9] = in(opRETI, 1, 16, "RETI")
	base[0xE0] = in(opLDHnA, 2, 12, "LDH (a8),A")
	base[0xF0] = in(opLDHAn, 2, 12, "LDH A,(a8)")
	base[0xE2] = in(opLDHCA, 1, 8, "LD (C),A")
	base[0xF2] = in(opLDHAC, 1, 8, "LD A,(C)")
	base[0xE8] = in(opADDSPe, 2, 16, "ADD SP,r8")
	base[0xF8] = in(opLDHLSPe, 2, 12, "LD HL,SP+r8")
	base[0xE9] = in(opJPHL, 1, 4, "JP (HL)")
	base[0xF9] = in(opLDSPHL, 1, 8, "LD SP,HL")
	base[0xEA] = in(opLDnnA, 3, 16, "LD (a16),A")
	base[0xFA] = in(opLDAnn, 3, 16, "LD A,(a16)")
	base[0xF3] = in(opDI, 1, 4, "DI")
	base[0xFB] = in(opEI, 1, 4, "EI")

	for op := 0; op < 256; op++ {
		group := uint8(op >> 6)
		y := uint8(op>>3) & 7
		r := uint8(op) & 7
		cycles := uint8(8)
		if r == regHL {
			cycles = 16
		}
		var i Instruction
		switch group {
		case 0:
			i = in(opROT, 2, cycles, rotNames[y]+" "+regNames[r])
		case 1:
			if r == regHL {
				cycles = 12
			}
			i = in(opBIT, 2, cycles, fmt.Sprintf("BIT %d,%s", y, regNames[r]))
		case 2:
			i = in(opRES, 2, cycles, fmt.Sprintf("RES %d,%s", y, regNames[r]))
		case 3:
			i = in(opSET, 2, cycles, fmt.Sprintf("SET %d,%s", y, regNames[r]))
		}
		i.X, i.Y = y, r
		cb[op] = i
	}
	return base, cb
}

func isIllegal(op byte) bool {
	for _, b := range illegal {
		if b == op {
			return true
		}
	}
	return false
}

// CheckTables reports the first documented opcode without a descriptor.
func CheckTables() error {
	for op := 0; op < 256; op++ {
		if baseTable[op].Op == opInvalid && !isIllegal(byte(op)) {
			return fmt.Errorf("%w: %02X", ErrTableGap, op)
		}
		if cbTable[op].Op == opInvalid {
			return fmt.Errorf("%w: CB %02X", ErrTableGap, op)
		}
	}
	return nil
}

// Lookup returns the descriptor for an opcode; extended opcodes are 0xCBxx.
func Lookup(opcode uint16) (Instruction, bool) {
	var in Instruction
	if opcode>>8 == 0xCB {
		in = cbTable[byte(opcode)]
	} else {
		in = baseTable[byte(opcode)]
	}
	return in, in.Op != opInvalid
}
