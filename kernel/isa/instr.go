package isa

import (
	"encoding/binary"
	"fmt"
)

// InstrSize is the number of bytes an encoded instruction occupies.
const InstrSize = 16

// Op is an opcode.
type Op uint8

// Supported opcodes. Branch and jump targets are absolute addresses.
const (
	OpInvalid Op = iota
	OpLi         // rd = imm
	OpMv         // rd = rs1
	OpAddi       // rd = rs1 + imm
	OpAdd        // rd = rs1 + rs2
	OpSub        // rd = rs1 - rs2
	OpMul        // rd = rs1 * rs2
	OpLd         // rd = mem64[rs1 + imm]
	OpSd         // mem64[rs1 + imm] = rs2
	OpLbu        // rd = mem8[rs1 + imm]
	OpSb         // mem8[rs1 + imm] = rs2
	OpBeq        // if rs1 == rs2 { pc = imm }
	OpBne        // if rs1 != rs2 { pc = imm }
	OpBlt        // if int(rs1) < int(rs2) { pc = imm }
	OpJ          // pc = imm
	OpEcall      // trap into the kernel
	numOps
)

var opNames = [numOps]string{
	"invalid", "li", "mv", "addi", "add", "sub", "mul",
	"ld", "sd", "lbu", "sb", "beq", "bne", "blt", "j", "ecall",
}

func (o Op) String() string {
	if o >= numOps {
		return fmt.Sprintf("op(%d)", uint8(o))
	}

	return opNames[o]
}

// Instr is a decoded instruction.
type Instr struct {
	Op  Op
	Rd  Reg
	Rs1 Reg
	Rs2 Reg
	Imm int64
}

// Encode writes the instruction into buf, which must hold InstrSize bytes.
func (in Instr) Encode(buf []byte) {
	buf[0] = byte(in.Op)
	buf[1] = byte(in.Rd)
	buf[2] = byte(in.Rs1)
	buf[3] = byte(in.Rs2)
	clear(buf[4:8])
	binary.LittleEndian.PutUint64(buf[8:16], uint64(in.Imm))
}

// Decode parses an instruction. Unknown opcodes and out-of-range registers
// are illegal instructions.
func Decode(buf []byte) (Instr, error) {
	if len(buf) < InstrSize {
		return Instr{}, fmt.Errorf("short instruction of %d bytes", len(buf))
	}

	in := Instr{
		Op:  Op(buf[0]),
		Rd:  Reg(buf[1]),
		Rs1: Reg(buf[2]),
		Rs2: Reg(buf[3]),
		Imm: int64(binary.LittleEndian.Uint64(buf[8:16])),
	}

	if in.Op == OpInvalid || in.Op >= numOps {
		return Instr{}, fmt.Errorf("illegal opcode %d", buf[0])
	}

	if in.Rd >= NumRegs || in.Rs1 >= NumRegs || in.Rs2 >= NumRegs {
		return Instr{}, fmt.Errorf("illegal register in %s", in.Op)
	}

	return in, nil
}

func (in Instr) String() string {
	return fmt.Sprintf("%s x%d, x%d, x%d, %d",
		in.Op, in.Rd, in.Rs1, in.Rs2, in.Imm)
}
