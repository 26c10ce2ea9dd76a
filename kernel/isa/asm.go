package isa

import "fmt"

const pageSize = 4096

// A Program is the assembled form of a user program. Text holds encoded
// instructions placed at TextBase; Data is placed at DataBase.
type Program struct {
	TextBase uint64
	Text     []byte
	DataBase uint64
	Data     []byte
	Entry    uint64
}

type fixupKind int

const (
	fixupText fixupKind = iota
	fixupData
)

type fixup struct {
	index int
	label string
	kind  fixupKind
}

// An Assembler collects instructions and data and resolves labels once the
// load address is known.
type Assembler struct {
	text       []Instr
	data       []byte
	textLabels map[string]int
	dataLabels map[string]int
	fixups     []fixup
	err        error
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		textLabels: make(map[string]int),
		dataLabels: make(map[string]int),
	}
}

// Label marks the position of the next instruction.
func (a *Assembler) Label(name string) *Assembler {
	if _, dup := a.textLabels[name]; dup {
		a.fail(fmt.Errorf("duplicate label %q", name))
	}

	a.textLabels[name] = len(a.text)

	return a
}

func (a *Assembler) emit(in Instr) *Assembler {
	a.text = append(a.text, in)
	return a
}

func (a *Assembler) emitTo(in Instr, label string, kind fixupKind) *Assembler {
	a.fixups = append(a.fixups, fixup{index: len(a.text), label: label, kind: kind})
	return a.emit(in)
}

func (a *Assembler) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

// Li loads an immediate.
func (a *Assembler) Li(rd Reg, imm int64) *Assembler {
	return a.emit(Instr{Op: OpLi, Rd: rd, Imm: imm})
}

// La loads the address of a data label.
func (a *Assembler) La(rd Reg, label string) *Assembler {
	return a.emitTo(Instr{Op: OpLi, Rd: rd}, label, fixupData)
}

// Mv copies a register.
func (a *Assembler) Mv(rd, rs Reg) *Assembler {
	return a.emit(Instr{Op: OpMv, Rd: rd, Rs1: rs})
}

// Addi adds an immediate.
func (a *Assembler) Addi(rd, rs Reg, imm int64) *Assembler {
	return a.emit(Instr{Op: OpAddi, Rd: rd, Rs1: rs, Imm: imm})
}

// Add adds two registers.
func (a *Assembler) Add(rd, rs1, rs2 Reg) *Assembler {
	return a.emit(Instr{Op: OpAdd, Rd: rd, Rs1: rs1, Rs2: rs2})
}

// Sub subtracts rs2 from rs1.
func (a *Assembler) Sub(rd, rs1, rs2 Reg) *Assembler {
	return a.emit(Instr{Op: OpSub, Rd: rd, Rs1: rs1, Rs2: rs2})
}

// Mul multiplies two registers.
func (a *Assembler) Mul(rd, rs1, rs2 Reg) *Assembler {
	return a.emit(Instr{Op: OpMul, Rd: rd, Rs1: rs1, Rs2: rs2})
}

// Ld loads a 64-bit word.
func (a *Assembler) Ld(rd, base Reg, off int64) *Assembler {
	return a.emit(Instr{Op: OpLd, Rd: rd, Rs1: base, Imm: off})
}

// Sd stores a 64-bit word.
func (a *Assembler) Sd(rs, base Reg, off int64) *Assembler {
	return a.emit(Instr{Op: OpSd, Rs1: base, Rs2: rs, Imm: off})
}

// Lbu loads a byte.
func (a *Assembler) Lbu(rd, base Reg, off int64) *Assembler {
	return a.emit(Instr{Op: OpLbu, Rd: rd, Rs1: base, Imm: off})
}

// Sb stores a byte.
func (a *Assembler) Sb(rs, base Reg, off int64) *Assembler {
	return a.emit(Instr{Op: OpSb, Rs1: base, Rs2: rs, Imm: off})
}

// Beq branches to label if the registers are equal.
func (a *Assembler) Beq(rs1, rs2 Reg, label string) *Assembler {
	return a.emitTo(Instr{Op: OpBeq, Rs1: rs1, Rs2: rs2}, label, fixupText)
}

// Bne branches to label if the registers differ.
func (a *Assembler) Bne(rs1, rs2 Reg, label string) *Assembler {
	return a.emitTo(Instr{Op: OpBne, Rs1: rs1, Rs2: rs2}, label, fixupText)
}

// Blt branches to label if rs1 < rs2 as signed numbers.
func (a *Assembler) Blt(rs1, rs2 Reg, label string) *Assembler {
	return a.emitTo(Instr{Op: OpBlt, Rs1: rs1, Rs2: rs2}, label, fixupText)
}

// J jumps to label.
func (a *Assembler) J(label string) *Assembler {
	return a.emitTo(Instr{Op: OpJ}, label, fixupText)
}

// Ecall traps into the kernel.
func (a *Assembler) Ecall() *Assembler {
	return a.emit(Instr{Op: OpEcall})
}

// Syscall loads the call number into a7 and traps. Arguments must already
// be in a0 to a5.
func (a *Assembler) Syscall(id uint64) *Assembler {
	return a.Li(A7, int64(id)).Ecall()
}

// Bytes places b in the data segment under label.
func (a *Assembler) Bytes(label string, b []byte) *Assembler {
	if _, dup := a.dataLabels[label]; dup {
		a.fail(fmt.Errorf("duplicate data label %q", label))
	}

	// Keep every object 8-byte aligned so that ld and sd work on it.
	for len(a.data)%8 != 0 {
		a.data = append(a.data, 0)
	}

	a.dataLabels[label] = len(a.data)
	a.data = append(a.data, b...)

	return a
}

// String places a NUL-terminated string in the data segment.
func (a *Assembler) String(label, s string) *Assembler {
	return a.Bytes(label, append([]byte(s), 0))
}

// Space reserves n zero bytes in the data segment.
func (a *Assembler) Space(label string, n int) *Assembler {
	return a.Bytes(label, make([]byte, n))
}

// Assemble lays the text out at base and the data at the first page after
// the text, and resolves all labels. The entry point is the "_start" label
// if present, otherwise base.
func (a *Assembler) Assemble(base uint64) (Program, error) {
	if a.err != nil {
		return Program{}, a.err
	}

	if base%pageSize != 0 {
		return Program{}, fmt.Errorf("text base 0x%x is not page aligned", base)
	}

	textSize := uint64(len(a.text) * InstrSize)
	p := Program{
		TextBase: base,
		Text:     make([]byte, textSize),
		DataBase: (base + textSize + pageSize - 1) &^ (pageSize - 1),
		Data:     append([]byte(nil), a.data...),
		Entry:    base,
	}

	text := append([]Instr(nil), a.text...)
	for _, f := range a.fixups {
		addr, err := a.resolve(f, p)
		if err != nil {
			return Program{}, err
		}

		text[f.index].Imm = int64(addr)
	}

	for i, in := range text {
		in.Encode(p.Text[i*InstrSize:])
	}

	if start, ok := a.textLabels["_start"]; ok {
		p.Entry = base + uint64(start*InstrSize)
	}

	return p, nil
}

func (a *Assembler) resolve(f fixup, p Program) (uint64, error) {
	switch f.kind {
	case fixupText:
		index, ok := a.textLabels[f.label]
		if !ok {
			return 0, fmt.Errorf("undefined label %q", f.label)
		}

		return p.TextBase + uint64(index*InstrSize), nil
	default:
		offset, ok := a.dataLabels[f.label]
		if !ok {
			return 0, fmt.Errorf("undefined data label %q", f.label)
		}

		return p.DataBase + uint64(offset), nil
	}
}
