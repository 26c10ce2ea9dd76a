// Package isa defines the user-mode register file and the small instruction
// set that simulated user programs are written in.
package isa

// Reg names one of the 32 integer registers.
type Reg uint8

// Register names following the RISC-V ABI.
const (
	Zero Reg = iota
	RA
	SP
	GP
	TP
	T0
	T1
	T2
	S0
	S1
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	T3
	T4
	T5
	T6

	NumRegs = 32
)

// A Trapframe is the snapshot of user registers saved on a trap.
type Trapframe struct {
	Regs [NumRegs]uint64
	PC   uint64
}

// Get returns the value of a register. Zero always reads 0.
func (tf *Trapframe) Get(r Reg) uint64 {
	if r == Zero {
		return 0
	}

	return tf.Regs[r]
}

// Set writes a register. Writes to Zero are ignored.
func (tf *Trapframe) Set(r Reg, v uint64) {
	if r == Zero {
		return
	}

	tf.Regs[r] = v
}

// Args returns the six argument registers a0 to a5.
func (tf *Trapframe) Args() [6]uint64 {
	return [6]uint64{
		tf.Regs[A0], tf.Regs[A1], tf.Regs[A2],
		tf.Regs[A3], tf.Regs[A4], tf.Regs[A5],
	}
}
