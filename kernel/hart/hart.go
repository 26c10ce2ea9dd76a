// Package hart runs user instructions on behalf of the kernel until the
// program traps.
package hart

import (
	"encoding/binary"

	"github.com/sarchlab/rvkernel/kernel/isa"
	"github.com/sarchlab/rvkernel/mem/vm"
)

// TrapKind tells why user execution stopped.
type TrapKind int

// Trap causes.
const (
	// TrapSyscall is an ecall. The pc still points at the ecall.
	TrapSyscall TrapKind = iota
	// TrapTimer means the cycle budget ran out.
	TrapTimer
	// TrapFault is an illegal instruction or a bad memory access.
	TrapFault
)

func (k TrapKind) String() string {
	switch k {
	case TrapSyscall:
		return "syscall"
	case TrapTimer:
		return "timer"
	case TrapFault:
		return "fault"
	default:
		return "unknown"
	}
}

// A Trap describes the transfer from user to kernel mode.
type Trap struct {
	Kind   TrapKind
	Cycles uint64
	Addr   uint64
	Err    error
}

// A Clock is advanced by one cycle for every instruction.
type Clock interface {
	Advance(cycles uint64)
}

// A Hart is a simulated hardware thread.
type Hart struct {
	clock Clock
}

// New creates a hart.
func New(clock Clock) *Hart {
	return &Hart{clock: clock}
}

// Run executes user instructions from tf.PC for at most budget cycles.
func (h *Hart) Run(tf *isa.Trapframe, as *vm.AddressSpace, budget uint64) Trap {
	var (
		raw    [isa.InstrSize]byte
		cycles uint64
	)

	for cycles < budget {
		if tf.PC%isa.InstrSize != 0 {
			return Trap{Kind: TrapFault, Cycles: cycles, Addr: tf.PC,
				Err: vm.ErrInvalidUserPointer}
		}

		err := as.Read(raw[:], tf.PC, vm.FlagExec)
		if err != nil {
			return Trap{Kind: TrapFault, Cycles: cycles, Addr: tf.PC, Err: err}
		}

		in, err := isa.Decode(raw[:])
		if err != nil {
			return Trap{Kind: TrapFault, Cycles: cycles, Addr: tf.PC, Err: err}
		}

		cycles++
		h.clock.Advance(1)

		if in.Op == isa.OpEcall {
			return Trap{Kind: TrapSyscall, Cycles: cycles, Addr: tf.PC}
		}

		addr, err := h.execute(tf, as, in)
		if err != nil {
			return Trap{Kind: TrapFault, Cycles: cycles, Addr: addr, Err: err}
		}
	}

	return Trap{Kind: TrapTimer, Cycles: cycles, Addr: tf.PC}
}

// execute runs one non-trapping instruction. On a memory fault it returns
// the faulting address.
func (h *Hart) execute(
	tf *isa.Trapframe,
	as *vm.AddressSpace,
	in isa.Instr,
) (uint64, error) {
	next := tf.PC + isa.InstrSize
	rs1, rs2 := tf.Get(in.Rs1), tf.Get(in.Rs2)
	addr := rs1 + uint64(in.Imm)

	switch in.Op {
	case isa.OpLi:
		tf.Set(in.Rd, uint64(in.Imm))
	case isa.OpMv:
		tf.Set(in.Rd, rs1)
	case isa.OpAddi:
		tf.Set(in.Rd, addr)
	case isa.OpAdd:
		tf.Set(in.Rd, rs1+rs2)
	case isa.OpSub:
		tf.Set(in.Rd, rs1-rs2)
	case isa.OpMul:
		tf.Set(in.Rd, rs1*rs2)
	case isa.OpLd:
		var buf [8]byte
		if err := as.Read(buf[:], addr, vm.FlagRead); err != nil {
			return addr, err
		}
		tf.Set(in.Rd, binary.LittleEndian.Uint64(buf[:]))
	case isa.OpSd:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], rs2)
		if err := as.Write(addr, buf[:], vm.FlagWrite); err != nil {
			return addr, err
		}
	case isa.OpLbu:
		var buf [1]byte
		if err := as.Read(buf[:], addr, vm.FlagRead); err != nil {
			return addr, err
		}
		tf.Set(in.Rd, uint64(buf[0]))
	case isa.OpSb:
		if err := as.Write(addr, []byte{byte(rs2)}, vm.FlagWrite); err != nil {
			return addr, err
		}
	case isa.OpBeq:
		if rs1 == rs2 {
			next = uint64(in.Imm)
		}
	case isa.OpBne:
		if rs1 != rs2 {
			next = uint64(in.Imm)
		}
	case isa.OpBlt:
		if int64(rs1) < int64(rs2) {
			next = uint64(in.Imm)
		}
	case isa.OpJ:
		next = uint64(in.Imm)
	}

	tf.PC = next

	return 0, nil
}
