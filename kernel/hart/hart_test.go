package hart

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/rvkernel/kernel/dev"
	"github.com/sarchlab/rvkernel/kernel/isa"
	"github.com/sarchlab/rvkernel/mem/phys"
	"github.com/sarchlab/rvkernel/mem/vm"
)

var _ = Describe("Hart", func() {
	var (
		clock *dev.CycleCounter
		h     *Hart
		as    *vm.AddressSpace
		tf    *isa.Trapframe
	)

	load := func(a *isa.Assembler) {
		p, err := a.Assemble(0x1000)
		Expect(err).NotTo(HaveOccurred())

		textPages := vm.PageRoundUp(uint64(len(p.Text))) / phys.PageSize
		Expect(as.MapUser(p.TextBase, textPages, vm.FlagRead|vm.FlagExec)).
			To(Succeed())
		Expect(as.Write(p.TextBase, p.Text, 0)).To(Succeed())
		Expect(as.MapUser(p.DataBase, 1, vm.FlagRead|vm.FlagWrite)).
			To(Succeed())
		Expect(as.Write(p.DataBase, p.Data, 0)).To(Succeed())

		tf.PC = p.Entry
	}

	BeforeEach(func() {
		clock = &dev.CycleCounter{}
		h = New(clock)
		tf = &isa.Trapframe{}

		var err error
		as, err = vm.NewAddressSpace(
			phys.NewFreeListAllocator(phys.NewMemory(32)))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should stop at ecall without moving the pc", func() {
		a := isa.NewAssembler()
		a.Li(isa.A0, 5).Addi(isa.A0, isa.A0, 2).Syscall(93)
		load(a)

		trap := h.Run(tf, as, 100)

		Expect(trap.Kind).To(Equal(TrapSyscall))
		Expect(tf.Get(isa.A0)).To(Equal(uint64(7)))
		Expect(tf.Get(isa.A7)).To(Equal(uint64(93)))
		Expect(tf.PC).To(Equal(uint64(0x1000 + 3*isa.InstrSize)))
		Expect(trap.Cycles).To(Equal(uint64(4)))
		Expect(clock.ReadCycleCounter()).To(Equal(uint64(4)))
	})

	It("should run loops until the budget is used", func() {
		a := isa.NewAssembler()
		a.Label("spin").Addi(isa.T0, isa.T0, 1).J("spin")
		load(a)

		trap := h.Run(tf, as, 10)

		Expect(trap.Kind).To(Equal(TrapTimer))
		Expect(tf.Get(isa.T0)).To(Equal(uint64(5)))
	})

	It("should load and store through the address space", func() {
		a := isa.NewAssembler()
		a.La(isa.T0, "word").
			Li(isa.T1, 40).
			Sd(isa.T1, isa.T0, 0).
			Ld(isa.A0, isa.T0, 0).
			Addi(isa.A0, isa.A0, 2).
			Sb(isa.A0, isa.T0, 8).
			Lbu(isa.A1, isa.T0, 8).
			Ecall()
		a.Space("word", 16)
		load(a)

		trap := h.Run(tf, as, 100)

		Expect(trap.Kind).To(Equal(TrapSyscall))
		Expect(tf.Get(isa.A0)).To(Equal(uint64(42)))
		Expect(tf.Get(isa.A1)).To(Equal(uint64(42)))
	})

	It("should take branches", func() {
		a := isa.NewAssembler()
		a.Li(isa.T0, -1).
			Blt(isa.T0, isa.Zero, "neg").
			Li(isa.A0, 1).
			Ecall().
			Label("neg").
			Li(isa.A0, 2).
			Bne(isa.A0, isa.Zero, "out").
			Li(isa.A0, 3).
			Label("out").
			Ecall()
		load(a)

		h.Run(tf, as, 100)

		Expect(tf.Get(isa.A0)).To(Equal(uint64(2)))
	})

	It("should fault on stores to text", func() {
		a := isa.NewAssembler()
		a.Li(isa.T0, 0x1000).Sd(isa.T0, isa.T0, 0)
		load(a)

		trap := h.Run(tf, as, 100)

		Expect(trap.Kind).To(Equal(TrapFault))
		Expect(trap.Addr).To(Equal(uint64(0x1000)))
		Expect(trap.Err).To(MatchError(vm.ErrInvalidUserPointer))
	})

	It("should fault when fetching from data", func() {
		a := isa.NewAssembler()
		a.Li(isa.T0, 0).Ecall()
		load(a)
		tf.PC = 0x2000

		trap := h.Run(tf, as, 100)

		Expect(trap.Kind).To(Equal(TrapFault))
	})

	It("should fault on illegal instructions", func() {
		a := isa.NewAssembler()
		a.J("data")
		a.Label("data")
		load(a)
		Expect(as.Write(0x1000+isa.InstrSize, make([]byte, isa.InstrSize), 0)).
			To(Succeed())

		trap := h.Run(tf, as, 100)

		Expect(trap.Kind).To(Equal(TrapFault))
		Expect(trap.Addr).To(Equal(uint64(0x1000 + isa.InstrSize)))
	})
})
