package isa

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Instr", func() {
	It("should survive encoding", func() {
		in := Instr{Op: OpSd, Rs1: SP, Rs2: A0, Imm: -16}
		buf := make([]byte, InstrSize)

		in.Encode(buf)
		out, err := Decode(buf)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in))
	})

	It("should reject illegal opcodes", func() {
		_, err := Decode(make([]byte, InstrSize))
		Expect(err).To(HaveOccurred())

		buf := make([]byte, InstrSize)
		buf[0] = 0xff
		_, err = Decode(buf)
		Expect(err).To(HaveOccurred())
	})

	It("should reject illegal registers", func() {
		buf := make([]byte, InstrSize)
		Instr{Op: OpMv, Rd: 40}.Encode(buf)

		_, err := Decode(buf)

		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Trapframe", func() {
	It("should hardwire the zero register", func() {
		tf := &Trapframe{}
		tf.Set(Zero, 5)
		tf.Set(A0, 7)

		Expect(tf.Get(Zero)).To(Equal(uint64(0)))
		Expect(tf.Args()[0]).To(Equal(uint64(7)))
	})
})

var _ = Describe("Assembler", func() {
	It("should place data on the page after the text", func() {
		a := NewAssembler()
		a.La(A0, "msg").Ecall()
		a.String("msg", "hi")

		p, err := a.Assemble(0x1000)

		Expect(err).NotTo(HaveOccurred())
		Expect(p.Text).To(HaveLen(2 * InstrSize))
		Expect(p.DataBase).To(Equal(uint64(0x2000)))
		Expect(p.Data).To(Equal([]byte("hi\x00")))

		in, _ := Decode(p.Text[:InstrSize])
		Expect(in.Imm).To(Equal(int64(0x2000)))
	})

	It("should resolve branch targets and the entry point", func() {
		a := NewAssembler()
		a.Label("loop").J("_start")
		a.Label("_start").Beq(A0, Zero, "loop")

		p, err := a.Assemble(0x1000)

		Expect(err).NotTo(HaveOccurred())
		Expect(p.Entry).To(Equal(uint64(0x1000 + InstrSize)))
		j, _ := Decode(p.Text[:InstrSize])
		Expect(j.Imm).To(Equal(int64(0x1000 + InstrSize)))
		beq, _ := Decode(p.Text[InstrSize:])
		Expect(beq.Imm).To(Equal(int64(0x1000)))
	})

	It("should align data objects", func() {
		a := NewAssembler()
		a.String("a", "x").Space("b", 8)

		p, err := a.Assemble(0x1000)

		Expect(err).NotTo(HaveOccurred())
		Expect(p.Data).To(HaveLen(16))
	})

	It("should report undefined labels", func() {
		a := NewAssembler()
		a.J("nowhere")

		_, err := a.Assemble(0x1000)

		Expect(err).To(MatchError(ContainSubstring("nowhere")))
	})

	It("should report duplicate labels", func() {
		a := NewAssembler()
		a.Label("x").Label("x")

		_, err := a.Assemble(0x1000)

		Expect(err).To(HaveOccurred())
	})
})
