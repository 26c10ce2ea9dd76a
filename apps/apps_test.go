package apps

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Programs", func() {
	It("should assemble every program", func() {
		images := All()

		Expect(images).To(HaveLen(len(programs)))
		for _, img := range images {
			Expect(img.Program.Entry).To(BeNumerically(">=", TextBase))
			Expect(img.Program.Text).NotTo(BeEmpty())
		}
	})

	It("should start at _start", func() {
		img := MustImage("forkexec")

		Expect(img.Name).To(Equal("forkexec"))
		Expect(img.Program.Entry).To(Equal(uint64(TextBase)))
	})

	It("should panic for unknown programs", func() {
		Expect(func() { MustImage("nope") }).To(Panic())
	})
})

var _ = Describe("Program order", func() {
	It("should list programs by name", func() {
		images := All()

		for i := 1; i < len(images); i++ {
			Expect(images[i-1].Name < images[i].Name).To(BeTrue())
		}
	})
})
