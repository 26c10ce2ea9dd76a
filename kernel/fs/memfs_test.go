package fs

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MemFS", func() {
	var m *MemFS

	BeforeEach(func() {
		m = NewMemFS()
	})

	It("should not open missing files without create", func() {
		_, err := m.Open("nope", ORdOnly)

		Expect(err).To(MatchError(ErrNotFound))
	})

	It("should write and read back", func() {
		ino, err := m.Open("/a", OCreate|OWrOnly)
		Expect(err).NotTo(HaveOccurred())

		n, err := m.WriteAt(ino, []byte("hello"), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(5))

		buf := make([]byte, 10)
		n, _ = m.ReadAt(ino, buf, 1)
		Expect(string(buf[:n])).To(Equal("ello"))

		n, _ = m.ReadAt(ino, buf, 5)
		Expect(n).To(Equal(0))
	})

	It("should truncate", func() {
		ino, _ := m.Open("a", OCreate)
		_, _ = m.WriteAt(ino, []byte("abc"), 0)
		m.Release(ino)

		ino, _ = m.Open("a", OTrunc|OWrOnly)
		buf := make([]byte, 3)
		n, _ := m.ReadAt(ino, buf, 0)

		Expect(n).To(Equal(0))
	})

	It("should count links", func() {
		ino, _ := m.Open("a", OCreate)
		Expect(m.Link("a", "b")).To(Succeed())

		st, err := m.Stat(ino)
		Expect(err).NotTo(HaveOccurred())
		Expect(st.NLink).To(Equal(uint32(2)))
		Expect(st.Mode).To(Equal(ModeFile))
		Expect(m.Names()).To(Equal([]string{"a", "b"}))

		Expect(m.Link("a", "b")).To(MatchError(ErrExists))
		Expect(m.Link("x", "y")).To(MatchError(ErrNotFound))
	})

	It("should keep unlinked files alive while open", func() {
		ino, _ := m.Open("a", OCreate)
		_, _ = m.WriteAt(ino, []byte("z"), 0)

		Expect(m.Unlink("a")).To(Succeed())
		_, err := m.Open("a", ORdOnly)
		Expect(err).To(MatchError(ErrNotFound))

		st, err := m.Stat(ino)
		Expect(err).NotTo(HaveOccurred())
		Expect(st.NLink).To(Equal(uint32(0)))

		m.Release(ino)
		_, err = m.Stat(ino)
		Expect(err).To(MatchError(ErrBadInode))
	})

	It("should panic on unbalanced release", func() {
		ino, _ := m.Open("a", OCreate)
		m.Release(ino)

		Expect(func() { m.Release(ino) }).To(Panic())
	})
})
