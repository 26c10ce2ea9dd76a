package tracing

import (
	"bytes"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LogTracer", func() {
	var buf *bytes.Buffer

	BeforeEach(func() {
		buf = new(bytes.Buffer)
	})

	newTracer := func(l Level) *LogTracer {
		return NewLogTracer(log.New(buf, "", 0), l)
	}

	It("should parse levels", func() {
		l, err := ParseLevel("TRACE")
		Expect(err).NotTo(HaveOccurred())
		Expect(l).To(Equal(LevelTrace))

		_, err = ParseLevel("loud")
		Expect(err).To(HaveOccurred())
	})

	It("should drop events above the level", func() {
		t := newTracer(LevelInfo)

		t.Func(HookCtx{
			Pos:  HookPosSchedule,
			Item: ScheduleEvent{PID: 1},
		})
		Expect(buf.String()).To(BeEmpty())

		t.Func(HookCtx{
			Pos:  HookPosProcessExit,
			Item: ExitEvent{Cycle: 9, PID: 1, Code: 7},
		})
		Expect(buf.String()).To(Equal("info  [9] pid 1 exited with code 7\n"))
	})

	It("should report unknown syscalls as errors", func() {
		t := newTracer(LevelError)

		t.Func(HookCtx{
			Pos:  HookPosSyscallExit,
			Item: SyscallEvent{PID: 2, ID: 999, Name: UnknownSyscall, Ret: -1},
		})

		Expect(buf.String()).To(ContainSubstring("unsupported syscall 999"))
	})

	It("should print syscalls when debugging", func() {
		t := newTracer(LevelDebug)

		t.Func(HookCtx{
			Pos:  HookPosSyscallEnter,
			Item: SyscallEvent{PID: 2, Name: "write", Arg0: 1, Arg1: -1},
		})
		t.Func(HookCtx{
			Pos:  HookPosSyscallExit,
			Item: SyscallEvent{PID: 2, Name: "write", Ret: -1, Err: "bad fd"},
		})

		Expect(buf.String()).To(ContainSubstring(
			"write(0x1, 0xffffffffffffffff, 0x0)"))
		Expect(buf.String()).To(ContainSubstring("write = -1: bad fd"))
	})
})
