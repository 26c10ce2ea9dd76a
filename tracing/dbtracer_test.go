package tracing

import (
	"context"
	"math"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/rvkernel/datarecording"
	"go.uber.org/mock/gomock"
)

var _ = Describe("DBTracer", func() {
	var (
		mockCtrl *gomock.Controller
		recorder *MockDataRecorder
		tracer   *DBTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		recorder = NewMockDataRecorder(mockCtrl)

		recorder.EXPECT().CreateTable(gomock.Any(), gomock.Any()).Times(5)
		recorder.EXPECT().InsertData(SessionTable, gomock.Any())

		tracer = NewDBTracer(recorder, "test")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should have a session id", func() {
		Expect(tracer.Session()).NotTo(BeEmpty())
	})

	It("should record syscall exits but not entries", func() {
		e := SyscallEvent{PID: 1, Name: "getpid", Ret: 1}
		recorder.EXPECT().InsertData(SyscallTable, e)

		tracer.Func(HookCtx{Pos: HookPosSyscallEnter, Item: e})
		tracer.Func(HookCtx{Pos: HookPosSyscallExit, Item: e})
	})

	It("should record scheduling, exits and faults", func() {
		recorder.EXPECT().InsertData(ScheduleTable, ScheduleEvent{PID: 1})
		recorder.EXPECT().InsertData(ExitTable, ExitEvent{PID: 1})
		recorder.EXPECT().InsertData(FaultTable, FaultEvent{PID: 2})

		tracer.Func(HookCtx{Pos: HookPosSchedule, Item: ScheduleEvent{PID: 1}})
		tracer.Func(HookCtx{Pos: HookPosProcessExit, Item: ExitEvent{PID: 1}})
		tracer.Func(HookCtx{Pos: HookPosFault, Item: FaultEvent{PID: 2}})
	})

	It("should flush once and then drop events", func() {
		recorder.EXPECT().Flush().Times(1)

		tracer.Terminate()
		tracer.Terminate()
		tracer.Func(HookCtx{Pos: HookPosFault, Item: FaultEvent{PID: 2}})
	})
})

var _ = Describe("DBTracer on SQLite", func() {
	var path string

	BeforeEach(func() {
		dir, err := os.MkdirTemp("", "dbtracer")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)

		path = filepath.Join(dir, "trace")
	})

	It("should store register values with the high bit set", func() {
		recorder := datarecording.New(path)
		tracer := NewDBTracer(recorder, "test")

		maxID := uint64(math.MaxUint64)
		highAddr := uint64(0xfffffffffffffff8)

		tracer.Func(HookCtx{
			Pos: HookPosSyscallExit,
			Item: SyscallEvent{
				PID:  1,
				ID:   int64(maxID),
				Name: UnknownSyscall,
				Ret:  -1,
			},
		})
		tracer.Func(HookCtx{
			Pos: HookPosFault,
			Item: FaultEvent{
				PID:  1,
				PC:   int64(highAddr),
				Addr: int64(highAddr),
				Err:  "load fault",
			},
		})

		Expect(tracer.Terminate).NotTo(Panic())
		Expect(recorder.Close()).To(Succeed())

		reader, err := datarecording.NewReader(path + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		MapTables(reader)

		calls, _, err := reader.Query(context.Background(), SyscallTable,
			datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(HaveLen(1))
		Expect(uint64(calls[0].(*SyscallEvent).ID)).To(Equal(maxID))

		faults, _, err := reader.Query(context.Background(), FaultTable,
			datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(faults).To(HaveLen(1))
		Expect(uint64(faults[0].(*FaultEvent).Addr)).To(Equal(highAddr))
	})
})
