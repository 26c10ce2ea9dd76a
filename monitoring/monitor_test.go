package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/rvkernel/kernel"
	"github.com/sarchlab/rvkernel/tracing"
)

var _ = Describe("Monitor", func() {
	var (
		mockCtrl *gomock.Controller
		k        *MockKernel
		m        *Monitor
		procs    []kernel.ProcessInfo
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		k = NewMockKernel(mockCtrl)
		m = NewMonitor()
		m.RegisterKernel(k)

		procs = []kernel.ProcessInfo{
			{PID: 1, Name: "usertests", CPUCycles: 10, Pages: 8},
			{PID: 2, PPID: 1, Name: "mmaptest", CPUCycles: 30, Pages: 4},
			{PID: 3, PPID: 1, Name: "sbrktest", CPUCycles: 20, Pages: 12},
		}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		return rec
	}

	decode := func(rec *httptest.ResponseRecorder, v any) {
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Unmarshal(rec.Body.Bytes(), v)).To(Succeed())
	}

	It("should report the kernel clock", func() {
		k.EXPECT().ID().Return("abc")
		k.EXPECT().Cycles().Return(uint64(42))
		k.EXPECT().Halted().Return(false)
		k.EXPECT().Paused().Return(true)

		var rsp nowRsp
		decode(get("/api/now"), &rsp)

		Expect(rsp).To(Equal(nowRsp{ID: "abc", Cycles: 42, Paused: true}))
	})

	It("should pause and continue", func() {
		k.EXPECT().Pause()
		k.EXPECT().Continue()

		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))
	})

	It("should list processes", func() {
		k.EXPECT().Processes().Return(procs)

		var rsp []kernel.ProcessInfo
		decode(get("/api/procs"), &rsp)

		Expect(rsp).To(HaveLen(3))
		Expect(rsp[1].Name).To(Equal("mmaptest"))
	})

	It("should list no processes as an empty array", func() {
		k.EXPECT().Processes().Return(nil)

		rec := get("/api/procs")

		Expect(rec.Body.String()).To(Equal("[]"))
	})

	It("should sort processes by cpu", func() {
		k.EXPECT().Processes().Return(procs)

		var rsp []kernel.ProcessInfo
		decode(get("/api/top"), &rsp)

		Expect(rsp).To(HaveLen(3))
		Expect(rsp[0].PID).To(Equal(2))
		Expect(rsp[1].PID).To(Equal(3))
		Expect(rsp[2].PID).To(Equal(1))
	})

	It("should page processes by pages", func() {
		k.EXPECT().Processes().Return(procs)

		var rsp []kernel.ProcessInfo
		decode(get("/api/top?sort=pages&limit=1&offset=1"), &rsp)

		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].PID).To(Equal(1))
	})

	It("should reject unknown sort methods", func() {
		rec := get("/api/top?sort=level")

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should reject negative limits", func() {
		rec := get("/api/top?limit=-1")

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should describe a process", func() {
		k.EXPECT().Process(2).Return(procs[1], true)

		rec := get("/api/proc/2")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("mmaptest"))
	})

	It("should 404 on unknown processes", func() {
		k.EXPECT().Process(9).Return(kernel.ProcessInfo{}, false)

		rec := get("/api/proc/9")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should show a field of a process", func() {
		k.EXPECT().Process(3).Return(procs[2], true)

		rec := get("/api/field/" +
			url.PathEscape(`{"pid":3,"field_name":"Name"}`))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("sbrktest"))
	})

	It("should reject malformed field requests", func() {
		rec := get("/api/field/" + url.PathEscape("{"))

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should report memory", func() {
		k.EXPECT().Memory().Return(kernel.MemoryInfo{TotalFrames: 8, FreeFrames: 3})

		var rsp kernel.MemoryInfo
		decode(get("/api/memory"), &rsp)

		Expect(rsp.FreeFrames).To(Equal(3))
	})

	It("should report host resources", func() {
		var rsp resourceRsp
		decode(get("/api/resource"), &rsp)

		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve the page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should keep progress bars until completed", func() {
		a := m.CreateProgressBar("a", 2)
		b := m.CreateProgressBar("b", 1)
		m.CompleteProgressBar(a)

		var rsp []map[string]any
		decode(get("/api/progress"), &rsp)

		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0]["id"]).To(Equal(b.ID))
		Expect(rsp[0]["total"]).To(BeNumerically("==", 1))
	})

	It("should report progress while bars are updated", func() {
		bar := m.CreateProgressBar("procs", 100)

		done := make(chan struct{})
		go func() {
			defer close(done)

			for i := 0; i < 100; i++ {
				bar.IncrementInProgress(1)
				bar.MoveInProgressToFinished(1)
			}
		}()

		for i := 0; i < 10; i++ {
			var rsp []map[string]any
			decode(get("/api/progress"), &rsp)
			Expect(rsp).To(HaveLen(1))
		}
		<-done

		var rsp []map[string]any
		decode(get("/api/progress"), &rsp)
		Expect(rsp[0]["finished"]).To(BeNumerically("==", 100))
		Expect(rsp[0]["in_progress"]).To(BeNumerically("==", 0))
	})

	It("should fall back to a random port", func() {
		Expect(m.WithPortNumber(80).portNumber).To(Equal(0))
		Expect(m.WithPortNumber(8080).portNumber).To(Equal(8080))
	})
})

var _ = Describe("ExitTracker", func() {
	It("should finish watched processes only", func() {
		bar := &ProgressBar{Total: 2}
		t := NewExitTracker(bar)
		t.Watch(1)
		t.Watch(2)

		exit := func(pid int) {
			t.Func(tracing.HookCtx{
				Pos:  tracing.HookPosProcessExit,
				Item: tracing.ExitEvent{PID: pid},
			})
		}

		exit(1)
		exit(5)
		exit(1)
		t.Func(tracing.HookCtx{Pos: tracing.HookPosSchedule})

		Expect(bar.InProgress).To(Equal(uint64(1)))
		Expect(bar.Finished).To(Equal(uint64(1)))
	})
})
