package sched

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvkernel/kernel/dev"
	"github.com/sarchlab/rvkernel/kernel/fs"
	"github.com/sarchlab/rvkernel/kernel/loader"
	"github.com/sarchlab/rvkernel/kernel/proc"
	"github.com/sarchlab/rvkernel/mem/phys"
	"github.com/sarchlab/rvkernel/tracing"
)

var _ = Describe("Less", func() {
	It("should order by distance", func() {
		Expect(Less(1, 2)).To(BeTrue())
		Expect(Less(2, 1)).To(BeFalse())
		Expect(Less(5, 5)).To(BeFalse())
		Expect(Less(math.MaxUint64-10, 5)).To(BeTrue())
		Expect(Less(5, math.MaxUint64-10)).To(BeFalse())
	})
})

var _ = Describe("Scheduler", func() {
	var (
		table *proc.Table
		s     *Scheduler
	)

	newProc := func(priority uint64) *proc.Process {
		p, err := table.Alloc()
		Expect(err).NotTo(HaveOccurred())
		p.Priority = priority
		p.State = proc.Runnable

		return p
	}

	BeforeEach(func() {
		alloc := phys.NewFreeListAllocator(phys.NewMemory(16))
		clock := &dev.CycleCounter{}
		table = proc.NewTable(loader.NewRegistry(alloc), fs.NewMemFS(), clock)
		s = New(table, clock)
	})

	It("should report when nothing is runnable", func() {
		p := newProc(16)
		p.State = proc.Zombie

		_, ok := s.Next(nil)

		Expect(ok).To(BeFalse())
	})

	It("should break ties by slot", func() {
		a := newProc(16)
		newProc(16)

		got, ok := s.Next(nil)

		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(a))
		Expect(a.State).To(Equal(proc.Running))
		Expect(a.Pass).To(Equal(Stride(16)))
	})

	It("should demote the current process", func() {
		a := newProc(16)
		b := newProc(16)

		cur, _ := s.Next(nil)
		Expect(cur).To(BeIdenticalTo(a))

		cur, _ = s.Next(cur)
		Expect(cur).To(BeIdenticalTo(b))
		Expect(a.State).To(Equal(proc.Runnable))
	})

	It("should keep running a lone process", func() {
		a := newProc(16)

		cur, _ := s.Next(nil)
		cur, ok := s.Next(cur)

		Expect(ok).To(BeTrue())
		Expect(cur).To(BeIdenticalTo(a))
	})

	It("should share the cpu by priority", func() {
		low := newProc(2)
		high := newProc(4)
		picks := map[*proc.Process]int{}
		last := map[*proc.Process]uint64{}

		var cur *proc.Process
		for i := 0; i < 3000; i++ {
			cur, _ = s.Next(cur)
			picks[cur]++

			Expect(cur.Pass).To(BeNumerically(">=", last[cur]))
			last[cur] = cur.Pass
		}

		ratio := float64(picks[high]) / float64(picks[low])
		Expect(ratio).To(BeNumerically("~", 2.0, 0.01))
	})

	It("should stay fair when passes wrap", func() {
		low := newProc(2)
		high := newProc(4)
		low.Pass = math.MaxUint64 - 3*Stride(2)
		high.Pass = low.Pass

		picks := map[*proc.Process]int{}
		var cur *proc.Process
		for i := 0; i < 300; i++ {
			cur, _ = s.Next(cur)
			picks[cur]++
		}

		Expect(picks[high]).To(BeNumerically("~", 2*picks[low], 2))
	})

	It("should admit at the smallest pass", func() {
		a := newProc(16)
		b := newProc(16)
		a.Pass = 300
		b.Pass = 100

		c := newProc(16)
		s.Admit(c)

		Expect(c.Pass).To(Equal(uint64(100)))
	})

	It("should invoke the schedule hook", func() {
		newProc(8)
		var events []tracing.ScheduleEvent
		s.AcceptHook(tracing.HookFunc(func(ctx tracing.HookCtx) {
			events = append(events, ctx.Item.(tracing.ScheduleEvent))
		}))

		s.Next(nil)

		Expect(events).To(HaveLen(1))
		Expect(events[0].Priority).To(Equal(int64(8)))
	})

	It("should bound priorities", func() {
		p := newProc(16)

		Expect(SetPriority(p, 1)).To(BeFalse())
		Expect(SetPriority(p, MaxPriority+1)).To(BeFalse())
		Expect(SetPriority(p, 2)).To(BeTrue())
		Expect(p.Priority).To(Equal(uint64(2)))
	})
})
