// Package sched picks the next process to run with stride scheduling.
package sched

import (
	"github.com/sarchlab/rvkernel/kernel/dev"
	"github.com/sarchlab/rvkernel/kernel/proc"
	"github.com/sarchlab/rvkernel/tracing"
)

const (
	// BigStride is divided by the priority to get the stride.
	BigStride uint64 = 1 << 20

	// MinPriority is the smallest priority a process may have.
	MinPriority uint64 = 2

	// MaxPriority is the largest priority that still gives a non-zero
	// stride.
	MaxPriority = BigStride
)

// Stride returns the pass increment of a priority.
func Stride(priority uint64) uint64 {
	return BigStride / priority
}

// Less compares two passes. Only the distance matters, so the order stays
// correct after the counters wrap around.
func Less(a, b uint64) bool {
	return int64(a-b) < 0
}

// A Scheduler is a stride scheduler over a process table.
type Scheduler struct {
	*tracing.HookableBase

	table *proc.Table
	timer dev.Timer
}

// New creates a scheduler over table.
func New(table *proc.Table, timer dev.Timer) *Scheduler {
	return &Scheduler{
		HookableBase: tracing.NewHookableBase(),
		table:        table,
		timer:        timer,
	}
}

// Next picks the runnable process with the smallest pass. A still-running
// current process competes as runnable. Ties go to the lower slot. The
// winner's pass advances by its stride and it becomes Running. Next returns
// false if nothing can run.
func (s *Scheduler) Next(current *proc.Process) (*proc.Process, bool) {
	if current != nil && current.State == proc.Running {
		current.State = proc.Runnable
	}

	var best *proc.Process

	s.table.Each(func(p *proc.Process) {
		if p.State != proc.Runnable {
			return
		}

		if best == nil || Less(p.Pass, best.Pass) {
			best = p
		}
	})

	if best == nil {
		return nil, false
	}

	best.Pass += Stride(best.Priority)
	best.State = proc.Running

	s.InvokeHook(tracing.HookCtx{
		Domain: s,
		Pos:    tracing.HookPosSchedule,
		Item: tracing.ScheduleEvent{
			Cycle:    int64(s.timer.ReadCycleCounter()),
			PID:      best.PID,
			Priority: int64(best.Priority),
			Pass:     int64(best.Pass),
		},
	})

	return best, true
}

// Admit places a newly runnable process at the smallest pass among the
// other runnable or running processes, so it neither starves them nor
// falls behind.
func (s *Scheduler) Admit(p *proc.Process) {
	var (
		min   uint64
		found bool
	)

	s.table.Each(func(q *proc.Process) {
		if q == p || (q.State != proc.Runnable && q.State != proc.Running) {
			return
		}

		if !found || Less(q.Pass, min) {
			min = q.Pass
			found = true
		}
	})

	if found {
		p.Pass = min
	}
}

// SetPriority changes the weight of p. It returns false if priority is out
// of range.
func SetPriority(p *proc.Process, priority uint64) bool {
	if priority < MinPriority || priority > MaxPriority {
		return false
	}

	p.Priority = priority

	return true
}
