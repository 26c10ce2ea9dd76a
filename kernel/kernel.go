// Package kernel glues the simulated hart to the process table, the
// scheduler and the system call dispatcher.
package kernel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/rvkernel/kernel/dev"
	"github.com/sarchlab/rvkernel/kernel/hart"
	"github.com/sarchlab/rvkernel/kernel/loader"
	"github.com/sarchlab/rvkernel/kernel/proc"
	"github.com/sarchlab/rvkernel/kernel/sched"
	"github.com/sarchlab/rvkernel/kernel/syscall"
	"github.com/sarchlab/rvkernel/mem/phys"
	"github.com/sarchlab/rvkernel/tracing"
)

// ErrHalted is returned when work is submitted to a halted kernel.
var ErrHalted = errors.New("kernel halted")

// A Kernel runs user processes on one simulated hart.
type Kernel struct {
	*tracing.HookableBase

	// stepMu serializes Step. mu guards the state that snapshots read and
	// is released while a console read waits for input.
	stepMu sync.Mutex
	mu     sync.Mutex
	paused atomic.Bool

	id       string
	alloc    phys.FrameAllocator
	clock    *dev.CycleCounter
	console  dev.Console
	hart     *hart.Hart
	programs *loader.Registry
	table    *proc.Table
	sched    *sched.Scheduler
	disp     *syscall.Dispatcher

	quantum uint64
	current *proc.Process
	halted  bool
}

// ID returns the unique id of this boot.
func (k *Kernel) ID() string {
	return k.id
}

// Programs lists the names that can be spawned.
func (k *Kernel) Programs() []string {
	return k.programs.Names()
}

// AcceptHook registers a hook with the kernel and all its parts.
func (k *Kernel) AcceptHook(h tracing.Hook) {
	k.HookableBase.AcceptHook(h)
	k.sched.AcceptHook(h)
	k.disp.AcceptHook(h)
}

// Spawn starts a top-level process.
func (k *Kernel) Spawn(name string, argv ...string) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.halted {
		return 0, ErrHalted
	}

	p, err := k.table.Spawn(nil, name, append([]string{name}, argv...))
	if err != nil {
		return 0, err
	}

	k.sched.Admit(p)

	return p.PID, nil
}

// Step gives the cpu to the next process for up to one quantum. It returns
// false once no process is left to run.
func (k *Kernel) Step() bool {
	k.stepMu.Lock()
	defer k.stepMu.Unlock()

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.halted {
		return false
	}

	p, ok := k.sched.Next(k.current)
	if !ok {
		k.halt()
		return false
	}

	k.current = p
	p.MarkScheduled(k.clock.ReadCycleCounter())

	k.runQuantum(p)

	return true
}

func (k *Kernel) runQuantum(p *proc.Process) {
	budget := k.quantum

	for budget > 0 {
		trap := k.hart.Run(&p.Trapframe, p.Space, budget)
		budget -= trap.Cycles
		p.CPUCycles += trap.Cycles

		switch trap.Kind {
		case hart.TrapSyscall:
			switch k.disp.Dispatch(p) {
			case syscall.Resume:
				continue
			case syscall.Exited:
				k.current = nil
			}

			return
		case hart.TrapFault:
			k.fault(p, trap)
			return
		case hart.TrapTimer:
			return
		}
	}
}

func (k *Kernel) fault(p *proc.Process, trap hart.Trap) {
	k.InvokeHook(tracing.HookCtx{
		Domain: k,
		Pos:    tracing.HookPosFault,
		Item: tracing.FaultEvent{
			Cycle: int64(k.clock.ReadCycleCounter()),
			PID:   p.PID,
			PC:    int64(p.Trapframe.PC),
			Addr:  int64(trap.Addr),
			Err:   trap.Err.Error(),
		},
	})

	k.disp.Exit(p, -1)
	k.current = nil
}

func (k *Kernel) halt() {
	k.halted = true
	k.current = nil

	if f, ok := k.console.(interface{ Flush() }); ok {
		f.Flush()
	}
}

// Run steps the kernel until every process is gone or ctx is done.
func (k *Kernel) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if k.paused.Load() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pausePollInterval):
			}

			continue
		}

		if !k.Step() {
			return nil
		}
	}
}

const pausePollInterval = 10 * time.Millisecond

// Pause makes Run wait before its next step.
func (k *Kernel) Pause() {
	k.paused.Store(true)
}

// Continue lets a paused Run go on.
func (k *Kernel) Continue() {
	k.paused.Store(false)
}

// Paused tells if Run is held by Pause.
func (k *Kernel) Paused() bool {
	return k.paused.Load()
}

// Halted tells if the kernel ran out of processes.
func (k *Kernel) Halted() bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.halted
}

// Cycles returns the cycle counter.
func (k *Kernel) Cycles() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.clock.ReadCycleCounter()
}

func newID() string {
	return xid.New().String()
}

// unlockedInput drops the kernel lock while GetChar blocks, so that
// snapshots stay available to other goroutines during a console read.
type unlockedInput struct {
	dev.Console
	mu *sync.Mutex
}

func (c unlockedInput) GetChar() (byte, bool) {
	c.mu.Unlock()
	defer c.mu.Lock()

	return c.Console.GetChar()
}
