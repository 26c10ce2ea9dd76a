// Package syscall decodes system calls trapped from user mode and runs the
// matching kernel service.
package syscall

import (
	"errors"

	"github.com/sarchlab/rvkernel/kernel/dev"
	"github.com/sarchlab/rvkernel/kernel/fs"
	"github.com/sarchlab/rvkernel/kernel/isa"
	"github.com/sarchlab/rvkernel/kernel/proc"
	"github.com/sarchlab/rvkernel/tracing"
)

// System call numbers.
const (
	SysUnlinkat     = 35
	SysLinkat       = 37
	SysOpenat       = 56
	SysClose        = 57
	SysRead         = 63
	SysWrite        = 64
	SysFstat        = 80
	SysExit         = 93
	SysSchedYield   = 124
	SysSetPriority  = 140
	SysGettimeofday = 169
	SysGetpid       = 172
	SysGetppid      = 173
	SysSbrk         = 214
	SysMunmap       = 215
	SysClone        = 220
	SysExecve       = 221
	SysMmap         = 222
	SysWait4        = 260
	SysSpawn        = 400
	SysTaskInfo     = 410
)

// MaxStrLen bounds strings and chunks copied from user memory.
const MaxStrLen = 256

// ErrNotImplemented is the error of call numbers without a handler.
var ErrNotImplemented = errors.New("syscall not implemented")

// ErrBadPriority is returned by setpriority for values below the minimum.
var ErrBadPriority = errors.New("priority out of range")

var (
	errExited   = errors.New("process exited")
	errReplaced = errors.New("image replaced")
	errYield    = errors.New("yield")
)

// Outcome tells the trap loop what to do after a system call.
type Outcome int

// Outcomes of Dispatch.
const (
	// Resume continues the calling process.
	Resume Outcome = iota
	// Yield lets the scheduler pick again. The call has completed.
	Yield
	// Block lets the scheduler pick again. The pc is rewound so that the
	// call is retried when the process runs next.
	Block
	// Exited means the calling process is gone.
	Exited
)

func (o Outcome) String() string {
	switch o {
	case Resume:
		return "resume"
	case Yield:
		return "yield"
	case Block:
		return "block"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// A Scheduler accepts new processes.
type Scheduler interface {
	Admit(p *proc.Process)
}

type handler struct {
	name string
	fn   func(p *proc.Process, args [6]uint64) (int64, error)
}

// A Dispatcher runs system calls on behalf of processes.
type Dispatcher struct {
	*tracing.HookableBase

	table   *proc.Table
	sched   Scheduler
	console dev.Console
	timer   dev.Timer
	fs      fs.FileSystem

	handlers map[uint64]handler
}

// NewDispatcher creates a dispatcher wired to the kernel services.
func NewDispatcher(
	table *proc.Table,
	sched Scheduler,
	console dev.Console,
	timer dev.Timer,
	fsys fs.FileSystem,
) *Dispatcher {
	d := &Dispatcher{
		HookableBase: tracing.NewHookableBase(),
		table:        table,
		sched:        sched,
		console:      console,
		timer:        timer,
		fs:           fsys,
	}

	d.handlers = map[uint64]handler{
		SysUnlinkat:     {"unlinkat", d.sysUnlinkat},
		SysLinkat:       {"linkat", d.sysLinkat},
		SysOpenat:       {"openat", d.sysOpenat},
		SysClose:        {"close", d.sysClose},
		SysRead:         {"read", d.sysRead},
		SysWrite:        {"write", d.sysWrite},
		SysFstat:        {"fstat", d.sysFstat},
		SysExit:         {"exit", d.sysExit},
		SysSchedYield:   {"sched_yield", d.sysSchedYield},
		SysSetPriority:  {"setpriority", d.sysSetPriority},
		SysGettimeofday: {"gettimeofday", d.sysGettimeofday},
		SysGetpid:       {"getpid", d.sysGetpid},
		SysGetppid:      {"getppid", d.sysGetppid},
		SysSbrk:         {"sbrk", d.sysSbrk},
		SysMunmap:       {"munmap", d.sysMunmap},
		SysClone:        {"clone", d.sysClone},
		SysExecve:       {"execve", d.sysExecve},
		SysMmap:         {"mmap", d.sysMmap},
		SysWait4:        {"wait4", d.sysWait4},
		SysSpawn:        {"spawn", d.sysSpawn},
		SysTaskInfo:     {"task_info", d.sysTaskInfo},
	}

	return d
}

// Name returns the name of a call number.
func (d *Dispatcher) Name(id uint64) string {
	h, ok := d.handlers[id]
	if !ok {
		return tracing.UnknownSyscall
	}

	return h.name
}

// Dispatch runs the system call p trapped on. The pc of p must point at the
// ecall instruction. The result goes to a0 unless the process exited,
// replaced its image or has to retry the call.
func (d *Dispatcher) Dispatch(p *proc.Process) Outcome {
	tf := &p.Trapframe
	tf.PC += isa.InstrSize

	id := tf.Get(isa.A7)
	args := tf.Args()

	if id < proc.MaxSyscallNum {
		p.SyscallTimes[id]++
	}

	event := tracing.SyscallEvent{
		Cycle: int64(d.timer.ReadCycleCounter()),
		PID:   p.PID,
		ID:    int64(id),
		Name:  d.Name(id),
		Arg0:  int64(args[0]),
		Arg1:  int64(args[1]),
		Arg2:  int64(args[2]),
	}
	d.InvokeHook(tracing.HookCtx{
		Domain: d,
		Pos:    tracing.HookPosSyscallEnter,
		Item:   event,
	})

	var (
		ret int64
		err error
	)

	h, ok := d.handlers[id]
	if ok {
		ret, err = h.fn(p, args)
	} else {
		ret, err = -1, ErrNotImplemented
	}

	outcome := Resume

	switch {
	case errors.Is(err, errExited):
		outcome = Exited
	case errors.Is(err, errReplaced):
	case errors.Is(err, proc.ErrWouldBlock):
		tf.PC -= isa.InstrSize
		outcome = Block
	case errors.Is(err, errYield):
		ret = 0
		tf.Set(isa.A0, 0)
		outcome = Yield
	case err != nil:
		ret = -1
		tf.Set(isa.A0, uint64(ret))
	default:
		tf.Set(isa.A0, uint64(ret))
	}

	event.Ret = ret
	if err != nil && outcome == Resume && !errors.Is(err, errReplaced) {
		event.Err = err.Error()
	}

	d.InvokeHook(tracing.HookCtx{
		Domain: d,
		Pos:    tracing.HookPosSyscallExit,
		Item:   event,
		Detail: outcome,
	})

	return outcome
}

// Exit terminates p with code.
func (d *Dispatcher) Exit(p *proc.Process, code int32) {
	pid := p.PID
	d.table.Exit(p, code)

	d.InvokeHook(tracing.HookCtx{
		Domain: d,
		Pos:    tracing.HookPosProcessExit,
		Item: tracing.ExitEvent{
			Cycle: int64(d.timer.ReadCycleCounter()),
			PID:   pid,
			Code:  code,
		},
	})
}
