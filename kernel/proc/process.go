// Package proc keeps the process table: the process control blocks, their
// lifecycle, and the resources each of them owns.
package proc

import (
	"log"

	"github.com/sarchlab/rvkernel/kernel/isa"
	"github.com/sarchlab/rvkernel/mem/vm"
)

const (
	// NProc is the number of process slots.
	NProc = 64

	// NOFile is the size of the per-process file descriptor table.
	NOFile = 16

	// MaxSyscallNum bounds the call numbers that are counted per process.
	MaxSyscallNum = 500

	// DefaultPriority is the scheduling weight of a new process.
	DefaultPriority = 16

	// IdlePID is the pid of the idle process, which adopts orphans.
	IdlePID = 0
)

// State is the lifecycle state of a process slot.
type State int

// Process states.
const (
	Unused State = iota
	Used
	Sleeping
	Runnable
	Running
	Zombie
)

func (s State) String() string {
	switch s {
	case Unused:
		return "unused"
	case Used:
		return "used"
	case Sleeping:
		return "sleeping"
	case Runnable:
		return "runnable"
	case Running:
		return "running"
	case Zombie:
		return "zombie"
	default:
		return "invalid"
	}
}

// TaskStatus is the state reported to user programs by task_info.
type TaskStatus uint32

// Reported states.
const (
	TaskUnInit TaskStatus = iota
	TaskReady
	TaskRunning
	TaskExited
)

// TaskStatus translates the state for task_info. Asking an unused slot is a
// kernel bug.
func (s State) TaskStatus() TaskStatus {
	switch s {
	case Used, Sleeping, Runnable:
		return TaskReady
	case Running:
		return TaskRunning
	case Zombie:
		return TaskExited
	default:
		log.Panicf("no task status for process state %s", s)
	}

	return TaskUnInit
}

// A Handle is the index of a process slot.
type Handle int

type ref struct {
	slot Handle
	pid  int
}

// A Process is a process control block.
type Process struct {
	PID   int
	Name  string
	State State

	slot     Handle
	parent   ref
	children []Handle

	Space     *vm.AddressSpace
	Trapframe isa.Trapframe
	Files     [NOFile]*OpenFile

	Priority uint64
	Pass     uint64

	SyscallTimes  [MaxSyscallNum]uint32
	Started       bool
	FirstRunCycle uint64
	CPUCycles     uint64
	Schedules     uint64

	ExitCode int32
}

// Handle returns the slot of the process.
func (p *Process) Handle() Handle {
	return p.slot
}

// NumChildren returns the number of children that are not yet reaped.
func (p *Process) NumChildren() int {
	return len(p.children)
}

// MarkScheduled records that the process got the cpu at cycle now.
func (p *Process) MarkScheduled(now uint64) {
	if !p.Started {
		p.Started = true
		p.FirstRunCycle = now
	}

	p.Schedules++
}

func (p *Process) resetAccounting(now uint64, started bool) {
	p.SyscallTimes = [MaxSyscallNum]uint32{}
	p.Started = started
	p.FirstRunCycle = now
	p.CPUCycles = 0
	p.Schedules = 0
}

func (p *Process) removeChild(h Handle) {
	for i, c := range p.children {
		if c == h {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
}
