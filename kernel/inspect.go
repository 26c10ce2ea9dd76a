package kernel

import (
	"github.com/sarchlab/rvkernel/kernel/proc"
)

// ProcessInfo is a snapshot of one process.
type ProcessInfo struct {
	PID       int
	PPID      int
	Name      string
	State     string
	Priority  uint64
	Pass      uint64
	CPUCycles uint64
	Schedules uint64
	Pages     int
	Brk       uint64
	OpenFiles int
	Children  int
	ExitCode  int32
	Syscalls  map[string]uint32
}

// MemoryInfo is a snapshot of the frame allocator.
type MemoryInfo struct {
	TotalFrames int
	FreeFrames  int
}

// Processes returns a snapshot of all live processes in slot order.
func (k *Kernel) Processes() []ProcessInfo {
	k.mu.Lock()
	defer k.mu.Unlock()

	var infos []ProcessInfo

	k.table.Each(func(p *proc.Process) {
		infos = append(infos, k.describe(p))
	})

	return infos
}

// Process returns a snapshot of the process with pid.
func (k *Kernel) Process(pid int) (ProcessInfo, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	p, ok := k.table.Lookup(pid)
	if !ok {
		return ProcessInfo{}, false
	}

	return k.describe(p), true
}

// Memory returns the frame usage.
func (k *Kernel) Memory() MemoryInfo {
	k.mu.Lock()
	defer k.mu.Unlock()

	return MemoryInfo{
		TotalFrames: k.alloc.NumFrames(),
		FreeFrames:  k.alloc.NumFree(),
	}
}

func (k *Kernel) describe(p *proc.Process) ProcessInfo {
	info := ProcessInfo{
		PID:       p.PID,
		PPID:      k.table.ParentPID(p),
		Name:      p.Name,
		State:     p.State.String(),
		Priority:  p.Priority,
		Pass:      p.Pass,
		CPUCycles: p.CPUCycles,
		Schedules: p.Schedules,
		Children:  p.NumChildren(),
		ExitCode:  p.ExitCode,
		Syscalls:  make(map[string]uint32),
	}

	if p.Space != nil {
		info.Pages = p.Space.NumUserPages()
		info.Brk = p.Space.ProgramBrk()
	}

	for _, f := range p.Files {
		if f != nil {
			info.OpenFiles++
		}
	}

	for id, n := range p.SyscallTimes {
		if n > 0 {
			info.Syscalls[k.disp.Name(uint64(id))] = n
		}
	}

	return info
}
