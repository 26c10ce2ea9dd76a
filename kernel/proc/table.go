package proc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"

	"github.com/sarchlab/rvkernel/kernel/dev"
	"github.com/sarchlab/rvkernel/kernel/fs"
	"github.com/sarchlab/rvkernel/kernel/isa"
	"github.com/sarchlab/rvkernel/kernel/loader"
	"github.com/sarchlab/rvkernel/mem/phys"
	"github.com/sarchlab/rvkernel/mem/vm"
)

// MaxArgs bounds the number of exec arguments.
const MaxArgs = 32

var (
	// ErrTableFull is returned when no slot is free.
	ErrTableFull = errors.New("process table full")

	// ErrNoSuchChild is returned by Wait when no child can match.
	ErrNoSuchChild = errors.New("no such child")

	// ErrWouldBlock is returned by Wait when matching children are alive.
	ErrWouldBlock = errors.New("would block")

	// ErrArgsTooLarge is returned when exec arguments do not fit the stack.
	ErrArgsTooLarge = errors.New("arguments too large")
)

// A Loader builds the address space of a named program.
type Loader interface {
	Load(name string) (loader.Program, error)
}

// A Table owns every process slot.
type Table struct {
	slots   [NProc]Process
	nextPID int

	loader Loader
	fs     fs.FileSystem
	timer  dev.Timer
}

// NewTable creates an empty process table.
func NewTable(l Loader, fsys fs.FileSystem, timer dev.Timer) *Table {
	return &Table{
		nextPID: IdlePID + 1,
		loader:  l,
		fs:      fsys,
		timer:   timer,
	}
}

// Get returns the process in slot h.
func (t *Table) Get(h Handle) *Process {
	return &t.slots[h]
}

// Each visits every slot that is in use, in slot order.
func (t *Table) Each(fn func(p *Process)) {
	for i := range t.slots {
		if t.slots[i].State != Unused {
			fn(&t.slots[i])
		}
	}
}

// NumLive returns the number of slots that are in use.
func (t *Table) NumLive() int {
	n := 0
	t.Each(func(*Process) { n++ })

	return n
}

// Lookup finds a live process by pid.
func (t *Table) Lookup(pid int) (*Process, bool) {
	for i := range t.slots {
		p := &t.slots[i]
		if p.State != Unused && p.PID == pid {
			return p, true
		}
	}

	return nil, false
}

// Parent resolves the parent link of p.
func (t *Table) Parent(p *Process) (*Process, bool) {
	if p.parent.pid == IdlePID {
		return nil, false
	}

	q := &t.slots[p.parent.slot]
	if q.State == Unused || q.PID != p.parent.pid {
		return nil, false
	}

	return q, true
}

// ParentPID returns the pid of the parent of p, or IdlePID.
func (t *Table) ParentPID(p *Process) int {
	q, ok := t.Parent(p)
	if !ok {
		return IdlePID
	}

	return q.PID
}

// Children lists the children of p that have not been reaped.
func (t *Table) Children(p *Process) []*Process {
	out := make([]*Process, 0, len(p.children))
	for _, h := range p.children {
		out = append(out, &t.slots[h])
	}

	return out
}

// Alloc takes a free slot and gives it a fresh pid.
func (t *Table) Alloc() (*Process, error) {
	for i := range t.slots {
		if t.slots[i].State != Unused {
			continue
		}

		t.slots[i] = Process{
			PID:      t.nextPID,
			State:    Used,
			slot:     Handle(i),
			Priority: DefaultPriority,
		}
		t.nextPID++

		return &t.slots[i], nil
	}

	return nil, ErrTableFull
}

func (t *Table) free(p *Process) {
	if p.Space != nil {
		log.Panicf("freeing process %d that still owns memory", p.PID)
	}

	t.slots[p.slot] = Process{}
}

func (t *Table) adopt(parent, child *Process) {
	if parent == nil {
		return
	}

	child.parent = ref{slot: parent.slot, pid: parent.PID}
	parent.children = append(parent.children, child.slot)
}

// Spawn creates a runnable process running program name. A nil parent makes
// it a child of idle. The new process gets fresh console streams.
func (t *Table) Spawn(parent *Process, name string, argv []string) (*Process, error) {
	p, err := t.Alloc()
	if err != nil {
		return nil, err
	}

	err = t.Exec(p, name, argv)
	if err != nil {
		t.free(p)
		return nil, err
	}

	p.resetAccounting(0, false)
	t.installStdio(p)
	t.adopt(parent, p)
	p.State = Runnable

	return p, nil
}

// Fork duplicates parent. The child sees 0 in a0, shares the open files and
// inherits the priority.
func (t *Table) Fork(parent *Process) (*Process, error) {
	space, err := parent.Space.Clone()
	if err != nil {
		return nil, err
	}

	child, err := t.Alloc()
	if err != nil {
		space.Destroy()
		return nil, err
	}

	child.Name = parent.Name
	child.Space = space
	child.Trapframe = parent.Trapframe
	child.Trapframe.Set(isa.A0, 0)
	child.Priority = parent.Priority

	for fd, of := range parent.Files {
		if of != nil {
			of.refs++
			child.Files[fd] = of
		}
	}

	t.adopt(parent, child)
	child.State = Runnable

	return child, nil
}

// Exec replaces the image of p with program name. The arguments are copied
// to the new stack; a0 holds their count and a1 the address of the pointer
// array. On failure p keeps its old image.
func (t *Table) Exec(p *Process, name string, argv []string) error {
	if len(argv) > MaxArgs {
		return fmt.Errorf("exec %q: %w", name, ErrArgsTooLarge)
	}

	prog, err := t.loader.Load(name)
	if err != nil {
		return err
	}

	sp, argvAddr, err := pushArgs(prog.Space, prog.StackTop, argv)
	if err != nil {
		prog.Space.Destroy()
		return fmt.Errorf("exec %q: %w", name, err)
	}

	if p.Space != nil {
		p.Space.Destroy()
	}

	p.Space = prog.Space
	p.Name = name
	p.Trapframe = isa.Trapframe{PC: prog.Entry}
	p.Trapframe.Set(isa.SP, sp)
	p.Trapframe.Set(isa.A0, uint64(len(argv)))
	p.Trapframe.Set(isa.A1, argvAddr)
	p.resetAccounting(t.timer.ReadCycleCounter(), true)

	return nil
}

// pushArgs copies the strings and then a NULL-terminated pointer array
// below top. It returns the new stack pointer and the array address.
func pushArgs(as *vm.AddressSpace, top uint64, argv []string) (uint64, uint64, error) {
	sp := top
	limit := top - loader.StackPages*phys.PageSize

	ptrs := make([]uint64, len(argv)+1)
	for i, arg := range argv {
		n := uint64(len(arg)) + 1
		if sp-limit < n {
			return 0, 0, ErrArgsTooLarge
		}

		sp -= n
		if err := as.CopyOut(sp, append([]byte(arg), 0)); err != nil {
			return 0, 0, err
		}

		ptrs[i] = sp
	}

	sp &^= 7
	if sp-limit < uint64(len(ptrs)*8)+16 {
		return 0, 0, ErrArgsTooLarge
	}

	sp -= uint64(len(ptrs) * 8)
	sp &^= 15

	buf := make([]byte, len(ptrs)*8)
	for i, ptr := range ptrs {
		binary.LittleEndian.PutUint64(buf[i*8:], ptr)
	}

	if err := as.CopyOut(sp, buf); err != nil {
		return 0, 0, err
	}

	return sp, sp, nil
}

// Exit turns p into a zombie holding code. Its memory and files are
// released. Zombie children are reaped on the spot, the others become
// children of idle. A process without a parent is reaped at once.
func (t *Table) Exit(p *Process, code int32) {
	if p.State == Unused || p.State == Zombie {
		log.Panicf("process %d exits in state %s", p.PID, p.State)
	}

	if p.Space != nil {
		p.Space.Destroy()
		p.Space = nil
	}

	t.closeAll(p)

	for _, h := range p.children {
		c := &t.slots[h]
		if c.State == Zombie {
			t.free(c)
			continue
		}

		c.parent = ref{}
	}

	p.children = nil
	p.ExitCode = code
	p.State = Zombie

	if _, ok := t.Parent(p); !ok {
		t.free(p)
	}
}

// Wait reaps a zombie child of p. A pid of -1 matches any child. It returns
// ErrNoSuchChild if no child can ever match and ErrWouldBlock if matching
// children are still alive.
func (t *Table) Wait(p *Process, pid int) (int, int32, error) {
	found := false

	for _, h := range p.children {
		c := &t.slots[h]
		if pid != -1 && c.PID != pid {
			continue
		}

		found = true

		if c.State == Zombie {
			childPID, code := c.PID, c.ExitCode
			p.removeChild(h)
			t.free(c)

			return childPID, code, nil
		}
	}

	if !found {
		return 0, 0, fmt.Errorf("wait %d: %w", pid, ErrNoSuchChild)
	}

	return 0, 0, ErrWouldBlock
}
