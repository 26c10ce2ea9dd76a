package syscall

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/rvkernel/kernel/dev"
	"github.com/sarchlab/rvkernel/kernel/proc"
	"github.com/sarchlab/rvkernel/kernel/sched"
	"github.com/sarchlab/rvkernel/mem/vm"
)

// TimeVal is the layout written by gettimeofday.
type TimeVal struct {
	Sec  uint64
	Usec uint64
}

// TaskInfo is the layout written by task_info.
type TaskInfo struct {
	Status       uint32
	SyscallTimes [proc.MaxSyscallNum]uint32
	Time         uint32
}

func encode(v any) []byte {
	var buf bytes.Buffer

	err := binary.Write(&buf, binary.LittleEndian, v)
	if err != nil {
		panic(err)
	}

	return buf.Bytes()
}

func (d *Dispatcher) sysExit(p *proc.Process, args [6]uint64) (int64, error) {
	d.Exit(p, int32(args[0]))
	return 0, errExited
}

func (d *Dispatcher) sysSchedYield(*proc.Process, [6]uint64) (int64, error) {
	return 0, errYield
}

func (d *Dispatcher) sysSetPriority(p *proc.Process, args [6]uint64) (int64, error) {
	prio := int64(args[0])
	if prio < 0 || !sched.SetPriority(p, uint64(prio)) {
		return -1, fmt.Errorf("priority %d: %w", prio, ErrBadPriority)
	}

	return prio, nil
}

func (d *Dispatcher) sysGettimeofday(p *proc.Process, args [6]uint64) (int64, error) {
	cycles := d.timer.ReadCycleCounter()
	tv := TimeVal{
		Sec:  cycles / dev.CyclesPerSecond,
		Usec: cycles % dev.CyclesPerSecond * 1_000_000 / dev.CyclesPerSecond,
	}

	err := p.Space.CopyOut(args[0], encode(&tv))
	if err != nil {
		return -1, err
	}

	return 0, nil
}

func (d *Dispatcher) sysGetpid(p *proc.Process, _ [6]uint64) (int64, error) {
	return int64(p.PID), nil
}

func (d *Dispatcher) sysGetppid(p *proc.Process, _ [6]uint64) (int64, error) {
	return int64(d.table.ParentPID(p)), nil
}

func (d *Dispatcher) sysClone(p *proc.Process, _ [6]uint64) (int64, error) {
	child, err := d.table.Fork(p)
	if err != nil {
		return -1, err
	}

	d.sched.Admit(child)

	return int64(child.PID), nil
}

func (d *Dispatcher) sysExecve(p *proc.Process, args [6]uint64) (int64, error) {
	name, err := p.Space.CopyInString(args[0], MaxStrLen)
	if err != nil {
		return -1, err
	}

	argv, err := copyInArgv(p.Space, args[1])
	if err != nil {
		return -1, err
	}

	if argv == nil {
		argv = []string{name}
	}

	err = d.table.Exec(p, name, argv)
	if err != nil {
		return -1, err
	}

	return 0, errReplaced
}

// copyInArgv reads a NULL-terminated array of string pointers. A zero
// address gives a nil slice.
func copyInArgv(as *vm.AddressSpace, va uint64) ([]string, error) {
	if va == 0 {
		return nil, nil
	}

	argv := []string{}

	for i := 0; ; i++ {
		if i > proc.MaxArgs {
			return nil, proc.ErrArgsTooLarge
		}

		var raw [8]byte

		err := as.CopyIn(raw[:], va+uint64(i*8))
		if err != nil {
			return nil, err
		}

		ptr := binary.LittleEndian.Uint64(raw[:])
		if ptr == 0 {
			return argv, nil
		}

		arg, err := as.CopyInString(ptr, MaxStrLen)
		if err != nil {
			return nil, err
		}

		argv = append(argv, arg)
	}
}

func (d *Dispatcher) sysWait4(p *proc.Process, args [6]uint64) (int64, error) {
	pid, status := int64(args[0]), args[1]

	var code [4]byte
	if status != 0 {
		// Check before reaping so that a bad pointer loses no child.
		err := p.Space.Read(code[:], status, vm.FlagWrite)
		if err != nil {
			return -1, err
		}
	}

	childPID, exitCode, err := d.table.Wait(p, int(pid))
	if err != nil {
		return -1, err
	}

	if status != 0 {
		binary.LittleEndian.PutUint32(code[:], uint32(exitCode))

		err = p.Space.CopyOut(status, code[:])
		if err != nil {
			return -1, err
		}
	}

	return int64(childPID), nil
}

func (d *Dispatcher) sysSpawn(p *proc.Process, args [6]uint64) (int64, error) {
	name, err := p.Space.CopyInString(args[0], MaxStrLen)
	if err != nil {
		return -1, err
	}

	child, err := d.table.Spawn(p, name, []string{name})
	if err != nil {
		return -1, err
	}

	d.sched.Admit(child)

	return int64(child.PID), nil
}

func (d *Dispatcher) sysTaskInfo(p *proc.Process, args [6]uint64) (int64, error) {
	info := TaskInfo{
		Status:       uint32(p.State.TaskStatus()),
		SyscallTimes: p.SyscallTimes,
	}

	if p.Started {
		elapsed := d.timer.ReadCycleCounter() - p.FirstRunCycle
		info.Time = uint32(elapsed / (dev.CyclesPerSecond / 1000))
	}

	err := p.Space.CopyOut(args[0], encode(&info))
	if err != nil {
		return -1, err
	}

	return 0, nil
}
