package kernel

import (
	"os"

	"github.com/sarchlab/rvkernel/kernel/dev"
	"github.com/sarchlab/rvkernel/kernel/fs"
	"github.com/sarchlab/rvkernel/kernel/hart"
	"github.com/sarchlab/rvkernel/kernel/loader"
	"github.com/sarchlab/rvkernel/kernel/proc"
	"github.com/sarchlab/rvkernel/kernel/sched"
	"github.com/sarchlab/rvkernel/kernel/syscall"
	"github.com/sarchlab/rvkernel/mem/phys"
	"github.com/sarchlab/rvkernel/tracing"
)

// Builder can build kernels.
type Builder struct {
	numFrames int
	quantum   uint64
	console   dev.Console
	fs        fs.FileSystem
	images    []loader.Image
	tracers   []tracing.Hook
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		numFrames: 1024,
		quantum:   10000,
	}
}

// WithNumFrames sets the number of physical frames.
func (b Builder) WithNumFrames(n int) Builder {
	b.numFrames = n
	return b
}

// WithQuantum sets how many cycles a process may run before it is
// preempted.
func (b Builder) WithQuantum(cycles uint64) Builder {
	b.quantum = cycles
	return b
}

// WithConsole sets the console. The default uses stdin and stdout.
func (b Builder) WithConsole(c dev.Console) Builder {
	b.console = c
	return b
}

// WithFileSystem sets the file system. The default is an empty MemFS.
func (b Builder) WithFileSystem(f fs.FileSystem) Builder {
	b.fs = f
	return b
}

// WithPrograms adds program images that processes can spawn and exec.
func (b Builder) WithPrograms(images ...loader.Image) Builder {
	b.images = append(append([]loader.Image(nil), b.images...), images...)
	return b
}

// WithTracer attaches a hook to every part of the kernel.
func (b Builder) WithTracer(t tracing.Hook) Builder {
	b.tracers = append(append([]tracing.Hook(nil), b.tracers...), t)
	return b
}

// Build creates a kernel.
func (b Builder) Build() *Kernel {
	if b.numFrames <= 0 {
		panic("kernel needs at least one frame")
	}

	if b.quantum == 0 {
		panic("quantum must be positive")
	}

	k := &Kernel{
		HookableBase: tracing.NewHookableBase(),
		id:           newID(),
		quantum:      b.quantum,
		clock:        &dev.CycleCounter{},
		console:      b.console,
	}

	if k.console == nil {
		k.console = dev.NewStdioConsole(os.Stdin, os.Stdout)
	}

	fsys := b.fs
	if fsys == nil {
		fsys = fs.NewMemFS()
	}

	k.alloc = phys.NewFreeListAllocator(phys.NewMemory(b.numFrames))
	k.hart = hart.New(k.clock)

	k.programs = loader.NewRegistry(k.alloc)
	for _, img := range b.images {
		k.programs.Register(img)
	}

	k.table = proc.NewTable(k.programs, fsys, k.clock)
	k.sched = sched.New(k.table, k.clock)
	input := unlockedInput{Console: k.console, mu: &k.mu}
	k.disp = syscall.NewDispatcher(k.table, k.sched, input, k.clock, fsys)

	for _, t := range b.tracers {
		k.AcceptHook(t)
	}

	return k
}
