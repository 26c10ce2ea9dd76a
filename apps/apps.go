// Package apps holds the built-in user programs.
package apps

import (
	"fmt"
	"log"
	"sort"

	"github.com/sarchlab/rvkernel/kernel/fs"
	"github.com/sarchlab/rvkernel/kernel/isa"
	"github.com/sarchlab/rvkernel/kernel/loader"
	"github.com/sarchlab/rvkernel/kernel/syscall"
)

// TextBase is where every program is loaded.
const TextBase = 0x1000

// ChildExitCode is the exit code of child_prog.
const ChildExitCode = 7

// MmapBase is the address the mmap test maps at.
const MmapBase = 0x10000000

type builder func() *isa.Assembler

var programs = map[string]builder{
	"hello":      hello,
	"child_prog": childProg,
	"forkexec":   forkExec,
	"echo":       echo,
	"stride":     strideLauncher,
	"stride2":    func() *isa.Assembler { return strideWorker(2) },
	"stride4":    func() *isa.Assembler { return strideWorker(4) },
	"mmaptest":   mmapTest,
	"sbrktest":   sbrkTest,
	"filetest":   fileTest,
	"usertests":  userTests,
}

// All assembles every built-in program in name order.
func All() []loader.Image {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}

	sort.Strings(names)

	images := make([]loader.Image, 0, len(names))
	for _, name := range names {
		images = append(images, MustImage(name))
	}

	return images
}

// MustImage assembles one built-in program.
func MustImage(name string) loader.Image {
	b, ok := programs[name]
	if !ok {
		log.Panicf("no built-in program %q", name)
	}

	p, err := b().Assemble(TextBase)
	if err != nil {
		log.Panicf("assembling %s: %v", name, err)
	}

	return loader.Image{Name: name, Program: p}
}

// puts writes the string stored under label. It clobbers a0 to a2.
func puts(a *isa.Assembler, label, s string) *isa.Assembler {
	return a.String(label, s).
		Li(isa.A0, 1).
		La(isa.A1, label).
		Li(isa.A2, int64(len(s))).
		Syscall(syscall.SysWrite)
}

func exitWith(a *isa.Assembler, code int64) *isa.Assembler {
	return a.Li(isa.A0, code).Syscall(syscall.SysExit)
}

// fail is the shared error exit: print a message and exit with 1.
func fail(a *isa.Assembler, name string) *isa.Assembler {
	a.Label("fail")
	puts(a, "failmsg", name+" failed\n")

	return exitWith(a, 1)
}

func hello() *isa.Assembler {
	a := isa.NewAssembler().Label("_start")
	puts(a, "msg", "Hello, world!\n")

	return exitWith(a, 0)
}

func childProg() *isa.Assembler {
	a := isa.NewAssembler().Label("_start")
	puts(a, "msg", "child_prog running\n")

	return exitWith(a, ChildExitCode)
}

// forkExec forks; the child checks getppid and execs child_prog, the parent
// waits and checks the exit status.
func forkExec() *isa.Assembler {
	a := isa.NewAssembler().
		String("child", "child_prog").
		Space("status", 8).
		Label("_start").
		Syscall(syscall.SysGetpid).
		Mv(isa.S0, isa.A0).
		Syscall(syscall.SysClone).
		Beq(isa.A0, isa.Zero, "child").
		Blt(isa.A0, isa.Zero, "fail").
		Mv(isa.S1, isa.A0).
		Li(isa.A0, -1).
		La(isa.A1, "status").
		Syscall(syscall.SysWait4).
		Bne(isa.A0, isa.S1, "fail").
		La(isa.T0, "status").
		Ld(isa.T1, isa.T0, 0).
		Li(isa.T2, ChildExitCode).
		Bne(isa.T1, isa.T2, "fail")
	puts(a, "ok", "forkexec ok\n")
	exitWith(a, 0)

	a.Label("child").
		Syscall(syscall.SysGetppid).
		Bne(isa.A0, isa.S0, "fail").
		La(isa.A0, "child").
		Li(isa.A1, 0).
		Syscall(syscall.SysExecve).
		J("fail")

	return fail(a, "forkexec")
}

// echo prints its arguments separated by spaces.
func echo() *isa.Assembler {
	a := isa.NewAssembler().
		String("space", " ").
		String("newline", "\n").
		Label("_start").
		Mv(isa.S0, isa.A0).
		Mv(isa.S1, isa.A1).
		Li(isa.S2, 1).
		Label("loop").
		Blt(isa.S2, isa.S0, "word").
		J("done").
		Label("word").
		Li(isa.T1, 8).
		Mul(isa.T1, isa.S2, isa.T1).
		Add(isa.T1, isa.S1, isa.T1).
		Ld(isa.T0, isa.T1, 0).
		Li(isa.T2, 0).
		Label("strlen").
		Add(isa.T3, isa.T0, isa.T2).
		Lbu(isa.T4, isa.T3, 0).
		Beq(isa.T4, isa.Zero, "emit").
		Addi(isa.T2, isa.T2, 1).
		J("strlen").
		Label("emit").
		Li(isa.A0, 1).
		Mv(isa.A1, isa.T0).
		Mv(isa.A2, isa.T2).
		Syscall(syscall.SysWrite).
		Addi(isa.S2, isa.S2, 1).
		Bne(isa.S2, isa.S0, "sep").
		J("loop").
		Label("sep").
		Li(isa.A0, 1).
		La(isa.A1, "space").
		Li(isa.A2, 1).
		Syscall(syscall.SysWrite).
		J("loop").
		Label("done").
		Li(isa.A0, 1).
		La(isa.A1, "newline").
		Li(isa.A2, 1).
		Syscall(syscall.SysWrite)

	return exitWith(a, 0)
}

// StrideSpins is how many loop iterations a stride worker runs.
const StrideSpins = 1 << 20

func strideWorker(priority int64) *isa.Assembler {
	a := isa.NewAssembler().
		Label("_start").
		Li(isa.A0, priority).
		Syscall(syscall.SysSetPriority).
		Li(isa.T0, 0).
		Li(isa.T1, StrideSpins).
		Label("spin").
		Addi(isa.T0, isa.T0, 1).
		Blt(isa.T0, isa.T1, "spin")
	puts(a, "msg", fmt.Sprintf("stride%d done\n", priority))

	return exitWith(a, 0)
}

// strideLauncher spawns the two workers and waits for both.
func strideLauncher() *isa.Assembler {
	a := isa.NewAssembler().
		String("w2", "stride2").
		String("w4", "stride4").
		Label("_start").
		La(isa.A0, "w2").
		Syscall(syscall.SysSpawn).
		Blt(isa.A0, isa.Zero, "fail").
		La(isa.A0, "w4").
		Syscall(syscall.SysSpawn).
		Blt(isa.A0, isa.Zero, "fail").
		Li(isa.A0, -1).
		Li(isa.A1, 0).
		Syscall(syscall.SysWait4).
		Li(isa.A0, -1).
		Li(isa.A1, 0).
		Syscall(syscall.SysWait4)
	exitWith(a, 0)

	return fail(a, "stride")
}

// mmapTest maps a page, uses it, checks that mapping it again fails and
// unmaps it.
func mmapTest() *isa.Assembler {
	a := isa.NewAssembler().
		Label("_start").
		Li(isa.S0, MmapBase).
		Mv(isa.A0, isa.S0).
		Li(isa.A1, 4096).
		Li(isa.A2, 3).
		Syscall(syscall.SysMmap).
		Bne(isa.A0, isa.Zero, "fail").
		Li(isa.T0, 42).
		Sd(isa.T0, isa.S0, 8).
		Mv(isa.A0, isa.S0).
		Li(isa.A1, 4096).
		Li(isa.A2, 3).
		Syscall(syscall.SysMmap).
		Beq(isa.A0, isa.Zero, "fail").
		Ld(isa.T1, isa.S0, 8).
		Li(isa.T0, 42).
		Bne(isa.T0, isa.T1, "fail").
		Mv(isa.A0, isa.S0).
		Li(isa.A1, 4096).
		Syscall(syscall.SysMunmap).
		Bne(isa.A0, isa.Zero, "fail")
	puts(a, "ok", "mmaptest ok\n")
	exitWith(a, 0)

	return fail(a, "mmaptest")
}

// sbrkTest grows the heap by a page, uses it and shrinks it back.
func sbrkTest() *isa.Assembler {
	a := isa.NewAssembler().
		Label("_start").
		Li(isa.A0, 4096).
		Syscall(syscall.SysSbrk).
		Blt(isa.A0, isa.Zero, "fail").
		Mv(isa.S0, isa.A0).
		Li(isa.T0, 99).
		Sd(isa.T0, isa.S0, 4088).
		Ld(isa.T1, isa.S0, 4088).
		Bne(isa.T0, isa.T1, "fail").
		Li(isa.A0, 0).
		Syscall(syscall.SysSbrk).
		Li(isa.T0, 4096).
		Add(isa.T0, isa.S0, isa.T0).
		Bne(isa.A0, isa.T0, "fail").
		Li(isa.A0, -4096).
		Syscall(syscall.SysSbrk).
		Bne(isa.A0, isa.T0, "fail").
		Li(isa.A0, -4096).
		Syscall(syscall.SysSbrk).
		Li(isa.T0, -1).
		Bne(isa.A0, isa.T0, "fail")
	puts(a, "ok", "sbrktest ok\n")
	exitWith(a, 0)

	return fail(a, "sbrktest")
}

// fileTest writes a file, reads it back, links and unlinks it.
func fileTest() *isa.Assembler {
	a := isa.NewAssembler().
		String("name", "data").
		String("alias", "data2").
		String("text", "hello").
		Space("buf", 16).
		Space("stat", 80).
		Label("_start").
		Li(isa.A0, 0).
		La(isa.A1, "name").
		Li(isa.A2, int64(fs.OCreate|fs.OWrOnly)).
		Syscall(syscall.SysOpenat).
		Blt(isa.A0, isa.Zero, "fail").
		Mv(isa.S0, isa.A0).
		La(isa.A1, "text").
		Li(isa.A2, 5).
		Syscall(syscall.SysWrite).
		Li(isa.T0, 5).
		Bne(isa.A0, isa.T0, "fail").
		Mv(isa.A0, isa.S0).
		Syscall(syscall.SysClose).
		Li(isa.A0, 0).
		La(isa.A1, "name").
		Li(isa.A2, int64(fs.ORdOnly)).
		Syscall(syscall.SysOpenat).
		Blt(isa.A0, isa.Zero, "fail").
		Mv(isa.S0, isa.A0).
		La(isa.A1, "buf").
		Li(isa.A2, 16).
		Syscall(syscall.SysRead).
		Li(isa.T0, 5).
		Bne(isa.A0, isa.T0, "fail").
		La(isa.T0, "buf").
		Lbu(isa.T1, isa.T0, 4).
		Li(isa.T2, 'o').
		Bne(isa.T1, isa.T2, "fail").
		Li(isa.A0, 0).
		La(isa.A1, "name").
		Li(isa.A2, 0).
		La(isa.A3, "alias").
		Li(isa.A4, 0).
		Syscall(syscall.SysLinkat).
		Bne(isa.A0, isa.Zero, "fail").
		Mv(isa.A0, isa.S0).
		La(isa.A1, "stat").
		Syscall(syscall.SysFstat).
		Bne(isa.A0, isa.Zero, "fail").
		La(isa.T0, "stat").
		Lbu(isa.T1, isa.T0, 20).
		Li(isa.T2, 2).
		Bne(isa.T1, isa.T2, "fail").
		Li(isa.A0, 0).
		La(isa.A1, "alias").
		Li(isa.A2, 0).
		Syscall(syscall.SysUnlinkat).
		Bne(isa.A0, isa.Zero, "fail").
		Mv(isa.A0, isa.S0).
		Syscall(syscall.SysClose)
	puts(a, "ok", "filetest ok\n")
	exitWith(a, 0)

	return fail(a, "filetest")
}

// userTests spawns each test program in turn and exits with the number of
// failures.
func userTests() *isa.Assembler {
	tests := []string{"hello", "forkexec", "mmaptest", "sbrktest", "filetest"}

	a := isa.NewAssembler().
		Space("status", 8).
		Label("_start").
		Li(isa.S0, 0)

	for i, name := range tests {
		label := fmt.Sprintf("t%d", i)
		next := fmt.Sprintf("next%d", i)

		a.String(label, name).
			La(isa.A0, label).
			Syscall(syscall.SysSpawn).
			Blt(isa.A0, isa.Zero, "count"+next).
			La(isa.A1, "status").
			Syscall(syscall.SysWait4).
			La(isa.T0, "status").
			Ld(isa.T1, isa.T0, 0).
			Beq(isa.T1, isa.Zero, next).
			Label("count"+next).
			Addi(isa.S0, isa.S0, 1).
			Label(next)
	}

	return a.Mv(isa.A0, isa.S0).Syscall(syscall.SysExit)
}
