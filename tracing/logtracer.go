package tracing

import (
	"fmt"
	"log"
	"strings"
)

// Level filters what a LogTracer prints.
type Level int

// Log levels, from quiet to verbose.
const (
	LevelError Level = iota
	LevelInfo
	LevelTrace
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelInfo:
		return "info"
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel converts a level name.
func ParseLevel(s string) (Level, error) {
	for l := LevelError; l <= LevelDebug; l++ {
		if strings.EqualFold(s, l.String()) {
			return l, nil
		}
	}

	return LevelError, fmt.Errorf("unknown log level %q", s)
}

// LogHookBase provides the common logic for all log hooks.
type LogHookBase struct {
	*log.Logger
}

// A LogTracer prints kernel events.
type LogTracer struct {
	LogHookBase
	level Level
}

// NewLogTracer creates a tracer that prints events at or below level.
func NewLogTracer(logger *log.Logger, level Level) *LogTracer {
	return &LogTracer{
		LogHookBase: LogHookBase{Logger: logger},
		level:       level,
	}
}

// Func prints the event of the hook.
func (t *LogTracer) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosSyscallEnter:
		e := ctx.Item.(SyscallEvent)
		t.logf(LevelDebug, "[%d] pid %d %s(%#x, %#x, %#x)",
			e.Cycle, e.PID, e.Name,
			uint64(e.Arg0), uint64(e.Arg1), uint64(e.Arg2))
	case HookPosSyscallExit:
		e := ctx.Item.(SyscallEvent)
		t.syscallExit(e)
	case HookPosSchedule:
		e := ctx.Item.(ScheduleEvent)
		t.logf(LevelDebug, "[%d] schedule pid %d pass %d",
			e.Cycle, e.PID, e.Pass)
	case HookPosProcessExit:
		e := ctx.Item.(ExitEvent)
		t.logf(LevelInfo, "[%d] pid %d exited with code %d",
			e.Cycle, e.PID, e.Code)
	case HookPosFault:
		e := ctx.Item.(FaultEvent)
		t.logf(LevelError, "[%d] pid %d fault at pc %#x addr %#x: %s",
			e.Cycle, e.PID, uint64(e.PC), uint64(e.Addr), e.Err)
	}
}

func (t *LogTracer) syscallExit(e SyscallEvent) {
	switch {
	case e.Name == UnknownSyscall:
		t.logf(LevelError, "[%d] pid %d unsupported syscall %d",
			e.Cycle, e.PID, uint64(e.ID))
	case e.Err != "":
		t.logf(LevelTrace, "[%d] pid %d %s = %d: %s",
			e.Cycle, e.PID, e.Name, e.Ret, e.Err)
	default:
		t.logf(LevelTrace, "[%d] pid %d %s = %d",
			e.Cycle, e.PID, e.Name, e.Ret)
	}
}

func (t *LogTracer) logf(l Level, format string, args ...any) {
	if l > t.level {
		return
	}

	t.Printf("%-5s "+format, append([]any{l}, args...)...)
}

// UnknownSyscall is the name given to call numbers without a handler.
const UnknownSyscall = "unknown"
