package tracing

import (
	"sync"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/rvkernel/datarecording"
)

// Table names used by DBTracer.
const (
	SessionTable  = "session"
	SyscallTable  = "syscall"
	ScheduleTable = "schedule"
	ExitTable     = "exit"
	FaultTable    = "fault"
)

// A SessionEntry identifies one kernel run in a trace database.
type SessionEntry struct {
	ID    string
	Label string
}

// DBTracer is a tracer that stores kernel events into a data recorder.
type DBTracer struct {
	mu         sync.Mutex
	backend    datarecording.DataRecorder
	session    string
	terminated bool
}

// NewDBTracer creates a new DBTracer. The recorder is flushed when the
// program exits through atexit.
func NewDBTracer(
	dataRecorder datarecording.DataRecorder,
	label string,
) *DBTracer {
	dataRecorder.CreateTable(SessionTable, SessionEntry{})
	dataRecorder.CreateTable(SyscallTable, SyscallEvent{})
	dataRecorder.CreateTable(ScheduleTable, ScheduleEvent{})
	dataRecorder.CreateTable(ExitTable, ExitEvent{})
	dataRecorder.CreateTable(FaultTable, FaultEvent{})

	t := &DBTracer{
		backend: dataRecorder,
		session: xid.New().String(),
	}

	dataRecorder.InsertData(SessionTable, SessionEntry{
		ID:    t.session,
		Label: label,
	})

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// Session returns the id of the recorded run.
func (t *DBTracer) Session() string {
	return t.session
}

// Func records the event of the hook.
func (t *DBTracer) Func(ctx HookCtx) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated {
		return
	}

	switch ctx.Pos {
	case HookPosSyscallExit:
		t.backend.InsertData(SyscallTable, ctx.Item)
	case HookPosSchedule:
		t.backend.InsertData(ScheduleTable, ctx.Item)
	case HookPosProcessExit:
		t.backend.InsertData(ExitTable, ctx.Item)
	case HookPosFault:
		t.backend.InsertData(FaultTable, ctx.Item)
	}
}

// Terminate flushes the recorder. Later events are dropped.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated {
		return
	}

	t.terminated = true
	t.backend.Flush()
}

// MapTables tells a reader how to scan the tables written by DBTracer.
func MapTables(r datarecording.DataReader) {
	r.MapTable(SessionTable, SessionEntry{})
	r.MapTable(SyscallTable, SyscallEvent{})
	r.MapTable(ScheduleTable, ScheduleEvent{})
	r.MapTable(ExitTable, ExitEvent{})
	r.MapTable(FaultTable, FaultEvent{})
}
