package tracing

// A SyscallEvent describes one system call. The fields are flat and fit in
// a signed 64-bit column so that the event can be stored as a table row.
// Register values keep their bits; ID is the raw a7.
type SyscallEvent struct {
	Cycle int64
	PID   int
	ID    int64
	Name  string
	Arg0  int64
	Arg1  int64
	Arg2  int64
	Ret   int64
	Err   string
}

// A ScheduleEvent describes one scheduling decision.
type ScheduleEvent struct {
	Cycle    int64
	PID      int
	Priority int64
	Pass     int64
}

// An ExitEvent describes a process exit.
type ExitEvent struct {
	Cycle int64
	PID   int
	Code  int32
}

// A FaultEvent describes a process killed by a bad access or instruction.
// PC and Addr hold the raw address bits.
type FaultEvent struct {
	Cycle int64
	PID   int
	PC    int64
	Addr  int64
	Err   string
}
