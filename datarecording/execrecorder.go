package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecInfoTable is the table an ExecRecorder writes to.
const ExecInfoTable = "exec_info"

const execTimeFormat = "2006-01-02 15:04:05.000000000"

// ExecInfo is one property of a recorded run.
type ExecInfo struct {
	Property string
	Value    string
}

// ExecRecorder records how and when the program that produced a trace was
// run.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

// NewExecRecorder creates the exec_info table in recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	recorder.CreateTable(ExecInfoTable, ExecInfo{})

	return &ExecRecorder{recorder: recorder}
}

// Start notes the start time, the command line and the working directory.
func (e *ExecRecorder) Start() {
	e.Set("Start Time", time.Now().Format(execTimeFormat))
	e.Set("Command", strings.Join(os.Args, " "))

	cwd, err := os.Getwd()
	if err == nil {
		e.Set("Working Directory", cwd)
	}
}

// Set adds a property to the run.
func (e *ExecRecorder) Set(property, value string) {
	e.entries = append(e.entries, ExecInfo{Property: property, Value: value})
}

// End writes all properties plus the end time and flushes the recorder.
func (e *ExecRecorder) End() {
	e.Set("End Time", time.Now().Format(execTimeFormat))

	for _, entry := range e.entries {
		e.recorder.InsertData(ExecInfoTable, entry)
	}

	e.entries = nil

	e.recorder.Flush()
}
