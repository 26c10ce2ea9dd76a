// Package tracing lets observers hook into the kernel. The kernel invokes
// hooks at fixed positions and tracers turn the calls into log lines or
// database rows.
package tracing

// HookPos defines the enum of possible hooking positions
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable defines an object that accept Hooks
type Hookable interface {
	// AcceptHook registers a hook
	AcceptHook(hook Hook)
}

// Hook positions of the kernel.
var (
	// HookPosSyscallEnter triggers when a system call is decoded. The item
	// is a SyscallEvent.
	HookPosSyscallEnter = &HookPos{Name: "SyscallEnter"}

	// HookPosSyscallExit triggers after the handler ran. The item is a
	// SyscallEvent with the result filled in.
	HookPosSyscallExit = &HookPos{Name: "SyscallExit"}

	// HookPosSchedule triggers when the scheduler picks a process. The item
	// is a ScheduleEvent.
	HookPosSchedule = &HookPos{Name: "Schedule"}

	// HookPosProcessExit triggers when a process exits. The item is an
	// ExitEvent.
	HookPosProcessExit = &HookPos{Name: "ProcessExit"}

	// HookPosFault triggers when a process is killed by a fault. The item is
	// a FaultEvent.
	HookPosFault = &HookPos{Name: "Fault"}
)

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
type HookableBase struct {
	Hooks []Hook
}

// NewHookableBase creates a HookableBase object
func NewHookableBase() *HookableBase {
	h := new(HookableBase)
	h.Hooks = make([]Hook, 0)

	return h
}

// AcceptHook register a hook
func (h *HookableBase) AcceptHook(hook Hook) {
	h.Hooks = append(h.Hooks, hook)
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.Hooks)
}

// InvokeHook triggers the register Hooks
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.Hooks {
		hook.Func(ctx)
	}
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}
