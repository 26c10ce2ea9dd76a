package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/rvkernel/tracing"
)

// A ProgressBar counts the processes of a run that are still alive and those
// that have exited.
type ProgressBar struct {
	sync.Mutex
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

type progressBarRsp struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

func (b *ProgressBar) snapshot() progressBarRsp {
	b.Lock()
	defer b.Unlock()

	return progressBarRsp{
		ID:         b.ID,
		Name:       b.Name,
		StartTime:  b.StartTime,
		Total:      b.Total,
		Finished:   b.Finished,
		InProgress: b.InProgress,
	}
}

// IncrementInProgress adds the number of in-progress element.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress += amount
}

// MoveInProgressToFinished reduces the number of in progress item by a certain
// amount and increase the finished item by the same amount.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress -= amount
	b.Finished += amount
}

// ExitTracker is a hook that advances a bar when a watched process exits.
type ExitTracker struct {
	bar *ProgressBar

	mu   sync.Mutex
	pids map[int]bool
}

// NewExitTracker creates a tracker that reports to bar.
func NewExitTracker(bar *ProgressBar) *ExitTracker {
	return &ExitTracker{
		bar:  bar,
		pids: make(map[int]bool),
	}
}

// Watch marks pid as in progress.
func (t *ExitTracker) Watch(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pids[pid] = true
	t.bar.IncrementInProgress(1)
}

// Func moves watched processes to finished when they exit.
func (t *ExitTracker) Func(ctx tracing.HookCtx) {
	if ctx.Pos != tracing.HookPosProcessExit {
		return
	}

	e := ctx.Item.(tracing.ExitEvent)

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.pids[e.PID] {
		return
	}

	delete(t.pids, e.PID)
	t.bar.MoveInProgressToFinished(1)
}
