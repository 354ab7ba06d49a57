package todolist

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/idilsaglam/todosync/internal/api"
	"github.com/idilsaglam/todosync/internal/metrics"
	"github.com/idilsaglam/todosync/internal/model"
)

// State is where a Task is in its request lifecycle.
type State int32

const (
	StateIdle State = iota
	StateInFlight
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "in-flight"
	case StateSucceeded:
		return "settled-success"
	case StateFailed:
		return "settled-failure"
	}
	return "unknown"
}

// Settled reports whether s is terminal.
func (s State) Settled() bool { return s == StateSucceeded || s == StateFailed }

// Task is one background remote call spawned by a mutation.
type Task struct {
	mutation Mutation
	remote   Remote
	consume  bool
	metrics  *metrics.Sync
	state    atomic.Int32
}

// Result carries a finished remote call back to Controller.Settle.
type Result struct {
	Task *Task
	Item *model.Item
	Err  error
}

// Mutation returns the change this task sends.
func (t *Task) Mutation() Mutation { return t.mutation }

// State returns the current lifecycle state.
func (t *Task) State() State { return State(t.state.Load()) }

// Run performs the remote call. It only touches the remote client, so it is
// safe to call from any goroutine, and it only runs once; later calls return
// a zero Result, which Settle ignores.
func (t *Task) Run(ctx context.Context) Result {
	if !t.state.CompareAndSwap(int32(StateIdle), int32(StateInFlight)) {
		return Result{}
	}
	t.metrics.Started()
	it, err := t.mutation.ApplyRemotely(ctx, t.remote)
	if !t.consume {
		it = nil
		if errors.Is(err, api.ErrMalformedBody) {
			err = nil
		}
	}
	return Result{Task: t, Item: it, Err: err}
}
