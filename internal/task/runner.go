// Package task runs long operations off the interactive path. At most one
// task per (image, operation) is in flight; a duplicate request is dropped
// rather than queued. Tasks cannot be cancelled once started.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Op names a long-running operation.
type Op string

const (
	OpLocate  Op = "locate"
	OpSegment Op = "segment"
)

// Key identifies a task.
type Key struct {
	Image string
	Op    Op
}

func (k Key) String() string {
	return fmt.Sprintf("%s(%s)", k.Op, k.Image)
}

// Func is the body of a task.
type Func func(ctx context.Context) (any, error)

// Task is a handle on a dispatched operation. It completes exactly once.
type Task struct {
	key   Key
	done  chan struct{}
	value any
	err   error
}

// Key returns the task's key.
func (t *Task) Key() Key { return t.key }

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result blocks until the task finishes and returns its outcome.
func (t *Task) Result() (any, error) {
	<-t.done
	return t.value, t.err
}

// Runner dispatches tasks with a per-key in-flight guard.
type Runner struct {
	logger *slog.Logger

	mu         sync.Mutex
	inflight   map[Key]*Task
	onComplete func(*Task)
	wg         sync.WaitGroup
}

// NewRunner creates a runner.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		logger:   logger,
		inflight: make(map[Key]*Task),
	}
}

// OnComplete registers the completion notification. It is called once per
// task, on the task's goroutine, after Done is closed and before the key
// leaves the in-flight set.
func (r *Runner) OnComplete(fn func(*Task)) {
	r.mu.Lock()
	r.onComplete = fn
	r.mu.Unlock()
}

// Submit starts fn unless a task with the same key is in flight. It returns
// the running task and whether it was newly started.
func (r *Runner) Submit(key Key, fn Func) (*Task, bool) {
	r.mu.Lock()
	if t, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		r.logger.Debug("task already in flight", "task", key.String())
		return t, false
	}
	t := &Task{key: key, done: make(chan struct{})}
	r.inflight[key] = t
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(t, fn)
	return t, true
}

// InFlight reports whether a task with key is running.
func (r *Runner) InFlight(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inflight[key]
	return ok
}

// Wait blocks until every submitted task has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(t *Task, fn Func) {
	defer r.wg.Done()

	start := time.Now()
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				t.err = fmt.Errorf("task %s panicked: %v", t.key, rec)
				r.logger.Error("task panic", "task", t.key.String(), "error", rec, "stack", string(debug.Stack()))
			}
		}()
		t.value, t.err = fn(context.Background())
	}()

	close(t.done)

	if t.err != nil {
		r.logger.Warn("task failed", "task", t.key.String(), "elapsed", time.Since(start), "error", t.err)
	} else {
		r.logger.Info("task complete", "task", t.key.String(), "elapsed", time.Since(start))
	}

	// The key stays in flight until the callback has published the result,
	// so a request made in between still finds this task.
	r.mu.Lock()
	cb := r.onComplete
	r.mu.Unlock()
	if cb != nil {
		cb(t)
	}

	r.mu.Lock()
	delete(r.inflight, t.key)
	r.mu.Unlock()
}
