package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Tasks runs best-effort side effects (persistence writes, mirrors, publishes).
// Submit never blocks the caller: when the runner is saturated the task is dropped and logged.
// Task errors are logged and swallowed.
type Tasks struct {
	group   errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	closed  atomic.Bool
}

// NewTasks creates a runner allowing at most limit tasks in flight, each bounded by timeout.
func NewTasks(limit int, timeout time.Duration) *Tasks {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tasks{ctx: ctx, cancel: cancel, timeout: timeout}
	if limit > 0 {
		t.group.SetLimit(limit)
	}
	return t
}

// Submit schedules fn. It reports whether the task was accepted.
func (t *Tasks) Submit(name string, fn func(ctx context.Context) error) bool {
	if t.closed.Load() {
		log.Warn().Str("task", name).Msg("task runner closed, dropping task")
		return false
	}
	accepted := t.group.TryGo(func() error {
		ctx := t.ctx
		if t.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t.timeout)
			defer cancel()
		}
		if err := run(ctx, fn); err != nil {
			log.Warn().Err(err).Str("task", name).Msg("best-effort task failed")
		}
		return nil
	})
	if !accepted {
		log.Warn().Str("task", name).Msg("task runner saturated, dropping task")
	}
	return accepted
}

// Wait blocks until every accepted task has finished.
func (t *Tasks) Wait() {
	_ = t.group.Wait()
}

// Close rejects new tasks, waits for in-flight ones and cancels their context.
func (t *Tasks) Close() {
	t.closed.Store(true)
	t.Wait()
	t.cancel()
}

func run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}
