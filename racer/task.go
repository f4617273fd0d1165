package racer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fernwehq/sshrace/logger"
)

// TaskFunc performs one pass of a task loop. It returns true to keep the
// loop running, or false to stop the goroutine.
type TaskFunc func() bool

// TaskManager owns the goroutines driving a session's candidates. It
// provides a structured way to start, stop, and wait for them, ensuring
// cancellation propagates through the shared context.
type TaskManager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
}

// NewTaskManager creates a new TaskManager with the given context as the
// parent context and logger.
func NewTaskManager(ctx context.Context, l logger.Logger) *TaskManager {
	mgr := &TaskManager{logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)
	return mgr
}

// Start runs taskFunc in a new goroutine under the given name. The loop
// re-invokes taskFunc until it returns false or the manager is stopped.
func (mgr *TaskManager) Start(name string, taskFunc TaskFunc) {
	mgr.logger.Debug("start task", "name", name)
	mgr.count.Add(1)
	mgr.wg.Add(1)

	go func() {
		defer func() {
			mgr.count.Add(-1)
			mgr.wg.Done()
			mgr.logger.Debug("task terminated", "name", name)
		}()

		for {
			select {
			case <-mgr.ctx.Done():
				return
			default:
			}

			if !taskFunc() {
				return
			}
		}
	}()
}

// Stop signals all task loops to stop.
func (mgr *TaskManager) Stop() {
	mgr.cancel()
}

// Wait blocks until all task goroutines have terminated.
func (mgr *TaskManager) Wait() {
	mgr.wg.Wait()
}

// Count returns the number of running tasks.
func (mgr *TaskManager) Count() int32 {
	return mgr.count.Load()
}
