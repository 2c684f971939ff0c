package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ethicsd/internal/logging"
)

// StepFunc is the work bound to one step. It returns the number of
// candidate entities the step wrote.
type StepFunc func(ctx context.Context, caseID string) (entityCount int, err error)

// task is one queued step execution.
type task struct {
	run *PipelineRun
	fn  StepFunc
}

// Dispatcher runs triggered steps on a bounded worker pool. Each worker
// processes one task at a time; per-case ordering is guaranteed by the
// controller's active-run and prerequisite checks, so no two steps of the
// same case ever run concurrently.
type Dispatcher struct {
	ctrl        *Controller
	logger      *zap.Logger
	hardTimeout time.Duration

	mu    sync.RWMutex
	steps map[StepID]StepFunc

	tasks chan task
	wg    sync.WaitGroup
	once  sync.Once
}

// NewDispatcher creates a dispatcher with the given pool size. A zero
// hardTimeout disables the per-task deadline.
func NewDispatcher(ctrl *Controller, logger *zap.Logger, workers int, hardTimeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		ctrl:        ctrl,
		logger:      logger,
		hardTimeout: hardTimeout,
		steps:       make(map[StepID]StepFunc),
		tasks:       make(chan task, workers*4),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Register binds a step to its task function.
func (d *Dispatcher) Register(step StepID, fn StepFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.steps[step] = fn
}

// Trigger starts the step for a case: prerequisite and active-run checks
// run synchronously, the task itself runs on the pool.
func (d *Dispatcher) Trigger(ctx context.Context, caseID string, step StepID) (*PipelineRun, error) {
	d.mu.RLock()
	fn, ok := d.steps[step]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStepNotRegistered, step)
	}

	run, err := d.ctrl.StartStep(ctx, caseID, step)
	if err != nil {
		return nil, err
	}

	d.tasks <- task{run: run, fn: fn}
	return run, nil
}

// Close stops accepting tasks and waits for in-flight work.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.tasks)
	})
	d.wg.Wait()
}

// worker processes tasks one at a time.
func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.tasks {
		d.execute(t)
	}
}

// execute runs one step task to a terminal run state. A revoke signal from
// Cancel aborts the task between its checkpoints; written candidates stay.
func (d *Dispatcher) execute(t task) {
	ctx := logging.WithCaseID(context.Background(), t.run.CaseID)
	ctx = logging.WithRunID(ctx, t.run.ID)

	var cancel context.CancelFunc
	if d.hardTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, d.hardTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	if revoke := d.ctrl.revokeChan(t.run.ID); revoke != nil {
		go func() {
			select {
			case <-revoke:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	if err := d.ctrl.MarkRunning(ctx, t.run.ID); err != nil {
		// Cancelled before the worker picked it up.
		d.logger.Warn("task not started", append(logging.ContextFields(ctx), zap.Error(err))...)
		return
	}

	count, err := t.fn(ctx, t.run.CaseID)
	if count > 0 {
		if cerr := d.ctrl.RecordEntityCount(context.Background(), t.run.ID, count); cerr != nil {
			d.logger.Warn("failed to record entity count", append(logging.ContextFields(ctx), zap.Error(cerr))...)
		}
	}

	// Terminal bookkeeping must not die with the task context.
	finishCtx := context.Background()
	switch {
	case err == nil:
		if _, cerr := d.ctrl.Complete(finishCtx, t.run.ID, RunCompleted, ""); cerr != nil {
			d.logger.Error("failed to complete run", append(logging.ContextFields(ctx), zap.Error(cerr))...)
		}
	case errors.Is(err, context.Canceled):
		// Revoked: Cancel already recorded the terminal state; Complete is
		// a no-op if so, and records a failure for a plain context cancel.
		if _, cerr := d.ctrl.Complete(finishCtx, t.run.ID, RunFailed, "task cancelled"); cerr != nil {
			d.logger.Error("failed to finish revoked run", append(logging.ContextFields(ctx), zap.Error(cerr))...)
		}
	case errors.Is(err, context.DeadlineExceeded):
		if _, cerr := d.ctrl.Complete(finishCtx, t.run.ID, RunFailed, "hard timeout exceeded"); cerr != nil {
			d.logger.Error("failed to fail timed-out run", append(logging.ContextFields(ctx), zap.Error(cerr))...)
		}
	default:
		if _, cerr := d.ctrl.Complete(finishCtx, t.run.ID, RunFailed, err.Error()); cerr != nil {
			d.logger.Error("failed to fail run", append(logging.ContextFields(ctx), zap.Error(cerr))...)
		}
	}
}
