package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ethicsd/internal/logging"
)

// RunStore is the persistence surface the controller needs.
type RunStore interface {
	CreateRun(ctx context.Context, run *PipelineRun) error
	GetRun(ctx context.Context, runID string) (*PipelineRun, error)

	// ActiveRunForCase returns the case's non-terminal run, or nil.
	ActiveRunForCase(ctx context.Context, caseID string) (*PipelineRun, error)

	// LatestRunForStep returns the newest run of the step for the case,
	// or nil if the step never ran.
	LatestRunForStep(ctx context.Context, caseID string, step StepID) (*PipelineRun, error)

	// TransitionRun updates the run's status with an optimistic guard on
	// the expected current status. Terminal transitions record the
	// completion time and error message.
	TransitionRun(ctx context.Context, runID string, from, to RunStatus, errMsg string, completedAt *time.Time) error

	SetRunEntityCount(ctx context.Context, runID string, count int) error
}

// Controller enforces the step graph and run lifecycle.
type Controller struct {
	store  RunStore
	logger *zap.Logger

	mu      sync.Mutex
	revokes map[string]chan struct{}
}

// NewController creates a pipeline run controller.
func NewController(store RunStore, logger *zap.Logger) *Controller {
	return &Controller{
		store:   store,
		logger:  logger,
		revokes: make(map[string]chan struct{}),
	}
}

// StartStep creates a queued run for the step after checking that no run
// is active for the case and that the predecessor step completed. When the
// step is re-run, the prior completed run is relabeled superseded.
func (c *Controller) StartStep(ctx context.Context, caseID string, step StepID) (*PipelineRun, error) {
	if !step.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStep, step)
	}

	// Serializes start checks in-process; the store guard backs this up.
	c.mu.Lock()
	defer c.mu.Unlock()

	active, err := c.store.ActiveRunForCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active run: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("%w: case %s step %s is %s (run %s)",
			ErrRunAlreadyActive, caseID, active.Step, active.Status, active.ID)
	}

	if prev := step.Prev(); prev != "" {
		prevRun, err := c.store.LatestRunForStep(ctx, caseID, prev)
		if err != nil {
			return nil, fmt.Errorf("failed to check prerequisite: %w", err)
		}
		if prevRun == nil || prevRun.Status != RunCompleted {
			return nil, fmt.Errorf("%w: step %s requires step %s to be completed", ErrPrerequisiteNotMet, step, prev)
		}
	}

	if prior, err := c.store.LatestRunForStep(ctx, caseID, step); err != nil {
		return nil, fmt.Errorf("failed to check prior run: %w", err)
	} else if prior != nil && prior.Status == RunCompleted {
		now := time.Now().UTC()
		if err := c.store.TransitionRun(ctx, prior.ID, RunCompleted, RunSuperseded, "", &now); err != nil {
			return nil, fmt.Errorf("failed to supersede prior run: %w", err)
		}
	}

	run := &PipelineRun{
		ID:        uuid.NewString(),
		CaseID:    caseID,
		Step:      step,
		Status:    RunQueued,
		StartedAt: time.Now().UTC(),
	}
	if err := c.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	c.revokes[run.ID] = make(chan struct{})

	c.logger.Info("pipeline step queued",
		append(logging.ContextFields(ctx),
			zap.String("case.id", caseID),
			zap.String("run.id", run.ID),
			zap.String("step", string(step)))...)
	return run, nil
}

// MarkRunning transitions a queued run to running. Called by the worker
// when it picks the task up.
func (c *Controller) MarkRunning(ctx context.Context, runID string) error {
	if err := c.store.TransitionRun(ctx, runID, RunQueued, RunRunning, "", nil); err != nil {
		return fmt.Errorf("failed to mark run %s running: %w", runID, err)
	}
	return nil
}

// Cancel transitions a queued or running run to cancelled and signals its
// task to exit. Candidates already written stay in place; nothing is
// rolled back.
//
// The revoke signal is process-local: cancelling from another process
// flips the stored status but cannot interrupt the owning process's
// task, which then finishes its remaining calls and finds Complete a
// terminal no-op.
func (c *Controller) Cancel(ctx context.Context, runID string) error {
	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return fmt.Errorf("%w: run %s is already %s", ErrIllegalTransition, runID, run.Status)
	}

	now := time.Now().UTC()
	if err := c.store.TransitionRun(ctx, runID, run.Status, RunCancelled, "", &now); err != nil {
		return fmt.Errorf("failed to cancel run %s: %w", runID, err)
	}

	c.mu.Lock()
	if revoke, ok := c.revokes[runID]; ok {
		close(revoke)
		delete(c.revokes, runID)
	}
	c.mu.Unlock()

	c.logger.Info("pipeline run cancelled",
		zap.String("case.id", run.CaseID),
		zap.String("run.id", runID),
		zap.String("step", string(run.Step)))
	return nil
}

// Complete moves a run to a terminal state. It is the only legal way to
// reach completed or failed. Calling it on an already-terminal run is an
// idempotent no-op returning the recorded terminal status.
func (c *Controller) Complete(ctx context.Context, runID string, status RunStatus, errMsg string) (RunStatus, error) {
	if !status.Terminal() {
		return "", fmt.Errorf("%w: %s is not a terminal status", ErrIllegalTransition, status)
	}

	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	if run.Status.Terminal() {
		return run.Status, nil
	}
	if !run.Status.CanTransition(status) {
		return "", fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, run.Status, status)
	}

	now := time.Now().UTC()
	if err := c.store.TransitionRun(ctx, runID, run.Status, status, errMsg, &now); err != nil {
		return "", fmt.Errorf("failed to complete run %s: %w", runID, err)
	}

	c.mu.Lock()
	delete(c.revokes, runID)
	c.mu.Unlock()

	fields := []zap.Field{
		zap.String("case.id", run.CaseID),
		zap.String("run.id", runID),
		zap.String("step", string(run.Step)),
		zap.String("status", string(status)),
	}
	if errMsg != "" {
		fields = append(fields, zap.String("error", errMsg))
	}
	c.logger.Info("pipeline run finished", fields...)
	return status, nil
}

// RecordEntityCount records how many candidates a run wrote.
func (c *Controller) RecordEntityCount(ctx context.Context, runID string, count int) error {
	return c.store.SetRunEntityCount(ctx, runID, count)
}

// Status returns the run record for status queries.
func (c *Controller) Status(ctx context.Context, runID string) (*PipelineRun, error) {
	return c.store.GetRun(ctx, runID)
}

// ActiveRun returns the case's non-terminal run, or nil.
func (c *Controller) ActiveRun(ctx context.Context, caseID string) (*PipelineRun, error) {
	return c.store.ActiveRunForCase(ctx, caseID)
}

// revokeChan returns the revoke channel for a run, or nil if the run has
// no pending task.
func (c *Controller) revokeChan(runID string) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revokes[runID]
}
