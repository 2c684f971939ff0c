package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ethicsd/internal/logging"
)

// memRunStore is an in-memory RunStore for controller tests.
type memRunStore struct {
	mu    sync.Mutex
	runs  map[string]*PipelineRun
	order []string
}

func newMemRunStore() *memRunStore {
	return &memRunStore{runs: make(map[string]*PipelineRun)}
}

func (m *memRunStore) CreateRun(_ context.Context, run *PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	m.order = append(m.order, run.ID)
	return nil
}

func (m *memRunStore) GetRun(_ context.Context, runID string) (*PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	cp := *run
	return &cp, nil
}

func (m *memRunStore) ActiveRunForCase(_ context.Context, caseID string) (*PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		run := m.runs[id]
		if run.CaseID == caseID && !run.Status.Terminal() {
			cp := *run
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRunStore) LatestRunForStep(_ context.Context, caseID string, step StepID) (*PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		run := m.runs[m.order[i]]
		if run.CaseID == caseID && run.Step == step {
			cp := *run
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRunStore) TransitionRun(_ context.Context, runID string, from, to RunStatus, errMsg string, completedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if run.Status != from {
		return fmt.Errorf("%w: run %s is %s, expected %s", ErrIllegalTransition, runID, run.Status, from)
	}
	run.Status = to
	run.ErrorMessage = errMsg
	run.CompletedAt = completedAt
	return nil
}

func (m *memRunStore) SetRunEntityCount(_ context.Context, runID string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	run.EntityCount = count
	return nil
}

func newTestController() (*Controller, *memRunStore) {
	store := newMemRunStore()
	return NewController(store, logging.NewNop()), store
}

// finish drives a run to the given terminal state for test setup.
func finish(t *testing.T, ctrl *Controller, runID string, status RunStatus) {
	t.Helper()
	require.NoError(t, ctrl.MarkRunning(context.Background(), runID))
	_, err := ctrl.Complete(context.Background(), runID, status, "")
	require.NoError(t, err)
}

func TestStartStepFirstStep(t *testing.T) {
	ctrl, _ := newTestController()

	run, err := ctrl.StartStep(context.Background(), "case-1", StepContextual)
	require.NoError(t, err)
	assert.Equal(t, RunQueued, run.Status)
	assert.Equal(t, StepContextual, run.Step)
}

func TestStartStepPrerequisiteNotMet(t *testing.T) {
	ctrl, _ := newTestController()

	_, err := ctrl.StartStep(context.Background(), "case-1", StepNormative)
	assert.ErrorIs(t, err, ErrPrerequisiteNotMet)

	// Predecessor exists but failed: still not met.
	run, err := ctrl.StartStep(context.Background(), "case-1", StepContextual)
	require.NoError(t, err)
	require.NoError(t, ctrl.MarkRunning(context.Background(), run.ID))
	_, err = ctrl.Complete(context.Background(), run.ID, RunFailed, "llm unavailable")
	require.NoError(t, err)

	_, err = ctrl.StartStep(context.Background(), "case-1", StepContextualReview)
	assert.ErrorIs(t, err, ErrPrerequisiteNotMet)
}

func TestStartStepLinearOrder(t *testing.T) {
	ctrl, _ := newTestController()
	ctx := context.Background()

	for _, step := range AllSteps() {
		run, err := ctrl.StartStep(ctx, "case-1", step)
		require.NoError(t, err, "step %s should start after predecessor completed", step)
		finish(t, ctrl, run.ID, RunCompleted)
	}
}

func TestStartStepRunAlreadyActive(t *testing.T) {
	ctrl, _ := newTestController()
	ctx := context.Background()

	run, err := ctrl.StartStep(ctx, "case-1", StepContextual)
	require.NoError(t, err)

	// Queued run blocks any other step for the case.
	_, err = ctrl.StartStep(ctx, "case-1", StepContextual)
	assert.ErrorIs(t, err, ErrRunAlreadyActive)

	require.NoError(t, ctrl.MarkRunning(ctx, run.ID))
	_, err = ctrl.StartStep(ctx, "case-1", StepContextual)
	assert.ErrorIs(t, err, ErrRunAlreadyActive)

	// A different case is unaffected.
	_, err = ctrl.StartStep(ctx, "case-2", StepContextual)
	assert.NoError(t, err)
}

func TestAtMostOneNonTerminalRunPerCase(t *testing.T) {
	ctrl, store := newTestController()
	ctx := context.Background()

	run, err := ctrl.StartStep(ctx, "case-1", StepContextual)
	require.NoError(t, err)
	finish(t, ctrl, run.ID, RunCompleted)

	run2, err := ctrl.StartStep(ctx, "case-1", StepContextualReview)
	require.NoError(t, err)

	nonTerminal := 0
	for _, id := range store.order {
		r, err := store.GetRun(ctx, id)
		require.NoError(t, err)
		if r.CaseID == "case-1" && !r.Status.Terminal() {
			nonTerminal++
		}
	}
	assert.Equal(t, 1, nonTerminal)
	assert.Equal(t, run2.Step, StepContextualReview)
}

func TestCompleteIdempotent(t *testing.T) {
	ctrl, _ := newTestController()
	ctx := context.Background()

	run, err := ctrl.StartStep(ctx, "case-1", StepContextual)
	require.NoError(t, err)
	require.NoError(t, ctrl.MarkRunning(ctx, run.ID))

	status, err := ctrl.Complete(ctx, run.ID, RunCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, status)

	// Second call is a no-op returning the recorded terminal status,
	// even when asked for a different one.
	status, err = ctrl.Complete(ctx, run.ID, RunFailed, "late failure")
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, status)

	got, err := ctrl.Status(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestCompleteRejectsNonTerminalStatus(t *testing.T) {
	ctrl, _ := newTestController()
	ctx := context.Background()

	run, err := ctrl.StartStep(ctx, "case-1", StepContextual)
	require.NoError(t, err)

	_, err = ctrl.Complete(ctx, run.ID, RunRunning, "")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestCancelRunningRun(t *testing.T) {
	ctrl, _ := newTestController()
	ctx := context.Background()

	run, err := ctrl.StartStep(ctx, "case-1", StepContextual)
	require.NoError(t, err)
	require.NoError(t, ctrl.MarkRunning(ctx, run.ID))

	revoke := ctrl.revokeChan(run.ID)
	require.NotNil(t, revoke)

	require.NoError(t, ctrl.Cancel(ctx, run.ID))

	select {
	case <-revoke:
	case <-time.After(time.Second):
		t.Fatal("revoke channel was not closed on cancel")
	}

	got, err := ctrl.Status(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunCancelled, got.Status)

	// Cancelling a terminal run is rejected.
	err = ctrl.Cancel(ctx, run.ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestFailedRunCarriesMessage(t *testing.T) {
	ctrl, _ := newTestController()
	ctx := context.Background()

	run, err := ctrl.StartStep(ctx, "case-1", StepContextual)
	require.NoError(t, err)
	require.NoError(t, ctrl.MarkRunning(ctx, run.ID))

	_, err = ctrl.Complete(ctx, run.ID, RunFailed, "extraction soft timeout exceeded")
	require.NoError(t, err)

	got, err := ctrl.Status(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, got.Status)
	assert.Equal(t, "extraction soft timeout exceeded", got.ErrorMessage)
	assert.NotNil(t, got.CompletedAt)
}

func TestRerunSupersedesPriorCompletedRun(t *testing.T) {
	ctrl, _ := newTestController()
	ctx := context.Background()

	first, err := ctrl.StartStep(ctx, "case-1", StepContextual)
	require.NoError(t, err)
	finish(t, ctrl, first.ID, RunCompleted)

	second, err := ctrl.StartStep(ctx, "case-1", StepContextual)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	prior, err := ctrl.Status(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, RunSuperseded, prior.Status)
}

func TestStartStepUnknownStep(t *testing.T) {
	ctrl, _ := newTestController()
	_, err := ctrl.StartStep(context.Background(), "case-1", StepID("9"))
	assert.ErrorIs(t, err, ErrUnknownStep)
}

func TestStatusUnknownRun(t *testing.T) {
	ctrl, _ := newTestController()
	_, err := ctrl.Status(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestRunStatusTransitionTable(t *testing.T) {
	tests := []struct {
		from RunStatus
		to   RunStatus
		want bool
	}{
		{RunQueued, RunRunning, true},
		{RunQueued, RunCancelled, true},
		{RunQueued, RunCompleted, false},
		{RunRunning, RunCompleted, true},
		{RunRunning, RunFailed, true},
		{RunRunning, RunCancelled, true},
		{RunCompleted, RunSuperseded, true},
		{RunCompleted, RunRunning, false},
		{RunFailed, RunRunning, false},
		{RunCancelled, RunQueued, false},
		{RunSuperseded, RunCompleted, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_to_%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestStepGraph(t *testing.T) {
	assert.Equal(t, StepID(""), StepContextual.Prev())
	assert.Equal(t, StepContextual, StepContextualReview.Prev())
	assert.Equal(t, StepNormativeReview, StepTemporal.Prev())
	assert.Equal(t, StepSynthesis, StepAlignment.Prev())
	assert.False(t, StepID("7").Valid())
}
