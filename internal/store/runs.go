package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/ethicsd/internal/pipeline"
)

// CreateRun inserts a new pipeline run row.
func (s *Store) CreateRun(ctx context.Context, run *pipeline.PipelineRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (id, case_id, step, status, entity_count, started_at, completed_at, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CaseID, run.Step, run.Status, run.EntityCount, run.StartedAt, run.CompletedAt, run.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetRun loads a run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*pipeline.PipelineRun, error) {
	run, err := s.scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, case_id, step, status, entity_count, started_at, completed_at, error_message
		FROM pipeline_runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrRunNotFound, runID)
	}
	return run, err
}

// ActiveRunForCase returns the case's non-terminal run, or nil.
func (s *Store) ActiveRunForCase(ctx context.Context, caseID string) (*pipeline.PipelineRun, error) {
	run, err := s.scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, case_id, step, status, entity_count, started_at, completed_at, error_message
		FROM pipeline_runs
		WHERE case_id = ? AND status IN (?, ?)
		ORDER BY started_at DESC LIMIT 1`,
		caseID, pipeline.RunQueued, pipeline.RunRunning))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// LatestRunForStep returns the newest run of the step for the case, or
// nil if the step never ran.
func (s *Store) LatestRunForStep(ctx context.Context, caseID string, step pipeline.StepID) (*pipeline.PipelineRun, error) {
	run, err := s.scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, case_id, step, status, entity_count, started_at, completed_at, error_message
		FROM pipeline_runs
		WHERE case_id = ? AND step = ?
		ORDER BY started_at DESC, rowid DESC LIMIT 1`, caseID, step))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// TransitionRun applies a guarded status transition. The guard fails with
// ErrIllegalTransition when the row is no longer in the expected status.
func (s *Store) TransitionRun(ctx context.Context, runID string, from, to pipeline.RunStatus, errMsg string, completedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pipeline_runs
		SET status = ?, error_message = ?, completed_at = COALESCE(?, completed_at)
		WHERE id = ? AND status = ?`,
		to, errMsg, completedAt, runID, from)
	if err != nil {
		return fmt.Errorf("failed to transition run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		current, getErr := s.GetRun(ctx, runID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: run %s is %s, expected %s", pipeline.ErrIllegalTransition, runID, current.Status, from)
	}
	return nil
}

// SetRunEntityCount records how many candidates the run produced.
func (s *Store) SetRunEntityCount(ctx context.Context, runID string, count int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE pipeline_runs SET entity_count = ? WHERE id = ?`, count, runID)
	if err != nil {
		return fmt.Errorf("failed to set entity count: %w", err)
	}
	return nil
}

// RunsForCase returns every run of the case, newest first.
func (s *Store) RunsForCase(ctx context.Context, caseID string) ([]*pipeline.PipelineRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, case_id, step, status, entity_count, started_at, completed_at, error_message
		FROM pipeline_runs WHERE case_id = ?
		ORDER BY started_at DESC, rowid DESC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*pipeline.PipelineRun
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRun(row rowScanner) (*pipeline.PipelineRun, error) {
	var (
		run         pipeline.PipelineRun
		completedAt sql.NullTime
	)
	err := row.Scan(&run.ID, &run.CaseID, &run.Step, &run.Status,
		&run.EntityCount, &run.StartedAt, &completedAt, &run.ErrorMessage)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return &run, nil
}
