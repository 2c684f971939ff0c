package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/ethicsd/internal/synthesis"
)

// ErrDecisionPointNotFound indicates the decision point ID is unknown.
var ErrDecisionPointNotFound = errors.New("decision point not found")

// SaveDecisionPoints persists decision points and their options in one
// transaction. Points are immutable after this; re-synthesis inserts new
// rows.
func (s *Store) SaveDecisionPoints(ctx context.Context, points []synthesis.DecisionPoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range points {
		roleIDs, err := json.Marshal(stringsOrEmpty(p.InvolvedRoleIDs))
		if err != nil {
			return fmt.Errorf("failed to encode role ids: %w", err)
		}
		provisionIDs, err := json.Marshal(stringsOrEmpty(p.ApplicableProvisionIDs))
		if err != nil {
			return fmt.Errorf("failed to encode provision ids: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO decision_points
				(id, case_id, focus_description, decision_question, involved_role_ids, applicable_provision_ids,
				 board_resolution, board_reasoning, alignment_score, synthesis_method, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.CaseID, p.FocusDescription, p.DecisionQuestion, string(roleIDs), string(provisionIDs),
			p.BoardResolution, p.BoardReasoning, p.AlignmentScore, p.SynthesisMethod, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert decision point %s: %w", p.ID, err)
		}

		for pos, opt := range p.Options {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO decision_options
					(id, decision_point_id, description, moral_intensity_score, is_board_choice, position)
				VALUES (?, ?, ?, ?, ?, ?)`,
				opt.ID, p.ID, opt.Description, opt.MoralIntensityScore, opt.IsBoardChoice, pos)
			if err != nil {
				return fmt.Errorf("failed to insert decision option %s: %w", opt.ID, err)
			}
		}
	}
	return tx.Commit()
}

// DecisionPointsForCase returns the case's decision points with options,
// oldest first.
func (s *Store) DecisionPointsForCase(ctx context.Context, caseID string) ([]synthesis.DecisionPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, case_id, focus_description, decision_question, involved_role_ids, applicable_provision_ids,
		       board_resolution, board_reasoning, alignment_score, synthesis_method, created_at
		FROM decision_points WHERE case_id = ?
		ORDER BY created_at, rowid`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decision points: %w", err)
	}
	defer rows.Close()

	var points []synthesis.DecisionPoint
	for rows.Next() {
		var (
			p            synthesis.DecisionPoint
			roleIDs      string
			provisionIDs string
			score        sql.NullFloat64
		)
		err := rows.Scan(&p.ID, &p.CaseID, &p.FocusDescription, &p.DecisionQuestion, &roleIDs, &provisionIDs,
			&p.BoardResolution, &p.BoardReasoning, &score, &p.SynthesisMethod, &p.CreatedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(roleIDs), &p.InvolvedRoleIDs); err != nil {
			return nil, fmt.Errorf("failed to decode role ids: %w", err)
		}
		if err := json.Unmarshal([]byte(provisionIDs), &p.ApplicableProvisionIDs); err != nil {
			return nil, fmt.Errorf("failed to decode provision ids: %w", err)
		}
		if score.Valid {
			v := score.Float64
			p.AlignmentScore = &v
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range points {
		options, err := s.optionsForPoint(ctx, points[i].ID)
		if err != nil {
			return nil, err
		}
		points[i].Options = options
	}
	return points, nil
}

// SetAlignmentScore records the alignment score exactly once. Returns
// false without error when the point is already scored.
func (s *Store) SetAlignmentScore(ctx context.Context, pointID string, score float64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE decision_points SET alignment_score = ?
		WHERE id = ? AND alignment_score IS NULL`, score, pointID)
	if err != nil {
		return false, fmt.Errorf("failed to set alignment score: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(1) FROM decision_points WHERE id = ?`, pointID).Scan(&exists); err != nil {
			return false, err
		}
		if exists == 0 {
			return false, fmt.Errorf("%w: %s", ErrDecisionPointNotFound, pointID)
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) optionsForPoint(ctx context.Context, pointID string) ([]synthesis.DecisionOption, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, decision_point_id, description, moral_intensity_score, is_board_choice
		FROM decision_options WHERE decision_point_id = ?
		ORDER BY position`, pointID)
	if err != nil {
		return nil, fmt.Errorf("failed to list options: %w", err)
	}
	defer rows.Close()

	var options []synthesis.DecisionOption
	for rows.Next() {
		var opt synthesis.DecisionOption
		if err := rows.Scan(&opt.ID, &opt.DecisionPointID, &opt.Description, &opt.MoralIntensityScore, &opt.IsBoardChoice); err != nil {
			return nil, err
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}
