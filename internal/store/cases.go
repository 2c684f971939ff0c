package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/ethicsd/internal/casefile"
)

// ErrCaseNotFound indicates the case ID is unknown.
var ErrCaseNotFound = errors.New("case not found")

// CreateCase persists a registered case with its board record.
func (s *Store) CreateCase(ctx context.Context, c *casefile.Case) error {
	if err := c.Validate(); err != nil {
		return err
	}
	sections, err := json.Marshal(c.Sections)
	if err != nil {
		return fmt.Errorf("failed to encode sections: %w", err)
	}
	questions, err := json.Marshal(stringsOrEmpty(c.BoardQuestions))
	if err != nil {
		return fmt.Errorf("failed to encode board questions: %w", err)
	}
	conclusions, err := json.Marshal(stringsOrEmpty(c.BoardConclusions))
	if err != nil {
		return fmt.Errorf("failed to encode board conclusions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cases (id, title, sections, board_questions, board_conclusions, board_resolution, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, string(sections), string(questions), string(conclusions), c.BoardResolution, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert case: %w", err)
	}
	return nil
}

// GetCase loads a case by ID.
func (s *Store) GetCase(ctx context.Context, caseID string) (*casefile.Case, error) {
	var (
		c           casefile.Case
		sections    string
		questions   string
		conclusions string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, sections, board_questions, board_conclusions, board_resolution, created_at
		FROM cases WHERE id = ?`, caseID).
		Scan(&c.ID, &c.Title, &sections, &questions, &conclusions, &c.BoardResolution, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load case: %w", err)
	}

	if err := json.Unmarshal([]byte(sections), &c.Sections); err != nil {
		return nil, fmt.Errorf("failed to decode sections: %w", err)
	}
	if err := json.Unmarshal([]byte(questions), &c.BoardQuestions); err != nil {
		return nil, fmt.Errorf("failed to decode board questions: %w", err)
	}
	if err := json.Unmarshal([]byte(conclusions), &c.BoardConclusions); err != nil {
		return nil, fmt.Errorf("failed to decode board conclusions: %w", err)
	}
	return &c, nil
}

// ListCases returns all registered cases, newest first.
func (s *Store) ListCases(ctx context.Context) ([]*casefile.Case, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM cases ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cases := make([]*casefile.Case, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetCase(ctx, id)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func stringsOrEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
