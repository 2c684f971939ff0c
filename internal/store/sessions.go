package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/ethicsd/internal/entity"
	"github.com/fyrsmithlabs/ethicsd/internal/session"
)

// CreateSession inserts a session row. The partial unique index enforces
// one open session per (case, pass, section).
func (s *Store) CreateSession(ctx context.Context, sess *session.ExtractionSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extraction_sessions (id, case_id, pass_number, section, created_at, closed_at, cleared)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.CaseID, int(sess.PassNumber), sess.Section, sess.CreatedAt, sess.ClosedAt, sess.Cleared)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession loads a session by ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*session.ExtractionSession, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, case_id, pass_number, section, created_at, closed_at, cleared
		FROM extraction_sessions WHERE id = ?`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, sessionID)
	}
	return sess, err
}

// FindOpenSession returns the open session for the triple, or nil.
func (s *Store) FindOpenSession(ctx context.Context, caseID string, pass entity.Pass, section string) (*session.ExtractionSession, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, case_id, pass_number, section, created_at, closed_at, cleared
		FROM extraction_sessions
		WHERE case_id = ? AND pass_number = ? AND section = ? AND closed_at IS NULL`,
		caseID, int(pass), section))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sess, err
}

// SessionsForPass returns every session of the case and pass, open and
// closed. Review gates use this to check that the pass fully committed.
func (s *Store) SessionsForPass(ctx context.Context, caseID string, pass entity.Pass) ([]*session.ExtractionSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, case_id, pass_number, section, created_at, closed_at, cleared
		FROM extraction_sessions
		WHERE case_id = ? AND pass_number = ?
		ORDER BY created_at`, caseID, int(pass))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*session.ExtractionSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// AppendPrompt writes one immutable prompt record.
func (s *Store) AppendPrompt(ctx context.Context, p *session.ExtractionPrompt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extraction_prompts (id, session_id, concept_type, prompt_text, raw_response, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SessionID, p.ConceptType, p.PromptText, p.RawResponse, p.Model, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert prompt: %w", err)
	}
	return nil
}

// PromptsForSession returns the session's prompt records in write order.
func (s *Store) PromptsForSession(ctx context.Context, sessionID string) ([]*session.ExtractionPrompt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, concept_type, prompt_text, raw_response, model, created_at
		FROM extraction_prompts WHERE session_id = ?
		ORDER BY created_at, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []*session.ExtractionPrompt
	for rows.Next() {
		var p session.ExtractionPrompt
		if err := rows.Scan(&p.ID, &p.SessionID, &p.ConceptType, &p.PromptText, &p.RawResponse, &p.Model, &p.CreatedAt); err != nil {
			return nil, err
		}
		prompts = append(prompts, &p)
	}
	return prompts, rows.Err()
}

func scanSession(row rowScanner) (*session.ExtractionSession, error) {
	var (
		sess     session.ExtractionSession
		pass     int
		closedAt sql.NullTime
	)
	err := row.Scan(&sess.ID, &sess.CaseID, &pass, &sess.Section, &sess.CreatedAt, &closedAt, &sess.Cleared)
	if err != nil {
		return nil, err
	}
	sess.PassNumber = entity.Pass(pass)
	if closedAt.Valid {
		t := closedAt.Time
		sess.ClosedAt = &t
	}
	return &sess, nil
}
