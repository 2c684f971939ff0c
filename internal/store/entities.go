package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/ethicsd/internal/entity"
	"github.com/fyrsmithlabs/ethicsd/internal/session"
)

// AppendCandidates inserts candidate rows. This is the only insert path
// into candidate_entities.
func (s *Store) AppendCandidates(ctx context.Context, entities []*entity.CandidateEntity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entities {
		attrs, err := encodeAttributes(e.Attributes)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO candidate_entities
				(id, session_id, extraction_type, label, definition, source_span, matched_class_uri, status, attributes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.SessionID, e.ExtractionType, e.Label, e.Definition, e.SourceSpan,
			nullable(e.MatchedClassURI), e.Status, attrs, e.CreatedAt, e.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert candidate %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// GetEntity loads a candidate entity by ID.
func (s *Store) GetEntity(ctx context.Context, entityID string) (*entity.CandidateEntity, error) {
	e, err := scanEntity(s.db.QueryRowContext(ctx, `
		SELECT id, session_id, extraction_type, label, definition, source_span, matched_class_uri, status, attributes, created_at, updated_at
		FROM candidate_entities WHERE id = ?`, entityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", entity.ErrNotFound, entityID)
	}
	return e, err
}

// EntitiesBySession returns the session's candidates in insertion order.
func (s *Store) EntitiesBySession(ctx context.Context, sessionID string) ([]*entity.CandidateEntity, error) {
	return s.queryEntities(ctx, `
		SELECT id, session_id, extraction_type, label, definition, source_span, matched_class_uri, status, attributes, created_at, updated_at
		FROM candidate_entities WHERE session_id = ?
		ORDER BY created_at, rowid`, sessionID)
}

// CommittedEntities returns the case's committed entity set across all
// sessions. This is the input to decision synthesis.
func (s *Store) CommittedEntities(ctx context.Context, caseID string) ([]*entity.CandidateEntity, error) {
	return s.queryEntities(ctx, `
		SELECT e.id, e.session_id, e.extraction_type, e.label, e.definition, e.source_span, e.matched_class_uri, e.status, e.attributes, e.created_at, e.updated_at
		FROM candidate_entities e
		JOIN extraction_sessions s ON s.id = e.session_id
		WHERE s.case_id = ? AND e.status = ?
		ORDER BY e.created_at, e.rowid`, caseID, entity.StatusCommitted)
}

// UpdateEntity writes label, definition, class URI, status, and
// attributes under an optimistic guard on the expected status. Fails with
// entity.ErrAlreadyCommitted when the row flipped to committed
// concurrently.
func (s *Store) UpdateEntity(ctx context.Context, e *entity.CandidateEntity, expected entity.Status) error {
	attrs, err := encodeAttributes(e.Attributes)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE candidate_entities
		SET label = ?, definition = ?, matched_class_uri = ?, status = ?, attributes = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		e.Label, e.Definition, nullable(e.MatchedClassURI), e.Status, attrs, time.Now().UTC(), e.ID, expected)
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		current, getErr := s.GetEntity(ctx, e.ID)
		if getErr != nil {
			return getErr
		}
		if current.Status == entity.StatusCommitted {
			return fmt.Errorf("%w: %s", entity.ErrAlreadyCommitted, e.ID)
		}
		return fmt.Errorf("%w: entity %s is %s, expected %s",
			entity.ErrIllegalStatusTransition, e.ID, current.Status, expected)
	}
	return nil
}

// CommitSession atomically commits every non-deleted candidate in the
// session and closes it. Re-invoking on a closed session is idempotent
// and returns the previously committed set. Returns the committed entity
// IDs and whether this call was a replay.
func (s *Store) CommitSession(ctx context.Context, sessionID string) ([]string, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRowContext(ctx, `
		SELECT id, case_id, pass_number, section, created_at, closed_at, cleared
		FROM extraction_sessions WHERE id = ?`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("%w: %s", session.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, false, err
	}

	if !sess.Open() {
		ids, err := committedIDsTx(ctx, tx, sessionID)
		if err != nil {
			return nil, false, err
		}
		return ids, true, nil
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE candidate_entities
		SET status = ?, updated_at = ?
		WHERE session_id = ? AND status NOT IN (?, ?)`,
		entity.StatusCommitted, now, sessionID, entity.StatusDeleted, entity.StatusCommitted); err != nil {
		return nil, false, fmt.Errorf("failed to commit candidates: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE extraction_sessions SET closed_at = ? WHERE id = ?`, now, sessionID); err != nil {
		return nil, false, fmt.Errorf("failed to close session: %w", err)
	}

	ids, err := committedIDsTx(ctx, tx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ids, false, nil
}

// ClearSession deletes every non-committed candidate of the session and
// closes it so the step can be re-run with a fresh session. Fails with
// session.ErrCannotClearCommitted once the session has been committed.
func (s *Store) ClearSession(ctx context.Context, sessionID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRowContext(ctx, `
		SELECT id, case_id, pass_number, section, created_at, closed_at, cleared
		FROM extraction_sessions WHERE id = ?`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", session.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return 0, err
	}
	if !sess.Open() {
		return 0, fmt.Errorf("%w: %s", session.ErrCannotClearCommitted, sessionID)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM candidate_entities
		WHERE session_id = ? AND status != ?`, sessionID, entity.StatusCommitted)
	if err != nil {
		return 0, fmt.Errorf("failed to clear candidates: %w", err)
	}
	cleared, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	// closing frees the (case, pass, section) triple for the re-run; the
	// cleared mark keeps the session from satisfying a review gate
	if _, err := tx.ExecContext(ctx, `
		UPDATE extraction_sessions SET closed_at = ?, cleared = 1 WHERE id = ?`, time.Now().UTC(), sessionID); err != nil {
		return 0, fmt.Errorf("failed to close session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return int(cleared), nil
}

func committedIDsTx(ctx context.Context, tx *sql.Tx, sessionID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM candidate_entities
		WHERE session_id = ? AND status = ?
		ORDER BY created_at, rowid`, sessionID, entity.StatusCommitted)
	if err != nil {
		return nil, err
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
	return ids, rows.Err()
}

func (s *Store) queryEntities(ctx context.Context, query string, args ...any) ([]*entity.CandidateEntity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []*entity.CandidateEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func scanEntity(row rowScanner) (*entity.CandidateEntity, error) {
	var (
		e        entity.CandidateEntity
		classURI sql.NullString
		attrs    string
	)
	err := row.Scan(&e.ID, &e.SessionID, &e.ExtractionType, &e.Label, &e.Definition,
		&e.SourceSpan, &classURI, &e.Status, &attrs, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.MatchedClassURI = classURI.String
	if err := json.Unmarshal([]byte(attrs), &e.Attributes); err != nil {
		return nil, fmt.Errorf("failed to decode attributes for %s: %w", e.ID, err)
	}
	return &e, nil
}

func encodeAttributes(attrs map[string]string) (string, error) {
	if attrs == nil {
		attrs = map[string]string{}
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("failed to encode attributes: %w", err)
	}
	return string(b), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
