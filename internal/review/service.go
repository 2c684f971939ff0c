package review

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ethicsd/internal/entity"
	"github.com/fyrsmithlabs/ethicsd/internal/logging"
	"github.com/fyrsmithlabs/ethicsd/internal/ontology"
	"github.com/fyrsmithlabs/ethicsd/internal/session"
)

// Store is the persistence surface the review service needs.
type Store interface {
	GetEntity(ctx context.Context, entityID string) (*entity.CandidateEntity, error)
	EntitiesBySession(ctx context.Context, sessionID string) ([]*entity.CandidateEntity, error)

	// UpdateEntity writes under an optimistic guard on the expected
	// status; it fails with entity.ErrAlreadyCommitted when the row
	// flipped to committed concurrently.
	UpdateEntity(ctx context.Context, e *entity.CandidateEntity, expected entity.Status) error

	// CommitSession atomically commits the session's non-deleted
	// candidates and closes it; replaying a closed session returns the
	// prior result.
	CommitSession(ctx context.Context, sessionID string) (ids []string, replayed bool, err error)

	// ClearSession deletes non-committed candidates and closes the
	// session so extraction can re-run.
	ClearSession(ctx context.Context, sessionID string) (int, error)

	SessionsForPass(ctx context.Context, caseID string, pass entity.Pass) ([]*session.ExtractionSession, error)
}

// Patch is a partial update to a candidate entity. Nil fields are left
// untouched; attribute entries are merged key by key.
type Patch struct {
	Label      *string
	Definition *string
	Attributes map[string]string
}

// CommitResult reports the outcome of a session commit.
type CommitResult struct {
	SessionID string   `json:"session_id"`
	EntityIDs []string `json:"entity_ids"`
	Replayed  bool     `json:"replayed"`
}

// Service applies review operations to candidate entities.
type Service struct {
	store   Store
	catalog ontology.Catalog
	logger  *zap.Logger
}

// NewService creates a review service. catalog may be nil; class
// reassignment then skips catalog verification.
func NewService(store Store, catalog ontology.Catalog, logger *zap.Logger) *Service {
	return &Service{store: store, catalog: catalog, logger: logger}
}

// Edit applies a patch to a non-committed candidate. Label or definition
// changes move the status to modified.
func (s *Service) Edit(ctx context.Context, entityID string, patch Patch) (*entity.CandidateEntity, error) {
	e, err := s.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if e.Status == entity.StatusCommitted {
		return nil, fmt.Errorf("%w: %s", entity.ErrAlreadyCommitted, entityID)
	}

	prior := e.Status
	changed := false
	if patch.Label != nil && *patch.Label != e.Label {
		e.Label = *patch.Label
		changed = true
	}
	if patch.Definition != nil && *patch.Definition != e.Definition {
		e.Definition = *patch.Definition
		changed = true
	}
	if len(patch.Attributes) > 0 {
		if e.Attributes == nil {
			e.Attributes = make(map[string]string, len(patch.Attributes))
		}
		for k, v := range patch.Attributes {
			e.Attributes[k] = v
		}
	}
	if changed {
		if !prior.CanTransition(entity.StatusModified) {
			return nil, fmt.Errorf("%w: %s -> %s", entity.ErrIllegalStatusTransition, prior, entity.StatusModified)
		}
		e.Status = entity.StatusModified
	}

	if err := s.store.UpdateEntity(ctx, e, prior); err != nil {
		return nil, err
	}
	return e, nil
}

// ApproveNewClass confirms a candidate as a new ontology class. The
// ontology push itself happens elsewhere.
func (s *Service) ApproveNewClass(ctx context.Context, entityID string) (*entity.CandidateEntity, error) {
	return s.transition(ctx, entityID, func(e *entity.CandidateEntity) {
		e.Status = entity.StatusNewClass
		e.MatchedClassURI = ""
	})
}

// ReassignClass matches a candidate to an existing ontology class. The
// catalog check is best effort: an unreachable catalog logs a warning and
// the reassignment proceeds, it never blocks review.
func (s *Service) ReassignClass(ctx context.Context, entityID, classURI string) (*entity.CandidateEntity, error) {
	if strings.TrimSpace(classURI) == "" {
		return nil, fmt.Errorf("class URI is required")
	}

	e, err := s.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}

	if s.catalog != nil {
		classes, err := s.catalog.ListClasses(ctx, string(e.ExtractionType))
		switch {
		case err != nil:
			s.logger.Warn("ontology catalog unavailable, skipping class verification",
				append(logging.ContextFields(ctx),
					zap.String("entity_id", entityID),
					zap.Error(err))...)
		case !containsClass(classes, classURI):
			return nil, fmt.Errorf("%w: %s", ErrUnknownClass, classURI)
		}
	}

	return s.transition(ctx, entityID, func(e *entity.CandidateEntity) {
		e.Status = entity.StatusExistingMatch
		e.MatchedClassURI = classURI
	})
}

// Delete soft-deletes a candidate. The row is excluded from commit and
// synthesis but kept for audit.
func (s *Service) Delete(ctx context.Context, entityID string) error {
	_, err := s.transition(ctx, entityID, func(e *entity.CandidateEntity) {
		e.Status = entity.StatusDeleted
	})
	return err
}

// BulkDelete soft-deletes a batch. Each row update is independently
// atomic; the first failure stops the batch and reports how far it got.
func (s *Service) BulkDelete(ctx context.Context, entityIDs []string) (int, error) {
	for i, id := range entityIDs {
		if err := s.Delete(ctx, id); err != nil {
			return i, fmt.Errorf("bulk delete stopped at %s: %w", id, err)
		}
	}
	return len(entityIDs), nil
}

// Commit atomically commits the session's surviving candidates and
// closes the session. Idempotent: committing a closed session replays
// the prior result instead of re-committing.
func (s *Service) Commit(ctx context.Context, sessionID string) (*CommitResult, error) {
	ids, replayed, err := s.store.CommitSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommitTransaction, err)
	}

	s.logger.Info("session committed",
		append(logging.ContextFields(ctx),
			zap.String("session_id", sessionID),
			zap.Int("entities", len(ids)),
			zap.Bool("replayed", replayed))...)
	return &CommitResult{SessionID: sessionID, EntityIDs: ids, Replayed: replayed}, nil
}

// ClearAndRerun wipes the session's non-committed candidates and closes
// it so the extraction step can be re-run with a fresh session.
func (s *Service) ClearAndRerun(ctx context.Context, sessionID string) (int, error) {
	cleared, err := s.store.ClearSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("session cleared for re-run",
		append(logging.ContextFields(ctx),
			zap.String("session_id", sessionID),
			zap.Int("cleared", cleared))...)
	return cleared, nil
}

// PassCommitted reports whether the pass is fully reviewed: at least one
// session exists and, for every section extracted, the newest session is
// committed. A session closed by clear-and-rerun does not count; the gate
// stays shut until a fresh session for that section commits. Review-gate
// steps complete on this check.
func (s *Service) PassCommitted(ctx context.Context, caseID string, pass entity.Pass) (bool, error) {
	sessions, err := s.store.SessionsForPass(ctx, caseID, pass)
	if err != nil {
		return false, err
	}
	if len(sessions) == 0 {
		return false, nil
	}
	// SessionsForPass returns sessions in creation order, so the last one
	// seen per section is the newest.
	latest := make(map[string]*session.ExtractionSession)
	for _, sess := range sessions {
		latest[sess.Section] = sess
	}
	for _, sess := range latest {
		if sess.Open() || sess.Cleared {
			return false, nil
		}
	}
	return true, nil
}

// transition loads, mutates, and writes an entity under the legality and
// optimistic status checks shared by every single-row review operation.
func (s *Service) transition(ctx context.Context, entityID string, mutate func(*entity.CandidateEntity)) (*entity.CandidateEntity, error) {
	e, err := s.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if e.Status == entity.StatusCommitted {
		return nil, fmt.Errorf("%w: %s", entity.ErrAlreadyCommitted, entityID)
	}

	prior := e.Status
	mutate(e)
	if e.Status != prior && !prior.CanTransition(e.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", entity.ErrIllegalStatusTransition, prior, e.Status)
	}

	if err := s.store.UpdateEntity(ctx, e, prior); err != nil {
		return nil, err
	}
	return e, nil
}

func containsClass(classes []ontology.Class, uri string) bool {
	for _, c := range classes {
		if c.URI == uri {
			return true
		}
	}
	return false
}
