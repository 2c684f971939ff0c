package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ethicsd/internal/casefile"
	"github.com/fyrsmithlabs/ethicsd/internal/entity"
	"github.com/fyrsmithlabs/ethicsd/internal/extraction"
	"github.com/fyrsmithlabs/ethicsd/internal/logging"
)

// Store is the persistence surface the manager needs. Appends are the
// only write paths; closing a session belongs to review commit.
type Store interface {
	CreateSession(ctx context.Context, s *ExtractionSession) error
	GetSession(ctx context.Context, sessionID string) (*ExtractionSession, error)

	// FindOpenSession returns the open session for the triple, or nil.
	FindOpenSession(ctx context.Context, caseID string, pass entity.Pass, section string) (*ExtractionSession, error)

	AppendPrompt(ctx context.Context, p *ExtractionPrompt) error

	// AppendCandidates writes candidate rows with status pending. This is
	// the only path by which the entity store receives new rows.
	AppendCandidates(ctx context.Context, entities []*entity.CandidateEntity) error
}

// Manager opens sessions and drives the per-concept-type extraction
// loop inside a pipeline step task.
type Manager struct {
	store     Store
	extractor extraction.Extractor
	logger    *zap.Logger
}

// NewManager creates a session manager.
func NewManager(store Store, extractor extraction.Extractor, logger *zap.Logger) *Manager {
	return &Manager{store: store, extractor: extractor, logger: logger}
}

// OpenSession creates a session for the triple. Fails with
// ErrSessionConflict while an open session exists for the same triple.
func (m *Manager) OpenSession(ctx context.Context, caseID string, pass entity.Pass, section string) (*ExtractionSession, error) {
	existing, err := m.store.FindOpenSession(ctx, caseID, pass, section)
	if err != nil {
		return nil, fmt.Errorf("failed to check for open session: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: case %s pass %d section %q", ErrSessionConflict, caseID, pass, section)
	}

	s := &ExtractionSession{
		ID:         uuid.NewString(),
		CaseID:     caseID,
		PassNumber: pass,
		Section:    section,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.store.CreateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// RecordPrompt appends one immutable prompt record to an open session.
func (m *Manager) RecordPrompt(ctx context.Context, sessionID string, conceptType entity.ExtractionType, prompt, response, model string) (*ExtractionPrompt, error) {
	s, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.Open() {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, sessionID)
	}

	p := &ExtractionPrompt{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		ConceptType: conceptType,
		PromptText:  prompt,
		RawResponse: response,
		Model:       model,
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.store.AppendPrompt(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to record prompt: %w", err)
	}
	return p, nil
}

// AddCandidates converts raw extraction output into pending candidate
// rows tagged with the session for provenance.
func (m *Manager) AddCandidates(ctx context.Context, sessionID string, conceptType entity.ExtractionType, raw []extraction.RawEntity) ([]*entity.CandidateEntity, error) {
	s, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.Open() {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, sessionID)
	}

	now := time.Now().UTC()
	candidates := make([]*entity.CandidateEntity, 0, len(raw))
	for _, r := range raw {
		candidates = append(candidates, &entity.CandidateEntity{
			ID:             uuid.NewString(),
			SessionID:      sessionID,
			ExtractionType: conceptType,
			Label:          r.Label,
			Definition:     r.Definition,
			SourceSpan:     r.SourceSpan,
			Status:         entity.StatusPending,
			Attributes:     r.Attributes,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	if err := m.store.AppendCandidates(ctx, candidates); err != nil {
		return nil, fmt.Errorf("failed to append candidates: %w", err)
	}
	return candidates, nil
}

// ExtractSection opens a session for the triple and runs one extraction
// call per concept type of the pass. Cancellation is checked between
// calls: a revoked task exits cleanly with candidates already written
// left in place. A schema validation failure fails that concept type
// only; a soft timeout aborts the remaining concept types but preserves
// what was written and surfaces extraction.ErrSoftTimeout to the caller.
// Returns the session and the number of candidates written.
func (m *Manager) ExtractSection(ctx context.Context, c *casefile.Case, pass entity.Pass, section string, revoke <-chan struct{}) (*ExtractionSession, int, error) {
	s, err := m.OpenSession(ctx, c.ID, pass, section)
	if err != nil {
		return nil, 0, err
	}
	ctx = logging.WithSessionID(ctx, s.ID)

	text := c.SectionText(section)
	if strings.TrimSpace(text) == "" {
		m.logger.Warn("section has no text, nothing to extract",
			append(logging.ContextFields(ctx), zap.String("section", section))...)
		return s, 0, nil
	}

	total := 0
	for _, conceptType := range pass.ConceptTypes() {
		select {
		case <-revoke:
			m.logger.Info("extraction revoked, stopping between concept types",
				append(logging.ContextFields(ctx), zap.Int("candidates_written", total))...)
			return s, total, context.Canceled
		case <-ctx.Done():
			return s, total, ctx.Err()
		default:
		}

		prompt := buildExtractionPrompt(c.Title, section, text, conceptType)
		result, err := m.extractor.Extract(ctx, prompt, conceptSchema(conceptType))
		if err != nil {
			var sve *extraction.SchemaValidationError
			switch {
			case errors.As(err, &sve):
				// other concept types in the session are unaffected
				m.logger.Warn("extraction response failed schema validation, skipping concept type",
					append(logging.ContextFields(ctx),
						zap.String("concept_type", string(conceptType)),
						zap.String("reason", sve.Reason))...)
				continue
			case errors.Is(err, extraction.ErrSoftTimeout):
				m.logger.Warn("extraction soft timeout, aborting session gracefully",
					append(logging.ContextFields(ctx),
						zap.String("concept_type", string(conceptType)),
						zap.Int("candidates_written", total))...)
				return s, total, fmt.Errorf("extracting %s: %w", conceptType, extraction.ErrSoftTimeout)
			default:
				return s, total, fmt.Errorf("extracting %s: %w", conceptType, err)
			}
		}

		if _, err := m.RecordPrompt(ctx, s.ID, conceptType, prompt, result.RawResponse, result.Model); err != nil {
			return s, total, err
		}
		added, err := m.AddCandidates(ctx, s.ID, conceptType, result.Entities)
		if err != nil {
			return s, total, err
		}
		total += len(added)

		m.logger.Debug("concept type extracted",
			append(logging.ContextFields(ctx),
				zap.String("concept_type", string(conceptType)),
				zap.Int("candidates", len(added)))...)
	}

	m.logger.Info("section extraction finished",
		append(logging.ContextFields(ctx),
			zap.String("section", section),
			zap.Int("candidates", total))...)
	return s, total, nil
}

// conceptSchema returns the response shape required for a concept type.
// Temporal concepts must carry a time window so synthesis can overlap
// them against obligation windows.
func conceptSchema(t entity.ExtractionType) extraction.ConceptSchema {
	schema := extraction.ConceptSchema{Type: t}
	switch t {
	case entity.TypeAction, entity.TypeEvent:
		schema.RequiredAttributes = []string{entity.AttrWindowStart, entity.AttrWindowEnd}
	}
	return schema
}

// buildExtractionPrompt renders the extraction request for one concept
// type over one case section.
func buildExtractionPrompt(title, section, text string, conceptType entity.ExtractionType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case: %s\nSection: %s\n\n%s\n\n", title, section, text)
	fmt.Fprintf(&b, "Extract every %s concept from the section above. ", conceptType)
	b.WriteString(`Respond with a JSON object {"entities": [{"label", "definition", "source_span", "attributes"}]}.`)
	return b.String()
}
