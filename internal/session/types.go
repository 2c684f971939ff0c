package session

import (
	"time"

	"github.com/fyrsmithlabs/ethicsd/internal/entity"
)

// ExtractionSession is one extraction run over a (case, pass, section)
// triple. At most one open session may exist per triple; the session is
// closed by review commit, never by the extractor.
type ExtractionSession struct {
	ID         string      `json:"id"`
	CaseID     string      `json:"case_id"`
	PassNumber entity.Pass `json:"pass_number"`
	Section    string      `json:"section"`
	CreatedAt  time.Time   `json:"created_at"`
	ClosedAt   *time.Time  `json:"closed_at,omitempty"`

	// Cleared marks a session closed by clear-and-rerun rather than by
	// commit. A cleared session does not satisfy a review gate; the
	// re-run must open and commit a fresh session for the triple.
	Cleared bool `json:"cleared,omitempty"`
}

// Open reports whether the session still accepts candidates.
func (s *ExtractionSession) Open() bool {
	return s.ClosedAt == nil
}

// ExtractionPrompt records one LLM exchange. Immutable once written;
// prompts are the provenance trail from session to candidate entity.
type ExtractionPrompt struct {
	ID          string                `json:"id"`
	SessionID   string                `json:"session_id"`
	ConceptType entity.ExtractionType `json:"concept_type"`
	PromptText  string                `json:"prompt_text"`
	RawResponse string                `json:"raw_response"`
	Model       string                `json:"model"`
	CreatedAt   time.Time             `json:"created_at"`
}
