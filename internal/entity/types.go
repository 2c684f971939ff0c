package entity

import (
	"strings"
	"time"
)

// ExtractionType identifies the concept type an entity was extracted as.
type ExtractionType string

const (
	TypeRole       ExtractionType = "role"
	TypePrinciple  ExtractionType = "principle"
	TypeObligation ExtractionType = "obligation"
	TypeConstraint ExtractionType = "constraint"
	TypeCapability ExtractionType = "capability"
	TypeAction     ExtractionType = "action"
	TypeEvent      ExtractionType = "event"
)

// Pass is one of the three extraction phases. Each pass covers a distinct
// set of concept types.
type Pass int

const (
	PassContextual Pass = 1
	PassNormative  Pass = 2
	PassTemporal   Pass = 3
)

// String returns the pass name used in logs and session records.
func (p Pass) String() string {
	switch p {
	case PassContextual:
		return "contextual"
	case PassNormative:
		return "normative"
	case PassTemporal:
		return "temporal"
	default:
		return "unknown"
	}
}

// ConceptTypes returns the concept types extracted during the pass.
func (p Pass) ConceptTypes() []ExtractionType {
	switch p {
	case PassContextual:
		return []ExtractionType{TypeRole, TypePrinciple}
	case PassNormative:
		return []ExtractionType{TypeObligation, TypeConstraint, TypeCapability}
	case PassTemporal:
		return []ExtractionType{TypeAction, TypeEvent}
	default:
		return nil
	}
}

// Status is the review state of a candidate entity.
type Status string

const (
	StatusPending       Status = "pending"
	StatusNewClass      Status = "new_class"
	StatusExistingMatch Status = "existing_match"
	StatusModified      Status = "modified"
	StatusCommitted     Status = "committed"
	StatusDeleted       Status = "deleted"
)

// statusTransitions is the closed transition table. Committed and deleted
// are terminal for review purposes; deleted rows are kept for audit.
var statusTransitions = map[Status][]Status{
	StatusPending:       {StatusNewClass, StatusExistingMatch, StatusModified, StatusCommitted, StatusDeleted},
	StatusNewClass:      {StatusExistingMatch, StatusModified, StatusCommitted, StatusDeleted},
	StatusExistingMatch: {StatusNewClass, StatusModified, StatusCommitted, StatusDeleted},
	StatusModified:      {StatusNewClass, StatusExistingMatch, StatusCommitted, StatusDeleted},
	StatusCommitted:     {},
	StatusDeleted:       {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransition reports whether moving from s to next is legal.
// A same-status update is treated as a legal no-op.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return s.Valid()
	}
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Attribute keys recognized on candidate entities. Extraction writes them
// from State/Event evidence; synthesis reads them.
const (
	AttrRoles         = "roles"
	AttrWindowStart   = "window_start"
	AttrWindowEnd     = "window_end"
	AttrTag           = "tag"
	AttrMagnitude     = "magnitude"
	AttrProbability   = "probability"
	AttrImmediacy     = "immediacy"
	AttrProximity     = "proximity"
	AttrConcentration = "concentration"
)

// CandidateEntity is one extracted concept awaiting review.
type CandidateEntity struct {
	ID              string            `json:"id"`
	SessionID       string            `json:"session_id"`
	ExtractionType  ExtractionType    `json:"extraction_type"`
	Label           string            `json:"label"`
	Definition      string            `json:"definition"`
	SourceSpan      string            `json:"source_span,omitempty"`
	MatchedClassURI string            `json:"matched_class_uri,omitempty"`
	Status          Status            `json:"status"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Roles returns the role labels linked to the entity.
func (e *CandidateEntity) Roles() []string {
	raw, ok := e.Attributes[AttrRoles]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	roles := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			roles = append(roles, trimmed)
		}
	}
	return roles
}

// HasRole reports whether the entity is linked to the given role label.
// Matching is case-insensitive.
func (e *CandidateEntity) HasRole(role string) bool {
	for _, r := range e.Roles() {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// TimeWindow returns the entity's time window derived from linked
// Event/Action evidence. ok is false when either bound is missing or
// unparseable.
func (e *CandidateEntity) TimeWindow() (start, end time.Time, ok bool) {
	rawStart, okStart := e.Attributes[AttrWindowStart]
	rawEnd, okEnd := e.Attributes[AttrWindowEnd]
	if !okStart || !okEnd {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse(time.RFC3339, rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = time.Parse(time.RFC3339, rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// WindowOverlaps reports whether the time windows of e and other overlap.
// Entities without a usable window never overlap anything.
func (e *CandidateEntity) WindowOverlaps(other *CandidateEntity) bool {
	aStart, aEnd, ok := e.TimeWindow()
	if !ok {
		return false
	}
	bStart, bEnd, ok := other.TimeWindow()
	if !ok {
		return false
	}
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}

// Tag returns the obligation-type tag used by conflict rules, or "".
func (e *CandidateEntity) Tag() string {
	return strings.TrimSpace(e.Attributes[AttrTag])
}

// Judgment returns the categorical judgment recorded for the given
// intensity attribute, defaulting to "medium" when unspecified. The
// default keeps scoring deterministic for sparsely-attributed input.
func (e *CandidateEntity) Judgment(attr string) string {
	if v, ok := e.Attributes[attr]; ok && strings.TrimSpace(v) != "" {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return "medium"
}
