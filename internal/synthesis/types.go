package synthesis

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/ethicsd/internal/casefile"
	"github.com/fyrsmithlabs/ethicsd/internal/entity"
)

// Method tags how a decision point was produced.
type Method string

const (
	MethodAlgorithmic Method = "algorithmic"
	MethodGenerative  Method = "generative"
)

// DecisionOption is one course of action available at a decision point.
type DecisionOption struct {
	ID                  string  `json:"id"`
	DecisionPointID     string  `json:"decision_point_id"`
	Description         string  `json:"description"`
	MoralIntensityScore float64 `json:"moral_intensity_score"`
	IsBoardChoice       bool    `json:"is_board_choice"`
}

// DecisionPoint is a synthesized moment requiring an ethical choice.
// Immutable once persisted; re-synthesis creates new records. The
// alignment score is the single completing write, set exactly once by the
// alignment step.
type DecisionPoint struct {
	ID                     string           `json:"id"`
	CaseID                 string           `json:"case_id"`
	FocusDescription       string           `json:"focus_description"`
	DecisionQuestion       string           `json:"decision_question"`
	InvolvedRoleIDs        []string         `json:"involved_role_ids,omitempty"`
	ApplicableProvisionIDs []string         `json:"applicable_provision_ids,omitempty"`
	Options                []DecisionOption `json:"options"`
	BoardResolution        string           `json:"board_resolution,omitempty"`
	BoardReasoning         string           `json:"board_reasoning,omitempty"`
	AlignmentScore         *float64         `json:"alignment_score,omitempty"`
	SynthesisMethod        Method           `json:"synthesis_method"`
	CreatedAt              time.Time        `json:"created_at"`
}

// ConflictCandidate is an obligation pair the rule table marks as
// mutually unsatisfiable. Derived during synthesis, persisted only
// through the decision point that consumes it.
type ConflictCandidate struct {
	ObligationA  *entity.CandidateEntity
	ObligationB  *entity.CandidateEntity
	RationaleTag string
	SharedRoles  []string
	WindowStart  time.Time
	WindowEnd    time.Time
}

// Context is the committed-entity context synthesis operates on.
type Context struct {
	Case     *casefile.Case
	Entities []*entity.CandidateEntity
}

// ByType returns the committed entities of one extraction type.
func (c *Context) ByType(t entity.ExtractionType) []*entity.CandidateEntity {
	var out []*entity.CandidateEntity
	for _, e := range c.Entities {
		if e.ExtractionType == t {
			out = append(out, e)
		}
	}
	return out
}

// RoleIDsByLabel returns the IDs of committed role entities whose label
// appears in labels.
func (c *Context) RoleIDsByLabel(labels []string) []string {
	var ids []string
	for _, role := range c.ByType(entity.TypeRole) {
		for _, label := range labels {
			if equalFoldTrim(role.Label, label) {
				ids = append(ids, role.ID)
				break
			}
		}
	}
	return ids
}

// ActionEventLabels returns the labels of committed actions and events,
// used by alignment scoring as the case's recorded activity.
func (c *Context) ActionEventLabels() []string {
	var labels []string
	for _, e := range c.Entities {
		if e.ExtractionType == entity.TypeAction || e.ExtractionType == entity.TypeEvent {
			labels = append(labels, e.Label)
		}
	}
	return labels
}

// EntityByID returns the committed entity with the given ID, or nil.
func (c *Context) EntityByID(id string) *entity.CandidateEntity {
	for _, e := range c.Entities {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Synthesizer is one strategy in the synthesis chain.
type Synthesizer interface {
	Name() string

	// Synthesize returns the decision points this strategy found. An
	// empty result hands control to the next strategy in the chain.
	Synthesize(ctx context.Context, sc *Context) ([]DecisionPoint, error)
}
