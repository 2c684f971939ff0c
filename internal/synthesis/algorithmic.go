package synthesis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/ethicsd/internal/entity"
)

// AlgorithmicSynthesizer composes decision points from committed
// entities without any LLM involvement.
type AlgorithmicSynthesizer struct {
	rules *RuleTable
}

// NewAlgorithmicSynthesizer creates the algorithmic strategy with the
// given conflict rule table.
func NewAlgorithmicSynthesizer(rules *RuleTable) *AlgorithmicSynthesizer {
	return &AlgorithmicSynthesizer{rules: rules}
}

// Name returns the strategy name.
func (s *AlgorithmicSynthesizer) Name() string {
	return "algorithmic"
}

// Synthesize runs conflict coverage, action scoring, and composition.
// Conflicts with no matching action yield no decision point; an empty
// overall result defers to the next strategy in the chain.
func (s *AlgorithmicSynthesizer) Synthesize(_ context.Context, sc *Context) ([]DecisionPoint, error) {
	conflicts := s.DetectConflicts(sc)

	var points []DecisionPoint
	for _, conflict := range conflicts {
		actions := matchingActions(sc, conflict)
		if len(actions) == 0 {
			continue
		}
		points = append(points, compose(sc, conflict, actions))
	}
	return points, nil
}

// DetectConflicts flags every unordered pair of committed obligations
// that shares at least one role, overlaps in time, and whose tags the
// rule table marks as mutually unsatisfiable.
func (s *AlgorithmicSynthesizer) DetectConflicts(sc *Context) []ConflictCandidate {
	obligations := sc.ByType(entity.TypeObligation)

	var candidates []ConflictCandidate
	for i := 0; i < len(obligations); i++ {
		for j := i + 1; j < len(obligations); j++ {
			a, b := obligations[i], obligations[j]

			shared := sharedRoles(a, b)
			if len(shared) == 0 {
				continue
			}
			if !a.WindowOverlaps(b) {
				continue
			}
			rationale, ok := s.rules.Conflict(a.Tag(), b.Tag())
			if !ok {
				continue
			}

			start, end := overlapWindow(a, b)
			candidates = append(candidates, ConflictCandidate{
				ObligationA:  a,
				ObligationB:  b,
				RationaleTag: rationale,
				SharedRoles:  shared,
				WindowStart:  start,
				WindowEnd:    end,
			})
		}
	}
	return candidates
}

// matchingActions returns the committed actions whose role matches one of
// the conflict's roles and whose time window overlaps the conflict's.
func matchingActions(sc *Context, conflict ConflictCandidate) []*entity.CandidateEntity {
	var matched []*entity.CandidateEntity
	for _, action := range sc.ByType(entity.TypeAction) {
		if !roleIntersects(action, conflict.SharedRoles) {
			continue
		}
		start, end, ok := action.TimeWindow()
		if !ok {
			continue
		}
		if end.Before(conflict.WindowStart) || start.After(conflict.WindowEnd) {
			continue
		}
		matched = append(matched, action)
	}
	return matched
}

// compose builds one decision point from a conflict and its candidate
// actions, ordered by descending moral intensity.
func compose(sc *Context, conflict ConflictCandidate, actions []*entity.CandidateEntity) DecisionPoint {
	type scored struct {
		action *entity.CandidateEntity
		score  float64
	}
	scoredActions := make([]scored, 0, len(actions))
	for _, a := range actions {
		scoredActions = append(scoredActions, scored{action: a, score: MoralIntensity(a)})
	}
	sort.SliceStable(scoredActions, func(i, j int) bool {
		if scoredActions[i].score != scoredActions[j].score {
			return scoredActions[i].score > scoredActions[j].score
		}
		return scoredActions[i].action.Label < scoredActions[j].action.Label
	})

	pointID := uuid.NewString()
	roles := strings.Join(conflict.SharedRoles, ", ")

	point := DecisionPoint{
		ID:     pointID,
		CaseID: sc.Case.ID,
		FocusDescription: fmt.Sprintf("Tension between %q and %q facing %s: %s.",
			conflict.ObligationA.Label, conflict.ObligationB.Label, roles, conflict.RationaleTag),
		DecisionQuestion: fmt.Sprintf("Should %s act to satisfy %q or %q?",
			roles, conflict.ObligationA.Label, conflict.ObligationB.Label),
		InvolvedRoleIDs:        sc.RoleIDsByLabel(conflict.SharedRoles),
		ApplicableProvisionIDs: []string{conflict.ObligationA.ID, conflict.ObligationB.ID},
		BoardResolution:        sc.Case.BoardResolution,
		BoardReasoning:         strings.Join(sc.Case.BoardConclusions, " "),
		SynthesisMethod:        MethodAlgorithmic,
		CreatedAt:              time.Now().UTC(),
	}

	for _, sa := range scoredActions {
		point.Options = append(point.Options, DecisionOption{
			ID:                  uuid.NewString(),
			DecisionPointID:     pointID,
			Description:         sa.action.Label,
			MoralIntensityScore: sa.score,
			IsBoardChoice:       matchesResolution(sa.action.Label, sc.Case.BoardResolution),
		})
	}
	return point
}

// matchesResolution reports whether an option description textually
// matches the board's recorded resolution. Containment in either
// direction is sufficient; no match leaves every option unflagged.
func matchesResolution(description, resolution string) bool {
	d := strings.ToLower(strings.TrimSpace(description))
	r := strings.ToLower(strings.TrimSpace(resolution))
	if d == "" || r == "" {
		return false
	}
	return strings.Contains(r, d) || strings.Contains(d, r)
}

// roleIntersects reports whether the action is linked to any of the roles.
func roleIntersects(action *entity.CandidateEntity, roles []string) bool {
	for _, role := range roles {
		if action.HasRole(role) {
			return true
		}
	}
	return false
}

// sharedRoles returns the role labels two obligations have in common.
func sharedRoles(a, b *entity.CandidateEntity) []string {
	var shared []string
	for _, role := range a.Roles() {
		if b.HasRole(role) {
			shared = append(shared, role)
		}
	}
	return shared
}

// overlapWindow returns the intersection of two entities' time windows.
// Callers check WindowOverlaps first.
func overlapWindow(a, b *entity.CandidateEntity) (time.Time, time.Time) {
	aStart, aEnd, _ := a.TimeWindow()
	bStart, bEnd, _ := b.TimeWindow()
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	return start, end
}

var _ Synthesizer = (*AlgorithmicSynthesizer)(nil)
