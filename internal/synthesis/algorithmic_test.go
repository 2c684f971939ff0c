package synthesis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ethicsd/internal/casefile"
	"github.com/fyrsmithlabs/ethicsd/internal/entity"
)

func committedEntity(id string, t entity.ExtractionType, label string, attrs map[string]string) *entity.CandidateEntity {
	return &entity.CandidateEntity{
		ID:             id,
		ExtractionType: t,
		Label:          label,
		Definition:     label,
		Status:         entity.StatusCommitted,
		Attributes:     attrs,
	}
}

// conflictScenario is a case where an engineer must certify a design by a
// deadline that leaves no time to verify the AI-generated portions.
func conflictScenario() *Context {
	return &Context{
		Case: &casefile.Case{
			ID:               "case-22-7",
			Title:            "Certification of AI-assisted structural design",
			BoardQuestions:   []string{"Was certification without verification ethical?"},
			BoardConclusions: []string{"Engineer A should have verified the AI output before certifying."},
			BoardResolution:  "delay certification and verify AI output",
		},
		Entities: []*entity.CandidateEntity{
			committedEntity("role-1", entity.TypeRole, "Engineer A", nil),
			committedEntity("obl-1", entity.TypeObligation, "verify AI output", map[string]string{
				entity.AttrRoles:       "Engineer A",
				entity.AttrTag:         "verify_before_certify",
				entity.AttrWindowStart: "2024-03-01T00:00:00Z",
				entity.AttrWindowEnd:   "2024-03-15T00:00:00Z",
			}),
			committedEntity("obl-2", entity.TypeObligation, "meet deadline", map[string]string{
				entity.AttrRoles:       "Engineer A",
				entity.AttrTag:         "meet_deadline",
				entity.AttrWindowStart: "2024-03-05T00:00:00Z",
				entity.AttrWindowEnd:   "2024-03-10T00:00:00Z",
			}),
			committedEntity("act-1", entity.TypeAction, "delay certification and verify AI output", map[string]string{
				entity.AttrRoles:         "Engineer A",
				entity.AttrWindowStart:   "2024-03-06T00:00:00Z",
				entity.AttrWindowEnd:     "2024-03-08T00:00:00Z",
				entity.AttrMagnitude:     "high",
				entity.AttrProbability:   "high",
				entity.AttrImmediacy:     "medium",
				entity.AttrProximity:     "direct",
				entity.AttrConcentration: "indirect",
			}),
		},
	}
}

func TestAlgorithmicSynthesize(t *testing.T) {
	s := NewAlgorithmicSynthesizer(NewRuleTable(DefaultRules()))

	t.Run("conflicting obligations with a matching action yield one decision point", func(t *testing.T) {
		sc := conflictScenario()

		points, err := s.Synthesize(context.Background(), sc)
		require.NoError(t, err)
		require.Len(t, points, 1)

		point := points[0]
		assert.Equal(t, "case-22-7", point.CaseID)
		assert.Equal(t, MethodAlgorithmic, point.SynthesisMethod)
		assert.ElementsMatch(t, []string{"obl-1", "obl-2"}, point.ApplicableProvisionIDs)
		assert.Equal(t, []string{"role-1"}, point.InvolvedRoleIDs)
		assert.Equal(t, "delay certification and verify AI output", point.BoardResolution)
		assert.Nil(t, point.AlignmentScore, "alignment score is set by the scoring step, not synthesis")

		require.Len(t, point.Options, 1)
		opt := point.Options[0]
		assert.Equal(t, "delay certification and verify AI output", opt.Description)
		assert.InDelta(t, 0.8, opt.MoralIntensityScore, 1e-9)
		assert.True(t, opt.IsBoardChoice)
		assert.Equal(t, point.ID, opt.DecisionPointID)
	})

	t.Run("options are ordered by descending moral intensity", func(t *testing.T) {
		sc := conflictScenario()
		sc.Entities = append(sc.Entities,
			committedEntity("act-2", entity.TypeAction, "certify the design as delivered", map[string]string{
				entity.AttrRoles:         "Engineer A",
				entity.AttrWindowStart:   "2024-03-06T00:00:00Z",
				entity.AttrWindowEnd:     "2024-03-07T00:00:00Z",
				entity.AttrMagnitude:     "low",
				entity.AttrProbability:   "low",
				entity.AttrImmediacy:     "low",
				entity.AttrProximity:     "remote",
				entity.AttrConcentration: "diffuse",
			}))

		points, err := s.Synthesize(context.Background(), sc)
		require.NoError(t, err)
		require.Len(t, points, 1)
		require.Len(t, points[0].Options, 2)
		assert.Equal(t, "delay certification and verify AI output", points[0].Options[0].Description)
		assert.Equal(t, "certify the design as delivered", points[0].Options[1].Description)
		assert.Greater(t, points[0].Options[0].MoralIntensityScore, points[0].Options[1].MoralIntensityScore)
		assert.False(t, points[0].Options[1].IsBoardChoice)
	})

	t.Run("conflict without a matching action yields nothing", func(t *testing.T) {
		sc := conflictScenario()
		// push the action outside the conflict window
		sc.Entities[3].Attributes[entity.AttrWindowStart] = "2024-04-01T00:00:00Z"
		sc.Entities[3].Attributes[entity.AttrWindowEnd] = "2024-04-02T00:00:00Z"

		points, err := s.Synthesize(context.Background(), sc)
		require.NoError(t, err)
		assert.Empty(t, points)
	})

	t.Run("obligations without a shared role do not conflict", func(t *testing.T) {
		sc := conflictScenario()
		sc.Entities[2].Attributes[entity.AttrRoles] = "Engineer B"

		candidates := s.DetectConflicts(sc)
		assert.Empty(t, candidates)
	})

	t.Run("obligations with disjoint windows do not conflict", func(t *testing.T) {
		sc := conflictScenario()
		sc.Entities[2].Attributes[entity.AttrWindowStart] = "2024-05-01T00:00:00Z"
		sc.Entities[2].Attributes[entity.AttrWindowEnd] = "2024-05-15T00:00:00Z"

		candidates := s.DetectConflicts(sc)
		assert.Empty(t, candidates)
	})

	t.Run("tags outside the rule table do not conflict", func(t *testing.T) {
		sc := conflictScenario()
		sc.Entities[2].Attributes[entity.AttrTag] = "keep_records"

		candidates := s.DetectConflicts(sc)
		assert.Empty(t, candidates)
	})
}

func TestDetectConflictsWindow(t *testing.T) {
	s := NewAlgorithmicSynthesizer(NewRuleTable(DefaultRules()))
	sc := conflictScenario()

	candidates := s.DetectConflicts(sc)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, []string{"Engineer A"}, c.SharedRoles)
	assert.NotEmpty(t, c.RationaleTag)
	// the conflict window is the intersection of the two obligations
	assert.Equal(t, "2024-03-05T00:00:00Z", c.WindowStart.Format("2006-01-02T15:04:05Z07:00"))
	assert.Equal(t, "2024-03-10T00:00:00Z", c.WindowEnd.Format("2006-01-02T15:04:05Z07:00"))
}
