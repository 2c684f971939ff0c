package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ethicsd/internal/casefile"
	"github.com/fyrsmithlabs/ethicsd/internal/entity"
)

type memSynthStore struct {
	cases    map[string]*casefile.Case
	entities map[string][]*entity.CandidateEntity
	points   map[string][]DecisionPoint
	saves    int
}

func newMemSynthStore(sc *Context) *memSynthStore {
	return &memSynthStore{
		cases:    map[string]*casefile.Case{sc.Case.ID: sc.Case},
		entities: map[string][]*entity.CandidateEntity{sc.Case.ID: sc.Entities},
		points:   make(map[string][]DecisionPoint),
	}
}

func (s *memSynthStore) GetCase(_ context.Context, caseID string) (*casefile.Case, error) {
	c, ok := s.cases[caseID]
	if !ok {
		return nil, errors.New("case not found")
	}
	return c, nil
}

func (s *memSynthStore) CommittedEntities(_ context.Context, caseID string) ([]*entity.CandidateEntity, error) {
	return s.entities[caseID], nil
}

func (s *memSynthStore) SaveDecisionPoints(_ context.Context, points []DecisionPoint) error {
	s.saves++
	for _, p := range points {
		s.points[p.CaseID] = append(s.points[p.CaseID], p)
	}
	return nil
}

func (s *memSynthStore) DecisionPointsForCase(_ context.Context, caseID string) ([]DecisionPoint, error) {
	return s.points[caseID], nil
}

func (s *memSynthStore) SetAlignmentScore(_ context.Context, pointID string, score float64) (bool, error) {
	for caseID, points := range s.points {
		for i, p := range points {
			if p.ID != pointID {
				continue
			}
			if p.AlignmentScore != nil {
				return false, nil
			}
			v := score
			s.points[caseID][i].AlignmentScore = &v
			return true, nil
		}
	}
	return false, errors.New("decision point not found")
}

func TestEngineSynthesizeCase(t *testing.T) {
	t.Run("algorithmic result is persisted without trying the fallback", func(t *testing.T) {
		sc := conflictScenario()
		store := newMemSynthStore(sc)
		fallback := &stubGenerativeClient{response: json.RawMessage(`{}`)}
		engine := NewEngine(store, []Synthesizer{
			NewAlgorithmicSynthesizer(NewRuleTable(DefaultRules())),
			NewGenerativeSynthesizer(fallback),
		}, zap.NewNop())

		points, err := engine.SynthesizeCase(context.Background(), sc.Case.ID)
		require.NoError(t, err)
		require.Len(t, points, 1)
		assert.Equal(t, MethodAlgorithmic, points[0].SynthesisMethod)
		assert.Equal(t, 1, store.saves)
		assert.Empty(t, fallback.prompts, "fallback must not run when the algorithmic strategy succeeds")
	})

	t.Run("empty algorithmic result falls through to the generative strategy", func(t *testing.T) {
		sc := conflictScenario()
		// strip obligation tags so no rule matches
		for _, e := range sc.Entities {
			delete(e.Attributes, entity.AttrTag)
		}
		store := newMemSynthStore(sc)
		fallback := &stubGenerativeClient{response: json.RawMessage(`{
			"focus_description": "f",
			"decision_question": "q",
			"options": [{"description": "delay certification and verify AI output", "moral_intensity_score": 0.8}]
		}`)}
		engine := NewEngine(store, []Synthesizer{
			NewAlgorithmicSynthesizer(NewRuleTable(DefaultRules())),
			NewGenerativeSynthesizer(fallback),
		}, zap.NewNop())

		points, err := engine.SynthesizeCase(context.Background(), sc.Case.ID)
		require.NoError(t, err)
		require.Len(t, points, 1)
		assert.Equal(t, MethodGenerative, points[0].SynthesisMethod)
		assert.Len(t, fallback.prompts, 1)
	})

	t.Run("malformed fallback payload persists nothing and does not error", func(t *testing.T) {
		sc := conflictScenario()
		for _, e := range sc.Entities {
			delete(e.Attributes, entity.AttrTag)
		}
		store := newMemSynthStore(sc)
		fallback := &stubGenerativeClient{response: json.RawMessage(`{
			"focus_description": "f",
			"decision_question": "q"
		}`)}
		engine := NewEngine(store, []Synthesizer{
			NewAlgorithmicSynthesizer(NewRuleTable(DefaultRules())),
			NewGenerativeSynthesizer(fallback),
		}, zap.NewNop())

		points, err := engine.SynthesizeCase(context.Background(), sc.Case.ID)
		require.NoError(t, err, "a rejected payload fails the synthesis attempt, not the run")
		assert.Empty(t, points)
		assert.Zero(t, store.saves)
	})

	t.Run("non-schema strategy error fails the call", func(t *testing.T) {
		sc := conflictScenario()
		for _, e := range sc.Entities {
			delete(e.Attributes, entity.AttrTag)
		}
		store := newMemSynthStore(sc)
		engine := NewEngine(store, []Synthesizer{
			NewGenerativeSynthesizer(&stubGenerativeClient{err: errors.New("upstream unavailable")}),
		}, zap.NewNop())

		_, err := engine.SynthesizeCase(context.Background(), sc.Case.ID)
		assert.ErrorContains(t, err, "upstream unavailable")
	})

	t.Run("unknown case errors", func(t *testing.T) {
		store := newMemSynthStore(conflictScenario())
		engine := NewEngine(store, nil, zap.NewNop())

		_, err := engine.SynthesizeCase(context.Background(), "no-such-case")
		assert.Error(t, err)
	})
}

func TestEngineScoreCase(t *testing.T) {
	sc := conflictScenario()
	store := newMemSynthStore(sc)
	engine := NewEngine(store, []Synthesizer{
		NewAlgorithmicSynthesizer(NewRuleTable(DefaultRules())),
	}, zap.NewNop())

	points, err := engine.SynthesizeCase(context.Background(), sc.Case.ID)
	require.NoError(t, err)
	require.Len(t, points, 1)

	scored, err := engine.ScoreCase(context.Background(), sc.Case.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, scored)

	stored, err := store.DecisionPointsForCase(context.Background(), sc.Case.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].AlignmentScore)
	assert.GreaterOrEqual(t, *stored[0].AlignmentScore, 0.0)
	assert.LessOrEqual(t, *stored[0].AlignmentScore, 1.0)
	first := *stored[0].AlignmentScore

	// scoring again is a no-op and leaves the recorded value untouched
	scored, err = engine.ScoreCase(context.Background(), sc.Case.ID)
	require.NoError(t, err)
	assert.Zero(t, scored)

	stored, err = store.DecisionPointsForCase(context.Background(), sc.Case.ID)
	require.NoError(t, err)
	assert.Equal(t, first, *stored[0].AlignmentScore)
}
