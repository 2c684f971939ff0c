package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ethicsd/internal/casefile"
	"github.com/fyrsmithlabs/ethicsd/internal/extraction"
)

type stubGenerativeClient struct {
	response json.RawMessage
	err      error
	prompts  []string
}

func (c *stubGenerativeClient) SynthesizeDecision(_ context.Context, prompt string) (json.RawMessage, error) {
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return nil, c.err
	}
	return c.response, nil
}

func TestGenerativeSynthesize(t *testing.T) {
	t.Run("valid payload becomes a decision point", func(t *testing.T) {
		client := &stubGenerativeClient{response: json.RawMessage(`{
			"focus_description": "Whether to certify an unverified design",
			"decision_question": "Should the engineer certify?",
			"options": [
				{"description": "delay certification and verify AI output", "moral_intensity_score": 0.8},
				{"description": "certify as delivered"}
			]
		}`)}
		s := NewGenerativeSynthesizer(client)
		sc := conflictScenario()

		points, err := s.Synthesize(context.Background(), sc)
		require.NoError(t, err)
		require.Len(t, points, 1)

		point := points[0]
		assert.Equal(t, MethodGenerative, point.SynthesisMethod)
		assert.Equal(t, "case-22-7", point.CaseID)
		require.Len(t, point.Options, 2)
		assert.InDelta(t, 0.8, point.Options[0].MoralIntensityScore, 1e-9)
		assert.True(t, point.Options[0].IsBoardChoice)
		// unscored options default to medium intensity
		assert.InDelta(t, 0.5, point.Options[1].MoralIntensityScore, 1e-9)

		require.Len(t, client.prompts, 1)
		assert.Contains(t, client.prompts[0], "verify AI output")
		assert.Contains(t, client.prompts[0], "Board questions:")
	})

	t.Run("nil client yields nothing", func(t *testing.T) {
		s := NewGenerativeSynthesizer(nil)
		points, err := s.Synthesize(context.Background(), conflictScenario())
		require.NoError(t, err)
		assert.Empty(t, points)
	})

	t.Run("client error propagates", func(t *testing.T) {
		s := NewGenerativeSynthesizer(&stubGenerativeClient{err: errors.New("upstream unavailable")})
		_, err := s.Synthesize(context.Background(), conflictScenario())
		assert.ErrorContains(t, err, "upstream unavailable")
	})
}

func TestGenerativePayloadValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		reason  string
	}{
		{"malformed JSON", `{"focus_description": `, "malformed JSON"},
		{"missing focus", `{"decision_question": "q", "options": [{"description": "a"}]}`, "missing focus_description"},
		{"missing question", `{"focus_description": "f", "options": [{"description": "a"}]}`, "missing decision_question"},
		{"missing options", `{"focus_description": "f", "decision_question": "q"}`, "missing options"},
		{"empty options", `{"focus_description": "f", "decision_question": "q", "options": []}`, "missing options"},
		{"option without description", `{"focus_description": "f", "decision_question": "q", "options": [{"moral_intensity_score": 0.5}]}`, "no description"},
		{"score above one", `{"focus_description": "f", "decision_question": "q", "options": [{"description": "a", "moral_intensity_score": 1.2}]}`, "out of [0,1]"},
		{"negative score", `{"focus_description": "f", "decision_question": "q", "options": [{"description": "a", "moral_intensity_score": -0.1}]}`, "out of [0,1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewGenerativeSynthesizer(&stubGenerativeClient{response: json.RawMessage(tt.payload)})

			_, err := s.Synthesize(context.Background(), conflictScenario())
			require.Error(t, err)

			var sve *extraction.SchemaValidationError
			require.ErrorAs(t, err, &sve)
			assert.Equal(t, "decision_point", sve.Subject)
			assert.Contains(t, sve.Reason, tt.reason)
		})
	}
}

func TestBuildPromptSkipsEmptyGroups(t *testing.T) {
	sc := &Context{Case: &casefile.Case{ID: "c1", Title: "Bare case"}}
	prompt := buildPrompt(sc)
	assert.Contains(t, prompt, "Bare case")
	assert.NotContains(t, prompt, "Roles:")
	assert.NotContains(t, prompt, "Board questions:")
}
