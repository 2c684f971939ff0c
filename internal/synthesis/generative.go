package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/ethicsd/internal/entity"
	"github.com/fyrsmithlabs/ethicsd/internal/extraction"
)

// GenerativeSynthesizer is the fallback strategy: it asks the external
// generative capability for a decision-point-shaped payload and validates
// it before anything may be persisted. A malformed payload fails this
// synthesis attempt whole; nothing is partially stored.
type GenerativeSynthesizer struct {
	client extraction.GenerativeClient
}

// NewGenerativeSynthesizer creates the generative fallback strategy.
func NewGenerativeSynthesizer(client extraction.GenerativeClient) *GenerativeSynthesizer {
	return &GenerativeSynthesizer{client: client}
}

// Name returns the strategy name.
func (s *GenerativeSynthesizer) Name() string {
	return "generative"
}

// decisionPayload is the required shape of the generative response.
type decisionPayload struct {
	FocusDescription string          `json:"focus_description"`
	DecisionQuestion string          `json:"decision_question"`
	Options          []optionPayload `json:"options"`
}

type optionPayload struct {
	Description         string   `json:"description"`
	MoralIntensityScore *float64 `json:"moral_intensity_score"`
}

// Synthesize calls the generative capability with the committed-entity
// context and converts the validated payload into a decision point.
func (s *GenerativeSynthesizer) Synthesize(ctx context.Context, sc *Context) ([]DecisionPoint, error) {
	if s.client == nil {
		return nil, nil
	}

	raw, err := s.client.SynthesizeDecision(ctx, buildPrompt(sc))
	if err != nil {
		return nil, fmt.Errorf("generative synthesis call failed: %w", err)
	}

	payload, err := validatePayload(raw)
	if err != nil {
		return nil, err
	}

	pointID := uuid.NewString()
	point := DecisionPoint{
		ID:               pointID,
		CaseID:           sc.Case.ID,
		FocusDescription: payload.FocusDescription,
		DecisionQuestion: payload.DecisionQuestion,
		BoardResolution:  sc.Case.BoardResolution,
		BoardReasoning:   strings.Join(sc.Case.BoardConclusions, " "),
		SynthesisMethod:  MethodGenerative,
		CreatedAt:        time.Now().UTC(),
	}
	for _, opt := range payload.Options {
		score := 0.5
		if opt.MoralIntensityScore != nil {
			score = *opt.MoralIntensityScore
		}
		point.Options = append(point.Options, DecisionOption{
			ID:                  uuid.NewString(),
			DecisionPointID:     pointID,
			Description:         opt.Description,
			MoralIntensityScore: score,
			IsBoardChoice:       matchesResolution(opt.Description, sc.Case.BoardResolution),
		})
	}

	return []DecisionPoint{point}, nil
}

// validatePayload enforces the DecisionPoint shape on an external
// response. Every violation is a SchemaValidationError.
func validatePayload(raw json.RawMessage) (*decisionPayload, error) {
	fail := func(reason string) error {
		return &extraction.SchemaValidationError{Subject: "decision_point", Reason: reason}
	}

	var payload decisionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fail(fmt.Sprintf("malformed JSON: %v", err))
	}
	if strings.TrimSpace(payload.FocusDescription) == "" {
		return nil, fail("missing focus_description")
	}
	if strings.TrimSpace(payload.DecisionQuestion) == "" {
		return nil, fail("missing decision_question")
	}
	if len(payload.Options) == 0 {
		return nil, fail("missing options")
	}
	for i, opt := range payload.Options {
		if strings.TrimSpace(opt.Description) == "" {
			return nil, fail(fmt.Sprintf("option %d has no description", i))
		}
		if opt.MoralIntensityScore != nil {
			if s := *opt.MoralIntensityScore; s < 0 || s > 1 {
				return nil, fail(fmt.Sprintf("option %d moral_intensity_score %v out of [0,1]", i, s))
			}
		}
	}
	return &payload, nil
}

// buildPrompt renders the committed-entity context for the generative
// capability.
func buildPrompt(sc *Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case: %s\n\n", sc.Case.Title)

	writeGroup := func(heading string, t entity.ExtractionType) {
		entities := sc.ByType(t)
		if len(entities) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s:\n", heading)
		for _, e := range entities {
			fmt.Fprintf(&b, "- %s: %s\n", e.Label, e.Definition)
		}
		b.WriteString("\n")
	}
	writeGroup("Roles", entity.TypeRole)
	writeGroup("Principles", entity.TypePrinciple)
	writeGroup("Obligations", entity.TypeObligation)
	writeGroup("Constraints", entity.TypeConstraint)
	writeGroup("Capabilities", entity.TypeCapability)
	writeGroup("Actions", entity.TypeAction)
	writeGroup("Events", entity.TypeEvent)

	if len(sc.Case.BoardQuestions) > 0 {
		b.WriteString("Board questions:\n")
		for _, q := range sc.Case.BoardQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
		b.WriteString("\n")
	}

	b.WriteString("Identify the central decision point of this case.")
	return b.String()
}

var _ Synthesizer = (*GenerativeSynthesizer)(nil)
