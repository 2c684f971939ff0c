package alignment

import (
	"strings"
)

// Component weights. The components are designed to be mutually exclusive
// in practice; the final clamp is a defensive invariant, not an expected
// code path.
const (
	weightObligationInQuestion = 0.30
	weightActionsInCaseRecord  = 0.30
	weightRoleInQuestion       = 0.20
	weightActionsInConclusions = 0.20
)

// Input carries everything the scorer needs. Labels come from the
// decision point's committed entities; questions/conclusions from the
// case's board record.
type Input struct {
	// ObligationLabels are the labels (and aliases) of the obligations in
	// the decision point's conflict.
	ObligationLabels []string

	// RoleLabels are the labels of the decision point's involved roles.
	RoleLabels []string

	// OptionDescriptions are the decision point's option descriptions.
	OptionDescriptions []string

	// CaseActionLabels are the case's committed action/event labels.
	CaseActionLabels []string

	// Questions and Conclusions are the board's recorded text.
	Questions   []string
	Conclusions []string
}

// Score computes the alignment score as the sum of four independently
// capped components, clamped to [0,1].
func Score(in Input) float64 {
	score := 0.0

	if anyLabelInTexts(in.ObligationLabels, in.Questions) {
		score += weightObligationInQuestion
	}
	if anyOverlap(in.OptionDescriptions, in.CaseActionLabels) {
		score += weightActionsInCaseRecord
	}
	if anyLabelInTexts(in.RoleLabels, in.Questions) {
		score += weightRoleInQuestion
	}
	if anyLabelInTexts(in.OptionDescriptions, in.Conclusions) {
		score += weightActionsInConclusions
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// anyLabelInTexts reports whether any label appears, case-insensitively,
// inside any of the texts.
func anyLabelInTexts(labels, texts []string) bool {
	for _, label := range labels {
		needle := normalize(label)
		if needle == "" {
			continue
		}
		for _, text := range texts {
			if strings.Contains(normalize(text), needle) {
				return true
			}
		}
	}
	return false
}

// anyOverlap reports whether any description and any recorded label
// overlap by containment in either direction. Descriptions are fuller
// sentences than recorded labels, so both directions matter.
func anyOverlap(descriptions, labels []string) bool {
	for _, desc := range descriptions {
		d := normalize(desc)
		if d == "" {
			continue
		}
		for _, label := range labels {
			l := normalize(label)
			if l == "" {
				continue
			}
			if strings.Contains(d, l) || strings.Contains(l, d) {
				return true
			}
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
