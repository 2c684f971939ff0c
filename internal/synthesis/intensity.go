package synthesis

import (
	"github.com/fyrsmithlabs/ethicsd/internal/entity"
)

// judgmentScores maps categorical judgments to sub-scores. Unknown
// judgments fall back to the medium value so scoring stays deterministic
// for sparsely-attributed input.
var judgmentScores = map[string]float64{
	"low":    0.0,
	"medium": 0.5,
	"high":   1.0,

	// proximity
	"remote":   0.0,
	"indirect": 0.5,
	"direct":   1.0,

	// concentration of effect
	"diffuse":      0.0,
	"concentrated": 1.0,
}

// intensityAttrs are the five sub-score sources, in reporting order.
var intensityAttrs = []string{
	entity.AttrMagnitude,
	entity.AttrProbability,
	entity.AttrImmediacy,
	entity.AttrProximity,
	entity.AttrConcentration,
}

// MoralIntensity computes the composite moral intensity of an action as
// the mean of five sub-scores: magnitude of consequences, probability of
// effect, temporal immediacy, proximity, and concentration of effect.
// Result is in [0,1].
func MoralIntensity(action *entity.CandidateEntity) float64 {
	sum := 0.0
	for _, attr := range intensityAttrs {
		sum += subScore(action.Judgment(attr))
	}
	return sum / float64(len(intensityAttrs))
}

func subScore(judgment string) float64 {
	if score, ok := judgmentScores[judgment]; ok {
		return score
	}
	return judgmentScores["medium"]
}
