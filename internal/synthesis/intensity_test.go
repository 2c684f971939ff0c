package synthesis

import (
	"math"
	"testing"

	"github.com/fyrsmithlabs/ethicsd/internal/entity"
)

func TestMoralIntensity(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]string
		want  float64
	}{
		{
			name: "all high",
			attrs: map[string]string{
				entity.AttrMagnitude:     "high",
				entity.AttrProbability:   "high",
				entity.AttrImmediacy:     "high",
				entity.AttrProximity:     "direct",
				entity.AttrConcentration: "concentrated",
			},
			want: 1.0,
		},
		{
			name: "all low",
			attrs: map[string]string{
				entity.AttrMagnitude:     "low",
				entity.AttrProbability:   "low",
				entity.AttrImmediacy:     "low",
				entity.AttrProximity:     "remote",
				entity.AttrConcentration: "diffuse",
			},
			want: 0.0,
		},
		{
			name: "mixed judgments",
			attrs: map[string]string{
				entity.AttrMagnitude:     "high",
				entity.AttrProbability:   "high",
				entity.AttrImmediacy:     "medium",
				entity.AttrProximity:     "direct",
				entity.AttrConcentration: "indirect",
			},
			// (1.0 + 1.0 + 0.5 + 1.0 + 0.5) / 5
			want: 0.8,
		},
		{
			name:  "no attributes defaults every sub-score to medium",
			attrs: nil,
			want:  0.5,
		},
		{
			name: "unknown judgment falls back to medium",
			attrs: map[string]string{
				entity.AttrMagnitude:     "catastrophic",
				entity.AttrProbability:   "low",
				entity.AttrImmediacy:     "low",
				entity.AttrProximity:     "remote",
				entity.AttrConcentration: "diffuse",
			},
			want: 0.1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action := &entity.CandidateEntity{
				ExtractionType: entity.TypeAction,
				Label:          "sign the report",
				Attributes:     tt.attrs,
			}
			got := MoralIntensity(action)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("MoralIntensity() = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("MoralIntensity() = %v, outside [0,1]", got)
			}
		})
	}
}
