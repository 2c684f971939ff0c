package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/ethicsd/internal/config"
)

func TestRuleTableConflict(t *testing.T) {
	table := NewRuleTable(DefaultRules())

	tests := []struct {
		name     string
		tagA     string
		tagB     string
		conflict bool
	}{
		{"known pair", "verify_before_certify", "meet_deadline", true},
		{"reversed order", "meet_deadline", "verify_before_certify", true},
		{"case and whitespace insensitive", " Verify_Before_Certify ", "MEET_DEADLINE", true},
		{"unknown pair", "verify_before_certify", "client_confidentiality", false},
		{"same tag twice", "meet_deadline", "meet_deadline", false},
		{"empty tag never conflicts", "", "meet_deadline", false},
		{"both empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rationale, ok := table.Conflict(tt.tagA, tt.tagB)
			assert.Equal(t, tt.conflict, ok)
			if tt.conflict {
				assert.NotEmpty(t, rationale)
			}
		})
	}
}

func TestRulesFromConfig(t *testing.T) {
	t.Run("empty config falls back to defaults", func(t *testing.T) {
		rules := RulesFromConfig(nil)
		assert.Equal(t, DefaultRules(), rules)
	})

	t.Run("configured rules replace the table", func(t *testing.T) {
		rules := RulesFromConfig([]config.ConflictRule{
			{TagA: "honesty", TagB: "diplomacy", Rationale: "candor conflicts with tact"},
		})
		table := NewRuleTable(rules)

		rationale, ok := table.Conflict("honesty", "diplomacy")
		assert.True(t, ok)
		assert.Equal(t, "candor conflicts with tact", rationale)

		_, ok = table.Conflict("verify_before_certify", "meet_deadline")
		assert.False(t, ok, "defaults must not leak into a configured table")
	})
}
