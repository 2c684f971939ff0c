package synthesis

import (
	"strings"

	"github.com/fyrsmithlabs/ethicsd/internal/config"
)

// Rule declares that obligations carrying the two tags cannot both be
// fully satisfied. Tags match unordered.
type Rule struct {
	TagA      string
	TagB      string
	Rationale string
}

// DefaultRules is the built-in conflict rule table. Operators extend or
// replace it via synthesis.conflict_rules in the configuration; the table
// is configuration, not logic.
func DefaultRules() []Rule {
	return []Rule{
		{
			TagA:      "verify_before_certify",
			TagB:      "meet_deadline",
			Rationale: "verification cannot be completed within the committed deadline",
		},
		{
			TagA:      "client_confidentiality",
			TagB:      "public_safety_disclosure",
			Rationale: "disclosure protecting the public breaches client confidence",
		},
		{
			TagA:      "loyalty_to_employer",
			TagB:      "duty_to_report",
			Rationale: "reporting the violation acts against the employer's interest",
		},
		{
			TagA:      "scope_of_competence",
			TagB:      "meet_deadline",
			Rationale: "work outside competence cannot be made sound in the time available",
		},
	}
}

// RulesFromConfig converts configured rules, falling back to the default
// table when none are configured.
func RulesFromConfig(cfgRules []config.ConflictRule) []Rule {
	if len(cfgRules) == 0 {
		return DefaultRules()
	}
	rules := make([]Rule, 0, len(cfgRules))
	for _, r := range cfgRules {
		rules = append(rules, Rule{TagA: r.TagA, TagB: r.TagB, Rationale: r.Rationale})
	}
	return rules
}

// RuleTable answers conflict queries over an unordered tag-pair index.
type RuleTable struct {
	index map[[2]string]string
}

// NewRuleTable builds the lookup index from rules.
func NewRuleTable(rules []Rule) *RuleTable {
	t := &RuleTable{index: make(map[[2]string]string, len(rules))}
	for _, r := range rules {
		t.index[pairKey(r.TagA, r.TagB)] = r.Rationale
	}
	return t
}

// Conflict reports whether the two obligation tags conflict, returning
// the rationale tag when they do. Empty tags never conflict.
func (t *RuleTable) Conflict(tagA, tagB string) (string, bool) {
	a := strings.ToLower(strings.TrimSpace(tagA))
	b := strings.ToLower(strings.TrimSpace(tagB))
	if a == "" || b == "" {
		return "", false
	}
	rationale, ok := t.index[pairKey(a, b)]
	return rationale, ok
}

// pairKey normalizes an unordered tag pair.
func pairKey(a, b string) [2]string {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
