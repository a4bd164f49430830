package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rxmigrate/internal/engine"
)

func report(rules ...string) *engine.Report {
	rep := &engine.Report{Passes: 3}
	for _, id := range rules {
		rep.Replacements = append(rep.Replacements, engine.Replacement{RuleID: id})
	}
	return rep
}

func TestEvaluateAssertions(t *testing.T) {
	rep := report("A", "B", "A", "C")
	rep.Diagnostics = []*engine.RuntimeError{{Code: engine.ErrCodeMatchAmbiguity, Message: "overlap"}}

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"rules_applied exact", Assertion{Type: AssertRulesApplied, Rules: []string{"A", "B", "A", "C"}}, ""},
		{"rules_applied differs", Assertion{Type: AssertRulesApplied, Rules: []string{"A", "B"}}, "Expected: [A B]"},
		{"rules_contain in order", Assertion{Type: AssertRulesContain, Rules: []string{"B", "C"}}, ""},
		{"rules_contain repeated", Assertion{Type: AssertRulesContain, Rules: []string{"A", "A"}}, ""},
		{"rules_contain out of order", Assertion{Type: AssertRulesContain, Rules: []string{"C", "B"}}, "B not found in order"},
		{"rules_contain missing", Assertion{Type: AssertRulesContain, Rules: []string{"D"}}, "D never applied"},
		{"replacement_count", Assertion{Type: AssertReplacementCount, Count: 4}, ""},
		{"replacement_count differs", Assertion{Type: AssertReplacementCount, Count: 2}, "Actual: 4"},
		{"passes", Assertion{Type: AssertPasses, Count: 3}, ""},
		{"passes differs", Assertion{Type: AssertPasses, Count: 1}, "Expected: 1"},
		{"diagnostic present", Assertion{Type: AssertDiagnostic, Code: "MATCH_AMBIGUITY"}, ""},
		{"diagnostic absent", Assertion{Type: AssertDiagnostic, Code: "NON_TERMINATION"}, "diagnostics [MATCH_AMBIGUITY]"},
		{"no_diagnostics fails", Assertion{Type: AssertNoDiagnostics}, "overlap"},
		{"unknown", Assertion{Type: "bogus"}, "unknown assertion type: bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(rep, []Assertion{tt.assertion})
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantErr)
			assert.Contains(t, errs[0], "assertion 0")
		})
	}
}

func TestEvaluateAssertions_NoDiagnostics(t *testing.T) {
	assert.Empty(t, EvaluateAssertions(report("A"), []Assertion{{Type: AssertNoDiagnostics}}))
}

func TestAssertionError_ListsAppliedRules(t *testing.T) {
	err := &AssertionError{Type: AssertPasses, Expected: "1", Actual: "2", Applied: []string{"A", "B"}}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: passes")
	assert.Contains(t, msg, "[1] A")
	assert.Contains(t, msg, "[2] B")
}
