package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rxmigrate/internal/engine"
)

// AssertionError is returned when an assertion fails. It carries the rules
// that fired for context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Applied  []string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Applied) > 0 {
		fmt.Fprintf(&buf, "\nApplied rules:\n")
		for i, id := range e.Applied {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, id)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against a report and returns
// the failure messages.
func EvaluateAssertions(rep *engine.Report, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(rep, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluate(rep *engine.Report, a Assertion) error {
	switch a.Type {
	case AssertRulesApplied:
		return assertRulesApplied(rep, a)
	case AssertRulesContain:
		return assertRulesContain(rep, a)
	case AssertReplacementCount:
		return assertCount(rep, a.Type, a.Count, len(rep.Replacements))
	case AssertPasses:
		return assertCount(rep, a.Type, a.Count, rep.Passes)
	case AssertDiagnostic:
		return assertDiagnostic(rep, a)
	case AssertNoDiagnostics:
		return assertNoDiagnostics(rep)
	}
	return fmt.Errorf("unknown assertion type: %s", a.Type)
}

func applied(rep *engine.Report) []string {
	out := make([]string, len(rep.Replacements))
	for i, r := range rep.Replacements {
		out[i] = r.RuleID
	}
	return out
}

func assertRulesApplied(rep *engine.Report, a Assertion) error {
	got := applied(rep)
	if slices.Equal(got, a.Rules) {
		return nil
	}
	return &AssertionError{
		Type:     AssertRulesApplied,
		Expected: fmt.Sprintf("%v", a.Rules),
		Actual:   fmt.Sprintf("%v", got),
		Applied:  got,
	}
}

// assertRulesContain checks that the rules fired in the given relative
// order; other rules may fire in between.
func assertRulesContain(rep *engine.Report, a Assertion) error {
	got := applied(rep)
	next := 0
	for _, id := range got {
		if next < len(a.Rules) && id == a.Rules[next] {
			next++
		}
	}
	if next == len(a.Rules) {
		return nil
	}
	actual := fmt.Sprintf("%s not found in order", a.Rules[next])
	if !slices.Contains(got, a.Rules[next]) {
		actual = fmt.Sprintf("%s never applied", a.Rules[next])
	}
	return &AssertionError{
		Type:     AssertRulesContain,
		Expected: fmt.Sprintf("%v in order", a.Rules),
		Actual:   actual,
		Applied:  got,
	}
}

func assertCount(rep *engine.Report, typ string, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%d", want),
		Actual:   fmt.Sprintf("%d", got),
		Applied:  applied(rep),
	}
}

func assertDiagnostic(rep *engine.Report, a Assertion) error {
	var codes []string
	for _, d := range rep.Diagnostics {
		if string(d.Code) == a.Code {
			return nil
		}
		codes = append(codes, string(d.Code))
	}
	return &AssertionError{
		Type:     AssertDiagnostic,
		Expected: fmt.Sprintf("diagnostic %s", a.Code),
		Actual:   fmt.Sprintf("diagnostics %v", codes),
		Applied:  applied(rep),
	}
}

func assertNoDiagnostics(rep *engine.Report) error {
	if len(rep.Diagnostics) == 0 {
		return nil
	}
	msgs := make([]string, len(rep.Diagnostics))
	for i, d := range rep.Diagnostics {
		msgs[i] = d.Error()
	}
	return &AssertionError{
		Type:     AssertNoDiagnostics,
		Expected: "no diagnostics",
		Actual:   strings.Join(msgs, "; "),
		Applied:  applied(rep),
	}
}
