package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rxmigrate/internal/ir"
)

// Snapshot is the part of a result that golden files pin down: the
// rendered output and the rules that produced it. Spans and sequence
// numbers are left out so goldens survive edits to unrelated rules.
func Snapshot(r *Result) ([]byte, error) {
	obj := ir.Object{"fixture": ir.String(r.Name)}
	if r.Output != nil {
		imps := make(ir.List, len(r.Output.Imports))
		for i, imp := range r.Output.Imports {
			imps[i] = ir.String(imp.String())
		}
		decls := make(ir.List, len(r.Output.Decls))
		for i, d := range r.Output.Decls {
			decls[i] = ir.Object{"name": ir.String(d.Name), "expr": ir.String(ir.Format(d.Body))}
		}
		obj["imports"] = imps
		obj["decls"] = decls
	}
	if r.Report != nil {
		rules := make(ir.List, len(r.Report.Replacements))
		for i, rep := range r.Report.Replacements {
			rules[i] = ir.String(rep.RuleID)
		}
		diags := make(ir.List, len(r.Report.Diagnostics))
		for i, d := range r.Report.Diagnostics {
			diags[i] = ir.String(string(d.Code))
		}
		obj["rules"] = rules
		obj["passes"] = ir.Int(r.Report.Passes)
		obj["diagnostics"] = diags
	}
	return ir.MarshalCanonical(obj)
}

// AssertGolden compares a result snapshot with testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, r *Result) {
	t.Helper()

	data, err := Snapshot(r)
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
