package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/rxmigrate/internal/catalog"
	"github.com/roach88/rxmigrate/internal/compiler"
	"github.com/roach88/rxmigrate/internal/engine"
	"github.com/roach88/rxmigrate/internal/host"
	"github.com/roach88/rxmigrate/internal/imports"
	"github.com/roach88/rxmigrate/internal/ir"
)

// Mismatch is one difference between actual and expected output. Decl is
// empty for unit-level differences.
type Mismatch struct {
	Decl string `json:"decl,omitempty"`
	What string `json:"what"`
	Want string `json:"want"`
	Got  string `json:"got"`
}

func (m Mismatch) String() string {
	if m.Decl == "" {
		return fmt.Sprintf("%s: want %s, got %s", m.What, m.Want, m.Got)
	}
	return fmt.Sprintf("%s %s:\n  want: %s\n  got:  %s", m.Decl, m.What, m.Want, m.Got)
}

// Result is the outcome of a verification.
type Result struct {
	Name string `json:"name"`

	// Pass is true when the output matched and every assertion held.
	Pass bool `json:"pass"`

	// Output is the rewritten unit, nil when Apply failed without a result.
	Output *ir.Unit `json:"-"`

	Report *engine.Report `json:"report,omitempty"`

	// Err is the Apply error, if any.
	Err error `json:"-"`

	Mismatches []Mismatch `json:"mismatches,omitempty"`

	// Errors holds assertion and idempotence failures.
	Errors []string `json:"errors,omitempty"`
}

// AddError records a failure.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// Failures returns every failure as a message, mismatches first.
func (r *Result) Failures() []string {
	var out []string
	if r.Err != nil {
		out = append(out, r.Err.Error())
	}
	for _, m := range r.Mismatches {
		out = append(out, m.String())
	}
	return append(out, r.Errors...)
}

// Verify applies eng to input and compares the output with expected. Both
// units must be bound against the engine's universe (host.Build does that).
// Expected is not modified.
func Verify(ctx context.Context, eng *engine.Engine, input, expected *ir.Unit) *Result {
	r := &Result{Name: input.Name, Pass: true}

	res, err := eng.Apply(ctx, input)
	r.Err = err
	if res == nil {
		r.Pass = false
		return r
	}
	r.Output, r.Report = res.Unit, &res.Report

	want := expected.Clone()
	imports.RenderUnit(want)
	r.Mismatches = Compare(want, res.Unit)
	r.Pass = err == nil && len(r.Mismatches) == 0
	return r
}

// Compare reports the structural differences between two rendered units.
func Compare(want, got *ir.Unit) []Mismatch {
	var out []Mismatch
	if len(want.Decls) != len(got.Decls) {
		return []Mismatch{{What: "declaration count", Want: fmt.Sprint(len(want.Decls)), Got: fmt.Sprint(len(got.Decls))}}
	}
	for i := range want.Decls {
		w, g := want.Decls[i], got.Decls[i]
		if w.Name != g.Name {
			out = append(out, Mismatch{What: fmt.Sprintf("declaration %d name", i), Want: w.Name, Got: g.Name})
			continue
		}
		if !ir.Equal(w.Body, g.Body) {
			out = append(out, Mismatch{Decl: w.Name, What: "body", Want: ir.Format(w.Body), Got: ir.Format(g.Body)})
		}
	}

	wi, gi := sortedImports(want), sortedImports(got)
	if !slices.Equal(wi, gi) {
		out = append(out, Mismatch{What: "imports", Want: fmt.Sprint(wi), Got: fmt.Sprint(gi)})
	}
	return out
}

func sortedImports(u *ir.Unit) []string {
	imps := slices.Clone(u.Imports)
	slices.SortFunc(imps, ir.CompareImports)
	out := make([]string, len(imps))
	for i, imp := range imps {
		out[i] = imp.String()
	}
	return out
}

// Runner runs fixtures. Catalogs are compiled once per directory.
type Runner struct {
	logger   *slog.Logger
	opts     []engine.Option
	catalogs map[string]*compiler.Catalog
}

// NewRunner creates a runner. opts are passed to every engine it builds,
// before the fixture's own strategy and pass limit.
func NewRunner(logger *slog.Logger, opts ...engine.Option) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{logger: logger, opts: opts, catalogs: make(map[string]*compiler.Catalog)}
}

func (h *Runner) catalog(dir string) (*compiler.Catalog, error) {
	if cat, ok := h.catalogs[dir]; ok {
		return cat, nil
	}
	var (
		cat *compiler.Catalog
		err error
	)
	if dir == "" {
		cat, err = catalog.Default()
	} else {
		cat, err = compiler.LoadDir(dir, compiler.WithLogger(h.logger))
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	h.catalogs[dir] = cat
	return cat, nil
}

// Engine builds the engine a fixture runs with.
func (h *Runner) Engine(f *Fixture) (*engine.Engine, error) {
	cat, err := h.catalog(f.CatalogDir())
	if err != nil {
		return nil, err
	}
	strategy, err := engine.ParseStrategy(f.Strategy)
	if err != nil {
		return nil, err
	}
	opts := append([]engine.Option{engine.WithLogger(h.logger)}, h.opts...)
	opts = append(opts, engine.WithStrategy(strategy))
	if f.MaxPasses > 0 {
		opts = append(opts, engine.WithMaxPasses(f.MaxPasses))
	}
	return engine.New(cat.Rules, cat.Universe, opts...), nil
}

// Run verifies one fixture: output comparison, assertions and idempotence.
// The returned error is for fixtures that cannot run at all (bad catalog,
// unparsable units); verification failures are in the Result.
func (h *Runner) Run(ctx context.Context, f *Fixture) (*Result, error) {
	eng, err := h.Engine(f)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", f.Name, err)
	}
	u := eng.Universe()
	input, err := host.Build(&f.Input, u)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: input: %w", f.Name, err)
	}
	expected, err := host.Build(f.ExpectedFile(), u)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: expected: %w", f.Name, err)
	}

	r := Verify(ctx, eng, input, expected)
	r.Name = f.Name

	var nt *engine.NonTerminationError
	if errors.As(r.Err, &nt) && f.ExpectsDiagnostic() {
		// The unit came back unchanged with its diagnostic; that is the
		// expected outcome.
		r.Err = nil
		r.Pass = len(r.Mismatches) == 0
	}
	if r.Report == nil {
		return r, nil
	}

	for _, msg := range EvaluateAssertions(r.Report, f.Assertions) {
		r.AddError(msg)
	}
	if r.Pass && !f.ExpectsDiagnostic() {
		if msg := checkIdempotent(ctx, eng, r.Output); msg != "" {
			r.AddError(msg)
		}
	}
	if !r.Pass {
		h.logger.Warn("fixture failed", "fixture", f.Name, "failures", len(r.Failures()))
	}
	return r, nil
}

// RunFixture runs one fixture with a fresh runner.
func RunFixture(ctx context.Context, f *Fixture, opts ...engine.Option) (*Result, error) {
	return NewRunner(nil, opts...).Run(ctx, f)
}

// checkIdempotent re-reads out through its file form and applies eng again.
func checkIdempotent(ctx context.Context, eng *engine.Engine, out *ir.Unit) string {
	data, err := host.Marshal(out)
	if err != nil {
		return fmt.Sprintf("idempotence: %v", err)
	}
	again, err := host.Parse(data, eng.Universe())
	if err != nil {
		return fmt.Sprintf("idempotence: output does not parse: %v", err)
	}
	res, err := eng.Apply(ctx, again)
	if err != nil {
		return fmt.Sprintf("idempotence: second application failed: %v", err)
	}
	if res.Report.Changed() {
		var ids []string
		for _, rep := range res.Report.Replacements {
			ids = append(ids, rep.RuleID)
		}
		return fmt.Sprintf("idempotence: second application rewrote again (rules %v)", ids)
	}
	return ""
}
