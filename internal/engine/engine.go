package engine

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/roach88/rxmigrate/internal/imports"
	"github.com/roach88/rxmigrate/internal/ir"
	"github.com/roach88/rxmigrate/internal/typesys"
)

// DefaultMaxPasses is the default maximum number of passes per unit.
const DefaultMaxPasses = 16

// Strategy decides which node wins when a match and one of its descendants
// could both be rewritten in the same pass.
type Strategy int

const (
	// Outermost tries nodes in pre-order; a matched node's subtree is left
	// for the next pass.
	Outermost Strategy = iota
	// Innermost tries the deepest nodes first; ancestors of a match are
	// left for the next pass.
	Innermost
)

func (s Strategy) String() string {
	if s == Innermost {
		return "innermost"
	}
	return "outermost"
}

// ParseStrategy accepts "outermost" and "innermost".
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "outermost":
		return Outermost, nil
	case "innermost":
		return Innermost, nil
	}
	return Outermost, fmt.Errorf("unknown strategy %q (want outermost or innermost)", s)
}

// Annotator re-infers expression types after a pass changed a unit.
// Implemented by typesys.Typer.
type Annotator interface {
	Annotate(unit *ir.Unit)
}

// Engine applies a rule set to canonical units.
//
// Thread-safety model:
//   - The engine and its rule set are read-only after New; any number of
//     Apply calls may run concurrently.
//   - Apply works on a private clone of its unit.
//
// INVARIANTS:
//   - Rules are tried in declaration order, alternatives in declaration
//     order; the first success wins.
//   - At most one replacement per node per pass.
type Engine struct {
	rules     *ir.RuleSet
	universe  *typesys.Universe
	index     *ruleIndex
	annotator Annotator
	strategy  Strategy
	maxPasses int
	workers   int
	timeout   time.Duration
	logger    *slog.Logger
	runIDs    RunIDGenerator
	clock     *Clock
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxPasses sets the pass limit per unit.
//
// Default: 16 (DefaultMaxPasses). Values below 1 are ignored.
func WithMaxPasses(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPasses = n
		}
	}
}

// WithStrategy selects the traversal strategy. Default: Outermost.
func WithStrategy(s Strategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithAnnotator replaces the type annotator run before the first pass and
// after every pass that committed a replacement. nil disables re-typing.
func WithAnnotator(a Annotator) Option {
	return func(e *Engine) { e.annotator = a }
}

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWorkers bounds the ApplyAll worker pool. Default: GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithUnitTimeout limits the time ApplyAll spends on one unit. Zero means
// no limit.
func WithUnitTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithRunIDGenerator replaces the UUIDv7 run identifier generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.runIDs = g
		}
	}
}

// WithClock shares one clock across every Apply, numbering replacements
// of different units from a single sequence.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithNow replaces the wall clock used for run start times and durations.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine for a rule set whose types live in u.
func New(rules *ir.RuleSet, u *typesys.Universe, opts ...Option) *Engine {
	e := &Engine{
		rules:     rules,
		universe:  u,
		index:     newRuleIndex(rules, u),
		annotator: typesys.NewTyper(u),
		strategy:  Outermost,
		maxPasses: DefaultMaxPasses,
		workers:   runtime.GOMAXPROCS(0),
		logger:    slog.Default(),
		runIDs:    UUIDv7Generator{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() *ir.RuleSet { return e.rules }

// MaxPasses returns the configured pass limit.
func (e *Engine) MaxPasses() int { return e.maxPasses }

// Universe returns the type universe the engine matches against.
func (e *Engine) Universe() *typesys.Universe { return e.universe }

// Strategy returns the configured traversal strategy.
func (e *Engine) Strategy() Strategy { return e.strategy }

// Replacement records one committed rewrite.
type Replacement struct {
	RuleID string  `json:"rule"`
	Decl   string  `json:"decl"`
	Span   ir.Span `json:"span"`
	Pass   int     `json:"pass"`
	Seq    int64   `json:"seq"`
}

// Report describes what Apply did to a unit.
type Report struct {
	Replacements []Replacement   `json:"replacements"`
	Diagnostics  []*RuntimeError `json:"diagnostics,omitempty"`
	Passes       int             `json:"passes"`
}

// Changed reports whether any replacement was committed.
func (r *Report) Changed() bool { return len(r.Replacements) > 0 }

// RuleCounts returns the number of replacements per rule.
func (r *Report) RuleCounts() map[string]int {
	out := make(map[string]int)
	for _, rep := range r.Replacements {
		out[rep.RuleID]++
	}
	return out
}

// Result is the rewritten unit, rendered back to source form, and its
// report.
type Result struct {
	Unit   *ir.Unit
	Report Report
}

// FindMatches yields, for every node of every declaration in pre-order, the
// first rule that matches it. The unit is not modified; the sequence can be
// iterated any number of times.
func (e *Engine) FindMatches(unit *ir.Unit) iter.Seq[MatchResult] {
	return func(yield func(MatchResult) bool) {
		for _, d := range unit.Decls {
			if !e.walkMatches(d.Name, d.Body, nil, ir.Span{}, yield) {
				return
			}
		}
	}
}

func (e *Engine) walkMatches(decl string, n ir.Node, path []int, parent ir.Span, yield func(MatchResult) bool) bool {
	span := effectiveSpan(n, parent)
	if m, ok := e.matchAt(decl, n, path, span); ok && !yield(m) {
		return false
	}
	for i, k := range ir.Children(n) {
		if !e.walkMatches(decl, k, childPath(path, i), span, yield) {
			return false
		}
	}
	return true
}

// matchAt tries the candidate rules for n and returns the first match.
func (e *Engine) matchAt(decl string, n ir.Node, path []int, span ir.Span) (MatchResult, bool) {
	for _, cr := range e.index.candidates(n) {
		alt, b, mismatches := e.tryRule(cr, n)
		for _, mm := range mismatches {
			e.logger.Debug("type mismatch", "decl", decl, "rule", mm.RuleID, "var", mm.Var, "error", mm.Error())
		}
		if b == nil {
			continue
		}
		return MatchResult{
			Rule:        cr.rule,
			Alternative: alt,
			Bindings:    b,
			Decl:        decl,
			Span:        span,
			Node:        n,
			Path:        slices.Clone(path),
		}, true
	}
	return MatchResult{}, false
}

// Apply rewrites a canonical unit to a fixpoint and renders the result.
//
// Ambiguous matches are reported and skipped. Non-termination is fatal for
// the unit: the returned result holds the unit unchanged together with the
// report so far, and the error is a *NonTerminationError. Context errors
// abort without a result.
func (e *Engine) Apply(ctx context.Context, unit *ir.Unit) (*Result, error) {
	work := unit.Clone()
	if e.annotator != nil {
		e.annotator.Annotate(work)
	}
	clock := e.clock
	if clock == nil {
		clock = NewClock()
	}

	var rep Report
	cycles := NewCycleDetector()
	for _, d := range work.Decls {
		cycles.Record(d.Name, ir.NodeHash(d.Body), 0)
	}
	quota := NewQuotaEnforcer(e.maxPasses)

	for pass := 1; ; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if nt := quota.Check(unit.Name); nt != nil {
			return e.abort(unit, rep, nt)
		}
		rep.Passes = pass
		e.logger.Debug("pass starting", "unit", unit.Name, "pass", pass, "strategy", e.strategy)

		committed := 0
		var changed []int
		for i := range work.Decls {
			n := e.applyPass(work.Name, &work.Decls[i], pass, clock, &rep)
			if n > 0 {
				committed += n
				changed = append(changed, i)
			}
		}
		if committed == 0 {
			break
		}
		if e.annotator != nil {
			e.annotator.Annotate(work)
		}

		for _, i := range changed {
			d := work.Decls[i]
			hash := ir.NodeHash(d.Body)
			if since, seen := cycles.Seen(d.Name, hash); seen {
				return e.abort(unit, rep, &NonTerminationError{
					Unit:   unit.Name,
					Decl:   d.Name,
					Passes: pass,
					Limit:  e.maxPasses,
					Cycle:  rulesSince(rep.Replacements, d.Name, since),
				})
			}
			cycles.Record(d.Name, hash, pass)
		}
	}

	imports.RenderUnit(work)
	if rep.Changed() {
		e.logger.Info("unit rewritten", "unit", unit.Name, "replacements", len(rep.Replacements), "passes", rep.Passes)
	}
	return &Result{Unit: work, Report: rep}, nil
}

// abort records a non-termination diagnostic and returns the input unit
// unchanged.
func (e *Engine) abort(unit *ir.Unit, rep Report, nt *NonTerminationError) (*Result, error) {
	if nt.Unit == "" {
		nt.Unit = unit.Name
	}
	diag := nt.Diagnostic()
	rep.Diagnostics = append(rep.Diagnostics, diag)
	e.logger.Warn("non-termination", "unit", unit.Name, "decl", nt.Decl, "passes", nt.Passes, "cycle", nt.Cycle)

	out := unit.Clone()
	imports.RenderUnit(out)
	return &Result{Unit: out, Report: rep}, nt
}

// applyPass plans and commits one pass over a declaration. It returns the
// number of committed replacements.
func (e *Engine) applyPass(unit string, d *ir.Decl, pass int, clock *Clock, rep *Report) int {
	var plan []MatchResult
	e.plan(d.Name, d.Body, nil, ir.Span{}, &plan)
	plan, ambiguities := resolveConflicts(plan)
	for _, a := range ambiguities {
		a.Unit, a.Pass = unit, pass
		rep.Diagnostics = append(rep.Diagnostics, a.Diagnostic())
		e.logger.Warn("ambiguous matches", "unit", unit, "decl", d.Name, "rules", a.Rules, "pass", pass)
	}
	if len(plan) == 0 {
		return 0
	}

	repls := make([]ir.Node, len(plan))
	first := clock.Reserve(len(plan))
	for i, m := range plan {
		repls[i] = e.instantiate(m)
		rep.Replacements = append(rep.Replacements, Replacement{
			RuleID: m.Rule.ID,
			Decl:   d.Name,
			Span:   m.Span,
			Pass:   pass,
			Seq:    first + int64(i),
		})
		e.logger.Debug("replacement committed", "unit", unit, "decl", d.Name, "rule", m.Rule.ID,
			"alternative", m.Alternative, "start", m.Span.Start, "end", m.Span.End)
	}
	d.Body = replaceAll(d.Body, plan, repls)
	return len(plan)
}

// plan collects the matches of one pass according to the strategy. It
// reports whether anything in the subtree of n matched.
func (e *Engine) plan(decl string, n ir.Node, path []int, parent ir.Span, out *[]MatchResult) bool {
	span := effectiveSpan(n, parent)
	if e.strategy == Outermost {
		if m, ok := e.matchAt(decl, n, path, span); ok {
			*out = append(*out, m)
			return true
		}
	}
	matched := false
	for i, k := range ir.Children(n) {
		if e.plan(decl, k, childPath(path, i), span, out) {
			matched = true
		}
	}
	if e.strategy == Innermost && !matched {
		if m, ok := e.matchAt(decl, n, path, span); ok {
			*out = append(*out, m)
			return true
		}
	}
	return matched
}

// resolveConflicts drops every pair of planned matches whose spans cross.
func resolveConflicts(plan []MatchResult) ([]MatchResult, []*MatchAmbiguityError) {
	dropped := make([]bool, len(plan))
	var out []*MatchAmbiguityError
	for i := range plan {
		for j := i + 1; j < len(plan); j++ {
			a, b := plan[i], plan[j]
			if a.Span.IsZero() || b.Span.IsZero() || !a.Span.Crosses(b.Span) {
				continue
			}
			dropped[i], dropped[j] = true, true
			out = append(out, &MatchAmbiguityError{
				Decl:  a.Decl,
				Spans: [2]ir.Span{a.Span, b.Span},
				Rules: [2]string{a.Rule.ID, b.Rule.ID},
			})
		}
	}
	if len(out) == 0 {
		return plan, nil
	}
	kept := make([]MatchResult, 0, len(plan))
	for i, m := range plan {
		if !dropped[i] {
			kept = append(kept, m)
		}
	}
	return kept, out
}

// effectiveSpan is the node's own span, or the nearest enclosing one for
// nodes a rewrite introduced.
func effectiveSpan(n ir.Node, parent ir.Span) ir.Span {
	if s := n.Info().Pos; !s.IsZero() {
		return s
	}
	return parent
}

func childPath(path []int, i int) []int {
	return append(slices.Clip(path), i)
}

// rulesSince lists the rules applied to decl after the given pass.
func rulesSince(reps []Replacement, decl string, pass int) []string {
	var out []string
	for _, r := range reps {
		if r.Decl == decl && r.Pass > pass {
			out = append(out, r.RuleID)
		}
	}
	return out
}
