package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rxmigrate/internal/catalog"
	"github.com/roach88/rxmigrate/internal/compiler"
	"github.com/roach88/rxmigrate/internal/host"
	"github.com/roach88/rxmigrate/internal/ir"
	"github.com/roach88/rxmigrate/internal/typesys"
)

// =============================================================================
// Test Helpers
// =============================================================================

var quiet = slog.New(slog.DiscardHandler)

// boxUniverse is a small type universe for exercising engine mechanics
// without the full migration catalog.
const boxUniverse = `
imports:
  - com.example.Box
  - com.example.Fn
  - com.example.Util
classes:
  java.lang.Integer: {}
  java.lang.String: {}
  com.example.Box: {params: [T]}
  com.example.Fn: {params: [T, R]}
  com.example.Util: {}
methods:
  - {owner: com.example.Box, name: a, static: true, params: [Integer], returns: Integer}
  - {owner: com.example.Box, name: b, static: true, params: [Integer], returns: Integer}
  - {owner: com.example.Box, name: wrap, static: true, params: [Integer], returns: Integer}
  - {owner: com.example.Box, name: pair, static: true, params: [Integer, Integer], returns: Integer}
  - {owner: com.example.Box, name: of, static: true, type_params: [T], params: ["T[]"], varargs: true, returns: "Box<T>"}
  - {owner: com.example.Box, name: list, static: true, type_params: [T], params: ["T[]"], varargs: true, returns: "Box<T>"}
  - {owner: com.example.Box, name: map, type_params: [R], params: ["Fn<T, R>"], returns: "Box<R>"}
  - {owner: com.example.Box, name: size, returns: Integer}
  - {owner: com.example.Box, name: apply, type_params: [R], params: ["Fn<T, R>"], returns: "Box<R>"}
  - {owner: com.example.Fn, name: call, params: [T], returns: R}
  - {owner: com.example.Util, name: twice, static: true, params: [Integer], returns: Integer}
  - {owner: com.example.Util, name: describe, static: true, params: [Integer], returns: String}
`

// boxCatalog compiles boxUniverse plus the given YAML rule list.
func boxCatalog(t *testing.T, rules string) *compiler.Catalog {
	t.Helper()
	fsys := fstest.MapFS{
		"universe.yaml": {Data: []byte(boxUniverse)},
		"rules.yaml":    {Data: []byte("rules:\n" + rules)},
	}
	cat, err := compiler.LoadFS(fsys, compiler.WithLogger(quiet))
	require.NoError(t, err)
	return cat
}

func migrationCatalog(t *testing.T) *compiler.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return cat
}

func newEngine(cat *compiler.Catalog, opts ...Option) *Engine {
	return New(cat.Rules, cat.Universe, append([]Option{WithLogger(quiet)}, opts...)...)
}

// unitSpec describes a test unit; decls are named d0, d1, ...
type unitSpec struct {
	imports []string
	vars    []host.VarSrc
	decls   []string
}

func parseUnit(t *testing.T, u *typesys.Universe, spec unitSpec) *ir.Unit {
	t.Helper()
	f := &host.File{Name: "Test", Imports: spec.imports}
	f.SetVars(spec.vars)
	for i, expr := range spec.decls {
		f.Decls = append(f.Decls, host.DeclSrc{Name: fmt.Sprintf("d%d", i), Expr: expr})
	}
	unit, err := host.Build(f, u)
	require.NoError(t, err)
	return unit
}

func rendered(unit *ir.Unit) []string {
	out := make([]string, len(unit.Decls))
	for i, d := range unit.Decls {
		out[i] = ir.Format(d.Body)
	}
	return out
}

func importPaths(unit *ir.Unit) []string {
	out := make([]string, len(unit.Imports))
	for i, imp := range unit.Imports {
		out[i] = imp.String()
	}
	return out
}

func ruleIDs(reps []Replacement) []string {
	out := make([]string, len(reps))
	for i, r := range reps {
		out[i] = r.RuleID
	}
	return out
}

const cycleRules = `
  - id: AToB
    params: [{name: x, type: Integer}]
    before: ["Box.a(x)"]
    after: "Box.b(x)"
  - id: BToA
    params: [{name: x, type: Integer}]
    before: ["Box.b(x)"]
    after: "Box.a(x)"
`

// =============================================================================
// Apply: migration catalog chains
// =============================================================================

func TestApply_FlowableFilterChain(t *testing.T) {
	cat := migrationCatalog(t)
	unit := parseUnit(t, cat.Universe, unitSpec{
		imports: []string{"io.reactivex.Flowable"},
		decls:   []string{"Flowable.just(1).filter(i -> i > 2)"},
	})

	res, err := newEngine(cat).Apply(context.Background(), unit)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"RxJava2Adapter.fluxToFlowable(Flux.just(1).filter(RxJavaReactorMigrationUtil.toJdkPredicate(i -> i > 2)))",
	}, rendered(res.Unit))
	assert.Equal(t, []string{"FlowableFilter", "FlowableJust", "FluxFlowableRoundTrip"}, ruleIDs(res.Report.Replacements))
	assert.Equal(t, 4, res.Report.Passes, "three committing passes and one quiescent pass")
	assert.Empty(t, res.Report.Diagnostics)
	assert.Equal(t, []string{
		"io.reactivex.Flowable",
		"reactor.adapter.rxjava.RxJava2Adapter",
		"reactor.core.publisher.Flux",
		"tech.picnic.errorprone.migration.util.RxJavaReactorMigrationUtil",
	}, importPaths(res.Unit))

	// Input untouched
	assert.Equal(t, []string{"Flowable.just(1).filter(i -> i > 2)"}, rendered(unit))
}

func TestApply_InnermostReachesSameResult(t *testing.T) {
	cat := migrationCatalog(t)
	unit := parseUnit(t, cat.Universe, unitSpec{
		imports: []string{"io.reactivex.Flowable"},
		decls:   []string{"Flowable.just(1).filter(i -> i > 2)"},
	})

	res, err := newEngine(cat, WithStrategy(Innermost)).Apply(context.Background(), unit)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"RxJava2Adapter.fluxToFlowable(Flux.just(1).filter(RxJavaReactorMigrationUtil.toJdkPredicate(i -> i > 2)))",
	}, rendered(res.Unit))
	assert.Equal(t, []string{"FlowableJust", "FlowableFilter", "FluxFlowableRoundTrip"}, ruleIDs(res.Report.Replacements))
}

func TestApply_TestChainToStepVerifier(t *testing.T) {
	cat := migrationCatalog(t)
	unit := parseUnit(t, cat.Universe, unitSpec{
		imports: []string{"io.reactivex.Flowable"},
		decls:   []string{"Flowable.just(1).test().await().assertResult(1)"},
	})

	res, err := newEngine(cat).Apply(context.Background(), unit)
	require.NoError(t, err)

	assert.Equal(t, []string{"Flux.just(1).as(StepVerifier::create).expectNext(1).verifyComplete()"}, rendered(res.Unit))
	assert.Equal(t, []string{
		"io.reactivex.Flowable",
		"reactor.core.publisher.Flux",
		"reactor.test.StepVerifier",
	}, importPaths(res.Unit), "the adapter vanished, so it is not imported")
}

func TestApply_LambdaChainsCollapseBoundaries(t *testing.T) {
	cat := migrationCatalog(t)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "single map",
			in:   "Flowable.just(1).map(v -> v + 1).blockingFirst()",
			want: "Flux.just(1).map(RxJavaReactorMigrationUtil.toJdkFunction(v -> v + 1)).blockFirst()",
		},
		{
			name: "two maps",
			in:   "Flowable.just(1).map(v -> v + 1).map(w -> w + 2).blockingFirst()",
			want: "Flux.just(1).map(RxJavaReactorMigrationUtil.toJdkFunction(v -> v + 1)).map(RxJavaReactorMigrationUtil.toJdkFunction(w -> w + 2)).blockFirst()",
		},
	}
	for _, tt := range tests {
		for _, strategy := range []Strategy{Outermost, Innermost} {
			t.Run(tt.name+"/"+strategy.String(), func(t *testing.T) {
				unit := parseUnit(t, cat.Universe, unitSpec{
					imports: []string{"io.reactivex.Flowable"},
					decls:   []string{tt.in},
				})
				res, err := newEngine(cat, WithStrategy(strategy)).Apply(context.Background(), unit)
				require.NoError(t, err)

				out := rendered(res.Unit)[0]
				assert.Equal(t, tt.want, out)
				assert.NotContains(t, out, "fluxToFlowable(")
				assert.NotContains(t, out, "flowableToFlux(")
				assert.Contains(t, ruleIDs(res.Report.Replacements), "FluxFlowableRoundTrip")
				assert.Equal(t, []string{
					"io.reactivex.Flowable",
					"reactor.core.publisher.Flux",
					"tech.picnic.errorprone.migration.util.RxJavaReactorMigrationUtil",
				}, importPaths(res.Unit))
			})
		}
	}
}

func TestApply_CompletableBoundariesCollapse(t *testing.T) {
	cat := migrationCatalog(t)
	unit := parseUnit(t, cat.Universe, unitSpec{
		imports: []string{"io.reactivex.Completable"},
		decls: []string{
			"Completable.complete().blockingAwait()",
			"Completable.complete().andThen(Completable.complete())",
		},
	})

	res, err := newEngine(cat).Apply(context.Background(), unit)
	require.NoError(t, err)

	out := rendered(res.Unit)
	assert.Equal(t, "Mono.empty().block()", out[0])
	for _, s := range out {
		assert.NotContains(t, s, "completableToMono(RxJava2Adapter.monoToCompletable(")
	}
	assert.Contains(t, ruleIDs(res.Report.Replacements), "MonoCompletableRoundTrip")
	assert.Empty(t, res.Report.Diagnostics)
}

// redeclared returns lambda parameters that reuse the name of a parameter
// of an enclosing lambda, which Java rejects.
func redeclared(n ir.Node) []string {
	var out []string
	var walk func(ir.Node, map[string]bool)
	walk = func(n ir.Node, scope map[string]bool) {
		if l, ok := n.(*ir.Lambda); ok {
			inner := maps.Clone(scope)
			for _, p := range l.Params {
				if scope[p.Name] {
					out = append(out, p.Name)
				}
				inner[p.Name] = true
			}
			walk(l.Body, inner)
			return
		}
		for _, k := range ir.Children(n) {
			walk(k, scope)
		}
	}
	walk(n, map[string]bool{})
	return out
}

func TestApply_TemplateLambdaAvoidsNamesBoundInArguments(t *testing.T) {
	cat := migrationCatalog(t)
	tests := []struct {
		rule string
		in   string
	}{
		{"FlowableFlatMapCompletable", "Flowable.just(1).flatMapCompletable(x -> Completable.complete())"},
		{"SingleFlatMapCompletable", "Single.just(1).flatMapCompletable(z -> Completable.complete())"},
		{"SingleFlatMapMaybe", "Single.just(1).flatMapMaybe(e -> Maybe.just(e))"},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			unit := parseUnit(t, cat.Universe, unitSpec{
				imports: []string{"io.reactivex.Completable", "io.reactivex.Flowable", "io.reactivex.Maybe", "io.reactivex.Single"},
				decls:   []string{tt.in},
			})
			res, err := newEngine(cat).Apply(context.Background(), unit)
			require.NoError(t, err)

			assert.Contains(t, ruleIDs(res.Report.Replacements), tt.rule)
			assert.Empty(t, redeclared(res.Unit.Decls[0].Body), rendered(res.Unit)[0])
		})
	}
}

func TestApply_NoOpUnit(t *testing.T) {
	cat := migrationCatalog(t)
	unit := parseUnit(t, cat.Universe, unitSpec{
		imports: []string{"reactor.core.publisher.Flux"},
		decls:   []string{"Flux.just(1, 2)", "1 + 2"},
	})

	res, err := newEngine(cat).Apply(context.Background(), unit)
	require.NoError(t, err)

	assert.Equal(t, []string{"Flux.just(1, 2)", "1 + 2"}, rendered(res.Unit))
	assert.Equal(t, []string{"reactor.core.publisher.Flux"}, importPaths(res.Unit))
	assert.False(t, res.Report.Changed())
	assert.Equal(t, 1, res.Report.Passes)
}

func TestApply_Idempotent(t *testing.T) {
	cat := migrationCatalog(t)
	eng := newEngine(cat)
	unit := parseUnit(t, cat.Universe, unitSpec{
		imports: []string{"io.reactivex.Flowable"},
		decls:   []string{"Flowable.just(1).filter(i -> i > 2)"},
	})

	first, err := eng.Apply(context.Background(), unit)
	require.NoError(t, err)

	// Re-read the output the way a user would and apply again.
	data, err := host.Marshal(first.Unit)
	require.NoError(t, err)
	again, err := host.Parse(data, cat.Universe)
	require.NoError(t, err)

	second, err := eng.Apply(context.Background(), again)
	require.NoError(t, err)
	assert.False(t, second.Report.Changed())
	assert.Equal(t, rendered(first.Unit), rendered(second.Unit))
}

func TestApply_ReplacementsCarrySpanAndSeq(t *testing.T) {
	cat := boxCatalog(t, cycleRules[:strings.Index(cycleRules, "  - id: BToA")])
	unit := parseUnit(t, cat.Universe, unitSpec{
		imports: []string{"com.example.Box"},
		decls:   []string{"Box.pair(Box.a(1), Box.a(2))"},
	})

	res, err := newEngine(cat).Apply(context.Background(), unit)
	require.NoError(t, err)

	assert.Equal(t, []string{"Box.pair(Box.b(1), Box.b(2))"}, rendered(res.Unit))
	require.Len(t, res.Report.Replacements, 2)
	first, second := res.Report.Replacements[0], res.Report.Replacements[1]
	assert.Equal(t, ir.Span{Start: 9, End: 17}, first.Span)
	assert.Equal(t, ir.Span{Start: 19, End: 27}, second.Span)
	assert.Equal(t, "d0", first.Decl)
	assert.Equal(t, 1, first.Pass)
	assert.Equal(t, []int64{1, 2}, []int64{first.Seq, second.Seq})
}

func TestApply_SharedClockNumbersAcrossUnits(t *testing.T) {
	cat := boxCatalog(t, cycleRules[:strings.Index(cycleRules, "  - id: BToA")])
	clock := NewClock()
	eng := newEngine(cat, WithClock(clock))
	unit := parseUnit(t, cat.Universe, unitSpec{imports: []string{"com.example.Box"}, decls: []string{"Box.a(1)"}})

	r1, err := eng.Apply(context.Background(), unit)
	require.NoError(t, err)
	r2, err := eng.Apply(context.Background(), unit)
	require.NoError(t, err)

	assert.Equal(t, int64(1), r1.Report.Replacements[0].Seq)
	assert.Equal(t, int64(2), r2.Report.Replacements[0].Seq)
	assert.Equal(t, int64(2), clock.Last())
}

// =============================================================================
// Apply: termination and conflicts
// =============================================================================

func TestApply_CycleIsNonTermination(t *testing.T) {
	cat := boxCatalog(t, cycleRules)
	unit := parseUnit(t, cat.Universe, unitSpec{
		imports: []string{"com.example.Box"},
		decls:   []string{"Box.a(1)"},
	})

	res, err := newEngine(cat).Apply(context.Background(), unit)
	require.Error(t, err)
	assert.True(t, IsNonTerminationError(err))

	var nt *NonTerminationError
	require.ErrorAs(t, err, &nt)
	assert.Equal(t, "Test", nt.Unit)
	assert.Equal(t, "d0", nt.Decl)
	assert.Equal(t, 2, nt.Passes)
	assert.Equal(t, []string{"AToB", "BToA"}, nt.Cycle)

	require.NotNil(t, res)
	assert.Equal(t, []string{"Box.a(1)"}, rendered(res.Unit), "unit is left unchanged")
	require.Len(t, res.Report.Diagnostics, 1)
	diag := res.Report.Diagnostics[0]
	assert.Equal(t, ErrCodeNonTermination, diag.Code)
	assert.Equal(t, []string{"AToB", "BToA"}, diag.Rules)
}

func TestApply_GrowthHitsPassLimit(t *testing.T) {
	cat := boxCatalog(t, `
  - id: Grow
    params: [{name: x, type: Integer}]
    before: ["Box.a(x)"]
    after: "Box.a(Box.wrap(x))"
`)
	unit := parseUnit(t, cat.Universe, unitSpec{
		imports: []string{"com.example.Box"},
		decls:   []string{"Box.a(1)"},
	})

	res, err := newEngine(cat, WithMaxPasses(5)).Apply(context.Background(), unit)
	require.Error(t, err)

	var nt *NonTerminationError
	require.ErrorAs(t, err, &nt)
	assert.Equal(t, 5, nt.Passes)
	assert.Equal(t, 5, nt.Limit)
	assert.Empty(t, nt.Cycle)

	assert.Equal(t, []string{"Box.a(1)"}, rendered(res.Unit))
	assert.Len(t, res.Report.Replacements, 5)
	assert.Contains(t, res.Report.Diagnostics[0].Message, "limit 5")
}

func TestApply_NonTerminationIsolatedPerUnit(t *testing.T) {
	cat := boxCatalog(t, cycleRules)
	eng := newEngine(cat)
	looping := parseUnit(t, cat.Universe, unitSpec{imports: []string{"com.example.Box"}, decls: []string{"Box.a(1)"}})
	plain := parseUnit(t, cat.Universe, unitSpec{imports: []string{"com.example.Box"}, decls: []string{"Box.wrap(1)"}})

	run := eng.ApplyAll(context.Background(), []*ir.Unit{looping, plain})
	require.Len(t, run.Units, 2)
	assert.True(t, IsNonTerminationError(run.Units[0].Err))
	require.NoError(t, run.Units[1].Err)
	assert.Equal(t, []string{"Box.wrap(1)"}, rendered(run.Units[1].Result.Unit))
}

func TestApply_CrossingSpansAreAmbiguous(t *testing.T) {
	cat := boxCatalog(t, cycleRules)
	unit := parseUnit(t, cat.Universe, unitSpec{
		imports: []string{"com.example.Box"},
		decls:   []string{"Box.a(1) + Box.b(2)"},
	})
	// A host may report spans that overlap without nesting, as for code
	// produced by macro expansion.
	bin := unit.Decls[0].Body.(*ir.Binary)
	bin.X.Info().Pos = ir.Span{Start: 0, End: 10}
	bin.Y.Info().Pos = ir.Span{Start: 5, End: 15}

	res, err := newEngine(cat).Apply(context.Background(), unit)
	require.NoError(t, err)

	assert.Equal(t, []string{"Box.a(1) + Box.b(2)"}, rendered(res.Unit), "neither match is applied")
	assert.Empty(t, res.Report.Replacements)
	require.Len(t, res.Report.Diagnostics, 1)
	diag := res.Report.Diagnostics[0]
	assert.Equal(t, ErrCodeMatchAmbiguity, diag.Code)
	assert.Equal(t, []string{"AToB", "BToA"}, diag.Rules)
	assert.Equal(t, ir.Span{Start: 0, End: 15}, diag.Span)
	assert.Equal(t, 1, diag.Pass)
}

func TestApply_ContextCanceled(t *testing.T) {
	cat := boxCatalog(t, cycleRules)
	unit := parseUnit(t, cat.Universe, unitSpec{imports: []string{"com.example.Box"}, decls: []string{"Box.a(1)"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newEngine(cat).Apply(ctx, unit)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

// =============================================================================
// FindMatches
// =============================================================================

func TestFindMatches_PreOrderWithoutMutation(t *testing.T) {
	cat := migrationCatalog(t)
	unit := parseUnit(t, cat.Universe, unitSpec{
		imports: []string{"io.reactivex.Flowable"},
		decls:   []string{"Flowable.just(1)", "Flowable.just(1).filter(i -> i > 2)"},
	})
	before := ir.NodeHash(unit.Decls[1].Body)

	var got []string
	for m := range newEngine(cat).FindMatches(unit) {
		got = append(got, fmt.Sprintf("%s %s %v", m.Decl, m.Rule.ID, m.Path))
	}

	assert.Equal(t, []string{
		"d0 FlowableJust []",
		"d1 FlowableFilter []",
		"d1 FlowableJust [0 0]",
	}, got)
	assert.Equal(t, before, ir.NodeHash(unit.Decls[1].Body))
}

func TestFindMatches_Restartable(t *testing.T) {
	cat := migrationCatalog(t)
	unit := parseUnit(t, cat.Universe, unitSpec{
		imports: []string{"io.reactivex.Flowable"},
		decls:   []string{"Flowable.just(1)", "Flowable.just(2)"},
	})
	seq := newEngine(cat).FindMatches(unit)

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	assert.Equal(t, 2, count())
	assert.Equal(t, 2, count())

	// Early break stops the walk.
	n := 0
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

// =============================================================================
// Options
// =============================================================================

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", Outermost, false},
		{"outermost", Outermost, false},
		{"innermost", Innermost, false},
		{"sideways", Outermost, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.in != "" {
				assert.Equal(t, tt.in, got.String())
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	cat := boxCatalog(t, cycleRules)
	eng := New(cat.Rules, cat.Universe)
	assert.Equal(t, DefaultMaxPasses, eng.MaxPasses())
	assert.Equal(t, Outermost, eng.Strategy())
	assert.Same(t, cat.Rules, eng.Rules())

	eng = New(cat.Rules, cat.Universe, WithMaxPasses(0), WithMaxPasses(3))
	assert.Equal(t, 3, eng.MaxPasses(), "non-positive limits are ignored")
}

func TestReport_RuleCounts(t *testing.T) {
	rep := Report{Replacements: []Replacement{{RuleID: "A"}, {RuleID: "B"}, {RuleID: "A"}}}
	assert.Equal(t, map[string]int{"A": 2, "B": 1}, rep.RuleCounts())
	assert.True(t, rep.Changed())
}

func TestResolveConflicts_KeepsNestedAndDisjoint(t *testing.T) {
	rule := &ir.Rule{ID: "R"}
	plan := []MatchResult{
		{Rule: rule, Span: ir.Span{Start: 0, End: 10}},
		{Rule: rule, Span: ir.Span{Start: 2, End: 5}},
		{Rule: rule, Span: ir.Span{Start: 10, End: 12}},
		{Rule: rule},
	}
	kept, amb := resolveConflicts(plan)
	assert.Len(t, kept, 4)
	assert.Empty(t, amb)

	plan = append(plan, MatchResult{Rule: &ir.Rule{ID: "S"}, Span: ir.Span{Start: 8, End: 11}})
	kept, amb = resolveConflicts(plan)
	require.Len(t, amb, 2, "crosses both [0,10) and [10,12)")
	assert.Len(t, kept, 2)
	assert.True(t, slices.ContainsFunc(kept, func(m MatchResult) bool { return m.Span == ir.Span{Start: 2, End: 5} }))
}
