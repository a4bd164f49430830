package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rxmigrate/internal/ir"
)

func TestParseExpr_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"static call varargs", "Flowable.just(1, 2, 3)"},
		{"test chain", "single.test().await().assertResult(item)"},
		{"method ref argument", "RxJava2Adapter.flowableToFlux(flowable).as(StepVerifier::create).expectNext(item).verifyComplete()"},
		{"explicit type arguments", "RxJavaReactorMigrationUtil.<I, M>toJdkFunction(function)"},
		{"typed lambda", "single.flatMap((S v) -> toSingleFunction(v))"},
		{"implicit lambda", "i -> i > 2"},
		{"two param lambda", "(a, b) -> a + b * 2"},
		{"grouping kept", "(a + b) * 2"},
		{"right grouping kept", "a - (b - c)"},
		{"block lambda throw", "() -> { throw new IllegalStateException(); }"},
		{"block lambda local", "x -> { String s = x.toString(); return s; }"},
		{"diamond", "new CompletableFuture<>()"},
		{"not", "!x.isEmpty()"},
		{"string literal", `Single.just("foo")`},
		{"long literal", "Flowable.interval(10L)"},
		{"nested lambdas", "flowable.flatMap(x -> Flowable.just(x).map(y -> y + x))"},
		{"this method ref", "single.map(this::convert)"},
		{"class literal", "completable.test().await().assertError(IllegalStateException.class)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseExpr(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.input, ir.Format(n))
		})
	}
}

func TestParseExpr_Shapes(t *testing.T) {
	n, err := ParseExpr("RxJavaReactorMigrationUtil.<I, M>toJdkFunction(function)")
	require.NoError(t, err)
	call, ok := n.(*ir.Call)
	require.True(t, ok)
	require.Len(t, call.TypeArgs, 2)
	assert.Equal(t, "I", ir.TypeString(call.TypeArgs[0]))
	sel, ok := call.Fun.(*ir.Select)
	require.True(t, ok)
	assert.Equal(t, "toJdkFunction", sel.Sel)

	n, err = ParseExpr("10L")
	require.NoError(t, err)
	assert.Equal(t, ir.LitLong, n.(*ir.Lit).Kind)

	n, err = ParseExpr("(S v) -> v")
	require.NoError(t, err)
	lam := n.(*ir.Lambda)
	require.Len(t, lam.Params, 1)
	assert.Equal(t, "v", lam.Params[0].Name)
	assert.Equal(t, "S", ir.TypeString(lam.Params[0].Type))
}

func TestParseExpr_Spans(t *testing.T) {
	n, err := ParseExpr("Flowable.just(1, 2)")
	require.NoError(t, err)
	assert.Equal(t, ir.Span{Start: 0, End: 19}, n.Info().Pos)

	call := n.(*ir.Call)
	assert.Equal(t, ir.Span{Start: 17, End: 18}, call.Args[1].Info().Pos)
	assert.Equal(t, ir.Span{Start: 0, End: 13}, call.Fun.Info().Pos)
}

func TestParseExpr_Errors(t *testing.T) {
	inputs := []string{
		"Flowable.just(1",
		"a ->",
		"new Foo",
		"x.<T>y",
		"a b",
		"",
		"\"unterminated",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := ParseExpr(in)
			require.Error(t, err)
			var se *Error
			assert.ErrorAs(t, err, &se)
		})
	}
}

func TestParseType(t *testing.T) {
	tests := []string{
		"Function<? super T, ? extends SingleSource<? extends R>>",
		"String[]",
		"Callable<? extends Throwable>",
		"io.reactivex.Flowable<T>",
		"Map<K, List<V>>",
		"Class<?>",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			typ, err := ParseType(in)
			require.NoError(t, err)
			assert.Equal(t, in, ir.QualifiedTypeString(typ))
		})
	}

	_, err := ParseType("Function<T")
	assert.Error(t, err)
	_, err = ParseType("List<T> x")
	assert.Error(t, err)
}

func TestParseTypeParam(t *testing.T) {
	name, upper, err := ParseTypeParam("R extends CompletableSource")
	require.NoError(t, err)
	assert.Equal(t, "R", name)
	assert.Equal(t, "CompletableSource", ir.TypeString(upper))

	name, upper, err = ParseTypeParam("T")
	require.NoError(t, err)
	assert.Equal(t, "T", name)
	assert.Nil(t, upper)

	_, _, err = ParseTypeParam("T super X")
	assert.Error(t, err)
}
