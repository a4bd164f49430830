package ir

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// justCall builds Flowable.just(arg).
func justCall(style RefStyle, arg Node) *Call {
	return &Call{Fun: &Select{X: flowable(style), Sel: "just"}, Args: []Node{arg}}
}

func TestEqual_IgnoresMeta(t *testing.T) {
	a := justCall(RefSimple, lit("1"))
	b := justCall(RefQualified, lit("1"))
	b.Meta = Meta{Pos: Span{Start: 4, End: 20}, Typ: &Named{Name: "io.reactivex.Flowable"}}

	assert.True(t, Equal(a, b))
	assert.Equal(t, NodeHash(a), NodeHash(b))

	c := justCall(RefSimple, lit("2"))
	assert.False(t, Equal(a, c))
	assert.NotEqual(t, NodeHash(a), NodeHash(c))

	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(a, nil))
}

func TestEqual_TypeArgs(t *testing.T) {
	a := justCall(RefSimple, lit("1"))
	b := justCall(RefSimple, lit("1"))
	b.TypeArgs = []Type{&Named{Name: "java.lang.Integer"}}
	assert.False(t, Equal(a, b))
}

func TestCloneIsDeep(t *testing.T) {
	orig := justCall(RefSimple, ident("x"))
	cp := Clone(orig).(*Call)
	require.True(t, Equal(orig, cp))

	cp.Args[0].(*Ident).Name = "y"
	assert.Equal(t, "x", orig.Args[0].(*Ident).Name)
}

func TestWalkAndChildren(t *testing.T) {
	n := &Binary{Op: "+", X: justCall(RefSimple, ident("a")), Y: ident("b")}

	var names []string
	Walk(n, func(x Node) bool {
		if id, ok := x.(*Ident); ok {
			names = append(names, id.Name)
		}
		_, isCall := x.(*Call)
		return !isCall
	})
	assert.Equal(t, []string{"b"}, names, "children of the call are skipped")

	assert.Len(t, Children(n.X), 2)
	assert.Nil(t, Children(ident("a")))
	assert.Nil(t, Children(&Return{}))
}

func TestReplaceAt(t *testing.T) {
	n := &Binary{Op: "+", X: justCall(RefSimple, ident("a")), Y: ident("b")}
	out := ReplaceAt(n, []int{0, 1}, lit("7"))

	assert.Equal(t, "Flowable.just(7) + b", Format(out))
	assert.Equal(t, "Flowable.just(a) + b", Format(n), "original is untouched")
	assert.Same(t, n.Y, out.(*Binary).Y, "off-path nodes are shared")
	assert.Equal(t, "7", Format(At(out, []int{0, 1})))
}

func TestFreeNames(t *testing.T) {
	// x -> { Integer y = x; return y + z; }
	n := &Lambda{
		Params: []Param{{Name: "x"}},
		Body: &Block{Stmts: []Node{
			&Local{Type: &Named{Name: "java.lang.Integer"}, Name: "y", Value: ident("x")},
			&Return{X: &Binary{Op: "+", X: ident("y"), Y: ident("z")}},
		}},
	}
	free := FreeNames(n)
	assert.Equal(t, []string{"z"}, slices.Collect(free.Items()))
	assert.True(t, References(n, "z"))
	assert.False(t, References(n, "x"))
}

func TestBoundNames(t *testing.T) {
	// f(x -> { Integer y = x; return g(z -> y + z); })
	n := &Call{Fun: ident("f"), Args: []Node{&Lambda{
		Params: []Param{{Name: "x"}},
		Body: &Block{Stmts: []Node{
			&Local{Type: &Named{Name: "java.lang.Integer"}, Name: "y", Value: ident("x")},
			&Return{X: &Call{Fun: ident("g"), Args: []Node{
				&Lambda{Params: []Param{{Name: "z"}}, Body: &Binary{Op: "+", X: ident("y"), Y: ident("z")}},
			}}},
		}},
	}}}
	assert.Equal(t, []string{"x", "y", "z"}, slices.Sorted(BoundNames(n).Items()))
	assert.Empty(t, slices.Collect(BoundNames(ident("x")).Items()))
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name string
		node Node
		repl map[string]Node
		want string
	}{
		{
			name: "replaces free identifiers",
			node: &Binary{Op: "+", X: ident("a"), Y: ident("b")},
			repl: map[string]Node{"a": justCall(RefSimple, lit("1"))},
			want: "Flowable.just(1) + b",
		},
		{
			name: "lambda parameter shadows",
			node: &Lambda{Params: []Param{{Name: "x"}}, Body: ident("x")},
			repl: map[string]Node{"x": lit("1")},
			want: "x -> x",
		},
		{
			name: "captured parameter is renamed",
			node: &Lambda{Params: []Param{{Name: "x"}}, Body: &Binary{Op: "+", X: ident("x"), Y: ident("y")}},
			repl: map[string]Node{"y": ident("x")},
			want: "x1 -> x1 + x",
		},
		{
			name: "parameter bound inside the replacement is renamed",
			node: &Lambda{Params: []Param{{Name: "x"}}, Body: &Call{Fun: ident("f"), Args: []Node{ident("x"), ident("g")}}},
			repl: map[string]Node{"g": &Lambda{Params: []Param{{Name: "x"}}, Body: ident("x")}},
			want: "x1 -> f(x1, x -> x)",
		},
		{
			name: "empty map clones",
			node: ident("a"),
			repl: nil,
			want: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(Substitute(tt.node, tt.repl)))
		})
	}
}

func TestFreshName(t *testing.T) {
	taken := map[string]bool{"x": true, "x1": true}
	assert.Equal(t, "x2", FreshName("x", func(s string) bool { return taken[s] }))
	assert.Equal(t, "y", FreshName("y", func(s string) bool { return taken[s] }))
}

func TestSpan(t *testing.T) {
	outer := Span{Start: 0, End: 10}
	inner := Span{Start: 2, End: 5}
	cross := Span{Start: 8, End: 12}

	assert.True(t, outer.Contains(inner))
	assert.False(t, inner.Contains(outer))
	assert.True(t, outer.Overlaps(cross))
	assert.True(t, outer.Crosses(cross))
	assert.False(t, outer.Crosses(inner))
	assert.False(t, inner.Overlaps(Span{Start: 5, End: 6}), "half-open")
	assert.True(t, Span{}.IsZero())
}

func TestTypeVars(t *testing.T) {
	typ := &Named{Name: "java.util.Map", Args: []Type{
		&TypeVar{Name: "K"},
		&Named{Name: "java.util.List", Args: []Type{&TypeVar{Name: "V"}, &TypeVar{Name: "K"}}},
	}}
	assert.Equal(t, []string{"K", "V"}, TypeVars(typ))

	mapped := MapType(typ, func(x Type) Type {
		if v, ok := x.(*TypeVar); ok && v.Name == "K" {
			return &Named{Name: "java.lang.String"}
		}
		return nil
	})
	assert.Equal(t, "Map<String, List<V, String>>", TypeString(mapped))
	assert.False(t, TypeEqual(typ, mapped))
	assert.True(t, TypeEqual(typ, MapType(typ, func(Type) Type { return nil })))
}
