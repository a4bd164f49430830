package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rxmigrate/internal/ir"
	"github.com/roach88/rxmigrate/internal/syntax"
)

func mustParse(t *testing.T, src string) ir.Node {
	t.Helper()
	n, err := syntax.ParseExpr(src)
	require.NoError(t, err)
	return n
}

func TestClosure_Invoke(t *testing.T) {
	cl := &Closure{Params: []string{"x"}, Body: mustParse(t, "f(x, y)")}

	got := cl.Invoke(mustParse(t, "g(1)"))
	assert.Equal(t, "f(g(1), y)", ir.Format(got))

	// The body is never shared with the result.
	assert.Equal(t, "f(x, y)", ir.Format(cl.Body))
}

func TestClosure_InvokeAvoidsCapture(t *testing.T) {
	cl := &Closure{Params: []string{"x"}, Body: mustParse(t, "list.map(y -> y + x)")}

	got := cl.Invoke(&ir.Ident{Name: "y"})
	assert.Equal(t, "list.map(y1 -> y1 + y)", ir.Format(got))
}

func TestClosure_InvokeArityPanics(t *testing.T) {
	cl := &Closure{Params: []string{"x", "y"}, Body: mustParse(t, "x + y")}
	assert.Panics(t, func() { cl.Invoke(&ir.Ident{Name: "a"}) })
}

func TestClosure_SameAs(t *testing.T) {
	a := &Closure{Params: []string{"x"}, Body: mustParse(t, "x + 1")}
	b := &Closure{Params: []string{"y"}, Body: mustParse(t, "y + 1")}
	c := &Closure{Params: []string{"y"}, Body: mustParse(t, "y + 2")}
	d := &Closure{Params: []string{"x", "y"}, Body: mustParse(t, "x + 1")}

	assert.True(t, a.sameAs(b), "alpha-equivalent closures are the same")
	assert.False(t, a.sameAs(c))
	assert.False(t, a.sameAs(d))
}

func TestReplaceEqual(t *testing.T) {
	body := mustParse(t, "f(g(1), h(g(1)), g(2))")
	got := replaceEqual(body, mustParse(t, "g(1)"), &ir.Ident{Name: "v"})
	assert.Equal(t, "f(v, h(v), g(2))", ir.Format(got))
}

func TestExpand(t *testing.T) {
	cat := boxCatalog(t, cycleRules)
	eng := newEngine(cat)
	formals := []ir.Node{&ir.Ident{Name: "a"}}
	box := &ir.ClassRef{Name: "com.example.Box"}

	tests := []struct {
		name string
		fn   ir.Node
		want string
	}{
		{"static reference", &ir.MethodRef{X: box, Name: "wrap"}, "Box.wrap(a)"},
		{"constructor reference", &ir.MethodRef{X: box, Name: "new"}, "new Box<>(a)"},
		{"unbound receiver", &ir.MethodRef{X: box, Name: "size"}, "a.size()"},
		{"bound receiver", &ir.MethodRef{X: &ir.Ident{Name: "obj"}, Name: "run"}, "obj.run(a)"},
		{"function value", &ir.Ident{Name: "f"}, "f.call(a)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ir.Format(eng.expand(tt.fn, "call", formals)))
		})
	}
}
