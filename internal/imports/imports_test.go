package imports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rxmigrate/internal/ir"
	"github.com/roach88/rxmigrate/internal/syntax"
)

type classSet map[string]bool

func (c classSet) IsClass(name string) bool { return c[name] }

var classes = classSet{
	"io.reactivex.Flowable":       true,
	"reactor.core.publisher.Flux": true,
	"com.other.Flux":              true,
	"java.lang.String":            true,
	"java.lang.Integer":           true,
}

const (
	flowable = "io.reactivex.Flowable"
	flux     = "reactor.core.publisher.Flux"
)

func parse(t *testing.T, src string) ir.Node {
	t.Helper()
	n, err := syntax.ParseExpr(src)
	require.NoError(t, err)
	return n
}

// receiver returns the receiver of a call written as X.m(...).
func receiver(t *testing.T, n ir.Node) ir.Node {
	t.Helper()
	call, ok := n.(*ir.Call)
	require.True(t, ok, "want call, got %T", n)
	sel, ok := call.Fun.(*ir.Select)
	require.True(t, ok, "want select, got %T", call.Fun)
	return sel.X
}

func TestBind(t *testing.T) {
	tests := []struct {
		name    string
		imports []ir.Import
		scope   []string
		src     string
		want    *ir.ClassRef // nil: the receiver stays a plain name
	}{
		{
			name:    "imported simple name",
			imports: []ir.Import{{Path: flowable}},
			src:     "Flowable.just(1)",
			want:    &ir.ClassRef{Name: flowable, Style: ir.RefSimple},
		},
		{
			name: "qualified name",
			src:  "io.reactivex.Flowable.just(1)",
			want: &ir.ClassRef{Name: flowable, Style: ir.RefQualified},
		},
		{
			name:    "static import",
			imports: []ir.Import{{Path: flowable + ".just", Static: true}},
			src:     "just(1)",
			want:    &ir.ClassRef{Name: flowable, Style: ir.RefStatic},
		},
		{
			name: "java.lang is implicit",
			src:  "String.valueOf(1)",
			want: &ir.ClassRef{Name: "java.lang.String", Style: ir.RefSimple},
		},
		{
			name:    "variable shadows class",
			imports: []ir.Import{{Path: flowable}},
			scope:   []string{"Flowable"},
			src:     "Flowable.just(1)",
		},
		{
			name: "unknown name",
			src:  "Observable.just(1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBinder(classes, tt.imports)
			out := b.Bind(parse(t, tt.src), tt.scope)

			assert.Equal(t, tt.src, ir.Format(out), "binding keeps the written form")
			ref, isRef := receiver(t, out).(*ir.ClassRef)
			if tt.want == nil {
				assert.False(t, isRef)
				return
			}
			require.True(t, isRef)
			assert.Equal(t, tt.want.Name, ref.Name)
			assert.Equal(t, tt.want.Style, ref.Style)
		})
	}
}

func TestBind_LambdaParameterShadows(t *testing.T) {
	b := NewBinder(classes, []ir.Import{{Path: flowable}})
	out := b.Bind(parse(t, "Flowable -> Flowable.just(1)"), nil)

	lam, ok := out.(*ir.Lambda)
	require.True(t, ok)
	_, isRef := receiver(t, lam.Body).(*ir.ClassRef)
	assert.False(t, isRef)
}

func TestBind_ResolvesTypes(t *testing.T) {
	b := NewBinder(classes, []ir.Import{{Path: flowable}})
	b.TypeVars = map[string]bool{"T": true}
	out := b.Bind(parse(t, "Flowable.<T>just((Integer x) -> x)"), nil)

	call := out.(*ir.Call)
	require.Len(t, call.TypeArgs, 1)
	assert.Equal(t, &ir.TypeVar{Name: "T"}, call.TypeArgs[0])
	lam := call.Args[0].(*ir.Lambda)
	assert.Equal(t, "java.lang.Integer", ir.QualifiedTypeString(lam.Params[0].Type))
}

func TestTable(t *testing.T) {
	tbl := NewTable([]ir.Import{
		{Path: "com.other.Flux"},
		{Path: flux},
		{Path: flowable + ".just", Static: true},
	})

	q, ok := tbl.Class("Flux")
	require.True(t, ok)
	assert.Equal(t, "com.other.Flux", q, "first import of a simple name wins")

	owner, ok := tbl.Static("just")
	require.True(t, ok)
	assert.Equal(t, flowable, owner)

	assert.Len(t, tbl.Imports(), 3)
	assert.Equal(t, "com.other.Flux", Resolve("Flux", tbl, classes))
	assert.Equal(t, "java.lang.Integer", Resolve("Integer", tbl, classes))
	assert.Equal(t, "Nope", Resolve("Nope", tbl, classes))
}

// introduced builds Owner.just(1) as a rewrite would produce it.
func introduced(owner string, policy ir.ImportPolicy) ir.Node {
	return &ir.Call{
		Fun:  &ir.Select{X: &ir.ClassRef{Name: owner, Introduced: true, Policy: policy}, Sel: "just"},
		Args: []ir.Node{&ir.Lit{Kind: ir.LitInt, Value: "1"}},
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		imports []ir.Import
		node    ir.Node
		want    string
		added   []ir.Import
	}{
		{
			name:  "default policy imports the class",
			node:  introduced(flux, ir.PolicyDefault),
			want:  "Flux.just(1)",
			added: []ir.Import{{Path: flux}},
		},
		{
			name:  "class directly imports the member",
			node:  introduced(flux, ir.PolicyClassDirectly),
			want:  "just(1)",
			added: []ir.Import{{Path: flux + ".just", Static: true}},
		},
		{
			name:    "existing import is reused",
			imports: []ir.Import{{Path: flux}},
			node:    introduced(flux, ir.PolicyDefault),
			want:    "Flux.just(1)",
		},
		{
			name:    "clashing simple name is qualified",
			imports: []ir.Import{{Path: "com.other.Flux"}},
			node:    introduced(flux, ir.PolicyDefault),
			want:    "reactor.core.publisher.Flux.just(1)",
		},
		{
			name:    "clashing static member falls back to the class",
			imports: []ir.Import{{Path: flowable + ".just", Static: true}},
			node:    introduced(flux, ir.PolicyClassDirectly),
			want:    "Flux.just(1)",
			added:   []ir.Import{{Path: flux}},
		},
		{
			name: "statically written template member keeps its static import",
			node: &ir.Call{
				Fun:  &ir.Select{X: &ir.ClassRef{Name: flux, Style: ir.RefStatic, Introduced: true}, Sel: "just"},
				Args: []ir.Node{&ir.Lit{Kind: ir.LitInt, Value: "1"}},
			},
			want:  "just(1)",
			added: []ir.Import{{Path: flux + ".just", Static: true}},
		},
		{
			name: "java.lang needs no import",
			node: introduced("java.lang.String", ir.PolicyDefault),
			want: "String.just(1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer(tt.imports)
			out := r.Render(tt.node)
			assert.Equal(t, tt.want, ir.Format(out))
			if tt.added == nil {
				assert.Empty(t, r.Added())
			} else {
				assert.Equal(t, tt.added, r.Added())
			}
		})
	}
}

func TestRender_DecisionsAreSticky(t *testing.T) {
	r := NewRenderer(nil)
	assert.Equal(t, "Flux.just(1)", ir.Format(r.Render(introduced(flux, ir.PolicyDefault))))
	assert.Equal(t, "com.other.Flux.just(1)", ir.Format(r.Render(introduced("com.other.Flux", ir.PolicyDefault))))
	assert.Equal(t, []ir.Import{{Path: flux}}, r.Added())
}

func TestBindRenderUnit_RoundTrip(t *testing.T) {
	srcs := []string{
		"Flowable.just(1)",
		"io.reactivex.Flowable.just(2)",
		"just(3)",
		"x -> String.valueOf(x)",
	}
	u := &ir.Unit{
		Name:    "U",
		Imports: []ir.Import{{Path: flowable}, {Path: flowable + ".just", Static: true}},
		Vars:    []ir.VarDecl{{Name: "s", Type: &ir.Named{Name: "Flowable", Args: []ir.Type{&ir.Named{Name: "Integer"}}}}},
	}
	for i, src := range srcs {
		u.Decls = append(u.Decls, ir.Decl{Name: string(rune('a' + i)), Body: parse(t, src)})
	}

	BindUnit(u, classes)
	assert.Equal(t, "io.reactivex.Flowable<java.lang.Integer>", ir.QualifiedTypeString(u.Vars[0].Type))
	_, ok := receiver(t, u.Decls[0].Body).(*ir.ClassRef)
	assert.True(t, ok)

	RenderUnit(u)
	for i, src := range srcs {
		assert.Equal(t, src, ir.Format(u.Decls[i].Body))
	}
	assert.Len(t, u.Imports, 2, "no imports added")
}
