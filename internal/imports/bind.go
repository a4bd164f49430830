package imports

import (
	"strings"

	"github.com/hashicorp/go-set/v3"

	"github.com/roach88/rxmigrate/internal/ir"
)

// Binder canonicalizes class references in source trees.
type Binder struct {
	idx   ClassIndex
	table *Table
	// TypeVars are names resolved as type variables inside types.
	TypeVars map[string]bool
}

// NewBinder creates a binder for trees written against imps.
func NewBinder(idx ClassIndex, imps []ir.Import) *Binder {
	return &Binder{idx: idx, table: NewTable(imps)}
}

// Table returns the binder's import table.
func (b *Binder) Table() *Table { return b.table }

// Bind returns a copy of n in which every name that denotes a class, and
// every call of a statically imported member, refers to a ClassRef. Names in
// scope (variables, lambda parameters, pattern variables) shadow classes.
func (b *Binder) Bind(n ir.Node, scope []string) ir.Node {
	return b.bind(n, set.From(scope))
}

func (b *Binder) bind(n ir.Node, scope *set.Set[string]) ir.Node {
	switch x := n.(type) {
	case nil:
		return nil
	case *ir.Ident:
		if scope.Contains(x.Name) {
			break
		}
		if q, ok := b.lookupSimple(x.Name); ok {
			return &ir.ClassRef{Meta: x.Meta, Name: q, Style: ir.RefSimple}
		}
	case *ir.Select:
		if ref := b.qualifiedChain(x, scope); ref != nil {
			return ref
		}
	case *ir.Call:
		if id, ok := x.Fun.(*ir.Ident); ok && !scope.Contains(id.Name) {
			if owner, ok := b.table.Static(id.Name); ok {
				out := &ir.Call{Meta: x.Meta, TypeArgs: b.types(x.TypeArgs)}
				out.Fun = &ir.Select{
					Meta: id.Meta,
					X:    &ir.ClassRef{Meta: id.Meta, Name: owner, Style: ir.RefStatic},
					Sel:  id.Name,
				}
				for _, a := range x.Args {
					out.Args = append(out.Args, b.bind(a, scope))
				}
				return out
			}
		}
		out := ir.WithChildren(x, b.children(x, scope)).(*ir.Call)
		out.TypeArgs = b.types(x.TypeArgs)
		return out
	case *ir.Lambda:
		inner := scope.Copy()
		params := make([]ir.Param, len(x.Params))
		for i, p := range x.Params {
			inner.Insert(p.Name)
			params[i] = ir.Param{Name: p.Name, Type: b.typ(p.Type)}
		}
		return &ir.Lambda{Meta: x.Meta, Params: params, Body: b.bind(x.Body, inner)}
	case *ir.Block:
		inner := scope.Copy()
		out := &ir.Block{Meta: x.Meta}
		for _, s := range x.Stmts {
			out.Stmts = append(out.Stmts, b.bind(s, inner))
			if l, ok := s.(*ir.Local); ok {
				inner.Insert(l.Name)
			}
		}
		return out
	case *ir.Local:
		out := ir.WithChildren(x, b.children(x, scope)).(*ir.Local)
		out.Type = b.typ(x.Type)
		return out
	case *ir.New:
		out := ir.WithChildren(x, b.children(x, scope)).(*ir.New)
		out.Type = b.typ(x.Type)
		return out
	}
	return ir.WithChildren(n, b.children(n, scope))
}

func (b *Binder) children(n ir.Node, scope *set.Set[string]) []ir.Node {
	kids := ir.Children(n)
	for i, k := range kids {
		kids[i] = b.bind(k, scope)
	}
	return kids
}

func (b *Binder) lookupSimple(name string) (string, bool) {
	if q, ok := b.table.Class(name); ok {
		return q, true
	}
	if b.idx.IsClass("java.lang." + name) {
		return "java.lang." + name, true
	}
	return "", false
}

// qualifiedChain recognizes a.b.C.member chains whose prefix names a class.
func (b *Binder) qualifiedChain(sel *ir.Select, scope *set.Set[string]) ir.Node {
	var segs []string
	var metas []ir.Meta
	var cur ir.Node = sel
	for {
		switch x := cur.(type) {
		case *ir.Select:
			segs = append(segs, x.Sel)
			metas = append(metas, x.Meta)
			cur = x.X
			continue
		case *ir.Ident:
			segs = append(segs, x.Name)
			metas = append(metas, x.Meta)
		default:
			return nil
		}
		break
	}
	if len(segs) < 2 || scope.Contains(segs[len(segs)-1]) {
		return nil
	}
	// segs is innermost-last; reverse into source order.
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
		metas[i], metas[j] = metas[j], metas[i]
	}
	for k := len(segs); k >= 2; k-- {
		name := strings.Join(segs[:k], ".")
		if !b.idx.IsClass(name) {
			continue
		}
		var out ir.Node = &ir.ClassRef{Meta: metas[k-1], Name: name, Style: ir.RefQualified}
		for i := k; i < len(segs); i++ {
			out = &ir.Select{Meta: metas[i], X: out, Sel: segs[i]}
		}
		return out
	}
	return nil
}

func (b *Binder) typ(t ir.Type) ir.Type {
	if t == nil {
		return nil
	}
	return ResolveType(t, b.table, b.idx, b.TypeVars)
}

func (b *Binder) types(ts []ir.Type) []ir.Type {
	if ts == nil {
		return nil
	}
	out := make([]ir.Type, len(ts))
	for i, t := range ts {
		out[i] = b.typ(t)
	}
	return out
}
