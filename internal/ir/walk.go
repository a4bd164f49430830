package ir

import (
	"slices"
	"strconv"

	"github.com/hashicorp/go-set/v3"
)

// Children returns the direct child nodes of n in evaluation order.
func Children(n Node) []Node {
	switch x := n.(type) {
	case *Select:
		return []Node{x.X}
	case *Call:
		out := make([]Node, 0, 1+len(x.Args))
		out = append(out, x.Fun)
		return append(out, x.Args...)
	case *MethodRef:
		return []Node{x.X}
	case *Lambda:
		return []Node{x.Body}
	case *New:
		return slices.Clone(x.Args)
	case *Binary:
		return []Node{x.X, x.Y}
	case *Unary:
		return []Node{x.X}
	case *Block:
		return slices.Clone(x.Stmts)
	case *Return:
		if x.X == nil {
			return nil
		}
		return []Node{x.X}
	case *Throw:
		return []Node{x.X}
	case *Local:
		if x.Value == nil {
			return nil
		}
		return []Node{x.Value}
	case *ExprStmt:
		return []Node{x.X}
	}
	return nil
}

// WithChildren returns a shallow copy of n whose children are replaced by
// kids, which must line up with Children(n).
func WithChildren(n Node, kids []Node) Node {
	switch x := n.(type) {
	case *Ident:
		c := *x
		return &c
	case *Lit:
		c := *x
		return &c
	case *ClassRef:
		c := *x
		return &c
	case *Select:
		c := *x
		c.X = kids[0]
		return &c
	case *Call:
		c := *x
		c.Fun = kids[0]
		c.Args = slices.Clone(kids[1:])
		c.TypeArgs = slices.Clone(x.TypeArgs)
		return &c
	case *MethodRef:
		c := *x
		c.X = kids[0]
		return &c
	case *Lambda:
		c := *x
		c.Params = slices.Clone(x.Params)
		c.Body = kids[0]
		return &c
	case *New:
		c := *x
		c.Args = slices.Clone(kids)
		return &c
	case *Binary:
		c := *x
		c.X, c.Y = kids[0], kids[1]
		return &c
	case *Unary:
		c := *x
		c.X = kids[0]
		return &c
	case *Block:
		c := *x
		c.Stmts = slices.Clone(kids)
		return &c
	case *Return:
		c := *x
		if len(kids) > 0 {
			c.X = kids[0]
		}
		return &c
	case *Throw:
		c := *x
		c.X = kids[0]
		return &c
	case *Local:
		c := *x
		if len(kids) > 0 {
			c.Value = kids[0]
		}
		return &c
	case *ExprStmt:
		c := *x
		c.X = kids[0]
		return &c
	}
	panic("ir: unknown node type")
}

// Clone deep-copies a tree. Types are shared; they are never mutated.
func Clone(n Node) Node {
	if n == nil {
		return nil
	}
	kids := Children(n)
	for i, k := range kids {
		kids[i] = Clone(k)
	}
	return WithChildren(n, kids)
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of the visited node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, k := range Children(n) {
		Walk(k, fn)
	}
}

// At returns the node reached by following child indices from root.
func At(root Node, path []int) Node {
	n := root
	for _, i := range path {
		n = Children(n)[i]
	}
	return n
}

// ReplaceAt returns a copy of root in which the node at path is repl.
// Only the nodes along the path are copied.
func ReplaceAt(root Node, path []int, repl Node) Node {
	if len(path) == 0 {
		return repl
	}
	kids := Children(root)
	kids[path[0]] = ReplaceAt(kids[path[0]], path[1:], repl)
	return WithChildren(root, kids)
}

// Equal reports structural equality, ignoring spans, inferred types and
// the recorded style of class references.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !sameLabel(a, b) {
		return false
	}
	ka, kb := Children(a), Children(b)
	if len(ka) != len(kb) {
		return false
	}
	for i := range ka {
		if !Equal(ka[i], kb[i]) {
			return false
		}
	}
	return true
}

func sameLabel(a, b Node) bool {
	switch x := a.(type) {
	case *Ident:
		y, ok := b.(*Ident)
		return ok && x.Name == y.Name
	case *Select:
		y, ok := b.(*Select)
		return ok && x.Sel == y.Sel
	case *Call:
		y, ok := b.(*Call)
		if !ok || len(x.TypeArgs) != len(y.TypeArgs) {
			return false
		}
		for i := range x.TypeArgs {
			if !TypeEqual(x.TypeArgs[i], y.TypeArgs[i]) {
				return false
			}
		}
		return true
	case *MethodRef:
		y, ok := b.(*MethodRef)
		return ok && x.Name == y.Name
	case *Lambda:
		y, ok := b.(*Lambda)
		if !ok || len(x.Params) != len(y.Params) {
			return false
		}
		for i := range x.Params {
			if x.Params[i].Name != y.Params[i].Name || !TypeEqual(x.Params[i].Type, y.Params[i].Type) {
				return false
			}
		}
		return true
	case *New:
		y, ok := b.(*New)
		return ok && x.Diamond == y.Diamond && TypeEqual(x.Type, y.Type)
	case *Lit:
		y, ok := b.(*Lit)
		return ok && x.Kind == y.Kind && x.Value == y.Value
	case *Binary:
		y, ok := b.(*Binary)
		return ok && x.Op == y.Op
	case *Unary:
		y, ok := b.(*Unary)
		return ok && x.Op == y.Op
	case *Block:
		_, ok := b.(*Block)
		return ok
	case *Return:
		y, ok := b.(*Return)
		return ok && (x.X == nil) == (y.X == nil)
	case *Throw:
		_, ok := b.(*Throw)
		return ok
	case *Local:
		y, ok := b.(*Local)
		return ok && x.Name == y.Name && TypeEqual(x.Type, y.Type) && (x.Value == nil) == (y.Value == nil)
	case *ExprStmt:
		_, ok := b.(*ExprStmt)
		return ok
	case *ClassRef:
		y, ok := b.(*ClassRef)
		return ok && x.Name == y.Name
	}
	return false
}

// FreeNames returns the identifiers referenced by n that are not bound by a
// lambda parameter or local declaration inside n.
func FreeNames(n Node) *set.Set[string] {
	out := set.New[string](8)
	collectFree(n, set.New[string](0), out)
	return out
}

func collectFree(n Node, bound, out *set.Set[string]) {
	switch x := n.(type) {
	case nil:
		return
	case *Ident:
		if !bound.Contains(x.Name) {
			out.Insert(x.Name)
		}
		return
	case *Lambda:
		inner := bound.Copy()
		for _, p := range x.Params {
			inner.Insert(p.Name)
		}
		collectFree(x.Body, inner, out)
		return
	case *Block:
		inner := bound.Copy()
		for _, s := range x.Stmts {
			collectFree(s, inner, out)
			if l, ok := s.(*Local); ok {
				inner.Insert(l.Name)
			}
		}
		return
	}
	for _, k := range Children(n) {
		collectFree(k, bound, out)
	}
}

// BoundNames returns the names declared anywhere inside n by lambda
// parameters and local declarations. Java forbids redeclaring any of them
// in a scope that encloses n.
func BoundNames(n Node) *set.Set[string] {
	out := set.New[string](4)
	Walk(n, func(x Node) bool {
		switch x := x.(type) {
		case *Lambda:
			for _, p := range x.Params {
				out.Insert(p.Name)
			}
		case *Local:
			out.Insert(x.Name)
		}
		return true
	})
	return out
}

// References reports whether name occurs free in n.
func References(n Node, name string) bool {
	return FreeNames(n).Contains(name)
}

// Substitute replaces free occurrences of the identifiers in repl with
// clones of the mapped trees. Binders inside n that would capture a free
// name of a replacement are renamed.
func Substitute(n Node, repl map[string]Node) Node {
	if len(repl) == 0 {
		return Clone(n)
	}
	return substitute(n, repl)
}

func substitute(n Node, repl map[string]Node) Node {
	switch x := n.(type) {
	case nil:
		return nil
	case *Ident:
		if r, ok := repl[x.Name]; ok {
			return Clone(r)
		}
		c := *x
		return &c
	case *Lambda:
		inner := shadow(repl, lambdaNames(x))
		if len(inner) == 0 {
			return Clone(x)
		}
		free := replacementNames(inner, x.Body)
		out := &Lambda{Meta: x.Meta, Params: slices.Clone(x.Params)}
		for i, p := range out.Params {
			if !free.Contains(p.Name) {
				continue
			}
			fresh := FreshName(p.Name, func(s string) bool {
				return free.Contains(s) || References(x.Body, s) || slices.ContainsFunc(out.Params, func(q Param) bool { return q.Name == s })
			})
			inner[p.Name] = &Ident{Name: fresh}
			out.Params[i].Name = fresh
		}
		out.Body = substitute(x.Body, inner)
		return out
	case *Block:
		inner := repl
		stmts := make([]Node, 0, len(x.Stmts))
		for _, s := range x.Stmts {
			l, ok := s.(*Local)
			if !ok {
				stmts = append(stmts, substitute(s, inner))
				continue
			}
			nl := &Local{Meta: l.Meta, Type: l.Type, Name: l.Name, Value: substitute(l.Value, inner)}
			inner = shadow(inner, []string{l.Name})
			if free := replacementNames(inner, x); free.Contains(l.Name) {
				fresh := FreshName(l.Name, func(s string) bool { return free.Contains(s) || References(x, s) })
				inner[l.Name] = &Ident{Name: fresh}
				nl.Name = fresh
			}
			stmts = append(stmts, nl)
		}
		return &Block{Meta: x.Meta, Stmts: stmts}
	}
	kids := Children(n)
	for i, k := range kids {
		kids[i] = substitute(k, repl)
	}
	return WithChildren(n, kids)
}

func lambdaNames(l *Lambda) []string {
	names := make([]string, len(l.Params))
	for i, p := range l.Params {
		names[i] = p.Name
	}
	return names
}

// shadow drops names bound by an inner binder from a replacement map.
func shadow(repl map[string]Node, names []string) map[string]Node {
	out := make(map[string]Node, len(repl))
	for k, v := range repl {
		if !slices.Contains(names, k) {
			out[k] = v
		}
	}
	return out
}

// replacementNames collects the free and bound names of the replacements
// that will actually be inserted somewhere in body. An enclosing binder
// must avoid both.
func replacementNames(repl map[string]Node, body Node) *set.Set[string] {
	names := set.New[string](4)
	used := FreeNames(body)
	for k, v := range repl {
		if used.Contains(k) {
			names.InsertSet(FreeNames(v))
			names.InsertSet(BoundNames(v))
		}
	}
	return names
}

// FreshName derives a name from base that taken does not reject.
func FreshName(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for i := 1; ; i++ {
		cand := base + strconv.Itoa(i)
		if !taken(cand) {
			return cand
		}
	}
}
