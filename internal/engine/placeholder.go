package engine

import (
	"fmt"

	"github.com/hashicorp/go-set/v3"

	"github.com/roach88/rxmigrate/internal/ir"
	"github.com/roach88/rxmigrate/internal/typesys"
)

// Closure is a captured sub-expression abstracted over its formal
// parameters.
type Closure struct {
	Params []string
	Body   ir.Node
}

// Invoke instantiates the body with args in place of the parameters.
// Binders in the body are renamed where they would capture a free name of
// an argument.
func (c *Closure) Invoke(args ...ir.Node) ir.Node {
	if len(args) != len(c.Params) {
		panic(fmt.Sprintf("engine: closure takes %d arguments, got %d", len(c.Params), len(args)))
	}
	repl := make(map[string]ir.Node, len(args))
	for i, p := range c.Params {
		if id, ok := args[i].(*ir.Ident); ok && id.Name == p {
			continue
		}
		repl[p] = args[i]
	}
	return ir.Substitute(c.Body, repl)
}

// sameAs reports whether two closures denote the same function.
func (c *Closure) sameAs(o *Closure) bool {
	if len(c.Params) != len(o.Params) {
		return false
	}
	taken := ir.FreeNames(c.Body)
	taken.InsertSet(ir.FreeNames(o.Body))
	args := make([]ir.Node, len(c.Params))
	for i := range args {
		name := ir.FreshName(fmt.Sprintf("arg%d", i), taken.Contains)
		taken.Insert(name)
		args[i] = &ir.Ident{Name: name}
	}
	return ir.Equal(c.Invoke(args...), o.Invoke(args...))
}

// capture abstracts the candidate body of a placeholder invocation. args
// are the pattern's arguments to the placeholder.
func (m *matcher) capture(ph ir.Placeholder, args []ir.Node, body ir.Node) bool {
	cl := &Closure{Body: body}
	abstracted := set.New[string](len(args))
	for i, a := range args {
		id := a.(*ir.Ident)
		if local, ok := m.locals[id.Name]; ok {
			cl.Params = append(cl.Params, local)
			abstracted.Insert(local)
			continue
		}
		bound, ok := m.b.Values[id.Name]
		if !ok {
			// The variable must be bound before the placeholder.
			return false
		}
		name := ir.FreshName(ph.Params[i].Name, ir.FreeNames(cl.Body).Contains)
		cl.Body = replaceEqual(cl.Body, bound, &ir.Ident{Name: name})
		cl.Params = append(cl.Params, name)
		abstracted.Insert(name)
	}

	free := ir.FreeNames(cl.Body)
	for i, p := range cl.Params {
		if !ph.Params[i].MayUse && !free.Contains(p) {
			return false
		}
	}
	for _, name := range m.owned.Slice() {
		if !abstracted.Contains(name) && free.Contains(name) {
			return false
		}
	}
	if !m.placeholderTypeFits(ph, body.Info().Typ) {
		return false
	}
	return m.bindClosure(ph.Name, cl)
}

// etaCapture matches `(params) -> ph(params)` against a function value
// that is not a lambda: a method reference or any expression of a type
// providing the placeholder's method.
func (m *matcher) etaCapture(ph ir.Placeholder, params []ir.Param, cand ir.Node) bool {
	if m.references(cand) {
		return false
	}
	var ret ir.Type
	switch x := cand.(type) {
	case *ir.MethodRef:
	case *ir.Lambda:
		return false
	default:
		t, ok := x.Info().Typ.(*ir.Named)
		if !ok {
			return false
		}
		r, ok := m.e.methodReturn(t, ph.Method, len(params))
		if !ok {
			return false
		}
		ret = r
	}
	if ret != nil && !m.placeholderTypeFits(ph, ret) {
		return false
	}

	taken := ir.FreeNames(cand)
	cl := &Closure{}
	formals := make([]ir.Node, len(params))
	for i, p := range params {
		name := ir.FreshName(p.Name, taken.Contains)
		taken.Insert(name)
		cl.Params = append(cl.Params, name)
		formals[i] = &ir.Ident{Name: name}
		m.b.Locals[p.Name] = name
	}
	cl.Body = m.e.expand(cand, ph.Method, formals)
	return m.bindClosure(ph.Name, cl)
}

func (m *matcher) bindClosure(name string, cl *Closure) bool {
	if prev, ok := m.b.Closures[name]; ok {
		return prev.sameAs(cl)
	}
	m.b.Closures[name] = cl
	return true
}

// placeholderTypeFits checks the captured body against the placeholder's
// declared return type. A body the annotator could not type is accepted.
func (m *matcher) placeholderTypeFits(ph ir.Placeholder, t ir.Type) bool {
	if ph.Returns == nil || t == nil {
		return true
	}
	next, ok := m.solver.Assignable(t, ph.Returns, m.b.Types)
	if !ok {
		m.mismatch(ph.Name, ir.Bound{Kind: ir.BoundExtends, Type: ph.Returns}, t)
		return false
	}
	m.b.Types = next
	return true
}

// expand builds the body of an eta-expanded function value applied to
// formals.
func (e *Engine) expand(fn ir.Node, method string, formals []ir.Node) ir.Node {
	ref, ok := fn.(*ir.MethodRef)
	if !ok {
		return &ir.Call{Fun: &ir.Select{X: ir.Clone(fn), Sel: method}, Args: formals}
	}
	cls, isClass := ref.X.(*ir.ClassRef)
	switch {
	case ref.Name == "new" && isClass:
		return &ir.New{Type: &ir.Named{Name: cls.Name}, Diamond: true, Args: formals}
	case isClass && len(formals) > 0 && e.unboundReceiver(cls.Name, ref.Name, len(formals)):
		return &ir.Call{Fun: &ir.Select{X: formals[0], Sel: ref.Name}, Args: formals[1:]}
	}
	return &ir.Call{Fun: &ir.Select{X: ir.Clone(ref.X), Sel: ref.Name}, Args: formals}
}

// unboundReceiver reports whether Class::m applied to n arguments calls an
// instance method on the first one.
func (e *Engine) unboundReceiver(class, method string, n int) bool {
	for _, m := range e.universe.Methods(class, method) {
		if m.Static && (len(m.Params) == n || m.Varargs) {
			return false
		}
	}
	for _, m := range e.universe.Methods(class, method) {
		if !m.Static && len(m.Params) == n-1 {
			return true
		}
	}
	return false
}

// methodReturn finds the return type of method on t, instantiated for t's
// type arguments.
func (e *Engine) methodReturn(t *ir.Named, method string, arity int) (ir.Type, bool) {
	for _, sup := range e.universe.Supertypes(t) {
		for _, m := range e.universe.Methods(sup.Name, method) {
			if m.Static || len(m.Params) != arity {
				continue
			}
			cls, ok := e.universe.Class(sup.Name)
			if !ok || len(sup.Args) != len(cls.Params) {
				return nil, true
			}
			sub := typesys.Subst{}
			for i, p := range cls.Params {
				sub[p] = sup.Args[i]
			}
			ret := sub.Apply(m.Returns)
			if len(ir.TypeVars(ret)) > 0 {
				return nil, true
			}
			return ret, true
		}
	}
	return nil, false
}

// replaceEqual replaces every subtree of n structurally equal to target.
func replaceEqual(n, target, repl ir.Node) ir.Node {
	if ir.Equal(n, target) {
		return ir.Clone(repl)
	}
	kids := ir.Children(n)
	if len(kids) == 0 {
		return n
	}
	for i, k := range kids {
		kids[i] = replaceEqual(k, target, repl)
	}
	return ir.WithChildren(n, kids)
}
