package engine

import (
	"maps"
	"slices"

	"github.com/hashicorp/go-set/v3"

	"github.com/roach88/rxmigrate/internal/ir"
	"github.com/roach88/rxmigrate/internal/typesys"
)

// matcher unifies one before alternative with one candidate tree. A matcher
// is used for a single attempt and discarded on failure.
type matcher struct {
	e      *Engine
	rule   *ir.Rule
	solver *typesys.Solver
	b      *Bindings

	// locals maps pattern binders in scope to the candidate's names.
	locals map[string]string
	// owned holds every candidate name bound by a pattern binder.
	owned *set.Set[string]

	pending    []pendingCapture
	mismatches []*TypeMismatchError
}

// pendingCapture is a placeholder invocation whose capture waits until the
// variables it is applied to are bound.
type pendingCapture struct {
	ph     ir.Placeholder
	args   []ir.Node
	cand   ir.Node
	locals map[string]string
}

func newMatcher(e *Engine, cr *compiledRule) *matcher {
	return &matcher{
		e:      e,
		rule:   cr.rule,
		solver: cr.solver,
		b:      newBindings(),
		locals: map[string]string{},
		owned:  set.New[string](4),
	}
}

// tryRule attempts the alternatives of a rule in declaration order and
// returns the first that matches. Bound failures of the rejected attempts
// are returned for logging.
func (e *Engine) tryRule(cr *compiledRule, cand ir.Node) (int, *Bindings, []*TypeMismatchError) {
	var mismatches []*TypeMismatchError
	for i, alt := range cr.rule.Before {
		m := newMatcher(e, cr)
		if m.match(alt, cand) && m.flush() {
			if sub, ok := m.solver.CheckBounds(m.b.Types); ok {
				m.b.Types = sub
				return i, m.b, nil
			}
		}
		mismatches = append(mismatches, m.mismatches...)
	}
	return -1, nil, mismatches
}

// flush performs the deferred placeholder captures.
func (m *matcher) flush() bool {
	for _, pc := range m.pending {
		m.locals = pc.locals
		if !m.capture(pc.ph, pc.args, pc.cand) {
			return false
		}
	}
	m.pending = nil
	return true
}

func (m *matcher) mismatch(name string, want ir.Bound, got ir.Type) {
	m.mismatches = append(m.mismatches, &TypeMismatchError{RuleID: m.rule.ID, Var: name, Want: want, Got: got})
}

func (m *matcher) match(p, c ir.Node) bool {
	switch x := p.(type) {
	case *ir.Ident:
		return m.matchIdent(x, c)
	case *ir.ClassRef:
		y, ok := c.(*ir.ClassRef)
		return ok && y.Name == x.Name
	case *ir.Lit:
		y, ok := c.(*ir.Lit)
		return ok && y.Kind == x.Kind && y.Value == x.Value
	case *ir.Select:
		y, ok := c.(*ir.Select)
		return ok && y.Sel == x.Sel && m.match(x.X, y.X)
	case *ir.Call:
		if id, ok := x.Fun.(*ir.Ident); ok {
			if ph, ok := m.rule.Placeholder(id.Name); ok {
				m.pending = append(m.pending, pendingCapture{ph: ph, args: x.Args, cand: c, locals: maps.Clone(m.locals)})
				return true
			}
		}
		y, ok := c.(*ir.Call)
		if !ok || !m.match(x.Fun, y.Fun) {
			return false
		}
		if len(x.TypeArgs) > 0 && !m.matchTypes(x.TypeArgs, y.TypeArgs) {
			return false
		}
		return m.matchArgs(x.Args, y.Args)
	case *ir.MethodRef:
		y, ok := c.(*ir.MethodRef)
		return ok && y.Name == x.Name && m.match(x.X, y.X)
	case *ir.Lambda:
		return m.matchLambda(x, c)
	case *ir.New:
		y, ok := c.(*ir.New)
		if !ok || !m.matchNewType(x, y) {
			return false
		}
		return m.matchArgs(x.Args, y.Args)
	case *ir.Binary:
		y, ok := c.(*ir.Binary)
		return ok && y.Op == x.Op && m.match(x.X, y.X) && m.match(x.Y, y.Y)
	case *ir.Unary:
		y, ok := c.(*ir.Unary)
		return ok && y.Op == x.Op && m.match(x.X, y.X)
	case *ir.Block:
		y, ok := c.(*ir.Block)
		if !ok || len(x.Stmts) != len(y.Stmts) {
			return false
		}
		saved := m.locals
		m.locals = maps.Clone(saved)
		defer func() { m.locals = saved }()
		for i := range x.Stmts {
			if !m.match(x.Stmts[i], y.Stmts[i]) {
				return false
			}
		}
		return true
	case *ir.Local:
		y, ok := c.(*ir.Local)
		if !ok || (x.Value == nil) != (y.Value == nil) {
			return false
		}
		if x.Type != nil && (y.Type == nil || !m.unifyType(x.Type, y.Type)) {
			return false
		}
		if x.Value != nil && !m.match(x.Value, y.Value) {
			return false
		}
		m.bindLocal(x.Name, y.Name)
		return true
	case *ir.Return:
		y, ok := c.(*ir.Return)
		if !ok || (x.X == nil) != (y.X == nil) {
			return false
		}
		return x.X == nil || m.match(x.X, y.X)
	case *ir.Throw:
		y, ok := c.(*ir.Throw)
		return ok && m.match(x.X, y.X)
	case *ir.ExprStmt:
		y, ok := c.(*ir.ExprStmt)
		return ok && m.match(x.X, y.X)
	}
	return false
}

func (m *matcher) matchIdent(x *ir.Ident, c ir.Node) bool {
	if local, ok := m.locals[x.Name]; ok {
		y, ok := c.(*ir.Ident)
		return ok && y.Name == local
	}
	v, ok := m.rule.Var(x.Name)
	if !ok {
		y, ok := c.(*ir.Ident)
		return ok && y.Name == x.Name
	}
	if v.Multiplicity == ir.Repeated {
		return false
	}
	if prev, ok := m.b.Values[v.Name]; ok {
		return ir.Equal(prev, c)
	}
	if !m.checkBound(v.Name, v.Bound, c) {
		return false
	}
	m.b.Values[v.Name] = c
	return true
}

// matchArgs pairs arguments. A trailing repeated variable takes every
// remaining candidate argument, possibly none.
func (m *matcher) matchArgs(ps, cs []ir.Node) bool {
	if rep := m.rule.Repeated; rep != nil && len(ps) > 0 {
		if id, ok := ps[len(ps)-1].(*ir.Ident); ok && id.Name == rep.Name {
			fixed := len(ps) - 1
			if len(cs) < fixed {
				return false
			}
			for i := 0; i < fixed; i++ {
				if !m.match(ps[i], cs[i]) {
					return false
				}
			}
			rest := cs[fixed:]
			for _, c := range rest {
				if !m.checkBound(rep.Name, rep.Bound, c) {
					return false
				}
			}
			m.b.Sequences[rep.Name] = slices.Clone(rest)
			return true
		}
	}
	if len(ps) != len(cs) {
		return false
	}
	for i := range ps {
		if !m.match(ps[i], cs[i]) {
			return false
		}
	}
	return true
}

func (m *matcher) matchLambda(x *ir.Lambda, c ir.Node) bool {
	y, ok := c.(*ir.Lambda)
	if !ok {
		if ph, ok := m.etaPattern(x); ok {
			return m.etaCapture(ph, x.Params, c)
		}
		return false
	}
	if len(x.Params) != len(y.Params) {
		return false
	}
	saved := m.locals
	m.locals = maps.Clone(saved)
	defer func() { m.locals = saved }()
	for i, p := range x.Params {
		q := y.Params[i]
		if p.Type != nil && (q.Type == nil || !m.unifyType(p.Type, q.Type)) {
			return false
		}
		m.bindLocal(p.Name, q.Name)
	}
	return m.match(x.Body, y.Body)
}

// etaPattern recognizes `(a, b) -> ph(a, b)`.
func (m *matcher) etaPattern(x *ir.Lambda) (ir.Placeholder, bool) {
	call, ok := x.Body.(*ir.Call)
	if !ok || len(call.Args) != len(x.Params) {
		return ir.Placeholder{}, false
	}
	id, ok := call.Fun.(*ir.Ident)
	if !ok {
		return ir.Placeholder{}, false
	}
	ph, ok := m.rule.Placeholder(id.Name)
	if !ok {
		return ir.Placeholder{}, false
	}
	for i, a := range call.Args {
		arg, ok := a.(*ir.Ident)
		if !ok || arg.Name != x.Params[i].Name {
			return ir.Placeholder{}, false
		}
	}
	return ph, true
}

func (m *matcher) bindLocal(pattern, cand string) {
	m.locals[pattern] = cand
	m.owned.Insert(cand)
	if _, ok := m.b.Locals[pattern]; !ok {
		m.b.Locals[pattern] = cand
	}
}

// references reports whether c mentions a candidate name the pattern binds.
func (m *matcher) references(c ir.Node) bool {
	if m.owned.Empty() {
		return false
	}
	for _, name := range ir.FreeNames(c).Slice() {
		if m.owned.Contains(name) {
			return true
		}
	}
	return false
}

// checkBound tests a candidate subtree against a variable bound. Lambdas and
// method references have no standalone type and fit any class bound.
func (m *matcher) checkBound(name string, b ir.Bound, c ir.Node) bool {
	if m.references(c) {
		return false
	}
	if b.Kind == ir.BoundAny {
		return true
	}
	switch c.(type) {
	case *ir.Lambda, *ir.MethodRef:
		_, ok := b.Type.(*ir.Named)
		return ok
	}
	t := c.Info().Typ
	if t == nil {
		if m.unconstrained(b) {
			return true
		}
		m.mismatch(name, b, nil)
		return false
	}
	next, ok := m.solver.Satisfies(t, b, m.b.Types)
	if !ok {
		m.mismatch(name, b, t)
		return false
	}
	m.b.Types = next
	return true
}

// unconstrained reports whether b is a bare type parameter without an upper
// bound, which any expression satisfies.
func (m *matcher) unconstrained(b ir.Bound) bool {
	if b.Kind != ir.BoundExact && b.Kind != ir.BoundExtends {
		return false
	}
	v, ok := b.Type.(*ir.TypeVar)
	if !ok {
		return false
	}
	tp, ok := m.rule.TypeParam(v.Name)
	if !ok {
		return false
	}
	if tp.Upper == nil {
		return true
	}
	n, ok := tp.Upper.(*ir.Named)
	return ok && n.Name == typesys.ObjectName
}

func (m *matcher) unifyType(p, c ir.Type) bool {
	next, ok := m.solver.Unify(p, c, m.b.Types)
	if !ok {
		return false
	}
	m.b.Types = next
	return true
}

func (m *matcher) matchTypes(ps, cs []ir.Type) bool {
	if len(ps) != len(cs) {
		return false
	}
	for i := range ps {
		if !m.unifyType(ps[i], cs[i]) {
			return false
		}
	}
	return true
}

func (m *matcher) matchNewType(x, y *ir.New) bool {
	xn, xok := x.Type.(*ir.Named)
	yn, yok := y.Type.(*ir.Named)
	if !xok || !yok {
		return ir.TypeEqual(x.Type, y.Type)
	}
	if xn.Name != yn.Name {
		return false
	}
	if x.Diamond || y.Diamond || len(xn.Args) == 0 {
		return true
	}
	return m.unifyType(x.Type, y.Type)
}
