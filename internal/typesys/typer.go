package typesys

import (
	"github.com/roach88/rxmigrate/internal/ir"
)

// Typer annotates bound units with inferred expression types. It stands in
// for the host type checker.
type Typer struct {
	u *Universe
}

// NewTyper creates a typer over u.
func NewTyper(u *Universe) *Typer {
	return &Typer{u: u}
}

// Annotate sets Meta.Typ on every node of every declaration.
func (t *Typer) Annotate(unit *ir.Unit) {
	env := make(map[string]ir.Type, len(unit.Vars))
	for _, v := range unit.Vars {
		env[v.Name] = v.Type
	}
	for _, d := range unit.Decls {
		t.TypeOf(d.Body, env)
	}
}

var (
	integerType   = &ir.Named{Name: "java.lang.Integer"}
	longType      = &ir.Named{Name: "java.lang.Long"}
	stringType    = &ir.Named{Name: "java.lang.String"}
	characterType = &ir.Named{Name: "java.lang.Character"}
	booleanType   = &ir.Named{Name: "java.lang.Boolean"}
)

// TypeOf infers and records the type of n and all of its descendants.
// env maps variable names in scope to their declared types.
func (t *Typer) TypeOf(n ir.Node, env map[string]ir.Type) ir.Type {
	typ := t.infer(n, env)
	if n != nil {
		n.Info().Typ = typ
	}
	return typ
}

func (t *Typer) infer(n ir.Node, env map[string]ir.Type) ir.Type {
	switch x := n.(type) {
	case nil:
		return nil
	case *ir.Ident:
		return env[x.Name]
	case *ir.Lit:
		switch x.Kind {
		case ir.LitInt:
			return integerType
		case ir.LitLong:
			return longType
		case ir.LitString:
			return stringType
		case ir.LitChar:
			return characterType
		case ir.LitBool:
			return booleanType
		}
		return nil
	case *ir.ClassRef:
		return nil
	case *ir.Select:
		t.TypeOf(x.X, env)
		return nil
	case *ir.Call:
		return t.call(x, env)
	case *ir.MethodRef:
		t.TypeOf(x.X, env)
		return nil
	case *ir.Lambda:
		inner := scoped(env)
		for _, p := range x.Params {
			inner[p.Name] = p.Type
		}
		t.TypeOf(x.Body, inner)
		return nil
	case *ir.New:
		for _, a := range x.Args {
			t.TypeOf(a, env)
		}
		if named, ok := x.Type.(*ir.Named); ok && x.Diamond {
			return &ir.Named{Name: named.Name}
		}
		return x.Type
	case *ir.Binary:
		l := t.TypeOf(x.X, env)
		r := t.TypeOf(x.Y, env)
		switch x.Op {
		case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
			return booleanType
		case "+":
			if ir.TypeEqual(l, stringType) || ir.TypeEqual(r, stringType) {
				return stringType
			}
		}
		if l == nil {
			return r
		}
		return l
	case *ir.Unary:
		xt := t.TypeOf(x.X, env)
		if x.Op == "!" {
			return booleanType
		}
		return xt
	case *ir.Block:
		inner := scoped(env)
		for _, s := range x.Stmts {
			t.TypeOf(s, inner)
			if l, ok := s.(*ir.Local); ok {
				inner[l.Name] = l.Type
			}
		}
		return nil
	}
	for _, k := range ir.Children(n) {
		t.TypeOf(k, env)
	}
	return nil
}

func scoped(env map[string]ir.Type) map[string]ir.Type {
	inner := make(map[string]ir.Type, len(env)+2)
	for k, v := range env {
		inner[k] = v
	}
	return inner
}

func (t *Typer) call(c *ir.Call, env map[string]ir.Type) ir.Type {
	args := make([]ir.Type, len(c.Args))
	for i, a := range c.Args {
		args[i] = t.TypeOf(a, env)
	}
	sel, ok := c.Fun.(*ir.Select)
	if !ok {
		t.TypeOf(c.Fun, env)
		return nil
	}
	sel.Info().Typ = nil
	site := callSite{args: c.Args, types: args, explicit: c.TypeArgs, env: env}
	if ref, ok := sel.X.(*ir.ClassRef); ok {
		return t.resolve(t.u.Methods(ref.Name, sel.Sel), true, Subst{}, nil, site)
	}
	recv, ok := t.TypeOf(sel.X, env).(*ir.Named)
	if !ok {
		return nil
	}
	for _, sup := range t.u.Supertypes(recv) {
		ms := t.u.Methods(sup.Name, sel.Sel)
		if len(ms) == 0 {
			continue
		}
		cls, _ := t.u.Class(sup.Name)
		var classSub Subst
		var classParams []string
		if cls != nil {
			classSub = classSubst(cls, sup)
			classParams = cls.Params
		}
		if r := t.resolve(ms, false, classSub, classParams, site); r != nil {
			return r
		}
	}
	return nil
}

// callSite is what overload resolution knows about the arguments of a call.
type callSite struct {
	args     []ir.Node
	types    []ir.Type
	explicit []ir.Type
	env      map[string]ir.Type
}

// resolve picks the first applicable overload and instantiates its return
// type. Lambda arguments are typed against their target once the other
// arguments have been inferred, and their bodies may resolve further type
// variables. Type variables that stay unresolved become unknown wildcards.
func (t *Typer) resolve(ms []*Method, static bool, classSub Subst, classParams []string, site callSite) ir.Type {
	n := len(site.types)
	for _, m := range ms {
		if m.Static != static || !arityFits(m, n) {
			continue
		}
		params := make([]ir.TypeParam, 0, len(m.TypeParams)+len(classParams))
		for _, p := range m.TypeParams {
			params = append(params, ir.TypeParam{Name: p})
		}
		for _, p := range classParams {
			if _, bound := classSub[p]; !bound {
				params = append(params, ir.TypeParam{Name: p})
			}
		}
		solver := t.u.NewSolver(params)
		sub := classSub.Clone()
		if sub == nil {
			sub = Subst{}
		}
		if len(site.explicit) == len(m.TypeParams) {
			for i, p := range m.TypeParams {
				sub[p] = site.explicit[i]
			}
		}
		applicable := true
		var lambdas []int
		for i, a := range site.types {
			if _, ok := site.args[i].(*ir.Lambda); ok {
				lambdas = append(lambdas, i)
				continue
			}
			if a == nil {
				continue
			}
			next, ok := solver.Assignable(a, paramAt(m, i, n), sub)
			if !ok {
				applicable = false
				break
			}
			sub = next
		}
		for _, i := range lambdas {
			if !applicable {
				break
			}
			sub, applicable = t.lambda(solver, site.args[i].(*ir.Lambda), paramAt(m, i, n), sub, site.env)
		}
		if !applicable {
			continue
		}
		ret := sub.Apply(m.Returns)
		if _, bare := ret.(*ir.TypeVar); bare {
			return nil
		}
		return unknownVars(ret)
	}
	return nil
}

// lambda types a lambda argument against the functional interface its
// parameter expects. Implicit parameters take the interface's parameter
// types, and the body's type is matched against its return type. A lambda
// whose arity differs from the interface method does not fit.
func (t *Typer) lambda(s *Solver, lam *ir.Lambda, param ir.Type, sub Subst, env map[string]ir.Type) (Subst, bool) {
	fn, ok := upperOf(sub.Apply(param)).(*ir.Named)
	if !ok {
		return sub, true
	}
	sam, ok := t.u.FunctionalMethod(fn.Name)
	if !ok {
		return sub, true
	}
	if len(sam.Params) != len(lam.Params) {
		return nil, false
	}
	var fnSub Subst
	if cls, ok := t.u.Class(fn.Name); ok {
		fnSub = classSubst(cls, fn)
	}

	inner := scoped(env)
	for i, p := range lam.Params {
		pt := p.Type
		if pt == nil {
			pt = parameterType(sub.Apply(substOnce(sam.Params[i], fnSub)))
		}
		inner[p.Name] = pt
	}
	t.TypeOf(lam.Body, inner)

	body := resultType(lam.Body)
	ret := substOnce(sam.Returns, fnSub)
	if body == nil || isVoid(ret) {
		return sub, true
	}
	if next, ok := s.Assignable(body, upperOf(ret), sub); ok {
		return next, true
	}
	return sub, true
}

// parameterType is the type an implicit lambda parameter gets from its
// declared counterpart: the bound of a wildcard, with unresolved variables
// unknown.
func parameterType(t ir.Type) ir.Type {
	if w, ok := t.(*ir.Wildcard); ok {
		if w.Kind != ir.WildExtends && w.Kind != ir.WildSuper {
			return nil
		}
		t = w.Bound
	}
	if _, bare := t.(*ir.TypeVar); bare {
		return nil
	}
	return unknownVars(t)
}

// resultType is the type a lambda body produces: the expression itself, or
// the first top-level return of a block.
func resultType(body ir.Node) ir.Type {
	if body == nil {
		return nil
	}
	b, ok := body.(*ir.Block)
	if !ok {
		return body.Info().Typ
	}
	for _, st := range b.Stmts {
		if r, ok := st.(*ir.Return); ok && r.X != nil {
			return r.X.Info().Typ
		}
	}
	return nil
}

// substOnce replaces class parameters without following chains: the
// arguments may mention method type variables of the same name.
func substOnce(t ir.Type, sub Subst) ir.Type {
	return ir.MapType(t, func(x ir.Type) ir.Type {
		if v, ok := x.(*ir.TypeVar); ok {
			return sub[v.Name]
		}
		return nil
	})
}

func isVoid(t ir.Type) bool {
	n, ok := t.(*ir.Named)
	return ok && n.Name == "java.lang.Void"
}

func unknownVars(t ir.Type) ir.Type {
	return ir.MapType(t, func(x ir.Type) ir.Type {
		if _, ok := x.(*ir.TypeVar); ok {
			return &ir.Wildcard{Kind: ir.WildUnknown}
		}
		return nil
	})
}

func arityFits(m *Method, n int) bool {
	if m.Varargs {
		return n >= len(m.Params)-1
	}
	return n == len(m.Params)
}

// paramAt returns the declared type for argument i, expanding varargs.
func paramAt(m *Method, i, n int) ir.Type {
	last := len(m.Params) - 1
	if m.Varargs && i >= last {
		if arr, ok := m.Params[last].(*ir.Array); ok {
			return arr.Elem
		}
	}
	return m.Params[i]
}
