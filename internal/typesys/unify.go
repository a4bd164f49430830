package typesys

import (
	"maps"
	"slices"

	"github.com/roach88/rxmigrate/internal/ir"
)

// Subst maps type variable names to types.
type Subst map[string]ir.Type

// Clone copies the substitution.
func (s Subst) Clone() Subst {
	return maps.Clone(s)
}

// Apply replaces bound type variables in t, following chains.
func (s Subst) Apply(t ir.Type) ir.Type {
	return s.apply(t, 0)
}

func (s Subst) apply(t ir.Type, depth int) ir.Type {
	if depth > 32 {
		return t
	}
	return ir.MapType(t, func(x ir.Type) ir.Type {
		if v, ok := x.(*ir.TypeVar); ok {
			if b, ok := s[v.Name]; ok {
				return s.apply(b, depth+1)
			}
		}
		return nil
	})
}

// Solver checks bounds and assignability while inferring the free type
// variables it was created with. Variables not in the free set are rigid.
//
// Every method takes a substitution and returns an extended copy on
// success; the argument is never modified, so a failed attempt leaves the
// caller's state untouched.
type Solver struct {
	u    *Universe
	free map[string]ir.Type // name -> upper bound, nil when unbounded
}

// NewSolver creates a solver with the given free type parameters.
func (u *Universe) NewSolver(params []ir.TypeParam) *Solver {
	free := make(map[string]ir.Type, len(params))
	for _, p := range params {
		free[p.Name] = p.Upper
	}
	return &Solver{u: u, free: free}
}

// Satisfies checks t against a pattern variable bound. A nil t (unknown
// type) satisfies only BoundAny.
func (s *Solver) Satisfies(t ir.Type, b ir.Bound, sub Subst) (Subst, bool) {
	if b.Kind == ir.BoundAny {
		return sub, true
	}
	if t == nil {
		return nil, false
	}
	next := sub.Clone()
	if next == nil {
		next = Subst{}
	}
	var ok bool
	switch b.Kind {
	case ir.BoundExact, ir.BoundExtends:
		ok = s.assignable(t, b.Type, next)
	case ir.BoundSuper:
		ok = s.assignable(b.Type, t, next)
	}
	if !ok {
		return nil, false
	}
	return next, true
}

// Assignable reports whether a value of type src fits where dst is expected.
func (s *Solver) Assignable(src, dst ir.Type, sub Subst) (Subst, bool) {
	next := sub.Clone()
	if next == nil {
		next = Subst{}
	}
	if !s.assignable(src, dst, next) {
		return nil, false
	}
	return next, true
}

// Unify makes a and b equal.
func (s *Solver) Unify(a, b ir.Type, sub Subst) (Subst, bool) {
	next := sub.Clone()
	if next == nil {
		next = Subst{}
	}
	if !s.unify(a, b, next) {
		return nil, false
	}
	return next, true
}

// resolve follows bindings of free variables at the top level of t. It
// returns the name of the unbound free variable t ends at, if any.
func (s *Solver) resolve(t ir.Type, sub Subst) (ir.Type, string) {
	for i := 0; i < 32; i++ {
		v, ok := t.(*ir.TypeVar)
		if !ok {
			return t, ""
		}
		if _, free := s.free[v.Name]; !free {
			return t, ""
		}
		b, bound := sub[v.Name]
		if !bound {
			return t, v.Name
		}
		t = b
	}
	return t, ""
}

func (s *Solver) bind(name string, t ir.Type, sub Subst) bool {
	if v, ok := t.(*ir.TypeVar); ok && v.Name == name {
		return true
	}
	for _, occ := range ir.TypeVars(sub.Apply(t)) {
		if occ == name {
			return false
		}
	}
	if upper := s.free[name]; upper != nil && !s.hasUnbound(upper, sub) {
		if _, wild := t.(*ir.Wildcard); !wild && !s.assignable(t, upper, sub) {
			return false
		}
	}
	sub[name] = t
	return true
}

// hasUnbound reports whether t still mentions a free variable without a
// binding. Upper bounds over such variables are checked by CheckBounds.
func (s *Solver) hasUnbound(t ir.Type, sub Subst) bool {
	for _, name := range ir.TypeVars(sub.Apply(t)) {
		if _, free := s.free[name]; free {
			return true
		}
	}
	return false
}

// CheckBounds verifies the upper bound of every bound free variable,
// including those whose check bind had to defer.
func (s *Solver) CheckBounds(sub Subst) (Subst, bool) {
	next := sub.Clone()
	if next == nil {
		next = Subst{}
	}
	names := make([]string, 0, len(s.free))
	for name := range s.free {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		upper := s.free[name]
		t, bound := next[name]
		if upper == nil || !bound {
			continue
		}
		if _, wild := t.(*ir.Wildcard); wild {
			continue
		}
		if !s.assignable(t, upper, next) {
			return nil, false
		}
	}
	return next, true
}

func (s *Solver) unify(a, b ir.Type, sub Subst) bool {
	a, va := s.resolve(a, sub)
	b, vb := s.resolve(b, sub)
	if va != "" {
		return s.bind(va, b, sub)
	}
	if vb != "" {
		return s.bind(vb, a, sub)
	}
	if ir.IsUnknown(a) || ir.IsUnknown(b) {
		return true
	}
	switch x := a.(type) {
	case *ir.Named:
		y, ok := b.(*ir.Named)
		if !ok || x.Name != y.Name {
			return false
		}
		if len(x.Args) == 0 || len(y.Args) == 0 {
			return true
		}
		if len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !s.unify(x.Args[i], y.Args[i], sub) {
				return false
			}
		}
		return true
	case *ir.Wildcard:
		y, ok := b.(*ir.Wildcard)
		if !ok || x.Kind != y.Kind {
			return false
		}
		if x.Kind == ir.WildAny {
			return true
		}
		return s.unify(x.Bound, y.Bound, sub)
	case *ir.Array:
		y, ok := b.(*ir.Array)
		return ok && s.unify(x.Elem, y.Elem, sub)
	case *ir.TypeVar:
		y, ok := b.(*ir.TypeVar)
		return ok && x.Name == y.Name
	}
	return false
}

func (s *Solver) assignable(src, dst ir.Type, sub Subst) bool {
	if src == nil || dst == nil {
		return false
	}
	dst, vd := s.resolve(dst, sub)
	src, vs := s.resolve(src, sub)
	if vd != "" {
		return s.bind(vd, src, sub)
	}
	if vs != "" {
		return s.bind(vs, dst, sub)
	}
	if ir.IsUnknown(src) {
		return true
	}
	src = upperOf(src)
	if n, ok := dst.(*ir.Named); ok && n.Name == ObjectName {
		return true
	}
	switch d := dst.(type) {
	case *ir.Named:
		sn, ok := src.(*ir.Named)
		if !ok {
			return false
		}
		sup, ok := s.u.AsSuper(sn, d.Name)
		if !ok {
			return false
		}
		if len(d.Args) == 0 || len(sup.Args) == 0 {
			return true
		}
		if len(d.Args) != len(sup.Args) {
			return false
		}
		for i := range d.Args {
			if !s.contains(sup.Args[i], d.Args[i], sub) {
				return false
			}
		}
		return true
	case *ir.Array:
		sa, ok := src.(*ir.Array)
		return ok && s.assignable(sa.Elem, d.Elem, sub)
	case *ir.TypeVar:
		sv, ok := src.(*ir.TypeVar)
		return ok && sv.Name == d.Name
	case *ir.Wildcard:
		// A variable inferred as a wildcard accepts what its capture accepts.
		return s.assignable(src, upperOf(d), sub)
	}
	return false
}

// contains reports whether the type argument formal contains actual.
func (s *Solver) contains(actual, formal ir.Type, sub Subst) bool {
	formal, vf := s.resolve(formal, sub)
	if vf != "" {
		return s.bind(vf, actual, sub)
	}
	if ir.IsUnknown(actual) {
		return true
	}
	w, ok := formal.(*ir.Wildcard)
	if !ok {
		return s.unify(formal, actual, sub)
	}
	switch w.Kind {
	case ir.WildExtends:
		return s.assignable(upperOf(actual), w.Bound, sub)
	case ir.WildSuper:
		low, ok := lowerOf(actual)
		if !ok {
			return false
		}
		return s.assignable(w.Bound, low, sub)
	}
	return true
}

// upperOf is the capture upper bound of a wildcard; other types map to
// themselves.
func upperOf(t ir.Type) ir.Type {
	w, ok := t.(*ir.Wildcard)
	if !ok {
		return t
	}
	if w.Kind == ir.WildExtends {
		return w.Bound
	}
	return &ir.Named{Name: ObjectName}
}

func lowerOf(t ir.Type) (ir.Type, bool) {
	w, ok := t.(*ir.Wildcard)
	if !ok {
		return t, true
	}
	if w.Kind == ir.WildSuper {
		return w.Bound, true
	}
	return nil, false
}
