package typesys

import (
	"github.com/roach88/rxmigrate/internal/ir"
)

// ObjectName is the root of every class hierarchy.
const ObjectName = "java.lang.Object"

// Class is a declared class or interface. Supers are written in terms of
// Params, as type variables.
type Class struct {
	Name   string
	Params []string
	Supers []*ir.Named
}

// Method is a declared method signature.
type Method struct {
	Owner      string
	Name       string
	Static     bool
	TypeParams []string
	Params     []ir.Type
	Varargs    bool
	Returns    ir.Type
}

// Universe holds the classes and methods the annotator and the matcher know
// about. It is built once while loading a catalog and only read afterwards.
type Universe struct {
	classes  map[string]*Class
	methods  map[string][]*Method
	instance map[string][]*Method // owner -> instance methods
}

// NewUniverse returns a universe containing only java.lang.Object.
func NewUniverse() *Universe {
	u := &Universe{
		classes:  make(map[string]*Class),
		methods:  make(map[string][]*Method),
		instance: make(map[string][]*Method),
	}
	u.classes[ObjectName] = &Class{Name: ObjectName}
	return u
}

// AddClass declares or replaces a class.
func (u *Universe) AddClass(c *Class) {
	u.classes[c.Name] = c
}

// AddMethod appends a method overload; declaration order is kept.
func (u *Universe) AddMethod(m *Method) {
	key := m.Owner + "#" + m.Name
	u.methods[key] = append(u.methods[key], m)
	if !m.Static {
		u.instance[m.Owner] = append(u.instance[m.Owner], m)
	}
}

// FunctionalMethod returns the single abstract method of a functional
// interface, taken to be the only instance method declared on owner.
func (u *Universe) FunctionalMethod(owner string) (*Method, bool) {
	ms := u.instance[owner]
	if len(ms) != 1 {
		return nil, false
	}
	return ms[0], true
}

// IsClass reports whether the qualified name is a declared class.
func (u *Universe) IsClass(name string) bool {
	_, ok := u.classes[name]
	return ok
}

// Class returns a declared class.
func (u *Universe) Class(name string) (*Class, bool) {
	c, ok := u.classes[name]
	return c, ok
}

// ClassNames returns every declared class name.
func (u *Universe) ClassNames() []string {
	out := make([]string, 0, len(u.classes))
	for n := range u.classes {
		out = append(out, n)
	}
	return out
}

// Methods returns the overloads of owner.name in declaration order.
func (u *Universe) Methods(owner, name string) []*Method {
	return u.methods[owner+"#"+name]
}

// Supertypes returns t followed by its transitive supertypes in breadth-first
// order, with type arguments substituted. java.lang.Object is always last.
func (u *Universe) Supertypes(t *ir.Named) []*ir.Named {
	out := []*ir.Named{t}
	seen := map[string]bool{t.Name: true}
	for i := 0; i < len(out); i++ {
		cur := out[i]
		c, ok := u.classes[cur.Name]
		if !ok {
			continue
		}
		sub := classSubst(c, cur)
		for _, s := range c.Supers {
			if seen[s.Name] {
				continue
			}
			seen[s.Name] = true
			out = append(out, sub.Apply(s).(*ir.Named))
		}
	}
	if !seen[ObjectName] {
		out = append(out, &ir.Named{Name: ObjectName})
	}
	return out
}

// AsSuper views t as the supertype named target, if t is a subtype of it.
func (u *Universe) AsSuper(t *ir.Named, target string) (*ir.Named, bool) {
	for _, s := range u.Supertypes(t) {
		if s.Name == target {
			return s, true
		}
	}
	return nil, false
}

// classSubst maps a class's type parameters to the arguments of t. Raw
// uses leave the parameters unbound.
func classSubst(c *Class, t *ir.Named) Subst {
	sub := Subst{}
	if len(t.Args) != len(c.Params) {
		return sub
	}
	for i, p := range c.Params {
		sub[p] = t.Args[i]
	}
	return sub
}
