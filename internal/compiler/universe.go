package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/rxmigrate/internal/imports"
	"github.com/roach88/rxmigrate/internal/ir"
	"github.com/roach88/rxmigrate/internal/syntax"
	"github.com/roach88/rxmigrate/internal/typesys"
)

// BuildUniverse declares every class first, then resolves supertypes and
// method signatures against the catalog imports. Type names may be written
// simple (imported or java.lang) or fully qualified.
func BuildUniverse(classes map[string]ClassRecord, methods []MethodRecord, imps []ir.Import) (*typesys.Universe, []error) {
	u := typesys.NewUniverse()
	names := make([]string, 0, len(classes))
	for name := range classes {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		u.AddClass(&typesys.Class{Name: name, Params: classes[name].Params})
	}

	table := imports.NewTable(imps)
	var errs []error
	resolve := func(owner, field, text string, vars []string) ir.Type {
		t, err := syntax.ParseType(text)
		if err != nil {
			errs = append(errs, &PatternSyntaxError{Field: field, Code: ErrTypeSyntax,
				Message: fmt.Sprintf("%s: %q: %v", owner, text, err)})
			return nil
		}
		tv := make(map[string]bool, len(vars))
		for _, v := range vars {
			tv[v] = true
		}
		t = imports.ResolveType(t, table, u, tv)
		if missing := unknownClasses(t, u); len(missing) > 0 {
			errs = append(errs, &PatternSyntaxError{Field: field, Code: ErrUnresolvedName,
				Message: fmt.Sprintf("%s: unknown class %s", owner, missing[0])})
			return nil
		}
		return t
	}

	for _, name := range names {
		c, _ := u.Class(name)
		for _, s := range classes[name].Supers {
			if st, ok := resolve(name, "supers", s, c.Params).(*ir.Named); ok {
				c.Supers = append(c.Supers, st)
			}
		}
	}

	for _, m := range methods {
		if !u.IsClass(m.Owner) {
			errs = append(errs, &PatternSyntaxError{Field: "methods", Code: ErrUnresolvedName,
				Message: fmt.Sprintf("method %s: unknown owner class %s", m.Name, m.Owner)})
			continue
		}
		c, _ := u.Class(m.Owner)
		vars := slices.Concat(c.Params, m.TypeParams)
		where := m.Owner + "#" + m.Name
		sig := &typesys.Method{
			Owner:      m.Owner,
			Name:       m.Name,
			Static:     m.Static,
			TypeParams: m.TypeParams,
			Varargs:    m.Varargs,
			Returns:    resolve(where, "returns", m.Returns, vars),
		}
		for _, p := range m.Params {
			sig.Params = append(sig.Params, resolve(where, "params", p, vars))
		}
		u.AddMethod(sig)
	}
	return u, errs
}

// unknownClasses lists class names in t the universe does not declare.
func unknownClasses(t ir.Type, u *typesys.Universe) []string {
	var out []string
	ir.MapType(t, func(x ir.Type) ir.Type {
		if n, ok := x.(*ir.Named); ok && !u.IsClass(n.Name) {
			out = append(out, n.Name)
		}
		return nil
	})
	return out
}
