package imports

import (
	"github.com/roach88/rxmigrate/internal/ir"
)

// ClassIndex answers whether a qualified name denotes a known class.
type ClassIndex interface {
	IsClass(name string) bool
}

// Table is the set of imports in effect for a unit.
type Table struct {
	entries []ir.Import
	classes map[string]string // simple name -> qualified class
	statics map[string]string // member name -> qualified owner class
}

// NewTable indexes imports. Later duplicates of a simple name are ignored,
// matching the first-wins behavior of a compiler reporting the clash.
func NewTable(imps []ir.Import) *Table {
	t := &Table{
		classes: make(map[string]string, len(imps)),
		statics: make(map[string]string),
	}
	for _, imp := range imps {
		t.add(imp)
	}
	return t
}

func (t *Table) add(imp ir.Import) {
	t.entries = append(t.entries, imp)
	if imp.Static {
		member := ir.SimpleName(imp.Path)
		if _, ok := t.statics[member]; !ok {
			t.statics[member] = ir.PackageOf(imp.Path)
		}
		return
	}
	simple := ir.SimpleName(imp.Path)
	if _, ok := t.classes[simple]; !ok {
		t.classes[simple] = imp.Path
	}
}

// Class resolves an imported simple class name.
func (t *Table) Class(simple string) (string, bool) {
	q, ok := t.classes[simple]
	return q, ok
}

// Static resolves a statically imported member to its owner class.
func (t *Table) Static(member string) (string, bool) {
	o, ok := t.statics[member]
	return o, ok
}

// Imports returns the imports in declaration order.
func (t *Table) Imports() []ir.Import {
	out := make([]ir.Import, len(t.entries))
	copy(out, t.entries)
	return out
}

// Resolve maps a simple or qualified type name to a qualified one using the
// table, then java.lang. Unknown names are returned unchanged.
func Resolve(name string, t *Table, idx ClassIndex) string {
	if q, ok := t.Class(name); ok {
		return q
	}
	if idx.IsClass(name) {
		return name
	}
	if idx.IsClass("java.lang." + name) {
		return "java.lang." + name
	}
	return name
}

// ResolveType rewrites every class name in typ to its qualified form.
// Names in typeVars become type variables.
func ResolveType(typ ir.Type, t *Table, idx ClassIndex, typeVars map[string]bool) ir.Type {
	return ir.MapType(typ, func(x ir.Type) ir.Type {
		n, ok := x.(*ir.Named)
		if !ok {
			return nil
		}
		if len(n.Args) == 0 && typeVars[n.Name] {
			return &ir.TypeVar{Name: n.Name}
		}
		out := &ir.Named{Name: Resolve(n.Name, t, idx)}
		for _, a := range n.Args {
			out.Args = append(out.Args, ResolveType(a, t, idx, typeVars))
		}
		return out
	})
}
