package imports

import (
	"slices"
	"strings"

	"github.com/roach88/rxmigrate/internal/ir"
)

// Renderer converts canonical trees back to source form for one unit.
// Imports it decides to add are remembered so later decisions in the same
// unit stay consistent.
type Renderer struct {
	table   *Table
	added   []ir.Import
	classes map[string]string
	statics map[string]string
}

// NewRenderer creates a renderer for a unit with the given imports.
func NewRenderer(imps []ir.Import) *Renderer {
	return &Renderer{
		table:   NewTable(imps),
		classes: make(map[string]string),
		statics: make(map[string]string),
	}
}

// Added returns the imports introduced so far, sorted.
func (r *Renderer) Added() []ir.Import {
	out := slices.Clone(r.added)
	slices.SortFunc(out, ir.CompareImports)
	return out
}

// Render returns the source form of n. It never changes what a reference
// denotes, only how it is spelled.
func (r *Renderer) Render(n ir.Node) ir.Node {
	switch x := n.(type) {
	case nil:
		return nil
	case *ir.ClassRef:
		return r.classRef(x)
	case *ir.Select:
		if ref, ok := x.X.(*ir.ClassRef); ok && ref.Style == ir.RefStatic && !ref.Introduced {
			return &ir.Ident{Meta: x.Meta, Name: x.Sel}
		}
	case *ir.Lambda:
		out := &ir.Lambda{Meta: x.Meta, Params: slices.Clone(x.Params), Body: r.Render(x.Body)}
		if !r.importTypes(paramTypes(x.Params)) {
			for i := range out.Params {
				out.Params[i].Type = nil
			}
		}
		return out
	case *ir.Call:
		if !r.importTypes(x.TypeArgs) {
			// Spelling a clashing class in a type argument would need a
			// qualified type; leaving inference to the compiler is enough.
			x = &ir.Call{Meta: x.Meta, Fun: x.Fun, Args: x.Args}
			n = x
		}
		if sel, ok := x.Fun.(*ir.Select); ok {
			if ref, ok := sel.X.(*ir.ClassRef); ok && ref.Introduced && staticForm(ref) && len(x.TypeArgs) == 0 {
				if r.staticImport(ref.Name, sel.Sel) {
					out := &ir.Call{Meta: x.Meta, TypeArgs: slices.Clone(x.TypeArgs)}
					out.Fun = &ir.Ident{Meta: sel.Meta, Name: sel.Sel}
					for _, a := range x.Args {
						out.Args = append(out.Args, r.Render(a))
					}
					return out
				}
			}
		}
	}
	kids := ir.Children(n)
	for i, k := range kids {
		kids[i] = r.Render(k)
	}
	return ir.WithChildren(n, kids)
}

// staticForm reports whether an introduced member call should be written
// through a static import: the rule asks for it, or its template was
// written that way.
func staticForm(ref *ir.ClassRef) bool {
	return ref.Policy == ir.PolicyClassDirectly || ref.Style == ir.RefStatic
}

func (r *Renderer) classRef(ref *ir.ClassRef) ir.Node {
	if !ref.Introduced {
		if ref.Style == ir.RefQualified {
			return qualifiedNode(ref.Name, ref.Meta)
		}
		return &ir.Ident{Meta: ref.Meta, Name: ref.Simple()}
	}
	if r.importClass(ref.Name) {
		return &ir.Ident{Meta: ref.Meta, Name: ref.Simple()}
	}
	return qualifiedNode(ref.Name, ref.Meta)
}

// importTypes makes every class named in ts writable by its simple name.
// It reports false when one of them clashes with an existing import.
func (r *Renderer) importTypes(ts []ir.Type) bool {
	ok := true
	for _, t := range ts {
		ir.MapType(t, func(x ir.Type) ir.Type {
			if n, isNamed := x.(*ir.Named); isNamed && !r.importClass(n.Name) {
				ok = false
			}
			return nil
		})
	}
	return ok
}

func paramTypes(ps []ir.Param) []ir.Type {
	var out []ir.Type
	for _, p := range ps {
		if p.Type != nil {
			out = append(out, p.Type)
		}
	}
	return out
}

// importClass reports whether name can be written by its simple name,
// adding an import when needed.
func (r *Renderer) importClass(name string) bool {
	simple := ir.SimpleName(name)
	existing, ok := r.table.Class(simple)
	if !ok {
		existing, ok = r.classes[simple]
	}
	if ok {
		return existing == name
	}
	if ir.PackageOf(name) == "java.lang" {
		return true
	}
	r.classes[simple] = name
	r.added = append(r.added, ir.Import{Path: name})
	return true
}

// staticImport reports whether owner.member can be written as a bare
// member name, adding a static import when needed.
func (r *Renderer) staticImport(owner, member string) bool {
	existing, ok := r.table.Static(member)
	if !ok {
		existing, ok = r.statics[member]
	}
	if ok {
		return existing == owner
	}
	r.statics[member] = owner
	r.added = append(r.added, ir.Import{Path: owner + "." + member, Static: true})
	return true
}

func qualifiedNode(name string, meta ir.Meta) ir.Node {
	parts := strings.Split(name, ".")
	var out ir.Node = &ir.Ident{Meta: meta, Name: parts[0]}
	for _, p := range parts[1:] {
		out = &ir.Select{Meta: meta, X: out, Sel: p}
	}
	return out
}

// RenderUnit renders every declaration of a canonical unit in place and
// merges the imports the rendering needs.
func RenderUnit(u *ir.Unit) {
	r := NewRenderer(u.Imports)
	for i := range u.Decls {
		u.Decls[i].Body = r.Render(u.Decls[i].Body)
	}
	u.AddImports(r.Added()...)
}

// BindUnit canonicalizes every declaration of a unit against its imports.
func BindUnit(u *ir.Unit, idx ClassIndex) {
	b := NewBinder(idx, u.Imports)
	scope := make([]string, len(u.Vars))
	for i, v := range u.Vars {
		scope[i] = v.Name
		u.Vars[i].Type = b.typ(v.Type)
	}
	for i := range u.Decls {
		u.Decls[i].Body = b.Bind(u.Decls[i].Body, scope)
	}
}
