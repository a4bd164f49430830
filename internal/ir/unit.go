package ir

import (
	"slices"
	"strings"
)

// Import is one import declaration. For static imports Path is the
// qualified member name (owner class + "." + member).
type Import struct {
	Path   string `json:"path" yaml:"path"`
	Static bool   `json:"static,omitempty" yaml:"static,omitempty"`
}

// ParseImport accepts "a.b.C" and "static a.b.C.m".
func ParseImport(s string) Import {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
	s = strings.TrimPrefix(s, "import ")
	if rest, ok := strings.CutPrefix(s, "static "); ok {
		return Import{Path: strings.TrimSpace(rest), Static: true}
	}
	return Import{Path: s}
}

func (i Import) String() string {
	if i.Static {
		return "static " + i.Path
	}
	return i.Path
}

// CompareImports orders class imports before static imports, then by path.
func CompareImports(a, b Import) int {
	if a.Static != b.Static {
		if a.Static {
			return 1
		}
		return -1
	}
	return strings.Compare(a.Path, b.Path)
}

// VarDecl is a variable in scope for every declaration of a unit.
type VarDecl struct {
	Name string
	Type Type
}

// Decl is one named top-level expression of a unit.
type Decl struct {
	Name string
	Body Node
}

// Unit is the host-level compilation unit handed to the engine.
type Unit struct {
	Name    string
	Imports []Import
	Vars    []VarDecl
	Decls   []Decl
}

// Clone deep-copies the unit so a worker can rewrite it privately.
func (u *Unit) Clone() *Unit {
	out := &Unit{
		Name:    u.Name,
		Imports: slices.Clone(u.Imports),
		Vars:    slices.Clone(u.Vars),
		Decls:   make([]Decl, len(u.Decls)),
	}
	for i, d := range u.Decls {
		out.Decls[i] = Decl{Name: d.Name, Body: Clone(d.Body)}
	}
	return out
}

// Var returns the declared type of a unit variable.
func (u *Unit) Var(name string) (Type, bool) {
	for _, v := range u.Vars {
		if v.Name == name {
			return v.Type, true
		}
	}
	return nil, false
}

// AddImports merges imports into the unit, keeping the list sorted and
// free of duplicates.
func (u *Unit) AddImports(imps ...Import) {
	for _, imp := range imps {
		if !slices.Contains(u.Imports, imp) {
			u.Imports = append(u.Imports, imp)
		}
	}
	slices.SortFunc(u.Imports, CompareImports)
}
