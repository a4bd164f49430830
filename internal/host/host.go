// Package host reads and writes compilation units, the stand-in for the
// type-checked trees a real host compiler would hand to the engine.
//
// A unit file is YAML:
//
//	name: Example
//	imports:
//	  - io.reactivex.Flowable
//	vars:
//	  flowable: Flowable<Integer>
//	decls:
//	  - name: filtered
//	    expr: flowable.filter(i -> i > 2)
//
// Spans are byte offsets into the decl's expr text.
package host

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rxmigrate/internal/imports"
	"github.com/roach88/rxmigrate/internal/ir"
	"github.com/roach88/rxmigrate/internal/syntax"
	"github.com/roach88/rxmigrate/internal/typesys"
)

// File is the YAML form of a unit.
type File struct {
	Name    string    `yaml:"name"`
	Imports []string  `yaml:"imports,omitempty"`
	Vars    yaml.Node `yaml:"vars,omitempty"`
	Decls   []DeclSrc `yaml:"decls"`
}

// DeclSrc is one declaration as written.
type DeclSrc struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

// VarSrc is one unit variable as written.
type VarSrc struct {
	Name string
	Type string
}

// UnitError reports a problem in a unit file.
type UnitError struct {
	Unit  string
	Decl  string // empty for file-level problems
	Field string
	Err   error
}

func (e *UnitError) Error() string {
	loc := e.Unit
	if e.Decl != "" {
		loc += "." + e.Decl
	}
	if e.Field != "" {
		loc += " " + e.Field
	}
	return fmt.Sprintf("unit %s: %v", loc, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// VarList decodes the vars mapping, keeping declaration order.
func (f *File) VarList() ([]VarSrc, error) {
	if f.Vars.Kind == 0 {
		return nil, nil
	}
	if f.Vars.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: vars must be a mapping of name to type", f.Vars.Line)
	}
	out := make([]VarSrc, 0, len(f.Vars.Content)/2)
	for i := 0; i+1 < len(f.Vars.Content); i += 2 {
		k, v := f.Vars.Content[i], f.Vars.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: type of %s must be a string", v.Line, k.Value)
		}
		out = append(out, VarSrc{Name: k.Value, Type: v.Value})
	}
	return out, nil
}

// SetVars replaces the vars mapping.
func (f *File) SetVars(vars []VarSrc) {
	f.Vars = yaml.Node{}
	if len(vars) == 0 {
		return
	}
	f.Vars = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, v := range vars {
		f.Vars.Content = append(f.Vars.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Type})
	}
}

// Parse decodes a unit file and returns the unit bound against u and
// annotated with inferred types.
func Parse(data []byte, u *typesys.Universe) (*ir.Unit, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode unit: %w", err)
	}
	return Build(&f, u)
}

// Build turns a decoded file into a bound, annotated unit.
func Build(f *File, u *typesys.Universe) (*ir.Unit, error) {
	unit, err := Canonical(f, u)
	if err != nil {
		return nil, err
	}
	typesys.NewTyper(u).Annotate(unit)
	return unit, nil
}

// Canonical parses and binds a file without type annotation.
func Canonical(f *File, u *typesys.Universe) (*ir.Unit, error) {
	if f.Name == "" {
		return nil, &UnitError{Unit: "?", Field: "name", Err: fmt.Errorf("missing")}
	}
	unit := &ir.Unit{Name: f.Name}
	for _, s := range f.Imports {
		unit.Imports = append(unit.Imports, ir.ParseImport(s))
	}

	vars, err := f.VarList()
	if err != nil {
		return nil, &UnitError{Unit: f.Name, Field: "vars", Err: err}
	}
	for _, v := range vars {
		t, err := syntax.ParseType(v.Type)
		if err != nil {
			return nil, &UnitError{Unit: f.Name, Field: "vars." + v.Name, Err: err}
		}
		unit.Vars = append(unit.Vars, ir.VarDecl{Name: v.Name, Type: t})
	}

	seen := make(map[string]bool, len(f.Decls))
	for _, d := range f.Decls {
		if d.Name == "" {
			return nil, &UnitError{Unit: f.Name, Field: "decls", Err: fmt.Errorf("declaration without a name")}
		}
		if seen[d.Name] {
			return nil, &UnitError{Unit: f.Name, Decl: d.Name, Err: fmt.Errorf("duplicate declaration")}
		}
		seen[d.Name] = true
		body, err := syntax.ParseExpr(d.Expr)
		if err != nil {
			return nil, &UnitError{Unit: f.Name, Decl: d.Name, Field: "expr", Err: err}
		}
		unit.Decls = append(unit.Decls, ir.Decl{Name: d.Name, Body: body})
	}

	imports.BindUnit(unit, u)
	return unit, nil
}

// Load reads one unit file.
func Load(path string, u *typesys.Universe) (*ir.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	unit, err := Parse(data, u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return unit, nil
}

// LoadPaths loads unit files and every *.yaml / *.yml file of the given
// directories, in path order.
func LoadPaths(paths []string, u *typesys.Universe) ([]*ir.Unit, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			ext := filepath.Ext(e.Name())
			if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
	}
	slices.Sort(files)

	units := make([]*ir.Unit, 0, len(files))
	for _, f := range files {
		unit, err := Load(f, u)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, nil
}

// ToFile converts a rendered unit back to its file form.
func ToFile(unit *ir.Unit) *File {
	f := &File{Name: unit.Name}
	for _, imp := range unit.Imports {
		f.Imports = append(f.Imports, imp.String())
	}
	vars := make([]VarSrc, len(unit.Vars))
	for i, v := range unit.Vars {
		vars[i] = VarSrc{Name: v.Name, Type: ir.TypeString(v.Type)}
	}
	f.SetVars(vars)
	for _, d := range unit.Decls {
		f.Decls = append(f.Decls, DeclSrc{Name: d.Name, Expr: ir.Format(d.Body)})
	}
	return f
}

// Marshal writes a rendered unit as YAML.
func Marshal(unit *ir.Unit) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ToFile(unit)); err != nil {
		return nil, fmt.Errorf("encode unit %s: %w", unit.Name, err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Source renders a unit as the import block followed by one line per
// declaration, the form shown to users.
func Source(unit *ir.Unit) string {
	var b strings.Builder
	for _, imp := range unit.Imports {
		fmt.Fprintf(&b, "import %s;\n", imp)
	}
	if len(unit.Imports) > 0 {
		b.WriteByte('\n')
	}
	for _, d := range unit.Decls {
		fmt.Fprintf(&b, "%s = %s;\n", d.Name, ir.Format(d.Body))
	}
	return b.String()
}
