package compiler

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rxmigrate/internal/ir"
	"github.com/roach88/rxmigrate/internal/typesys"
)

const boxUniverse = `imports:
  - com.example.Box
classes:
  java.lang.Number: {}
  java.lang.Integer: {supers: [Number]}
  com.example.Box: {}
methods:
  - {owner: com.example.Box, name: a, static: true, params: [Integer], returns: Integer}
  - {owner: com.example.Box, name: b, static: true, params: [Integer], returns: Integer}
  - {owner: com.example.Box, name: pair, static: true, params: [Integer, Integer], returns: Integer}
  - {owner: com.example.Box, name: all, static: true, params: [Integer], varargs: true, returns: Integer}
`

var quiet = WithLogger(slog.New(slog.DiscardHandler))

func boxImports() []ir.Import {
	return []ir.Import{ir.ParseImport("com.example.Box")}
}

func boxTypes(t *testing.T) *typesys.Universe {
	t.Helper()
	u, errs := BuildUniverse(
		map[string]ClassRecord{
			"java.lang.Number":  {},
			"java.lang.Integer": {Supers: []string{"Number"}},
			"com.example.Box":   {},
		},
		[]MethodRecord{
			{Owner: "com.example.Box", Name: "a", Static: true, Params: []string{"Integer"}, Returns: "Integer"},
			{Owner: "com.example.Box", Name: "b", Static: true, Params: []string{"Integer"}, Returns: "Integer"},
		},
		boxImports())
	require.Empty(t, errs)
	return u
}

func intParam(name string) ParamRecord { return ParamRecord{Name: name, Type: "Integer"} }

// codes lists the error codes carried by a *CatalogError.
func codes(t *testing.T, err error) []string {
	t.Helper()
	var ce *CatalogError
	require.ErrorAs(t, err, &ce)
	var out []string
	for _, e := range ce.Errors {
		switch x := e.(type) {
		case *PatternSyntaxError:
			out = append(out, x.Code)
		case *UnsupportedConstructError:
			out = append(out, x.Code)
		default:
			t.Fatalf("unexpected error type %T: %v", e, e)
		}
	}
	return out
}

func TestLoad_Compiles(t *testing.T) {
	u := boxTypes(t)
	records := []RuleRecord{
		{
			ID:           "AOrB",
			TypeParams:   []string{"T extends Number"},
			Params:       []ParamRecord{{Name: "x", Type: "? extends T"}},
			Before:       []string{"Refaster.anyOf(Box.a(x), Box.b(x))"},
			After:        "Box.b(x)",
			ImportPolicy: "IMPORT_CLASS_DIRECTLY",
		},
		{
			ID:           "Apply",
			Params:       []ParamRecord{intParam("x")},
			Placeholders: []PlaceholderRecord{{Name: "f", Returns: "Integer", Params: []PlaceholderParamRecord{{Name: "v", Type: "Integer", MayUse: true}}}},
			Before:       []string{"Box.a(f(x))"},
			After:        "f(Box.b(x))",
		},
	}

	rs, err := Load(records, u, boxImports(), quiet)
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())

	r := rs.At(0)
	assert.Equal(t, "AOrB", r.ID)
	assert.Len(t, r.Before, 2, "anyOf expands into alternatives")
	assert.Equal(t, ir.PolicyClassDirectly, r.ImportPolicy)
	require.Len(t, r.TypeParams, 1)
	assert.Equal(t, &ir.Named{Name: "java.lang.Number"}, r.TypeParams[0].Upper)
	x, ok := r.Var("x")
	require.True(t, ok)
	assert.Equal(t, ir.BoundExtends, x.Bound.Kind)
	assert.Equal(t, &ir.TypeVar{Name: "T"}, x.Bound.Type)
	assert.Equal(t, ir.Single, x.Multiplicity)

	ph, ok := rs.At(1).Placeholder("f")
	require.True(t, ok)
	assert.Equal(t, "apply", ph.Method)
	assert.Equal(t, &ir.Named{Name: "java.lang.Integer"}, ph.Returns)
	require.Len(t, ph.Params, 1)
	assert.True(t, ph.Params[0].MayUse)
}

func TestLoad_Repeated(t *testing.T) {
	u := boxTypes(t)
	rs, err := Load([]RuleRecord{{
		ID:       "All",
		Repeated: &RepeatedRecord{Name: "xs", Bound: "Integer"},
		Before:   []string{"Box.a(xs)"},
		After:    "Box.b(Refaster.asVarargs(xs))",
	}}, u, boxImports(), quiet)
	require.NoError(t, err)

	r := rs.At(0)
	require.NotNil(t, r.Repeated)
	assert.Equal(t, "xs", r.Repeated.Name)
	xs, ok := r.Var("xs")
	require.True(t, ok)
	assert.Equal(t, ir.Repeated, xs.Multiplicity)

	call, ok := r.After.(*ir.Call)
	require.True(t, ok)
	require.Len(t, call.Args, 1)
	assert.Equal(t, "xs", call.Args[0].(*ir.Ident).Name, "asVarargs is stripped")
}

func TestLoad_InactiveRules(t *testing.T) {
	u := boxTypes(t)
	off := false
	rs, err := Load([]RuleRecord{
		{ID: "AToB", Params: []ParamRecord{intParam("x")}, Before: []string{"Box.a(x)"}, After: "Box.b(x)"},
		{ID: "BToA", Params: []ParamRecord{intParam("x")}, Before: []string{"Box.b(x)"}, After: "Box.a(x)", Annotated: &off},
	}, u, boxImports(), quiet)
	require.NoError(t, err)

	assert.Equal(t, 1, rs.Len())
	_, ok := rs.Lookup("BToA")
	assert.False(t, ok)
	assert.Equal(t, []ir.InactiveRule{{ID: "BToA", Reason: "annotated: false"}}, rs.Inactive())
}

func TestLoad_InactiveRulesAreValidated(t *testing.T) {
	u := boxTypes(t)
	off := false
	_, err := Load([]RuleRecord{
		{ID: "Broken", Params: []ParamRecord{intParam("x")}, Before: []string{"Box.a(x"}, After: "Box.b(x)", Annotated: &off},
	}, u, boxImports(), quiet)
	assert.Equal(t, []string{ErrBeforeSyntax}, codes(t, err))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		rec  RuleRecord
		code string
	}{
		{
			name: "empty id",
			rec:  RuleRecord{Params: []ParamRecord{intParam("x")}, Before: []string{"Box.a(x)"}, After: "Box.b(x)"},
			code: ErrDuplicateRule,
		},
		{
			name: "before syntax",
			rec:  RuleRecord{ID: "R", Params: []ParamRecord{intParam("x")}, Before: []string{"Box.a(x"}, After: "Box.b(x)"},
			code: ErrBeforeSyntax,
		},
		{
			name: "after syntax",
			rec:  RuleRecord{ID: "R", Params: []ParamRecord{intParam("x")}, Before: []string{"Box.a(x)"}, After: "Box.b(x))"},
			code: ErrAfterSyntax,
		},
		{
			name: "type syntax",
			rec:  RuleRecord{ID: "R", Params: []ParamRecord{{Name: "x", Type: "Integer<"}}, Before: []string{"Box.a(x)"}, After: "Box.b(x)"},
			code: ErrTypeSyntax,
		},
		{
			name: "import policy",
			rec:  RuleRecord{ID: "R", Params: []ParamRecord{intParam("x")}, Before: []string{"Box.a(x)"}, After: "Box.b(x)", ImportPolicy: "SOMETIMES"},
			code: ErrImportPolicy,
		},
		{
			name: "unresolved name",
			rec:  RuleRecord{ID: "R", Params: []ParamRecord{intParam("x")}, Before: []string{"Box.a(y)"}, After: "Box.b(x)"},
			code: ErrUnresolvedName,
		},
		{
			name: "unknown class",
			rec:  RuleRecord{ID: "R", Params: []ParamRecord{{Name: "x", Type: "Widget"}}, Before: []string{"Box.a(x)"}, After: "Box.b(x)"},
			code: ErrUnresolvedName,
		},
		{
			name: "after uses a name an alternative lacks",
			rec: RuleRecord{ID: "R", Params: []ParamRecord{intParam("x"), intParam("y")},
				Before: []string{"Refaster.anyOf(Box.a(x), Box.b(y))"}, After: "Box.a(x)"},
			code: ErrAfterUnbound,
		},
		{
			name: "repeated not trailing",
			rec: RuleRecord{ID: "R", Params: []ParamRecord{intParam("x")}, Repeated: &RepeatedRecord{Name: "xs", Bound: "Integer"},
				Before: []string{"Box.pair(xs, x)"}, After: "Box.a(x)"},
			code: ErrRepeatedMisuse,
		},
		{
			name: "asVarargs without repeated",
			rec:  RuleRecord{ID: "R", Params: []ParamRecord{intParam("x")}, Before: []string{"Box.a(x)"}, After: "Box.b(Refaster.asVarargs(x))"},
			code: ErrRepeatedMisuse,
		},
		{
			name: "placeholder arity",
			rec: RuleRecord{ID: "R", Params: []ParamRecord{intParam("x")},
				Placeholders: []PlaceholderRecord{{Name: "f", Params: []PlaceholderParamRecord{{Name: "v"}}}},
				Before:       []string{"Box.a(f(x, x))"}, After: "Box.b(x)"},
			code: ErrPlaceholderMisuse,
		},
		{
			name: "placeholder not invoked",
			rec: RuleRecord{ID: "R", Params: []ParamRecord{intParam("x")},
				Placeholders: []PlaceholderRecord{{Name: "f", Params: []PlaceholderParamRecord{{Name: "v"}}}},
				Before:       []string{"Box.pair(x, f)"}, After: "Box.b(x)"},
			code: ErrPlaceholderMisuse,
		},
		{
			name: "template type argument not fixed",
			rec: RuleRecord{ID: "R", TypeParams: []string{"T"}, Params: []ParamRecord{intParam("x")},
				Before: []string{"Box.a(x)"}, After: "Box.<T>b(x)"},
			code: ErrIncompatibleAlts,
		},
		{
			name: "duplicate variable",
			rec:  RuleRecord{ID: "R", Params: []ParamRecord{intParam("x"), intParam("x")}, Before: []string{"Box.a(x)"}, After: "Box.b(x)"},
			code: ErrDuplicateName,
		},
		{
			name: "type parameter and variable share a name",
			rec:  RuleRecord{ID: "R", TypeParams: []string{"x"}, Params: []ParamRecord{intParam("x")}, Before: []string{"Box.a(x)"}, After: "Box.b(x)"},
			code: ErrDuplicateName,
		},
		{
			name: "anyOf in after",
			rec:  RuleRecord{ID: "R", Params: []ParamRecord{intParam("x")}, Before: []string{"Box.a(x)"}, After: "Refaster.anyOf(Box.b(x))"},
			code: ErrMisplacedRefasterOp,
		},
		{
			name: "nested anyOf",
			rec:  RuleRecord{ID: "R", Params: []ParamRecord{intParam("x")}, Before: []string{"Box.a(Refaster.anyOf(x, x))"}, After: "Box.b(x)"},
			code: ErrMisplacedRefasterOp,
		},
	}
	u := boxTypes(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Load([]RuleRecord{tt.rec}, u, boxImports(), quiet)
			assert.Nil(t, rs)
			assert.Contains(t, codes(t, err), tt.code)
		})
	}
}

func TestLoad_DuplicateID(t *testing.T) {
	u := boxTypes(t)
	rec := RuleRecord{ID: "AToB", Params: []ParamRecord{intParam("x")}, Before: []string{"Box.a(x)"}, After: "Box.b(x)", Pos: "box.yaml:rules[0]"}
	dup := rec
	dup.Pos = "box.yaml:rules[1]"

	_, err := Load([]RuleRecord{rec, dup}, u, boxImports(), quiet)
	require.Error(t, err)
	assert.Equal(t, "[E201] box.yaml:rules[1]: AToB.id: duplicate rule id, first defined at box.yaml:rules[0]", err.Error())
	assert.False(t, IsPatternSyntaxError(err))
	assert.True(t, IsUnsupportedConstructError(err))
}

func TestLoad_Modes(t *testing.T) {
	u := boxTypes(t)
	records := []RuleRecord{
		{ID: "One", Params: []ParamRecord{intParam("x")}, Before: []string{"Box.a(x"}, After: "Box.b(x)"},
		{ID: "Two", Params: []ParamRecord{intParam("x")}, Before: []string{"Box.a(x)"}, After: "Box.b(y)"},
	}

	_, err := Load(records, u, boxImports(), quiet)
	assert.Equal(t, []string{ErrBeforeSyntax, ErrUnresolvedName}, codes(t, err))
	assert.True(t, strings.HasPrefix(err.Error(), "2 catalog errors:\n  "))
	assert.True(t, IsPatternSyntaxError(err))

	_, err = Load(records, u, boxImports(), quiet, WithMode(FailFast))
	assert.Equal(t, []string{ErrBeforeSyntax}, codes(t, err))
}

func TestFormatRuleError(t *testing.T) {
	assert.Equal(t, "[E202] f.yaml:rules[0]: R.before[0]: bad",
		(&PatternSyntaxError{RuleID: "R", Field: "before[0]", Code: ErrBeforeSyntax, Message: "bad", Pos: "f.yaml:rules[0]"}).Error())
	assert.Equal(t, "[E220] f.yaml: bad",
		(&PatternSyntaxError{Field: "yaml", Code: ErrCatalogFile, Message: "bad", Pos: "f.yaml"}).Error())
	assert.Equal(t, "[E213] R: bad",
		(&UnsupportedConstructError{RuleID: "R", Code: ErrIncompatibleAlts, Message: "bad"}).Error())
}

func TestBuildUniverse(t *testing.T) {
	u := boxTypes(t)
	assert.True(t, u.IsClass("com.example.Box"))
	assert.True(t, u.IsClass("java.lang.Integer"))

	c, ok := u.Class("java.lang.Integer")
	require.True(t, ok)
	assert.Equal(t, []*ir.Named{{Name: "java.lang.Number"}}, c.Supers)
}

func TestBuildUniverse_Errors(t *testing.T) {
	_, errs := BuildUniverse(
		map[string]ClassRecord{"com.example.Box": {Supers: []string{"Missing"}}},
		[]MethodRecord{
			{Owner: "com.example.Nowhere", Name: "a", Returns: "Box"},
			{Owner: "com.example.Box", Name: "b", Returns: "Box<"},
		},
		boxImports())
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0].Error(), "unknown class Missing")
	assert.Contains(t, errs[1].Error(), "unknown owner class com.example.Nowhere")
	assert.Contains(t, errs[2].Error(), "[E204]")
}

const boxRules = `rules:
  - id: AToB
    params: [{name: x, type: Integer}]
    before: ["Box.a(x)"]
    after: "Box.b(x)"
  - id: BToA
    params: [{name: x, type: Integer}]
    before: ["Box.b(x)"]
    after: "Box.a(x)"
`

func TestLoadFS_MergesFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"universe.yaml": {Data: []byte(boxUniverse)},
		"rules.yaml":    {Data: []byte(boxRules)},
		"README.md":     {Data: []byte("not a catalog")},
	}
	cat, err := LoadFS(fsys, quiet)
	require.NoError(t, err)

	assert.Equal(t, 2, cat.Rules.Len())
	assert.Equal(t, []ir.Import{ir.ParseImport("com.example.Box")}, cat.Imports)
	assert.True(t, cat.Universe.IsClass("com.example.Box"))
	assert.Equal(t, []ChainWarning{{
		Path:    []string{"AToB", "BToA", "AToB"},
		Message: "rules may re-enable each other: AToB -> BToA -> AToB",
		Level:   "warning",
	}}, cat.Warnings)
}

func TestLoadFS_CUE(t *testing.T) {
	fsys := fstest.MapFS{
		"universe.yaml": {Data: []byte(boxUniverse)},
		"rules.cue": {Data: []byte(`rules: [{
	id: "AToB"
	params: [{name: "x", type: "Integer"}]
	before: ["Box.a(x)"]
	after: "Box.b(x)"
}]
`)},
	}
	cat, err := LoadFS(fsys, quiet)
	require.NoError(t, err)
	require.Equal(t, 1, cat.Rules.Len())
	assert.Equal(t, "AToB", cat.Rules.At(0).ID)
	assert.Empty(t, cat.Warnings)
}

func TestLoadFS_CUESchemaViolation(t *testing.T) {
	fsys := fstest.MapFS{
		"rules.cue": {Data: []byte(`rules: [{
	id: "AToB"
	before: ["Box.a(x)"]
	after: "Box.b(x)"
	import_policy: "SOMETIMES"
}]
`)},
	}
	_, err := LoadFS(fsys, quiet)
	assert.Equal(t, []string{ErrCatalogFile}, codes(t, err))
}

func TestLoadFS_YAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		code string
	}{
		{name: "unknown field", data: "rules:\n  - id: R\n    bogus: 1\n", code: ErrCatalogFile},
		{name: "not yaml", data: "rules: [", code: ErrCatalogFile},
		{name: "no before", data: "rules:\n  - id: R\n    after: \"Box.b(x)\"\n", code: ErrBeforeSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFS(fstest.MapFS{"rules.yaml": {Data: []byte(tt.data)}}, quiet)
			assert.Equal(t, []string{tt.code}, codes(t, err))
		})
	}
}

func TestLoadFS_DuplicateClass(t *testing.T) {
	fsys := fstest.MapFS{
		"a.yaml": {Data: []byte(boxUniverse)},
		"b.yaml": {Data: []byte("classes:\n  com.example.Box: {}\n")},
	}
	_, err := LoadFS(fsys, quiet)
	assert.Equal(t, []string{ErrDuplicateName}, codes(t, err))
	assert.Contains(t, err.Error(), "class com.example.Box declared twice")
}

func TestLoadFS_NoCatalogFiles(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"README.md": {Data: []byte("x")}}, quiet)
	assert.EqualError(t, err, "read catalog: no .cue or .yaml files found")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "universe.yaml"), []byte(boxUniverse), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.yaml"), []byte(boxRules), 0o644))

	cat, err := LoadDir(dir, quiet)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Rules.Len())

	_, err = LoadDir(filepath.Join(dir, "missing"), quiet)
	assert.ErrorContains(t, err, "read catalog")

	_, err = LoadDir(filepath.Join(dir, "rules.yaml"), quiet)
	assert.ErrorContains(t, err, "is not a directory")
}
