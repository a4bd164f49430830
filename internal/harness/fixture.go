package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rxmigrate/internal/engine"
	"github.com/roach88/rxmigrate/internal/host"
)

// Fixture is one verification case.
type Fixture struct {
	// Name uniquely identifies the fixture; golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what the fixture checks.
	Description string `yaml:"description"`

	// Catalog is a catalog directory. Relative paths are resolved against
	// the fixture file. Empty selects the embedded catalog.
	Catalog string `yaml:"catalog,omitempty"`

	// Strategy overrides the engine strategy ("outermost" or "innermost").
	Strategy string `yaml:"strategy,omitempty"`

	// MaxPasses overrides the engine pass limit when positive.
	MaxPasses int `yaml:"max_passes,omitempty"`

	Input host.File `yaml:"input"`

	// Expected is the expected output. Nil means the input must come back
	// unchanged. Name and vars default to the input's.
	Expected *host.File `yaml:"expected,omitempty"`

	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Path is the file the fixture was loaded from.
	Path string `yaml:"-"`
}

// Assertion checks the engine report of a fixture run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Rules are rule ids (rules_applied, rules_contain).
	Rules []string `yaml:"rules,omitempty"`

	// Count is the expected number (replacement_count, passes).
	Count int `yaml:"count,omitempty"`

	// Code is the expected diagnostic code (diagnostic).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertRulesApplied     = "rules_applied"
	AssertRulesContain     = "rules_contain"
	AssertReplacementCount = "replacement_count"
	AssertPasses           = "passes"
	AssertDiagnostic       = "diagnostic"
	AssertNoDiagnostics    = "no_diagnostics"
)

// ExpectsDiagnostic reports whether any assertion expects a diagnostic.
func (f *Fixture) ExpectsDiagnostic() bool {
	return slices.ContainsFunc(f.Assertions, func(a Assertion) bool { return a.Type == AssertDiagnostic })
}

// ExpectedFile returns the expected output with name and vars filled in
// from the input.
func (f *Fixture) ExpectedFile() *host.File {
	if f.Expected == nil {
		in := f.Input
		return &in
	}
	out := *f.Expected
	if out.Name == "" {
		out.Name = f.Input.Name
	}
	if out.Vars.Kind == 0 {
		out.Vars = f.Input.Vars
	}
	return &out
}

// CatalogDir returns the catalog directory, or "" for the embedded catalog.
func (f *Fixture) CatalogDir() string {
	if f.Catalog == "" || filepath.IsAbs(f.Catalog) || f.Path == "" {
		return f.Catalog
	}
	return filepath.Join(filepath.Dir(f.Path), f.Catalog)
}

// ParseFixture decodes a fixture. Unknown fields are rejected so that typos
// like "assertion:" do not silently disable checks.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if err := validateFixture(&f); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &f, nil
}

// LoadFixture reads and validates one fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// LoadFixtures reads every *.yaml fixture of dir in name order.
func LoadFixtures(dir string) ([]*Fixture, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	out := make([]*Fixture, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, p := range paths {
		f, err := LoadFixture(p)
		if err != nil {
			return nil, err
		}
		if prev, dup := names[f.Name]; dup {
			return nil, fmt.Errorf("%s: fixture name %q already used by %s", p, f.Name, prev)
		}
		names[f.Name] = p
		out = append(out, f)
	}
	return out, nil
}

func validateFixture(f *Fixture) error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if f.Description == "" {
		return fmt.Errorf("description is required")
	}
	if f.Input.Name == "" {
		return fmt.Errorf("input.name is required")
	}
	if len(f.Input.Decls) == 0 {
		return fmt.Errorf("input.decls must be non-empty")
	}
	if _, err := engine.ParseStrategy(f.Strategy); err != nil {
		return err
	}
	if f.MaxPasses < 0 {
		return fmt.Errorf("max_passes must be non-negative")
	}
	if f.Expected != nil && len(f.Expected.Decls) != len(f.Input.Decls) {
		return fmt.Errorf("expected.decls has %d entries, input.decls has %d", len(f.Expected.Decls), len(f.Input.Decls))
	}
	for i := range f.Assertions {
		if err := validateAssertion(i, &f.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertRulesApplied:
		// An empty list asserts that nothing fired.
	case AssertRulesContain:
		if len(a.Rules) == 0 {
			return fmt.Errorf("assertions[%d]: rules list is required for %s", index, a.Type)
		}
	case AssertReplacementCount, AssertPasses:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertDiagnostic:
		switch engine.RuntimeErrorCode(a.Code) {
		case engine.ErrCodeMatchAmbiguity, engine.ErrCodeNonTermination:
		default:
			return fmt.Errorf("assertions[%d]: unknown diagnostic code %q", index, a.Code)
		}
	case AssertNoDiagnostics:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
