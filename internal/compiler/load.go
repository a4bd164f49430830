package compiler

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/roach88/rxmigrate/internal/ir"
	"github.com/roach88/rxmigrate/internal/typesys"
)

// LoadMode controls how Load reacts to a broken rule.
type LoadMode int

const (
	// CollectAll compiles every record and reports all errors together.
	CollectAll LoadMode = iota
	// FailFast stops at the first broken record.
	FailFast
)

type loadOptions struct {
	mode   LoadMode
	logger *slog.Logger
}

// Option configures Load and LoadFS.
type Option func(*loadOptions)

// WithMode sets the error reporting mode.
func WithMode(m LoadMode) Option {
	return func(o *loadOptions) { o.mode = m }
}

// WithLogger sets the logger used for catalog diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *loadOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func newLoadOptions(opts []Option) *loadOptions {
	o := &loadOptions{mode: CollectAll, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Catalog is a fully loaded rule catalog.
type Catalog struct {
	Rules    *ir.RuleSet
	Universe *typesys.Universe
	Imports  []ir.Import
	// Warnings are static chain findings. They never reject the catalog.
	Warnings []ChainWarning
}

// Load compiles records into an ordered rule set. Rule order is record
// order. Records marked annotated: false are validated but kept aside as
// inactive rules. Any error rejects the whole catalog; the returned error is
// a *CatalogError.
func Load(records []RuleRecord, u *typesys.Universe, imps []ir.Import, opts ...Option) (*ir.RuleSet, error) {
	o := newLoadOptions(opts)

	var (
		rules    []*ir.Rule
		inactive []ir.InactiveRule
		errs     []error
	)
	seen := make(map[string]string, len(records))
	for i := range records {
		rec := &records[i]
		if prev, dup := seen[rec.ID]; dup || rec.ID == "" {
			msg := "rule id is required"
			if dup {
				msg = fmt.Sprintf("duplicate rule id, first defined at %s", prev)
			}
			errs = append(errs, &UnsupportedConstructError{RuleID: rec.ID, Field: "id", Code: ErrDuplicateRule, Message: msg, Pos: rec.Pos})
			if o.mode == FailFast {
				break
			}
			continue
		}
		seen[rec.ID] = rec.Pos

		rule, ruleErrs := compileRecord(rec, u, imps)
		if len(ruleErrs) > 0 {
			errs = append(errs, ruleErrs...)
			if o.mode == FailFast {
				break
			}
			continue
		}
		if !rec.IsAnnotated() {
			inactive = append(inactive, ir.InactiveRule{ID: rec.ID, Reason: "annotated: false"})
			o.logger.Debug("rule inactive", "rule", rec.ID)
			continue
		}
		rules = append(rules, rule)
	}
	if len(errs) > 0 {
		return nil, &CatalogError{Errors: errs}
	}
	return ir.NewRuleSet(rules, inactive, imps), nil
}

// catalogFile reports whether name is a catalog source.
func catalogFile(name string) bool {
	switch path.Ext(name) {
	case ".cue", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFS loads every catalog file at the top level of fsys, in name order.
// Imports, classes, methods and rules of all files are merged before
// compiling, so a rule may use classes declared in another file.
func LoadFS(fsys fs.FS, opts ...Option) (*Catalog, error) {
	o := newLoadOptions(opts)

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && catalogFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("read catalog: no .cue or .yaml files found")
	}

	var dec *cueDecoder
	merged := &File{Classes: map[string]ClassRecord{}}
	var errs []error
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read catalog file %s: %w", name, err)
		}
		var f *File
		if strings.HasSuffix(name, ".cue") {
			if dec == nil {
				if dec, err = newCUEDecoder(); err != nil {
					return nil, err
				}
			}
			f, err = dec.decode(name, data)
		} else {
			f, err = decodeYAML(name, data)
		}
		if err != nil {
			errs = append(errs, err)
			if o.mode == FailFast {
				break
			}
			continue
		}
		o.logger.Debug("catalog file decoded", "file", name, "rules", len(f.Rules))
		mergeFile(merged, f, name, &errs)
	}
	if len(errs) > 0 {
		return nil, &CatalogError{Errors: errs}
	}

	imps := make([]ir.Import, 0, len(merged.Imports))
	for _, s := range merged.Imports {
		imps = append(imps, ir.ParseImport(s))
	}
	slices.SortFunc(imps, ir.CompareImports)
	imps = slices.Compact(imps)

	u, uerrs := BuildUniverse(merged.Classes, merged.Methods, imps)
	if len(uerrs) > 0 {
		return nil, &CatalogError{Errors: uerrs}
	}

	rs, err := Load(merged.Rules, u, imps, opts...)
	if err != nil {
		return nil, err
	}
	cat := &Catalog{Rules: rs, Universe: u, Imports: imps, Warnings: AnalyzeChains(rs.Rules())}
	for _, w := range cat.Warnings {
		o.logger.Warn("rule chain", "path", strings.Join(w.Path, " -> "), "message", w.Message)
	}
	o.logger.Info("catalog loaded", "files", len(names), "rules", rs.Len(), "inactive", len(rs.Inactive()))
	return cat, nil
}

func mergeFile(dst, src *File, name string, errs *[]error) {
	dst.Imports = append(dst.Imports, src.Imports...)
	for cls, rec := range src.Classes {
		if _, dup := dst.Classes[cls]; dup {
			*errs = append(*errs, &PatternSyntaxError{Field: "classes", Code: ErrDuplicateName,
				Message: fmt.Sprintf("class %s declared twice", cls), Pos: name})
			continue
		}
		dst.Classes[cls] = rec
	}
	dst.Methods = append(dst.Methods, src.Methods...)
	dst.Rules = append(dst.Rules, src.Rules...)
}

// LoadDir loads the catalog files of a directory.
func LoadDir(dir string, opts ...Option) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("read catalog: %s is not a directory", dir)
	}
	return LoadFS(os.DirFS(dir), opts...)
}
