package compiler

// File is the decoded content of one catalog file. CUE and YAML catalogs
// decode into the same structure.
type File struct {
	Imports []string               `json:"imports,omitempty" yaml:"imports,omitempty"`
	Classes map[string]ClassRecord `json:"classes,omitempty" yaml:"classes,omitempty"`
	Methods []MethodRecord         `json:"methods,omitempty" yaml:"methods,omitempty"`
	Rules   []RuleRecord           `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// RuleRecord is one rule as written in a catalog.
type RuleRecord struct {
	ID           string              `json:"id" yaml:"id"`
	Doc          string              `json:"doc,omitempty" yaml:"doc,omitempty"`
	TypeParams   []string            `json:"type_params,omitempty" yaml:"type_params,omitempty"`
	Params       []ParamRecord       `json:"params,omitempty" yaml:"params,omitempty"`
	Placeholders []PlaceholderRecord `json:"placeholders,omitempty" yaml:"placeholders,omitempty"`
	Repeated     *RepeatedRecord     `json:"repeated,omitempty" yaml:"repeated,omitempty"`
	Before       []string            `json:"before" yaml:"before"`
	After        string              `json:"after" yaml:"after"`
	Returns      string              `json:"returns,omitempty" yaml:"returns,omitempty"`
	ImportPolicy string              `json:"import_policy,omitempty" yaml:"import_policy,omitempty"`
	// Annotated is false for illustrative before/after pairs that are kept
	// in the catalog but never applied. Absent means true.
	Annotated *bool `json:"annotated,omitempty" yaml:"annotated,omitempty"`

	// Pos locates the record in its source file, for messages.
	Pos string `json:"-" yaml:"-"`
}

// IsAnnotated reports whether the record is an active rule.
func (r *RuleRecord) IsAnnotated() bool {
	return r.Annotated == nil || *r.Annotated
}

// ParamRecord declares a single pattern variable. Type is a type, or a
// wildcard bound such as "? extends Throwable".
type ParamRecord struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// RepeatedRecord declares the repeated (varargs) pattern variable.
type RepeatedRecord struct {
	Name  string `json:"name" yaml:"name"`
	Bound string `json:"bound" yaml:"bound"`
}

// PlaceholderRecord declares a placeholder.
type PlaceholderRecord struct {
	Name    string                   `json:"name" yaml:"name"`
	Returns string                   `json:"returns,omitempty" yaml:"returns,omitempty"`
	Method  string                   `json:"method,omitempty" yaml:"method,omitempty"`
	Params  []PlaceholderParamRecord `json:"params,omitempty" yaml:"params,omitempty"`
}

// PlaceholderParamRecord declares a placeholder formal parameter.
type PlaceholderParamRecord struct {
	Name   string `json:"name" yaml:"name"`
	Type   string `json:"type,omitempty" yaml:"type,omitempty"`
	MayUse bool   `json:"may_use,omitempty" yaml:"may_use,omitempty"`
}

// ClassRecord declares a class of the type universe.
type ClassRecord struct {
	Params []string `json:"params,omitempty" yaml:"params,omitempty"`
	Supers []string `json:"supers,omitempty" yaml:"supers,omitempty"`
}

// MethodRecord declares a method signature of the type universe.
type MethodRecord struct {
	Owner      string   `json:"owner" yaml:"owner"`
	Name       string   `json:"name" yaml:"name"`
	Static     bool     `json:"static,omitempty" yaml:"static,omitempty"`
	TypeParams []string `json:"type_params,omitempty" yaml:"type_params,omitempty"`
	Params     []string `json:"params,omitempty" yaml:"params,omitempty"`
	Varargs    bool     `json:"varargs,omitempty" yaml:"varargs,omitempty"`
	Returns    string   `json:"returns" yaml:"returns"`
}
