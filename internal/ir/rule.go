package ir

import (
	"fmt"
	"slices"
)

// ImportPolicy decides how references introduced by a rule are named.
type ImportPolicy int

const (
	// PolicyDefault imports classes and qualifies static members by class.
	PolicyDefault ImportPolicy = iota
	// PolicyClassDirectly statically imports static members.
	PolicyClassDirectly
)

func (p ImportPolicy) String() string {
	switch p {
	case PolicyClassDirectly:
		return "IMPORT_CLASS_DIRECTLY"
	default:
		return "DEFAULT"
	}
}

// ParseImportPolicy accepts the catalog spelling of a policy. The empty
// string is PolicyDefault.
func ParseImportPolicy(s string) (ImportPolicy, error) {
	switch s {
	case "", "DEFAULT":
		return PolicyDefault, nil
	case "IMPORT_CLASS_DIRECTLY":
		return PolicyClassDirectly, nil
	}
	return PolicyDefault, fmt.Errorf("unknown import policy %q", s)
}

// BoundKind is the shape of a pattern variable's declared type bound.
type BoundKind int

const (
	BoundAny BoundKind = iota
	BoundExact
	BoundExtends
	BoundSuper
)

func (k BoundKind) String() string {
	switch k {
	case BoundExact:
		return "exact"
	case BoundExtends:
		return "extends"
	case BoundSuper:
		return "super"
	default:
		return "any"
	}
}

// Bound is a pattern variable's type constraint.
type Bound struct {
	Kind BoundKind
	Type Type
}

func (b Bound) String() string {
	switch b.Kind {
	case BoundAny:
		return "?"
	case BoundExact:
		return TypeString(b.Type)
	default:
		return "? " + b.Kind.String() + " " + TypeString(b.Type)
	}
}

// Multiplicity of a pattern variable.
type Multiplicity int

const (
	Single Multiplicity = iota
	Repeated
)

// PatternVariable is a free variable of a rule.
type PatternVariable struct {
	Name         string
	Bound        Bound
	Multiplicity Multiplicity
}

// PlaceholderParam is a formal parameter of a placeholder.
type PlaceholderParam struct {
	Name   string
	Type   Type
	MayUse bool // the captured body may, but need not, reference it
}

// Placeholder abstracts a captured sub-expression.
type Placeholder struct {
	Name    string
	Params  []PlaceholderParam
	Returns Type
	// Method is the functional interface method used when a function value
	// is supplied instead of a lambda.
	Method string
}

// TypeParam is a rule type parameter with an optional upper bound.
type TypeParam struct {
	Name  string
	Upper Type
}

// RepeatedParamSpec names the repeated variable of a rule.
type RepeatedParamSpec struct {
	Name  string
	Bound Bound
}

// Rule is one compiled catalog entry.
type Rule struct {
	ID           string
	TypeParams   []TypeParam
	Vars         []PatternVariable
	Placeholders []Placeholder
	Before       []Node // alternatives, in declaration order
	After        Node
	Returns      Type
	ImportPolicy ImportPolicy
	Repeated     *RepeatedParamSpec
}

// Var looks up a pattern variable by name.
func (r *Rule) Var(name string) (PatternVariable, bool) {
	for _, v := range r.Vars {
		if v.Name == name {
			return v, true
		}
	}
	return PatternVariable{}, false
}

// Placeholder looks up a placeholder by name.
func (r *Rule) Placeholder(name string) (Placeholder, bool) {
	for _, p := range r.Placeholders {
		if p.Name == name {
			return p, true
		}
	}
	return Placeholder{}, false
}

// TypeParam looks up a type parameter by name.
func (r *Rule) TypeParam(name string) (TypeParam, bool) {
	for _, p := range r.TypeParams {
		if p.Name == name {
			return p, true
		}
	}
	return TypeParam{}, false
}

// InactiveRule is a well-formed catalog entry excluded from matching.
type InactiveRule struct {
	ID     string
	Reason string
}

// RuleSet is the ordered, immutable collection of active rules.
// Accessors return copies of internal slices; rules themselves must be
// treated as read-only by every consumer.
type RuleSet struct {
	rules    []*Rule
	inactive []InactiveRule
	imports  []Import
	index    map[string]int
	hash     string
}

// NewRuleSet builds a RuleSet. Rules keep the given order.
func NewRuleSet(rules []*Rule, inactive []InactiveRule, imports []Import) *RuleSet {
	rs := &RuleSet{
		rules:    slices.Clone(rules),
		inactive: slices.Clone(inactive),
		imports:  slices.Clone(imports),
		index:    make(map[string]int, len(rules)),
	}
	for i, r := range rs.rules {
		rs.index[r.ID] = i
	}
	rs.hash = ruleSetHash(rs.rules)
	return rs
}

// Rules returns the active rules in declaration order.
func (rs *RuleSet) Rules() []*Rule { return slices.Clone(rs.rules) }

// Len returns the number of active rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// At returns the i-th rule in declaration order.
func (rs *RuleSet) At(i int) *Rule { return rs.rules[i] }

// Lookup finds an active rule by id.
func (rs *RuleSet) Lookup(id string) (*Rule, bool) {
	i, ok := rs.index[id]
	if !ok {
		return nil, false
	}
	return rs.rules[i], true
}

// Inactive returns catalog entries that were loaded but not activated.
func (rs *RuleSet) Inactive() []InactiveRule { return slices.Clone(rs.inactive) }

// Imports returns the import table the rule templates were written against.
func (rs *RuleSet) Imports() []Import { return slices.Clone(rs.imports) }

// Hash is a content hash over every active rule.
func (rs *RuleSet) Hash() string { return rs.hash }
