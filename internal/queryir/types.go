package queryir

import "github.com/roach88/rxmigrate/internal/ir"

// Query is a sealed interface for query nodes.
type Query interface {
	queryNode()
}

// Predicate is a sealed interface for filter nodes.
type Predicate interface {
	predicateNode()
}

// Select reads rows from one table or view.
//
//	SELECT <bindings> FROM <from> WHERE <filter> ORDER BY <stable key> LIMIT <limit>
//
// Bindings maps source columns to result names and must not be empty.
// The result order is fixed by the backend per table, never by the query.
// Limit 0 means no limit.
type Select struct {
	From     string
	Bindings []Binding
	Filter   Predicate // nil selects every row
	Limit    int
}

func (Select) queryNode() {}

// Binding selects one column under a result name. An empty As keeps the
// column name.
type Binding struct {
	Field string
	As    string
}

// Name returns the result name of the binding.
func (b Binding) Name() string {
	if b.As == "" {
		return b.Field
	}
	return b.As
}

// Bind returns bindings that keep the column names.
func Bind(fields ...string) []Binding {
	out := make([]Binding, len(fields))
	for i, f := range fields {
		out[i] = Binding{Field: f}
	}
	return out
}

// Equals is true when a column equals a literal.
//
//	Equals{Field: "rule_id", Value: ir.String("FlowableJust")}
//
// compiles to
//
//	rule_id = ?
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// Glob is true when a text column matches a shell pattern (*, ? and
// [...] classes, case-sensitive).
//
//	Glob{Field: "rule_id", Pattern: "Flowable*"}
type Glob struct {
	Field   string
	Pattern string
}

func (Glob) predicateNode() {}

// And is true when every predicate is true. An empty And is true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// All combines predicates, dropping nils. It returns nil when nothing is
// left and the single predicate when only one is.
func All(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return &And{Predicates: kept}
	}
}
