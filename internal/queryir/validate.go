package queryir

import (
	"errors"
	"fmt"

	"github.com/roach88/rxmigrate/internal/ir"
)

// ErrInvalidQuery wraps every error returned by Validate.
var ErrInvalidQuery = errors.New("invalid query")

// Validate checks the structural rules of a query: a source table, at
// least one binding, named fields, scalar literals, non-empty patterns and
// a non-negative limit. All problems are reported, joined.
//
// Validate does not know table schemas; the backend checks column names.
func Validate(q Query) error {
	v := &validator{}
	v.query(q)
	if len(v.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidQuery, errors.Join(v.errs...))
}

type validator struct {
	errs []error
}

func (v *validator) addf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) query(q Query) {
	switch query := q.(type) {
	case nil:
		v.addf("nil query")
	case Select:
		v.selectNode(query)
	case *Select:
		v.selectNode(*query)
	default:
		v.addf("unknown query type %T", q)
	}
}

func (v *validator) selectNode(s Select) {
	if s.From == "" {
		v.addf("select: empty source")
	}
	if len(s.Bindings) == 0 {
		v.addf("select %s: no bindings", s.From)
	}
	seen := make(map[string]bool, len(s.Bindings))
	for _, b := range s.Bindings {
		if b.Field == "" {
			v.addf("select %s: binding with empty field", s.From)
			continue
		}
		if seen[b.Name()] {
			v.addf("select %s: duplicate binding %q", s.From, b.Name())
		}
		seen[b.Name()] = true
	}
	if s.Limit < 0 {
		v.addf("select %s: negative limit %d", s.From, s.Limit)
	}
	if s.Filter != nil {
		v.predicate(s.Filter)
	}
}

func (v *validator) predicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.addf("nil predicate")
	case Equals:
		v.equals(pred)
	case *Equals:
		v.equals(*pred)
	case Glob:
		v.glob(pred)
	case *Glob:
		v.glob(*pred)
	case And:
		v.and(pred)
	case *And:
		v.and(*pred)
	default:
		v.addf("unknown predicate type %T", p)
	}
}

func (v *validator) equals(eq Equals) {
	if eq.Field == "" {
		v.addf("equals: empty field")
	}
	switch eq.Value.(type) {
	case ir.String, ir.Int, ir.Bool:
	case nil:
		v.addf("equals %s: missing value", eq.Field)
	default:
		v.addf("equals %s: %T is not a scalar", eq.Field, eq.Value)
	}
}

func (v *validator) glob(g Glob) {
	if g.Field == "" {
		v.addf("glob: empty field")
	}
	if g.Pattern == "" {
		v.addf("glob %s: empty pattern", g.Field)
	}
}

func (v *validator) and(a And) {
	for _, p := range a.Predicates {
		v.predicate(p)
	}
}
