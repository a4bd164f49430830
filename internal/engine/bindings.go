package engine

import (
	"github.com/hashicorp/go-set/v3"

	"github.com/roach88/rxmigrate/internal/ir"
	"github.com/roach88/rxmigrate/internal/typesys"
)

// Bindings is the result of a successful match: what every pattern
// variable, repeated variable and placeholder of the winning alternative
// stands for in the candidate.
type Bindings struct {
	Values    map[string]ir.Node
	Sequences map[string][]ir.Node
	Closures  map[string]*Closure
	Types     typesys.Subst
	// Locals maps lambda parameters of the pattern to the candidate's names.
	Locals map[string]string
}

func newBindings() *Bindings {
	return &Bindings{
		Values:    make(map[string]ir.Node),
		Sequences: make(map[string][]ir.Node),
		Closures:  make(map[string]*Closure),
		Types:     typesys.Subst{},
		Locals:    make(map[string]string),
	}
}

// reservedNames collects the names a template binder must not take: the
// names free in material the substitution will insert, and the names that
// material declares itself. Closure parameters are neither.
func (b *Bindings) reservedNames() *set.Set[string] {
	out := set.New[string](8)
	add := func(n ir.Node) {
		out.InsertSet(ir.FreeNames(n))
		out.InsertSet(ir.BoundNames(n))
	}
	for _, v := range b.Values {
		add(v)
	}
	for _, seq := range b.Sequences {
		for _, v := range seq {
			add(v)
		}
	}
	for _, c := range b.Closures {
		free := ir.FreeNames(c.Body)
		for _, p := range c.Params {
			free.Remove(p)
		}
		out.InsertSet(free)
		out.InsertSet(ir.BoundNames(c.Body))
	}
	return out
}

// MatchResult describes one match of a rule against a candidate node.
type MatchResult struct {
	Rule        *ir.Rule
	Alternative int
	Bindings    *Bindings
	Decl        string
	Span        ir.Span
	Node        ir.Node
	// Path locates Node inside the declaration body (child indices).
	Path []int
}
