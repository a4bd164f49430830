package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/rxmigrate/internal/ir"
	"github.com/roach88/rxmigrate/internal/typesys"
)

// compiledRule is a rule with the solver for its type parameters.
type compiledRule struct {
	rule   *ir.Rule
	order  int
	solver *typesys.Solver
}

// ruleIndex pre-filters rules by the head of the candidate node. Rules whose
// alternatives have no fixed head are tried for every node. Candidates are
// always returned in declaration order.
type ruleIndex struct {
	rules  []*compiledRule
	byHead map[string][]int
	any    []int
}

func newRuleIndex(rs *ir.RuleSet, u *typesys.Universe) *ruleIndex {
	ix := &ruleIndex{byHead: make(map[string][]int)}
	for i, r := range rs.Rules() {
		ix.rules = append(ix.rules, &compiledRule{rule: r, order: i, solver: u.NewSolver(r.TypeParams)})
		var heads []string
		wildcard := false
		for _, alt := range r.Before {
			key, ok := patternHead(alt, r)
			if !ok {
				wildcard = true
				break
			}
			if !slices.Contains(heads, key) {
				heads = append(heads, key)
			}
		}
		if wildcard {
			ix.any = append(ix.any, i)
			continue
		}
		for _, key := range heads {
			ix.byHead[key] = append(ix.byHead[key], i)
		}
	}
	return ix
}

// candidates returns the rules that may match n, in declaration order.
func (ix *ruleIndex) candidates(n ir.Node) []*compiledRule {
	keyed := ix.byHead[headKey(n)]
	out := make([]*compiledRule, 0, len(keyed)+len(ix.any))
	i, j := 0, 0
	for i < len(keyed) || j < len(ix.any) {
		switch {
		case j == len(ix.any) || (i < len(keyed) && keyed[i] < ix.any[j]):
			out = append(out, ix.rules[keyed[i]])
			i++
		default:
			out = append(out, ix.rules[ix.any[j]])
			j++
		}
	}
	return out
}

// patternHead is the head key of a pattern root. Variables, placeholder
// invocations and lambdas (which may eta-match any function value) have no
// fixed head.
func patternHead(p ir.Node, r *ir.Rule) (string, bool) {
	switch x := p.(type) {
	case *ir.Ident:
		if _, ok := r.Var(x.Name); ok {
			return "", false
		}
	case *ir.Call:
		if id, ok := x.Fun.(*ir.Ident); ok {
			if _, ok := r.Placeholder(id.Name); ok {
				return "", false
			}
		}
	case *ir.Lambda:
		return "", false
	}
	return headKey(p), true
}

func headKey(n ir.Node) string {
	switch x := n.(type) {
	case *ir.Call:
		switch f := x.Fun.(type) {
		case *ir.Select:
			return "call:" + f.Sel
		case *ir.Ident:
			return "call:" + f.Name
		}
		return "call"
	case *ir.MethodRef:
		return "ref:" + x.Name
	case *ir.Select:
		return "select:" + x.Sel
	case *ir.Binary:
		return "binary:" + x.Op
	case *ir.Unary:
		return "unary:" + x.Op
	}
	return fmt.Sprintf("%T", n)
}
