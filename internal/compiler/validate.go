package compiler

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-set/v3"

	"github.com/roach88/rxmigrate/internal/ir"
)

// validateRule checks the structural invariants of a compiled rule. It
// records every violation on c and does not stop at the first one.
func validateRule(c *ruleCompiler, rule *ir.Rule) {
	fields := make([]string, len(rule.Before))
	for i := range rule.Before {
		fields[i] = fmt.Sprintf("before[%d]", i)
	}

	// Lambda parameters and locals of a pattern must not shadow declared names.
	for i, alt := range rule.Before {
		checkShadowing(c, fields[i], alt)
	}
	checkShadowing(c, "after", rule.After)

	// E210: the template may only use what every alternative binds.
	afterNames := declaredIn(c, rule.After)
	for i, alt := range rule.Before {
		bound := declaredIn(c, alt)
		for _, name := range afterNames.Slice() {
			if !bound.Contains(name) {
				c.unsupported(fields[i], ErrAfterUnbound, "after uses %q, which this alternative does not bind", name)
			}
		}
	}

	// E211: repeated variable only as the trailing argument.
	if rule.Repeated != nil {
		for i, alt := range rule.Before {
			checkRepeated(c, fields[i], rule.Repeated.Name, alt)
		}
		checkRepeated(c, "after", rule.Repeated.Name, rule.After)
	}

	// E212: placeholder invocations.
	for i, alt := range rule.Before {
		checkPlaceholders(c, rule, fields[i], alt, true)
	}
	checkPlaceholders(c, rule, "after", rule.After, false)

	// E213: explicit type arguments in the template must be fixed by every
	// alternative.
	used := explicitTypeVars(rule.After)
	if len(used) > 0 {
		for i, alt := range rule.Before {
			fixed := fixedTypeVars(rule, declaredIn(c, alt))
			for _, tv := range used {
				if !fixed.Contains(tv) {
					c.unsupported(fields[i], ErrIncompatibleAlts,
						"type argument %s of the after template is not determined by this alternative", tv)
				}
			}
		}
	}
}

// declaredIn returns the pattern variables and placeholders referenced by n.
func declaredIn(c *ruleCompiler, n ir.Node) *set.Set[string] {
	out := set.New[string](4)
	for _, name := range ir.FreeNames(n).Slice() {
		if kind, ok := c.names[name]; ok && kind != "type parameter" {
			out.Insert(name)
		}
	}
	return out
}

func checkShadowing(c *ruleCompiler, field string, n ir.Node) {
	ir.Walk(n, func(x ir.Node) bool {
		var names []string
		switch y := x.(type) {
		case *ir.Lambda:
			for _, p := range y.Params {
				names = append(names, p.Name)
			}
		case *ir.Local:
			names = append(names, y.Name)
		}
		for _, name := range names {
			if kind, ok := c.names[name]; ok {
				c.unsupported(field, ErrDuplicateName, "%q shadows the %s of the same name", name, kind)
			}
		}
		return true
	})
}

func checkRepeated(c *ruleCompiler, field, name string, n ir.Node) {
	total, trailing := 0, 0
	ir.Walk(n, func(x ir.Node) bool {
		if id, ok := x.(*ir.Ident); ok && id.Name == name {
			total++
		}
		var args []ir.Node
		switch y := x.(type) {
		case *ir.Call:
			args = y.Args
		case *ir.New:
			args = y.Args
		}
		if len(args) > 0 {
			if id, ok := args[len(args)-1].(*ir.Ident); ok && id.Name == name {
				trailing++
			}
		}
		return true
	})
	switch {
	case total > trailing:
		c.unsupported(field, ErrRepeatedMisuse, "repeated variable %q must be the last argument of a call", name)
	case total > 1:
		c.unsupported(field, ErrRepeatedMisuse, "repeated variable %q occurs more than once", name)
	}
}

func checkPlaceholders(c *ruleCompiler, rule *ir.Rule, field string, n ir.Node, before bool) {
	calls := set.New[*ir.Ident](4)
	ir.Walk(n, func(x ir.Node) bool {
		call, ok := x.(*ir.Call)
		if !ok {
			return true
		}
		id, ok := call.Fun.(*ir.Ident)
		if !ok {
			return true
		}
		ph, ok := rule.Placeholder(id.Name)
		if !ok {
			return true
		}
		calls.Insert(id)
		if len(call.Args) != len(ph.Params) {
			c.unsupported(field, ErrPlaceholderMisuse, "placeholder %s takes %d arguments, got %d",
				ph.Name, len(ph.Params), len(call.Args))
			return true
		}
		if !before {
			return true
		}
		var seen []string
		for _, a := range call.Args {
			arg, ok := a.(*ir.Ident)
			if !ok {
				c.unsupported(field, ErrPlaceholderMisuse, "placeholder %s arguments must be names", ph.Name)
				break
			}
			if _, isPH := rule.Placeholder(arg.Name); isPH || slices.Contains(seen, arg.Name) {
				c.unsupported(field, ErrPlaceholderMisuse, "placeholder %s argument %q is not a distinct variable", ph.Name, arg.Name)
				break
			}
			seen = append(seen, arg.Name)
		}
		return true
	})
	ir.Walk(n, func(x ir.Node) bool {
		if id, ok := x.(*ir.Ident); ok && !calls.Contains(id) {
			if _, isPH := rule.Placeholder(id.Name); isPH {
				c.unsupported(field, ErrPlaceholderMisuse, "placeholder %s must be invoked", id.Name)
			}
		}
		return true
	})
}

// explicitTypeVars lists the rule type variables used as explicit type
// arguments in n.
func explicitTypeVars(n ir.Node) []string {
	var out []string
	ir.Walk(n, func(x ir.Node) bool {
		if call, ok := x.(*ir.Call); ok {
			for _, t := range call.TypeArgs {
				for _, tv := range ir.TypeVars(t) {
					if !slices.Contains(out, tv) {
						out = append(out, tv)
					}
				}
			}
		}
		return true
	})
	return out
}

// fixedTypeVars returns the type variables a match of an alternative using
// the given names will solve: those in the bounds of its variables and the
// placeholder signatures.
func fixedTypeVars(rule *ir.Rule, names *set.Set[string]) *set.Set[string] {
	out := set.New[string](4)
	add := func(t ir.Type) {
		for _, tv := range ir.TypeVars(t) {
			out.Insert(tv)
		}
	}
	for _, v := range rule.Vars {
		if names.Contains(v.Name) {
			add(v.Bound.Type)
		}
	}
	for _, ph := range rule.Placeholders {
		if names.Contains(ph.Name) {
			add(ph.Returns)
			for _, p := range ph.Params {
				add(p.Type)
			}
		}
	}

	// Upper bounds of fixed variables are fixed too.
	for changed := true; changed; {
		changed = false
		for _, tp := range rule.TypeParams {
			if out.Contains(tp.Name) {
				for _, tv := range ir.TypeVars(tp.Upper) {
					if out.Insert(tv) {
						changed = true
					}
				}
			}
		}
	}
	return out
}
