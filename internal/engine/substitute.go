package engine

import (
	"slices"

	"github.com/hashicorp/go-set/v3"

	"github.com/roach88/rxmigrate/internal/ir"
)

// instantiate builds the replacement for a match from the rule's after
// template. The result is a fresh tree; bound subtrees are cloned.
func (e *Engine) instantiate(m MatchResult) ir.Node {
	s := &instantiator{rule: m.Rule, b: m.Bindings, reserved: m.Bindings.reservedNames()}
	out := s.node(m.Rule.After, nil)

	info := out.Info()
	info.Pos = m.Span
	info.Typ = m.Node.Info().Typ
	if m.Rule.Returns != nil {
		if t := m.Bindings.Types.Apply(m.Rule.Returns); len(ir.TypeVars(t)) == 0 {
			info.Typ = t
		}
	}
	return out
}

type instantiator struct {
	rule *ir.Rule
	b    *Bindings
	// reserved holds the names used by inserted material; template
	// binders must neither capture nor redeclare them.
	reserved *set.Set[string]
}

// node instantiates a template subtree. env renames template binders.
func (s *instantiator) node(n ir.Node, env map[string]string) ir.Node {
	switch x := n.(type) {
	case nil:
		return nil
	case *ir.Ident:
		if name, ok := env[x.Name]; ok {
			return &ir.Ident{Name: name}
		}
		if v, ok := s.b.Values[x.Name]; ok {
			return ir.Clone(v)
		}
		return &ir.Ident{Name: x.Name}
	case *ir.ClassRef:
		return &ir.ClassRef{Name: x.Name, Style: x.Style, Introduced: true, Policy: s.rule.ImportPolicy}
	case *ir.Call:
		if id, ok := x.Fun.(*ir.Ident); ok {
			if cl, ok := s.b.Closures[id.Name]; ok {
				args := make([]ir.Node, len(x.Args))
				for i, a := range x.Args {
					args[i] = s.node(a, env)
				}
				return cl.Invoke(args...)
			}
		}
		return &ir.Call{Fun: s.node(x.Fun, env), TypeArgs: s.typeArgs(x.TypeArgs), Args: s.args(x.Args, env)}
	case *ir.New:
		out := &ir.New{Type: s.b.Types.Apply(x.Type), Diamond: x.Diamond, Args: s.args(x.Args, env)}
		if len(ir.TypeVars(out.Type)) > 0 {
			if named, ok := out.Type.(*ir.Named); ok {
				out.Type, out.Diamond = &ir.Named{Name: named.Name}, true
			}
		}
		return out
	case *ir.Lambda:
		inner := cloneEnv(env)
		taken := set.New[string](len(x.Params))
		params := make([]ir.Param, len(x.Params))
		types := make([]ir.Type, 0, len(x.Params))
		for i, p := range x.Params {
			name := s.binder(p.Name, taken)
			inner[p.Name] = name
			params[i] = ir.Param{Name: name, Type: p.Type}
			if p.Type != nil {
				types = append(types, p.Type)
			}
		}
		if resolved, ok := s.resolveAll(types); ok {
			k := 0
			for i := range params {
				if params[i].Type != nil {
					params[i].Type = resolved[k]
					k++
				}
			}
		} else {
			for i := range params {
				params[i].Type = nil
			}
		}
		return &ir.Lambda{Params: params, Body: s.node(x.Body, inner)}
	case *ir.Block:
		inner := cloneEnv(env)
		out := &ir.Block{}
		for _, st := range x.Stmts {
			l, ok := st.(*ir.Local)
			if !ok {
				out.Stmts = append(out.Stmts, s.node(st, inner))
				continue
			}
			local := &ir.Local{Type: s.b.Types.Apply(l.Type), Value: s.node(l.Value, inner)}
			local.Name = s.binder(l.Name, set.New[string](0))
			inner[l.Name] = local.Name
			out.Stmts = append(out.Stmts, local)
		}
		return out
	}
	kids := ir.Children(n)
	for i, k := range kids {
		kids[i] = s.node(k, env)
	}
	out := ir.WithChildren(n, kids)
	*out.Info() = ir.Meta{}
	return out
}

// binder picks the name of a template binder: the candidate's name for the
// matching pattern binder when there is one, renamed if inserted material
// would be captured or would redeclare it.
func (s *instantiator) binder(name string, taken *set.Set[string]) string {
	want := name
	if local, ok := s.b.Locals[name]; ok {
		want = local
	}
	out := ir.FreshName(want, func(c string) bool { return s.reserved.Contains(c) || taken.Contains(c) })
	taken.Insert(out)
	return out
}

// args instantiates an argument list, splicing repeated variables.
func (s *instantiator) args(args []ir.Node, env map[string]string) []ir.Node {
	var out []ir.Node
	for _, a := range args {
		if id, ok := a.(*ir.Ident); ok {
			if seq, ok := s.b.Sequences[id.Name]; ok {
				for _, v := range seq {
					out = append(out, ir.Clone(v))
				}
				continue
			}
		}
		out = append(out, s.node(a, env))
	}
	return out
}

// typeArgs substitutes explicit type arguments. The whole list is dropped
// when one of them stays unresolved, leaving inference to the compiler.
func (s *instantiator) typeArgs(ts []ir.Type) []ir.Type {
	if len(ts) == 0 {
		return nil
	}
	out, ok := s.resolveAll(ts)
	if !ok {
		return nil
	}
	return out
}

func (s *instantiator) resolveAll(ts []ir.Type) ([]ir.Type, bool) {
	out := make([]ir.Type, len(ts))
	for i, t := range ts {
		r := s.b.Types.Apply(t)
		if _, wild := r.(*ir.Wildcard); wild || len(ir.TypeVars(r)) > 0 || hasUnknown(r) {
			return nil, false
		}
		out[i] = r
	}
	return out, true
}

// hasUnknown reports whether an unbounded or undetermined wildcard stands
// where inference failed, as in List<?> for an element type never seen.
func hasUnknown(t ir.Type) bool {
	found := false
	ir.MapType(t, func(x ir.Type) ir.Type {
		if w, ok := x.(*ir.Wildcard); ok && (w.Kind == ir.WildAny || w.Kind == ir.WildUnknown) {
			found = true
		}
		return nil
	})
	return found
}

func cloneEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env)+2)
	for k, v := range env {
		out[k] = v
	}
	return out
}

// replaceAll splices the replacements into body. Planned paths never nest,
// so the order does not matter.
func replaceAll(body ir.Node, plan []MatchResult, repls []ir.Node) ir.Node {
	for i, m := range plan {
		body = ir.ReplaceAt(body, slices.Clone(m.Path), repls[i])
	}
	return body
}
