package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/rxmigrate/internal/imports"
	"github.com/roach88/rxmigrate/internal/ir"
	"github.com/roach88/rxmigrate/internal/syntax"
	"github.com/roach88/rxmigrate/internal/typesys"
)

const refasterClass = "Refaster"

// ruleCompiler turns one record into an ir.Rule. Errors are collected on
// the compiler, not returned, so a catalog reports every broken rule.
type ruleCompiler struct {
	u     *typesys.Universe
	imps  []ir.Import
	table *imports.Table
	rec   *RuleRecord
	errs  []error

	typeVars map[string]bool
	names    map[string]string // declared name -> kind
}

func (c *ruleCompiler) syntaxErr(field, code, format string, args ...any) {
	c.errs = append(c.errs, &PatternSyntaxError{
		RuleID: c.rec.ID, Field: field, Code: code, Pos: c.rec.Pos,
		Message: fmt.Sprintf(format, args...),
	})
}

func (c *ruleCompiler) unsupported(field, code, format string, args ...any) {
	c.errs = append(c.errs, &UnsupportedConstructError{
		RuleID: c.rec.ID, Field: field, Code: code, Pos: c.rec.Pos,
		Message: fmt.Sprintf(format, args...),
	})
}

func (c *ruleCompiler) declare(name, kind string) {
	if prev, ok := c.names[name]; ok {
		c.unsupported(kind, ErrDuplicateName, "%s %q already declared as %s", kind, name, prev)
		return
	}
	c.names[name] = kind
}

// compileRecord builds the rule. It returns nil when any error was recorded.
func compileRecord(rec *RuleRecord, u *typesys.Universe, imps []ir.Import) (*ir.Rule, []error) {
	c := &ruleCompiler{
		u:        u,
		imps:     imps,
		table:    imports.NewTable(imps),
		rec:      rec,
		typeVars: map[string]bool{},
		names:    map[string]string{},
	}
	rule := &ir.Rule{ID: rec.ID}

	policy, err := ir.ParseImportPolicy(rec.ImportPolicy)
	if err != nil {
		c.syntaxErr("import_policy", ErrImportPolicy, "%v", err)
	}
	rule.ImportPolicy = policy

	for _, text := range rec.TypeParams {
		name, _, err := syntax.ParseTypeParam(text)
		if err != nil {
			c.syntaxErr("type_params", ErrTypeSyntax, "%q: %v", text, err)
			continue
		}
		c.declare(name, "type parameter")
		c.typeVars[name] = true
	}
	for _, text := range rec.TypeParams {
		name, upper, err := syntax.ParseTypeParam(text)
		if err != nil {
			continue
		}
		rule.TypeParams = append(rule.TypeParams, ir.TypeParam{Name: name, Upper: c.resolveType("type_params", upper)})
	}

	for _, p := range rec.Params {
		c.declare(p.Name, "variable")
		rule.Vars = append(rule.Vars, ir.PatternVariable{Name: p.Name, Bound: c.parseBound("params", p.Type), Multiplicity: ir.Single})
	}
	if rec.Repeated != nil {
		c.declare(rec.Repeated.Name, "variable")
		bound := c.parseBound("repeated", rec.Repeated.Bound)
		rule.Repeated = &ir.RepeatedParamSpec{Name: rec.Repeated.Name, Bound: bound}
		rule.Vars = append(rule.Vars, ir.PatternVariable{Name: rec.Repeated.Name, Bound: bound, Multiplicity: ir.Repeated})
	}
	for _, p := range rec.Placeholders {
		c.declare(p.Name, "placeholder")
		ph := ir.Placeholder{Name: p.Name, Method: p.Method}
		if ph.Method == "" {
			ph.Method = "apply"
		}
		if p.Returns != "" {
			ph.Returns = c.parseTypeText("placeholders", p.Returns)
		}
		for _, fp := range p.Params {
			param := ir.PlaceholderParam{Name: fp.Name, MayUse: fp.MayUse}
			if fp.Type != "" {
				param.Type = c.parseTypeText("placeholders", fp.Type)
			}
			ph.Params = append(ph.Params, param)
		}
		rule.Placeholders = append(rule.Placeholders, ph)
	}
	if rec.Returns != "" {
		rule.Returns = c.parseTypeText("returns", rec.Returns)
	}

	scope := make([]string, 0, len(c.names))
	for name, kind := range c.names {
		if kind != "type parameter" {
			scope = append(scope, name)
		}
	}
	binder := imports.NewBinder(u, imps)
	binder.TypeVars = c.typeVars

	for i, text := range rec.Before {
		n, err := syntax.ParseExpr(text)
		if err != nil {
			c.syntaxErr(fmt.Sprintf("before[%d]", i), ErrBeforeSyntax, "%q: %v", text, err)
			continue
		}
		for _, alt := range c.expandAnyOf(n, i) {
			rule.Before = append(rule.Before, binder.Bind(alt, scope))
		}
	}

	after, err := syntax.ParseExpr(rec.After)
	if err != nil {
		c.syntaxErr("after", ErrAfterSyntax, "%q: %v", rec.After, err)
	} else {
		if c.refasterCall(after, "anyOf") {
			c.unsupported("after", ErrMisplacedRefasterOp, "Refaster.anyOf is only allowed in before patterns")
		}
		rule.After = binder.Bind(c.stripAsVarargs(after), scope)
	}

	if len(c.errs) > 0 {
		return nil, c.errs
	}
	c.checkResolved(rule)
	validateRule(c, rule)
	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return rule, nil
}

// parseBound accepts a type, "?" or a "? extends/super" bound.
func (c *ruleCompiler) parseBound(field, text string) ir.Bound {
	text = strings.TrimSpace(text)
	switch {
	case text == "" || text == "?":
		return ir.Bound{Kind: ir.BoundAny}
	case strings.HasPrefix(text, "? extends "):
		return ir.Bound{Kind: ir.BoundExtends, Type: c.parseTypeText(field, strings.TrimPrefix(text, "? extends "))}
	case strings.HasPrefix(text, "? super "):
		return ir.Bound{Kind: ir.BoundSuper, Type: c.parseTypeText(field, strings.TrimPrefix(text, "? super "))}
	}
	return ir.Bound{Kind: ir.BoundExact, Type: c.parseTypeText(field, text)}
}

func (c *ruleCompiler) parseTypeText(field, text string) ir.Type {
	t, err := syntax.ParseType(text)
	if err != nil {
		c.syntaxErr(field, ErrTypeSyntax, "%q: %v", text, err)
		return nil
	}
	return c.resolveType(field, t)
}

func (c *ruleCompiler) resolveType(field string, t ir.Type) ir.Type {
	if t == nil {
		return nil
	}
	t = imports.ResolveType(t, c.table, c.u, c.typeVars)
	if missing := unknownClasses(t, c.u); len(missing) > 0 {
		c.syntaxErr(field, ErrUnresolvedName, "unknown class %s", missing[0])
	}
	return t
}

// refasterCall reports whether n is a call of Refaster.<method>.
func (c *ruleCompiler) refasterCall(n ir.Node, method string) bool {
	call, ok := n.(*ir.Call)
	if !ok {
		return false
	}
	sel, ok := call.Fun.(*ir.Select)
	if !ok || sel.Sel != method {
		return false
	}
	id, ok := sel.X.(*ir.Ident)
	return ok && id.Name == refasterClass
}

// expandAnyOf splits a top-level Refaster.anyOf into its alternatives.
func (c *ruleCompiler) expandAnyOf(n ir.Node, i int) []ir.Node {
	alts := []ir.Node{n}
	if c.refasterCall(n, "anyOf") {
		alts = n.(*ir.Call).Args
		if len(alts) == 0 {
			c.syntaxErr(fmt.Sprintf("before[%d]", i), ErrBeforeSyntax, "Refaster.anyOf needs at least one alternative")
		}
	}
	for _, alt := range alts {
		ir.Walk(alt, func(x ir.Node) bool {
			if c.refasterCall(x, "anyOf") {
				c.unsupported(fmt.Sprintf("before[%d]", i), ErrMisplacedRefasterOp, "nested Refaster.anyOf is not supported")
				return false
			}
			return true
		})
	}
	return alts
}

// stripAsVarargs replaces Refaster.asVarargs(x) by x.
func (c *ruleCompiler) stripAsVarargs(n ir.Node) ir.Node {
	if c.refasterCall(n, "asVarargs") {
		call := n.(*ir.Call)
		if len(call.Args) != 1 {
			c.unsupported("after", ErrMisplacedRefasterOp, "Refaster.asVarargs takes exactly one argument")
			return n
		}
		id, ok := call.Args[0].(*ir.Ident)
		if !ok || c.rec.Repeated == nil || id.Name != c.rec.Repeated.Name {
			c.unsupported("after", ErrRepeatedMisuse, "Refaster.asVarargs must wrap the repeated variable")
		}
		return call.Args[0]
	}
	kids := ir.Children(n)
	for i, k := range kids {
		kids[i] = c.stripAsVarargs(k)
	}
	if len(kids) == 0 {
		return n
	}
	return ir.WithChildren(n, kids)
}

// checkResolved rejects identifiers that are neither declared names, lambda
// parameters, locals nor classes.
func (c *ruleCompiler) checkResolved(rule *ir.Rule) {
	check := func(field string, n ir.Node) {
		for _, name := range ir.FreeNames(n).Slice() {
			if _, ok := c.names[name]; ok {
				continue
			}
			c.syntaxErr(field, ErrUnresolvedName, "unresolved name %q", name)
		}
	}
	for i, alt := range rule.Before {
		check(fmt.Sprintf("before[%d]", i), alt)
	}
	check("after", rule.After)
}
