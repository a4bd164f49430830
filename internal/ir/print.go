package ir

import "strings"

// BinaryPrecedence returns the binding strength of a binary operator;
// higher binds tighter. Unknown operators return 0.
func BinaryPrecedence(op string) int {
	switch op {
	case "||":
		return 1
	case "&&":
		return 2
	case "==", "!=":
		return 3
	case "<", ">", "<=", ">=":
		return 4
	case "+", "-":
		return 5
	case "*", "/", "%":
		return 6
	}
	return 0
}

// Format renders a tree as single-line source text.
func Format(n Node) string {
	var p printer
	p.node(n)
	return p.b.String()
}

type printer struct {
	b strings.Builder
}

func (p *printer) node(n Node) {
	switch x := n.(type) {
	case nil:
		return
	case *Ident:
		p.b.WriteString(x.Name)
	case *ClassRef:
		if x.Style == RefQualified && !x.Introduced {
			p.b.WriteString(x.Name)
		} else {
			p.b.WriteString(x.Simple())
		}
	case *Lit:
		p.b.WriteString(x.Value)
	case *Select:
		if c, ok := x.X.(*ClassRef); ok && c.Style == RefStatic && !c.Introduced {
			p.b.WriteString(x.Sel)
			return
		}
		p.operand(x.X)
		p.b.WriteByte('.')
		p.b.WriteString(x.Sel)
	case *Call:
		p.call(x)
	case *MethodRef:
		p.operand(x.X)
		p.b.WriteString("::")
		p.b.WriteString(x.Name)
	case *Lambda:
		p.lambda(x)
	case *New:
		p.b.WriteString("new ")
		p.b.WriteString(TypeString(x.Type))
		if x.Diamond {
			p.b.WriteString("<>")
		}
		p.args(x.Args)
	case *Binary:
		prec := BinaryPrecedence(x.Op)
		p.binaryOperand(x.X, prec, false)
		p.b.WriteString(" " + x.Op + " ")
		p.binaryOperand(x.Y, prec, true)
	case *Unary:
		p.b.WriteString(x.Op)
		p.operand(x.X)
	case *Block:
		if len(x.Stmts) == 0 {
			p.b.WriteString("{}")
			return
		}
		p.b.WriteString("{ ")
		for i, s := range x.Stmts {
			if i > 0 {
				p.b.WriteByte(' ')
			}
			p.node(s)
		}
		p.b.WriteString(" }")
	case *Return:
		p.b.WriteString("return")
		if x.X != nil {
			p.b.WriteByte(' ')
			p.node(x.X)
		}
		p.b.WriteByte(';')
	case *Throw:
		p.b.WriteString("throw ")
		p.node(x.X)
		p.b.WriteByte(';')
	case *Local:
		p.b.WriteString(TypeString(x.Type) + " " + x.Name)
		if x.Value != nil {
			p.b.WriteString(" = ")
			p.node(x.Value)
		}
		p.b.WriteByte(';')
	case *ExprStmt:
		p.node(x.X)
		p.b.WriteByte(';')
	}
}

func (p *printer) call(x *Call) {
	sel, isSel := x.Fun.(*Select)
	if isSel && len(x.TypeArgs) > 0 {
		p.operand(sel.X)
		p.b.WriteString(".<")
		for i, t := range x.TypeArgs {
			if i > 0 {
				p.b.WriteString(", ")
			}
			p.b.WriteString(TypeString(t))
		}
		p.b.WriteByte('>')
		p.b.WriteString(sel.Sel)
	} else {
		p.node(x.Fun)
	}
	p.args(x.Args)
}

func (p *printer) args(args []Node) {
	p.b.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			p.b.WriteString(", ")
		}
		p.node(a)
	}
	p.b.WriteByte(')')
}

func (p *printer) lambda(x *Lambda) {
	switch {
	case len(x.Params) == 1 && x.Params[0].Type == nil:
		p.b.WriteString(x.Params[0].Name)
	default:
		p.b.WriteByte('(')
		for i, prm := range x.Params {
			if i > 0 {
				p.b.WriteString(", ")
			}
			if prm.Type != nil {
				p.b.WriteString(TypeString(prm.Type) + " ")
			}
			p.b.WriteString(prm.Name)
		}
		p.b.WriteByte(')')
	}
	p.b.WriteString(" -> ")
	p.node(x.Body)
}

// operand prints n in receiver position, parenthesized when it would
// otherwise bind wrongly.
func (p *printer) operand(n Node) {
	switch n.(type) {
	case *Binary, *Lambda, *Unary:
		p.b.WriteByte('(')
		p.node(n)
		p.b.WriteByte(')')
	default:
		p.node(n)
	}
}

func (p *printer) binaryOperand(n Node, prec int, right bool) {
	wrap := false
	switch x := n.(type) {
	case *Lambda:
		wrap = true
	case *Binary:
		cp := BinaryPrecedence(x.Op)
		wrap = cp < prec || (right && cp == prec)
	}
	if wrap {
		p.b.WriteByte('(')
		p.node(n)
		p.b.WriteByte(')')
		return
	}
	p.node(n)
}
