package ir

// Span is a half-open byte range [Start, End) inside one declaration's text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether o lies entirely within s.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// Overlaps reports whether s and o share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Crosses reports whether s and o overlap without either containing the other.
func (s Span) Crosses(o Span) bool {
	return s.Overlaps(o) && !s.Contains(o) && !o.Contains(s)
}

// IsZero reports whether the span was never set.
func (s Span) IsZero() bool {
	return s.Start == 0 && s.End == 0
}

// Meta carries the host-supplied position and inferred type of a node.
// Neither participates in structural equality.
type Meta struct {
	Pos Span
	Typ Type
}

// Node is a sealed interface over expression and statement nodes.
type Node interface {
	Info() *Meta
	node()
}

func (m *Meta) Info() *Meta { return m }

// Ident is a simple name: a variable, lambda parameter, pattern variable or
// placeholder reference, or an unresolved name.
type Ident struct {
	Meta
	Name string
}

// Select is member access X.Sel.
type Select struct {
	Meta
	X   Node
	Sel string
}

// Call is a method or function invocation. Fun is a Select for X.m(...),
// an Ident for an unqualified call.
type Call struct {
	Meta
	Fun      Node
	TypeArgs []Type
	Args     []Node
}

// MethodRef is X::Name.
type MethodRef struct {
	Meta
	X    Node
	Name string
}

// Param is a lambda parameter; Type is nil when implicitly typed.
type Param struct {
	Name string
	Type Type
}

// Lambda is (params) -> body; Body is an expression or a *Block.
type Lambda struct {
	Meta
	Params []Param
	Body   Node
}

// New is a constructor call: new Type(args).
type New struct {
	Meta
	Type    Type
	Diamond bool // written with <> and inferred type arguments
	Args    []Node
}

// LitKind enumerates literal kinds.
type LitKind int

const (
	LitInt LitKind = iota
	LitLong
	LitString
	LitChar
	LitBool
	LitNull
)

// Lit is a literal; Value holds the source text (quotes included for strings).
type Lit struct {
	Meta
	Kind  LitKind
	Value string
}

// Binary is X Op Y.
type Binary struct {
	Meta
	Op string
	X  Node
	Y  Node
}

// Unary is Op X.
type Unary struct {
	Meta
	Op string
	X  Node
}

// Block is a lambda body made of statements.
type Block struct {
	Meta
	Stmts []Node
}

// Return is `return X;` (X may be nil).
type Return struct {
	Meta
	X Node
}

// Throw is `throw X;`.
type Throw struct {
	Meta
	X Node
}

// Local is a local variable declaration `Type Name = Value;`.
type Local struct {
	Meta
	Type  Type
	Name  string
	Value Node
}

// ExprStmt is an expression used as a statement.
type ExprStmt struct {
	Meta
	X Node
}

// RefStyle records how the source wrote a class reference.
type RefStyle int

const (
	RefSimple    RefStyle = iota // Name imported and written as its simple name
	RefQualified                 // written fully qualified
	RefStatic                    // a statically imported member; the enclosing Select was written as the bare member
)

// ClassRef is a resolved reference to a class, used as the receiver of
// static calls, static method references and class literals.
type ClassRef struct {
	Meta
	Name       string // fully qualified
	Style      RefStyle
	Introduced bool // created by a rewrite; Style is decided by Policy at render time
	Policy     ImportPolicy
}

// Simple returns the last segment of the qualified name.
func (c *ClassRef) Simple() string {
	return SimpleName(c.Name)
}

func (*Ident) node()     {}
func (*Select) node()    {}
func (*Call) node()      {}
func (*MethodRef) node() {}
func (*Lambda) node()    {}
func (*New) node()       {}
func (*Lit) node()       {}
func (*Binary) node()    {}
func (*Unary) node()     {}
func (*Block) node()     {}
func (*Return) node()    {}
func (*Throw) node()     {}
func (*Local) node()     {}
func (*ExprStmt) node()  {}
func (*ClassRef) node()  {}

// SimpleName returns the segment after the last dot.
func SimpleName(qualified string) string {
	for i := len(qualified) - 1; i >= 0; i-- {
		if qualified[i] == '.' {
			return qualified[i+1:]
		}
	}
	return qualified
}

// PackageOf returns everything before the last dot.
func PackageOf(qualified string) string {
	for i := len(qualified) - 1; i >= 0; i-- {
		if qualified[i] == '.' {
			return qualified[:i]
		}
	}
	return ""
}
