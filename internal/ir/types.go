package ir

import "strings"

// Type is a sealed interface over the type forms the matcher understands.
type Type interface {
	typ()
}

// Named is a class or interface type with optional type arguments.
// Name is fully qualified once bound; parsers produce it as written.
type Named struct {
	Name string
	Args []Type
}

// TypeVar is a type parameter of a rule, method or class.
type TypeVar struct {
	Name string
}

// WildcardKind distinguishes ?, ? extends B and ? super B.
type WildcardKind int

const (
	WildAny WildcardKind = iota
	WildExtends
	WildSuper
	// WildUnknown stands for a type argument inference could not
	// determine. It prints as ? but, unlike ?, fits any type argument:
	// the host compiler infers it from the surrounding context.
	WildUnknown
)

// IsUnknown reports whether t is an undetermined type argument.
func IsUnknown(t Type) bool {
	w, ok := t.(*Wildcard)
	return ok && w.Kind == WildUnknown
}

// Wildcard is a type argument wildcard.
type Wildcard struct {
	Kind  WildcardKind
	Bound Type
}

// Array is Elem[].
type Array struct {
	Elem Type
}

func (*Named) typ()    {}
func (*TypeVar) typ()  {}
func (*Wildcard) typ() {}
func (*Array) typ()    {}

// TypeEqual reports structural equality of two types.
func TypeEqual(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case *Named:
		y, ok := b.(*Named)
		if !ok || x.Name != y.Name || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !TypeEqual(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	case *TypeVar:
		y, ok := b.(*TypeVar)
		return ok && x.Name == y.Name
	case *Wildcard:
		y, ok := b.(*Wildcard)
		return ok && x.Kind == y.Kind && TypeEqual(x.Bound, y.Bound)
	case *Array:
		y, ok := b.(*Array)
		return ok && TypeEqual(x.Elem, y.Elem)
	}
	return false
}

// MapType rebuilds t bottom-up, replacing every subtype for which f returns
// a non-nil result.
func MapType(t Type, f func(Type) Type) Type {
	if t == nil {
		return nil
	}
	if r := f(t); r != nil {
		return r
	}
	switch x := t.(type) {
	case *Named:
		if len(x.Args) == 0 {
			return x
		}
		args := make([]Type, len(x.Args))
		for i, a := range x.Args {
			args[i] = MapType(a, f)
		}
		return &Named{Name: x.Name, Args: args}
	case *Wildcard:
		return &Wildcard{Kind: x.Kind, Bound: MapType(x.Bound, f)}
	case *Array:
		return &Array{Elem: MapType(x.Elem, f)}
	}
	return t
}

// TypeVars returns the names of type variables occurring in t, in order of
// first occurrence.
func TypeVars(t Type) []string {
	var out []string
	seen := map[string]bool{}
	MapType(t, func(x Type) Type {
		if v, ok := x.(*TypeVar); ok && !seen[v.Name] {
			seen[v.Name] = true
			out = append(out, v.Name)
		}
		return nil
	})
	return out
}

// TypeString renders t using simple class names.
func TypeString(t Type) string {
	var b strings.Builder
	writeType(&b, t, false)
	return b.String()
}

// QualifiedTypeString renders t using fully qualified class names.
func QualifiedTypeString(t Type) string {
	var b strings.Builder
	writeType(&b, t, true)
	return b.String()
}

func writeType(b *strings.Builder, t Type, qualified bool) {
	switch x := t.(type) {
	case nil:
		b.WriteString("<unknown>")
	case *Named:
		if qualified {
			b.WriteString(x.Name)
		} else {
			b.WriteString(SimpleName(x.Name))
		}
		if len(x.Args) > 0 {
			b.WriteByte('<')
			for i, a := range x.Args {
				if i > 0 {
					b.WriteString(", ")
				}
				writeType(b, a, qualified)
			}
			b.WriteByte('>')
		}
	case *TypeVar:
		b.WriteString(x.Name)
	case *Wildcard:
		b.WriteByte('?')
		switch x.Kind {
		case WildExtends:
			b.WriteString(" extends ")
			writeType(b, x.Bound, qualified)
		case WildSuper:
			b.WriteString(" super ")
			writeType(b, x.Bound, qualified)
		}
	case *Array:
		writeType(b, x.Elem, qualified)
		b.WriteString("[]")
	}
}
