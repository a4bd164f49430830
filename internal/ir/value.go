package ir

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the JSON subset used for canonical
// encodings: strings, integers, booleans, arrays and objects. There are no
// floats and no null.
type Value interface {
	value()
}

type (
	// String is a canonical string value.
	String string
	// Int is a canonical integer value.
	Int int64
	// Bool is a canonical boolean value.
	Bool bool
	// List is an ordered list of values.
	List []Value
	// Object maps keys to values; iterate with SortedKeys.
	Object map[string]Value
)

func (String) value() {}
func (Int) value()    {}
func (Bool) value()   {}
func (List) value()   {}
func (Object) value() {}

// SortedKeys returns keys in UTF-16 code unit order, which differs from Go's
// byte-wise string order outside the BMP.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	for i := 0; i < min(len(a16), len(b16)); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return len(a16) - len(b16)
}

// Encode converts a tree to its canonical value. Spans, inferred types and
// class reference styles are not part of the encoding.
func Encode(n Node) Value {
	switch x := n.(type) {
	case nil:
		return Object{"k": String("nil")}
	case *Ident:
		return Object{"k": String("ident"), "name": String(x.Name)}
	case *ClassRef:
		return Object{"k": String("class"), "name": String(x.Name)}
	case *Lit:
		return Object{"k": String("lit"), "kind": Int(x.Kind), "v": String(x.Value)}
	case *Select:
		return Object{"k": String("select"), "x": Encode(x.X), "sel": String(x.Sel)}
	case *Call:
		return Object{"k": String("call"), "fun": Encode(x.Fun), "targs": encodeTypes(x.TypeArgs), "args": encodeNodes(x.Args)}
	case *MethodRef:
		return Object{"k": String("mref"), "x": Encode(x.X), "name": String(x.Name)}
	case *Lambda:
		params := make(List, len(x.Params))
		for i, p := range x.Params {
			params[i] = Object{"name": String(p.Name), "type": encodeType(p.Type)}
		}
		return Object{"k": String("lambda"), "params": params, "body": Encode(x.Body)}
	case *New:
		return Object{"k": String("new"), "type": encodeType(x.Type), "diamond": Bool(x.Diamond), "args": encodeNodes(x.Args)}
	case *Binary:
		return Object{"k": String("binary"), "op": String(x.Op), "x": Encode(x.X), "y": Encode(x.Y)}
	case *Unary:
		return Object{"k": String("unary"), "op": String(x.Op), "x": Encode(x.X)}
	case *Block:
		return Object{"k": String("block"), "stmts": encodeNodes(x.Stmts)}
	case *Return:
		return Object{"k": String("return"), "x": Encode(x.X)}
	case *Throw:
		return Object{"k": String("throw"), "x": Encode(x.X)}
	case *Local:
		return Object{"k": String("local"), "type": encodeType(x.Type), "name": String(x.Name), "v": Encode(x.Value)}
	case *ExprStmt:
		return Object{"k": String("expr"), "x": Encode(x.X)}
	}
	return Object{"k": String("unknown")}
}

func encodeNodes(ns []Node) List {
	out := make(List, len(ns))
	for i, n := range ns {
		out[i] = Encode(n)
	}
	return out
}

func encodeTypes(ts []Type) List {
	out := make(List, len(ts))
	for i, t := range ts {
		out[i] = encodeType(t)
	}
	return out
}

func encodeType(t Type) Value {
	if t == nil {
		return String("")
	}
	return String(QualifiedTypeString(t))
}
