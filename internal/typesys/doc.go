// Package typesys implements the bounded type reasoning the matcher needs:
// a declared class universe, subtype and wildcard-containment checks with
// type-variable unification, and a small annotator that infers expression
// types for host units.
//
// It is not a Java type checker. Overload resolution picks the first
// applicable declaration, lambdas and method references are left untyped
// (they are target typed), and anything the universe does not declare is
// unknown.
package typesys
