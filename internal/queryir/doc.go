// Package queryir is a small query representation for searching recorded
// rewrite runs.
//
// Searches are built as values (Select with a Predicate tree) and compiled
// to SQL by package querysql. Keeping the search as data lets callers
// compose filters from flags without assembling SQL strings, and lets the
// compiler check every field against the table it reads.
//
// # Query Forms
//
//   - Select(from, bindings, filter, limit): read one table or view
//   - Predicates: Equals, Glob, And
//
// Not supported: joins, OR, aggregation, subqueries. Views in the store
// schema carry the joins a search needs.
//
// # Sealed Interfaces
//
// Query and Predicate are sealed with marker methods, so backends can
// switch exhaustively over the node types:
//
//	switch p := pred.(type) {
//	case *Equals:
//	case *Glob:
//	case *And:
//	}
//
// # Literal Values
//
// Equals compares against ir.Value literals. Only scalars (String, Int,
// Bool) can be compared; Validate rejects arrays and objects.
package queryir
