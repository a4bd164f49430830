// Package ir defines the expression trees, types and rule model shared by
// every other rxmigrate package.
//
// This package contains type definitions and pure tree utilities only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Trees are values: rewriting builds new nodes, it never mutates a node
//     reachable from another tree (see WithChildren).
//   - Class references are canonical (fully qualified ClassRef nodes) while
//     the engine runs; the written form is restored only when rendering.
//   - Structural equality and hashes ignore spans and inferred types.
//   - A RuleSet is immutable after construction.
package ir
