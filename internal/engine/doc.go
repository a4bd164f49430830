// Package engine rewrites canonical units with a compiled rule set.
//
// The engine matches rule patterns against expression trees, binds pattern
// variables and placeholders, instantiates templates and repeats until no
// rule applies.
//
// Pass Structure:
//  1. Plan: walk every declaration and collect at most one match per node,
//     honoring the traversal strategy (Outermost or Innermost)
//  2. Resolve conflicts: matches whose source spans cross are both dropped
//     and reported as MATCH_AMBIGUITY
//  3. Commit: instantiate the templates and splice them in
//  4. Re-type the changed unit
//
// A unit is done when a pass commits nothing. A declaration that returns
// to an earlier state, or a unit that needs more than MaxPasses passes,
// is NON_TERMINATION: the unit is left unchanged.
//
// CRITICAL PATTERNS:
//
// Deterministic Order:
// Rules are tried in declaration order and alternatives in declaration
// order; the first success wins. Replacements are numbered by a logical
// Clock, never by wall-clock time.
//
// Immutable Rule Set:
// An Engine is read-only after New. Apply works on a clone of its unit, so
// independent units may be rewritten concurrently (see ApplyAll).
package engine
