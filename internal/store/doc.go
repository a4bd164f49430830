// Package store provides SQLite-backed history of rewrite runs.
//
// A run is one ApplyAll invocation. The store keeps:
//   - Runs: run id, rule set hash, engine version, strategy, timing
//   - Units: per-unit outcome (passes, error text)
//   - Replacements: every committed rewrite with rule, declaration, span,
//     pass and sequence number
//   - Diagnostics: ambiguity and non-termination reports
//
// # Critical Patterns
//
// Append-Only Runs
//   - A run is written in one transaction and never updated
//   - Writing the same run id twice is a no-op
//
// Deterministic Query Results
//   - Replacements are ordered by unit index then seq
//   - Rule statistics are ordered by count descending, then rule id
//     (COLLATE BINARY)
//   - Replacement searches (FindReplacements) are built as queryir values
//     and compiled by querysql against the replacement_rows view, whose
//     order key ends in (unit_idx, seq)
//
// # Database Configuration
//
// Set on every connection through the driver DSN:
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Rule id lists are stored as RFC 8785 canonical JSON (ir.MarshalCanonical).
package store
