// Package harness verifies rewrites against expected output.
//
// The core check is Verify: apply an engine to an input unit and compare the
// result structurally, declaration by declaration, with an expected unit.
// Spans, inferred types and the spelling of class references do not take
// part in the comparison; imports do.
//
// # Fixture Format
//
// Fixtures are YAML files:
//
//	name: flowable_filter
//	description: "filter on a Flowable becomes a Flux filter"
//	catalog: ../catalogs/box   # optional, relative to the fixture
//	strategy: outermost        # optional
//	max_passes: 16             # optional
//	input:
//	  name: Example
//	  imports: [io.reactivex.Flowable]
//	  decls:
//	    - name: filtered
//	      expr: Flowable.just(1).filter(i -> i > 2)
//	expected:                  # omitted: the input must come back unchanged
//	  imports: [...]
//	  decls:
//	    - name: filtered
//	      expr: RxJava2Adapter.fluxToFlowable(...)
//	assertions:
//	  - type: rules_applied
//	    rules: [FlowableFilter, FlowableJust, FluxFlowableRoundTrip]
//
// Without a catalog entry the embedded migration catalog is used. The
// expected unit inherits the input's name and vars.
//
// # Assertion Types
//
//   - rules_applied: the exact sequence of rules that fired
//   - rules_contain: the listed rules fired, in this relative order
//   - replacement_count: the number of committed replacements
//   - passes: the number of passes including the quiescent one
//   - diagnostic: a diagnostic with the given code was reported
//   - no_diagnostics: the report carries no diagnostics
//
// # Idempotence
//
// RunFixture re-reads the output the way a user would (marshal, parse) and
// applies the engine again; any further replacement fails the fixture.
// Fixtures that expect a diagnostic skip this check.
package harness
