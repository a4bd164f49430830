package engine

// CycleDetector remembers every state each declaration of a unit has been
// in, keyed by tree hash. A detector belongs to a single Apply call and is
// not safe for concurrent use.
//
// A rewrite system oscillates when the same state comes back:
//
//	Flowable.a(x) -> Flowable.b(x) -> Flowable.a(x) -> ...  <- CYCLE DETECTED
//
// The pass quota alone would stop such a unit only after MaxPasses; the
// detector reports it as soon as the state repeats and names the rules
// involved.
//
// Distinction from QuotaEnforcer:
//   - Cycle detection: catches oscillation (A -> B -> A)
//   - Pass quota: catches unbounded growth (A -> f(A) -> f(f(A)) ...)
type CycleDetector struct {
	history map[string]map[string]int // decl -> state hash -> pass
}

// NewCycleDetector creates a new cycle detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{
		history: make(map[string]map[string]int),
	}
}

// Seen reports the pass after which decl was last in the given state.
func (c *CycleDetector) Seen(decl, hash string) (int, bool) {
	pass, ok := c.history[decl][hash]
	return pass, ok
}

// Record notes that decl reached the given state after pass.
func (c *CycleDetector) Record(decl, hash string, pass int) {
	if c.history[decl] == nil {
		c.history[decl] = make(map[string]int)
	}
	c.history[decl][hash] = pass
}
