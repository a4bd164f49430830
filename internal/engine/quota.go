package engine

// QuotaEnforcer counts the passes over one unit and enforces the pass
// limit. Together with the cycle detector it guarantees that Apply
// terminates for every catalog.
type QuotaEnforcer struct {
	maxPasses int
	current   int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
func NewQuotaEnforcer(maxPasses int) *QuotaEnforcer {
	return &QuotaEnforcer{maxPasses: maxPasses}
}

// Check counts the next pass. It returns a non-nil error when that pass
// would exceed the limit.
func (q *QuotaEnforcer) Check(unit string) *NonTerminationError {
	q.current++
	if q.current > q.maxPasses {
		return &NonTerminationError{
			Unit:   unit,
			Passes: q.current - 1,
			Limit:  q.maxPasses,
		}
	}
	return nil
}
