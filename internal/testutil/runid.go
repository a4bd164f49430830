package testutil

// FixedRunID returns the same run id every time.
//
// Unlike engine.FixedGenerator, which hands out a list of ids once each,
// FixedRunID never runs out. Repeating a run with it produces the same id,
// which is how tests exercise the store's write-once behavior.
//
// Thread-safety: FixedRunID is stateless and safe for concurrent use.
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a generator for id. An empty id becomes
// "test-run-default".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed id. Implements engine.RunIDGenerator.
func (g *FixedRunID) Generate() string {
	return g.id
}
