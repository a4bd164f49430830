package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rxmigrate/internal/ir"
	"github.com/roach88/rxmigrate/internal/testutil"
)

func TestApplyAll_KeepsInputOrder(t *testing.T) {
	cat := boxCatalog(t, cycleRules[:strings.Index(cycleRules, "  - id: BToA")])
	var units []*ir.Unit
	for i := 0; i < 20; i++ {
		u := parseUnit(t, cat.Universe, unitSpec{imports: []string{"com.example.Box"}, decls: []string{fmt.Sprintf("Box.a(%d)", i)}})
		u.Name = fmt.Sprintf("unit-%02d", i)
		units = append(units, u)
	}

	eng := newEngine(cat, WithWorkers(4), WithRunIDGenerator(NewFixedGenerator("run-1")))
	run := eng.ApplyAll(context.Background(), units)

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, cat.Rules.Hash(), run.RuleSetHash)
	assert.Equal(t, ir.EngineVersion, run.EngineVersion)
	require.Len(t, run.Units, 20)
	for i, ur := range run.Units {
		require.NoError(t, ur.Err)
		assert.Equal(t, i, ur.Index)
		assert.Equal(t, fmt.Sprintf("unit-%02d", i), ur.Name)
		assert.Equal(t, []string{fmt.Sprintf("Box.b(%d)", i)}, rendered(ur.Result.Unit))
	}
	assert.Equal(t, 20, run.Replacements())
	assert.Empty(t, run.Failed())
}

func TestApplyAll_WallClock(t *testing.T) {
	cat := boxCatalog(t, cycleRules)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := testutil.NewStepClock(start, 2*time.Second)

	eng := newEngine(cat, WithNow(clock.Now), WithRunIDGenerator(testutil.NewFixedRunID("run-x")))
	first := eng.ApplyAll(context.Background(), nil)
	second := eng.ApplyAll(context.Background(), nil)

	assert.Equal(t, "run-x", first.ID)
	assert.Equal(t, "run-x", second.ID)
	assert.Equal(t, start, first.StartedAt)
	assert.Equal(t, 2*time.Second, first.Duration)
	assert.Equal(t, start.Add(4*time.Second), second.StartedAt)
	assert.Equal(t, int64(4), clock.Reads())
}

func TestApplyAll_Empty(t *testing.T) {
	cat := boxCatalog(t, cycleRules)
	run := newEngine(cat).ApplyAll(context.Background(), nil)
	assert.Empty(t, run.Units)
	assert.NotEmpty(t, run.ID)
}

func TestApplyAll_CanceledContext(t *testing.T) {
	cat := boxCatalog(t, cycleRules)
	unit := parseUnit(t, cat.Universe, unitSpec{imports: []string{"com.example.Box"}, decls: []string{"Box.wrap(1)"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := newEngine(cat).ApplyAll(ctx, []*ir.Unit{unit, unit})
	require.Len(t, run.Units, 2)
	for _, ur := range run.Units {
		assert.ErrorIs(t, ur.Err, context.Canceled)
		assert.Nil(t, ur.Result)
	}
	assert.Len(t, run.Failed(), 2)
}

func TestApplyAll_UnitTimeout(t *testing.T) {
	cat := boxCatalog(t, cycleRules)
	unit := parseUnit(t, cat.Universe, unitSpec{imports: []string{"com.example.Box"}, decls: []string{"Box.wrap(1)"}})

	run := newEngine(cat, WithUnitTimeout(time.Nanosecond), WithAnnotator(slowAnnotator{})).
		ApplyAll(context.Background(), []*ir.Unit{unit})

	require.Len(t, run.Units, 1)
	require.Error(t, run.Units[0].Err)
	assert.ErrorIs(t, run.Units[0].Err, context.DeadlineExceeded)
	assert.Contains(t, run.Units[0].Err.Error(), "timed out")
}

// slowAnnotator outlives any nanosecond deadline.
type slowAnnotator struct{}

func (slowAnnotator) Annotate(*ir.Unit) { time.Sleep(10 * time.Millisecond) }
