package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/rxmigrate/internal/ir"
)

// UnitResult is the outcome of one unit of an ApplyAll run.
type UnitResult struct {
	Index  int
	Name   string
	Result *Result
	Err    error
}

// Run is the outcome of applying the engine to a batch of units.
type Run struct {
	ID            string
	RuleSetHash   string
	EngineVersion string
	Strategy      Strategy
	StartedAt     time.Time
	Duration      time.Duration
	Units         []UnitResult // input order
}

// Failed returns the units that ended with an error.
func (r *Run) Failed() []UnitResult {
	var out []UnitResult
	for _, u := range r.Units {
		if u.Err != nil {
			out = append(out, u)
		}
	}
	return out
}

// Replacements returns the total number of committed replacements.
func (r *Run) Replacements() int {
	total := 0
	for _, u := range r.Units {
		if u.Result != nil {
			total += len(u.Result.Report.Replacements)
		}
	}
	return total
}

// ApplyAll rewrites independent units on a bounded worker pool. Results
// keep the input order regardless of completion order. A unit failure,
// including a per-unit timeout, is recorded in its UnitResult and does not
// stop the other units; cancelling ctx does.
func (e *Engine) ApplyAll(ctx context.Context, units []*ir.Unit) *Run {
	run := &Run{
		ID:            e.runIDs.Generate(),
		RuleSetHash:   e.rules.Hash(),
		EngineVersion: ir.EngineVersion,
		Strategy:      e.strategy,
		StartedAt:     e.now().UTC(),
		Units:         make([]UnitResult, len(units)),
	}

	q := newWorkQueue(len(units))
	for i, u := range units {
		run.Units[i] = UnitResult{Index: i, Name: u.Name}
		q.Push(job{index: i, unit: u})
	}
	q.Close()

	workers := min(e.workers, len(units))
	e.logger.Info("run starting", "run", run.ID, "units", len(units), "workers", workers)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker(ctx, q, run.Units)
		}()
	}
	wg.Wait()

	for i := range run.Units {
		if run.Units[i].Result == nil && run.Units[i].Err == nil {
			run.Units[i].Err = ctx.Err()
		}
	}
	run.Duration = e.now().Sub(run.StartedAt)
	e.logger.Info("run finished", "run", run.ID, "replacements", run.Replacements(),
		"failed", len(run.Failed()), "duration", run.Duration)
	return run
}

// worker drains the queue. Each slot of out is written by exactly one
// worker.
func (e *Engine) worker(ctx context.Context, q *workQueue, out []UnitResult) {
	for {
		if ctx.Err() != nil {
			return
		}
		j, ok := q.TryPop()
		if !ok {
			if q.Drained() {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-q.Wait():
			}
			continue
		}
		res, err := e.applyOne(ctx, j.unit)
		out[j.index].Result, out[j.index].Err = res, err
	}
}

func (e *Engine) applyOne(ctx context.Context, unit *ir.Unit) (*Result, error) {
	if e.timeout <= 0 {
		return e.Apply(ctx, unit)
	}
	uctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	res, err := e.Apply(uctx, unit)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		e.logger.Warn("unit timed out", "unit", unit.Name, "timeout", e.timeout)
		return nil, fmt.Errorf("unit %s: timed out after %s: %w", unit.Name, e.timeout, err)
	}
	return res, err
}
