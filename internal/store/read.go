package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/rxmigrate/internal/engine"
)

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID            string        `json:"id"`
	RuleSetHash   string        `json:"ruleset_hash"`
	EngineVersion string        `json:"engine_version"`
	Strategy      string        `json:"strategy"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Units         int           `json:"units"`
	Failed        int           `json:"failed"`
	Replacements  int           `json:"replacements"`
}

// UnitRecord is the stored outcome of one unit.
type UnitRecord struct {
	Index        int                    `json:"index"`
	Name         string                 `json:"name"`
	Passes       int                    `json:"passes"`
	Error        string                 `json:"error,omitempty"`
	Replacements []engine.Replacement   `json:"replacements"`
	Diagnostics  []*engine.RuntimeError `json:"diagnostics,omitempty"`
}

// RunRecord is a stored run with its units.
type RunRecord struct {
	RunSummary
	UnitRecords []UnitRecord `json:"unit_records"`
}

// RuleCount is the number of replacements one rule made in a run.
type RuleCount struct {
	RuleID string `json:"rule"`
	Count  int    `json:"count"`
}

// ReadRun returns a run with every unit, replacement and diagnostic.
// Returns ErrNotFound if the run does not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (*RunRecord, error) {
	sum, err := s.readSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	rec := &RunRecord{RunSummary: sum}

	units, err := s.readUnits(ctx, id)
	if err != nil {
		return nil, err
	}
	reps, err := s.readReplacements(ctx, id)
	if err != nil {
		return nil, err
	}
	diags, err := s.readDiagnostics(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range units {
		units[i].Replacements = reps[units[i].Index]
		if units[i].Replacements == nil {
			units[i].Replacements = []engine.Replacement{}
		}
		units[i].Diagnostics = diags[units[i].Index]
	}
	rec.UnitRecords = units
	return rec, nil
}

const summaryQuery = `
	SELECT r.id, r.ruleset_hash, r.engine_version, r.strategy, r.started_at, r.duration_ms,
		(SELECT COUNT(*) FROM units u WHERE u.run_id = r.id),
		(SELECT COUNT(*) FROM units u WHERE u.run_id = r.id AND u.error != ''),
		(SELECT COUNT(*) FROM replacements p WHERE p.run_id = r.id)
	FROM runs r
`

func scanSummary(row interface{ Scan(...any) error }) (RunSummary, error) {
	var (
		sum     RunSummary
		started string
		ms      int64
	)
	if err := row.Scan(&sum.ID, &sum.RuleSetHash, &sum.EngineVersion, &sum.Strategy, &started, &ms,
		&sum.Units, &sum.Failed, &sum.Replacements); err != nil {
		return sum, err
	}
	t, err := parseTime(started)
	if err != nil {
		return sum, err
	}
	sum.StartedAt = t
	sum.Duration = time.Duration(ms) * time.Millisecond
	return sum, nil
}

func (s *Store) readSummary(ctx context.Context, id string) (RunSummary, error) {
	sum, err := scanSummary(s.db.QueryRowContext(ctx, summaryQuery+" WHERE r.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return sum, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return sum, fmt.Errorf("read run %s: %w", id, err)
	}
	return sum, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	q := summaryQuery + " ORDER BY r.started_at DESC, r.id COLLATE BINARY DESC"
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := []RunSummary{}
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// LatestRun returns the id of the most recent run, or ErrNotFound.
func (s *Store) LatestRun(ctx context.Context) (string, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("no runs: %w", ErrNotFound)
	}
	return runs[0].ID, nil
}

func (s *Store) readUnits(ctx context.Context, runID string) ([]UnitRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, name, passes, error
		FROM units
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	out := []UnitRecord{}
	for rows.Next() {
		var u UnitRecord
		if err := rows.Scan(&u.Index, &u.Name, &u.Passes, &u.Error); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return out, nil
}

// readReplacements returns the replacements of a run keyed by unit index,
// each list in seq order.
func (s *Store) readReplacements(ctx context.Context, runID string) (map[int][]engine.Replacement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unit_idx, seq, rule_id, decl, span_start, span_end, pass
		FROM replacements
		WHERE run_id = ?
		ORDER BY unit_idx ASC, seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query replacements: %w", err)
	}
	defer rows.Close()

	out := make(map[int][]engine.Replacement)
	for rows.Next() {
		var (
			idx int
			r   engine.Replacement
		)
		if err := rows.Scan(&idx, &r.Seq, &r.RuleID, &r.Decl, &r.Span.Start, &r.Span.End, &r.Pass); err != nil {
			return nil, fmt.Errorf("scan replacement: %w", err)
		}
		out[idx] = append(out[idx], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replacements: %w", err)
	}
	return out, nil
}

func (s *Store) readDiagnostics(ctx context.Context, runID string) (map[int][]*engine.RuntimeError, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.unit_idx, d.code, d.message, u.name, d.decl, d.span_start, d.span_end, d.pass, d.rules
		FROM diagnostics d
		JOIN units u ON u.run_id = d.run_id AND u.idx = d.unit_idx
		WHERE d.run_id = ?
		ORDER BY d.unit_idx ASC, d.ord ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	out := make(map[int][]*engine.RuntimeError)
	for rows.Next() {
		var (
			idx   int
			code  string
			rules string
			d     engine.RuntimeError
		)
		if err := rows.Scan(&idx, &code, &d.Message, &d.Unit, &d.Decl, &d.Span.Start, &d.Span.End, &d.Pass, &rules); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Code = engine.RuntimeErrorCode(code)
		if d.Rules, err = unmarshalRules(rules); err != nil {
			return nil, err
		}
		out[idx] = append(out[idx], &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return out, nil
}

// RuleStats returns per-rule replacement counts of a run, most frequent
// first. Ties are broken by rule id.
func (s *Store) RuleStats(ctx context.Context, runID string) ([]RuleCount, error) {
	if _, err := s.readSummary(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_id, COUNT(*) AS n
		FROM replacements
		WHERE run_id = ?
		GROUP BY rule_id
		ORDER BY n DESC, rule_id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rule stats: %w", err)
	}
	defer rows.Close()

	out := []RuleCount{}
	for rows.Next() {
		var rc RuleCount
		if err := rows.Scan(&rc.RuleID, &rc.Count); err != nil {
			return nil, fmt.Errorf("scan rule stats: %w", err)
		}
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule stats: %w", err)
	}
	return out, nil
}
