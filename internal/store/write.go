package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/rxmigrate/internal/engine"
)

// WriteRun records a run with all unit outcomes, replacements and
// diagnostics in one transaction. Returns inserted=false without writing
// anything when a run with the same id already exists.
func (s *Store) WriteRun(ctx context.Context, run *engine.Run) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, ruleset_hash, engine_version, strategy, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.RuleSetHash,
		run.EngineVersion,
		run.Strategy.String(),
		formatTime(run.StartedAt),
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return false, fmt.Errorf("write run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write run: rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	for _, u := range run.Units {
		if err := writeUnit(ctx, tx, run.ID, u); err != nil {
			return false, fmt.Errorf("write run %s: unit %s: %w", run.ID, u.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write run: commit: %w", err)
	}
	return true, nil
}

func writeUnit(ctx context.Context, tx *sql.Tx, runID string, u engine.UnitResult) error {
	var rep engine.Report
	if u.Result != nil {
		rep = u.Result.Report
	}
	errText := ""
	if u.Err != nil {
		errText = u.Err.Error()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO units (run_id, idx, name, passes, error)
		VALUES (?, ?, ?, ?, ?)
	`, runID, u.Index, u.Name, rep.Passes, errText); err != nil {
		return err
	}

	for _, r := range rep.Replacements {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO replacements (run_id, unit_idx, seq, rule_id, decl, span_start, span_end, pass)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, u.Index, r.Seq, r.RuleID, r.Decl, r.Span.Start, r.Span.End, r.Pass); err != nil {
			return fmt.Errorf("replacement %d: %w", r.Seq, err)
		}
	}

	for i, d := range rep.Diagnostics {
		rules, err := marshalRules(d.Rules)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO diagnostics (run_id, unit_idx, ord, code, message, decl, span_start, span_end, pass, rules)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, u.Index, i, string(d.Code), d.Message, d.Decl, d.Span.Start, d.Span.End, d.Pass, rules); err != nil {
			return fmt.Errorf("diagnostic %d: %w", i, err)
		}
	}
	return nil
}
