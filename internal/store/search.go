package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/rxmigrate/internal/ir"
	"github.com/roach88/rxmigrate/internal/queryir"
	"github.com/roach88/rxmigrate/internal/querysql"
)

// ReplacementFilter selects recorded replacements. Empty fields match
// everything. Rule is a glob pattern (*, ? and [...]); the others match
// exactly.
type ReplacementFilter struct {
	RunID string
	Unit  string
	Decl  string
	Rule  string
	Limit int // 0: no limit
}

// ReplacementRow is one recorded replacement with its run and unit.
type ReplacementRow struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Unit      string    `json:"unit"`
	Decl      string    `json:"decl"`
	RuleID    string    `json:"rule"`
	Span      ir.Span   `json:"span"`
	Pass      int       `json:"pass"`
	Seq       int       `json:"seq"`
}

var searchCompiler = querysql.NewSQLCompiler(map[string]querysql.Table{
	"replacement_rows": {
		Columns: []string{
			"run_id", "started_at", "unit_idx", "unit", "seq",
			"rule_id", "decl", "span_start", "span_end", "pass",
		},
		OrderBy: []string{
			"started_at DESC",
			"run_id COLLATE BINARY DESC",
			"unit_idx ASC",
			"seq ASC",
		},
	},
})

// query builds the search for f.
func (f ReplacementFilter) query() queryir.Select {
	var preds []queryir.Predicate
	eq := func(field, v string) {
		if v != "" {
			preds = append(preds, &queryir.Equals{Field: field, Value: ir.String(v)})
		}
	}
	eq("run_id", f.RunID)
	eq("unit", f.Unit)
	eq("decl", f.Decl)
	if f.Rule != "" {
		preds = append(preds, &queryir.Glob{Field: "rule_id", Pattern: f.Rule})
	}
	return queryir.Select{
		From: "replacement_rows",
		Bindings: queryir.Bind(
			"run_id", "started_at", "unit", "decl", "rule_id",
			"span_start", "span_end", "pass", "seq",
		),
		Filter: queryir.All(preds...),
		Limit:  f.Limit,
	}
}

// FindReplacements searches replacements across runs, newest run first,
// then in unit and seq order. A RunID that does not exist returns
// ErrNotFound.
func (s *Store) FindReplacements(ctx context.Context, f ReplacementFilter) ([]ReplacementRow, error) {
	if f.RunID != "" {
		if _, err := s.readSummary(ctx, f.RunID); err != nil {
			return nil, err
		}
	}
	sqlText, params, err := searchCompiler.Compile(f.query())
	if err != nil {
		return nil, fmt.Errorf("compile search: %w", err)
	}
	rows, err := s.Query(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("search replacements: %w", err)
	}
	defer rows.Close()

	out := []ReplacementRow{}
	for rows.Next() {
		var (
			r       ReplacementRow
			started string
		)
		if err := rows.Scan(&r.RunID, &started, &r.Unit, &r.Decl, &r.RuleID,
			&r.Span.Start, &r.Span.End, &r.Pass, &r.Seq); err != nil {
			return nil, fmt.Errorf("scan replacement: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replacements: %w", err)
	}
	return out, nil
}
