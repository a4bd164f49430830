// Package querysql compiles queryir queries to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rxmigrate/internal/ir"
	"github.com/roach88/rxmigrate/internal/queryir"
)

// Table describes a queryable table or view.
type Table struct {
	// Columns lists every column a query may bind or filter on.
	Columns []string
	// OrderBy is the stable order key, ending with a unique tiebreaker.
	// Text columns should carry COLLATE BINARY.
	OrderBy []string
}

// SQLCompiler compiles queryir to SQL for a fixed set of tables.
//
// Every query gets the table's ORDER BY, so results never depend on
// SQLite's scan order. Values are always bound as ? parameters; only
// column and table names from the schema reach the SQL text.
type SQLCompiler struct {
	tables map[string]Table
}

// NewSQLCompiler creates a compiler for the given tables.
func NewSQLCompiler(tables map[string]Table) *SQLCompiler {
	return &SQLCompiler{tables: tables}
}

// Compile converts a query to SQL and its parameters.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, err
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	table, ok := c.tables[q.From]
	if !ok {
		return "", nil, fmt.Errorf("unknown table %q", q.From)
	}
	if len(table.OrderBy) == 0 {
		return "", nil, fmt.Errorf("table %q has no stable order key", q.From)
	}

	cols := make([]string, 0, len(q.Bindings))
	for _, b := range q.Bindings {
		if err := checkColumn(q.From, table, b.Field); err != nil {
			return "", nil, err
		}
		if b.As != "" && b.As != b.Field {
			cols = append(cols, b.Field+" AS "+b.As)
		} else {
			cols = append(cols, b.Field)
		}
	}

	var sb strings.Builder
	var params []any
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(cols, ", "), q.From)

	if q.Filter != nil {
		where, whereParams, err := c.compilePredicate(q.From, table, q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		sb.WriteString(" WHERE " + where)
		params = append(params, whereParams...)
	}

	sb.WriteString(" ORDER BY " + strings.Join(table.OrderBy, ", "))

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		params = append(params, int64(q.Limit))
	}

	return sb.String(), params, nil
}

// compilePredicate compiles a predicate to a WHERE fragment.
func (c *SQLCompiler) compilePredicate(from string, table Table, p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(from, table, pred)
	case *queryir.Equals:
		return c.compileEquals(from, table, *pred)
	case queryir.Glob:
		return c.compileGlob(from, table, pred)
	case *queryir.Glob:
		return c.compileGlob(from, table, *pred)
	case queryir.And:
		return c.compileAnd(from, table, pred)
	case *queryir.And:
		return c.compileAnd(from, table, *pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileEquals(from string, table Table, eq queryir.Equals) (string, []any, error) {
	if err := checkColumn(from, table, eq.Field); err != nil {
		return "", nil, err
	}
	param, err := valueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return eq.Field + " = ?", []any{param}, nil
}

func (c *SQLCompiler) compileGlob(from string, table Table, g queryir.Glob) (string, []any, error) {
	if err := checkColumn(from, table, g.Field); err != nil {
		return "", nil, err
	}
	return g.Field + " GLOB ?", []any{g.Pattern}, nil
}

func (c *SQLCompiler) compileAnd(from string, table Table, and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, ps, err := c.compilePredicate(from, table, pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params, nil
}

func checkColumn(from string, table Table, field string) error {
	if !slices.Contains(table.Columns, field) {
		return fmt.Errorf("unknown column %q in %s", field, from)
	}
	return nil
}

// valueToParam converts a scalar ir.Value to a driver parameter.
func valueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("%T cannot be used as a SQL parameter", v)
	}
}
