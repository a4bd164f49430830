package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rxmigrate/internal/ir"
)

// RuntimeErrorCode categorizes problems found while rewriting.
type RuntimeErrorCode string

const (
	// ErrCodeTypeMismatch: a candidate failed a variable's type bound.
	ErrCodeTypeMismatch RuntimeErrorCode = "TYPE_MISMATCH"

	// ErrCodeMatchAmbiguity: two matches of one pass claim crossing spans.
	ErrCodeMatchAmbiguity RuntimeErrorCode = "MATCH_AMBIGUITY"

	// ErrCodeNonTermination: a unit did not reach a fixpoint.
	ErrCodeNonTermination RuntimeErrorCode = "NON_TERMINATION"
)

// RuntimeError is the diagnostic form of an engine error, attached to a
// span of one declaration and carried in a Report.
type RuntimeError struct {
	Code    RuntimeErrorCode `json:"code"`
	Message string           `json:"message"`
	Unit    string           `json:"unit,omitempty"`
	Decl    string           `json:"decl,omitempty"`
	Span    ir.Span          `json:"span"`
	Pass    int              `json:"pass,omitempty"`
	Rules   []string         `json:"rules,omitempty"`
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	var loc []string
	if e.Unit != "" {
		loc = append(loc, "unit="+e.Unit)
	}
	if e.Decl != "" {
		loc = append(loc, "decl="+e.Decl)
	}
	if len(e.Rules) > 0 {
		loc = append(loc, "rules="+strings.Join(e.Rules, ","))
	}
	if len(loc) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(loc, ", "))
}

// TypeMismatchError reports a candidate whose type does not satisfy a
// variable or placeholder bound. It only ever rejects that one match.
type TypeMismatchError struct {
	RuleID string
	Var    string
	Want   ir.Bound
	Got    ir.Type // nil when the candidate has no inferred type
}

func (e *TypeMismatchError) Error() string {
	got := "untyped expression"
	if e.Got != nil {
		got = ir.TypeString(e.Got)
	}
	return fmt.Sprintf("%s: rule %s: %s does not accept %s (want %s)", ErrCodeTypeMismatch, e.RuleID, e.Var, got, e.Want)
}

// MatchAmbiguityError reports two matches of the same pass whose spans
// overlap without nesting. Neither was applied.
type MatchAmbiguityError struct {
	Unit  string
	Decl  string
	Pass  int
	Spans [2]ir.Span
	Rules [2]string
}

func (e *MatchAmbiguityError) Error() string {
	return e.Diagnostic().Error()
}

// Diagnostic converts the error for a report. The span covers both matches.
func (e *MatchAmbiguityError) Diagnostic() *RuntimeError {
	a, b := e.Spans[0], e.Spans[1]
	return &RuntimeError{
		Code: ErrCodeMatchAmbiguity,
		Message: fmt.Sprintf("matches at [%d,%d) and [%d,%d) overlap; neither applied",
			a.Start, a.End, b.Start, b.End),
		Unit:  e.Unit,
		Decl:  e.Decl,
		Span:  ir.Span{Start: min(a.Start, b.Start), End: max(a.End, b.End)},
		Pass:  e.Pass,
		Rules: e.Rules[:],
	}
}

// NonTerminationError reports a unit whose rewriting did not settle. Cycle
// lists the rules applied since the repeated state, or is empty when the
// pass limit was hit first.
type NonTerminationError struct {
	Unit   string
	Decl   string
	Passes int
	Limit  int
	Cycle  []string
}

func (e *NonTerminationError) Error() string {
	return e.Diagnostic().Error()
}

// Diagnostic converts the error for a report.
func (e *NonTerminationError) Diagnostic() *RuntimeError {
	msg := fmt.Sprintf("no fixpoint after %d passes (limit %d)", e.Passes, e.Limit)
	if len(e.Cycle) > 0 {
		msg = fmt.Sprintf("rewriting cycles after %d passes", e.Passes)
	}
	return &RuntimeError{
		Code:    ErrCodeNonTermination,
		Message: msg,
		Unit:    e.Unit,
		Decl:    e.Decl,
		Pass:    e.Passes,
		Rules:   e.Cycle,
	}
}

// IsNonTerminationError reports whether err is, or wraps, a
// NonTerminationError. Uses errors.As to handle wrapped errors.
func IsNonTerminationError(err error) bool {
	var nt *NonTerminationError
	if errors.As(err, &nt) {
		return true
	}
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeNonTermination
}

// IsAmbiguityError reports whether err is, or wraps, a MatchAmbiguityError.
func IsAmbiguityError(err error) bool {
	var ae *MatchAmbiguityError
	if errors.As(err, &ae) {
		return true
	}
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeMatchAmbiguity
}

// IsTypeMismatchError reports whether err is, or wraps, a TypeMismatchError.
func IsTypeMismatchError(err error) bool {
	var tm *TypeMismatchError
	return errors.As(err, &tm)
}
