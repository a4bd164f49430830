package compiler

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// Validation error codes (E200-E299). Every one of them rejects the whole
// catalog.
const (
	ErrDuplicateRule       = "E201" // duplicate or empty rule id
	ErrBeforeSyntax        = "E202" // before pattern does not parse
	ErrAfterSyntax         = "E203" // after template does not parse
	ErrTypeSyntax          = "E204" // type or type parameter does not parse
	ErrImportPolicy        = "E205" // unknown import policy
	ErrUnresolvedName      = "E206" // name or type unknown to imports and universe
	ErrAfterUnbound        = "E210" // after uses a variable some alternative does not bind
	ErrRepeatedMisuse      = "E211" // repeated variable outside a trailing argument
	ErrPlaceholderMisuse   = "E212" // placeholder arity or argument shape
	ErrIncompatibleAlts    = "E213" // alternatives cannot share one after template
	ErrDuplicateName       = "E214" // duplicate variable, placeholder or type parameter
	ErrMisplacedRefasterOp = "E215" // Refaster.anyOf/asVarargs in an unsupported position
	ErrCatalogFile         = "E220" // catalog file does not decode or fails its schema
)

// PatternSyntaxError reports a malformed rule or catalog file.
type PatternSyntaxError struct {
	RuleID  string
	Field   string
	Code    string
	Message string
	Pos     string
}

func (e *PatternSyntaxError) Error() string {
	return formatRuleError(e.Code, e.Pos, e.RuleID, e.Field, e.Message)
}

// UnsupportedConstructError reports a rule that parses but breaks one of the
// rule invariants.
type UnsupportedConstructError struct {
	RuleID  string
	Field   string
	Code    string
	Message string
	Pos     string
}

func (e *UnsupportedConstructError) Error() string {
	return formatRuleError(e.Code, e.Pos, e.RuleID, e.Field, e.Message)
}

func formatRuleError(code, pos, id, field, msg string) string {
	var b strings.Builder
	b.WriteString("[" + code + "] ")
	if pos != "" {
		b.WriteString(pos + ": ")
	}
	if id != "" {
		b.WriteString(id)
		if field != "" {
			b.WriteString("." + field)
		}
		b.WriteString(": ")
	}
	b.WriteString(msg)
	return b.String()
}

// CatalogError aggregates every problem found while loading a catalog.
type CatalogError struct {
	Errors []error
}

func (e *CatalogError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d catalog errors:\n  %s", len(e.Errors), strings.Join(msgs, "\n  "))
}

func (e *CatalogError) Unwrap() []error { return e.Errors }

// IsPatternSyntaxError reports whether err contains a PatternSyntaxError.
func IsPatternSyntaxError(err error) bool {
	var pe *PatternSyntaxError
	return errors.As(err, &pe)
}

// IsUnsupportedConstructError reports whether err contains an
// UnsupportedConstructError.
func IsUnsupportedConstructError(err error) bool {
	var ue *UnsupportedConstructError
	return errors.As(err, &ue)
}

// formatCUEError converts a CUE error into a PatternSyntaxError located at
// its first reported position.
func formatCUEError(file string, err error) error {
	if err == nil {
		return nil
	}
	out := &PatternSyntaxError{Field: "cue", Code: ErrCatalogFile, Message: err.Error(), Pos: file}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return out
	}
	first := errs[0]
	out.Message = first.Error()
	if positions := cueerrors.Positions(first); len(positions) > 0 && positions[0].IsValid() {
		out.Pos = positions[0].String()
	}
	return out
}
