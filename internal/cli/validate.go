package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rxmigrate/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	FailFast bool
}

// CatalogProblem is one reason a catalog was rejected.
type CatalogProblem struct {
	Code    string `json:"code"`
	Rule    string `json:"rule,omitempty"`
	Field   string `json:"field,omitempty"`
	Pos     string `json:"pos,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                    `json:"valid"`
	Rules    int                     `json:"rules"`
	Inactive int                     `json:"inactive"`
	Warnings []compiler.ChainWarning `json:"warnings,omitempty"`
	Errors   []CatalogProblem        `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the rule catalog",
		Long: `Compile the rule catalog and report every problem found.

Checks pattern and template syntax, names against the type universe,
variable binding across alternatives and import policies. Static rule
chains that may keep re-enabling each other are reported as warnings.

Exit codes:
  0 - Catalog valid (warnings allowed)
  1 - Catalog rejected
  2 - Command error (catalog directory not found, etc.)`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "stop at the first broken rule")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	mode := compiler.CollectAll
	if opts.FailFast {
		mode = compiler.FailFast
	}
	cat, err := loadCatalog(opts.RootOptions, compiler.WithMode(mode))

	var ce *compiler.CatalogError
	if err != nil && !errors.As(err, &ce) {
		return f.Fail(ExitCommandError, catalogErrorCode(err), "load catalog", err)
	}
	if err != nil {
		result := ValidationResult{Errors: catalogProblems(ce)}
		cliErr := &CLIError{Code: ErrCodeCatalog, Message: fmt.Sprintf("%d catalog error(s)", len(result.Errors))}
		if outErr := f.Emit(result, cliErr, func(w io.Writer) {
			fmt.Fprintf(w, "✗ Catalog rejected (%d error(s))\n", len(result.Errors))
			for _, p := range result.Errors {
				fmt.Fprintf(w, "  %s\n", p)
			}
		}); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "catalog rejected", err)
	}

	result := ValidationResult{
		Valid:    true,
		Rules:    cat.Rules.Len(),
		Inactive: len(cat.Rules.Inactive()),
		Warnings: cat.Warnings,
	}
	return f.Emit(result, nil, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Catalog valid: %d rules, %d inactive\n", result.Rules, result.Inactive)
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "  ⚠ %s: %s\n", strings.Join(warn.Path, " -> "), warn.Message)
		}
		if f.Verbose {
			for _, r := range cat.Rules.Inactive() {
				fmt.Fprintf(w, "  - %s (inactive: %s)\n", r.ID, r.Reason)
			}
		}
	})
}

func (p CatalogProblem) String() string {
	var b strings.Builder
	b.WriteString("[" + p.Code + "] ")
	if p.Pos != "" {
		b.WriteString(p.Pos + ": ")
	}
	if p.Rule != "" {
		b.WriteString(p.Rule)
		if p.Field != "" {
			b.WriteString("." + p.Field)
		}
		b.WriteString(": ")
	}
	b.WriteString(p.Message)
	return b.String()
}

// catalogProblems flattens a CatalogError into reportable problems.
func catalogProblems(ce *compiler.CatalogError) []CatalogProblem {
	out := make([]CatalogProblem, 0, len(ce.Errors))
	for _, err := range ce.Errors {
		var (
			pse *compiler.PatternSyntaxError
			uce *compiler.UnsupportedConstructError
		)
		switch {
		case errors.As(err, &pse):
			out = append(out, CatalogProblem{Code: pse.Code, Rule: pse.RuleID, Field: pse.Field, Pos: pse.Pos, Message: pse.Message})
		case errors.As(err, &uce):
			out = append(out, CatalogProblem{Code: uce.Code, Rule: uce.RuleID, Field: uce.Field, Pos: uce.Pos, Message: uce.Message})
		default:
			out = append(out, CatalogProblem{Code: ErrCodeGeneric, Message: err.Error()})
		}
	}
	return out
}
