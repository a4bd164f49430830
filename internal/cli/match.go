package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rxmigrate/internal/ir"
)

// MatchOptions holds flags for the match command.
type MatchOptions struct {
	*RootOptions
	Engine EngineFlags
}

// MatchInfo is one rule match found in a unit.
type MatchInfo struct {
	Unit        string  `json:"unit"`
	Decl        string  `json:"decl"`
	Rule        string  `json:"rule"`
	Alternative int     `json:"alternative"`
	Span        ir.Span `json:"span"`
	Expr        string  `json:"expr"`
}

// MatchOutput is the result of the match command.
type MatchOutput struct {
	Units   int         `json:"units"`
	Matches []MatchInfo `json:"matches"`
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "match <unit-path>...",
		Short: "Show where rules match without rewriting",
		Long: `Report, for every node of every declaration in pre-order, the first rule
that matches it. Units are not modified.

Arguments are unit files or directories of *.yaml unit files.`,
		Args:          usageArgs(cobra.MinimumNArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(opts, args, cmd)
		},
	}

	addEngineFlags(cmd, &opts.Engine)

	return cmd
}

func runMatch(opts *MatchOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	cat, err := openCatalog(opts.RootOptions, f)
	if err != nil {
		return err
	}
	eng, err := newEngine(opts.RootOptions, cat, &opts.Engine)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid engine flags", err)
	}
	units, err := loadUnits(paths, cat, f)
	if err != nil {
		return err
	}

	out := MatchOutput{Units: len(units), Matches: []MatchInfo{}}
	for _, u := range units {
		for m := range eng.FindMatches(u) {
			out.Matches = append(out.Matches, MatchInfo{
				Unit:        u.Name,
				Decl:        m.Decl,
				Rule:        m.Rule.ID,
				Alternative: m.Alternative,
				Span:        m.Span,
				Expr:        ir.Format(m.Node),
			})
		}
	}

	return f.Emit(out, nil, func(w io.Writer) {
		if len(out.Matches) == 0 {
			fmt.Fprintf(w, "No matches in %d unit(s).\n", out.Units)
			return
		}
		for _, m := range out.Matches {
			fmt.Fprintf(w, "%s/%s [%d:%d] %s: %s\n", m.Unit, m.Decl, m.Span.Start, m.Span.End, m.Rule, m.Expr)
		}
		fmt.Fprintf(w, "\n%d match(es) in %d unit(s)\n", len(out.Matches), out.Units)
	})
}
