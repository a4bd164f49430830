package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rxmigrate/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	DBPath string
	List   bool
	Limit  int

	// Replacement search; any of these switches report to search mode.
	Rule string
	Unit string
	Decl string
}

func (o *ReportOptions) searching() bool {
	return o.Rule != "" || o.Unit != "" || o.Decl != ""
}

// ReportOutput is one stored run with its per-rule counts.
type ReportOutput struct {
	Run   *store.RunRecord  `json:"run"`
	Rules []store.RuleCount `json:"rules"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report [run-id]",
		Short: "Show a recorded run",
		Long: `Show a run recorded with apply --db: units, replacements, diagnostics and
the number of replacements per rule. Without a run id the most recent run
is shown.

With --rule, --unit or --decl the command lists matching replacements
instead, across all runs or within the given run. --rule takes a glob
pattern.

Examples:
  rxmigrate report --db runs.db
  rxmigrate report --db runs.db 0190c3e2-...
  rxmigrate report --db runs.db --list --limit 10
  rxmigrate report --db runs.db --rule 'Flowable*' --unit Orders`,
		Args:          usageArgs(cobra.MaximumNArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the run database (required)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs or replacements to list (0: all)")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "search replacements by rule id glob pattern")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "search replacements by unit name")
	cmd.Flags().StringVar(&opts.Decl, "decl", "", "search replacements by declaration name")

	return cmd
}

func runReport(opts *ReportOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	if opts.DBPath == "" {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "--db is required", nil)
	}
	// Open would create an empty database; a report needs an existing one.
	if _, err := os.Stat(opts.DBPath); err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.DBPath), nil)
	}
	st, err := store.Open(opts.DBPath)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "open run store", err)
	}
	defer st.Close()

	if opts.searching() {
		filter := store.ReplacementFilter{Rule: opts.Rule, Unit: opts.Unit, Decl: opts.Decl, Limit: opts.Limit}
		if len(args) == 1 {
			filter.RunID = args[0]
		}
		rows, err := st.FindReplacements(ctx, filter)
		if err != nil {
			return f.Fail(ExitCommandError, storeErrorCode(err), "search replacements", err)
		}
		return f.Emit(rows, nil, func(w io.Writer) { writeReplacementRows(w, rows) })
	}

	if opts.List {
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "list runs", err)
		}
		return f.Emit(runs, nil, func(w io.Writer) { writeRunList(w, runs) })
	}

	var id string
	if len(args) == 1 {
		id = args[0]
	} else if id, err = st.LatestRun(ctx); err != nil {
		return f.Fail(ExitCommandError, storeErrorCode(err), "find latest run", err)
	}

	rec, err := st.ReadRun(ctx, id)
	if err != nil {
		return f.Fail(ExitCommandError, storeErrorCode(err), "read run", err)
	}
	counts, err := st.RuleStats(ctx, id)
	if err != nil {
		return f.Fail(ExitCommandError, storeErrorCode(err), "read rule stats", err)
	}

	out := ReportOutput{Run: rec, Rules: counts}
	return f.Emit(out, nil, func(w io.Writer) { writeReportText(w, out, f.Verbose) })
}

func storeErrorCode(err error) string {
	if errors.Is(err, store.ErrNotFound) {
		return ErrCodeNotFound
	}
	return ErrCodeStore
}

func writeRunList(w io.Writer, runs []store.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tUNITS\tFAILED\tREPLACEMENTS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", r.ID, r.StartedAt.Format(time.RFC3339), r.Units, r.Failed, r.Replacements)
	}
	tw.Flush()
}

func writeReplacementRows(w io.Writer, rows []store.ReplacementRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No matching replacements.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tUNIT\tDECL\tSPAN\tPASS\tRULE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d:%d\t%d\t%s\n", r.RunID, r.Unit, r.Decl, r.Span.Start, r.Span.End, r.Pass, r.RuleID)
	}
	tw.Flush()
}

func writeReportText(w io.Writer, out ReportOutput, verbose bool) {
	run := out.Run
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "  started:  %s (%s)\n", run.StartedAt.Format(time.RFC3339), run.Duration)
	fmt.Fprintf(w, "  strategy: %s\n", run.Strategy)
	fmt.Fprintf(w, "  engine:   %s\n", run.EngineVersion)
	fmt.Fprintf(w, "  rules:    %s\n", run.RuleSetHash)
	fmt.Fprintf(w, "  units:    %d (%d failed), %d replacement(s)\n", run.Units, run.Failed, run.Replacements)

	fmt.Fprintln(w)
	for _, u := range run.UnitRecords {
		if u.Error != "" {
			fmt.Fprintf(w, "✗ %s\n", u.Name)
			fmt.Fprintf(w, "  %s\n", u.Error)
		} else {
			fmt.Fprintf(w, "✓ %s: %d replacement(s) in %d pass(es)\n", u.Name, len(u.Replacements), u.Passes)
		}
		for _, d := range u.Diagnostics {
			fmt.Fprintf(w, "  ⚠ %s\n", d)
		}
		if verbose {
			for _, r := range u.Replacements {
				fmt.Fprintf(w, "    #%d pass %d %s/%s [%d:%d] %s\n", r.Seq, r.Pass, u.Name, r.Decl, r.Span.Start, r.Span.End, r.RuleID)
			}
		}
	}

	if len(out.Rules) == 0 {
		return
	}
	fmt.Fprintln(w, "\nReplacements by rule:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, rc := range out.Rules {
		fmt.Fprintf(tw, "  %s\t%d\n", rc.RuleID, rc.Count)
	}
	tw.Flush()
}
