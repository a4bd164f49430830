package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rxmigrate/internal/engine"
	"github.com/roach88/rxmigrate/internal/host"
	"github.com/roach88/rxmigrate/internal/store"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Engine EngineFlags
	DBPath string // record the run here when set
	OutDir string // write rewritten unit files here when set
}

// UnitOutcome is the result of rewriting one unit.
type UnitOutcome struct {
	Name         string                 `json:"name"`
	Passes       int                    `json:"passes"`
	Replacements []engine.Replacement   `json:"replacements"`
	Diagnostics  []*engine.RuntimeError `json:"diagnostics,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Source       string                 `json:"source,omitempty"`
	Written      string                 `json:"written,omitempty"`
}

// ApplyOutput is the result of the apply command.
type ApplyOutput struct {
	RunID        string        `json:"run_id"`
	RuleSetHash  string        `json:"ruleset_hash"`
	Strategy     string        `json:"strategy"`
	Units        []UnitOutcome `json:"units"`
	Replacements int           `json:"replacements"`
	Failed       int           `json:"failed"`
	Stored       bool          `json:"stored"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <unit-path>...",
		Short: "Rewrite units to a fixpoint",
		Long: `Rewrite every unit with the catalog rules until no rule matches or the
pass limit is reached. Units are processed concurrently; results are
reported in input order.

Exit codes:
  0 - All units rewritten (or left unchanged)
  1 - One or more units failed (non-termination, timeout)
  2 - Command error (catalog rejected, unit does not load, etc.)

Examples:
  rxmigrate apply ./units
  rxmigrate apply ./units --out ./migrated
  rxmigrate apply ./units --db runs.db --workers 4 --timeout 5s
  rxmigrate apply unit.yaml --strategy innermost --format json`,
		Args:          usageArgs(cobra.MinimumNArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args, cmd)
		},
	}

	addEngineFlags(cmd, &opts.Engine)
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "record the run in this SQLite database")
	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "", "write rewritten unit files to this directory")

	return cmd
}

func runApply(opts *ApplyOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

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

	var st *store.Store
	if opts.DBPath != "" {
		if st, err = store.Open(opts.DBPath); err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "open run store", err)
		}
		defer st.Close()
	}

	run := eng.ApplyAll(ctx, units)
	out := ApplyOutput{
		RunID:        run.ID,
		RuleSetHash:  run.RuleSetHash,
		Strategy:     run.Strategy.String(),
		Units:        make([]UnitOutcome, len(run.Units)),
		Replacements: run.Replacements(),
		Failed:       len(run.Failed()),
	}
	for i, ur := range run.Units {
		uo, err := outcome(ur, opts.OutDir)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeWriteFailed, "write unit "+ur.Name, err)
		}
		out.Units[i] = uo
	}

	if st != nil {
		inserted, err := st.WriteRun(ctx, run)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "record run", err)
		}
		out.Stored = inserted
		f.VerboseLog("Recorded run %s in %s", run.ID, opts.DBPath)
	}

	var cliErr *CLIError
	if out.Failed > 0 {
		cliErr = &CLIError{Code: ErrCodeRewriteFailed, Message: fmt.Sprintf("%d of %d unit(s) failed", out.Failed, len(out.Units))}
	}
	if err := f.Emit(out, cliErr, func(w io.Writer) { writeApplyText(w, out) }); err != nil {
		return err
	}
	if cliErr != nil {
		return NewExitError(ExitFailure, cliErr.Message)
	}
	return nil
}

// outcome summarizes one unit and writes its rewritten file to outDir.
func outcome(ur engine.UnitResult, outDir string) (UnitOutcome, error) {
	uo := UnitOutcome{Name: ur.Name, Replacements: []engine.Replacement{}}
	if ur.Err != nil {
		uo.Error = ur.Err.Error()
	}
	if ur.Result == nil {
		return uo, nil
	}
	rep := ur.Result.Report
	uo.Passes = rep.Passes
	uo.Replacements = rep.Replacements
	uo.Diagnostics = rep.Diagnostics
	if ur.Err != nil {
		return uo, nil
	}
	if rep.Changed() {
		uo.Source = host.Source(ur.Result.Unit)
	}
	if outDir == "" {
		return uo, nil
	}
	data, err := host.Marshal(ur.Result.Unit)
	if err != nil {
		return uo, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return uo, err
	}
	uo.Written = filepath.Join(outDir, ur.Name+".yaml")
	return uo, os.WriteFile(uo.Written, data, 0o644)
}

func writeApplyText(w io.Writer, out ApplyOutput) {
	for _, u := range out.Units {
		if u.Error != "" {
			fmt.Fprintf(w, "✗ %s\n", u.Name)
			fmt.Fprintf(w, "  %s\n", u.Error)
			continue
		}
		fmt.Fprintf(w, "✓ %s: %d replacement(s) in %d pass(es)\n", u.Name, len(u.Replacements), u.Passes)
		for _, d := range u.Diagnostics {
			fmt.Fprintf(w, "  ⚠ %s\n", d)
		}
		if u.Written != "" {
			fmt.Fprintf(w, "  wrote %s\n", u.Written)
		} else if u.Source != "" {
			for line := range strings.Lines(u.Source) {
				fmt.Fprintf(w, "    %s", line)
			}
		}
	}
	fmt.Fprintf(w, "\nRun %s: %d unit(s), %d replacement(s), %d failed\n",
		out.RunID, len(out.Units), out.Replacements, out.Failed)
}
