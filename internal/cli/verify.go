package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rxmigrate/internal/harness"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Update   bool   // regenerate golden files
	Filter   string // fixture filter (glob pattern on the file name)
	FailFast bool   // stop at the first failing fixture
}

// FixtureResult holds the result of a single fixture.
type FixtureResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "mismatch"
	Errors []string `json:"errors,omitempty"`
}

// VerifyResult holds the overall verification result.
type VerifyResult struct {
	Fixtures []FixtureResult `json:"fixtures"`
	Passed   int             `json:"passed"`
	Failed   int             `json:"failed"`
	Total    int             `json:"total"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <fixtures-dir>",
		Short: "Run rewrite fixtures",
		Long: `Run verification fixtures: each fixture rewrites an input unit and checks
the result against the expected unit, its assertions and idempotence.

A fixture with a golden file at <fixtures-dir>/golden/<file>.golden is also
compared against its snapshot.

Exit codes:
  0 - All fixtures passed
  1 - One or more fixtures failed
  2 - Command error (invalid paths, malformed fixtures, etc.)

Examples:
  rxmigrate verify ./fixtures
  rxmigrate verify ./fixtures --filter "single_*"
  rxmigrate verify ./fixtures --update
  rxmigrate verify ./fixtures --format json`,
		Args:          usageArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter fixtures by file name glob pattern")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "stop at the first failing fixture")

	return cmd
}

func runVerify(opts *VerifyOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("fixtures directory not found: %s", dir), nil)
	}
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid filter pattern", err)
		}
	}
	all, err := harness.LoadFixtures(dir)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "load fixtures", err)
	}
	var fixtures []*harness.Fixture
	for _, fx := range all {
		if keepFixture(opts.Filter, fx.Path) {
			fixtures = append(fixtures, fx)
		}
	}

	result := VerifyResult{Fixtures: []FixtureResult{}}
	if len(fixtures) == 0 {
		return f.Emit(result, nil, func(w io.Writer) {
			fmt.Fprintln(w, "No fixtures found.")
		})
	}

	w := f.Writer
	runner := harness.NewRunner(opts.Logger())
	for _, fx := range fixtures {
		fr := runFixture(cmd, runner, fx, opts)
		result.Fixtures = append(result.Fixtures, fr)
		result.Total++
		if fr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if !f.JSON() {
			writeFixtureText(w, fr)
		}
		if !fr.Pass && opts.FailFast {
			break
		}
	}

	var cliErr *CLIError
	if result.Failed > 0 {
		cliErr = &CLIError{Code: ErrCodeVerifyFailed, Message: fmt.Sprintf("%d fixture(s) failed", result.Failed)}
	}
	if err := f.Emit(result, cliErr, func(w io.Writer) {
		fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}); err != nil {
		return err
	}
	if cliErr != nil {
		return NewExitError(ExitFailure, cliErr.Message)
	}
	return nil
}

// runFixture runs one fixture and checks its golden file.
func runFixture(cmd *cobra.Command, runner *harness.Runner, fx *harness.Fixture, opts *VerifyOptions) FixtureResult {
	fr := FixtureResult{Name: fx.Name}
	r, err := runner.Run(cmd.Context(), fx)
	if err != nil {
		fr.Errors = []string{err.Error()}
		return fr
	}
	fr.Pass = r.Pass
	fr.Errors = r.Failures()

	goldenPath := goldenFilePath(fx.Path)
	snap, err := harness.Snapshot(r)
	if err != nil {
		fr.Pass = false
		fr.Errors = append(fr.Errors, fmt.Sprintf("snapshot: %v", err))
		return fr
	}

	if opts.Update {
		if err := writeGolden(goldenPath, snap); err != nil {
			fr.Pass = false
			fr.Errors = append(fr.Errors, err.Error())
			return fr
		}
		fr.Golden = "updated"
		return fr
	}

	want, err := os.ReadFile(goldenPath)
	if errors.Is(err, fs.ErrNotExist) {
		// No golden file: assertions and the expected unit decide.
		return fr
	}
	if err != nil {
		fr.Pass = false
		fr.Errors = append(fr.Errors, fmt.Sprintf("failed to read golden file: %v", err))
		return fr
	}
	if !bytes.Equal(bytes.TrimSpace(want), snap) {
		fr.Pass = false
		fr.Golden = "mismatch"
		fr.Errors = append(fr.Errors, "snapshot does not match golden file (run with --update to regenerate)")
		return fr
	}
	fr.Golden = "match"
	return fr
}

func keepFixture(filter, path string) bool {
	if filter == "" {
		return true
	}
	base := filepath.Base(path)
	ok, _ := filepath.Match(filter, strings.TrimSuffix(base, filepath.Ext(base)))
	return ok
}

// goldenFilePath returns the path to the golden file for a fixture.
func goldenFilePath(fixtureFile string) string {
	dir := filepath.Dir(fixtureFile)
	base := filepath.Base(fixtureFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func writeFixtureText(w io.Writer, fr FixtureResult) {
	if fr.Pass {
		if fr.Golden == "updated" {
			fmt.Fprintf(w, "✓ %s (golden updated)\n", fr.Name)
			return
		}
		fmt.Fprintf(w, "✓ %s\n", fr.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", fr.Name)
	for _, e := range fr.Errors {
		for line := range strings.Lines(e) {
			fmt.Fprintf(w, "  %s", strings.TrimSuffix(line, "\n")+"\n")
		}
	}
}
