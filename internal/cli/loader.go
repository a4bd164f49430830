package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rxmigrate/internal/catalog"
	"github.com/roach88/rxmigrate/internal/compiler"
	"github.com/roach88/rxmigrate/internal/engine"
	"github.com/roach88/rxmigrate/internal/host"
	"github.com/roach88/rxmigrate/internal/ir"
)

// EngineFlags are the engine settings shared by match and apply.
type EngineFlags struct {
	MaxPasses int
	Strategy  string
	Workers   int
	Timeout   time.Duration
}

func addEngineFlags(cmd *cobra.Command, f *EngineFlags) {
	cmd.Flags().IntVar(&f.MaxPasses, "max-passes", engine.DefaultMaxPasses, "pass limit per unit")
	cmd.Flags().StringVar(&f.Strategy, "strategy", "outermost", "traversal strategy (outermost|innermost)")
	cmd.Flags().IntVar(&f.Workers, "workers", 0, "worker pool size (default: GOMAXPROCS)")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", 0, "time limit per unit (0: none)")
}

// usageArgs turns argument validation failures into command errors.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		return nil
	}
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// loadCatalog compiles the catalog selected by --catalog.
func loadCatalog(opts *RootOptions, extra ...compiler.Option) (*compiler.Catalog, error) {
	if opts.Catalog == "" {
		if len(extra) == 0 {
			return catalog.Default()
		}
		return catalog.Load(append([]compiler.Option{compiler.WithLogger(opts.Logger())}, extra...)...)
	}
	return compiler.LoadDir(opts.Catalog, append([]compiler.Option{compiler.WithLogger(opts.Logger())}, extra...)...)
}

// catalogErrorCode picks the JSON error code for a load failure.
func catalogErrorCode(err error) string {
	var ce *compiler.CatalogError
	if errors.As(err, &ce) {
		return ErrCodeCatalog
	}
	if errors.Is(err, fs.ErrNotExist) {
		return ErrCodeNotFound
	}
	return ErrCodeGeneric
}

// openCatalog loads the catalog or reports the failure as a command error.
func openCatalog(opts *RootOptions, f *OutputFormatter) (*compiler.Catalog, error) {
	cat, err := loadCatalog(opts)
	if err != nil {
		return nil, f.Fail(ExitCommandError, catalogErrorCode(err), "load catalog", err)
	}
	f.VerboseLog("Catalog: %d rules, %d inactive", cat.Rules.Len(), len(cat.Rules.Inactive()))
	return cat, nil
}

// newEngine builds an engine for cat from the shared flags.
func newEngine(opts *RootOptions, cat *compiler.Catalog, ef *EngineFlags) (*engine.Engine, error) {
	strategy, err := engine.ParseStrategy(ef.Strategy)
	if err != nil {
		return nil, err
	}
	if ef.MaxPasses < 1 {
		return nil, fmt.Errorf("--max-passes must be at least 1, got %d", ef.MaxPasses)
	}
	return engine.New(cat.Rules, cat.Universe,
		engine.WithLogger(opts.Logger()),
		engine.WithStrategy(strategy),
		engine.WithMaxPasses(ef.MaxPasses),
		engine.WithWorkers(ef.Workers),
		engine.WithUnitTimeout(ef.Timeout),
	), nil
}

// loadUnits reads the unit files and directories named on the command line.
func loadUnits(paths []string, cat *compiler.Catalog, f *OutputFormatter) ([]*ir.Unit, error) {
	units, err := host.LoadPaths(paths, cat.Universe)
	if err != nil {
		code := ErrCodeUnit
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		return nil, f.Fail(ExitCommandError, code, "load units", err)
	}
	f.VerboseLog("Loaded %d unit(s)", len(units))
	return units, nil
}
