package cli

import (
	"fmt"
	"io"
	"path"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/rxmigrate/internal/ir"
)

// RulesOptions holds flags for the rules command.
type RulesOptions struct {
	*RootOptions
	Filter   string // rule id filter (glob pattern)
	Inactive bool   // include inactive rules
}

// RuleInfo describes one catalog rule.
type RuleInfo struct {
	ID           string   `json:"id"`
	Active       bool     `json:"active"`
	Reason       string   `json:"reason,omitempty"`
	Before       []string `json:"before,omitempty"`
	After        string   `json:"after,omitempty"`
	ImportPolicy string   `json:"import_policy,omitempty"`
	Repeated     string   `json:"repeated,omitempty"`
}

// RulesResult is the rules listing.
type RulesResult struct {
	RuleSetHash string     `json:"ruleset_hash"`
	Rules       []RuleInfo `json:"rules"`
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List catalog rules in declaration order",
		Long: `List the rules of the catalog in the order the matcher tries them.

Examples:
  rxmigrate rules
  rxmigrate rules --filter "Single*"
  rxmigrate rules --inactive --format json`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter rules by id glob pattern")
	cmd.Flags().BoolVar(&opts.Inactive, "inactive", false, "include inactive rules")

	return cmd
}

func runRules(opts *RulesOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if opts.Filter != "" {
		if _, err := path.Match(opts.Filter, ""); err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid filter pattern", err)
		}
	}
	cat, err := openCatalog(opts.RootOptions, f)
	if err != nil {
		return err
	}

	result := RulesResult{RuleSetHash: cat.Rules.Hash(), Rules: []RuleInfo{}}
	for _, r := range cat.Rules.Rules() {
		if keepRule(opts.Filter, r.ID) {
			result.Rules = append(result.Rules, describeRule(r))
		}
	}
	if opts.Inactive {
		for _, r := range cat.Rules.Inactive() {
			if keepRule(opts.Filter, r.ID) {
				result.Rules = append(result.Rules, RuleInfo{ID: r.ID, Reason: r.Reason})
			}
		}
	}

	return f.Emit(result, nil, func(w io.Writer) {
		if len(result.Rules) == 0 {
			fmt.Fprintln(w, "No rules found.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RULE\tALTERNATIVES\tPOLICY\tAFTER")
		for _, r := range result.Rules {
			if !r.Active {
				fmt.Fprintf(tw, "%s\t-\t-\t(inactive: %s)\n", r.ID, r.Reason)
				continue
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.ID, len(r.Before), r.ImportPolicy, r.After)
		}
		tw.Flush()
		if f.Verbose {
			fmt.Fprintf(w, "\nRule set hash: %s\n", result.RuleSetHash)
		}
	})
}

func keepRule(filter, id string) bool {
	if filter == "" {
		return true
	}
	ok, _ := path.Match(filter, id)
	return ok
}

func describeRule(r *ir.Rule) RuleInfo {
	info := RuleInfo{
		ID:           r.ID,
		Active:       true,
		Before:       make([]string, len(r.Before)),
		After:        ir.Format(r.After),
		ImportPolicy: r.ImportPolicy.String(),
	}
	for i, alt := range r.Before {
		info.Before[i] = ir.Format(alt)
	}
	if r.Repeated != nil {
		info.Repeated = r.Repeated.Name
	}
	return info
}
