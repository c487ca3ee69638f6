package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xiao2945/danci-sub000/internal/compiler"
	"github.com/xiao2945/danci-sub000/internal/engine"
	"github.com/xiao2945/danci-sub000/internal/ir"
	"github.com/xiao2945/danci-sub000/internal/store"
)

// NewRulesCommand creates the rules command group.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage saved rules",
		Long: `Save, inspect and delete rules.

Changes are written to the database together with a revision history.
--library is only read by list, show and export.`,
	}

	cmd.AddCommand(newRulesSaveCommand(rootOpts))
	cmd.AddCommand(newRulesListCommand(rootOpts))
	cmd.AddCommand(newRulesShowCommand(rootOpts))
	cmd.AddCommand(newRulesDeleteCommand(rootOpts))
	cmd.AddCommand(newRulesHistoryCommand(rootOpts))
	cmd.AddCommand(newRulesImportCommand(rootOpts))
	cmd.AddCommand(newRulesExportCommand(rootOpts))

	return cmd
}

// SaveResult reports one saved rule.
type SaveResult struct {
	Rule     string             `json:"rule"`
	Kind     ir.RuleKind        `json:"kind"`
	Changed  bool               `json:"changed"`
	Revision string             `json:"revision,omitempty"`
	Warnings []compiler.Warning `json:"warnings,omitempty"`
}

func newRulesSaveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "save [FILE|-]",
		Short: "Save rules written in the rule language",
		Long: `Save every rule of a rule text file (default stdin). Each rule starts
with a "#Name" line:

  #Ends//tail vowels
  Tail == {a,e}
  :(Tail)\e
  @C^

A rule replaces any saved rule of the same name. Rules are saved in order;
a rule that fails validation is reported and the rest are still saved.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)

			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			text, err := readText(path, cmd.InOrStdin())
			if err != nil {
				return fail(f, ExitCommandError, ErrCodeIO, err)
			}
			chunks := compiler.SplitRules(text)
			if len(chunks) == 0 {
				return fail(f, ExitFailure, ErrCodeInvalid, fmt.Errorf("%s: no rules found", path))
			}

			sess, err := rootOpts.openDatabase(cmd.Context())
			if err != nil {
				return report(f, err)
			}
			defer sess.Close()

			var (
				results []SaveResult
				errs    []error
			)
			for _, c := range chunks {
				rule, warns, err := sess.engine.SaveRule(c.Text)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s:%d: %w", path, c.Line, err))
					continue
				}
				rev, changed, err := sess.store.SaveRule(cmd.Context(), rule.Record())
				if err != nil {
					return fail(f, ExitCommandError, ErrCodeStore, err)
				}
				results = append(results, SaveResult{
					Rule:     rule.Name,
					Kind:     rule.Kind(),
					Changed:  changed,
					Revision: rev.ID,
					Warnings: warns,
				})
			}

			if f.Format == "json" {
				if len(errs) > 0 {
					return fail(f, ExitFailure, ErrCodeInvalid, errors.Join(errs...))
				}
				return f.Success(results)
			}
			for _, r := range results {
				status := "saved"
				if !r.Changed {
					status = "unchanged"
				}
				fmt.Fprintf(f.Writer, "✓ %s (%s, %s)\n", r.Rule, r.Kind, status)
				for _, w := range r.Warnings {
					fmt.Fprintf(f.Writer, "  warning: %s\n", w)
				}
			}
			if len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintf(f.Writer, "✗ %v\n", e)
				}
				return NewExitError(ExitFailure, fmt.Sprintf("%d rule(s) rejected", len(errs)))
			}
			return nil
		},
	}
}

// RuleSummary is one line of rules list.
type RuleSummary struct {
	Name    string      `json:"name"`
	Kind    ir.RuleKind `json:"kind"`
	Comment string      `json:"comment,omitempty"`
}

func newRulesListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List saved rules",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			sess, err := rootOpts.openSession(cmd.Context())
			if err != nil {
				return report(f, err)
			}
			defer sess.Close()

			rules := []RuleSummary{}
			for _, name := range sess.engine.RuleNames() {
				rule, ok := sess.engine.Rule(name)
				if !ok {
					continue
				}
				rules = append(rules, RuleSummary{Name: rule.Name, Kind: rule.Kind(), Comment: rule.Comment})
			}

			if f.Format == "json" {
				return f.Success(rules)
			}
			if len(rules) == 0 {
				fmt.Fprintln(f.Writer, "No saved rules")
				return nil
			}
			for _, r := range rules {
				fmt.Fprintf(f.Writer, "%-20s %-10s %s\n", r.Name, r.Kind, r.Comment)
			}
			return nil
		},
	}
}

func newRulesShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show NAME",
		Short:         "Print a saved rule in the rule language",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			sess, err := rootOpts.openSession(cmd.Context())
			if err != nil {
				return report(f, err)
			}
			defer sess.Close()

			rule, ok := sess.engine.Rule(args[0])
			if !ok {
				return fail(f, ExitFailure, ErrCodeGeneric, &engine.RuntimeError{
					Code:    engine.ErrCodeRuleNotFound,
					Message: "no saved rule with this name",
					Rule:    args[0],
				})
			}
			if f.Format == "json" {
				return f.Success(rule.Record())
			}
			fmt.Fprint(f.Writer, rule.Text())
			return nil
		},
	}
}

func newRulesDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete NAME",
		Short:         "Delete a saved rule no combinator references",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			sess, err := rootOpts.openDatabase(cmd.Context())
			if err != nil {
				return report(f, err)
			}
			defer sess.Close()

			if err := sess.engine.DeleteRule(args[0]); err != nil {
				return fail(f, ExitFailure, ErrCodeGeneric, err)
			}
			if err := sess.store.DeleteRule(cmd.Context(), args[0]); err != nil {
				return fail(f, ExitCommandError, ErrCodeStore, err)
			}

			if f.Format == "json" {
				return f.Success(map[string]string{"deleted": args[0]})
			}
			fmt.Fprintf(f.Writer, "✓ Deleted rule %s\n", args[0])
			return nil
		},
	}
}

func newRulesHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "history NAME",
		Short:         "Show the saved revisions of a rule",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			sess, err := rootOpts.openDatabase(cmd.Context())
			if err != nil {
				return report(f, err)
			}
			defer sess.Close()

			revs, err := sess.store.Revisions(cmd.Context(), args[0])
			if err != nil {
				return fail(f, ExitCommandError, ErrCodeStore, err)
			}
			if f.Format == "json" {
				return f.Success(revs)
			}
			printRevisions(f.Writer, args[0], revs)
			return nil
		},
	}
}

func printRevisions(w io.Writer, name string, revs []store.Revision) {
	if len(revs) == 0 {
		fmt.Fprintf(w, "No history for %s\n", name)
		return
	}
	for _, rev := range revs {
		if rev.Deleted {
			fmt.Fprintf(w, "%4d  %s  deleted\n", rev.Seq, rev.ID)
			continue
		}
		hash := rev.Hash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Fprintf(w, "%4d  %s  %s  %s\n", rev.Seq, rev.ID, hash, rev.Record.SpecificRule)
	}
}

func newRulesImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE...",
		Short: "Import the sets and rules of library files",
		Long: `Read library files (YAML, CUE or rule text; globs allowed) and store
their sets and rules, replacing those of the same name. The combined tables
are validated first; nothing is stored when any rule is invalid.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			sess, err := rootOpts.openDatabase(cmd.Context())
			if err != nil {
				return report(f, err)
			}
			defer sess.Close()

			res, err := sess.importLibrary(cmd.Context(), args, true)
			if err != nil {
				return report(f, err)
			}
			if f.Format == "json" {
				return f.Success(res)
			}
			fmt.Fprintf(f.Writer, "✓ Imported %d set(s) and %d rule(s) from %d file(s)\n", res.Sets, res.Rules, len(res.Files))
			return nil
		},
	}
}

func newRulesExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		output string
		as     string
	)

	cmd := &cobra.Command{
		Use:           "export",
		Short:         "Write the global sets and saved rules as a library file",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			format, err := exportFormat(as, output)
			if err != nil {
				return fail(f, ExitCommandError, ErrCodeInvalid, err)
			}

			sess, err := rootOpts.openSession(cmd.Context())
			if err != nil {
				return report(f, err)
			}
			defer sess.Close()

			snap := sess.engine.Snapshot()
			if err := export(f.Writer, output, snap, format); err != nil {
				return fail(f, ExitCommandError, ErrCodeIO, err)
			}
			f.VerboseLog("Exported %d set(s) and %d rule(s)", len(snap.Sets), len(snap.Rules))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file (- for stdout)")
	cmd.Flags().StringVar(&as, "as", "", "file format (yaml|json), default from the output extension or yaml")

	return cmd
}

// readText reads a whole file; "-" is stdin.
func readText(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
