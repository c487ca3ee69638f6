package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xiao2945/danci-sub000/internal/ir"
	"github.com/xiao2945/danci-sub000/internal/library"
)

// NewSetsCommand creates the sets command group.
func NewSetsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sets",
		Short: "Manage global sets",
		Long: `Manage the global sets rules can reference.

The builtin sets C (consonants), V (vowels) and L (letters) always exist
and cannot be redefined. Changes are written to the database; --library
is only read by list and export.`,
	}

	cmd.AddCommand(newSetsListCommand(rootOpts))
	cmd.AddCommand(newSetsDefineCommand(rootOpts))
	cmd.AddCommand(newSetsDeleteCommand(rootOpts))
	cmd.AddCommand(newSetsExportCommand(rootOpts))
	cmd.AddCommand(newSetsImportCommand(rootOpts))

	return cmd
}

func newSetsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List global sets",
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

			sets := sess.engine.GlobalSets()
			if f.Format == "json" {
				if sets == nil {
					sets = []ir.Set{}
				}
				return f.Success(sets)
			}
			if len(sets) == 0 {
				fmt.Fprintln(f.Writer, "No global sets")
				return nil
			}
			for _, s := range sets {
				fmt.Fprintf(f.Writer, "%-12s %s\n", s.Name, ir.BraceLiteral(s.Elements))
			}
			return nil
		},
	}
}

func newSetsDefineCommand(rootOpts *RootOptions) *cobra.Command {
	var expr string

	cmd := &cobra.Command{
		Use:   "define NAME [element...]",
		Short: "Define or replace a global set",
		Long: `Define a global set from its elements, or with --expr from a set
expression over existing sets:

  danci sets define Glide w y
  danci sets define Vy --expr 'V << {y}'

Rules saved earlier keep the local sets they were saved with; rules that
reference the global set directly see the new elements.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			name, elems := args[0], args[1:]
			if expr != "" && len(elems) > 0 {
				return fail(f, ExitCommandError, ErrCodeInvalid, fmt.Errorf("set %q: give elements or --expr, not both", name))
			}

			sess, err := rootOpts.openDatabase(cmd.Context())
			if err != nil {
				return report(f, err)
			}
			defer sess.Close()

			var set ir.Set
			if expr != "" {
				set, err = sess.engine.DefineGlobalSetExpr(name, expr)
			} else {
				set, err = sess.engine.DefineGlobalSet(name, elems)
			}
			if err != nil {
				return fail(f, ExitFailure, ErrCodeInvalid, err)
			}
			if err := sess.store.SaveGlobalSet(cmd.Context(), set.Name, set.Elements); err != nil {
				return fail(f, ExitCommandError, ErrCodeStore, err)
			}

			if f.Format == "json" {
				return f.Success(set)
			}
			fmt.Fprintf(f.Writer, "✓ %s == %s\n", set.Name, ir.BraceLiteral(set.Elements))
			return nil
		},
	}

	cmd.Flags().StringVarP(&expr, "expr", "e", "", "set expression, e.g. 'V << {y}'")

	return cmd
}

func newSetsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete NAME",
		Short:         "Delete a global set no rule references",
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

			if err := sess.engine.DeleteGlobalSet(args[0]); err != nil {
				return fail(f, ExitFailure, ErrCodeGeneric, err)
			}
			if err := sess.store.DeleteGlobalSet(cmd.Context(), args[0]); err != nil {
				return fail(f, ExitCommandError, ErrCodeStore, err)
			}

			if f.Format == "json" {
				return f.Success(map[string]string{"deleted": args[0]})
			}
			fmt.Fprintf(f.Writer, "✓ Deleted set %s\n", args[0])
			return nil
		},
	}
}

func newSetsExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		output string
		as     string
	)

	cmd := &cobra.Command{
		Use:           "export",
		Short:         "Write the global sets as a library file",
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
			snap.Rules = nil
			if err := export(f.Writer, output, snap, format); err != nil {
				return fail(f, ExitCommandError, ErrCodeIO, err)
			}
			f.VerboseLog("Exported %d set(s)", len(snap.Sets))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file (- for stdout)")
	cmd.Flags().StringVar(&as, "as", "", "file format (yaml|json), default from the output extension or yaml")

	return cmd
}

func newSetsImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE...",
		Short: "Import the global sets of library files",
		Long: `Read the sets of library files (YAML, CUE or rule text; globs allowed)
and store them, replacing sets of the same name. Rules in the files are
ignored; use "rules import" to import those too.`,
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

			res, err := sess.importLibrary(cmd.Context(), args, false)
			if err != nil {
				return report(f, err)
			}
			if f.Format == "json" {
				return f.Success(res)
			}
			fmt.Fprintf(f.Writer, "✓ Imported %d set(s) from %d file(s)\n", res.Sets, len(res.Files))
			return nil
		},
	}
}

// exportFormat picks the export format from the --as flag or the output
// file extension.
func exportFormat(as, output string) (library.Format, error) {
	switch strings.ToLower(as) {
	case "yaml", "yml":
		return library.FormatYAML, nil
	case "json":
		return library.FormatJSON, nil
	case "":
	default:
		return "", fmt.Errorf("unsupported export format %q: must be yaml or json", as)
	}
	if strings.EqualFold(filepath.Ext(output), ".json") {
		return library.FormatJSON, nil
	}
	return library.FormatYAML, nil
}
