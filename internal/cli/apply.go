package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xiao2945/danci-sub000/internal/sorting"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Rule    string // saved rule to apply
	Words   string // word file, "-" for stdin
	Grouped bool   // print group headers
}

// ApplyResult is the output of apply.
type ApplyResult struct {
	Rule      string          `json:"rule"`
	Input     int             `json:"input"`
	Words     []string        `json:"words"`
	Groups    []sorting.Group `json:"groups,omitempty"`
	Unmatched []string        `json:"unmatched,omitempty"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply --rule NAME [word...]",
		Short: "Filter and sort words with a saved rule",
		Long: `Filter a word list with a saved rule and order the words it keeps by the
rule's display line.

Words come from the arguments, or one per line from --words (default
stdin). Blank lines are ignored and repeated words, compared without case,
keep their first spelling. Words the display line cannot place are listed
last.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Rule, "rule", "r", "", "rule name (required)")
	cmd.Flags().StringVarP(&opts.Words, "words", "w", "-", "word file, one word per line (- for stdin)")
	cmd.Flags().BoolVarP(&opts.Grouped, "grouped", "g", false, "print group headers")
	_ = cmd.MarkFlagRequired("rule")

	return cmd
}

func runApply(opts *ApplyOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	words, err := openWords(args, opts.Words, cmd.InOrStdin())
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeIO, err)
	}

	sess, err := opts.openSession(cmd.Context())
	if err != nil {
		return report(f, err)
	}
	defer sess.Close()

	res, err := sess.engine.ApplyRuleGrouped(words, opts.Rule)
	if err != nil {
		return fail(f, ExitFailure, ErrCodeGeneric, err)
	}
	f.VerboseLog("%s kept %d of %d word(s)", opts.Rule, res.Len(), len(words))

	if f.Format == "json" {
		out := ApplyResult{
			Rule:  opts.Rule,
			Input: len(words),
			Words: res.Flatten(),
		}
		if out.Words == nil {
			out.Words = []string{}
		}
		if opts.Grouped {
			out.Groups = res.Groups
			out.Unmatched = res.Unmatched
		}
		return f.Success(out)
	}

	w := f.Writer
	if !opts.Grouped {
		for _, word := range res.Flatten() {
			fmt.Fprintln(w, word)
		}
		return nil
	}
	for _, g := range res.Groups {
		if g.Label != "" {
			fmt.Fprintf(w, "[%s]\n", g.Label)
		}
		for _, word := range g.Words {
			fmt.Fprintf(w, "  %s\n", word)
		}
	}
	if len(res.Unmatched) > 0 {
		fmt.Fprintln(w, "[unsorted]")
		for _, word := range res.Unmatched {
			fmt.Fprintf(w, "  %s\n", word)
		}
	}
	return nil
}

// MatchOptions holds flags for the match command.
type MatchOptions struct {
	*RootOptions
	Rule  string
	Words string
}

// WordMatch is one line of match output.
type WordMatch struct {
	Word  string `json:"word"`
	Match bool   `json:"match"`
}

// MatchResult is the output of match.
type MatchResult struct {
	Rule    string      `json:"rule"`
	Results []WordMatch `json:"results"`
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "match --rule NAME [word...]",
		Short: "Report whether each word satisfies a saved rule",
		Long: `Test words against a saved rule without sorting them.

Prints one line per word with true or false. Words come from the arguments
or from --words like apply.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Rule, "rule", "r", "", "rule name (required)")
	cmd.Flags().StringVarP(&opts.Words, "words", "w", "-", "word file, one word per line (- for stdin)")
	_ = cmd.MarkFlagRequired("rule")

	return cmd
}

func runMatch(opts *MatchOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	words, err := openWords(args, opts.Words, cmd.InOrStdin())
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeIO, err)
	}

	sess, err := opts.openSession(cmd.Context())
	if err != nil {
		return report(f, err)
	}
	defer sess.Close()

	out := MatchResult{Rule: opts.Rule, Results: make([]WordMatch, 0, len(words))}
	for _, word := range words {
		ok, err := sess.engine.MatchesRule(word, opts.Rule)
		if err != nil {
			return fail(f, ExitFailure, ErrCodeGeneric, err)
		}
		out.Results = append(out.Results, WordMatch{Word: word, Match: ok})
	}

	if f.Format == "json" {
		return f.Success(out)
	}
	for _, m := range out.Results {
		fmt.Fprintf(f.Writer, "%s\t%t\n", m.Word, m.Match)
	}
	return nil
}

// PreviewResult is the output of preview.
type PreviewResult struct {
	Rule    string `json:"rule"`
	Preview string `json:"preview"`
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "preview NAME",
		Short:         "Show a saved rule with the sets it uses",
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

			text, err := sess.engine.Preview(args[0])
			if err != nil {
				return fail(f, ExitFailure, ErrCodeGeneric, err)
			}
			if f.Format == "json" {
				return f.Success(PreviewResult{Rule: args[0], Preview: text})
			}
			fmt.Fprint(f.Writer, text)
			return nil
		},
	}
}
