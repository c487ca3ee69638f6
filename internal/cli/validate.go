package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xiao2945/danci-sub000/internal/ir"
	"github.com/xiao2945/danci-sub000/internal/library"
)

// ValidationError is one problem found in a library file.
type ValidationError struct {
	File    string       `json:"file,omitempty"`
	Line    int          `json:"line,omitempty"`
	Code    string       `json:"code"`
	Kind    ir.ErrorKind `json:"kind,omitempty"`
	Message string       `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Rules  int               `json:"rules"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check rule library files without saving anything",
		Long: `Parse and validate every rule of the given library files.

Files may be YAML (.yaml, .yml), CUE (.cue) or rule text (.rules, .txt);
directories and ** globs are expanded. All files are checked together, so
a combinator may reference a rule defined in another file. Every error is
reported with its file and line.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, patterns []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	files, err := library.Discover(patterns)
	if err != nil {
		return outputValidateError(formatter, ErrCodeIO, err.Error())
	}
	if len(files) == 0 {
		return outputValidateError(formatter, ErrCodeIO, fmt.Sprintf("no library files match %v", patterns))
	}
	formatter.VerboseLog("Found %d library file(s)", len(files))

	lib, loadErrs := library.LoadAll(files)
	errs := append(loadErrs, lib.Validate(opts.cfg.Limits)...)
	for _, e := range lib.Entries {
		formatter.VerboseLog("Validated rule: %s (%s:%d)", e.Rule.Name, e.Source.Path, e.Source.Line)
	}

	result := ValidationResult{
		Valid: len(errs) == 0,
		Files: len(files),
		Rules: len(lib.Entries),
	}
	for _, err := range errs {
		result.Errors = append(result.Errors, toValidationError(err))
	}

	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// toValidationError flattens a library error.
func toValidationError(err error) ValidationError {
	var v ValidationError
	var loadErr *library.LoadError
	if errors.As(err, &loadErr) {
		v.File = loadErr.Path
		v.Line = loadErr.Line
		err = loadErr.Err
	}
	if irErr, ok := ir.AsError(err); ok {
		v.Code = irErr.Code
		v.Kind = irErr.Kind
		v.Message = irErr.Message
		return v
	}
	v.Code = ErrCodeInvalid
	v.Message = err.Error()
	return v
}

func (v ValidationError) String() string {
	msg := fmt.Sprintf("[%s] %s", v.Code, v.Message)
	switch {
	case v.File != "" && v.Line > 0:
		return fmt.Sprintf("%s:%d: %s", v.File, v.Line, msg)
	case v.File != "":
		return fmt.Sprintf("%s: %s", v.File, msg)
	}
	return msg
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All rules valid (%d rule(s) in %d file(s))\n", result.Rules, result.Files)
	return nil
}

// outputValidateError outputs a single command error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Unreadable input is a command-level error (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  %s\n", e)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
