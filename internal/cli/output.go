package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/xiao2945/danci-sub000/internal/engine"
	"github.com/xiao2945/danci-sub000/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rule failure (invalid rule, unknown rule or set, failed scenarios)
	ExitCommandError = 2 // Command error (invalid paths, unreadable files, database errors)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status     string      `json:"status"`               // "ok" or "error"
	Data       interface{} `json:"data,omitempty"`       // success payload
	Error      *CLIError   `json:"error,omitempty"`      // error details
	Generation int64       `json:"generation,omitempty"` // engine generation the data was read at
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "E102", "RULE_NOT_FOUND", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Error codes for failures that carry no code of their own.
const (
	ErrCodeGeneric    = "E_GENERIC"
	ErrCodeIO         = "E_IO"
	ErrCodeStore      = "E_STORE"
	ErrCodeInvalid    = "E_INVALID"
	ErrCodeTestFailed = "E_TEST_FAILED"
)

// fail reports err through f and returns it as an ExitError. The code is
// taken from err when it carries one.
func fail(f *OutputFormatter, exitCode int, fallback string, err error) error {
	code, details := errorCode(err, fallback)
	_ = f.Error(code, err.Error(), details)
	return WrapExitError(exitCode, code, err)
}

// errorCode extracts a stable code from rule and engine errors.
func errorCode(err error, fallback string) (string, interface{}) {
	var rtErr *engine.RuntimeError
	if errors.As(err, &rtErr) {
		if len(rtErr.Users) > 0 {
			return string(rtErr.Code), map[string]interface{}{"users": rtErr.Users}
		}
		return string(rtErr.Code), nil
	}
	if irErr, ok := ir.AsError(err); ok {
		return irErr.Code, nil
	}
	return fallback, nil
}
