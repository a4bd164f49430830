package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rewrite or verification failure (non-termination, timeouts, failing fixtures)
	ExitCommandError = 2 // Usage or catalog error (bad flags, unreadable paths, rejected catalog)
)

// Error codes reported in JSON responses. Catalog problems carry the
// compiler's own E201-E220 codes.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeNotFound      = "E005" // Path or run not found
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeUnit          = "E008" // Unit file does not load
	ErrCodeStore         = "E009" // Run store error
	ErrCodeCatalog       = "E200" // Catalog rejected
	ErrCodeRewriteFailed = "E_REWRITE_FAILED"
	ErrCodeVerifyFailed  = "E_VERIFY_FAILED"
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

// GetExitCode extracts the exit code from an error. nil maps to
// ExitSuccess; errors that are not an ExitError map to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or as a JSON CLIResponse.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose messages; defaults to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command result.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // command payload
	Error  *CLIError `json:"error,omitempty"` // set when Status is "error"
}

// CLIError is the error part of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`    // ErrCode* or a catalog E2xx code
	Message string `json:"message"` // human-readable message
}

// JSON reports whether the formatter writes JSON.
func (f *OutputFormatter) JSON() bool { return f.Format == "json" }

// Emit writes data as a CLIResponse in JSON mode and calls text otherwise.
// A non-nil cliErr marks the response as an error while still carrying
// data, so failed runs keep their per-unit details.
func (f *OutputFormatter) Emit(data any, cliErr *CLIError, text func(w io.Writer)) error {
	if f.JSON() {
		resp := CLIResponse{Status: "ok", Data: data, Error: cliErr}
		if cliErr != nil {
			resp.Status = "error"
		}
		return json.NewEncoder(f.Writer).Encode(resp)
	}
	text(f.Writer)
	return nil
}

// Fail reports an error that ends the command and returns it as an
// ExitError carrying exitCode. err, when set, is appended to the message.
func (f *OutputFormatter) Fail(exitCode int, code, message string, err error) error {
	cliErr := &CLIError{Code: code, Message: message}
	if err != nil {
		cliErr.Message = fmt.Sprintf("%s: %v", message, err)
	}
	var werr error
	if f.JSON() {
		werr = json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: cliErr})
	} else {
		_, werr = fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, cliErr.Message)
	}
	if werr != nil {
		return werr
	}
	return WrapExitError(exitCode, fmt.Sprintf("[%s] %s", code, message), err)
}

// VerboseLog writes a message with --verbose only. It goes to ErrWriter so
// JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
