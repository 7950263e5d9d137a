// Package errors provides a lightweight structured error type (SmokeError)
// for category-based classification, retry semantics, and CLI exit codes.
package errors

import (
	"fmt"
)

// ErrorCategory represents the category of a docsmoke error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// External system integration errors
	CategoryNetwork ErrorCategory = "network"
	CategoryGit     ErrorCategory = "git"
	CategoryFetch   ErrorCategory = "fetch"

	// Toolchain and example execution errors
	CategoryToolchain  ErrorCategory = "toolchain"
	CategoryCompile    ErrorCategory = "compile"
	CategoryRun        ErrorCategory = "run"
	CategoryFileSystem ErrorCategory = "filesystem"

	// Runtime and infrastructure errors
	CategoryDaemon   ErrorCategory = "daemon"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// SmokeError is a structured error with category, retryability, and context.
// Compile and run failures additionally carry the child process exit code so
// the CLI can propagate it verbatim.
type SmokeError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	ExitCode  int           `json:"exit_code,omitempty"` // child process exit code, 0 when not applicable
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for SmokeError
type ContextFields map[string]any

// Error implements the error interface
func (e *SmokeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *SmokeError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *SmokeError) WithContext(key string, value any) *SmokeError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// WithExitCode attaches a child process exit code to the error.
func (e *SmokeError) WithExitCode(code int) *SmokeError {
	e.ExitCode = code
	return e
}

// New creates a new SmokeError
func New(category ErrorCategory, severity ErrorSeverity, message string) *SmokeError {
	return &SmokeError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new SmokeError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *SmokeError {
	return &SmokeError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// WrapRetryable creates a new retryable SmokeError that wraps an existing error
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *SmokeError {
	return &SmokeError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if se, ok := err.(*SmokeError); ok {
		return se.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if se, ok := err.(*SmokeError); ok {
		return se.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a SmokeError
func GetCategory(err error) ErrorCategory {
	if se, ok := err.(*SmokeError); ok {
		return se.Category
	}
	return CategoryInternal
}

// GetExitCode extracts an embedded child process exit code, or 0 when absent.
func GetExitCode(err error) int {
	if se, ok := err.(*SmokeError); ok {
		return se.ExitCode
	}
	return 0
}

// ValidationError creates a new validation error (invalid usage)
func ValidationError(message string) *SmokeError {
	return &SmokeError{
		Category: CategoryValidation,
		Severity: SeverityWarning,
		Message:  message,
	}
}

// ConfigError creates a new configuration error
func ConfigError(message string) *SmokeError {
	return &SmokeError{
		Category: CategoryConfig,
		Severity: SeverityFatal,
		Message:  message,
	}
}

// CompileFailure creates a compile error carrying the compiler's exit code.
func CompileFailure(example string, exitCode int, cause error) *SmokeError {
	e := &SmokeError{
		Category: CategoryCompile,
		Severity: SeverityFatal,
		Message:  fmt.Sprintf("example %s failed to compile", example),
		Cause:    cause,
		ExitCode: exitCode,
	}
	return e.WithContext("example", example)
}

// RunFailure creates a run error carrying the example binary's exit code.
func RunFailure(example string, exitCode int, cause error) *SmokeError {
	e := &SmokeError{
		Category: CategoryRun,
		Severity: SeverityFatal,
		Message:  fmt.Sprintf("example %s exited with status %d", example, exitCode),
		Cause:    cause,
		ExitCode: exitCode,
	}
	return e.WithContext("example", example)
}
