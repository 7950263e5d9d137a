package errors

import (
	"fmt"
	"log/slog"
)

// CLIErrorAdapter handles error presentation and exit code determination for the CLI.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
//
// Compile and run failures carry the child process exit code and that code is
// returned verbatim so callers (CI) see exactly the first failing step's status.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	if se, ok := err.(*SmokeError); ok {
		if (se.Category == CategoryCompile || se.Category == CategoryRun) && se.ExitCode != 0 {
			return se.ExitCode
		}
		return a.exitCodeFromCategory(se)
	}

	return 1
}

// exitCodeFromCategory maps SmokeError categories to exit codes.
func (a *CLIErrorAdapter) exitCodeFromCategory(err *SmokeError) int {
	switch err.Category {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryConfig:
		return 7 // Configuration error
	case CategoryNetwork, CategoryGit, CategoryFetch:
		return 8 // External system error
	case CategoryToolchain, CategoryCompile, CategoryRun, CategoryFileSystem:
		return 11 // Toolchain/example error without an embedded status
	case CategoryDaemon:
		return 12 // Runtime error
	case CategoryInternal:
		return 10 // Internal error
	default:
		return 1 // General error
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	se, ok := err.(*SmokeError)
	if !ok {
		return err.Error()
	}

	msg := fmt.Sprintf("%s: %s", se.Category, se.Message)
	if a.verbose && se.Cause != nil {
		msg = fmt.Sprintf("%s\n  cause: %v", msg, se.Cause)
	}
	if a.verbose && len(se.Context) > 0 {
		for k, v := range se.Context {
			msg = fmt.Sprintf("%s\n  %s: %v", msg, k, v)
		}
	}
	return msg
}

// HandleError logs the error and returns the exit code the process should use.
func (a *CLIErrorAdapter) HandleError(err error) int {
	if err == nil {
		return 0
	}
	a.logger.Error(a.FormatError(err))
	return a.ExitCodeFor(err)
}
