package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyExample    = "example"
	KeyDependency = "dependency"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyName       = "name"
	KeyExitCode   = "exit_code"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr         { return slog.String(KeyRunID, id) }
func Example(e string) slog.Attr        { return slog.String(KeyExample, e) }
func Dependency(d string) slog.Attr     { return slog.String(KeyDependency, d) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr            { return slog.String(KeyURL, u) }
func Name(n string) slog.Attr           { return slog.String(KeyName, n) }
func ExitCode(code int) slog.Attr       { return slog.Int(KeyExitCode, code) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
