package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyInput      = "input"
	KeyOutput     = "output"
	KeyOutcome    = "outcome"
	KeyStylesheet = "stylesheet"
	KeyProject    = "project"
	KeyBaseDir    = "base_dir"
	KeyDestDir    = "dest_dir"
	KeyPath       = "path"
	KeyWorkers    = "workers"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Input(p string) slog.Attr        { return slog.String(KeyInput, p) }
func Output(p string) slog.Attr       { return slog.String(KeyOutput, p) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Stylesheet(s string) slog.Attr   { return slog.String(KeyStylesheet, s) }
func Project(p string) slog.Attr      { return slog.String(KeyProject, p) }
func BaseDir(d string) slog.Attr      { return slog.String(KeyBaseDir, d) }
func DestDir(d string) slog.Attr      { return slog.String(KeyDestDir, d) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Workers(n int) slog.Attr         { return slog.Int(KeyWorkers, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
