package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyFile       = "file"
	KeyKind       = "kind"
	KeyBackend    = "backend"
	KeyStage      = "stage"
	KeyPages      = "pages"
	KeyRule       = "rule"
	KeyIdentifier = "identifier"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func Backend(b string) slog.Attr      { return slog.String(KeyBackend, b) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Pages(n int) slog.Attr           { return slog.Int(KeyPages, n) }
func Rule(r string) slog.Attr         { return slog.String(KeyRule, r) }
func Identifier(id string) slog.Attr  { return slog.String(KeyIdentifier, id) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
