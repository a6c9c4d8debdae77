package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID     = "build_id"
	KeyArtifact    = "artifact"
	KeyPath        = "path"
	KeyURL         = "url"
	KeyDestination = "destination"
	KeyDistKind    = "distribution"
	KeyStage       = "stage"
	KeyDurationMS  = "duration_ms"
	KeyCacheKey    = "cache_key"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Artifact(a string) slog.Attr     { return slog.String(KeyArtifact, a) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Destination(d string) slog.Attr  { return slog.String(KeyDestination, d) }
func DistKind(k string) slog.Attr     { return slog.String(KeyDistKind, k) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func CacheKey(k string) slog.Attr     { return slog.String(KeyCacheKey, k) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
