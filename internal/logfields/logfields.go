// Package logfields holds canonical log field name constants to avoid drift
// across packages.
package logfields

import "log/slog"

const (
	KeyTransitionID = "transition_id"
	KeySource       = "source"
	KeyTarget       = "target"
	KeyUnit         = "unit"
	KeyDevice       = "device"
	KeySubject      = "subject"
	KeyDurationMS   = "duration_ms"
	KeyError        = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func TransitionID(id string) slog.Attr { return slog.String(KeyTransitionID, id) }
func Source(s string) slog.Attr        { return slog.String(KeySource, s) }
func Target(t string) slog.Attr        { return slog.String(KeyTarget, t) }
func Unit(u string) slog.Attr          { return slog.String(KeyUnit, u) }
func Device(d string) slog.Attr        { return slog.String(KeyDevice, d) }
func Subject(s string) slog.Attr       { return slog.String(KeySubject, s) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
