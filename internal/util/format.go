package util //nolint:revive // package name util hosts shared formatting helpers used by the CLI and notifiers

import "time"

// FormatDuration formats a run duration for display. Zero or negative
// durations render as "n/a"; anything over a millisecond is truncated to
// millisecond precision.
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "n/a"
	case d < time.Millisecond:
		return d.String()
	default:
		return d.Truncate(time.Millisecond).String()
	}
}
