package ui

import (
	"fmt"
	"time"
)

// DisplayTimeFormat is the time format used in command output.
const DisplayTimeFormat = "2006-01-02 15:04:05"

// FormatLocal formats t in the local zone.
func FormatLocal(t time.Time) string {
	return t.Local().Format(DisplayTimeFormat)
}

// Remaining renders the time left until t as "XhYm", or "expired".
func Remaining(t time.Time, now time.Time) string {
	d := t.Sub(now).Round(time.Minute)
	if d <= 0 {
		return "expired"
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
