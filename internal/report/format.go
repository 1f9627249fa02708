package report

import (
	"fmt"
	"math"

	"github.com/verte-zerg/repjudge/internal/judge"
)

// FormatTime renders seconds as m:ss, truncating fractions.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// EventTime renders an event's time, or "-" for untimed events.
func EventTime(ev judge.Event) string {
	if !ev.Timed {
		return "-"
	}
	return FormatTime(ev.Time)
}
