package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/verte-zerg/repjudge/internal/judge"
)

var csvHeader = []string{"time", "outcome", "reason"}

// WriteCSV writes the event log as CSV with a header row.
func WriteCSV(w io.Writer, events []judge.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, ev := range events {
		if err := cw.Write([]string{EventTime(ev), ev.Outcome.String(), ev.Reason}); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
