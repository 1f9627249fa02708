// Package report renders judging results for terminals and exports.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/repjudge/internal/analysis"
	"github.com/verte-zerg/repjudge/internal/judge"
	"github.com/verte-zerg/repjudge/internal/model"
)

const (
	sparkChars    = " .:-=+*#%@"
	colorReset    = "\x1b[0m"
	colorNoRep    = "\x1b[1;31m"
	colorValidRep = "\x1b[32m"
	traceMinWidth = 10
)

// Scorecard is the printable view of one session.
type Scorecard struct {
	SessionID string
	Movement  string
	Depth     float64
	Extension float64
	Reps      int
	NoReps    int
	Frames    int
	Skipped   int
	Analyzed  float64
	Events    []judge.Event
	KneeTrace []float64
}

// FromSummary builds a scorecard from a finished analysis run.
func FromSummary(s analysis.Summary) Scorecard {
	return Scorecard{
		Movement:  s.Config.Movement.String(),
		Depth:     s.Config.DepthThreshold,
		Extension: s.Config.ExtensionThreshold,
		Reps:      s.Reps,
		NoReps:    s.NoReps,
		Frames:    s.Frames,
		Skipped:   s.Skipped,
		Analyzed:  s.Analyzed,
		Events:    s.Events,
		KneeTrace: s.KneeTrace,
	}
}

// FromSession builds a scorecard from a stored session.
func FromSession(sess model.Session, events []judge.Event) Scorecard {
	name := sess.Movement
	if m, err := judge.ParseMovement(sess.Movement); err == nil {
		name = m.String()
	}
	return Scorecard{
		SessionID: sess.UUID,
		Movement:  name,
		Depth:     sess.DepthThreshold,
		Extension: sess.ExtensionThreshold,
		Reps:      sess.Reps,
		NoReps:    sess.NoReps,
		Frames:    sess.Frames,
		Skipped:   sess.SkippedFrames,
		Analyzed:  sess.AnalyzedSeconds,
		Events:    events,
	}
}

// RenderOptions controls terminal rendering.
type RenderOptions struct {
	Color bool
	Width int
	// Chart replaces the knee sparkline with a braille angle chart.
	Chart bool
}

// RenderScorecard prints the summary, event table and knee trace.
func RenderScorecard(w io.Writer, sc Scorecard, opts RenderOptions) error {
	if err := RenderSummary(w, sc); err != nil {
		return err
	}
	if err := RenderEvents(w, sc.Events, opts.Color); err != nil {
		return err
	}
	if opts.Chart {
		return RenderAngleChart(w, sc.KneeTrace, sc.Depth, sc.Extension, opts.Width, 0, opts.Color)
	}
	return RenderTrace(w, sc.KneeTrace, opts.Width)
}

// RenderSummary prints the headline metrics.
func RenderSummary(w io.Writer, sc Scorecard) error {
	lines := []string{"Validator Report"}
	if sc.SessionID != "" {
		lines = append(lines, fmt.Sprintf("Session: %s", sc.SessionID))
	}
	lines = append(lines,
		fmt.Sprintf("Movement: %s (depth < %.0f°, extension > %.0f°)", sc.Movement, sc.Depth, sc.Extension),
		fmt.Sprintf("Total Valid Reps: %d", sc.Reps),
		fmt.Sprintf("No-Reps Detected: %d", sc.NoReps),
		fmt.Sprintf("Video Time Analyzed: %s", FormatTime(sc.Analyzed)),
		fmt.Sprintf("Frames: %d (%d without a usable pose)", sc.Frames, sc.Skipped),
		"",
	)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderEvents prints the event log as an aligned table.
func RenderEvents(w io.Writer, events []judge.Event, useColor bool) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "No reps or attempts detected in this timeframe.")
		return err
	}
	headers := []string{"#", "Time", "Outcome", "Reason"}
	rows := make([][]string, 0, len(events))
	for i, ev := range events {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			EventTime(ev),
			ev.Outcome.String(),
			ev.Reason,
		})
	}
	lines := formatTable(headers, rows, map[int]bool{0: true, 1: true})
	for i, line := range lines {
		if useColor && i > 0 {
			line = colorize(line, events[i-1].Outcome)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func colorize(line string, outcome judge.Outcome) string {
	switch outcome {
	case judge.NoRep:
		return colorNoRep + line + colorReset
	case judge.ValidRep:
		return colorValidRep + line + colorReset
	default:
		return line
	}
}

// RenderTrace prints a knee-angle sparkline resampled to width.
func RenderTrace(w io.Writer, trace []float64, width int) error {
	if len(trace) == 0 {
		return nil
	}
	if width <= 0 {
		width = TerminalWidth()
	}
	width -= len("Knee  ")
	if width < traceMinWidth {
		width = traceMinWidth
	}
	values := resample(trace, width)
	minVal, maxVal := minMax(trace)
	if _, err := fmt.Fprintf(w, "Knee angle (min %.0f°, max %.0f°)\n", minVal, maxVal); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Knee  %s\n", Sparkline(values))
	return err
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := minMax(values)
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

func minMax(values []float64) (float64, float64) {
	minVal := math.Inf(1)
	maxVal := math.Inf(-1)
	for _, v := range values {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.IsInf(minVal, 1) {
		return 0, 0
	}
	return minVal, maxVal
}

// resample averages buckets when shrinking and never stretches a short series.
func resample(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	for i := 0; i < width; i++ {
		start := i * len(values) / width
		end := (i + 1) * len(values) / width
		if end <= start {
			end = start + 1
		}
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}
