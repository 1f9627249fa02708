package judge

import (
	"fmt"
	"strings"
)

// Outcome classifies a scored attempt.
type Outcome int

// Attempt outcomes.
const (
	ValidRep Outcome = iota + 1
	NoRep
)

// String returns the label used in reports and exports.
func (o Outcome) String() string {
	switch o {
	case ValidRep:
		return "VALID REP"
	case NoRep:
		return "NO REP"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ParseOutcome resolves a label produced by Outcome.String.
func ParseOutcome(value string) (Outcome, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "VALID REP":
		return ValidRep, nil
	case "NO REP":
		return NoRep, nil
	default:
		return 0, fmt.Errorf("unknown outcome %q", value)
	}
}

// ReasonNone is the reason recorded for valid reps.
const ReasonNone = "-"

// Event is one entry of the session's append-only log.
type Event struct {
	// Time is the frame time in seconds; meaningful only when Timed is set.
	Time    float64
	Timed   bool
	Outcome Outcome
	Reason  string
}
