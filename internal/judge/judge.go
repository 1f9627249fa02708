// Package judge implements the repetition-judging state machine.
package judge

import (
	"fmt"

	"github.com/verte-zerg/repjudge/internal/pose"
)

// Phase is the judge's position in the rep cycle.
type Phase int

// Rep cycle phases.
const (
	PhaseStart Phase = iota
	PhaseBottom
	PhaseTop
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseBottom:
		return "bottom"
	case PhaseTop:
		return "top"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Feedback messages.
const (
	FeedbackSetup = "Setup"
	FeedbackRep   = "REP!"
	FeedbackNoRep = "NO REP"
)

// State is the mutable part of a session.
type State struct {
	Phase    Phase
	Reps     int
	NoReps   int
	Feedback string
}

// Result describes the judge after one frame.
type Result struct {
	State
	Angles Angles
	// Observed is false when the frame was skipped.
	Observed bool
	// Event is the log entry appended by this frame, if any.
	Event *Event
}

// Judge scores one continuous session. It is not safe for concurrent use.
type Judge struct {
	cfg    Config
	policy Policy
	state  State
	events []Event
}

// New validates cfg and returns a judge in the start phase.
func New(cfg Config) (*Judge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Judge{
		cfg:    cfg,
		policy: policies[cfg.Movement],
		state:  State{Phase: PhaseStart, Feedback: FeedbackSetup},
	}, nil
}

// Config returns the session standard.
func (j *Judge) Config() Config { return j.cfg }

// Policy returns the movement rules in use.
func (j *Judge) Policy() Policy { return j.policy }

// State returns a copy of the current state.
func (j *Judge) State() State { return j.state }

// Reps returns the number of valid reps so far.
func (j *Judge) Reps() int { return j.state.Reps }

// NoReps returns the number of failed attempts so far.
func (j *Judge) NoReps() int { return j.state.NoReps }

// Feedback returns the latest feedback message.
func (j *Judge) Feedback() string { return j.state.Feedback }

// Events returns a copy of the event log in insertion order.
func (j *Judge) Events() []Event {
	out := make([]Event, len(j.events))
	copy(out, j.events)
	return out
}

// Process judges an untimed frame.
func (j *Judge) Process(s pose.Snapshot) (Result, error) {
	return j.process(s, 0, false)
}

// ProcessAt judges a frame observed at the given time in seconds.
func (j *Judge) ProcessAt(s pose.Snapshot, seconds float64) (Result, error) {
	return j.process(s, seconds, true)
}

// process advances the phase machine by one frame. A scored attempt leaves
// the judge in PhaseTop, so an athlete holding the top position cannot be
// scored again until a new depth frame moves the judge back to PhaseBottom.
func (j *Judge) process(s pose.Snapshot, seconds float64, timed bool) (Result, error) {
	if missing := s.Missing(j.policy.RequiredJoints()); len(missing) > 0 {
		return j.result(unmeasured(), false, nil), &MissingLandmarkError{Joints: missing}
	}
	angles, err := j.policy.measure(s)
	if err != nil {
		return j.result(unmeasured(), false, nil), err
	}

	if j.policy.Depth(angles, j.cfg) {
		j.state.Phase = PhaseBottom
		j.state.Feedback = j.policy.DepthFeedback
		return j.result(angles, true, nil), nil
	}

	if j.state.Phase != PhaseBottom || !j.policy.Extension(angles, j.cfg) {
		return j.result(angles, true, nil), nil
	}

	ev := Event{Time: seconds, Timed: timed}
	if ok, reason := j.policy.Lockout(angles, j.cfg); ok {
		j.state.Reps++
		j.state.Feedback = FeedbackRep
		ev.Outcome = ValidRep
		ev.Reason = ReasonNone
	} else {
		j.state.NoReps++
		j.state.Feedback = FeedbackNoRep
		ev.Outcome = NoRep
		ev.Reason = reason
	}
	j.state.Phase = PhaseTop
	j.events = append(j.events, ev)
	return j.result(angles, true, &ev), nil
}

func (j *Judge) result(angles Angles, observed bool, ev *Event) Result {
	return Result{
		State:    j.state,
		Angles:   angles,
		Observed: observed,
		Event:    ev,
	}
}
