package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/repjudge/internal/analysis"
	"github.com/verte-zerg/repjudge/internal/judge"
	"github.com/verte-zerg/repjudge/internal/pose"
)

func lm(x, y float64) pose.Landmark {
	return pose.Landmark{X: x, Y: y}
}

func deepFrame(i int) pose.Frame {
	return pose.Frame{Index: i, Joints: map[string]pose.Landmark{
		"shoulder": lm(0.4, 0.45),
		"elbow":    lm(0.45, 0.4),
		"wrist":    lm(0.5, 0.35),
		"hip":      lm(0.3, 0.75),
		"knee":     lm(0.5, 0.7),
		"ankle":    lm(0.5, 0.9),
	}}
}

func standFrame(i int) pose.Frame {
	return pose.Frame{Index: i, Joints: map[string]pose.Landmark{
		"shoulder": lm(0.5, 0.3),
		"elbow":    lm(0.5, 0.2),
		"wrist":    lm(0.5, 0.1),
		"hip":      lm(0.5, 0.5),
		"knee":     lm(0.5, 0.7),
		"ankle":    lm(0.5, 0.9),
	}}
}

func newReplay(t *testing.T, frames []pose.Frame, maxDuration float64) *Model {
	t.Helper()
	j, err := judge.New(judge.DefaultConfig(judge.Thruster))
	if err != nil {
		t.Fatalf("new judge: %v", err)
	}
	session := analysis.NewSession(j, analysis.Options{FPS: 30, MaxDuration: maxDuration})
	return NewModel(session, frames, 30, 4, "test.jsonl")
}

func TestReplayStepsThroughFrames(t *testing.T) {
	frames := []pose.Frame{{Index: 0}, deepFrame(1), standFrame(2), standFrame(3)}
	m := newReplay(t, frames, 0)
	if m.Init() == nil {
		t.Fatalf("expected initial tick")
	}
	for i := 0; i < len(frames); i++ {
		m.Update(tickMsg{})
	}
	if !m.done {
		t.Fatalf("expected replay to finish")
	}
	sum := m.Summary()
	if sum.Reps != 1 || sum.NoReps != 0 || sum.Frames != 4 || sum.Skipped != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.Stop != analysis.StopEndOfStream {
		t.Fatalf("unexpected stop reason: %s", sum.Stop)
	}
	if m.state.Feedback != judge.FeedbackRep {
		t.Fatalf("expected rep feedback, got %q", m.state.Feedback)
	}
	if m.Interrupted() {
		t.Fatalf("finished replay should not be interrupted")
	}
}

func TestReplayStopsAtDurationLimit(t *testing.T) {
	frames := []pose.Frame{deepFrame(0), standFrame(30), standFrame(90)}
	m := newReplay(t, frames, 1.5)
	for i := 0; i < len(frames); i++ {
		m.Update(tickMsg{})
	}
	sum := m.Summary()
	if sum.Frames != 2 || sum.Stop != analysis.StopMaxDuration {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestReplayPauseAndQuit(t *testing.T) {
	frames := []pose.Frame{deepFrame(0), standFrame(1)}
	m := newReplay(t, frames, 0)
	m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if !m.paused {
		t.Fatalf("expected paused replay")
	}
	m.Update(tickMsg{})
	if m.next != 0 {
		t.Fatalf("paused replay should not advance")
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if !m.Interrupted() || m.Summary().Stop != analysis.StopCanceled {
		t.Fatalf("expected canceled replay, got %+v", m.Summary())
	}
}

func TestReplayResumeKeepsOneTickChain(t *testing.T) {
	frames := []pose.Frame{deepFrame(0), standFrame(1), deepFrame(2), standFrame(3)}
	m := newReplay(t, frames, 0)
	if _, cmd := m.Update(tickMsg{seq: m.seq}); cmd == nil {
		t.Fatalf("expected pending tick after first frame")
	}
	pending := tickMsg{seq: m.seq}

	space := tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	m.Update(space)
	_, resume := m.Update(space)
	if m.paused || resume == nil {
		t.Fatalf("expected resumed replay with a tick command")
	}
	resumed, ok := resume().(tickMsg)
	if !ok {
		t.Fatalf("expected tick message from resume")
	}

	m.Update(pending)
	if m.next != 1 {
		t.Fatalf("stale tick advanced replay: next=%d", m.next)
	}
	_, cmd := m.Update(resumed)
	if m.next != 2 {
		t.Fatalf("resumed tick should advance once: next=%d", m.next)
	}
	if cmd == nil {
		t.Fatalf("expected next tick after resumed frame")
	}
	if next, ok := cmd().(tickMsg); !ok || next.seq != resumed.seq {
		t.Fatalf("next tick should continue the resumed chain, got %+v", next)
	}
}

func TestRenderStatusFormats(t *testing.T) {
	m := newReplay(t, make([]pose.Frame, 4), 0)
	m.next = 2
	m.at = 75
	m.state = judge.State{Reps: 3, NoReps: 1}
	out := m.renderStatus()
	for _, want := range []string{"Reps 3", "No-reps 1", "Time 1:15", "Progress 50%", "Speed 4x"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status missing %q: %s", want, out)
		}
	}
}

func TestViewShowsFeedbackAndAngles(t *testing.T) {
	frames := []pose.Frame{standFrame(0)}
	m := newReplay(t, frames, 0)
	m.Update(tickMsg{})
	out := m.View()
	for _, want := range []string{"Thruster", "Setup", "REPS: 0", "Knee 180°", "Elbow 180°", "Replay finished"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
}
