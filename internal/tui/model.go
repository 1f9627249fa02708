// Package tui provides the Bubble Tea replay interface.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/repjudge/internal/analysis"
	"github.com/verte-zerg/repjudge/internal/judge"
	"github.com/verte-zerg/repjudge/internal/pose"
	"github.com/verte-zerg/repjudge/internal/report"
)

// minDelay keeps the ticker from spinning on identical timestamps.
const minDelay = time.Millisecond

// Model implements the Bubble Tea replay UI.
type Model struct {
	session *analysis.Session
	frames  []pose.Frame
	fps     float64
	speed   float64
	source  string

	width  int
	height int

	next     int
	at       float64
	state    judge.State
	angles   judge.Angles
	observed bool
	lastErr  error
	lastRep  *judge.Event

	paused      bool
	done        bool
	interrupted bool
	// seq tags the live tick chain; ticks from older chains are dropped.
	seq int
}

type tickMsg struct {
	seq int
}

var (
	repStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	noRepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	neutralStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs a replay model over preloaded frames. speed scales
// playback; values <= 0 mean real time.
func NewModel(session *analysis.Session, frames []pose.Frame, fps, speed float64, source string) *Model {
	if fps <= 0 {
		fps = analysis.DefaultFPS
	}
	if speed <= 0 {
		speed = 1
	}
	return &Model{
		session: session,
		frames:  frames,
		fps:     fps,
		speed:   speed,
		source:  source,
		state:   session.Judge().State(),
	}
}

// Summary returns the session outcome so far.
func (m *Model) Summary() analysis.Summary {
	return m.session.Summary()
}

// Interrupted reports whether the user quit before the stream ended.
func (m *Model) Interrupted() bool {
	return m.interrupted
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if len(m.frames) == 0 {
		m.finish(analysis.StopEndOfStream)
		return nil
	}
	return tick(m.seq, 0)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.done {
				m.interrupted = true
				m.finish(analysis.StopCanceled)
			}
			return m, tea.Quit
		case " ", "space":
			if m.done {
				return m, nil
			}
			m.paused = !m.paused
			m.seq++
			if !m.paused {
				return m, tick(m.seq, 0)
			}
			return m, nil
		}
		return m, nil
	case tickMsg:
		if msg.seq != m.seq || m.paused || m.done {
			return m, nil
		}
		return m, m.advance()
	default:
		return m, nil
	}
}

func (m *Model) advance() tea.Cmd {
	if m.next >= len(m.frames) {
		m.finish(analysis.StopEndOfStream)
		return nil
	}
	frame := m.frames[m.next]
	if !m.session.Within(frame) {
		m.finish(analysis.StopMaxDuration)
		return nil
	}
	step := m.session.Step(frame)
	m.next++
	m.at = step.Time
	m.state = step.Result.State
	m.observed = step.Result.Observed
	m.lastErr = step.Err
	if step.Result.Observed {
		m.angles = step.Result.Angles
	}
	if step.Result.Event != nil {
		ev := *step.Result.Event
		m.lastRep = &ev
	}
	if m.next >= len(m.frames) {
		m.finish(analysis.StopEndOfStream)
		return nil
	}
	return tick(m.seq, m.delay(frame, m.frames[m.next]))
}

func (m *Model) delay(cur, next pose.Frame) time.Duration {
	gap := analysis.FrameTime(next, m.fps) - analysis.FrameTime(cur, m.fps)
	d := time.Duration(gap / m.speed * float64(time.Second))
	if d < minDelay {
		return minDelay
	}
	return d
}

func (m *Model) finish(reason analysis.StopReason) {
	if m.done {
		return
	}
	m.done = true
	m.session.Stop(reason)
}

func tick(seq int, d time.Duration) tea.Cmd {
	if d <= 0 {
		return func() tea.Msg { return tickMsg{seq: seq} }
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return tickMsg{seq: seq} })
}

// View implements tea.Model.
func (m *Model) View() string {
	content := m.renderBody()
	footer := footerStyle.Render(m.renderStatus())
	if m.width == 0 || m.height == 0 {
		return content + "\n\n" + footer
	}
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderBody() string {
	policy := m.session.Judge().Policy()
	lines := []string{
		dimStyle.Render(fmt.Sprintf("%s  %s", policy.Name, m.source)),
		"",
		feedbackStyle(m.state.Feedback).Render(m.state.Feedback),
		"",
		fmt.Sprintf("REPS: %d", m.state.Reps),
		fmt.Sprintf("NO-REPS: %d", m.state.NoReps),
		"",
		m.renderAngles(),
	}
	if m.lastRep != nil && m.lastRep.Outcome == judge.NoRep {
		lines = append(lines, noRepStyle.Render("Last no-rep: "+m.lastRep.Reason))
	}
	if m.lastErr != nil {
		lines = append(lines, dimStyle.Render(m.lastErr.Error()))
	}
	if m.done {
		lines = append(lines, "", dimStyle.Render("Replay finished, press q to exit"))
	} else if m.paused {
		lines = append(lines, "", dimStyle.Render("Paused, press space to resume"))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderAngles() string {
	if !m.observed {
		return dimStyle.Render("no pose")
	}
	parts := []string{
		"Knee " + formatAngle(m.angles.Knee),
		"Hip " + formatAngle(m.angles.Hip),
	}
	if !math.IsNaN(m.angles.Elbow) {
		parts = append(parts, "Elbow "+formatAngle(m.angles.Elbow))
	}
	return strings.Join(parts, "  ")
}

func (m *Model) renderStatus() string {
	progress := 100
	if len(m.frames) > 0 {
		progress = int(float64(m.next) / float64(len(m.frames)) * 100)
	}
	segments := []string{
		fmt.Sprintf("Reps %d", m.state.Reps),
		fmt.Sprintf("No-reps %d", m.state.NoReps),
		fmt.Sprintf("Time %s", report.FormatTime(m.at)),
		fmt.Sprintf("Progress %d%%", progress),
	}
	if m.speed != 1 {
		segments = append(segments, fmt.Sprintf("Speed %gx", m.speed))
	}
	return strings.Join(segments, "  ")
}

func feedbackStyle(feedback string) lipgloss.Style {
	switch feedback {
	case judge.FeedbackRep:
		return repStyle
	case judge.FeedbackNoRep:
		return noRepStyle
	default:
		return neutralStyle
	}
}

func formatAngle(deg float64) string {
	if math.IsNaN(deg) {
		return "-"
	}
	return fmt.Sprintf("%.0f°", deg)
}
