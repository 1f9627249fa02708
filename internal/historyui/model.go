// Package historyui provides the Bubble Tea session history interface.
package historyui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/verte-zerg/repjudge/internal/judge"
	"github.com/verte-zerg/repjudge/internal/model"
	"github.com/verte-zerg/repjudge/internal/report"
	"github.com/verte-zerg/repjudge/internal/store"
)

const eventCacheSize = 64

const (
	tabSessions = iota
	tabDetail
	tabOverview
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea history UI.
type Model struct {
	store *store.Store
	cfg   model.HistoryConfig

	history  report.History
	errMsg   string
	selected *model.Session
	events   *lru.Cache[int64, []judge.Event]

	tabs      []string
	activeTab int
	sessions  table.Model
	detail    viewport.Model
	overview  viewport.Model

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

// NewModel constructs a history UI model.
func NewModel(st *store.Store, cfg model.HistoryConfig) *Model {
	m := &Model{
		store:    st,
		cfg:      cfg,
		tabs:     []string{"Sessions", "Detail", "Overview"},
		detail:   viewport.New(0, 0),
		overview: viewport.New(0, 0),
	}
	// Only fails for a non-positive size.
	m.events, _ = lru.New[int64, []judge.Event](eventCacheSize)
	m.initInputs()
	m.sessions = table.New(
		table.WithColumns(sessionColumns()),
		table.WithFocused(true),
		table.WithHeight(1),
	)
	m.sessions.SetStyles(tableStyles())
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "/":
			return m.startFilter()
		case "enter":
			if m.activeTab == tabSessions {
				m.openSelected()
			}
			return m, nil
		}
		var cmd tea.Cmd
		switch m.activeTab {
		case tabSessions:
			m.sessions, cmd = m.sessions.Update(msg)
		case tabDetail:
			m.detail, cmd = m.detail.Update(msg)
		default:
			m.overview, cmd = m.overview.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Movement: "),
		newFilterInput("Since (YYYY-MM-DD): "),
		newFilterInput("Last: "),
	}
	m.setInputsFromConfig()
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	m.filterInputs[0].SetValue(m.cfg.Movement)
	if m.cfg.Since != nil {
		m.filterInputs[1].SetValue(m.cfg.Since.Format("2006-01-02"))
	} else {
		m.filterInputs[1].SetValue("")
	}
	if m.cfg.Last > 0 {
		m.filterInputs[2].SetValue(strconv.Itoa(m.cfg.Last))
	} else {
		m.filterInputs[2].SetValue("")
	}
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.detail.Width = m.width
	m.detail.Height = bodyHeight
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	m.sessions.SetWidth(m.width)
	// The header row and its border take two lines.
	m.sessions.SetHeight(maxInt(1, bodyHeight-2))
	for i := range m.filterInputs {
		promptWidth := lipgloss.Width(m.filterInputs[i].Prompt)
		m.filterInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabSessions {
		m.sessions.Focus()
	} else {
		m.sessions.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	filters := padLines(m.renderFilterSummary(), m.width)
	return tabs + "\n" + filters
}

func (m *Model) renderFilterSummary() string {
	movement := m.cfg.Movement
	if movement == "" {
		movement = "any"
	}
	since := "any"
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format("2006-01-02")
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	summary := fmt.Sprintf("Filter: movement=%s  since=%s  last=%s", movement, since, last)
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	help := headerStyle.Render("Nav: left/right  Select: up/down  Open: enter  Filter: /  Quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Filter (enter to apply, esc to cancel)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody() string {
	if m.filterMode {
		return m.renderFilterForm()
	}
	switch m.activeTab {
	case tabSessions:
		if len(m.history.Sessions) == 0 {
			return "No sessions found."
		}
		return tableMutedStyle.Render(m.sessions.View())
	case tabDetail:
		return m.detail.View()
	default:
		return m.overview.View()
	}
}

func (m *Model) refresh() {
	h, err := report.BuildHistory(context.Background(), m.store, m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		m.history = report.History{}
		m.sessions.SetRows(nil)
		m.renderContents()
		return
	}
	m.errMsg = ""
	m.history = h
	m.selected = nil
	rows := report.SessionRows(h.Sessions)
	tableRows := make([]table.Row, len(rows))
	for i, r := range rows {
		tableRows[i] = table.Row(r)
	}
	m.sessions.SetRows(tableRows)
	m.sessions.GotoTop()
	m.renderContents()
}

// openSelected loads the highlighted session into the detail tab.
func (m *Model) openSelected() {
	idx := m.sessions.Cursor()
	n := len(m.history.Sessions)
	if idx < 0 || idx >= n {
		return
	}
	// Rows are newest first.
	sess := m.history.Sessions[n-1-idx]
	m.selected = &sess
	m.renderContents()
	m.activeTab = tabDetail
	m.sessions.Blur()
}

func (m *Model) renderContents() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.overview.SetContent(renderOverview(m.history, width))
	m.detail.SetContent(m.renderDetail(width))
	m.detail.GotoTop()
}

func (m *Model) renderDetail(width int) string {
	if m.selected == nil {
		return "Select a session and press enter."
	}
	events, err := m.sessionEvents(m.selected.ID)
	if err != nil {
		return fmt.Sprintf("Failed to load events: %v", err)
	}
	var buf bytes.Buffer
	sc := report.FromSession(*m.selected, events)
	if err := report.RenderScorecard(&buf, sc, report.RenderOptions{Color: true, Width: width}); err != nil {
		return fmt.Sprintf("Failed to render session: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// sessionEvents loads a session's event log once; saved logs never change.
func (m *Model) sessionEvents(id int64) ([]judge.Event, error) {
	if events, ok := m.events.Get(id); ok {
		return events, nil
	}
	events, err := m.store.ListEvents(context.Background(), id)
	if err != nil {
		return nil, err
	}
	m.events.Add(id, events)
	return events, nil
}

func renderOverview(h report.History, width int) string {
	if len(h.Sessions) == 0 {
		return "No sessions found."
	}
	cards := []string{
		metricCard("Sessions", fmt.Sprintf("%d", len(h.Sessions))),
		metricCard("Valid Reps", fmt.Sprintf("%d", h.Reps)),
		metricCard("No-Reps", fmt.Sprintf("%d", h.NoReps)),
		metricCard("Valid Rate", fmt.Sprintf("%.1f%%", h.ValidRate()*100)),
		metricCard("Analyzed", report.FormatTime(h.Analyzed)),
	}
	var summary string
	if width < 80 {
		summary = strings.Join(cards, "\n")
	} else {
		row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
		row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4])
		summary = lipgloss.JoinVertical(lipgloss.Left, row1, row2)
	}
	if len(h.Reasons) == 0 {
		return summary
	}
	lines := []string{summary, "", headerStyle.Render("No-rep reasons")}
	for _, r := range h.Reasons {
		lines = append(lines, fmt.Sprintf("%4d  %s", r.Count, r.Reason))
	}
	return strings.Join(lines, "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func sessionColumns() []table.Column {
	widths := []int{8, 16, 10, 5, 7, 8}
	cols := make([]table.Column, len(report.SessionHeaders))
	for i, title := range report.SessionHeaders {
		cols[i] = table.Column{Title: title, Width: widths[i]}
	}
	return cols
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromConfig()
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.refresh()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.filterIndex = idx
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	movement := strings.TrimSpace(m.filterInputs[0].Value())
	if movement != "" {
		parsed, err := judge.ParseMovement(movement)
		if err != nil {
			return fmt.Errorf("unknown movement %q", movement)
		}
		movement = parsed.Slug()
	}

	sinceInput := strings.TrimSpace(m.filterInputs[1].Value())
	var since *time.Time
	if sinceInput != "" {
		parsed, err := time.ParseInLocation("2006-01-02", sinceInput, time.Local)
		if err != nil {
			return fmt.Errorf("invalid since date (expected YYYY-MM-DD)")
		}
		since = &parsed
	}

	lastInput := strings.TrimSpace(m.filterInputs[2].Value())
	last := 0
	if lastInput != "" {
		parsed, err := strconv.Atoi(lastInput)
		if err != nil || parsed < 0 {
			return fmt.Errorf("invalid last value (use 0 or positive integer)")
		}
		last = parsed
	}

	m.cfg = model.HistoryConfig{
		Movement: movement,
		Since:    since,
		Last:     last,
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
