package report

import (
	"context"
	"fmt"
	"io"

	"github.com/verte-zerg/repjudge/internal/model"
	"github.com/verte-zerg/repjudge/internal/store"
)

// History contains precomputed data for browsing stored sessions.
type History struct {
	Sessions []model.Session
	Reasons  []model.ReasonAggregate
	Reps     int
	NoReps   int
	Analyzed float64
}

// BuildHistory loads sessions matching cfg and aggregates their totals.
func BuildHistory(ctx context.Context, st *store.Store, cfg model.HistoryConfig) (History, error) {
	sessions, err := st.ListSessions(ctx, cfg)
	if err != nil {
		return History{}, err
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}
	reasons, err := st.ListReasonAggregates(ctx, sessionIDs(sessions))
	if err != nil {
		return History{}, err
	}
	h := History{Sessions: sessions, Reasons: reasons}
	for _, s := range sessions {
		h.Reps += s.Reps
		h.NoReps += s.NoReps
		h.Analyzed += s.AnalyzedSeconds
	}
	return h, nil
}

// ValidRate returns the share of scored attempts that were valid reps.
func (h History) ValidRate() float64 {
	total := h.Reps + h.NoReps
	if total == 0 {
		return 0
	}
	return float64(h.Reps) / float64(total)
}

// ShortID returns the first block of a session uuid.
func ShortID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}

// SessionRows formats sessions as table rows, newest first.
func SessionRows(sessions []model.Session) [][]string {
	rows := make([][]string, 0, len(sessions))
	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		rows = append(rows, []string{
			ShortID(s.UUID),
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			s.Movement,
			fmt.Sprintf("%d", s.Reps),
			fmt.Sprintf("%d", s.NoReps),
			FormatTime(s.AnalyzedSeconds),
		})
	}
	return rows
}

// SessionHeaders are the column titles matching SessionRows.
var SessionHeaders = []string{"ID", "Started", "Movement", "Reps", "No-Reps", "Analyzed"}

// RenderHistory prints session totals and a session table.
func RenderHistory(w io.Writer, h History) error {
	if len(h.Sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	lines := []string{
		fmt.Sprintf("Sessions: %d", len(h.Sessions)),
		fmt.Sprintf("Valid reps: %d  No-reps: %d  Valid rate: %.1f%%", h.Reps, h.NoReps, h.ValidRate()*100),
		fmt.Sprintf("Video analyzed: %s", FormatTime(h.Analyzed)),
		"",
	}
	lines = append(lines, formatTable(SessionHeaders, SessionRows(h.Sessions), map[int]bool{3: true, 4: true, 5: true})...)
	if len(h.Reasons) > 0 {
		lines = append(lines, "", "No-rep reasons")
		rows := make([][]string, 0, len(h.Reasons))
		for _, r := range h.Reasons {
			rows = append(rows, []string{r.Reason, fmt.Sprintf("%d", r.Count)})
		}
		lines = append(lines, formatTable([]string{"Reason", "Count"}, rows, map[int]bool{1: true})...)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func sessionIDs(sessions []model.Session) []int64 {
	ids := make([]int64, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	return ids
}
