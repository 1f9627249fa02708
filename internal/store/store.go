// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/repjudge/internal/judge"
	"github.com/verte-zerg/repjudge/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when a session reference matches nothing.
var ErrNotFound = errors.New("session not found")

// timeLayout is fixed width and always UTC, so stored timestamps order
// correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Store wraps SQLite access for judging sessions.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; serialize access for concurrent callers.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY,
			uuid TEXT NOT NULL UNIQUE,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			source TEXT NOT NULL,
			movement TEXT NOT NULL,
			depth_threshold REAL NOT NULL,
			extension_threshold REAL NOT NULL,
			side TEXT NOT NULL,
			reps INTEGER NOT NULL,
			no_reps INTEGER NOT NULL,
			frames INTEGER NOT NULL,
			skipped_frames INTEGER NOT NULL,
			analyzed_seconds REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_events (
			session_id INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			time_sec REAL NOT NULL,
			timed INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_movement ON sessions(movement);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertSession stores a completed session and its event log in one transaction.
func (s *Store) InsertSession(ctx context.Context, sess model.Session, events []judge.Event) (int64, error) {
	if sess.UUID == "" {
		return 0, fmt.Errorf("session uuid is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (uuid, started_at, ended_at, source, movement, depth_threshold, extension_threshold, side, reps, no_reps, frames, skipped_frames, analyzed_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.UUID,
		formatTime(sess.StartedAt),
		formatTime(sess.EndedAt),
		sess.Source,
		sess.Movement,
		sess.DepthThreshold,
		sess.ExtensionThreshold,
		sess.Side,
		sess.Reps,
		sess.NoReps,
		sess.Frames,
		sess.SkippedFrames,
		sess.AnalyzedSeconds,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(events) > 0 {
		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx,
			`INSERT INTO session_events (session_id, seq, time_sec, timed, outcome, reason)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, ev := range events {
			if _, err = stmt.ExecContext(ctx, id, i, ev.Time, boolToInt(ev.Timed), ev.Outcome.String(), ev.Reason); err != nil {
				return 0, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

const sessionColumns = `id, uuid, started_at, ended_at, source, movement, depth_threshold, extension_threshold, side, reps, no_reps, frames, skipped_frames, analyzed_seconds`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (model.Session, error) {
	var sess model.Session
	var startedAt, endedAt string
	if err := row.Scan(&sess.ID, &sess.UUID, &startedAt, &endedAt, &sess.Source, &sess.Movement,
		&sess.DepthThreshold, &sess.ExtensionThreshold, &sess.Side, &sess.Reps, &sess.NoReps,
		&sess.Frames, &sess.SkippedFrames, &sess.AnalyzedSeconds); err != nil {
		return model.Session{}, err
	}
	var err error
	if sess.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return model.Session{}, err
	}
	if sess.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// ListSessions returns sessions matching the filter, oldest first.
func (s *Store) ListSessions(ctx context.Context, cfg model.HistoryConfig) ([]model.Session, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Movement != "" {
		clauses = append(clauses, "movement = ?")
		args = append(args, cfg.Movement)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "started_at >= ?")
		args = append(args, formatTime(*cfg.Since))
	}
	query := fmt.Sprintf(`SELECT %s
		FROM sessions
		WHERE %s
		ORDER BY started_at ASC, id ASC`, sessionColumns, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession resolves a session by numeric id, full uuid or unique uuid prefix.
func (s *Store) GetSession(ctx context.Context, ref string) (model.Session, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Session{}, ErrNotFound
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
		sess, err := scanSession(row)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, err
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE uuid LIKE ? LIMIT 2`, escapeLike(ref)+"%")
	if err != nil {
		return model.Session{}, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	var matches []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return model.Session{}, err
		}
		matches = append(matches, sess)
	}
	if err := rows.Err(); err != nil {
		return model.Session{}, err
	}
	switch len(matches) {
	case 0:
		return model.Session{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return model.Session{}, fmt.Errorf("session reference %q is ambiguous", ref)
	}
}

// ListEvents returns the event log of a session in insertion order.
func (s *Store) ListEvents(ctx context.Context, sessionID int64) ([]judge.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT time_sec, timed, outcome, reason FROM session_events WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var events []judge.Event
	for rows.Next() {
		var ev judge.Event
		var timed int
		var outcome string
		if err := rows.Scan(&ev.Time, &timed, &outcome, &ev.Reason); err != nil {
			return nil, err
		}
		ev.Timed = timed != 0
		if ev.Outcome, err = judge.ParseOutcome(outcome); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// ListReasonAggregates counts no-rep reasons across the given sessions.
func (s *Store) ListReasonAggregates(ctx context.Context, sessionIDs []int64) ([]model.ReasonAggregate, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(sessionIDs))
	args := make([]any, 0, len(sessionIDs)+1)
	args = append(args, judge.NoRep.String())
	for i, id := range sessionIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(`SELECT reason, COUNT(*) AS n
		FROM session_events
		WHERE outcome = ? AND session_id IN (%s)
		GROUP BY reason
		ORDER BY n DESC, reason ASC`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.ReasonAggregate
	for rows.Next() {
		var agg model.ReasonAggregate
		if err := rows.Scan(&agg.Reason, &agg.Count); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func escapeLike(s string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(s)
}
