// Package model defines shared data structures.
package model

import "time"

// AnalyzeConfig defines how a pose stream is judged.
type AnalyzeConfig struct {
	Movement      string
	Depth         float64
	Extension     float64
	Side          string
	MinVisibility float64
	FPS           float64
	MaxDuration   float64
}

// HistoryConfig defines filters for browsing stored sessions.
type HistoryConfig struct {
	Movement string
	Since    *time.Time
	Last     int
}

// Session captures a completed judging run.
type Session struct {
	ID                 int64
	UUID               string
	StartedAt          time.Time
	EndedAt            time.Time
	Source             string
	Movement           string
	DepthThreshold     float64
	ExtensionThreshold float64
	Side               string
	Reps               int
	NoReps             int
	Frames             int
	SkippedFrames      int
	AnalyzedSeconds    float64
}

// Attempts returns the number of scored attempts in the session.
func (s Session) Attempts() int {
	return s.Reps + s.NoReps
}

// ReasonAggregate counts no-reps per failure reason across sessions.
type ReasonAggregate struct {
	Reason string
	Count  int
}
