// Package analysis drives a judge over a pose stream.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/verte-zerg/repjudge/internal/judge"
	"github.com/verte-zerg/repjudge/internal/log"
	"github.com/verte-zerg/repjudge/internal/pose"
)

const (
	// DefaultFPS is the frame rate assumed for frames without timestamps.
	DefaultFPS = 30.0
	// DefaultMaxDuration is the default analysis budget in seconds.
	DefaultMaxDuration = 60.0
)

// StopReason explains why a run ended.
type StopReason string

// Stop reasons.
const (
	StopEndOfStream StopReason = "end of stream"
	StopMaxDuration StopReason = "duration limit"
	StopCanceled    StopReason = "canceled"
)

// FrameSource yields decoded frames; it returns io.EOF when exhausted.
type FrameSource interface {
	Next() (pose.Frame, error)
}

// Options control how frames are turned into judge input.
type Options struct {
	Extractor pose.Extractor
	// FPS converts frame indices to seconds for untimed frames.
	FPS float64
	// MaxDuration is the analysis budget in seconds; 0 means unlimited.
	MaxDuration float64
}

// Step is the outcome of one frame.
type Step struct {
	Frame  pose.Frame
	Time   float64
	Result judge.Result
	// Err is set when the frame produced no observation.
	Err error
}

// Summary is the report-ready outcome of a session.
type Summary struct {
	Config    judge.Config
	Reps      int
	NoReps    int
	Frames    int
	Skipped   int
	Analyzed  float64
	Events    []judge.Event
	KneeTrace []float64
	Stop      StopReason
}

// Session feeds frames to a judge and keeps run totals.
type Session struct {
	judge    *judge.Judge
	opts     Options
	frames   int
	skipped  int
	analyzed float64
	trace    []float64
	stop     StopReason
}

// NewSession wraps j. A non-positive FPS falls back to DefaultFPS.
func NewSession(j *judge.Judge, opts Options) *Session {
	if opts.FPS <= 0 || math.IsNaN(opts.FPS) {
		opts.FPS = DefaultFPS
	}
	return &Session{judge: j, opts: opts, stop: StopEndOfStream}
}

// Judge returns the underlying judge.
func (s *Session) Judge() *judge.Judge { return s.judge }

// FrameTime returns the frame's own timestamp or its index divided by fps.
func FrameTime(f pose.Frame, fps float64) float64 {
	if f.Timed {
		return f.Time
	}
	if fps <= 0 {
		fps = DefaultFPS
	}
	return float64(f.Index) / fps
}

// Within reports whether f falls inside the analysis budget.
func (s *Session) Within(f pose.Frame) bool {
	if s.opts.MaxDuration <= 0 {
		return true
	}
	return FrameTime(f, s.opts.FPS) <= s.opts.MaxDuration
}

// Step judges one frame.
func (s *Session) Step(f pose.Frame) Step {
	t := FrameTime(f, s.opts.FPS)
	snap := s.opts.Extractor.Snapshot(f)
	res, err := s.judge.ProcessAt(snap, t)
	s.frames++
	if t > s.analyzed {
		s.analyzed = t
	}
	if err != nil {
		s.skipped++
		log.Debug("frame skipped", "frame", f.Index, "time", t, "reason", err)
		return Step{Frame: f, Time: t, Result: res, Err: err}
	}
	s.trace = append(s.trace, res.Angles.Knee)
	if res.Event != nil {
		log.Debug("attempt scored", "frame", f.Index, "time", t, "outcome", res.Event.Outcome.String(), "reason", res.Event.Reason)
	}
	return Step{Frame: f, Time: t, Result: res}
}

// Stop records why the session ended.
func (s *Session) Stop(reason StopReason) {
	s.stop = reason
}

// Summary snapshots the session totals.
func (s *Session) Summary() Summary {
	trace := make([]float64, len(s.trace))
	copy(trace, s.trace)
	return Summary{
		Config:    s.judge.Config(),
		Reps:      s.judge.Reps(),
		NoReps:    s.judge.NoReps(),
		Frames:    s.frames,
		Skipped:   s.skipped,
		Analyzed:  s.analyzed,
		Events:    s.judge.Events(),
		KneeTrace: trace,
		Stop:      s.stop,
	}
}

// Run reads frames from src until the stream ends, the duration budget is
// spent or ctx is canceled. observe, when non-nil, is called after every
// judged frame. Per-frame observation failures never abort the run; decode
// errors do.
//
// src is read on its own goroutine so cancellation is honoured while Next
// blocks. After a canceled run that goroutine stays parked in Next until src
// returns; callers own src and may close it to release it.
func Run(ctx context.Context, src FrameSource, j *judge.Judge, opts Options, observe func(Step)) (Summary, error) {
	s := NewSession(j, opts)
	if err := ctx.Err(); err != nil {
		s.Stop(StopCanceled)
		return s.Summary(), err
	}
	done := make(chan struct{})
	defer close(done)
	reads := readFrames(src, done)
	for {
		var r frameRead
		select {
		case <-ctx.Done():
			s.Stop(StopCanceled)
			return s.Summary(), ctx.Err()
		case r = <-reads:
		}
		if errors.Is(r.err, io.EOF) {
			s.Stop(StopEndOfStream)
			break
		}
		if r.err != nil {
			return s.Summary(), fmt.Errorf("failed to read frame: %w", r.err)
		}
		if !s.Within(r.frame) {
			s.Stop(StopMaxDuration)
			break
		}
		step := s.Step(r.frame)
		if observe != nil {
			observe(step)
		}
	}
	summary := s.Summary()
	log.Info("analysis finished",
		"movement", summary.Config.Movement.Slug(),
		"reps", summary.Reps,
		"no_reps", summary.NoReps,
		"frames", summary.Frames,
		"skipped", summary.Skipped,
		"stop", string(summary.Stop),
	)
	return summary, nil
}

type frameRead struct {
	frame pose.Frame
	err   error
}

// readFrames pulls frames from src one at a time until src fails or done is
// closed.
func readFrames(src FrameSource, done <-chan struct{}) <-chan frameRead {
	out := make(chan frameRead)
	go func() {
		for {
			frame, err := src.Next()
			select {
			case out <- frameRead{frame: frame, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}
