package analysis

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/repjudge/internal/judge"
	"github.com/verte-zerg/repjudge/internal/pose"
)

type sliceSource struct {
	frames []pose.Frame
	pos    int
}

func (s *sliceSource) Next() (pose.Frame, error) {
	if s.pos >= len(s.frames) {
		return pose.Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	f.Index = s.pos
	s.pos++
	return f, nil
}

func lm(x, y float64) pose.Landmark {
	return pose.Landmark{X: x, Y: y}
}

func deepFrame() pose.Frame {
	return pose.Frame{Joints: map[string]pose.Landmark{
		"shoulder": lm(0.4, 0.45),
		"elbow":    lm(0.45, 0.4),
		"wrist":    lm(0.5, 0.35),
		"hip":      lm(0.3, 0.75),
		"knee":     lm(0.5, 0.7),
		"ankle":    lm(0.5, 0.9),
	}}
}

func standFrame(locked bool) pose.Frame {
	wrist := lm(0.5, 0.1)
	if !locked {
		wrist = lm(0.58, 0.15)
	}
	return pose.Frame{Joints: map[string]pose.Landmark{
		"shoulder": lm(0.5, 0.3),
		"elbow":    lm(0.5, 0.2),
		"wrist":    wrist,
		"hip":      lm(0.5, 0.5),
		"knee":     lm(0.5, 0.7),
		"ankle":    lm(0.5, 0.9),
	}}
}

func newThrusterJudge(t *testing.T) *judge.Judge {
	t.Helper()
	j, err := judge.New(judge.DefaultConfig(judge.Thruster))
	if err != nil {
		t.Fatalf("new judge: %v", err)
	}
	return j
}

func TestRunCountsRepsAndSkippedFrames(t *testing.T) {
	src := &sliceSource{frames: []pose.Frame{
		deepFrame(),
		standFrame(true),
		{},
		deepFrame(),
		standFrame(false),
		standFrame(false),
	}}
	var steps []Step
	summary, err := Run(context.Background(), src, newThrusterJudge(t), Options{FPS: 10}, func(s Step) {
		steps = append(steps, s)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Reps != 1 || summary.NoReps != 1 {
		t.Fatalf("expected 1 rep and 1 no-rep, got %+v", summary)
	}
	if summary.Frames != 6 || summary.Skipped != 1 {
		t.Fatalf("expected 6 frames with 1 skipped, got %d/%d", summary.Frames, summary.Skipped)
	}
	if len(summary.Events) != 2 || summary.Events[1].Reason != judge.ReasonSoftElbows {
		t.Fatalf("unexpected events: %+v", summary.Events)
	}
	if summary.Events[0].Time != 0.1 {
		t.Fatalf("expected first rep at 0.1s, got %v", summary.Events[0].Time)
	}
	if len(summary.KneeTrace) != 5 {
		t.Fatalf("expected knee trace for observed frames, got %d", len(summary.KneeTrace))
	}
	if summary.Stop != StopEndOfStream {
		t.Fatalf("unexpected stop reason: %s", summary.Stop)
	}
	if len(steps) != 6 || !errors.Is(steps[2].Err, judge.ErrMissingLandmark) {
		t.Fatalf("expected missing landmark on third step, got %+v", steps)
	}
}

func TestRunStopsAtMaxDuration(t *testing.T) {
	var frames []pose.Frame
	for i := 0; i < 10; i++ {
		frames = append(frames, deepFrame(), standFrame(true))
	}
	src := &sliceSource{frames: frames}
	summary, err := Run(context.Background(), src, newThrusterJudge(t), Options{FPS: 2, MaxDuration: 2}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Frames at 0, 0.5, 1.0, 1.5 and 2.0 seconds fall inside the budget.
	if summary.Frames != 5 {
		t.Fatalf("expected 5 frames, got %d", summary.Frames)
	}
	if summary.Reps != 2 {
		t.Fatalf("expected 2 reps, got %d", summary.Reps)
	}
	if summary.Stop != StopMaxDuration || summary.Analyzed != 2 {
		t.Fatalf("unexpected stop: %s analyzed=%v", summary.Stop, summary.Analyzed)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := Run(ctx, &sliceSource{frames: []pose.Frame{deepFrame()}}, newThrusterJudge(t), Options{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if summary.Frames != 0 || summary.Stop != StopCanceled {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

// stallSource yields its frames and then blocks until release is closed.
type stallSource struct {
	frames  []pose.Frame
	pos     int
	release chan struct{}
}

func (s *stallSource) Next() (pose.Frame, error) {
	if s.pos < len(s.frames) {
		f := s.frames[s.pos]
		f.Index = s.pos
		s.pos++
		return f, nil
	}
	<-s.release
	return pose.Frame{}, io.EOF
}

func TestRunCancelsWhileSourceBlocks(t *testing.T) {
	src := &stallSource{frames: []pose.Frame{deepFrame()}, release: make(chan struct{})}
	t.Cleanup(func() { close(src.release) })
	j := newThrusterJudge(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	var summary Summary
	var err error
	go func() {
		defer close(done)
		summary, err = Run(ctx, src, j, Options{}, func(Step) { cancel() })
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return after cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if summary.Frames != 1 || summary.Stop != StopCanceled {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunPropagatesDecodeErrors(t *testing.T) {
	dec := pose.NewDecoder(strings.NewReader("{\"t\":0}\n{oops}\n"))
	_, err := Run(context.Background(), dec, newThrusterJudge(t), Options{}, nil)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected decode error with line number, got %v", err)
	}
}

func TestFrameTime(t *testing.T) {
	if got := FrameTime(pose.Frame{Index: 45}, 30); got != 1.5 {
		t.Fatalf("expected 1.5, got %v", got)
	}
	if got := FrameTime(pose.Frame{Index: 45, Time: 3, Timed: true}, 30); got != 3 {
		t.Fatalf("expected own timestamp, got %v", got)
	}
	if got := FrameTime(pose.Frame{Index: 30}, 0); got != 1 {
		t.Fatalf("expected default fps, got %v", got)
	}
}
