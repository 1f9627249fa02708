package analysis

import (
	"fmt"
	"math"

	"github.com/verte-zerg/repjudge/internal/judge"
	"github.com/verte-zerg/repjudge/internal/model"
	"github.com/verte-zerg/repjudge/internal/pose"
)

// FromConfig builds a judge and run options from resolved user settings.
func FromConfig(cfg model.AnalyzeConfig) (*judge.Judge, Options, error) {
	movement, err := judge.ParseMovement(cfg.Movement)
	if err != nil {
		return nil, Options{}, err
	}
	side, err := pose.ParseSide(cfg.Side)
	if err != nil {
		return nil, Options{}, err
	}
	if math.IsNaN(cfg.MinVisibility) || cfg.MinVisibility < 0 || cfg.MinVisibility > 1 {
		return nil, Options{}, fmt.Errorf("min-visibility must be between 0 and 1, got %v", cfg.MinVisibility)
	}
	if !finite(cfg.FPS) || cfg.FPS < 0 {
		return nil, Options{}, fmt.Errorf("fps must be a finite value >= 0 (0 = default %v), got %v", DefaultFPS, cfg.FPS)
	}
	if !finite(cfg.MaxDuration) || cfg.MaxDuration < 0 {
		return nil, Options{}, fmt.Errorf("max-duration must be a finite value >= 0 (0 = no limit), got %v", cfg.MaxDuration)
	}
	jc := judge.Config{
		Movement:           movement,
		DepthThreshold:     cfg.Depth,
		ExtensionThreshold: cfg.Extension,
	}
	j, err := judge.New(jc)
	if err != nil {
		return nil, Options{}, err
	}
	opts := Options{
		Extractor:   pose.Extractor{Side: side, MinVisibility: cfg.MinVisibility},
		FPS:         cfg.FPS,
		MaxDuration: cfg.MaxDuration,
	}
	return j, opts, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// DefaultAnalyzeConfig returns the built-in settings for a movement slug.
func DefaultAnalyzeConfig(movement judge.Movement) model.AnalyzeConfig {
	jc := judge.DefaultConfig(movement)
	return model.AnalyzeConfig{
		Movement:      movement.Slug(),
		Depth:         jc.DepthThreshold,
		Extension:     jc.ExtensionThreshold,
		Side:          pose.SideLeft.String(),
		MinVisibility: pose.DefaultMinVisibility,
		FPS:           DefaultFPS,
		MaxDuration:   DefaultMaxDuration,
	}
}
