package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/verte-zerg/repjudge/internal/judge"
	"github.com/verte-zerg/repjudge/internal/model"
	"github.com/verte-zerg/repjudge/internal/pose"
)

func TestFromConfigDefaults(t *testing.T) {
	cfg := DefaultAnalyzeConfig(judge.AirSquat)
	if cfg.Movement != "air-squat" || cfg.MaxDuration != 60 || cfg.Side != "left" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	j, opts, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if j.Config().Movement != judge.AirSquat || j.Config().DepthThreshold != judge.DefaultDepthThreshold {
		t.Fatalf("unexpected judge config: %+v", j.Config())
	}
	if opts.Extractor.Side != pose.SideLeft || opts.Extractor.MinVisibility != pose.DefaultMinVisibility || opts.FPS != DefaultFPS {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestFromConfigRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *model.AnalyzeConfig)
		judge  bool
	}{
		{name: "movement", mutate: func(c *model.AnalyzeConfig) { c.Movement = "burpee" }, judge: true},
		{name: "depth", mutate: func(c *model.AnalyzeConfig) { c.Depth = 120 }, judge: true},
		{name: "extension", mutate: func(c *model.AnalyzeConfig) { c.Extension = 140 }, judge: true},
		{name: "side", mutate: func(c *model.AnalyzeConfig) { c.Side = "center" }},
		{name: "visibility", mutate: func(c *model.AnalyzeConfig) { c.MinVisibility = 1.5 }},
		{name: "fps", mutate: func(c *model.AnalyzeConfig) { c.FPS = -1 }},
		{name: "duration", mutate: func(c *model.AnalyzeConfig) { c.MaxDuration = -5 }},
		{name: "fps nan", mutate: func(c *model.AnalyzeConfig) { c.FPS = math.NaN() }},
		{name: "fps inf", mutate: func(c *model.AnalyzeConfig) { c.FPS = math.Inf(1) }},
		{name: "duration nan", mutate: func(c *model.AnalyzeConfig) { c.MaxDuration = math.NaN() }},
		{name: "duration inf", mutate: func(c *model.AnalyzeConfig) { c.MaxDuration = math.Inf(1) }},
		{name: "visibility nan", mutate: func(c *model.AnalyzeConfig) { c.MinVisibility = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAnalyzeConfig(judge.Thruster)
			tt.mutate(&cfg)
			_, _, err := FromConfig(cfg)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.judge && !errors.Is(err, judge.ErrInvalidConfig) {
				t.Fatalf("expected invalid config error, got %v", err)
			}
		})
	}
}

func TestFromConfigZeroMeansDefaults(t *testing.T) {
	cfg := DefaultAnalyzeConfig(judge.Thruster)
	cfg.FPS = 0
	cfg.MaxDuration = 0
	_, opts, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if opts.FPS != 0 || opts.MaxDuration != 0 {
		t.Fatalf("unexpected options: %+v", opts)
	}
}
