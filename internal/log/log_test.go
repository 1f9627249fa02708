package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitWriterFiltersAndFormats(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn", "json")
	Info("hidden")
	Warn("frame skipped", "frame", 3)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected info to be filtered: %s", out)
	}
	if !strings.Contains(out, `"msg":"frame skipped"`) || !strings.Contains(out, `"frame":3`) {
		t.Fatalf("unexpected json output: %s", out)
	}
}
