package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestConsoleHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, slog.LevelInfo))

	logger.Info("task started", String("subject", "0026"), Int("frames", 750))
	line := buf.String()
	for _, want := range []string{"INFO", "task started", "subject=0026", "frames=750"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected output to contain %q, got %q", want, line)
		}
	}

	buf.Reset()
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug output should be suppressed at info level, got %q", buf.String())
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, slog.LevelInfo))
	logger.Info("msg", String("error", "download failed"))
	if !strings.Contains(buf.String(), `error="download failed"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestWithContextTagsTaskFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, slog.LevelInfo))

	ctx := WithTask(context.Background(), TaskContext{
		RunID:       "run-1",
		Subject:     "0026",
		Performance: "s1_all",
		Stage:       "extracting",
	})
	WithContext(ctx, logger).Info("extract")

	line := buf.String()
	for _, want := range []string{"run_id=run-1", "subject=0026", "performance=s1_all", "stage=extracting"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %q", want, line)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("should not panic", Error(nil))
}
