package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStudioHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		runID   string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			runID:   "run-123",
			level:   slog.LevelInfo,
			message: "generation recorded",
			want:    "2024-06-15T14:30:45Z\tINFO\trun-123\tgeneration recorded\n",
		},
		{
			name:    "debug level",
			runID:   "run-456",
			level:   slog.LevelDebug,
			message: "loading collection",
			want:    "2024-06-15T14:30:45Z\tDEBUG\trun-456\tloading collection\n",
		},
		{
			name:    "with record attrs",
			runID:   "run-789",
			level:   slog.LevelWarn,
			message: "generation failed",
			attrs:   []slog.Attr{slog.String("op", "generate"), slog.Int("attempt", 3)},
			want:    "2024-06-15T14:30:45Z\tWARN\trun-789\tgeneration failed\top=generate\tattempt=3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newStudioHandler(tt.runID, logSink{w: &buf, min: slog.LevelDebug})

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			r.AddAttrs(tt.attrs...)

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestStudioHandler_SinkLevels(t *testing.T) {
	var file, stderr bytes.Buffer
	logger := slog.New(newStudioHandler("run-1",
		logSink{w: &file, min: slog.LevelDebug},
		logSink{w: &stderr, min: slog.LevelWarn},
	))

	logger.Debug("loading")
	logger.Info("recorded")
	logger.Warn("generation failed")
	logger.Error("save failed")

	if got := strings.Count(file.String(), "\n"); got != 4 {
		t.Errorf("file sink got %d lines, want 4:\n%s", got, file.String())
	}
	if got := strings.Count(stderr.String(), "\n"); got != 2 {
		t.Errorf("stderr sink got %d lines, want 2:\n%s", got, stderr.String())
	}
	if strings.Contains(stderr.String(), "recorded") {
		t.Error("info line reached the stderr sink")
	}
}

func TestStudioHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newStudioHandler("run-1", logSink{w: &buf, min: slog.LevelDebug})
	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "vault")}).(*studioHandler)

	r := slog.NewRecord(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), slog.LevelInfo, "upload", 0)
	r.AddAttrs(slog.String("checksum", "abc"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=vault") {
		t.Errorf("expected pre-set attr component=vault, got: %q", got)
	}
	if !strings.Contains(got, "checksum=abc") {
		t.Errorf("expected record attr checksum=abc, got: %q", got)
	}
	if len(h.attrs) != 0 {
		t.Errorf("original handler attrs modified: got %d, want 0", len(h.attrs))
	}
}

func TestStudioHandler_Enabled(t *testing.T) {
	h := newStudioHandler("run-1", logSink{w: &bytes.Buffer{}, min: slog.LevelInfo})

	tests := []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, true},
		{slog.LevelWarn, true},
		{slog.LevelError, true},
	}
	for _, tt := range tests {
		if got := h.Enabled(context.Background(), tt.level); got != tt.want {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer

	logger, f, err := newLogger(dir, "test-run", &stderr)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Info("hello")
	f.Close()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "\ttest-run\thello") {
		t.Errorf("log file = %q", data)
	}
	if stderr.Len() != 0 {
		t.Errorf("info reached stderr: %q", stderr.String())
	}
}
