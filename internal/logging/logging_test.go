package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := []struct {
		opts Options
		want zapcore.Level
	}{
		{Options{}, zapcore.InfoLevel},
		{Options{Level: "warn"}, zapcore.WarnLevel},
		{Options{Level: "error", Verbose: true}, zapcore.DebugLevel},
	}
	for _, tc := range cases {
		logger, err := New(tc.opts)
		if err != nil {
			t.Fatalf("New(%+v) failed: %v", tc.opts, err)
		}
		if !logger.Core().Enabled(tc.want) || (tc.want > zapcore.DebugLevel && logger.Core().Enabled(tc.want-1)) {
			t.Fatalf("New(%+v): expected minimum level %s", tc.opts, tc.want)
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Options{Level: "chatty"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewWritesToOutputPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticketbot.log")
	logger, err := New(Options{OutputPath: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("Prediction made")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"Prediction made"`) {
		t.Fatalf("expected JSON log line, got %s", data)
	}
}
