package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fd1az/dexops/internal/logger"
)

func TestLogger_WritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "dexops", nil)

	log.Info(context.Background(), "swap submitted", "hash", "0xabc")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "swap submitted" {
		t.Errorf("expected msg, got %v", rec["msg"])
	}
	if rec["service"] != "dexops" {
		t.Errorf("expected service attr, got %v", rec["service"])
	}
	if rec["hash"] != "0xabc" {
		t.Errorf("expected hash attr, got %v", rec["hash"])
	}
	src, _ := rec["source"].(string)
	if !strings.Contains(src, "logger_test.go") {
		t.Errorf("expected caller source, got %q", src)
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelWarn, "dexops", nil)

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %s", buf.String())
	}

	log.Warn(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn record, got %s", buf.String())
	}
}

func TestLogger_EventHook(t *testing.T) {
	var got []string
	log := logger.New(&bytes.Buffer{}, logger.LevelDebug, "dexops", func(_ context.Context, _ logger.Level, msg string) {
		got = append(got, msg)
	})

	log.Info(context.Background(), "info")
	log.Error(context.Background(), "boom")

	if len(got) != 1 || got[0] != "boom" {
		t.Errorf("expected only error to reach hook, got %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]logger.Level{
		"debug": logger.LevelDebug,
		"WARN":  logger.LevelWarn,
		"error": logger.LevelError,
		"":      logger.LevelInfo,
		"bogus": logger.LevelInfo,
	}
	for in, want := range tests {
		if got := logger.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
