package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/fd1az/prediction-amm/internal/logger"
)

func TestLogger_WritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "amm", func(ctx context.Context) []any {
		return []any{"request_id", "r-1"}
	})

	log.Info(context.Background(), "trade executed", "market_id", 7)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("record is not JSON: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "trade executed" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["service"] != "amm" {
		t.Errorf("service = %v", rec["service"])
	}
	if rec["market_id"] != float64(7) {
		t.Errorf("market_id = %v", rec["market_id"])
	}
	if rec["request_id"] != "r-1" {
		t.Errorf("request_id = %v", rec["request_id"])
	}
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelWarn, "amm", nil)

	log.Info(context.Background(), "hidden")
	log.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %s", buf.String())
	}

	log.Warn(context.Background(), "shown")
	if buf.Len() == 0 {
		t.Fatal("expected warn output")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]logger.Level{
		"debug": logger.LevelDebug,
		"warn":  logger.LevelWarn,
		"error": logger.LevelError,
		"info":  logger.LevelInfo,
		"":      logger.LevelInfo,
	}
	for in, want := range tests {
		if got := logger.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
