package app

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLogger_JSONLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("warn", "json", &buf)
	l.Info().Msg("hidden")
	l.Warn().Str("event", "x").Msg("shown")
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected one json line, got %q: %v", buf.String(), err)
	}
	if rec["message"] != "shown" || rec["event"] != "x" || rec["level"] != "warn" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestNewLogger_BadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("chatty", "json", &buf)
	l.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info: %q", buf.String())
	}
}
