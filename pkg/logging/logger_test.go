package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected default output to be JSON")
	}
	if cfg.RunID != "" {
		t.Errorf("Expected no default run id, got %q", cfg.RunID)
	}
}

func TestSetup_LevelsReachOutput(t *testing.T) {
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}

	for _, level := range levels {
		t.Run(string(level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: level, Output: buf})

			msg := "message at " + string(level)
			logger.WithLevel(parseLevel(level)).Msg(msg)

			if !strings.Contains(buf.String(), msg) {
				t.Errorf("Expected output to contain %q, got %q", msg, buf.String())
			}
		})
	}
}

func TestSetup_RunID(t *testing.T) {
	buf := &bytes.Buffer{}
	runID := NewRunID()
	Setup(Config{Level: LevelInfo, Output: buf, RunID: runID})

	logger := NewLogger("fetch")
	logger.Info().Str("htid", "mdp.1").Msg("Wrote aggregate")

	var event map[string]any
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if event["run_id"] != runID {
		t.Errorf("run_id = %v, want %s", event["run_id"], runID)
	}
	if event["component"] != "fetch" {
		t.Errorf("component = %v, want fetch", event["component"])
	}
	if event["htid"] != "mdp.1" {
		t.Errorf("htid = %v", event["htid"])
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger := NewLogger("solr-client")
	logger.Info().Msg("Select complete")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("pretty output looks like JSON: %q", out)
	}
	if !strings.Contains(out, "Select complete") {
		t.Errorf("missing message in %q", out)
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Error("run ids should be unique")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("run id %q is not a uuid: %v", a, err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if result := parseLevel(tt.input); result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger("test")
	logger.Debug().Msg("page fetched")
	logger.Info().Msg("run finished")
	logger.Warn().Msg("request failed")
	logger.Error().Msg("fatal")

	output := buf.String()
	for _, hidden := range []string{"page fetched", "run finished"} {
		if strings.Contains(output, hidden) {
			t.Errorf("%q should be filtered out at Warn level", hidden)
		}
	}
	for _, shown := range []string{"request failed", "fatal"} {
		if !strings.Contains(output, shown) {
			t.Errorf("%q should be included at Warn level", shown)
		}
	}
}
