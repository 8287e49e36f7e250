package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level %s, got %s", LevelInfo, cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected JSON output by default")
	}
	if cfg.Output == nil {
		t.Error("Expected a default output writer")
	}
}

func TestLogLevel_ZerologLevel(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"WARNING", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		name := string(tt.level)
		if name == "" {
			name = "empty"
		}
		t.Run(name, func(t *testing.T) {
			if got := tt.level.zerologLevel(); got != tt.want {
				t.Errorf("Expected level %v for %q, got %v", tt.want, tt.level, got)
			}
		})
	}
}

func TestSetup_WritesStructuredLines(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelDebug, Output: buf})

	logger.Info().Str("query", "orders").Int("pages", 3).Msg("Page applied")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Expected one JSON line, got %q: %v", buf.String(), err)
	}
	if line["level"] != "info" {
		t.Errorf("Expected level field info, got %v", line["level"])
	}
	if line["query"] != "orders" {
		t.Errorf("Expected query field orders, got %v", line["query"])
	}
	if line["message"] != "Page applied" {
		t.Errorf("Expected message field, got %v", line["message"])
	}
	if _, ok := line["time"]; !ok {
		t.Error("Expected a timestamp field")
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		configured LogLevel
		suppressed []string
		kept       []string
	}{
		{LevelDebug, nil, []string{"debug line", "info line", "warn line", "error line"}},
		{LevelInfo, []string{"debug line"}, []string{"info line", "warn line", "error line"}},
		{LevelWarn, []string{"debug line", "info line"}, []string{"warn line", "error line"}},
		{LevelError, []string{"debug line", "info line", "warn line"}, []string{"error line"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.configured), func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.configured, Output: buf})

			logger.Debug().Msg("debug line")
			logger.Info().Msg("info line")
			logger.Warn().Msg("warn line")
			logger.Error().Msg("error line")

			output := buf.String()
			for _, msg := range tt.suppressed {
				if strings.Contains(output, msg) {
					t.Errorf("Expected %q to be filtered at %s, got %q", msg, tt.configured, output)
				}
			}
			for _, msg := range tt.kept {
				if !strings.Contains(output, msg) {
					t.Errorf("Expected %q to pass at %s, got %q", msg, tt.configured, output)
				}
			}
		})
	}
}

func TestSetup_NilOutputDefaultsToStderr(t *testing.T) {
	logger := Setup(Config{Level: LevelError})

	// Writing must not panic with no explicit output configured.
	logger.Error().Msg("probe")
}

func TestSetup_PrettyOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Str("component", "feed").Msg("pretty message")

	output := buf.String()
	if !strings.Contains(output, "pretty message") {
		t.Errorf("Expected output to contain the message, got %q", output)
	}
	// Console writer renders fields as key=value instead of JSON.
	if strings.Contains(output, `"component":"feed"`) {
		t.Errorf("Pretty output should not be raw JSON, got %q", output)
	}
}

func TestNewLogger_TagsComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("feed-proxy")
	logger.Info().Msg("component probe")

	output := buf.String()
	if !strings.Contains(output, `"component":"feed-proxy"`) {
		t.Errorf("Expected component field in output, got %q", output)
	}
}
