package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		" WARN ":   zerolog.WarnLevel,
		"trace":    zerolog.TraceLevel,
		"off":      zerolog.Disabled,
		"error":    zerolog.ErrorLevel,
		"info":     zerolog.InfoLevel,
		"warning":  zerolog.WarnLevel,
		"inactive": zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := parseLevel(raw)
		if !ok || got != want {
			t.Fatalf("parseLevel(%q) = %v,%v want %v", raw, got, ok, want)
		}
	}
	if _, ok := parseLevel("loud"); ok {
		t.Fatalf("unknown level should not parse")
	}
	if _, ok := parseLevel(""); ok {
		t.Fatalf("empty level should not parse")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "true")
	t.Setenv(EnvLogNoColor, "1")
	t.Setenv(EnvLogBypass, "not-a-bool")

	cfg := defaultConfig(ProfileTest)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel {
		t.Fatalf("unexpected level: %v", cfg.Level)
	}
	if !cfg.Timestamp || !cfg.NoColor {
		t.Fatalf("expected timestamp and nocolor overrides: %+v", cfg)
	}
	if cfg.Bypass {
		t.Fatalf("invalid bool should leave bypass unset")
	}
}

func TestApplyBypassWritesJSON(t *testing.T) {
	prev := Logger()
	defer setLogger(prev)

	var buf bytes.Buffer
	Apply(Config{Level: zerolog.InfoLevel, Bypass: true, Out: &buf})
	Debugf("hidden %d", 1)
	Warnf("session closed addr=%s", "127.0.0.1:9160")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %q", out)
	}
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "session closed addr=127.0.0.1:9160") {
		t.Fatalf("unexpected output: %q", out)
	}
}
