package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, true},
		{" WARNING ", zerolog.WarnLevel, true},
		{"diagnostics", zerolog.TraceLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tc := range cases {
		got, ok := parseLevel(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("parseLevel(%q)=(%v,%v) want (%v,%v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "true")
	t.Setenv(EnvLogNoColor, "1")
	t.Setenv(EnvLogBypass, "nope")

	cfg := defaultConfig(ProfileTest)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel {
		t.Fatalf("unexpected level: %v", cfg.Level)
	}
	if !cfg.Timestamp || !cfg.NoColor {
		t.Fatalf("expected timestamp and nocolor overrides: %+v", cfg)
	}
	if cfg.Bypass {
		t.Fatalf("invalid bool must not override bypass")
	}
}

func TestLoggerUsableBeforeConfigure(t *testing.T) {
	l := Logger()
	if l.GetLevel() > zerolog.ErrorLevel {
		t.Fatalf("unexpected default level: %v", l.GetLevel())
	}
	Debugf("logging: default logger usable before configure")
}
