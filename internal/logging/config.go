package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const (
	EnvLogLevel     = "UWBRANGING_LOG_LEVEL"
	EnvLogTimestamp = "UWBRANGING_LOG_TIMESTAMP"
	EnvLogNoColor   = "UWBRANGING_LOG_NOCOLOR"
	EnvLogBypass    = "UWBRANGING_LOG_BYPASS"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config selects level and console formatting. Bypass skips the console
// writer and emits raw zerolog JSON lines on stderr.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Bypass    bool
}

var (
	configureOnce sync.Once
	current       atomic.Pointer[zerolog.Logger]
)

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		applyEnvOverrides(&cfg)
		Apply(cfg)
	})
}

// Apply installs cfg unconditionally. Commands call it after flag parsing.
func Apply(cfg Config) {
	l := build(cfg, os.Stdout, os.Stderr)
	current.Store(&l)
}

// ApplyWithEnv installs cfg with env overrides layered on top.
func ApplyWithEnv(cfg Config) {
	applyEnvOverrides(&cfg)
	Apply(cfg)
}

// RuntimeConfig returns the runtime profile defaults without env overrides.
func RuntimeConfig() Config {
	return defaultConfig(ProfileRuntime)
}

// Logger returns the process logger for structured call sites.
func Logger() zerolog.Logger {
	if l := current.Load(); l != nil {
		return *l
	}
	cfg := defaultConfig(ProfileRuntime)
	return build(cfg, os.Stdout, os.Stderr)
}

// ParseLevel maps a config or env string to a level.
func ParseLevel(raw string) (zerolog.Level, bool) {
	return parseLevel(raw)
}

func build(cfg Config, stdout, stderr *os.File) zerolog.Logger {
	var out io.Writer
	if cfg.Bypass {
		out = stderr
	} else {
		noColor := cfg.NoColor || !isatty.IsTerminal(stdout.Fd())
		cw := zerolog.ConsoleWriter{
			Out:        colorable.NewColorable(stdout),
			NoColor:    noColor,
			TimeFormat: time.RFC3339,
		}
		if !cfg.Timestamp {
			cw.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		out = cw
	}
	ctx := zerolog.New(out).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

func defaultConfig(profile Profile) Config {
	cfg := Config{}
	switch profile {
	case ProfileTest:
		cfg.Level = zerolog.DebugLevel
		cfg.Timestamp = false
	default:
		cfg.Level = zerolog.InfoLevel
		cfg.Timestamp = true
	}
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogBypass)); ok {
		cfg.Bypass = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
