package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/uwbranging/internal/testutil/testlog"
	"github.com/rs/zerolog"
)

func TestTemplatesLoadAndValidate(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	for _, kind := range []string{"sim", "minimal"} {
		path := filepath.Join(dir, kind+".toml")
		if err := WriteTemplate(path, kind, false); err != nil {
			t.Fatalf("write %s: %v", kind, err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("load %s: %v", kind, err)
		}
		if cfg.Node.ID != "uwb-controller" || cfg.Pipeline.EventBuffer != 64 {
			t.Fatalf("%s: unexpected config: %+v", kind, cfg)
		}
		if err := WriteTemplate(path, kind, false); err == nil {
			t.Fatalf("%s: expected refusal to overwrite", kind)
		}
		if err := WriteTemplate(path, kind, true); err != nil {
			t.Fatalf("%s: overwrite: %v", kind, err)
		}
	}
	if _, err := Template("bogus"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestLoadKeepsDefaultsForAbsentKeys(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "c.toml")
	body := "[node]\nid = \"bench\"\nmetadata = \"m\"\n\n[sim]\ncontrolees = 5\ninterval = \"50ms\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sim.Controlees != 5 || cfg.Sim.Channel != 9 || cfg.Ranging.ConfigID != 1 {
		t.Fatalf("unexpected merge: %+v", cfg)
	}
	if d, _ := cfg.Sim.IntervalDuration(); d != 50*time.Millisecond {
		t.Fatalf("unexpected interval: %v", d)
	}
	local := cfg.LocalEndpoint()
	if local.ID != "bench" || string(local.Metadata) != "m" {
		t.Fatalf("unexpected local endpoint: %+v", local)
	}
	ncfg := cfg.NegotiatorConfig(local)
	if ncfg.ConfigID != 1 || len(ncfg.SupportedConfigIDs) != 2 || ncfg.EventBuffer != 64 {
		t.Fatalf("unexpected negotiator config: %+v", ncfg)
	}
	if s := cfg.SimEngineConfig(); s.Interval != 50*time.Millisecond || s.PreambleIndex != 11 {
		t.Fatalf("unexpected sim config: %+v", s)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	cases := map[string]func(*Config){
		"empty_id":       func(c *Config) { c.Node.ID = " " },
		"zero_buffer":    func(c *Config) { c.Pipeline.EventBuffer = 0 },
		"no_config_ids":  func(c *Config) { c.Ranging.SupportedConfigIDs = nil },
		"neg_config_id":  func(c *Config) { c.Ranging.SupportedConfigIDs = []int{1, -1} },
		"bad_interval":   func(c *Config) { c.Sim.Interval = "soon" },
		"neg_duration":   func(c *Config) { c.Sim.Duration = "-1s" },
		"admin_no_addr":  func(c *Config) { c.Admin.Enabled = true; c.Admin.Addr = "" },
		"bad_log_level":  func(c *Config) { c.Log.Level = "loud" },
		"neg_controlees": func(c *Config) { c.Sim.Controlees = -1 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoggingConfigFromLogTable(t *testing.T) {
	testlog.Start(t)
	cfg := Default()
	cfg.Log = LogConfig{Level: "debug", Timestamp: false, NoColor: true}
	lc := cfg.LoggingConfig()
	if lc.Level != zerolog.DebugLevel || lc.Timestamp || !lc.NoColor {
		t.Fatalf("unexpected logging config: %+v", lc)
	}
	if d, err := (SimConfig{Duration: "0"}).RunDuration(); err != nil || d != 0 {
		t.Fatalf("zero duration must mean unbounded, got %v %v", d, err)
	}
}
