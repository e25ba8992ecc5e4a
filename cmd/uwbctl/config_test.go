package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/uwbranging/internal/config"
	"github.com/danmuck/uwbranging/internal/testutil/testlog"
)

func resolveWorkspaceRoot(rel string) string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, rel)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "."
		}
		dir = parent
	}
}

func TestLoadRunConfigDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	root := resolveWorkspaceRoot("cmd/uwbctl/ex.config.toml")
	path := filepath.Join(root, "cmd", "uwbctl", "ex.config.toml")

	cfg, err := loadRunConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Node.ID != "bench-controller" || cfg.Node.Metadata != "bench-a" {
		t.Fatalf("unexpected node: %+v", cfg.Node)
	}
	if cfg.Pipeline.EventBuffer != 32 {
		t.Fatalf("unexpected event buffer: %d", cfg.Pipeline.EventBuffer)
	}
	if cfg.Sim.Controlees != 3 || cfg.Sim.Seed != 7 {
		t.Fatalf("unexpected sim: %+v", cfg.Sim)
	}
	if d, _ := cfg.Sim.IntervalDuration(); d != 100*time.Millisecond {
		t.Fatalf("unexpected interval: %v", d)
	}
	if cfg.Sim.Channel != 9 || cfg.Sim.PreambleIndex != 11 {
		t.Fatalf("absent keys must keep defaults: %+v", cfg.Sim)
	}
	if !cfg.Admin.Enabled || cfg.Admin.Addr != "127.0.0.1:9310" {
		t.Fatalf("unexpected admin: %+v", cfg.Admin)
	}
	if len(cfg.Admin.CorsOrigins) != 1 {
		t.Fatalf("blank origins must be dropped: %+v", cfg.Admin.CorsOrigins)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Timestamp {
		t.Fatalf("unexpected log: %+v", cfg.Log)
	}

	viaPelletier, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if viaPelletier.Node != cfg.Node || viaPelletier.Sim != cfg.Sim {
		t.Fatalf("loaders disagree: %+v vs %+v", viaPelletier, cfg)
	}
}

func TestLoadRunConfigRejectsUnknownAndInvalid(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()

	unknown := filepath.Join(dir, "unknown.toml")
	if err := os.WriteFile(unknown, []byte("[node]\nid = \"x\"\ncolour = \"blue\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadRunConfig(unknown); err == nil {
		t.Fatalf("expected unknown key error")
	}

	invalid := filepath.Join(dir, "invalid.toml")
	if err := os.WriteFile(invalid, []byte("[sim]\ninterval = \"never\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadRunConfig(invalid); err == nil {
		t.Fatalf("expected invalid interval error")
	}
}

func TestRunSimNegotiatesAndStops(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	cfg.Sim.Controlees = 2
	cfg.Sim.Interval = "5ms"
	cfg.Sim.Duration = "300ms"
	cfg.Sim.Seed = 11

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runSim(ctx, cfg); err != nil {
		t.Fatalf("run sim: %v", err)
	}
}
