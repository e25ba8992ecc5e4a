package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/uwbranging/internal/config"
)

type fileConfig struct {
	Node struct {
		ID       string `toml:"id"`
		Metadata string `toml:"metadata"`
	} `toml:"node"`
	Pipeline struct {
		EventBuffer int `toml:"event_buffer"`
	} `toml:"pipeline"`
	Ranging struct {
		ConfigID           int   `toml:"config_id"`
		SupportedConfigIDs []int `toml:"supported_config_ids"`
	} `toml:"ranging"`
	Sim struct {
		Controlees      int     `toml:"controlees"`
		Interval        string  `toml:"interval"`
		Duration        string  `toml:"duration"`
		Seed            int64   `toml:"seed"`
		Channel         int     `toml:"channel"`
		PreambleIndex   int     `toml:"preamble_index"`
		StartDistance   float64 `toml:"start_distance"`
		Step            float64 `toml:"step"`
		DisconnectAfter int     `toml:"disconnect_after"`
	} `toml:"sim"`
	Admin struct {
		Enabled     bool     `toml:"enabled"`
		Addr        string   `toml:"addr"`
		CorsOrigins []string `toml:"cors_origins"`
	} `toml:"admin"`
	Log struct {
		Level     string `toml:"level"`
		Timestamp bool   `toml:"timestamp"`
		NoColor   bool   `toml:"no_color"`
	} `toml:"log"`
}

// loadRunConfig overlays only the keys present in path onto config.Default.
func loadRunConfig(path string) (config.Config, error) {
	cfg := config.Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.Config{}, fmt.Errorf("load uwbctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config.Config{}, fmt.Errorf("load uwbctl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("node", "id") {
		if id := strings.TrimSpace(raw.Node.ID); id != "" {
			cfg.Node.ID = id
		}
	}
	if meta.IsDefined("node", "metadata") {
		cfg.Node.Metadata = raw.Node.Metadata
	}

	if meta.IsDefined("pipeline", "event_buffer") {
		cfg.Pipeline.EventBuffer = raw.Pipeline.EventBuffer
	}

	if meta.IsDefined("ranging", "config_id") {
		cfg.Ranging.ConfigID = raw.Ranging.ConfigID
	}
	if meta.IsDefined("ranging", "supported_config_ids") {
		cfg.Ranging.SupportedConfigIDs = append([]int(nil), raw.Ranging.SupportedConfigIDs...)
	}

	if meta.IsDefined("sim", "controlees") {
		cfg.Sim.Controlees = raw.Sim.Controlees
	}
	if meta.IsDefined("sim", "interval") {
		cfg.Sim.Interval = strings.TrimSpace(raw.Sim.Interval)
	}
	if meta.IsDefined("sim", "duration") {
		cfg.Sim.Duration = strings.TrimSpace(raw.Sim.Duration)
	}
	if meta.IsDefined("sim", "seed") {
		if raw.Sim.Seed < 0 {
			return config.Config{}, fmt.Errorf("parse sim.seed: must not be negative")
		}
		cfg.Sim.Seed = uint64(raw.Sim.Seed)
	}
	if meta.IsDefined("sim", "channel") {
		cfg.Sim.Channel = raw.Sim.Channel
	}
	if meta.IsDefined("sim", "preamble_index") {
		cfg.Sim.PreambleIndex = raw.Sim.PreambleIndex
	}
	if meta.IsDefined("sim", "start_distance") {
		cfg.Sim.StartDistance = raw.Sim.StartDistance
	}
	if meta.IsDefined("sim", "step") {
		cfg.Sim.Step = raw.Sim.Step
	}
	if meta.IsDefined("sim", "disconnect_after") {
		cfg.Sim.DisconnectAfter = raw.Sim.DisconnectAfter
	}

	if meta.IsDefined("admin", "enabled") {
		cfg.Admin.Enabled = raw.Admin.Enabled
	}
	if meta.IsDefined("admin", "addr") {
		cfg.Admin.Addr = strings.TrimSpace(raw.Admin.Addr)
	}
	if meta.IsDefined("admin", "cors_origins") {
		cfg.Admin.CorsOrigins = normalizeOrigins(raw.Admin.CorsOrigins)
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "timestamp") {
		cfg.Log.Timestamp = raw.Log.Timestamp
	}
	if meta.IsDefined("log", "no_color") {
		cfg.Log.NoColor = raw.Log.NoColor
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
