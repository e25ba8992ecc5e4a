package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/uwbranging/internal/uwb"
	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	Node     NodeConfig     `toml:"node"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Ranging  RangingConfig  `toml:"ranging"`
	Sim      SimConfig      `toml:"sim"`
	Admin    AdminConfig    `toml:"admin"`
	Log      LogConfig      `toml:"log"`
}

type NodeConfig struct {
	ID       string `toml:"id"`
	Metadata string `toml:"metadata"`
}

type PipelineConfig struct {
	EventBuffer int `toml:"event_buffer"`
}

type RangingConfig struct {
	// ConfigID is what a controller offers.
	ConfigID int `toml:"config_id"`
	// SupportedConfigIDs is what a controlee advertises.
	SupportedConfigIDs []int `toml:"supported_config_ids"`
}

type SimConfig struct {
	Controlees      int     `toml:"controlees"`
	Interval        string  `toml:"interval"`
	Duration        string  `toml:"duration"`
	Seed            uint64  `toml:"seed"`
	Channel         int     `toml:"channel"`
	PreambleIndex   int     `toml:"preamble_index"`
	StartDistance   float64 `toml:"start_distance"`
	Step            float64 `toml:"step"`
	DisconnectAfter int     `toml:"disconnect_after"`
}

type AdminConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

type LogConfig struct {
	Level     string `toml:"level"`
	Timestamp bool   `toml:"timestamp"`
	NoColor   bool   `toml:"no_color"`
}

func Default() Config {
	return Config{
		Node: NodeConfig{ID: "uwb-controller"},
		Pipeline: PipelineConfig{
			EventBuffer: 64,
		},
		Ranging: RangingConfig{
			ConfigID:           1,
			SupportedConfigIDs: uwb.DefaultSupportedConfigIDs(),
		},
		Sim: SimConfig{
			Controlees:    2,
			Interval:      "200ms",
			Duration:      "10s",
			Channel:       9,
			PreambleIndex: 11,
			StartDistance: 2.0,
			Step:          0.15,
		},
		Admin: AdminConfig{
			Addr:        "127.0.0.1:9310",
			CorsOrigins: []string{"http://localhost:3000"},
		},
		Log: LogConfig{
			Level:     "info",
			Timestamp: true,
		},
	}
}

// Load reads path over Default. Keys absent from the file keep their
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Node.ID) == "" {
		return fmt.Errorf("%w: node.id is required", ErrInvalidConfig)
	}
	if c.Pipeline.EventBuffer <= 0 {
		return fmt.Errorf("%w: pipeline.event_buffer must be positive", ErrInvalidConfig)
	}
	if c.Ranging.ConfigID <= 0 {
		return fmt.Errorf("%w: ranging.config_id must be positive", ErrInvalidConfig)
	}
	if len(c.Ranging.SupportedConfigIDs) == 0 {
		return fmt.Errorf("%w: ranging.supported_config_ids is empty", ErrInvalidConfig)
	}
	for i, id := range c.Ranging.SupportedConfigIDs {
		if id <= 0 {
			return fmt.Errorf("%w: ranging.supported_config_ids[%d] must be positive", ErrInvalidConfig, i)
		}
	}
	if c.Sim.Controlees < 0 {
		return fmt.Errorf("%w: sim.controlees must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Sim.IntervalDuration(); err != nil {
		return err
	}
	if _, err := c.Sim.RunDuration(); err != nil {
		return err
	}
	if c.Admin.Enabled && strings.TrimSpace(c.Admin.Addr) == "" {
		return fmt.Errorf("%w: admin.addr is required when admin is enabled", ErrInvalidConfig)
	}
	if c.Log.Level != "" {
		if _, err := parseLogLevel(c.Log.Level); err != nil {
			return err
		}
	}
	return nil
}

func (s SimConfig) IntervalDuration() (time.Duration, error) {
	d, err := parsePositiveDuration("sim.interval", s.Interval)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// RunDuration is how long `uwbctl sim` runs. Zero runs until interrupted.
func (s SimConfig) RunDuration() (time.Duration, error) {
	if strings.TrimSpace(s.Duration) == "" || strings.TrimSpace(s.Duration) == "0" {
		return 0, nil
	}
	return parsePositiveDuration("sim.duration", s.Duration)
}

func parsePositiveDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, key)
	}
	return d, nil
}
