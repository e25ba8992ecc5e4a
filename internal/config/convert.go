package config

import (
	"fmt"
	"strings"

	"github.com/danmuck/uwbranging/internal/engine/sim"
	"github.com/danmuck/uwbranging/internal/logging"
	"github.com/danmuck/uwbranging/internal/negotiator"
	"github.com/danmuck/uwbranging/internal/uwb"
	"github.com/rs/zerolog"
)

// LocalEndpoint is this node's identity.
func (c Config) LocalEndpoint() uwb.Endpoint {
	var meta []byte
	if c.Node.Metadata != "" {
		meta = []byte(c.Node.Metadata)
	}
	return uwb.NewEndpoint(strings.TrimSpace(c.Node.ID), meta)
}

func (c Config) NegotiatorConfig(local uwb.Endpoint) negotiator.Config {
	return negotiator.Config{
		Local:              local,
		ConfigID:           c.Ranging.ConfigID,
		SupportedConfigIDs: append([]int(nil), c.Ranging.SupportedConfigIDs...),
		EventBuffer:        c.Pipeline.EventBuffer,
	}
}

func (c Config) SimEngineConfig() sim.Config {
	interval, _ := c.Sim.IntervalDuration()
	return sim.Config{
		Interval:        interval,
		Channel:         c.Sim.Channel,
		PreambleIndex:   c.Sim.PreambleIndex,
		Seed:            c.Sim.Seed,
		StartDistance:   c.Sim.StartDistance,
		Step:            c.Sim.Step,
		DisconnectAfter: c.Sim.DisconnectAfter,
	}
}

// LoggingConfig layers the [log] table over the runtime profile. Env
// overrides still win because logging applies them last.
func (c Config) LoggingConfig() logging.Config {
	out := logging.RuntimeConfig()
	if lvl, ok := logging.ParseLevel(c.Log.Level); ok {
		out.Level = lvl
	}
	out.Timestamp = c.Log.Timestamp
	out.NoColor = c.Log.NoColor
	return out
}

func parseLogLevel(raw string) (zerolog.Level, error) {
	lvl, ok := logging.ParseLevel(raw)
	if !ok {
		return zerolog.NoLevel, fmt.Errorf("%w: log.level %q is not a level", ErrInvalidConfig, raw)
	}
	return lvl, nil
}
