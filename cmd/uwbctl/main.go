package main

import (
	"os"

	"github.com/danmuck/uwbranging/internal/config"
	"github.com/danmuck/uwbranging/internal/logging"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

func Execute() error {
	root := &cobra.Command{
		Use:           "uwbctl",
		Short:         "Run and inspect UWB out-of-band session negotiation",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a uwbctl TOML config")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override [log].level (trace, debug, info, warn, error)")

	root.AddCommand(simCmd(), configCmd())
	return root.Execute()
}

// runConfig resolves --config over defaults and installs the logger.
func runConfig() (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := loadRunConfig(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	logging.ApplyWithEnv(cfg.LoggingConfig())
	return cfg, nil
}
