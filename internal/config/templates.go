package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "sim":
		return simTemplate, nil
	case "minimal":
		return minimalTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const simTemplate = `[node]
id = "uwb-controller"
metadata = "bench-a"

[pipeline]
event_buffer = 64

[ranging]
config_id = 1
supported_config_ids = [1, 2]

[sim]
controlees = 2
interval = "200ms"
duration = "10s"
seed = 0
channel = 9
preamble_index = 11
start_distance = 2.0
step = 0.15
disconnect_after = 0

[admin]
enabled = false
addr = "127.0.0.1:9310"
cors_origins = ["http://localhost:3000"]

[log]
level = "info"
timestamp = true
no_color = false
`

const minimalTemplate = `[node]
id = "uwb-controller"
`
