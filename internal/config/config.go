package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the daemon configuration read from a YAML file.
type Config struct {
	DataPath          string `yaml:"dataPath"`
	MinimumFreeGB     int    `yaml:"minimumFreeGB"`
	Concurrency       int    `yaml:"concurrency"`
	GCIntervalMinutes int    `yaml:"gcIntervalMinutes"`
	Debug             bool   `yaml:"debug"`
}

// Load reads and parses the YAML file at path, filling in defaults for
// unset fields. A missing file yields the defaults.
func Load(path string) (Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("error reading config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error parsing config %s: %w", path, err)
	}

	if config.DataPath == "" {
		config.DataPath = "./data"
	}
	if config.MinimumFreeGB == 0 {
		config.MinimumFreeGB = 1
	}
	if config.GCIntervalMinutes == 0 {
		config.GCIntervalMinutes = 10
	}

	return config, nil
}
