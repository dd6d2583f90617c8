package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for devmemd.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr  string `json:"addr" yaml:"addr" toml:"addr"`
	Mode  string `json:"mode" yaml:"mode" toml:"mode"`
	Debug bool   `json:"debug" yaml:"debug" toml:"debug"`

	// DeviceMB lists the simulated devices by capacity in MiB, one entry
	// per device in ordinal order.
	DeviceMB []int `json:"device_mb" yaml:"device_mb" toml:"device_mb"`

	// Caching-pool tunables; zero takes the pool package defaults.
	BinBase     uint `json:"bin_base" yaml:"bin_base" toml:"bin_base"`
	MinBin      uint `json:"min_bin" yaml:"min_bin" toml:"min_bin"`
	MaxBin      uint `json:"max_bin" yaml:"max_bin" toml:"max_bin"`
	MaxCachedMB int  `json:"max_cached_mb" yaml:"max_cached_mb" toml:"max_cached_mb"`
	SkipCleanup bool `json:"skip_cleanup" yaml:"skip_cleanup" toml:"skip_cleanup"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
