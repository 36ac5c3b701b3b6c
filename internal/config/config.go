// Package config loads the optional vmemo.yaml defaults file
// (SPEC_FULL.md §1.3): per-invocation CLI flags always win; this only
// supplies fallbacks when a flag wasn't set explicitly.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional on-disk defaults file.
type Config struct {
	Base        string `yaml:"base"`
	TopK        int    `yaml:"top_k"`
	ArenaBytes  int    `yaml:"arena_bytes"`
	PreferVulkan bool  `yaml:"prefer_vulkan"`
}

// Default returns the built-in fallbacks used when no config file exists.
func Default() Config {
	return Config{
		Base:         "vmemo",
		TopK:         2,
		ArenaBytes:   64 << 20,
		PreferVulkan: true,
	}
}

// Load reads path and merges it over Default(). A missing file is not an
// error: it just means the defaults apply unmodified.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
