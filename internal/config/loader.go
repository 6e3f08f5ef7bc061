// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader produces a validated Config from defaults, the optional YAML file
// at Path, and the environment, in that order.
type Loader struct {
	// Path is the YAML config file; empty means env-only.
	Path string
}

// Load merges and validates the configuration.
func (l *Loader) Load() (Config, error) {
	cfg := Default()

	if l.Path != "" {
		data, err := os.ReadFile(l.Path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		cfg, err = applyYAML(cfg, data)
		if err != nil {
			return Config{}, err
		}
	}

	cfg, err := ApplyEnv(cfg)
	if err != nil {
		return Config{}, err
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyYAML overlays the file on cfg with strict decoding, so typos in keys
// fail loudly instead of being ignored.
func applyYAML(cfg Config, data []byte) (Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
