// Package config loads controller configuration files and the host tool
// environment.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v2"

	"gobldc/core"
)

// Load parses YAML over the default configuration and validates the
// result. Keys that are absent keep their default value.
func Load(data []byte) (core.Config, error) {
	cfg := core.DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile reads and parses a YAML configuration file. An empty path
// returns the defaults.
func LoadFile(path string) (core.Config, error) {
	if path == "" {
		return core.DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return core.DefaultConfig(), err
	}
	cfg, err := Load(data)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal renders cfg as YAML, in the format Load accepts
func Marshal(cfg core.Config) ([]byte, error) {
	return yaml.Marshal(&cfg)
}

// Env holds the host tool settings taken from the environment
type Env struct {
	Device string `env:"BLDC_DEVICE" envDefault:"/dev/ttyACM0"`
	Baud   int    `env:"BLDC_BAUD" envDefault:"115200"`
	Config string `env:"BLDC_CONFIG"`
	AMQP   string `env:"BLDC_AMQP"`
}

// LoadEnv reads Env from the process environment
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return e, fmt.Errorf("parse environment: %w", err)
	}
	return e, nil
}
