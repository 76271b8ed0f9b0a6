// Package config loads the tracker's YAML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ServerConfig contains the HTTP listener configuration.
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

// TLEConfig holds the optional two-line element set for the offline source.
// Both lines must be present or both absent.
type TLEConfig struct {
	Line1 string `yaml:"line1"`
	Line2 string `yaml:"line2"`
}

// FeedConfig describes the upstream position source.
type FeedConfig struct {
	URL            string    `yaml:"url" validate:"omitempty,url"`
	PollIntervalMS int       `yaml:"pollIntervalMS" validate:"gte=0"`
	FetchTimeoutMS int       `yaml:"fetchTimeoutMS" validate:"gte=0"`
	TLE            TLEConfig `yaml:"tle"`
}

// TrailConfig holds the trail geometry constants.
type TrailConfig struct {
	SphereRadius  float64 `yaml:"sphereRadius" validate:"gte=0"`
	MaxPastPoints int     `yaml:"maxPastPoints" validate:"gte=0"`
	FuturePoints  int     `yaml:"futurePoints" validate:"gte=0"`
}

// LoggingConfig mirrors the logging package's Config.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Feed    FeedConfig    `yaml:"feed"`
	Trail   TrailConfig   `yaml:"trail"`
	Logging LoggingConfig `yaml:"logging"`
}

// Defaults applied after validation. Zero values in the file mean "use the
// default", which is why the validate tags allow zero.
const (
	DefaultPort           = 8080
	DefaultPollIntervalMS = 3000
	DefaultFetchTimeoutMS = 10000
)

// Load reads and validates the configuration file, then fills in defaults.
func Load(path string) (AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, err
	}
	return Parse(data)
}

// Parse decodes, validates, and defaults a raw YAML document.
func Parse(data []byte) (AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse config: %w", err)
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("validate config: %w", err)
	}

	if (cfg.Feed.TLE.Line1 == "") != (cfg.Feed.TLE.Line2 == "") {
		return AppConfig{}, fmt.Errorf("validate config: tle needs both line1 and line2")
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Feed.PollIntervalMS == 0 {
		cfg.Feed.PollIntervalMS = DefaultPollIntervalMS
	}
	if cfg.Feed.FetchTimeoutMS == 0 {
		cfg.Feed.FetchTimeoutMS = DefaultFetchTimeoutMS
	}

	return cfg, nil
}
