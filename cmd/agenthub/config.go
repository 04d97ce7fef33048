package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bazelment/agenthub/runtime"
	"github.com/bazelment/agenthub/schema"
)

// ServerConfig holds the serve command's configuration, loadable from a
// YAML file and overridable by flags.
type ServerConfig struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`
	// OpenCodeURL is the base URL of the OpenCode backend.
	OpenCodeURL string `yaml:"opencode_url"`
	// Binaries overrides the executable per agent, e.g. claude: /opt/claude.
	Binaries map[string]string `yaml:"binaries"`
	// StartupTimeout bounds agent process startup, e.g. "30s".
	StartupTimeout string `yaml:"startup_timeout"`
	// StopGrace is the SIGTERM-to-SIGKILL grace period, e.g. "5s".
	StopGrace string `yaml:"stop_grace"`
	// SubscriberBuffer is the per-subscriber event channel capacity.
	SubscriberBuffer int `yaml:"subscriber_buffer"`
}

// parseDuration parses an optional duration field. Empty means zero,
// letting the consumer apply its default.
func parseDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

func (c *ServerConfig) startupTimeout() (time.Duration, error) {
	return parseDuration("startup_timeout", c.StartupTimeout)
}

// LoadServerConfig loads configuration from path. A missing file yields
// defaults; an empty path skips loading entirely.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := &ServerConfig{Addr: ":8484"}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8484"
	}
	return cfg, nil
}

// runtimeConfig maps the file config onto the adapter factory's config,
// validating agent names in the binaries map.
func (c *ServerConfig) runtimeConfig() (runtime.Config, error) {
	stopGrace, err := parseDuration("stop_grace", c.StopGrace)
	if err != nil {
		return runtime.Config{}, err
	}
	rc := runtime.Config{
		OpenCodeURL: c.OpenCodeURL,
		StopGrace:   stopGrace,
	}
	if len(c.Binaries) > 0 {
		rc.Binaries = make(map[schema.Agent]string, len(c.Binaries))
		for name, bin := range c.Binaries {
			agent, err := schema.ParseAgent(name)
			if err != nil {
				return runtime.Config{}, fmt.Errorf("binaries: %w", err)
			}
			rc.Binaries[agent] = bin
		}
	}
	return rc, nil
}
