package ratelimit

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// SourceConfigs maps a provider name (geocoder, media, ...) to its limiter config.
type SourceConfigs struct {
	RateLimits map[string]Config `yaml:"rate_limits" json:"rate_limits"`
}

// LoadSourceConfigs reads the rate_limits section out of a YAML document.
func LoadSourceConfigs(data []byte) (SourceConfigs, error) {
	var cfgs SourceConfigs
	if err := yaml.Unmarshal(data, &cfgs); err != nil {
		return SourceConfigs{}, fmt.Errorf("parse rate_limits: %w", err)
	}
	for name, cfg := range cfgs.RateLimits {
		cfgs.RateLimits[name] = applyDefaults(cfg)
	}
	return cfgs, nil
}

// Get returns the config for a provider.
func (s SourceConfigs) Get(name string) (Config, error) {
	if s.RateLimits == nil {
		return DefaultConfig(), fmt.Errorf("no rate_limits configured")
	}
	cfg, ok := s.RateLimits[name]
	if !ok {
		return DefaultConfig(), fmt.Errorf("rate_limits for %s not found", name)
	}
	return applyDefaults(cfg), nil
}

// GetOr returns the config for a provider, or fallback when none is configured.
func (s SourceConfigs) GetOr(name string, fallback Config) Config {
	if cfg, err := s.Get(name); err == nil {
		return cfg
	}
	return applyDefaults(fallback)
}
