package ratelimit

import "time"

// Jitter selects how retry delays are drawn.
type Jitter string

const (
	// JitterExponential grows the delay by BackoffMultiplier per attempt, +/-25%.
	JitterExponential Jitter = "exponential"
	// JitterUniform draws every delay uniformly from [InitialBackoff, MaxBackoff].
	JitterUniform Jitter = "uniform"
)

// Config holds limiter and retry settings for one provider.
type Config struct {
	Strategy          Strategy      `yaml:"strategy" json:"strategy"`
	RequestsPerSec    float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	Window            time.Duration `yaml:"window" json:"window"`
	FixedDelay        time.Duration `yaml:"fixed_delay" json:"fixed_delay"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff" json:"max_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	Jitter            Jitter        `yaml:"jitter" json:"jitter"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:          StrategyTokenBucket,
		RequestsPerSec:    3.0,
		Burst:             5,
		Window:            time.Second,
		FixedDelay:        1 * time.Second,
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            JitterExponential,
	}
}

// Policy derives the retry policy for this provider.
func (c Config) Policy() Policy {
	c = applyDefaults(c)
	p := Policy{
		MaxAttempts: c.MaxRetries + 1,
		MinDelay:    c.InitialBackoff,
		MaxDelay:    c.MaxBackoff,
		Multiplier:  c.BackoffMultiplier,
	}
	if c.Jitter == JitterUniform {
		p.Multiplier = 0
	}
	return p
}

func applyDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = def.RequestsPerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}
	if cfg.FixedDelay <= 0 {
		cfg.FixedDelay = def.FixedDelay
	}
	if cfg.Jitter == "" {
		cfg.Jitter = def.Jitter
	}
	return cfg
}
