// Package config loads the habitat configuration from a YAML file, an optional
// .env file and HABITAT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mkoziy/habitat/ingest/internal/database"
	"github.com/mkoziy/habitat/ingest/internal/enrich/geocode"
	"github.com/mkoziy/habitat/ingest/internal/enrich/media"
	"github.com/mkoziy/habitat/ingest/internal/logging"
	"github.com/mkoziy/habitat/ingest/internal/matching"
	"github.com/mkoziy/habitat/ingest/internal/pipeline"
	"github.com/mkoziy/habitat/ingest/internal/ratelimit"
	"github.com/mkoziy/habitat/ingest/internal/zones"
)

// Provider names looked up in the rate_limits section.
const (
	ProviderGeocoder = "geocoder"
	ProviderMedia    = "media"
)

// Matching selects the company name matching strategy.
type Matching struct {
	Strategy string  `yaml:"strategy"`
	MinRatio float64 `yaml:"min_ratio"`
}

// Config is the full application configuration.
type Config struct {
	Database database.Options `yaml:"database"`
	DataDir  string           `yaml:"data_dir"`
	Listen   string           `yaml:"listen"`
	Log      logging.Options  `yaml:"log"`
	Geocoder geocode.Config   `yaml:"geocoder"`
	Media    media.Config     `yaml:"media"`
	Pipeline pipeline.Options `yaml:"pipeline"`
	Matching Matching         `yaml:"matching"`
	Zones    zones.Config     `yaml:"zones"`

	RateLimits ratelimit.SourceConfigs `yaml:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Database: database.Options{Driver: database.DriverSQLite},
		DataDir:  "data",
		Listen:   ":8080",
		Log:      logging.Options{Level: "info"},
		Geocoder: geocode.Config{BaseURL: geocode.DefaultBaseURL, CountryCodes: "ca", Timeout: 10 * time.Second},
		Media:    media.Config{Timeout: 30 * time.Second},
		Pipeline: pipeline.DefaultOptions(),
		Matching: Matching{Strategy: "substring", MinRatio: matching.DefaultMinRatio},
		Zones:    zones.DefaultConfig(),
	}
}

// Load reads the optional YAML file at path, then .env, then the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if cfg.Database.Driver == database.DriverSQLite && strings.TrimSpace(cfg.Database.DSN) == "" {
		cfg.Database.DSN = "file:" + filepath.Join(cfg.DataDir, "habitat.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	limits, err := ratelimit.LoadSourceConfigs(data)
	if err != nil {
		return err
	}
	c.RateLimits = limits
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("HABITAT_DB_DRIVER", &c.Database.Driver)
	str("HABITAT_DB_DSN", &c.Database.DSN)
	str("HABITAT_DATA_DIR", &c.DataDir)
	str("HABITAT_LISTEN", &c.Listen)
	str("HABITAT_LOG_LEVEL", &c.Log.Level)
	str("HABITAT_LOG_FORMAT", &c.Log.Format)
	str("HABITAT_GEOCODER_URL", &c.Geocoder.BaseURL)
	str("HABITAT_GEOCODER_EMAIL", &c.Geocoder.Email)

	if v, ok := lookup("HABITAT_DB_DEBUG"); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("HABITAT_DB_DEBUG: %w", err)
		}
		c.Database.Debug = debug
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case database.DriverSQLite, database.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported value %q", c.Database.Driver))
	}
	if c.Database.Driver == database.DriverPostgres && strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required for postgres"))
	}
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := matching.New(c.Matching.Strategy, c.Matching.MinRatio); err != nil {
		errs = append(errs, err)
	}
	if c.Matching.MinRatio < 0 || c.Matching.MinRatio > 1 {
		errs = append(errs, fmt.Errorf("matching.min_ratio must be within [0, 1], got %v", c.Matching.MinRatio))
	}
	if c.Pipeline.Concurrency < 0 {
		errs = append(errs, errors.New("pipeline.concurrency must be non-negative"))
	}
	if c.Pipeline.MaxConcurrency < 0 {
		errs = append(errs, errors.New("pipeline.max_concurrency must be non-negative"))
	}
	if c.Pipeline.ItemDelay < 0 {
		errs = append(errs, errors.New("pipeline.item_delay must be non-negative"))
	}
	if c.Zones.MaxDelay > 0 && c.Zones.MaxDelay < c.Zones.MinDelay {
		errs = append(errs, errors.New("zones.max_delay is below zones.min_delay"))
	}
	return errors.Join(errs...)
}

// BlobDir is where raw captures and media are stored.
func (c *Config) BlobDir() string {
	return filepath.Join(c.DataDir, "blobs")
}

// LockPath is the file guarding single-runner batch commands.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "backfill.lock")
}

// EnsureDirectories creates the data directory tree.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.BlobDir(), 0o755); err != nil {
		return fmt.Errorf("ensure data directory: %w", err)
	}
	return nil
}

// Limiter builds the limiter and retry policy of a provider.
func (c *Config) Limiter(provider string) (ratelimit.Limiter, ratelimit.Policy) {
	rl := c.RateLimits.GetOr(provider, providerDefaults(provider))
	return ratelimit.NewLimiter(rl), rl.Policy()
}

// Matcher builds the configured name matching strategy.
func (c *Config) Matcher() (matching.Strategy, error) {
	return matching.New(c.Matching.Strategy, c.Matching.MinRatio)
}

func providerDefaults(provider string) ratelimit.Config {
	cfg := ratelimit.DefaultConfig()
	if provider == ProviderGeocoder {
		// Nominatim usage policy: at most one request per second.
		cfg.Strategy = ratelimit.StrategyFixedDelay
		cfg.FixedDelay = time.Second
		cfg.Jitter = ratelimit.JitterUniform
	}
	return cfg
}
