// Package config loads the matcher configuration from YAML and the
// environment
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"social-rideshare/internal/assignment"
	"social-rideshare/internal/format"
	"social-rideshare/internal/models"
	"social-rideshare/internal/scoring"
)

const (
	AppDirName     = ".social-rideshare"
	ConfigFileName = "config.yaml"
	CacheFileName  = "cache.db"

	envPrefix = "MATCHER_"
)

// Distance providers
const (
	ProviderNone   = "none"
	ProviderOSRM   = "osrm"
	ProviderGoogle = "google"
)

type Config struct {
	Algorithm  string            `yaml:"algorithm"`
	Output     string            `yaml:"output"`
	Server     ServerConfig      `yaml:"server"`
	Log        LogConfig         `yaml:"log"`
	Scoring    scoring.Config    `yaml:"scoring"`
	Assignment assignment.Config `yaml:"assignment"`
	Distance   DistanceConfig    `yaml:"distance"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DistanceConfig selects where trip distances come from. With provider
// none, distances are great circle estimates.
type DistanceConfig struct {
	Provider       string        `yaml:"provider"`
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	CachePath      string        `yaml:"cache_path"`
	Timeout        time.Duration `yaml:"timeout"`
	Geocode        bool          `yaml:"geocode"`
	GeocoderURL    string        `yaml:"geocoder_url"`
	GeocodeRetries int           `yaml:"geocode_retries"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	return &Config{
		Algorithm: string(assignment.AlgorithmAuto),
		Output:    string(format.OutputJSON),
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    4 << 20,
		},
		Log: LogConfig{
			Level: "info",
		},
		Scoring:    scoring.DefaultConfig(),
		Assignment: assignment.DefaultConfig(),
		Distance: DistanceConfig{
			Provider:       ProviderNone,
			Timeout:        30 * time.Second,
			GeocodeRetries: 3,
		},
	}
}

// DefaultPath returns ~/.social-rideshare/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ConfigFileName
	}
	return filepath.Join(home, AppDirName, ConfigFileName)
}

// DefaultCachePath returns ~/.social-rideshare/cache.db
func DefaultCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, AppDirName, CacheFileName), nil
}

// Load reads the YAML file at path over the defaults, applies MATCHER_*
// environment overrides and validates the result. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Atomic write
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename config: %w", err)
	}
	return nil
}

func getEnv(key string) (string, bool) {
	value := os.Getenv(envPrefix + key)
	return value, value != ""
}

func (c *Config) applyEnvOverrides() error {
	text := map[string]*string{
		"ALGORITHM":         &c.Algorithm,
		"OUTPUT":            &c.Output,
		"ADDR":              &c.Server.Addr,
		"LOG_LEVEL":         &c.Log.Level,
		"DISTANCE_PROVIDER": &c.Distance.Provider,
		"DISTANCE_URL":      &c.Distance.BaseURL,
		"GOOGLE_MAPS_KEY":   &c.Distance.APIKey,
		"CACHE_PATH":        &c.Distance.CachePath,
		"GEOCODER_URL":      &c.Distance.GeocoderURL,
	}
	for key, target := range text {
		if value, ok := getEnv(key); ok {
			*target = value
		}
	}

	bools := map[string]*bool{
		"LOG_DEVELOPMENT":   &c.Log.Development,
		"GEOCODE":           &c.Distance.Geocode,
		"REQUIRE_COMPLETE":  &c.Assignment.RequireComplete,
		"HARD_TIME_WINDOWS": &c.Scoring.HardTimeWindows,
	}
	for key, target := range bools {
		if value, ok := getEnv(key); ok {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
			}
			*target = b
		}
	}

	if value, ok := getEnv("EXACT_MAX_NODES"); ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %sEXACT_MAX_NODES: %w", envPrefix, err)
		}
		c.Assignment.ExactMaxNodes = n
	}
	if value, ok := getEnv("EXACT_TIME_BUDGET"); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %sEXACT_TIME_BUDGET: %w", envPrefix, err)
		}
		c.Assignment.ExactTimeBudget = d
	}
	return nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	verr := &models.ValidationError{}

	if _, err := assignment.ParseAlgorithm(c.Algorithm); err != nil {
		verr.Add("algorithm", "unknown algorithm %q", c.Algorithm)
	}
	if _, err := format.ParseOutput(c.Output); err != nil {
		verr.Add("output", "unknown output %q, expected one of json, partition, text", c.Output)
	}
	if c.Server.Addr == "" {
		verr.Add("server.addr", "must not be empty")
	}
	if c.Server.MaxBodyBytes <= 0 {
		verr.Add("server.max_body_bytes", "must be positive, got %d", c.Server.MaxBodyBytes)
	}
	for _, d := range []struct {
		field string
		value time.Duration
	}{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
		{"distance.timeout", c.Distance.Timeout},
	} {
		if d.value < 0 {
			verr.Add(d.field, "must not be negative, got %s", d.value)
		}
	}

	switch c.Distance.Provider {
	case ProviderNone, ProviderOSRM:
	case ProviderGoogle:
		if c.Distance.APIKey == "" {
			verr.Add("distance.api_key", "required for the google provider (set %sGOOGLE_MAPS_KEY)", envPrefix)
		}
	default:
		verr.Add("distance.provider", "unknown provider %q, expected one of none, osrm, google", c.Distance.Provider)
	}
	if c.Distance.GeocodeRetries < 0 {
		verr.Add("distance.geocode_retries", "must not be negative, got %d", c.Distance.GeocodeRetries)
	}

	for _, err := range []error{c.Scoring.Validate(), c.Assignment.Validate()} {
		var nested *models.ValidationError
		if errors.As(err, &nested) {
			verr.Problems = append(verr.Problems, nested.Problems...)
		}
	}
	return verr.ErrOrNil()
}
