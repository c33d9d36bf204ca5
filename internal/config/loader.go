package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ModelConfig declares a model and optional batching overrides.
// Zero overrides inherit the server-wide settings, except MaxLatencyMS where
// only an absent value inherits.
type ModelConfig struct {
	ID           string         `json:"id" yaml:"id" toml:"id"`
	Name         string         `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Inputs       []string       `json:"inputs,omitempty" yaml:"inputs,omitempty" toml:"inputs,omitempty"`
	InputWidths  map[string]int `json:"input_widths,omitempty" yaml:"input_widths,omitempty" toml:"input_widths,omitempty"`
	MaxBatchSize int            `json:"max_batch_size,omitempty" yaml:"max_batch_size,omitempty" toml:"max_batch_size,omitempty"`
	MaxLatencyMS *int           `json:"max_latency_ms,omitempty" yaml:"max_latency_ms,omitempty" toml:"max_latency_ms,omitempty"`
	MaxInFlight  int            `json:"max_in_flight,omitempty" yaml:"max_in_flight,omitempty" toml:"max_in_flight,omitempty"`
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir    string `json:"models_dir,omitempty" yaml:"models_dir,omitempty" toml:"models_dir,omitempty"`
	WatchModels  bool   `json:"watch_models,omitempty" yaml:"watch_models,omitempty" toml:"watch_models,omitempty"`
	DefaultModel string `json:"default_model,omitempty" yaml:"default_model,omitempty" toml:"default_model,omitempty"`

	Backend          string `json:"backend" yaml:"backend" toml:"backend"`
	BackendURL       string `json:"backend_url,omitempty" yaml:"backend_url,omitempty" toml:"backend_url,omitempty"`
	BackendAPIKey    string `json:"backend_api_key,omitempty" yaml:"backend_api_key,omitempty" toml:"backend_api_key,omitempty"`
	BackendTimeoutMS int    `json:"backend_timeout_ms,omitempty" yaml:"backend_timeout_ms,omitempty" toml:"backend_timeout_ms,omitempty"`
	// EchoLatencyMS only applies to the echo backend.
	EchoLatencyMS int `json:"echo_latency_ms,omitempty" yaml:"echo_latency_ms,omitempty" toml:"echo_latency_ms,omitempty"`

	MaxBatchSize int `json:"max_batch_size" yaml:"max_batch_size" toml:"max_batch_size"`
	// MaxLatencyMS is a pointer so an explicit 0 (close on the next tick) is
	// distinguishable from unset.
	MaxLatencyMS      *int `json:"max_latency_ms,omitempty" yaml:"max_latency_ms,omitempty" toml:"max_latency_ms,omitempty"`
	MaxInFlight       int  `json:"max_in_flight" yaml:"max_in_flight" toml:"max_in_flight"`
	DispatchTimeoutMS int  `json:"dispatch_timeout_ms,omitempty" yaml:"dispatch_timeout_ms,omitempty" toml:"dispatch_timeout_ms,omitempty"`

	InferTimeoutMS    int   `json:"infer_timeout_ms,omitempty" yaml:"infer_timeout_ms,omitempty" toml:"infer_timeout_ms,omitempty"`
	MaxBodyBytes      int64 `json:"max_body_bytes,omitempty" yaml:"max_body_bytes,omitempty" toml:"max_body_bytes,omitempty"`
	ShutdownTimeoutMS int   `json:"shutdown_timeout_ms,omitempty" yaml:"shutdown_timeout_ms,omitempty" toml:"shutdown_timeout_ms,omitempty"`

	LogLevel  string `json:"log_level,omitempty" yaml:"log_level,omitempty" toml:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty" toml:"log_format,omitempty"`

	CORSEnabled        bool     `json:"cors_enabled,omitempty" yaml:"cors_enabled,omitempty" toml:"cors_enabled,omitempty"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins,omitempty" yaml:"cors_allowed_origins,omitempty" toml:"cors_allowed_origins,omitempty"`

	Models []ModelConfig `json:"models,omitempty" yaml:"models,omitempty" toml:"models,omitempty"`
}

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultAddr              = ":8080"
	DefaultBackend           = "nim"
	DefaultMaxBatchSize      = 8
	DefaultMaxLatencyMS      = 10
	DefaultInferTimeoutMS    = 30000
	DefaultShutdownTimeoutMS = 5000
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
)

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

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.MaxLatencyMS == nil {
		v := DefaultMaxLatencyMS
		c.MaxLatencyMS = &v
	}
	if c.InferTimeoutMS == 0 {
		c.InferTimeoutMS = DefaultInferTimeoutMS
	}
	if c.ShutdownTimeoutMS == 0 {
		c.ShutdownTimeoutMS = DefaultShutdownTimeoutMS
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
}

// Validate reports every invalid setting, joined.
func (c Config) Validate() error {
	var errs []error
	if c.MaxBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("max_batch_size must be > 0, got %d", c.MaxBatchSize))
	}
	if c.MaxLatencyMS != nil && *c.MaxLatencyMS < 0 {
		errs = append(errs, fmt.Errorf("max_latency_ms must be >= 0, got %d", *c.MaxLatencyMS))
	}
	if c.MaxInFlight < 0 {
		errs = append(errs, fmt.Errorf("max_in_flight must be > 0, got %d", c.MaxInFlight))
	}
	if c.Backend == "nim" && strings.TrimSpace(c.BackendURL) == "" {
		errs = append(errs, errors.New("backend_url is required for the nim backend"))
	}
	seen := make(map[string]struct{}, len(c.Models))
	for i, m := range c.Models {
		if strings.TrimSpace(m.ID) == "" {
			errs = append(errs, fmt.Errorf("models[%d]: id is required", i))
			continue
		}
		if _, dup := seen[m.ID]; dup {
			errs = append(errs, fmt.Errorf("models[%d]: duplicate id %q", i, m.ID))
		}
		seen[m.ID] = struct{}{}
		if m.MaxBatchSize < 0 || m.MaxInFlight < 0 || (m.MaxLatencyMS != nil && *m.MaxLatencyMS < 0) {
			errs = append(errs, fmt.Errorf("models[%d]: overrides must not be negative", i))
		}
		for name, w := range m.InputWidths {
			if w < 0 {
				errs = append(errs, fmt.Errorf("models[%d]: width of input %q must not be negative", i, name))
			}
		}
	}
	return errors.Join(errs...)
}

// MaxLatency returns the batching window, or the default when unset.
func (c Config) MaxLatency() time.Duration {
	if c.MaxLatencyMS == nil {
		return Millis(DefaultMaxLatencyMS)
	}
	return Millis(*c.MaxLatencyMS)
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
