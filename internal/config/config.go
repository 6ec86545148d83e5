// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads debuggee configuration from a YAML file, the
// environment, and built-in defaults, in increasing order of priority
// below command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombee/debuggee/internal/connector"
	"github.com/tombee/debuggee/internal/debug"
	"github.com/tombee/debuggee/internal/log"
	"github.com/tombee/debuggee/internal/tracing"
	dbgerrors "github.com/tombee/debuggee/pkg/errors"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config represents the complete debuggee configuration.
type Config struct {
	IDE     IDEConfig     `yaml:"ide"`
	Engine  EngineConfig  `yaml:"engine"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// IDEConfig configures the connection to the debugging client.
type IDEConfig struct {
	// Host is the address the client listens on.
	// Environment: DEBUGGEE_IDE_HOST
	Host string `yaml:"host"`

	// Port is the client port.
	// Environment: DEBUGGEE_IDE_PORT
	Port int `yaml:"port"`

	// IDEKey is sent to the client in the init packet.
	// Environment: DEBUGGEE_IDEKEY
	IDEKey string `yaml:"idekey"`

	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// RetryInterval is the minimum time between connection attempts.
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// EngineConfig configures the debug engine.
type EngineConfig struct {
	MaxDepth    int `yaml:"max_depth"`
	MaxChildren int `yaml:"max_children"`
	MaxData     int `yaml:"max_data"`

	// RenderFormat selects how eval results are shown: json,
	// json-pretty or yaml.
	RenderFormat string `yaml:"render_format"`

	// MaxConcurrentRuns bounds scripts running at once.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is the log level (trace, debug, info, warn, error).
	// Environment: DEBUGGEE_LOG_LEVEL
	Level string `yaml:"level"`

	// Format is the log format (json, text). Empty picks text on a
	// terminal and json otherwise.
	// Environment: DEBUGGEE_LOG_FORMAT
	Format string `yaml:"format"`

	// AddSource adds source file and line to log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables it.
	// Environment: DEBUGGEE_METRICS_ADDR
	Addr string `yaml:"addr"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	// Enabled writes spans to stderr.
	// Environment: DEBUGGEE_TRACING
	Enabled bool `yaml:"enabled"`

	// Pretty formats exported spans for humans.
	Pretty bool `yaml:"pretty"`

	// SampleRate is the fraction of runs to trace (0.0 - 1.0).
	SampleRate float64 `yaml:"sample_rate"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		IDE: IDEConfig{
			Host:          "127.0.0.1",
			Port:          9003,
			IDEKey:        "debuggee",
			DialTimeout:   5 * time.Second,
			RetryInterval: time.Second,
		},
		Engine: EngineConfig{
			MaxDepth:          1,
			MaxChildren:       32,
			MaxData:           1024,
			RenderFormat:      "json",
			MaxConcurrentRuns: 1,
		},
		Log: LogConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			Pretty:     true,
			SampleRate: 1.0,
		},
	}
}

// Load reads configuration from configPath (when not empty), fills
// defaults, applies environment overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &dbgerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &dbgerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}
	return cfg, nil
}

// LoadDefault loads the config file found by Discover from the working
// directory, or the defaults when there is none.
func LoadDefault() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return Load(Discover(wd))
}

func (c *Config) applyDefaults() {
	defaults := Default()

	if c.IDE.Host == "" {
		c.IDE.Host = defaults.IDE.Host
	}
	if c.IDE.Port == 0 {
		c.IDE.Port = defaults.IDE.Port
	}
	if c.IDE.IDEKey == "" {
		c.IDE.IDEKey = defaults.IDE.IDEKey
	}
	if c.IDE.DialTimeout == 0 {
		c.IDE.DialTimeout = defaults.IDE.DialTimeout
	}
	if c.IDE.RetryInterval == 0 {
		c.IDE.RetryInterval = defaults.IDE.RetryInterval
	}

	if c.Engine.MaxDepth == 0 {
		c.Engine.MaxDepth = defaults.Engine.MaxDepth
	}
	if c.Engine.MaxChildren == 0 {
		c.Engine.MaxChildren = defaults.Engine.MaxChildren
	}
	if c.Engine.MaxData == 0 {
		c.Engine.MaxData = defaults.Engine.MaxData
	}
	if c.Engine.RenderFormat == "" {
		c.Engine.RenderFormat = defaults.Engine.RenderFormat
	}
	if c.Engine.MaxConcurrentRuns == 0 {
		c.Engine.MaxConcurrentRuns = defaults.Engine.MaxConcurrentRuns
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = defaults.Tracing.SampleRate
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// loadFromEnv applies environment overrides. Unparseable values are
// ignored.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("DEBUGGEE_IDE_HOST"); val != "" {
		c.IDE.Host = val
	}
	if val := os.Getenv("DEBUGGEE_IDE_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.IDE.Port = port
		}
	}
	if val := os.Getenv("DEBUGGEE_IDEKEY"); val != "" {
		c.IDE.IDEKey = val
	}
	if val := os.Getenv("DEBUGGEE_METRICS_ADDR"); val != "" {
		c.Metrics.Addr = val
	}
	if val := os.Getenv("DEBUGGEE_LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("DEBUGGEE_LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
	if val := os.Getenv("DEBUGGEE_TRACING"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Tracing.Enabled = enabled
		}
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.IDE.Port < 1 || c.IDE.Port > 65535 {
		errs = append(errs, fmt.Sprintf("ide.port must be between 1 and 65535, got %d", c.IDE.Port))
	}
	if c.IDE.DialTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("ide.dial_timeout must be positive, got %v", c.IDE.DialTimeout))
	}
	if c.IDE.RetryInterval < 0 {
		errs = append(errs, fmt.Sprintf("ide.retry_interval must not be negative, got %v", c.IDE.RetryInterval))
	}

	if c.Engine.MaxDepth < 0 || c.Engine.MaxChildren < 0 || c.Engine.MaxData < 0 {
		errs = append(errs, "engine limits must not be negative")
	}
	if _, err := debug.RendererFor(c.Engine.RenderFormat); err != nil {
		errs = append(errs, fmt.Sprintf("engine.render_format: %v", err))
	}
	if c.Engine.MaxConcurrentRuns < 1 {
		errs = append(errs, fmt.Sprintf("engine.max_concurrent_runs must be at least 1, got %d", c.Engine.MaxConcurrentRuns))
	}

	if !log.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	if c.Log.Format != "" && c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			errs = append(errs, fmt.Sprintf("metrics.addr %q is not host:port", c.Metrics.Addr))
		}
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %v", c.Tracing.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}

// IDEAddr returns the client address as host:port.
func (c *Config) IDEAddr() string {
	return net.JoinHostPort(c.IDE.Host, strconv.Itoa(c.IDE.Port))
}

// Connector returns the connector settings.
func (c *Config) Connector() connector.Config {
	return connector.Config{
		Addr:          c.IDEAddr(),
		IDEKey:        c.IDE.IDEKey,
		AppID:         "debuggee",
		DialTimeout:   c.IDE.DialTimeout,
		RetryInterval: c.IDE.RetryInterval,
	}
}

// Debug returns the session settings, with breakpoints to set before
// the program starts.
func (c *Config) Debug(breakpoints []string) *debug.Config {
	return &debug.Config{
		Breakpoints:  breakpoints,
		RenderFormat: c.Engine.RenderFormat,
		MaxChildren:  c.Engine.MaxChildren,
		MaxData:      c.Engine.MaxData,
		MaxDepth:     c.Engine.MaxDepth,
	}
}

// TracingSettings returns the tracing settings.
func (c *Config) TracingSettings(version string) tracing.Config {
	cfg := tracing.DefaultConfig()
	cfg.Enabled = c.Tracing.Enabled
	cfg.ServiceVersion = version
	cfg.PrettyPrint = c.Tracing.Pretty
	cfg.Sampling = tracing.SamplerConfig{
		Rate:      c.Tracing.SampleRate,
		KeepModes: []string{"ide", "local"},
	}
	return cfg
}
