// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-fuzzyvault.
//
// go-fuzzyvault is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the fuzzyvault configuration from YAML with
// FUZZYVAULT_* environment overrides.
package config

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/crypto/rand"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/kdf"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/logging"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/ratelimit"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/vault"
)

const (
	// StorageMemory keeps vaults in process memory.
	StorageMemory = "memory"

	// StorageFile keeps vaults below Storage.Path.
	StorageFile = "file"

	// DefaultDataDir is the file storage root when none is configured.
	DefaultDataDir = "fuzzyvault-data"
)

// Config represents the complete fuzzyvault configuration
type Config struct {
	Vault     vault.Params     `yaml:"vault"`
	Decoder   DecoderConfig    `yaml:"decoder"`
	KDF       KDFConfig        `yaml:"kdf"`
	Storage   StorageConfig    `yaml:"storage"`
	Logging   LoggingConfig    `yaml:"logging"`
	RateLimit ratelimit.Config `yaml:"ratelimit"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	RNG       RNGConfig        `yaml:"rng"`
}

// DecoderConfig controls the decoder
type DecoderConfig struct {
	Workers int `yaml:"workers"`
}

// KDFConfig sets the Argon2id cost of passphrase encryption
type KDFConfig struct {
	Time    uint32 `yaml:"time"`
	Memory  uint32 `yaml:"memory"` // KiB
	Threads uint8  `yaml:"threads"`
}

// StorageConfig controls where vault records are kept
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory, file
	Path    string `yaml:"path"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls metrics collection
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RNGConfig selects the strong random source
type RNGConfig struct {
	Mode string `yaml:"mode"` // auto, software
}

// Default returns the configuration used when no file is given: the
// reference vault parameters for 560x560 images at 500 dpi, file storage
// in DefaultDataDir and unlock throttling at 10 attempts per minute.
func Default() *Config {
	return &Config{
		Vault:   vault.DefaultParams(560, 560, 500),
		Decoder: DecoderConfig{Workers: runtime.GOMAXPROCS(0)},
		KDF: KDFConfig{
			Time:    kdf.DefaultCost.Time,
			Memory:  kdf.DefaultCost.Memory,
			Threads: kdf.DefaultCost.Threads,
		},
		Storage: StorageConfig{Backend: StorageFile, Path: DefaultDataDir},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		RateLimit: ratelimit.Config{
			Enabled:           true,
			AttemptsPerMinute: 10,
			Burst:             5,
		},
		Metrics: MetricsConfig{Enabled: true},
		RNG:     RNGConfig{Mode: string(rand.ModeAuto)},
	}
}

// Load reads configuration from a YAML file on top of Default and applies
// environment variable overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	// Grid spacing follows the configured resolution unless set explicitly
	cfg.Vault.GridDist = 0

	if path != "" {
		// #nosec G304 - Config file path is provided by admin/user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	cfg.Vault = cfg.Vault.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	// Logging
	if level := os.Getenv("FUZZYVAULT_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("FUZZYVAULT_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Storage
	if backend := os.Getenv("FUZZYVAULT_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if dataDir := os.Getenv("FUZZYVAULT_DATA_DIR"); dataDir != "" {
		cfg.Storage.Path = dataDir
	}

	// Decoder
	if workers := os.Getenv("FUZZYVAULT_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil || n < 1 {
			log.Printf("Warning: invalid FUZZYVAULT_WORKERS value %q, using %d", workers, cfg.Decoder.Workers)
		} else {
			cfg.Decoder.Workers = n
		}
	}
	if iterations := os.Getenv("FUZZYVAULT_ITERATIONS"); iterations != "" {
		n, err := strconv.ParseUint(iterations, 10, 32)
		if err != nil || n == 0 {
			log.Printf("Warning: invalid FUZZYVAULT_ITERATIONS value %q, using %d", iterations, cfg.Vault.Iterations)
		} else {
			cfg.Vault.Iterations = uint32(n)
		}
	}

	// Rate limiting
	if enabled := os.Getenv("FUZZYVAULT_RATELIMIT_ENABLED"); enabled != "" {
		b, err := strconv.ParseBool(enabled)
		if err != nil {
			log.Printf("Warning: invalid FUZZYVAULT_RATELIMIT_ENABLED value %q, using %t", enabled, cfg.RateLimit.Enabled)
		} else {
			cfg.RateLimit.Enabled = b
		}
	}

	// Metrics
	if enabled := os.Getenv("FUZZYVAULT_METRICS_ENABLED"); enabled != "" {
		b, err := strconv.ParseBool(enabled)
		if err != nil {
			log.Printf("Warning: invalid FUZZYVAULT_METRICS_ENABLED value %q, using %t", enabled, cfg.Metrics.Enabled)
		} else {
			cfg.Metrics.Enabled = b
		}
	}

	// RNG
	if mode := os.Getenv("FUZZYVAULT_RNG_MODE"); mode != "" {
		cfg.RNG.Mode = mode
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Vault.Validate(); err != nil {
		return fmt.Errorf("vault: %w", err)
	}

	if c.Decoder.Workers < 1 {
		return fmt.Errorf("decoder workers must be at least 1, got %d", c.Decoder.Workers)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil || c.Logging.Level == "" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn or error)", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StorageFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path must be specified for the file backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %q (must be memory or file)", c.Storage.Backend)
	}

	if c.RateLimit.Enabled && c.RateLimit.AttemptsPerMinute < 1 {
		return fmt.Errorf("ratelimit attempts_per_min must be positive when enabled")
	}

	switch rand.Mode(c.RNG.Mode) {
	case rand.ModeAuto, rand.ModeSoftware:
	default:
		return fmt.Errorf("invalid rng mode: %q (must be auto or software)", c.RNG.Mode)
	}

	params := c.KDFCost().Params(make([]byte, 16), 32)
	if err := kdf.NewArgon2id().ValidateParams(params); err != nil {
		return fmt.Errorf("kdf: %w", err)
	}
	return nil
}

// VaultParams returns the vault parameters with defaults applied.
func (c *Config) VaultParams() vault.Params {
	return c.Vault.WithDefaults()
}

// KDFCost returns the configured Argon2id cost.
func (c *Config) KDFCost() kdf.Cost {
	return kdf.Cost{Time: c.KDF.Time, Memory: c.KDF.Memory, Threads: c.KDF.Threads}
}

// RNGMode returns the configured strong random source.
func (c *Config) RNGMode() rand.Mode {
	return rand.Mode(c.RNG.Mode)
}

// LoggerOptions returns the logging options for the configured level and
// format.
func (c *Config) LoggerOptions() logging.Options {
	return logging.Options{Level: c.Logging.Level, Format: strings.ToLower(c.Logging.Format)}
}
