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

package cli

import (
	"fmt"
	"io"

	"github.com/jeremyhahn/go-fuzzyvault/internal/config"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/crypto/rand"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/logging"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/metrics"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/ratelimit"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/service"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/storage"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/storage/file"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/vault"
)

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the configuration file
	ConfigFile string

	// DataDir overrides storage.path and selects the file backend
	DataDir string

	// Backend overrides storage.backend (memory, file)
	Backend string

	// OutputFormat controls output formatting (json, text, table)
	OutputFormat string

	// Verbose enables debug logging
	Verbose bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: "text",
		Verbose:      false,
	}
}

// Load reads the configuration file and applies the command line
// overrides on top of it.
func (c *Config) Load() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigFile)
	if err != nil {
		return nil, err
	}
	if c.DataDir != "" {
		cfg.Storage.Backend = config.StorageFile
		cfg.Storage.Path = c.DataDir
	}
	if c.Backend != "" {
		cfg.Storage.Backend = c.Backend
	}
	if c.Verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// session is an open service with the resources backing it.
type session struct {
	cfg      *config.Config
	svc      *service.Service
	backend  storage.Backend
	logger   *logging.Logger
	resolver rand.Resolver
}

// Close closes the service and the random source.
func (s *session) Close() error {
	err := s.svc.Close()
	if rerr := s.resolver.Close(); err == nil {
		err = rerr
	}
	return err
}

// openSession loads the configuration and creates the vault service it
// describes. Logs go to logOut.
func (c *Config) openSession(logOut io.Writer) (*session, error) {
	cfg, err := c.Load()
	if err != nil {
		return nil, err
	}

	logOpts := cfg.LoggerOptions()
	logOpts.Writer = logOut
	logger, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	backend, err := newBackend(cfg.Storage)
	if err != nil {
		return nil, err
	}

	resolver, err := rand.NewResolver(cfg.RNGMode())
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to create random source: %w", err)
	}

	svc, err := service.New(service.Config{
		Backend:     backend,
		BackendName: cfg.Storage.Backend,
		Limiter:     ratelimit.New(&cfg.RateLimit),
		Logger:      logger,
		VaultOptions: []vault.Option{
			vault.WithWorkers(cfg.Decoder.Workers),
			vault.WithKDFCost(cfg.KDFCost()),
			vault.WithResolver(resolver),
		},
	})
	if err != nil {
		_ = resolver.Close()
		_ = backend.Close()
		return nil, err
	}

	logger.Debug("opened vault store",
		"backend", cfg.Storage.Backend,
		"path", cfg.Storage.Path,
		"rng", cfg.RNG.Mode)

	return &session{cfg: cfg, svc: svc, backend: backend, logger: logger, resolver: resolver}, nil
}

func newBackend(cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case config.StorageMemory:
		return storage.NewMemory(), nil
	case config.StorageFile:
		backend, err := file.New(nil, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file storage: %w", err)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
