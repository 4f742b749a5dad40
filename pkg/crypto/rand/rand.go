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

// Package rand provides the random sources used by vault enrollment and
// decoding.
//
// # RNG Sources
//
// Two kinds of randomness are needed:
//   - Strong randomness for secret polynomials, permutations, blending
//     features and encryption salts. This comes from a Resolver.
//   - Fast, statistically good randomness for the index sampling of the
//     decoder. This comes from a math/rand/v2 generator (see NewStrong,
//     NewWeak and NewSeeded).
//
// # Modes
//
//   - Auto: crypto/rand, with an optional fallback resolver
//   - Software: crypto/rand (stdlib secure random)
//   - Seeded: a ChaCha8 stream keyed by a caller supplied seed. Output is
//     reproducible and must only be used for tests and test vectors.
//
// # Configuration
//
//	rng, _ := rand.NewResolver(rand.ModeAuto)
//	salt, _ := rng.Rand(16)
//
//	rng, _ := rand.NewResolver(&rand.Config{
//	    Mode: rand.ModeSeeded,
//	    Seed: seed,
//	})
//
// # Thread Safety
//
// All Resolver implementations are thread-safe and can be safely shared
// across goroutines. Generators returned by NewStrong, NewWeak and
// NewSeeded are not, and should be owned by a single goroutine.
package rand

import (
	"crypto/rand"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"sync"
)

// Mode specifies which RNG source to use.
type Mode string

const (
	// ModeAuto uses the best available secure source.
	ModeAuto Mode = "auto"

	// ModeSoftware uses crypto/rand (stdlib secure random)
	ModeSoftware Mode = "software"

	// ModeSeeded uses a ChaCha8 stream keyed by Config.Seed.
	ModeSeeded Mode = "seeded"
)

// SeedSize is the seed length required by ModeSeeded.
const SeedSize = 32

// ErrInvalidSeed is returned when ModeSeeded is requested without a
// SeedSize byte seed.
var ErrInvalidSeed = errors.New("rand: seeded mode requires a 32 byte seed")

// Config contains RNG configuration.
type Config struct {
	// Mode specifies the primary RNG source to use.
	// Defaults to ModeAuto if not specified.
	Mode Mode

	// FallbackMode specifies the RNG source to use if primary mode fails.
	// If not specified, failures are returned as errors.
	FallbackMode Mode

	// Seed keys the ChaCha8 stream of ModeSeeded.
	Seed []byte
}

// Source represents a random number generator.
type Source interface {
	// Rand returns n random bytes.
	// Returns an error if the RNG is unavailable or fails.
	Rand(n int) ([]byte, error)

	// Available returns true if this RNG source is available and ready.
	Available() bool

	// Close closes the RNG and releases any resources.
	Close() error
}

// Resolver provides the main interface for generating random numbers.
// Applications should create a Resolver at startup and reuse it.
//
// Resolver implements io.Reader so it can be handed to anything expecting
// crypto/rand.Reader.
type Resolver interface {
	// Rand returns n random bytes from the configured RNG source.
	// If the primary source fails and FallbackMode is configured,
	// tries the fallback source.
	Rand(n int) ([]byte, error)

	// Read implements io.Reader.
	Read(p []byte) (n int, err error)

	// Source returns the underlying RNG Source being used.
	Source() Source

	// Available returns true if at least one RNG source is available.
	Available() bool

	// Close closes the resolver and releases any resources.
	Close() error
}

// NewResolver creates a new RNG resolver with the given configuration,
// which may be nil, a Mode or a *Config. If config is nil or empty, auto
// mode is used.
func NewResolver(config any) (Resolver, error) {
	cfg := normalizeConfig(config)
	return newResolver(cfg)
}

// normalizeConfig converts various config types to *Config.
func normalizeConfig(config any) *Config {
	if config == nil {
		return &Config{Mode: ModeAuto}
	}

	switch v := config.(type) {
	case Mode:
		return &Config{Mode: v}
	case *Config:
		if v == nil {
			return &Config{Mode: ModeAuto}
		}
		cfg := *v
		if cfg.Mode == "" {
			cfg.Mode = ModeAuto
		}
		return &cfg
	default:
		return &Config{Mode: ModeAuto}
	}
}

func newResolver(cfg *Config) (Resolver, error) {
	switch cfg.Mode {
	case ModeAuto, "":
		return newAutoResolver(cfg)
	case ModeSoftware:
		return newSoftwareResolver()
	case ModeSeeded:
		return newSeededResolver(cfg.Seed)
	default:
		return nil, fmt.Errorf("unknown RNG mode: %s", cfg.Mode)
	}
}

// SoftwareResolver uses crypto/rand from the Go standard library.
type SoftwareResolver struct{}

var _ Resolver = (*SoftwareResolver)(nil)

func newSoftwareResolver() (Resolver, error) {
	return &SoftwareResolver{}, nil
}

func (s *SoftwareResolver) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	return buf, err
}

// Read implements io.Reader for compatibility with crypto/rand.Reader.
func (s *SoftwareResolver) Read(p []byte) (n int, err error) {
	return rand.Read(p)
}

func (s *SoftwareResolver) Source() Source {
	return &softwareSource{}
}

func (s *SoftwareResolver) Available() bool {
	return true // crypto/rand always available
}

func (s *SoftwareResolver) Close() error {
	return nil
}

type softwareSource struct{}

func (s *softwareSource) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	return buf, err
}

func (s *softwareSource) Available() bool {
	return true
}

func (s *softwareSource) Close() error {
	return nil
}

// SeededResolver produces a reproducible ChaCha8 stream.
type SeededResolver struct {
	mu     sync.Mutex
	stream *mrand.ChaCha8
	closed bool
}

var _ Resolver = (*SeededResolver)(nil)

func newSeededResolver(seed []byte) (Resolver, error) {
	if len(seed) != SeedSize {
		return nil, ErrInvalidSeed
	}
	var key [SeedSize]byte
	copy(key[:], seed)
	return &SeededResolver{stream: mrand.NewChaCha8(key)}, nil
}

func (s *SeededResolver) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := s.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Read implements io.Reader.
func (s *SeededResolver) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("rand: seeded resolver closed")
	}
	return s.stream.Read(p)
}

func (s *SeededResolver) Source() Source {
	return s
}

func (s *SeededResolver) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *SeededResolver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
