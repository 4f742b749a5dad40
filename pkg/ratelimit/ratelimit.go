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

// Package ratelimit throttles unlock attempts per vault. Every open is an
// offline-guessable decoding oracle, so attempts against one vault are
// limited independently of the caller.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter implements a token bucket rate limiter with per-vault tracking.
// It uses the golang.org/x/time/rate package for efficient, thread-safe rate limiting.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	enabled  bool

	// Cleanup settings
	cleanupInterval time.Duration
	maxIdle         time.Duration
	lastSeen        map[string]time.Time
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// Config holds rate limiter configuration.
type Config struct {
	// Enabled controls whether rate limiting is active.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// AttemptsPerMinute sets the sustained unlock rate per vault.
	AttemptsPerMinute int `yaml:"attempts_per_min" json:"attempts_per_min"`

	// Burst allows short bursts above the sustained rate.
	// If not set, defaults to AttemptsPerMinute.
	Burst int `yaml:"burst" json:"burst"`

	// CleanupInterval controls how often to remove idle vaults.
	// Defaults to 10 minutes.
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`

	// MaxIdle is how long a vault can be idle before cleanup.
	// Defaults to 30 minutes.
	MaxIdle time.Duration `yaml:"max_idle" json:"max_idle"`
}

// Stats is a snapshot of the limiter state.
type Stats struct {
	Enabled      bool    `json:"enabled"`
	ActiveVaults int     `json:"active_vaults"`
	RatePerMin   float64 `json:"rate_per_min"`
	Burst        int     `json:"burst"`
}

// New creates a new rate limiter with the given configuration. A nil
// config disables limiting.
func New(config *Config) *Limiter {
	if config == nil {
		config = &Config{Enabled: false}
	}

	burst := config.Burst
	if burst == 0 {
		burst = config.AttemptsPerMinute
	}

	cleanupInterval := config.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 10 * time.Minute
	}

	maxIdle := config.MaxIdle
	if maxIdle == 0 {
		maxIdle = 30 * time.Minute
	}

	// Convert attempts per minute to attempts per second
	ratePerSecond := rate.Limit(float64(config.AttemptsPerMinute) / 60.0)

	l := &Limiter{
		limiters:        make(map[string]*rate.Limiter),
		lastSeen:        make(map[string]time.Time),
		rate:            ratePerSecond,
		burst:           burst,
		enabled:         config.Enabled,
		cleanupInterval: cleanupInterval,
		maxIdle:         maxIdle,
		stopCleanup:     make(chan struct{}),
	}

	if config.Enabled {
		go l.cleanupWorker()
	}

	return l
}

// getLimiter returns the rate limiter for a given vault, creating it on
// first use.
func (l *Limiter) getLimiter(vaultID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[vaultID]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[vaultID] = limiter
	}

	l.lastSeen[vaultID] = time.Now()
	return limiter
}

// Allow reports whether an unlock attempt against vaultID may proceed now
// and consumes a token if so.
func (l *Limiter) Allow(vaultID string) bool {
	if !l.enabled {
		return true
	}
	return l.getLimiter(vaultID).Allow()
}

// Wait blocks until an attempt against vaultID is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, vaultID string) error {
	if !l.enabled {
		return nil
	}
	return l.getLimiter(vaultID).Wait(ctx)
}

// Forget drops the state of a vault, typically after it was deleted.
func (l *Limiter) Forget(vaultID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, vaultID)
	delete(l.lastSeen, vaultID)
}

// cleanupWorker periodically removes idle vaults from memory.
func (l *Limiter) cleanupWorker() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanup removes vaults that haven't seen attempts recently.
func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for vaultID, lastSeen := range l.lastSeen {
		if now.Sub(lastSeen) > l.maxIdle {
			delete(l.limiters, vaultID)
			delete(l.lastSeen, vaultID)
		}
	}
}

// Stop stops the cleanup worker. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}

// Stats returns current rate limiter statistics.
func (l *Limiter) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return Stats{
		Enabled:      l.enabled,
		ActiveVaults: len(l.limiters),
		RatePerMin:   float64(l.rate) * 60,
		Burst:        l.burst,
	}
}

// IsEnabled returns whether rate limiting is enabled.
func (l *Limiter) IsEnabled() bool {
	return l.enabled
}
