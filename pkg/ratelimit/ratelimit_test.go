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

package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		AttemptsPerMinute: 60,
		Burst:             10,
	})
	if limiter == nil {
		t.Fatal("Expected limiter to be created")
	}
	defer limiter.Stop()

	if !limiter.IsEnabled() {
		t.Error("Expected limiter to be enabled")
	}

	stats := limiter.Stats()
	if !stats.Enabled || stats.Burst != 10 || stats.RatePerMin != 60 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestNew_Defaults(t *testing.T) {
	limiter := New(&Config{Enabled: true, AttemptsPerMinute: 6})
	defer limiter.Stop()

	if limiter.burst != 6 {
		t.Errorf("Expected burst to default to the rate, got %d", limiter.burst)
	}
	if limiter.cleanupInterval != 10*time.Minute || limiter.maxIdle != 30*time.Minute {
		t.Error("Expected default cleanup settings")
	}

	if New(nil).IsEnabled() {
		t.Error("Expected nil config to disable limiting")
	}
}

func TestAllow(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		AttemptsPerMinute: 60, // 1 per second
		Burst:             5,
	})
	defer limiter.Stop()

	vaultID := "vault-1"

	// First 5 attempts should succeed (burst)
	for i := 0; i < 5; i++ {
		if !limiter.Allow(vaultID) {
			t.Errorf("Attempt %d should be allowed (burst)", i+1)
		}
	}

	if limiter.Allow(vaultID) {
		t.Error("Attempt should be denied after burst exhausted")
	}

	time.Sleep(1100 * time.Millisecond)
	if !limiter.Allow(vaultID) {
		t.Error("Attempt should be allowed after waiting")
	}
}

func TestDisabledLimiter(t *testing.T) {
	limiter := New(&Config{Enabled: false, AttemptsPerMinute: 1})

	for i := 0; i < 100; i++ {
		if !limiter.Allow("vault") {
			t.Fatal("Disabled limiter should allow all attempts")
		}
	}
	if err := limiter.Wait(context.Background(), "vault"); err != nil {
		t.Errorf("Disabled limiter should not wait: %v", err)
	}
	limiter.Stop()
	limiter.Stop()
}

func TestPerVaultLimiting(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		AttemptsPerMinute: 60,
		Burst:             1,
	})
	defer limiter.Stop()

	if !limiter.Allow("vault-1") {
		t.Error("First attempt for vault-1 should be allowed")
	}
	if limiter.Allow("vault-1") {
		t.Error("Second attempt for vault-1 should be denied")
	}
	if !limiter.Allow("vault-2") {
		t.Error("First attempt for vault-2 should be allowed")
	}

	limiter.Forget("vault-1")
	if !limiter.Allow("vault-1") {
		t.Error("Forgotten vault should start with a full bucket")
	}
}

func TestWait(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		AttemptsPerMinute: 1,
		Burst:             1,
	})
	defer limiter.Stop()

	if err := limiter.Wait(context.Background(), "vault"); err != nil {
		t.Fatalf("First wait should succeed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx, "vault"); err == nil {
		t.Error("Expected wait to fail before the next token")
	} else if errors.Is(err, context.Canceled) {
		t.Errorf("Unexpected cancellation error: %v", err)
	}
}

func TestCleanup(t *testing.T) {
	limiter := New(&Config{
		Enabled:           true,
		AttemptsPerMinute: 60,
		MaxIdle:           time.Millisecond,
	})
	defer limiter.Stop()

	limiter.Allow("vault-1")
	limiter.Allow("vault-2")
	if got := limiter.Stats().ActiveVaults; got != 2 {
		t.Fatalf("Expected 2 active vaults, got %d", got)
	}

	time.Sleep(5 * time.Millisecond)
	limiter.cleanup()

	if got := limiter.Stats().ActiveVaults; got != 0 {
		t.Errorf("Expected idle vaults to be removed, got %d", got)
	}
}
