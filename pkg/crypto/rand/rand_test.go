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

package rand

import (
	"bytes"
	"errors"
	"testing"
)

func testSeed() []byte {
	seed := make([]byte, SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	return seed
}

func TestNewResolver_SoftwareMode(t *testing.T) {
	resolver, err := NewResolver(ModeSoftware)
	if err != nil {
		t.Fatalf("failed to create software resolver: %v", err)
	}
	defer func() { _ = resolver.Close() }()

	if !resolver.Available() {
		t.Fatal("software resolver should be available")
	}
	data, err := resolver.Rand(32)
	if err != nil {
		t.Fatalf("Rand() failed: %v", err)
	}
	if len(data) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(data))
	}
}

func TestNewResolver_NilConfig(t *testing.T) {
	resolver, err := NewResolver(nil)
	if err != nil {
		t.Fatalf("failed to create resolver with nil config: %v", err)
	}
	defer func() { _ = resolver.Close() }()

	if !resolver.Available() {
		t.Fatal("resolver should be available")
	}
}

func TestNewResolver_InvalidMode(t *testing.T) {
	_, err := NewResolver(&Config{Mode: "invalid"})
	if err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func TestNewResolver_ConfigNotMutated(t *testing.T) {
	cfg := &Config{}
	if _, err := NewResolver(cfg); err != nil {
		t.Fatalf("NewResolver() failed: %v", err)
	}
	if cfg.Mode != "" {
		t.Fatalf("caller config was modified: %q", cfg.Mode)
	}
}

func TestSeededResolver_Reproducible(t *testing.T) {
	a, err := NewResolver(&Config{Mode: ModeSeeded, Seed: testSeed()})
	if err != nil {
		t.Fatalf("failed to create seeded resolver: %v", err)
	}
	b, err := NewResolver(&Config{Mode: ModeSeeded, Seed: testSeed()})
	if err != nil {
		t.Fatalf("failed to create seeded resolver: %v", err)
	}

	x, _ := a.Rand(64)
	y, _ := b.Rand(64)
	if !bytes.Equal(x, y) {
		t.Fatal("seeded resolvers with equal seeds must agree")
	}

	z, _ := a.Rand(64)
	if bytes.Equal(x, z) {
		t.Fatal("seeded stream repeated itself")
	}

	_ = a.Close()
	if a.Available() {
		t.Fatal("closed resolver reports available")
	}
	if _, err := a.Rand(1); err == nil {
		t.Fatal("expected error from closed resolver")
	}
}

func TestSeededResolver_InvalidSeed(t *testing.T) {
	_, err := NewResolver(&Config{Mode: ModeSeeded, Seed: []byte{1, 2, 3}})
	if !errors.Is(err, ErrInvalidSeed) {
		t.Fatalf("expected ErrInvalidSeed, got %v", err)
	}
}

type failingResolver struct{ SoftwareResolver }

func (f *failingResolver) Rand(int) ([]byte, error) {
	return nil, errors.New("mock rand failure")
}

func (f *failingResolver) Available() bool { return false }

func TestAutoResolver_Fallback(t *testing.T) {
	fallback, _ := newSeededResolver(testSeed())
	ar := &autoResolver{
		resolver: &failingResolver{},
		fallback: fallback,
	}
	defer func() { _ = ar.Close() }()

	if !ar.Available() {
		t.Fatal("resolver with available fallback should be available")
	}

	data, err := ar.Rand(16)
	if err != nil {
		t.Fatalf("fallback was not used: %v", err)
	}
	if len(data) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(data))
	}

	buf := make([]byte, 8)
	n, err := ar.Read(buf)
	if err != nil || n != 8 {
		t.Fatalf("Read() = %d, %v", n, err)
	}
}

func TestAutoResolver_NoFallback(t *testing.T) {
	ar := &autoResolver{resolver: &failingResolver{}}
	if ar.Available() {
		t.Fatal("resolver without sources should be unavailable")
	}
	if _, err := ar.Rand(4); err == nil {
		t.Fatal("expected error without fallback")
	}
}

func TestNewResolver_AutoWithSeededFallback(t *testing.T) {
	resolver, err := NewResolver(&Config{Mode: ModeAuto, FallbackMode: ModeSeeded, Seed: testSeed()})
	if err != nil {
		t.Fatalf("NewResolver() failed: %v", err)
	}
	defer func() { _ = resolver.Close() }()

	if _, err := resolver.Rand(8); err != nil {
		t.Fatalf("Rand() failed: %v", err)
	}

	_, err = NewResolver(&Config{Mode: ModeAuto, FallbackMode: ModeSeeded})
	if !errors.Is(err, ErrInvalidSeed) {
		t.Fatalf("expected ErrInvalidSeed for seedless fallback, got %v", err)
	}
}
