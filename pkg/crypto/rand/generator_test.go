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
	"testing"
)

func TestNewStrong(t *testing.T) {
	resolver, _ := NewResolver(&Config{Mode: ModeSeeded, Seed: testSeed()})
	a, err := NewStrong(resolver)
	if err != nil {
		t.Fatalf("NewStrong() failed: %v", err)
	}

	resolver2, _ := NewResolver(&Config{Mode: ModeSeeded, Seed: testSeed()})
	b, _ := NewStrong(resolver2)
	for i := 0; i < 16; i++ {
		if a.Uint64() != b.Uint64() {
			t.Fatal("generators keyed from equal streams diverged")
		}
	}

	if _, err := NewStrong(nil); err == nil {
		t.Fatal("expected error for nil resolver")
	}
}

func TestNewSeeded(t *testing.T) {
	a := NewSeeded(42)
	b := NewSeeded(42)
	c := NewSeeded(43)

	same := true
	for i := 0; i < 8; i++ {
		x := a.Uint64()
		if x != b.Uint64() {
			t.Fatal("equal seeds produced different output")
		}
		if x != c.Uint64() {
			same = false
		}
	}
	if same {
		t.Fatal("different seeds produced identical output")
	}
}

func TestNewWeak(t *testing.T) {
	a := NewWeak()
	b := NewWeak()
	if a.Uint64() == b.Uint64() && a.Uint64() == b.Uint64() {
		t.Fatal("weak generators should not share a stream")
	}
}

func TestSplit(t *testing.T) {
	x := Split(NewSeeded(7), 3)
	y := Split(NewSeeded(7), 3)
	if len(x) != 3 {
		t.Fatalf("expected 3 generators, got %d", len(x))
	}
	for i := range x {
		if x[i].Uint64() != y[i].Uint64() {
			t.Fatalf("child %d is not reproducible", i)
		}
	}
	if x[0].Uint64() == x[1].Uint64() {
		t.Fatal("children share a stream")
	}
}
