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
	"encoding/binary"
	"fmt"
	mrand "math/rand/v2"
	"sync/atomic"
	"time"
)

var weakCounter atomic.Uint64

// NewStrong returns a ChaCha8 generator keyed with SeedSize bytes drawn
// from resolver.
func NewStrong(resolver Resolver) (*mrand.Rand, error) {
	if resolver == nil {
		return nil, fmt.Errorf("rand: nil resolver")
	}
	seed, err := resolver.Rand(SeedSize)
	if err != nil {
		return nil, fmt.Errorf("rand: failed to seed generator: %w", err)
	}
	var key [SeedSize]byte
	copy(key[:], seed)
	clear(seed)
	return mrand.New(mrand.NewChaCha8(key)), nil
}

// NewWeak returns a PCG generator seeded from the clock and a process-wide
// counter. It is not suitable for secrets.
func NewWeak() *mrand.Rand {
	now := uint64(time.Now().UnixNano())
	return mrand.New(mrand.NewPCG(now, weakCounter.Add(1)))
}

// NewSeeded returns a reproducible PCG generator.
func NewSeeded(seed uint64) *mrand.Rand {
	return mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Split derives n independent generators from r. Each child is a ChaCha8
// stream keyed from r's output, so the derivation is reproducible when r
// is.
func Split(r *mrand.Rand, n int) []*mrand.Rand {
	children := make([]*mrand.Rand, n)
	for i := range children {
		var key [SeedSize]byte
		for j := 0; j < SeedSize; j += 8 {
			binary.LittleEndian.PutUint64(key[j:], r.Uint64())
		}
		children[i] = mrand.New(mrand.NewChaCha8(key))
	}
	return children
}
