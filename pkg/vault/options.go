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

package vault

import (
	mrand "math/rand/v2"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/crypto/rand"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/kdf"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/logging"
)

// Option configures a vault or a single decoding run.
type Option func(*options)

type options struct {
	logger   *logging.Logger
	rng      *mrand.Rand
	workers  int
	resolver rand.Resolver
	kdfCost  kdf.Cost
}

func defaultOptions() options {
	return options{
		logger:  logging.Discard(),
		workers: 1,
		kdfCost: kdf.DefaultCost,
	}
}

func (o options) apply(opts []Option) options {
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithLogger sets the logger. Secrets are never logged.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRand sets the generator used to sample decoding subsets. The
// generator must not be shared with other goroutines while decoding.
func WithRand(r *mrand.Rand) Option {
	return func(o *options) {
		o.rng = r
	}
}

// WithWorkers sets the number of goroutines generating decoding
// candidates. Values below 2 decode sequentially.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = max(n, 1)
	}
}

// WithResolver sets the strong random source for secrets, permutations,
// blending features and encryption salts.
func WithResolver(r rand.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithKDFCost sets the Argon2 work factors for passphrase encryption.
// Vaults must be decrypted with the cost they were encrypted with.
func WithKDFCost(c kdf.Cost) Option {
	return func(o *options) {
		o.kdfCost = c
	}
}
