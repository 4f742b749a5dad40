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

package health

import (
	"context"
	"fmt"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/crypto/rand"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/storage"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/vault"
)

// StorageCheck lists the stored vaults. The message reports their number.
func StorageCheck(backend storage.Backend) CheckFunc {
	return func(ctx context.Context) CheckResult {
		const name = "storage"
		ids, err := storage.ListVaults(backend)
		if err != nil {
			return unhealthy(name, "vault storage unavailable", err)
		}
		return CheckResult{
			Name:    name,
			Status:  StatusHealthy,
			Message: fmt.Sprintf("%d vaults", len(ids)),
		}
	}
}

// RandCheck draws from the strong random source. A source that works
// but is not the platform's preferred one is reported degraded.
func RandCheck(resolver rand.Resolver) CheckFunc {
	return func(ctx context.Context) CheckResult {
		const name = "rng"
		buf, err := resolver.Rand(rand.SeedSize)
		if err != nil {
			return unhealthy(name, "random source failed", err)
		}
		clear(buf)
		if !resolver.Available() {
			return CheckResult{Name: name, Status: StatusDegraded, Message: "random source reports unavailable"}
		}
		return CheckResult{Name: name, Status: StatusHealthy, Message: "random source available"}
	}
}

// SelfTestCheck enrolls a vault with params and opens it with the same
// features, which must return the enrolled secret.
func SelfTestCheck(params vault.Params, opts ...vault.Option) CheckFunc {
	return func(ctx context.Context) CheckResult {
		const name = "selftest"
		v, err := vault.New(params, opts...)
		if err != nil {
			return unhealthy(name, "cannot create vault", err)
		}
		defer v.Clear()

		codes := make([]uint32, v.Params().MaxFeatures)
		for i := range codes {
			codes[i] = uint32(i)
		}
		f0, err := v.EnrollFeatures(codes)
		if err != nil {
			return unhealthy(name, "enrollment failed", err)
		}
		res, err := v.Unlock(ctx, codes)
		if err != nil {
			return unhealthy(name, "unlock failed", err)
		}
		res.Polynomial.Clear()
		if res.F0 != f0 {
			return unhealthy(name, "recovered secret differs", fmt.Errorf("mode count %d of %d", res.Count, res.Iterations))
		}
		return CheckResult{
			Name:    name,
			Status:  StatusHealthy,
			Message: fmt.Sprintf("recovered secret in %s", v.Field()),
		}
	}
}
