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
	"context"
	"fmt"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/gf"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/quantize"
)

// Open decodes a candidate secret polynomial from the minutiae of view.
// Success means decoding ran; the candidate equals the enrolled secret
// only with a probability that grows with the overlap of the templates.
func (v *Vault) Open(ctx context.Context, view quantize.View, opts ...Option) (*gf.Polynomial, error) {
	res, err := v.unlockView(ctx, "Open", view, opts)
	if err != nil {
		return nil, err
	}
	return res.Polynomial, nil
}

// OpenFeatures is Open for already quantized feature codes.
func (v *Vault) OpenFeatures(ctx context.Context, codes []uint32, opts ...Option) (*gf.Polynomial, error) {
	res, err := v.Unlock(ctx, codes, opts...)
	if err != nil {
		return nil, err
	}
	return res.Polynomial, nil
}

// SecretF0 opens the vault with view and returns the constant term of the
// decoded polynomial.
func (v *Vault) SecretF0(ctx context.Context, view quantize.View, opts ...Option) (gf.Elem, error) {
	res, err := v.unlockView(ctx, "SecretF0", view, opts)
	if err != nil {
		return 0, err
	}
	f0 := res.F0
	res.Polynomial.Clear()
	return f0, nil
}

// Unlock opens the vault with feature codes and returns the full decoding
// result including its frequency statistics.
func (v *Vault) Unlock(ctx context.Context, codes []uint32, opts ...Option) (*DecodeResult, error) {
	const op = "Unlock"
	v.mu.RLock()
	err := v.checkOpenable()
	v.mu.RUnlock()
	if err != nil {
		return nil, opError(op, err)
	}
	distinct, err := v.normalizeCodes(codes)
	if err != nil {
		return nil, opError(op, err)
	}
	return v.unlock(ctx, op, distinct, opts)
}

// UnlockView is Unlock for a minutiae view.
func (v *Vault) UnlockView(ctx context.Context, view quantize.View, opts ...Option) (*DecodeResult, error) {
	return v.unlockView(ctx, "UnlockView", view, opts)
}

func (v *Vault) unlockView(ctx context.Context, op string, view quantize.View, opts []Option) (*DecodeResult, error) {
	codes, err := v.grid.Quantize(view, v.params.MaxFeatures)
	if err != nil {
		return nil, errorf(op, "%w: %v", ErrInvalidParameters, err)
	}
	return v.unlock(ctx, op, codes, opts)
}

func (v *Vault) unlock(ctx context.Context, op string, codes []uint32, opts []Option) (*DecodeResult, error) {
	xs, ys, err := v.unlockingPairs(codes)
	if err != nil {
		return nil, opError(op, err)
	}
	defer clear(ys)

	cfg := v.opts.apply(opts)
	res, err := Decode(ctx, v.field, xs, ys, v.params.SecretSize, int(v.params.Iterations),
		WithRand(cfg.rng), WithLogger(cfg.logger), WithWorkers(cfg.workers))
	if err != nil {
		return nil, opError(op, err)
	}
	return res, nil
}

// unlockingPairs permutes the query codes and evaluates the vault
// polynomial on them under the read lock.
func (v *Vault) unlockingPairs(codes []uint32) (xs, ys []gf.Elem, err error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if err := v.checkOpenable(); err != nil {
		return nil, nil, err
	}
	if len(codes) < v.params.SecretSize {
		return nil, nil, fmt.Errorf("%w: %d distinct features, need %d",
			ErrInsufficientFeatures, len(codes), v.params.SecretSize)
	}

	locked, err := v.lockedPolynomial()
	if err != nil {
		return nil, nil, err
	}
	defer locked.Clear()

	xs = make([]gf.Elem, len(codes))
	ys = make([]gf.Elem, len(codes))
	for j, c := range codes {
		y, err := v.perm.Eval(int(c))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
		}
		xs[j] = gf.Elem(y)
		ys[j] = locked.Eval(xs[j])
	}
	return xs, ys, nil
}

// checkOpenable reports why the vault cannot be opened. The caller holds
// the lock.
func (v *Vault) checkOpenable() error {
	switch {
	case !v.enrolled:
		return ErrNotEnrolled
	case v.encrypted:
		return ErrStillEncrypted
	case v.params.SlowDownFactor != 1:
		return fmt.Errorf("%w: slow-down factor %d", ErrUnsupportedConfiguration, v.params.SlowDownFactor)
	}
	return nil
}

// lockedPolynomial returns a copy of the monic vault polynomial.
func (v *Vault) lockedPolynomial() (*gf.Polynomial, error) {
	coeffs := make([]gf.Elem, len(v.coeffs)+1)
	copy(coeffs, v.coeffs)
	coeffs[len(v.coeffs)] = 1
	return gf.NewPolynomial(v.field, coeffs...)
}
