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
	"fmt"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/crypto/rand"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/gf"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/permutation"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/quantize"
)

// Enroll locks a random secret polynomial with the minutiae of view and
// returns its constant term f(0), from which callers derive key material.
// The secret itself is discarded; it can only be recovered by opening the
// vault with a similar view.
func (v *Vault) Enroll(view quantize.View) (gf.Elem, error) {
	codes, err := v.grid.Quantize(view, v.params.MaxFeatures)
	if err != nil {
		return 0, errorf("Enroll", "%w: %v", ErrInvalidParameters, err)
	}
	return v.enroll("Enroll", codes)
}

// EnrollFeatures locks a random secret with already quantized feature
// codes. Duplicate codes are ignored and at most MaxFeatures codes are
// used, in the given order.
func (v *Vault) EnrollFeatures(codes []uint32) (gf.Elem, error) {
	const op = "EnrollFeatures"
	distinct, err := v.normalizeCodes(codes)
	if err != nil {
		return 0, opError(op, err)
	}
	return v.enroll(op, distinct)
}

func (v *Vault) enroll(op string, codes []uint32) (gf.Elem, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.enrolled {
		return 0, opError(op, ErrAlreadyEnrolled)
	}
	k, tmax, n := v.params.SecretSize, v.params.MaxFeatures, v.grid.Size()
	if len(codes) < k {
		return 0, errorf(op, "%w: %d distinct features, need %d", ErrInsufficientFeatures, len(codes), k)
	}

	resolver, release, err := v.resolver()
	if err != nil {
		return 0, opError(op, err)
	}
	defer release()

	r, err := rand.NewStrong(resolver)
	if err != nil {
		return 0, opError(op, err)
	}

	secret, err := gf.Random(v.field, k, resolver)
	if err != nil {
		return 0, opError(op, err)
	}
	defer secret.Clear()

	perm, err := permutation.Identity(n)
	if err != nil {
		return 0, opError(op, err)
	}
	perm.Shuffle(r)

	features := make([]gf.Elem, 0, tmax)
	defer clear(features)
	for _, c := range codes {
		y, err := perm.Eval(int(c))
		if err != nil {
			return 0, opError(op, err)
		}
		features = append(features, gf.Elem(y))
	}

	// Blending features come from [n, 2^d) so they never collide with a
	// permuted genuine feature.
	blending := make(map[gf.Elem]struct{}, tmax-len(features))
	span := int(v.field.Size()) - n
	for len(features) < tmax {
		x := gf.Elem(n + r.IntN(span))
		if _, dup := blending[x]; dup {
			continue
		}
		blending[x] = struct{}{}
		features = append(features, x)
	}

	chi, err := gf.FromRoots(v.field, features)
	if err != nil {
		return 0, opError(op, err)
	}
	locked, err := gf.Add(chi, secret)
	if err != nil {
		return 0, opError(op, err)
	}
	if locked.Degree() != tmax {
		return 0, errorf(op, "%w: vault polynomial has degree %d, want %d", ErrInvalidParameters, locked.Degree(), tmax)
	}

	coeffs := locked.Coefficients()[:tmax]
	chi.Clear()
	locked.Clear()

	v.perm = perm
	v.coeffs = coeffs
	v.enrolled = true
	v.encrypted = false

	v.opts.logger.Debug("enrolled vault",
		"features", len(codes),
		"blending", tmax-len(codes),
		"field", v.field.String())

	return secret.Eval(0), nil
}

// normalizeCodes drops duplicate codes, keeps at most MaxFeatures of them
// and rejects codes outside the feature universe.
func (v *Vault) normalizeCodes(codes []uint32) ([]uint32, error) {
	n := v.grid.Size()
	out := make([]uint32, 0, min(len(codes), v.params.MaxFeatures))
	seen := make(map[uint32]struct{}, cap(out))
	for _, c := range codes {
		if len(out) >= v.params.MaxFeatures {
			break
		}
		if int64(c) >= int64(n) {
			return nil, fmt.Errorf("%w: feature code %d outside [0, %d)", ErrInvalidParameters, c, n)
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}
