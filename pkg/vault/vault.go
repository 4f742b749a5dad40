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

// Package vault implements a minutiae fuzzy vault whose secret is recovered
// by mode-based decoding.
//
// Enrollment hides a random secret polynomial f of degree below k in the
// vault polynomial V = χ(A) + f, where A is the user's permuted feature set
// padded with random blending features. Opening evaluates V on the permuted
// features of a query and decodes f from the resulting pairs. The vault
// stores no digest of f; the decoder returns the candidate whose constant
// term recurs most often and callers derive keys from f(0).
//
// A Vault is safe for concurrent use. Open takes a read lock and all of
// its scratch space is local to the call.
package vault

import (
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/crypto/rand"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/gf"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/permutation"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/quantize"
)

// Vault is a fuzzy vault protecting one minutiae template.
type Vault struct {
	mu sync.RWMutex

	params    Params
	grid      *quantize.HexGrid
	field     *gf.Field
	perm      *permutation.Permutation
	coeffs    []gf.Elem // V minus its leading X^tmax term
	enrolled  bool
	encrypted bool
	sealed    *envelope

	opts options
}

// New creates an empty vault. Optional parameters left at zero take their
// defaults.
func New(params Params, opts ...Option) (*Vault, error) {
	const op = "New"

	params = params.WithDefaults()
	if err := params.Validate(); err != nil {
		return nil, opError(op, err)
	}
	grid, err := quantize.NewHexGrid(params.Width, params.Height, params.GridDist, params.AngleQuanta)
	if err != nil {
		return nil, errorf(op, "%w: %v", ErrInvalidParameters, err)
	}
	field, err := fieldFor(grid.Size(), params.MaxFeatures)
	if err != nil {
		return nil, opError(op, err)
	}
	perm, err := permutation.Identity(grid.Size())
	if err != nil {
		return nil, opError(op, err)
	}

	return &Vault{
		params: params,
		grid:   grid,
		field:  field,
		perm:   perm,
		opts:   defaultOptions().apply(opts),
	}, nil
}

// fieldFor returns the field for a feature universe of n codes, which
// leaves at least tmax blending candidates in [n, 2^d).
func fieldFor(n, tmax int) (*gf.Field, error) {
	degree := gf.DegreeFor(n)
	if degree > gf.MaxDegree {
		return nil, fmt.Errorf("%w: %d features need a field of degree %d", ErrInvalidParameters, n, degree)
	}
	field, err := gf.NewField(degree)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if int(field.Size())-n < tmax {
		return nil, fmt.Errorf("%w: %d blending candidates for %d features",
			ErrInvalidParameters, int(field.Size())-n, tmax)
	}
	return field, nil
}

// Params returns the vault parameters.
func (v *Vault) Params() Params {
	return v.params
}

// Field returns the field the vault polynomial is defined over.
func (v *Vault) Field() *gf.Field {
	return v.field
}

// Quantizer returns the quantizer that maps minutiae to feature codes.
func (v *Vault) Quantizer() quantize.Quantizer {
	return v.grid
}

// Size returns the number of feature codes, which is also the dimension of
// the vault permutation.
func (v *Vault) Size() int {
	return v.grid.Size()
}

// IsEnrolled reports whether the vault protects a template.
func (v *Vault) IsEnrolled() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.enrolled
}

// IsEncrypted reports whether the locked polynomial is encrypted.
func (v *Vault) IsEncrypted() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.encrypted
}

// Clear wipes the locked polynomial and returns the vault to the
// unenrolled state.
func (v *Vault) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clearLocked()
}

func (v *Vault) clearLocked() {
	clear(v.coeffs)
	v.coeffs = nil
	if v.sealed != nil {
		v.sealed.wipe()
		v.sealed = nil
	}
	_ = v.perm.SetDimension(v.grid.Size())
	v.enrolled = false
	v.encrypted = false
}

// Equal reports whether two vaults hold identical state. The vaults are
// never locked at the same time.
func (v *Vault) Equal(o *Vault) bool {
	if v == o {
		return true
	}
	if v == nil || o == nil {
		return false
	}
	o = o.Clone()

	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.params != o.params || !v.field.Equal(o.field) || !v.perm.Equal(o.perm) ||
		v.enrolled != o.enrolled || v.encrypted != o.encrypted {
		return false
	}
	if len(v.coeffs) != len(o.coeffs) {
		return false
	}
	for i := range v.coeffs {
		if v.coeffs[i] != o.coeffs[i] {
			return false
		}
	}
	if (v.sealed == nil) != (o.sealed == nil) {
		return false
	}
	return v.sealed == nil || v.sealed.equal(o.sealed)
}

// Clone returns a deep copy of the vault.
func (v *Vault) Clone() *Vault {
	v.mu.RLock()
	defer v.mu.RUnlock()
	c := &Vault{
		params:    v.params,
		grid:      v.grid,
		field:     v.field,
		perm:      v.perm.Clone(),
		coeffs:    append([]gf.Elem(nil), v.coeffs...),
		enrolled:  v.enrolled,
		encrypted: v.encrypted,
		opts:      v.opts,
	}
	if v.sealed != nil {
		c.sealed = v.sealed.clone()
	}
	return c
}

// Overlap returns the number of codes present in both feature sets.
func Overlap(a, b []uint32) int {
	set := make(map[uint32]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	n := 0
	for _, y := range b {
		if _, ok := set[y]; ok {
			n++
			delete(set, y)
		}
	}
	return n
}

// resolver returns the configured strong source, or a fresh auto resolver
// the caller must close.
func (v *Vault) resolver() (rand.Resolver, func(), error) {
	if v.opts.resolver != nil {
		return v.opts.resolver, func() {}, nil
	}
	r, err := rand.NewResolver(rand.ModeAuto)
	if err != nil {
		return nil, nil, err
	}
	return r, func() { _ = r.Close() }, nil
}
