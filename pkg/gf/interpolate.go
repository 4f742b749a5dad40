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

package gf

import "fmt"

// Interpolate returns the unique polynomial of degree smaller than len(xs)
// passing through the points (xs[i], ys[i]).
func Interpolate(field *Field, xs, ys []Elem) (*Polynomial, error) {
	ip := NewInterpolator(field, len(xs))
	coeffs := make([]Elem, len(xs))
	if err := ip.InterpolateInto(coeffs, xs, ys); err != nil {
		return nil, err
	}
	p := &Polynomial{field: field, coeffs: coeffs}
	p.normalize()
	return p, nil
}

// Interpolator computes Lagrange interpolation polynomials for a fixed
// number of points and reuses its scratch space between calls. It is not
// safe for concurrent use.
type Interpolator struct {
	field  *Field
	master []Elem
	basis  []Elem
}

// NewInterpolator returns an interpolator for k points over field.
func NewInterpolator(field *Field, k int) *Interpolator {
	return &Interpolator{
		field:  field,
		master: make([]Elem, k+1),
		basis:  make([]Elem, max(k, 1)),
	}
}

// InterpolateInto writes the coefficients of the interpolation polynomial
// through (xs[i], ys[i]) into dst in ascending order. dst must have room
// for len(xs) coefficients and is not normalized.
func (ip *Interpolator) InterpolateInto(dst, xs, ys []Elem) error {
	k := len(xs)
	if len(ys) != k {
		return fmt.Errorf("gf: %d abscissas but %d ordinates", k, len(ys))
	}
	if len(dst) < k {
		return fmt.Errorf("gf: destination holds %d coefficients, need %d", len(dst), k)
	}
	if len(ip.master) < k+1 {
		ip.master = make([]Elem, k+1)
		ip.basis = make([]Elem, k)
	}
	f := ip.field
	clear(dst[:k])

	// master = prod (X + x_i)
	m := ip.master[:k+1]
	clear(m)
	m[0] = 1
	for i, x := range xs {
		if !f.Contains(x) || !f.Contains(ys[i]) {
			return fmt.Errorf("%w: point %d", ErrNotInField, i)
		}
		for j := i + 1; j > 0; j-- {
			m[j] = m[j-1] ^ f.Mul(m[j], x)
		}
		m[0] = f.Mul(m[0], x)
	}

	q := ip.basis[:k]
	for i, xi := range xs {
		// q = master / (X + x_i) by synthetic division.
		q[k-1] = m[k]
		for j := k - 1; j > 0; j-- {
			q[j-1] = m[j] ^ f.Mul(xi, q[j])
		}

		// denom = q(x_i) = prod_{j != i} (x_i + x_j)
		var denom Elem
		for j := k - 1; j >= 0; j-- {
			denom = f.Mul(denom, xi) ^ q[j]
		}
		if denom == 0 {
			return fmt.Errorf("%w: %#x", ErrDuplicateAbscissa, uint32(xi))
		}

		w, _ := f.Div(ys[i], denom)
		if w == 0 {
			continue
		}
		for j := range k {
			dst[j] ^= f.Mul(w, q[j])
		}
	}
	return nil
}
