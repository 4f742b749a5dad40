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

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Polynomial is a univariate polynomial over a binary field. Coefficients
// are stored in ascending order and normalized so that the leading
// coefficient is nonzero. The zero polynomial has no coefficients.
type Polynomial struct {
	field  *Field
	coeffs []Elem
}

// NewPolynomial creates a polynomial from coefficients in ascending order.
func NewPolynomial(field *Field, coeffs ...Elem) (*Polynomial, error) {
	if field == nil {
		return nil, fmt.Errorf("%w: nil field", ErrInvalidDegree)
	}
	for i, c := range coeffs {
		if !field.Contains(c) {
			return nil, fmt.Errorf("%w: coefficient %d = %#x", ErrNotInField, i, uint32(c))
		}
	}
	p := &Polynomial{field: field, coeffs: append([]Elem(nil), coeffs...)}
	p.normalize()
	return p, nil
}

// Zero returns the zero polynomial over field.
func Zero(field *Field) *Polynomial {
	return &Polynomial{field: field}
}

// Random returns a polynomial whose k coefficients are drawn uniformly from
// the field, so its degree is smaller than k.
func Random(field *Field, k int, r io.Reader) (*Polynomial, error) {
	if k < 0 {
		return nil, fmt.Errorf("gf: negative coefficient count %d", k)
	}
	buf := make([]byte, 4*k)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("gf: failed to read random coefficients: %w", err)
	}
	coeffs := make([]Elem, k)
	mask := field.size - 1
	for i := range coeffs {
		coeffs[i] = Elem(binary.BigEndian.Uint32(buf[4*i:]) & mask)
	}
	clear(buf)
	p := &Polynomial{field: field, coeffs: coeffs}
	p.normalize()
	return p, nil
}

// FromRoots returns the monic polynomial whose roots are exactly the given
// elements, i.e. the product of (X - r) over all roots.
func FromRoots(field *Field, roots []Elem) (*Polynomial, error) {
	coeffs := make([]Elem, 1, len(roots)+1)
	coeffs[0] = 1
	for _, r := range roots {
		if !field.Contains(r) {
			return nil, fmt.Errorf("%w: root %#x", ErrNotInField, uint32(r))
		}
		// Multiply by (X + r).
		coeffs = append(coeffs, 0)
		for j := len(coeffs) - 1; j > 0; j-- {
			coeffs[j] = coeffs[j-1] ^ field.Mul(coeffs[j], r)
		}
		coeffs[0] = field.Mul(coeffs[0], r)
	}
	return &Polynomial{field: field, coeffs: coeffs}, nil
}

// Field returns the field the polynomial is defined over.
func (p *Polynomial) Field() *Field { return p.field }

// Degree returns the degree of the polynomial, or -1 for zero.
func (p *Polynomial) Degree() int { return len(p.coeffs) - 1 }

// IsZero reports whether p is the zero polynomial.
func (p *Polynomial) IsZero() bool { return len(p.coeffs) == 0 }

// Coeff returns the coefficient of X^i.
func (p *Polynomial) Coeff(i int) Elem {
	if i < 0 || i >= len(p.coeffs) {
		return 0
	}
	return p.coeffs[i]
}

// Coefficients returns a copy of the coefficients in ascending order.
func (p *Polynomial) Coefficients() []Elem {
	return append([]Elem(nil), p.coeffs...)
}

// Eval evaluates p at x using Horner's method.
func (p *Polynomial) Eval(x Elem) Elem {
	var y Elem
	for i := len(p.coeffs) - 1; i >= 0; i-- {
		y = p.field.Mul(y, x) ^ p.coeffs[i]
	}
	return y
}

// Clone returns a deep copy of p.
func (p *Polynomial) Clone() *Polynomial {
	return &Polynomial{field: p.field, coeffs: p.Coefficients()}
}

// Equal reports whether p and q are the same polynomial over the same field.
func (p *Polynomial) Equal(q *Polynomial) bool {
	if p == nil || q == nil {
		return p == q
	}
	if !p.field.Equal(q.field) || len(p.coeffs) != len(q.coeffs) {
		return false
	}
	for i := range p.coeffs {
		if p.coeffs[i] != q.coeffs[i] {
			return false
		}
	}
	return true
}

// Clear overwrites the coefficients with zeros and resets p to zero.
func (p *Polynomial) Clear() {
	clear(p.coeffs)
	p.coeffs = nil
}

// String implements fmt.Stringer.
func (p *Polynomial) String() string {
	if len(p.coeffs) == 0 {
		return "0"
	}
	var sb strings.Builder
	first := true
	for i := len(p.coeffs) - 1; i >= 0; i-- {
		c := p.coeffs[i]
		if c == 0 {
			continue
		}
		if !first {
			sb.WriteString(" + ")
		}
		first = false
		switch i {
		case 0:
			fmt.Fprintf(&sb, "%#x", uint32(c))
		case 1:
			fmt.Fprintf(&sb, "%#x*X", uint32(c))
		default:
			fmt.Fprintf(&sb, "%#x*X^%d", uint32(c), i)
		}
	}
	return sb.String()
}

// Add returns p + q.
func Add(p, q *Polynomial) (*Polynomial, error) {
	if !p.field.Equal(q.field) {
		return nil, ErrFieldMismatch
	}
	n := max(len(p.coeffs), len(q.coeffs))
	coeffs := make([]Elem, n)
	copy(coeffs, p.coeffs)
	for i, c := range q.coeffs {
		coeffs[i] ^= c
	}
	r := &Polynomial{field: p.field, coeffs: coeffs}
	r.normalize()
	return r, nil
}

// Mul returns p * q.
func Mul(p, q *Polynomial) (*Polynomial, error) {
	if !p.field.Equal(q.field) {
		return nil, ErrFieldMismatch
	}
	if p.IsZero() || q.IsZero() {
		return Zero(p.field), nil
	}
	coeffs := make([]Elem, len(p.coeffs)+len(q.coeffs)-1)
	for i, a := range p.coeffs {
		if a == 0 {
			continue
		}
		for j, b := range q.coeffs {
			coeffs[i+j] ^= p.field.Mul(a, b)
		}
	}
	r := &Polynomial{field: p.field, coeffs: coeffs}
	r.normalize()
	return r, nil
}

func (p *Polynomial) normalize() {
	n := len(p.coeffs)
	for n > 0 && p.coeffs[n-1] == 0 {
		n--
	}
	if n == 0 {
		p.coeffs = nil
		return
	}
	p.coeffs = p.coeffs[:n]
}
