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

// Package gf implements arithmetic in small binary finite fields GF(2^d)
// and univariate polynomials over them.
//
// Elements are represented as the bit vectors of their polynomial basis
// coefficients. Multiplication and inversion use pre-computed logarithm,
// exponentiation and inverse tables, so every field operation is a table
// lookup after construction. Tables are immutable once built and a *Field
// may be shared freely across goroutines.
package gf

import (
	"fmt"
	"math/bits"
	"sync"
)

// MaxDegree bounds the extension degree of supported fields. The three
// lookup tables of a field of degree d hold 3*2^d words.
const MaxDegree = 20

// Elem is an element of a binary field.
type Elem uint32

// defaultPolynomials lists a primitive defining polynomial for every
// supported degree. Bit i is the coefficient of X^i.
var defaultPolynomials = [MaxDegree + 1]uint32{
	1:  0x3,      // X + 1
	2:  0x7,      // X^2 + X + 1
	3:  0xB,      // X^3 + X + 1
	4:  0x13,     // X^4 + X + 1
	5:  0x25,     // X^5 + X^2 + 1
	6:  0x43,     // X^6 + X + 1
	7:  0x83,     // X^7 + X + 1
	8:  0x11D,    // X^8 + X^4 + X^3 + X^2 + 1
	9:  0x211,    // X^9 + X^4 + 1
	10: 0x409,    // X^10 + X^3 + 1
	11: 0x805,    // X^11 + X^2 + 1
	12: 0x1053,   // X^12 + X^6 + X^4 + X + 1
	13: 0x201B,   // X^13 + X^4 + X^3 + X + 1
	14: 0x4443,   // X^14 + X^10 + X^6 + X + 1
	15: 0x8003,   // X^15 + X + 1
	16: 0x1100B,  // X^16 + X^12 + X^3 + X + 1
	17: 0x20009,  // X^17 + X^3 + 1
	18: 0x40081,  // X^18 + X^7 + 1
	19: 0x80027,  // X^19 + X^5 + X^2 + X + 1
	20: 0x100009, // X^20 + X^3 + 1
}

// Field is the binary field GF(2)[X]/(f) for an irreducible f.
type Field struct {
	degree    int
	size      uint32
	poly      uint32
	generator Elem

	expTable []Elem
	logTable []uint32
	invTable []Elem
}

var (
	cacheMu sync.Mutex
	cache   = make(map[uint32]*Field)
)

// NewField returns the field of 2^degree elements defined by the package's
// default primitive polynomial for that degree.
func NewField(degree int) (*Field, error) {
	if degree < 1 || degree > MaxDegree {
		return nil, fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidDegree, degree, MaxDegree)
	}
	return NewFieldWithPolynomial(defaultPolynomials[degree])
}

// NewFieldWithPolynomial returns the field defined by the given polynomial.
// Fields are cached by defining polynomial, so repeated calls are cheap and
// return the same instance.
func NewFieldWithPolynomial(poly uint32) (*Field, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if f, ok := cache[poly]; ok {
		return f, nil
	}

	f, err := buildField(poly)
	if err != nil {
		return nil, err
	}
	cache[poly] = f
	return f, nil
}

// DegreeFor returns the smallest field degree whose elements can encode
// every integer in [0, n) twice over, i.e. bitlen(n)+1. This leaves room
// for the blending features of a vault outside the feature universe.
func DegreeFor(n int) int {
	if n < 0 {
		n = 0
	}
	return bits.Len(uint(n)) + 1
}

func buildField(poly uint32) (*Field, error) {
	degree := bits.Len32(poly) - 1
	if degree < 1 || degree > MaxDegree {
		return nil, fmt.Errorf("%w: defining polynomial %#x has degree %d", ErrInvalidDegree, poly, degree)
	}
	if !isIrreducible(uint64(poly)) {
		return nil, fmt.Errorf("%w: %#x", ErrReducible, poly)
	}

	size := uint32(1) << degree
	f := &Field{
		degree:   degree,
		size:     size,
		poly:     poly,
		expTable: make([]Elem, size),
		logTable: make([]uint32, size),
		invTable: make([]Elem, size),
	}

	// Search the multiplicative group for a generator. An irreducible
	// defining polynomial always admits one.
	found := false
	for g := uint32(1); g < size && !found; g++ {
		f.expTable[0] = 1
		f.logTable[0] = 0
		y := uint32(1)
		i := uint32(1)
		for ; i < size; i++ {
			y = mulMod(y, g, poly, degree)
			f.expTable[i] = Elem(y)
			f.logTable[y] = i
			if y == 1 {
				break
			}
		}
		if i == size-1 {
			f.generator = Elem(g)
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: no generator for %#x", ErrReducible, poly)
	}
	// The table wraps so that exp[log a + log b] needs a single reduction.
	f.expTable[size-1] = f.expTable[0]

	f.invTable[0] = 0
	for a := uint32(1); a < size; a++ {
		f.invTable[a] = f.expTable[(size-1-f.logTable[a])%(size-1)]
	}

	return f, nil
}

// Degree returns the extension degree d of GF(2^d).
func (f *Field) Degree() int { return f.degree }

// Size returns the number of field elements, 2^d.
func (f *Field) Size() uint32 { return f.size }

// DefiningPolynomial returns the bit representation of the field's
// defining polynomial.
func (f *Field) DefiningPolynomial() uint32 { return f.poly }

// Generator returns the generator of the multiplicative group used to
// build the logarithm tables.
func (f *Field) Generator() Elem { return f.generator }

// Contains reports whether a is a valid element encoding of this field.
func (f *Field) Contains(a Elem) bool { return uint32(a) < f.size }

// Equal reports whether both fields share the same defining polynomial.
func (f *Field) Equal(g *Field) bool {
	if f == nil || g == nil {
		return f == g
	}
	return f.poly == g.poly
}

// Add returns a + b, which is XOR in characteristic two.
func (f *Field) Add(a, b Elem) Elem { return a ^ b }

// Sub returns a - b, which equals a + b in characteristic two.
func (f *Field) Sub(a, b Elem) Elem { return a ^ b }

// Mul returns a * b.
func (f *Field) Mul(a, b Elem) Elem {
	if a == 0 || b == 0 {
		return 0
	}
	return f.expTable[(f.logTable[a]+f.logTable[b])%(f.size-1)]
}

// Inv returns the multiplicative inverse of a.
func (f *Field) Inv(a Elem) (Elem, error) {
	if a == 0 {
		return 0, ErrDivisionByZero
	}
	return f.invTable[a], nil
}

// Div returns a / b.
func (f *Field) Div(a, b Elem) (Elem, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	if a == 0 {
		return 0, nil
	}
	return f.Mul(a, f.invTable[b]), nil
}

// Pow returns a^e.
func (f *Field) Pow(a Elem, e uint64) Elem {
	if e == 0 {
		return 1
	}
	if a == 0 {
		return 0
	}
	l := (uint64(f.logTable[a]) * (e % uint64(f.size-1))) % uint64(f.size-1)
	return f.expTable[l]
}

// String implements fmt.Stringer.
func (f *Field) String() string {
	return fmt.Sprintf("GF(2^%d)[%#x]", f.degree, f.poly)
}

// mulMod multiplies a and b modulo poly using the peasant algorithm. It is
// only used while building the tables.
func mulMod(a, b, poly uint32, degree int) uint32 {
	var p uint32
	top := uint32(1) << degree
	for b != 0 {
		if b&1 != 0 {
			p ^= a
		}
		b >>= 1
		a <<= 1
		if a&top != 0 {
			a ^= poly
		}
	}
	return p
}

// isIrreducible runs Rabin's irreducibility test on a binary polynomial.
func isIrreducible(p uint64) bool {
	d := bits.Len64(p) - 1
	if d < 1 {
		return false
	}
	if d == 1 {
		return true
	}

	x := polyMod(2, p)
	for _, q := range primeFactors(d) {
		h := frobenius(x, p, d, d/q)
		if polyGCD(h^x, p) != 1 {
			return false
		}
	}
	return frobenius(x, p, d, d) == x
}

// frobenius returns a^(2^k) mod p.
func frobenius(a, p uint64, d, k int) uint64 {
	for range k {
		a = polyMulMod(a, a, p, d)
	}
	return a
}

func polyMulMod(a, b, p uint64, d int) uint64 {
	var r uint64
	top := uint64(1) << d
	for b != 0 {
		if b&1 != 0 {
			r ^= a
		}
		b >>= 1
		a <<= 1
		if a&top != 0 {
			a ^= p
		}
	}
	return r
}

func polyMod(a, b uint64) uint64 {
	db := bits.Len64(b) - 1
	for a != 0 {
		da := bits.Len64(a) - 1
		if da < db {
			break
		}
		a ^= b << (da - db)
	}
	return a
}

func polyGCD(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, polyMod(a, b)
	}
	return a
}

func primeFactors(n int) []int {
	var factors []int
	for p := 2; p*p <= n; p++ {
		if n%p == 0 {
			factors = append(factors, p)
			for n%p == 0 {
				n /= p
			}
		}
	}
	if n > 1 {
		factors = append(factors, n)
	}
	return factors
}
