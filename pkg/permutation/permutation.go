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

// Package permutation implements permutations of {0, ..., n-1}.
//
// A vault uses a secret random permutation to map quantized feature codes
// to field elements before locking, so that the same biometric template
// enrolled in two vaults yields unrelated feature sets.
//
// Every mutator preserves bijectivity: operations either succeed or leave
// the receiver untouched.
package permutation

import (
	"encoding/binary"
	"fmt"
	"math"
	mrand "math/rand/v2"
	"strconv"
	"strings"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/crypto/rand"
)

// Permutation is a bijection on {0, ..., n-1}. The zero value is the empty
// permutation of dimension 0.
type Permutation struct {
	data []int
}

// Identity returns the identity permutation of dimension n.
func Identity(n int) (*Permutation, error) {
	p := &Permutation{}
	if err := p.SetDimension(n); err != nil {
		return nil, err
	}
	return p, nil
}

// FromSlice returns a permutation with p(x) = images[x]. The slice is
// copied and must describe a bijection on {0, ..., len(images)-1}.
func FromSlice(images []int) (*Permutation, error) {
	if err := validate(images); err != nil {
		return nil, err
	}
	p := &Permutation{}
	if len(images) > 0 {
		p.data = append([]int(nil), images...)
	}
	return p, nil
}

// SetDimension resets p to the identity of dimension n.
func (p *Permutation) SetDimension(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative dimension %d", ErrInvalidArgument, n)
	}
	if n == 0 {
		p.data = nil
		return nil
	}
	data := make([]int, n)
	for x := range data {
		data[x] = x
	}
	p.data = data
	return nil
}

// Dimension returns n.
func (p *Permutation) Dimension() int {
	return len(p.data)
}

// Eval returns p(x).
func (p *Permutation) Eval(x int) (int, error) {
	if x < 0 || x >= len(p.data) {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, x, len(p.data))
	}
	return p.data[x], nil
}

// Exchange swaps the images of x0 and x1.
func (p *Permutation) Exchange(x0, x1 int) error {
	y0, err := p.Eval(x0)
	if err != nil {
		return err
	}
	y1, err := p.Eval(x1)
	if err != nil {
		return err
	}
	p.data[x0], p.data[x1] = y1, y0
	return nil
}

// Random replaces p with a uniformly random permutation of the same
// dimension. With strong set the generator is keyed from the
// cryptographically secure resolver, otherwise a fast non-cryptographic
// generator is used.
func (p *Permutation) Random(strong bool) error {
	var r *mrand.Rand
	if strong {
		resolver, err := rand.NewResolver(rand.ModeAuto)
		if err != nil {
			return err
		}
		defer func() { _ = resolver.Close() }()
		r, err = rand.NewStrong(resolver)
		if err != nil {
			return err
		}
	} else {
		r = rand.NewWeak()
	}
	p.Shuffle(r)
	return nil
}

// Shuffle applies a Fisher-Yates shuffle driven by r. Every permutation of
// the current dimension is equally likely.
func (p *Permutation) Shuffle(r *mrand.Rand) {
	n := len(p.data)
	for i := 0; i < n-1; i++ {
		j := i + r.IntN(n-i)
		p.data[i], p.data[j] = p.data[j], p.data[i]
	}
}

// ShuffleCompat exchanges every position with a position drawn from the
// full range [0, n). The result is not uniformly distributed; it exists to
// reproduce permutations generated that way by older enrollments.
func (p *Permutation) ShuffleCompat(r *mrand.Rand) {
	n := len(p.data)
	for i := range n {
		j := r.IntN(n)
		p.data[i], p.data[j] = p.data[j], p.data[i]
	}
}

// Mul sets r to the composition p∘q, r(x) = p(q(x)). Any of r, p and q may
// alias each other.
func Mul(r, p, q *Permutation) error {
	if len(p.data) != len(q.data) {
		return fmt.Errorf("%w: %d and %d", ErrDimensionMismatch, len(p.data), len(q.data))
	}
	n := len(p.data)
	if n == 0 {
		r.data = nil
		return nil
	}
	out := make([]int, n)
	for x := range out {
		out[x] = p.data[q.data[x]]
	}
	r.data = out
	return nil
}

// Inv sets r to the inverse of p. r and p may be the same permutation.
func Inv(r, p *Permutation) error {
	n := len(p.data)
	if n == 0 {
		r.data = nil
		return nil
	}
	out := make([]int, n)
	for x, y := range p.data {
		out[y] = x
	}
	r.data = out
	return nil
}

// Swap exchanges the contents of p and q.
func Swap(p, q *Permutation) {
	p.data, q.data = q.data, p.data
}

// Clone returns a deep copy of p.
func (p *Permutation) Clone() *Permutation {
	c := &Permutation{}
	c.Assign(p)
	return c
}

// Assign makes p a deep copy of src.
func (p *Permutation) Assign(src *Permutation) {
	if p == src {
		return
	}
	if len(src.data) == 0 {
		p.data = nil
		return
	}
	p.data = append([]int(nil), src.data...)
}

// Equal reports whether p and q have the same dimension and images.
func (p *Permutation) Equal(q *Permutation) bool {
	if len(p.data) != len(q.data) {
		return false
	}
	for i := range p.data {
		if p.data[i] != q.data[i] {
			return false
		}
	}
	return true
}

// IsIdentity reports whether p(x) = x for all x.
func (p *Permutation) IsIdentity() bool {
	for x, y := range p.data {
		if x != y {
			return false
		}
	}
	return true
}

// Images returns a copy of (p(0), ..., p(n-1)).
func (p *Permutation) Images() []int {
	return append([]int(nil), p.data...)
}

// String formats p as "[p(0) , p(1) , ... , p(n-1)]".
func (p *Permutation) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, y := range p.data {
		if i > 0 {
			sb.WriteString(" , ")
		}
		sb.WriteString(strconv.Itoa(y))
	}
	sb.WriteByte(']')
	return sb.String()
}

// MarshalBinary encodes the dimension followed by every image as big-endian
// uint32 values.
func (p *Permutation) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 4+4*len(p.data))
	if _, err := p.PutBinary(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// BinarySize returns the length of the MarshalBinary encoding.
func (p *Permutation) BinarySize() int {
	return 4 + 4*len(p.data)
}

// PutBinary writes the MarshalBinary encoding into buf and returns the
// number of bytes written.
func (p *Permutation) PutBinary(buf []byte) (int, error) {
	size := p.BinarySize()
	if len(buf) < size {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrInvalidArgument, size, len(buf))
	}
	if uint64(len(p.data)) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: dimension %d exceeds encoding", ErrInvalidArgument, len(p.data))
	}
	binary.BigEndian.PutUint32(buf, uint32(len(p.data)))
	for i, y := range p.data {
		binary.BigEndian.PutUint32(buf[4+4*i:], uint32(y))
	}
	return size, nil
}

// UnmarshalBinary decodes the MarshalBinary encoding. The receiver is only
// modified when data holds a valid permutation.
func (p *Permutation) UnmarshalBinary(data []byte) error {
	q, n, err := ReadBinary(data, len(data)/4)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidArgument, len(data)-n)
	}
	Swap(p, q)
	return nil
}

// ReadBinary decodes a permutation from the front of data and returns it
// together with the number of bytes consumed. Dimensions above maxDim are
// rejected before anything is allocated.
func ReadBinary(data []byte, maxDim int) (*Permutation, int, error) {
	if len(data) < 4 {
		return nil, 0, fmt.Errorf("%w: missing dimension", ErrInvalidArgument)
	}
	n64 := uint64(binary.BigEndian.Uint32(data))
	if n64 > uint64(maxDim) || n64 > uint64(len(data)-4)/4 {
		return nil, 0, fmt.Errorf("%w: dimension %d exceeds available data", ErrInvalidArgument, n64)
	}
	n := int(n64)
	images := make([]int, n)
	for i := range images {
		images[i] = int(binary.BigEndian.Uint32(data[4+4*i:]))
	}
	if err := validate(images); err != nil {
		return nil, 0, err
	}
	p := &Permutation{}
	if n > 0 {
		p.data = images
	}
	return p, 4 + 4*n, nil
}

func validate(images []int) error {
	seen := make([]bool, len(images))
	for x, y := range images {
		if y < 0 || y >= len(images) || seen[y] {
			return fmt.Errorf("%w: not a bijection at %d", ErrInvalidArgument, x)
		}
		seen[y] = true
	}
	return nil
}
