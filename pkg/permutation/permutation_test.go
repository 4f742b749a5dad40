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

package permutation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/crypto/rand"
)

func randomPermutation(t *testing.T, n int, seed uint64) *Permutation {
	t.Helper()
	p, err := Identity(n)
	require.NoError(t, err)
	p.Shuffle(rand.NewSeeded(seed))
	return p
}

func isBijection(p *Permutation) bool {
	return validate(p.data) == nil
}

func TestIdentity(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		wantError bool
	}{
		{name: "empty", n: 0},
		{name: "single", n: 1},
		{name: "small", n: 7},
		{name: "vault sized", n: 3774},
		{name: "negative", n: -1, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Identity(tt.n)
			if tt.wantError {
				require.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.n, p.Dimension())
			for x := range tt.n {
				y, err := p.Eval(x)
				require.NoError(t, err)
				assert.Equal(t, x, y)
			}
			assert.True(t, p.IsIdentity())
		})
	}
}

func TestSetDimension_Negative(t *testing.T) {
	p := randomPermutation(t, 5, 1)
	before := p.Clone()
	require.ErrorIs(t, p.SetDimension(-2), ErrInvalidArgument)
	assert.True(t, before.Equal(p), "failed SetDimension must not mutate")
}

func TestEval_OutOfRange(t *testing.T) {
	p, _ := Identity(4)
	for _, x := range []int{-1, 4, 100} {
		_, err := p.Eval(x)
		assert.ErrorIs(t, err, ErrOutOfRange, "x=%d", x)
	}

	var empty Permutation
	_, err := empty.Eval(0)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestExchange(t *testing.T) {
	p := randomPermutation(t, 10, 2)
	orig := p.Clone()

	require.NoError(t, p.Exchange(2, 7))
	y2, _ := orig.Eval(2)
	y7, _ := orig.Eval(7)
	got2, _ := p.Eval(2)
	got7, _ := p.Eval(7)
	assert.Equal(t, y7, got2)
	assert.Equal(t, y2, got7)

	require.NoError(t, p.Exchange(2, 7))
	assert.True(t, orig.Equal(p), "exchanging twice restores the permutation")

	require.NoError(t, p.Exchange(3, 3))
	assert.True(t, orig.Equal(p))

	require.ErrorIs(t, p.Exchange(1, 10), ErrOutOfRange)
	require.ErrorIs(t, p.Exchange(-1, 1), ErrOutOfRange)
	assert.True(t, orig.Equal(p), "failed exchange must not mutate")
}

func TestShuffle_Bijection(t *testing.T) {
	for n := 0; n <= 64; n++ {
		p := randomPermutation(t, n, uint64(n))
		assert.Equal(t, n, p.Dimension())
		assert.True(t, isBijection(p), "n=%d", n)
	}
}

func TestShuffle_Uniform(t *testing.T) {
	// All 6 permutations of {0,1,2} must appear with roughly equal frequency.
	r := rand.NewSeeded(99)
	counts := make(map[string]int)
	const trials = 60000
	for range trials {
		p, _ := Identity(3)
		p.Shuffle(r)
		counts[p.String()]++
	}
	require.Len(t, counts, 6)
	for k, c := range counts {
		assert.InDelta(t, trials/6, c, trials/60, "permutation %s", k)
	}
}

func TestShuffleCompat_Bijection(t *testing.T) {
	r := rand.NewSeeded(5)
	for n := 0; n <= 32; n++ {
		p, _ := Identity(n)
		p.ShuffleCompat(r)
		assert.True(t, isBijection(p), "n=%d", n)
	}
}

func TestRandom(t *testing.T) {
	for _, strong := range []bool{true, false} {
		for _, n := range []int{0, 1, 2, 50, 1000} {
			p, _ := Identity(n)
			require.NoError(t, p.Random(strong))
			assert.Equal(t, n, p.Dimension())
			assert.True(t, isBijection(p))
		}
	}
}

func TestInv(t *testing.T) {
	p := randomPermutation(t, 100, 3)

	inv := &Permutation{}
	require.NoError(t, Inv(inv, p))

	invinv := &Permutation{}
	require.NoError(t, Inv(invinv, inv))
	assert.True(t, p.Equal(invinv), "inv(inv(P)) == P")

	id := &Permutation{}
	require.NoError(t, Mul(id, p, inv))
	assert.True(t, id.IsIdentity(), "P * inv(P) == id")
	require.NoError(t, Mul(id, inv, p))
	assert.True(t, id.IsIdentity(), "inv(P) * P == id")
}

func TestInv_Aliased(t *testing.T) {
	p := randomPermutation(t, 37, 4)
	orig := p.Clone()

	require.NoError(t, Inv(p, p))
	want := &Permutation{}
	require.NoError(t, Inv(want, orig))
	assert.True(t, want.Equal(p))
}

func TestMul(t *testing.T) {
	p := randomPermutation(t, 20, 5)
	q := randomPermutation(t, 20, 6)
	s := randomPermutation(t, 20, 7)

	pq := &Permutation{}
	require.NoError(t, Mul(pq, p, q))
	for x := range 20 {
		qx, _ := q.Eval(x)
		want, _ := p.Eval(qx)
		got, _ := pq.Eval(x)
		assert.Equal(t, want, got)
	}

	// (p*q)*s == p*(q*s)
	left := &Permutation{}
	require.NoError(t, Mul(left, pq, s))
	qs := &Permutation{}
	require.NoError(t, Mul(qs, q, s))
	right := &Permutation{}
	require.NoError(t, Mul(right, p, qs))
	assert.True(t, left.Equal(right))

	other := randomPermutation(t, 21, 8)
	before := pq.Clone()
	require.ErrorIs(t, Mul(pq, p, other), ErrDimensionMismatch)
	assert.True(t, before.Equal(pq))
}

func TestMul_Aliased(t *testing.T) {
	p := randomPermutation(t, 30, 9)
	q := randomPermutation(t, 30, 10)

	want := &Permutation{}
	require.NoError(t, Mul(want, p, q))

	r := p.Clone()
	require.NoError(t, Mul(r, r, q))
	assert.True(t, want.Equal(r), "result aliases left operand")

	r = q.Clone()
	require.NoError(t, Mul(r, p, r))
	assert.True(t, want.Equal(r), "result aliases right operand")

	sq := &Permutation{}
	require.NoError(t, Mul(sq, p, p))
	r = p.Clone()
	require.NoError(t, Mul(r, r, r))
	assert.True(t, sq.Equal(r), "all operands aliased")
}

func TestSwapAssign(t *testing.T) {
	p := randomPermutation(t, 5, 11)
	q := randomPermutation(t, 8, 12)
	pc, qc := p.Clone(), q.Clone()

	Swap(p, q)
	assert.True(t, p.Equal(qc))
	assert.True(t, q.Equal(pc))

	p.Assign(p)
	assert.True(t, p.Equal(qc), "self assignment is a no-op")

	p.Assign(pc)
	assert.True(t, p.Equal(pc))
	require.NoError(t, p.Exchange(0, 1))
	assert.False(t, p.Equal(pc), "assign must deep copy")
}

func TestString(t *testing.T) {
	p, err := FromSlice([]int{2, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, "[2 , 0 , 1]", p.String())

	var empty Permutation
	assert.Equal(t, "[]", empty.String())
}

func TestFromSlice(t *testing.T) {
	tests := []struct {
		name      string
		images    []int
		wantError bool
	}{
		{name: "empty", images: nil},
		{name: "valid", images: []int{1, 2, 0}},
		{name: "repeated image", images: []int{0, 0, 1}, wantError: true},
		{name: "image out of range", images: []int{0, 3, 1}, wantError: true},
		{name: "negative image", images: []int{-1, 0}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := FromSlice(tt.images)
			if tt.wantError {
				require.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.images, p.Images())
		})
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	p := randomPermutation(t, 257, 13)
	data, err := p.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, p.BinarySize())

	var q Permutation
	require.NoError(t, q.UnmarshalBinary(data))
	assert.True(t, p.Equal(&q))
}

func TestUnmarshalBinary_Invalid(t *testing.T) {
	q := randomPermutation(t, 3, 14)
	before := q.Clone()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "too short", data: []byte{0, 0}},
		{name: "dimension exceeds data", data: []byte{0, 0, 0, 2, 0, 0, 0, 1}},
		{name: "not a bijection", data: []byte{0, 0, 0, 2, 0, 0, 0, 1, 0, 0, 0, 1}},
		{name: "trailing bytes", data: []byte{0, 0, 0, 1, 0, 0, 0, 0, 9}},
		{name: "huge dimension", data: []byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, q.UnmarshalBinary(tt.data), ErrInvalidArgument)
			assert.True(t, before.Equal(q))
		})
	}
}

func TestReadBinary_MaxDim(t *testing.T) {
	p := randomPermutation(t, 10, 15)
	data, _ := p.MarshalBinary()

	_, _, err := ReadBinary(data, 9)
	require.ErrorIs(t, err, ErrInvalidArgument)

	q, n, err := ReadBinary(append(data, 1, 2, 3), 10)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.True(t, p.Equal(q))
}
