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
	"math"
	mrand "math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/crypto/rand"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/gf"
)

// MaxDecodePoints is the largest number of unlocking pairs the index
// sampler accepts.
const MaxDecodePoints = math.MaxInt32

// maxRoundCoefficients bounds the candidate buffers of a parallel round.
const maxRoundCoefficients = 1 << 22

// DecodeResult is the outcome of mode-based decoding.
type DecodeResult struct {
	// Polynomial is the candidate remembered when F0 became the mode.
	Polynomial *gf.Polynomial

	// F0 is the most frequent constant term.
	F0 gf.Elem

	// Count is the number of iterations that produced F0.
	Count int

	// Iterations is the number of iterations that ran.
	Iterations int

	// Distinct is the number of distinct constant terms observed.
	Distinct int
}

// Decode recovers a polynomial of degree smaller than k from the unlocking
// pairs (xs[i], ys[i]) by mode-based decoding. Each of the iterations
// interpolates a random k-subset of the pairs and counts the constant term
// of the result; the polynomial of the most frequent constant term is
// returned. When k equals the number of pairs the unique interpolant is
// returned whatever the iteration budget.
//
// The result is probabilistic. Nothing about the true secret is consulted,
// so a returned polynomial is never verified. Cancelling ctx stops the
// loop between iterations; if at least one iteration ran its best
// candidate is returned without error.
func Decode(ctx context.Context, field *gf.Field, xs, ys []gf.Elem, k, iterations int, opts ...Option) (*DecodeResult, error) {
	const op = "Decode"

	cfg := defaultOptions().apply(opts)
	if err := validateDecode(field, xs, ys, k, iterations); err != nil {
		return nil, opError(op, err)
	}
	r := cfg.rng
	if r == nil {
		r = rand.NewWeak()
	}

	start := time.Now()
	var (
		t   *tally
		err error
	)
	switch {
	case k == len(xs):
		t, err = decodeFull(ctx, field, xs, ys)
	case cfg.workers > 1 && iterations > 1:
		t, err = decodeParallel(ctx, field, xs, ys, k, iterations, cfg.workers, r)
	default:
		t, err = decodeSequential(ctx, field, xs, ys, k, iterations, r)
	}
	if err != nil {
		return nil, opError(op, err)
	}
	if t.ran == 0 {
		err = ctx.Err()
		if err == nil {
			err = ErrNoIterations
		}
		return nil, opError(op, err)
	}

	poly, err := gf.NewPolynomial(field, t.bestCoeffs...)
	if err != nil {
		return nil, opError(op, err)
	}
	clear(t.bestCoeffs)

	cfg.logger.Debug("decoded vault points",
		"points", len(xs),
		"k", k,
		"iterations", t.ran,
		"distinct", len(t.counts),
		"mode_count", t.bestCount,
		"workers", cfg.workers,
		"elapsed", time.Since(start))

	return &DecodeResult{
		Polynomial: poly,
		F0:         t.best,
		Count:      t.bestCount,
		Iterations: t.ran,
		Distinct:   len(t.counts),
	}, nil
}

func validateDecode(field *gf.Field, xs, ys []gf.Elem, k, iterations int) error {
	n := len(xs)
	switch {
	case field == nil:
		return fmt.Errorf("%w: nil field", ErrInvalidParameters)
	case n > MaxDecodePoints:
		return fmt.Errorf("%w: %d points", ErrOutOfEntropyRange, n)
	case n == 0:
		return fmt.Errorf("%w: no points", ErrInvalidParameters)
	case len(ys) != n:
		return fmt.Errorf("%w: %d abscissas but %d ordinates", ErrInvalidParameters, n, len(ys))
	case k <= 0 || k > n:
		return fmt.Errorf("%w: secret size %d with %d points", ErrInvalidParameters, k, n)
	case iterations < 0:
		return fmt.Errorf("%w: negative iteration budget %d", ErrInvalidParameters, iterations)
	case iterations == 0 && k < n:
		return ErrNoIterations
	}

	seen := make(map[gf.Elem]struct{}, n)
	for i, x := range xs {
		if !field.Contains(x) || !field.Contains(ys[i]) {
			return fmt.Errorf("%w: point %d is not in %s", ErrInvalidParameters, i, field)
		}
		if _, dup := seen[x]; dup {
			return fmt.Errorf("%w: duplicate abscissa at point %d", ErrInvalidParameters, i)
		}
		seen[x] = struct{}{}
	}
	return nil
}

// tally is the frequency map and best-so-far tracker of one decoding run.
type tally struct {
	counts     map[gf.Elem]int
	best       gf.Elem
	bestCount  int
	bestCoeffs []gf.Elem
	ran        int
}

func newTally() *tally {
	return &tally{counts: make(map[gf.Elem]int)}
}

// add records a candidate. The first candidate seeds the best; afterwards a
// different value replaces the best only when its count strictly exceeds
// the best's count, so among values with equal counts the one that reached
// that count first is kept.
func (t *tally) add(coeffs []gf.Elem) {
	v := coeffs[0]
	t.counts[v]++
	c := t.counts[v]
	switch {
	case t.ran == 0 || (v != t.best && c > t.bestCount):
		t.best = v
		t.bestCount = c
		t.bestCoeffs = append(t.bestCoeffs[:0], coeffs...)
	case v == t.best:
		t.bestCount = c
	}
	t.ran++
}

// sampler draws k distinct indices from [0, n) by a partial Fisher-Yates
// shuffle over a persistent index buffer.
type sampler struct {
	idx []int
	r   *mrand.Rand
}

func newSampler(n int, r *mrand.Rand) *sampler {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return &sampler{idx: idx, r: r}
}

func (s *sampler) draw(k int) []int {
	n := len(s.idx)
	for i := range k {
		j := i + s.r.IntN(n-i)
		s.idx[i], s.idx[j] = s.idx[j], s.idx[i]
	}
	return s.idx[:k]
}

// candidates interpolates random k-subsets of the unlocking pairs.
type candidates struct {
	xs, ys []gf.Elem
	k      int
	s      *sampler
	ip     *gf.Interpolator
	a, b   []gf.Elem
}

func newCandidates(field *gf.Field, xs, ys []gf.Elem, k int, r *mrand.Rand) *candidates {
	return &candidates{
		xs: xs,
		ys: ys,
		k:  k,
		s:  newSampler(len(xs), r),
		ip: gf.NewInterpolator(field, k),
		a:  make([]gf.Elem, k),
		b:  make([]gf.Elem, k),
	}
}

func (c *candidates) next(dst []gf.Elem) error {
	for i, j := range c.s.draw(c.k) {
		c.a[i] = c.xs[j]
		c.b[i] = c.ys[j]
	}
	return c.ip.InterpolateInto(dst, c.a, c.b)
}

// fill writes count candidates of k coefficients each into dst and returns
// how many it produced before ctx was cancelled.
func (c *candidates) fill(ctx context.Context, dst []gf.Elem, count int) (int, error) {
	done := ctx.Done()
	for i := range count {
		select {
		case <-done:
			return i, nil
		default:
		}
		if err := c.next(dst[i*c.k : (i+1)*c.k]); err != nil {
			return i, err
		}
	}
	return count, nil
}

func decodeSequential(ctx context.Context, field *gf.Field, xs, ys []gf.Elem, k, iterations int, r *mrand.Rand) (*tally, error) {
	c := newCandidates(field, xs, ys, k, r)
	coeffs := make([]gf.Elem, k)
	defer clear(coeffs)

	t := newTally()
	done := ctx.Done()
	for range iterations {
		select {
		case <-done:
			return t, nil
		default:
		}
		if err := c.next(coeffs); err != nil {
			return nil, err
		}
		t.add(coeffs)
	}
	return t, nil
}

// decodeFull handles k == n, where every subset is the full point set and
// a single interpolation decides the outcome.
func decodeFull(ctx context.Context, field *gf.Field, xs, ys []gf.Elem) (*tally, error) {
	t := newTally()
	if ctx.Err() != nil {
		return t, nil
	}
	coeffs := make([]gf.Elem, len(xs))
	defer clear(coeffs)
	if err := gf.NewInterpolator(field, len(xs)).InterpolateInto(coeffs, xs, ys); err != nil {
		return nil, err
	}
	t.add(coeffs)
	return t, nil
}

// decodeParallel generates candidates on several goroutines, each with its
// own generator split from r, in bounded rounds. Candidates are then
// accumulated in round, worker and iteration order, so the outcome equals
// a sequential accumulation of the same candidate sequence.
func decodeParallel(ctx context.Context, field *gf.Field, xs, ys []gf.Elem, k, iterations, workers int, r *mrand.Rand) (*tally, error) {
	workers = min(workers, iterations)
	gens := make([]*candidates, workers)
	for i, wr := range rand.Split(r, workers) {
		gens[i] = newCandidates(field, xs, ys, k, wr)
	}

	round := max(workers, maxRoundCoefficients/k)
	bufs := make([][]gf.Elem, workers)
	produced := make([]int, workers)
	defer func() {
		for _, b := range bufs {
			clear(b)
		}
	}()

	t := newTally()
	for remaining := iterations; remaining > 0; {
		size := min(round, remaining)
		remaining -= size

		g, gctx := errgroup.WithContext(ctx)
		for w := range workers {
			share := size / workers
			if w < size%workers {
				share++
			}
			if cap(bufs[w]) < share*k {
				bufs[w] = make([]gf.Elem, share*k)
			}
			buf := bufs[w][:share*k]
			g.Go(func() error {
				n, err := gens[w].fill(gctx, buf, share)
				produced[w] = n
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for w := range workers {
			for i := range produced[w] {
				t.add(bufs[w][i*k : (i+1)*k])
			}
		}
		if ctx.Err() != nil {
			break
		}
	}
	return t, nil
}
