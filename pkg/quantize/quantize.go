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

// Package quantize maps fingerprint minutiae to integer feature codes.
//
// A minutia's position is snapped to the nearest point of a hexagonal grid
// and its direction to one of a fixed number of angle sectors. The pair is
// combined into a single code in [0, Size()), the feature universe that a
// vault permutes and locks.
package quantize

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidArgument is returned for invalid quantizer parameters.
var ErrInvalidArgument = errors.New("quantize: invalid argument")

// Minutia is a fingerprint minutia in pre-aligned coordinates. Angle is in
// radians and Quality ranks minutiae when only the best ones are used.
type Minutia struct {
	X       float64 `json:"x" yaml:"x"`
	Y       float64 `json:"y" yaml:"y"`
	Angle   float64 `json:"angle" yaml:"angle"`
	Quality int     `json:"quality" yaml:"quality"`
}

// View is a minutiae template.
type View []Minutia

// Quantizer converts a minutiae view into at most tmax distinct feature
// codes, best quality first.
type Quantizer interface {
	Quantize(view View, tmax int) ([]uint32, error)

	// Size returns the number of distinct codes the quantizer can emit.
	Size() int
}

// ByQuality returns a copy of the view sorted by descending quality.
// Minutiae of equal quality keep their relative order.
func (v View) ByQuality() View {
	w := make(View, len(v))
	copy(w, v)
	sort.SliceStable(w, func(i, j int) bool {
		return w[i].Quality > w[j].Quality
	})
	return w
}

// collect quantizes the minutiae of view in descending quality order and
// keeps the first tmax distinct codes.
func collect(view View, tmax int, code func(Minutia) uint32) ([]uint32, error) {
	if tmax < 0 {
		return nil, fmt.Errorf("%w: negative feature bound %d", ErrInvalidArgument, tmax)
	}
	codes := make([]uint32, 0, min(tmax, len(view)))
	seen := make(map[uint32]struct{}, cap(codes))
	for _, m := range view.ByQuality() {
		if len(codes) >= tmax {
			break
		}
		c := code(m)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		codes = append(codes, c)
	}
	return codes, nil
}
